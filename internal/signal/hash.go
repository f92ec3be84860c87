package signal

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
)

// Hash computes the canonical content hash of a payload: maps are
// serialized with recursively sorted keys, then digested with SHA-256.
// Payloads that are equal up to key ordering hash identically.
func Hash(payload map[string]any) string {
	var buf bytes.Buffer
	writeCanonical(&buf, payload)
	sum := sha256.Sum256(buf.Bytes())
	return hex.EncodeToString(sum[:])
}

func writeCanonical(buf *bytes.Buffer, v any) {
	switch val := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		buf.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			kb, _ := json.Marshal(k)
			buf.Write(kb)
			buf.WriteByte(':')
			writeCanonical(buf, val[k])
		}
		buf.WriteByte('}')
	case []any:
		buf.WriteByte('[')
		for i, item := range val {
			if i > 0 {
				buf.WriteByte(',')
			}
			writeCanonical(buf, item)
		}
		buf.WriteByte(']')
	default:
		// scalars (string, float64, bool, nil) and any typed values a Go
		// caller passed directly; encoding/json sorts keys of typed maps.
		b, err := json.Marshal(v)
		if err != nil {
			// unmarshalable values (channels, funcs) should never reach a
			// payload; fold them into a stable marker rather than panic.
			buf.WriteString(`"<unhashable>"`)
			return
		}
		buf.Write(b)
	}
}
