package cfg

import (
	"errors"
	"flag"
	"fmt"
)

// Config adds service-specific configuration fields to the
// common cfg.Registerable and cfg.Validatable interfaces
type Config struct {
	DrainSeconds           int
	ShutdownBudgetSeconds  int
	APIPort                int
	APIToken               string
	DatabaseURL            string
	DedupWindowSeconds     int
	CatchUpIntervalSeconds int
	CatchUpGraceSeconds    int
	CatchUpBatchSize       int
	NotifyThreshold        float64
	DefaultOwner           string
	SlackWebhookURL        string
}

// RegisterFlags binds Config fields to the given FlagSet with defaults inline
func (c *Config) RegisterFlags(fs *flag.FlagSet) {
	fs.IntVar(&c.DrainSeconds, "drain-seconds", 60, "seconds to wait for in-flight requests to drain before shutdown (1..300)")
	fs.IntVar(&c.ShutdownBudgetSeconds, "shutdown-budget-seconds", 90, "total seconds for component shutdown after drain (1..300)")
	fs.IntVar(&c.APIPort, "http-port", 8080, "API listen TCP port (1..65535)")
	fs.StringVar(&c.APIToken, "api-token", "", "bearer token guarding mutating queue endpoints (empty = no auth)")
	fs.StringVar(&c.DatabaseURL, "database-url", "", "PostgreSQL connection URL (empty = in-memory store)")
	fs.IntVar(&c.DedupWindowSeconds, "dedup-window-seconds", 300, "signal deduplication window in seconds (1..86400)")
	fs.IntVar(&c.CatchUpIntervalSeconds, "catchup-interval-seconds", 300, "seconds between catch-up sweeps for unprocessed signals (0 = disabled)")
	fs.IntVar(&c.CatchUpGraceSeconds, "catchup-grace-seconds", 120, "minimum signal age before catch-up picks it up")
	fs.IntVar(&c.CatchUpBatchSize, "catchup-batch-size", 50, "maximum signals recovered per catch-up sweep (1..1000)")
	fs.Float64Var(&c.NotifyThreshold, "notify-threshold", 70, "minimum composite score (0..100) that triggers a Slack notification")
	fs.StringVar(&c.DefaultOwner, "default-owner", "", "owner assigned to action items when the source names none")
	fs.StringVar(&c.SlackWebhookURL, "slack-webhook-url", "", "Slack webhook URL for high-priority notifications (empty = disabled)")
}

// Validate checks all configuration fields for correctness.
// It returns an error if any field is invalid, or nil if all fields are valid.
func (c *Config) Validate() error {
	var errs []error

	// Drain and shutdown budgets
	if c.DrainSeconds <= 0 || c.DrainSeconds > 300 {
		errs = append(errs, fmt.Errorf("invalid DRAIN_SECONDS %d (must be 1..300)", c.DrainSeconds))
	}
	if c.ShutdownBudgetSeconds <= 0 || c.ShutdownBudgetSeconds > 300 {
		errs = append(errs, fmt.Errorf("invalid SHUTDOWN_BUDGET_SECONDS %d (must be 1..300)", c.ShutdownBudgetSeconds))
	}

	// Shutdown budget must be greater than drain time
	if c.ShutdownBudgetSeconds <= c.DrainSeconds {
		errs = append(errs, fmt.Errorf("SHUTDOWN_BUDGET_SECONDS %d must be greater than DRAIN_SECONDS %d", c.ShutdownBudgetSeconds, c.DrainSeconds))
	}

	// API port must be valid TCP port number
	if c.APIPort <= 0 || c.APIPort > 65535 {
		errs = append(errs, fmt.Errorf("invalid HTTP_PORT %d (must be 1..65535)", c.APIPort))
	}

	if c.DedupWindowSeconds <= 0 || c.DedupWindowSeconds > 86400 {
		errs = append(errs, fmt.Errorf("invalid DEDUP_WINDOW_SECONDS %d (must be 1..86400)", c.DedupWindowSeconds))
	}

	if c.CatchUpIntervalSeconds < 0 {
		errs = append(errs, fmt.Errorf("invalid CATCHUP_INTERVAL_SECONDS %d (must be >= 0)", c.CatchUpIntervalSeconds))
	}
	if c.CatchUpGraceSeconds < 0 {
		errs = append(errs, fmt.Errorf("invalid CATCHUP_GRACE_SECONDS %d (must be >= 0)", c.CatchUpGraceSeconds))
	}
	if c.CatchUpBatchSize <= 0 || c.CatchUpBatchSize > 1000 {
		errs = append(errs, fmt.Errorf("invalid CATCHUP_BATCH_SIZE %d (must be 1..1000)", c.CatchUpBatchSize))
	}

	// written so NaN also fails
	if !(c.NotifyThreshold >= 0 && c.NotifyThreshold <= 100) {
		errs = append(errs, fmt.Errorf("invalid NOTIFY_THRESHOLD %g (must be 0..100)", c.NotifyThreshold))
	}

	// A webhook without a sane threshold would page on every item; the
	// threshold check above covers it, so the URL itself is free-form.
	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}
