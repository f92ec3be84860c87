// Package pipeline provides the business boundary for Scout's signal
// ingestion and prioritization system. It defines the Service (gateway,
// dedup, async processing, catch-up), Store interface (persistence), and
// the domain models for action items and recommendations.
package pipeline
