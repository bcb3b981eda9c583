// Package provider defines the uniform capability every external job
// system (ServiceTitan, HousecallPro, or the mock) is adapted to, per
// SPEC_FULL.md §4.1.
package provider

import (
	"context"
	"encoding/json"
	"time"
)

// Config is a provider-type-specific credential/setting bag, stored
// opaquely as JSON on the Company row.
type Config map[string]string

// ConfigFromJSON decodes a Company's provider_config JSONB column into a
// Config, treating an empty/null column as an empty config rather than
// an error.
func ConfigFromJSON(raw []byte) (Config, error) {
	if len(raw) == 0 {
		return Config{}, nil
	}
	var cfg Config
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, err
	}
	if cfg == nil {
		cfg = Config{}
	}
	return cfg, nil
}

// CreateLeadRequest carries what a provider needs to create a lead. The
// core never sends full job PII beyond what's needed to route work.
type CreateLeadRequest struct {
	JobID          string
	Summary        string
	Street         string
	City           string
	State          string
	ZipCode        string
	HomeownerName  string
	HomeownerPhone string
	HomeownerEmail string
	Category       string
	// IdempotencyKey is surfaced to the remote system as a client
	// reference so repeated calls with the same key return the same
	// external_id. Callers pass routing.ID.String().
	IdempotencyKey string
}

// CreateLeadResult is what a provider reports after attempting to create
// a lead.
type CreateLeadResult struct {
	Success      bool
	ExternalID   string
	ErrorMessage string
}

// JobStatusResult is what a provider reports for one external lead.
type JobStatusResult struct {
	ExternalID   string
	Status       string
	IsCompleted  bool
	Revenue      *float64
	CompletedAt  *time.Time
	ErrorMessage string
}

// Provider is the capability every adapter implements.
type Provider interface {
	CreateLead(ctx context.Context, req CreateLeadRequest, cfg Config) (CreateLeadResult, error)
	GetJobStatus(ctx context.Context, externalID string, cfg Config) (JobStatusResult, error)

	// BatchGetJobStatus MAY be implemented as sequential individual calls
	// with a small inter-call pause; never unbounded parallel per
	// company (the core relies on per-company serialization for
	// rate-limit compliance, §4.1).
	BatchGetJobStatus(ctx context.Context, externalIDs []string, cfg Config) ([]JobStatusResult, error)

	// ValidateConfig performs no I/O.
	ValidateConfig(cfg Config) bool
}
