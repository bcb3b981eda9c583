// Package housecallpro adapts the HousecallPro API to the Provider
// capability. Requires credential keys {api_key, company_id}. HousecallPro
// supports webhooks; this core does not implement webhook ingestion
// (stub only, per the Non-goals in SPEC_FULL.md §1).
package housecallpro

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	pkgerrors "github.com/fieldroute/jobsync/internal/pkg/errors"
	"github.com/fieldroute/jobsync/internal/pkg/httpx"
	"github.com/fieldroute/jobsync/internal/pkg/logger"
	"github.com/fieldroute/jobsync/internal/provider"
)

const apiBaseURL = "https://api.housecallpro.com"

// housecallproRequestsPerSecond caps this process's total outbound call
// rate to HousecallPro, independent of the per-company fixed window the
// sync-job use case already enforces (internal/ratelimit).
const housecallproRequestsPerSecond = 8

type Adapter struct {
	httpClient *http.Client
	log        *logger.Logger
	throttle   *rate.Limiter
}

func New(timeout time.Duration, baseLog *logger.Logger) *Adapter {
	return &Adapter{
		httpClient: &http.Client{Timeout: timeout},
		log:        baseLog.With("component", "provider.housecallpro"),
		throttle:   httpx.NewOutboundThrottle(housecallproRequestsPerSecond, 4),
	}
}

func (a *Adapter) ValidateConfig(cfg provider.Config) bool {
	return cfg["api_key"] != "" && cfg["company_id"] != ""
}

func classify(statusCode int, context string) error {
	switch {
	case statusCode == http.StatusTooManyRequests:
		return pkgerrors.NewProviderError(pkgerrors.ProviderRateLimited, "%s: rate limited (429)", context)
	case statusCode >= 400 && statusCode < 500:
		return pkgerrors.NewProviderError(pkgerrors.ProviderAPIError4xx, "%s: client error (%d)", context, statusCode)
	case statusCode >= 500:
		return pkgerrors.NewProviderError(pkgerrors.ProviderAPIError5xx, "%s: server error (%d)", context, statusCode)
	default:
		return nil
	}
}

func (a *Adapter) CreateLead(ctx context.Context, req provider.CreateLeadRequest, cfg provider.Config) (provider.CreateLeadResult, error) {
	if !a.ValidateConfig(cfg) {
		return provider.CreateLeadResult{}, pkgerrors.NewProviderError(pkgerrors.ProviderNotConfigured, "housecallpro: missing api_key/company_id")
	}

	// HousecallPro has no native idempotency-key field: search by the
	// client reference first so repeated calls return the existing lead,
	// per §4.1's tie-break for providers without native idempotency
	// support.
	if existing, err := a.findByClientRef(ctx, req.IdempotencyKey, cfg); err == nil && existing != "" {
		return provider.CreateLeadResult{Success: true, ExternalID: existing}, nil
	}

	payload, _ := json.Marshal(map[string]interface{}{
		"description":  req.Summary,
		"address": map[string]string{
			"street": req.Street, "city": req.City, "state": req.State, "zip": req.ZipCode,
		},
		"customer": map[string]string{
			"name": req.HomeownerName, "phone": req.HomeownerPhone, "email": req.HomeownerEmail,
		},
		"client_reference": req.IdempotencyKey,
	})

	url := fmt.Sprintf("%s/jobs", apiBaseURL)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return provider.CreateLeadResult{}, err
	}
	httpReq.Header.Set("Authorization", "Bearer "+cfg["api_key"])
	httpReq.Header.Set("Content-Type", "application/json")

	if err := a.throttle.Wait(ctx); err != nil {
		return provider.CreateLeadResult{}, err
	}
	resp, err := a.httpClient.Do(httpReq)
	if err != nil {
		return provider.CreateLeadResult{}, pkgerrors.NewProviderError(pkgerrors.ProviderNetwork, "housecallpro create lead request failed: %v", err)
	}
	defer resp.Body.Close()

	if err := classify(resp.StatusCode, "housecallpro create lead"); err != nil {
		return provider.CreateLeadResult{Success: false, ErrorMessage: err.Error()}, err
	}

	var body struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return provider.CreateLeadResult{}, err
	}
	return provider.CreateLeadResult{Success: true, ExternalID: body.ID}, nil
}

func (a *Adapter) findByClientRef(ctx context.Context, clientRef string, cfg provider.Config) (string, error) {
	url := fmt.Sprintf("%s/jobs?client_reference=%s", apiBaseURL, clientRef)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Authorization", "Bearer "+cfg["api_key"])

	if err := a.throttle.Wait(ctx); err != nil {
		return "", err
	}
	resp, err := a.httpClient.Do(httpReq)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("lookup returned status %d", resp.StatusCode)
	}
	var body struct {
		Jobs []struct {
			ID string `json:"id"`
		} `json:"jobs"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", err
	}
	if len(body.Jobs) == 0 {
		return "", nil
	}
	return body.Jobs[0].ID, nil
}

func (a *Adapter) GetJobStatus(ctx context.Context, externalID string, cfg provider.Config) (provider.JobStatusResult, error) {
	url := fmt.Sprintf("%s/jobs/%s", apiBaseURL, externalID)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return provider.JobStatusResult{}, err
	}
	httpReq.Header.Set("Authorization", "Bearer "+cfg["api_key"])

	if err := a.throttle.Wait(ctx); err != nil {
		return provider.JobStatusResult{}, err
	}
	resp, err := a.httpClient.Do(httpReq)
	if err != nil {
		return provider.JobStatusResult{}, pkgerrors.NewProviderError(pkgerrors.ProviderNetwork, "housecallpro get status failed: %v", err)
	}
	defer resp.Body.Close()

	if err := classify(resp.StatusCode, "housecallpro get status"); err != nil {
		return provider.JobStatusResult{ExternalID: externalID, ErrorMessage: err.Error()}, err
	}

	var body struct {
		WorkStatus string   `json:"work_status"`
		Total      *float64 `json:"total"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return provider.JobStatusResult{}, err
	}
	isCompleted := body.WorkStatus == "completed"
	var completedAt *time.Time
	if isCompleted {
		now := time.Now().UTC()
		completedAt = &now
	}
	return provider.JobStatusResult{
		ExternalID:  externalID,
		Status:      body.WorkStatus,
		IsCompleted: isCompleted,
		Revenue:     body.Total,
		CompletedAt: completedAt,
	}, nil
}

func (a *Adapter) BatchGetJobStatus(ctx context.Context, externalIDs []string, cfg provider.Config) ([]provider.JobStatusResult, error) {
	out := make([]provider.JobStatusResult, 0, len(externalIDs))
	for _, id := range externalIDs {
		res, err := a.GetJobStatus(ctx, id, cfg)
		if err != nil {
			out = append(out, provider.JobStatusResult{ExternalID: id, ErrorMessage: err.Error()})
			continue
		}
		out = append(out, res)
	}
	return out, nil
}
