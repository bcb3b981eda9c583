// Package servicetitan adapts the ServiceTitan API to the Provider
// capability. Requires credential keys {client_id, client_secret,
// tenant_id}; performs its own OAuth client-credentials exchange with a
// ~5-minute pre-expiry refresh; maps 4xx to a non-retryable error and
// 5xx/timeout/network error to a retryable one, per SPEC_FULL.md §4.1.
package servicetitan

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	pkgerrors "github.com/fieldroute/jobsync/internal/pkg/errors"
	"github.com/fieldroute/jobsync/internal/pkg/httpx"
	"github.com/fieldroute/jobsync/internal/pkg/logger"
	"github.com/fieldroute/jobsync/internal/provider"
)

const (
	tokenURL       = "https://auth.servicetitan.io/connect/token"
	apiBaseURL     = "https://api.servicetitan.io"
	tokenPreExpiry = 5 * time.Minute
)

// cachedToken is one client's cached OAuth access token.
type cachedToken struct {
	accessToken string
	expiresAt   time.Time
}

// Adapter caches an OAuth token per company (keyed by tenant_id) since
// each company authenticates independently. Grounded on the provider
// contract's "authentication tokens cached in-memory per adapter
// instance with pre-expiry refresh" requirement (§5).
type Adapter struct {
	httpClient *http.Client
	log        *logger.Logger
	throttle   *rate.Limiter

	mu     sync.Mutex
	tokens map[string]cachedToken
}

// servicetitanRequestsPerSecond caps this process's total outbound call
// rate to ServiceTitan, independent of the per-company fixed window the
// sync-job use case already enforces (internal/ratelimit).
const servicetitanRequestsPerSecond = 8

func New(timeout time.Duration, baseLog *logger.Logger) *Adapter {
	return &Adapter{
		httpClient: &http.Client{Timeout: timeout},
		log:        baseLog.With("component", "provider.servicetitan"),
		throttle:   httpx.NewOutboundThrottle(servicetitanRequestsPerSecond, 4),
		tokens:     make(map[string]cachedToken),
	}
}

func (a *Adapter) ValidateConfig(cfg provider.Config) bool {
	return cfg["client_id"] != "" && cfg["client_secret"] != "" && cfg["tenant_id"] != ""
}

func (a *Adapter) token(ctx context.Context, cfg provider.Config) (string, error) {
	tenantID := cfg["tenant_id"]
	a.mu.Lock()
	if t, ok := a.tokens[tenantID]; ok && time.Now().Before(t.expiresAt.Add(-tokenPreExpiry)) {
		a.mu.Unlock()
		return t.accessToken, nil
	}
	a.mu.Unlock()

	form := fmt.Sprintf("grant_type=client_credentials&client_id=%s&client_secret=%s",
		cfg["client_id"], cfg["client_secret"])
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tokenURL, bytes.NewBufferString(form))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return "", pkgerrors.NewProviderError(pkgerrors.ProviderNetwork, "servicetitan oauth request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 && resp.StatusCode < 500 {
		return "", pkgerrors.NewProviderError(pkgerrors.ProviderNotConfigured, "servicetitan oauth rejected credentials: status %d", resp.StatusCode)
	}
	if resp.StatusCode >= 500 {
		return "", pkgerrors.NewProviderError(pkgerrors.ProviderAPIError5xx, "servicetitan oauth server error: status %d", resp.StatusCode)
	}

	var body struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", err
	}

	a.mu.Lock()
	a.tokens[tenantID] = cachedToken{
		accessToken: body.AccessToken,
		expiresAt:   time.Now().Add(time.Duration(body.ExpiresIn) * time.Second),
	}
	a.mu.Unlock()
	return body.AccessToken, nil
}

// classify maps an HTTP status code to the provider error taxonomy.
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
		return provider.CreateLeadResult{}, pkgerrors.NewProviderError(pkgerrors.ProviderNotConfigured, "servicetitan: missing client_id/client_secret/tenant_id")
	}
	tok, err := a.token(ctx, cfg)
	if err != nil {
		return provider.CreateLeadResult{}, err
	}

	payload, _ := json.Marshal(map[string]interface{}{
		"summary":         req.Summary,
		"street":          req.Street,
		"city":            req.City,
		"state":           req.State,
		"zip":             req.ZipCode,
		"customerName":    req.HomeownerName,
		"customerPhone":   req.HomeownerPhone,
		"customerEmail":   req.HomeownerEmail,
		"externalRefId":   req.IdempotencyKey,
	})

	url := fmt.Sprintf("%s/jpm/v2/tenant/%s/jobs", apiBaseURL, cfg["tenant_id"])
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return provider.CreateLeadResult{}, err
	}
	httpReq.Header.Set("Authorization", "Bearer "+tok)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("ST-Idempotency-Key", req.IdempotencyKey)

	if err := a.throttle.Wait(ctx); err != nil {
		return provider.CreateLeadResult{}, err
	}
	resp, err := a.httpClient.Do(httpReq)
	if err != nil {
		return provider.CreateLeadResult{}, pkgerrors.NewProviderError(pkgerrors.ProviderNetwork, "servicetitan create lead request failed: %v", err)
	}
	defer resp.Body.Close()

	if err := classify(resp.StatusCode, "servicetitan create lead"); err != nil {
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

func (a *Adapter) GetJobStatus(ctx context.Context, externalID string, cfg provider.Config) (provider.JobStatusResult, error) {
	tok, err := a.token(ctx, cfg)
	if err != nil {
		return provider.JobStatusResult{}, err
	}
	url := fmt.Sprintf("%s/jpm/v2/tenant/%s/jobs/%s", apiBaseURL, cfg["tenant_id"], externalID)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return provider.JobStatusResult{}, err
	}
	httpReq.Header.Set("Authorization", "Bearer "+tok)

	if err := a.throttle.Wait(ctx); err != nil {
		return provider.JobStatusResult{}, err
	}
	resp, err := a.httpClient.Do(httpReq)
	if err != nil {
		return provider.JobStatusResult{}, pkgerrors.NewProviderError(pkgerrors.ProviderNetwork, "servicetitan get status failed: %v", err)
	}
	defer resp.Body.Close()

	if err := classify(resp.StatusCode, "servicetitan get status"); err != nil {
		return provider.JobStatusResult{ExternalID: externalID, ErrorMessage: err.Error()}, err
	}

	var body struct {
		Status      string   `json:"status"`
		IsCompleted bool     `json:"isCompleted"`
		Revenue     *float64 `json:"revenue"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return provider.JobStatusResult{}, err
	}
	var completedAt *time.Time
	if body.IsCompleted {
		now := time.Now().UTC()
		completedAt = &now
	}
	return provider.JobStatusResult{
		ExternalID:  externalID,
		Status:      body.Status,
		IsCompleted: body.IsCompleted,
		Revenue:     body.Revenue,
		CompletedAt: completedAt,
	}, nil
}

// BatchGetJobStatus issues individual calls sequentially: ServiceTitan
// has no batch-status endpoint this adapter relies on, and parallelizing
// per company would defeat the core's rate-limit compliance assumption
// (§4.1).
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
