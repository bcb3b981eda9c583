package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/fieldroute/jobsync/internal/domain"
	"github.com/fieldroute/jobsync/internal/pkg/dbctx"
	"github.com/fieldroute/jobsync/internal/pkg/logger"
	"github.com/fieldroute/jobsync/internal/provider"
	"github.com/fieldroute/jobsync/internal/ratelimit"
	"github.com/fieldroute/jobsync/internal/repos"
)

// SyncJob drives a single routing through the state machine toward
// SYNCED (C9), per SPEC_FULL.md §4.7. It is the executor a dispatched
// sync task invokes (C12). Execute calls the provider exactly once per
// invocation (§4.7 step 6); retrying a transient failure is the
// dispatching worker's job (it re-dispatches a later, separate
// invocation once next_retry_at elapses), not a loop in here.
type SyncJob struct {
	db                 *gorm.DB
	log                *logger.Logger
	jobs               repos.JobRepo
	companies          repos.CompanyRepo
	routings           repos.JobRoutingRepo
	registry           *provider.Registry
	limiter            ratelimit.Limiter
	maxRetryAttempts   int
	rateLimitPerMinute int
}

func NewSyncJob(db *gorm.DB, baseLog *logger.Logger, jobs repos.JobRepo, companies repos.CompanyRepo, routings repos.JobRoutingRepo, registry *provider.Registry, limiter ratelimit.Limiter, maxRetryAttempts int, rateLimitPerMinute int) *SyncJob {
	if rateLimitPerMinute <= 0 {
		rateLimitPerMinute = 60
	}
	return &SyncJob{
		db:  db,
		log: baseLog.With("usecase", "SyncJob"),
		jobs: jobs, companies: companies, routings: routings,
		registry: registry, limiter: limiter,
		maxRetryAttempts:   maxRetryAttempts,
		rateLimitPerMinute: rateLimitPerMinute,
	}
}

// Execute implements §4.7's algorithm. It returns true when the routing
// ends up synced/completed (including "already done"), false otherwise
// (not found, not syncable right now, or the provider call failed).
func (u *SyncJob) Execute(ctx context.Context, routingID uuid.UUID) (bool, error) {
	dbc := dbctx.Context{Ctx: ctx, Tx: u.db}

	routing, err := u.routings.GetByID(dbc, routingID)
	if err != nil {
		return false, err
	}
	if routing == nil {
		return false, nil
	}

	if routing.AlreadyDone() {
		return true, nil
	}
	if !routing.CanSync(u.maxRetryAttempts) {
		return false, nil
	}

	claimed, err := u.routings.ClaimForProcessing(dbc, routingID, u.maxRetryAttempts)
	if err != nil {
		return false, err
	}
	if claimed == nil {
		// Lost the race to another task, or became ineligible between
		// the check above and the claim attempt: not an error.
		return false, nil
	}

	job, err := u.jobs.GetByID(dbc, claimed.JobID)
	if err != nil {
		return false, u.markFailed(dbc, claimed, err.Error())
	}
	if job == nil {
		return false, u.markFailed(dbc, claimed, "job not found for routing")
	}

	company, err := u.companies.GetByID(dbc, claimed.CompanyIDReceived)
	if err != nil {
		return false, u.markFailed(dbc, claimed, err.Error())
	}
	if company == nil {
		return false, u.markFailed(dbc, claimed, "receiving company not found")
	}

	if !u.limiter.Allow(ctx, "sync_job", company.ID.String(), u.rateLimitPerMinute, time.Minute) {
		return false, u.markFailed(dbc, claimed, "rate limit exceeded for sync_job")
	}

	adapter, err := u.registry.Resolve(company.ProviderType)
	if err != nil {
		return false, u.markFailed(dbc, claimed, err.Error())
	}

	cfg, err := provider.ConfigFromJSON(company.ProviderConfig)
	if err != nil {
		return false, u.markFailed(dbc, claimed, err.Error())
	}
	if !adapter.ValidateConfig(cfg) {
		msg := "provider not configured for company"
		_ = u.markTerminalFailed(dbc, claimed, msg)
		return false, nil
	}

	req := provider.CreateLeadRequest{
		JobID:          job.ID.String(),
		Summary:        job.Summary,
		Street:         job.Street,
		City:           job.City,
		State:          job.State,
		ZipCode:        job.ZipCode,
		HomeownerName:  job.HomeownerName,
		HomeownerPhone: job.HomeownerPhone,
		HomeownerEmail: job.HomeownerEmail,
		Category:       job.Category,
		IdempotencyKey: claimed.ID.String(),
	}

	result, callErr := adapter.CreateLead(ctx, req, cfg)
	if callErr != nil {
		return false, u.markFailed(dbc, claimed, callErr.Error())
	}
	if !result.Success || result.ExternalID == "" {
		errMsg := result.ErrorMessage
		if errMsg == "" {
			errMsg = "provider returned success without an external id"
		}
		return false, u.markFailed(dbc, claimed, errMsg)
	}

	now := time.Now().UTC()
	err = u.routings.UpdateFields(dbc, claimed.ID, map[string]interface{}{
		"sync_status":    domain.SyncStatusSynced,
		"external_id":    result.ExternalID,
		"last_synced_at": now,
		"error_message":  nil,
		"next_retry_at":  nil,
	})
	if err != nil {
		return false, err
	}
	return true, nil
}

// markFailed applies §4.7's failed-transition rule: retry_count++,
// next_retry_at computed while retries remain, else terminal (no
// next_retry_at).
func (u *SyncJob) markFailed(dbc dbctx.Context, routing *domain.JobRouting, errMsg string) error {
	retryCount := routing.RetryCount + 1
	updates := map[string]interface{}{
		"sync_status":   domain.SyncStatusFailed,
		"retry_count":   retryCount,
		"error_message": errMsg,
	}
	if retryCount < u.maxRetryAttempts {
		next := time.Now().UTC().Add(domain.NextRetryDelay(retryCount))
		updates["next_retry_at"] = next
	} else {
		updates["next_retry_at"] = nil
	}
	return u.routings.UpdateFields(dbc, routing.ID, updates)
}

// MarkFailedExternally lets the dispatching worker record a failure
// that happened outside Execute's own call path (a soft-deadline
// timeout, per SPEC_FULL.md §5), applying the same retry/backoff
// transition as a provider failure. It is a no-op if the routing has
// already left PROCESSING by the time it runs, since Execute itself
// resolved it first.
func (u *SyncJob) MarkFailedExternally(ctx context.Context, routingID uuid.UUID, errMsg string) error {
	dbc := dbctx.Context{Ctx: ctx, Tx: u.db}
	routing, err := u.routings.GetByID(dbc, routingID)
	if err != nil {
		return err
	}
	if routing == nil || routing.SyncStatus != domain.SyncStatusProcessing {
		return nil
	}
	return u.markFailed(dbc, routing, errMsg)
}

func (u *SyncJob) markTerminalFailed(dbc dbctx.Context, routing *domain.JobRouting, errMsg string) error {
	return u.routings.UpdateFields(dbc, routing.ID, map[string]interface{}{
		"sync_status":   domain.SyncStatusFailed,
		"retry_count":   u.maxRetryAttempts,
		"error_message": errMsg,
		"next_retry_at": nil,
	})
}
