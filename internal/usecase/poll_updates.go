package usecase

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/fieldroute/jobsync/internal/domain"
	"github.com/fieldroute/jobsync/internal/pkg/dbctx"
	"github.com/fieldroute/jobsync/internal/pkg/logger"
	"github.com/fieldroute/jobsync/internal/provider"
	"github.com/fieldroute/jobsync/internal/repos"
)

// PollResult aggregates counts across one PollUpdates.Execute call,
// mirroring original_source's PollResult dataclass.
type PollResult struct {
	TotalPolled int
	Updated     int
	Completed   int
	Errors      []string
}

// groupKey identifies one (provider_type, company) batch-status call.
type groupKey struct {
	providerType domain.ProviderType
	companyID    string
}

// PollUpdates batches SYNCED routings by (provider, company), calls C1,
// and transitions to COMPLETED with revenue (C10), per SPEC_FULL.md §4.8.
type PollUpdates struct {
	db        *gorm.DB
	log       *logger.Logger
	jobs      repos.JobRepo
	companies repos.CompanyRepo
	routings  repos.JobRoutingRepo
	registry  *provider.Registry

	syncIntervalMinutes int
}

func NewPollUpdates(db *gorm.DB, baseLog *logger.Logger, jobs repos.JobRepo, companies repos.CompanyRepo, routings repos.JobRoutingRepo, registry *provider.Registry, syncIntervalMinutes int) *PollUpdates {
	return &PollUpdates{
		db: db, log: baseLog.With("usecase", "PollUpdates"),
		jobs: jobs, companies: companies, routings: routings, registry: registry,
		syncIntervalMinutes: syncIntervalMinutes,
	}
}

// Execute implements §4.8's algorithm.
func (u *PollUpdates) Execute(ctx context.Context, limit int) (PollResult, error) {
	dbc := dbctx.Context{Ctx: ctx, Tx: u.db}
	result := PollResult{}

	due, err := u.routings.ListSyncedForPolling(dbc, u.syncIntervalMinutes, limit)
	if err != nil {
		return result, err
	}
	result.TotalPolled = len(due)
	if len(due) == 0 {
		return result, nil
	}

	companyByID := make(map[string]*domain.Company)
	groups := make(map[groupKey][]*domain.JobRouting)
	for _, r := range due {
		company, err := u.companies.GetByID(dbc, r.CompanyIDReceived)
		if err != nil || company == nil {
			result.Errors = append(result.Errors, "company lookup failed for routing "+r.ID.String())
			continue
		}
		companyByID[company.ID.String()] = company
		key := groupKey{providerType: company.ProviderType, companyID: company.ID.String()}
		groups[key] = append(groups[key], r)
	}

	// Between groups there is no ordering requirement; within a group,
	// routings are updated sequentially so a provider rate limit is
	// never tripped by intra-group parallelism (§4.8, §5).
	for key, groupRoutings := range groups {
		u.pollGroup(ctx, dbc, companyByID[key.companyID], groupRoutings, &result)
	}

	return result, nil
}

func (u *PollUpdates) pollGroup(ctx context.Context, dbc dbctx.Context, company *domain.Company, groupRoutings []*domain.JobRouting, result *PollResult) {
	adapter, err := u.registry.Resolve(company.ProviderType)
	if err != nil {
		result.Errors = append(result.Errors, err.Error())
		return
	}
	cfg, err := provider.ConfigFromJSON(company.ProviderConfig)
	if err != nil {
		result.Errors = append(result.Errors, err.Error())
		return
	}

	externalIDs := make([]string, 0, len(groupRoutings))
	for _, r := range groupRoutings {
		if r.ExternalID != nil {
			externalIDs = append(externalIDs, *r.ExternalID)
		}
	}

	statuses, err := adapter.BatchGetJobStatus(ctx, externalIDs, cfg)
	if err != nil {
		result.Errors = append(result.Errors, err.Error())
		return
	}
	byExternalID := make(map[string]provider.JobStatusResult, len(statuses))
	for _, s := range statuses {
		byExternalID[s.ExternalID] = s
	}

	now := time.Now().UTC()
	for _, r := range groupRoutings {
		if r.ExternalID == nil {
			result.Errors = append(result.Errors, "routing "+r.ID.String()+" has no external id")
			continue
		}
		status, ok := byExternalID[*r.ExternalID]
		if !ok {
			result.Errors = append(result.Errors, "no status response for routing "+r.ID.String())
			continue
		}
		if status.ErrorMessage != "" {
			result.Errors = append(result.Errors, status.ErrorMessage)
			continue
		}

		if status.IsCompleted && r.SyncStatus == domain.SyncStatusSynced {
			updates := map[string]interface{}{
				"sync_status":    domain.SyncStatusCompleted,
				"last_synced_at": now,
			}
			if status.Revenue != nil {
				updates["revenue"] = *status.Revenue
			}
			if err := u.routings.UpdateFields(dbc, r.ID, updates); err != nil {
				result.Errors = append(result.Errors, err.Error())
				continue
			}
			if status.Revenue != nil {
				completedAt := now
				if status.CompletedAt != nil {
					completedAt = *status.CompletedAt
				}
				if err := u.jobs.MarkCompleted(dbc, r.JobID, completedAt); err != nil {
					result.Errors = append(result.Errors, err.Error())
					continue
				}
			}
			result.Completed++
			result.Updated++
		} else {
			if err := u.routings.UpdateFields(dbc, r.ID, map[string]interface{}{"last_synced_at": now}); err != nil {
				result.Errors = append(result.Errors, err.Error())
				continue
			}
			result.Updated++
		}
	}
}
