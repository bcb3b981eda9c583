// Package mock implements SPEC_FULL.md §4.1's mock provider variant: no
// credentials required, leads persisted in a shared Redis-backed store
// so a subsequent status query returns the prior lead, and a random
// chance of completion on each status call.
//
// Grounded on original_source/src/infrastructure/providers/mock/provider.py:
// create_lead stores the job under a "mock_<8hex>" id; get_job_status has
// a 20% chance of transitioning a pending lead to completed with a
// random revenue in [100, 500]; batch_get_job_status issues individual
// calls sequentially with a small inter-call pause.
package mock

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/big"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/fieldroute/jobsync/internal/pkg/logger"
	"github.com/fieldroute/jobsync/internal/provider"
)

const storeKeyPrefix = "mock_provider:lead:"

type leadRecord struct {
	ExternalID  string     `json:"external_id"`
	Status      string     `json:"status"`
	IsCompleted bool       `json:"is_completed"`
	Revenue     *float64   `json:"revenue,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

type Adapter struct {
	client *goredis.Client
	log    *logger.Logger
}

func New(client *goredis.Client, baseLog *logger.Logger) *Adapter {
	return &Adapter{client: client, log: baseLog.With("component", "provider.mock")}
}

func (a *Adapter) ValidateConfig(cfg provider.Config) bool { return true }

func randomID() string {
	b := make([]byte, 4)
	_, _ = rand.Read(b)
	return "mock_" + hex.EncodeToString(b)
}

func (a *Adapter) CreateLead(ctx context.Context, req provider.CreateLeadRequest, cfg provider.Config) (provider.CreateLeadResult, error) {
	// Idempotency: a prior call with the same key already created a
	// lead, so look it up under the idempotency key before minting a new
	// external id.
	idemKey := storeKeyPrefix + "idem:" + req.IdempotencyKey
	if existing, err := a.client.Get(ctx, idemKey).Result(); err == nil && existing != "" {
		return provider.CreateLeadResult{Success: true, ExternalID: existing}, nil
	}

	externalID := randomID()
	rec := leadRecord{ExternalID: externalID, Status: "pending", IsCompleted: false}
	raw, err := json.Marshal(rec)
	if err != nil {
		return provider.CreateLeadResult{}, err
	}
	if err := a.client.Set(ctx, storeKeyPrefix+externalID, raw, 0).Err(); err != nil {
		return provider.CreateLeadResult{}, err
	}
	if err := a.client.Set(ctx, idemKey, externalID, 0).Err(); err != nil {
		return provider.CreateLeadResult{}, err
	}
	return provider.CreateLeadResult{Success: true, ExternalID: externalID}, nil
}

// rollCompletion implements the original's ~20% chance of a pending lead
// completing on this status check, with a random revenue in [100, 500].
func rollCompletion() (bool, float64) {
	n, err := rand.Int(rand.Reader, big.NewInt(100))
	if err != nil {
		return false, 0
	}
	if n.Int64() >= 20 {
		return false, 0
	}
	revN, err := rand.Int(rand.Reader, big.NewInt(40001))
	if err != nil {
		return true, 100
	}
	return true, 100 + float64(revN.Int64())/100.0
}

func (a *Adapter) GetJobStatus(ctx context.Context, externalID string, cfg provider.Config) (provider.JobStatusResult, error) {
	raw, err := a.client.Get(ctx, storeKeyPrefix+externalID).Result()
	if err == goredis.Nil {
		return provider.JobStatusResult{ExternalID: externalID, ErrorMessage: fmt.Sprintf("no mock lead found for %s", externalID)}, nil
	}
	if err != nil {
		return provider.JobStatusResult{}, err
	}

	var rec leadRecord
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return provider.JobStatusResult{}, err
	}

	if !rec.IsCompleted {
		if done, revenue := rollCompletion(); done {
			now := time.Now().UTC()
			rec.IsCompleted = true
			rec.Status = "completed"
			rec.Revenue = &revenue
			rec.CompletedAt = &now
			if raw, err := json.Marshal(rec); err == nil {
				_ = a.client.Set(ctx, storeKeyPrefix+externalID, raw, 0).Err()
			}
		} else {
			rec.Status = "in_progress"
		}
	}

	return provider.JobStatusResult{
		ExternalID:  rec.ExternalID,
		Status:      rec.Status,
		IsCompleted: rec.IsCompleted,
		Revenue:     rec.Revenue,
		CompletedAt: rec.CompletedAt,
	}, nil
}

// BatchGetJobStatus issues individual calls sequentially with a small
// inter-call pause, mirroring the original's asyncio.sleep(0.2) between
// calls; never unbounded parallel per company.
func (a *Adapter) BatchGetJobStatus(ctx context.Context, externalIDs []string, cfg provider.Config) ([]provider.JobStatusResult, error) {
	out := make([]provider.JobStatusResult, 0, len(externalIDs))
	for i, id := range externalIDs {
		res, err := a.GetJobStatus(ctx, id, cfg)
		if err != nil {
			return nil, err
		}
		out = append(out, res)
		if i < len(externalIDs)-1 {
			select {
			case <-ctx.Done():
				return out, ctx.Err()
			case <-time.After(200 * time.Millisecond):
			}
		}
	}
	return out, nil
}

// storeStats is a debug helper mirroring the original's get_store_stats;
// not exposed over HTTP, reachable only from this package's own tests.
func (a *Adapter) storeStats(ctx context.Context) (int64, error) {
	keys, err := a.client.Keys(ctx, storeKeyPrefix+"mock_*").Result()
	if err != nil {
		return 0, err
	}
	return int64(len(keys)), nil
}
