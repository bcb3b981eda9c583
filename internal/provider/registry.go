package provider

import (
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/fieldroute/jobsync/internal/domain"
	"github.com/fieldroute/jobsync/internal/pkg/logger"
	"github.com/fieldroute/jobsync/internal/provider/housecallpro"
	"github.com/fieldroute/jobsync/internal/provider/mock"
	"github.com/fieldroute/jobsync/internal/provider/servicetitan"
)

// Registry resolves a provider-type tag to an adapter instance (C2).
// Grounded on original_source/src/infrastructure/providers/factory.py's
// ProviderFactory: adapters are built once per process (not per call)
// and handed out by type, since each adapter caches its own HTTP client
// and OAuth token.
type Registry struct {
	httpTimeout time.Duration
	adapters    map[domain.ProviderType]Provider
}

func NewRegistry(httpTimeout time.Duration, redisClient *redis.Client, baseLog *logger.Logger) *Registry {
	return &Registry{
		httpTimeout: httpTimeout,
		adapters: map[domain.ProviderType]Provider{
			domain.ProviderTypeServiceTitan: servicetitan.New(httpTimeout, baseLog),
			domain.ProviderTypeHousecallPro: housecallpro.New(httpTimeout, baseLog),
			domain.ProviderTypeMock:         mock.New(redisClient, baseLog),
		},
	}
}

// Resolve returns the adapter bound to providerType, or an error if the
// tag is unrecognized.
func (r *Registry) Resolve(providerType domain.ProviderType) (Provider, error) {
	p, ok := r.adapters[providerType]
	if !ok {
		return nil, fmt.Errorf("unrecognized provider type %q", providerType)
	}
	return p, nil
}
