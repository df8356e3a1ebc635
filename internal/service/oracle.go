package service

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/urbanworks/backend/internal/cache"
	"github.com/urbanworks/backend/internal/distance"
	"github.com/urbanworks/backend/internal/metrics"
	"github.com/urbanworks/backend/internal/models"
)

// Oracle answers pairwise distance and travel-time queries for one
// optimization run. Results are memoized in memory under the canonical
// unordered-pair key and optionally written through to an external store.
// Safe for concurrent use; duplicate computation on racing writers is
// harmless since results are pure.
type Oracle struct {
	provider distance.Provider
	fallback distance.GreatCircle
	store    cache.DistanceStore
	logger   zerolog.Logger

	mu   sync.RWMutex
	memo map[string]cache.Entry

	failOnce sync.Once
	downOnce sync.Once
}

func NewOracle(provider distance.Provider, store cache.DistanceStore, speedKmh float64, logger zerolog.Logger) *Oracle {
	if provider == nil {
		provider = distance.GreatCircle{SpeedKmh: speedKmh}
	}
	return &Oracle{
		provider: provider,
		fallback: distance.GreatCircle{SpeedKmh: speedKmh},
		store:    store,
		logger:   logger,
		memo:     map[string]cache.Entry{},
	}
}

// Distance returns kilometers and travel minutes between two tickets.
// Symmetric; Distance(a, a) is (0, 0) and never cached.
func (o *Oracle) Distance(ctx context.Context, a, b *models.Ticket) (float64, float64) {
	if a.ID == b.ID {
		return 0, 0
	}
	key := cache.Key(a.ID, b.ID)

	o.mu.RLock()
	e, ok := o.memo[key]
	o.mu.RUnlock()
	if ok {
		metrics.DistanceCacheHits.WithLabelValues("memory").Inc()
		return e.Km, e.Minutes
	}

	if o.store != nil {
		stored, found, err := o.store.Get(ctx, key)
		if err != nil {
			o.downOnce.Do(func() {
				o.logger.Warn().Err(err).Msg("distance store unavailable, computing for this run")
			})
		} else if found {
			metrics.DistanceCacheHits.WithLabelValues("store").Inc()
			o.remember(key, stored)
			return stored.Km, stored.Minutes
		}
	}

	metrics.DistanceCacheMisses.Inc()
	e = o.compute(ctx, a.Lat, a.Lon, b.Lat, b.Lon)
	o.remember(key, e)

	if o.store != nil {
		if err := o.store.Put(ctx, key, e); err != nil {
			o.downOnce.Do(func() {
				o.logger.Warn().Err(err).Msg("distance store unavailable, computing for this run")
			})
		}
	}
	return e.Km, e.Minutes
}

// Between measures a leg between raw coordinates, bypassing the pair cache.
// Used for cluster centroids, which have no ticket identity.
func (o *Oracle) Between(ctx context.Context, fromLat, fromLon, toLat, toLon float64) (float64, float64) {
	e := o.compute(ctx, fromLat, fromLon, toLat, toLon)
	return e.Km, e.Minutes
}

// Matrix returns the symmetric travel matrix for a ticket set. Entries are
// computed lazily through the pair cache.
func (o *Oracle) Matrix(ctx context.Context, tickets []models.Ticket) [][]cache.Entry {
	n := len(tickets)
	m := make([][]cache.Entry, n)
	for i := range m {
		m[i] = make([]cache.Entry, n)
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			km, min := o.Distance(ctx, &tickets[i], &tickets[j])
			m[i][j] = cache.Entry{Km: km, Minutes: min}
			m[j][i] = m[i][j]
		}
	}
	return m
}

func (o *Oracle) compute(ctx context.Context, fromLat, fromLon, toLat, toLon float64) cache.Entry {
	r, err := o.provider.Between(ctx, fromLat, fromLon, toLat, toLon)
	if err != nil {
		o.failOnce.Do(func() {
			o.logger.Warn().Err(err).Msg("distance provider failed, falling back to great-circle")
		})
		r, _ = o.fallback.Between(ctx, fromLat, fromLon, toLat, toLon)
	}
	return cache.Entry{Km: r.Km, Minutes: r.Minutes}
}

func (o *Oracle) remember(key string, e cache.Entry) {
	o.mu.Lock()
	o.memo[key] = e
	o.mu.Unlock()
}
