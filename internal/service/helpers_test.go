package service

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/urbanworks/backend/internal/distance"
	"github.com/urbanworks/backend/internal/models"
)

func newTestOracle() *Oracle {
	return NewOracle(nil, nil, distance.DefaultSpeedKmh, zerolog.Nop())
}

// countingProvider wraps great-circle and counts computations.
type countingProvider struct {
	mu    sync.Mutex
	calls int
	inner distance.GreatCircle
}

func (p *countingProvider) Between(ctx context.Context, fromLat, fromLon, toLat, toLon float64) (distance.Result, error) {
	p.mu.Lock()
	p.calls++
	p.mu.Unlock()
	return p.inner.Between(ctx, fromLat, fromLon, toLat, toLon)
}

func ticket(id string, lat, lon float64, priority models.Priority, serviceMin int) models.Ticket {
	return models.Ticket{
		ID:                      id,
		Lat:                     lat,
		Lon:                     lon,
		ProblemType:             models.ProblemPothole,
		Priority:                priority,
		CrewType:                models.CrewGeneral,
		EstimatedServiceMinutes: serviceMin,
		Status:                  models.StatusOpen,
	}
}

func scored(tickets ...models.Ticket) []models.Ticket {
	ScoreAll(tickets)
	return tickets
}

func tourMinutes(oracle *Oracle, tour []models.Ticket) float64 {
	total := 0.0
	for i := 1; i < len(tour); i++ {
		_, min := oracle.Distance(context.Background(), &tour[i-1], &tour[i])
		total += min
	}
	return total
}
