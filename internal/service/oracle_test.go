package service

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/rs/zerolog"

	"github.com/urbanworks/backend/internal/cache"
	"github.com/urbanworks/backend/internal/distance"
	"github.com/urbanworks/backend/internal/models"
)

func TestOracleSymmetricAndZeroOnSelf(t *testing.T) {
	oracle := newTestOracle()
	a := ticket("a", -23.5505, -46.6333, models.PriorityMedium, 10)
	b := ticket("b", -23.5631, -46.6544, models.PriorityMedium, 10)

	kmAB, minAB := oracle.Distance(context.Background(), &a, &b)
	kmBA, minBA := oracle.Distance(context.Background(), &b, &a)
	if kmAB != kmBA || minAB != minBA {
		t.Fatalf("distance not symmetric: (%f,%f) vs (%f,%f)", kmAB, minAB, kmBA, minBA)
	}
	if kmAB <= 0 || minAB <= 0 {
		t.Fatalf("expected positive distance between distinct points")
	}

	if km, min := oracle.Distance(context.Background(), &a, &a); km != 0 || min != 0 {
		t.Fatalf("expected zero self distance, got (%f,%f)", km, min)
	}
}

func TestOracleMemoizes(t *testing.T) {
	p := &countingProvider{inner: distance.GreatCircle{SpeedKmh: 30}}
	oracle := NewOracle(p, nil, 30, zerolog.Nop())

	a := ticket("a", 0, 0, models.PriorityMedium, 10)
	b := ticket("b", 0.1, 0.1, models.PriorityMedium, 10)

	oracle.Distance(context.Background(), &a, &b)
	oracle.Distance(context.Background(), &b, &a)
	oracle.Distance(context.Background(), &a, &b)

	if p.calls != 1 {
		t.Fatalf("expected a single provider computation, got %d", p.calls)
	}
}

func TestOracleTravelMinutesFollowSpeed(t *testing.T) {
	// At 60 km/h the minute count equals the kilometer count.
	oracle := NewOracle(nil, nil, 60, zerolog.Nop())
	a := ticket("a", 0, 0, models.PriorityMedium, 10)
	b := ticket("b", 1, 0, models.PriorityMedium, 10)

	km, min := oracle.Distance(context.Background(), &a, &b)
	if math.Abs(min-km) > 1e-9 {
		t.Fatalf("expected minutes = km/speed*60, got km=%f min=%f", km, min)
	}
}

type flakyStore struct {
	getErr error
	data   map[string]cache.Entry
	puts   int
}

func (s *flakyStore) Get(_ context.Context, key string) (cache.Entry, bool, error) {
	if s.getErr != nil {
		return cache.Entry{}, false, s.getErr
	}
	e, ok := s.data[key]
	return e, ok, nil
}

func (s *flakyStore) Put(_ context.Context, key string, e cache.Entry) error {
	if s.data == nil {
		s.data = map[string]cache.Entry{}
	}
	s.data[key] = e
	s.puts++
	return nil
}

func TestOracleWritesThroughStore(t *testing.T) {
	store := &flakyStore{}
	oracle := NewOracle(nil, store, 30, zerolog.Nop())

	a := ticket("a", 0, 0, models.PriorityMedium, 10)
	b := ticket("b", 0.1, 0.1, models.PriorityMedium, 10)
	oracle.Distance(context.Background(), &a, &b)

	if store.puts != 1 {
		t.Fatalf("expected one write-through, got %d", store.puts)
	}
	if _, ok := store.data[cache.Key("a", "b")]; !ok {
		t.Fatalf("expected canonical key in store, got %v", store.data)
	}
}

func TestOracleSurvivesStoreFailure(t *testing.T) {
	store := &flakyStore{getErr: errors.New("connection refused")}
	oracle := NewOracle(nil, store, 30, zerolog.Nop())

	a := ticket("a", 0, 0, models.PriorityMedium, 10)
	b := ticket("b", 0.1, 0.1, models.PriorityMedium, 10)
	km, _ := oracle.Distance(context.Background(), &a, &b)
	if km <= 0 {
		t.Fatalf("expected computed distance despite store failure")
	}
}

func TestOracleMatrixSymmetric(t *testing.T) {
	oracle := newTestOracle()
	tickets := []models.Ticket{
		ticket("a", 0, 0, models.PriorityMedium, 10),
		ticket("b", 0.1, 0, models.PriorityMedium, 10),
		ticket("c", 0, 0.1, models.PriorityMedium, 10),
	}
	m := oracle.Matrix(context.Background(), tickets)
	for i := range m {
		if m[i][i].Km != 0 {
			t.Fatalf("diagonal must be zero")
		}
		for j := range m {
			if m[i][j] != m[j][i] {
				t.Fatalf("matrix not symmetric at (%d,%d)", i, j)
			}
		}
	}
}
