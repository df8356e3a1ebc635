package service

import (
	"testing"

	"github.com/urbanworks/backend/internal/models"
)

func TestClusterizeTwoDenseGroups(t *testing.T) {
	tickets := scored(
		ticket("a1", 0, 0, models.PriorityMedium, 10),
		ticket("a2", 0, 0.001, models.PriorityMedium, 10),
		ticket("a3", 0, 0.002, models.PriorityMedium, 10),
		ticket("b1", 10, 10, models.PriorityMedium, 10),
		ticket("b2", 10, 10.001, models.PriorityMedium, 10),
		ticket("b3", 10, 10.002, models.PriorityMedium, 10),
	)

	clusters := Clusterize(tickets, defaultEpsKm)
	if len(clusters) != 2 {
		t.Fatalf("expected 2 clusters, got %d", len(clusters))
	}
	if len(clusters[0].Tickets) != 3 || len(clusters[1].Tickets) != 3 {
		t.Fatalf("expected 3 tickets per cluster, got %d and %d", len(clusters[0].Tickets), len(clusters[1].Tickets))
	}
}

func TestClusterizeNoiseBecomesSingletons(t *testing.T) {
	tickets := scored(
		ticket("t1", 0, 0, models.PriorityLow, 10),
		ticket("t2", 1, 1, models.PriorityEmergency, 10),
	)

	clusters := Clusterize(tickets, defaultEpsKm)
	if len(clusters) != 2 {
		t.Fatalf("expected two singleton clusters, got %d", len(clusters))
	}
	for _, c := range clusters {
		if len(c.Tickets) != 1 {
			t.Fatalf("expected singleton, got %d tickets", len(c.Tickets))
		}
	}
}

func TestClusterizeEdgeCases(t *testing.T) {
	if got := Clusterize(nil, defaultEpsKm); got != nil {
		t.Fatalf("expected no clusters for empty input, got %d", len(got))
	}

	single := scored(ticket("only", -23.55, -46.63, models.PriorityHigh, 30))
	clusters := Clusterize(single, defaultEpsKm)
	if len(clusters) != 1 || len(clusters[0].Tickets) != 1 {
		t.Fatalf("expected one singleton cluster, got %+v", clusters)
	}
}

func TestClusterAggregates(t *testing.T) {
	tickets := scored(
		ticket("t1", 0, 0, models.PriorityLow, 10),
		ticket("t2", 0, 0.001, models.PriorityEmergency, 20),
		ticket("t3", 0, 0.002, models.PriorityMedium, 30),
	)

	clusters := Clusterize(tickets, defaultEpsKm)
	if len(clusters) != 1 {
		t.Fatalf("expected one cluster, got %d", len(clusters))
	}
	c := clusters[0]
	if c.Priority != models.PriorityEmergency {
		t.Fatalf("aggregate priority should be the most urgent member, got %s", c.Priority)
	}
	if c.TotalServiceMinutes != 60 {
		t.Fatalf("expected 60 total service minutes, got %d", c.TotalServiceMinutes)
	}
	if c.CentroidLat != 0 {
		t.Fatalf("expected centroid lat 0, got %f", c.CentroidLat)
	}
	if c.CentroidLon <= 0 || c.CentroidLon >= 0.002 {
		t.Fatalf("centroid lon out of member range: %f", c.CentroidLon)
	}
}
