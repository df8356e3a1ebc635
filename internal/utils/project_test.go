package utils

import (
	"math"
	"testing"
)

func TestProjectionApproximatesHaversine(t *testing.T) {
	// City-scale points near Sao Paulo.
	lats := []float64{-23.5505, -23.5631, -23.5489}
	lons := []float64{-46.6333, -46.6544, -46.6388}

	pts := ProjectEquirectangular(lats, lons)
	if len(pts) != 3 {
		t.Fatalf("expected 3 projected points, got %d", len(pts))
	}

	for i := 0; i < len(pts); i++ {
		for j := i + 1; j < len(pts); j++ {
			planar := EuclideanKm(pts[i], pts[j])
			sphere := HaversineKm(lats[i], lons[i], lats[j], lons[j])
			if math.Abs(planar-sphere) > 0.01 {
				t.Fatalf("projection error too large between %d and %d: %f vs %f", i, j, planar, sphere)
			}
		}
	}
}

func TestProjectionEmptyInput(t *testing.T) {
	if got := ProjectEquirectangular(nil, nil); got != nil {
		t.Fatalf("expected nil for empty input")
	}
}
