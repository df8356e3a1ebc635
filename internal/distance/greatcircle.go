package distance

import (
	"context"

	"github.com/urbanworks/backend/internal/utils"
)

const DefaultSpeedKmh = 30.0

// GreatCircle measures legs on the sphere and derives travel time from a
// flat average speed.
type GreatCircle struct {
	SpeedKmh float64
}

func (g GreatCircle) Between(_ context.Context, fromLat, fromLon, toLat, toLon float64) (Result, error) {
	speed := g.SpeedKmh
	if speed <= 0 {
		speed = DefaultSpeedKmh
	}
	km := utils.HaversineKm(fromLat, fromLon, toLat, toLon)
	return Result{Km: km, Minutes: km / speed * 60}, nil
}
