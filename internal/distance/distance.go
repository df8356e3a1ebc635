package distance

import "context"

// Result is one leg measurement.
type Result struct {
	Km      float64
	Minutes float64
}

// Provider computes travel distance and time between two coordinates.
// The default implementation is great-circle; an HTTP provider may override
// it with real routing data.
type Provider interface {
	Between(ctx context.Context, fromLat, fromLon, toLat, toLon float64) (Result, error)
}
