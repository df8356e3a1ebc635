package geocode

import (
	"context"
	"errors"
	"strings"

	"github.com/urbanworks/backend/internal/models"
)

var ErrNotFound = errors.New("geocode not found")

type Geocoder interface {
	Geocode(ctx context.Context, query string) (lat float64, lon float64, displayName string, confidence float64, err error)
}

// BuildTicketQuery assembles the free-text query for a ticket submitted
// with an address instead of coordinates.
func BuildTicketQuery(city string, neighborhood string, address string) string {
	city = strings.TrimSpace(city)
	neighborhood = strings.TrimSpace(neighborhood)
	address = strings.TrimSpace(address)
	parts := []string{}
	if city != "" {
		parts = append(parts, city)
	}
	if neighborhood != "" {
		parts = append(parts, neighborhood)
	}
	if address != "" {
		parts = append(parts, address)
	}
	return strings.Join(parts, ", ")
}

// NeedsGeocoding reports whether a submitted ticket is missing usable
// coordinates. (0,0) is open ocean, not a city street; treat it as unset.
func NeedsGeocoding(t models.Ticket) bool {
	if t.Lat == 0 && t.Lon == 0 {
		return true
	}
	return !t.ValidCoordinates()
}
