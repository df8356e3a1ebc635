package geocode

import (
	"testing"

	"github.com/urbanworks/backend/internal/models"
)

func TestBuildTicketQuery(t *testing.T) {
	q := BuildTicketQuery("Sao Paulo", "Pinheiros", "Rua dos Pinheiros 1200")
	if q != "Sao Paulo, Pinheiros, Rua dos Pinheiros 1200" {
		t.Fatalf("unexpected query: %s", q)
	}
	if got := BuildTicketQuery("", "", "Av. Paulista 900"); got != "Av. Paulista 900" {
		t.Fatalf("unexpected query: %s", got)
	}
}

func TestNeedsGeocoding(t *testing.T) {
	if !NeedsGeocoding(models.Ticket{Lat: 0, Lon: 0}) {
		t.Fatalf("expected (0,0) to be treated as unset")
	}
	if NeedsGeocoding(models.Ticket{Lat: -23.55, Lon: -46.63}) {
		t.Fatalf("expected valid coordinates to skip geocoding")
	}
	if !NeedsGeocoding(models.Ticket{Lat: 200, Lon: 0}) {
		t.Fatalf("expected out-of-range coordinates to need geocoding")
	}
}
