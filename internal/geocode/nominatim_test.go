package geocode

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestParseNominatimItems(t *testing.T) {
	items := []nominatimItem{
		{
			Lat:         "-23.5505",
			Lon:         "-46.6333",
			DisplayName: "Sao Paulo, Brazil",
			Importance:  0.81,
		},
	}
	res, err := parseNominatimItems(items)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Lat != -23.5505 || res.Lon != -46.6333 {
		t.Fatalf("unexpected coordinates: %+v", res)
	}
	if res.Confidence != 0.81 {
		t.Fatalf("unexpected confidence: %f", res.Confidence)
	}
}

func TestParseNominatimItemsEmpty(t *testing.T) {
	if _, err := parseNominatimItems(nil); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestNominatimGeocoderCachesResults(t *testing.T) {
	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"lat":"-23.55","lon":"-46.63","display_name":"Sao Paulo","importance":0.7}]`))
	}))
	defer srv.Close()

	g := &NominatimGeocoder{BaseURL: srv.URL, MinInterval: time.Millisecond}
	for i := 0; i < 3; i++ {
		lat, lon, _, _, err := g.Geocode(context.Background(), "Sao Paulo")
		if err != nil {
			t.Fatalf("geocode: %v", err)
		}
		if lat != -23.55 || lon != -46.63 {
			t.Fatalf("unexpected result: %f %f", lat, lon)
		}
	}
	if hits != 1 {
		t.Fatalf("expected a single upstream request, got %d", hits)
	}
}
