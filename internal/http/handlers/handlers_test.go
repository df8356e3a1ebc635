package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/urbanworks/backend/internal/models"
	"github.com/urbanworks/backend/internal/service"
)

type stubSource struct {
	tickets []models.Ticket
	saved   int
}

func (s *stubSource) ListOpenTickets(_ context.Context, crew models.CrewType) ([]models.Ticket, error) {
	var out []models.Ticket
	for _, t := range s.tickets {
		if t.CrewType == crew && t.Status == models.StatusOpen {
			out = append(out, t)
		}
	}
	return out, nil
}

func (s *stubSource) SaveRoute(_ context.Context, r *models.Route) (string, error) {
	s.saved++
	return r.ID, nil
}

func newTestRouter(src *stubSource) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := &Handler{
		Engine: &service.Engine{
			Source:      src,
			AvgSpeedKmh: 30,
			Logger:      zerolog.Nop(),
		},
		Validator: validator.New(),
		Logger:    zerolog.Nop(),
	}
	r := gin.New()
	r.POST("/api/optimize", h.Optimize)
	return r
}

func TestOptimizeHandlerRoutesTickets(t *testing.T) {
	src := &stubSource{tickets: []models.Ticket{
		{ID: "t1", Lat: 0, Lon: 0, ProblemType: models.ProblemPothole, Priority: models.PriorityLow,
			CrewType: models.CrewAsphalt, EstimatedServiceMinutes: 10, Status: models.StatusOpen},
		{ID: "t2", Lat: 0.001, Lon: 0, ProblemType: models.ProblemPothole, Priority: models.PriorityEmergency,
			CrewType: models.CrewAsphalt, EstimatedServiceMinutes: 10, Status: models.StatusOpen},
	}}
	r := newTestRouter(src)

	body := `{"crew_type":"asphalt","date":"2025-06-02"}`
	req, _ := http.NewRequest(http.MethodPost, "/api/optimize", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		Code  string       `json:"code"`
		Route models.Route `json:"route"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Code != "ok" {
		t.Fatalf("expected ok, got %s", resp.Code)
	}
	if len(resp.Route.TicketIDs) != 2 || resp.Route.TicketIDs[0] != "t2" {
		t.Fatalf("expected the emergency first, got %v", resp.Route.TicketIDs)
	}
	if src.saved != 1 {
		t.Fatalf("expected route persisted once, got %d", src.saved)
	}
}

func TestOptimizeHandlerRejectsUnknownCrew(t *testing.T) {
	r := newTestRouter(&stubSource{})

	body := `{"crew_type":"plumbing","date":"2025-06-02"}`
	req, _ := http.NewRequest(http.MethodPost, "/api/optimize", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestOptimizeHandlerNoCandidates(t *testing.T) {
	r := newTestRouter(&stubSource{})

	body := `{"crew_type":"electric","date":"2025-06-02"}`
	req, _ := http.NewRequest(http.MethodPost, "/api/optimize", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestParseTicketsCSV(t *testing.T) {
	content := "id,lat,lon,problem_type,priority,crew_type,estimated_service_minutes,affects_traffic,complaints_count,dependencies\n" +
		"t1,-23.55,-46.63,pothole,high,asphalt,45,true,3,\n" +
		"t2,-23.56,-46.64,water_leak,emergency,hydraulic,60,false,0,t1\n"
	fh := makeMultipartFile(t, "tickets", "tickets.csv", content)

	tickets, errs := parseTicketsCSV(fh)
	if len(errs) > 0 {
		t.Fatalf("expected no errors, got %v", errs)
	}
	if len(tickets) != 2 {
		t.Fatalf("expected 2 tickets, got %d", len(tickets))
	}
	if !tickets[0].AffectsTraffic || tickets[0].ComplaintsCount != 3 {
		t.Fatalf("unexpected first ticket: %+v", tickets[0])
	}
	if tickets[0].UrgencyScore == 0 {
		t.Fatalf("expected advisory urgency computed on import")
	}
	if len(tickets[1].Dependencies) != 1 || tickets[1].Dependencies[0] != "t1" {
		t.Fatalf("unexpected dependencies: %v", tickets[1].Dependencies)
	}
}

func TestParseTicketsCSVRejectsBadRows(t *testing.T) {
	content := "id,lat,lon,problem_type,priority,crew_type,estimated_service_minutes\n" +
		"t1,not-a-number,-46.63,pothole,high,asphalt,45\n" +
		"t2,-23.56,-46.64,volcano,emergency,hydraulic,60\n"
	fh := makeMultipartFile(t, "tickets", "tickets.csv", content)

	tickets, errs := parseTicketsCSV(fh)
	if len(tickets) != 0 {
		t.Fatalf("expected no parsed tickets, got %d", len(tickets))
	}
	if len(errs) != 2 {
		t.Fatalf("expected 2 row errors, got %v", errs)
	}
}

func makeMultipartFile(t *testing.T, fieldName, filename, content string) *multipart.FileHeader {
	t.Helper()
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile(fieldName, filename)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := part.Write([]byte(content)); err != nil {
		t.Fatalf("write content: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}

	reader := multipart.NewReader(&buf, writer.Boundary())
	form, err := reader.ReadForm(int64(buf.Len()))
	if err != nil {
		t.Fatalf("read form: %v", err)
	}
	files := form.File[fieldName]
	if len(files) == 0 {
		t.Fatalf("no file headers found")
	}
	return files[0]
}
