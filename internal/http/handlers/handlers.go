package handlers

import (
	"context"
	"encoding/csv"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/urbanworks/backend/internal/db"
	"github.com/urbanworks/backend/internal/geocode"
	"github.com/urbanworks/backend/internal/models"
	"github.com/urbanworks/backend/internal/service"
)

type Handler struct {
	Store     *db.Store
	Engine    *service.Engine
	Geocoder  geocode.Geocoder
	Validator *validator.Validate
	Logger    zerolog.Logger
	AdminKey  string
}

func (h *Handler) Healthz(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()
	if err := h.Store.Ping(ctx); err != nil {
		writeError(c, http.StatusServiceUnavailable, "DB_UNAVAILABLE", "Database unavailable", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type TicketCreateRequest struct {
	Lat                     float64        `json:"lat" validate:"gte=-90,lte=90"`
	Lon                     float64        `json:"lon" validate:"gte=-180,lte=180"`
	Address                 string         `json:"address"`
	Neighborhood            string         `json:"neighborhood"`
	City                    string         `json:"city"`
	ProblemType             string         `json:"problem_type" validate:"required"`
	Priority                string         `json:"priority" validate:"required"`
	CrewType                string         `json:"crew_type" validate:"required"`
	ProblemSize             string         `json:"problem_size"`
	EstimatedServiceMinutes int            `json:"estimated_service_minutes" validate:"required,gt=0"`
	AffectsTraffic          bool           `json:"affects_traffic"`
	AffectsCommerce         bool           `json:"affects_commerce"`
	NearCriticalLocation    bool           `json:"near_critical_location"`
	MainRoad                bool           `json:"main_road"`
	ComplaintsCount         int            `json:"complaints_count" validate:"gte=0"`
	RequiresRoadBlock       bool           `json:"requires_road_block"`
	Dependencies            []string       `json:"dependencies"`
	Materials               []string       `json:"materials"`
	Photos                  []string       `json:"photos"`
	Metadata                map[string]any `json:"metadata"`
}

// @Summary Create a maintenance ticket
// @Description Register a geo-located maintenance ticket; address-only submissions are geocoded
// @Tags tickets
// @Accept json
// @Produce json
// @Success 201 {object} models.Ticket
// @Failure 400 {object} map[string]any
// @Router /api/tickets [post]
func (h *Handler) TicketCreate(c *gin.Context) {
	var req TicketCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "Malformed JSON body", err.Error())
		return
	}
	if err := h.Validator.Struct(req); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "Validation failed", err.Error())
		return
	}

	t := models.Ticket{
		ID:                      uuid.NewString(),
		Lat:                     req.Lat,
		Lon:                     req.Lon,
		Address:                 strings.TrimSpace(req.Address),
		Neighborhood:            strings.TrimSpace(req.Neighborhood),
		ProblemType:             models.ProblemType(req.ProblemType),
		Priority:                models.Priority(req.Priority),
		CrewType:                models.CrewType(req.CrewType),
		ProblemSize:             models.ProblemSize(req.ProblemSize),
		EstimatedServiceMinutes: req.EstimatedServiceMinutes,
		AffectsTraffic:          req.AffectsTraffic,
		AffectsCommerce:         req.AffectsCommerce,
		NearCriticalLocation:    req.NearCriticalLocation,
		MainRoad:                req.MainRoad,
		ComplaintsCount:         req.ComplaintsCount,
		RequiresRoadBlock:       req.RequiresRoadBlock,
		Dependencies:            req.Dependencies,
		Materials:               req.Materials,
		Photos:                  req.Photos,
		Metadata:                req.Metadata,
		Status:                  models.StatusOpen,
		CreatedAt:               time.Now().UTC(),
	}

	if !t.ProblemType.Valid() || !t.Priority.Valid() || !t.CrewType.Valid() {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "Unknown problem_type, priority, or crew_type", nil)
		return
	}
	if t.ProblemSize != "" && t.ProblemSize != models.SizeSmall && t.ProblemSize != models.SizeMedium && t.ProblemSize != models.SizeLarge {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "Unknown problem_size", nil)
		return
	}

	if geocode.NeedsGeocoding(t) {
		if h.Geocoder == nil || t.Address == "" {
			writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "Either coordinates or a geocodable address is required", nil)
			return
		}
		query := geocode.BuildTicketQuery(req.City, t.Neighborhood, t.Address)
		lat, lon, _, _, err := h.Geocoder.Geocode(c.Request.Context(), query)
		if err != nil {
			writeError(c, http.StatusBadRequest, "GEOCODE_FAILED", "Could not resolve address to coordinates", err.Error())
			return
		}
		t.Lat, t.Lon = lat, lon
	}

	t.UrgencyScore = service.UrgencyScore(t)

	id, err := h.Store.CreateTicket(c.Request.Context(), t)
	if err != nil {
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to store ticket", err.Error())
		return
	}
	t.ID = id
	c.JSON(http.StatusCreated, t)
}

// @Summary List tickets
// @Tags tickets
// @Produce json
// @Param crew_type query string false "crew type"
// @Param priority query string false "priority"
// @Param status query string false "status (default open)"
// @Param limit query int false "limit (default 100, max 1000)"
// @Success 200 {array} models.Ticket
// @Router /api/tickets [get]
func (h *Handler) TicketsList(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	f := db.TicketFilter{
		CrewType: models.CrewType(c.Query("crew_type")),
		Priority: models.Priority(c.Query("priority")),
		Status:   models.TicketStatus(c.DefaultQuery("status", string(models.StatusOpen))),
		Limit:    limit,
	}
	tickets, err := h.Store.ListTickets(c.Request.Context(), f)
	if err != nil {
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to list tickets", err.Error())
		return
	}
	if tickets == nil {
		tickets = []models.Ticket{}
	}
	c.JSON(http.StatusOK, tickets)
}

// @Summary Ticket details
// @Tags tickets
// @Produce json
// @Param id path string true "ticket id"
// @Success 200 {object} models.Ticket
// @Failure 404 {object} map[string]any
// @Router /api/tickets/{id} [get]
func (h *Handler) TicketDetails(c *gin.Context) {
	t, err := h.Store.GetTicket(c.Request.Context(), c.Param("id"))
	if errors.Is(err, db.ErrNotFound) {
		writeError(c, http.StatusNotFound, "NOT_FOUND", "Ticket not found", nil)
		return
	}
	if err != nil {
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to load ticket", err.Error())
		return
	}
	c.JSON(http.StatusOK, t)
}

type OptimizeRequest struct {
	CrewType   string  `json:"crew_type" validate:"required"`
	Date       string  `json:"date" validate:"required"`
	MaxHours   float64 `json:"max_hours" validate:"gte=0"`
	MaxPoints  int     `json:"max_points" validate:"gte=0"`
	Strategy   string  `json:"strategy"`
	DeadlineMs int     `json:"deadline_ms" validate:"gte=0"`
}

// @Summary Optimize a crew's daily route
// @Description Plan the ordered visit sequence for one crew type and date
// @Tags routes
// @Accept json
// @Produce json
// @Success 200 {object} map[string]any "exit code under \"code\", models.Route under \"route\""
// @Failure 400 {object} map[string]any
// @Failure 404 {object} map[string]any
// @Router /api/optimize [post]
func (h *Handler) Optimize(c *gin.Context) {
	var req OptimizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "Malformed JSON body", err.Error())
		return
	}
	if err := h.Validator.Struct(req); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "Validation failed", err.Error())
		return
	}

	params := service.OptimizeParams{
		CrewType:  models.CrewType(req.CrewType),
		PlanDate:  req.Date,
		MaxHours:  req.MaxHours,
		MaxPoints: req.MaxPoints,
		Strategy:  service.Strategy(req.Strategy),
		Deadline:  time.Duration(req.DeadlineMs) * time.Millisecond,
	}

	result, err := h.Engine.Optimize(c.Request.Context(), params)
	switch {
	case errors.Is(err, service.ErrInvalidRequest):
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "Unknown crew type, strategy, or negative budget", err.Error())
		return
	case errors.Is(err, service.ErrStitchDeadline):
		writeError(c, http.StatusGatewayTimeout, "DEADLINE_EXCEEDED", "Deadline expired while stitching clusters", err.Error())
		return
	case err != nil:
		writeError(c, http.StatusInternalServerError, "OPTIMIZE_FAILED", "Optimization failed", err.Error())
		return
	}

	if result.Code == service.CodeNoCandidates {
		writeError(c, http.StatusNotFound, "NO_CANDIDATES", "No open tickets for the requested crew type", nil)
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": result.Code, "route": result.Route})
}

// @Summary Latest route for a crew type
// @Tags routes
// @Produce json
// @Param crew_type query string true "crew type"
// @Success 200 {object} models.Route
// @Failure 404 {object} map[string]any
// @Router /api/routes/latest [get]
func (h *Handler) RoutesLatest(c *gin.Context) {
	crew := models.CrewType(c.Query("crew_type"))
	if !crew.Valid() {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "Unknown crew_type", nil)
		return
	}
	route, err := h.Store.LatestRoute(c.Request.Context(), crew)
	if errors.Is(err, db.ErrNotFound) {
		writeError(c, http.StatusNotFound, "NOT_FOUND", "No route planned for this crew type yet", nil)
		return
	}
	if err != nil {
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to load route", err.Error())
		return
	}
	c.JSON(http.StatusOK, route)
}

type ImportSummary struct {
	Parsed   int      `json:"parsed"`
	Inserted int      `json:"inserted"`
	Errors   []string `json:"errors"`
}

// @Summary Import tickets from CSV
// @Tags import
// @Accept multipart/form-data
// @Produce json
// @Param tickets formData file true "tickets.csv"
// @Success 200 {object} ImportSummary
// @Failure 400 {object} map[string]any
// @Router /api/import [post]
func (h *Handler) Import(c *gin.Context) {
	file, err := c.FormFile("tickets")
	if err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "tickets file required", nil)
		return
	}
	if !strings.EqualFold(filepath.Ext(file.Filename), ".csv") {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "file must be .csv", nil)
		return
	}

	tickets, errs := parseTicketsCSV(file)
	summary := ImportSummary{Parsed: len(tickets), Errors: errs}
	if summary.Errors == nil {
		summary.Errors = []string{}
	}

	if len(tickets) > 0 {
		inserted, err := h.Store.InsertTickets(c.Request.Context(), tickets)
		if err != nil {
			writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to insert tickets", err.Error())
			return
		}
		summary.Inserted = int(inserted)
	}
	c.JSON(http.StatusOK, summary)
}

func writeError(c *gin.Context, status int, code string, message string, details any) {
	c.JSON(status, gin.H{
		"error": gin.H{
			"code":    code,
			"message": message,
			"details": details,
		},
	})
}

func parseTicketsCSV(file *multipart.FileHeader) ([]models.Ticket, []string) {
	var out []models.Ticket
	var errs []string

	f, err := file.Open()
	if err != nil {
		return nil, []string{"tickets: " + err.Error()}
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	headers, err := r.Read()
	if err != nil {
		return nil, []string{"tickets: read header: " + err.Error()}
	}
	idx := headerIndex(headers)

	line := 1
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			errs = append(errs, "tickets line "+strconv.Itoa(line)+": "+err.Error())
			continue
		}

		lat, latErr := strconv.ParseFloat(getField(rec, idx, "lat"), 64)
		lon, lonErr := strconv.ParseFloat(getField(rec, idx, "lon"), 64)
		serviceMin, svcErr := strconv.Atoi(getField(rec, idx, "estimated_service_minutes"))
		if latErr != nil || lonErr != nil || svcErr != nil {
			errs = append(errs, "tickets line "+strconv.Itoa(line)+": bad lat/lon/service minutes")
			continue
		}

		t := models.Ticket{
			ID:                      getField(rec, idx, "id"),
			Lat:                     lat,
			Lon:                     lon,
			Address:                 getField(rec, idx, "address"),
			Neighborhood:            getField(rec, idx, "neighborhood"),
			ProblemType:             models.ProblemType(getField(rec, idx, "problem_type")),
			Priority:                models.Priority(getField(rec, idx, "priority")),
			CrewType:                models.CrewType(getField(rec, idx, "crew_type")),
			ProblemSize:             models.ProblemSize(getField(rec, idx, "problem_size")),
			EstimatedServiceMinutes: serviceMin,
			AffectsTraffic:          parseBool(getField(rec, idx, "affects_traffic")),
			AffectsCommerce:         parseBool(getField(rec, idx, "affects_commerce")),
			NearCriticalLocation:    parseBool(getField(rec, idx, "near_critical_location")),
			MainRoad:                parseBool(getField(rec, idx, "main_road")),
			RequiresRoadBlock:       parseBool(getField(rec, idx, "requires_road_block")),
			Dependencies:            splitList(getField(rec, idx, "dependencies")),
			Status:                  models.StatusOpen,
			CreatedAt:               time.Now().UTC(),
		}
		if t.ID == "" {
			t.ID = uuid.NewString()
		}
		if raw := getField(rec, idx, "complaints_count"); raw != "" {
			t.ComplaintsCount, _ = strconv.Atoi(raw)
		}
		if raw := getField(rec, idx, "status"); raw != "" {
			t.Status = models.TicketStatus(raw)
		}
		if !t.ProblemType.Valid() || !t.Priority.Valid() || !t.CrewType.Valid() {
			errs = append(errs, "tickets line "+strconv.Itoa(line)+": unknown enum value")
			continue
		}
		t.UrgencyScore = service.UrgencyScore(t)
		out = append(out, t)
	}
	return out, errs
}

func headerIndex(headers []string) map[string]int {
	idx := map[string]int{}
	for i, h := range headers {
		idx[normalizeHeader(h)] = i
	}
	return idx
}

func getField(rec []string, idx map[string]int, name string) string {
	i, ok := idx[name]
	if !ok || i >= len(rec) {
		return ""
	}
	return strings.TrimSpace(rec[i])
}

func normalizeHeader(h string) string {
	h = strings.ReplaceAll(h, "\ufeff", "")
	return strings.ToLower(strings.TrimSpace(h))
}

func parseBool(raw string) bool {
	switch strings.ToLower(raw) {
	case "1", "true", "yes", "y":
		return true
	}
	return false
}

func splitList(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ";")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
