package db

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/urbanworks/backend/internal/models"
)

var ErrNotFound = errors.New("not found")

type Store struct {
	Pool *pgxpool.Pool
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, err
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &Store{Pool: pool}, nil
}

func (s *Store) Close() {
	s.Pool.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	return s.Pool.Ping(ctx)
}

func (s *Store) WithTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := s.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

const ticketColumns = `id, lat, lon, address, neighborhood, problem_type, priority, crew_type,
	problem_size, estimated_service_minutes, affects_traffic, affects_commerce,
	near_critical_location, main_road, complaints_count, requires_road_block,
	dependencies, materials, photos, metadata, status, urgency_score, created_at`

func (s *Store) CreateTicket(ctx context.Context, t models.Ticket) (string, error) {
	deps, _ := json.Marshal(t.Dependencies)
	materials, _ := json.Marshal(t.Materials)
	photos, _ := json.Marshal(t.Photos)
	metadata, _ := json.Marshal(t.Metadata)

	var id string
	err := s.Pool.QueryRow(ctx, `
		INSERT INTO maintenance_tickets (
			id, lat, lon, location, address, neighborhood,
			problem_type, priority, crew_type, problem_size,
			estimated_service_minutes, affects_traffic, affects_commerce,
			near_critical_location, main_road, complaints_count,
			requires_road_block, dependencies, materials, photos, metadata,
			status, urgency_score, created_at
		) VALUES (
			$1, $2, $3, ST_MakePoint($3, $2)::geography, $4, $5,
			$6::problem_type, $7::priority_level, $8::crew_type, $9,
			$10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20,
			$21, $22, $23
		) RETURNING id`,
		t.ID, t.Lat, t.Lon, t.Address, t.Neighborhood,
		t.ProblemType, t.Priority, t.CrewType, nullable(string(t.ProblemSize)),
		t.EstimatedServiceMinutes, t.AffectsTraffic, t.AffectsCommerce,
		t.NearCriticalLocation, t.MainRoad, t.ComplaintsCount,
		t.RequiresRoadBlock, deps, materials, photos, metadata,
		t.Status, t.UrgencyScore, t.CreatedAt,
	).Scan(&id)
	return id, err
}

func (s *Store) InsertTickets(ctx context.Context, tickets []models.Ticket) (int64, error) {
	rows := make([][]any, 0, len(tickets))
	for _, t := range tickets {
		deps, _ := json.Marshal(t.Dependencies)
		materials, _ := json.Marshal(t.Materials)
		photos, _ := json.Marshal(t.Photos)
		metadata, _ := json.Marshal(t.Metadata)
		rows = append(rows, []any{
			t.ID, t.Lat, t.Lon, t.Address, t.Neighborhood,
			string(t.ProblemType), string(t.Priority), string(t.CrewType), nullable(string(t.ProblemSize)),
			t.EstimatedServiceMinutes, t.AffectsTraffic, t.AffectsCommerce,
			t.NearCriticalLocation, t.MainRoad, t.ComplaintsCount,
			t.RequiresRoadBlock, deps, materials, photos, metadata,
			string(t.Status), t.UrgencyScore, t.CreatedAt,
		})
	}
	return s.Pool.CopyFrom(ctx, pgx.Identifier{"maintenance_tickets"}, []string{
		"id", "lat", "lon", "address", "neighborhood",
		"problem_type", "priority", "crew_type", "problem_size",
		"estimated_service_minutes", "affects_traffic", "affects_commerce",
		"near_critical_location", "main_road", "complaints_count",
		"requires_road_block", "dependencies", "materials", "photos", "metadata",
		"status", "urgency_score", "created_at",
	}, pgx.CopyFromRows(rows))
}

func (s *Store) GetTicket(ctx context.Context, id string) (models.Ticket, error) {
	row := s.Pool.QueryRow(ctx, `SELECT `+ticketColumns+` FROM maintenance_tickets WHERE id = $1`, id)
	t, err := scanTicket(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Ticket{}, ErrNotFound
	}
	return t, err
}

// ListOpenTickets returns the open tickets for one crew type. Spatial math
// happens in the engine; the store only filters.
func (s *Store) ListOpenTickets(ctx context.Context, crew models.CrewType) ([]models.Ticket, error) {
	rows, err := s.Pool.Query(ctx, `
		SELECT `+ticketColumns+`
		FROM maintenance_tickets
		WHERE status = 'open' AND crew_type = $1::crew_type
		ORDER BY id`, crew)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTickets(rows)
}

type TicketFilter struct {
	CrewType models.CrewType
	Priority models.Priority
	Status   models.TicketStatus
	Limit    int
}

func (s *Store) ListTickets(ctx context.Context, f TicketFilter) ([]models.Ticket, error) {
	q := `SELECT ` + ticketColumns + ` FROM maintenance_tickets WHERE 1=1`
	args := []any{}
	if f.CrewType != "" {
		args = append(args, string(f.CrewType))
		q += ` AND crew_type = $` + strconv.Itoa(len(args)) + `::crew_type`
	}
	if f.Priority != "" {
		args = append(args, string(f.Priority))
		q += ` AND priority = $` + strconv.Itoa(len(args)) + `::priority_level`
	}
	if f.Status != "" {
		args = append(args, string(f.Status))
		q += ` AND status = $` + strconv.Itoa(len(args))
	}
	limit := f.Limit
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	args = append(args, limit)
	q += ` ORDER BY urgency_score DESC, id LIMIT $` + strconv.Itoa(len(args))

	rows, err := s.Pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTickets(rows)
}

func (s *Store) SaveRoute(ctx context.Context, r *models.Route) (string, error) {
	ticketIDs, _ := json.Marshal(r.TicketIDs)
	stops, _ := json.Marshal(r.Stops)
	stats, _ := json.Marshal(r.Stats)
	dropped, _ := json.Marshal(r.Dropped)

	var id string
	err := s.Pool.QueryRow(ctx, `
		INSERT INTO routes (
			id, crew_type, plan_date, strategy, status,
			ticket_ids, stops, total_distance_km, total_time_minutes,
			stats, dropped, created_at
		) VALUES ($1, $2::crew_type, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id`,
		r.ID, r.CrewType, r.PlanDate, r.Strategy, r.Status,
		ticketIDs, stops, r.TotalDistanceKm, r.TotalTimeMinutes,
		stats, dropped, r.CreatedAt,
	).Scan(&id)
	return id, err
}

func (s *Store) LatestRoute(ctx context.Context, crew models.CrewType) (models.Route, error) {
	row := s.Pool.QueryRow(ctx, `
		SELECT id, crew_type, plan_date, strategy, status,
			ticket_ids, stops, total_distance_km, total_time_minutes,
			stats, dropped, created_at
		FROM routes
		WHERE crew_type = $1::crew_type
		ORDER BY created_at DESC
		LIMIT 1`, crew)

	var r models.Route
	var ticketIDs, stops, stats, dropped []byte
	err := row.Scan(&r.ID, &r.CrewType, &r.PlanDate, &r.Strategy, &r.Status,
		&ticketIDs, &stops, &r.TotalDistanceKm, &r.TotalTimeMinutes,
		&stats, &dropped, &r.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Route{}, ErrNotFound
	}
	if err != nil {
		return models.Route{}, err
	}
	_ = json.Unmarshal(ticketIDs, &r.TicketIDs)
	_ = json.Unmarshal(stops, &r.Stops)
	_ = json.Unmarshal(stats, &r.Stats)
	_ = json.Unmarshal(dropped, &r.Dropped)
	return r, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTicket(row rowScanner) (models.Ticket, error) {
	var t models.Ticket
	var size *string
	var deps, materials, photos, metadata []byte
	var createdAt time.Time
	err := row.Scan(&t.ID, &t.Lat, &t.Lon, &t.Address, &t.Neighborhood,
		&t.ProblemType, &t.Priority, &t.CrewType,
		&size, &t.EstimatedServiceMinutes, &t.AffectsTraffic, &t.AffectsCommerce,
		&t.NearCriticalLocation, &t.MainRoad, &t.ComplaintsCount, &t.RequiresRoadBlock,
		&deps, &materials, &photos, &metadata, &t.Status, &t.UrgencyScore, &createdAt)
	if err != nil {
		return models.Ticket{}, err
	}
	if size != nil {
		t.ProblemSize = models.ProblemSize(*size)
	}
	t.CreatedAt = createdAt
	_ = json.Unmarshal(deps, &t.Dependencies)
	_ = json.Unmarshal(materials, &t.Materials)
	_ = json.Unmarshal(photos, &t.Photos)
	_ = json.Unmarshal(metadata, &t.Metadata)
	return t, nil
}

func scanTickets(rows pgx.Rows) ([]models.Ticket, error) {
	var out []models.Ticket
	for rows.Next() {
		t, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
