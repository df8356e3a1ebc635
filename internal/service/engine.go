package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/urbanworks/backend/internal/cache"
	"github.com/urbanworks/backend/internal/distance"
	"github.com/urbanworks/backend/internal/metrics"
	"github.com/urbanworks/backend/internal/models"
)

type Strategy string

const (
	StrategyMixed        Strategy = "mixed"
	StrategyUrgencyFirst Strategy = "urgency_first"
	StrategyGeographic   Strategy = "geographic"
)

type ExitCode string

const (
	CodeOK             ExitCode = "ok"
	CodeNoCandidates   ExitCode = "no_candidates"
	CodePartial        ExitCode = "partial"
	CodeInvalidRequest ExitCode = "invalid_request"
)

const (
	DefaultMaxHours  = 8.0
	DefaultMaxPoints = 50
)

var (
	ErrInvalidRequest = errors.New("optimize: invalid request")
	ErrStitchDeadline = errors.New("optimize: deadline exceeded during stitching")
)

// TicketSource is the slice of the persistence layer the engine consumes.
type TicketSource interface {
	ListOpenTickets(ctx context.Context, crew models.CrewType) ([]models.Ticket, error)
	SaveRoute(ctx context.Context, route *models.Route) (string, error)
}

type OptimizeParams struct {
	CrewType  models.CrewType
	PlanDate  string
	MaxHours  float64
	MaxPoints int
	Strategy  Strategy
	Deadline  time.Duration
}

type OptimizeResult struct {
	Code  ExitCode
	Route *models.Route
}

// Engine orchestrates one optimization request end to end. It is stateless
// between calls; all per-run state, including the distance memo, lives in
// the run.
type Engine struct {
	Source        TicketSource
	Provider      distance.Provider
	DistanceStore cache.DistanceStore
	AvgSpeedKmh   float64
	ClusterEpsKm  float64
	Logger        zerolog.Logger
}

// run carries the per-request state through the pipeline stages.
type run struct {
	oracle   *Oracle
	eps      float64
	tickets  []models.Ticket
	clusters []Cluster
	tours    [][]models.Ticket
	sequence []models.Ticket
	partial  bool
}

type pipelineFn func(ctx context.Context, r *run) error

// Optimize plans the route for one crew on one day.
func (e *Engine) Optimize(ctx context.Context, p OptimizeParams) (OptimizeResult, error) {
	start := time.Now()

	if p.MaxHours == 0 {
		p.MaxHours = DefaultMaxHours
	}
	if p.MaxPoints == 0 {
		p.MaxPoints = DefaultMaxPoints
	}
	if p.Strategy == "" {
		p.Strategy = StrategyMixed
	}

	pipeline, knownStrategy := pipelines[p.Strategy]
	if !p.CrewType.Valid() || p.MaxHours < 0 || p.MaxPoints < 0 || p.PlanDate == "" || !knownStrategy {
		metrics.OptimizeRequests.WithLabelValues(string(p.CrewType), string(CodeInvalidRequest)).Inc()
		return OptimizeResult{Code: CodeInvalidRequest}, fmt.Errorf("%w: crew=%q hours=%v points=%d strategy=%q",
			ErrInvalidRequest, p.CrewType, p.MaxHours, p.MaxPoints, p.Strategy)
	}

	if p.Deadline > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.Deadline)
		defer cancel()
	}

	candidates, err := e.Source.ListOpenTickets(ctx, p.CrewType)
	if err != nil {
		return OptimizeResult{}, fmt.Errorf("optimize: list open tickets: %w", err)
	}

	tickets, skippedInvalid := e.sanitize(candidates, p.CrewType)
	if len(tickets) == 0 {
		metrics.OptimizeRequests.WithLabelValues(string(p.CrewType), string(CodeNoCandidates)).Inc()
		return OptimizeResult{Code: CodeNoCandidates}, nil
	}

	ScoreAll(tickets)
	Prioritize(tickets)

	r := &run{
		oracle:  NewOracle(e.Provider, e.DistanceStore, e.AvgSpeedKmh, e.Logger),
		eps:     e.ClusterEpsKm,
		tickets: tickets,
	}
	if err := pipeline(ctx, r); err != nil {
		metrics.OptimizeRequests.WithLabelValues(string(p.CrewType), "error").Inc()
		return OptimizeResult{}, err
	}

	v := validate(ctx, r.oracle, r.sequence, p.MaxHours*60, p.MaxPoints)

	route := e.buildRoute(ctx, r, v, p, skippedInvalid)
	code := CodeOK
	if r.partial {
		code = CodePartial
		route.Status = string(CodePartial)
	}

	if _, err := e.Source.SaveRoute(ctx, route); err != nil {
		e.Logger.Warn().Err(err).Str("crew_type", string(p.CrewType)).Msg("route not persisted")
	}

	metrics.OptimizeRequests.WithLabelValues(string(p.CrewType), string(code)).Inc()
	metrics.OptimizeDuration.WithLabelValues(string(p.CrewType)).Observe(time.Since(start).Seconds())
	metrics.TicketsRouted.WithLabelValues(string(p.CrewType)).Add(float64(len(route.Stops)))

	return OptimizeResult{Code: code, Route: route}, nil
}

// pipelines dispatches the strategy variants.
var pipelines = map[Strategy]pipelineFn{
	StrategyMixed: func(ctx context.Context, r *run) error {
		r.clusters = Clusterize(r.tickets, r.epsKm())
		if err := checkClusters(r.clusters); err != nil {
			return err
		}
		r.tours, r.partial = solveAll(ctx, r.oracle, r.clusters, seedByUrgency)
		return r.stitch(ctx)
	},
	StrategyUrgencyFirst: func(ctx context.Context, r *run) error {
		r.clusters = []Cluster{newCluster(r.tickets)}
		r.tours, r.partial = solveAll(ctx, r.oracle, r.clusters, seedByUrgency)
		r.sequence = r.tours[0]
		return nil
	},
	StrategyGeographic: func(ctx context.Context, r *run) error {
		r.clusters = Clusterize(r.tickets, r.epsKm())
		if err := checkClusters(r.clusters); err != nil {
			return err
		}
		r.tours, r.partial = solveAll(ctx, r.oracle, r.clusters, seedByCentroid)
		return r.stitch(ctx)
	},
}

// checkClusters guards the clusterer's contract: every candidate ticket
// lands in a non-empty cluster. A violation is a bug and fails the run.
func checkClusters(clusters []Cluster) error {
	for i := range clusters {
		if len(clusters[i].Tickets) == 0 {
			return fmt.Errorf("optimize: internal: clusterer produced empty cluster %d", i)
		}
	}
	return nil
}

func (r *run) stitch(ctx context.Context) error {
	if r.partial {
		// Deadline already hit while solving: concatenate what we have in
		// cluster order instead of stitching against an expired budget.
		for _, tour := range r.tours {
			r.sequence = append(r.sequence, tour...)
		}
		return nil
	}
	seq, err := stitch(ctx, r.oracle, r.clusters, r.tours)
	if err != nil {
		return ErrStitchDeadline
	}
	r.sequence = seq
	return nil
}

func (r *run) epsKm() float64 { return r.eps }

// sanitize filters malformed tickets and unresolvable dependency edges,
// both recorded but never fatal to the run.
func (e *Engine) sanitize(candidates []models.Ticket, crew models.CrewType) ([]models.Ticket, int) {
	skipped := 0
	tickets := make([]models.Ticket, 0, len(candidates))
	for _, t := range candidates {
		if t.Status != models.StatusOpen || t.CrewType != crew {
			continue
		}
		if !t.ValidCoordinates() || t.EstimatedServiceMinutes <= 0 {
			skipped++
			e.Logger.Warn().Str("ticket_id", t.ID).Msg("skipping malformed ticket")
			continue
		}
		tickets = append(tickets, t)
	}

	present := map[string]bool{}
	for _, t := range tickets {
		present[t.ID] = true
	}
	for i := range tickets {
		var deps []string
		for _, dep := range tickets[i].Dependencies {
			if !present[dep] {
				e.Logger.Warn().Str("ticket_id", tickets[i].ID).Str("dependency", dep).
					Msg("ignoring dependency on unknown or foreign-crew ticket")
				continue
			}
			deps = append(deps, dep)
		}
		tickets[i].Dependencies = deps
	}
	return tickets, skipped
}

func (e *Engine) buildRoute(ctx context.Context, r *run, v validation, p OptimizeParams, skippedInvalid int) *models.Route {
	route := &models.Route{
		ID:        uuid.NewString(),
		CrewType:  p.CrewType,
		PlanDate:  p.PlanDate,
		Strategy:  string(p.Strategy),
		Status:    string(CodeOK),
		Stops:     v.Stops,
		Dropped:   v.Dropped,
		Reordered: v.Reordered,
		CreatedAt: time.Now().UTC(),
	}

	for _, s := range v.Stops {
		route.TicketIDs = append(route.TicketIDs, s.TicketID)
	}
	if n := len(v.Stops); n > 0 {
		last := v.Stops[n-1]
		route.TotalTimeMinutes = last.ArrivalOffsetMinutes + float64(last.ServiceMinutes)
	}

	// Total distance closes the loop back to the first stop, matching how
	// dispatch reads route length.
	for i := 1; i < len(v.Kept); i++ {
		km, _ := r.oracle.Distance(ctx, &v.Kept[i-1], &v.Kept[i])
		route.TotalDistanceKm += km
	}
	if len(v.Kept) > 1 {
		km, _ := r.oracle.Distance(ctx, &v.Kept[len(v.Kept)-1], &v.Kept[0])
		route.TotalDistanceKm += km
	}

	stats := &route.Stats
	stats.TotalPoints = len(v.Kept)
	stats.ClustersServed = len(r.clusters)
	stats.SkippedInvalid = skippedInvalid
	stats.DependencyReorders = len(v.Reordered)
	stats.EmergencySwaps = v.Swaps
	stats.EmergencySwapsFailed = v.SwapsFailed
	for _, t := range v.Kept {
		switch t.Priority {
		case models.PriorityEmergency:
			stats.Emergencies++
		case models.PriorityUrgent:
			stats.Urgent++
		}
		stats.ComplaintsResolved += t.ComplaintsCount
		if t.MainRoad {
			stats.MainRoads++
		}
		if t.NearCriticalLocation {
			stats.CriticalLocations++
		}
		if t.RequiresRoadBlock {
			stats.RoadBlocksNeeded++
		}
	}
	for _, d := range v.Dropped {
		if d.Reason == models.DropBudget {
			stats.SkippedBudget++
		}
	}
	return route
}
