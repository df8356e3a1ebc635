package models

import "time"

type ProblemType string

const (
	ProblemPothole            ProblemType = "pothole"
	ProblemWaterLeak          ProblemType = "water_leak"
	ProblemSewerLeak          ProblemType = "sewer_leak"
	ProblemDarkLamp           ProblemType = "dark_lamp"
	ProblemExposedWiring      ProblemType = "exposed_wiring"
	ProblemCloggedDrain       ProblemType = "clogged_drain"
	ProblemBrokenSidewalk     ProblemType = "broken_sidewalk"
	ProblemFaultyTrafficLight ProblemType = "faulty_traffic_light"
)

func (p ProblemType) Valid() bool {
	switch p {
	case ProblemPothole, ProblemWaterLeak, ProblemSewerLeak, ProblemDarkLamp,
		ProblemExposedWiring, ProblemCloggedDrain, ProblemBrokenSidewalk, ProblemFaultyTrafficLight:
		return true
	}
	return false
}

type Priority string

const (
	PriorityEmergency Priority = "emergency"
	PriorityUrgent    Priority = "urgent"
	PriorityHigh      Priority = "high"
	PriorityMedium    Priority = "medium"
	PriorityLow       Priority = "low"
)

// Rank orders priorities from most to least urgent. Lower is more urgent.
func (p Priority) Rank() int {
	switch p {
	case PriorityEmergency:
		return 0
	case PriorityUrgent:
		return 1
	case PriorityHigh:
		return 2
	case PriorityMedium:
		return 3
	case PriorityLow:
		return 4
	}
	return 5
}

func (p Priority) Valid() bool {
	return p.Rank() < 5
}

type CrewType string

const (
	CrewAsphalt    CrewType = "asphalt"
	CrewHydraulic  CrewType = "hydraulic"
	CrewElectric   CrewType = "electric"
	CrewSanitation CrewType = "sanitation"
	CrewGeneral    CrewType = "general"
)

func (c CrewType) Valid() bool {
	switch c {
	case CrewAsphalt, CrewHydraulic, CrewElectric, CrewSanitation, CrewGeneral:
		return true
	}
	return false
}

type ProblemSize string

const (
	SizeSmall  ProblemSize = "small"
	SizeMedium ProblemSize = "medium"
	SizeLarge  ProblemSize = "large"
)

type TicketStatus string

const (
	StatusOpen       TicketStatus = "open"
	StatusInProgress TicketStatus = "in_progress"
	StatusDone       TicketStatus = "done"
	StatusCancelled  TicketStatus = "cancelled"
)

// Ticket is one geo-located maintenance work item. Immutable for the
// duration of an optimization run.
type Ticket struct {
	ID                      string         `json:"id"`
	Lat                     float64        `json:"lat"`
	Lon                     float64        `json:"lon"`
	Address                 string         `json:"address,omitempty"`
	Neighborhood            string         `json:"neighborhood,omitempty"`
	ProblemType             ProblemType    `json:"problem_type"`
	Priority                Priority       `json:"priority"`
	CrewType                CrewType       `json:"crew_type"`
	ProblemSize             ProblemSize    `json:"problem_size,omitempty"`
	EstimatedServiceMinutes int            `json:"estimated_service_minutes"`
	AffectsTraffic          bool           `json:"affects_traffic"`
	AffectsCommerce         bool           `json:"affects_commerce"`
	NearCriticalLocation    bool           `json:"near_critical_location"`
	MainRoad                bool           `json:"main_road"`
	ComplaintsCount         int            `json:"complaints_count"`
	RequiresRoadBlock       bool           `json:"requires_road_block"`
	Dependencies            []string       `json:"dependencies,omitempty"`
	Materials               []string       `json:"materials,omitempty"`
	Photos                  []string       `json:"photos,omitempty"`
	Metadata                map[string]any `json:"metadata,omitempty"`
	Status                  TicketStatus   `json:"status"`
	UrgencyScore            float64        `json:"urgency_score"`
	CreatedAt               time.Time      `json:"created_at"`
}

func (t Ticket) ValidCoordinates() bool {
	return t.Lat >= -90 && t.Lat <= 90 && t.Lon >= -180 && t.Lon <= 180
}

type DropReason string

const (
	DropBudget            DropReason = "budget"
	DropDependencyMissing DropReason = "dependency_missing"
	DropDependencyCycle   DropReason = "dependency_cycle"
)

type DroppedTicket struct {
	TicketID string     `json:"ticket_id"`
	Reason   DropReason `json:"reason"`
}

// RouteStop is one visit in the final plan. ArrivalOffsetMinutes is the
// cumulative travel plus service time elapsed before the crew starts
// working this stop.
type RouteStop struct {
	TicketID             string  `json:"ticket_id"`
	TravelMinutes        float64 `json:"travel_minutes"`
	ServiceMinutes       int     `json:"service_minutes"`
	ArrivalOffsetMinutes float64 `json:"arrival_offset_minutes"`
}

type RouteStats struct {
	TotalPoints          int `json:"total_points"`
	ClustersServed       int `json:"clusters_served"`
	Emergencies          int `json:"emergencies"`
	Urgent               int `json:"urgent"`
	ComplaintsResolved   int `json:"complaints_resolved"`
	MainRoads            int `json:"main_roads"`
	CriticalLocations    int `json:"critical_locations"`
	RoadBlocksNeeded     int `json:"road_blocks_needed"`
	SkippedBudget        int `json:"skipped_budget"`
	SkippedInvalid       int `json:"skipped_invalid"`
	DependencyReorders   int `json:"dependency_reorders"`
	EmergencySwaps       int `json:"emergency_swaps"`
	EmergencySwapsFailed int `json:"emergency_swaps_failed"`
}

// Route is the ordered, budget-feasible visit plan emitted by the engine.
type Route struct {
	ID               string          `json:"id"`
	CrewType         CrewType        `json:"crew_type"`
	PlanDate         string          `json:"plan_date"`
	Strategy         string          `json:"strategy"`
	Status           string          `json:"status"`
	Stops            []RouteStop     `json:"stops"`
	TicketIDs        []string        `json:"ticket_ids"`
	TotalDistanceKm  float64         `json:"total_distance_km"`
	TotalTimeMinutes float64         `json:"total_time_minutes"`
	Stats            RouteStats      `json:"stats"`
	Dropped          []DroppedTicket `json:"dropped"`
	Reordered        []string        `json:"reordered,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
}
