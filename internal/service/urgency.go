package service

import (
	"sort"

	"github.com/urbanworks/backend/internal/models"
)

// Urgency weight tables. The exact constants are a contract with the
// dispatch side; tests pin them.
var priorityBase = map[models.Priority]float64{
	models.PriorityEmergency: 1000,
	models.PriorityUrgent:    500,
	models.PriorityHigh:      200,
	models.PriorityMedium:    50,
	models.PriorityLow:       10,
}

var typeBonus = map[models.ProblemType]float64{
	models.ProblemExposedWiring:      200,
	models.ProblemFaultyTrafficLight: 180,
	models.ProblemSewerLeak:          120,
	models.ProblemWaterLeak:          100,
	models.ProblemDarkLamp:           60,
	models.ProblemPothole:            40,
	models.ProblemCloggedDrain:       40,
	models.ProblemBrokenSidewalk:     20,
}

var sizeFactor = map[models.ProblemSize]float64{
	models.SizeLarge:  1.5,
	models.SizeMedium: 1.0,
	models.SizeSmall:  0.7,
}

const (
	bonusAffectsTraffic  = 150
	bonusNearCritical    = 100
	bonusMainRoad        = 80
	bonusAffectsCommerce = 60
	complaintWeight      = 5
	complaintCap         = 50
)

// UrgencyScore computes the scalar urgency for one ticket.
func UrgencyScore(t models.Ticket) float64 {
	score := priorityBase[t.Priority] + typeBonus[t.ProblemType]

	if t.AffectsTraffic {
		score += bonusAffectsTraffic
	}
	if t.NearCriticalLocation {
		score += bonusNearCritical
	}
	if t.MainRoad {
		score += bonusMainRoad
	}
	if t.AffectsCommerce {
		score += bonusAffectsCommerce
	}

	complaints := t.ComplaintsCount
	if complaints > complaintCap {
		complaints = complaintCap
	}
	score += float64(complaints) * complaintWeight

	factor, ok := sizeFactor[t.ProblemSize]
	if !ok {
		factor = 1.0
	}
	return score * factor
}

// ScoreAll recomputes urgency for every ticket in place. The persisted
// urgency column is only an advisory cache.
func ScoreAll(tickets []models.Ticket) {
	for i := range tickets {
		tickets[i].UrgencyScore = UrgencyScore(tickets[i])
	}
}

// Prioritize totally orders tickets: descending urgency, then priority rank,
// then descending complaints, then id ascending. Stable and deterministic.
func Prioritize(tickets []models.Ticket) {
	sort.SliceStable(tickets, func(i, j int) bool {
		a, b := tickets[i], tickets[j]
		if a.UrgencyScore != b.UrgencyScore {
			return a.UrgencyScore > b.UrgencyScore
		}
		if a.Priority.Rank() != b.Priority.Rank() {
			return a.Priority.Rank() < b.Priority.Rank()
		}
		if a.ComplaintsCount != b.ComplaintsCount {
			return a.ComplaintsCount > b.ComplaintsCount
		}
		return a.ID < b.ID
	})
}

func moreUrgent(a, b models.Ticket) bool {
	if a.UrgencyScore != b.UrgencyScore {
		return a.UrgencyScore > b.UrgencyScore
	}
	if a.Priority.Rank() != b.Priority.Rank() {
		return a.Priority.Rank() < b.Priority.Rank()
	}
	if a.ComplaintsCount != b.ComplaintsCount {
		return a.ComplaintsCount > b.ComplaintsCount
	}
	return a.ID < b.ID
}
