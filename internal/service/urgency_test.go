package service

import (
	"testing"

	"github.com/urbanworks/backend/internal/models"
)

func TestUrgencyScorePinsWeights(t *testing.T) {
	cases := []struct {
		name   string
		ticket models.Ticket
		want   float64
	}{
		{
			name:   "plain low pothole",
			ticket: models.Ticket{Priority: models.PriorityLow, ProblemType: models.ProblemPothole},
			want:   50, // 10 + 40
		},
		{
			name: "emergency wiring with every impact flag",
			ticket: models.Ticket{
				Priority:             models.PriorityEmergency,
				ProblemType:          models.ProblemExposedWiring,
				ProblemSize:          models.SizeLarge,
				AffectsTraffic:       true,
				NearCriticalLocation: true,
				MainRoad:             true,
				AffectsCommerce:      true,
				ComplaintsCount:      60,
			},
			want: (1000 + 200 + 150 + 100 + 80 + 60 + 250) * 1.5,
		},
		{
			name:   "small water leak",
			ticket: models.Ticket{Priority: models.PriorityMedium, ProblemType: models.ProblemWaterLeak, ProblemSize: models.SizeSmall},
			want:   (50 + 100) * 0.7,
		},
		{
			name:   "complaints capped at fifty",
			ticket: models.Ticket{Priority: models.PriorityLow, ProblemType: models.ProblemDarkLamp, ComplaintsCount: 500},
			want:   10 + 60 + 250,
		},
		{
			name:   "unset size keeps factor one",
			ticket: models.Ticket{Priority: models.PriorityHigh, ProblemType: models.ProblemSewerLeak},
			want:   200 + 120,
		},
	}

	for _, tc := range cases {
		if got := UrgencyScore(tc.ticket); got != tc.want {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.want, got)
		}
	}
}

func TestPrioritizeOrdering(t *testing.T) {
	tickets := []models.Ticket{
		{ID: "t3", Priority: models.PriorityLow, ProblemType: models.ProblemPothole},
		{ID: "t1", Priority: models.PriorityEmergency, ProblemType: models.ProblemPothole},
		{ID: "t2", Priority: models.PriorityUrgent, ProblemType: models.ProblemPothole},
	}
	ScoreAll(tickets)
	Prioritize(tickets)

	want := []string{"t1", "t2", "t3"}
	for i, id := range want {
		if tickets[i].ID != id {
			t.Fatalf("position %d: expected %s, got %s", i, id, tickets[i].ID)
		}
	}
}

func TestPrioritizeTieBreaks(t *testing.T) {
	// a and b share urgency, priority and complaints, so id decides between
	// them.
	tickets := []models.Ticket{
		{ID: "b", Priority: models.PriorityMedium, ProblemType: models.ProblemPothole},
		{ID: "a", Priority: models.PriorityMedium, ProblemType: models.ProblemPothole},
		{ID: "c", Priority: models.PriorityMedium, ProblemType: models.ProblemCloggedDrain, ComplaintsCount: 2},
	}
	// pothole and clogged_drain share the same type bonus; c's complaints
	// raise its score above the tie.
	ScoreAll(tickets)
	Prioritize(tickets)

	if tickets[0].ID != "c" {
		t.Fatalf("expected complaint-heavy ticket first, got %s", tickets[0].ID)
	}
	if tickets[1].ID != "a" || tickets[2].ID != "b" {
		t.Fatalf("expected id ascending on full tie, got %s,%s", tickets[1].ID, tickets[2].ID)
	}
}
