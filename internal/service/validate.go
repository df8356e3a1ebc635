package service

import (
	"context"

	"github.com/urbanworks/backend/internal/models"
)

const maxEmergencySwaps = 10

type validation struct {
	Kept        []models.Ticket
	Stops       []models.RouteStop
	Dropped     []models.DroppedTicket
	Reordered   []string
	Swaps       int
	SwapsFailed int
}

// validate enforces the shift budget and dependency precedence over the
// stitched sequence: break dependency cycles, reorder dependents after
// their dependencies, walk the time budget, then try to rescue dropped
// emergencies by swapping out kept low-urgency work.
func validate(ctx context.Context, oracle *Oracle, sequence []models.Ticket, maxMinutes float64, maxPoints int) validation {
	v := validation{}
	if len(sequence) == 0 {
		return v
	}

	alive, cycleDropped := breakCycles(sequence)
	v.Dropped = append(v.Dropped, cycleDropped...)

	alive, missingDropped := dropMissingDeps(alive)
	v.Dropped = append(v.Dropped, missingDropped...)

	repaired, reordered := repairOrder(alive)
	v.Reordered = reordered

	kept, cut := budgetWalk(ctx, oracle, repaired, maxMinutes, maxPoints)
	kept, cut, v.Swaps, v.SwapsFailed = rescueEmergencies(ctx, oracle, kept, cut, maxMinutes)

	for _, t := range cut {
		v.Dropped = append(v.Dropped, models.DroppedTicket{TicketID: t.ID, Reason: models.DropBudget})
	}

	v.Kept = kept
	v.Stops = buildStops(ctx, oracle, kept)
	return v
}

// breakCycles detects dependency cycles by DFS and drops the largest ticket
// id in each cycle until the graph is acyclic. Surviving cycle members lose
// their edge onto the victim; the cycle made that dependency unsatisfiable,
// not the survivor.
func breakCycles(sequence []models.Ticket) ([]models.Ticket, []models.DroppedTicket) {
	var dropped []models.DroppedTicket
	droppedIDs := map[string]bool{}

	seq := append([]models.Ticket(nil), sequence...)
	byID := map[string]int{}
	for i, t := range seq {
		byID[t.ID] = i
	}

	for {
		cycle := findCycle(seq, byID, droppedIDs)
		if cycle == nil {
			break
		}
		victim := cycle[0]
		for _, id := range cycle[1:] {
			if id > victim {
				victim = id
			}
		}
		droppedIDs[victim] = true
		dropped = append(dropped, models.DroppedTicket{TicketID: victim, Reason: models.DropDependencyCycle})

		for _, id := range cycle {
			if id == victim {
				continue
			}
			i := byID[id]
			var deps []string
			for _, dep := range seq[i].Dependencies {
				if dep != victim {
					deps = append(deps, dep)
				}
			}
			seq[i].Dependencies = deps
		}
	}

	var alive []models.Ticket
	for _, t := range seq {
		if !droppedIDs[t.ID] {
			alive = append(alive, t)
		}
	}
	return alive, dropped
}

func findCycle(sequence []models.Ticket, byID map[string]int, droppedIDs map[string]bool) []string {
	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := map[string]int{}
	var stack []string

	var visit func(id string) []string
	visit = func(id string) []string {
		color[id] = gray
		stack = append(stack, id)
		for _, dep := range sequence[byID[id]].Dependencies {
			if droppedIDs[dep] {
				continue
			}
			if _, ok := byID[dep]; !ok {
				continue
			}
			switch color[dep] {
			case gray:
				start := len(stack) - 1
				for start >= 0 && stack[start] != dep {
					start--
				}
				return append([]string(nil), stack[start:]...)
			case white:
				if cycle := visit(dep); cycle != nil {
					return cycle
				}
			}
		}
		color[id] = black
		stack = stack[:len(stack)-1]
		return nil
	}

	for _, t := range sequence {
		if droppedIDs[t.ID] {
			continue
		}
		if color[t.ID] == white {
			stack = stack[:0]
			if cycle := visit(t.ID); cycle != nil {
				return cycle
			}
		}
	}
	return nil
}

// dropMissingDeps removes tickets whose dependency was itself dropped, so a
// cycle victim takes its dependents with it.
func dropMissingDeps(alive []models.Ticket) ([]models.Ticket, []models.DroppedTicket) {
	var dropped []models.DroppedTicket
	present := map[string]bool{}
	for _, t := range alive {
		present[t.ID] = true
	}

	for {
		removed := false
		var next []models.Ticket
		for _, t := range alive {
			missing := false
			for _, dep := range t.Dependencies {
				if !present[dep] {
					missing = true
					break
				}
			}
			if missing {
				delete(present, t.ID)
				dropped = append(dropped, models.DroppedTicket{TicketID: t.ID, Reason: models.DropDependencyMissing})
				removed = true
				continue
			}
			next = append(next, t)
		}
		alive = next
		if !removed {
			break
		}
	}
	return alive, dropped
}

// repairOrder moves each ticket after its dependencies while disturbing the
// incoming order as little as possible: a stable topological order that
// always emits the earliest ready ticket.
func repairOrder(sequence []models.Ticket) ([]models.Ticket, []string) {
	index := map[string]int{}
	for i, t := range sequence {
		index[t.ID] = i
	}

	var reordered []string
	for i, t := range sequence {
		for _, dep := range t.Dependencies {
			if j, ok := index[dep]; ok && j > i {
				reordered = append(reordered, t.ID)
				break
			}
		}
	}
	if len(reordered) == 0 {
		return sequence, nil
	}

	emitted := map[string]bool{}
	out := make([]models.Ticket, 0, len(sequence))
	used := make([]bool, len(sequence))
	for len(out) < len(sequence) {
		for i, t := range sequence {
			if used[i] {
				continue
			}
			ready := true
			for _, dep := range t.Dependencies {
				if _, ok := index[dep]; ok && !emitted[dep] {
					ready = false
					break
				}
			}
			if ready {
				used[i] = true
				emitted[t.ID] = true
				out = append(out, t)
				break
			}
		}
	}
	return out, reordered
}

// budgetWalk accumulates travel plus service time and truncates the
// sequence at the first ticket that would exceed the budget or point cap.
func budgetWalk(ctx context.Context, oracle *Oracle, sequence []models.Ticket, maxMinutes float64, maxPoints int) (kept, cut []models.Ticket) {
	elapsed := 0.0
	for i := range sequence {
		t := sequence[i]
		travel := 0.0
		if len(kept) > 0 {
			_, travel = oracle.Distance(ctx, &kept[len(kept)-1], &t)
		}
		needed := travel + float64(t.EstimatedServiceMinutes)
		if elapsed+needed > maxMinutes || (maxPoints > 0 && len(kept) >= maxPoints) {
			cut = append(cut, sequence[i:]...)
			break
		}
		elapsed += needed
		kept = append(kept, t)
	}
	return kept, cut
}

// rescueEmergencies swaps dropped emergency tickets back in for kept
// lower-urgency work, one for one, while the result stays within budget and
// dependency order. At most maxEmergencySwaps swaps per run.
func rescueEmergencies(ctx context.Context, oracle *Oracle, kept, cut []models.Ticket, maxMinutes float64) ([]models.Ticket, []models.Ticket, int, int) {
	swaps := 0
	failed := 0
	attempted := map[string]bool{}

	for swaps < maxEmergencySwaps {
		ei := nextDroppedEmergency(kept, cut, attempted)
		if ei < 0 {
			break
		}
		emergency := cut[ei]
		attempted[emergency.ID] = true

		swapped := false
		for _, ci := range swapCandidates(kept, emergency) {
			if dependedOn(kept, kept[ci].ID) {
				continue
			}
			proposal := append([]models.Ticket(nil), kept...)
			proposal[ci] = emergency
			if !depsBefore(proposal, ci, emergency) {
				continue
			}
			if walkMinutes(ctx, oracle, proposal) > maxMinutes {
				continue
			}
			victim := kept[ci]
			kept = proposal
			cut[ei] = victim
			swaps++
			swapped = true
			break
		}
		if !swapped {
			failed++
		}
	}
	return kept, cut, swaps, failed
}

// nextDroppedEmergency picks the most urgent emergency in the cut list that
// still has a strictly less urgent kept ticket to displace.
func nextDroppedEmergency(kept, cut []models.Ticket, attempted map[string]bool) int {
	best := -1
	for i, t := range cut {
		if t.Priority != models.PriorityEmergency || attempted[t.ID] {
			continue
		}
		if len(swapCandidates(kept, t)) == 0 {
			continue
		}
		if best < 0 || moreUrgent(t, cut[best]) {
			best = i
		}
	}
	return best
}

// swapCandidates lists kept positions holding tickets strictly less urgent
// than the emergency, least urgent first.
func swapCandidates(kept []models.Ticket, emergency models.Ticket) []int {
	var out []int
	for i, t := range kept {
		if moreUrgent(emergency, t) {
			out = append(out, i)
		}
	}
	for i := 0; i < len(out); i++ {
		for j := i + 1; j < len(out); j++ {
			if moreUrgent(kept[out[i]], kept[out[j]]) {
				out[i], out[j] = out[j], out[i]
			}
		}
	}
	return out
}

func dependedOn(kept []models.Ticket, id string) bool {
	for _, t := range kept {
		for _, dep := range t.Dependencies {
			if dep == id {
				return true
			}
		}
	}
	return false
}

func depsBefore(proposal []models.Ticket, pos int, t models.Ticket) bool {
	for _, dep := range t.Dependencies {
		ok := false
		for i := 0; i < pos; i++ {
			if proposal[i].ID == dep {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	return true
}

func walkMinutes(ctx context.Context, oracle *Oracle, sequence []models.Ticket) float64 {
	total := 0.0
	for i := range sequence {
		if i > 0 {
			_, travel := oracle.Distance(ctx, &sequence[i-1], &sequence[i])
			total += travel
		}
		total += float64(sequence[i].EstimatedServiceMinutes)
	}
	return total
}

// buildStops derives the per-ticket planned arrival offsets for the
// accepted sequence.
func buildStops(ctx context.Context, oracle *Oracle, kept []models.Ticket) []models.RouteStop {
	stops := make([]models.RouteStop, 0, len(kept))
	elapsed := 0.0
	for i := range kept {
		travel := 0.0
		if i > 0 {
			_, travel = oracle.Distance(ctx, &kept[i-1], &kept[i])
		}
		arrival := elapsed + travel
		stops = append(stops, models.RouteStop{
			TicketID:             kept[i].ID,
			TravelMinutes:        travel,
			ServiceMinutes:       kept[i].EstimatedServiceMinutes,
			ArrivalOffsetMinutes: arrival,
		})
		elapsed = arrival + float64(kept[i].EstimatedServiceMinutes)
	}
	return stops
}
