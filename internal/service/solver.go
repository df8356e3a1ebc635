package service

import (
	"context"
	"runtime"
	"sync"

	"github.com/urbanworks/backend/internal/models"
)

const (
	twoOptEps       = 1e-6
	twoOptMaxPasses = 50
)

type seedMode int

const (
	seedByUrgency seedMode = iota
	seedByCentroid
)

// solveCluster builds a tour for one cluster: pick a seed, extend by
// nearest neighbor on travel minutes, then refine with 2-opt. The returned
// tour's first ticket is the cluster entry and its last is the exit.
func solveCluster(ctx context.Context, oracle *Oracle, c Cluster, mode seedMode) []models.Ticket {
	if len(c.Tickets) <= 1 {
		return c.Tickets
	}

	seed := 0
	switch mode {
	case seedByCentroid:
		best := -1.0
		for i := range c.Tickets {
			_, min := oracle.Between(ctx, c.CentroidLat, c.CentroidLon, c.Tickets[i].Lat, c.Tickets[i].Lon)
			if best < 0 || min < best || (min == best && c.Tickets[i].ID < c.Tickets[seed].ID) {
				best = min
				seed = i
			}
		}
	default:
		for i := 1; i < len(c.Tickets); i++ {
			if moreUrgent(c.Tickets[i], c.Tickets[seed]) {
				seed = i
			}
		}
	}

	tour := nearestNeighborTour(ctx, oracle, c.Tickets, seed)
	return twoOpt(ctx, oracle, tour)
}

// nearestNeighborTour repeatedly appends the unvisited ticket with the
// smallest travel time from the current tail. Equidistant candidates fall
// back to the urgency order, so collocated tickets are visited most urgent
// first and the tour stays deterministic.
func nearestNeighborTour(ctx context.Context, oracle *Oracle, tickets []models.Ticket, seed int) []models.Ticket {
	tour := make([]models.Ticket, 0, len(tickets))
	tour = append(tour, tickets[seed])

	remaining := make([]models.Ticket, 0, len(tickets)-1)
	for i := range tickets {
		if i != seed {
			remaining = append(remaining, tickets[i])
		}
	}

	for len(remaining) > 0 {
		tail := &tour[len(tour)-1]
		best := -1
		var bestMin float64
		for i := range remaining {
			_, min := oracle.Distance(ctx, tail, &remaining[i])
			if best < 0 || min < bestMin || (min == bestMin && moreUrgent(remaining[i], remaining[best])) {
				best = i
				bestMin = min
			}
		}
		tour = append(tour, remaining[best])
		remaining = append(remaining[:best], remaining[best+1:]...)
	}
	return tour
}

// twoOpt reverses sub-tours while doing so shortens total travel minutes.
// Passes repeat until one finds no improvement, capped at twoOptMaxPasses.
// The deadline is checked between passes.
func twoOpt(ctx context.Context, oracle *Oracle, tour []models.Ticket) []models.Ticket {
	if len(tour) < 4 {
		return tour
	}
	travel := func(a, b *models.Ticket) float64 {
		_, min := oracle.Distance(ctx, a, b)
		return min
	}

	for pass := 0; pass < twoOptMaxPasses; pass++ {
		if ctx.Err() != nil {
			return tour
		}
		improved := false
		for i := 0; i < len(tour)-2; i++ {
			for j := i + 2; j < len(tour)-1; j++ {
				current := travel(&tour[i], &tour[i+1]) + travel(&tour[j], &tour[j+1])
				proposed := travel(&tour[i], &tour[j]) + travel(&tour[i+1], &tour[j+1])
				if proposed < current-twoOptEps {
					reverse(tour[i+1 : j+1])
					improved = true
				}
			}
		}
		if !improved {
			break
		}
	}
	return tour
}

func reverse(s []models.Ticket) {
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		s[i], s[j] = s[j], s[i]
	}
}

// solveAll runs the intra-cluster solver across a bounded worker pool of
// min(clusters, GOMAXPROCS) workers. Each worker owns its cluster snapshot;
// nothing is shared but the oracle. Returns the tours indexed like clusters
// and whether any cluster fell back to its prioritized order because the
// deadline expired first.
func solveAll(ctx context.Context, oracle *Oracle, clusters []Cluster, mode seedMode) ([][]models.Ticket, bool) {
	tours := make([][]models.Ticket, len(clusters))
	if len(clusters) == 0 {
		return tours, false
	}

	workers := runtime.GOMAXPROCS(0)
	if workers > len(clusters) {
		workers = len(clusters)
	}

	jobs := make(chan int)
	var wg sync.WaitGroup
	var mu sync.Mutex
	partial := false

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				if ctx.Err() != nil {
					// Deadline hit before this cluster was solved: keep its
					// prioritized order as a fallback tour.
					tours[i] = clusters[i].Tickets
					mu.Lock()
					partial = true
					mu.Unlock()
					continue
				}
				func(i int) {
					defer func() {
						// A failed worker degrades its cluster to the
						// prioritized order instead of killing the run.
						if r := recover(); r != nil {
							tours[i] = clusters[i].Tickets
						}
					}()
					tours[i] = solveCluster(ctx, oracle, clusters[i], mode)
				}(i)
			}
		}()
	}

	for i := range clusters {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	if ctx.Err() != nil {
		return tours, true
	}
	return tours, partial
}
