package service

import (
	"context"
	"errors"

	"github.com/urbanworks/backend/internal/models"
)

var errStitchDeadline = errors.New("stitch: deadline exceeded")

// stitch connects per-cluster tours into a single sequence. It builds a
// minimum spanning tree over cluster centroids weighted by travel minutes,
// walks it depth-first from the cluster holding the globally most urgent
// ticket, and concatenates tours, rotating each entered tour so its entry
// is the member nearest the previous exit.
func stitch(ctx context.Context, oracle *Oracle, clusters []Cluster, tours [][]models.Ticket) ([]models.Ticket, error) {
	if len(clusters) == 0 {
		return nil, nil
	}
	if len(clusters) == 1 {
		return tours[0], nil
	}
	if ctx.Err() != nil {
		return nil, errStitchDeadline
	}

	n := len(clusters)
	weights := make([][]float64, n)
	for i := range weights {
		weights[i] = make([]float64, n)
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			_, min := oracle.Between(ctx,
				clusters[i].CentroidLat, clusters[i].CentroidLon,
				clusters[j].CentroidLat, clusters[j].CentroidLon)
			weights[i][j] = min
			weights[j][i] = min
		}
	}

	adj := primMST(weights)
	root := mostUrgentCluster(clusters)
	order := dfsPreorder(adj, weights, clusters, root)

	if ctx.Err() != nil {
		return nil, errStitchDeadline
	}

	var sequence []models.Ticket
	emitted := map[string]bool{}
	for _, ci := range order {
		tour := tours[ci]
		if len(sequence) > 0 && len(tour) > 1 {
			exit := sequence[len(sequence)-1]
			tour = rotateForEntry(ctx, oracle, exit, tour, emitted)
		}
		for _, t := range tour {
			sequence = append(sequence, t)
			emitted[t.ID] = true
		}
	}
	return sequence, nil
}

// primMST returns the MST adjacency over a complete weight matrix.
// Ties resolve to the lower vertex index.
func primMST(weights [][]float64) [][]int {
	n := len(weights)
	adj := make([][]int, n)
	inTree := make([]bool, n)
	bestCost := make([]float64, n)
	bestEdge := make([]int, n)
	for i := range bestCost {
		bestCost[i] = -1
		bestEdge[i] = -1
	}

	inTree[0] = true
	for j := 1; j < n; j++ {
		bestCost[j] = weights[0][j]
		bestEdge[j] = 0
	}

	for added := 1; added < n; added++ {
		next := -1
		for j := 0; j < n; j++ {
			if inTree[j] || bestEdge[j] < 0 {
				continue
			}
			if next < 0 || bestCost[j] < bestCost[next] {
				next = j
			}
		}
		inTree[next] = true
		adj[bestEdge[next]] = append(adj[bestEdge[next]], next)
		adj[next] = append(adj[next], bestEdge[next])
		for j := 0; j < n; j++ {
			if !inTree[j] && weights[next][j] < bestCost[j] {
				bestCost[j] = weights[next][j]
				bestEdge[j] = next
			}
		}
	}
	return adj
}

func mostUrgentCluster(clusters []Cluster) int {
	root := 0
	var champion models.Ticket
	for ci, c := range clusters {
		for _, t := range c.Tickets {
			if champion.ID == "" || moreUrgent(t, champion) {
				champion = t
				root = ci
			}
		}
	}
	return root
}

// dfsPreorder walks the MST from root; at each branch children are visited
// in ascending edge weight, ties broken by descending cluster urgency then
// index.
func dfsPreorder(adj [][]int, weights [][]float64, clusters []Cluster, root int) []int {
	visited := make([]bool, len(adj))
	var order []int

	var walk func(int)
	walk = func(u int) {
		visited[u] = true
		order = append(order, u)

		children := make([]int, 0, len(adj[u]))
		for _, v := range adj[u] {
			if !visited[v] {
				children = append(children, v)
			}
		}
		for i := 0; i < len(children); i++ {
			for j := i + 1; j < len(children); j++ {
				a, b := children[i], children[j]
				swap := false
				switch {
				case weights[u][b] < weights[u][a]:
					swap = true
				case weights[u][b] == weights[u][a] && clusters[b].MaxUrgency > clusters[a].MaxUrgency:
					swap = true
				case weights[u][b] == weights[u][a] && clusters[b].MaxUrgency == clusters[a].MaxUrgency && b < a:
					swap = true
				}
				if swap {
					children[i], children[j] = children[j], children[i]
				}
			}
		}
		for _, v := range children {
			if !visited[v] {
				walk(v)
			}
		}
	}
	walk(root)
	return order
}

// rotateForEntry rotates a tour so its entry minimizes travel time from the
// previous exit, unless every such rotation would place a ticket before one
// of its in-tour dependencies; then the urgency-seeded original order wins.
func rotateForEntry(ctx context.Context, oracle *Oracle, exit models.Ticket, tour []models.Ticket, emitted map[string]bool) []models.Ticket {
	type candidate struct {
		idx int
		min float64
	}
	candidates := make([]candidate, len(tour))
	for i := range tour {
		_, min := oracle.Distance(ctx, &exit, &tour[i])
		candidates[i] = candidate{idx: i, min: min}
	}
	for i := 0; i < len(candidates); i++ {
		for j := i + 1; j < len(candidates); j++ {
			a, b := candidates[i], candidates[j]
			if b.min < a.min || (b.min == a.min && tour[b.idx].ID < tour[a.idx].ID) {
				candidates[i], candidates[j] = candidates[j], candidates[i]
			}
		}
	}

	inTour := map[string]int{}
	for i, t := range tour {
		inTour[t.ID] = i
	}

	for _, c := range candidates {
		rotated := append(append([]models.Ticket{}, tour[c.idx:]...), tour[:c.idx]...)
		if dependencyOrderHolds(rotated, inTour, emitted) {
			return rotated
		}
	}
	return tour
}

func dependencyOrderHolds(rotated []models.Ticket, inTour map[string]int, emitted map[string]bool) bool {
	pos := map[string]int{}
	for i, t := range rotated {
		pos[t.ID] = i
	}
	for i, t := range rotated {
		for _, dep := range t.Dependencies {
			if emitted[dep] {
				continue
			}
			if _, ok := inTour[dep]; !ok {
				continue
			}
			if pos[dep] > i {
				return false
			}
		}
	}
	return true
}
