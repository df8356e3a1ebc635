package service

import (
	"github.com/urbanworks/backend/internal/models"
	"github.com/urbanworks/backend/internal/utils"
)

const (
	defaultEpsKm     = 0.5
	dbscanMinSamples = 2
	dbscanNoiseLabel = -1
	dbscanUnvisited  = 0
)

// Cluster is an ephemeral geographic group of tickets for one run.
type Cluster struct {
	Tickets             []models.Ticket
	CentroidLat         float64
	CentroidLon         float64
	Priority            models.Priority
	TotalServiceMinutes int
	MaxUrgency          float64
}

// Clusterize partitions tickets with DBSCAN on a local equirectangular
// projection, so the epsilon radius is expressed in kilometers. Noise points
// become singleton clusters; they still must be visited. Cluster numbering
// and membership order follow the input order, keeping output deterministic.
func Clusterize(tickets []models.Ticket, epsKm float64) []Cluster {
	if len(tickets) == 0 {
		return nil
	}
	if epsKm <= 0 {
		epsKm = defaultEpsKm
	}
	if len(tickets) == 1 {
		return []Cluster{newCluster(tickets)}
	}

	lats := make([]float64, len(tickets))
	lons := make([]float64, len(tickets))
	for i, t := range tickets {
		lats[i] = t.Lat
		lons[i] = t.Lon
	}
	pts := utils.ProjectEquirectangular(lats, lons)

	labels := dbscan(pts, epsKm, dbscanMinSamples)

	var groups [][]models.Ticket
	byLabel := map[int]int{}
	for i, label := range labels {
		if label == dbscanNoiseLabel {
			groups = append(groups, []models.Ticket{tickets[i]})
			continue
		}
		idx, ok := byLabel[label]
		if !ok {
			idx = len(groups)
			byLabel[label] = idx
			groups = append(groups, nil)
		}
		groups[idx] = append(groups[idx], tickets[i])
	}

	clusters := make([]Cluster, len(groups))
	for i, g := range groups {
		clusters[i] = newCluster(g)
	}
	return clusters
}

// dbscan labels each point with a cluster id starting at 1, or -1 for noise.
func dbscan(pts []utils.Projected, epsKm float64, minSamples int) []int {
	n := len(pts)
	labels := make([]int, n)
	for i := range labels {
		labels[i] = dbscanUnvisited
	}

	neighbors := func(i int) []int {
		var out []int
		for j := 0; j < n; j++ {
			if utils.EuclideanKm(pts[i], pts[j]) <= epsKm {
				out = append(out, j)
			}
		}
		return out
	}

	label := dbscanUnvisited
	for i := 0; i < n; i++ {
		if labels[i] != dbscanUnvisited {
			continue
		}
		nbrs := neighbors(i)
		if len(nbrs) < minSamples {
			labels[i] = dbscanNoiseLabel
			continue
		}
		label++
		labels[i] = label
		queue := append([]int(nil), nbrs...)
		for len(queue) > 0 {
			j := queue[0]
			queue = queue[1:]
			if labels[j] == dbscanNoiseLabel {
				labels[j] = label
			}
			if labels[j] != dbscanUnvisited {
				continue
			}
			labels[j] = label
			jn := neighbors(j)
			if len(jn) >= minSamples {
				queue = append(queue, jn...)
			}
		}
	}
	return labels
}

func newCluster(tickets []models.Ticket) Cluster {
	c := Cluster{Tickets: tickets}
	for _, t := range tickets {
		c.CentroidLat += t.Lat
		c.CentroidLon += t.Lon
		c.TotalServiceMinutes += t.EstimatedServiceMinutes
		if c.Priority == "" || t.Priority.Rank() < c.Priority.Rank() {
			c.Priority = t.Priority
		}
		if t.UrgencyScore > c.MaxUrgency {
			c.MaxUrgency = t.UrgencyScore
		}
	}
	if len(tickets) > 0 {
		c.CentroidLat /= float64(len(tickets))
		c.CentroidLon /= float64(len(tickets))
	}
	return c
}
