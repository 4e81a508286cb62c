package pipeline

import "github.com/craterhub/downloads-accounting/internal/domain"

// Counts holds the per-entity increments produced by one processing cycle.
// It is built fresh every cycle, handed to the persistence sink, and
// discarded.
type Counts struct {
	Versions map[string]int64
	Projects map[string]int64
}

// Total returns the number of accepted events folded into the counts
func (c Counts) Total() int64 {
	var n int64
	for _, v := range c.Projects {
		n += v
	}
	return n
}

// Aggregate folds accepted events into per-version and per-project counts
func Aggregate(accepted []domain.DownloadEvent) Counts {
	counts := Counts{
		Versions: make(map[string]int64),
		Projects: make(map[string]int64),
	}
	for i := range accepted {
		counts.Versions[accepted[i].VersionID]++
		counts.Projects[accepted[i].ProjectID]++
	}
	return counts
}
