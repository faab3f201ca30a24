package trace

// TraceSummary counts the records of a FlowTrace.
type TraceSummary struct {
	Episodes        int
	Transfers       int
	Created         int
	Absorbed        int
	InFlight        int            // created but not yet absorbed
	EpisodesByNode  map[string]int // processor ID → completed episodes
	TransfersByEdge map[string]int // edge ID → puts and gets
}

// Summarize counts records from a FlowTrace.
// Safe for nil or empty traces (returns zero-value fields).
func Summarize(ft *FlowTrace) *TraceSummary {
	summary := &TraceSummary{
		EpisodesByNode:  make(map[string]int),
		TransfersByEdge: make(map[string]int),
	}
	if ft == nil {
		return summary
	}

	summary.Episodes = len(ft.Episodes)
	for _, e := range ft.Episodes {
		summary.EpisodesByNode[e.Node]++
	}
	summary.Transfers = len(ft.Transfers)
	for _, t := range ft.Transfers {
		summary.TransfersByEdge[t.Edge]++
	}
	for _, l := range ft.Lifecycle {
		switch l.Kind {
		case LifecycleCreated:
			summary.Created++
		case LifecycleAbsorbed:
			summary.Absorbed++
		}
	}
	summary.InFlight = summary.Created - summary.Absorbed

	return summary
}
