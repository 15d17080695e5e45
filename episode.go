package tracebrain

import "time"

// Episode groups the traces that represent repeated attempts at one task.
// Episodes are derived by filtering on the episode ID attribute; they are
// not persisted as their own span tree.
type Episode struct {
	EpisodeID string   `json:"episode_id"`
	Traces    []*Trace `json:"traces"`
}

// GroupByEpisode partitions traces by their episode ID, preserving the
// first-seen order of episodes and the input order of traces within each.
// Traces without an episode ID are skipped.
func GroupByEpisode(traces []*Trace) []*Episode {
	byID := make(map[string]*Episode)
	var episodes []*Episode
	for _, t := range traces {
		id := t.EpisodeID()
		if id == "" {
			continue
		}
		ep, ok := byID[id]
		if !ok {
			ep = &Episode{EpisodeID: id}
			byID[id] = ep
			episodes = append(episodes, ep)
		}
		ep.Traces = append(ep.Traces, t)
	}
	return episodes
}

// EpisodeSummary is an aggregate view of one episode.
type EpisodeSummary struct {
	EpisodeID string    `json:"episode_id"`
	Attempts  int       `json:"attempts"`
	Failures  int       `json:"failures"`
	StartedAt time.Time `json:"started_at,omitempty"`
	EndedAt   time.Time `json:"ended_at,omitempty"`
}

// Summary aggregates attempt and failure counts plus the time bounds of the
// episode's spans.
func (e *Episode) Summary() EpisodeSummary {
	sum := EpisodeSummary{
		EpisodeID: e.EpisodeID,
		Attempts:  len(e.Traces),
	}
	for _, t := range e.Traces {
		if t.Status() == TraceStatusFailed || t.HasErrorSpan() {
			sum.Failures++
		}
		for _, s := range t.Spans {
			if !s.StartTime.IsZero() && (sum.StartedAt.IsZero() || s.StartTime.Before(sum.StartedAt)) {
				sum.StartedAt = s.StartTime
			}
			if s.EndTime.After(sum.EndedAt) {
				sum.EndedAt = s.EndTime
			}
		}
	}
	return sum
}
