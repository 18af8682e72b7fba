package recovery

import (
	"context"
	"fmt"
)

// Status summarizes a run for external reporting: counts per decision
// and per rule across both the individual and the group stage.
type Status struct {
	Photos int
	Hashed int

	Rejected  int // individually rejected
	Separated int
	ByRule    map[string]int // individual decisions per rule

	Groups        int
	Grouped       int // photos belonging to some group
	GroupRejected int
	GroupByRule   map[string]int // group rejections per rule

	Kept int // photos without any reject decision
}

// Status assembles the observability counts from the store.
func (pl *Pipeline) Status(ctx context.Context) (*Status, error) {
	photos, err := pl.store.Photos(ctx)
	if err != nil {
		return nil, fmt.Errorf("status: %w", err)
	}
	decisions, err := pl.store.IndividualDecisions(ctx)
	if err != nil {
		return nil, fmt.Errorf("status: %w", err)
	}
	groups, err := pl.store.Groups(ctx)
	if err != nil {
		return nil, fmt.Errorf("status: %w", err)
	}
	rejections, err := pl.store.GroupRejections(ctx)
	if err != nil {
		return nil, fmt.Errorf("status: %w", err)
	}

	s := &Status{
		Photos:      len(photos),
		ByRule:      make(map[string]int),
		GroupByRule: make(map[string]int),
	}
	for _, p := range photos {
		if p.HasHashes {
			s.Hashed++
		}
	}
	for _, d := range decisions {
		s.ByRule[d.RuleName]++
		switch d.Decision {
		case DecisionReject:
			s.Rejected++
		case DecisionSeparate:
			s.Separated++
		}
	}

	groupIDs := make(map[int64]bool)
	for _, g := range groups {
		groupIDs[g.GroupID] = true
	}
	s.Groups = len(groupIDs)
	s.Grouped = len(groups)

	for _, r := range rejections {
		s.GroupByRule[r.RuleName]++
	}
	s.GroupRejected = len(rejections)

	s.Kept = s.Photos - s.Rejected - s.GroupRejected
	return s, nil
}
