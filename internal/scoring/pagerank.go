package scoring

import (
	"context"
	"math"
	"time"

	id "ripple/pkg/domain"
	dErrors "ripple/pkg/domain-errors"
)

const (
	defaultDamping   = 0.85
	defaultMaxIter   = 100
	defaultTolerance = 1e-6
)

// PageRankParams tune the power iteration. Zero values select the defaults.
type PageRankParams struct {
	Damping   float64 `json:"damping"`
	MaxIter   int     `json:"maxIter"`
	Tolerance float64 `json:"tolerance"`
}

func (p *PageRankParams) normalize() error {
	if p.Damping == 0 {
		p.Damping = defaultDamping
	}
	if p.Damping <= 0 || p.Damping >= 1 {
		return dErrors.New(dErrors.CodeValidation, "damping must be in (0,1)")
	}
	if p.MaxIter == 0 {
		p.MaxIter = defaultMaxIter
	}
	if p.MaxIter < 0 {
		return dErrors.New(dErrors.CodeValidation, "maxIter must be positive")
	}
	if p.Tolerance == 0 {
		p.Tolerance = defaultTolerance
	}
	if p.Tolerance < 0 {
		return dErrors.New(dErrors.CodeValidation, "tolerance must be positive")
	}
	return nil
}

// ComputePageRank runs power iteration over the confirmed-trust graph, kept as
// a sparse adjacency map so memory scales with edges, not node-count squared.
// Mass from dangling nodes is redistributed uniformly. The resulting ranks sum
// to ≈ 1.
func (s *Service) ComputePageRank(ctx context.Context, params PageRankParams) (map[id.PersonID]float64, error) {
	if err := params.normalize(); err != nil {
		return nil, err
	}
	if s.cache != nil {
		key := pagerankKey(params.Damping, params.MaxIter, params.Tolerance)
		cached := map[id.PersonID]float64{}
		if hit, err := s.cache.get(ctx, key, &cached); err == nil && hit {
			return cached, nil
		}
	}

	start := time.Now()
	adjacency, nodes, err := s.confirmedAdjacency(ctx)
	if err != nil {
		return nil, err
	}
	n := len(nodes)
	if n == 0 {
		return map[id.PersonID]float64{}, nil
	}

	rank := make(map[id.PersonID]float64, n)
	for node := range nodes {
		rank[node] = 1.0 / float64(n)
	}

	for iter := 0; iter < params.MaxIter; iter++ {
		next := make(map[id.PersonID]float64, n)
		base := (1 - params.Damping) / float64(n)
		for node := range nodes {
			next[node] = base
		}
		// Dangling nodes spread their mass over the whole graph.
		dangling := 0.0
		for node, r := range rank {
			targets := adjacency[node]
			if len(targets) == 0 {
				dangling += r
				continue
			}
			share := params.Damping * r / float64(len(targets))
			for _, target := range targets {
				next[target] += share
			}
		}
		if dangling > 0 {
			share := params.Damping * dangling / float64(n)
			for node := range next {
				next[node] += share
			}
		}

		delta := 0.0
		for node, r := range next {
			delta += math.Abs(r - rank[node])
		}
		rank = next
		if delta < params.Tolerance {
			break
		}
	}

	if s.metrics != nil {
		s.metrics.ObserveBatchLatency("pagerank", time.Since(start))
	}
	s.observe("pagerank")
	if s.cache != nil {
		key := pagerankKey(params.Damping, params.MaxIter, params.Tolerance)
		if err := s.cache.set(ctx, key, rank); err != nil {
			s.logger.Warn("pagerank cache write failed", "error", err)
		}
	}
	return rank, nil
}

// confirmedAdjacency loads the confirmed-trust graph as outgoing adjacency
// lists. Both endpoints of every edge are nodes even when one has no outgoing
// edges of its own.
func (s *Service) confirmedAdjacency(ctx context.Context) (map[id.PersonID][]id.PersonID, map[id.PersonID]struct{}, error) {
	edges, err := s.store.ListConfirmedTrustEdges(ctx)
	if err != nil {
		return nil, nil, dErrors.Wrap(err, dErrors.CodeInternal, "trust edge listing failed")
	}
	adjacency := make(map[id.PersonID][]id.PersonID)
	nodes := make(map[id.PersonID]struct{})
	for _, edge := range edges {
		adjacency[edge.From] = append(adjacency[edge.From], edge.To)
		nodes[edge.From] = struct{}{}
		nodes[edge.To] = struct{}{}
	}
	return adjacency, nodes, nil
}
