package scoring

import (
	"context"

	id "ripple/pkg/domain"
	dErrors "ripple/pkg/domain-errors"
)

const propagationDivisor = 1.75

// PropagationScore weights how strongly trust propagates from current to
// target over the confirmed-trust graph: 1.0 for a direct edge, 0.5 over two
// hops, 0.25 over three, else 0. Levels are evaluated shortest-first so the
// best path always wins. The raw weight is normalized by min(raw/1.75, 1).
func (s *Service) PropagationScore(ctx context.Context, current, target id.PersonID) (float64, error) {
	if current.IsNil() || target.IsNil() {
		return 0, dErrors.New(dErrors.CodeValidation, "current and target person ids are required")
	}
	if current == target {
		return 0, dErrors.New(dErrors.CodeValidation, "current and target must differ")
	}

	adjacency, _, err := s.confirmedAdjacency(ctx)
	if err != nil {
		return 0, err
	}

	raw := 0.0
	switch hops := shortestHops(adjacency, current, target, 3); hops {
	case 1:
		raw = 1.0
	case 2:
		raw = 0.5
	case 3:
		raw = 0.25
	}
	s.observe("propagation")
	return capped(raw/propagationDivisor, 1), nil
}

// shortestHops is a breadth-first search over outgoing edges, bounded to
// maxHops. Returns 0 when the target is unreachable within the bound.
func shortestHops(adjacency map[id.PersonID][]id.PersonID, from, to id.PersonID, maxHops int) int {
	visited := map[id.PersonID]struct{}{from: {}}
	frontier := []id.PersonID{from}
	for depth := 1; depth <= maxHops; depth++ {
		var next []id.PersonID
		for _, node := range frontier {
			for _, neighbor := range adjacency[node] {
				if neighbor == to {
					return depth
				}
				if _, seen := visited[neighbor]; seen {
					continue
				}
				visited[neighbor] = struct{}{}
				next = append(next, neighbor)
			}
		}
		frontier = next
	}
	return 0
}
