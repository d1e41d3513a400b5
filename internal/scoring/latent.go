package scoring

import (
	"context"
	"math/rand"
	"sort"
	"time"

	id "ripple/pkg/domain"
	dErrors "ripple/pkg/domain-errors"
)

const (
	defaultFactors   = 8
	defaultSteps     = 200
	defaultLearnRate = 0.01
	defaultLambda    = 0.02
	defaultTopN      = 20

	// maxPredictionNodes bounds the candidate scan, which is quadratic in node
	// count. Larger graphs need a sampled or incremental method first.
	maxPredictionNodes = 500

	latentSeed = 42
)

// PredictionParams tune the latent-factor model. Zero values select the
// defaults.
type PredictionParams struct {
	Factors   int     `json:"k"`
	Steps     int     `json:"steps"`
	LearnRate float64 `json:"learningRate"`
	Lambda    float64 `json:"lambda"`
	TopN      int     `json:"topN"`
}

func (p *PredictionParams) normalize() error {
	if p.Factors == 0 {
		p.Factors = defaultFactors
	}
	if p.Steps == 0 {
		p.Steps = defaultSteps
	}
	if p.LearnRate == 0 {
		p.LearnRate = defaultLearnRate
	}
	if p.Lambda == 0 {
		p.Lambda = defaultLambda
	}
	if p.TopN == 0 {
		p.TopN = defaultTopN
	}
	if p.Factors < 0 || p.Steps < 0 || p.LearnRate <= 0 || p.Lambda < 0 || p.TopN < 0 {
		return dErrors.New(dErrors.CodeValidation, "prediction parameters must be positive")
	}
	return nil
}

// PredictedEdge is a candidate trust edge the model expects to exist.
type PredictedEdge struct {
	From  id.PersonID `json:"from"`
	To    id.PersonID `json:"to"`
	Score float64     `json:"score"`
}

// PredictMissingTrustEdges factorizes the confirmed-trust adjacency into
// per-person latent vectors P (as source) and Q (as target) via stochastic
// gradient descent, training only on existing edges. Absent non-self pairs are
// scored P[u]·Q[v] and the topN highest returned, sorted descending.
//
// Initialization is deterministically seeded, so repeated calls over the same
// graph produce the same ranking.
func (s *Service) PredictMissingTrustEdges(ctx context.Context, params PredictionParams) ([]PredictedEdge, error) {
	if err := params.normalize(); err != nil {
		return nil, err
	}
	if s.cache != nil {
		key := predictionKey(params.Factors, params.Steps, params.TopN, params.LearnRate, params.Lambda)
		var cached []PredictedEdge
		if hit, err := s.cache.get(ctx, key, &cached); err == nil && hit {
			return cached, nil
		}
	}

	start := time.Now()
	adjacency, nodeSet, err := s.confirmedAdjacency(ctx)
	if err != nil {
		return nil, err
	}
	if len(nodeSet) > maxPredictionNodes {
		return nil, dErrors.Newf(dErrors.CodeValidation,
			"graph too large for prediction: %d nodes (max %d)", len(nodeSet), maxPredictionNodes)
	}

	nodes := make([]id.PersonID, 0, len(nodeSet))
	for node := range nodeSet {
		nodes = append(nodes, node)
	}
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].String() < nodes[j].String() })

	rng := rand.New(rand.NewSource(latentSeed))
	p := make(map[id.PersonID][]float64, len(nodes))
	q := make(map[id.PersonID][]float64, len(nodes))
	for _, node := range nodes {
		p[node] = randomVector(rng, params.Factors)
		q[node] = randomVector(rng, params.Factors)
	}

	type edge struct{ from, to id.PersonID }
	var edges []edge
	existing := make(map[edge]struct{})
	for _, from := range nodes {
		for _, to := range adjacency[from] {
			e := edge{from, to}
			if _, dup := existing[e]; dup {
				continue
			}
			existing[e] = struct{}{}
			edges = append(edges, e)
		}
	}

	// Positive-only SGD: every confirmed edge is a 1.0 observation; absent
	// pairs contribute no gradient.
	for step := 0; step < params.Steps; step++ {
		for _, e := range edges {
			pu, qv := p[e.from], q[e.to]
			pred := dot(pu, qv)
			errTerm := 1.0 - pred
			for f := 0; f < params.Factors; f++ {
				puf, qvf := pu[f], qv[f]
				pu[f] += params.LearnRate * (errTerm*qvf - params.Lambda*puf)
				qv[f] += params.LearnRate * (errTerm*puf - params.Lambda*qvf)
			}
		}
	}

	var predictions []PredictedEdge
	for _, from := range nodes {
		for _, to := range nodes {
			if from == to {
				continue
			}
			if _, known := existing[edge{from, to}]; known {
				continue
			}
			predictions = append(predictions, PredictedEdge{
				From:  from,
				To:    to,
				Score: dot(p[from], q[to]),
			})
		}
	}
	sort.SliceStable(predictions, func(i, j int) bool { return predictions[i].Score > predictions[j].Score })
	if len(predictions) > params.TopN {
		predictions = predictions[:params.TopN]
	}

	if s.metrics != nil {
		s.metrics.ObserveBatchLatency("prediction", time.Since(start))
	}
	s.observe("prediction")
	if s.cache != nil {
		key := predictionKey(params.Factors, params.Steps, params.TopN, params.LearnRate, params.Lambda)
		if err := s.cache.set(ctx, key, predictions); err != nil {
			s.logger.Warn("prediction cache write failed", "error", err)
		}
	}
	return predictions, nil
}

func randomVector(rng *rand.Rand, k int) []float64 {
	v := make([]float64, k)
	for i := range v {
		v[i] = rng.Float64() * 0.1
	}
	return v
}

func dot(a, b []float64) float64 {
	sum := 0.0
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}
