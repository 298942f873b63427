package nodes

import (
	"context"
	"math"
	"sort"
	"strconv"
	"sync"

	"github.com/evobeam/ebs-go/ebs"
	"github.com/evobeam/ebs-go/graph"
	"github.com/evobeam/ebs-go/graph/model"
	"github.com/evobeam/ebs-go/mathengine"
)

// Evolution is the heart of the graph: it embeds strategies missing an
// embedding, estimates density over the active population, derives an
// effective temperature from the value/density relationship, ranks
// strategies by UCB score, and distributes the child budget across them
// via Boltzmann allocation. It never hard-prunes.
type Evolution struct {
	Embedder model.Embedder
}

// NewEvolution constructs an Evolution node backed by the given embedder.
func NewEvolution(embedder model.Embedder) *Evolution {
	return &Evolution{Embedder: embedder}
}

// Run implements graph.Node.
func (n *Evolution) Run(ctx context.Context, state ebs.RunState) graph.NodeResult[ebs.RunState] {
	strategies := cloneStrategies(state.Strategies)

	n.embedMissing(ctx, strategies, state.Config.MaxConcurrentCalls)

	active := activeFrom(strategies)

	if len(active) > 0 {
		n.computeDensities(active)
	}

	values := make([]float64, len(active))
	logDensity := make([]float64, len(active))
	for i, s := range active {
		v := s.Score
		if v == 0 {
			v = 0.5
		}
		values[i] = v
		logDensity[i] = s.LogDensity
	}

	tEff := mathengine.EffectiveTemperature(values, logDensity)
	tMax := state.Config.TMax
	if tMax <= 0 {
		tMax = 2.0
	}
	tau := mathengine.NormalizedTemperature(tEff, tMax)

	densities := make([]float64, len(active))
	for i, s := range active {
		densities[i] = s.Density
	}
	ucb := mathengine.BatchUCBScore(values, densities, tau, cOrDefault(state.Config.CExplore))
	for i, s := range active {
		s.UCBScore = ucb[i]
	}

	budget := state.Config.TotalChildBudget
	if budget <= 0 {
		budget = 6
	}
	rng := mathengine.SeedFromRunID(runIDFrom(ctx) + ":" + itoa(state.IterationCount))
	quotas := mathengine.BoltzmannAllocation(values, tEff, budget, rng, 0)
	for i, s := range active {
		q := quotas[i]
		if state.Config.BeamWidth > 0 {
			q = mathengine.ClampBeamWidth(q, state.Config.BeamWidth)
		}
		s.ChildQuota = q
	}

	var spatialEntropy float64
	if len(active) > 0 {
		var sum float64
		for _, lp := range logDensity {
			sum += lp
		}
		spatialEntropy = -sum / float64(len(active))
	}

	delta := ebs.RunState{
		Strategies:            strategies,
		EffectiveTemperature:  tEff,
		NormalizedTemperature: tau,
		SpatialEntropy:        spatialEntropy,
		PrevSpatialEntropy:    state.SpatialEntropy,
		HasPrevSpatialEntropy: true,
		IterationCount:        state.IterationCount + 1,
		History:               []string{"[Evolution] iteration " + itoa(state.IterationCount+1) + " T_eff=" + floatStr(tEff) + " tau=" + floatStr(tau)},
	}

	// The next hop depends on convergence, evaluated by the registered
	// should_continue edge (ShouldContinue) rather than decided here:
	// continuing routes to Propagation, converging routes to the
	// terminal node.
	return graph.NodeResult[ebs.RunState]{Delta: delta}
}

func cOrDefault(c float64) float64 {
	if c == 0 {
		return 1.0
	}
	return c
}

func activeFrom(strategies map[string]*ebs.Strategy) []*ebs.Strategy {
	out := make([]*ebs.Strategy, 0, len(strategies))
	for _, s := range strategies {
		if s.IsActive() {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// embedMissing assigns an embedding to every active strategy missing one,
// fanned out over a bounded worker pool since embedding calls are the
// node's natural parallelism point.
func (n *Evolution) embedMissing(ctx context.Context, strategies map[string]*ebs.Strategy, maxConcurrent int) {
	if n.Embedder == nil {
		return
	}
	if maxConcurrent <= 0 {
		maxConcurrent = 4
	}

	var toEmbed []*ebs.Strategy
	for _, s := range strategies {
		if s.IsActive() && s.Embedding == nil {
			toEmbed = append(toEmbed, s)
		}
	}
	if len(toEmbed) == 0 {
		return
	}

	sem := make(chan struct{}, maxConcurrent)
	var wg sync.WaitGroup
	for _, s := range toEmbed {
		wg.Add(1)
		sem <- struct{}{}
		go func(s *ebs.Strategy) {
			defer wg.Done()
			defer func() { <-sem }()
			text := s.Name + "\n" + s.Rationale + "\n" + s.Assumption
			vec, err := n.Embedder.Embed(ctx, text)
			if err != nil || len(vec) == 0 {
				s.Status = ebs.StatusPrunedError
				return
			}
			s.Embedding = vec
		}(s)
	}
	wg.Wait()
}

// computeDensities runs KDE over the active, successfully-embedded
// population and writes Density/LogDensity on each strategy.
func (n *Evolution) computeDensities(active []*ebs.Strategy) {
	var valid []*ebs.Strategy
	x := make([][]float64, 0, len(active))
	for _, s := range active {
		if len(s.Embedding) == 0 {
			continue
		}
		valid = append(valid, s)
		x = append(x, s.Embedding)
	}
	if len(valid) == 0 {
		return
	}

	_, logDensity := mathengine.ComputeKDE(x)
	for i, s := range valid {
		s.LogDensity = logDensity[i]
		s.Density = math.Exp(logDensity[i])
	}
}

func runIDFrom(ctx context.Context) string {
	v := ctx.Value(graph.RunIDKey)
	if id, ok := v.(string); ok {
		return id
	}
	return "run"
}

func floatStr(f float64) string {
	if math.IsInf(f, 1) {
		return "+Inf"
	}
	if math.IsInf(f, -1) {
		return "-Inf"
	}
	return strconv.FormatFloat(f, 'f', 4, 64)
}
