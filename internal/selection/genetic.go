package selection

import (
	"math"
	"math/rand"
	"sort"

	"github.com/tabnet-ml/tabnet/internal/device"
	"github.com/tabnet-ml/tabnet/internal/nn"
	"github.com/tabnet-ml/tabnet/internal/optim"
	"github.com/tabnet-ml/tabnet/internal/train"
)

// GeneticInputs evolves a population of binary input masks. Fitness is
// the negated selection loss of the retrained network; the best mask of
// each generation survives unchanged.
type GeneticInputs struct {
	PopulationSize int
	Generations    int
	Selection      optim.FitnessSelection
	MutationRate   float64
	Rng            *rand.Rand
}

const (
	defaultGeneticPopulation  = 10
	defaultGeneticGenerations = 10
	defaultGeneticMutation    = 0.1
)

func (g *GeneticInputs) Perform(dev *device.Device, strategy *train.Strategy, template *nn.Network) (*Results, error) {
	p, err := newInputsProblem(strategy, template, g.Rng)
	if err != nil {
		return nil, err
	}
	rng := p.r.rng

	size := g.PopulationSize
	if size < 4 {
		size = defaultGeneticPopulation
	}
	generations := g.Generations
	if generations < 1 {
		generations = defaultGeneticGenerations
	}
	mutationRate := g.MutationRate
	if mutationRate <= 0 {
		mutationRate = defaultGeneticMutation
	}

	genes := len(p.columns)
	population := make([][]bool, size)
	population[0] = fullMask(genes)
	for i := 1; i < size; i++ {
		population[i] = randomMask(rng, genes)
	}

	results := &Results{}
	losses := make([]float64, size)
	bestLoss := math.Inf(1)

	for generation := 0; generation < generations; generation++ {
		genBest := 0
		for i, mask := range population {
			trial, network := p.evaluate(dev, mask)
			results.Trials = append(results.Trials, trial)
			losses[i] = trial.SelectionLoss
			if losses[i] < losses[genBest] {
				genBest = i
			}
			if trial.SelectionLoss < bestLoss {
				bestLoss = trial.SelectionLoss
				results.BestIndex = len(results.Trials) - 1
				results.BestNetwork = network
			}
		}

		next := make([][]bool, size)
		next[0] = append([]bool(nil), population[genBest]...)
		for i := 1; i < size; i++ {
			mother := population[selectMaskParent(rng, g.Selection, losses)]
			father := population[selectMaskParent(rng, g.Selection, losses)]
			child := crossoverMasks(rng, mother, father)
			mutateMask(rng, child, mutationRate)
			next[i] = child
		}
		population = next
	}

	p.apply(results.Trials[results.BestIndex].InputMask)
	return results, nil
}

func randomMask(rng *rand.Rand, genes int) []bool {
	mask := make([]bool, genes)
	any := false
	for i := range mask {
		mask[i] = rng.Float64() < 0.5
		any = any || mask[i]
	}
	if !any {
		mask[rng.Intn(genes)] = true
	}
	return mask
}

// selectMaskParent mirrors the parameter-space operators over binary
// masks; lower loss means higher fitness.
func selectMaskParent(rng *rand.Rand, method optim.FitnessSelection, losses []float64) int {
	switch method {
	case optim.RouletteWheel:
		worst := 0.0
		for _, l := range losses {
			if finite(l) && l > worst {
				worst = l
			}
		}
		total := 0.0
		weights := make([]float64, len(losses))
		for i, l := range losses {
			if finite(l) {
				weights[i] = worst - l + 1e-12
			}
			total += weights[i]
		}
		if total <= 0 {
			return rng.Intn(len(losses))
		}
		spin := rng.Float64() * total
		for i, w := range weights {
			spin -= w
			if spin <= 0 {
				return i
			}
		}
		return len(losses) - 1

	case optim.RankBased:
		order := make([]int, len(losses))
		for i := range order {
			order[i] = i
		}
		sort.Slice(order, func(a, b int) bool { return losses[order[a]] < losses[order[b]] })
		size := len(order)
		total := size * (size + 1) / 2
		spin := rng.Intn(total)
		for r, idx := range order {
			spin -= size - r
			if spin < 0 {
				return idx
			}
		}
		return order[size-1]

	case optim.Tournament:
		a, b := rng.Intn(len(losses)), rng.Intn(len(losses))
		if losses[a] <= losses[b] {
			return a
		}
		return b
	}
	return rng.Intn(len(losses))
}

func crossoverMasks(rng *rand.Rand, mother, father []bool) []bool {
	child := make([]bool, len(mother))
	for i := range child {
		if rng.Float64() < 0.5 {
			child[i] = mother[i]
		} else {
			child[i] = father[i]
		}
	}
	return child
}

func mutateMask(rng *rand.Rand, mask []bool, rate float64) {
	for i := range mask {
		if rng.Float64() < rate {
			mask[i] = !mask[i]
		}
	}
}
