package optim

import (
	"fmt"
	"math"
	"math/rand"
	"sort"

	"github.com/tabnet-ml/tabnet/internal/data"
	"github.com/tabnet-ml/tabnet/internal/device"
	"github.com/tabnet-ml/tabnet/internal/loss"
)

// FitnessSelection picks how parents are drawn from the population.
type FitnessSelection int

const (
	RouletteWheel FitnessSelection = iota
	RankBased
	Tournament
)

var fitnessSelectionNames = map[FitnessSelection]string{
	RouletteWheel: "RouletteWheel",
	RankBased:     "RankBased",
	Tournament:    "Tournament",
}

func (s FitnessSelection) String() string {
	if name, ok := fitnessSelectionNames[s]; ok {
		return name
	}
	return fmt.Sprintf("FitnessSelection(%d)", int(s))
}

// ParseFitnessSelection resolves a selection operator name.
func ParseFitnessSelection(name string) (FitnessSelection, bool) {
	for s, n := range fitnessSelectionNames {
		if n == name {
			return s, true
		}
	}
	return 0, false
}

// Recombination picks how two parents produce an offspring.
type Recombination int

const (
	Intermediate Recombination = iota
	Line
)

var recombinationNames = map[Recombination]string{
	Intermediate: "Intermediate",
	Line:         "Line",
}

func (r Recombination) String() string {
	if name, ok := recombinationNames[r]; ok {
		return name
	}
	return fmt.Sprintf("Recombination(%d)", int(r))
}

// ParseRecombination resolves a recombination operator name.
func ParseRecombination(name string) (Recombination, bool) {
	for r, n := range recombinationNames {
		if n == name {
			return r, true
		}
	}
	return 0, false
}

// Mutation picks the offspring perturbation distribution.
type Mutation int

const (
	NormalMutation Mutation = iota
	UniformMutation
)

var mutationNames = map[Mutation]string{
	NormalMutation:  "Normal",
	UniformMutation: "Uniform",
}

func (m Mutation) String() string {
	if name, ok := mutationNames[m]; ok {
		return name
	}
	return fmt.Sprintf("Mutation(%d)", int(m))
}

// ParseMutation resolves a mutation operator name.
func ParseMutation(name string) (Mutation, bool) {
	for m, n := range mutationNames {
		if n == name {
			return m, true
		}
	}
	return 0, false
}

// Evolutionary searches parameter space with a population instead of a
// gradient. Fitness is the negated training loss; the best individual is
// carried into the next generation unchanged.
type Evolutionary struct {
	Criteria Criteria
	Stop     *StopFlag

	PopulationSize int
	Selection      FitnessSelection
	Recombination  Recombination
	Mutation       Mutation
	MutationRate   float64
	MutationRange  float64
	Rng            *rand.Rand
}

const (
	defaultPopulationSize = 10
	defaultMutationRate   = 0.1
	defaultMutationRange  = 0.1
)

func (e *Evolutionary) Kind() Kind { return EvolutionaryKind }

func (e *Evolutionary) Perform(dev *device.Device, ix *loss.Index) (*TrainingResults, error) {
	if err := ix.Check(data.Training); err != nil {
		return nil, err
	}
	rng := e.Rng
	if rng == nil {
		rng = rand.New(rand.NewSource(1))
	}
	size := e.PopulationSize
	if size < 4 {
		size = defaultPopulationSize
	}
	mutationRate := e.MutationRate
	if mutationRate <= 0 {
		mutationRate = defaultMutationRate
	}
	mutationRange := e.MutationRange
	if mutationRange <= 0 {
		mutationRange = defaultMutationRange
	}

	network := ix.Network()
	hasSelection := hasSelectionSamples(ix)
	state := newEpochState(e.Criteria, e.Stop, hasSelection)

	// Seed the population around the network's current parameters.
	n := network.ParameterCount()
	population := make([][]float64, size)
	population[0] = network.Parameters()
	for i := 1; i < size; i++ {
		individual := network.Parameters()
		for j := range individual {
			individual[j] += rng.NormFloat64() * mutationRange
		}
		population[i] = individual
	}

	losses := make([]float64, size)
	for {
		best := 0
		for i, individual := range population {
			network.SetParameters(individual)
			losses[i] = ix.Loss(dev, data.Training)
			if math.IsNaN(losses[i]) {
				losses[i] = math.Inf(1)
			}
			if losses[i] < losses[best] {
				best = i
			}
		}

		network.SetParameters(population[best])
		state.record(losses[best], selectionLoss(dev, ix, hasSelection), math.NaN())
		if tag, done := state.shouldStop(losses[best], math.NaN()); done {
			return state.finish(ix, tag), nil
		}

		// Elitism: slot 0 of the next generation is the current best.
		next := make([][]float64, size)
		next[0] = append([]float64(nil), population[best]...)
		for i := 1; i < size; i++ {
			mother := population[e.selectParent(rng, losses)]
			father := population[e.selectParent(rng, losses)]
			child := e.recombine(rng, mother, father, n)
			e.mutate(rng, child, mutationRate, mutationRange)
			next[i] = child
		}
		population = next
	}
}

// selectParent draws one population index; lower loss means higher
// fitness.
func (e *Evolutionary) selectParent(rng *rand.Rand, losses []float64) int {
	switch e.Selection {
	case RouletteWheel:
		// Shift fitnesses to be positive before spinning.
		worst := 0.0
		for _, l := range losses {
			if finite(l) && l > worst {
				worst = l
			}
		}
		weights := make([]float64, len(losses))
		total := 0.0
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

	case RankBased:
		order := make([]int, len(losses))
		for i := range order {
			order[i] = i
		}
		sort.Slice(order, func(a, b int) bool { return losses[order[a]] < losses[order[b]] })
		// Rank r gets weight size-r; the best rank is the heaviest.
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

	case Tournament:
		a, b := rng.Intn(len(losses)), rng.Intn(len(losses))
		if losses[a] <= losses[b] {
			return a
		}
		return b
	}
	return rng.Intn(len(losses))
}

func (e *Evolutionary) recombine(rng *rand.Rand, mother, father []float64, n int) []float64 {
	child := make([]float64, n)
	switch e.Recombination {
	case Intermediate:
		// Per-gene blend with an independent mixing factor.
		for i := range child {
			a := rng.Float64()
			child[i] = a*mother[i] + (1-a)*father[i]
		}
	case Line:
		// One mixing factor along the segment between the parents.
		a := rng.Float64()
		for i := range child {
			child[i] = a*mother[i] + (1-a)*father[i]
		}
	}
	return child
}

func (e *Evolutionary) mutate(rng *rand.Rand, child []float64, rate, span float64) {
	for i := range child {
		if rng.Float64() >= rate {
			continue
		}
		switch e.Mutation {
		case NormalMutation:
			child[i] += rng.NormFloat64() * span
		case UniformMutation:
			child[i] += (2*rng.Float64() - 1) * span
		}
	}
}
