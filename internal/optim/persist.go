package optim

import (
	"encoding/json"
	"time"

	"github.com/pkg/errors"

	"github.com/tabnet-ml/tabnet/internal/fault"
)

// Algorithm documents carry the configuration under an
// OptimizationAlgorithm root element, tagged by kind. Runtime-only state
// (stop flags, random sources, moment estimates) is not persisted.

type algorithmDocument struct {
	Algorithm algorithmRecord `json:"OptimizationAlgorithm"`
}

type algorithmRecord struct {
	Type     string         `json:"Type"`
	Criteria criteriaRecord `json:"Criteria"`

	LineSearch *lineSearchRecord `json:"LineSearch,omitempty"`

	TrainingRate    float64 `json:"TrainingRate,omitempty"`
	Momentum        float64 `json:"Momentum,omitempty"`
	BatchSize       int     `json:"BatchSize,omitempty"`
	Beta1           float64 `json:"Beta1,omitempty"`
	Beta2           float64 `json:"Beta2,omitempty"`
	Epsilon         float64 `json:"Epsilon,omitempty"`
	Direction       string  `json:"Direction,omitempty"`
	RestartInterval int     `json:"RestartInterval,omitempty"`
	Update          string  `json:"Update,omitempty"`

	InitialDamping float64 `json:"InitialDamping,omitempty"`
	DampingFactor  float64 `json:"DampingFactor,omitempty"`
	MinimumDamping float64 `json:"MinimumDamping,omitempty"`
	MaximumDamping float64 `json:"MaximumDamping,omitempty"`

	PopulationSize int     `json:"PopulationSize,omitempty"`
	Selection      string  `json:"Selection,omitempty"`
	Recombination  string  `json:"Recombination,omitempty"`
	Mutation       string  `json:"Mutation,omitempty"`
	MutationRate   float64 `json:"MutationRate,omitempty"`
	MutationRange  float64 `json:"MutationRange,omitempty"`
}

type criteriaRecord struct {
	LossGoal             float64 `json:"LossGoal,omitempty"`
	GradientNormGoal     float64 `json:"GradientNormGoal,omitempty"`
	MaxSelectionFailures int     `json:"MaxSelectionFailures,omitempty"`
	MaxEpochs            int     `json:"MaxEpochs,omitempty"`
	MaxTimeSeconds       float64 `json:"MaxTimeSeconds,omitempty"`
	Display              bool    `json:"Display,omitempty"`
	DisplayPeriod        int     `json:"DisplayPeriod,omitempty"`
}

type lineSearchRecord struct {
	TrainingRateMax         float64 `json:"TrainingRateMax,omitempty"`
	RateTolerance           float64 `json:"RateTolerance,omitempty"`
	MaxBracketingIterations int     `json:"MaxBracketingIterations,omitempty"`
	FallbackRate            float64 `json:"FallbackRate,omitempty"`
}

func criteriaToRecord(c Criteria) criteriaRecord {
	return criteriaRecord{
		LossGoal:             c.LossGoal,
		GradientNormGoal:     c.GradientNormGoal,
		MaxSelectionFailures: c.MaxSelectionFailures,
		MaxEpochs:            c.MaxEpochs,
		MaxTimeSeconds:       c.MaxTime.Seconds(),
		Display:              c.Display,
		DisplayPeriod:        c.DisplayPeriod,
	}
}

func (r criteriaRecord) toCriteria() Criteria {
	return Criteria{
		LossGoal:             r.LossGoal,
		GradientNormGoal:     r.GradientNormGoal,
		MaxSelectionFailures: r.MaxSelectionFailures,
		MaxEpochs:            r.MaxEpochs,
		MaxTime:              time.Duration(r.MaxTimeSeconds * float64(time.Second)),
		Display:              r.Display,
		DisplayPeriod:        r.DisplayPeriod,
	}
}

func lineSearchToRecord(ls LineSearch) *lineSearchRecord {
	if ls == (LineSearch{}) {
		return nil
	}
	return &lineSearchRecord{
		TrainingRateMax:         ls.TrainingRateMax,
		RateTolerance:           ls.RateTolerance,
		MaxBracketingIterations: ls.MaxBracketingIterations,
		FallbackRate:            ls.FallbackRate,
	}
}

func (r *lineSearchRecord) toLineSearch() LineSearch {
	if r == nil {
		return LineSearch{}
	}
	return LineSearch{
		TrainingRateMax:         r.TrainingRateMax,
		RateTolerance:           r.RateTolerance,
		MaxBracketingIterations: r.MaxBracketingIterations,
		FallbackRate:            r.FallbackRate,
	}
}

// MarshalAlgorithm serializes any algorithm's configuration.
func MarshalAlgorithm(a Algorithm) ([]byte, error) {
	rec := algorithmRecord{Type: a.Kind().String()}
	switch alg := a.(type) {
	case *GradientDescent:
		rec.Criteria = criteriaToRecord(alg.Criteria)
		rec.LineSearch = lineSearchToRecord(alg.LineSearch)
		rec.TrainingRate = alg.TrainingRate
	case *ConjugateGradient:
		rec.Criteria = criteriaToRecord(alg.Criteria)
		rec.LineSearch = lineSearchToRecord(alg.LineSearch)
		rec.Direction = alg.Direction.String()
		rec.RestartInterval = alg.RestartInterval
	case *QuasiNewton:
		rec.Criteria = criteriaToRecord(alg.Criteria)
		rec.LineSearch = lineSearchToRecord(alg.LineSearch)
		rec.Update = alg.Update.String()
	case *LevenbergMarquardt:
		rec.Criteria = criteriaToRecord(alg.Criteria)
		rec.InitialDamping = alg.InitialDamping
		rec.DampingFactor = alg.DampingFactor
		rec.MinimumDamping = alg.MinimumDamping
		rec.MaximumDamping = alg.MaximumDamping
	case *StochasticGradientDescent:
		rec.Criteria = criteriaToRecord(alg.Criteria)
		rec.TrainingRate = alg.TrainingRate
		rec.Momentum = alg.Momentum
		rec.BatchSize = alg.BatchSize
	case *AdaptiveMomentEstimation:
		rec.Criteria = criteriaToRecord(alg.Criteria)
		rec.TrainingRate = alg.TrainingRate
		rec.Beta1 = alg.Beta1
		rec.Beta2 = alg.Beta2
		rec.Epsilon = alg.Epsilon
		rec.BatchSize = alg.BatchSize
	case *Evolutionary:
		rec.Criteria = criteriaToRecord(alg.Criteria)
		rec.PopulationSize = alg.PopulationSize
		rec.Selection = alg.Selection.String()
		rec.Recombination = alg.Recombination.String()
		rec.Mutation = alg.Mutation.String()
		rec.MutationRate = alg.MutationRate
		rec.MutationRange = alg.MutationRange
	default:
		return nil, errors.Wrapf(fault.ErrInvalidConfiguration, "optim: cannot serialize %T", a)
	}
	return json.Marshal(algorithmDocument{Algorithm: rec})
}

// UnmarshalAlgorithm rebuilds an algorithm from its document.
func UnmarshalAlgorithm(raw []byte) (Algorithm, error) {
	var doc algorithmDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, errors.Wrap(err, "optim: parse OptimizationAlgorithm document")
	}
	rec := doc.Algorithm

	kind, ok := ParseKind(rec.Type)
	if !ok {
		return nil, errors.Wrapf(fault.ErrInvalidConfiguration, "optim: unknown algorithm %q", rec.Type)
	}
	criteria := rec.Criteria.toCriteria()

	switch kind {
	case GradientDescentKind:
		return &GradientDescent{
			Criteria:     criteria,
			LineSearch:   rec.LineSearch.toLineSearch(),
			TrainingRate: rec.TrainingRate,
		}, nil
	case ConjugateGradientKind:
		direction, ok := ParseTrainingDirection(rec.Direction)
		if !ok {
			return nil, errors.Wrapf(fault.ErrInvalidConfiguration, "optim: unknown training direction %q", rec.Direction)
		}
		return &ConjugateGradient{
			Criteria:        criteria,
			LineSearch:      rec.LineSearch.toLineSearch(),
			Direction:       direction,
			RestartInterval: rec.RestartInterval,
		}, nil
	case QuasiNewtonKind:
		update, ok := ParseInverseHessianUpdate(rec.Update)
		if !ok {
			return nil, errors.Wrapf(fault.ErrInvalidConfiguration, "optim: unknown inverse Hessian update %q", rec.Update)
		}
		return &QuasiNewton{
			Criteria:   criteria,
			LineSearch: rec.LineSearch.toLineSearch(),
			Update:     update,
		}, nil
	case LevenbergMarquardtKind:
		return &LevenbergMarquardt{
			Criteria:       criteria,
			InitialDamping: rec.InitialDamping,
			DampingFactor:  rec.DampingFactor,
			MinimumDamping: rec.MinimumDamping,
			MaximumDamping: rec.MaximumDamping,
		}, nil
	case StochasticGradientDescentKind:
		return &StochasticGradientDescent{
			Criteria:     criteria,
			TrainingRate: rec.TrainingRate,
			Momentum:     rec.Momentum,
			BatchSize:    rec.BatchSize,
		}, nil
	case AdaptiveMomentEstimationKind:
		return &AdaptiveMomentEstimation{
			Criteria:     criteria,
			TrainingRate: rec.TrainingRate,
			Beta1:        rec.Beta1,
			Beta2:        rec.Beta2,
			Epsilon:      rec.Epsilon,
			BatchSize:    rec.BatchSize,
		}, nil
	case EvolutionaryKind:
		selection, ok := ParseFitnessSelection(rec.Selection)
		if !ok {
			return nil, errors.Wrapf(fault.ErrInvalidConfiguration, "optim: unknown fitness selection %q", rec.Selection)
		}
		recombination, ok := ParseRecombination(rec.Recombination)
		if !ok {
			return nil, errors.Wrapf(fault.ErrInvalidConfiguration, "optim: unknown recombination %q", rec.Recombination)
		}
		mutation, ok := ParseMutation(rec.Mutation)
		if !ok {
			return nil, errors.Wrapf(fault.ErrInvalidConfiguration, "optim: unknown mutation %q", rec.Mutation)
		}
		return &Evolutionary{
			Criteria:       criteria,
			PopulationSize: rec.PopulationSize,
			Selection:      selection,
			Recombination:  recombination,
			Mutation:       mutation,
			MutationRate:   rec.MutationRate,
			MutationRange:  rec.MutationRange,
		}, nil
	}
	return nil, errors.Wrapf(fault.ErrInvalidConfiguration, "optim: unhandled algorithm %q", rec.Type)
}
