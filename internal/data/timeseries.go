package data

import (
	"strconv"

	"github.com/pkg/errors"

	"github.com/tabnet-ml/tabnet/internal/fault"
	"github.com/tabnet-ml/tabnet/internal/tensor"
)

// LagWindow rebuilds a time-series set for forecasting. Each output row
// holds the input columns of the previous lags rows (oldest first) and
// targets the current row's target columns. Row order is preserved, and
// the first lags rows are consumed by window construction.
func (s *Set) LagWindow(lags int) (*Set, error) {
	if lags < 1 {
		return nil, errors.Wrapf(fault.ErrInvalidConfiguration, "data: lag count %d, want >= 1", lags)
	}
	n := s.Samples()
	if n <= lags {
		return nil, errors.Wrapf(fault.ErrInvalidConfiguration, "data: %d samples cannot fill a %d-lag window", n, lags)
	}

	inputs := s.InputIndices()
	targets := s.TargetIndices()
	cols := lags*len(inputs) + len(targets)

	values := tensor.New(tensor.Shape{n - lags, cols})
	for i := lags; i < n; i++ {
		row := values.Row(i - lags)
		k := 0
		for lag := lags; lag >= 1; lag-- {
			for _, j := range inputs {
				row[k] = s.values.At(i-lag, j)
				k++
			}
		}
		for _, j := range targets {
			row[k] = s.values.At(i, j)
			k++
		}
	}

	out, err := NewSet(values, len(targets))
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, cols)
	for lag := lags; lag >= 1; lag-- {
		for _, j := range inputs {
			names = append(names, s.variableNames[j]+"_lag_"+strconv.Itoa(lag))
		}
	}
	for _, j := range targets {
		names = append(names, s.variableNames[j])
	}
	if err := out.SetVariableNames(names); err != nil {
		return nil, err
	}
	return out, nil
}
