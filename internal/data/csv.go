package data

import (
	"encoding/csv"
	"os"
	"strconv"

	"github.com/pkg/errors"

	"github.com/tabnet-ml/tabnet/internal/fault"
	"github.com/tabnet-ml/tabnet/internal/tensor"
)

// LoadCSVOptions controls CSV ingestion.
type LoadCSVOptions struct {
	Delimiter rune // Field delimiter (default ',').
	Header    bool // First row holds variable names.
	Targets   int  // Number of trailing target columns (default 1).
}

// LoadCSV reads a delimited tabular file into a Set. Every field must
// parse as a number; the last Targets columns become target variables.
func LoadCSV(path string, opts LoadCSVOptions) (*Set, error) {
	if opts.Delimiter == 0 {
		opts.Delimiter = ','
	}
	if opts.Targets == 0 {
		opts.Targets = 1
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "data: open csv")
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.Comma = opts.Delimiter
	records, err := reader.ReadAll()
	if err != nil {
		return nil, errors.Wrapf(err, "data: parse %s", path)
	}
	if len(records) == 0 {
		return nil, errors.Wrapf(fault.ErrInvalidConfiguration, "data: %s is empty", path)
	}

	var names []string
	if opts.Header {
		names = records[0]
		records = records[1:]
	}
	if len(records) == 0 {
		return nil, errors.Wrapf(fault.ErrInvalidConfiguration, "data: %s has a header but no rows", path)
	}

	cols := len(records[0])
	values := tensor.New(tensor.Shape{len(records), cols})
	for i, record := range records {
		if len(record) != cols {
			return nil, errors.Wrapf(fault.ErrInvalidConfiguration, "data: row %d has %d fields, want %d", i+1, len(record), cols)
		}
		row := values.Row(i)
		for j, field := range record {
			x, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return nil, errors.Wrapf(fault.ErrInvalidConfiguration, "data: row %d column %d: %q is not numeric", i+1, j+1, field)
			}
			row[j] = x
		}
	}

	set, err := NewSet(values, opts.Targets)
	if err != nil {
		return nil, err
	}
	if names != nil {
		if err := set.SetVariableNames(names); err != nil {
			return nil, err
		}
	}
	return set, nil
}
