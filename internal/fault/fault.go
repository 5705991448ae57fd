// Package fault defines the error kinds shared across the library.
//
// Shape mismatches are programmer errors and panic at the tensor or layer
// level; everything here is a recoverable condition reported through error
// returns. Call sites wrap these sentinels with github.com/pkg/errors to
// attach the offending component and operation.
package fault

import "github.com/pkg/errors"

var (
	// ErrUnboundReference reports an operation invoked while a required
	// collaborator (network, data set, loss index, optimizer) is not bound.
	ErrUnboundReference = errors.New("unbound reference")

	// ErrEmptyPartition reports a required training, selection or testing
	// partition with no samples.
	ErrEmptyPartition = errors.New("empty partition")

	// ErrInvalidConfiguration reports an unknown enum name on load or a
	// numerically invalid parameter.
	ErrInvalidConfiguration = errors.New("invalid configuration")
)
