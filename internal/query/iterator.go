// Package query implements the pull-based physical operators (spec
// §4.4): table/index scan, filter, project, aggregate with optional
// grouping, and three physical joins (block nested-loop, index
// nested-loop, grace hash).
package query

import "github.com/relstore/pagedengine/internal/value"

// Iterator is the pull-based operator contract every physical operator
// implements: repeated Next/Tuple calls until Next returns false, then
// Err distinguishes end-of-input from failure.
type Iterator interface {
	Next() bool
	Tuple() []value.Value
	Attributes() value.Descriptor
	Err() error
	Close() error
}
