package domain

// ChannelPolicy selects how a column's channel is aligned onto the
// reference channel's arrival clock.
type ChannelPolicy int

const (
	// Synchronized channels share the reference channel's conversion
	// clock: the n-th sample on the channel belongs to the n-th
	// reference sample, matched by arrival index.
	Synchronized ChannelPolicy = iota
	// Interpolated channels are sampled on an unrelated clock and are
	// linearly interpolated between the two samples bracketing the row
	// timestamp. Values hold after the last sample and stay blank
	// before the first.
	Interpolated
	// Asynchronous channels are slow state reports: each row carries
	// the most recent sample at or before the row timestamp.
	Asynchronous
)

// Transform converts a raw channel value into its engineering unit.
type Transform func(float64) float64

// ComputedKind marks columns whose cells are produced by the output
// layer rather than resampled from a channel.
type ComputedKind int

const (
	ComputedNone ComputedKind = iota
	// ComputedElapsed is the row timestamp in seconds since the store
	// epoch. Always the first column.
	ComputedElapsed
	// ComputedNote repeats the operator note on every row.
	ComputedNote
)

// ColumnDefinition describes one output column: the channel it reads,
// how it is resampled and the transform applied to each cell.
type ColumnDefinition struct {
	Name        string
	ChannelPath string
	Policy      ChannelPolicy
	Transform   Transform
	Computed    ComputedKind
}

// Cell is one resampled value. Valid is false when the policy produced
// no value for the row, which renders as an empty CSV field.
type Cell struct {
	Value float64
	Valid bool
}

// VirtualRow is one fully aligned output row keyed by the elapsed time
// of its reference sample.
type VirtualRow struct {
	Elapsed float64
	Cells   []Cell
}
