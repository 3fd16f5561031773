package ports

import "github.com/Pyramid-Technical-Consultants/ic256-sampler-sub001/internal/domain"

// DeviceModel describes one instrument type: the channels it exposes,
// the output columns built from them and the setup writes that arm the
// instrument for acquisition.
type DeviceModel interface {
	// Columns lists the output columns in file order, computed columns
	// included.
	Columns() []domain.ColumnDefinition
	// ReferenceChannel is the path whose arrival clock paces the
	// virtual rows.
	ReferenceChannel() string
	// FieldPaths maps every subscribed path to the column it feeds.
	FieldPaths() map[string]string
	// SetupDevice configures acquisition mode and rate on the
	// instrument and enables its converters.
	SetupDevice(s WireSession, rateHz int) error
}
