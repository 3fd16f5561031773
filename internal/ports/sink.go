package ports

import "github.com/Pyramid-Technical-Consultants/ic256-sampler-sub001/internal/domain"

// RowSink archives finished virtual rows outside the CSV file, for
// example into a relational table.
type RowSink interface {
	WriteRows(acquisitionID string, headers []string, rows []domain.VirtualRow) error
	Name() string
}
