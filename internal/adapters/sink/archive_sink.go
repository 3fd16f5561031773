package sink

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/Pyramid-Technical-Consultants/ic256-sampler-sub001/internal/domain"
	"github.com/Pyramid-Technical-Consultants/ic256-sampler-sub001/internal/ports"
)

// ArchiveSink mirrors finished virtual rows into a Postgres table so
// acquisitions can be queried without parsing CSV files.
type ArchiveSink struct {
	db        *sql.DB
	tableName string
}

func NewArchiveSink(db *sql.DB, table string) *ArchiveSink {
	return &ArchiveSink{db: db, tableName: table}
}

func (a *ArchiveSink) Name() string { return "postgres" }

// WriteRows inserts one batch. The unique key on (acquisition_id,
// elapsed_s) makes replays after a retry idempotent.
func (a *ArchiveSink) WriteRows(acquisitionID string, headers []string, rows []domain.VirtualRow) error {
	if len(rows) == 0 {
		return nil
	}

	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(a.tableName)
	b.WriteString(" (acquisition_id, elapsed_s, cells) VALUES ")

	args := make([]any, 0, len(rows)*3)
	for i, row := range rows {
		if i > 0 {
			b.WriteString(",")
		}
		b.WriteString(fmt.Sprintf("($%d,$%d,$%d)", len(args)+1, len(args)+2, len(args)+3))
		cells, err := json.Marshal(rowCells(headers, row))
		if err != nil {
			return fmt.Errorf("marshal cells: %w", err)
		}
		args = append(args, acquisitionID, row.Elapsed, cells)
	}

	b.WriteString(" ON CONFLICT (acquisition_id, elapsed_s) DO NOTHING")

	_, err := a.db.Exec(b.String(), args...)
	return err
}

// rowCells keys each valid cell by its column header. Blank cells are
// omitted so the JSON mirrors the CSV's empty fields.
func rowCells(headers []string, row domain.VirtualRow) map[string]float64 {
	cells := make(map[string]float64, len(row.Cells))
	for i, cell := range row.Cells {
		if i >= len(headers) || !cell.Valid {
			continue
		}
		cells[headers[i]] = cell.Value
	}
	return cells
}

var _ ports.RowSink = (*ArchiveSink)(nil)
