package resample

import (
	"github.com/Pyramid-Technical-Consultants/ic256-sampler-sub001/internal/domain"
	"github.com/Pyramid-Technical-Consultants/ic256-sampler-sub001/internal/store"
)

// Engine resamples every channel onto the reference channel's arrival
// clock. Each reference sample yields exactly one virtual row, built
// once and never revisited; cursors are absolute arrival indices so
// store pruning cannot shift them.
type Engine struct {
	store   *store.Store
	refPath string
	columns []domain.ColumnDefinition

	rows      []domain.VirtualRow
	refCursor int
	// cursors[i] is the absolute index of the newest sample at or
	// before the current row timestamp for interpolated and
	// asynchronous columns. -1 means no sample seen yet.
	cursors     []int
	lastElapsed float64
}

func NewEngine(s *store.Store, refPath string, columns []domain.ColumnDefinition) *Engine {
	cursors := make([]int, len(columns))
	for i := range cursors {
		cursors[i] = -1
	}
	return &Engine{store: s, refPath: refPath, columns: columns, cursors: cursors}
}

// Headers lists the column names in file order.
func (e *Engine) Headers() []string {
	h := make([]string, len(e.columns))
	for i, c := range e.columns {
		h[i] = c.Name
	}
	return h
}

// Columns returns the column definitions in file order.
func (e *Engine) Columns() []domain.ColumnDefinition { return e.columns }

func (e *Engine) Rows() []domain.VirtualRow { return e.rows }
func (e *Engine) RowCount() int             { return len(e.rows) }
func (e *Engine) LastElapsed() float64      { return e.lastElapsed }

// Rebuild consumes every reference sample that arrived since the last
// call and appends one virtual row per sample. It returns the number of
// rows added.
func (e *Engine) Rebuild() int {
	refPts, refDropped := e.store.View(e.refPath)
	startNS := e.store.StartNS()
	added := 0
	for abs := e.refCursor; abs < refDropped+len(refPts); abs++ {
		idx := abs - refDropped
		if idx < 0 {
			// Reference samples pruned before they were built cannot
			// be reconstructed; skip to the oldest retained one.
			continue
		}
		rowNS := refPts[idx].TimestampNS
		row := domain.VirtualRow{
			Elapsed: float64(rowNS-startNS) / 1e9,
			Cells:   make([]domain.Cell, len(e.columns)),
		}
		for i, col := range e.columns {
			if col.Computed != domain.ComputedNone {
				continue
			}
			switch col.Policy {
			case domain.Synchronized:
				row.Cells[i] = e.synchronizedCell(col, abs)
			case domain.Interpolated:
				row.Cells[i] = e.interpolatedCell(col, i, rowNS)
			case domain.Asynchronous:
				row.Cells[i] = e.asynchronousCell(col, i, rowNS)
			}
		}
		e.rows = append(e.rows, row)
		e.lastElapsed = row.Elapsed
		added++
	}
	e.refCursor = refDropped + len(refPts)
	return added
}

// synchronizedCell matches by arrival index: the abs-th conversion on
// the reference clock is the abs-th sample on the channel. A channel
// running behind leaves a standing gap.
func (e *Engine) synchronizedCell(col domain.ColumnDefinition, abs int) domain.Cell {
	pts, dropped := e.store.View(col.ChannelPath)
	idx := abs - dropped
	if len(pts) == 0 || idx >= len(pts) {
		return domain.Cell{}
	}
	if idx < 0 {
		idx = 0
	}
	return domain.Cell{Value: e.apply(col, pts[idx].Value), Valid: true}
}

func (e *Engine) interpolatedCell(col domain.ColumnDefinition, ci int, rowNS int64) domain.Cell {
	pts, dropped := e.store.View(col.ChannelPath)
	if len(pts) == 0 {
		return domain.Cell{}
	}
	cur := e.advance(ci, pts, dropped, rowNS)
	if cur < 0 {
		return domain.Cell{}
	}
	idx := cur - dropped
	if idx < 0 {
		idx = 0
	}
	if idx+1 >= len(pts) {
		// Hold the last known value until a newer sample arrives.
		return domain.Cell{Value: e.apply(col, pts[idx].Value), Valid: true}
	}
	a, b := pts[idx], pts[idx+1]
	if b.TimestampNS == a.TimestampNS {
		return domain.Cell{Value: e.apply(col, b.Value), Valid: true}
	}
	frac := float64(rowNS-a.TimestampNS) / float64(b.TimestampNS-a.TimestampNS)
	return domain.Cell{Value: e.apply(col, a.Value+frac*(b.Value-a.Value)), Valid: true}
}

// asynchronousCell forward-fills the newest sample at or before the row
// timestamp. Once a value exists the column never goes blank again.
func (e *Engine) asynchronousCell(col domain.ColumnDefinition, ci int, rowNS int64) domain.Cell {
	pts, dropped := e.store.View(col.ChannelPath)
	if len(pts) == 0 {
		return domain.Cell{}
	}
	cur := e.advance(ci, pts, dropped, rowNS)
	if cur < 0 {
		return domain.Cell{}
	}
	idx := cur - dropped
	if idx < 0 {
		idx = 0
	}
	return domain.Cell{Value: e.apply(col, pts[idx].Value), Valid: true}
}

// advance moves column ci's cursor to the newest sample with timestamp
// at or before rowNS and returns the cursor's absolute index.
func (e *Engine) advance(ci int, pts []domain.DataPoint, dropped int, rowNS int64) int {
	cur := e.cursors[ci]
	for {
		next := cur + 1 - dropped
		if next < 0 {
			cur = dropped
			continue
		}
		if next >= len(pts) || pts[next].TimestampNS > rowNS {
			break
		}
		cur++
	}
	e.cursors[ci] = cur
	return cur
}

func (e *Engine) apply(col domain.ColumnDefinition, v float64) float64 {
	if col.Transform != nil {
		return col.Transform(v)
	}
	return v
}
