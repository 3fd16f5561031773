package resample

import (
	"math"
	"testing"

	"github.com/Pyramid-Technical-Consultants/ic256-sampler-sub001/internal/domain"
	"github.com/Pyramid-Technical-Consultants/ic256-sampler-sub001/internal/store"
)

const ref = "ref/value"

func cols(defs ...domain.ColumnDefinition) []domain.ColumnDefinition {
	base := []domain.ColumnDefinition{{Name: "Reference", ChannelPath: ref, Policy: domain.Synchronized}}
	return append(base, defs...)
}

func TestRebuildOneRowPerReferenceSample(t *testing.T) {
	s := store.New()
	e := NewEngine(s, ref, cols())
	for i := 0; i < 3; i++ {
		s.AddSample(ref, float64(i), int64(i+1)*1e9)
	}
	if added := e.Rebuild(); added != 3 {
		t.Fatalf("added = %d, want 3", added)
	}
	if added := e.Rebuild(); added != 0 {
		t.Fatalf("second rebuild added %d rows, want 0", added)
	}
	s.AddSample(ref, 3.0, 5e9)
	if added := e.Rebuild(); added != 1 {
		t.Fatalf("incremental rebuild added %d rows, want 1", added)
	}
	rows := e.Rows()
	if rows[0].Elapsed != 0 || rows[3].Elapsed != 4.0 {
		t.Fatalf("elapsed = %v, %v; want 0 and 4", rows[0].Elapsed, rows[3].Elapsed)
	}
}

func TestElapsedStrictlyIncreasesAcrossRebuilds(t *testing.T) {
	s := store.New()
	e := NewEngine(s, ref, cols())
	ts := int64(1e9)
	for batch := 0; batch < 5; batch++ {
		for i := 0; i < 10; i++ {
			ts += int64(1+i%3) * 1e6
			s.AddSample(ref, float64(ts), ts)
		}
		e.Rebuild()
	}
	rows := e.Rows()
	if len(rows) != 50 {
		t.Fatalf("row count = %d, want 50", len(rows))
	}
	for i := 1; i < len(rows); i++ {
		if rows[i].Elapsed <= rows[i-1].Elapsed {
			t.Fatalf("elapsed not strictly increasing at row %d: %v then %v",
				i, rows[i-1].Elapsed, rows[i].Elapsed)
		}
	}
}

func TestSynchronizedMatchesByArrivalIndex(t *testing.T) {
	s := store.New()
	e := NewEngine(s, ref, cols(domain.ColumnDefinition{
		Name: "Ch1", ChannelPath: "ch1/value", Policy: domain.Synchronized,
	}))
	// ch1 timestamps are skewed from the reference clock; index wins.
	s.AddSample(ref, 10.0, 1e9)
	s.AddSample("ch1/value", 100.0, 1e9+7e6)
	s.AddSample(ref, 11.0, 2e9)
	s.AddSample("ch1/value", 101.0, 2e9+7e6)
	e.Rebuild()
	rows := e.Rows()
	if rows[0].Cells[1].Value != 100.0 || rows[1].Cells[1].Value != 101.0 {
		t.Fatalf("unexpected cells %v %v", rows[0].Cells[1], rows[1].Cells[1])
	}
}

func TestSynchronizedLagLeavesStandingGap(t *testing.T) {
	s := store.New()
	e := NewEngine(s, ref, cols(domain.ColumnDefinition{
		Name: "Ch1", ChannelPath: "ch1/value", Policy: domain.Synchronized,
	}))
	s.AddSample(ref, 10.0, 1e9)
	s.AddSample(ref, 11.0, 2e9)
	s.AddSample("ch1/value", 100.0, 1e9)
	e.Rebuild()
	rows := e.Rows()
	if !rows[0].Cells[1].Valid {
		t.Fatalf("row 0 should carry the first ch1 sample")
	}
	if rows[1].Cells[1].Valid {
		t.Fatalf("lagging channel should leave row 1 blank")
	}
	// The missing sample arriving later does not rewrite the row.
	s.AddSample("ch1/value", 101.0, 2e9)
	e.Rebuild()
	if e.Rows()[1].Cells[1].Valid {
		t.Fatalf("standing gap must persist after late arrival")
	}
}

func TestInterpolatedBracketsRowTimestamp(t *testing.T) {
	s := store.New()
	e := NewEngine(s, ref, cols(domain.ColumnDefinition{
		Name: "Temp", ChannelPath: "temp/value", Policy: domain.Interpolated,
	}))
	s.AddSample("temp/value", 20.0, 1e9)
	s.AddSample("temp/value", 30.0, 3e9)
	s.AddSample(ref, 0.0, 1e9)
	s.AddSample(ref, 0.0, 2e9)
	s.AddSample(ref, 0.0, 4e9)
	e.Rebuild()
	rows := e.Rows()
	if rows[0].Cells[1].Value != 20.0 {
		t.Fatalf("row at first sample = %v, want 20", rows[0].Cells[1].Value)
	}
	if math.Abs(rows[1].Cells[1].Value-25.0) > 1e-9 {
		t.Fatalf("midpoint = %v, want 25", rows[1].Cells[1].Value)
	}
	// Past the last sample the value holds.
	if rows[2].Cells[1].Value != 30.0 {
		t.Fatalf("held value = %v, want 30", rows[2].Cells[1].Value)
	}
}

func TestInterpolatedBlankBeforeFirstSample(t *testing.T) {
	s := store.New()
	e := NewEngine(s, ref, cols(domain.ColumnDefinition{
		Name: "Temp", ChannelPath: "temp/value", Policy: domain.Interpolated,
	}))
	s.AddSample(ref, 0.0, 1e9)
	s.AddSample("temp/value", 20.0, 2e9)
	s.AddSample(ref, 0.0, 3e9)
	e.Rebuild()
	rows := e.Rows()
	if rows[0].Cells[1].Valid {
		t.Fatalf("row before first sample should be blank")
	}
	if !rows[1].Cells[1].Valid || rows[1].Cells[1].Value != 20.0 {
		t.Fatalf("row after first sample = %v", rows[1].Cells[1])
	}
}

func TestAsynchronousForwardFills(t *testing.T) {
	s := store.New()
	e := NewEngine(s, ref, cols(domain.ColumnDefinition{
		Name: "State", ChannelPath: "state/value", Policy: domain.Asynchronous,
	}))
	s.AddSample(ref, 0.0, 1e9)
	s.AddSample("state/value", 1.0, 1.5e9)
	s.AddSample(ref, 0.0, 2e9)
	s.AddSample(ref, 0.0, 3e9)
	e.Rebuild()
	rows := e.Rows()
	if rows[0].Cells[1].Valid {
		t.Fatalf("no state yet, row 0 should be blank")
	}
	if rows[1].Cells[1].Value != 1.0 || rows[2].Cells[1].Value != 1.0 {
		t.Fatalf("state should forward-fill, got %v %v", rows[1].Cells[1], rows[2].Cells[1])
	}
}

func TestTransformAppliedPerCell(t *testing.T) {
	s := store.New()
	e := NewEngine(s, ref, cols(domain.ColumnDefinition{
		Name: "Scaled", ChannelPath: "ch/value", Policy: domain.Synchronized,
		Transform: func(v float64) float64 { return v * 2 },
	}))
	s.AddSample(ref, 0.0, 1e9)
	s.AddSample("ch/value", 21.0, 1e9)
	e.Rebuild()
	if got := e.Rows()[0].Cells[1].Value; got != 42.0 {
		t.Fatalf("transformed value = %v, want 42", got)
	}
}

func TestComputedColumnsLeftToWriter(t *testing.T) {
	s := store.New()
	e := NewEngine(s, ref, []domain.ColumnDefinition{
		{Name: "Timestamp (s)", Computed: domain.ComputedElapsed},
		{Name: "Reference", ChannelPath: ref, Policy: domain.Synchronized},
	})
	s.AddSample(ref, 5.0, 1e9)
	e.Rebuild()
	row := e.Rows()[0]
	if row.Cells[0].Valid {
		t.Fatalf("computed cell should stay invalid in the engine")
	}
	if row.Cells[1].Value != 5.0 {
		t.Fatalf("reference cell = %v", row.Cells[1])
	}
}

func TestCursorsSurvivePrune(t *testing.T) {
	s := store.New()
	e := NewEngine(s, ref, cols(domain.ColumnDefinition{
		Name: "State", ChannelPath: "state/value", Policy: domain.Asynchronous,
	}))
	for i := 0; i < 20; i++ {
		s.AddSample(ref, float64(i), int64(i+1)*1e9)
		s.AddSample("state/value", float64(i), int64(i+1)*1e9)
	}
	e.Rebuild()
	s.Prune(100.0, 5)
	s.AddSample(ref, 20.0, 30e9)
	s.AddSample("state/value", 99.0, 30e9)
	e.Rebuild()
	rows := e.Rows()
	if len(rows) != 21 {
		t.Fatalf("row count = %d, want 21", len(rows))
	}
	if rows[20].Cells[1].Value != 99.0 {
		t.Fatalf("post-prune cell = %v, want 99", rows[20].Cells[1])
	}
}
