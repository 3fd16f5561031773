package sink

import (
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/Pyramid-Technical-Consultants/ic256-sampler-sub001/internal/domain"
)

func TestArchiveSinkWriteRows(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	sink := NewArchiveSink(db, "virtual_rows")
	rows := []domain.VirtualRow{
		{
			Elapsed: 1.25,
			Cells: []domain.Cell{
				{},
				{Value: 42, Valid: true},
			},
		},
	}

	expectedQuery := regexp.QuoteMeta("INSERT INTO virtual_rows (acquisition_id, elapsed_s, cells) VALUES ($1,$2,$3) ON CONFLICT (acquisition_id, elapsed_s) DO NOTHING")
	mock.ExpectExec(expectedQuery).
		WithArgs("acq-1", 1.25, []byte(`{"Sum":42}`)).
		WillReturnResult(sqlmock.NewResult(1, 1))

	if err := sink.WriteRows("acq-1", []string{"Timestamp (s)", "Sum"}, rows); err != nil {
		t.Fatalf("write rows: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestArchiveSinkWriteRowsEmpty(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	sink := NewArchiveSink(db, "virtual_rows")
	if err := sink.WriteRows("acq-1", nil, nil); err != nil {
		t.Fatalf("expected nil error for empty batch, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestArchiveSinkName(t *testing.T) {
	db, _, _ := sqlmock.New()
	defer db.Close()

	sink := NewArchiveSink(db, "virtual_rows")
	if sink.Name() != "postgres" {
		t.Fatalf("expected sink name postgres, got %s", sink.Name())
	}
}
