package output

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/Pyramid-Technical-Consultants/ic256-sampler-sub001/internal/domain"
	"github.com/Pyramid-Technical-Consultants/ic256-sampler-sub001/internal/resample"
)

// GenerateFilePath builds the acquisition file name from the device
// prefix and the start time, e.g. IC256_42x35-20260829-143000.csv.
func GenerateFilePath(folder, prefix string, at time.Time) string {
	return filepath.Join(folder, fmt.Sprintf("%s-%s.csv", prefix, at.Format("20060102-150405")))
}

// Writer appends virtual rows to one CSV file. Rows already written are
// never rewritten; each WriteAll call emits only the rows added since
// the previous call. The file is created on the first write so an
// acquisition that produces no rows leaves no file behind.
type Writer struct {
	mu sync.Mutex

	engine     *resample.Engine
	path       string
	deviceName string
	note       string
	started    time.Time
	metadata   MetadataFunc

	file *os.File
	buf  *bufio.Writer
	csvw *csv.Writer

	rowsWritten int
	fileSize    int64
}

// MetadataFunc supplies extra comment lines, evaluated when the file is
// opened so late-arriving values (environment readings) can still make
// it into the header block.
type MetadataFunc func() [][2]string

type WriterOption func(*Writer)

func WithMetadata(fn MetadataFunc) WriterOption {
	return func(w *Writer) { w.metadata = fn }
}

func NewWriter(engine *resample.Engine, path, deviceName, note string, opts ...WriterOption) *Writer {
	w := &Writer{
		engine:     engine,
		path:       path,
		deviceName: deviceName,
		note:       note,
		started:    time.Now(),
	}
	for _, o := range opts {
		o(w)
	}
	return w
}

func (w *Writer) Path() string { return w.path }

func (w *Writer) RowsWritten() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.rowsWritten
}

// FileSize reports the on-disk size as of the last flush.
func (w *Writer) FileSize() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.fileSize
}

// WriteAll appends every engine row not yet on disk and returns the
// number written.
func (w *Writer) WriteAll() (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	rows := w.engine.Rows()
	if w.rowsWritten >= len(rows) {
		return 0, nil
	}
	if w.file == nil {
		if err := w.open(); err != nil {
			return 0, err
		}
	}
	cols := w.engine.Columns()
	record := make([]string, len(cols))
	written := 0
	for _, row := range rows[w.rowsWritten:] {
		for i, col := range cols {
			record[i] = w.cellString(col, row, row.Cells[i])
		}
		if err := w.csvw.Write(record); err != nil {
			return written, fmt.Errorf("write row: %w", err)
		}
		w.rowsWritten++
		written++
	}
	return written, nil
}

func (w *Writer) cellString(col domain.ColumnDefinition, row domain.VirtualRow, cell domain.Cell) string {
	switch col.Computed {
	case domain.ComputedElapsed:
		return fmt.Sprintf("%.12e", row.Elapsed)
	case domain.ComputedNote:
		return w.note
	}
	if !cell.Valid {
		return ""
	}
	return strconv.FormatFloat(cell.Value, 'g', -1, 64)
}

// open creates the file, the metadata comment lines and the header row.
func (w *Writer) open() error {
	if err := os.MkdirAll(filepath.Dir(w.path), 0o755); err != nil {
		return fmt.Errorf("create output folder: %w", err)
	}
	f, err := os.OpenFile(w.path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("create output file: %w", err)
	}
	w.file = f
	w.buf = bufio.NewWriterSize(f, 64<<10)
	fmt.Fprintf(w.buf, "# device: %s\n", w.deviceName)
	if w.note != "" {
		fmt.Fprintf(w.buf, "# note: %s\n", w.note)
	}
	fmt.Fprintf(w.buf, "# started: %s\n", w.started.Format(time.RFC3339))
	if w.metadata != nil {
		for _, kv := range w.metadata() {
			fmt.Fprintf(w.buf, "# %s: %s\n", kv[0], kv[1])
		}
	}
	w.csvw = csv.NewWriter(w.buf)
	if err := w.csvw.Write(w.engine.Headers()); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	return nil
}

// Flush pushes buffered rows to the operating system and refreshes the
// size snapshot.
func (w *Writer) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.flushLocked()
}

func (w *Writer) flushLocked() error {
	if w.file == nil {
		return nil
	}
	w.csvw.Flush()
	if err := w.csvw.Error(); err != nil {
		return fmt.Errorf("flush rows: %w", err)
	}
	if err := w.buf.Flush(); err != nil {
		return fmt.Errorf("flush buffer: %w", err)
	}
	if fi, err := w.file.Stat(); err == nil {
		w.fileSize = fi.Size()
	}
	return nil
}

// Sync flushes and forces the file to stable storage.
func (w *Writer) Sync() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.flushLocked(); err != nil {
		return err
	}
	if w.file == nil {
		return nil
	}
	if err := w.file.Sync(); err != nil {
		return fmt.Errorf("sync output file: %w", err)
	}
	return nil
}

// Close flushes, syncs and releases the file. Safe to call on a writer
// that never opened.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.file == nil {
		return nil
	}
	flushErr := w.flushLocked()
	syncErr := w.file.Sync()
	closeErr := w.file.Close()
	w.file = nil
	if flushErr != nil {
		return flushErr
	}
	if syncErr != nil {
		return fmt.Errorf("sync output file: %w", syncErr)
	}
	if closeErr != nil {
		return fmt.Errorf("close output file: %w", closeErr)
	}
	return nil
}
