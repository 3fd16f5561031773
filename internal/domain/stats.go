package domain

import "fmt"

// AcquisitionStatistics is the live progress snapshot of a running
// acquisition, refreshed after each collection iteration.
type AcquisitionStatistics struct {
	Rows         int64
	FileSize     int64
	FilePath     string
	StoredPoints int64
	Malformed    int64
	LastElapsed  float64
}

// AggregateStatistics sums the progress of concurrent acquisitions for
// operator display.
func AggregateStatistics(stats ...AcquisitionStatistics) (totalRows, totalSize int64) {
	for _, s := range stats {
		totalRows += s.Rows
		totalSize += s.FileSize
	}
	return totalRows, totalSize
}

// FormatByteSize renders a byte count for operator display. Sizes are
// shown in the largest unit that keeps the number above one.
func FormatByteSize(n int64) string {
	switch {
	case n >= 1<<20:
		return fmt.Sprintf("%.2f MB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.2f KB", float64(n)/(1<<10))
	default:
		return fmt.Sprintf("%d B", n)
	}
}
