package domain

// DataPoint is the canonical unit of instrument telemetry: one value on
// one channel, stamped with its arrival time in nanoseconds.
type DataPoint struct {
	TimestampNS int64   `json:"ts_ns"`
	Value       float64 `json:"value"`
}

// minPlausibleNS is the smallest raw timestamp treated as nanoseconds.
// Instruments report either epoch seconds (fractional) or epoch
// nanoseconds depending on firmware; anything below this bound is a
// seconds value and gets scaled up.
const minPlausibleNS = 1e12

// NormalizeTimestamp converts a raw instrument timestamp into epoch
// nanoseconds. It returns false for non-positive timestamps, which are
// malformed and must be dropped by the caller.
func NormalizeTimestamp(raw float64) (int64, bool) {
	if raw <= 0 {
		return 0, false
	}
	if raw < minPlausibleNS {
		return int64(raw * 1e9), true
	}
	return int64(raw), true
}
