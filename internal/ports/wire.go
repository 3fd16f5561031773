package ports

// Datum is one raw value pulled off the instrument socket before
// timestamp normalization.
type Datum struct {
	Value     float64
	Timestamp float64
}

// FieldHandle is the client-side image of one instrument field. Pushed
// updates accumulate inside the handle until the ingest loop drains
// them with GetAndClear.
type FieldHandle interface {
	Path() string
	// SetValue writes the field on the instrument.
	SetValue(v any) error
	// GetAndClear returns every datum received since the previous call
	// and empties the buffer.
	GetAndClear() []Datum
}

// WireSession is one socket to one instrument. Subscriptions are scoped
// to the socket: after Reconnect the caller must subscribe again before
// any data flows.
type WireSession interface {
	// Field returns the handle for path, creating it on first use.
	Field(path string) FieldHandle
	// SendSubscribeFields toggles push updates for the given paths.
	SendSubscribeFields(paths map[string]bool) error
	// Poll requests current values and dispatches one inbound message
	// to the field handles. A quiet socket is not an error.
	Poll() error
	// Keepalive probes the socket without reading, so it can run
	// alongside the ingest loop.
	Keepalive() error
	IsConnected() bool
	// Reconnect dials a fresh socket and replays the recorded
	// subscriptions.
	Reconnect() error
	Close() error
}
