package supervisor

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Pyramid-Technical-Consultants/ic256-sampler-sub001/internal/domain"
	"github.com/Pyramid-Technical-Consultants/ic256-sampler-sub001/internal/ports"
	"github.com/Pyramid-Technical-Consultants/ic256-sampler-sub001/internal/store"
)

const (
	defaultKeepaliveInterval = 1 * time.Second
	defaultJoinTimeout       = 2 * time.Second
	pollPause                = 1 * time.Millisecond
)

// DeviceConfig declares one supported instrument type.
type DeviceConfig struct {
	Name           string
	Type           string
	FilenamePrefix string
	NewModel       func() ports.DeviceModel
}

// session is one live instrument connection plus its two workers. quit
// stops just this session; the supervisor-wide stop channel stops all
// of them.
type session struct {
	ip    string
	cfg   DeviceConfig
	wire  ports.WireSession
	model ports.DeviceModel

	quit          chan struct{}
	ingestDone    chan struct{}
	keepaliveDone chan struct{}
}

// DialFunc opens a wire session to the instrument at ip.
type DialFunc func(ip string) (ports.WireSession, error)

// ValidateFunc reports whether the instrument at ip answers as devType.
type ValidateFunc func(ip, devType string) bool

// Supervisor owns every instrument connection: it dials, ingests pushed
// data into the store, keeps sockets alive and reconnects with a
// mandatory resubscribe when they drop. Stop never blocks; only
// CloseAll joins workers.
type Supervisor struct {
	store    *store.Store
	dial     DialFunc
	validate ValidateFunc

	mu       sync.Mutex
	sessions map[string]*session
	stop     chan struct{}
	running  bool

	statusMu   sync.Mutex
	status     map[string]string
	statusSink ports.StatusSink

	log ports.LogSink
	obs ports.Observability

	keepaliveInterval time.Duration
	joinTimeout       time.Duration
}

type Option func(*Supervisor)

func WithLogSink(l ports.LogSink) Option { return func(s *Supervisor) { s.log = l } }

func WithStatusSink(ss ports.StatusSink) Option { return func(s *Supervisor) { s.statusSink = ss } }

func WithObservability(o ports.Observability) Option { return func(s *Supervisor) { s.obs = o } }

func WithValidator(v ValidateFunc) Option { return func(s *Supervisor) { s.validate = v } }

func WithKeepaliveInterval(d time.Duration) Option {
	return func(s *Supervisor) { s.keepaliveInterval = d }
}

func WithJoinTimeout(d time.Duration) Option {
	return func(s *Supervisor) { s.joinTimeout = d }
}

func New(st *store.Store, dial DialFunc, opts ...Option) *Supervisor {
	s := &Supervisor{
		store:             st,
		dial:              dial,
		sessions:          make(map[string]*session),
		stop:              make(chan struct{}),
		status:            make(map[string]string),
		log:               ports.NopLogSink{},
		obs:               ports.NopObservability{},
		keepaliveInterval: defaultKeepaliveInterval,
		joinTimeout:       defaultJoinTimeout,
	}
	close(s.stop)
	for _, o := range opts {
		o(s)
	}
	return s
}

// EnsureDeviceConnection reconciles the session for cfg against the
// requested address. An empty ip removes the device, a changed ip
// replaces the session, the same ip keeps it untouched.
func (s *Supervisor) EnsureDeviceConnection(cfg DeviceConfig, ip string) error {
	var retired *session
	defer func() {
		// Joining can run up to the join timeout per worker, so it
		// happens after the lock is released.
		if retired != nil {
			s.retire(cfg.Name, retired)
		}
	}()
	s.mu.Lock()
	defer s.mu.Unlock()

	old := s.sessions[cfg.Name]
	if ip == "" {
		if old != nil {
			retired = s.detachLocked(cfg.Name, old)
			s.setStatus(cfg.Name, "disconnected")
		}
		return nil
	}
	if old != nil {
		if old.ip == ip {
			return nil
		}
		retired = s.detachLocked(cfg.Name, old)
	}

	if s.validate != nil && !s.validate(ip, cfg.Type) {
		s.setStatus(cfg.Name, "error")
		return fmt.Errorf("device %s: %s does not answer as %s", cfg.Name, ip, cfg.Type)
	}
	wire, err := s.dial(ip)
	if err != nil {
		s.setStatus(cfg.Name, "error")
		return fmt.Errorf("device %s: dial %s: %w", cfg.Name, ip, err)
	}
	sess := &session{ip: ip, cfg: cfg, wire: wire, model: cfg.NewModel(), quit: make(chan struct{})}
	s.sessions[cfg.Name] = sess
	s.setStatus(cfg.Name, "connected")
	s.log.Log(fmt.Sprintf("Connected to %s at %s", cfg.Name, ip), ports.LevelInfo)
	if s.running {
		s.spawnLocked(sess)
	}
	return nil
}

// detachLocked signals one session's workers and removes it from the
// map while the lock is held. The caller must retire it afterwards.
func (s *Supervisor) detachLocked(name string, sess *session) *session {
	close(sess.quit)
	delete(s.sessions, name)
	return sess
}

// retire joins a detached session's workers within the join timeout and
// closes its socket. It runs without the supervisor lock so a slow join
// does not stall other calls.
func (s *Supervisor) retire(name string, sess *session) {
	joinWorker(sess.ingestDone, s.joinTimeout)
	joinWorker(sess.keepaliveDone, s.joinTimeout)
	if err := sess.wire.Close(); err != nil {
		s.log.Log(fmt.Sprintf("Closing %s: %v", name, err), ports.LevelWarning)
	}
}

// Start launches ingest and keepalive workers for every session that
// does not already have live ones. Calling Start twice is harmless, and
// Start after Stop resumes acquisition on the surviving sockets.
func (s *Supervisor) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	s.running = true
	s.stop = make(chan struct{})
	for _, sess := range s.sessions {
		s.spawnLocked(sess)
	}
}

func (s *Supervisor) spawnLocked(sess *session) {
	// Workers from a previous run hold the old stop channel; let them
	// drain before replacing them.
	if !workerExited(sess.ingestDone) {
		joinWorker(sess.ingestDone, s.joinTimeout)
	}
	if !workerExited(sess.keepaliveDone) {
		joinWorker(sess.keepaliveDone, s.joinTimeout)
	}
	sess.ingestDone = make(chan struct{})
	sess.keepaliveDone = make(chan struct{})
	stop := s.stop
	go s.ingestLoop(sess, stop)
	go s.keepaliveLoop(sess, stop)
}

// Stop signals every worker and returns immediately. Sockets stay open
// so a later Start can resume without redialing.
func (s *Supervisor) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	s.running = false
	close(s.stop)
}

// CloseAll stops acquisition, joins every worker within the join
// timeout and closes every socket.
func (s *Supervisor) CloseAll() {
	s.mu.Lock()
	if s.running {
		s.running = false
		close(s.stop)
	}
	retired := make(map[string]*session, len(s.sessions))
	for name, sess := range s.sessions {
		retired[name] = s.detachLocked(name, sess)
	}
	s.mu.Unlock()
	for name, sess := range retired {
		s.retire(name, sess)
	}
}

func (s *Supervisor) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// SetupDeviceForCollection arms the instrument for a new acquisition:
// reconnect if the socket dropped, push the acquisition settings and
// subscribe every model field. One retry covers an instrument that is
// mid-reboot.
func (s *Supervisor) SetupDeviceForCollection(name string, rateHz int) error {
	s.mu.Lock()
	sess := s.sessions[name]
	s.mu.Unlock()
	if sess == nil {
		return fmt.Errorf("device %s: no session", name)
	}
	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		if !sess.wire.IsConnected() {
			if err := sess.wire.Reconnect(); err != nil {
				lastErr = err
				continue
			}
			s.setStatus(name, "connected")
		}
		if err := sess.model.SetupDevice(sess.wire, rateHz); err != nil {
			lastErr = err
			continue
		}
		paths := make(map[string]bool, len(sess.model.FieldPaths()))
		for p := range sess.model.FieldPaths() {
			paths[p] = true
		}
		if err := sess.wire.SendSubscribeFields(paths); err != nil {
			lastErr = err
			continue
		}
		return nil
	}
	return fmt.Errorf("device %s: setup failed: %w", name, lastErr)
}

// Devices lists the configured device names with live sessions.
func (s *Supervisor) Devices() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.sessions))
	for name := range s.sessions {
		names = append(names, name)
	}
	return names
}

// Model returns the device model for name, nil when absent.
func (s *Supervisor) Model(name string) ports.DeviceModel {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess := s.sessions[name]; sess != nil {
		return sess.model
	}
	return nil
}

// Config returns the device config for name.
func (s *Supervisor) Config(name string) (DeviceConfig, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess := s.sessions[name]; sess != nil {
		return sess.cfg, true
	}
	return DeviceConfig{}, false
}

// Status returns a copy of the per-device connection status map.
func (s *Supervisor) Status() map[string]string {
	s.statusMu.Lock()
	defer s.statusMu.Unlock()
	out := make(map[string]string, len(s.status))
	for k, v := range s.status {
		out[k] = v
	}
	return out
}

func (s *Supervisor) setStatus(name, state string) {
	s.statusMu.Lock()
	if s.status[name] == state {
		s.statusMu.Unlock()
		return
	}
	s.status[name] = state
	snapshot := make(map[string]string, len(s.status))
	for k, v := range s.status {
		snapshot[k] = v
	}
	sink := s.statusSink
	s.statusMu.Unlock()
	if sink != nil {
		sink.NotifyStatus(snapshot)
	}
}

// ingestLoop polls the socket and drains every field handle into the
// store until stopped.
func (s *Supervisor) ingestLoop(sess *session, stop <-chan struct{}) {
	defer close(sess.ingestDone)
	for {
		select {
		case <-stop:
			return
		case <-sess.quit:
			return
		default:
		}
		if !sess.wire.IsConnected() {
			time.Sleep(s.keepaliveInterval / 4)
			continue
		}
		if err := sess.wire.Poll(); err != nil {
			time.Sleep(pollPause)
			continue
		}
		for path := range sess.model.FieldPaths() {
			for _, d := range sess.wire.Field(path).GetAndClear() {
				ns, ok := domain.NormalizeTimestamp(d.Timestamp)
				if !ok {
					s.store.NoteMalformed()
					s.obs.IncCounter("sampler_malformed_datums_total", 1)
					continue
				}
				s.store.AddSample(path, d.Value, ns)
				s.obs.IncCounter("sampler_samples_ingested_total", 1)
			}
		}
	}
}

// keepaliveLoop probes the socket on a timer and reconnects dropped
// sessions. Subscriptions are socket-scoped, so every reconnect is
// followed by a resubscribe before data can flow again.
func (s *Supervisor) keepaliveLoop(sess *session, stop <-chan struct{}) {
	defer close(sess.keepaliveDone)
	ticker := time.NewTicker(s.keepaliveInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-sess.quit:
			return
		case <-ticker.C:
		}
		err := sess.wire.Keepalive()
		if err == nil {
			continue
		}
		if !isConnectionError(err) {
			s.log.Log(fmt.Sprintf("Keepalive %s: %v", sess.cfg.Name, err), ports.LevelWarning)
			continue
		}
		s.setStatus(sess.cfg.Name, "disconnected")
		s.log.Log(fmt.Sprintf("Lost connection to %s: %v", sess.cfg.Name, err), ports.LevelError)
		if err := sess.wire.Reconnect(); err != nil {
			s.log.Log(fmt.Sprintf("Reconnect %s: %v", sess.cfg.Name, err), ports.LevelWarning)
			continue
		}
		paths := make(map[string]bool, len(sess.model.FieldPaths()))
		for p := range sess.model.FieldPaths() {
			paths[p] = true
		}
		if err := sess.wire.SendSubscribeFields(paths); err != nil {
			s.log.Log(fmt.Sprintf("Resubscribe %s: %v", sess.cfg.Name, err), ports.LevelWarning)
			continue
		}
		s.obs.IncCounter("sampler_reconnects_total", 1)
		s.setStatus(sess.cfg.Name, "connected")
		s.log.Log(fmt.Sprintf("Reconnected to %s", sess.cfg.Name), ports.LevelInfo)
	}
}

// workerExited reports whether ch is nil or already closed.
func workerExited(ch chan struct{}) bool {
	if ch == nil {
		return true
	}
	select {
	case <-ch:
		return true
	default:
		return false
	}
}

// joinWorker waits for ch to close, bounded by timeout.
func joinWorker(ch chan struct{}, timeout time.Duration) {
	if ch == nil {
		return
	}
	select {
	case <-ch:
	case <-time.After(timeout):
	}
}

// isConnectionError classifies errors that warrant a reconnect rather
// than a retry on the same socket.
func isConnectionError(err error) bool {
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	var closeErr *websocket.CloseError
	if errors.As(err, &closeErr) {
		return true
	}
	if errors.Is(err, net.ErrClosed) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range []string{"connection", "socket", "network", "broken pipe", "reset", "closed"} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
