// Package igx implements the instrument websocket protocol: JSON
// events over one socket, with pushed field updates delivered as
// value/timestamp pairs keyed by field path.
package igx

import (
	"encoding/json"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Pyramid-Technical-Consultants/ic256-sampler-sub001/internal/ports"
)

const (
	handshakeTimeout = 5 * time.Second
	readTimeout      = 250 * time.Millisecond
	writeTimeout     = 2 * time.Second
)

// event is the wire envelope. Data is a map of field paths to either a
// subscription flag, a value to set, or a batch of [value, timestamp]
// pairs.
type event struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// Field buffers pushed updates for one instrument path until the
// ingest loop drains them.
type Field struct {
	client *Client
	path   string

	mu     sync.Mutex
	datums []ports.Datum
}

func (f *Field) Path() string { return f.path }

// SetValue writes the field on the instrument.
func (f *Field) SetValue(v any) error {
	return f.client.send(event{Event: "set", Data: map[string]any{f.path: v}})
}

// GetAndClear drains the buffered datums.
func (f *Field) GetAndClear() []ports.Datum {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := f.datums
	f.datums = nil
	return out
}

func (f *Field) append(d ports.Datum) {
	f.mu.Lock()
	f.datums = append(f.datums, d)
	f.mu.Unlock()
}

// Client is one websocket session to one instrument. Subscriptions are
// recorded so Reconnect can replay them on the fresh socket.
type Client struct {
	addr string

	mu        sync.Mutex
	conn      *websocket.Conn
	connected bool

	writeMu sync.Mutex

	fieldsMu sync.Mutex
	fields   map[string]*Field

	subMu      sync.Mutex
	subscribed map[string]bool
}

// Dial opens a websocket session to the instrument at addr, a host or
// host:port.
func Dial(addr string) (*Client, error) {
	c := &Client{
		addr:       addr,
		fields:     make(map[string]*Field),
		subscribed: make(map[string]bool),
	}
	if err := c.dial(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Client) dial() error {
	u := url.URL{Scheme: "ws", Host: c.addr}
	dialer := websocket.Dialer{HandshakeTimeout: handshakeTimeout}
	conn, _, err := dialer.Dial(u.String(), nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", c.addr, err)
	}
	c.mu.Lock()
	c.conn = conn
	c.connected = true
	c.mu.Unlock()
	return nil
}

// Field returns the handle for path, creating it on first use.
func (c *Client) Field(path string) ports.FieldHandle {
	c.fieldsMu.Lock()
	defer c.fieldsMu.Unlock()
	f := c.fields[path]
	if f == nil {
		f = &Field{client: c, path: path}
		c.fields[path] = f
	}
	return f
}

// SendSubscribeFields toggles push updates and records the request for
// replay after a reconnect.
func (c *Client) SendSubscribeFields(paths map[string]bool) error {
	data := make(map[string]any, len(paths))
	for p, on := range paths {
		data[p] = on
	}
	if err := c.send(event{Event: "subscribe", Data: data}); err != nil {
		return err
	}
	c.subMu.Lock()
	for p, on := range paths {
		if on {
			c.subscribed[p] = true
		} else {
			delete(c.subscribed, p)
		}
	}
	c.subMu.Unlock()
	return nil
}

// Poll requests current values and dispatches one inbound message. A
// read timeout means the instrument was quiet, not that the socket
// failed.
func (c *Client) Poll() error {
	if err := c.send(event{Event: "get", Data: c.subscribedPaths()}); err != nil {
		return err
	}
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return fmt.Errorf("poll %s: not connected", c.addr)
	}
	conn.SetReadDeadline(time.Now().Add(readTimeout))
	_, payload, err := conn.ReadMessage()
	if err != nil {
		if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
			return nil
		}
		c.markDisconnected(conn)
		return fmt.Errorf("poll %s: %w", c.addr, err)
	}
	return c.dispatch(payload)
}

// Keepalive probes the socket with a write-only get so it never
// competes with Poll for inbound messages.
func (c *Client) Keepalive() error {
	return c.send(event{Event: "get", Data: []string{}})
}

func (c *Client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// Reconnect dials a fresh socket and replays the recorded
// subscriptions.
func (c *Client) Reconnect() error {
	c.mu.Lock()
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
		c.connected = false
	}
	c.mu.Unlock()
	if err := c.dial(); err != nil {
		return err
	}
	c.subMu.Lock()
	replay := make(map[string]bool, len(c.subscribed))
	for p := range c.subscribed {
		replay[p] = true
	}
	c.subMu.Unlock()
	if len(replay) == 0 {
		return nil
	}
	return c.SendSubscribeFields(replay)
}

func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connected = false
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}

func (c *Client) subscribedPaths() []string {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	out := make([]string, 0, len(c.subscribed))
	for p := range c.subscribed {
		out = append(out, p)
	}
	return out
}

func (c *Client) send(ev event) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return fmt.Errorf("send %s: not connected", c.addr)
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := conn.WriteJSON(ev); err != nil {
		c.markDisconnected(conn)
		return fmt.Errorf("send %s: %w", c.addr, err)
	}
	return nil
}

// markDisconnected flags the session down only if failed is still the
// current socket. A read that errors after Reconnect has already swapped
// in a fresh conn must not clobber the new session's state.
func (c *Client) markDisconnected(failed *websocket.Conn) {
	c.mu.Lock()
	if c.conn == failed {
		c.connected = false
	}
	c.mu.Unlock()
}

// dispatch decodes one inbound message and appends its datums to the
// matching field handles. Unknown paths are created on the fly so data
// arriving before the first Field call is not lost.
func (c *Client) dispatch(payload []byte) error {
	var ev struct {
		Event string              `json:"event"`
		Data  map[string][][2]any `json:"data"`
	}
	if err := json.Unmarshal(payload, &ev); err != nil {
		return fmt.Errorf("decode message: %w", err)
	}
	for path, batch := range ev.Data {
		field := c.Field(path).(*Field)
		for _, pair := range batch {
			value, ok := coerce(pair[0])
			if !ok {
				continue
			}
			ts, ok := pair[1].(float64)
			if !ok {
				continue
			}
			field.append(ports.Datum{Value: value, Timestamp: ts})
		}
	}
	return nil
}

// coerce converts the wire value to float64. Instruments report
// numbers, booleans for enable flags and the odd stringly-typed
// firmware value.
func coerce(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case bool:
		if t {
			return 1, true
		}
		return 0, true
	case string:
		f, err := strconv.ParseFloat(t, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}
