package cand

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/thoas/go-funk"
)

// WriteCallback is called on the dispatch goroutine when another process
// changes an entry owned by this client.
type WriteCallback func(v Value)

// HeartbeatCallback is called for every heartbeat of a remote node.
type HeartbeatCallback func(node uint8, state NodeState)

// EmcyCallback is called for every emergency of a remote node.
type EmcyCallback func(node uint8, code uint16, info uint32)

type localData struct {
	entry        *Entry
	value        Value
	writeCb      WriteCallback
	ownershipAck bool
}

// Client mirrors the daemon's dictionary for the entries of a catalog.
// Entries with a write callback are owned by the client and re-broadcast
// every time the link to the daemon comes back.
type Client struct {
	catalog   *Catalog
	transport ITransport
	log       logrus.FieldLogger
	timeout   time.Duration
	settle    time.Duration
	odConfig  string

	// held across send and receive, the REQ pattern allows one request in
	// flight
	cmdMu sync.Mutex

	// taken before mu by every path that updates a value and broadcasts it,
	// so broadcasts leave in the order the cache changed
	pubMu sync.Mutex

	mu         sync.RWMutex
	data       map[uint32]*localData
	connected  bool
	busState   BusState
	odSent     bool
	nodeStates map[uint8]NodeState
	hbCb       HeartbeatCallback
	emcyCb     EmcyCallback

	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// Dial connects a client to the daemon at host over ZeroMQ.
func Dial(host string, catalog *Catalog, opts ...Option) *Client {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	transport := NewZMQTransport(host, o.ports, o.log)
	return newClient(catalog, transport, o)
}

// NewClient starts a client over an existing transport. The client owns the
// transport and closes it on Close.
func NewClient(catalog *Catalog, transport ITransport, opts ...Option) *Client {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return newClient(catalog, transport, o)
}

func newClient(catalog *Catalog, transport ITransport, o clientOptions) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	client := &Client{
		catalog:    catalog,
		transport:  transport,
		log:        o.log,
		timeout:    o.timeout,
		settle:     o.settle,
		odConfig:   o.odConfig,
		data:       make(map[uint32]*localData, catalog.Len()),
		busState:   BusNotFound,
		nodeStates: make(map[uint8]NodeState),
		ctx:        ctx,
		cancel:     cancel,
	}
	for _, entry := range catalog.Entries() {
		client.data[entry.Key()] = &localData{
			entry: entry,
			value: canonical(entry.DataType, entry.Default),
		}
	}

	client.wg.Add(2)
	go client.monitor()
	go client.consume()
	return client
}

// Catalog returns the entries mirrored by the client.
func (client *Client) Catalog() *Catalog {
	return client.catalog
}

func (client *Client) local(entry *Entry) (*localData, error) {
	if entry == nil {
		return nil, fmt.Errorf("%w: nil entry", ErrUnknownEntry)
	}
	d, ok := client.data[entry.Key()]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownEntry, entry)
	}
	return d, nil
}

// OdRead returns the cached value of entry. With useEnum set, integers that
// match a member of the entry's enum are returned as that member.
func (client *Client) OdRead(entry *Entry, useEnum bool) (Value, error) {
	client.mu.RLock()
	d, err := client.local(entry)
	if err != nil {
		client.mu.RUnlock()
		return Value{}, err
	}
	v := d.value
	client.mu.RUnlock()

	if useEnum && d.entry.Enum != nil {
		return d.entry.ToEnum(v)
	}
	return v, nil
}

// OdWrite stores v in the cache and broadcasts it. Validation errors are
// returned before anything is sent; send errors are only logged.
func (client *Client) OdWrite(entry *Entry, v Value) error {
	client.pubMu.Lock()
	defer client.pubMu.Unlock()

	client.mu.Lock()
	d, err := client.local(entry)
	if err != nil {
		client.mu.Unlock()
		return err
	}
	raw, err := d.entry.Encode(v)
	if err != nil {
		client.mu.Unlock()
		return err
	}
	stored, err := d.entry.Decode(raw)
	if err != nil {
		client.mu.Unlock()
		return err
	}
	d.value = stored
	client.mu.Unlock()

	client.publish(&OdWriteMessage{Index: d.entry.Index, Subindex: d.entry.Subindex, Raw: raw})
	return nil
}

// OdWriteMulti writes each value in turn and stops at the first error.
// Values written before the error stay written.
func (client *Client) OdWriteMulti(values map[*Entry]Value) error {
	entries := make([]*Entry, 0, len(values))
	for entry := range values {
		entries = append(entries, entry)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Key() < entries[j].Key()
	})
	for _, entry := range entries {
		if err := client.OdWrite(entry, values[entry]); err != nil {
			return err
		}
	}
	return nil
}

// RegisterWriteCallback makes the client the owner of entry. An entry has
// at most one owner for the lifetime of the client. When connected the
// entry's value is announced right away, otherwise on the next connect.
func (client *Client) RegisterWriteCallback(entry *Entry, cb WriteCallback) error {
	if cb == nil {
		return fmt.Errorf("cand: nil write callback for %s", entry)
	}

	client.pubMu.Lock()
	defer client.pubMu.Unlock()

	client.mu.Lock()
	d, err := client.local(entry)
	if err != nil {
		client.mu.Unlock()
		return err
	}
	if d.writeCb != nil {
		client.mu.Unlock()
		return fmt.Errorf("%s: %w", d.entry, ErrCallbackAlreadySet)
	}
	d.writeCb = cb

	var announce Message
	if client.connected {
		announce = client.announcement(d)
	}
	client.mu.Unlock()

	if announce != nil {
		client.publish(announce)
	}
	return nil
}

// announcement builds the broadcast that claims d and marks it acknowledged.
// Must be called with mu held.
func (client *Client) announcement(d *localData) Message {
	raw, err := d.entry.Encode(d.value)
	if err != nil {
		client.log.Errorf("[ANNOUNCE] %s : %v", d.entry, err)
		return nil
	}
	d.ownershipAck = true
	return &OdWriteMessage{Index: d.entry.Index, Subindex: d.entry.Subindex, Raw: raw}
}

// OwnershipAcknowledged reports whether entry was announced since the
// last connect.
func (client *Client) OwnershipAcknowledged(entry *Entry) bool {
	client.mu.RLock()
	defer client.mu.RUnlock()
	d, err := client.local(entry)
	if err != nil {
		return false
	}
	return d.ownershipAck
}

// SendEmcy broadcasts an emergency.
func (client *Client) SendEmcy(code uint32, info uint32) {
	client.publish(&EmcySendMessage{Code: code, Info: info})
}

// SendTpdo triggers each of the given TPDOs.
func (client *Client) SendTpdo(nums ...uint8) {
	for _, num := range nums {
		client.publish(&TpdoSendMessage{Num: num})
	}
}

// IsConnected reports whether the daemon is reachable.
func (client *Client) IsConnected() bool {
	client.mu.RLock()
	defer client.mu.RUnlock()
	return client.connected
}

// BusState returns the last bus state reported by the daemon.
func (client *Client) BusState() BusState {
	client.mu.RLock()
	defer client.mu.RUnlock()
	return client.busState
}

// Close stops the client and closes the transport without waiting for
// outstanding sends.
func (client *Client) Close() error {
	var err error
	client.closeOnce.Do(func() {
		client.cancel()
		err = client.transport.Close()
		client.wg.Wait()
	})
	return err
}

// publish is best effort: failures are logged and dropped.
func (client *Client) publish(m Message) {
	raw, err := Pack(m)
	if err != nil {
		client.log.Errorf("[BROADCAST] %v", err)
		return
	}
	client.log.Debugf("[BROADCAST] %X", raw)
	if err := client.transport.Publish(raw); err != nil {
		client.log.Debugf("[BROADCAST] dropped %s : %v", m.ID(), err)
	}
}

// sendAndRecv sends req on the command channel and unpacks the reply into
// reply. Error replies are returned as typed errors.
func (client *Client) sendAndRecv(req Message, reply Message) error {
	raw, err := Pack(req)
	if err != nil {
		return err
	}

	client.cmdMu.Lock()
	defer client.cmdMu.Unlock()

	if client.ctx.Err() != nil {
		return ErrClosed
	}

	client.log.Debugf("[CLIENT][TX] %s %d : %X", req.ID(), len(raw), raw)
	ctx, cancel := context.WithTimeout(client.ctx, client.timeout)
	defer cancel()

	resp, err := client.transport.Request(ctx, raw)
	if err != nil {
		switch {
		case errors.Is(err, ErrTimeout), errors.Is(err, context.DeadlineExceeded):
			return fmt.Errorf("%s: %w", req.ID(), ErrTimeout)
		case client.ctx.Err() != nil:
			return ErrClosed
		}
		return fmt.Errorf("%s: %w", req.ID(), err)
	}
	client.log.Debugf("[CLIENT][RX] %d : %X", len(resp), resp)

	id, err := PeekID(resp)
	if err != nil {
		return err
	}
	if id.IsError() {
		m, err := Unpack(resp)
		if err != nil {
			return err
		}
		return replyError(m)
	}
	if err := UnpackAs(resp, reply); err != nil {
		return fmt.Errorf("%w: %w", ErrUnexpectedReply, err)
	}
	return nil
}

func (client *Client) monitor() {
	defer client.wg.Done()
	events := client.transport.Events()
	for {
		select {
		case <-client.ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			switch ev.State {
			case Connected:
				client.onConnected(ev)
			case Disconnected:
				client.onDisconnected(ev)
			}
		}
	}
}

func (client *Client) onConnected(ev ConnEvent) {
	// give the daemon time to see our subscription before broadcasting
	if client.settle > 0 {
		select {
		case <-time.After(client.settle):
		case <-client.ctx.Done():
			return
		}
	}

	client.pubMu.Lock()
	defer client.pubMu.Unlock()

	client.mu.Lock()
	client.connected = true
	owned := funk.Filter(funk.Values(client.data), func(d *localData) bool {
		return d.writeCb != nil && !d.ownershipAck
	}).([]*localData)
	sort.Slice(owned, func(i, j int) bool {
		return owned[i].entry.Key() < owned[j].entry.Key()
	})
	announces := make([]Message, 0, len(owned))
	for _, d := range owned {
		if m := client.announcement(d); m != nil {
			announces = append(announces, m)
		}
	}
	var config Message
	if client.odConfig != "" && !client.odSent {
		path, err := filepath.Abs(client.odConfig)
		if err != nil {
			path = client.odConfig
		}
		config = &ConfigMessage{Path: path}
		client.odSent = true
	}
	client.mu.Unlock()

	client.log.Infof("connected to %v, announcing %d owned entries", ev.Endpoint, len(announces))
	for _, m := range announces {
		client.publish(m)
	}
	if config != nil {
		client.publish(config)
	}
}

func (client *Client) onDisconnected(ev ConnEvent) {
	client.mu.Lock()
	wasConnected := client.connected
	client.connected = false
	client.busState = BusNotFound
	for _, d := range client.data {
		d.ownershipAck = false
	}
	client.mu.Unlock()

	if wasConnected {
		client.log.Infof("disconnected from %v", ev.Endpoint)
	}
}
