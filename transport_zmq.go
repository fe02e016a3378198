package cand

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/go-zeromq/zmq4"
	"github.com/sirupsen/logrus"
)

// Ports are the daemon's well known TCP ports, one per channel.
type Ports struct {
	Command   int
	Subscribe int
	Publish   int
}

// DefaultPorts are the ports the daemon binds by default.
var DefaultPorts = Ports{
	Command:   6000,
	Subscribe: 6001,
	Publish:   6002,
}

const (
	defaultProbeInterval = 500 * time.Millisecond
	defaultProbeTimeout  = 250 * time.Millisecond
	dialerRetry          = 100 * time.Millisecond
	linkKeepAlive        = 5 * time.Second
	frameQueueSize       = 64
	eventQueueSize       = 8
)

// linkHandshake is a ZMTP 3.0 greeting with the NULL mechanism followed by a
// READY command for a SUB socket. The link watch sends it so the daemon's
// PUB socket treats the connection as a subscriber with no subscriptions
// and keeps it open until the daemon goes away.
var linkHandshake = func() []byte {
	greeting := make([]byte, 64)
	greeting[0] = 0xFF
	greeting[9] = 0x7F
	greeting[10] = 3
	greeting[11] = 0
	copy(greeting[12:32], "NULL")

	body := []byte{5}
	body = append(body, "READY"...)
	body = append(body, byte(len("Socket-Type")))
	body = append(body, "Socket-Type"...)
	body = binary.BigEndian.AppendUint32(body, uint32(len("SUB")))
	body = append(body, "SUB"...)

	return append(append(greeting, 0x04, byte(len(body))), body...)
}()

// ZMQTransport is an ITransport over ZeroMQ sockets: REQ to the daemon's
// ROUTER, SUB to its PUB and PUB to its SUB. A separate TCP link to the
// subscribe port is held open while connected; the daemon closing it means
// the daemon went away, even when it is back before the next probe. Sockets
// are dialed when the link comes up and torn down when it drops.
type ZMQTransport struct {
	host          string
	ports         Ports
	log           logrus.FieldLogger
	probeInterval time.Duration

	ctx    context.Context
	cancel context.CancelFunc

	mu  sync.Mutex
	req zmq4.Socket
	sub zmq4.Socket
	pub zmq4.Socket

	frames    chan []byte
	events    chan ConnEvent
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewZMQTransport starts watching the daemon at host. Sockets are dialed
// once the daemon is reachable.
func NewZMQTransport(host string, ports Ports, log logrus.FieldLogger) *ZMQTransport {
	if log == nil {
		log = logrus.StandardLogger()
	}
	ctx, cancel := context.WithCancel(context.Background())
	t := &ZMQTransport{
		host:          host,
		ports:         ports,
		log:           log,
		probeInterval: defaultProbeInterval,
		ctx:           ctx,
		cancel:        cancel,
		frames:        make(chan []byte, frameQueueSize),
		events:        make(chan ConnEvent, eventQueueSize),
	}
	t.wg.Add(1)
	go t.monitor()
	return t
}

func (t *ZMQTransport) endpoint(port int) string {
	return "tcp://" + net.JoinHostPort(t.host, strconv.Itoa(port))
}

func (t *ZMQTransport) Events() <-chan ConnEvent {
	return t.events
}

// Request sends req on the command socket and waits for the reply. On
// failure or timeout the REQ socket is replaced, since it cannot send again
// before a reply arrives.
func (t *ZMQTransport) Request(ctx context.Context, req []byte) ([]byte, error) {
	t.mu.Lock()
	sock := t.req
	t.mu.Unlock()
	if sock == nil {
		return nil, ErrNotConnected
	}

	if err := sock.Send(zmq4.NewMsg(req)); err != nil {
		t.resetRequest(sock)
		return nil, fmt.Errorf("cand: command send: %w", err)
	}

	type reply struct {
		raw []byte
		err error
	}
	done := make(chan reply, 1)
	go func() {
		msg, err := sock.Recv()
		if err != nil {
			done <- reply{err: err}
			return
		}
		done <- reply{raw: msg.Bytes()}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			t.resetRequest(sock)
			return nil, fmt.Errorf("cand: command recv: %w", r.err)
		}
		return r.raw, nil
	case <-ctx.Done():
		t.resetRequest(sock)
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, ErrTimeout
		}
		return nil, ctx.Err()
	case <-t.ctx.Done():
		return nil, ErrClosed
	}
}

func (t *ZMQTransport) resetRequest(old zmq4.Socket) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.req != old {
		return
	}
	old.Close()
	t.req = nil

	req := zmq4.NewReq(t.ctx, zmq4.WithDialerRetry(dialerRetry), zmq4.WithAutomaticReconnect(true))
	if err := req.Dial(t.endpoint(t.ports.Command)); err != nil {
		t.log.Warnf("[ZMQ] redial command socket failed : %v", err)
		req.Close()
		return
	}
	t.req = req
}

// Publish sends raw on the publish socket.
func (t *ZMQTransport) Publish(raw []byte) error {
	t.mu.Lock()
	sock := t.pub
	t.mu.Unlock()
	if sock == nil {
		return ErrNotConnected
	}
	return sock.Send(zmq4.NewMsg(raw))
}

// Receive returns the next frame read from the subscribe socket.
func (t *ZMQTransport) Receive(ctx context.Context) ([]byte, error) {
	select {
	case raw := <-t.frames:
		return raw, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-t.ctx.Done():
		return nil, ErrClosed
	}
}

// Close stops the monitor and closes all sockets without lingering.
func (t *ZMQTransport) Close() error {
	t.closeOnce.Do(func() {
		t.cancel()
		t.mu.Lock()
		t.closeSockets()
		t.mu.Unlock()
		t.wg.Wait()
	})
	return nil
}

func (t *ZMQTransport) monitor() {
	defer t.wg.Done()

	ticker := time.NewTicker(t.probeInterval)
	defer ticker.Stop()

	var (
		link net.Conn
		lost chan struct{}
	)
	defer func() {
		if link != nil {
			link.Close()
		}
	}()

	for {
		if link == nil {
			link, lost = t.up()
		}

		select {
		case <-t.ctx.Done():
			return
		case <-lost:
			link.Close()
			link, lost = nil, nil
			t.mu.Lock()
			t.closeSockets()
			t.mu.Unlock()
			t.log.Infof("[ZMQ] lost link to %v", t.host)
			t.emit(ConnEvent{State: Disconnected, Endpoint: t.endpoint(t.ports.Subscribe)})
			// the daemon may already be back
			continue
		case <-ticker.C:
		}
	}
}

// up opens the link and dials the sockets. Both results are nil while the
// daemon is unreachable.
func (t *ZMQTransport) up() (net.Conn, chan struct{}) {
	link, err := t.openLink()
	if err != nil {
		return nil, nil
	}
	if err := t.connect(); err != nil {
		if t.ctx.Err() == nil {
			t.log.Warnf("[ZMQ] connect to %v failed : %v", t.host, err)
		}
		link.Close()
		return nil, nil
	}

	lost := make(chan struct{})
	t.wg.Add(1)
	go t.watchLink(link, lost)
	t.emit(ConnEvent{State: Connected, Endpoint: t.endpoint(t.ports.Subscribe)})
	return link, lost
}

func (t *ZMQTransport) openLink() (net.Conn, error) {
	dialer := net.Dialer{Timeout: defaultProbeTimeout, KeepAlive: linkKeepAlive}
	addr := net.JoinHostPort(t.host, strconv.Itoa(t.ports.Subscribe))
	link, err := dialer.DialContext(t.ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}
	link.SetWriteDeadline(time.Now().Add(defaultProbeTimeout))
	if _, err := link.Write(linkHandshake); err != nil {
		link.Close()
		return nil, err
	}
	link.SetWriteDeadline(time.Time{})
	return link, nil
}

// watchLink drains the link until the daemon closes it.
func (t *ZMQTransport) watchLink(link net.Conn, lost chan struct{}) {
	defer t.wg.Done()
	defer close(lost)
	io.Copy(io.Discard, link)
}

func (t *ZMQTransport) emit(ev ConnEvent) {
	select {
	case t.events <- ev:
	case <-t.ctx.Done():
	}
}

func (t *ZMQTransport) connect() error {
	opts := []zmq4.Option{zmq4.WithDialerRetry(dialerRetry), zmq4.WithAutomaticReconnect(true)}
	req := zmq4.NewReq(t.ctx, opts...)
	sub := zmq4.NewSub(t.ctx, opts...)
	pub := zmq4.NewPub(t.ctx, opts...)
	fail := func(err error) error {
		req.Close()
		sub.Close()
		pub.Close()
		return err
	}

	if err := req.Dial(t.endpoint(t.ports.Command)); err != nil {
		return fail(fmt.Errorf("dial command: %w", err))
	}
	if err := sub.Dial(t.endpoint(t.ports.Subscribe)); err != nil {
		return fail(fmt.Errorf("dial subscribe: %w", err))
	}
	if err := sub.SetOption(zmq4.OptionSubscribe, ""); err != nil {
		return fail(fmt.Errorf("subscribe: %w", err))
	}
	if err := pub.Dial(t.endpoint(t.ports.Publish)); err != nil {
		return fail(fmt.Errorf("dial publish: %w", err))
	}

	t.mu.Lock()
	if t.ctx.Err() != nil {
		t.mu.Unlock()
		return fail(ErrClosed)
	}
	t.req, t.sub, t.pub = req, sub, pub
	t.mu.Unlock()

	t.wg.Add(1)
	go t.read(sub)
	return nil
}

// closeSockets must be called with mu held.
func (t *ZMQTransport) closeSockets() {
	for _, sock := range []zmq4.Socket{t.req, t.sub, t.pub} {
		if sock != nil {
			sock.Close()
		}
	}
	t.req, t.sub, t.pub = nil, nil, nil
}

func (t *ZMQTransport) read(sub zmq4.Socket) {
	defer t.wg.Done()
	for {
		msg, err := sub.Recv()
		if err != nil {
			if t.ctx.Err() == nil {
				t.log.Debugf("[ZMQ] subscribe socket closed : %v", err)
			}
			return
		}
		select {
		case t.frames <- msg.Bytes():
		case <-t.ctx.Done():
			return
		}
	}
}
