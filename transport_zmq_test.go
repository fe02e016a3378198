package cand

import (
	"context"
	"net"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/go-zeromq/zmq4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port
}

type fakeDaemon struct {
	rep zmq4.Socket
	pub zmq4.Socket
	sub zmq4.Socket

	once sync.Once
}

func (d *fakeDaemon) close() {
	d.once.Do(func() {
		d.rep.Close()
		d.pub.Close()
		d.sub.Close()
	})
}

func newFakeDaemon(t *testing.T, ports Ports) *fakeDaemon {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	listen := func(port int) string { return "tcp://127.0.0.1:" + strconv.Itoa(port) }
	d := &fakeDaemon{
		rep: zmq4.NewRep(ctx),
		pub: zmq4.NewPub(ctx),
		sub: zmq4.NewSub(ctx),
	}
	require.NoError(t, d.rep.Listen(listen(ports.Command)))
	require.NoError(t, d.pub.Listen(listen(ports.Subscribe)))
	require.NoError(t, d.sub.Listen(listen(ports.Publish)))
	require.NoError(t, d.sub.SetOption(zmq4.OptionSubscribe, ""))
	t.Cleanup(d.close)
	return d
}

func waitEvent(t *testing.T, tr *ZMQTransport, want ConnectionState) {
	t.Helper()
	select {
	case ev := <-tr.Events():
		require.Equal(t, want, ev.State)
	case <-time.After(3 * time.Second):
		t.Fatalf("no %v event", want)
	}
}

func TestZMQTransport(t *testing.T) {
	if testing.Short() {
		t.Skip("opens local sockets")
	}

	ports := Ports{Command: freePort(t), Subscribe: freePort(t), Publish: freePort(t)}
	daemon := newFakeDaemon(t, ports)

	tr := NewZMQTransport("127.0.0.1", ports, quietLogger())
	t.Cleanup(func() { tr.Close() })
	waitEvent(t, tr, Connected)

	// command channel
	req := mustPack(t, &SdoReadMessage{Node: 0x02, Index: 0x1000})
	reply := mustPack(t, &SdoReadMessage{Node: 0x02, Index: 0x1000, Raw: []byte{0x91, 0x01, 0x00, 0x00}})
	go func() {
		msg, err := daemon.rep.Recv()
		if err != nil {
			return
		}
		if assert.Equal(t, req, msg.Bytes()) {
			daemon.rep.Send(zmq4.NewMsg(reply))
		}
	}()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	got, err := tr.Request(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, reply, got)

	// publish channel, repeated until the subscription is in place
	broadcast := mustPack(t, &OdWriteMessage{Index: 0x7000, Subindex: 0x1, Raw: []byte{0x01}})
	received := make(chan []byte, 1)
	go func() {
		msg, err := daemon.sub.Recv()
		if err == nil {
			received <- msg.Bytes()
		}
	}()
	require.Eventually(t, func() bool {
		if tr.Publish(broadcast) != nil {
			return false
		}
		select {
		case raw := <-received:
			assert.Equal(t, broadcast, raw)
			return true
		case <-time.After(50 * time.Millisecond):
			return false
		}
	}, 3*time.Second, 10*time.Millisecond)

	// subscribe channel
	hb := mustPack(t, &HbRecvMessage{Node: 0x05, State: NodeOperational})
	require.Eventually(t, func() bool {
		if daemon.pub.Send(zmq4.NewMsg(hb)) != nil {
			return false
		}
		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()
		raw, err := tr.Receive(ctx)
		return err == nil && assert.Equal(t, hb, raw)
	}, 3*time.Second, 10*time.Millisecond)

	// daemon goes away
	daemon.close()
	waitEvent(t, tr, Disconnected)
	_, err = tr.Request(context.Background(), req)
	assert.ErrorIs(t, err, ErrNotConnected)
	assert.ErrorIs(t, tr.Publish(broadcast), ErrNotConnected)
}

func TestZMQTransport_DaemonRestart(t *testing.T) {
	if testing.Short() {
		t.Skip("opens local sockets")
	}

	ports := Ports{Command: freePort(t), Subscribe: freePort(t), Publish: freePort(t)}
	daemon := newFakeDaemon(t, ports)

	tr := NewZMQTransport("127.0.0.1", ports, quietLogger())
	t.Cleanup(func() { tr.Close() })
	waitEvent(t, tr, Connected)

	// the link stays up across probe intervals
	select {
	case ev := <-tr.Events():
		t.Fatalf("unexpected %v event", ev.State)
	case <-time.After(2 * defaultProbeInterval):
	}

	// restart well inside one probe interval
	daemon.close()
	time.Sleep(50 * time.Millisecond)
	daemon = newFakeDaemon(t, ports)

	waitEvent(t, tr, Disconnected)
	waitEvent(t, tr, Connected)

	bus := mustPack(t, &BusStateMessage{State: BusUp})
	require.Eventually(t, func() bool {
		if daemon.pub.Send(zmq4.NewMsg(bus)) != nil {
			return false
		}
		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()
		raw, err := tr.Receive(ctx)
		return err == nil && assert.Equal(t, bus, raw)
	}, 3*time.Second, 10*time.Millisecond)
}

func TestZMQTransport_RequestTimeout(t *testing.T) {
	if testing.Short() {
		t.Skip("opens local sockets")
	}

	ports := Ports{Command: freePort(t), Subscribe: freePort(t), Publish: freePort(t)}
	newFakeDaemon(t, ports)

	tr := NewZMQTransport("127.0.0.1", ports, quietLogger())
	t.Cleanup(func() { tr.Close() })
	waitEvent(t, tr, Connected)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_, err := tr.Request(ctx, mustPack(t, &SyncSendMessage{}))
	assert.ErrorIs(t, err, ErrTimeout)

	tr.mu.Lock()
	assert.NotNil(t, tr.req, "command socket is replaced after a timeout")
	tr.mu.Unlock()
}

func TestZMQTransport_Closed(t *testing.T) {
	tr := NewZMQTransport("127.0.0.1", Ports{Command: 1, Subscribe: 1, Publish: 1}, quietLogger())
	require.NoError(t, tr.Close())
	require.NoError(t, tr.Close())

	_, err := tr.Receive(context.Background())
	assert.ErrorIs(t, err, ErrClosed)
	_, err = tr.Request(context.Background(), []byte{0x00, 0x08})
	assert.ErrorIs(t, err, ErrNotConnected)
}

func TestZMQTransport_ConnectAfterClose(t *testing.T) {
	if testing.Short() {
		t.Skip("opens local sockets")
	}

	ports := Ports{Command: freePort(t), Subscribe: freePort(t), Publish: freePort(t)}
	newFakeDaemon(t, ports)

	tr := NewZMQTransport("127.0.0.1", Ports{Command: 1, Subscribe: 1, Publish: 1}, quietLogger())
	require.NoError(t, tr.Close())

	tr.ports = ports
	assert.Error(t, tr.connect())
	tr.mu.Lock()
	defer tr.mu.Unlock()
	assert.Nil(t, tr.req)
	assert.Nil(t, tr.sub)
	assert.Nil(t, tr.pub)
}

func TestLinkHandshake(t *testing.T) {
	require.Len(t, linkHandshake, 64+2+25)
	assert.Equal(t, byte(0xFF), linkHandshake[0])
	assert.Equal(t, byte(0x7F), linkHandshake[9])
	assert.Equal(t, []byte{3, 0}, linkHandshake[10:12])
	assert.Equal(t, "NULL", string(linkHandshake[12:16]))
	assert.Equal(t, []byte{0x04, 25, 5}, linkHandshake[64:67])
	assert.Equal(t, "READY", string(linkHandshake[67:72]))
	assert.Equal(t, "SUB", string(linkHandshake[len(linkHandshake)-3:]))
}
