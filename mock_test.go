package cand

import (
	"context"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var (
	statusEnum = NewEnum("status",
		EnumMember{Name: "OFF", Value: 0},
		EnumMember{Name: "ON", Value: 1},
		EnumMember{Name: "FAULT", Value: 2},
	)
	flagsFields = []BitField{
		{Name: "mode", Bits: 4, Offset: 0},
		{Name: "channel", Bits: 3, Offset: 4},
		{Name: "enabled", Bits: 1, Offset: 7},
	}

	entryStatus = &Entry{Name: "status", Index: 0x7000, Subindex: 0x1, DataType: TypeUint8, Default: UintValue(0), Enum: statusEnum}
	entryTemp   = &Entry{Name: "temperature", Index: 0x7000, Subindex: 0x2, DataType: TypeInt16, Default: IntValue(20),
		Limits: &Limits{Low: IntValue(-40), High: IntValue(125)}}
	entryFlags = &Entry{Name: "flags", Index: 0x7000, Subindex: 0x3, DataType: TypeUint16, Default: UintValue(0), BitFields: flagsFields}
	entryLabel = &Entry{Name: "label", Index: 0x7001, Subindex: 0x0, DataType: TypeString, Default: StringValue("cand")}
	entryScet  = &Entry{Name: "scet", Index: 0x6000, Subindex: 0x4, DataType: TypeUint64, Default: UintValue(0)}
	entryRatio = &Entry{Name: "ratio", Index: 0x7002, Subindex: 0x0, DataType: TypeFloat32, Default: FloatValue(0.5)}
	entryBlob  = &Entry{Name: "blob", Index: 0x7003, Subindex: 0x0, DataType: TypeDomain}
)

func testCatalog(t *testing.T) *Catalog {
	catalog, err := NewCatalog(entryStatus, entryTemp, entryFlags, entryLabel, entryScet, entryRatio, entryBlob)
	require.NoError(t, err)
	return catalog
}

func quietLogger() logrus.FieldLogger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func mustPack(t *testing.T, m Message) []byte {
	raw, err := Pack(m)
	require.NoError(t, err)
	return raw
}

// send_response is the reply the mock returns for a request. A nil frame
// never answers.
type send_response struct {
	wait  time.Duration
	frame []byte
}

type transportMock struct {
	mock.Mock

	events chan ConnEvent
	frames chan []byte

	mu        sync.Mutex
	published [][]byte

	inflight    int32
	maxInflight int32
}

func newTransportMock() *transportMock {
	return &transportMock{
		events: make(chan ConnEvent, 8),
		frames: make(chan []byte, 64),
	}
}

func (tr *transportMock) Request(ctx context.Context, req []byte) ([]byte, error) {
	n := atomic.AddInt32(&tr.inflight, 1)
	defer atomic.AddInt32(&tr.inflight, -1)
	for {
		max := atomic.LoadInt32(&tr.maxInflight)
		if n <= max || atomic.CompareAndSwapInt32(&tr.maxInflight, max, n) {
			break
		}
	}

	args := tr.Called(req)
	response := args.Get(0).(send_response)
	if response.frame == nil {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	select {
	case <-time.After(response.wait):
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return response.frame, args.Error(1)
}

func (tr *transportMock) Publish(raw []byte) error {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	tr.published = append(tr.published, append([]byte(nil), raw...))
	return nil
}

func (tr *transportMock) Receive(ctx context.Context) ([]byte, error) {
	select {
	case raw := <-tr.frames:
		return raw, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (tr *transportMock) Events() <-chan ConnEvent {
	return tr.events
}

func (tr *transportMock) Close() error {
	return nil
}

func (tr *transportMock) connect() {
	tr.events <- ConnEvent{State: Connected, Endpoint: "mock"}
}

func (tr *transportMock) disconnect() {
	tr.events <- ConnEvent{State: Disconnected, Endpoint: "mock"}
}

func (tr *transportMock) receive(t *testing.T, m Message) {
	tr.frames <- mustPack(t, m)
}

// publishedOf returns every published message of kind id, in order.
func (tr *transportMock) publishedOf(id MessageID) []Message {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	var out []Message
	for _, raw := range tr.published {
		m, err := Unpack(raw)
		if err == nil && m.ID() == id {
			out = append(out, m)
		}
	}
	return out
}

func (tr *transportMock) publishedCount() int {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	return len(tr.published)
}

func newTestManager(t *testing.T, opts ...Option) (*ManagerClient, *transportMock) {
	tr := newTransportMock()
	opts = append([]Option{
		WithLogger(quietLogger()),
		WithSettleDelay(0),
		WithTimeout(100 * time.Millisecond),
	}, opts...)
	manager := NewManagerClient(testCatalog(t), tr, opts...)
	t.Cleanup(func() { manager.Close() })
	return manager, tr
}
