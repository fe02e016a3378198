package cand

import (
	"errors"
	"fmt"
)

// consume reads broadcasts until the client is closed. A bad frame or a
// failing callback never stops the loop.
func (client *Client) consume() {
	defer client.wg.Done()
	for {
		raw, err := client.transport.Receive(client.ctx)
		if err != nil {
			if client.ctx.Err() != nil || errors.Is(err, ErrClosed) {
				return
			}
			client.log.Warnf("[CONSUME] receive failed : %v", err)
			continue
		}
		if err := client.dispatch(raw); err != nil {
			client.log.Errorf("[CONSUME] %v", err)
		}
	}
}

func (client *Client) dispatch(raw []byte) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("callback panic: %v", r)
		}
	}()

	client.log.Debugf("[CONSUME] %X", raw)
	msg, err := Unpack(raw)
	if err != nil {
		return err
	}

	switch m := msg.(type) {
	case *OdWriteMessage:
		return client.consumeOdWrite(m)
	case *HbRecvMessage:
		return client.consumeHeartbeat(m)
	case *EmcyRecvMessage:
		client.mu.RLock()
		cb := client.emcyCb
		client.mu.RUnlock()
		if cb != nil {
			cb(m.Node, m.Code, m.Info)
		}
	case *BusStateMessage:
		if !m.State.Valid() {
			return fmt.Errorf("invalid bus state %d", uint8(m.State))
		}
		client.mu.Lock()
		client.busState = m.State
		client.mu.Unlock()
	default:
		client.log.Debugf("[CONSUME] ignored %s", msg.ID())
	}
	return nil
}

// consumeOdWrite always stores the new value but only calls the owner's
// callback when the value changed.
func (client *Client) consumeOdWrite(m *OdWriteMessage) error {
	entry, err := client.catalog.Find(m.Index, m.Subindex)
	if err != nil {
		return err
	}
	v, err := entry.Decode(m.Raw)
	if err != nil {
		return err
	}

	client.mu.Lock()
	d := client.data[entry.Key()]
	changed := !d.value.Equal(v)
	d.value = v
	cb := d.writeCb
	client.mu.Unlock()

	if changed && cb != nil {
		cb(v)
	}
	return nil
}

func (client *Client) consumeHeartbeat(m *HbRecvMessage) error {
	if !m.State.Valid() {
		return fmt.Errorf("node 0x%02X: invalid heartbeat state 0x%02X", m.Node, uint8(m.State))
	}
	client.mu.Lock()
	client.nodeStates[m.Node] = m.State
	cb := client.hbCb
	client.mu.Unlock()

	if cb != nil {
		cb(m.Node, m.State)
	}
	return nil
}
