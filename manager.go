package cand

// ManagerClient is the client of the node managing the bus. On top of the
// local dictionary it reaches remote nodes through the daemon.
type ManagerClient struct {
	*Client
}

// NewManagerClient starts a manager client over transport.
func NewManagerClient(catalog *Catalog, transport ITransport, opts ...Option) *ManagerClient {
	return &ManagerClient{Client: NewClient(catalog, transport, opts...)}
}

// DialManager connects a manager client to the daemon at host.
func DialManager(host string, catalog *Catalog, opts ...Option) *ManagerClient {
	return &ManagerClient{Client: Dial(host, catalog, opts...)}
}

// OnHeartbeat sets the callback for remote node heartbeats. A nil cb
// removes it.
func (manager *ManagerClient) OnHeartbeat(cb HeartbeatCallback) {
	manager.mu.Lock()
	defer manager.mu.Unlock()
	manager.hbCb = cb
}

// OnEmcy sets the callback for remote node emergencies. A nil cb removes it.
func (manager *ManagerClient) OnEmcy(cb EmcyCallback) {
	manager.mu.Lock()
	defer manager.mu.Unlock()
	manager.emcyCb = cb
}

// NodeState returns the state of the last heartbeat seen from node.
func (manager *ManagerClient) NodeState(node uint8) (NodeState, bool) {
	manager.mu.RLock()
	defer manager.mu.RUnlock()
	state, ok := manager.nodeStates[node]
	return state, ok
}

// NodeStates returns the last known state of every node heard from.
func (manager *ManagerClient) NodeStates() map[uint8]NodeState {
	manager.mu.RLock()
	defer manager.mu.RUnlock()
	states := make(map[uint8]NodeState, len(manager.nodeStates))
	for node, state := range manager.nodeStates {
		states[node] = state
	}
	return states
}

// SendSync broadcasts a SYNC on the bus.
func (manager *ManagerClient) SendSync() {
	manager.publish(&SyncSendMessage{})
}
