package cand

import (
	"fmt"
	"os"
	"path/filepath"
)

// NodeClient is the client of an application running on the local node.
type NodeClient struct {
	*Client
}

// NewNodeClient starts a node client over transport.
func NewNodeClient(catalog *Catalog, transport ITransport, opts ...Option) *NodeClient {
	return &NodeClient{Client: NewClient(catalog, transport, opts...)}
}

// DialNode connects a node client to the daemon at host.
func DialNode(host string, catalog *Catalog, opts ...Option) *NodeClient {
	return &NodeClient{Client: Dial(host, catalog, opts...)}
}

// AddFile hands a local file to the daemon's file cache. Relative paths are
// resolved against the working directory.
func (node *NodeClient) AddFile(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("cand: add file %s: %w", path, err)
	}
	if err := checkRegularFile(abs); err != nil {
		return err
	}
	return node.sendAndRecv(&AddFileMessage{Path: abs}, &AddFileMessage{})
}

func checkRegularFile(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrFileNotFound, path)
		}
		return fmt.Errorf("cand: stat %s: %w", path, err)
	}
	if info.IsDir() {
		return fmt.Errorf("%w: %s is a directory", ErrFileNotFound, path)
	}
	return nil
}
