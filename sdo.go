package cand

import (
	"fmt"
	"os"
	"path/filepath"
)

var _ ISDOClient = (*ManagerClient)(nil)

// SdoReadRaw reads index:subindex of a remote node.
func (manager *ManagerClient) SdoReadRaw(node uint8, index uint16, subindex uint8) ([]byte, error) {
	reply := &SdoReadMessage{}
	req := &SdoReadMessage{Node: node, Index: index, Subindex: subindex}
	if err := manager.sendAndRecv(req, reply); err != nil {
		return nil, err
	}
	return reply.Raw, nil
}

// SdoRead reads entry from a remote node and decodes it. With useEnum set,
// integers that match a member of the entry's enum are returned as that
// member.
func (manager *ManagerClient) SdoRead(node uint8, entry *Entry, useEnum bool) (Value, error) {
	raw, err := manager.SdoReadRaw(node, entry.Index, entry.Subindex)
	if err != nil {
		return Value{}, err
	}
	if useEnum && entry.Enum != nil {
		return entry.DecodeToEnum(raw)
	}
	return entry.Decode(raw)
}

// SdoWriteRaw writes raw to index:subindex of a remote node.
func (manager *ManagerClient) SdoWriteRaw(node uint8, index uint16, subindex uint8, raw []byte) error {
	req := &SdoWriteMessage{Node: node, Index: index, Subindex: subindex, Raw: raw}
	return manager.sendAndRecv(req, &SdoWriteMessage{})
}

// SdoWrite encodes v for entry and writes it to a remote node.
func (manager *ManagerClient) SdoWrite(node uint8, entry *Entry, v Value) error {
	raw, err := entry.Encode(v)
	if err != nil {
		return err
	}
	return manager.SdoWriteRaw(node, entry.Index, entry.Subindex, raw)
}

// SdoReadFile copies a file from a remote node to local. If local is a
// directory the remote base name is appended; an empty local means the temp
// directory. It returns the local path written.
func (manager *ManagerClient) SdoReadFile(node uint8, remote string, local string) (string, error) {
	if local == "" {
		local = os.TempDir()
	}
	if info, err := os.Stat(local); err == nil && info.IsDir() {
		local = filepath.Join(local, filepath.Base(remote))
	}
	req := &SdoReadToFileMessage{Node: node, RemotePath: remote, LocalPath: local}
	if err := manager.sendAndRecv(req, &SdoReadToFileMessage{}); err != nil {
		return "", err
	}
	return local, nil
}

// SdoWriteFile copies the local file to a remote node. local must be an
// absolute path to an existing file. An empty remote keeps the local base
// name.
func (manager *ManagerClient) SdoWriteFile(node uint8, local string, remote string) error {
	if !filepath.IsAbs(local) {
		return fmt.Errorf("%w: %s", ErrPathNotAbsolute, local)
	}
	if err := checkRegularFile(local); err != nil {
		return err
	}
	if remote == "" {
		remote = filepath.Base(local)
	}
	req := &SdoWriteFromFileMessage{Node: node, LocalPath: local, RemotePath: remote}
	return manager.sendAndRecv(req, &SdoWriteFromFileMessage{})
}

// SdoListFiles lists the files a remote node offers.
func (manager *ManagerClient) SdoListFiles(node uint8) ([]string, error) {
	reply := &SdoListFilesMessage{}
	if err := manager.sendAndRecv(&SdoListFilesMessage{Node: node}, reply); err != nil {
		return nil, err
	}
	if len(reply.Files) == 0 {
		return []string{}, nil
	}
	return reply.Files, nil
}
