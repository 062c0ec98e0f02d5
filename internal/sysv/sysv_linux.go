//go:build linux

// Package sysv wraps System V shared memory segments, the kind MIT-SHM
// expects the client to hand to the X server.
package sysv

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// Memory implements display.SharedMemory on top of shmget/shmat/shmdt/shmctl.
type Memory struct{}

// Get creates a private segment readable and writable by the owner only.
func (Memory) Get(size int) (int, error) {
	if size <= 0 {
		return -1, fmt.Errorf("sysv: invalid segment size %d", size)
	}
	id, err := unix.SysvShmGet(unix.IPC_PRIVATE, size, unix.IPC_CREAT|0600)
	if err != nil {
		return -1, fmt.Errorf("sysv: shmget: %w", err)
	}
	return id, nil
}

// Attach maps segment id into the process.
func (Memory) Attach(id int) ([]byte, error) {
	data, err := unix.SysvShmAttach(id, 0, 0)
	if err != nil {
		return nil, fmt.Errorf("sysv: shmat %d: %w", id, err)
	}
	return data, nil
}

// Detach unmaps memory returned by Attach.
func (Memory) Detach(data []byte) error {
	if data == nil {
		return nil
	}
	if err := unix.SysvShmDetach(data); err != nil {
		return fmt.Errorf("sysv: shmdt: %w", err)
	}
	return nil
}

// Remove marks segment id for destruction once every process detaches.
func (Memory) Remove(id int) error {
	if _, err := unix.SysvShmCtl(id, unix.IPC_RMID, nil); err != nil {
		return fmt.Errorf("sysv: shmctl(IPC_RMID) %d: %w", id, err)
	}
	return nil
}
