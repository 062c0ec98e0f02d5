//go:build !linux

// Package sysv wraps System V shared memory segments, the kind MIT-SHM
// expects the client to hand to the X server.
package sysv

import "errors"

var errUnsupported = errors.New("sysv: shared memory segments are only supported on linux")

// Memory reports every operation as unsupported off linux.
type Memory struct{}

func (Memory) Get(size int) (int, error)     { return -1, errUnsupported }
func (Memory) Attach(id int) ([]byte, error) { return nil, errUnsupported }
func (Memory) Detach(data []byte) error      { return errUnsupported }
func (Memory) Remove(id int) error           { return errUnsupported }
