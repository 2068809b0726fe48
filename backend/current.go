// SPDX-FileCopyrightText: © 2023 Siemens AG
// SPDX-License-Identifier: MIT

package backend

import (
	"fmt"
	"sync/atomic"
)

var current atomic.Pointer[Backend]

// Install sets the process-wide default backend built from the named, registered
// factory. It replaces (without closing) whatever was installed before.
// Concurrent reads via Current are always safe; Install itself is not
// serialized against in-flight calls using the backend being replaced — the
// caller is responsible for quiescence around a reinstall, same as the
// upstream library this mirrors.
func Install(name string, options map[string]any) error {
	b, err := DefaultRegistry().New(name, options)
	if err != nil {
		return fmt.Errorf("backend: install %q: %w", name, err)
	}
	current.Store(&b)
	return nil
}

// InstallBackend sets the process-wide default to an already-constructed
// Backend, e.g. one built with custom options outside the registry.
func InstallBackend(b Backend) {
	current.Store(&b)
}

// Current returns the process-wide default backend, or nil if none has been
// installed.
func Current() Backend {
	p := current.Load()
	if p == nil {
		return nil
	}
	return *p
}

// ScopedInstall installs b as the process-wide default for the duration of
// fn, restoring whatever was installed beforehand once fn returns. It does
// not close either backend: ownership of Close stays with the caller who
// constructed them.
func ScopedInstall(b Backend, fn func() error) error {
	previous := Current()
	current.Store(&b)
	defer func() {
		current.Store(&previous)
	}()
	return fn()
}
