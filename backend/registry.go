// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package backend

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/gogpu/shaderlab/internal/logging"
	"github.com/gogpu/shaderlab/surface"
)

// Backend names.
const (
	// BackendWGPU is the GPU backend built on gogpu/wgpu.
	BackendWGPU = "wgpu"
	// BackendSoftware is the CPU backend; it is always available.
	BackendSoftware = "software"
)

// Factory opens a device that renders into target.
type Factory func(target *surface.ImageSurface) (Device, error)

// registry holds registered backends.
var (
	registryMu sync.RWMutex
	backends   = make(map[string]Factory)
	// Priority order for backend selection (first available wins).
	backendPriority = []string{BackendWGPU, BackendSoftware}
)

// Register registers a backend factory with the given name.
// This is typically called from init() functions in backend packages.
// If a backend with the same name is already registered, it will be replaced.
// Register panics if factory is nil.
func Register(name string, factory Factory) {
	if factory == nil {
		panic("backend: Register factory is nil")
	}
	registryMu.Lock()
	defer registryMu.Unlock()
	backends[name] = factory
}

// Unregister removes a backend from the registry.
// This is useful for testing.
func Unregister(name string) {
	registryMu.Lock()
	defer registryMu.Unlock()
	delete(backends, name)
}

// Available returns the registered backend names in sorted order.
func Available() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	names := make([]string, 0, len(backends))
	for name := range backends {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// IsRegistered checks if a backend with the given name is registered.
func IsRegistered(name string) bool {
	registryMu.RLock()
	defer registryMu.RUnlock()
	_, ok := backends[name]
	return ok
}

// Open opens the named backend on target.
func Open(name string, target *surface.ImageSurface) (Device, error) {
	registryMu.RLock()
	factory, ok := backends[name]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q (forgotten import?)", ErrBackendNotAvailable, name)
	}
	dev, err := factory(target)
	if err != nil {
		return nil, fmt.Errorf("backend %s: %w", name, err)
	}
	return dev, nil
}

// OpenDefault opens the best available backend based on priority:
// wgpu > software > any other registered backend.
func OpenDefault(target *surface.ImageSurface) (Device, error) {
	registryMu.RLock()
	order := make([]string, 0, len(backends))
	order = append(order, backendPriority...)
	extra := make([]string, 0)
	for name := range backends {
		if !contains(backendPriority, name) {
			extra = append(extra, name)
		}
	}
	registryMu.RUnlock()
	sort.Strings(extra)
	order = append(order, extra...)

	var errs []error
	for _, name := range order {
		if !IsRegistered(name) {
			continue
		}
		dev, err := Open(name, target)
		if err == nil {
			logging.Logger().Info("backend selected", "backend", name)
			return dev, nil
		}
		logging.Logger().Warn("backend unavailable, trying next", "backend", name, "err", err)
		errs = append(errs, err)
	}
	if len(errs) == 0 {
		return nil, ErrBackendNotAvailable
	}
	return nil, fmt.Errorf("%w: %w", ErrBackendNotAvailable, errors.Join(errs...))
}

func contains(list []string, name string) bool {
	for _, s := range list {
		if s == name {
			return true
		}
	}
	return false
}
