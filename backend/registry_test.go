// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package backend

import (
	"errors"
	"testing"

	"github.com/gogpu/shaderlab/surface"
)

// stubDevice satisfies Device for registry tests; only Name is callable.
type stubDevice struct {
	Device
	name string
}

func (d stubDevice) Name() string { return d.name }

func stubFactory(name string) Factory {
	return func(*surface.ImageSurface) (Device, error) {
		return stubDevice{name: name}, nil
	}
}

func failingFactory(err error) Factory {
	return func(*surface.ImageSurface) (Device, error) {
		return nil, err
	}
}

// withRegistry swaps the registry for the duration of a test.
func withRegistry(t *testing.T, entries map[string]Factory) {
	t.Helper()
	registryMu.Lock()
	saved := backends
	backends = make(map[string]Factory)
	for k, v := range entries {
		backends[k] = v
	}
	registryMu.Unlock()
	t.Cleanup(func() {
		registryMu.Lock()
		backends = saved
		registryMu.Unlock()
	})
}

func TestRegisterAndAvailable(t *testing.T) {
	withRegistry(t, nil)

	Register("zeta", stubFactory("zeta"))
	Register("alpha", stubFactory("alpha"))

	got := Available()
	if len(got) != 2 || got[0] != "alpha" || got[1] != "zeta" {
		t.Errorf("Available() = %v, want [alpha zeta]", got)
	}
	if !IsRegistered("alpha") {
		t.Error("IsRegistered(alpha) = false")
	}

	Unregister("alpha")
	if IsRegistered("alpha") {
		t.Error("IsRegistered(alpha) after Unregister = true")
	}
}

func TestRegisterNilPanics(t *testing.T) {
	withRegistry(t, nil)
	defer func() {
		if recover() == nil {
			t.Error("Register(nil) did not panic")
		}
	}()
	Register("nil", nil)
}

func TestOpenUnknown(t *testing.T) {
	withRegistry(t, nil)

	_, err := Open("missing", surface.NewImageSurface(4, 4))
	if !errors.Is(err, ErrBackendNotAvailable) {
		t.Errorf("Open(missing) error = %v, want ErrBackendNotAvailable", err)
	}
}

func TestOpenDefaultPriority(t *testing.T) {
	boom := errors.New("no adapter")

	tests := []struct {
		name    string
		entries map[string]Factory
		want    string
		wantErr bool
	}{
		{
			name: "wgpu preferred",
			entries: map[string]Factory{
				BackendSoftware: stubFactory(BackendSoftware),
				BackendWGPU:     stubFactory(BackendWGPU),
			},
			want: BackendWGPU,
		},
		{
			name: "falls back to software",
			entries: map[string]Factory{
				BackendSoftware: stubFactory(BackendSoftware),
				BackendWGPU:     failingFactory(boom),
			},
			want: BackendSoftware,
		},
		{
			name:    "custom backend last",
			entries: map[string]Factory{"custom": stubFactory("custom")},
			want:    "custom",
		},
		{
			name:    "nothing registered",
			entries: nil,
			wantErr: true,
		},
		{
			name:    "all fail",
			entries: map[string]Factory{BackendWGPU: failingFactory(boom)},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			withRegistry(t, tt.entries)

			dev, err := OpenDefault(surface.NewImageSurface(4, 4))
			if tt.wantErr {
				if !errors.Is(err, ErrBackendNotAvailable) {
					t.Fatalf("OpenDefault() error = %v, want ErrBackendNotAvailable", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("OpenDefault() error = %v", err)
			}
			if dev.Name() != tt.want {
				t.Errorf("OpenDefault() = %q, want %q", dev.Name(), tt.want)
			}
		})
	}
}

func TestStageString(t *testing.T) {
	if StageVertex.String() != "vertex" || StageFragment.String() != "fragment" {
		t.Errorf("unexpected stage names %q %q", StageVertex, StageFragment)
	}
	if Stage(9).String() != "Stage(9)" {
		t.Errorf("Stage(9).String() = %q", Stage(9).String())
	}
}

func TestLocationFound(t *testing.T) {
	if NoLocation.Found() {
		t.Error("NoLocation.Found() = true")
	}
	if !Location(0).Found() {
		t.Error("Location(0).Found() = false")
	}
}
