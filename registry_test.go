package gfx

import (
	"errors"
	"slices"
	"testing"
)

func TestRegisterPanics(t *testing.T) {
	registerFake(t, "dup", nil)

	tests := []struct {
		name string
		fn   func()
	}{
		{"nil factory", func() { Register("nil-factory", nil) }},
		{"duplicate", func() { registerFake(t, "dup", nil) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			defer func() {
				if recover() == nil {
					t.Error("Register did not panic")
				}
			}()
			tt.fn()
		})
	}
}

func TestRegistryLifecycle(t *testing.T) {
	registerFake(t, "b-fake", nil)
	registerFake(t, "a-fake", nil)

	if !IsRegistered("a-fake") || !IsRegistered("b-fake") {
		t.Fatal("registered backends not reported")
	}
	got := Available()
	if !slices.IsSorted(got) || !slices.Contains(got, "a-fake") {
		t.Errorf("Available() = %v, want sorted names including a-fake", got)
	}

	Unregister("a-fake")
	if IsRegistered("a-fake") {
		t.Error("Unregister left the backend registered")
	}
}

func TestOpenBackendByName(t *testing.T) {
	registerFake(t, "named", nil)

	b, err := OpenBackend(Config{Backend: "named"})
	if err != nil {
		t.Fatal(err)
	}
	if got := b.Capabilities().Name; got != "named" {
		t.Errorf("opened %q, want named", got)
	}
}

func TestOpenBackendNotAvailable(t *testing.T) {
	registerFake(t, "broken", errors.New("no adapter"))

	tests := []struct {
		name    string
		backend string
	}{
		{"unknown", "does-not-exist"},
		{"factory fails", "broken"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := OpenBackend(Config{Backend: tt.backend}); !errors.Is(err, ErrBackendNotAvailable) {
				t.Errorf("OpenBackend(%q) error = %v, want ErrBackendNotAvailable", tt.backend, err)
			}
		})
	}
}

func TestOpenBackendAutoFallsBack(t *testing.T) {
	registerFake(t, BackendHAL, errors.New("no adapter"))
	registerFake(t, "zz-fallback", nil)

	b, err := OpenBackend(Config{Backend: BackendAuto})
	if err != nil {
		t.Fatal(err)
	}
	if got := b.Capabilities().Name; got != "zz-fallback" {
		t.Errorf("auto opened %q, want zz-fallback after hal failed", got)
	}
}

func TestOpenBackendAutoPriority(t *testing.T) {
	registerFake(t, "aa-other", nil)
	registerFake(t, BackendTrace, nil)

	b, err := OpenBackend(Config{})
	if err != nil {
		t.Fatal(err)
	}
	if got := b.Capabilities().Name; got != BackendTrace {
		t.Errorf("auto opened %q, want the priority backend %q", got, BackendTrace)
	}
}
