package executor

import (
	"errors"
	"reflect"
	"testing"

	"github.com/rs/zerolog"
)

func TestManagerOpenGetClose(t *testing.T) {
	m := NewManager(nil, zerolog.Nop())

	exec, err := m.Open("pos-1", DefaultStrategy(), 100, 1000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if exec.PositionID() != "pos-1" {
		t.Errorf("expected pos-1, got %s", exec.PositionID())
	}

	if _, err := m.Open("pos-1", DefaultStrategy(), 100, 1000); !errors.Is(err, ErrPositionExists) {
		t.Errorf("expected ErrPositionExists, got %v", err)
	}

	got, err := m.Get("pos-1")
	if err != nil || got != exec {
		t.Errorf("expected the opened executor back, got %v (%v)", got, err)
	}
	if _, err := m.Get("missing"); !errors.Is(err, ErrPositionNotFound) {
		t.Errorf("expected ErrPositionNotFound, got %v", err)
	}

	if err := m.Close("pos-1"); err != nil {
		t.Fatalf("unexpected close error: %v", err)
	}
	if err := m.Close("pos-1"); !errors.Is(err, ErrPositionNotFound) {
		t.Errorf("expected ErrPositionNotFound on double close, got %v", err)
	}
}

func TestManagerOpenRejectsInvalidParameters(t *testing.T) {
	m := NewManager(nil, zerolog.Nop())

	if _, err := m.Open("pos-1", DefaultStrategy(), 0, 1000); !errors.Is(err, ErrInvalidEntryPrice) {
		t.Errorf("expected ErrInvalidEntryPrice, got %v", err)
	}
	// The failed open must not register the position.
	if _, err := m.Open("pos-1", DefaultStrategy(), 100, 1000); err != nil {
		t.Errorf("position should be free after a failed open: %v", err)
	}
}

func TestManagerPositionsSorted(t *testing.T) {
	m := NewManager(nil, zerolog.Nop())
	for _, id := range []string{"charlie", "alpha", "bravo"} {
		if _, err := m.Open(id, DefaultStrategy(), 100, 1000); err != nil {
			t.Fatalf("open %s: %v", id, err)
		}
	}
	want := []string{"alpha", "bravo", "charlie"}
	if got := m.Positions(); !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}
