package errkind

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestOfTaggedErrors(t *testing.T) {
	cases := []struct {
		kind Kind
	}{
		{Transient},
		{Permanent},
		{NotFound},
		{Conflict},
		{TenantViolation},
	}
	for _, c := range cases {
		err := New(c.kind, "boom")
		if got := Of(err); got != c.kind {
			t.Errorf("Of(New(%s)) = %s", c.kind, got)
		}
		if !Is(err, c.kind) {
			t.Errorf("Is(New(%s), %s) = false", c.kind, c.kind)
		}
	}
}

func TestOfSurvivesWrapping(t *testing.T) {
	inner := New(Permanent, "dimension mismatch")
	outer := fmt.Errorf("embed session: %w", inner)
	if got := Of(outer); got != Permanent {
		t.Fatalf("wrapped kind lost: got %s", got)
	}
}

func TestOfDefaultsToTransient(t *testing.T) {
	if got := Of(errors.New("plain")); got != Transient {
		t.Fatalf("untagged errors default to transient, got %s", got)
	}
	if got := Of(context.DeadlineExceeded); got != Transient {
		t.Fatalf("deadline exceeded is transient, got %s", got)
	}
}

func TestWrapNil(t *testing.T) {
	if Wrap(Permanent, nil) != nil {
		t.Fatalf("Wrap(nil) must stay nil")
	}
	if Of(nil) != "" {
		t.Fatalf("Of(nil) must be empty")
	}
}

func TestUnwrap(t *testing.T) {
	sentinel := errors.New("sentinel")
	err := Wrap(NotFound, sentinel)
	if !errors.Is(err, sentinel) {
		t.Fatalf("wrapped error must unwrap to sentinel")
	}
}
