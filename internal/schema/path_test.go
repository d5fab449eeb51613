package schema

import (
	"errors"
	"testing"
)

func TestResolveNestedPath(t *testing.T) {
	payload := samplePayload()

	got, err := payload.Resolve("price.value")
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if got.Num != 50000.5 {
		t.Fatalf("resolved value mismatch: got %v want 50000.5", got.Num)
	}

	item, err := payload.Resolve("fills.1")
	if err != nil {
		t.Fatalf("resolve list index failed: %v", err)
	}
	if item.Num != 2 {
		t.Fatalf("list index mismatch: got %v want 2", item.Num)
	}
}

func TestResolveNamesUnresolvedSegment(t *testing.T) {
	payload := samplePayload()

	_, err := payload.Resolve("price.missing.deep")
	if err == nil {
		t.Fatal("expected error for missing segment")
	}
	var pathErr *PathError
	if !errors.As(err, &pathErr) {
		t.Fatalf("expected *PathError, got %T", err)
	}
	if pathErr.Segment != "missing" {
		t.Fatalf("wrong segment named: got %q want %q", pathErr.Segment, "missing")
	}
}

func TestSetPath(t *testing.T) {
	payload := samplePayload()

	if err := payload.SetPath("price.value", Number(100)); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	got, err := payload.Resolve("price.value")
	if err != nil {
		t.Fatalf("resolve after set failed: %v", err)
	}
	if got.Num != 100 {
		t.Fatalf("set did not stick: got %v want 100", got.Num)
	}

	if err := payload.SetPath("fills.5", Number(9)); err == nil {
		t.Fatal("expected out-of-range error")
	}
	if err := payload.SetPath("symbol.sub", Number(9)); err == nil {
		t.Fatal("expected error descending into string")
	}
}
