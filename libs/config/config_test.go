package config

import (
	"testing"
	"time"
)

func TestPort(t *testing.T) {
	t.Setenv("TEST_PORT", "70000")
	if _, err := Port("TEST_PORT", "8080"); err == nil {
		t.Fatal("expected error for out of range port")
	}
	t.Setenv("TEST_PORT", "")
	p, err := Port("TEST_PORT", "8080")
	if err != nil || p != "8080" {
		t.Fatalf("expected fallback 8080, got %q (%v)", p, err)
	}
}

func TestList(t *testing.T) {
	t.Setenv("TEST_LIST", " a, ,b ,")
	got := List("TEST_LIST", nil)
	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Fatalf("unexpected list: %v", got)
	}
	t.Setenv("TEST_LIST", " , ")
	if got := List("TEST_LIST", []string{"x"}); len(got) != 1 || got[0] != "x" {
		t.Fatalf("expected fallback, got %v", got)
	}
}

func TestBoolAndDuration(t *testing.T) {
	t.Setenv("TEST_BOOL", "off")
	if Bool("TEST_BOOL", true) {
		t.Fatal("expected false")
	}
	t.Setenv("TEST_BOOL", "maybe")
	if !Bool("TEST_BOOL", true) {
		t.Fatal("expected fallback true")
	}

	t.Setenv("TEST_DURATION", "90s")
	d, err := Duration("TEST_DURATION", time.Second)
	if err != nil || d != 90*time.Second {
		t.Fatalf("unexpected duration %v (%v)", d, err)
	}
	t.Setenv("TEST_DURATION", "soon")
	if _, err := Duration("TEST_DURATION", time.Second); err == nil {
		t.Fatal("expected error for invalid duration")
	}
}

func TestLocation(t *testing.T) {
	t.Setenv("TEST_TZ", "")
	loc, err := Location("TEST_TZ")
	if err != nil || loc != time.UTC {
		t.Fatalf("expected UTC, got %v (%v)", loc, err)
	}
	t.Setenv("TEST_TZ", "Not/AZone")
	if _, err := Location("TEST_TZ"); err == nil {
		t.Fatal("expected error for unknown zone")
	}
}
