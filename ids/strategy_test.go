package ids

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestSequentialStrategy(t *testing.T) {
	gen, _, done := newGeneratorTest(t)
	defer done()

	s := NewSequential(gen, "next_user_id")
	for _, want := range []string{"1", "2", "3"} {
		got, err := s.Next(context.Background())
		if err != nil {
			t.Fatalf("Next error: %v", err)
		}
		if got != want {
			t.Fatalf("expected %q, got %q", want, got)
		}
	}

	for _, bad := range []string{"", "0", "01", "-1", "abc", "4294967296"} {
		if _, err := s.Parse(bad); !errors.Is(err, ErrHashedIDInvalid) {
			t.Fatalf("expected %q to be rejected, got %v", bad, err)
		}
	}
}

func TestObfuscatedStrategy(t *testing.T) {
	gen, mr, done := newGeneratorTest(t)
	defer done()
	mr.Set("user_id_salt", "00000000")

	o := NewObfuscated(gen, "next_user_id", "user_id_salt")
	id, err := o.Next(context.Background())
	if err != nil {
		t.Fatalf("Next error: %v", err)
	}
	if len(id) != 64 {
		t.Fatalf("expected 64 chars, got %d", len(id))
	}
	if id == "1" {
		t.Fatal("obfuscated id exposes the counter")
	}
}

func TestObfuscatedRejectsBrokenHash(t *testing.T) {
	_, mr, done := newGeneratorTest(t)
	defer done()

	rdb := newClient(mr.Addr())
	defer rdb.Close()

	broken := func(context.Context, []byte, string) (string, error) { return "NOT-HEX", nil }
	gen := NewGenerator(rdb, broken, func() (string, error) { return "s", nil })

	o := NewObfuscated(gen, "next_user_id", "user_id_salt")
	if _, err := o.Next(context.Background()); !errors.Is(err, ErrHashedIDInvalid) {
		t.Fatalf("expected ErrHashedIDInvalid, got %v", err)
	}
	if _, err := o.Parse(strings.Repeat("A", 64)); !errors.Is(err, ErrHashedIDInvalid) {
		t.Fatalf("expected upper-case hex to be rejected, got %v", err)
	}
}

func TestNewStrategy(t *testing.T) {
	gen, _, done := newGeneratorTest(t)
	defer done()

	cases := map[string]string{
		"sequential": StrategySequential,
		"obfuscated": StrategyObfuscated,
	}
	for name, want := range cases {
		s, err := NewStrategy(name, gen, "next_user_id", "user_id_salt")
		if err != nil {
			t.Fatalf("NewStrategy(%q): %v", name, err)
		}
		if s.Name() != want {
			t.Fatalf("NewStrategy(%q) = %q, want %q", name, s.Name(), want)
		}
	}

	for _, bad := range []string{"uuid", "", "Sequential"} {
		if _, err := NewStrategy(bad, gen, "next_user_id", "user_id_salt"); err == nil {
			t.Fatalf("expected strategy %q to be rejected", bad)
		}
	}
}

func TestResourceID(t *testing.T) {
	a, b := NewResourceID(), NewResourceID()
	if a == b {
		t.Fatal("expected distinct resource ids")
	}
	if _, err := ParseResourceID(a); err != nil {
		t.Fatalf("ParseResourceID(%q): %v", a, err)
	}
	if _, err := ParseResourceID(strings.ToUpper(a)); !errors.Is(err, ErrResourceIDInvalid) {
		t.Fatalf("expected non-canonical id to be rejected, got %v", err)
	}
	if _, err := ParseResourceID("store-1"); !errors.Is(err, ErrResourceIDInvalid) {
		t.Fatalf("expected garbage to be rejected, got %v", err)
	}
}
