package bcrypt

import (
	"strings"
	"testing"
)

func TestHashIsDeterministic(t *testing.T) {
	a, err := Hash("admin")
	if err != nil {
		t.Fatal(err)
	}
	b, err := Hash("admin")
	if err != nil {
		t.Fatal(err)
	}
	if a != b {
		t.Fatalf("same password hashed differently: %q vs %q", a, b)
	}
}

func TestHashLayout(t *testing.T) {
	h, err := Hash("secret")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(h, FixedSalt) {
		t.Fatalf("hash %q missing salt prefix", h)
	}
	if len(h) != len(FixedSalt)+31 {
		t.Fatalf("hash length = %d", len(h))
	}
}

func TestDifferentPasswordsDiffer(t *testing.T) {
	a, _ := Hash("alpha")
	b, _ := Hash("beta")
	if a == b {
		t.Fatal("distinct passwords collided")
	}
}

func TestEmptyPassword(t *testing.T) {
	if _, err := Hash(""); err != nil {
		t.Fatalf("empty password must hash: %v", err)
	}
}
