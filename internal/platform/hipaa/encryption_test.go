package hipaa

import (
	"crypto/rand"
	"strings"
	"testing"
)

func generateTestKey(t *testing.T) []byte {
	t.Helper()
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		t.Fatalf("generate test key: %v", err)
	}
	return key
}

func TestNewTokenSealer(t *testing.T) {
	t.Run("valid 32-byte key", func(t *testing.T) {
		s, err := NewTokenSealer(generateTestKey(t))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if s == nil {
			t.Fatal("expected non-nil sealer")
		}
	})

	t.Run("key too short", func(t *testing.T) {
		if _, err := NewTokenSealer(make([]byte, 16)); err == nil {
			t.Fatal("expected error for 16-byte key")
		}
	})

	t.Run("empty key", func(t *testing.T) {
		if _, err := NewTokenSealer([]byte{}); err == nil {
			t.Fatal("expected error for empty key")
		}
	})
}

func TestNewTokenSealerFromHex(t *testing.T) {
	_, ephemeral, err := NewTokenSealerFromHex(strings.Repeat("ab", 32))
	if err != nil || ephemeral {
		t.Fatalf("expected fixed-key sealer, got ephemeral=%v err=%v", ephemeral, err)
	}

	_, ephemeral, err = NewTokenSealerFromHex("")
	if err != nil || !ephemeral {
		t.Fatalf("expected ephemeral sealer, got ephemeral=%v err=%v", ephemeral, err)
	}

	if _, _, err := NewTokenSealerFromHex("not-hex"); err == nil {
		t.Fatal("expected error for invalid hex")
	}
}

func TestSealOpen(t *testing.T) {
	s, err := NewTokenSealer(generateTestKey(t))
	if err != nil {
		t.Fatalf("create sealer: %v", err)
	}

	for _, plaintext := range []string{
		"eyJhbGciOiJIUzI1NiJ9.payload.sig",
		"",
		"\x00\x01binary\xff",
	} {
		sealed, err := s.Seal(plaintext)
		if err != nil {
			t.Fatalf("seal: %v", err)
		}
		if plaintext != "" && strings.Contains(sealed, plaintext) {
			t.Fatal("sealed value leaks plaintext")
		}
		opened, err := s.Open(sealed)
		if err != nil {
			t.Fatalf("open: %v", err)
		}
		if opened != plaintext {
			t.Errorf("expected %q, got %q", plaintext, opened)
		}
	}
}

func TestSeal_NonceVaries(t *testing.T) {
	s, _ := NewTokenSealer(generateTestKey(t))
	a, _ := s.Seal("same")
	b, _ := s.Seal("same")
	if a == b {
		t.Error("expected different ciphertexts for the same plaintext")
	}
}

func TestOpen_WrongKey(t *testing.T) {
	s1, _ := NewTokenSealer(generateTestKey(t))
	s2, _ := NewTokenSealer(generateTestKey(t))

	sealed, _ := s1.Seal("token")
	if _, err := s2.Open(sealed); err == nil {
		t.Fatal("expected error opening with a different key")
	}
}

func TestOpen_Malformed(t *testing.T) {
	s, _ := NewTokenSealer(generateTestKey(t))
	for _, in := range []string{"!!!not-base64", "c2hvcnQ="} {
		if _, err := s.Open(in); err == nil {
			t.Errorf("expected error for %q", in)
		}
	}
}
