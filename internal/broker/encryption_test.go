package broker

import (
	"bytes"
	"testing"
	"time"
)

const testSecret = "this-is-a-valid-32-character-key"

func TestNewSealer_ShortSecret(t *testing.T) {
	_, err := NewSealer("short")
	if err != ErrInvalidKey {
		t.Errorf("NewSealer() error = %v, want %v", err, ErrInvalidKey)
	}
}

func TestSealer_RoundTrip(t *testing.T) {
	s, err := NewSealer(testSecret)
	if err != nil {
		t.Fatalf("NewSealer() error = %v", err)
	}

	testCases := []struct {
		name      string
		plaintext string
		scope     string
	}{
		{"capital token", "cst-token-value", "capital"},
		{"etoro token", "etoro-value", "etoro"},
		{"unicode", "пароль密码", "capital"},
		{"empty", "", "capital"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			sealed, err := s.Seal([]byte(tc.plaintext), tc.scope)
			if err != nil {
				t.Fatalf("Seal() error = %v", err)
			}
			if tc.plaintext != "" && bytes.Contains(sealed, []byte(tc.plaintext)) {
				t.Error("sealed output contains plaintext")
			}

			opened, err := s.Open(sealed, tc.scope)
			if err != nil {
				t.Fatalf("Open() error = %v", err)
			}
			if string(opened) != tc.plaintext {
				t.Errorf("Open() = %q, want %q", opened, tc.plaintext)
			}
		})
	}
}

func TestSealer_WrongScopeFails(t *testing.T) {
	s, _ := NewSealer(testSecret)

	sealed, err := s.Seal([]byte("token"), "capital")
	if err != nil {
		t.Fatalf("Seal() error = %v", err)
	}
	if _, err := s.Open(sealed, "etoro"); err != ErrDecryptionFailed {
		t.Errorf("Open() with other scope error = %v, want %v", err, ErrDecryptionFailed)
	}
}

func TestSealer_WrongSecretFails(t *testing.T) {
	s1, _ := NewSealer(testSecret)
	s2, _ := NewSealer("another-valid-secret-of-32-chars!")

	sealed, _ := s1.Seal([]byte("token"), "capital")
	if _, err := s2.Open(sealed, "capital"); err != ErrDecryptionFailed {
		t.Errorf("Open() with other secret error = %v, want %v", err, ErrDecryptionFailed)
	}
}

func TestSealer_TruncatedInput(t *testing.T) {
	s, _ := NewSealer(testSecret)
	if _, err := s.Open([]byte{1, 2, 3}, "capital"); err != ErrInvalidCiphertext {
		t.Errorf("Open() error = %v, want %v", err, ErrInvalidCiphertext)
	}
}

func TestSealer_SessionRoundTrip(t *testing.T) {
	s, _ := NewSealer(testSecret)
	in := &Session{
		Token:         "cst",
		SecurityToken: "xst",
		AccountID:     "ACC-1",
		IssuedAt:      time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC),
	}

	sealed, err := s.SealSession(in, "capital")
	if err != nil {
		t.Fatalf("SealSession() error = %v", err)
	}
	out, err := s.OpenSession(sealed, "capital")
	if err != nil {
		t.Fatalf("OpenSession() error = %v", err)
	}
	if *out != *in {
		t.Errorf("OpenSession() = %+v, want %+v", out, in)
	}
	if !out.Valid() {
		t.Error("restored session should be valid")
	}
}
