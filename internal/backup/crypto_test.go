package backup

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestGenerateSalt(t *testing.T) {
	salt1, err := GenerateSalt()
	if err != nil {
		t.Fatalf("generate salt: %v", err)
	}
	if len(salt1) != saltSize {
		t.Errorf("salt length = %d, want %d", len(salt1), saltSize)
	}

	salt2, err := GenerateSalt()
	if err != nil {
		t.Fatalf("generate salt 2: %v", err)
	}
	if bytes.Equal(salt1, salt2) {
		t.Error("two salts should not be equal")
	}
}

func TestDeriveKey(t *testing.T) {
	salt := []byte("1234567890abcdef")

	if !bytes.Equal(DeriveKey("pass", salt), DeriveKey("pass", salt)) {
		t.Error("same passphrase+salt should produce same key")
	}
	if len(DeriveKey("pass", salt)) != keySize {
		t.Errorf("key length = %d, want %d", len(DeriveKey("pass", salt)), keySize)
	}
	if bytes.Equal(DeriveKey("password1", salt), DeriveKey("password2", salt)) {
		t.Error("different passphrases should produce different keys")
	}
}

func TestSealOpen(t *testing.T) {
	salt, _ := GenerateSalt()
	original := []byte("SQLite format 3\x00 with some rows")

	sealed, err := Seal(original, "correct horse", salt)
	if err != nil {
		t.Fatalf("seal: %v", err)
	}
	if !bytes.HasPrefix(sealed, magic) {
		t.Error("sealed payload should start with the format header")
	}
	if !bytes.Equal(sealed[len(magic):len(magic)+saltSize], salt) {
		t.Error("salt should follow the header")
	}

	got, err := Open(sealed, "correct horse")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if !bytes.Equal(got, original) {
		t.Errorf("open = %q, want %q", got, original)
	}
}

func TestOpenFailures(t *testing.T) {
	salt, _ := GenerateSalt()
	sealed, err := Seal([]byte("secret data"), "password", salt)
	if err != nil {
		t.Fatalf("seal: %v", err)
	}

	if _, err := Open(sealed, "wrong-password"); err == nil {
		t.Error("expected error with wrong passphrase")
	}

	tampered := append([]byte(nil), sealed...)
	tampered[len(tampered)-1] ^= 0xFF
	if _, err := Open(tampered, "password"); err == nil {
		t.Error("expected error with tampered ciphertext")
	}

	if _, err := Open([]byte("SQLite format 3"), "password"); !errors.Is(err, errUnknownFormat) {
		t.Errorf("err = %v, want errUnknownFormat", err)
	}

	if _, err := Open(append(append([]byte(nil), magic...), "short"...), "password"); err == nil {
		t.Error("expected error with truncated payload")
	}
}

func TestSealRejectsBadSalt(t *testing.T) {
	if _, err := Seal([]byte("x"), "password", []byte("short")); err == nil {
		t.Fatal("expected error for short salt")
	}
}

func TestEncryptDecryptFile(t *testing.T) {
	dir := t.TempDir()
	srcPath := filepath.Join(dir, "source.db")
	encPath := filepath.Join(dir, "source.db.enc")
	decPath := filepath.Join(dir, "decrypted.db")

	for _, original := range [][]byte{[]byte("database content"), {}} {
		if err := os.WriteFile(srcPath, original, 0600); err != nil {
			t.Fatalf("write source: %v", err)
		}
		salt, _ := GenerateSalt()
		if err := EncryptFile(srcPath, encPath, "pass", salt); err != nil {
			t.Fatalf("encrypt: %v", err)
		}
		if err := DecryptFile(encPath, decPath, "pass"); err != nil {
			t.Fatalf("decrypt: %v", err)
		}
		decrypted, _ := os.ReadFile(decPath)
		if !bytes.Equal(decrypted, original) {
			t.Errorf("decrypted = %q, want %q", decrypted, original)
		}
	}
}
