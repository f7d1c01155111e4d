package secret

import (
	"errors"
	"strings"
	"testing"
)

func TestVaultRoundTrip(t *testing.T) {
	vault, err := NewVault("test-master-key")
	if err != nil {
		t.Fatalf("NewVault: %v", err)
	}

	for _, plaintext := range []string{
		"ya29.a0AfH6SMBexampleaccesstoken",
		"1//0gRefreshTokenWith/Slashes+And=Padding",
		"short",
	} {
		sealed, err := vault.Seal(plaintext)
		if err != nil {
			t.Fatalf("Seal(%q): %v", plaintext, err)
		}
		if sealed == plaintext {
			t.Fatalf("Seal(%q) returned plaintext", plaintext)
		}

		opened, err := vault.Open(sealed)
		if err != nil {
			t.Fatalf("Open: %v", err)
		}
		if opened != plaintext {
			t.Errorf("round trip: got %q, want %q", opened, plaintext)
		}
	}
}

func TestVaultEmptyValue(t *testing.T) {
	vault, err := NewVault("test-master-key")
	if err != nil {
		t.Fatalf("NewVault: %v", err)
	}

	sealed, err := vault.Seal("")
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	if sealed != "" {
		t.Errorf("Seal of empty value = %q, want empty", sealed)
	}

	opened, err := vault.Open("")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if opened != "" {
		t.Errorf("Open of empty value = %q, want empty", opened)
	}
}

func TestVaultNondeterministicNonce(t *testing.T) {
	vault, err := NewVault("test-master-key")
	if err != nil {
		t.Fatalf("NewVault: %v", err)
	}

	a, _ := vault.Seal("same input")
	b, _ := vault.Seal("same input")
	if a == b {
		t.Error("two seals of the same plaintext produced identical ciphertext")
	}
}

func TestVaultRejectsTamperedCiphertext(t *testing.T) {
	vault, err := NewVault("test-master-key")
	if err != nil {
		t.Fatalf("NewVault: %v", err)
	}

	sealed, err := vault.Seal("secret value")
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}

	// Flip a character inside the base64 payload.
	tampered := []byte(sealed)
	if tampered[10] == 'A' {
		tampered[10] = 'B'
	} else {
		tampered[10] = 'A'
	}

	if _, err := vault.Open(string(tampered)); !errors.Is(err, ErrInvalidCiphertext) {
		t.Errorf("Open of tampered value: got %v, want ErrInvalidCiphertext", err)
	}

	if _, err := vault.Open("not base64!!!"); !errors.Is(err, ErrInvalidCiphertext) {
		t.Errorf("Open of garbage: got %v, want ErrInvalidCiphertext", err)
	}

	if _, err := vault.Open("c2hvcnQ="); !errors.Is(err, ErrInvalidCiphertext) {
		t.Errorf("Open of too-short value: got %v, want ErrInvalidCiphertext", err)
	}
}

func TestVaultWrongKey(t *testing.T) {
	vaultA, _ := NewVault("key-a")
	vaultB, _ := NewVault("key-b")

	sealed, err := vaultA.Seal("secret value")
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}

	if _, err := vaultB.Open(sealed); !errors.Is(err, ErrInvalidCiphertext) {
		t.Errorf("Open under wrong key: got %v, want ErrInvalidCiphertext", err)
	}
}

func TestNewVaultRequiresKey(t *testing.T) {
	if _, err := NewVault(""); err == nil || !strings.Contains(err.Error(), "master key") {
		t.Errorf("NewVault(\"\"): got %v, want master key error", err)
	}
}
