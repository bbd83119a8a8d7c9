package crypto

import (
	"bytes"
	"encoding/hex"
	"testing"

	"github.com/Klingon-tech/signtoken/pkg/types"
)

func TestGenerateKey(t *testing.T) {
	key, err := GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey() error: %v", err)
	}

	if pub := key.PublicKey(); len(pub) != 33 {
		t.Errorf("PublicKey() length = %d, want 33", len(pub))
	}
	if ser := key.Serialize(); len(ser) != 32 {
		t.Errorf("Serialize() length = %d, want 32", len(ser))
	}
}

func TestGenerateKey_Unique(t *testing.T) {
	k1, err := GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey() error: %v", err)
	}
	k2, err := GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey() error: %v", err)
	}
	if bytes.Equal(k1.Serialize(), k2.Serialize()) {
		t.Error("two generated keys should not be identical")
	}
}

func TestPrivateKeyFromHex(t *testing.T) {
	original, err := GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey() error: %v", err)
	}

	for _, s := range []string{
		hex.EncodeToString(original.Serialize()),
		"0x" + hex.EncodeToString(original.Serialize()),
		"  " + hex.EncodeToString(original.Serialize()) + "\n",
	} {
		restored, err := PrivateKeyFromHex(s)
		if err != nil {
			t.Fatalf("PrivateKeyFromHex(%q): %v", s, err)
		}
		if restored.Address() != original.Address() {
			t.Error("restored key should control the same address")
		}
	}

	if _, err := PrivateKeyFromHex("zz"); err == nil {
		t.Error("bad hex should fail")
	}
}

func TestPrivateKeyFromBytes_InvalidLength(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"empty", []byte{}},
		{"too short", make([]byte, 16)},
		{"too long", make([]byte, 64)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := PrivateKeyFromBytes(tt.data); err == nil {
				t.Error("expected error for invalid key length")
			}
		})
	}
}

func TestSign_Verify(t *testing.T) {
	key, err := GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey() error: %v", err)
	}

	digest := CallDigest(types.Hash{}, "token_claim", []byte("{}"), 0)
	sig, err := key.Sign(digest)
	if err != nil {
		t.Fatalf("Sign() error: %v", err)
	}
	if len(sig) != 64 {
		t.Errorf("signature length = %d, want 64", len(sig))
	}
	if !VerifySignature(digest, sig, key.PublicKey()) {
		t.Error("signature should verify against the correct key and digest")
	}
}

func TestSign_Deterministic(t *testing.T) {
	key, err := GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey() error: %v", err)
	}

	digest := Hash([]byte("deterministic test"))
	sig1, err := key.Sign(digest)
	if err != nil {
		t.Fatalf("Sign() error: %v", err)
	}
	sig2, err := key.Sign(digest)
	if err != nil {
		t.Fatalf("Sign() error: %v", err)
	}
	if !bytes.Equal(sig1, sig2) {
		t.Error("Schnorr signatures should be deterministic (RFC6979 nonces)")
	}
}

func TestVerify_Rejects(t *testing.T) {
	key1, err := GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey() error: %v", err)
	}
	key2, err := GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey() error: %v", err)
	}

	digest := Hash([]byte("message"))
	sig, err := key1.Sign(digest)
	if err != nil {
		t.Fatalf("Sign() error: %v", err)
	}

	if VerifySignature(Hash([]byte("different message")), sig, key1.PublicKey()) {
		t.Error("signature should not verify with wrong digest")
	}
	if VerifySignature(digest, sig, key2.PublicKey()) {
		t.Error("signature should not verify with wrong public key")
	}

	corrupted := append([]byte(nil), sig...)
	corrupted[0] ^= 0x01
	if VerifySignature(digest, corrupted, key1.PublicKey()) {
		t.Error("corrupted signature should not verify")
	}
}

func TestVerify_InvalidInputs(t *testing.T) {
	tests := []struct {
		name      string
		signature []byte
		publicKey []byte
	}{
		{"empty signature", nil, make([]byte, 33)},
		{"empty public key", make([]byte, 64), nil},
		{"short signature", make([]byte, 10), make([]byte, 33)},
		{"garbage public key", make([]byte, 64), []byte("bad")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if VerifySignature(types.Hash{}, tt.signature, tt.publicKey) {
				t.Error("should return false for invalid inputs")
			}
		})
	}
}

func TestPrivateKey_Zero(t *testing.T) {
	key, err := GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey() error: %v", err)
	}
	key.Zero()

	for _, b := range key.Serialize() {
		if b != 0 {
			t.Fatal("Serialize() should return zeros after Zero()")
		}
	}
}
