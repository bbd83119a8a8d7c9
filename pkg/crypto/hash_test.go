package crypto

import (
	"encoding/hex"
	"testing"

	"github.com/Klingon-tech/signtoken/pkg/types"
)

func hexToHash(t *testing.T, s string) types.Hash {
	t.Helper()
	b, err := hex.DecodeString(s)
	if err != nil {
		t.Fatalf("bad hex: %v", err)
	}
	var h types.Hash
	copy(h[:], b)
	return h
}

func TestHash(t *testing.T) {
	tests := []struct {
		name  string
		input []byte
		want  string
	}{
		{
			name:  "empty input",
			input: []byte{},
			want:  "af1349b9f5f9a1a6a0404dea36dcc9499bcb25c9adc112b7cc9a93cae41f3262",
		},
		{
			name:  "hello",
			input: []byte("hello"),
			want:  "ea8f163db38682925e4491c5e58d4bb3506ef8c14eb78a86e908c5624a67200f",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Hash(tt.input)
			want := hexToHash(t, tt.want)
			if got != want {
				t.Errorf("Hash(%q) = %x, want %x", tt.input, got, want)
			}
		})
	}
}

func TestHash_Deterministic(t *testing.T) {
	data := []byte("deterministic test input")
	h1 := Hash(data)
	h2 := Hash(data)
	if h1 != h2 {
		t.Errorf("Hash is not deterministic: %x != %x", h1, h2)
	}
}

func TestHash_DifferentInputs(t *testing.T) {
	h1 := Hash([]byte("input A"))
	h2 := Hash([]byte("input B"))
	if h1 == h2 {
		t.Error("different inputs produced the same hash")
	}
}

func TestAddressFromPubKey(t *testing.T) {
	key, err := GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	pub := key.PublicKey()
	h := Hash(pub)

	addr := AddressFromPubKey(pub)
	if string(addr[:]) != string(h[:types.AddressSize]) {
		t.Errorf("address %s is not the hash prefix %x", addr, h[:types.AddressSize])
	}
	if key.Address() != addr {
		t.Error("PrivateKey.Address should match AddressFromPubKey")
	}
}

func TestCallDigest(t *testing.T) {
	params := []byte(`{"name":"John Wick"}`)
	mainnet := Hash([]byte("mainnet genesis"))
	testnet := Hash([]byte("testnet genesis"))
	d := CallDigest(mainnet, "registry_sign", params, 0)

	if d != CallDigest(mainnet, "registry_sign", params, 0) {
		t.Error("CallDigest is not deterministic")
	}
	if d == CallDigest(testnet, "registry_sign", params, 0) {
		t.Error("genesis must change the digest")
	}
	if d == CallDigest(mainnet, "registry_sign", params, 1) {
		t.Error("nonce must change the digest")
	}
	if d == CallDigest(mainnet, "token_claim", params, 0) {
		t.Error("method must change the digest")
	}
	if d == CallDigest(mainnet, "registry_sign", []byte(`{"name":"John"}`), 0) {
		t.Error("params must change the digest")
	}
	// The separator keeps method and params from sliding into each other.
	if CallDigest(mainnet, "ab", []byte("c"), 0) == CallDigest(mainnet, "a", []byte("bc"), 0) {
		t.Error("method/params boundary is ambiguous")
	}
}
