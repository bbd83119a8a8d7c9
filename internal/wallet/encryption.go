package wallet

import (
	"crypto/rand"
	"errors"
	"fmt"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"
)

// SaltSize is the Argon2id salt length in bytes.
const SaltSize = 32

// ErrWrongPassword is returned when a sealed box fails authentication.
var ErrWrongPassword = errors.New("wrong password or corrupted key file")

// EncryptionParams holds Argon2id parameters.
type EncryptionParams struct {
	Memory      uint32 `json:"memory"` // KiB
	Iterations  uint32 `json:"iterations"`
	Parallelism uint8  `json:"parallelism"`
}

// DefaultParams returns recommended Argon2id parameters.
func DefaultParams() EncryptionParams {
	return EncryptionParams{
		Memory:      64 * 1024,
		Iterations:  3,
		Parallelism: 4,
	}
}

func (p EncryptionParams) validate() error {
	if p.Memory == 0 || p.Iterations == 0 || p.Parallelism == 0 {
		return fmt.Errorf("invalid kdf params %+v", p)
	}
	return nil
}

// sealedBox is a secret encrypted with a password-derived key.
type sealedBox struct {
	KDF        string           `json:"kdf"`
	Params     EncryptionParams `json:"params"`
	Salt       []byte           `json:"salt"`
	Nonce      []byte           `json:"nonce"`
	Ciphertext []byte           `json:"ciphertext"`
}

const kdfArgon2id = "argon2id"

// deriveKey stretches password into a XChaCha20-Poly1305 key.
func deriveKey(password, salt []byte, p EncryptionParams) []byte {
	return argon2.IDKey(password, salt, p.Iterations, p.Memory, p.Parallelism, chacha20poly1305.KeySize)
}

func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

// seal encrypts secret under password. ad is bound to the ciphertext and
// must be presented again to open it.
func seal(secret, password, ad []byte, params EncryptionParams) (*sealedBox, error) {
	if err := params.validate(); err != nil {
		return nil, err
	}
	salt := make([]byte, SaltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("generate salt: %w", err)
	}

	key := deriveKey(password, salt, params)
	defer zero(key)
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}

	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}
	return &sealedBox{
		KDF:        kdfArgon2id,
		Params:     params,
		Salt:       salt,
		Nonce:      nonce,
		Ciphertext: aead.Seal(nil, nonce, secret, ad),
	}, nil
}

// open decrypts a box made by seal.
func (b *sealedBox) open(password, ad []byte) ([]byte, error) {
	if b.KDF != kdfArgon2id {
		return nil, fmt.Errorf("unsupported kdf %q", b.KDF)
	}
	if err := b.Params.validate(); err != nil {
		return nil, err
	}
	if len(b.Salt) != SaltSize || len(b.Nonce) != chacha20poly1305.NonceSizeX {
		return nil, fmt.Errorf("malformed key file: salt %d bytes, nonce %d bytes", len(b.Salt), len(b.Nonce))
	}

	key := deriveKey(password, b.Salt, b.Params)
	defer zero(key)
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	plain, err := aead.Open(nil, b.Nonce, b.Ciphertext, ad)
	if err != nil {
		return nil, ErrWrongPassword
	}
	return plain, nil
}
