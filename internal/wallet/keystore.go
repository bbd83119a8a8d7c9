// Package wallet stores signing keys on disk, each encrypted with a
// password (Argon2id + XChaCha20-Poly1305).
package wallet

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/Klingon-tech/signtoken/pkg/crypto"
	"github.com/Klingon-tech/signtoken/pkg/types"
)

const (
	keyFileVersion = 1
	keyFileExt     = ".key"
)

// Keystore errors.
var (
	ErrKeyExists   = errors.New("key already exists")
	ErrKeyNotFound = errors.New("key not found")
)

// keyFile is the on-disk JSON format of one encrypted key.
type keyFile struct {
	Version   int           `json:"version"`
	CreatedAt time.Time     `json:"created_at"`
	Address   types.Address `json:"address"`
	Crypto    *sealedBox    `json:"crypto"`
}

// Keystore manages encrypted key files in a directory.
type Keystore struct {
	path string
}

// NewKeystore creates a keystore that reads/writes to the given directory.
// The directory is created if it doesn't exist.
func NewKeystore(path string) (*Keystore, error) {
	if err := os.MkdirAll(path, 0700); err != nil {
		return nil, fmt.Errorf("create keystore dir: %w", err)
	}
	return &Keystore{path: path}, nil
}

func (ks *Keystore) keyPath(name string) string {
	return filepath.Join(ks.path, name+keyFileExt)
}

// Create encrypts key under password and stores it as name. The address is
// bound to the ciphertext so a file whose address was edited won't open.
func (ks *Keystore) Create(name string, key *crypto.PrivateKey, password []byte, params EncryptionParams) (types.Address, error) {
	if name == "" || filepath.Base(name) != name {
		return types.Address{}, fmt.Errorf("invalid key name %q", name)
	}
	path := ks.keyPath(name)
	if _, err := os.Stat(path); err == nil {
		return types.Address{}, fmt.Errorf("%w: %s", ErrKeyExists, name)
	}

	addr := key.Address()
	secret := key.Serialize()
	defer zero(secret)
	box, err := seal(secret, password, addr[:], params)
	if err != nil {
		return types.Address{}, fmt.Errorf("encrypt key: %w", err)
	}

	kf := keyFile{
		Version:   keyFileVersion,
		CreatedAt: time.Now().UTC(),
		Address:   addr,
		Crypto:    box,
	}
	data, err := json.MarshalIndent(&kf, "", "  ")
	if err != nil {
		return types.Address{}, fmt.Errorf("marshal key file: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return types.Address{}, fmt.Errorf("write key file: %w", err)
	}
	return addr, nil
}

// Load decrypts the key stored as name.
func (ks *Keystore) Load(name string, password []byte) (*crypto.PrivateKey, error) {
	kf, err := ks.readFile(name)
	if err != nil {
		return nil, err
	}
	secret, err := kf.Crypto.open(password, kf.Address[:])
	if err != nil {
		return nil, err
	}
	defer zero(secret)

	key, err := crypto.PrivateKeyFromBytes(secret)
	if err != nil {
		return nil, err
	}
	if key.Address() != kf.Address {
		key.Zero()
		return nil, fmt.Errorf("key file %s: address does not match key", name)
	}
	return key, nil
}

// Address returns the address of the key stored as name without
// decrypting it.
func (ks *Keystore) Address(name string) (types.Address, error) {
	kf, err := ks.readFile(name)
	if err != nil {
		return types.Address{}, err
	}
	return kf.Address, nil
}

// List returns the names of all keys in the keystore, sorted.
func (ks *Keystore) List() ([]string, error) {
	entries, err := os.ReadDir(ks.path)
	if err != nil {
		return nil, fmt.Errorf("read keystore dir: %w", err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if ext := filepath.Ext(name); ext == keyFileExt {
			names = append(names, name[:len(name)-len(ext)])
		}
	}
	sort.Strings(names)
	return names, nil
}

func (ks *Keystore) readFile(name string) (*keyFile, error) {
	data, err := os.ReadFile(ks.keyPath(name))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrKeyNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("read key file: %w", err)
	}
	var kf keyFile
	if err := json.Unmarshal(data, &kf); err != nil {
		return nil, fmt.Errorf("parse key file: %w", err)
	}
	if kf.Version != keyFileVersion {
		return nil, fmt.Errorf("unsupported key file version: %d", kf.Version)
	}
	if kf.Crypto == nil {
		return nil, fmt.Errorf("key file %s has no crypto section", name)
	}
	return &kf, nil
}
