// Package crypto provides the hashing and signing primitives used to
// identify callers and commit ledger state.
package crypto

import (
	"encoding/binary"

	"github.com/Klingon-tech/signtoken/pkg/types"
	"github.com/zeebo/blake3"
)

// Hash computes a BLAKE3-256 hash of the input data.
func Hash(data []byte) types.Hash {
	return blake3.Sum256(data)
}

// AddressFromPubKey derives an address from a compressed public key.
// Address = BLAKE3(compressed_pubkey)[:20].
func AddressFromPubKey(pubKey []byte) types.Address {
	h := Hash(pubKey)
	var addr types.Address
	copy(addr[:], h[:types.AddressSize])
	return addr
}

// CallDigest is the message a caller signs to authorize a ledger call:
//
//	BLAKE3(genesis || method || 0x00 || params || nonce(be64))
//
// genesis is the hash of the ledger's genesis, so a signed call is only
// valid on one network. params must be the canonical JSON encoding of the
// call parameters.
func CallDigest(genesis types.Hash, method string, params []byte, nonce uint64) types.Hash {
	h := blake3.New()
	h.Write(genesis[:])
	h.Write([]byte(method))
	h.Write([]byte{0})
	h.Write(params)
	var n [8]byte
	binary.BigEndian.PutUint64(n[:], nonce)
	h.Write(n[:])

	var out types.Hash
	copy(out[:], h.Sum(nil))
	return out
}
