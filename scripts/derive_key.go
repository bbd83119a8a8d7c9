// derive_key.go prints the pubkey and address for a hex-encoded private key
// file and, when given a network, method and call JSON, the signed auth
// envelope. network is "mainnet", "testnet" or a genesis hash in hex.
//
// Usage: go run scripts/derive_key.go <keyfile> [network method call-json nonce]
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/Klingon-tech/signtoken/config"
	"github.com/Klingon-tech/signtoken/internal/rpc"
	"github.com/Klingon-tech/signtoken/pkg/crypto"
	"github.com/Klingon-tech/signtoken/pkg/types"
)

func main() {
	if len(os.Args) != 2 && len(os.Args) != 6 {
		fmt.Fprintln(os.Stderr, "usage: derive_key <keyfile> [network method call-json nonce]")
		os.Exit(1)
	}
	data, err := os.ReadFile(os.Args[1])
	if err != nil {
		fail(err)
	}
	key, err := crypto.PrivateKeyFromHex(string(data))
	if err != nil {
		fail(err)
	}
	defer key.Zero()

	fmt.Printf("pubkey=%x\n", key.PublicKey())
	fmt.Printf("address=%s\n", key.Address())
	if len(os.Args) == 2 {
		return
	}

	genesis, err := genesisHash(os.Args[2])
	if err != nil {
		fail(err)
	}
	method := os.Args[3]
	nonce, err := strconv.ParseUint(os.Args[5], 10, 64)
	if err != nil {
		fail(err)
	}
	var call interface{}
	switch method {
	case "registry_sign":
		var c rpc.SignCall
		if err := json.Unmarshal([]byte(os.Args[4]), &c); err != nil {
			fail(err)
		}
		call = c
	case "token_claim":
		call = rpc.ClaimCall{}
	default:
		fail(fmt.Errorf("method %q takes no signed call", method))
	}

	auth, err := rpc.NewAuth(key, genesis, method, call, nonce)
	if err != nil {
		fail(err)
	}
	out, _ := json.MarshalIndent(map[string]interface{}{"call": call, "auth": auth}, "", "  ")
	fmt.Println(string(out))
}

func genesisHash(network string) (types.Hash, error) {
	switch config.NetworkType(network) {
	case config.Mainnet, config.Testnet:
		return config.GenesisFor(config.NetworkType(network)).Hash()
	default:
		return types.HexToHash(network)
	}
}

func fail(err error) {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}
