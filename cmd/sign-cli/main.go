// sign-cli is a command-line client for interacting with a signd node.
package main

import (
	"encoding/hex"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"golang.org/x/term"

	"github.com/Klingon-tech/signtoken/config"
	"github.com/Klingon-tech/signtoken/internal/ledger"
	"github.com/Klingon-tech/signtoken/internal/registry"
	"github.com/Klingon-tech/signtoken/internal/rpc"
	"github.com/Klingon-tech/signtoken/internal/rpcclient"
	"github.com/Klingon-tech/signtoken/internal/wallet"
	"github.com/Klingon-tech/signtoken/pkg/crypto"
	"github.com/Klingon-tech/signtoken/pkg/types"
)

// globals are the flags accepted before the subcommand.
type globals struct {
	rpcURL  string
	dataDir string
	network string
	key     string
}

// keystoreDir returns the keystore path matching signd's layout:
// <datadir>/<network>/keystore
func (g globals) keystoreDir() string {
	return filepath.Join(g.dataDir, g.network, "keystore")
}

// parseGlobals consumes leading global flags and returns the rest.
func parseGlobals(args []string) (globals, []string) {
	g := globals{
		dataDir: config.DefaultDataDir(),
		network: string(config.Mainnet),
		key:     "default",
	}
loop:
	for len(args) > 0 {
		name, value, consumed := splitFlag(args)
		if consumed == 0 {
			break
		}
		switch name {
		case "rpc":
			g.rpcURL = value
		case "datadir":
			g.dataDir = value
		case "network":
			g.network = value
		case "key":
			g.key = value
		default:
			break loop
		}
		args = args[consumed:]
	}
	if g.rpcURL == "" {
		g.rpcURL = defaultRPCURL(g.network)
	}
	return g, args
}

// splitFlag reads "--name value" or "--name=value" from the head of args.
func splitFlag(args []string) (name, value string, consumed int) {
	arg := args[0]
	if !strings.HasPrefix(arg, "--") {
		return "", "", 0
	}
	arg = arg[2:]
	if i := strings.IndexByte(arg, '='); i >= 0 {
		return arg[:i], arg[i+1:], 1
	}
	if len(args) < 2 {
		return "", "", 0
	}
	return arg, args[1], 2
}

func defaultRPCURL(network string) string {
	cfg := config.Default(config.NetworkType(network))
	return fmt.Sprintf("http://127.0.0.1:%d", cfg.RPC.Port)
}

func main() {
	g, args := parseGlobals(os.Args[1:])
	if len(args) == 0 {
		usage()
		os.Exit(1)
	}

	client := rpcclient.New(g.rpcURL)
	cmd := args[0]
	cmdArgs := args[1:]

	switch cmd {
	case "keygen":
		cmdKeygen(g, cmdArgs)
	case "keys":
		cmdKeys(g)
	case "address":
		cmdAddress(g)
	case "info":
		cmdInfo(client)
	case "sign":
		cmdSign(g, client, cmdArgs)
	case "claim":
		cmdClaim(g, client)
	case "balance":
		cmdBalance(g, client, cmdArgs)
	case "account":
		cmdAccount(g, client, cmdArgs)
	case "name":
		cmdName(client, cmdArgs)
	case "record":
		cmdRecord(client, cmdArgs)
	case "names":
		cmdNames(client, cmdArgs)
	case "supply":
		cmdSupply(client)
	case "treasury":
		cmdTreasury(client)
	case "receipt":
		cmdReceipt(client, cmdArgs)
	case "mine":
		cmdMine(client, cmdArgs)
	case "help", "--help", "-h":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, `Usage: sign-cli [global flags] <command> [args]

Global flags:
  --rpc <url>         RPC endpoint (default: http://127.0.0.1:8745, testnet :8845)
  --datadir <path>    Data directory (default: ~/.signtoken)
  --network <net>     mainnet (default) or testnet
  --key <name>        Key name in the keystore (default: default)

Keys:
  keygen [--import <hex>]         Create (or import) an encrypted key
  keys                            List keys in the keystore
  address                         Show the address of --key

Calls (signed with --key):
  sign <name> [--value <amt>]     Register a name (value defaults to the sign fee)
  claim                           Claim the per-block grant

Queries:
  info                            Show ledger status
  balance [address]               Token balance (default: --key address)
  account [address]               Balance, last claim block and nonce
  name <id>                       Name registered under id
  record <id>                     Full registry record
  names [--from <id>] [--limit <n>]
                                  List registered names
  supply                          Token supply and issuance phase
  treasury                        Treasury balance and buyback totals
  receipt <height>                Block receipt
  mine [n]                        Seal n empty blocks (dev nodes only)
`)
}

// ── Keys ────────────────────────────────────────────────────────────────

func openKeystore(g globals) *wallet.Keystore {
	ks, err := wallet.NewKeystore(g.keystoreDir())
	if err != nil {
		fatal("open keystore: %v", err)
	}
	return ks
}

func cmdKeygen(g globals, args []string) {
	fs := flag.NewFlagSet("keygen", flag.ExitOnError)
	importHex := fs.String("import", "", "Import an existing hex private key")
	fs.Parse(args)

	var key *crypto.PrivateKey
	var err error
	if *importHex != "" {
		key, err = crypto.PrivateKeyFromHex(*importHex)
	} else {
		key, err = crypto.GenerateKey()
	}
	if err != nil {
		fatal("key: %v", err)
	}
	defer key.Zero()

	password, err := readPassword("Enter password: ")
	if err != nil {
		fatal("read password: %v", err)
	}
	confirm, err := readPassword("Confirm password: ")
	if err != nil {
		fatal("read password: %v", err)
	}
	if string(password) != string(confirm) {
		fatal("passwords do not match")
	}

	addr, err := openKeystore(g).Create(g.key, key, password, wallet.DefaultParams())
	if err != nil {
		fatal("create key: %v", err)
	}
	fmt.Printf("Key %q created.\n", g.key)
	fmt.Printf("  Address: %s\n", addr)
	fmt.Printf("  PubKey:  %s\n", hex.EncodeToString(key.PublicKey()))
}

func cmdKeys(g globals) {
	ks := openKeystore(g)
	names, err := ks.List()
	if err != nil {
		fatal("list keys: %v", err)
	}
	if len(names) == 0 {
		fmt.Println("No keys. Create one with: sign-cli keygen")
		return
	}
	for _, name := range names {
		addr, err := ks.Address(name)
		if err != nil {
			fmt.Printf("%-16s  (unreadable: %v)\n", name, err)
			continue
		}
		fmt.Printf("%-16s  %s\n", name, addr)
	}
}

func cmdAddress(g globals) {
	addr, err := openKeystore(g).Address(g.key)
	if err != nil {
		fatal("%v", err)
	}
	fmt.Println(addr)
}

// unlockKey prompts for the password of --key and decrypts it.
func unlockKey(g globals) *crypto.PrivateKey {
	password, err := readPassword(fmt.Sprintf("Password for %q: ", g.key))
	if err != nil {
		fatal("read password: %v", err)
	}
	key, err := openKeystore(g).Load(g.key, password)
	if err != nil {
		fatal("unlock key: %v", err)
	}
	return key
}

// accountNonce fetches the next nonce for addr.
// genesisHash asks the node which ledger signed calls are bound to.
func genesisHash(client *rpcclient.Client) types.Hash {
	var info rpc.InfoResult
	if err := client.Call("ledger_getInfo", nil, &info); err != nil {
		fatal("ledger_getInfo: %v", err)
	}
	return info.GenesisHash
}

func accountNonce(client *rpcclient.Client, addr types.Address) uint64 {
	var acct ledger.Account
	if err := client.Call("account_get", rpc.AddressParam{Address: addr.String()}, &acct); err != nil {
		fatal("account_get: %v", err)
	}
	return acct.Nonce
}

// ── Calls ───────────────────────────────────────────────────────────────

func cmdSign(g globals, client *rpcclient.Client, args []string) {
	if len(args) < 1 || strings.HasPrefix(args[0], "--") {
		fatal("Usage: sign-cli sign <name> [--value <amount>]")
	}
	name := args[0]
	fs := flag.NewFlagSet("sign", flag.ExitOnError)
	valueStr := fs.String("value", "", "Native value to pay (default: the sign fee)")
	fs.Parse(args[1:])

	var value types.Amount
	if *valueStr != "" {
		v, err := types.ParseAmount(*valueStr)
		if err != nil {
			fatal("invalid value: %v", err)
		}
		value = v
	} else {
		var info ledger.TreasuryInfo
		if err := client.Call("treasury_getInfo", nil, &info); err != nil {
			fatal("treasury_getInfo: %v", err)
		}
		value = info.SignFee
	}

	key := unlockKey(g)
	defer key.Zero()

	call := rpc.SignCall{Name: name, Value: value}
	auth, err := rpc.NewAuth(key, genesisHash(client), "registry_sign", call, accountNonce(client, key.Address()))
	if err != nil {
		fatal("sign call: %v", err)
	}

	var res ledger.SignResult
	if err := client.Call("registry_sign", rpc.SignParams{Call: call, Auth: auth}, &res); err != nil {
		fatal("registry_sign: %v", err)
	}
	fmt.Printf("Signed %q\n", name)
	fmt.Printf("  Sign ID: %d\n", res.ID)
	fmt.Printf("  Paid:    %s\n", value.Format())
	fmt.Printf("  Block:   %d\n", res.Receipt.Height)
	if res.Buyback != nil {
		fmt.Printf("  Buyback: %s native -> %s burned\n", res.Buyback.AmountIn.Format(), res.Buyback.Burned.Format())
	}
}

func cmdClaim(g globals, client *rpcclient.Client) {
	key := unlockKey(g)
	defer key.Zero()

	call := rpc.ClaimCall{}
	auth, err := rpc.NewAuth(key, genesisHash(client), "token_claim", call, accountNonce(client, key.Address()))
	if err != nil {
		fatal("sign call: %v", err)
	}

	var res ledger.ClaimResult
	if err := client.Call("token_claim", rpc.ClaimParams{Call: call, Auth: auth}, &res); err != nil {
		fatal("token_claim: %v", err)
	}
	fmt.Printf("Claimed %s\n", res.Granted.Format())
	fmt.Printf("  Balance: %s\n", res.Balance.Format())
	fmt.Printf("  Blocks since last claim: %d\n", res.Elapsed)
}

// ── Queries ─────────────────────────────────────────────────────────────

func cmdInfo(client *rpcclient.Client) {
	var info rpc.InfoResult
	if err := client.Call("ledger_getInfo", nil, &info); err != nil {
		fatal("ledger_getInfo: %v", err)
	}
	fmt.Printf("Network:    %s\n", info.NetworkID)
	fmt.Printf("Version:    %s\n", info.Version)
	fmt.Printf("Genesis:    %s\n", info.GenesisHash)
	fmt.Printf("Height:     %d\n", info.Height)
	fmt.Printf("Time:       %s\n", time.Unix(int64(info.Time), 0).UTC().Format("2006-01-02 15:04:05 UTC"))
	fmt.Printf("State root: %s\n", info.StateRoot)
	fmt.Printf("Names:      %d\n", info.NextSignID)
	if info.Dev {
		fmt.Println("Dev mode:   on")
	}
}

// addressArg returns args[0] as an address, or the --key address.
func addressArg(g globals, args []string) types.Address {
	if len(args) > 0 {
		addr, err := types.ParseAddress(args[0])
		if err != nil {
			fatal("invalid address: %v", err)
		}
		return addr
	}
	addr, err := openKeystore(g).Address(g.key)
	if err != nil {
		fatal("no address given and %v", err)
	}
	return addr
}

func cmdBalance(g globals, client *rpcclient.Client, args []string) {
	addr := addressArg(g, args)
	var res rpc.BalanceResult
	if err := client.Call("token_balanceOf", rpc.AddressParam{Address: addr.String()}, &res); err != nil {
		fatal("token_balanceOf: %v", err)
	}
	fmt.Printf("%s SIGN\n", res.Balance.Format())
}

func cmdAccount(g globals, client *rpcclient.Client, args []string) {
	addr := addressArg(g, args)
	var acct ledger.Account
	if err := client.Call("account_get", rpc.AddressParam{Address: addr.String()}, &acct); err != nil {
		fatal("account_get: %v", err)
	}
	fmt.Printf("Address:          %s\n", acct.Address)
	fmt.Printf("Balance:          %s\n", acct.Balance.Format())
	fmt.Printf("Last claim block: %d\n", acct.LastClaimBlock)
	fmt.Printf("Nonce:            %d\n", acct.Nonce)
}

func parseUintArg(args []string, usage string) uint64 {
	if len(args) < 1 {
		fatal("Usage: %s", usage)
	}
	n, err := strconv.ParseUint(args[0], 10, 64)
	if err != nil {
		fatal("invalid number %q", args[0])
	}
	return n
}

func cmdName(client *rpcclient.Client, args []string) {
	id := parseUintArg(args, "sign-cli name <id>")
	var res rpc.NameResult
	if err := client.Call("registry_getName", rpc.IDParam{ID: id}, &res); err != nil {
		fatal("registry_getName: %v", err)
	}
	fmt.Println(res.Name)
}

func cmdRecord(client *rpcclient.Client, args []string) {
	id := parseUintArg(args, "sign-cli record <id>")
	var rec registry.Record
	if err := client.Call("registry_getRecord", rpc.IDParam{ID: id}, &rec); err != nil {
		fatal("registry_getRecord: %v", err)
	}
	printJSON(rec)
}

func cmdNames(client *rpcclient.Client, args []string) {
	fs := flag.NewFlagSet("names", flag.ExitOnError)
	from := fs.Uint64("from", 0, "First sign id")
	limit := fs.Int("limit", 50, "Maximum names to list")
	fs.Parse(args)

	var res rpc.RecordListResult
	if err := client.Call("registry_list", rpc.ListParam{From: *from, Limit: *limit}, &res); err != nil {
		fatal("registry_list: %v", err)
	}
	for _, r := range res.Records {
		fmt.Printf("%6d  %-32q  %s\n", r.ID, r.Name, r.Payer)
	}
	fmt.Printf("(%d of %d names)\n", len(res.Records), res.NextSignID)
}

func cmdSupply(client *rpcclient.Client) {
	var s ledger.SupplyInfo
	if err := client.Call("token_getSupply", nil, &s); err != nil {
		fatal("token_getSupply: %v", err)
	}
	fmt.Printf("Token:            %s (%s), %d decimals\n", s.Name, s.Symbol, s.Decimals)
	fmt.Printf("Total supply:     %s\n", s.Total.Format())
	fmt.Printf("Max supply:       %s\n", s.Max.Format())
	fmt.Printf("Burned:           %s\n", s.Burned.Format())
	fmt.Printf("Circulating:      %s\n", s.Circulating.Format())
	fmt.Printf("Amount per block: %s\n", s.AmountPerBlock.Format())
	fmt.Printf("Phase:            %s\n", s.Phase)
}

func cmdTreasury(client *rpcclient.Client) {
	var t ledger.TreasuryInfo
	if err := client.Call("treasury_getInfo", nil, &t); err != nil {
		fatal("treasury_getInfo: %v", err)
	}
	fmt.Printf("Native balance: %s\n", t.NativeBalance.Format())
	fmt.Printf("Threshold:      %s\n", t.Threshold.Format())
	fmt.Printf("Sign fee:       %s (%s)\n", t.SignFee.Format(), t.FeePolicy)
	fmt.Printf("Route:          %s\n", strings.Join(t.Route, " -> "))
	fmt.Printf("Venue:          %s (enabled: %v)\n", t.Venue, t.VenueEnabled)
	fmt.Printf("Buybacks:       %d\n", t.Buybacks)
	fmt.Printf("Total swapped:  %s\n", t.TotalSwapped.Format())
	fmt.Printf("Total burned:   %s\n", t.TotalBurned.Format())
}

func cmdReceipt(client *rpcclient.Client, args []string) {
	height := parseUintArg(args, "sign-cli receipt <height>")
	var r ledger.Receipt
	if err := client.Call("ledger_getReceipt", rpc.HeightParam{Height: height}, &r); err != nil {
		fatal("ledger_getReceipt: %v", err)
	}
	printJSON(r)
}

func cmdMine(client *rpcclient.Client, args []string) {
	n := uint64(1)
	if len(args) > 0 {
		n = parseUintArg(args, "sign-cli mine [n]")
	}
	var head ledger.Head
	if err := client.Call("ledger_mine", rpc.MineParam{Blocks: n}, &head); err != nil {
		fatal("ledger_mine: %v", err)
	}
	fmt.Printf("Mined %d block(s), height %d\n", n, head.Height)
}

// ── Output helpers ──────────────────────────────────────────────────────

func printJSON(v interface{}) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fatal("marshal: %v", err)
	}
	fmt.Println(string(data))
}

// ── Password helper ─────────────────────────────────────────────────────

func readPassword(prompt string) ([]byte, error) {
	fmt.Fprint(os.Stderr, prompt)
	password, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(os.Stderr) // newline after hidden input
	if err != nil {
		return nil, err
	}
	return password, nil
}

// ── Error helper ────────────────────────────────────────────────────────

func fatal(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}
