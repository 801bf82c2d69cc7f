package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"pangivault/crypto"
	"pangivault/native/vault"
	"pangivault/services/vaultd/server"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

type cli struct {
	endpoint string
	token    string
	http     *http.Client
	stdout   io.Writer
	stderr   io.Writer
}

func defaultEndpoint() string {
	if v := strings.TrimSpace(os.Getenv("VAULTD_URL")); v != "" {
		return v
	}
	return "http://localhost:7085"
}

func run(args []string, stdout, stderr io.Writer) int {
	c := &cli{
		endpoint: defaultEndpoint(),
		token:    strings.TrimSpace(os.Getenv("VAULTD_TOKEN")),
		http:     &http.Client{Timeout: 15 * time.Second},
		stdout:   stdout,
		stderr:   stderr,
	}
	args, err := c.applyGlobalFlags(args)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	if len(args) < 1 {
		printUsage(stdout)
		return 0
	}

	command, rest := args[0], args[1:]
	switch command {
	case "generate-key":
		return c.generateKey(rest)
	case "dev-token":
		return c.devToken(rest)
	case "derive-vault":
		return c.deriveVault(rest)
	case "create-vault":
		if len(rest) < 4 {
			return c.usage("create-vault <tokenMint> <creatorMint> <rewardRateBps> <lockSeconds>")
		}
		rate, err := strconv.ParseUint(rest[2], 10, 16)
		if err != nil {
			return c.fail(fmt.Errorf("invalid reward rate: %w", err))
		}
		lock, err := strconv.ParseInt(rest[3], 10, 64)
		if err != nil {
			return c.fail(fmt.Errorf("invalid lock duration: %w", err))
		}
		return c.post("/v1/vaults", map[string]interface{}{
			"token_mint":      rest[0],
			"creator_mint":    rest[1],
			"reward_rate_bps": rate,
			"lock_duration":   lock,
		})
	case "deactivate":
		if len(rest) < 1 {
			return c.usage("deactivate <vault>")
		}
		return c.post("/v1/vaults/"+rest[0]+"/deactivate", nil)
	case "fund", "deposit", "withdraw":
		if len(rest) < 2 {
			return c.usage(command + " <vault> <amount>")
		}
		if _, err := strconv.ParseUint(rest[1], 10, 64); err != nil {
			return c.fail(fmt.Errorf("invalid amount: %w", err))
		}
		return c.post("/v1/vaults/"+rest[0]+"/"+command, map[string]string{"amount": rest[1]})
	case "claim":
		if len(rest) < 1 {
			return c.usage("claim <vault>")
		}
		return c.post("/v1/vaults/"+rest[0]+"/claim", nil)
	case "vaults":
		return c.get("/v1/vaults")
	case "vault":
		if len(rest) < 1 {
			return c.usage("vault <vault>")
		}
		return c.get("/v1/vaults/" + rest[0])
	case "reconcile":
		if len(rest) < 1 {
			return c.usage("reconcile <vault>")
		}
		return c.get("/v1/vaults/" + rest[0] + "/reconcile")
	case "stake":
		if len(rest) < 2 {
			return c.usage("stake <vault> <holder>")
		}
		return c.get("/v1/vaults/" + rest[0] + "/stakes/" + rest[1])
	case "preview":
		if len(rest) < 2 {
			return c.usage("preview <vault> <holder>")
		}
		return c.get("/v1/vaults/" + rest[0] + "/stakes/" + rest[1] + "/preview")
	case "balance":
		if len(rest) < 2 {
			return c.usage("balance <owner> <mint>")
		}
		return c.get("/v1/accounts/" + rest[0] + "/balances/" + rest[1])
	case "verify-audit":
		if c.token == "" {
			return c.fail(fmt.Errorf("bearer token required: set VAULTD_TOKEN or pass --token"))
		}
		return c.get("/v1/audit/verify")
	case "help", "-h", "--help":
		printUsage(stdout)
		return 0
	default:
		fmt.Fprintf(stderr, "Unknown command: %s\n", command)
		printUsage(stderr)
		return 1
	}
}

func (c *cli) applyGlobalFlags(args []string) ([]string, error) {
	out := make([]string, 0, len(args))
	for i := 0; i < len(args); i++ {
		switch arg := args[i]; arg {
		case "--url", "--token":
			if i+1 >= len(args) {
				return nil, fmt.Errorf("missing value for %s", arg)
			}
			if arg == "--url" {
				c.endpoint = args[i+1]
			} else {
				c.token = args[i+1]
			}
			i++
		default:
			out = append(out, arg)
		}
	}
	c.endpoint = strings.TrimRight(c.endpoint, "/")
	return out, nil
}

func (c *cli) usage(line string) int {
	fmt.Fprintf(c.stderr, "Usage: vault-cli %s\n", line)
	return 1
}

func (c *cli) fail(err error) int {
	fmt.Fprintf(c.stderr, "Error: %v\n", err)
	return 1
}

func (c *cli) generateKey(args []string) int {
	path := "wallet.key"
	if len(args) > 0 {
		path = args[0]
	}
	key, err := crypto.GeneratePrivateKey()
	if err != nil {
		return c.fail(err)
	}
	if err := os.WriteFile(path, key.Bytes(), 0o600); err != nil {
		return c.fail(fmt.Errorf("write key: %w", err))
	}
	fmt.Fprintf(c.stdout, "Saved key to %s\nPublic key: %s\n", path, key.PubKey().String())
	return 0
}

func loadPrivateKey(path string) (*crypto.PrivateKey, error) {
	keyBytes, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("private key file %s not found. run vault-cli generate-key first", path)
		}
		return nil, fmt.Errorf("failed to read private key file %s: %w", path, err)
	}
	key, err := crypto.PrivateKeyFromBytes(keyBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key in %s: %w", path, err)
	}
	return key, nil
}

// devToken signs a bearer token for a local key. Production tokens come from
// the identity provider.
func (c *cli) devToken(args []string) int {
	if len(args) < 2 {
		return c.usage("dev-token <keyFile> <secret> [ttl]")
	}
	key, err := loadPrivateKey(args[0])
	if err != nil {
		return c.fail(err)
	}
	ttl := time.Hour
	if len(args) > 2 {
		if ttl, err = time.ParseDuration(args[2]); err != nil {
			return c.fail(fmt.Errorf("invalid ttl: %w", err))
		}
	}
	token, err := server.IssueToken(args[1], key.PubKey(), ttl)
	if err != nil {
		return c.fail(err)
	}
	fmt.Fprintln(c.stdout, token)
	return 0
}

func (c *cli) deriveVault(args []string) int {
	if len(args) < 2 {
		return c.usage("derive-vault <tokenMint> <creatorMint>")
	}
	tokenMint, err := crypto.DecodePublicKey(args[0])
	if err != nil {
		return c.fail(err)
	}
	creatorMint, err := crypto.DecodePublicKey(args[1])
	if err != nil {
		return c.fail(err)
	}
	addr := vault.VaultAddress(tokenMint, creatorMint)
	fmt.Fprintf(c.stdout, "Vault: %s\nCustody: %s\n", addr, vault.CustodyAddress(addr))
	return 0
}

func (c *cli) get(path string) int {
	return c.send(http.MethodGet, path, nil)
}

func (c *cli) post(path string, payload interface{}) int {
	if c.token == "" {
		return c.fail(fmt.Errorf("bearer token required: set VAULTD_TOKEN or pass --token"))
	}
	return c.send(http.MethodPost, path, payload)
}

func (c *cli) send(method, path string, payload interface{}) int {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return c.fail(err)
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, c.endpoint+path, body)
	if err != nil {
		return c.fail(err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return c.fail(err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return c.fail(err)
	}

	var pretty bytes.Buffer
	if err := json.Indent(&pretty, raw, "", "  "); err != nil {
		pretty.Reset()
		pretty.Write(raw)
	}
	if resp.StatusCode >= 400 {
		fmt.Fprintf(c.stderr, "Error (%d): %s\n", resp.StatusCode, strings.TrimSpace(pretty.String()))
		return 1
	}
	fmt.Fprintln(c.stdout, strings.TrimSpace(pretty.String()))
	return 0
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, `Usage: vault-cli [--url URL] [--token TOKEN] <command> [args]

Commands:
  generate-key [file]                                   Create an ed25519 key
  dev-token <keyFile> <secret> [ttl]                    Sign a local bearer token
  derive-vault <tokenMint> <creatorMint>                Print vault and custody addresses
  create-vault <tokenMint> <creatorMint> <bps> <secs>   Open a vault
  deactivate <vault>                                    Close a vault to new activity
  fund <vault> <amount>                                 Top up the reward reserve
  deposit <vault> <amount>                              Stake principal
  withdraw <vault> <amount>                             Withdraw principal
  claim <vault>                                         Collect accrued rewards
  vaults | vault <vault> | reconcile <vault>            Inspect vaults
  stake <vault> <holder> | preview <vault> <holder>     Inspect positions
  balance <owner> <mint>                                Token balance
  verify-audit                                          Check the audit hash chain`)
}
