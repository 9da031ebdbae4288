// Package devnode spawns, supervises and tears down a disposable local
// execution node with a pre-funded test genesis.
package devnode

import (
	"fmt"
	"math/big"
	"net"
	"time"
)

// Defaults for the disposable test chain.
const (
	DefaultHostname     = "localhost"
	DefaultPort         = 8545
	DefaultChainID      = 1337
	DefaultAccountCount = 10
	DefaultMnemonic     = "test test test test test test test test test test test junk"
	DefaultExecutable   = "geth"

	// DefaultBalance is 10,000 ether in wei.
	DefaultBalance = "10000000000000000000000"
)

// Spec describes one disposable dev node. It is fully consumed at process
// spawn time; the data directory is owned exclusively by the Supervisor the
// spec was given to, and is wiped before and after the process's life.
type Spec struct {
	// DataDir holds the chain data, keystore and genesis file.
	DataDir string `yaml:"dataDir"`
	// Hostname must resolve to a loopback address. Auto-starting a node on a
	// non-local host is refused outright.
	Hostname string `yaml:"hostname" default:"localhost"`
	Port     int    `yaml:"port" default:"8545"`
	// Mnemonic seeds the deterministic, pre-funded test accounts.
	Mnemonic     string `yaml:"mnemonic" default:"test test test test test test test test test test test junk"`
	AccountCount int    `yaml:"accounts" default:"10"`
	ChainID      uint64 `yaml:"chainId" default:"1337"`
	// InitialBalance is the per-account allocation in wei.
	InitialBalance string `yaml:"initialBalance" default:"10000000000000000000000"`
	// Executable overrides the node binary looked up on PATH.
	Executable string `yaml:"executable"`
	// StartupTimeout bounds the health poll after spawning.
	StartupTimeout time.Duration `yaml:"startupTimeout" default:"60s"`
	// Verbose pipes the child's standard streams into the debug log instead
	// of discarding them.
	Verbose bool `yaml:"verbose"`
}

// Validate enforces the spec invariants. The loopback requirement is a hard
// safety invariant, not a convenience check.
func (s *Spec) Validate() error {
	if s.DataDir == "" {
		return fmt.Errorf("dataDir is required")
	}

	if !isLoopback(s.Hostname) {
		return fmt.Errorf("unable to start a node on non-local host %q", s.Hostname)
	}

	if s.Port <= 0 || s.Port > 65535 {
		return fmt.Errorf("invalid port %d", s.Port)
	}

	if s.AccountCount <= 0 {
		return fmt.Errorf("account count must be positive")
	}

	if _, ok := new(big.Int).SetString(s.InitialBalance, 10); !ok {
		return fmt.Errorf("invalid initial balance %q", s.InitialBalance)
	}

	return nil
}

// Endpoint returns the HTTP RPC endpoint the node will listen on.
func (s *Spec) Endpoint() string {
	return fmt.Sprintf("http://%s:%d", s.Hostname, s.Port)
}

func isLoopback(host string) bool {
	if host == "localhost" {
		return true
	}

	if ip := net.ParseIP(host); ip != nil {
		return ip.IsLoopback()
	}

	return false
}
