package devnode

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"syscall"
	"time"

	backoff "github.com/cenkalti/backoff/v4"
	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/sirupsen/logrus"

	"github.com/evmkit/node-provider/pkg/ethereum"
)

// State of a Supervisor. Transitions only move forward:
// Uninitialized → Configured → Starting → Running → Stopping → Cleaned.
type State int

const (
	Uninitialized State = iota
	Configured
	Starting
	Running
	Stopping
	Cleaned
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Configured:
		return "configured"
	case Starting:
		return "starting"
	case Running:
		return "running"
	case Stopping:
		return "stopping"
	case Cleaned:
		return "cleaned"
	default:
		return "unknown"
	}
}

const (
	healthPollInterval = 500 * time.Millisecond
	terminateWait      = 10 * time.Second
	keystorePassword   = "dev-node"
)

// Supervisor owns one disposable node process. It is a scoped resource: the
// owner must call Stop on every code path, including error paths. Stop is
// idempotent; a never-started supervisor can be stopped safely.
type Supervisor struct {
	log  *logrus.Entry
	spec *Spec

	executable string
	state      State

	sealer   common.Address
	accounts []Account

	cmd     *exec.Cmd
	exited  chan error
	logPipe *io.PipeWriter
}

// NewSupervisor validates the spec (rejecting non-loopback hosts) and
// resolves the node executable, failing fast with remediation guidance when
// it is not installed.
func NewSupervisor(log logrus.FieldLogger, spec *Spec) (*Supervisor, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}

	executable := spec.Executable
	if executable == "" {
		executable = DefaultExecutable
	}

	resolved, err := exec.LookPath(executable)
	if err != nil {
		return nil, &ethereum.NotInstalledError{Executable: executable}
	}

	return &Supervisor{
		log:        log.WithField("module", "ethereum/devnode"),
		spec:       spec,
		executable: resolved,
	}, nil
}

// State returns the supervisor's lifecycle state.
func (s *Supervisor) State() State { return s.state }

// Endpoint returns the HTTP RPC endpoint of the supervised node.
func (s *Supervisor) Endpoint() string { return s.spec.Endpoint() }

// Sealer returns the block-production account embedded in the genesis.
func (s *Supervisor) Sealer() common.Address { return s.sealer }

// Accounts returns the funded test identities, in derivation order.
func (s *Supervisor) Accounts() []Account { return s.accounts }

// Configure wipes any stale data directory, generates the sealer and test
// accounts, writes the genesis document and materializes the genesis block
// on disk.
func (s *Supervisor) Configure(ctx context.Context) error {
	if s.state != Uninitialized {
		return fmt.Errorf("cannot configure supervisor in state %s", s.state)
	}

	// Always start from an empty directory.
	if err := os.RemoveAll(s.spec.DataDir); err != nil {
		return fmt.Errorf("wiping stale data directory: %w", err)
	}

	if err := os.MkdirAll(filepath.Join(s.spec.DataDir, "keystore"), 0o700); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}

	sealerAccount, err := keystore.StoreKey(
		filepath.Join(s.spec.DataDir, "keystore"),
		keystorePassword,
		keystore.LightScryptN, keystore.LightScryptP,
	)
	if err != nil {
		return fmt.Errorf("creating sealer account: %w", err)
	}

	s.sealer = sealerAccount.Address

	if err := os.WriteFile(s.passwordPath(), []byte(keystorePassword+"\n"), 0o600); err != nil {
		return fmt.Errorf("writing password file: %w", err)
	}

	s.accounts, err = GenerateAccounts(s.spec.Mnemonic, s.spec.AccountCount)
	if err != nil {
		return fmt.Errorf("generating test accounts: %w", err)
	}

	genesis := NewGenesis(s.spec, s.sealer, s.accounts)
	if err := genesis.WriteFile(s.genesisPath()); err != nil {
		return err
	}

	init := exec.CommandContext(ctx, s.executable, "init", "--datadir", s.spec.DataDir, s.genesisPath())
	if out, err := init.CombinedOutput(); err != nil {
		return fmt.Errorf("initializing chain: %w: %s", err, out)
	}

	s.log.WithFields(logrus.Fields{
		"data_dir": s.spec.DataDir,
		"sealer":   s.sealer.Hex(),
		"accounts": len(s.accounts),
		"chain_id": s.spec.ChainID,
	}).Info("Dev node configured")

	s.state = Configured

	return nil
}

// Start spawns the node process and polls its RPC endpoint at a fixed
// interval until it answers or the startup deadline passes. On timeout the
// process is killed and the data directory removed; an orphaned child is
// never left behind.
func (s *Supervisor) Start(ctx context.Context) error {
	if s.state == Uninitialized {
		if err := s.Configure(ctx); err != nil {
			return err
		}
	}

	if s.state != Configured {
		return fmt.Errorf("cannot start supervisor in state %s", s.state)
	}

	s.state = Starting

	cmd := exec.Command(s.executable, s.args()...)

	if s.spec.Verbose {
		s.logPipe = s.log.WriterLevel(logrus.DebugLevel)
		cmd.Stdout = s.logPipe
		cmd.Stderr = s.logPipe
	}
	// Otherwise streams stay nil and the child writes to /dev/null; nothing
	// accumulates in memory.

	s.log.WithFields(logrus.Fields{
		"executable": s.executable,
		"endpoint":   s.Endpoint(),
	}).Info("Starting dev node")

	if err := cmd.Start(); err != nil {
		ethereum.DevNodeStarts.WithLabelValues(ethereum.StatusError).Inc()

		s.clean()

		return fmt.Errorf("spawning node process: %w", err)
	}

	s.cmd = cmd
	s.exited = make(chan error, 1)

	go func() {
		s.exited <- cmd.Wait()
	}()

	if err := s.waitForRPC(ctx); err != nil {
		ethereum.DevNodeStarts.WithLabelValues(ethereum.StatusError).Inc()

		stopErr := s.Stop()

		return errors.Join(fmt.Errorf("dev node failed to start: %w", err), stopErr)
	}

	ethereum.DevNodeStarts.WithLabelValues(ethereum.StatusSuccess).Inc()

	s.state = Running
	s.log.Info("Dev node is running")

	return nil
}

// waitForRPC probes the endpoint with a fixed-interval retry bounded by the
// startup deadline. Exponential backoff buys nothing against a local process
// that either comes up quickly or not at all.
func (s *Supervisor) waitForRPC(ctx context.Context) error {
	deadline, cancel := context.WithTimeout(ctx, s.spec.StartupTimeout)
	defer cancel()

	probe := func() error {
		select {
		case err := <-s.exited:
			return backoff.Permanent(fmt.Errorf("node process exited during startup: %w", err))
		default:
		}

		client, err := rpc.DialContext(deadline, s.Endpoint())
		if err != nil {
			return err
		}
		defer client.Close()

		var version string

		return client.CallContext(deadline, &version, "web3_clientVersion")
	}

	return backoff.Retry(probe, backoff.WithContext(backoff.NewConstantBackOff(healthPollInterval), deadline))
}

// Stop terminates the node process and deletes the data directory. It is
// idempotent: stopping twice, or stopping a supervisor that never started,
// is a no-op.
func (s *Supervisor) Stop() error {
	if s.state == Cleaned {
		return nil
	}

	s.state = Stopping

	var err error

	if s.cmd != nil && s.cmd.Process != nil {
		s.log.Info("Stopping dev node process")

		err = s.terminate()
		s.cmd = nil
	}

	if s.logPipe != nil {
		s.logPipe.Close()
		s.logPipe = nil
	}

	s.clean()
	s.state = Cleaned

	return err
}

func (s *Supervisor) terminate() error {
	if sigErr := s.cmd.Process.Signal(syscall.SIGTERM); sigErr != nil {
		// Already gone.
		return nil
	}

	select {
	case <-s.exited:
		return nil
	case <-time.After(terminateWait):
		s.log.Warn("Dev node ignored SIGTERM, killing")

		if err := s.cmd.Process.Kill(); err != nil {
			return fmt.Errorf("killing node process: %w", err)
		}

		<-s.exited

		return nil
	}
}

// clean removes the data directory unconditionally; a fresh supervisor always
// begins from empty state.
func (s *Supervisor) clean() {
	if err := os.RemoveAll(s.spec.DataDir); err != nil {
		s.log.WithError(err).Warn("Failed to remove data directory")
	}
}

func (s *Supervisor) genesisPath() string {
	return filepath.Join(s.spec.DataDir, "genesis.json")
}

func (s *Supervisor) passwordPath() string {
	return filepath.Join(s.spec.DataDir, "password.txt")
}

func (s *Supervisor) args() []string {
	return []string{
		"--datadir", s.spec.DataDir,
		"--networkid", fmt.Sprintf("%d", s.spec.ChainID),
		"--http",
		"--http.addr", s.spec.Hostname,
		"--http.port", fmt.Sprintf("%d", s.spec.Port),
		"--http.api", "eth,net,web3,debug,txpool",
		"--ipcdisable",
		"--nodiscover",
		"--maxpeers", "0",
		"--mine",
		"--miner.etherbase", s.sealer.Hex(),
		"--unlock", s.sealer.Hex(),
		"--password", s.passwordPath(),
		"--allow-insecure-unlock",
	}
}
