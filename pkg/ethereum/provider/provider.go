// Package provider supervises a connection to one execution-layer node:
// transport selection, capability negotiation, trace acquisition, call
// simulation and (for dev nodes) snapshot/revert control.
package provider

import (
	"context"
	"fmt"
	"math/big"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/go-co-op/gocron"
	"github.com/sirupsen/logrus"

	"github.com/evmkit/node-provider/pkg/ethereum"
)

// Provider drives one logical connection to an execution node. It is intended
// for single caller-thread use; it does not manage its own worker pool.
type Provider struct {
	log        logrus.FieldLogger
	config     *ethereum.Config
	httpClient *http.Client

	client   *rpc.Client
	endpoint string
	profile  *ClientProfile

	scheduler *gocron.Scheduler

	mu     sync.Mutex
	synced bool
}

// New creates a disconnected provider.
func New(log logrus.FieldLogger, cfg *ethereum.Config) (*Provider, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid provider config: %w", err)
	}

	return &Provider{
		log:        log.WithFields(logrus.Fields{"module": "ethereum/provider", "source": cfg.Name}),
		config:     cfg,
		httpClient: newHTTPClient(cfg.NodeHeaders),
	}, nil
}

// Connect selects a transport, negotiates client capabilities and verifies
// the chain identity. The eager connect path is fatal on failure; the dev
// provider wraps it with a self-start fallback.
func (p *Provider) Connect(ctx context.Context) error {
	client, endpoint, err := dialFirst(ctx, p.log, p.config, p.httpClient)
	if err != nil {
		return err
	}

	p.mu.Lock()
	p.client = client
	p.mu.Unlock()

	p.endpoint = endpoint

	if err := p.negotiate(ctx); err != nil {
		p.Disconnect()

		return err
	}

	p.startSyncMonitor()

	return nil
}

// negotiate runs once per successful connection: it identifies the node
// implementation, applies implementation-specific tuning, probes for
// extended-authority headers and cross-checks the chain id.
func (p *Provider) negotiate(ctx context.Context) error {
	var version string
	if err := p.call(ctx, &version, "web3_clientVersion"); err != nil {
		return fmt.Errorf("fetching client version: %w", err)
	}

	var chainID hexutil.Big
	if err := p.call(ctx, &chainID, "eth_chainId"); err != nil {
		return fmt.Errorf("fetching chain id: %w", err)
	}

	// Recomputed on every connection, never inherited across reconnects.
	profile := newProfile(p.log, version, chainID.ToInt())

	if poa, err := p.probePoA(ctx); err != nil {
		return fmt.Errorf("probing block headers: %w", err)
	} else if poa {
		p.installPoAShim(profile)
	}

	if p.config.ChainID != 0 && profile.ChainID.Cmp(new(big.Int).SetUint64(p.config.ChainID)) != 0 {
		return &ethereum.ChainIDMismatchError{
			Expected: new(big.Int).SetUint64(p.config.ChainID),
			Actual:   profile.ChainID,
		}
	}

	p.profile = profile

	p.log.WithFields(logrus.Fields{
		"client":   profile.Client,
		"network":  ethereum.NetworkByChainID(profile.ChainID.Uint64()).Name,
		"endpoint": p.loggableEndpoint(),
	}).Info("Connected to execution node")

	return nil
}

// startSyncMonitor refreshes the node's sync status in the background. The
// client profile itself stays immutable; only the sync flag is updated.
func (p *Provider) startSyncMonitor() {
	s := gocron.NewScheduler(time.Local)

	if _, err := s.Every("15s").Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := p.updateSyncStatus(ctx); err != nil {
			p.log.WithError(err).Warn("Failed to update sync status")
		}
	}); err != nil {
		p.log.WithError(err).Warn("Failed to schedule sync monitor")

		return
	}

	s.StartAsync()
	p.scheduler = s
}

func (p *Provider) updateSyncStatus(ctx context.Context) error {
	var raw interface{}
	if err := p.call(ctx, &raw, "eth_syncing"); err != nil {
		return err
	}

	synced, ok := raw.(bool)

	p.mu.Lock()
	p.synced = ok && !synced
	p.mu.Unlock()

	return nil
}

// IsSynced reports the last observed sync status.
func (p *Provider) IsSynced() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.synced
}

// Profile returns the capability profile negotiated at connect time, or nil
// when disconnected.
func (p *Provider) Profile() *ClientProfile {
	return p.profile
}

// Connected reports whether a live client handle is held.
func (p *Provider) Connected() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.client != nil
}

// Disconnect drops the client handle and forgets the negotiated profile. The
// handle is swapped out under the lock first so an in-flight sync-monitor
// tick sees either the live client or nil, never a closed one mid-call.
func (p *Provider) Disconnect() {
	if p.scheduler != nil {
		p.scheduler.Stop()
		p.scheduler = nil
	}

	p.mu.Lock()
	client := p.client
	p.client = nil
	p.mu.Unlock()

	if client != nil {
		client.Close()
	}

	p.profile = nil
	p.endpoint = ""
}

// streamEndpoint is the HTTP endpoint used for streaming trace reads. The
// externally injected endpoint wins here too.
func (p *Provider) streamEndpoint() string {
	if uri := os.Getenv(ethereum.EnvProviderURI); uri != "" {
		return uri
	}

	return p.config.URI
}

func (p *Provider) loggableEndpoint() string {
	if isIPCEndpoint(p.endpoint) {
		return p.endpoint
	}

	return p.config.CleanURI()
}
