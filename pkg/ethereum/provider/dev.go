package provider

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/sirupsen/logrus"

	"github.com/evmkit/node-provider/pkg/ethereum"
	"github.com/evmkit/node-provider/pkg/ethereum/devnode"
)

// SnapshotID identifies a chain state to revert to. Dev nodes implement
// snapshots as block heights: reverting rewinds the chain head.
type SnapshotID uint64

// DevProvider is a Provider bound to a disposable local node. When nothing is
// listening at the configured endpoint it spawns and supervises its own.
type DevProvider struct {
	*Provider

	spec       *devnode.Spec
	supervisor *devnode.Supervisor
}

// NewDev creates a disconnected dev provider.
func NewDev(log logrus.FieldLogger, spec *devnode.Spec) (*DevProvider, error) {
	cfg := &ethereum.Config{
		Name:    "devnode",
		URI:     spec.Endpoint(),
		ChainID: spec.ChainID,
	}

	inner, err := New(log, cfg)
	if err != nil {
		return nil, err
	}

	return &DevProvider{
		Provider: inner,
		spec:     spec,
	}, nil
}

// Connect attaches to a node already listening at the configured endpoint, or
// spawns one when the endpoint is unreachable. Only transport-level failures
// trigger the self-start path; a node that answers but misbehaves is an error
// the caller must see.
func (p *DevProvider) Connect(ctx context.Context) error {
	err := p.Provider.Connect(ctx)
	if err == nil {
		p.adoptDevProfile()

		return nil
	}

	var connErr *ethereum.ConnectionError
	if !errors.As(err, &connErr) {
		return err
	}

	p.log.WithError(err).Debug("No node at dev endpoint, starting one")

	supervisor, err := devnode.NewSupervisor(p.log, p.spec)
	if err != nil {
		return err
	}

	if err := supervisor.Start(ctx); err != nil {
		return fmt.Errorf("starting dev node: %w", err)
	}

	p.supervisor = supervisor

	if err := p.Provider.Connect(ctx); err != nil {
		_ = supervisor.Stop()
		p.supervisor = nil

		return err
	}

	p.adoptDevProfile()

	return nil
}

// adoptDevProfile pins the trace strategy to the geth call tracer. The dev
// chain is always a fresh dev-mode geth, which never serves parity traces.
func (p *DevProvider) adoptDevProfile() {
	if p.profile != nil {
		p.profile.TraceOrder = []TraceFormat{TraceFormatCallTracer}
	}
}

// Accounts returns the pre-funded dev accounts, or nil when the provider
// attached to an externally started node.
func (p *DevProvider) Accounts() []devnode.Account {
	if p.supervisor == nil {
		return nil
	}

	return p.supervisor.Accounts()
}

// Snapshot captures the current chain height.
func (p *DevProvider) Snapshot(ctx context.Context) (SnapshotID, error) {
	head, err := p.BlockNumber(ctx)
	if err != nil {
		return 0, err
	}

	return SnapshotID(head), nil
}

// Revert rewinds the chain to the snapshot's height. Reverting to the current
// head is a no-op; a snapshot ahead of the head cannot be restored and is
// logged and skipped rather than failing the run.
func (p *DevProvider) Revert(ctx context.Context, id SnapshotID) error {
	head, err := p.BlockNumber(ctx)
	if err != nil {
		return err
	}

	target := uint64(id)

	switch {
	case target == head:
		return nil
	case target > head:
		p.log.WithFields(logrus.Fields{"snapshot": target, "head": head}).
			Error("Snapshot is ahead of the chain head, not reverting")

		return nil
	}

	return p.call(ctx, nil, "debug_setHead", hexutil.Uint64(target))
}

// SetTimestamp is not supported: the node does not expose block timestamp
// control over RPC.
func (p *DevProvider) SetTimestamp(ctx context.Context, timestamp int64) error {
	return &ethereum.NotImplementedError{Method: "evm_setTime"}
}

// Mine is not supported: the dev chain seals on demand under clique and
// exposes no manual mine RPC.
func (p *DevProvider) Mine(ctx context.Context, blocks int) error {
	return &ethereum.NotImplementedError{Method: "evm_mine"}
}

// Disconnect drops the connection and, when this provider spawned the node,
// stops the process and wipes its data directory.
func (p *DevProvider) Disconnect() {
	p.Provider.Disconnect()

	if p.supervisor != nil {
		if err := p.supervisor.Stop(); err != nil {
			p.log.WithError(err).Warn("Failed to stop dev node")
		}

		p.supervisor = nil
	}
}
