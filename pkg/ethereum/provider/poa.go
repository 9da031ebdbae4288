package provider

import (
	"context"

	"github.com/ethereum/go-ethereum/common/hexutil"
)

// standardExtraDataSize is the maximum extraData length on proof-of-work and
// proof-of-stake chains. Clique-style chains abuse the field to carry signer
// vanity plus seals, which overflows fixed-width header decoders.
const standardExtraDataSize = 32

// Block is the subset of a block header this package inspects. On
// proof-of-authority chains the oversized extraData payload is relocated to
// ProofOfAuthorityData so that ExtraData always fits the standard width.
type Block struct {
	Number               hexutil.Uint64 `json:"number"`
	Hash                 hexutil.Bytes  `json:"hash"`
	ExtraData            hexutil.Bytes  `json:"extraData"`
	ProofOfAuthorityData hexutil.Bytes  `json:"-"`
}

// probePoA fetches the latest block and reports whether the chain carries
// authority seals in extraData. An unreadable latest block is fatal: without
// it no header on this chain can be trusted to decode.
func (p *Provider) probePoA(ctx context.Context) (bool, error) {
	var block Block
	if err := p.call(ctx, &block, "eth_getBlockByNumber", "latest", false); err != nil {
		return false, err
	}

	return len(block.ExtraData) > standardExtraDataSize, nil
}

// installPoAShim marks the profile so header reads pass through
// NormalizeBlock. Safe to call more than once.
func (p *Provider) installPoAShim(profile *ClientProfile) {
	if profile.RequiresPoAShim {
		return
	}

	profile.RequiresPoAShim = true
	p.log.Debug("Detected proof-of-authority chain, normalizing block headers")
}

// NormalizeBlock relocates oversized extraData into ProofOfAuthorityData when
// the shim is active. Blocks already normalized are returned unchanged.
func (p *Provider) NormalizeBlock(block *Block) {
	if p.profile == nil || !p.profile.RequiresPoAShim {
		return
	}

	if len(block.ExtraData) <= standardExtraDataSize {
		return
	}

	block.ProofOfAuthorityData = block.ExtraData
	block.ExtraData = nil
}

// BlockByNumber fetches a block header, applying the proof-of-authority
// normalization when required.
func (p *Provider) BlockByNumber(ctx context.Context, number string) (*Block, error) {
	var block Block
	if err := p.call(ctx, &block, "eth_getBlockByNumber", number, false); err != nil {
		return nil, err
	}

	p.NormalizeBlock(&block)

	return &block, nil
}
