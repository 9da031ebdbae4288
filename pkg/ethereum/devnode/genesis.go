package devnode

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// Genesis is the JSON document handed to the node's init command. The
// extra-data field embeds the designated sealer in the clique layout:
// 32 zero bytes, the 20-byte sealer address, then 65 zero bytes of vanity
// signature space.
type Genesis struct {
	Coinbase   string                `json:"coinbase"`
	Difficulty string                `json:"difficulty"`
	ExtraData  string                `json:"extraData"`
	Config     GenesisConfig         `json:"config"`
	Alloc      map[string]AllocEntry `json:"alloc"`
}

// GenesisConfig activates every fork at block zero. The gas limit is
// explicitly zero: the network is meant for unmetered local testing.
type GenesisConfig struct {
	ChainID             uint64       `json:"chainId"`
	GasLimit            uint64       `json:"gasLimit"`
	HomesteadBlock      uint64       `json:"homesteadBlock"`
	EIP150Block         uint64       `json:"eip150Block"`
	EIP155Block         uint64       `json:"eip155Block"`
	EIP158Block         uint64       `json:"eip158Block"`
	ByzantiumBlock      uint64       `json:"byzantiumBlock"`
	ConstantinopleBlock uint64       `json:"constantinopleBlock"`
	PetersburgBlock     uint64       `json:"petersburgBlock"`
	IstanbulBlock       uint64       `json:"istanbulBlock"`
	BerlinBlock         uint64       `json:"berlinBlock"`
	LondonBlock         uint64       `json:"londonBlock"`
	ParisBlock          uint64       `json:"parisBlock"`
	Clique              CliqueConfig `json:"clique"`
}

// CliqueConfig tunes the proof-of-authority engine; a zero period seals a
// block per transaction.
type CliqueConfig struct {
	Period uint64 `json:"period"`
	Epoch  uint64 `json:"epoch"`
}

// AllocEntry funds one address at genesis.
type AllocEntry struct {
	Balance string `json:"balance"`
}

// NewGenesis builds the genesis document for a spec: every generated account
// funded with the configured balance and exactly one sealer embedded in the
// extra-data.
func NewGenesis(spec *Spec, sealer common.Address, accounts []Account) *Genesis {
	alloc := make(map[string]AllocEntry, len(accounts))
	for _, a := range accounts {
		alloc[a.Address.Hex()] = AllocEntry{Balance: spec.InitialBalance}
	}

	return &Genesis{
		Coinbase:   "0x0000000000000000000000000000000000000000",
		Difficulty: "0x0",
		ExtraData:  sealerExtraData(sealer),
		Config: GenesisConfig{
			ChainID: spec.ChainID,
			Clique:  CliqueConfig{Period: 0, Epoch: 30000},
		},
		Alloc: alloc,
	}
}

// SealerAddress recovers the sealer embedded in the extra-data.
func (g *Genesis) SealerAddress() common.Address {
	raw := strings.TrimPrefix(g.ExtraData, "0x")
	if len(raw) < 64+40 {
		return common.Address{}
	}

	return common.HexToAddress(raw[64 : 64+40])
}

// WriteFile marshals the genesis document to path.
func (g *Genesis) WriteFile(path string) error {
	data, err := json.MarshalIndent(g, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding genesis: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing genesis file: %w", err)
	}

	return nil
}

func sealerExtraData(sealer common.Address) string {
	return fmt.Sprintf("0x%064x%x%0130x", 0, sealer, 0)
}
