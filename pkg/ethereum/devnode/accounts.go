package devnode

import (
	"crypto/ecdsa"
	"encoding/binary"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	bip39 "github.com/tyler-smith/go-bip39"
)

// Account is one funded test identity.
type Account struct {
	Address common.Address
	Key     *ecdsa.PrivateKey
}

// GenerateAccounts derives count deterministic address/key pairs from a
// mnemonic. The same (mnemonic, count) always yields the same ordered list.
func GenerateAccounts(mnemonic string, count int) ([]Account, error) {
	if mnemonic == "" {
		return nil, fmt.Errorf("mnemonic is required")
	}

	seed := bip39.NewSeed(mnemonic, "")

	accounts := make([]Account, 0, count)

	for i := 0; i < count; i++ {
		var index [8]byte

		binary.BigEndian.PutUint64(index[:], uint64(i))

		material := crypto.Keccak256(seed, index[:])

		key, err := crypto.ToECDSA(material)
		for err != nil {
			// Rejected scalar (not in curve order); roll the material forward.
			material = crypto.Keccak256(material)
			key, err = crypto.ToECDSA(material)
		}

		accounts = append(accounts, Account{
			Address: crypto.PubkeyToAddress(key.PublicKey),
			Key:     key,
		})
	}

	return accounts, nil
}
