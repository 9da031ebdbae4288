package tracing

import (
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// Stack and memory snapshots arrive as hex words. Depending on the client
// they may or may not carry a 0x prefix, and stack words are listed bottom
// to top.

func stackWord(stack []string, fromTop int) string {
	idx := len(stack) - 1 - fromTop
	if idx < 0 || idx >= len(stack) {
		return ""
	}

	return stack[idx]
}

func wordToBig(word string) *big.Int {
	word = strings.TrimPrefix(word, "0x")
	if word == "" {
		return new(big.Int)
	}

	v, ok := new(big.Int).SetString(word, 16)
	if !ok {
		return new(big.Int)
	}

	return v
}

func wordToUint64(word string) uint64 {
	v := wordToBig(word)
	if !v.IsUint64() {
		return 0
	}

	return v.Uint64()
}

func wordToAddress(word string) common.Address {
	return common.BytesToAddress(wordToBig(word).Bytes())
}

// memoryRange extracts [offset, offset+size) from a memory snapshot of
// 32-byte words. Out-of-range reads return what is available.
func memoryRange(memory []string, offset, size uint64) []byte {
	if size == 0 || len(memory) == 0 {
		return nil
	}

	var sb strings.Builder
	for _, word := range memory {
		sb.WriteString(strings.TrimPrefix(word, "0x"))
	}

	buf := common.FromHex(sb.String())

	if offset >= uint64(len(buf)) {
		return nil
	}

	end := offset + size
	if end > uint64(len(buf)) {
		end = uint64(len(buf))
	}

	out := make([]byte, end-offset)
	copy(out, buf[offset:end])

	return out
}
