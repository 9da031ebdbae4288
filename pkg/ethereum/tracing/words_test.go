package tracing

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
)

func TestStackWord(t *testing.T) {
	stack := []string{"0x1", "0x2", "0x3"}

	assert.Equal(t, "0x3", stackWord(stack, 0))
	assert.Equal(t, "0x2", stackWord(stack, 1))
	assert.Equal(t, "0x1", stackWord(stack, 2))
	assert.Equal(t, "", stackWord(stack, 3))
	assert.Equal(t, "", stackWord(nil, 0))
}

func TestWordConversions(t *testing.T) {
	assert.Equal(t, uint64(21000), wordToUint64("0x5208"))
	assert.Equal(t, uint64(21000), wordToUint64("5208"))
	assert.Equal(t, uint64(0), wordToUint64(""))
	assert.Equal(t, uint64(0), wordToUint64("not-hex"))

	addr := "000000000000000000000000deadbeefdeadbeefdeadbeefdeadbeefdeadbeef"
	assert.Equal(t, common.HexToAddress("0xdeadbeefdeadbeefdeadbeefdeadbeefdeadbeef"), wordToAddress(addr))
}

func TestMemoryRange(t *testing.T) {
	memory := []string{
		"00112233445566778899aabbccddeeff00112233445566778899aabbccddeeff",
		"f00d000000000000000000000000000000000000000000000000000000000000",
	}

	assert.Equal(t, []byte{0x00, 0x11, 0x22, 0x33}, memoryRange(memory, 0, 4))
	assert.Equal(t, []byte{0xf0, 0x0d}, memoryRange(memory, 32, 2))

	// reads past the end return what is available
	assert.Equal(t, 2, len(memoryRange(memory, 62, 10)))

	assert.Nil(t, memoryRange(memory, 0, 0))
	assert.Nil(t, memoryRange(memory, 100, 4))
	assert.Nil(t, memoryRange(nil, 0, 4))
}
