package provider

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/evmkit/node-provider/pkg/ethereum"
)

func TestClassifyRPCError(t *testing.T) {
	tests := []struct {
		name           string
		err            error
		notImplemented bool
	}{
		{
			name:           "method does not exist",
			err:            errors.New("the method trace_transaction does not exist/is not available"),
			notImplemented: true,
		},
		{
			name:           "method not available",
			err:            errors.New("Method trace_transaction is not available"),
			notImplemented: true,
		},
		{
			name: "node failure",
			err:  errors.New("transaction not found"),
		},
		{
			name: "reverted",
			err:  errors.New("execution reverted"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			classified := classifyRPCError("trace_transaction", tt.err)

			assert.Equal(t, tt.notImplemented, ethereum.IsNotImplemented(classified))

			if !tt.notImplemented {
				assert.Equal(t, tt.err, classified)
			}
		})
	}
}
