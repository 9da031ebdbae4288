package tracing

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// ParityTrace is a single entry from a trace_transaction response: the
// parity/OpenEthereum format, a flat list of call-frame records addressed by
// their position in the tree.
type ParityTrace struct {
	Action              ParityTraceAction  `json:"action"`
	BlockHash           string             `json:"blockHash"`
	BlockNumber         uint64             `json:"blockNumber"`
	Result              *ParityTraceResult `json:"result"`
	Subtraces           uint32             `json:"subtraces"`
	TraceAddress        []uint32           `json:"traceAddress"`
	TransactionHash     string             `json:"transactionHash"`
	TransactionPosition uint32             `json:"transactionPosition"`
	Type                string             `json:"type"` // "call", "create", "suicide", "reward"
	Error               *string            `json:"error"`
}

// ParityTraceAction contains the action details of a trace.
type ParityTraceAction struct {
	From          string  `json:"from"`
	To            *string `json:"to"`       // nil for CREATE
	CallType      *string `json:"callType"` // "call", "delegatecall", ... (nil for CREATE)
	Gas           string  `json:"gas"`
	Input         *string `json:"input"`
	Value         string  `json:"value"`
	Init          *string `json:"init"`          // CREATE init code
	CreationType  *string `json:"creationType"`  // "create" or "create2"
	Address       *string `json:"address"`       // SELFDESTRUCT: destroyed contract
	RefundAddress *string `json:"refundAddress"` // SELFDESTRUCT: balance recipient
	Balance       *string `json:"balance"`       // SELFDESTRUCT: forwarded balance
}

// ParityTraceResult contains the result of a trace execution. It is nil for
// reverted frames.
type ParityTraceResult struct {
	GasUsed string  `json:"gasUsed"`
	Output  *string `json:"output"`
	Code    *string `json:"code"`    // CREATE: deployed code
	Address *string `json:"address"` // CREATE: created address
}

// TreeFromParityTraces reconstructs the call tree from a flat parity-style
// trace list. Entries arrive in depth-first order; each trace address names
// the path from the root. Failed frames keep their place in the tree.
func TreeFromParityTraces(traces []ParityTrace) (*CallTreeNode, error) {
	if len(traces) == 0 {
		return nil, ErrNoTraces
	}

	byPath := make(map[string]*CallTreeNode, len(traces))

	var root *CallTreeNode

	for i := range traces {
		t := &traces[i]
		node := nodeFromParity(t)

		if len(t.TraceAddress) == 0 {
			if root != nil {
				return nil, fmt.Errorf("%w: multiple root traces", ErrMalformedTrace)
			}

			root = node
		} else {
			parent, ok := byPath[pathKey(t.TraceAddress[:len(t.TraceAddress)-1])]
			if !ok {
				return nil, fmt.Errorf("%w: trace address %v has no parent", ErrMalformedTrace, t.TraceAddress)
			}

			parent.Children = append(parent.Children, node)
		}

		byPath[pathKey(t.TraceAddress)] = node
	}

	if root == nil {
		return nil, fmt.Errorf("%w: no root trace", ErrMalformedTrace)
	}

	return root, nil
}

func nodeFromParity(t *ParityTrace) *CallTreeNode {
	node := &CallTreeNode{
		From:    common.HexToAddress(t.Action.From),
		Value:   wordToBig(t.Action.Value),
		TxnHash: t.TransactionHash,
	}

	switch t.Type {
	case "create":
		node.CallType = CallTypeCreate
		if t.Action.CreationType != nil && strings.EqualFold(*t.Action.CreationType, "create2") {
			node.CallType = CallTypeCreate2
		}

		if t.Action.Init != nil {
			node.Input = hexutil.Bytes(common.FromHex(*t.Action.Init))
		}

		if t.Result != nil && t.Result.Address != nil {
			node.To = common.HexToAddress(*t.Result.Address)
		}

	case "suicide":
		node.CallType = CallTypeSelfDestruct
		if t.Action.Address != nil {
			node.From = common.HexToAddress(*t.Action.Address)
		}

		if t.Action.RefundAddress != nil {
			node.To = common.HexToAddress(*t.Action.RefundAddress)
		}

		if t.Action.Balance != nil {
			node.Value = wordToBig(*t.Action.Balance)
		}

	default: // "call"
		node.CallType = CallTypeCall
		if t.Action.CallType != nil {
			node.CallType = CallType(strings.ToUpper(*t.Action.CallType))
		}

		if t.Action.To != nil {
			node.To = common.HexToAddress(*t.Action.To)
		}

		if t.Action.Input != nil {
			node.Input = hexutil.Bytes(common.FromHex(*t.Action.Input))
		}
	}

	if t.Result != nil {
		node.GasCost = wordToUint64(t.Result.GasUsed)

		if t.Result.Output != nil {
			node.Output = hexutil.Bytes(common.FromHex(*t.Result.Output))
		}
	}

	// Reverted frames carry an error and no result.
	if t.Error != nil && *t.Error != "" {
		node.Failed = true
	}

	return node
}

func pathKey(path []uint32) string {
	var sb strings.Builder
	for _, p := range path {
		fmt.Fprintf(&sb, "%d/", p)
	}

	return sb.String()
}
