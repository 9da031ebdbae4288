package tracing

import (
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// CallFrame is the nested-call representation returned by
// debug_traceTransaction and debug_traceCall when the callTracer is selected.
type CallFrame struct {
	Type         string      `json:"type"`
	From         string      `json:"from"`
	To           string      `json:"to"`
	Value        string      `json:"value"`
	Gas          string      `json:"gas"`
	GasUsed      string      `json:"gasUsed"`
	Input        string      `json:"input"`
	Output       string      `json:"output"`
	Error        string      `json:"error"`
	RevertReason string      `json:"revertReason"`
	Calls        []CallFrame `json:"calls"`
}

// TreeFromCallTrace converts the call tracer's already-nested structure into
// the canonical tree. The node reports failed sub-calls with an error field;
// they are preserved, not dropped.
func TreeFromCallTrace(frame *CallFrame, txnHash string) (*CallTreeNode, error) {
	if frame == nil || frame.Type == "" {
		return nil, ErrNoTraces
	}

	return nodeFromCallFrame(frame, txnHash), nil
}

func nodeFromCallFrame(frame *CallFrame, txnHash string) *CallTreeNode {
	node := &CallTreeNode{
		CallType: CallType(strings.ToUpper(frame.Type)),
		From:     common.HexToAddress(frame.From),
		To:       common.HexToAddress(frame.To),
		Value:    wordToBig(frame.Value),
		Input:    hexutil.Bytes(common.FromHex(frame.Input)),
		Output:   hexutil.Bytes(common.FromHex(frame.Output)),
		GasCost:  wordToUint64(frame.GasUsed),
		Failed:   frame.Error != "",
		TxnHash:  txnHash,
	}

	for i := range frame.Calls {
		node.Children = append(node.Children, nodeFromCallFrame(&frame.Calls[i], txnHash))
	}

	return node
}
