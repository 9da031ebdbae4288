package tracing

import (
	"fmt"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"
)

// Enricher rewrites raw call inputs and outputs into decoded function names
// and arguments wherever a registered contract interface matches. Enrichment
// is a side-effect-free transform: it either labels a deep copy or labels the
// tree in place, and applying it twice changes nothing.
type Enricher struct {
	log  logrus.FieldLogger
	abis map[common.Address]*abi.ABI
}

// NewEnricher creates an Enricher with an empty interface registry.
func NewEnricher(log logrus.FieldLogger) *Enricher {
	return &Enricher{
		log:  log.WithField("module", "ethereum/tracing/enrich"),
		abis: map[common.Address]*abi.ABI{},
	}
}

// Register associates a contract interface with an address.
func (e *Enricher) Register(addr common.Address, contractABI *abi.ABI) {
	e.abis[addr] = contractABI
}

// Enrich decodes function selectors and arguments across the tree. With
// inPlace false the input tree is left untouched and a labeled copy is
// returned, for callers that still need the raw tree for a second,
// differently-enriched consumer.
func (e *Enricher) Enrich(node *CallTreeNode, inPlace bool) *CallTreeNode {
	if node == nil {
		return nil
	}

	if !inPlace {
		node = node.Copy()
	}

	e.enrich(node)

	return node
}

func (e *Enricher) enrich(node *CallTreeNode) {
	// Method set means this node was already enriched.
	if node.Method == "" {
		e.decodeNode(node)
	}

	for _, child := range node.Children {
		e.enrich(child)
	}
}

func (e *Enricher) decodeNode(node *CallTreeNode) {
	contractABI, ok := e.abis[node.To]
	if !ok || len(node.Input) < 4 {
		return
	}

	method, err := contractABI.MethodById(node.Input[:4])
	if err != nil {
		e.log.WithError(err).WithField("to", node.To.Hex()).Debug("No interface match for selector")

		return
	}

	node.Method = method.Name

	if args, err := method.Inputs.Unpack(node.Input[4:]); err == nil {
		node.Arguments = renderValues(args)
	}

	if len(node.Output) > 0 {
		if rets, err := method.Outputs.Unpack(node.Output); err == nil {
			node.Returns = renderValues(rets)
		}
	}
}

func renderValues(values []interface{}) []string {
	out := make([]string, len(values))
	for i, v := range values {
		switch tv := v.(type) {
		case common.Address:
			out[i] = tv.Hex()
		case []byte:
			out[i] = fmt.Sprintf("0x%x", tv)
		default:
			out[i] = fmt.Sprintf("%v", tv)
		}
	}

	return out
}
