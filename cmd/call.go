package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"

	"github.com/evmkit/node-provider/pkg/ethereum/provider"
	"github.com/evmkit/node-provider/pkg/ethereum/tracing"
	"github.com/evmkit/node-provider/pkg/reports"
)

var (
	callFrom  string
	callTo    string
	callData  string
	callValue string
	callBlock string
	callTrace bool
)

var callCmd = &cobra.Command{
	Use:   "call",
	Short: "Simulates a transaction and prints its return data.",
	Long: `Simulates a transaction and prints its return data.

With --trace the call runs under the execution tracer and the full call tree
is printed alongside the result.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		msg, err := buildCallMsg()
		if err != nil {
			return err
		}

		return runWithProvider(cmd.Context(), func(ctx context.Context, p *provider.Provider) error {
			opts := &provider.CallOptions{SkipTrace: !callTrace}
			if callTrace {
				opts.Sinks = []reports.Sink{&printSink{}}
			}

			ret, err := p.SendCall(ctx, msg, callBlock, opts)
			if err != nil {
				return err
			}

			fmt.Printf("0x%x\n", ret)

			return nil
		})
	},
}

func buildCallMsg() (*provider.CallMsg, error) {
	if !common.IsHexAddress(callFrom) {
		return nil, fmt.Errorf("invalid --from address %q", callFrom)
	}

	msg := &provider.CallMsg{
		From: common.HexToAddress(callFrom),
		Data: common.FromHex(callData),
	}

	if callTo != "" {
		if !common.IsHexAddress(callTo) {
			return nil, fmt.Errorf("invalid --to address %q", callTo)
		}

		to := common.HexToAddress(callTo)
		msg.To = &to
	}

	if callValue != "" {
		value, ok := new(big.Int).SetString(callValue, 10)
		if !ok {
			return nil, fmt.Errorf("invalid --value %q", callValue)
		}

		msg.Value = value
	}

	return msg, nil
}

// printSink renders the call tree to stdout.
type printSink struct{}

func (p *printSink) ShowGas() bool   { return true }
func (p *printSink) ShowTrace() bool { return true }

func (p *printSink) Emit(tree *tracing.CallTreeNode) {
	out, err := json.MarshalIndent(tree, "", "  ")
	if err != nil {
		log.WithError(err).Error("Failed to render call tree")

		return
	}

	fmt.Println(string(out))
}

func init() {
	callCmd.Flags().StringVar(&callFrom, "from", "", "sender address")
	callCmd.Flags().StringVar(&callTo, "to", "", "target address (omit for contract creation)")
	callCmd.Flags().StringVar(&callData, "data", "", "call data as hex")
	callCmd.Flags().StringVar(&callValue, "value", "", "value in wei")
	callCmd.Flags().StringVar(&callBlock, "block", "latest", "block to simulate against")
	callCmd.Flags().BoolVar(&callTrace, "trace", false, "run under the execution tracer and print the call tree")

	_ = callCmd.MarkFlagRequired("from")

	rootCmd.AddCommand(callCmd)
}
