package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"

	"github.com/evmkit/node-provider/pkg/ethereum/provider"
)

var traceRaw bool

var traceCmd = &cobra.Command{
	Use:   "trace <transaction-hash>",
	Short: "Reconstructs and prints the call tree of a mined transaction.",
	Long: `Reconstructs and prints the call tree of a mined transaction.

With --raw the per-opcode execution frames are streamed instead, one JSON
object per line.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(common.FromHex(args[0])) != common.HashLength {
			return fmt.Errorf("invalid transaction hash %q", args[0])
		}

		txnHash := common.HexToHash(args[0])

		return runWithProvider(cmd.Context(), func(ctx context.Context, p *provider.Provider) error {
			if traceRaw {
				return streamRawTrace(ctx, p, txnHash)
			}

			tree, err := p.CallTree(ctx, txnHash)
			if err != nil {
				return err
			}

			out, err := json.MarshalIndent(tree, "", "  ")
			if err != nil {
				return err
			}

			fmt.Println(string(out))

			return nil
		})
	},
}

func streamRawTrace(ctx context.Context, p *provider.Provider, txnHash common.Hash) error {
	it, err := p.TransactionTrace(ctx, txnHash)
	if err != nil {
		return err
	}

	defer it.Close()

	enc := json.NewEncoder(os.Stdout)

	for {
		frame, err := it.ReadFrame()
		if errors.Is(err, io.EOF) {
			return nil
		}

		if err != nil {
			return err
		}

		if err := enc.Encode(frame); err != nil {
			return err
		}
	}
}

func init() {
	traceCmd.Flags().BoolVar(&traceRaw, "raw", false, "stream per-opcode frames instead of the call tree")

	rootCmd.AddCommand(traceCmd)
}
