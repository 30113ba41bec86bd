package cmd

import (
	"context"
	"fmt"

	"github.com/findy-network/findy-vcx/agent/pool"
	"github.com/lainio/err2"
	"github.com/lainio/err2/try"
	"github.com/spf13/cobra"
)

var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Parent command for key operations of our DIDs",
	Long: `
Parent command for key operations of our DIDs
	`,
	Run: func(cmd *cobra.Command, args []string) {
		SubCmdNeeded(cmd)
	},
}

var keysCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Creates a new DID to the wallet",
	Long: `
Creates a new DID to the wallet and prints the DID and its verkey. An empty
seed gives a random key.

Example
	findy-vcx keys create --wallet-file my.bolt --seed 00000000000000000000000000000My1
	`,
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		defer err2.Handle(&err)

		if rootFlags.dryRun {
			fmt.Fprintln(cmd.OutOrStdout(), "create DID")
			return nil
		}
		cmd.SilenceUsage = true
		r := try.To1(openRuntime())
		defer r.Shutdown()

		did, verkey := try.To2(r.CreateAndStoreDID(keysFlags.seed))
		try.To1(fmt.Fprintln(cmd.OutOrStdout(), did, verkey))
		return nil
	},
}

var keysRotateCmd = &cobra.Command{
	Use:   "rotate",
	Short: "Rotates the key of our DID on the ledger",
	Long: `
Rotates the key of our DID: a new key is created to the wallet, the NYM with
the new key is written to the ledger signed by the old key, and the new key is
taken in use when the ledger shows it. Prints the new verkey.

Example
	findy-vcx keys rotate --wallet-file my.bolt --ledger-file ledger.bolt \
		--did 8NCqkhnNjeTwMmK68DHDPx
	`,
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		defer err2.Handle(&err)

		try.To(pool.CheckDID(keysFlags.did))
		if rootFlags.dryRun {
			fmt.Fprintln(cmd.OutOrStdout(), "rotate", keysFlags.did)
			return nil
		}
		cmd.SilenceUsage = true
		r := try.To1(openRuntime())
		defer r.Shutdown()

		try.To1(fmt.Fprintln(cmd.OutOrStdout(),
			try.To1(r.RotateKey(context.Background(), keysFlags.did))))
		return nil
	},
}

var keysFlags struct {
	seed string
	did  string
}

func init() {
	keysCreateCmd.Flags().StringVar(&keysFlags.seed, "seed", "", "32 byte seed of the key, empty is random")
	keysRotateCmd.Flags().StringVar(&keysFlags.did, "did", "", "our DID to rotate")

	keysCmd.AddCommand(keysCreateCmd)
	keysCmd.AddCommand(keysRotateCmd)
	rootCmd.AddCommand(keysCmd)
}
