package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/findy-network/findy-vcx/agent/pool"
	"github.com/findy-network/findy-vcx/agent/vcxerr"
	"github.com/findy-network/findy-vcx/vcx"
	"github.com/lainio/err2"
	"github.com/lainio/err2/try"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// ledgerCmd represents the ledger command
var ledgerCmd = &cobra.Command{
	Use:   "ledger",
	Short: "Parent command for ledger specific actions",
	Long: `
Parent command for ledger specific actions. The writes are signed by the
trustee of --trustee-seed and go to the ledger of --ledger-file.
	`,
	Run: func(cmd *cobra.Command, args []string) {
		SubCmdNeeded(cmd)
	},
}

var schemaEnvs = map[string]string{
	"name":       "NAME",
	"version":    "VERSION",
	"attributes": "ATTRIBUTES",
}

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Writes a new schema to the ledger",
	Long: `
Writes a new schema to the ledger and prints its ID.

Example
	findy-vcx ledger schema \
		--trustee-seed 000000000000000000000000Trustee1 \
		--name gvt \
		--version 1.0 \
		--attributes name,sex,age,height
	`,
	PreRunE: func(cmd *cobra.Command, args []string) (err error) {
		return BindEnvs(schemaEnvs, "SCHEMA")
	},
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		defer err2.Handle(&err)

		schFlags.attrs = viper.GetStringSlice("attributes")
		if schFlags.name == "" || len(schFlags.attrs) == 0 {
			return vcxerr.New(vcxerr.InvalidOption, "schema needs a name and attributes")
		}
		if rootFlags.dryRun {
			fmt.Fprintln(cmd.OutOrStdout(), "schema", schFlags.name, schFlags.version, schFlags.attrs)
			return nil
		}
		cmd.SilenceUsage = true
		r := try.To1(openRuntime())
		defer r.Shutdown()

		h := try.To1(r.SchemaCreate(context.Background(), schFlags.name,
			schFlags.name, schFlags.version, schFlags.attrs))
		try.To1(fmt.Fprintln(cmd.OutOrStdout(), try.To1(r.SchemaGetID(h))))
		return nil
	},
}

var nymEnvs = map[string]string{
	"did":    "DID",
	"verkey": "VERKEY",
	"role":   "ROLE",
}

var nymCmd = &cobra.Command{
	Use:   "nym",
	Short: "Writes a DID to the ledger",
	Long: `
Writes a DID and its verkey to the ledger. The role is one of TRUSTEE,
STEWARD, ENDORSER or empty.

Example
	findy-vcx ledger nym \
		--trustee-seed 000000000000000000000000Trustee1 \
		--did 8NCqkhnNjeTwMmK68DHDPx \
		--verkey 7UVdY7mvSzMYwTDyjh2pb4kqFAb1Tf5aqfvYDkpxBq4n \
		--role ENDORSER
	`,
	PreRunE: func(cmd *cobra.Command, args []string) (err error) {
		return BindEnvs(nymEnvs, "NYM")
	},
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		defer err2.Handle(&err)

		try.To(pool.CheckDID(nymFlags.did))
		try.To(pool.CheckVerkey(nymFlags.verkey))
		role := try.To1(parseRole(nymFlags.role))
		if rootFlags.dryRun {
			fmt.Fprintln(cmd.OutOrStdout(), "nym", nymFlags.did, nymFlags.verkey, role)
			return nil
		}
		cmd.SilenceUsage = true
		r := try.To1(openRuntime())
		defer r.Shutdown()

		try.To(r.WriteNym(context.Background(), nymFlags.did, nymFlags.verkey, role))
		try.To1(fmt.Fprintln(cmd.OutOrStdout(), nymFlags.did))
		return nil
	},
}

func parseRole(s string) (pool.Role, error) {
	switch r := pool.Role(strings.ToUpper(s)); r {
	case pool.RoleNone, pool.RoleTrustee, pool.RoleSteward, pool.RoleEndorser:
		return r, nil
	}
	return "", vcxerr.New(vcxerr.InvalidOption, "role %q", s)
}

// openRuntime builds the runtime of the root flags.
func openRuntime() (r *vcx.Runtime, err error) {
	defer err2.Handle(&err)

	return vcx.New(try.To1(runtimeConfig()))
}

var schFlags struct {
	name    string
	version string
	attrs   []string
}

var nymFlags struct {
	did    string
	verkey string
	role   string
}

func init() {
	s := schemaCmd.Flags()
	s.StringVar(&schFlags.name, "name", "", flagInfo("schema name", schemaCmd.Name(), schemaEnvs["name"]))
	s.StringVar(&schFlags.version, "version", "1.0", flagInfo("schema version", schemaCmd.Name(), schemaEnvs["version"]))
	s.StringSliceVar(&schFlags.attrs, "attributes", nil, flagInfo("schema attributes", schemaCmd.Name(), schemaEnvs["attributes"]))

	n := nymCmd.Flags()
	n.StringVar(&nymFlags.did, "did", "", flagInfo("DID to write", nymCmd.Name(), nymEnvs["did"]))
	n.StringVar(&nymFlags.verkey, "verkey", "", flagInfo("verkey of the DID", nymCmd.Name(), nymEnvs["verkey"]))
	n.StringVar(&nymFlags.role, "role", string(pool.RoleEndorser), flagInfo("role of the DID", nymCmd.Name(), nymEnvs["role"]))

	ledgerCmd.AddCommand(schemaCmd)
	ledgerCmd.AddCommand(nymCmd)
	rootCmd.AddCommand(ledgerCmd)
}
