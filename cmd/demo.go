package cmd

import (
	"context"
	"fmt"
	"io"
	"sort"

	"github.com/findy-network/findy-vcx/agent/anoncreds"
	"github.com/findy-network/findy-vcx/agent/state"
	"github.com/findy-network/findy-vcx/agent/vcxerr"
	"github.com/findy-network/findy-vcx/vcx"
	"github.com/lainio/err2"
	"github.com/lainio/err2/try"
	"github.com/spf13/cobra"
)

const demoTrusteeSeed = "000000000000000000000000Trustee1"

var (
	gvtAttrs  = []string{"name", "sex", "age", "height"}
	gvtValues = map[string]string{
		"name":   "Alex",
		"sex":    "male",
		"age":    "28",
		"height": "175",
	}
)

var demoCmd = &cobra.Command{
	Use:   "demo",
	Short: "Runs the gvt issue and proof flow",
	Long: `
Runs the gvt flow with three parties: Faber issues a gvt credential to Alice,
and Acme asks Alice to prove her name and that she is at least 18. The
revealed attributes are printed.

Faber runs with the root flags. Alice and Acme share Faber's ledger and
mailbox. Without --persist everything is kept in memory.

Example
	findy-vcx demo
	findy-vcx demo --persist --mailbox-url http://localhost:8080
	`,
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		defer err2.Handle(&err)

		if rootFlags.dryRun {
			fmt.Fprintln(cmd.OutOrStdout(), "demo gvt")
			return nil
		}
		cmd.SilenceUsage = true

		cfg := try.To1(demoConfig())
		faber := try.To1(vcx.New(cfg))
		defer faber.Shutdown()

		return runDemo(context.Background(), faber, cmd.OutOrStdout())
	},
}

var demoFlags struct {
	persist bool
}

func demoConfig() (cfg vcx.Config, err error) {
	defer err2.Handle(&err)

	cfg = try.To1(runtimeConfig())
	if !demoFlags.persist {
		cfg.WalletBackend = vcx.WalletMem
		cfg.LedgerFile = ""
		cfg.SnapshotFile = ""
	}
	if cfg.TrusteeSeed == "" {
		cfg.TrusteeSeed = demoTrusteeSeed
	}
	return cfg, nil
}

func runDemo(ctx context.Context, faber *vcx.Runtime, w io.Writer) (err error) {
	defer err2.Handle(&err, "demo")

	alice := faber.Peer()
	defer alice.Shutdown()
	acme := faber.Peer()
	defer acme.Shutdown()

	step := func(format string, args ...any) {
		try.To1(fmt.Fprintf(w, format+"\n", args...))
	}

	fc, ac := try.To2(demoConnect(ctx, faber, alice))
	step("faber - alice connected")

	sh := try.To1(faber.SchemaCreate(ctx, "gvt", "gvt", "1.0", gvtAttrs))
	schemaID := try.To1(faber.SchemaGetID(sh))
	cd := try.To1(faber.CredentialDefCreate(ctx, "gvt", schemaID, "tag1", false))
	credDefID := try.To1(faber.CredentialDefGetID(cd))
	step("schema %s, cred def %s", schemaID, credDefID)

	ih := try.To1(faber.IssuerCreateCredential(ctx, "gvt", cd, "gvt", gvtValues, "0"))
	try.To(faber.IssuerSendOffer(ctx, ih, fc))
	offers := try.To1(alice.CredentialGetOffers(ctx, ac))
	if len(offers) == 0 {
		return vcxerr.New(vcxerr.NotFound, "no credential offer")
	}
	ch := try.To1(alice.CredentialCreateWithMsgID(ctx, "gvt", ac, offers[0].ID))
	try.To(alice.CredentialSendRequest(ctx, ch, ac))
	try.To1(vcx.WaitState(ctx, faber.IssuerPoll(ih), state.RequestReceived))
	try.To(faber.IssuerSendCredential(ctx, ih, fc))
	try.To1(vcx.WaitState(ctx, alice.CredentialPoll(ch), state.Accepted))
	try.To1(vcx.WaitState(ctx, faber.IssuerPoll(ih), state.Accepted))
	step("credential issued to alice")

	vc, pc := try.To2(demoConnect(ctx, acme, alice))
	step("acme - alice connected")

	rs := []anoncreds.Restriction{{CredDefID: credDefID}}
	ph := try.To1(acme.ProofCreate("gvt", "gvt",
		[]anoncreds.AttrInfo{{Name: "name", Restrictions: rs}},
		[]anoncreds.PredicateInfo{{Name: "age", PType: ">=", PValue: 18, Restrictions: rs}},
		nil))
	try.To(acme.ProofSendRequest(ctx, ph, vc))
	reqs := try.To1(alice.DisclosedProofGetRequests(ctx, pc))
	if len(reqs) == 0 {
		return vcxerr.New(vcxerr.NotFound, "no proof request")
	}
	dh := try.To1(alice.DisclosedProofCreateWithMsgID(ctx, "gvt", pc, reqs[0].ID))
	try.To(alice.DisclosedProofGenerateAuto(ctx, dh, nil))
	try.To(alice.DisclosedProofSend(ctx, dh, pc))
	try.To1(vcx.WaitState(ctx, acme.ProofPoll(ph), state.Accepted))

	ps, _, revealed := try.To3(acme.ProofGet(ph))
	step("proof %s", ps)
	keys := make([]string, 0, len(revealed))
	for k := range revealed {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		step("  %s = %s", k, revealed[k])
	}
	if ps != state.ProofVerified {
		return vcxerr.New(vcxerr.VerificationFailed, "proof %s", ps)
	}
	return nil
}

func demoConnect(ctx context.Context, inviter, invitee *vcx.Runtime) (a, b vcx.Handle, err error) {
	defer err2.Handle(&err, "connect")

	a = try.To1(inviter.ConnectionCreate("invitee"))
	try.To(inviter.ConnectionConnect(ctx, a))
	b = try.To1(invitee.ConnectionCreateWithInvite("inviter",
		try.To1(inviter.ConnectionInviteDetails(a))))
	try.To(invitee.ConnectionConnect(ctx, b))
	try.To1(vcx.WaitState(ctx, inviter.ConnectionPoll(a), state.Accepted))
	try.To1(vcx.WaitState(ctx, invitee.ConnectionPoll(b), state.Accepted))
	return a, b, nil
}

func init() {
	demoCmd.Flags().BoolVar(&demoFlags.persist, "persist", false, "use the wallet, ledger and snapshot files of the root flags")
	rootCmd.AddCommand(demoCmd)
}
