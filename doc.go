/*
Package main is the findy-vcx CLI. The runtime itself is the vcx package which
can be used as a library: it keeps the handle tables of connections, schemas,
credential definitions, credentials and proofs, and runs the Aries protocols
over them.

# Sub-packages

	vcx      the handle based API and the runtime configuration
	protocol connection, issuer, holder, prover and verifier state machines
	std      the protocol messages and their decorators
	agent    wallet, keys, ledger, anoncreds, transport, snapshots and errors
	cmd      the cobra commands of the CLI

# Commands

	findy-vcx demo                 runs the gvt issue and proof flow
	findy-vcx mailbox serve        runs the HTTP mailbox
	findy-vcx ledger schema|nym    writes to the ledger
	findy-vcx keys create|rotate   manages our DIDs and their keys
	findy-vcx version              prints the version
*/
package main
