// Package common contains constants and sentinel errors shared by the
// agent, session and CLI layers.
package common

// Metadata keys attached to every outbound call by the agent.
const (
	CanisterIDHeader   = "x-canister-id"
	SenderHeader       = "x-sender"
	SenderPubKeyHeader = "x-sender-pubkey"
	SignatureHeader    = "x-signature"
	DelegationHeader   = "x-delegation"
	RequestIDHeader    = "x-request-id"
)

// Network selectors accepted by the configuration.
const (
	NetworkLocal = "local"
	NetworkIC    = "ic"
)
