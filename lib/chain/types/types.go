// Package types common normalized types returned by all blockchain adapters.
package types

import (
	"errors"
)

// Transaction status constants, shared by all adapters.
const (
	TrxPending uint8 = 0
	TrxFailed  uint8 = 1
	TrxSuccess uint8 = 2
)

// BalanceInfo is the normalized balance of an address in one network. Balance is kept as a string in the network's
// smallest unit because the three backends use different integer widths and some exceed uint64.
type BalanceInfo struct {
	Net     string `json:"net"`
	Address string `json:"address"`
	Balance string `json:"balance"`
	Token   string `json:"token,omitempty"` // token balance where the network supports tokens
}

// TxInfo contains a simplified number of transaction fields. For the time being, we keep just one transfer from
// `From` to `To` but there are blockchains that have multiple transfers in one transaction.
type TxInfo struct {
	Block  string `json:"block"`
	Hash   string `json:"hash"`
	From   string `json:"from"`
	To     string `json:"to"`
	Value  string `json:"value"`
	Fee    uint64 `json:"fee"`
	Status uint8  `json:"status"`
	TS     uint32 `json:"ts"`
}

// Receipt is the normalized result of a value transfer submitted to a network.
type Receipt struct {
	Net    string `json:"net"`
	Hash   string `json:"hash"`
	From   string `json:"from"`
	To     string `json:"to"`
	Value  string `json:"value"`
	Fee    string `json:"fee"`
	Status uint8  `json:"status"`
	TS     int64  `json:"ts"`
}

// Error codes.
var (
	ErrNoTrx       = errors.New("transaction not found")
	ErrBadAddress  = errors.New("address is not valid for this network")
	ErrBadAmount   = errors.New("amount could not be parsed")
	ErrNoFunds     = errors.New("insufficient funds for transfer")
	ErrNodeStatus  = errors.New("node replied with a non-OK status")
	ErrNodeDecode  = errors.New("unable to decode node response")
	ErrRPCResponse = errors.New("node replied with an RPC error")
)
