// Defines the event types published to message brokers.
package types

// Session event reasons.
const (
	Expired  = "expired"
	Consumed = "consumed"
)

// TransferEvent is published when a transfer has been submitted to a network.
type TransferEvent struct {
	Net    string `json:"net"`
	Hash   string `json:"hash"`
	From   string `json:"from"`
	To     string `json:"to"`
	Value  string `json:"value"`
	Fee    string `json:"fee"`
	Status uint8  `json:"status"`
	TS     int64  `json:"ts"`
}

// SessionEvent is published when a session ends, either consumed or reclaimed by the expiry sweeper.
type SessionEvent struct {
	Net     string `json:"net"`
	Session string `json:"session"`
	Address string `json:"address"`
	Reason  string `json:"reason"`
	TS      int64  `json:"ts"`
}
