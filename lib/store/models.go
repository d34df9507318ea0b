package store

// Receipt contains the fields of a transfer receipt saved to DB.
type Receipt struct {
	ID     []byte `json:"id"`
	Hash   string `json:"hash"`
	From   string `json:"from"`
	To     string `json:"to"`
	Value  string `json:"value"`
	Fee    string `json:"fee"`
	Status uint8  `json:"status"`
	TS     int64  `json:"ts"`
}

// NetReceipts groups the receipts persisted for one network.
type NetReceipts struct {
	Net      string    `json:"net"`
	Receipts []Receipt `json:"receipts"`
}

// Session audit actions.
const (
	AuditIssued   = "issued"
	AuditConsumed = "consumed"
	AuditExpired  = "expired"
)

// AuditEvent records one session lifecycle transition.
type AuditEvent struct {
	Session string `json:"session"`
	Address string `json:"address"`
	Action  string `json:"action"`
	TS      int64  `json:"ts"`
}
