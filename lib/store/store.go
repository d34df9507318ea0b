// Package store defines the interface for database implementations to the gateway service.
package store

import (
	"errors"
)

// DB defines the persistence methods used by the gateway: transfer receipts per network and an audit trail of
// session lifecycle events.
type DB interface {
	SaveReceipt(net string, r Receipt) ([]byte, error)
	GetReceipts(net []string) ([]NetReceipts, error)
	SaveAudit(net string, ev AuditEvent) error
}

// Errors returned
var (
	ErrReceiptNotFound = errors.New("receipt was not found in store")
	ErrDataNotFound    = errors.New("data was not found in store")
)
