// Package msg defines the interface for different message brokers.
//
package msg

import (
	"sync"

	"github.com/tarancss/qgw/lib/msg/types"
)

// MsgBroker publishes transfer and session events per network and lets consumers (front-ends or sibling gateway
// instances) subscribe to the transfer feed.
type MsgBroker interface {
	Setup(interface{}) error
	Close() error

	SendTransfer(net string, t types.TransferEvent) error
	SendSession(net string, s types.SessionEvent) error

	GetTransfers(net string, mut *sync.Mutex) (<-chan types.TransferEvent, <-chan error, error)
}
