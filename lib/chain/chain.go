// Package chain defines the interface required for all blockchain or network connections.
package chain

import (
	"log"

	"github.com/tarancss/qgw/lib/chain/ethereum"
	"github.com/tarancss/qgw/lib/chain/fastnet"
	"github.com/tarancss/qgw/lib/chain/types"
	"github.com/tarancss/qgw/lib/chain/utxo"
	"github.com/tarancss/qgw/lib/config"
)

// Adapter is the contract every backend implements. It has been designed to be as much standard as possible,
// however, there may be specific blockchains or networks that would require different types or more methods.
// IsValidAddress is a pure predicate and must not panic on any input. The remaining methods reach the network and
// may fail with node, validation or insufficient-funds errors; callers get the message as-is.
type Adapter interface {
	IsValidAddress(address string) bool
	Balance(address string) (types.BalanceInfo, error)
	Transactions(address string) ([]types.TxInfo, error)
	Send(from, key, to, amount string) (types.Receipt, error)
	Close()
}

// Init loads all the adapters read from the config into a map keyed by network name.
func Init(bc []config.ChainConfig) (m map[string]Adapter, err error) {
	m = make(map[string]Adapter)

	for _, c := range bc {
		switch c.Kind {
		case "ethereum":
			var e *ethereum.Ethereum

			if e, err = ethereum.Init(c.Name, c.Node, c.Explorer, c.Secret); err != nil {
				return
			}

			m[c.Name] = e
		case "utxo":
			m[c.Name] = utxo.Init(c.Name, c.Node, c.Secret)
		case "fastnet":
			m[c.Name] = fastnet.Init(c.Name, c.Node)
		default:
			log.Printf("Blockchain adapter not defined for kind %s (%s). Ignoring...\n", c.Kind, c.Name)
		}
	}

	return
}

// End closes gracefully all the adapters opened.
func End(m map[string]Adapter) {
	for _, a := range m {
		a.Close()
	}
}
