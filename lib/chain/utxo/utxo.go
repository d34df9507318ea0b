// Package utxo implements the adapter for UTXO-model networks (bitcoin-type chains) through a chain-explorer or
// custody-provider HTTP API. UTXO chains have no account state on the node, so balance and history are always
// served by an indexing provider, and transfers are submitted to the provider which builds, signs and broadcasts
// the underlying inputs/outputs.
package utxo

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/btcsuite/btcd/btcutil/base58"
	"github.com/btcsuite/btcd/btcutil/bech32"

	"github.com/tarancss/qgw/lib/chain/types"
)

const apiTimeout = 15 * time.Second

// Address version bytes accepted by IsValidAddress: mainnet P2PKH/P2SH and their testnet counterparts.
const (
	verP2PKH     byte = 0x00
	verP2SH      byte = 0x05
	verTestP2PKH byte = 0x6f
	verTestP2SH  byte = 0xc4
)

// UTXO implements a connection to a UTXO-model chain provider.
type UTXO struct {
	net    string
	api    string
	secret string // provider API key, sent as Bearer when set
	hc     *http.Client
}

// Init returns an adapter for the provider API at node. secret is an optional provider API key.
func Init(net, node, secret string) *UTXO {
	return &UTXO{
		net:    net,
		api:    strings.TrimRight(node, "/"),
		secret: secret,
		hc:     &http.Client{Timeout: apiTimeout},
	}
}

// Close is a no-op: the provider API is stateless HTTP.
func (u *UTXO) Close() {}

// IsValidAddress returns true for well-formed bech32 segwit addresses and base58check P2PKH/P2SH addresses.
func (u *UTXO) IsValidAddress(address string) bool {
	if address == "" {
		return false
	}

	if hrp, _, err := bech32.Decode(address); err == nil {
		return hrp == "bc" || hrp == "tb" || hrp == "bcrt"
	}

	_, version, err := base58.CheckDecode(address)
	if err != nil {
		return false
	}

	switch version {
	case verP2PKH, verP2SH, verTestP2PKH, verTestP2SH:
		return true
	}

	return false
}

// call performs one provider API request and decodes the JSON response into out.
func (u *UTXO) call(method, path string, reqBody, out interface{}) error {
	var body *bytes.Buffer = &bytes.Buffer{}

	if reqBody != nil {
		if err := json.NewEncoder(body).Encode(reqBody); err != nil {
			return err
		}
	}

	req, err := http.NewRequest(method, u.api+path, body)
	if err != nil {
		return err
	}

	req.Header.Set("Content-Type", "application/json")

	if u.secret != "" {
		req.Header.Set("Authorization", "Bearer "+u.secret)
	}

	resp, err := u.hc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		// providers reply a JSON error body on 4xx, surface its message
		var pe struct {
			Error string `json:"error"`
		}

		if errDec := json.NewDecoder(resp.Body).Decode(&pe); errDec == nil && pe.Error != "" {
			return fmt.Errorf("%w: %s", types.ErrNodeStatus, pe.Error)
		}

		return fmt.Errorf("%w: %s", types.ErrNodeStatus, resp.Status)
	}

	if err = json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: %s", types.ErrNodeDecode, err)
	}

	return nil
}

// Balance returns the confirmed balance of the address in satoshi.
func (u *UTXO) Balance(address string) (types.BalanceInfo, error) {
	var body struct {
		Address string `json:"address"`
		Balance string `json:"balance"`
	}

	if err := u.call(http.MethodGet, "/address/"+address, nil, &body); err != nil {
		return types.BalanceInfo{}, err
	}

	return types.BalanceInfo{Net: u.net, Address: address, Balance: body.Balance}, nil
}

// providerTx is one entry of the provider's address history.
type providerTx struct {
	TxID          string `json:"txid"`
	Block         string `json:"block"`
	Time          uint32 `json:"time"`
	From          string `json:"from"`
	To            string `json:"to"`
	Value         string `json:"value"`
	Fee           uint64 `json:"fee"`
	Confirmations int    `json:"confirmations"`
}

// Transactions returns the transaction history of the address. The provider already collapses vin/vout sets into a
// single from/to pair per transaction.
func (u *UTXO) Transactions(address string) ([]types.TxInfo, error) {
	var body struct {
		Txs []providerTx `json:"txs"`
	}

	if err := u.call(http.MethodGet, "/address/"+address+"/txs", nil, &body); err != nil {
		return nil, err
	}

	txs := make([]types.TxInfo, 0, len(body.Txs))

	for _, t := range body.Txs {
		status := types.TrxPending
		if t.Confirmations > 0 {
			status = types.TrxSuccess
		}

		txs = append(txs, types.TxInfo{
			Block:  t.Block,
			Hash:   t.TxID,
			From:   t.From,
			To:     t.To,
			Value:  t.Value,
			Fee:    t.Fee,
			Status: status,
			TS:     t.Time,
		})
	}

	return txs, nil
}

// Send asks the provider to build, sign with the given key and broadcast a transfer of amount satoshi to the
// address in to, returning the receipt with the broadcast txid.
func (u *UTXO) Send(from, key, to, amount string) (types.Receipt, error) {
	req := map[string]string{"secret": key, "from": from, "to": to, "amount": amount}

	var body struct {
		TxID string `json:"txid"`
		Fee  string `json:"fee"`
	}

	if err := u.call(http.MethodPost, "/transfer", req, &body); err != nil {
		return types.Receipt{}, err
	}

	return types.Receipt{
		Net:    u.net,
		Hash:   body.TxID,
		From:   from,
		To:     to,
		Value:  amount,
		Fee:    body.Fee,
		Status: types.TrxPending,
		TS:     time.Now().Unix(),
	}, nil
}
