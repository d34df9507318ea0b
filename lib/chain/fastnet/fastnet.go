// Package fastnet implements the adapter for high-throughput account-based networks that expose a JSON-RPC node
// API keyed by base58 account public keys.
package fastnet

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/btcsuite/btcd/btcutil/base58"

	"github.com/tarancss/qgw/lib/chain/types"
)

const rpcTimeout = 15 * time.Second

// account public keys are ed25519 points, 32 bytes base58-encoded
const keyLen = 32

// Fastnet implements a connection to a high-throughput account chain node.
type Fastnet struct {
	net string
	url string
	hc  *http.Client
}

// Init returns an adapter speaking JSON-RPC to the node at url.
func Init(net, url string) *Fastnet {
	return &Fastnet{net: net, url: url, hc: &http.Client{Timeout: rpcTimeout}}
}

// Close is a no-op: requests are stateless HTTP posts.
func (f *Fastnet) Close() {}

// IsValidAddress returns true when address decodes to a 32-byte base58 public key.
func (f *Fastnet) IsValidAddress(address string) bool {
	if address == "" {
		return false
	}

	return len(base58.Decode(address)) == keyLen
}

type rpcRequest struct {
	Jsonrpc string        `json:"jsonrpc"`
	ID      int           `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// rpcCall posts one JSON-RPC request to the node and decodes the result into out.
func (f *Fastnet) rpcCall(method string, params []interface{}, out interface{}) error {
	payload, err := json.Marshal(rpcRequest{Jsonrpc: "2.0", ID: 1, Method: method, Params: params})
	if err != nil {
		return err
	}

	resp, err := f.hc.Post(f.url, "application/json", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: %s", types.ErrNodeStatus, resp.Status)
	}

	var body struct {
		Result json.RawMessage `json:"result"`
		Error  *rpcError       `json:"error"`
	}

	if err = json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return fmt.Errorf("%w: %s", types.ErrNodeDecode, err)
	}

	if body.Error != nil {
		return fmt.Errorf("%w: %s", types.ErrRPCResponse, body.Error.Message)
	}

	if out != nil {
		if err = json.Unmarshal(body.Result, out); err != nil {
			return fmt.Errorf("%w: %s", types.ErrNodeDecode, err)
		}
	}

	return nil
}

// Balance returns the balance of the account in the chain's smallest unit.
func (f *Fastnet) Balance(address string) (types.BalanceInfo, error) {
	var result struct {
		Value uint64 `json:"value"`
	}

	if err := f.rpcCall("getBalance", []interface{}{address}, &result); err != nil {
		return types.BalanceInfo{}, err
	}

	return types.BalanceInfo{
		Net:     f.net,
		Address: address,
		Balance: strconv.FormatUint(result.Value, 10),
	}, nil
}

// nodeTx is one entry of the node's per-account transaction index.
type nodeTx struct {
	Signature string `json:"signature"`
	Slot      uint64 `json:"slot"`
	BlockTime uint32 `json:"blockTime"`
	From      string `json:"from"`
	To        string `json:"to"`
	Amount    uint64 `json:"amount"`
	Fee       uint64 `json:"fee"`
	Err       string `json:"err,omitempty"`
}

// Transactions returns the transaction history of the account. Fastnet nodes index transactions by account, so no
// external explorer is needed.
func (f *Fastnet) Transactions(address string) ([]types.TxInfo, error) {
	var result []nodeTx

	if err := f.rpcCall("getTransactionsForAddress", []interface{}{address}, &result); err != nil {
		return nil, err
	}

	txs := make([]types.TxInfo, 0, len(result))

	for _, t := range result {
		status := types.TrxSuccess
		if t.Err != "" {
			status = types.TrxFailed
		}

		txs = append(txs, types.TxInfo{
			Block:  strconv.FormatUint(t.Slot, 10),
			Hash:   t.Signature,
			From:   t.From,
			To:     t.To,
			Value:  strconv.FormatUint(t.Amount, 10),
			Fee:    t.Fee,
			Status: status,
			TS:     t.BlockTime,
		})
	}

	return txs, nil
}

// Send submits a transfer of amount (smallest unit) to the account in to, signed with the given secret key, and
// returns the receipt with the transaction signature.
func (f *Fastnet) Send(from, key, to, amount string) (types.Receipt, error) {
	amt, err := strconv.ParseUint(amount, 0, 64)
	if err != nil {
		return types.Receipt{}, types.ErrBadAmount
	}

	var result struct {
		Signature string `json:"signature"`
		Fee       uint64 `json:"fee"`
	}

	params := []interface{}{map[string]interface{}{"secret": key, "from": from, "to": to, "amount": amt}}
	if err = f.rpcCall("sendTransfer", params, &result); err != nil {
		return types.Receipt{}, err
	}

	return types.Receipt{
		Net:    f.net,
		Hash:   result.Signature,
		From:   from,
		To:     to,
		Value:  amount,
		Fee:    strconv.FormatUint(result.Fee, 10),
		Status: types.TrxPending,
		TS:     time.Now().Unix(),
	}, nil
}
