// Package ethereum implements the adapter for ethereum-type networks.
package ethereum

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/tarancss/ethcli"

	"github.com/tarancss/qgw/lib/chain/types"
)

const explorerTimeout = 15 * time.Second

// Ethereum implements a connection to an ethereum-type chain. Balance and transfer go through the node's JSON-RPC
// client; transaction history is served by a chain-explorer API because the node itself cannot index by address.
type Ethereum struct {
	net      string
	c        *ethcli.EthCli
	explorer string
	hc       *http.Client
}

// Init returns a connection to an ethereum node, using secret if necessary for authentication. explorer is the url
// of the chain-explorer API used for address history queries and may be empty if history is not needed.
func Init(net, node, explorer, secret string) (*Ethereum, error) {
	var c *ethcli.EthCli
	if c = ethcli.Init(node, secret); c == nil {
		return nil, errors.New("cannot connect to ethereum blockchain in " + node)
	}

	return &Ethereum{
		net:      net,
		c:        c,
		explorer: explorer,
		hc:       &http.Client{Timeout: explorerTimeout},
	}, nil
}

// Close ends the connection to the node.
func (e *Ethereum) Close() {
	e.c.End()
}

// IsValidAddress returns true when address is a well-formed hex account address.
func (e *Ethereum) IsValidAddress(address string) bool {
	return common.IsHexAddress(address)
}

// Balance returns the ether balance of the address in wei.
func (e *Ethereum) Balance(address string) (types.BalanceInfo, error) {
	ethBal, _, err := e.c.GetBalance(address, "")
	if err != nil {
		return types.BalanceInfo{}, err
	}

	return types.BalanceInfo{Net: e.net, Address: address, Balance: ethBal.String()}, nil
}

// explorerTx is one entry of the explorer API "txlist" result.
type explorerTx struct {
	BlockNumber string `json:"blockNumber"`
	TimeStamp   string `json:"timeStamp"`
	Hash        string `json:"hash"`
	From        string `json:"from"`
	To          string `json:"to"`
	Value       string `json:"value"`
	GasUsed     string `json:"gasUsed"`
	GasPrice    string `json:"gasPrice"`
	IsError     string `json:"isError"`
}

// Transactions returns the transaction history of the address as indexed by the chain-explorer API.
func (e *Ethereum) Transactions(address string) ([]types.TxInfo, error) {
	if e.explorer == "" {
		return nil, fmt.Errorf("[%s] no explorer API configured for history queries", e.net)
	}

	q := url.Values{}
	q.Set("module", "account")
	q.Set("action", "txlist")
	q.Set("address", address)
	q.Set("sort", "desc")

	resp, err := e.hc.Get(e.explorer + "?" + q.Encode())
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %s", types.ErrNodeStatus, resp.Status)
	}

	var body struct {
		Status  string       `json:"status"`
		Message string       `json:"message"`
		Result  []explorerTx `json:"result"`
	}

	if err = json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("%w: %s", types.ErrNodeDecode, err)
	}
	// status "0" with message "No transactions found" is an empty history; any other non-OK reply (rate
	// limits, bad API key) is a failure even when its result array is empty
	if body.Status != "1" && body.Message != "No transactions found" {
		return nil, fmt.Errorf("%w: %s", types.ErrNodeStatus, body.Message)
	}

	txs := make([]types.TxInfo, 0, len(body.Result))

	for _, t := range body.Result {
		gasUsed, _ := strconv.ParseUint(t.GasUsed, 10, 64)
		gasPrice, _ := strconv.ParseUint(t.GasPrice, 10, 64)
		ts, _ := strconv.ParseUint(t.TimeStamp, 10, 32)

		status := types.TrxSuccess
		if t.IsError != "" && t.IsError != "0" {
			status = types.TrxFailed
		}

		txs = append(txs, types.TxInfo{
			Block:  t.BlockNumber,
			Hash:   t.Hash,
			From:   t.From,
			To:     t.To,
			Value:  t.Value,
			Fee:    gasUsed * gasPrice,
			Status: status,
			TS:     uint32(ts),
		})
	}

	return txs, nil
}

// Send executes an ether transfer signed with the given private key, returning the expected fee and transaction
// hash in the receipt or an error otherwise.
func (e *Ethereum) Send(from, key, to, amount string) (types.Receipt, error) {
	price, gas, hash, err := e.c.SendTrx(from, to, "", amount, nil, key, 0, false)
	if err != nil {
		return types.Receipt{}, err
	}

	fee := new(big.Int).SetUint64(price)
	fee = fee.Mul(fee, new(big.Int).SetUint64(gas))

	return types.Receipt{
		Net:    e.net,
		Hash:   "0x" + hex.EncodeToString(hash),
		From:   from,
		To:     to,
		Value:  amount,
		Fee:    fee.String(),
		Status: types.TrxPending,
		TS:     time.Now().Unix(),
	}, nil
}
