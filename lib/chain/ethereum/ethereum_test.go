package ethereum

import (
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/tarancss/ethcli"

	"github.com/tarancss/qgw/lib/chain/types"
)

// Balance and Send are direct calls to the ethcli package; pin the balance signature the adapter relies on so a
// client upgrade that changes it fails here instead of at runtime.
var _ func(*ethcli.EthCli, string, string) (*big.Int, *big.Int, error) = (*ethcli.EthCli).GetBalance

// TestIsValidAddress checks the hex account address form accepted by the adapter.
func TestIsValidAddress(t *testing.T) {
	e := &Ethereum{net: "ropsten"}

	cases := []struct {
		name, addr string
		valid      bool
	}{
		{"checksummed", "0xcba75F167B03e34B8a572c50273C082401b073Ed", true},
		{"lowercase", "0xcba75f167b03e34b8a572c50273c082401b073ed", true},
		{"no_prefix", "cba75F167B03e34B8a572c50273C082401b073Ed", true},
		{"too_short", "0xcba75F167B03e34B8a572c50273C082401b073", false},
		{"not_hex", "0xzz975F167B03e34B8a572c50273C082401b073Ed", false},
		{"btc_style", "1A1zP1eP5QGefi2DMPTfTL5SLmv7DivfNa", false},
		{"empty", "", false},
	}

	for _, c := range cases {
		if got := e.IsValidAddress(c.addr); got != c.valid {
			t.Errorf("[%s] IsValidAddress(%s)=%v expected:%v", c.name, c.addr, got, c.valid)
		}
	}
}

// mockExplorer serves an explorer API style txlist for any address.
func mockExplorer(rw http.ResponseWriter, r *http.Request) {
	rw.Header().Set("Content-Type", "application/json")

	if r.URL.Query().Get("action") != "txlist" {
		_, _ = rw.Write([]byte(`{"status":"0","message":"NOTOK","result":[]}`))

		return
	}

	switch r.URL.Query().Get("address") {
	case "0x0000000000000000000000000000000000000000": // fresh address, no history yet
		_, _ = rw.Write([]byte(`{"status":"0","message":"No transactions found","result":[]}`))

		return
	case "0x1111111111111111111111111111111111111111": // throttled by the explorer
		_, _ = rw.Write([]byte(`{"status":"0","message":"Max rate limit reached","result":[]}`))

		return
	}

	_, _ = rw.Write([]byte(`{"status":"1","message":"OK","result":[` +
		`{"blockNumber":"2736027","timeStamp":"1519660457","hash":"0xc39f3c2c2b5c0a772e8605bbeef7d341937b85e739a3c55d1e7384ac88f31c65",` +
		`"from":"0xc4581843a8dacd100c7d435bb00b2a20d038e31d","to":"0x7762440182222620a7435195208038708d27ee41",` +
		`"value":"100000000000000000","gasUsed":"21000","gasPrice":"1000000000","isError":"0"},` +
		`{"blockNumber":"2736030","timeStamp":"1519660900","hash":"0xdbd3184b2f947dab243071000df22cf5acc6efdce90a04aaf057521b1ee5bf60",` +
		`"from":"0x1cd434711fbae1f2d9c70001409fd82d71fdccaa","to":"0xa34de7bd2b4270c0b12d5fd7a0c219a4d68d732f",` +
		`"value":"0","gasUsed":"32000","gasPrice":"1000000000","isError":"1"}]}`))
}

// TestTransactions runs the history query against a mock explorer API.
func TestTransactions(t *testing.T) {
	mock := httptest.NewServer(http.HandlerFunc(mockExplorer))
	defer mock.Close()

	e := &Ethereum{net: "ropsten", explorer: mock.URL, hc: &http.Client{Timeout: time.Second}}

	txs, err := e.Transactions("0xc4581843a8dacd100c7d435bb00b2a20d038e31d")
	if err != nil || len(txs) != 2 ||
		txs[0].Hash != "0xc39f3c2c2b5c0a772e8605bbeef7d341937b85e739a3c55d1e7384ac88f31c65" ||
		txs[0].Status != types.TrxSuccess || txs[0].Fee != 21000*1000000000 ||
		txs[1].Status != types.TrxFailed {
		t.Errorf("Transactions error:%e txs:%+v", err, txs)
	}

	// an address with no history is an empty list, not an error
	txs, err = e.Transactions("0x0000000000000000000000000000000000000000")
	if err != nil || len(txs) != 0 {
		t.Errorf("Transactions for fresh address error:%e txs:%+v", err, txs)
	}

	// any other non-OK reply is an error even with an empty result array
	if _, err = e.Transactions("0x1111111111111111111111111111111111111111"); err == nil {
		t.Error("Transactions should surface a rate-limited explorer reply")
	}

	// no explorer configured is an error
	e = &Ethereum{net: "ropsten"}
	if _, err = e.Transactions("0xc4581843a8dacd100c7d435bb00b2a20d038e31d"); err == nil {
		t.Error("Transactions without explorer API should fail")
	}
}
