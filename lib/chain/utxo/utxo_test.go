package utxo

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/tarancss/qgw/lib/chain/types"
)

// TestIsValidAddress checks the base58check and bech32 address forms accepted by the adapter.
func TestIsValidAddress(t *testing.T) {
	u := Init("bitcoin", "http://localhost", "")

	cases := []struct {
		name, addr string
		valid      bool
	}{
		{"p2pkh", "1A1zP1eP5QGefi2DMPTfTL5SLmv7DivfNa", true},
		{"p2sh", "3J98t1WpEZ73CNmQviecrnyiWrnqRhWNLy", true},
		{"bech32", "bc1qw508d6qejxtdg4y5r3zarvary0c5xw7kv8f3t4", true},
		{"bech32_testnet", "tb1qw508d6qejxtdg4y5r3zarvary0c5xw7kxpjzsx", true},
		{"bad_checksum", "1A1zP1eP5QGefi2DMPTfTL5SLmv7DivfNb", false},
		{"bad_bech32", "bc1qw508d6qejxtdg4y5r3zarvary0c5xw7kv8f3t5", false},
		{"eth_style", "0xcba75F167B03e34B8a572c50273C082401b073Ed", false},
		{"empty", "", false},
		{"garbage", "not-a-real-address", false},
	}

	for _, c := range cases {
		if got := u.IsValidAddress(c.addr); got != c.valid {
			t.Errorf("[%s] IsValidAddress(%s)=%v expected:%v", c.name, c.addr, got, c.valid)
		}
	}
}

// mockProvider serves the provider API endpoints used by the adapter.
func mockProvider(rw http.ResponseWriter, r *http.Request) {
	rw.Header().Set("Content-Type", "application/json")

	switch {
	case r.Method == http.MethodGet && r.URL.Path == "/address/1A1zP1eP5QGefi2DMPTfTL5SLmv7DivfNa":
		_, _ = rw.Write([]byte(`{"address":"1A1zP1eP5QGefi2DMPTfTL5SLmv7DivfNa","balance":"5000000000"}`))
	case r.Method == http.MethodGet && r.URL.Path == "/address/1A1zP1eP5QGefi2DMPTfTL5SLmv7DivfNa/txs":
		_, _ = rw.Write([]byte(`{"txs":[{"txid":"4a5e1e4baab89f3a32518a88c31bc87f618f76673e2cc77ab2127b7afdeda33b","block":"0","time":1231006505,"from":"","to":"1A1zP1eP5QGefi2DMPTfTL5SLmv7DivfNa","value":"5000000000","fee":0,"confirmations":99}]}`))
	case r.Method == http.MethodPost && r.URL.Path == "/transfer":
		var req map[string]string

		_ = json.NewDecoder(r.Body).Decode(&req)

		if req["secret"] == "" {
			rw.WriteHeader(http.StatusBadRequest)
			_, _ = rw.Write([]byte(`{"error":"insufficient funds for transfer"}`))

			return
		}

		_, _ = rw.Write([]byte(`{"txid":"2ba030485e79b5a98275b45d940e6fdd07b40dea593ef3b2a69b0a02a68a5872","fee":"226"}`))
	default:
		rw.WriteHeader(http.StatusNotFound)
		_, _ = rw.Write([]byte(`{"error":"not found"}`))
	}
}

// TestProviderCalls runs the adapter against a mock provider API.
func TestProviderCalls(t *testing.T) {
	mock := httptest.NewServer(http.HandlerFunc(mockProvider))
	defer mock.Close()

	u := Init("bitcoin", mock.URL, "")

	// balance
	bal, err := u.Balance("1A1zP1eP5QGefi2DMPTfTL5SLmv7DivfNa")
	if err != nil || bal.Net != "bitcoin" || bal.Balance != "5000000000" {
		t.Errorf("Balance error:%e bal:%+v", err, bal)
	}

	// transactions
	txs, err := u.Transactions("1A1zP1eP5QGefi2DMPTfTL5SLmv7DivfNa")
	if err != nil || len(txs) != 1 ||
		txs[0].Hash != "4a5e1e4baab89f3a32518a88c31bc87f618f76673e2cc77ab2127b7afdeda33b" ||
		txs[0].Status != types.TrxSuccess {
		t.Errorf("Transactions error:%e txs:%+v", err, txs)
	}

	// send
	rcpt, err := u.Send("1A1zP1eP5QGefi2DMPTfTL5SLmv7DivfNa", "key", "3J98t1WpEZ73CNmQviecrnyiWrnqRhWNLy", "1000")
	if err != nil || rcpt.Hash != "2ba030485e79b5a98275b45d940e6fdd07b40dea593ef3b2a69b0a02a68a5872" || rcpt.Fee != "226" {
		t.Errorf("Send error:%e rcpt:%+v", err, rcpt)
	}

	// provider error is surfaced with its message
	_, err = u.Send("1A1zP1eP5QGefi2DMPTfTL5SLmv7DivfNa", "", "3J98t1WpEZ73CNmQviecrnyiWrnqRhWNLy", "1000")
	if err == nil {
		t.Error("Send with empty key should surface the provider error")
	}
}
