package gateway

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/tarancss/qgw/lib/chain"
	"github.com/tarancss/qgw/lib/chain/types"
	mtype "github.com/tarancss/qgw/lib/msg/types"
	"github.com/tarancss/qgw/lib/session"
	"github.com/tarancss/qgw/lib/store"
)

// AuthReq is the request body to open a session: the candidate address to bind.
type AuthReq struct {
	ID string `json:"id"`
}

// AuthRes is the result of an auth request. Response is "success" or "fail"; Identifier carries the session token
// on success and is null on failure. A failed validation is a normal outcome, not an error.
type AuthRes struct {
	Response   string  `json:"response"`
	Identifier *string `json:"identifier"`
}

// TxReq transfer request data required to send transfers to the networks. Wallet, Change and Id correspond to the
// HD wallet address from which the transfer will be sent.
type TxReq struct {
	Wallet uint32 `json:"wallet"`
	Change uint8  `json:"change"`
	ID     uint32 `json:"id"`
	Net    string `json:"net"` // blockchain to submit the transfer to
	To     string `json:"to"`
	Amount string `json:"amount"`
}

// DryRun is a bool used to control sending transfers to the blockchain. When true, it will not send transfers but
// just do a dry run.
var DryRun bool = false //nolint:gochecknoglobals // consider adding this to config

// Errors returned to client requests.
var (
	ErrBadrequest = errors.New("bad request")
	ErrMissingNet = errors.New("undefined blockchain - missing query: ?net=<blockchain>")
	ErrNoID       = errors.New("undefined identifier - missing in uri")
	ErrNoNet      = errors.New("network not available")
)

// Response defines the data structure returned to the client making the http request.
type Response struct {
	Body  string `json:"body"`
	Error string `json:"error,omitempty"`
}

// status maps an error to the http status code replied to the client.
func status(err error) int {
	switch {
	case errors.Is(err, ErrNoNet):
		return http.StatusNotFound
	case errors.Is(err, session.ErrSessionInvalid):
		return http.StatusUnauthorized
	case errors.Is(err, session.ErrWaitTimeout):
		return http.StatusServiceUnavailable
	default:
		return http.StatusBadRequest
	}
}

// homeHandler just replies a welcome message to the client.
func (g *Gateway) homeHandler(rw http.ResponseWriter, r *http.Request) {
	var res Response
	// log request
	log.Printf("httpreq from %v %s\n", r.RemoteAddr, r.RequestURI)
	// just reply a welcome message
	res.Body = "Hello, this is your multi-blockchain gateway!"
	// reply
	rw.Header().Set("Content-Type", "application/json;charset=utf8")
	_ = json.NewEncoder(rw).Encode(res)
}

// networksHandler replies the networks available to the gateway.
func (g *Gateway) networksHandler(rw http.ResponseWriter, r *http.Request) {
	var err error

	var res Response

	pl := make([]string, 0, len(g.bc))

	defer func() {
		// reply to requester accordingly
		if err != nil {
			res.Error = fmt.Sprintf("%s", err)

			rw.WriteHeader(status(err))
		} else {
			rw.WriteHeader(http.StatusOK)
			tmp, _ := json.Marshal(pl)
			res.Body = string(tmp)
		}
		// log request
		log.Printf("httpreq from %v %s res:%+v err:%e\n", r.RemoteAddr, r.RequestURI, pl, err)
		// reply
		rw.Header().Set("Content-Type", "application/json;charset=utf8")
		_ = json.NewEncoder(rw).Encode(&res)
	}()

	for net := range g.bc {
		pl = append(pl, net)
	}
}

// authHandler validates the address in the request body and, if valid, blocks until the network's slot pool admits
// it, then replies a fresh session identifier. An invalid address replies {"response":"fail","identifier":null}
// with status OK: validation failure is a normal outcome. Exhausted capacity past the admission timeout replies
// 503.
func (g *Gateway) authHandler(rw http.ResponseWriter, r *http.Request) {
	var err error

	var res Response

	var ar AuthRes

	var net string

	defer func() {
		// reply to requester accordingly
		if err != nil {
			res.Error = fmt.Sprintf("%s", err)

			rw.WriteHeader(status(err))
		} else {
			rw.WriteHeader(http.StatusOK)
			tmp, _ := json.Marshal(ar)
			res.Body = string(tmp)
		}
		// log request and result
		log.Printf("httpreq from %v %s res:%+v err:%e\n", r.RemoteAddr, r.RequestURI, ar, err)
		// reply
		rw.Header().Set("Content-Type", "application/json;charset=utf8")
		_ = json.NewEncoder(rw).Encode(&res)

		g.observe(net)
	}()

	net = mux.Vars(r)["net"]

	m, ok := g.sm[net]
	if !ok {
		err = ErrNoNet

		return
	}

	var req AuthReq
	if err = json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Printf("Error decoding auth request %+v\n", r.Body)

		err = ErrBadrequest

		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), g.admitTimeout)
	defer cancel()

	id, ok, errAuth := m.Authenticate(ctx, req.ID)
	if errAuth != nil {
		err = errAuth

		return
	}

	if !ok {
		ar = AuthRes{Response: "fail", Identifier: nil}

		return
	}

	ar = AuthRes{Response: "success", Identifier: &id}

	g.audit(net, store.AuditEvent{Session: id, Address: req.ID, Action: store.AuditIssued, TS: time.Now().Unix()})
}

// resolve maps the inbound identifier of a query to an address and, when the identifier was a session token,
// returns a release func the caller must defer: it returns the slot, audits the consumption and publishes the
// session event, exactly once however the request ends.
func (g *Gateway) resolve(net, identifier string) (addr string, release func(), err error) {
	m, ok := g.sm[net]
	if !ok {
		return "", nil, ErrNoNet
	}

	addr, fromSession, err := m.Resolve(identifier)
	if err != nil {
		return "", nil, err
	}

	release = func() {}

	if fromSession {
		release = func() {
			m.Release(identifier)
			g.audit(net, store.AuditEvent{Session: identifier, Address: addr, Action: store.AuditConsumed, TS: time.Now().Unix()})

			if g.mb != nil {
				ev := mtype.SessionEvent{Net: net, Session: identifier, Address: addr, Reason: mtype.Consumed, TS: time.Now().Unix()}
				if errPub := g.mb.SendSession(net, ev); errPub != nil {
					log.Printf("[%s] Error publishing session event:%e", net, errPub)
				}
			}
		}
	}

	return addr, release, nil
}

// served updates the query counter and gauges of a network.
func (g *Gateway) served(net string, err error) {
	if g.mtr == nil {
		return
	}

	outcome := "ok"
	if err != nil {
		outcome = "error"
	}

	g.mtr.QueriesServed.WithLabelValues(net, outcome).Inc()
	g.observe(net)
}

// accountHandler replies the balance of the address bound to the identifier requested. The identifier is either a
// session token obtained from auth or a raw validated address. Adapter failures are surfaced verbatim.
func (g *Gateway) accountHandler(rw http.ResponseWriter, r *http.Request) {
	var err error

	var res Response

	var bals []types.BalanceInfo

	var net string

	defer func() {
		// reply to requester accordingly
		if err != nil {
			res.Error = fmt.Sprintf("%s", err)

			rw.WriteHeader(status(err))
		} else {
			rw.WriteHeader(http.StatusOK)
			tmp, _ := json.Marshal(bals)
			res.Body = string(tmp)
		}
		// log request and balances
		log.Printf("httpreq from %v %s bals:%+v err:%e\n", r.RemoteAddr, r.RequestURI, bals, err)
		// reply
		rw.Header().Set("Content-Type", "application/json;charset=utf8")
		_ = json.NewEncoder(rw).Encode(&res)

		g.served(net, err)
	}()

	identifier, ok := mux.Vars(r)["identifier"]
	if !ok {
		err = ErrNoID

		return
	}

	if err = r.ParseForm(); err != nil {
		log.Print("Error parsing request URL")

		return
	}

	nets, okN := r.Form["net"]
	if !okN || len(nets) != 1 { // we only allow 1 net per request
		err = ErrMissingNet

		return
	}

	net = nets[0]

	b, okB := g.bc[net]
	if !okB {
		err = ErrNoNet

		return
	}

	addr, release, errRes := g.resolve(net, identifier)
	if errRes != nil {
		err = errRes

		return
	}
	defer release() // slot goes back whatever the adapter does

	var bal types.BalanceInfo

	if bal, err = b.Balance(addr); err != nil {
		log.Printf("[%s] error getting balance:%e\n", net, err)

		return
	}

	bals = append(bals, bal)
}

// transactionHandler replies the transaction history of the address bound to the identifier requested. Semantics
// mirror accountHandler.
func (g *Gateway) transactionHandler(rw http.ResponseWriter, r *http.Request) {
	var err error

	var res Response

	var txs []types.TxInfo

	var net string

	defer func() {
		// reply to requester accordingly
		if err != nil {
			res.Error = fmt.Sprintf("%s", err)

			rw.WriteHeader(status(err))
		} else {
			rw.WriteHeader(http.StatusOK)
			tmp, _ := json.Marshal(txs)
			res.Body = string(tmp)
		}
		// log request and tx count
		log.Printf("httpreq from %v %s txs:%d err:%e\n", r.RemoteAddr, r.RequestURI, len(txs), err)
		// reply
		rw.Header().Set("Content-Type", "application/json;charset=utf8")
		_ = json.NewEncoder(rw).Encode(&res)

		g.served(net, err)
	}()

	identifier, ok := mux.Vars(r)["identifier"]
	if !ok {
		err = ErrNoID

		return
	}

	if err = r.ParseForm(); err != nil {
		log.Print("Error parsing request URL")

		return
	}

	nets, okN := r.Form["net"]
	if !okN || len(nets) != 1 { // we only allow 1 net per request
		err = ErrMissingNet

		return
	}

	net = nets[0]

	b, okB := g.bc[net]
	if !okB {
		err = ErrNoNet

		return
	}

	addr, release, errRes := g.resolve(net, identifier)
	if errRes != nil {
		err = errRes

		return
	}
	defer release()

	if txs, err = b.Transactions(addr); err != nil {
		log.Printf("[%s] error getting transactions:%e\n", net, err)

		return
	}
}

// sendHandler creates a value transfer and submits it to the appropriate network for execution. A response is
// given to the client with the receipt or error. Transfers are authenticated by key material, not session tokens,
// so they are not gated by the slot pool.
func (g *Gateway) sendHandler(rw http.ResponseWriter, r *http.Request) {
	var err error

	var res Response

	var rcpt types.Receipt

	var txReq TxReq

	defer func() {
		// reply to requester accordingly
		if err != nil {
			res.Error = fmt.Sprintf("%s", err)

			rw.WriteHeader(status(err))
		} else {
			rw.WriteHeader(http.StatusAccepted)
			tmp, _ := json.Marshal(rcpt)
			res.Body = string(tmp)
		}
		// log request and tx hash
		log.Printf("httpreq from %v %s hash:%s err:%e\n", r.RemoteAddr, r.RequestURI, rcpt.Hash, err)
		// reply
		rw.Header().Set("Content-Type", "application/json;charset=utf8")
		_ = json.NewEncoder(rw).Encode(&res)
	}()

	// get request
	if err = json.NewDecoder(r.Body).Decode(&txReq); err != nil {
		log.Printf("Error decoding transfer request %+v\n", r.Body)

		err = ErrBadrequest

		return
	}

	var b chain.Adapter

	var okB bool

	if b, okB = g.bc[txReq.Net]; !okB {
		err = ErrNoNet

		return
	}

	var addr, key []byte

	// get HD wallet address and key
	if addr, key, _, err = g.hd.Address(txReq.Wallet, txReq.Change, txReq.ID); err != nil {
		log.Printf("Error obtaining HD wallet address for :%d %d %d\n", txReq.Wallet, txReq.Change, txReq.ID)

		return
	}

	if DryRun {
		rcpt = types.Receipt{Net: txReq.Net, From: "0x" + hex.EncodeToString(addr), To: txReq.To, Value: txReq.Amount}

		return
	}

	if rcpt, err = b.Send("0x"+hex.EncodeToString(addr), hex.EncodeToString(key), txReq.To, txReq.Amount); err != nil {
		log.Printf("httpreq from %v %s err:%e\n", r.RemoteAddr, r.RequestURI, err)

		return
	}

	// persist the receipt
	if g.db != nil {
		if _, errDB := g.db.SaveReceipt(txReq.Net, store.Receipt{
			Hash: rcpt.Hash, From: rcpt.From, To: rcpt.To,
			Value: rcpt.Value, Fee: rcpt.Fee, Status: rcpt.Status, TS: rcpt.TS,
		}); errDB != nil {
			log.Printf("[%s] Error saving receipt %s:%e", txReq.Net, rcpt.Hash, errDB)
		}
	}

	// publish the transfer event
	if g.mb != nil {
		ev := mtype.TransferEvent{
			Net: rcpt.Net, Hash: rcpt.Hash, From: rcpt.From, To: rcpt.To,
			Value: rcpt.Value, Fee: rcpt.Fee, Status: rcpt.Status, TS: rcpt.TS,
		}
		if errPub := g.mb.SendTransfer(txReq.Net, ev); errPub != nil {
			log.Printf("[%s] Error publishing transfer event:%e", txReq.Net, errPub)
		}
	}
}
