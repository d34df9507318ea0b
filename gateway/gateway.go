// Package gateway implements the query/transfer gateway service.
//
// This service implements a RESTful API for clients to query balances and transaction history and to send value
// transfers over multiple blockchains. Every query entry point is gated by a per-network session admission
// controller (package lib/session): clients authenticate an address to obtain a short-lived session identifier and
// present it, or a raw validated address, in follow-up queries.
package gateway

import (
	"context"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/tarancss/hd"

	"github.com/tarancss/qgw/lib/chain"
	"github.com/tarancss/qgw/lib/metrics"
	"github.com/tarancss/qgw/lib/msg"
	mtype "github.com/tarancss/qgw/lib/msg/types"
	"github.com/tarancss/qgw/lib/session"
	"github.com/tarancss/qgw/lib/store"
	"github.com/tarancss/qgw/lib/store/db"
)

// Gateway contains the data necessary to deliver the service
type Gateway struct {
	dbtype       string
	db           store.DB                    // db connection, may be nil to run without persistence
	bc           map[string]chain.Adapter    // blockchain adapters
	sm           map[string]*session.Manager // session admission per network
	hd           *hd.HdWallet                // HD wallet for transfer key derivation
	mb           msg.MsgBroker
	mtr          *metrics.Metrics // may be nil when monitoring is off
	admitTimeout time.Duration    // bound on the wait for a free slot
	s            *http.Server     // http server
	ss           *http.Server     // https server
	sc           chan struct{}    // http server channel used for graceful shutdowns
}

// Options groups the session admission settings of a Gateway.
type Options struct {
	PoolCapacity  int
	SessionTTL    time.Duration
	SweepInterval time.Duration
	AdmitTimeout  time.Duration
	Metrics       *metrics.Metrics
}

// New returns a pointer to a new Gateway service with one session manager per adapter, sweepers already running.
func New(dbtype string, dbConn store.DB, mb msg.MsgBroker, bc map[string]chain.Adapter, hdw *hd.HdWallet, o Options) *Gateway {
	g := &Gateway{
		dbtype:       dbtype,
		db:           dbConn,
		mb:           mb,
		bc:           bc,
		sm:           make(map[string]*session.Manager, len(bc)),
		hd:           hdw,
		mtr:          o.Metrics,
		admitTimeout: o.AdmitTimeout,
	}

	for net, adapter := range bc {
		net := net

		m := session.New(net, o.PoolCapacity, o.SessionTTL, o.SweepInterval, adapter.IsValidAddress,
			func(s session.Session) { g.sessionExpired(net, s) })
		m.Start()
		g.sm[net] = m
	}

	return g
}

// sessionExpired handles a sweeper reclamation: audit, broker event and metrics.
func (g *Gateway) sessionExpired(net string, s session.Session) {
	g.audit(net, store.AuditEvent{Session: s.ID, Address: s.Address, Action: store.AuditExpired, TS: time.Now().Unix()})

	if g.mb != nil {
		ev := mtype.SessionEvent{Net: net, Session: s.ID, Address: s.Address, Reason: mtype.Expired, TS: time.Now().Unix()}
		if err := g.mb.SendSession(net, ev); err != nil {
			log.Printf("[%s] Error publishing session expiry event:%e", net, err)
		}
	}

	if g.mtr != nil {
		g.mtr.SessionsExpired.WithLabelValues(net).Inc()
		g.observe(net)
	}
}

// audit persists a session lifecycle event when a DB is configured.
func (g *Gateway) audit(net string, ev store.AuditEvent) {
	if g.db == nil {
		return
	}

	if err := g.db.SaveAudit(net, ev); err != nil {
		log.Printf("[%s] Error saving audit event %+v:%e", net, ev, err)
	}
}

// observe refreshes the admission gauges of a network.
func (g *Gateway) observe(net string) {
	if g.mtr == nil {
		return
	}

	if m, ok := g.sm[net]; ok {
		g.mtr.SlotsActive.WithLabelValues(net).Set(float64(m.Pool().Active()))
		g.mtr.WaitQueue.WithLabelValues(net).Set(float64(m.Pool().Waiting()))
		g.mtr.SessionsLive.WithLabelValues(net).Set(float64(m.Live()))
	}
}

// Stop shuts down the http servers implementing the RESTful API, stops the session sweepers and closes gracefully
// the connections to message broker and database.
func (g *Gateway) Stop() {
	var err error
	// shutdown http server
	if g.s != nil {
		if err = g.s.Shutdown(context.Background()); err != nil {
			log.Printf("Error in http server shutdown:%e", err)
		}
	}
	if g.ss != nil {
		if err = g.ss.Shutdown(context.Background()); err != nil {
			log.Printf("Error in https server shutdown:%e", err)
		}
	}
	if g.sc != nil {
		close(g.sc) // close server channels to indicate shutdowns have finished
	}
	// stop session sweepers
	for _, m := range g.sm {
		m.Stop()
	}
	// close message broker
	if g.mb != nil {
		if err = g.mb.Close(); err != nil {
			log.Printf("Error closing message broker:%e", err)
		}
	}
	// close database
	if g.db != nil {
		err = db.Close(g.dbtype, g.db)
		log.Printf("Disconnecting %v database, err:%e\n", g.dbtype, err)
	}
}

// ManageEvents starts go routines to consume the message broker queues for transfer events published by sibling
// gateway instances. For each connected blockchain, two channels are opened, one for transfer events, and one for
// errors.
func (g *Gateway) ManageEvents() error {
	if g.mb == nil {
		return nil
	}
	// for each chain establish a process to read events from the broker queues
	for net := range g.bc {
		var mut *sync.Mutex = new(sync.Mutex)
		mut.Lock()
		eveCh, errCh, err := g.mb.GetTransfers(net, mut)
		if err != nil {
			return err
		}

		// launch transfer channel reader
		go func(netName string) {
			log.Printf("[%s] Start listening to transfer event channel", netName)
			for eve := range eveCh {
				log.Printf("[%s] Received transfer event %+v", netName, eve) // we just log it to console!! XXX
				mut.Unlock()
			}
			log.Printf("[%s] Stop listening to transfer event channel", netName)
		}(net)

		// launch error channel reader
		go func(netName string) {
			log.Printf("[%s] Start listening to err channel", netName)
			for e := range errCh {
				log.Printf("[%s] Received error %+v", netName, e)
			}
			log.Printf("[%s] Stop listening to err channel", netName)
		}(net)
	}
	return nil
}
