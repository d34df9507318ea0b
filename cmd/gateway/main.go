// Package main: gateway service.
//
// Note: The DB and message broker are optional collaborators. Without a DB the gateway serves queries and transfers
// but does not persist receipts or session audit events; without a broker no events are published. The session
// admission controller runs entirely in-process either way.
package main

import (
	"encoding/hex"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tarancss/hd"
	"github.com/tarancss/qgw/gateway"
	"github.com/tarancss/qgw/lib/chain"
	"github.com/tarancss/qgw/lib/config"
	"github.com/tarancss/qgw/lib/metrics"
	"github.com/tarancss/qgw/lib/msg"
	"github.com/tarancss/qgw/lib/msg/amqp"
	"github.com/tarancss/qgw/lib/store"
	"github.com/tarancss/qgw/lib/store/db"
)

func main() {
	// get command line flags
	confPath := flag.String("c", "", "flag to get configuration from json file")
	monitor := flag.Bool("m", false, "flag to monitor the server with Prometheus at http://localhost:9100")
	flag.Parse()

	// extract configuration
	conf, err := config.ExtractConfiguration(*confPath)
	if err != nil {
		panic(err)
	}

	log.Printf("Configuration:%+v", conf)

	// connect to database
	var dbConn store.DB

	if conf.DbConn != "" {
		if dbConn, err = db.New(conf.DbType, conf.DbConn); err != nil {
			panic(err)
		}

		log.Printf("Connecting to database:%+v\n", conf.DbConn)
	}

	// load all blockchain adapters
	adapters, err := chain.Init(conf.Bc)
	if err != nil {
		panic(err)
	}

	log.Print("Blockchain adapters loaded")

	// load Prometheus monitor
	var mtr *metrics.Metrics

	if *monitor {
		mtr = metrics.Default()

		go func() {
			log.Println("Serving metrics API")

			h := http.NewServeMux()

			h.Handle("/metrics", promhttp.Handler())
			http.ListenAndServe(":9100", h)
		}()
	}

	// load message broker
	var mb msg.MsgBroker

	switch conf.MbType {
	case "amqp":
		if mb, err = amqp.New(conf.MbConn); err != nil {
			time.Sleep(10 * time.Second) // wait 10s for AMQP to be ready and try to reconnect

			if mb, err = amqp.New(conf.MbConn); err != nil {
				panic(err)
			}
		}

		if err = mb.Setup(nil); err != nil {
			panic(err)
		}
	default:
		log.Printf("Unknown message broker type: %s\n", conf.MbType)
	}

	// load HD wallet used to derive transfer keys
	seed, err := hex.DecodeString(conf.Seed)
	if err != nil {
		panic(err)
	}

	hdw, err := hd.Init(seed)
	if err != nil {
		panic(err)
	}

	// create gateway service
	g := gateway.New(conf.DbType, dbConn, mb, adapters, hdw, gateway.Options{
		PoolCapacity:  conf.PoolCapacity,
		SessionTTL:    time.Duration(conf.SessionTTL) * time.Second,
		SweepInterval: time.Duration(conf.SweepInterval) * time.Second,
		AdmitTimeout:  time.Duration(conf.AdmitTimeout) * time.Second,
		Metrics:       mtr,
	})

	// capture CTRL+C or docker's SIGTERM for gracious exit
	finish := make(chan int)

	go func() {
		sigchan := make(chan os.Signal, 10)
		signal.Notify(sigchan, os.Interrupt, syscall.SIGTERM)
		<-sigchan
		log.Println("Program killed !")
		// do last actions and wait for all write operations to end
		g.Stop()
		chain.End(adapters)
		close(finish)
	}()

	// manage transfer events from sibling gateway instances
	if err := g.ManageEvents(); err != nil {
		log.Printf("Error setting up broker readers for events:%e", err)
	}

	// init RESTful API, wait for its return and log response
	log.Printf("Gateway: %s\n", g.Init(conf.RestfulEndpoint, conf.Port, conf.SSLPort, conf.SSLCert, conf.SSLKey))

	<-finish
}
