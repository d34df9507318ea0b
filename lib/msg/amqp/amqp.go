// Package amqp implements the message broker interface for AMQP compliant brokers (ie RabbitMQ)
package amqp

import (
	"encoding/json"
	"log"
	"sync"

	"github.com/streadway/amqp"

	"github.com/tarancss/qgw/lib/msg"
	mtype "github.com/tarancss/qgw/lib/msg/types"
)

// Amqp implements a connection to a broker and a channel for reuse.
type Amqp struct {
	conn *amqp.Connection
	ch   *amqp.Channel
}

// New instantiates a new amqp broker.
func New(uri string) (msg.MsgBroker, error) {
	r := Amqp{}
	var err error

	if r.conn, err = amqp.Dial(uri); err != nil {
		return &r, err
	}
	r.ch = nil
	log.Printf("Connected to %s", uri)

	return &r, err
}

// Setup obtains an amqp channel and declares the message broker exchanges:
//
// - te ("transfer events"): the gateway publishes submitted transfers to this exchange
//
// - se ("session events"): the gateway publishes consumed and expired sessions to this exchange
func (r *Amqp) Setup(x interface{}) error {
	// obtain a one-use channel
	channel, err := r.conn.Channel()
	if err != nil {
		return err
	}
	defer channel.Close()
	// declare exchanges
	if err = channel.ExchangeDeclare("te", "topic", true, false, false, false, nil); err != nil {
		return err
	}
	err = channel.ExchangeDeclare("se", "topic", true, false, false, false, nil)
	return err
}

// Close terminates gracefully the connection to the AMQP message broker
func (r *Amqp) Close() error {
	if r.ch != nil {
		if err := r.ch.Close(); err != nil {
			log.Printf("Error closing amqp.Channel:%e", err)
		}
		r.ch = nil
		log.Printf("amqp.Channel closed!")
	}
	return r.conn.Close()
}

// SendTransfer publishes a transfer event to the "te" exchange
func (r *Amqp) SendTransfer(net string, t mtype.TransferEvent) (err error) {
	// marshal to JSON
	var jsonDoc []byte
	if jsonDoc, err = json.Marshal(t); err != nil {
		return
	}
	// obtain channel if not present
	if r.ch == nil {
		if r.ch, err = r.conn.Channel(); err != nil {
			return
		}
	}
	// build body
	msg := amqp.Publishing{
		Headers:     amqp.Table{"x-transfer-name": net + "." + t.Hash},
		Body:        jsonDoc,
		ContentType: "application/json",
	}
	// publish
	if err = r.ch.Publish("te", net+".transfer."+t.Hash, false, false, msg); err != nil {
		log.Printf("[%s] Error sending transfer event to message broker %e", net, err)
	}
	return
}

// SendSession publishes a session lifecycle event to the "se" exchange
func (r *Amqp) SendSession(net string, s mtype.SessionEvent) (err error) {
	// marshal to JSON
	var jsonDoc []byte
	if jsonDoc, err = json.Marshal(s); err != nil {
		return
	}
	// obtain channel if not present
	if r.ch == nil {
		if r.ch, err = r.conn.Channel(); err != nil {
			return
		}
	}
	// build body
	msg := amqp.Publishing{
		Headers:     amqp.Table{"x-session-name": net + "." + s.Session},
		Body:        jsonDoc,
		ContentType: "application/json",
	}
	// publish
	if err = r.ch.Publish("se", net+"."+s.Reason+"."+s.Session, false, false, msg); err != nil {
		log.Printf("[%s] Error sending session event to message broker %e", net, err)
	}
	return
}

// GetTransfers consumes events from the "te" exchange pushing them to the returned channel. The Mutex pointer is
// provided to ensure the consumed message has been fully dealt with by the management function, so the message
// consumed is only acknowledged when the mutex is unlocked.
func (r *Amqp) GetTransfers(net string, mut *sync.Mutex) (<-chan mtype.TransferEvent, <-chan error, error) {
	var err error
	if r.ch == nil {
		if r.ch, err = r.conn.Channel(); err != nil {
			return nil, nil, err
		}
	}
	// declare queue
	if _, err = r.ch.QueueDeclare("te"+net, true, false, false, false, nil); err != nil {
		return nil, nil, err
	}
	// bind queue to exchange
	if err = r.ch.QueueBind("te"+net, net+".*.*", "te", false, nil); err != nil {
		return nil, nil, err
	}
	// create channel for receiving events
	msgs, errCons := r.ch.Consume("te"+net, "gateway-"+net, false, false, false, false, nil)
	if errCons != nil {
		return nil, nil, errCons
	}
	// define channels to return
	eves := make(chan mtype.TransferEvent)
	errors := make(chan error)
	// start routine to consume messages from broker
	go func() {
		for m := range msgs {
			var t *mtype.TransferEvent = new(mtype.TransferEvent)
			err := json.Unmarshal(m.Body, t)
			if err != nil {
				errors <- err
				continue
			}
			eves <- *t
			mut.Lock() // wait for the gateway to finish processing the event
			m.Ack(false)
		}
	}()
	return eves, errors, nil
}
