// Package mongo implements the interface for MongoDB.
package mongo

import (
	"context"
	"encoding/hex"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	mgo "go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/tarancss/qgw/lib/store"
)

// Mongo implements a connection to a MongoDB database.
type Mongo struct {
	c *mgo.Client
}

// MongoReceipt implements a store receipt to MongoDB.
type MongoReceipt struct {
	ID     primitive.ObjectID `json:"_id" bson:"_id,omitempty"`
	Hash   string             `json:"hash" bson:"hash"`
	From   string             `json:"from" bson:"from"`
	To     string             `json:"to" bson:"to"`
	Value  string             `json:"value" bson:"value"`
	Fee    string             `json:"fee" bson:"fee"`
	Status uint8              `json:"status" bson:"status"`
	TS     int64              `json:"ts" bson:"ts"`
}

// Receipt converts a MongoReceipt to store.Receipt type.
func (r MongoReceipt) Receipt() store.Receipt {
	return store.Receipt{
		ID:     r.ID[:],
		Hash:   r.Hash,
		From:   r.From,
		To:     r.To,
		Value:  r.Value,
		Fee:    r.Fee,
		Status: r.Status,
		TS:     r.TS,
	}
}

// New returns a Mongo client connection to the specified MongoDB database uri.
func New(uri string) (*Mongo, error) {
	// get a client
	c, err := mgo.NewClient(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("cannot connect to mongo DB in %s: %w", uri, err)
	}
	// connect client
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second) //nolint:gomnd // 5 seconds timeout
	defer cancel()

	err = c.Connect(ctx)
	if err != nil {
		return nil, fmt.Errorf("error connecting to mongo DB: %w", err)
	}

	return &Mongo{c: c}, nil
}

// CloseMongo will close a database connection. Must be called at termination time.
func (m *Mongo) CloseMongo() error {
	return m.c.Disconnect(context.Background())
}

// SaveReceipt inserts a transfer receipt, keyed by its transaction hash. Re-saving the same hash updates the status
// and fee fields so a pending receipt can be settled later.
func (m *Mongo) SaveReceipt(net string, r store.Receipt) ([]byte, error) {
	col := m.c.Database("rcpt").Collection(net)

	var mr MongoReceipt

	filter := bson.M{"hash": r.Hash}

	err := col.FindOne(context.Background(), filter).Decode(&mr)
	if err == mgo.ErrNoDocuments {
		res, errIns := col.InsertOne(context.Background(), bson.M{
			"hash": r.Hash, "from": r.From, "to": r.To,
			"value": r.Value, "fee": r.Fee, "status": r.Status, "ts": r.TS,
		})
		if errIns != nil {
			return nil, fmt.Errorf("could not insert receipt in db: %w", errIns)
		}

		return hex.DecodeString(res.InsertedID.(primitive.ObjectID).Hex())
	}

	if err != nil {
		return nil, fmt.Errorf("could not insert receipt in db: %w", err)
	}

	_, err = col.UpdateOne(context.Background(), filter,
		bson.D{{Key: "$set", Value: bson.D{{Key: "status", Value: r.Status}, {Key: "fee", Value: r.Fee}}}})
	if err != nil {
		return nil, fmt.Errorf("could not update receipt in db: %w", err)
	}

	return hex.DecodeString(mr.ID.Hex())
}

// GetReceipts returns the receipts persisted for the networks indicated in the net slice, or for all networks when
// the slice is empty.
func (m *Mongo) GetReceipts(net []string) ([]store.NetReceipts, error) {
	cols, err := m.c.Database("rcpt").ListCollections(context.Background(), bson.D{})
	if err != nil {
		return nil, fmt.Errorf("error getting mongo DB object: %w", err)
	}

	rcpts := []store.NetReceipts{}

	for cols.Next(context.Background()) {
		col := cols.Current.Lookup("name").String()
		col = col[1 : len(col)-1]

		if len(net) == 0 || requested(net, col) {
			var nr store.NetReceipts
			// get the receipts
			docs, err := m.c.Database("rcpt").Collection(col).Find(context.TODO(), bson.M{})
			if err == nil {
				nr.Net = col

				for docs.Next(context.Background()) {
					var r MongoReceipt
					if err = bson.Unmarshal(docs.Current, &r); err == nil {
						nr.Receipts = append(nr.Receipts, r.Receipt())
					}
				}
			}

			rcpts = append(rcpts, nr)
		}
	}

	return rcpts, nil
}

// requested returns true when the collection name is one of the requested networks.
func requested(net []string, col string) bool {
	for _, n := range net {
		if n == col {
			return true
		}
	}

	return false
}

// SaveAudit appends a session lifecycle event to the audit collection of the network.
func (m *Mongo) SaveAudit(net string, ev store.AuditEvent) error {
	_, err := m.c.Database("audit").Collection(net).InsertOne(context.Background(), bson.M{
		"session": ev.Session, "address": ev.Address, "action": ev.Action, "ts": ev.TS,
	})
	if err != nil {
		return fmt.Errorf("could not insert audit event in db: %w", err)
	}

	return nil
}
