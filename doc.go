// Package qgw implements a unified query and transfer gateway for multiple blockchains or similar networks.
/*
qgw exposes one HTTP RESTful API to query balances, retrieve transaction history and send value transfers over
heterogeneous blockchain backends: a UTXO chain, an account-based smart-contract chain and a high-throughput
account-based chain. Each backend has its own native primitives, fee models and confirmation semantics; the gateway
hides them behind a single request/response contract.

Architecture

Every query-serving entry point is gated by a session admission controller (package lib/session): a fixed-capacity
slot pool with a strict FIFO wait queue, and a session manager that binds short-lived opaque tokens to validated
addresses. A client first authenticates an address, blocking until a slot is free, and receives a session identifier.
Follow-up balance or transaction queries present either that identifier or a raw validated address. Slots are
reclaimed on first consumption of the session or, for abandoned sessions, by a background expiry sweeper.

A blockchain layer (package lib/chain) defines the adapter contract each backend implements, so new networks can be
added without touching the gateway. The backends configured in the JSON config file are loaded at startup.

Transfer receipts and session audit events can be persisted through a database-agnostic store layer (package
lib/store) with MongoDB and PostgreSQL implementations. Completed transfers and expired sessions are also published
to a message broker (package lib/msg) so front-ends or sibling gateway instances can consume them in real time.

The gateway can be monitored via a Prometheus API by setting the flag "-m" at startup; it reports slot occupancy,
wait-queue depth, live sessions and served queries per network.

The service is started running cmd/gateway/main.go with an optional JSON config file (see cmd/conf.json for a
sample); any config value can be overridden with QGW_ prefixed OS ENV variables.
*/
package qgw
