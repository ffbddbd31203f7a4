// Package timeouts defines shared timeout constants used across rollcall
// processes so the HTTP, gRPC health, and store boundaries agree.
package timeouts

import "time"

// GRPCDial caps the wait time when dialing the health endpoint.
const GRPCDial = 2 * time.Second

// HealthProbe caps a single health check performed by -healthcheck.
const HealthProbe = 5 * time.Second

// ReadHeader limits how long an HTTP server waits for request headers.
const ReadHeader = 5 * time.Second

// Shutdown limits how long an HTTP server waits for in-flight requests
// during graceful shutdown.
const Shutdown = 5 * time.Second

// StoreCall caps a single backing-store request issued by the sheets adapter.
// The ledger itself imposes no timeout; this bounds the HTTP round trip only.
const StoreCall = 15 * time.Second
