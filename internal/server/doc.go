// Package server exposes the invoicing store over HTTP.
//
// Routes are registered on a net/http ServeMux using method patterns. Every
// API route is wrapped per route with Prometheus instrumentation, then bearer
// authentication when a JWT secret is configured, then Idempotency-Key
// handling. The whole mux sits behind request logging and panic recovery.
//
// Mutating handlers validate with package invoicing, recompute invoice
// totals, append an audit entry, and publish a change event that
// GET /api/companies/{id}/events streams to connected clients.
//
// The server listens on a TCP address or, when configured, on a tailnet
// node via tsnet.
package server
