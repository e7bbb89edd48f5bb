// Package dedupe rejects repeated submissions that carry the same
// Idempotency-Key within a time window.
package dedupe
