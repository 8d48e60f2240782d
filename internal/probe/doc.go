// Package probe periodically issues synthetic requests through the
// resilient client and tracks per-target availability, logging transitions
// between up and down.
package probe
