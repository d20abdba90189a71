// Package testutil provides in-memory doubles for Can-Hax tests: a
// transport that records frames and a NATS publisher that records messages.
package testutil
