// Package sinks implements the tracking.Sink adapters: the server-side
// conversions relay, the analytics measurement protocol, pixel commands over
// the publisher, SMS lead alerts, structured logs and Prometheus counters.
// Every sink is safe for concurrent use.
package sinks
