// Package linbus provides core types and utilities for operating a LIN
// (Local Interconnect Network) node in Go.
//
// It includes:
//   - The Transport capability interface of a LIN device (PLIN-like frame
//     table, schedule tables, ID filter, blocking Read)
//   - A Message type with the device error flags
//   - An in-memory Loopback bus simulating master schedules and slave
//     responses for tests and simulations
//   - A Mux fanning one device out to filtered subscribers and a slog
//     logging decorator
//
// Frame encoding lives in package codec, value generation in fuzz, schedule
// construction in schedule and change detection in diff.
package linbus
