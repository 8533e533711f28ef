// Package app provides the application service layer.
//
// Orchestrates use cases: room and message queries and the four room commands
// (create message, react, unreact, mark answered). Each command validates its
// input, persists through domain.Store and then publishes the resulting event.
// Depends on domain interfaces, not concrete implementations.
package app
