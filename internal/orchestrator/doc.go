// Package orchestrator drives write requests against the generation service
// and applies their outcomes to the state store.
//
// Every operation follows the same bracket: validate locally (a
// ValidationError sets the global error without a network call), mark the
// store loading, call the transport, apply the validated result in one store
// operation, then settle loading and the global error. Transport and
// application failures are reduced to one user-facing message with
// UserMessage. Panics are recovered at this boundary and reported like any
// other failure.
//
// Operations also return their result and error so callers issuing requests
// concurrently can track each call on its own; the store's global flags only
// describe the most recently settled call. Writes are never retried.
package orchestrator
