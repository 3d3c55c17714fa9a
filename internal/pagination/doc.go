// Package pagination loads paginated entity lists into the state store.
//
// Refresh performs one authoritative fetch per call and replaces the list,
// total and current page of the kind's block in a single store operation, so
// drift introduced by local inserts and removals is reconciled on the next
// refresh. List reads are the only requests retried: timeouts, network
// failures, 408, 429 and 5xx responses are retried with exponential backoff
// (honouring Retry-After) up to the configured attempt budget. Concurrent
// identical refreshes share one load that runs independently of any caller's
// cancellation; a caller that gives up returns its context error and leaves
// the global error untouched.
//
// SearchPrompts ranks the already-cached prompt page locally and never
// touches the network.
package pagination
