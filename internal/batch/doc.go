// Package batch tracks batch generation jobs through their lifecycle.
//
// A job moves queued → running → completed, failed or cancelled. Tracker
// applies each transition to the state store: Create inserts an optimistic
// queued placeholder, Poll overwrites status and counts from the service's
// status summary, Cancel marks the job cancelled once the service confirms,
// and Remove deletes it. Progress is never computed locally; counts are only
// clamped so completed plus failed images never exceed the total. Terminal
// statuses are sticky.
//
// Watcher owns the polling timer. It holds a file lock so only one process
// polls per state directory and stops as soon as the job is terminal.
package batch
