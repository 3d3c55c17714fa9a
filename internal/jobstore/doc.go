// Package jobstore keeps a local SQLite journal of the batch jobs this client
// has created or polled.
//
// The journal is advisory: the remote service stays authoritative for job
// state, and the journal only lets `genstudio batch history` list jobs across
// runs without a network round trip. Each write is an upsert keyed by job id.
// The schema version lives in PRAGMA user_version; a mismatch returns
// ErrSchemaMismatch and the user is expected to delete the database.
package jobstore
