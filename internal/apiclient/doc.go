// Package apiclient is the transport layer for the generation service.
//
// Client.Request performs a single HTTP call under /api/v1 and returns the
// service envelope. Failures come back as typed errors so callers can tell
// them apart:
//
//   - *TransportError: network failure, timeout (Message "timeout", Status 0),
//     or a non-2xx reply (Status set, Message taken from the envelope when present)
//   - *SchemaError (wrapped in a TransportError): the body was not an envelope
//   - *ApplicationError: returned by Decode for envelopes with success=false
//
// The typed wrappers (ListPrompts, Text2Img, BatchStatus, DownloadImage, ...)
// cover every endpoint the CLI uses. The client never retries; read retry
// policy belongs to the pagination cache. Every request carries an
// X-Request-ID taken from the context or minted on the fly.
package apiclient
