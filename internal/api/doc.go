// Package api defines the wire-format types exchanged with the generation
// service under /api/v1.
//
// # Key Types
//
// Envelope: the success/message/data/error wrapper returned by every
// non-binary endpoint. Data stays raw until a caller decodes it.
//
// Prompt, Generation, BatchJob, BatchPromptItem, Image: the entity records
// held by the state container and rendered by the CLI.
//
// Page: the list payload plus its pagination block. The service names the
// list key after the entity (prompts, generations, jobs, images); Page accepts
// any of them.
//
// # Status Enums
//
// BatchStatus and GenerationStatus are lowercase strings. The service still
// emits legacy spellings (pending/processing for batch jobs,
// processing/completed for generations); ParseBatchStatus and
// ParseGenerationStatus fold those into the canonical values so the rest of
// the code only sees one vocabulary.
package api
