// Package state holds the in-memory model the CLI renders from.
//
// A Store wraps one AppState: a list block per entity kind (prompts,
// generations, batch jobs, images), the global loading flag and error, the
// generation defaults and UI preferences. The state can only be changed
// through the Store's named operations; readers take deep copies with
// Snapshot.
//
// Subscribe registers an observer that is called after every applied
// mutation with a Change describing it. Operations that find nothing to do
// (update or remove of an unknown id) are silent no-ops.
//
// List blocks keep newest-first order. Add prepends and bumps Total; adding
// an id that is already present replaces it in place. Remove only adjusts
// Total when the id was present. Batch job progress is clamped on every write
// so completed plus failed never exceeds the job total.
//
// Loading and Error are shared by every orchestrated call. Loading stays true
// while any begun call is unsettled; Error reflects only the most recently
// settled call. Callers that need per-request feedback should use the values
// returned by the orchestrator instead.
package state
