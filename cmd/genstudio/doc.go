// Package main hosts the genstudio CLI entrypoint and command graph.
//
// Every invocation builds one state store and wires the transport client,
// the mutation orchestrator, the batch tracker and the pagination cache
// around it. Commands call those components and then render what the store
// holds, so the error a command prints is the same message the store
// settled on. Tables use go-pretty; --json prints the raw entities.
//
// Keep this package thin: behaviour belongs in internal/ and commands only
// translate flags into calls and state into output.
package main
