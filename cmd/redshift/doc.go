// Package main hosts the RedShift CLI entrypoint and command graph.
//
// The Cobra-based command tree translates terminal invocations into IPC
// calls against the daemon when it is running, and falls back to one-shot
// operation against the cache database and bridge utility when it is not.
// It centralizes configuration resolution and socket discovery so
// subcommands can focus on user experience instead of wiring.
package main
