// Package main hosts the podcache CLI entrypoint and command graph.
//
// The Cobra-based command tree translates terminal invocations into cache
// operations against the shared metadata store and cache directory: fetching
// and resolving episodes, retention sweeps, usage statistics, and
// configuration scaffolding. It centralizes configuration resolution and log
// setup so subcommands can focus on user experience instead of wiring.
package main
