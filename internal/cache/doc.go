// Package cache downloads episodes and manages the local episode cache.
//
// The Manager owns the single-flight set and progress table for in-flight
// transfers, validates cached files against canonical and recorded sizes,
// and evicts entries that drift past the variance tolerance or outlive the
// retention horizon. Downloads run as fire-and-forget background transfers;
// callers poll progress and re-resolve once a transfer completes.
package cache
