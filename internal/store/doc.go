// Package store manages episode and download metadata backed by SQLite.
//
// It owns the canonical episode size records and the per-user download
// records the cache layer validates against. Every read and write runs
// through a retry gateway that classifies driver errors as transient or
// permanent, re-establishes the connection on transient failures, and backs
// off linearly between attempts.
package store
