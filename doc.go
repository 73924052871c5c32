// Package vs is a minimal content-addressable versioning service.
//
// A server holds immutable content objects,
// or _bodies_,
// each keyed by a caller-supplied hash.
// The server does not compute or verify the hash:
// whatever the client says is the hash is the hash,
// and once accepted it is unique.
//
// Every body is pushed under a human-readable name.
// A name accumulates hashes over successive pushes,
// which makes the set of hashes under a name that name's version history.
//
// A _tag_ groups a set of already-pushed hashes under a name of its own.
// Tags are write-once:
// a tag name can be defined exactly once,
// and only over hashes the server already knows.
// Pulling a tag streams back every body in it together with its name.
//
// The server side is split into small packages.
// Package index holds the two in-memory tables
// (hash → name, name → hashes, and tag → hashes),
// package rwlock the readers/writer lock that guards them,
// package wire the binary protocol,
// package recovery the text snapshot of both tables,
// and package server the per-connection command handling.
// Bodies live in a Store (see package store and its subpackages).
package vs
