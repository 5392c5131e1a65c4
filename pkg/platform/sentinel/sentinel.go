package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores and infrastructure clients
// return these (optionally wrapped) so services can translate them into domain
// errors.
//
// These describe the state of a resource, not validation failures:
// - ErrNotFound: record does not exist in the store
// - ErrConflict: record already exists or was written concurrently
// - ErrExpired: record outlived its time-to-live
// - ErrUnavailable: store, registry, or broker temporarily unreachable
// - ErrCircuitOpen: the caller short-circuited because the dependency is failing
//
// For validation errors (bad input, missing fields), use pkg/domain-errors directly.
var (
	ErrNotFound    = errors.New("not found")
	ErrConflict    = errors.New("conflict")
	ErrExpired     = errors.New("expired")
	ErrUnavailable = errors.New("unavailable")
	ErrCircuitOpen = errors.New("circuit open")
)
