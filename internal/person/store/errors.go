package store

import "civreg/pkg/platform/sentinel"

// Store implementations return the shared sentinels so services translate
// them uniformly.
var (
	ErrNotFound = sentinel.ErrNotFound
	ErrConflict = sentinel.ErrConflict
)
