// Package idgen supplies health IDs for record creation. The engine treats
// a supplied ID as already reserved; uniqueness is this collaborator's
// responsibility.
package idgen

import "github.com/google/uuid"

// Allocator hands out unique, pre-validated health IDs.
type Allocator interface {
	NextID() string
}

// UUIDAllocator issues random UUIDs. The production deployment swaps in the
// national health-ID generation service behind the same interface.
type UUIDAllocator struct{}

func NewUUIDAllocator() *UUIDAllocator { return &UUIDAllocator{} }

func (UUIDAllocator) NextID() string { return uuid.NewString() }
