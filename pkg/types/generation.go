package types

import "time"

// Generation is the age class used by the generational garbage collector
// (spec §4.H): 0 = nursery, 1 = young, 2 = tenured.
type Generation int

const (
	GenNursery Generation = 0
	GenYoung   Generation = 1
	GenTenured Generation = 2
)

// GenerationEntry tracks a memory's current generation and how many
// collection passes it has survived (spec §3).
type GenerationEntry struct {
	MemoryID                string
	Generation              Generation
	PromotedAt              *time.Time
	CollectionSurvivedCount int
	CreatedAt               time.Time
}
