package ecs

import (
	"fmt"
	"math"

	"github.com/kelindar/bitmap"
)

// EntityID is a stable handle to an entity: the low 32 bits are the arena index, the high 32 bits
// the generation of that index. A handle stops resolving once its entity is removed, even if the
// index is reused.
type EntityID uint64

// NoEntity is the zero handle. It never resolves.
const NoEntity EntityID = 0

func newEntityID(index, generation uint32) EntityID {
	return EntityID(uint64(generation)<<32 | uint64(index))
}

// Index returns the arena index part of the handle.
func (id EntityID) Index() uint32 {
	return uint32(id) //nolint:gosec // low half
}

// Generation returns the generation part of the handle.
func (id EntityID) Generation() uint32 {
	return uint32(id >> 32) //nolint:gosec // high half
}

func (id EntityID) String() string {
	return fmt.Sprintf("%d:%d", id.Index(), id.Generation())
}

// arena owns entity storage slots. Indices of removed entities are recycled FIFO with a bumped
// generation, so stale handles fail to resolve.
type arena struct {
	entries []arenaEntry
	free    []uint32      // Recyclable indices
	alive   bitmap.Bitmap // Indices currently holding a live entity
}

type arenaEntry struct {
	entity     *Entity
	generation uint32
}

func newArena() arena {
	return arena{
		entries: make([]arenaEntry, 0),
		free:    make([]uint32, 0),
	}
}

// insert stores e under a fresh handle and returns it.
func (a *arena) insert(e *Entity) EntityID {
	var index uint32
	if len(a.free) > 0 {
		index = a.free[0]
		a.free = a.free[1:]
	} else {
		if uint64(len(a.entries)) > math.MaxUint32 {
			panic("ecs: entity arena exhausted")
		}
		index = uint32(len(a.entries)) //nolint:gosec // bounded above
		// Generations start at 1 so that NoEntity never resolves.
		a.entries = append(a.entries, arenaEntry{generation: 1})
	}

	a.entries[index].entity = e
	a.alive.Set(index)
	return newEntityID(index, a.entries[index].generation)
}

// remove invalidates id. It returns false if id did not resolve.
func (a *arena) remove(id EntityID) bool {
	if !a.contains(id) {
		return false
	}

	index := id.Index()
	entry := &a.entries[index]
	entry.entity = nil
	a.alive.Remove(index)

	// An index whose generation would wrap is retired instead of recycled.
	if entry.generation == math.MaxUint32 {
		return true
	}
	entry.generation++
	a.free = append(a.free, index)
	return true
}

// get resolves id to its entity.
func (a *arena) get(id EntityID) (*Entity, bool) {
	if !a.contains(id) {
		return nil, false
	}
	return a.entries[id.Index()].entity, true
}

func (a *arena) contains(id EntityID) bool {
	index := id.Index()
	if !a.alive.Contains(index) {
		return false
	}
	return a.entries[index].generation == id.Generation()
}

// len returns the number of live entities.
func (a *arena) len() int {
	return a.alive.Count()
}
