package testutils

import "github.com/nucleuslib/nucleus/pkg/assert"

// Gen enumerates every combination of bounded choices made inside a `for !g.Done()` loop.
//
// Each iteration records the sequence of values handed out together with their bounds. Done
// advances to the next sequence by incrementing the rightmost value that is still below its bound
// and forgetting everything after it, so later choices restart from zero.
//
// See: <https://matklad.github.io/2021/11/07/generate-all-the-things.html>
type Gen struct {
	started bool
	v       [32]struct{ value, bound uint32 }
	p       int
	pMax    int
}

// NewGen creates a new exhaustive generator.
func NewGen() *Gen {
	return &Gen{}
}

// Done reports whether every combination has been produced.
func (g *Gen) Done() bool {
	if !g.started {
		g.started = true
		return false
	}
	for i := g.pMax; i > 0; {
		i--
		if g.v[i].value < g.v[i].bound {
			g.v[i].value++
			g.pMax = i + 1
			g.p = 0
			return false
		}
	}
	return true
}

func (g *Gen) gen(bound uint32) uint32 {
	assert.That(g.p < len(g.v), "exhaustigen: exceeded maximum depth of %d", len(g.v))
	if g.p == g.pMax {
		g.v[g.p] = struct{ value, bound uint32 }{}
		g.pMax++
	}
	g.p++
	g.v[g.p-1].bound = bound
	return g.v[g.p-1].value
}

// Intn returns an int in [0, bound].
func (g *Gen) Intn(bound int) int {
	return int(g.gen(uint32(bound))) //nolint:gosec // bound is expected to be small in tests
}

// Bool returns every boolean value in turn.
func (g *Gen) Bool() bool {
	return g.Intn(1) == 1
}

// Pick returns every element of slice in turn.
func Pick[T any](g *Gen, slice []T) T {
	assert.That(len(slice) > 0, "exhaustigen: empty slice")
	return slice[g.Intn(len(slice)-1)]
}
