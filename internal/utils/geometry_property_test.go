package utils

import (
	"math"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// genPoint generates a random point.
func genPoint() gopter.Gen {
	return gopter.CombineGens(
		gen.Float64Range(-1000, 1000),
		gen.Float64Range(-1000, 1000),
	).Map(func(vals []interface{}) Point {
		return Point{X: vals[0].(float64), Y: vals[1].(float64)}
	})
}

// genPoints generates a random point slice.
func genPoints(size int) gopter.Gen {
	return gen.SliceOfN(size, genPoint())
}

// TestBoundingBox_ContainsAllPoints verifies every input point lies inside
// the computed box.
func TestBoundingBox_ContainsAllPoints(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("bounding box contains every input point", prop.ForAll(
		func(pts []Point) bool {
			b := BoundingBox(pts)
			for _, p := range pts {
				if p.X < b.MinX || p.X > b.MaxX || p.Y < b.MinY || p.Y > b.MaxY {
					return false
				}
			}
			return true
		},
		genPoints(8),
	))

	properties.TestingRun(t)
}

// TestBoundingBox_TranslationEquivariant verifies translating the inputs by
// (dx,dy) translates the box by exactly (dx,dy).
func TestBoundingBox_TranslationEquivariant(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("translation moves the box by the same offset", prop.ForAll(
		func(pts []Point, dx, dy float64) bool {
			orig := BoundingBox(pts)
			moved := BoundingBox(OffsetPoints(pts, dx, dy))

			const eps = 1e-6
			return math.Abs(moved.MinX-(orig.MinX+dx)) < eps &&
				math.Abs(moved.MinY-(orig.MinY+dy)) < eps &&
				math.Abs(moved.MaxX-(orig.MaxX+dx)) < eps &&
				math.Abs(moved.MaxY-(orig.MaxY+dy)) < eps
		},
		genPoints(6),
		gen.Float64Range(-500, 500),
		gen.Float64Range(-500, 500),
	))

	properties.TestingRun(t)
}

// TestBox_Union_Commutative verifies union order does not matter.
func TestBox_Union_Commutative(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("union is commutative", prop.ForAll(
		func(a, b []Point) bool {
			if len(a) == 0 || len(b) == 0 {
				return true
			}
			ba, bb := BoundingBox(a), BoundingBox(b)
			return ba.Union(bb) == bb.Union(ba)
		},
		genPoints(4),
		genPoints(4),
	))

	properties.TestingRun(t)
}
