package probe

import (
	"errors"
	"math"
	"testing"

	"github.com/taigrr/shprobe/pkg/math3d"
)

func TestQueryGridPointsReturnStoredProbe(t *testing.T) {
	v := bakedCube(t)
	for idx, p := range v.Probes {
		got := Query(v, p.Position)
		if d := got.MaxAbsDiff(&p.Coefficients); d > 1e-12 {
			t.Errorf("probe %d at %v: off by %g", idx, p.Position, d)
		}
	}
}

func TestLocateCentreOfFirstCell(t *testing.T) {
	v := bakedCube(t)
	if v.Dims != [3]int{3, 3, 3} || len(v.Probes) != 27 {
		t.Fatalf("dims %v with %d probes", v.Dims, len(v.Probes))
	}

	cell := Locate(v, math3d.V3(0.5, 0.5, 0.5))
	if cell.Base != [3]int{0, 0, 0} || cell.Next != [3]int{1, 1, 1} {
		t.Fatalf("cell = %+v", cell)
	}
	if cell.Frac != [3]float64{0.5, 0.5, 0.5} {
		t.Fatalf("Frac = %v, want all 0.5", cell.Frac)
	}

	want := map[int]bool{}
	for k := range 2 {
		for j := range 2 {
			for i := range 2 {
				want[v.Index(i, j, k)] = true
			}
		}
	}
	for _, c := range cell.Corners(v) {
		if !want[c.Index] {
			t.Errorf("corner index %d is outside the first cell", c.Index)
		}
		delete(want, c.Index)
		if c.Weight != 0.125 {
			t.Errorf("corner %d weight = %v, want 0.125", c.Index, c.Weight)
		}
	}
	if len(want) != 0 {
		t.Errorf("missing corners %v", want)
	}
}

func TestQueryReproducesLinearField(t *testing.T) {
	v := bakedCube(t)
	for _, p := range []math3d.Vec3{
		math3d.V3(0.5, 0.5, 0.5),
		math3d.V3(1.25, 0.1, 1.9),
		math3d.V3(2, 2, 2),
		math3d.V3(0, 1.5, 0.75),
	} {
		got := Query(v, p)
		if d := got[0].MaxAbsDiff(fieldColor(p)); d > 1e-9 {
			t.Errorf("Query(%v)[0] = %+v, want %+v", p, got[0], fieldColor(p))
		}
	}
}

func TestQueryContinuousInsideCell(t *testing.T) {
	v := bakedCube(t)
	const eps = 1e-6
	a := math3d.V3(0.3, 1.4, 0.8)
	b := a.Add(math3d.V3(eps, -eps, eps))

	ca, cb := Query(v, a), Query(v, b)
	// The field gradient is at most 1 per unit, so |Δ| <= 3·eps.
	if d := ca.MaxAbsDiff(&cb); d > 3*eps+1e-12 {
		t.Errorf("coefficients moved %g for a %g step", d, eps)
	}
}

func TestQueryClampsOutside(t *testing.T) {
	v := bakedCube(t)
	tests := []struct {
		name   string
		pos    math3d.Vec3
		corner math3d.Vec3
	}{
		{"below min", math3d.V3(-5, -5, -5), math3d.V3(0, 0, 0)},
		{"beyond max", math3d.V3(10, 3, 2.5), math3d.V3(2, 2, 2)},
		{"one axis out", math3d.V3(1, -1, 1), math3d.V3(1, 0, 1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Query(v, tt.pos)
			want := Query(v, tt.corner)
			if d := got.MaxAbsDiff(&want); d > 1e-12 {
				t.Errorf("Query(%v) differs from Query(%v) by %g", tt.pos, tt.corner, d)
			}
		})
	}
}

func TestLookupReject(t *testing.T) {
	v := bakedCube(t)
	l := Lookup{Policy: PolicyReject}

	if _, err := l.Query(v, math3d.V3(1, 1, 1)); err != nil {
		t.Fatalf("inside query: %v", err)
	}
	if _, err := l.Query(v, math3d.V3(2, 2, 2)); err != nil {
		t.Fatalf("query on the max corner: %v", err)
	}

	_, err := l.Query(v, math3d.V3(2.01, 1, 1))
	var oob *OutOfBoundsError
	if !errors.As(err, &oob) {
		t.Fatalf("err = %v, want OutOfBoundsError", err)
	}
	if oob.Position != math3d.V3(2.01, 1, 1) {
		t.Errorf("Position = %v", oob.Position)
	}
}

func TestLocateFlatExtrapolation(t *testing.T) {
	// Extent 2.5 at spacing 1: samples at 0, 1, 2 with the box reaching 2.5.
	v, err := NewVolume(AABB{Max: math3d.V3(2.5, 0, 0)}, 1)
	if err != nil {
		t.Fatal(err)
	}
	cell := Locate(v, math3d.V3(2.4, 0, 0))
	if cell.Base[0] != 2 || cell.Next[0] != 2 || cell.Frac[0] != 0 {
		t.Errorf("cell = %+v, want base=next=2 with zero weight", cell)
	}
	var sum float64
	for _, c := range cell.Corners(v) {
		sum += c.Weight
	}
	if math.Abs(sum-1) > 1e-12 {
		t.Errorf("weights sum to %v", sum)
	}
}

func TestQueryIntoDoesNotAllocate(t *testing.T) {
	v := bakedCube(t)
	dst := Query(v, math3d.V3(0, 0, 0))
	l := Lookup{}
	pos := math3d.V3(0.7, 1.2, 1.9)

	allocs := testing.AllocsPerRun(100, func() {
		_ = l.QueryInto(v, pos, &dst)
	})
	if allocs != 0 {
		t.Errorf("QueryInto allocated %v times per call", allocs)
	}
}

func BenchmarkQueryInto(b *testing.B) {
	v := bakedCube(b)
	dst := Query(v, math3d.V3(0, 0, 0))
	pos := math3d.V3(0.7, 1.2, 1.9)
	for b.Loop() {
		_ = Lookup{}.QueryInto(v, pos, &dst)
	}
}
