package probe

import (
	"errors"
	"testing"

	"github.com/taigrr/shprobe/pkg/math3d"
)

func TestGridDims(t *testing.T) {
	tests := []struct {
		name    string
		bounds  AABB
		density float64
		want    [3]int
		wantErr bool
	}{
		{"2x2x2 box at spacing 1", unitCube, 1, [3]int{3, 3, 3}, false},
		{"non-multiple extent", AABB{Max: math3d.V3(2.5, 1, 0.4)}, 1, [3]int{3, 2, 1}, false},
		{"flat box", AABB{Min: math3d.V3(1, 1, 1), Max: math3d.V3(1, 3, 1)}, 1, [3]int{1, 3, 1}, false},
		{"rounding", AABB{Max: math3d.V3(0.3, 0.3, 0.3)}, 0.1, [3]int{4, 4, 4}, false},
		{"zero density", unitCube, 0, [3]int{}, true},
		{"negative density", unitCube, -1, [3]int{}, true},
		{"inverted", AABB{Min: math3d.V3(1, 0, 0), Max: math3d.V3(0, 1, 1)}, 1, [3]int{}, true},
		{"huge extent", AABB{Max: math3d.V3(1e300, 1, 1)}, 1, [3]int{}, true},
		{"infinite extent", AABB{Min: math3d.V3(-1e308, 0, 0), Max: math3d.V3(1e308, 0, 0)}, 1, [3]int{}, true},
		{"too many probes", AABB{Max: math3d.V3(65535, 65535, 65535)}, 1, [3]int{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := GridDims(tt.bounds, tt.density)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidVolume) {
					t.Fatalf("err = %v, want ErrInvalidVolume", err)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Errorf("GridDims = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIndexRoundTrip(t *testing.T) {
	v, err := NewVolume(AABB{Max: math3d.V3(4, 2, 3)}, 1)
	if err != nil {
		t.Fatal(err)
	}
	if v.Dims != [3]int{5, 3, 4} || len(v.Probes) != 60 {
		t.Fatalf("dims %v with %d probes", v.Dims, len(v.Probes))
	}

	seen := make(map[int]bool)
	for k := range v.Dims[2] {
		for j := range v.Dims[1] {
			for i := range v.Dims[0] {
				idx := v.Index(i, j, k)
				if idx != (k*v.Dims[1]+j)*v.Dims[0]+i {
					t.Fatalf("Index(%d,%d,%d) = %d, not row-major", i, j, k, idx)
				}
				gi, gj, gk := v.Coords(idx)
				if gi != i || gj != j || gk != k {
					t.Errorf("Coords(Index(%d,%d,%d)) = (%d,%d,%d)", i, j, k, gi, gj, gk)
				}
				seen[idx] = true
			}
		}
	}
	if len(seen) != v.Len() {
		t.Errorf("%d distinct indices, want %d", len(seen), v.Len())
	}
}

func TestPositionAt(t *testing.T) {
	v, err := NewVolume(AABB{Min: math3d.V3(-1, 0, 2), Max: math3d.V3(1, 1, 3)}, 0.5)
	if err != nil {
		t.Fatal(err)
	}
	if got, want := v.PositionAt(3, 1, 2), math3d.V3(0.5, 0.5, 3); got != want {
		t.Errorf("PositionAt = %v, want %v", got, want)
	}
	if got := v.At(3, 1, 2).Position; got != v.PositionAt(3, 1, 2) {
		t.Errorf("probe position %v does not match its grid index", got)
	}
	if err := v.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestValidateCatchesMismatch(t *testing.T) {
	v, err := NewVolume(unitCube, 1)
	if err != nil {
		t.Fatal(err)
	}

	moved := *v
	moved.Probes = append([]Probe(nil), v.Probes...)
	moved.Probes[4].Position = math3d.V3(9, 9, 9)
	if err := moved.Validate(); !errors.Is(err, ErrInvalidVolume) {
		t.Errorf("moved probe: err = %v", err)
	}

	short := *v
	short.Probes = v.Probes[:26]
	if err := short.Validate(); !errors.Is(err, ErrInvalidVolume) {
		t.Errorf("short probes: err = %v", err)
	}

	dims := *v
	dims.Dims = [3]int{27, 1, 1}
	if err := dims.Validate(); !errors.Is(err, ErrInvalidVolume) {
		t.Errorf("bad dims: err = %v", err)
	}
}

func TestLenOverflow(t *testing.T) {
	tests := []struct {
		name string
		dims [3]int
		want int
	}{
		{"small", [3]int{2, 3, 4}, 24},
		{"wraps to zero", [3]int{1 << 31, 1 << 31, 4}, -1},
		{"over limit", [3]int{1 << 16, 1 << 16, 1}, -1},
		{"negative", [3]int{-1, 2, 2}, -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := &Volume{Dims: tt.dims}
			if got := v.Len(); got != tt.want {
				t.Errorf("Len = %d, want %d", got, tt.want)
			}
		})
	}

	v := &Volume{Bounds: AABB{Max: math3d.V3(1<<31-1, 1<<31-1, 3)}, Density: 1, Dims: [3]int{1 << 31, 1 << 31, 4}}
	if err := v.Validate(); !errors.Is(err, ErrInvalidVolume) {
		t.Errorf("Validate = %v, want ErrInvalidVolume", err)
	}
}

func TestAABB(t *testing.T) {
	b := AABB{Min: math3d.V3(-1, -1, -1), Max: math3d.V3(1, 2, 3)}
	if !b.Contains(math3d.V3(1, 2, 3)) || b.Contains(math3d.V3(1.01, 0, 0)) {
		t.Error("Contains is not inclusive of the faces only")
	}
	if got, want := b.Clamp(math3d.V3(5, -5, 0)), math3d.V3(1, -1, 0); got != want {
		t.Errorf("Clamp = %v, want %v", got, want)
	}
	if got, want := b.Center(), math3d.V3(0, 0.5, 1); got != want {
		t.Errorf("Center = %v, want %v", got, want)
	}
}
