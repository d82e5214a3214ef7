package probe

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"errors"
	"math"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/taigrr/shprobe/pkg/math3d"
)

// awkwardVolume has coefficients that do not survive a lossy float format.
func awkwardVolume(t *testing.T) *Volume {
	t.Helper()
	v, err := NewVolume(AABB{Min: math3d.V3(-0.1, 0.2, 1.0/3.0), Max: math3d.V3(0.6, 0.9, 1)}, 0.35)
	if err != nil {
		t.Fatal(err)
	}
	for i := range v.Probes {
		for n := range v.Probes[i].Coefficients {
			x := float64(i*9+n) + 1
			v.Probes[i].Coefficients[n] = math3d.RGB{R: math.Pi / x, G: -1 / (3 * x), B: math.Nextafter(x, 0)}
		}
	}
	return v
}

func TestJSONRoundTrip(t *testing.T) {
	want := awkwardVolume(t)

	var buf bytes.Buffer
	if err := Encode(&buf, want); err != nil {
		t.Fatal(err)
	}
	got, err := Decode(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("round trip (-want +got):\n%s", diff)
	}
}

func TestJSONLayout(t *testing.T) {
	v, err := NewVolume(AABB{Max: math3d.V3(1, 0, 0)}, 1)
	if err != nil {
		t.Fatal(err)
	}
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatal(err)
	}

	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatal(err)
	}
	for _, key := range []string{"bounds", "density", "dims", "probes"} {
		if _, ok := doc[key]; !ok {
			t.Errorf("missing key %q in %s", key, data)
		}
	}
	probes := doc["probes"].([]any)
	coeffs := probes[1].(map[string]any)["coefficients"].([]any)
	if len(probes) != 2 || len(coeffs) != 27 {
		t.Errorf("%d probes with %d coefficients", len(probes), len(coeffs))
	}
}

func TestBinaryRoundTrip(t *testing.T) {
	want := awkwardVolume(t)
	data, err := want.MarshalBinary()
	if err != nil {
		t.Fatal(err)
	}
	if string(data[:4]) != "SHPV" {
		t.Fatalf("magic %q", data[:4])
	}
	if len(data) != binaryHeaderSize+want.Len()*27*8 {
		t.Errorf("%d bytes for %d probes", len(data), want.Len())
	}

	got := &Volume{}
	if err := got.UnmarshalBinary(data); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("round trip (-want +got):\n%s", diff)
	}
}

func TestDecodeRejectsCorruptData(t *testing.T) {
	good := `{"bounds":{"min":[0,0,0],"max":[1,0,0]},"density":1,"dims":[2,1,1],"probes":[` +
		`{"position":[0,0,0],"coefficients":[` + zeros(27) + `]},` +
		`{"position":[1,0,0],"coefficients":[` + zeros(27) + `]}]}`
	if _, err := Decode(strings.NewReader(good)); err != nil {
		t.Fatalf("valid document rejected: %v", err)
	}

	tests := []struct {
		name string
		doc  string
	}{
		{"not json", "{"},
		{"wrong dims", strings.Replace(good, `"dims":[2,1,1]`, `"dims":[1,2,1]`, 1)},
		{"missing probe", strings.Replace(good, `,{"position":[1,0,0],"coefficients":[`+zeros(27)+`]}`, "", 1)},
		{"misplaced probe", strings.Replace(good, `"position":[1,0,0]`, `"position":[0.5,0,0]`, 1)},
		{"zero density", strings.Replace(good, `"density":1`, `"density":0`, 1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Decode(strings.NewReader(tt.doc)); !errors.Is(err, ErrCorruptVolume) {
				t.Errorf("err = %v, want ErrCorruptVolume", err)
			}
		})
	}
}

func TestUnmarshalBinaryRejectsCorruptData(t *testing.T) {
	data, err := bakedCube(t).MarshalBinary()
	if err != nil {
		t.Fatal(err)
	}

	badMagic := append([]byte(nil), data...)
	copy(badMagic, "NOPE")
	badVersion := append([]byte(nil), data...)
	badVersion[4] = 9
	badDims := append([]byte(nil), data...)
	badDims[binaryHeaderSize-4] = 7

	tests := map[string][]byte{
		"short":     data[:10],
		"truncated": data[:len(data)-8],
		"magic":     badMagic,
		"version":   badVersion,
		"dims":      badDims,
	}
	for name, b := range tests {
		t.Run(name, func(t *testing.T) {
			if err := (&Volume{}).UnmarshalBinary(b); !errors.Is(err, ErrCorruptVolume) {
				t.Errorf("err = %v, want ErrCorruptVolume", err)
			}
		})
	}
}

// hugeGrid is a box whose implied dims multiply past the int range.
var hugeGrid = AABB{Max: math3d.V3(1<<31-1, 1<<31-1, 3)}

func TestDecodeRejectsOverflowingDims(t *testing.T) {
	doc := `{"bounds":{"min":[0,0,0],"max":[2147483647,2147483647,3]},"density":1,` +
		`"dims":[2147483648,2147483648,4],"probes":[]}`
	if _, err := Decode(strings.NewReader(doc)); !errors.Is(err, ErrCorruptVolume) {
		t.Errorf("err = %v, want ErrCorruptVolume", err)
	}
}

func TestUnmarshalBinaryRejectsOverflowingDims(t *testing.T) {
	header := func(bounds AABB, density float64, dims [3]uint32) []byte {
		le := binary.LittleEndian
		buf := le.AppendUint32([]byte(binaryMagic), binaryVersion)
		lo, hi := bounds.Min.Array(), bounds.Max.Array()
		for _, f := range [...]float64{lo[0], lo[1], lo[2], hi[0], hi[1], hi[2], density} {
			buf = le.AppendUint64(buf, math.Float64bits(f))
		}
		for _, d := range dims {
			buf = le.AppendUint32(buf, d)
		}
		return buf
	}

	short := header(AABB{Max: math3d.V3(1, 1, 0)}, 1, [3]uint32{2, 2, 1})
	short = append(short, make([]byte, 3*binaryProbeSize)...)
	ragged := header(AABB{Max: math3d.V3(1, 0, 0)}, 1, [3]uint32{2, 1, 1})
	ragged = append(ragged, make([]byte, 2*binaryProbeSize+3)...)

	tests := map[string][]byte{
		"wrapping product": header(hugeGrid, 1, [3]uint32{1 << 31, 1 << 31, 4}),
		"axis over limit":  header(AABB{Max: math3d.V3(1<<32-2, 0, 0)}, 1, [3]uint32{1<<32 - 1, 1, 1}),
		"short payload":    short,
		"ragged payload":   ragged,
	}
	for name, data := range tests {
		t.Run(name, func(t *testing.T) {
			v := &Volume{}
			if err := v.UnmarshalBinary(data); !errors.Is(err, ErrCorruptVolume) {
				t.Errorf("err = %v, want ErrCorruptVolume", err)
			}
		})
	}
}

func TestIsBinaryPath(t *testing.T) {
	for path, want := range map[string]bool{
		"probes.shpv": true,
		"PROBES.BIN":  true,
		"probes.json": false,
		"probes":      false,
	} {
		if got := IsBinaryPath(path); got != want {
			t.Errorf("IsBinaryPath(%q) = %v, want %v", path, got, want)
		}
	}
}

func TestSaveLoadFile(t *testing.T) {
	want := awkwardVolume(t)
	dir := t.TempDir()

	for _, name := range []string{"volume.json", "volume.shpv"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, name)
			if err := SaveFile(path, want); err != nil {
				t.Fatal(err)
			}
			got, err := LoadFile(path)
			if err != nil {
				t.Fatal(err)
			}
			if diff := cmp.Diff(want, got); diff != "" {
				t.Errorf("round trip (-want +got):\n%s", diff)
			}
		})
	}

	if _, err := LoadFile(filepath.Join(dir, "missing.json")); err == nil {
		t.Error("missing file loaded")
	}
}

func zeros(n int) string {
	return strings.TrimSuffix(strings.Repeat("0,", n), ",")
}
