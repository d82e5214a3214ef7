package probe

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/taigrr/shprobe/pkg/math3d"
	"github.com/taigrr/shprobe/pkg/sh"
)

// ErrCorruptVolume reports serialized data that does not describe a valid
// volume.
var ErrCorruptVolume = errors.New("probe: corrupt volume data")

const (
	binaryMagic   = "SHPV"
	binaryVersion = 1
	// magic, version, 6 bounds floats, density, 3 dims
	binaryHeaderSize = 4 + 4 + 7*8 + 3*4
	binaryProbeSize  = sh.ScalarCount * 8
)

type boundsJSON struct {
	Min [3]float64 `json:"min"`
	Max [3]float64 `json:"max"`
}

type probeJSON struct {
	Position     [3]float64              `json:"position"`
	Coefficients [sh.ScalarCount]float64 `json:"coefficients"`
}

type volumeJSON struct {
	Bounds  boundsJSON  `json:"bounds"`
	Density float64     `json:"density"`
	Dims    [3]int      `json:"dims"`
	Probes  []probeJSON `json:"probes"`
}

// MarshalJSON encodes the volume as
// {bounds{min,max}, density, dims, probes[{position, coefficients[27]}]}.
func (v *Volume) MarshalJSON() ([]byte, error) {
	out := volumeJSON{
		Bounds:  boundsJSON{Min: v.Bounds.Min.Array(), Max: v.Bounds.Max.Array()},
		Density: v.Density,
		Dims:    v.Dims,
		Probes:  make([]probeJSON, len(v.Probes)),
	}
	for i := range v.Probes {
		out.Probes[i] = probeJSON{
			Position:     v.Probes[i].Position.Array(),
			Coefficients: v.Probes[i].Coefficients.Floats(),
		}
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes and validates a volume. Any structural problem is
// reported as ErrCorruptVolume.
func (v *Volume) UnmarshalJSON(data []byte) error {
	var in volumeJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return fmt.Errorf("%w: %v", ErrCorruptVolume, err)
	}

	dec := Volume{
		Bounds: AABB{
			Min: math3d.V3FromArray(in.Bounds.Min),
			Max: math3d.V3FromArray(in.Bounds.Max),
		},
		Density: in.Density,
		Dims:    in.Dims,
		Probes:  make([]Probe, len(in.Probes)),
	}
	for i, p := range in.Probes {
		dec.Probes[i] = Probe{
			Position:     math3d.V3FromArray(p.Position),
			Coefficients: sh.FromFloats(p.Coefficients),
		}
	}
	if err := dec.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrCorruptVolume, err)
	}
	*v = dec
	return nil
}

// Encode writes v to w as indented JSON.
func Encode(w io.Writer, v *Volume) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// Decode reads a JSON volume from r.
func Decode(r io.Reader) (*Volume, error) {
	v := &Volume{}
	if err := json.NewDecoder(r).Decode(v); err != nil {
		if errors.Is(err, ErrCorruptVolume) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrCorruptVolume, err)
	}
	return v, nil
}

// MarshalBinary encodes the volume in the compact little-endian SHPV form:
// a header with bounds, density and dims followed by 27 float64 per probe.
// Probe positions are implied by the grid and not stored.
func (v *Volume) MarshalBinary() ([]byte, error) {
	buf := make([]byte, 0, binaryHeaderSize+len(v.Probes)*binaryProbeSize)
	buf = append(buf, binaryMagic...)
	buf = binary.LittleEndian.AppendUint32(buf, binaryVersion)
	for _, f := range [...]float64{
		v.Bounds.Min.X, v.Bounds.Min.Y, v.Bounds.Min.Z,
		v.Bounds.Max.X, v.Bounds.Max.Y, v.Bounds.Max.Z,
		v.Density,
	} {
		buf = binary.LittleEndian.AppendUint64(buf, math.Float64bits(f))
	}
	for _, d := range v.Dims {
		buf = binary.LittleEndian.AppendUint32(buf, uint32(d))
	}
	for i := range v.Probes {
		for _, f := range v.Probes[i].Coefficients.Floats() {
			buf = binary.LittleEndian.AppendUint64(buf, math.Float64bits(f))
		}
	}
	return buf, nil
}

// UnmarshalBinary decodes the form written by MarshalBinary.
func (v *Volume) UnmarshalBinary(data []byte) error {
	if len(data) < binaryHeaderSize {
		return fmt.Errorf("%w: %d bytes is shorter than the header", ErrCorruptVolume, len(data))
	}
	if string(data[:4]) != binaryMagic {
		return fmt.Errorf("%w: bad magic %q", ErrCorruptVolume, data[:4])
	}
	if ver := binary.LittleEndian.Uint32(data[4:8]); ver != binaryVersion {
		return fmt.Errorf("%w: unsupported version %d", ErrCorruptVolume, ver)
	}

	le := binary.LittleEndian
	off := 8
	readFloat := func() float64 {
		f := math.Float64frombits(le.Uint64(data[off:]))
		off += 8
		return f
	}

	bounds := AABB{
		Min: math3d.V3(readFloat(), readFloat(), readFloat()),
		Max: math3d.V3(readFloat(), readFloat(), readFloat()),
	}
	density := readFloat()
	var dims [3]int
	for i := range dims {
		dims[i] = int(le.Uint32(data[off:]))
		off += 4
	}

	implied, err := GridDims(bounds, density)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCorruptVolume, err)
	}
	if implied != dims {
		return fmt.Errorf("%w: dims %v, bounds and density imply %v", ErrCorruptVolume, dims, implied)
	}
	n, err := probeCount(dims)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCorruptVolume, err)
	}
	if payload := len(data) - binaryHeaderSize; payload%binaryProbeSize != 0 || payload/binaryProbeSize != n {
		return fmt.Errorf("%w: %d bytes of probe data, dims %v need %d probes", ErrCorruptVolume, payload, dims, n)
	}

	dec, err := NewVolume(bounds, density)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCorruptVolume, err)
	}

	for i := range dec.Probes {
		var f [sh.ScalarCount]float64
		for n := range f {
			f[n] = readFloat()
		}
		dec.Probes[i].Coefficients = sh.FromFloats(f)
	}
	*v = *dec
	return nil
}

// IsBinaryPath reports whether a file extension selects the SHPV form.
func IsBinaryPath(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".shpv", ".bin":
		return true
	}
	return false
}

// SaveFile writes v to path, as SHPV for .shpv and .bin files and JSON
// otherwise.
func SaveFile(path string, v *Volume) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}

	w := bufio.NewWriter(f)
	if IsBinaryPath(path) {
		var data []byte
		data, err = v.MarshalBinary()
		if err == nil {
			_, err = w.Write(data)
		}
	} else {
		err = Encode(w, v)
	}
	if err == nil {
		err = w.Flush()
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// LoadFile reads a volume written by SaveFile. The form is detected from the
// leading magic bytes, not the extension.
func LoadFile(path string) (*Volume, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	v := &Volume{}
	if len(data) >= 4 && string(data[:4]) == binaryMagic {
		err = v.UnmarshalBinary(data)
	} else {
		err = v.UnmarshalJSON(data)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return v, nil
}
