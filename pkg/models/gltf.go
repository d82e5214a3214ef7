package models

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"math"
	"os"
	"path/filepath"
	"strconv"

	"github.com/qmuntal/gltf"

	"github.com/taigrr/shprobe/pkg/math3d"
)

// ErrNodeCycle is returned for a node graph that is not a tree.
var ErrNodeCycle = errors.New("gltf node graph has a cycle")

// GLTFLoader loads GLTF/GLB files.
type GLTFLoader struct {
	// Options
	CalculateNormals bool
	SmoothNormals    bool
}

// NewGLTFLoader creates a new GLTF loader with default options.
func NewGLTFLoader() *GLTFLoader {
	return &GLTFLoader{
		CalculateNormals: true,
		SmoothNormals:    true,
	}
}

// Instance is one primitive placed in the world by the node hierarchy.
// Every primitive of a node shares the node's name.
type Instance struct {
	Name      string
	Mesh      *Mesh // Local space
	Transform math3d.Mat4
	Material  Material
}

// LoadScene loads the default scene of a GLTF or GLB file.
func LoadScene(path string) ([]Instance, error) {
	return NewGLTFLoader().LoadScene(path)
}

// LoadGLB loads a GLTF or GLB file as one mesh in world space, with one
// material per source primitive.
func LoadGLB(path string) (*Mesh, error) {
	return NewGLTFLoader().Load(path)
}

// Load flattens the default scene into a single world-space mesh.
func (l *GLTFLoader) Load(path string) (*Mesh, error) {
	instances, err := l.LoadScene(path)
	if err != nil {
		return nil, err
	}

	mesh := NewMesh(filepath.Base(path))
	for _, inst := range instances {
		part := inst.Mesh.Clone()
		part.Materials = []Material{inst.Material}
		for i := range part.Faces {
			part.Faces[i].Material = 0
		}
		mesh.Merge(part, inst.Transform)
	}
	return mesh, nil
}

// LoadScene walks the default scene's node tree and returns one Instance
// per triangle primitive.
func (l *GLTFLoader) LoadScene(path string) ([]Instance, error) {
	doc, err := gltf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open gltf: %w", err)
	}

	sl := &sceneLoader{
		loader: l,
		doc:    doc,
		dir:    filepath.Dir(path),
		meshes: make(map[int][]primitive),
		images: make(map[int]image.Image),
		onPath: make(map[int]bool),
	}
	for _, root := range sceneRoots(doc) {
		if err := sl.walk(root, math3d.Identity()); err != nil {
			return nil, err
		}
	}
	return sl.out, nil
}

// sceneRoots returns the root nodes of the default scene. Files without
// scenes fall back to every node that no other node references.
func sceneRoots(doc *gltf.Document) []int {
	switch {
	case doc.Scene != nil && *doc.Scene < len(doc.Scenes):
		return doc.Scenes[*doc.Scene].Nodes
	case len(doc.Scenes) > 0:
		return doc.Scenes[0].Nodes
	}

	child := make([]bool, len(doc.Nodes))
	for _, n := range doc.Nodes {
		for _, c := range n.Children {
			if c >= 0 && c < len(child) {
				child[c] = true
			}
		}
	}
	var roots []int
	for i, isChild := range child {
		if !isChild {
			roots = append(roots, i)
		}
	}
	return roots
}

type primitive struct {
	mesh     *Mesh
	material Material
}

type sceneLoader struct {
	loader *GLTFLoader
	doc    *gltf.Document
	dir    string
	meshes map[int][]primitive
	images map[int]image.Image
	onPath map[int]bool
	out    []Instance
}

func (sl *sceneLoader) walk(idx int, parent math3d.Mat4) error {
	if idx < 0 || idx >= len(sl.doc.Nodes) {
		return fmt.Errorf("node %d out of range", idx)
	}
	if sl.onPath[idx] {
		return fmt.Errorf("node %d: %w", idx, ErrNodeCycle)
	}
	sl.onPath[idx] = true
	defer delete(sl.onPath, idx)

	node := sl.doc.Nodes[idx]
	world := parent.Mul(nodeTransform(node))

	if node.Mesh != nil {
		prims, err := sl.mesh(*node.Mesh)
		if err != nil {
			return err
		}
		name := node.Name
		if name == "" {
			name = "node" + strconv.Itoa(idx)
		}
		for _, p := range prims {
			sl.out = append(sl.out, Instance{
				Name:      name,
				Mesh:      p.mesh,
				Transform: world,
				Material:  p.material,
			})
		}
	}

	for _, c := range node.Children {
		if err := sl.walk(c, world); err != nil {
			return err
		}
	}
	return nil
}

var identityMatrix = [16]float64(math3d.Identity())

// nodeTransform returns the node's local matrix. An explicit matrix wins
// over TRS; zero rotation and scale mean their glTF defaults.
func nodeTransform(n *gltf.Node) math3d.Mat4 {
	if n.Matrix != [16]float64{} && n.Matrix != identityMatrix {
		return math3d.Mat4(n.Matrix)
	}
	rot := n.Rotation
	if rot == [4]float64{} {
		rot = [4]float64{0, 0, 0, 1}
	}
	scale := n.Scale
	if scale == [3]float64{} {
		scale = [3]float64{1, 1, 1}
	}
	return math3d.TRS(math3d.V3FromArray(n.Translation), rot, math3d.V3FromArray(scale))
}

// mesh converts (once) every triangle primitive of a glTF mesh.
func (sl *sceneLoader) mesh(idx int) ([]primitive, error) {
	if prims, ok := sl.meshes[idx]; ok {
		return prims, nil
	}
	if idx < 0 || idx >= len(sl.doc.Meshes) {
		return nil, fmt.Errorf("mesh %d out of range", idx)
	}

	m := sl.doc.Meshes[idx]
	var prims []primitive
	for i, prim := range m.Primitives {
		if prim.Mode != gltf.PrimitiveTriangles && prim.Mode != 0 {
			// Skip non-triangle primitives (lines, points, etc)
			continue
		}
		mesh, err := sl.loader.processPrimitive(sl.doc, prim)
		if err != nil {
			return nil, fmt.Errorf("process mesh %q primitive %d: %w", m.Name, i, err)
		}
		if mesh == nil {
			continue
		}
		mesh.Name = m.Name
		prims = append(prims, primitive{mesh: mesh, material: sl.material(prim.Material)})
	}
	sl.meshes[idx] = prims
	return prims, nil
}

// material resolves a primitive's material. Missing textures are dropped
// rather than failing the load.
func (sl *sceneLoader) material(idx *int) Material {
	mat := DefaultMaterial()
	if idx == nil || *idx < 0 || *idx >= len(sl.doc.Materials) {
		return mat
	}

	src := sl.doc.Materials[*idx]
	mat.Name = src.Name
	mat.Emissive = src.EmissiveFactor
	if pbr := src.PBRMetallicRoughness; pbr != nil {
		if pbr.BaseColorFactor != nil {
			mat.BaseColor = *pbr.BaseColorFactor
		}
		if pbr.BaseColorTexture != nil {
			mat.BaseMap = sl.texture(pbr.BaseColorTexture.Index)
		}
	}
	return mat
}

func (sl *sceneLoader) texture(idx int) image.Image {
	if idx < 0 || idx >= len(sl.doc.Textures) || sl.doc.Textures[idx].Source == nil {
		return nil
	}
	src := *sl.doc.Textures[idx].Source
	if img, ok := sl.images[src]; ok {
		return img
	}

	img, err := sl.decodeImage(src)
	if err != nil {
		img = nil
	}
	sl.images[src] = img
	return img
}

// decodeImage decodes an image stored in a buffer view or a file next to
// the document.
func (sl *sceneLoader) decodeImage(idx int) (image.Image, error) {
	if idx < 0 || idx >= len(sl.doc.Images) {
		return nil, fmt.Errorf("image %d out of range", idx)
	}
	src := sl.doc.Images[idx]

	var data []byte
	switch {
	case src.BufferView != nil:
		bv := sl.doc.BufferViews[*src.BufferView]
		buf := sl.doc.Buffers[bv.Buffer]
		if bv.ByteOffset+bv.ByteLength > len(buf.Data) {
			return nil, fmt.Errorf("image %d: buffer view out of range", idx)
		}
		data = buf.Data[bv.ByteOffset : bv.ByteOffset+bv.ByteLength]
	case src.URI != "":
		var err error
		data, err = os.ReadFile(filepath.Join(sl.dir, filepath.FromSlash(src.URI)))
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("image %d has no data", idx)
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	return img, err
}

// processPrimitive extracts the geometry of one primitive. It returns nil
// for primitives without positions.
func (l *GLTFLoader) processPrimitive(doc *gltf.Document, prim *gltf.Primitive) (*Mesh, error) {
	posIdx, ok := prim.Attributes[gltf.POSITION]
	if !ok {
		return nil, nil
	}

	positions, err := readVec3Accessor(doc, posIdx)
	if err != nil {
		return nil, fmt.Errorf("read positions: %w", err)
	}

	var normals []math3d.Vec3
	if normIdx, ok := prim.Attributes[gltf.NORMAL]; ok {
		normals, err = readVec3Accessor(doc, normIdx)
		if err != nil {
			return nil, fmt.Errorf("read normals: %w", err)
		}
	}

	var uvs []math3d.Vec2
	if uvIdx, ok := prim.Attributes[gltf.TEXCOORD_0]; ok {
		uvs, err = readVec2Accessor(doc, uvIdx)
		if err != nil {
			return nil, fmt.Errorf("read uvs: %w", err)
		}
	}

	mesh := NewMesh("")
	for i := range positions {
		v := MeshVertex{Position: positions[i]}
		if i < len(normals) {
			v.Normal = normals[i]
		}
		if i < len(uvs) {
			v.UV = uvs[i]
		}
		mesh.Vertices = append(mesh.Vertices, v)
	}

	var indices []int
	if prim.Indices != nil {
		indices, err = readIndices(doc, *prim.Indices)
		if err != nil {
			return nil, fmt.Errorf("read indices: %w", err)
		}
	} else {
		// No indices, assume sequential triangles
		indices = make([]int, len(positions))
		for i := range indices {
			indices[i] = i
		}
	}

	for i := 0; i+2 < len(indices); i += 3 {
		f := Face{V: [3]int{indices[i], indices[i+1], indices[i+2]}}
		for _, v := range f.V {
			if v < 0 || v >= len(mesh.Vertices) {
				return nil, fmt.Errorf("index %d out of range for %d vertices", v, len(mesh.Vertices))
			}
		}
		mesh.Faces = append(mesh.Faces, f)
	}

	if l.CalculateNormals && len(normals) == 0 {
		if l.SmoothNormals {
			mesh.CalculateSmoothNormals()
		} else {
			mesh.CalculateNormals()
		}
	}
	mesh.CalculateBounds()
	return mesh, nil
}

// readVec3Accessor reads Vec3 data from a GLTF accessor.
func readVec3Accessor(doc *gltf.Document, accessorIdx int) ([]math3d.Vec3, error) {
	if accessorIdx < 0 || accessorIdx >= len(doc.Accessors) {
		return nil, fmt.Errorf("accessor %d out of range", accessorIdx)
	}
	accessor := doc.Accessors[accessorIdx]
	if accessor.Type != gltf.AccessorVec3 {
		return nil, fmt.Errorf("expected VEC3, got %v", accessor.Type)
	}

	data, err := readAccessorData(doc, accessor)
	if err != nil {
		return nil, err
	}

	floats, ok := data.([][3]float32)
	if !ok {
		return nil, fmt.Errorf("unexpected data type for VEC3")
	}

	result := make([]math3d.Vec3, len(floats))
	for i, f := range floats {
		result[i] = math3d.V3(float64(f[0]), float64(f[1]), float64(f[2]))
	}

	return result, nil
}

// readVec2Accessor reads Vec2 data from a GLTF accessor.
func readVec2Accessor(doc *gltf.Document, accessorIdx int) ([]math3d.Vec2, error) {
	if accessorIdx < 0 || accessorIdx >= len(doc.Accessors) {
		return nil, fmt.Errorf("accessor %d out of range", accessorIdx)
	}
	accessor := doc.Accessors[accessorIdx]
	if accessor.Type != gltf.AccessorVec2 {
		return nil, fmt.Errorf("expected VEC2, got %v", accessor.Type)
	}

	data, err := readAccessorData(doc, accessor)
	if err != nil {
		return nil, err
	}

	floats, ok := data.([][2]float32)
	if !ok {
		return nil, fmt.Errorf("unexpected data type for VEC2")
	}

	result := make([]math3d.Vec2, len(floats))
	for i, f := range floats {
		result[i] = math3d.V2(float64(f[0]), float64(f[1]))
	}

	return result, nil
}

// readIndices reads index data from a GLTF accessor.
func readIndices(doc *gltf.Document, accessorIdx int) ([]int, error) {
	if accessorIdx < 0 || accessorIdx >= len(doc.Accessors) {
		return nil, fmt.Errorf("accessor %d out of range", accessorIdx)
	}
	data, err := readAccessorData(doc, doc.Accessors[accessorIdx])
	if err != nil {
		return nil, err
	}

	switch v := data.(type) {
	case []uint8:
		return widen(v), nil
	case []uint16:
		return widen(v), nil
	case []uint32:
		return widen(v), nil
	default:
		return nil, fmt.Errorf("unexpected index type: %T", data)
	}
}

func widen[T uint8 | uint16 | uint32](v []T) []int {
	result := make([]int, len(v))
	for i, x := range v {
		result[i] = int(x)
	}
	return result
}

// readAccessorData reads raw data from a GLTF accessor. gltf.Open has
// already loaded external and embedded buffers into Buffer.Data.
func readAccessorData(doc *gltf.Document, accessor *gltf.Accessor) (any, error) {
	if accessor.BufferView == nil {
		return nil, fmt.Errorf("accessor has no buffer view")
	}

	bufferView := doc.BufferViews[*accessor.BufferView]
	bufData := doc.Buffers[bufferView.Buffer].Data
	if bufData == nil {
		return nil, fmt.Errorf("buffer has no data")
	}

	start := bufferView.ByteOffset + accessor.ByteOffset
	stride := bufferView.ByteStride
	count := accessor.Count

	elemSize := 0
	switch accessor.Type {
	case gltf.AccessorVec3:
		elemSize = 12
	case gltf.AccessorVec2:
		elemSize = 8
	case gltf.AccessorScalar:
		switch accessor.ComponentType {
		case gltf.ComponentUbyte:
			elemSize = 1
		case gltf.ComponentUshort:
			elemSize = 2
		case gltf.ComponentUint:
			elemSize = 4
		}
	}
	if elemSize == 0 {
		return nil, fmt.Errorf("unsupported accessor type: %v / %v", accessor.Type, accessor.ComponentType)
	}
	if stride == 0 {
		stride = elemSize
	}
	if count > 0 && start+(count-1)*stride+elemSize > len(bufData) {
		return nil, fmt.Errorf("accessor reads past the end of its buffer")
	}

	switch accessor.Type {
	case gltf.AccessorVec3:
		result := make([][3]float32, count)
		for i := range count {
			offset := start + i*stride
			for j := range 3 {
				result[i][j] = readFloat32(bufData[offset+j*4:])
			}
		}
		return result, nil

	case gltf.AccessorVec2:
		result := make([][2]float32, count)
		for i := range count {
			offset := start + i*stride
			for j := range 2 {
				result[i][j] = readFloat32(bufData[offset+j*4:])
			}
		}
		return result, nil
	}

	switch accessor.ComponentType {
	case gltf.ComponentUbyte:
		result := make([]uint8, count)
		for i := range count {
			result[i] = bufData[start+i*stride]
		}
		return result, nil
	case gltf.ComponentUshort:
		result := make([]uint16, count)
		for i := range count {
			offset := start + i*stride
			result[i] = uint16(bufData[offset]) | uint16(bufData[offset+1])<<8
		}
		return result, nil
	default:
		result := make([]uint32, count)
		for i := range count {
			offset := start + i*stride
			result[i] = uint32(bufData[offset]) |
				uint32(bufData[offset+1])<<8 |
				uint32(bufData[offset+2])<<16 |
				uint32(bufData[offset+3])<<24
		}
		return result, nil
	}
}

// readFloat32 reads a little-endian float32.
func readFloat32(b []byte) float32 {
	bits := uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
	return math.Float32frombits(bits)
}
