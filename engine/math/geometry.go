package math

import (
	"encoding/binary"
	m "math"
)

// NewBox creates a box centered at the origin with the given dimensions.
// Each face has its own four vertices so normals stay flat. Triangles wind
// clockwise when viewed from outside.
func NewBox(width, height, depth float32) Mesh {
	w := 0.5 * width
	h := 0.5 * height
	d := 0.5 * depth

	v := func(px, py, pz, nx, ny, nz float32) SimpleVertex {
		return SimpleVertex{Position: Vec3{px, py, pz}, Normal: Vec3{nx, ny, nz}}
	}

	vertices := []SimpleVertex{
		// front
		v(-w, -h, -d, 0, 0, -1), v(-w, +h, -d, 0, 0, -1), v(+w, +h, -d, 0, 0, -1), v(+w, -h, -d, 0, 0, -1),
		// back
		v(-w, -h, +d, 0, 0, 1), v(+w, -h, +d, 0, 0, 1), v(+w, +h, +d, 0, 0, 1), v(-w, +h, +d, 0, 0, 1),
		// top
		v(-w, +h, -d, 0, 1, 0), v(-w, +h, +d, 0, 1, 0), v(+w, +h, +d, 0, 1, 0), v(+w, +h, -d, 0, 1, 0),
		// bottom
		v(-w, -h, -d, 0, -1, 0), v(+w, -h, -d, 0, -1, 0), v(+w, -h, +d, 0, -1, 0), v(-w, -h, +d, 0, -1, 0),
		// left
		v(-w, -h, +d, -1, 0, 0), v(-w, +h, +d, -1, 0, 0), v(-w, +h, -d, -1, 0, 0), v(-w, -h, -d, -1, 0, 0),
		// right
		v(+w, -h, -d, 1, 0, 0), v(+w, +h, -d, 1, 0, 0), v(+w, +h, +d, 1, 0, 0), v(+w, -h, +d, 1, 0, 0),
	}

	indices := make([]uint32, 0, 36)
	for face := uint32(0); face < 6; face++ {
		b := face * 4
		indices = append(indices, b, b+1, b+2, b, b+2, b+3)
	}

	return Mesh{Vertices: vertices, Indices: indices}
}

// Extents returns the axis aligned bounds of the mesh.
func (ms Mesh) Extents() Extents3D {
	if len(ms.Vertices) == 0 {
		return Extents3D{}
	}
	e := Extents3D{Min: ms.Vertices[0].Position, Max: ms.Vertices[0].Position}
	for _, vert := range ms.Vertices[1:] {
		p := vert.Position
		e.Min = Vec3{min(e.Min.X, p.X), min(e.Min.Y, p.Y), min(e.Min.Z, p.Z)}
		e.Max = Vec3{max(e.Max.X, p.X), max(e.Max.Y, p.Y), max(e.Max.Z, p.Z)}
	}
	return e
}

// VertexBytes packs the vertices as little-endian float32 position/normal
// pairs, SimpleVertexSize bytes each.
func (ms Mesh) VertexBytes() []byte {
	out := make([]byte, len(ms.Vertices)*SimpleVertexSize)
	for i, vert := range ms.Vertices {
		o := out[i*SimpleVertexSize:]
		putVec3(o, vert.Position)
		putVec3(o[12:], vert.Normal)
	}
	return out
}

// IndexBytes packs the indices as little-endian uint32 values.
func (ms Mesh) IndexBytes() []byte {
	out := make([]byte, len(ms.Indices)*4)
	for i, idx := range ms.Indices {
		binary.LittleEndian.PutUint32(out[i*4:], idx)
	}
	return out
}

// ReadVec3 decodes three little-endian float32 values from src.
func ReadVec3(src []byte) Vec3 {
	return Vec3{
		m.Float32frombits(binary.LittleEndian.Uint32(src[0:])),
		m.Float32frombits(binary.LittleEndian.Uint32(src[4:])),
		m.Float32frombits(binary.LittleEndian.Uint32(src[8:])),
	}
}

func putVec3(dst []byte, v Vec3) {
	binary.LittleEndian.PutUint32(dst[0:], m.Float32bits(v.X))
	binary.LittleEndian.PutUint32(dst[4:], m.Float32bits(v.Y))
	binary.LittleEndian.PutUint32(dst[8:], m.Float32bits(v.Z))
}
