package model

import (
	"unsafe"

	"vulkan_render_base/common"
)

// Mesh couples vertex data with the indices addressing it. Both live on the
// CPU, uploading them into device buffers is the renderer's business.
type Mesh struct {
	Vertices []Vertex
	VIndices []uint32
}

func NewMesh(v []Vertex, id []uint32) *Mesh {
	return &Mesh{
		Vertices: v,
		VIndices: id,
	}
}

// VertexBytes returns the raw bytes of all vertices, mainly to feed
// vk.Memcopy(..., src []byte) when staging the mesh to the GPU.
func (m *Mesh) VertexBytes() []byte {
	return common.RawBytes(m.Vertices)
}

// IndexBytes returns the raw bytes of the index list, see VertexBytes.
func (m *Mesh) IndexBytes() []byte {
	return common.RawBytes(m.VIndices)
}

func (m *Mesh) VertexBufferSize() int {
	return int(unsafe.Sizeof(m.Vertices[0])) * len(m.Vertices)
}

func (m *Mesh) IndexBufferSize() int {
	return int(unsafe.Sizeof(m.VIndices[0])) * len(m.VIndices)
}

func (m *Mesh) IndexCount() uint32 {
	return uint32(len(m.VIndices))
}

// NewQuadMesh builds the unit quad every scene instance renders, centered on
// the origin with distinct corner colors and a full texture sweep.
func NewQuadMesh() *Mesh {
	v := []Vertex{
		{ // [0] bottom left
			Pos:   [2]float32{-0.5, -0.5},
			Color: [3]float32{1, 0, 0},
			UV:    [2]float32{0, 1},
		},
		{ // [1] bottom right
			Pos:   [2]float32{0.5, -0.5},
			Color: [3]float32{0, 1, 0},
			UV:    [2]float32{1, 1},
		},
		{ // [2] top right
			Pos:   [2]float32{0.5, 0.5},
			Color: [3]float32{0, 0, 1},
			UV:    [2]float32{1, 0},
		},
		{ // [3] top left
			Pos:   [2]float32{-0.5, 0.5},
			Color: [3]float32{1, 1, 1},
			UV:    [2]float32{0, 0},
		},
	}

	id := []uint32{
		0, 1, 2,
		2, 3, 0,
	}

	return NewMesh(v, id)
}
