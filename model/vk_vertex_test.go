package model

import (
	"testing"

	vk "github.com/goki/vulkan"
)

func TestVertexBindingDescription(t *testing.T) {
	b := GetVertexBindingDescription()
	if b.Binding != 0 {
		t.Errorf("Vertices should feed from binding 0, got %d", b.Binding)
	}
	if b.Stride != 28 {
		t.Errorf("Vertex stride should be 28 bytes (2+3+2 float32), got %d", b.Stride)
	}
	if b.InputRate != vk.VertexInputRateVertex {
		t.Errorf("Vertices should advance per vertex, got input rate %d", b.InputRate)
	}
}

func TestVertexAttributeDescriptions(t *testing.T) {
	attrs := GetVertexAttributeDescriptions()
	if len(attrs) != 3 {
		t.Errorf("Expected 3 vertex attributes, got %d", len(attrs))
	}
	for i, a := range attrs {
		if a.Location != uint32(i) {
			t.Errorf("Attribute %d should use location %d, got %d", i, i, a.Location)
		}
		if a.Binding != 0 {
			t.Errorf("Attribute %d should read binding 0, got %d", i, a.Binding)
		}
	}
	if attrs[0].Format != vk.FormatR32g32Sfloat || attrs[0].Offset != 0 {
		t.Errorf("Position should be 2x float32 at offset 0, got format %d offset %d", attrs[0].Format, attrs[0].Offset)
	}
	if attrs[1].Format != vk.FormatR32g32b32Sfloat || attrs[1].Offset != 8 {
		t.Errorf("Color should be 3x float32 at offset 8, got format %d offset %d", attrs[1].Format, attrs[1].Offset)
	}
	if attrs[2].Format != vk.FormatR32g32Sfloat || attrs[2].Offset != 20 {
		t.Errorf("UV should be 2x float32 at offset 20, got format %d offset %d", attrs[2].Format, attrs[2].Offset)
	}
}

func TestQuadMesh(t *testing.T) {
	q := NewQuadMesh()
	if len(q.Vertices) != 4 {
		t.Errorf("Quad should consist of 4 vertices, got %d", len(q.Vertices))
	}
	if q.IndexCount() != 6 {
		t.Errorf("Quad should be drawn as 2 triangles = 6 indices, got %d", q.IndexCount())
	}
	for i, v := range q.Vertices {
		if v.Pos[0] != 0.5 && v.Pos[0] != -0.5 {
			t.Errorf("Quad vertex %d should sit on +-0.5 in x, got %f", i, v.Pos[0])
		}
		if v.Pos[1] != 0.5 && v.Pos[1] != -0.5 {
			t.Errorf("Quad vertex %d should sit on +-0.5 in y, got %f", i, v.Pos[1])
		}
	}
	for i, id := range q.VIndices {
		if id > 3 {
			t.Errorf("Index %d points past the quads vertices: %d", i, id)
		}
	}

	if q.VertexBufferSize() != 4*28 {
		t.Errorf("Quad vertex buffer should hold %d bytes, got %d", 4*28, q.VertexBufferSize())
	}
	if q.IndexBufferSize() != 6*4 {
		t.Errorf("Quad index buffer should hold %d bytes, got %d", 6*4, q.IndexBufferSize())
	}
	if len(q.VertexBytes()) != q.VertexBufferSize() {
		t.Errorf("Raw vertex bytes (%d) should match the buffer size (%d)", len(q.VertexBytes()), q.VertexBufferSize())
	}
	if len(q.IndexBytes()) != q.IndexBufferSize() {
		t.Errorf("Raw index bytes (%d) should match the buffer size (%d)", len(q.IndexBytes()), q.IndexBufferSize())
	}
}

func TestFrameUniforms(t *testing.T) {
	if SizeOfFrameUniforms() != 128 {
		t.Errorf("Two mat4 should occupy 128 bytes, got %d", SizeOfFrameUniforms())
	}

	var u FrameUniforms
	u.View.Identity()
	u.Projection.Identity()
	raw := u.Bytes()
	if len(raw) != 128 {
		t.Errorf("Uniform bytes should span 128 bytes, got %d", len(raw))
	}
	// 1.0 as little endian float32.
	one := [4]byte{0x00, 0x00, 0x80, 0x3f}
	for i := 0; i < 4; i++ {
		if raw[i] != one[i] {
			t.Errorf("View matrix bytes should start with 1.0, byte %d was %#x", i, raw[i])
		}
		if raw[64+i] != one[i] {
			t.Errorf("Projection matrix bytes should start with 1.0 at offset 64, byte %d was %#x", i, raw[64+i])
		}
	}
}

func TestOrthoProjection(t *testing.T) {
	m := OrthoProjection(800, 600)
	if !almostEq(m[0][0], 2.0/800) || !almostEq(m[1][1], -2.0/600) {
		t.Errorf("Projection should scale world to clip space, got [%f %f]", m[0][0], m[1][1])
	}

	// The framebuffer corner (400, 300) in world space has to land on the
	// clip space corner (1, -1), Y flipped for Vulkan.
	x := m[0][0] * 400
	y := m[1][1] * 300
	if !almostEq(x, 1) || !almostEq(y, -1) {
		t.Errorf("World corner should map to clip corner [1 -1], got [%f %f]", x, y)
	}

	// z = 0 geometry has to stay inside Vulkan's 0..1 depth range.
	z := m[3][2]
	if z < 0 || z > 1 {
		t.Errorf("Flat geometry should project into the 0..1 depth range, got %f", z)
	}
}
