package model

import (
	"unsafe"

	vk "github.com/goki/vulkan"
	lm "github.com/xlab/linmath"

	"vulkan_render_base/common"
)

// FrameUniforms is the per frame uniform block the vertex shader reads at
// binding 0. Layout mirrors the shader: two tightly packed column major mat4.
type FrameUniforms struct {
	View       lm.Mat4x4
	Projection lm.Mat4x4
}

func SizeOfFrameUniforms() vk.DeviceSize {
	return vk.DeviceSize(unsafe.Sizeof(lm.Mat4x4{}) * 2)
}

// SizeOfInstances returns the byte size of a storage buffer holding one model
// matrix per instance.
func SizeOfInstances(count int) vk.DeviceSize {
	return vk.DeviceSize(unsafe.Sizeof(lm.Mat4x4{}) * uintptr(count))
}

func (u *FrameUniforms) Bytes() []byte {
	return append(common.RawBytes(u.View.Slice()), common.RawBytes(u.Projection.Slice())...)
}

// OrthoProjection maps world space 1:1 onto a framebuffer of the given size,
// origin at the center, targeting Vulkan's canonical view volume which spans
// from (-1,-1,0) to (1,1,1). World Y points up, so the Y scale is negated to
// land on Vulkan's downward pointing clip space Y.
func OrthoProjection(width float32, height float32) lm.Mat4x4 {
	var m lm.Mat4x4
	m.Identity()
	m[0][0] = 2 / width
	m[1][1] = -2 / height
	m[2][2] = 0.5
	m[3][2] = 0.5
	return m
}
