package renderer

import (
	"fmt"
	"log"
	"path/filepath"
	"time"
	"unsafe"

	vk "github.com/goki/vulkan"

	com "vulkan_render_base/common"
	"vulkan_render_base/model"
)

// INSTANCE_COUNT is the number of quad instances drawn per frame. Their model
// matrices live in the per frame storage buffer the vertex shader indexes
// with gl_InstanceIndex.
const INSTANCE_COUNT = 2

// INSTANCE_SPIN_RATE is how fast Animate spins the instances, in degrees per
// second. Neighbouring instances turn in opposite directions.
const INSTANCE_SPIN_RATE = float32(90)

// Scene owns everything drawn inside the render pass: the quad geometry in
// device local memory, the texture, the instance transforms and the per frame
// host visible buffers feeding the shaders. The frame loop above it neither
// knows nor cares what gets recorded between its barriers.
type Scene struct {
	dc  *com.Device
	drv com.Driver

	swapChain   *com.SwapChain
	descriptors *DescriptorProvisioner
	pipeline    *Pipeline
	texture     *Texture

	quad         *model.Mesh
	vertexBuffer *com.Buffer
	indexBuffer  *com.Buffer

	Instances     [INSTANCE_COUNT]model.Transform
	ViewTransform model.Transform
	Wireframe     bool

	uniformBuffers  [com.MAX_FRAMES_IN_FLIGHT]*com.Buffer
	uniformsMapped  [com.MAX_FRAMES_IN_FLIGHT]unsafe.Pointer
	instanceBuffers [com.MAX_FRAMES_IN_FLIGHT]*com.Buffer
	instancesMapped [com.MAX_FRAMES_IN_FLIGHT]unsafe.Pointer
}

func NewScene(dc *com.Device, drv com.Driver, swapChain *com.SwapChain, descriptors *DescriptorProvisioner, pipeline *Pipeline, transientPool vk.CommandPool, assetDir string) (*Scene, error) {
	s := &Scene{
		dc:            dc,
		drv:           drv,
		swapChain:     swapChain,
		descriptors:   descriptors,
		pipeline:      pipeline,
		quad:          model.NewQuadMesh(),
		ViewTransform: model.NewTransform(0, 0),
	}
	s.Instances[0] = model.NewTransform(-250, 0)
	s.Instances[1] = model.NewTransform(250, 0)
	for i := range s.Instances {
		s.Instances[i].Scale = [2]float32{200, 200}
	}

	texture, err := NewTexture(dc, drv, transientPool, filepath.Join(assetDir, "texture.png"))
	if err != nil {
		return nil, err
	}
	s.texture = texture

	if err := s.uploadMesh(transientPool); err != nil {
		s.Destroy()
		return nil, err
	}
	if err := s.createPerFrameBuffers(); err != nil {
		s.Destroy()
		return nil, err
	}

	ubos := make([]vk.Buffer, com.MAX_FRAMES_IN_FLIGHT)
	instanceBufs := make([]vk.Buffer, com.MAX_FRAMES_IN_FLIGHT)
	for i := 0; i < com.MAX_FRAMES_IN_FLIGHT; i++ {
		ubos[i] = s.uniformBuffers[i].Handle
		instanceBufs[i] = s.instanceBuffers[i].Handle
	}
	descriptors.WriteSets(ubos, instanceBufs, texture.Sampler, texture.View)
	return s, nil
}

// uploadMesh moves the quad vertices and indices into device local buffers.
// Both copies record into one command block, the staging buffers die as soon
// as the GPU is done with them.
func (s *Scene) uploadMesh(transientPool vk.CommandPool) error {
	vtxBytes := s.quad.VertexBytes()
	idxBytes := s.quad.IndexBytes()
	vtxSize := vk.DeviceSize(len(vtxBytes))
	idxSize := vk.DeviceSize(len(idxBytes))

	stgProps := vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit | vk.MemoryPropertyHostCoherentBit)
	vtxStg, err := com.CreateBuffer(s.dc, vtxSize, vk.BufferUsageFlags(vk.BufferUsageTransferSrcBit), stgProps)
	if err != nil {
		return fmt.Errorf("failed to create vertex staging buffer: %w", err)
	}
	defer com.DestroyBuffer(s.dc, vtxStg)
	if err := com.CopyToDeviceBuffer(s.dc, vtxStg, vtxBytes); err != nil {
		return err
	}
	idxStg, err := com.CreateBuffer(s.dc, idxSize, vk.BufferUsageFlags(vk.BufferUsageTransferSrcBit), stgProps)
	if err != nil {
		return fmt.Errorf("failed to create index staging buffer: %w", err)
	}
	defer com.DestroyBuffer(s.dc, idxStg)
	if err := com.CopyToDeviceBuffer(s.dc, idxStg, idxBytes); err != nil {
		return err
	}

	s.vertexBuffer, err = com.CreateBuffer(
		s.dc,
		vtxSize,
		vk.BufferUsageFlags(vk.BufferUsageTransferDstBit|vk.BufferUsageVertexBufferBit),
		vk.MemoryPropertyFlags(vk.MemoryPropertyDeviceLocalBit),
	)
	if err != nil {
		return fmt.Errorf("failed to create vertex buffer: %w", err)
	}
	s.indexBuffer, err = com.CreateBuffer(
		s.dc,
		idxSize,
		vk.BufferUsageFlags(vk.BufferUsageTransferDstBit|vk.BufferUsageIndexBufferBit),
		vk.MemoryPropertyFlags(vk.MemoryPropertyDeviceLocalBit),
	)
	if err != nil {
		return fmt.Errorf("failed to create index buffer: %w", err)
	}

	block, err := com.NewCommandBlock(s.drv, s.dc.Queue, transientPool)
	if err != nil {
		return err
	}
	vk.CmdCopyBuffer(block.Buffer(), vtxStg.Handle, s.vertexBuffer.Handle, 1, []vk.BufferCopy{
		{SrcOffset: 0, DstOffset: 0, Size: vtxSize},
	})
	vk.CmdCopyBuffer(block.Buffer(), idxStg.Handle, s.indexBuffer.Handle, 1, []vk.BufferCopy{
		{SrcOffset: 0, DstOffset: 0, Size: idxSize},
	})
	if err := block.SubmitAndWait(); err != nil {
		return fmt.Errorf("mesh upload failed: %w", err)
	}
	log.Printf("Uploaded quad mesh (%d vertex Byte, %d index Byte)", vtxSize, idxSize)
	return nil
}

// createPerFrameBuffers allocates the host visible uniform and storage
// buffers, one pair per frame in flight, and keeps them persistently mapped.
// Writing only ever touches the pair of the frame whose fence the loop
// already waited on.
func (s *Scene) createPerFrameBuffers() error {
	memProps := vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit | vk.MemoryPropertyHostCoherentBit)
	for i := 0; i < com.MAX_FRAMES_IN_FLIGHT; i++ {
		ubo, err := com.CreateBuffer(s.dc, model.SizeOfFrameUniforms(), vk.BufferUsageFlags(vk.BufferUsageUniformBufferBit), memProps)
		if err != nil {
			return fmt.Errorf("failed to create uniform buffer: %w", err)
		}
		s.uniformBuffers[i] = ubo
		s.uniformsMapped[i], err = ubo.Map(s.dc)
		if err != nil {
			return err
		}

		instanceBuf, err := com.CreateBuffer(s.dc, model.SizeOfInstances(INSTANCE_COUNT), vk.BufferUsageFlags(vk.BufferUsageStorageBufferBit), memProps)
		if err != nil {
			return fmt.Errorf("failed to create instance buffer: %w", err)
		}
		s.instanceBuffers[i] = instanceBuf
		s.instancesMapped[i], err = instanceBuf.Map(s.dc)
		if err != nil {
			return err
		}
	}
	return nil
}

// updateFrameData writes the view, projection and instance matrices for this
// frame into its mapped buffers.
func (s *Scene) updateFrameData(extent vk.Extent2D, frameIdx int32) {
	u := model.FrameUniforms{
		View:       s.ViewTransform.ViewMatrix(),
		Projection: model.OrthoProjection(float32(extent.Width), float32(extent.Height)),
	}
	vk.Memcopy(s.uniformsMapped[frameIdx], u.Bytes())

	instanceData := make([]byte, 0, model.SizeOfInstances(INSTANCE_COUNT))
	for i := range s.Instances {
		m := s.Instances[i].ModelMatrix()
		instanceData = append(instanceData, com.RawBytes(m.Slice())...)
	}
	vk.Memcopy(s.instancesMapped[frameIdx], instanceData)
}

// Record writes the render pass for one frame into the given command buffer.
// The buffer is already recording and the image already sits in
// ColorAttachmentOptimal, so all that happens here is render pass scope work.
func (s *Scene) Record(buffer vk.CommandBuffer, target *com.RenderTarget, frameIdx int32) error {
	s.updateFrameData(target.Extent, frameIdx)

	renderArea := vk.Rect2D{
		Offset: vk.Offset2D{X: 0, Y: 0},
		Extent: target.Extent,
	}
	clearValues := []vk.ClearValue{
		vk.NewClearValue([]float32{0.01, 0.01, 0.01, 1}), // color
	}
	renderPassInfo := vk.RenderPassBeginInfo{
		SType:           vk.StructureTypeRenderPassBeginInfo,
		RenderPass:      s.pipeline.RenderPass,
		Framebuffer:     s.swapChain.FrameBuffers[target.Index],
		RenderArea:      renderArea,
		ClearValueCount: uint32(len(clearValues)),
		PClearValues:    clearValues,
	}
	vk.CmdBeginRenderPass(buffer, &renderPassInfo, vk.SubpassContentsInline)

	pipeline := s.pipeline.Fill
	if s.Wireframe && s.pipeline.Wireframe != nil {
		pipeline = s.pipeline.Wireframe
	}
	vk.CmdBindPipeline(buffer, vk.PipelineBindPointGraphics, pipeline)

	viewport := []vk.Viewport{
		{
			X:        0,
			Y:        0,
			Width:    float32(target.Extent.Width),
			Height:   float32(target.Extent.Height),
			MinDepth: 0,
			MaxDepth: 1.0,
		},
	}
	vk.CmdSetViewport(buffer, 0, 1, viewport)

	scissor := []vk.Rect2D{
		{
			Offset: vk.Offset2D{X: 0, Y: 0},
			Extent: target.Extent,
		},
	}
	vk.CmdSetScissor(buffer, 0, 1, scissor)

	vk.CmdBindDescriptorSets(buffer, vk.PipelineBindPointGraphics, s.pipeline.Layout, 0, 1, []vk.DescriptorSet{s.descriptors.sets[frameIdx]}, 0, nil)
	vertBuffers := []vk.Buffer{s.vertexBuffer.Handle}
	offsets := []vk.DeviceSize{0}
	vk.CmdBindVertexBuffers(buffer, 0, uint32(len(vertBuffers)), vertBuffers, offsets)
	vk.CmdBindIndexBuffer(buffer, s.indexBuffer.Handle, 0, vk.IndexTypeUint32)
	vk.CmdDrawIndexed(buffer, s.quad.IndexCount(), INSTANCE_COUNT, 0, 0, 0)

	vk.CmdEndRenderPass(buffer)
	return nil
}

// Animate spins the quad instances, neighbours in opposite directions.
func (s *Scene) Animate(dt time.Duration) {
	spin := float32(dt.Seconds()) * INSTANCE_SPIN_RATE
	for i := range s.Instances {
		if i%2 == 0 {
			s.Instances[i].Rotation += spin
		} else {
			s.Instances[i].Rotation -= spin
		}
	}
}

// ToggleWireframe flips between the solid and wireframe pipeline. On gpus
// without wireframe support recording just stays on the solid one.
func (s *Scene) ToggleWireframe() {
	s.Wireframe = !s.Wireframe
	log.Printf("Wireframe rendering: %t", s.Wireframe)
}

func (s *Scene) Destroy() {
	for i := 0; i < com.MAX_FRAMES_IN_FLIGHT; i++ {
		if s.uniformBuffers[i] != nil {
			com.DestroyBuffer(s.dc, s.uniformBuffers[i])
		}
		if s.instanceBuffers[i] != nil {
			com.DestroyBuffer(s.dc, s.instanceBuffers[i])
		}
	}
	if s.vertexBuffer != nil {
		com.DestroyBuffer(s.dc, s.vertexBuffer)
	}
	if s.indexBuffer != nil {
		com.DestroyBuffer(s.dc, s.indexBuffer)
	}
	if s.texture != nil {
		s.texture.Destroy()
	}
}
