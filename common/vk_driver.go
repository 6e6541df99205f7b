package common

import (
	"math"
	"time"

	vk "github.com/goki/vulkan"
)

// Driver narrows the vulkan API down to the calls the presentation layer
// issues at runtime. This should not hide or alter behavior and only allow
// for more tidy core code by tweaking signatures. Production code runs on
// the device backed implementation below, tests script the interface to
// drive swapchain and loop behavior without a GPU attached. Methods keep a
// raw vk.Result only where callers dispatch on individual result values.
type Driver interface {
	SurfaceCapabilities() (vk.SurfaceCapabilities, error)
	SurfaceFormats() ([]vk.SurfaceFormat, error)

	CreateSwapchain(info *vk.SwapchainCreateInfo) (vk.Swapchain, error)
	DestroySwapchain(swapChain vk.Swapchain)
	SwapchainImages(swapChain vk.Swapchain) ([]vk.Image, error)
	AcquireNextImage(swapChain vk.Swapchain, signalSem vk.Semaphore) (uint32, vk.Result)
	QueuePresent(queue vk.Queue, info *vk.PresentInfo) vk.Result

	CreateImageView(info *vk.ImageViewCreateInfo) (vk.ImageView, error)
	DestroyImageView(view vk.ImageView)
	CreateFramebuffer(info *vk.FramebufferCreateInfo) (vk.Framebuffer, error)
	DestroyFramebuffer(buffer vk.Framebuffer)

	CreateSemaphore() (vk.Semaphore, error)
	DestroySemaphore(sem vk.Semaphore)
	CreateFence(signaled bool) (vk.Fence, error)
	DestroyFence(fen vk.Fence)
	WaitForFence(fen vk.Fence, timeout time.Duration) error
	ResetFence(fen vk.Fence) error

	AllocateCommandBuffers(pool vk.CommandPool, count uint32) ([]vk.CommandBuffer, error)
	FreeCommandBuffers(pool vk.CommandPool, buffers []vk.CommandBuffer)
	BeginCommandBuffer(buffer vk.CommandBuffer, oneTimeSubmit bool) error
	EndCommandBuffer(buffer vk.CommandBuffer) error
	CmdPipelineBarrier(buffer vk.CommandBuffer, srcStage, dstStage vk.PipelineStageFlags, barrier vk.ImageMemoryBarrier)
	QueueSubmit(queue vk.Queue, info vk.SubmitInfo, fen vk.Fence) error

	DeviceWaitIdle() error
}

// NewDriver binds the Driver interface to a logical device and the surface it
// presents to.
func NewDriver(dc *Device, surface vk.Surface) Driver {
	return &vkDriver{dc: dc, surface: surface}
}

type vkDriver struct {
	dc      *Device
	surface vk.Surface
}

func (d *vkDriver) SurfaceCapabilities() (vk.SurfaceCapabilities, error) {
	var caps vk.SurfaceCapabilities
	if err := NewError(vk.GetPhysicalDeviceSurfaceCapabilities(d.dc.Gpu.PD, d.surface, &caps)); err != nil {
		return caps, err
	}
	caps.Deref()
	caps.CurrentExtent.Deref()
	caps.MinImageExtent.Deref()
	caps.MaxImageExtent.Deref()
	return caps, nil
}

func (d *vkDriver) SurfaceFormats() ([]vk.SurfaceFormat, error) {
	formatCount := uint32(0)
	if err := NewError(vk.GetPhysicalDeviceSurfaceFormats(d.dc.Gpu.PD, d.surface, &formatCount, nil)); err != nil {
		return nil, err
	}
	formats := make([]vk.SurfaceFormat, formatCount)
	if err := NewError(vk.GetPhysicalDeviceSurfaceFormats(d.dc.Gpu.PD, d.surface, &formatCount, formats)); err != nil {
		return nil, err
	}
	for i := range formats {
		formats[i].Deref()
	}
	return formats, nil
}

func (d *vkDriver) CreateSwapchain(info *vk.SwapchainCreateInfo) (vk.Swapchain, error) {
	var sc vk.Swapchain
	if err := NewError(vk.CreateSwapchain(d.dc.D, info, nil, &sc)); err != nil {
		return nil, err
	}
	return sc, nil
}

func (d *vkDriver) DestroySwapchain(swapChain vk.Swapchain) {
	vk.DestroySwapchain(d.dc.D, swapChain, nil)
}

func (d *vkDriver) SwapchainImages(swapChain vk.Swapchain) ([]vk.Image, error) {
	imgCount := uint32(0)
	if err := NewError(vk.GetSwapchainImages(d.dc.D, swapChain, &imgCount, nil)); err != nil {
		return nil, err
	}
	images := make([]vk.Image, imgCount)
	if err := NewError(vk.GetSwapchainImages(d.dc.D, swapChain, &imgCount, images)); err != nil {
		return nil, err
	}
	return images, nil
}

func (d *vkDriver) AcquireNextImage(swapChain vk.Swapchain, signalSem vk.Semaphore) (uint32, vk.Result) {
	imgIdx := uint32(0)
	result := vk.AcquireNextImage(d.dc.D, swapChain, math.MaxUint64, signalSem, nil, &imgIdx)
	return imgIdx, result
}

func (d *vkDriver) QueuePresent(queue vk.Queue, info *vk.PresentInfo) vk.Result {
	return vk.QueuePresent(queue, info)
}

func (d *vkDriver) CreateImageView(info *vk.ImageViewCreateInfo) (vk.ImageView, error) {
	var iv vk.ImageView
	if err := NewError(vk.CreateImageView(d.dc.D, info, nil, &iv)); err != nil {
		return nil, err
	}
	return iv, nil
}

func (d *vkDriver) DestroyImageView(view vk.ImageView) {
	vk.DestroyImageView(d.dc.D, view, nil)
}

func (d *vkDriver) CreateFramebuffer(info *vk.FramebufferCreateInfo) (vk.Framebuffer, error) {
	var fb vk.Framebuffer
	if err := NewError(vk.CreateFramebuffer(d.dc.D, info, nil, &fb)); err != nil {
		return nil, err
	}
	return fb, nil
}

func (d *vkDriver) DestroyFramebuffer(buffer vk.Framebuffer) {
	vk.DestroyFramebuffer(d.dc.D, buffer, nil)
}

func (d *vkDriver) CreateSemaphore() (vk.Semaphore, error) {
	semInfo := vk.SemaphoreCreateInfo{
		SType: vk.StructureTypeSemaphoreCreateInfo,
	}
	var sem vk.Semaphore
	if err := NewError(vk.CreateSemaphore(d.dc.D, &semInfo, nil, &sem)); err != nil {
		return nil, err
	}
	return sem, nil
}

func (d *vkDriver) DestroySemaphore(sem vk.Semaphore) {
	vk.DestroySemaphore(d.dc.D, sem, nil)
}

func (d *vkDriver) CreateFence(signaled bool) (vk.Fence, error) {
	fenInfo := vk.FenceCreateInfo{
		SType: vk.StructureTypeFenceCreateInfo,
	}
	if signaled {
		fenInfo.Flags = vk.FenceCreateFlags(vk.FenceCreateSignaledBit)
	}
	var fen vk.Fence
	if err := NewError(vk.CreateFence(d.dc.D, &fenInfo, nil, &fen)); err != nil {
		return nil, err
	}
	return fen, nil
}

func (d *vkDriver) DestroyFence(fen vk.Fence) {
	vk.DestroyFence(d.dc.D, fen, nil)
}

func (d *vkDriver) WaitForFence(fen vk.Fence, timeout time.Duration) error {
	return NewError(vk.WaitForFences(d.dc.D, 1, []vk.Fence{fen}, vk.True, uint64(timeout.Nanoseconds())))
}

func (d *vkDriver) ResetFence(fen vk.Fence) error {
	return NewError(vk.ResetFences(d.dc.D, 1, []vk.Fence{fen}))
}

func (d *vkDriver) AllocateCommandBuffers(pool vk.CommandPool, count uint32) ([]vk.CommandBuffer, error) {
	cbAllocateInfo := vk.CommandBufferAllocateInfo{
		SType:              vk.StructureTypeCommandBufferAllocateInfo,
		PNext:              nil,
		CommandPool:        pool,
		Level:              vk.CommandBufferLevelPrimary,
		CommandBufferCount: count,
	}
	buffers := make([]vk.CommandBuffer, count)
	if err := NewError(vk.AllocateCommandBuffers(d.dc.D, &cbAllocateInfo, buffers)); err != nil {
		return nil, err
	}
	return buffers, nil
}

func (d *vkDriver) FreeCommandBuffers(pool vk.CommandPool, buffers []vk.CommandBuffer) {
	vk.FreeCommandBuffers(d.dc.D, pool, uint32(len(buffers)), buffers)
}

func (d *vkDriver) BeginCommandBuffer(buffer vk.CommandBuffer, oneTimeSubmit bool) error {
	beginInfo := vk.CommandBufferBeginInfo{
		SType: vk.StructureTypeCommandBufferBeginInfo,
	}
	if oneTimeSubmit {
		beginInfo.Flags = vk.CommandBufferUsageFlags(vk.CommandBufferUsageOneTimeSubmitBit)
	}
	return NewError(vk.BeginCommandBuffer(buffer, &beginInfo))
}

func (d *vkDriver) EndCommandBuffer(buffer vk.CommandBuffer) error {
	return NewError(vk.EndCommandBuffer(buffer))
}

func (d *vkDriver) CmdPipelineBarrier(buffer vk.CommandBuffer, srcStage, dstStage vk.PipelineStageFlags, barrier vk.ImageMemoryBarrier) {
	vk.CmdPipelineBarrier(buffer, srcStage, dstStage, 0, 0, nil, 0, nil, 1, []vk.ImageMemoryBarrier{barrier})
}

func (d *vkDriver) QueueSubmit(queue vk.Queue, info vk.SubmitInfo, fen vk.Fence) error {
	return NewError(vk.QueueSubmit(queue, 1, []vk.SubmitInfo{info}, fen))
}

func (d *vkDriver) DeviceWaitIdle() error {
	return NewError(vk.DeviceWaitIdle(d.dc.D))
}
