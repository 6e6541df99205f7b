package renderer

import (
	"fmt"
	"log"
	"time"

	vk "github.com/goki/vulkan"

	com "vulkan_render_base/common"
)

// FENCE_TIMEOUT bounds the wait on a virtual frame's fence. Three seconds of
// GPU silence on one frame means the device is lost or the driver hangs,
// neither of which the loop can ride out.
const FENCE_TIMEOUT = 3 * time.Second

// Options carries everything main decides about the engine before bring up.
type Options struct {
	Title   string
	Width   int32
	Height  int32
	Backend string

	AssetDir  string
	CacheFile string

	Wireframe  bool
	Validation bool
}

// frameRecorder fills the render pass of one frame. The loop hands it a
// recording command buffer whose image barriers are already in place.
type frameRecorder interface {
	Record(buffer vk.CommandBuffer, target *com.RenderTarget, frameIdx int32) error
}

// Core wires window, device, swapchain, frame synchronization and the scene
// into the frame loop. It owns bring up order and tear down order, the parts
// themselves stay ignorant of each other.
type Core struct {
	win    *com.Window
	device *com.Device
	drv    com.Driver

	swapChain *com.SwapChain
	frames    *com.FrameSync

	commandPool   vk.CommandPool
	transientPool vk.CommandPool

	descriptors *DescriptorProvisioner
	pipeline    *Pipeline
	scene       *Scene
	recorder    frameRecorder
}

type drawHandler func(time.Duration, *Core)

func NewCore(o Options) (*Core, error) {
	c := &Core{}
	if err := c.initialize(o); err != nil {
		c.Destroy()
		return nil, err
	}
	return c, nil
}

func (c *Core) initialize(o Options) error {
	backend, err := com.NewWindowBackend(o.Backend, o.Title, o.Width, o.Height)
	if err != nil {
		return err
	}
	c.win, err = com.NewWindow(o.Title, backend, o.Validation)
	if err != nil {
		backend.Destroy()
		return err
	}
	c.device, err = com.NewDeviceContext(c.win)
	if err != nil {
		return err
	}
	c.drv = com.NewDriver(c.device, *c.win.Surf)

	fbWidth, fbHeight := c.win.FramebufferSize()
	c.swapChain, err = com.NewSwapChain(c.drv, c.device.Gpu.QueueFamily, *c.win.Surf, fbWidth, fbHeight)
	if err != nil {
		return err
	}

	// The frame pool hands out the long lived per frame buffers and needs
	// individual resets, the transient pool only ever sees one shot uploads.
	c.commandPool, err = c.device.CreateCommandPool(vk.CommandPoolCreateFlags(vk.CommandPoolCreateResetCommandBufferBit))
	if err != nil {
		return err
	}
	c.transientPool, err = c.device.CreateCommandPool(vk.CommandPoolCreateFlags(vk.CommandPoolCreateTransientBit))
	if err != nil {
		return err
	}
	c.frames, err = com.NewFrameSync(c.drv, c.commandPool)
	if err != nil {
		return err
	}

	c.descriptors, err = NewDescriptorProvisioner(c.device.D)
	if err != nil {
		return err
	}
	c.pipeline, err = NewPipeline(c.device, c.swapChain.Format.Format, c.descriptors.setLayout, o.AssetDir, o.CacheFile)
	if err != nil {
		return err
	}
	if err := c.swapChain.CreateFrameBuffers(c.pipeline.RenderPass); err != nil {
		return err
	}

	c.scene, err = NewScene(c.device, c.drv, c.swapChain, c.descriptors, c.pipeline, c.transientPool, o.AssetDir)
	if err != nil {
		return err
	}
	c.scene.Wireframe = o.Wireframe
	c.recorder = c.scene

	c.win.SetKeyCallback(func(key int) {
		if key == com.KEY_W {
			c.scene.ToggleWireframe()
		}
	})
	log.Println("Render core initialized")
	return nil
}

// Scene exposes the drawable world for the draw handler.
func (c *Core) Scene() *Scene {
	return c.scene
}

// Loop runs the event and render loop until the window wants to close. The
// draw handler runs once per rendered frame before recording starts, with the
// time since the previous frame. While the window is minimized the loop parks
// on the event queue instead of spinning.
func (c *Core) Loop(dh drawHandler) error {
	t0 := time.Now()
	last := t0
	frames := 0
	for !c.win.ShouldClose() {
		c.win.PollEvents()

		fbWidth, fbHeight := c.win.FramebufferSize()
		if fbWidth <= 0 || fbHeight <= 0 {
			c.win.WaitEvents()
			continue
		}

		now := time.Now()
		dh(now.Sub(last), c)
		last = now

		if err := c.drawFrame(fbWidth, fbHeight); err != nil {
			return err
		}
		frames++
	}
	dt := time.Since(t0)
	log.Printf("Elapsed: %v, rough avg fps: %v fps", dt, float64(frames)/dt.Seconds())
	return nil
}

// drawFrame renders and presents a single frame. Acquire failures and stale
// framebuffer sizes lead to a swapchain recreate and an abandoned frame,
// without touching the slot's fence, so the next attempt starts clean.
func (c *Core) drawFrame(fbWidth int32, fbHeight int32) error {
	slot := c.frames.Current()
	sizeChanged := uint32(fbWidth) != c.swapChain.Extend.Width || uint32(fbHeight) != c.swapChain.Extend.Height

	target, err := c.swapChain.AcquireNextImage(slot.DrawSem)
	if err != nil {
		return err
	}
	if sizeChanged || target == nil {
		return c.recreateSwapChain(fbWidth, fbHeight)
	}

	if err := c.drv.WaitForFence(slot.DrawnFen, FENCE_TIMEOUT); err != nil {
		return fmt.Errorf("frame fence wait failed: %w", err)
	}
	if err := c.drv.ResetFence(slot.DrawnFen); err != nil {
		return err
	}

	if err := c.recordFrame(slot, target); err != nil {
		return err
	}

	submitInfo := vk.SubmitInfo{
		SType:              vk.StructureTypeSubmitInfo,
		WaitSemaphoreCount: 1,
		PWaitSemaphores:    []vk.Semaphore{slot.DrawSem},
		PWaitDstStageMask: []vk.PipelineStageFlags{
			vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit),
		},
		CommandBufferCount:   1,
		PCommandBuffers:      []vk.CommandBuffer{slot.CmdBuf},
		SignalSemaphoreCount: 1,
		PSignalSemaphores:    []vk.Semaphore{slot.PresentSem},
	}
	if err := c.drv.QueueSubmit(c.device.Queue, submitInfo, slot.DrawnFen); err != nil {
		return err
	}

	// The next virtual frame starts regardless of how presenting goes, its
	// resources are independent of this frame's fate.
	c.frames.Advance()

	usable, err := c.swapChain.Present(c.device.Queue, slot.PresentSem)
	if err != nil {
		return err
	}
	fbWidth, fbHeight = c.win.FramebufferSize()
	resized := uint32(fbWidth) != c.swapChain.Extend.Width || uint32(fbHeight) != c.swapChain.Extend.Height
	if !usable || resized {
		return c.recreateSwapChain(fbWidth, fbHeight)
	}
	return nil
}

// recordFrame records the full command buffer of one frame: the transition of
// the acquired image into ColorAttachmentOptimal, the scene's render pass and
// the transition to PresentSrc.
func (c *Core) recordFrame(slot *com.FrameSlot, target *com.RenderTarget) error {
	if err := c.drv.BeginCommandBuffer(slot.CmdBuf, true); err != nil {
		return err
	}

	toColor := c.swapChain.BaseBarrier()
	toColor.OldLayout = vk.ImageLayoutUndefined
	toColor.NewLayout = vk.ImageLayoutColorAttachmentOptimal
	toColor.SrcAccessMask = 0
	toColor.DstAccessMask = vk.AccessFlags(vk.AccessColorAttachmentWriteBit)
	c.drv.CmdPipelineBarrier(
		slot.CmdBuf,
		vk.PipelineStageFlags(vk.PipelineStageTopOfPipeBit),
		vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit),
		toColor,
	)

	if err := c.recorder.Record(slot.CmdBuf, target, c.frames.Index()); err != nil {
		return err
	}

	toPresent := c.swapChain.BaseBarrier()
	toPresent.OldLayout = vk.ImageLayoutColorAttachmentOptimal
	toPresent.NewLayout = vk.ImageLayoutPresentSrc
	toPresent.SrcAccessMask = vk.AccessFlags(vk.AccessColorAttachmentWriteBit)
	toPresent.DstAccessMask = 0
	c.drv.CmdPipelineBarrier(
		slot.CmdBuf,
		vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit),
		vk.PipelineStageFlags(vk.PipelineStageBottomOfPipeBit),
		toPresent,
	)

	return c.drv.EndCommandBuffer(slot.CmdBuf)
}

func (c *Core) recreateSwapChain(fbWidth int32, fbHeight int32) error {
	ok, err := c.swapChain.Recreate(fbWidth, fbHeight)
	if err != nil {
		return err
	}
	if !ok {
		// Zero size window, the loop parks on events until that changes.
		return nil
	}
	return c.swapChain.CreateFrameBuffers(c.pipeline.RenderPass)
}

// Destroy tears the core down in reverse bring up order. Safe to call on a
// partially initialized core, whatever exists gets released.
func (c *Core) Destroy() {
	if c.drv != nil {
		if err := c.drv.DeviceWaitIdle(); err != nil {
			log.Printf("Device wait before teardown failed: %v", err)
		}
	}
	if c.scene != nil {
		c.scene.Destroy()
	}
	if c.pipeline != nil {
		c.pipeline.Destroy()
	}
	if c.descriptors != nil {
		c.descriptors.Destroy()
	}
	if c.frames != nil {
		c.frames.Destroy(c.drv, c.commandPool)
	}
	if c.device != nil {
		vk.DestroyCommandPool(c.device.D, c.transientPool, nil)
		vk.DestroyCommandPool(c.device.D, c.commandPool, nil)
	}
	if c.swapChain != nil {
		c.swapChain.Destroy()
	}
	if c.device != nil {
		c.device.Destroy()
	}
	if c.win != nil {
		c.win.Destroy()
	}
}
