package common

import (
	"errors"
	"fmt"
	"log"
	"math"

	vk "github.com/goki/vulkan"
)

// MIN_IMAGE_COUNT is the number of swapchain images requested. The surface
// capabilities may still push the effective count up or down.
const MIN_IMAGE_COUNT = 3

// RenderTarget hands an acquired swapchain image to the frame recording side
// together with everything needed to render into it.
type RenderTarget struct {
	Index  uint32
	Image  vk.Image
	View   vk.ImageView
	Extent vk.Extent2D
}

// SwapChain owns the presentation images of a surface. Its lifetime is
// decoupled from frame recording: Recreate swaps the backing handle while
// callers keep holding the same SwapChain. At most one image is acquired at
// any time, Present consumes the acquisition in every outcome.
type SwapChain struct {
	drv         Driver
	surface     vk.Surface
	queueFamily uint32

	Handle      vk.Swapchain
	Format      vk.SurfaceFormat
	PresentMode vk.PresentMode
	Extend      vk.Extent2D

	Images   []vk.Image
	ImgViews []vk.ImageView

	FrameBuffers []vk.Framebuffer

	acquired *uint32
}

// NewSwapChain negotiates the surface format once, fixes FIFO as present
// mode and builds the initial chain at the given framebuffer size.
func NewSwapChain(drv Driver, queueFamily uint32, surface vk.Surface, width int32, height int32) (*SwapChain, error) {
	sc := &SwapChain{
		drv:         drv,
		surface:     surface,
		queueFamily: queueFamily,
	}
	formats, err := drv.SurfaceFormats()
	if err != nil {
		return nil, err
	}
	if len(formats) == 0 {
		return nil, errors.New("surface reports no formats")
	}
	sc.Format = selectSurfaceFormat(formats)
	// FIFO is the only mode the spec guarantees and it never tears.
	sc.PresentMode = vk.PresentModeFifo

	ok, err := sc.Recreate(width, height)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("initial swap chain creation rejected for size %dx%d", width, height)
	}
	return sc, nil
}

// selectSurfaceFormat picks sRGB in RGBA order if available, then BGRA,
// before falling back to whatever the driver lists first.
func selectSurfaceFormat(formats []vk.SurfaceFormat) vk.SurfaceFormat {
	preferred := []vk.SurfaceFormat{
		{Format: vk.FormatR8g8b8a8Srgb, ColorSpace: vk.ColorSpaceSrgbNonlinear},
		{Format: vk.FormatB8g8r8a8Srgb, ColorSpace: vk.ColorSpaceSrgbNonlinear},
	}
	for _, want := range preferred {
		for _, af := range formats {
			if af.Format == want.Format && af.ColorSpace == want.ColorSpace {
				return af
			}
		}
	}
	fallbackFormat := formats[0]
	log.Printf("Did not find prefered SurfaceFormat, selecting first one available. (%v)", fallbackFormat)
	return fallbackFormat
}

// Recreate builds a fresh swapchain for the requested framebuffer size,
// chaining the old handle so in flight presents finish cleanly. A size of
// zero or less is reported as a plain false with nothing touched, the
// window is simply minimized. Framebuffers are gone afterwards and need a
// new CreateFrameBuffers pass.
func (sc *SwapChain) Recreate(width int32, height int32) (bool, error) {
	if width <= 0 || height <= 0 {
		return false, nil
	}
	caps, err := sc.drv.SurfaceCapabilities()
	if err != nil {
		return false, err
	}
	extent := chooseExtent(caps, width, height)
	imgCount := chooseImageCount(caps)

	if err := sc.drv.DeviceWaitIdle(); err != nil {
		return false, err
	}

	oldHandle := sc.Handle
	createInfo := &vk.SwapchainCreateInfo{
		SType:                 vk.StructureTypeSwapchainCreateInfo,
		PNext:                 nil,
		Flags:                 0,
		Surface:               sc.surface,
		MinImageCount:         imgCount,
		ImageFormat:           sc.Format.Format,
		ImageColorSpace:       sc.Format.ColorSpace,
		ImageExtent:           extent,
		ImageArrayLayers:      1,
		ImageUsage:            vk.ImageUsageFlags(vk.ImageUsageColorAttachmentBit),
		ImageSharingMode:      vk.SharingModeExclusive,
		QueueFamilyIndexCount: 0,
		PQueueFamilyIndices:   nil,
		PreTransform:          caps.CurrentTransform,
		CompositeAlpha:        vk.CompositeAlphaOpaqueBit,
		PresentMode:           sc.PresentMode,
		Clipped:               vk.True,
		OldSwapchain:          oldHandle,
	}
	handle, err := sc.drv.CreateSwapchain(createInfo)
	if err != nil {
		return false, err
	}
	sc.destroyDerivatives()
	if oldHandle != nil {
		sc.drv.DestroySwapchain(oldHandle)
	}
	sc.Handle = handle
	sc.Extend = extent
	sc.acquired = nil

	if err := sc.readImages(); err != nil {
		return false, err
	}
	if err := sc.createImageViews(); err != nil {
		return false, err
	}
	log.Printf("Successfully created swap chain [%dx%d] with %d images", extent.Width, extent.Height, len(sc.Images))
	return true, nil
}

// chooseExtent resolves the pixel size of the chain. Drivers reporting the
// 0xFFFFFFFF sentinel leave the choice to us, everything else is taken
// verbatim.
func chooseExtent(caps vk.SurfaceCapabilities, width int32, height int32) vk.Extent2D {
	if caps.CurrentExtent.Width < math.MaxUint32 && caps.CurrentExtent.Height < math.MaxUint32 {
		return caps.CurrentExtent
	}
	return vk.Extent2D{
		Width:  min(max(uint32(width), caps.MinImageExtent.Width), caps.MaxImageExtent.Width),
		Height: min(max(uint32(height), caps.MinImageExtent.Height), caps.MaxImageExtent.Height),
	}
}

// chooseImageCount asks for triple buffering within the surface limits. A
// MaxImageCount below MinImageCount means the surface reports no upper
// bound.
func chooseImageCount(caps vk.SurfaceCapabilities) uint32 {
	if caps.MaxImageCount < caps.MinImageCount {
		return max(uint32(MIN_IMAGE_COUNT), caps.MinImageCount)
	}
	return min(max(uint32(MIN_IMAGE_COUNT), caps.MinImageCount), caps.MaxImageCount)
}

func (sc *SwapChain) readImages() error {
	images, err := sc.drv.SwapchainImages(sc.Handle)
	if err != nil {
		return fmt.Errorf("Failed to get Swapchain Images: %w", err)
	}
	sc.Images = images
	return nil
}

func (sc *SwapChain) createImageViews() error {
	sc.ImgViews = make([]vk.ImageView, len(sc.Images))
	for i := range sc.Images {
		createInfo := &vk.ImageViewCreateInfo{
			SType:    vk.StructureTypeImageViewCreateInfo,
			PNext:    nil,
			Flags:    0,
			Image:    sc.Images[i],
			ViewType: vk.ImageViewType2d,
			Format:   sc.Format.Format,
			Components: vk.ComponentMapping{
				R: vk.ComponentSwizzleIdentity,
				G: vk.ComponentSwizzleIdentity,
				B: vk.ComponentSwizzleIdentity,
				A: vk.ComponentSwizzleIdentity,
			},
			SubresourceRange: vk.ImageSubresourceRange{
				AspectMask:     vk.ImageAspectFlags(vk.ImageAspectColorBit),
				BaseMipLevel:   0,
				LevelCount:     1,
				BaseArrayLayer: 0,
				LayerCount:     1,
			},
		}
		view, err := sc.drv.CreateImageView(createInfo)
		if err != nil {
			return err
		}
		sc.ImgViews[i] = view
	}
	return nil
}

// CreateFrameBuffers builds one framebuffer per image view against the given
// render pass. Must be rerun after every successful Recreate.
func (sc *SwapChain) CreateFrameBuffers(renderPass vk.RenderPass) error {
	sc.FrameBuffers = make([]vk.Framebuffer, len(sc.ImgViews))
	for i := range sc.ImgViews {
		framebufferInfo := &vk.FramebufferCreateInfo{
			SType:           vk.StructureTypeFramebufferCreateInfo,
			PNext:           nil,
			Flags:           0,
			RenderPass:      renderPass,
			AttachmentCount: 1,
			PAttachments:    []vk.ImageView{sc.ImgViews[i]},
			Width:           sc.Extend.Width,
			Height:          sc.Extend.Height,
			Layers:          1,
		}
		fb, err := sc.drv.CreateFramebuffer(framebufferInfo)
		if err != nil {
			return fmt.Errorf("failed to create frame buffer [%d]: %w", i, err)
		}
		sc.FrameBuffers[i] = fb
	}
	log.Printf("Successfully created %d frame buffers", len(sc.FrameBuffers))
	return nil
}

// AcquireNextImage blocks until the driver hands out the next presentation
// image, signaling the given semaphore once it is usable. A nil target with
// nil error means the chain is out of date and needs a Recreate before any
// rendering can happen.
func (sc *SwapChain) AcquireNextImage(signalSem vk.Semaphore) (*RenderTarget, error) {
	if sc.acquired != nil {
		return nil, errors.New("image already acquired without a present in between")
	}
	imgIdx, result := sc.drv.AcquireNextImage(sc.Handle, signalSem)
	switch result {
	case vk.ErrorOutOfDate:
		return nil, nil
	case vk.Success, vk.Suboptimal:
		sc.acquired = &imgIdx
		return &RenderTarget{
			Index:  imgIdx,
			Image:  sc.Images[imgIdx],
			View:   sc.ImgViews[imgIdx],
			Extent: sc.Extend,
		}, nil
	default:
		return nil, fmt.Errorf("failed to acquire image, AcquireNextImage(...) result code: %d", result)
	}
}

// BaseBarrier returns an image barrier prefilled for the currently acquired
// image, covering its single color layer on the render queue family. Layouts
// and access masks are left for the caller to fill in.
func (sc *SwapChain) BaseBarrier() vk.ImageMemoryBarrier {
	if sc.acquired == nil {
		log.Panicf("BaseBarrier requested without an acquired image")
	}
	return vk.ImageMemoryBarrier{
		SType:               vk.StructureTypeImageMemoryBarrier,
		SrcQueueFamilyIndex: sc.queueFamily,
		DstQueueFamilyIndex: sc.queueFamily,
		Image:               sc.Images[*sc.acquired],
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask:     vk.ImageAspectFlags(vk.ImageAspectColorBit),
			BaseMipLevel:   0,
			LevelCount:     1,
			BaseArrayLayer: 0,
			LayerCount:     1,
		},
	}
}

// Present hands the acquired image to the presentation engine after the wait
// semaphore signals. The acquisition is consumed whatever happens. The bool
// reports whether the chain stayed usable, an out of date surface is plain
// false so the caller can recreate and go on.
func (sc *SwapChain) Present(queue vk.Queue, waitSem vk.Semaphore) (bool, error) {
	if sc.acquired == nil {
		return false, errors.New("no image acquired to present")
	}
	imgIdx := *sc.acquired
	sc.acquired = nil

	presentInfo := &vk.PresentInfo{
		SType:              vk.StructureTypePresentInfo,
		PNext:              nil,
		WaitSemaphoreCount: 1,
		PWaitSemaphores:    []vk.Semaphore{waitSem},
		SwapchainCount:     1,
		PSwapchains:        []vk.Swapchain{sc.Handle},
		PImageIndices:      []uint32{imgIdx},
	}
	result := sc.drv.QueuePresent(queue, presentInfo)
	switch result {
	case vk.Success, vk.Suboptimal:
		return true, nil
	case vk.ErrorOutOfDate:
		return false, nil
	default:
		return false, fmt.Errorf("failed to present image, QueuePresent(...) result code: %d", result)
	}
}

func (sc *SwapChain) destroyDerivatives() {
	for i := range sc.FrameBuffers {
		sc.drv.DestroyFramebuffer(sc.FrameBuffers[i])
	}
	sc.FrameBuffers = nil
	for i := range sc.ImgViews {
		sc.drv.DestroyImageView(sc.ImgViews[i])
	}
	sc.ImgViews = nil
	sc.Images = nil
}

// Destroy drops the image views, framebuffers and the chain itself. Images
// belong to the chain and die with it.
func (sc *SwapChain) Destroy() {
	sc.destroyDerivatives()
	if sc.Handle != nil {
		sc.drv.DestroySwapchain(sc.Handle)
		sc.Handle = nil
	}
}
