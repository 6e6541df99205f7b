package common

import (
	"time"
	"unsafe"

	vk "github.com/goki/vulkan"
)

// nextHandle mints a distinct non nil pointer to use as a fake vulkan handle.
// The pointed at byte is never touched, only the identity matters.
func nextHandle() unsafe.Pointer {
	handleCursor++
	return unsafe.Pointer(&handleArena[handleCursor])
}

var (
	handleArena  [1 << 16]byte
	handleCursor int
)

// acquireStep scripts the outcome of one AcquireNextImage call.
type acquireStep struct {
	idx uint32
	res vk.Result
}

// fakeDriver implements Driver against scripted outcomes so swapchain and
// frame logic can run without a device attached. Creates hand out unique fake
// handles, destructive calls are recorded for inspection and the call log
// keeps the overall order.
type fakeDriver struct {
	calls []string

	caps       vk.SurfaceCapabilities
	capsErr    error
	formats    []vk.SurfaceFormat
	formatsErr error

	// imageCount is how many images each created swapchain hands out.
	imageCount int
	imagesErr  error

	createSwapchainErr error
	swapchainInfos     []vk.SwapchainCreateInfo
	swapchains         []vk.Swapchain
	chainImages        map[vk.Swapchain][]vk.Image
	destroyedChains    []vk.Swapchain

	acquireScript []acquireStep
	acquireSems   []vk.Semaphore

	presentScript []vk.Result
	presentInfos  []vk.PresentInfo
	presentQueues []vk.Queue

	viewErr        error
	viewInfos      []vk.ImageViewCreateInfo
	views          []vk.ImageView
	destroyedViews []vk.ImageView

	framebufferErr        error
	framebufferInfos      []vk.FramebufferCreateInfo
	framebuffers          []vk.Framebuffer
	destroyedFramebuffers []vk.Framebuffer

	semErr        error
	semaphores    []vk.Semaphore
	destroyedSems []vk.Semaphore

	fenceErr        error
	fences          []vk.Fence
	fenceSignaled   []bool
	destroyedFences []vk.Fence

	waitErr      error
	waitedFences []vk.Fence
	waitTimeouts []time.Duration
	resetErr     error
	resetFences  []vk.Fence

	allocErr  error
	allocated []vk.CommandBuffer
	freed     []vk.CommandBuffer

	beginErr     error
	begun        []vk.CommandBuffer
	begunOneTime []bool
	endErr       error
	ended        []vk.CommandBuffer

	barriers      []vk.ImageMemoryBarrier
	barrierStages [][2]vk.PipelineStageFlags

	submitErr    error
	submits      []vk.SubmitInfo
	submitFences []vk.Fence

	waitIdleErr error
}

var _ Driver = (*fakeDriver)(nil)

func newFakeDriver() *fakeDriver {
	return &fakeDriver{
		caps: vk.SurfaceCapabilities{
			MinImageCount:  2,
			MaxImageCount:  8,
			CurrentExtent:  vk.Extent2D{Width: 800, Height: 600},
			MinImageExtent: vk.Extent2D{Width: 1, Height: 1},
			MaxImageExtent: vk.Extent2D{Width: 4096, Height: 4096},
		},
		formats: []vk.SurfaceFormat{
			{Format: vk.FormatB8g8r8a8Srgb, ColorSpace: vk.ColorSpaceSrgbNonlinear},
			{Format: vk.FormatR8g8b8a8Srgb, ColorSpace: vk.ColorSpaceSrgbNonlinear},
		},
		imageCount:  3,
		chainImages: map[vk.Swapchain][]vk.Image{},
	}
}

func (f *fakeDriver) record(name string) {
	f.calls = append(f.calls, name)
}

// callIndex returns the position of the first occurrence of name in the call
// log, or -1 if it never happened.
func (f *fakeDriver) callIndex(name string) int {
	for i, c := range f.calls {
		if c == name {
			return i
		}
	}
	return -1
}

func (f *fakeDriver) countCalls(name string) int {
	n := 0
	for _, c := range f.calls {
		if c == name {
			n++
		}
	}
	return n
}

func (f *fakeDriver) SurfaceCapabilities() (vk.SurfaceCapabilities, error) {
	f.record("SurfaceCapabilities")
	return f.caps, f.capsErr
}

func (f *fakeDriver) SurfaceFormats() ([]vk.SurfaceFormat, error) {
	f.record("SurfaceFormats")
	return f.formats, f.formatsErr
}

func (f *fakeDriver) CreateSwapchain(info *vk.SwapchainCreateInfo) (vk.Swapchain, error) {
	f.record("CreateSwapchain")
	if f.createSwapchainErr != nil {
		return nil, f.createSwapchainErr
	}
	sc := vk.Swapchain(nextHandle())
	f.swapchainInfos = append(f.swapchainInfos, *info)
	f.swapchains = append(f.swapchains, sc)
	images := make([]vk.Image, f.imageCount)
	for i := range images {
		images[i] = vk.Image(nextHandle())
	}
	f.chainImages[sc] = images
	return sc, nil
}

func (f *fakeDriver) DestroySwapchain(swapChain vk.Swapchain) {
	f.record("DestroySwapchain")
	f.destroyedChains = append(f.destroyedChains, swapChain)
}

func (f *fakeDriver) SwapchainImages(swapChain vk.Swapchain) ([]vk.Image, error) {
	f.record("SwapchainImages")
	if f.imagesErr != nil {
		return nil, f.imagesErr
	}
	return f.chainImages[swapChain], nil
}

func (f *fakeDriver) AcquireNextImage(swapChain vk.Swapchain, signalSem vk.Semaphore) (uint32, vk.Result) {
	f.record("AcquireNextImage")
	f.acquireSems = append(f.acquireSems, signalSem)
	step := acquireStep{idx: 0, res: vk.Success}
	if len(f.acquireScript) > 0 {
		step = f.acquireScript[0]
		f.acquireScript = f.acquireScript[1:]
	}
	return step.idx, step.res
}

func (f *fakeDriver) QueuePresent(queue vk.Queue, info *vk.PresentInfo) vk.Result {
	f.record("QueuePresent")
	f.presentQueues = append(f.presentQueues, queue)
	f.presentInfos = append(f.presentInfos, *info)
	res := vk.Success
	if len(f.presentScript) > 0 {
		res = f.presentScript[0]
		f.presentScript = f.presentScript[1:]
	}
	return res
}

func (f *fakeDriver) CreateImageView(info *vk.ImageViewCreateInfo) (vk.ImageView, error) {
	f.record("CreateImageView")
	if f.viewErr != nil {
		return nil, f.viewErr
	}
	view := vk.ImageView(nextHandle())
	f.viewInfos = append(f.viewInfos, *info)
	f.views = append(f.views, view)
	return view, nil
}

func (f *fakeDriver) DestroyImageView(view vk.ImageView) {
	f.record("DestroyImageView")
	f.destroyedViews = append(f.destroyedViews, view)
}

func (f *fakeDriver) CreateFramebuffer(info *vk.FramebufferCreateInfo) (vk.Framebuffer, error) {
	f.record("CreateFramebuffer")
	if f.framebufferErr != nil {
		return nil, f.framebufferErr
	}
	fb := vk.Framebuffer(nextHandle())
	f.framebufferInfos = append(f.framebufferInfos, *info)
	f.framebuffers = append(f.framebuffers, fb)
	return fb, nil
}

func (f *fakeDriver) DestroyFramebuffer(buffer vk.Framebuffer) {
	f.record("DestroyFramebuffer")
	f.destroyedFramebuffers = append(f.destroyedFramebuffers, buffer)
}

func (f *fakeDriver) CreateSemaphore() (vk.Semaphore, error) {
	f.record("CreateSemaphore")
	if f.semErr != nil {
		return nil, f.semErr
	}
	sem := vk.Semaphore(nextHandle())
	f.semaphores = append(f.semaphores, sem)
	return sem, nil
}

func (f *fakeDriver) DestroySemaphore(sem vk.Semaphore) {
	f.record("DestroySemaphore")
	f.destroyedSems = append(f.destroyedSems, sem)
}

func (f *fakeDriver) CreateFence(signaled bool) (vk.Fence, error) {
	f.record("CreateFence")
	if f.fenceErr != nil {
		return nil, f.fenceErr
	}
	fen := vk.Fence(nextHandle())
	f.fences = append(f.fences, fen)
	f.fenceSignaled = append(f.fenceSignaled, signaled)
	return fen, nil
}

func (f *fakeDriver) DestroyFence(fen vk.Fence) {
	f.record("DestroyFence")
	f.destroyedFences = append(f.destroyedFences, fen)
}

func (f *fakeDriver) WaitForFence(fen vk.Fence, timeout time.Duration) error {
	f.record("WaitForFence")
	f.waitedFences = append(f.waitedFences, fen)
	f.waitTimeouts = append(f.waitTimeouts, timeout)
	return f.waitErr
}

func (f *fakeDriver) ResetFence(fen vk.Fence) error {
	f.record("ResetFence")
	f.resetFences = append(f.resetFences, fen)
	return f.resetErr
}

func (f *fakeDriver) AllocateCommandBuffers(pool vk.CommandPool, count uint32) ([]vk.CommandBuffer, error) {
	f.record("AllocateCommandBuffers")
	if f.allocErr != nil {
		return nil, f.allocErr
	}
	buffers := make([]vk.CommandBuffer, count)
	for i := range buffers {
		buffers[i] = vk.CommandBuffer(nextHandle())
	}
	f.allocated = append(f.allocated, buffers...)
	return buffers, nil
}

func (f *fakeDriver) FreeCommandBuffers(pool vk.CommandPool, buffers []vk.CommandBuffer) {
	f.record("FreeCommandBuffers")
	f.freed = append(f.freed, buffers...)
}

func (f *fakeDriver) BeginCommandBuffer(buffer vk.CommandBuffer, oneTimeSubmit bool) error {
	f.record("BeginCommandBuffer")
	if f.beginErr != nil {
		return f.beginErr
	}
	f.begun = append(f.begun, buffer)
	f.begunOneTime = append(f.begunOneTime, oneTimeSubmit)
	return nil
}

func (f *fakeDriver) EndCommandBuffer(buffer vk.CommandBuffer) error {
	f.record("EndCommandBuffer")
	if f.endErr != nil {
		return f.endErr
	}
	f.ended = append(f.ended, buffer)
	return nil
}

func (f *fakeDriver) CmdPipelineBarrier(buffer vk.CommandBuffer, srcStage, dstStage vk.PipelineStageFlags, barrier vk.ImageMemoryBarrier) {
	f.record("CmdPipelineBarrier")
	f.barriers = append(f.barriers, barrier)
	f.barrierStages = append(f.barrierStages, [2]vk.PipelineStageFlags{srcStage, dstStage})
}

func (f *fakeDriver) QueueSubmit(queue vk.Queue, info vk.SubmitInfo, fen vk.Fence) error {
	f.record("QueueSubmit")
	if f.submitErr != nil {
		return f.submitErr
	}
	f.submits = append(f.submits, info)
	f.submitFences = append(f.submitFences, fen)
	return nil
}

func (f *fakeDriver) DeviceWaitIdle() error {
	f.record("DeviceWaitIdle")
	return f.waitIdleErr
}
