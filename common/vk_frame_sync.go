package common

import (
	"log"

	vk "github.com/goki/vulkan"
)

// MAX_FRAMES_IN_FLIGHT is the number of virtual frames the CPU may record
// ahead of the GPU.
const MAX_FRAMES_IN_FLIGHT = 2

// FrameSlot carries the per virtual frame synchronization objects and the
// command buffer its work gets recorded into.
type FrameSlot struct {
	// DrawSem signals once the acquired image is ready to be drawn to.
	DrawSem vk.Semaphore
	// PresentSem signals once rendering finished and presenting may start.
	PresentSem vk.Semaphore
	// DrawnFen signals once the GPU fully processed the slot's submission.
	DrawnFen vk.Fence
	CmdBuf   vk.CommandBuffer
}

// FrameSync rotates through MAX_FRAMES_IN_FLIGHT slots. Fences start out
// signaled so the first wait on a fresh slot passes immediately.
type FrameSync struct {
	Slots    [MAX_FRAMES_IN_FLIGHT]FrameSlot
	frameIdx int32
}

func NewFrameSync(drv Driver, pool vk.CommandPool) (*FrameSync, error) {
	fs := &FrameSync{}
	buffers, err := drv.AllocateCommandBuffers(pool, MAX_FRAMES_IN_FLIGHT)
	if err != nil {
		return nil, err
	}
	for i := range fs.Slots {
		drawSem, err := drv.CreateSemaphore()
		if err != nil {
			return nil, err
		}
		presentSem, err := drv.CreateSemaphore()
		if err != nil {
			return nil, err
		}
		fen, err := drv.CreateFence(true)
		if err != nil {
			return nil, err
		}
		fs.Slots[i] = FrameSlot{
			DrawSem:    drawSem,
			PresentSem: presentSem,
			DrawnFen:   fen,
			CmdBuf:     buffers[i],
		}
	}
	log.Printf("Successfully created %d virtual frame slots", len(fs.Slots))
	return fs, nil
}

// Current returns the active slot.
func (fs *FrameSync) Current() *FrameSlot {
	return &fs.Slots[fs.frameIdx]
}

// Index of the active slot, used to address per frame resources elsewhere.
func (fs *FrameSync) Index() int32 {
	return fs.frameIdx
}

// Advance steps to the next virtual frame. Runs right after queue
// submission, before presenting.
func (fs *FrameSync) Advance() {
	fs.frameIdx = (fs.frameIdx + 1) % MAX_FRAMES_IN_FLIGHT
}

func (fs *FrameSync) Destroy(drv Driver, pool vk.CommandPool) {
	buffers := make([]vk.CommandBuffer, 0, len(fs.Slots))
	for i := range fs.Slots {
		drv.DestroySemaphore(fs.Slots[i].DrawSem)
		drv.DestroySemaphore(fs.Slots[i].PresentSem)
		drv.DestroyFence(fs.Slots[i].DrawnFen)
		buffers = append(buffers, fs.Slots[i].CmdBuf)
	}
	drv.FreeCommandBuffers(pool, buffers)
}
