package common

import (
	"fmt"
	"time"

	vk "github.com/goki/vulkan"
)

// COMMAND_BLOCK_TIMEOUT bounds how long SubmitAndWait blocks on the GPU.
const COMMAND_BLOCK_TIMEOUT = 30 * time.Second

// CommandBlock wraps a transient command buffer that records immediately and
// is submitted exactly once. Used for uploads and layout transitions outside
// the frame loop.
type CommandBlock struct {
	drv   Driver
	queue vk.Queue
	pool  vk.CommandPool
	buf   vk.CommandBuffer
}

// NewCommandBlock allocates one primary buffer from the given transient pool
// and begins it one time submit, so callers can record right away.
func NewCommandBlock(drv Driver, queue vk.Queue, pool vk.CommandPool) (*CommandBlock, error) {
	buffers, err := drv.AllocateCommandBuffers(pool, 1)
	if err != nil {
		return nil, err
	}
	if err := drv.BeginCommandBuffer(buffers[0], true); err != nil {
		drv.FreeCommandBuffers(pool, buffers)
		return nil, err
	}
	return &CommandBlock{drv: drv, queue: queue, pool: pool, buf: buffers[0]}, nil
}

// Buffer exposes the recording command buffer, nil once submitted.
func (cb *CommandBlock) Buffer() vk.CommandBuffer {
	return cb.buf
}

// SubmitAndWait ends recording, submits on the queue and blocks until the
// GPU finished, bounded by COMMAND_BLOCK_TIMEOUT. The buffer returns to its
// pool in every path and calling SubmitAndWait again is a no-op.
func (cb *CommandBlock) SubmitAndWait() error {
	if cb.buf == nil {
		return nil
	}
	buf := cb.buf
	cb.buf = nil
	defer cb.drv.FreeCommandBuffers(cb.pool, []vk.CommandBuffer{buf})

	if err := cb.drv.EndCommandBuffer(buf); err != nil {
		return err
	}
	fen, err := cb.drv.CreateFence(false)
	if err != nil {
		return err
	}
	defer cb.drv.DestroyFence(fen)

	submitInfo := vk.SubmitInfo{
		SType:              vk.StructureTypeSubmitInfo,
		CommandBufferCount: 1,
		PCommandBuffers:    []vk.CommandBuffer{buf},
	}
	if err := cb.drv.QueueSubmit(cb.queue, submitInfo, fen); err != nil {
		return err
	}
	if err := cb.drv.WaitForFence(fen, COMMAND_BLOCK_TIMEOUT); err != nil {
		return fmt.Errorf("command block wait failed: %w", err)
	}
	return nil
}
