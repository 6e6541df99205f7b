package common

import (
	"errors"
	"slices"
	"strings"
	"testing"

	vk "github.com/goki/vulkan"
)

func TestNewCommandBlockBeginsRecording(t *testing.T) {
	f := newFakeDriver()
	cb, err := NewCommandBlock(f, vk.Queue(nextHandle()), vk.CommandPool(nextHandle()))
	if err != nil {
		t.Fatalf("Error creating command block: %s", err)
	}
	if cb.Buffer() == nil {
		t.Fatalf("A fresh command block has to expose its buffer")
	}
	if len(f.begun) != 1 || f.begun[0] != cb.Buffer() {
		t.Errorf("The command buffer was not begun at construction")
	}
	if !f.begunOneTime[0] {
		t.Errorf("The command buffer has to record for a one time submission")
	}
}

func TestNewCommandBlockFreesOnBeginFailure(t *testing.T) {
	f := newFakeDriver()
	f.beginErr = errors.New("scripted failure")
	_, err := NewCommandBlock(f, vk.Queue(nextHandle()), vk.CommandPool(nextHandle()))
	if err == nil {
		t.Fatalf("A failing buffer begin has to fail the construction")
	}
	if len(f.allocated) != 1 || !slices.Contains(f.freed, f.allocated[0]) {
		t.Errorf("The allocated buffer leaked when beginning failed")
	}
}

func TestSubmitAndWait(t *testing.T) {
	f := newFakeDriver()
	queue := vk.Queue(nextHandle())
	cb, err := NewCommandBlock(f, queue, vk.CommandPool(nextHandle()))
	if err != nil {
		t.Fatalf("Error creating command block: %s", err)
	}
	buf := cb.Buffer()

	if err := cb.SubmitAndWait(); err != nil {
		t.Fatalf("Error submitting command block: %s", err)
	}
	if !slices.Contains(f.ended, buf) {
		t.Errorf("The buffer was never ended before submission")
	}
	if len(f.submits) != 1 {
		t.Fatalf("Expected exactly one submission but got %d", len(f.submits))
	}
	submit := f.submits[0]
	if submit.CommandBufferCount != 1 || submit.PCommandBuffers[0] != buf {
		t.Errorf("The submission does not carry the recorded buffer")
	}
	// The block waits on its own fresh fence, not a recycled one.
	if len(f.fences) != 1 || f.fenceSignaled[0] {
		t.Errorf("Expected one unsignaled fence for the submission")
	}
	if f.submitFences[0] != f.fences[0] || f.waitedFences[0] != f.fences[0] {
		t.Errorf("Submission and wait do not use the same fence")
	}
	if f.waitTimeouts[0] != COMMAND_BLOCK_TIMEOUT {
		t.Errorf("Expected the wait to time out after %v but got %v", COMMAND_BLOCK_TIMEOUT, f.waitTimeouts[0])
	}
	if !slices.Contains(f.destroyedFences, f.fences[0]) {
		t.Errorf("The submission fence was never destroyed")
	}
	if !slices.Contains(f.freed, buf) {
		t.Errorf("The command buffer was never freed")
	}
	if cb.Buffer() != nil {
		t.Errorf("The block should not expose a buffer after submission")
	}

	// A second submission has nothing left to do.
	if err := cb.SubmitAndWait(); err != nil {
		t.Errorf("Submitting an exhausted block should be a no-op but got: %s", err)
	}
	if f.countCalls("QueueSubmit") != 1 {
		t.Errorf("An exhausted block must not submit again")
	}
}

func TestSubmitAndWaitReleasesOnWaitFailure(t *testing.T) {
	f := newFakeDriver()
	cb, err := NewCommandBlock(f, vk.Queue(nextHandle()), vk.CommandPool(nextHandle()))
	if err != nil {
		t.Fatalf("Error creating command block: %s", err)
	}
	buf := cb.Buffer()

	f.waitErr = errors.New("scripted failure")
	err = cb.SubmitAndWait()
	if err == nil {
		t.Fatalf("A failing fence wait has to surface as error")
	}
	if !strings.Contains(err.Error(), "command block wait failed") {
		t.Errorf("Unexpected error for a failing fence wait: %s", err)
	}
	if !slices.Contains(f.freed, buf) {
		t.Errorf("The command buffer leaked when the wait failed")
	}
	if len(f.fences) != 1 || !slices.Contains(f.destroyedFences, f.fences[0]) {
		t.Errorf("The submission fence leaked when the wait failed")
	}
}
