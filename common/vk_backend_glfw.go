package common

import (
	"fmt"
	"log"

	"github.com/go-gl/glfw/v3.3/glfw"
	vk "github.com/goki/vulkan"
)

// glfwBackend drives the window through GLFW as the alternative to SDL.
type glfwBackend struct {
	win   *glfw.Window
	onKey func(key int)
}

// newGlfwBackend initializes GLFW, wires its vulkan loader into the go
// bindings and opens a resizable window without a client API context.
func newGlfwBackend(title string, width int32, height int32) (*glfwBackend, error) {
	if err := glfw.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize GLFW: %w", err)
	}
	log.Println("Initialized GLFW")

	procAddr := glfw.GetVulkanGetInstanceProcAddress()
	if procAddr == nil {
		return nil, fmt.Errorf("GLFW found no vulkan loader, GetInstanceProcAddress is nil")
	}
	vk.SetGetInstanceProcAddr(procAddr)
	if err := vk.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize Vulkan API: %w", err)
	}

	glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI)
	glfw.WindowHint(glfw.Resizable, glfw.True)
	win, err := glfw.CreateWindow(int(width), int(height), title, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create GLFW window for use with Vulkan: %w", err)
	}
	log.Printf("Created GLFW window for use with Vulkan. Title: \"%s\", Width: %d, Height: %d", title, width, height)

	b := &glfwBackend{win: win}
	win.SetKeyCallback(b.handleKey)
	return b, nil
}

func (b *glfwBackend) handleKey(_ *glfw.Window, key glfw.Key, _ int, action glfw.Action, _ glfw.ModifierKey) {
	if action != glfw.Press {
		return
	}
	if key == glfw.KeyEscape {
		b.win.SetShouldClose(true)
		return
	}
	if k, ok := translateGlfwKey(key); ok && b.onKey != nil {
		b.onKey(k)
	}
}

func translateGlfwKey(key glfw.Key) (int, bool) {
	switch key {
	case glfw.KeyW:
		return KEY_W, true
	default:
		return 0, false
	}
}

func (b *glfwBackend) Version() string {
	major, minor, rev := glfw.GetVersion()
	return fmt.Sprintf("GLFW v%d.%d.%d", major, minor, rev)
}

func (b *glfwBackend) RequiredExtensions() []string {
	return b.win.GetRequiredInstanceExtensions()
}

func (b *glfwBackend) CreateSurface(inst vk.Instance) (vk.Surface, error) {
	surfPtr, err := b.win.CreateWindowSurface(inst, nil)
	if err != nil {
		return nil, err
	}
	return vk.SurfaceFromPointer(surfPtr), nil
}

func (b *glfwBackend) PollEvents() { glfw.PollEvents() }
func (b *glfwBackend) WaitEvents() { glfw.WaitEvents() }

func (b *glfwBackend) ShouldClose() bool { return b.win.ShouldClose() }

func (b *glfwBackend) FramebufferSize() (int32, int32) {
	w, h := b.win.GetFramebufferSize()
	return int32(w), int32(h)
}

func (b *glfwBackend) SetKeyCallback(fn func(key int)) { b.onKey = fn }

func (b *glfwBackend) Destroy() {
	b.win.Destroy()
	glfw.Terminate()
}
