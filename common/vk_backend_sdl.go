package common

import (
	"fmt"
	"log"

	vk "github.com/goki/vulkan"
	"github.com/veandco/go-sdl2/sdl"
)

const SDL_MAJOR, SDL_MINOR, SDL_PATCH = int(sdl.MAJOR_VERSION), int(sdl.MINOR_VERSION), int(sdl.PATCHLEVEL)

// sdlBackend drives the window through SDL2.
type sdlBackend struct {
	win   *sdl.Window
	close bool
	onKey func(key int)
}

// newSdlBackend initializes SDL, opens a resizable vulkan flagged window and
// wires the vulkan loader provided by SDL into the go bindings.
func newSdlBackend(title string, width int32, height int32) (*sdlBackend, error) {
	if err := sdl.Init(sdl.INIT_EVERYTHING); err != nil {
		return nil, fmt.Errorf("failed to initialize SDL: %w", err)
	}
	log.Println("Initialized SDL")
	win, err := sdl.CreateWindow(
		title,
		sdl.WINDOWPOS_UNDEFINED,
		sdl.WINDOWPOS_UNDEFINED,
		width,
		height,
		sdl.WINDOW_SHOWN|sdl.WINDOW_RESIZABLE|sdl.WINDOW_VULKAN,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create SDL window for use with Vulkan: %w", err)
	}
	log.Printf("Created SDL window for use with Vulkan. Title: \"%s\", Width: %d, Height: %d", title, width, height)

	// Find and load Vulkan addresses to be able to call driver level functions via the provided mechanism
	vk.SetGetInstanceProcAddr(sdl.VulkanGetVkGetInstanceProcAddr())
	if err := vk.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize Vulkan API: %w", err)
	}
	return &sdlBackend{win: win}, nil
}

func (b *sdlBackend) Version() string {
	return fmt.Sprintf("SDL v%d.%d.%d", SDL_MAJOR, SDL_MINOR, SDL_PATCH)
}

func (b *sdlBackend) RequiredExtensions() []string {
	return b.win.VulkanGetInstanceExtensions()
}

func (b *sdlBackend) CreateSurface(inst vk.Instance) (vk.Surface, error) {
	surfPtr, err := b.win.VulkanCreateSurface(inst)
	if err != nil {
		return nil, err
	}
	return vk.SurfaceFromPointer(uintptr(surfPtr)), nil
}

func (b *sdlBackend) PollEvents() {
	for event := sdl.PollEvent(); event != nil; event = sdl.PollEvent() {
		b.handleEvent(event)
	}
}

func (b *sdlBackend) WaitEvents() {
	if event := sdl.WaitEvent(); event != nil {
		b.handleEvent(event)
	}
}

func (b *sdlBackend) handleEvent(event sdl.Event) {
	switch ev := event.(type) {
	case *sdl.QuitEvent:
		b.close = true
	case *sdl.KeyboardEvent:
		if ev.Type != sdl.KEYDOWN {
			return
		}
		if ev.Keysym.Sym == sdl.K_ESCAPE {
			b.close = true
			return
		}
		if key, ok := translateSdlKey(ev.Keysym.Sym); ok && b.onKey != nil {
			b.onKey(key)
		}
	}
}

func translateSdlKey(sym sdl.Keycode) (int, bool) {
	switch sym {
	case sdl.K_w:
		return KEY_W, true
	default:
		return 0, false
	}
}

func (b *sdlBackend) ShouldClose() bool {
	return b.close
}

func (b *sdlBackend) FramebufferSize() (int32, int32) {
	if b.win.GetFlags()&sdl.WINDOW_MINIMIZED != 0 {
		return 0, 0
	}
	w, h := b.win.VulkanGetDrawableSize()
	return w, h
}

func (b *sdlBackend) SetKeyCallback(fn func(key int)) {
	b.onKey = fn
}

func (b *sdlBackend) Destroy() {
	if err := b.win.Destroy(); err != nil {
		log.Fatal(err)
	}
	sdl.Quit()
}
