package common

import (
	"fmt"
	"log"

	vk "github.com/goki/vulkan"
)

const APP_MAJOR, APP_MINOR, APP_PATCH = 1, 0, 0
const ENGINE_NAME = "render_base"
const ENGINE_MAJOR, ENGINE_MINOR, ENGINE_PATCH = 1, 0, 0

// Vulkan spec go bindings = v1.0.7, as per: https://github.com/goki/vulkan = 1.3.239
const VK_SPEC_MAJOR, VK_SPEC_MINOR, VK_SPEC_PATCH int = 1, 3, 239

const (
	BACKEND_SDL  = "sdl"
	BACKEND_GLFW = "glfw"
)

// Engine level key identifiers, translated from the backend specific codes.
// Escape is consumed by the backends themselves to request a close.
const (
	KEY_ESCAPE = iota
	KEY_W
)

// WindowBackend abstracts the windowing library driving the engine. Both
// implementations deliver the same things: an OS window flagged for vulkan
// use with a ready loader, its instance extensions, a surface and events.
type WindowBackend interface {
	Version() string
	RequiredExtensions() []string
	CreateSurface(inst vk.Instance) (vk.Surface, error)
	PollEvents()
	// WaitEvents blocks until any event arrives. The render loop parks here
	// while the window is minimized.
	WaitEvents()
	ShouldClose() bool
	// FramebufferSize reports the drawable size in pixels. Zero in either
	// dimension means there is nothing to render to right now.
	FramebufferSize() (int32, int32)
	SetKeyCallback(fn func(key int))
	Destroy()
}

// NewWindowBackend constructs the windowing backend selected by name.
func NewWindowBackend(name string, title string, width int32, height int32) (WindowBackend, error) {
	switch name {
	case "", BACKEND_SDL:
		return newSdlBackend(title, width, height)
	case BACKEND_GLFW:
		return newGlfwBackend(title, width, height)
	default:
		return nil, fmt.Errorf("unknown window backend %q", name)
	}
}

// Window encapsulates all window handling components and vulkan access objects to talk to, to actually draw on
// screen. The concrete windowing library sits behind the WindowBackend interface. Thus simplifying the process of
// getting a vk.Surface to draw on and interact with.
type Window struct {
	vkVersion string

	Backend  WindowBackend
	LayersOn bool

	Inst *vk.Instance
	Surf *vk.Surface
}

// NewWindow constructs a new Window on top of an initialized backend by creating the Vulkan instance and surface.
// Validation layers are requested when desired and supported, their absence is only logged. On tear down, we need
// to destroy the: vk.Surface, vk.Instance and the backend window.
func NewWindow(appName string, backend WindowBackend, wantValidation bool) (*Window, error) {
	window := &Window{
		vkVersion: fmt.Sprintf("v%d.%d.%d", VK_SPEC_MAJOR, VK_SPEC_MINOR, VK_SPEC_PATCH),
		Backend:   backend,
	}
	if err := window.createVulkanInstance(appName, wantValidation); err != nil {
		return nil, err
	}
	if err := window.createSurface(); err != nil {
		return nil, err
	}
	log.Printf("Generated window - backend: %s Vulkan Spec: %s", backend.Version(), window.vkVersion)
	return window, nil
}

// Destroy is a convenience method to tear down all relevant instances (vk.Surface, vk.Instance and the backend
// window) that have been initialized by itself.
func (w *Window) Destroy() {
	vk.DestroySurface(*w.Inst, *w.Surf, nil)
	vk.DestroyInstance(*w.Inst, nil)
	w.Backend.Destroy()
}

func (w *Window) PollEvents()                     { w.Backend.PollEvents() }
func (w *Window) WaitEvents()                     { w.Backend.WaitEvents() }
func (w *Window) ShouldClose() bool               { return w.Backend.ShouldClose() }
func (w *Window) FramebufferSize() (int32, int32) { return w.Backend.FramebufferSize() }
func (w *Window) SetKeyCallback(fn func(key int)) { w.Backend.SetKeyCallback(fn) }

func (w *Window) createVulkanInstance(appName string, wantValidation bool) error {
	requiredExtensions := w.Backend.RequiredExtensions()
	if err := checkInstanceExtensionSupport(requiredExtensions); err != nil {
		return err
	}
	if wantValidation {
		w.LayersOn = checkValidationLayerSupport(VALIDATION_LAYERS)
	}

	applicationInfo := &vk.ApplicationInfo{
		SType:              vk.StructureTypeApplicationInfo,
		PNext:              nil,
		PApplicationName:   TerminatedStr(appName),
		ApplicationVersion: vk.MakeVersion(APP_MAJOR, APP_MINOR, APP_PATCH),
		PEngineName:        TerminatedStr(ENGINE_NAME),
		EngineVersion:      vk.MakeVersion(ENGINE_MAJOR, ENGINE_MINOR, ENGINE_PATCH),
		ApiVersion:         vk.MakeVersion(VK_SPEC_MAJOR, VK_SPEC_MINOR, VK_SPEC_PATCH),
	}
	createInfo := &vk.InstanceCreateInfo{
		SType:                   vk.StructureTypeInstanceCreateInfo,
		PNext:                   nil,
		Flags:                   0,
		PApplicationInfo:        applicationInfo,
		EnabledLayerCount:       0,
		PpEnabledLayerNames:     nil,
		EnabledExtensionCount:   uint32(len(requiredExtensions)),
		PpEnabledExtensionNames: TerminatedStrs(requiredExtensions),
	}
	if w.LayersOn {
		createInfo.EnabledLayerCount = uint32(len(VALIDATION_LAYERS))
		createInfo.PpEnabledLayerNames = TerminatedStrs(VALIDATION_LAYERS)
	}

	var inst vk.Instance
	if err := NewError(vk.CreateInstance(createInfo, nil, &inst)); err != nil {
		return err
	}
	if err := vk.InitInstance(inst); err != nil {
		return err
	}
	w.Inst = &inst
	log.Println("Successfully created vulkan instance")
	return nil
}

func (w *Window) createSurface() error {
	surf, err := w.Backend.CreateSurface(*w.Inst)
	if err != nil {
		return fmt.Errorf("failed to create window surface: %w", err)
	}
	w.Surf = &surf
	return nil
}

func checkInstanceExtensionSupport(requiredInstanceExt []string) error {
	supportedExtNames := ReadInstanceExtensionPropertyNames()
	log.Printf("Required instance extensions: %v", requiredInstanceExt)
	log.Printf("Available extensions (%d): %v", len(supportedExtNames), supportedExtNames)

	if !AllOfAinB(requiredInstanceExt, supportedExtNames) {
		return fmt.Errorf("at least one required instance extension is not supported")
	}
	log.Println("Success - All required instance extensions are supported")
	return nil
}

// checkValidationLayerSupport reports whether all desired layers are present.
// Missing layers disable validation but never stop the engine.
func checkValidationLayerSupport(desiredLayers []string) bool {
	supportedLayerNames := ReadInstanceLayerPropertyNames()
	log.Printf("Desired validation layers: %v", desiredLayers)
	log.Printf("Supported layers (%d): %v", len(supportedLayerNames), supportedLayerNames)

	if !AllOfAinB(desiredLayers, supportedLayerNames) {
		log.Println("At least one desired validation layer is not supported, continuing without validation")
		return false
	}
	log.Println("Success - All desired validation layers are supported")
	return true
}
