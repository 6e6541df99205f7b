package common

import (
	"log"

	vk "github.com/goki/vulkan"
)

var VALIDATION_LAYERS = []string{
	"VK_LAYER_KHRONOS_validation",
}

// Device represents the interfacing objects between the OS window, the
// hardware running Vulkan and the rest of the rendering engine. Its main
// purpose is to encapsulate the corresponding objects to make initialization
// and teardown of a given application neater.
type Device struct {
	Gpu   Gpu
	D     vk.Device
	Queue vk.Queue
}

// NewDeviceContext selects a GPU able to drive the window's surface and
// opens a logical device with a single queue on the combined render family.
func NewDeviceContext(w *Window) (*Device, error) {
	gpu, err := FindSuitableGpu(*w.Inst, *w.Surf)
	if err != nil {
		return nil, err
	}
	dc := &Device{Gpu: gpu}
	if err := dc.createLogicalDevice(w.LayersOn); err != nil {
		return nil, err
	}
	return dc, nil
}

// Destroy drops all objects created by itself. The window that provided the
// surface is not touched.
func (dc *Device) Destroy() {
	vk.DestroyDevice(dc.D, nil)
}

func (dc *Device) createLogicalDevice(enableLayers bool) error {
	queueInfos := []vk.DeviceQueueCreateInfo{{
		SType:            vk.StructureTypeDeviceQueueCreateInfo,
		QueueFamilyIndex: dc.Gpu.QueueFamily,
		QueueCount:       1,
		PQueuePriorities: []float32{1.0},
	}}

	// Only features the renderer actually records with get enabled.
	deviceFeatures := vk.PhysicalDeviceFeatures{}
	if dc.Gpu.Features.FillModeNonSolid == vk.True {
		deviceFeatures.FillModeNonSolid = vk.True
	}
	if dc.Gpu.Features.SamplerAnisotropy == vk.True {
		deviceFeatures.SamplerAnisotropy = vk.True
	}

	deviceCreateInfo := &vk.DeviceCreateInfo{
		SType:                   vk.StructureTypeDeviceCreateInfo,
		PNext:                   nil,
		Flags:                   0,
		QueueCreateInfoCount:    uint32(len(queueInfos)),
		PQueueCreateInfos:       queueInfos,
		EnabledLayerCount:       0,
		PpEnabledLayerNames:     nil,
		EnabledExtensionCount:   uint32(len(DEVICE_EXTENSIONS)),
		PpEnabledExtensionNames: TerminatedStrs(DEVICE_EXTENSIONS),
		PEnabledFeatures:        []vk.PhysicalDeviceFeatures{deviceFeatures},
	}
	if enableLayers {
		deviceCreateInfo.EnabledLayerCount = uint32(len(VALIDATION_LAYERS))
		deviceCreateInfo.PpEnabledLayerNames = TerminatedStrs(VALIDATION_LAYERS)
	}

	var d vk.Device
	if err := NewError(vk.CreateDevice(dc.Gpu.PD, deviceCreateInfo, nil, &d)); err != nil {
		return err
	}
	dc.D = d

	var q vk.Queue
	vk.GetDeviceQueue(dc.D, dc.Gpu.QueueFamily, 0, &q)
	dc.Queue = q
	log.Println("Successfully created logical device and render queue")
	return nil
}

// CreateCommandPool opens a command pool on the render queue family. The
// CreateInfo only contains two interesting values in this case, so they
// become parameters directly.
func (dc *Device) CreateCommandPool(flags vk.CommandPoolCreateFlags) (vk.CommandPool, error) {
	poolInfo := vk.CommandPoolCreateInfo{
		SType:            vk.StructureTypeCommandPoolCreateInfo,
		PNext:            nil,
		Flags:            flags,
		QueueFamilyIndex: dc.Gpu.QueueFamily,
	}
	var pool vk.CommandPool
	if err := NewError(vk.CreateCommandPool(dc.D, &poolInfo, nil, &pool)); err != nil {
		return nil, err
	}
	return pool, nil
}
