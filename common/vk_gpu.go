package common

import (
	"errors"
	"log"

	vk "github.com/goki/vulkan"
)

var DEVICE_EXTENSIONS = []string{
	"VK_KHR_swapchain",
}

// MIN_API_VERSION is the vulkan baseline the engine is written against.
var MIN_API_VERSION = uint32(vk.MakeVersion(1, 3, 0))

// Gpu bundles the selected physical device with the query results the rest
// of the engine keeps asking for, so the driver is only read once. All
// graphics, transfer and present work runs on the one combined QueueFamily.
type Gpu struct {
	PD          vk.PhysicalDevice
	Props       vk.PhysicalDeviceProperties
	Features    vk.PhysicalDeviceFeatures
	MemProps    vk.PhysicalDeviceMemoryProperties
	QueueFamily uint32
}

// gpuCandidate carries the raw per device query results selection runs on.
type gpuCandidate struct {
	pd             vk.PhysicalDevice
	props          vk.PhysicalDeviceProperties
	features       vk.PhysicalDeviceFeatures
	memProps       vk.PhysicalDeviceMemoryProperties
	extensions     []string
	queueFamilies  []vk.QueueFamilyProperties
	presentSupport []bool
}

// FindSuitableGpu queries all physical devices of the instance and selects
// one that can drive the given surface, preferring discrete hardware.
func FindSuitableGpu(inst vk.Instance, surface vk.Surface) (Gpu, error) {
	candidates, err := readGpuCandidates(inst, surface)
	if err != nil {
		return Gpu{}, err
	}
	log.Printf("Read %d physical devices", len(candidates))
	for i := range candidates {
		c := &candidates[i]
		log.Printf("Physical device %s", toStringPhysicalDeviceProps(c.props))
		for f := range c.queueFamilies {
			log.Printf("|_Qfamily[%d] count: %2d, present: %t, flags: %v",
				f,
				c.queueFamilies[f].QueueCount,
				c.presentSupport[f],
				toStringQueueFlags(c.queueFamilies[f].QueueFlags),
			)
		}
	}
	gpu, err := selectGpu(candidates)
	if err != nil {
		return Gpu{}, err
	}
	log.Printf("Successfully selected %s with queue family %d", toStringPhysicalDeviceProps(gpu.Props), gpu.QueueFamily)
	return gpu, nil
}

// readGpuCandidates performs every driver query selection needs up front,
// dereferencing all pointer values on the way.
func readGpuCandidates(inst vk.Instance, surface vk.Surface) ([]gpuCandidate, error) {
	pds, err := readPhysicalDevices(inst)
	if err != nil {
		return nil, err
	}
	candidates := make([]gpuCandidate, 0, len(pds))
	for _, pd := range pds {
		var props vk.PhysicalDeviceProperties
		vk.GetPhysicalDeviceProperties(pd, &props)
		props.Deref()
		props.Limits.Deref()

		var features vk.PhysicalDeviceFeatures
		vk.GetPhysicalDeviceFeatures(pd, &features)
		features.Deref()

		var memProps vk.PhysicalDeviceMemoryProperties
		vk.GetPhysicalDeviceMemoryProperties(pd, &memProps)
		memProps.Deref()
		for i := range memProps.MemoryTypes {
			memProps.MemoryTypes[i].Deref()
		}
		for i := range memProps.MemoryHeaps {
			memProps.MemoryHeaps[i].Deref()
		}

		extensions, err := readDeviceExtensionNames(pd)
		if err != nil {
			return nil, err
		}

		families := readQueueFamilyProperties(pd)
		presentSupport := make([]bool, len(families))
		for i := range families {
			var supported vk.Bool32
			if err := NewError(vk.GetPhysicalDeviceSurfaceSupport(pd, uint32(i), surface, &supported)); err != nil {
				return nil, err
			}
			presentSupport[i] = supported == vk.True
		}

		candidates = append(candidates, gpuCandidate{
			pd:             pd,
			props:          props,
			features:       features,
			memProps:       memProps,
			extensions:     extensions,
			queueFamilies:  families,
			presentSupport: presentSupport,
		})
	}
	return candidates, nil
}

// selectGpu applies the suitability rules to already queried candidate data.
// A discrete GPU wins immediately, otherwise the first suitable device is
// kept as fallback.
func selectGpu(candidates []gpuCandidate) (Gpu, error) {
	found := false
	var fallback Gpu
	for _, c := range candidates {
		if c.props.ApiVersion < MIN_API_VERSION {
			continue
		}
		if !AllOfAinB(DEVICE_EXTENSIONS, c.extensions) {
			continue
		}
		family, ok := findRenderFamily(c)
		if !ok {
			continue
		}
		gpu := Gpu{
			PD:          c.pd,
			Props:       c.props,
			Features:    c.features,
			MemProps:    c.memProps,
			QueueFamily: family,
		}
		if c.props.DeviceType == vk.PhysicalDeviceTypeDiscreteGpu {
			return gpu, nil
		}
		if !found {
			fallback = gpu
			found = true
		}
	}
	if !found {
		return Gpu{}, errors.New("no suitable GPU device found")
	}
	return fallback, nil
}

// findRenderFamily returns the first queue family able to do graphics and
// transfer work while also presenting to the target surface.
func findRenderFamily(c gpuCandidate) (uint32, bool) {
	required := vk.QueueFlags(vk.QueueGraphicsBit | vk.QueueTransferBit)
	for i, qf := range c.queueFamilies {
		if qf.QueueFlags&required != required {
			continue
		}
		if !c.presentSupport[i] {
			continue
		}
		return uint32(i), true
	}
	return 0, false
}
