package common

import (
	"log"

	vk "github.com/goki/vulkan"
)

// Convenience readers around the two-call enumeration pattern of the vulkan
// API. Instance level reads panic as nothing can recover before an instance
// exists, physical device reads hand their errors up to the GPU selection.

// ReadInstanceExtensionPropertyNames is a convenience method obfuscating the spec defined []vk.ExtensionProperties
// type in favor of their respective names in order to simplify support checks to a point of string comparisons.
func ReadInstanceExtensionPropertyNames() []string {
	supportedExts := readInstanceExtensionProperties()
	supportedExtNames := make([]string, len(supportedExts))
	for i, ext := range supportedExts {
		supportedExtNames[i] = vk.ToString(ext.ExtensionName[:])
	}
	return supportedExtNames
}

// readInstanceExtensionProperties wraps the raw vulkan call to retrieve all supported instance extensions as their
// spec defined type and dereferences all necessary pointer values.
func readInstanceExtensionProperties() []vk.ExtensionProperties {
	extensionCount := uint32(0)
	err := vk.Error(vk.EnumerateInstanceExtensionProperties("", &extensionCount, nil))
	if err != nil {
		log.Panicf("Failed read number of InstanceExtensionProperties: %s", err)
	}
	extensionProperties := make([]vk.ExtensionProperties, extensionCount)
	err = vk.Error(vk.EnumerateInstanceExtensionProperties("", &extensionCount, extensionProperties))
	if err != nil {
		log.Panicf("Failed read %d InstanceExtensionProperties: %s", extensionCount, err)
	}
	for i := range extensionProperties {
		extensionProperties[i].Deref()
	}
	return extensionProperties
}

// ReadInstanceLayerPropertyNames is a convenience method obfuscating the spec defined []vk.LayerProperties
// type in favor of their respective names in order to simplify support checks to a point of string comparisons.
func ReadInstanceLayerPropertyNames() []string {
	supportedLayers := readInstanceLayerProperties()
	supLayerNames := make([]string, len(supportedLayers))
	for i, l := range supportedLayers {
		supLayerNames[i] = vk.ToString(l.LayerName[:])
	}
	return supLayerNames
}

// readInstanceLayerProperties wraps the raw vulkan call to retrieve all supported instance (validation) layer
// properties as their spec defined type and dereferences all necessary pointer values.
func readInstanceLayerProperties() []vk.LayerProperties {
	layerCount := uint32(0)
	err := vk.Error(vk.EnumerateInstanceLayerProperties(&layerCount, nil))
	if err != nil {
		log.Panicf("Failed read number of InstanceLayerProperties: %s", err)
	}
	layers := make([]vk.LayerProperties, layerCount)
	err = vk.Error(vk.EnumerateInstanceLayerProperties(&layerCount, layers))
	if err != nil {
		log.Panicf("Failed read %d InstanceLayerProperties: %s", layerCount, err)
	}
	for i := range layers {
		layers[i].Deref()
	}
	return layers
}

// readPhysicalDevices retrieves every physical device known to the instance.
func readPhysicalDevices(inst vk.Instance) ([]vk.PhysicalDevice, error) {
	deviceCount := uint32(0)
	if err := NewError(vk.EnumeratePhysicalDevices(inst, &deviceCount, nil)); err != nil {
		return nil, err
	}
	devices := make([]vk.PhysicalDevice, deviceCount)
	if err := NewError(vk.EnumeratePhysicalDevices(inst, &deviceCount, devices)); err != nil {
		return nil, err
	}
	return devices, nil
}

// readQueueFamilyProperties retrieves the queue families of a physical device
// with all pointer values dereferenced.
func readQueueFamilyProperties(pd vk.PhysicalDevice) []vk.QueueFamilyProperties {
	familyCount := uint32(0)
	vk.GetPhysicalDeviceQueueFamilyProperties(pd, &familyCount, nil)
	families := make([]vk.QueueFamilyProperties, familyCount)
	vk.GetPhysicalDeviceQueueFamilyProperties(pd, &familyCount, families)
	for i := range families {
		families[i].Deref()
	}
	return families
}

// readDeviceExtensionNames retrieves the names of all extensions a physical
// device supports, again to reduce support checks to string comparisons.
func readDeviceExtensionNames(pd vk.PhysicalDevice) ([]string, error) {
	extCount := uint32(0)
	if err := NewError(vk.EnumerateDeviceExtensionProperties(pd, "", &extCount, nil)); err != nil {
		return nil, err
	}
	exts := make([]vk.ExtensionProperties, extCount)
	if err := NewError(vk.EnumerateDeviceExtensionProperties(pd, "", &extCount, exts)); err != nil {
		return nil, err
	}
	names := make([]string, len(exts))
	for i := range exts {
		exts[i].Deref()
		names[i] = vk.ToString(exts[i].ExtensionName[:])
	}
	return names, nil
}
