package common

import (
	"testing"

	vk "github.com/goki/vulkan"
)

// testCandidate builds a device candidate that passes every suitability rule,
// with the render capable queue family sitting at index 1.
func testCandidate(deviceType vk.PhysicalDeviceType) gpuCandidate {
	return gpuCandidate{
		pd: vk.PhysicalDevice(nextHandle()),
		props: vk.PhysicalDeviceProperties{
			ApiVersion: MIN_API_VERSION,
			DeviceType: deviceType,
		},
		extensions: []string{"VK_KHR_swapchain", "VK_KHR_maintenance1"},
		queueFamilies: []vk.QueueFamilyProperties{
			{QueueFlags: vk.QueueFlags(vk.QueueComputeBit), QueueCount: 1},
			{QueueFlags: vk.QueueFlags(vk.QueueGraphicsBit | vk.QueueTransferBit | vk.QueueComputeBit), QueueCount: 4},
		},
		presentSupport: []bool{false, true},
	}
}

func TestSelectGpuPrefersDiscrete(t *testing.T) {
	integrated := testCandidate(vk.PhysicalDeviceTypeIntegratedGpu)
	discrete := testCandidate(vk.PhysicalDeviceTypeDiscreteGpu)
	trailing := testCandidate(vk.PhysicalDeviceTypeIntegratedGpu)

	gpu, err := selectGpu([]gpuCandidate{integrated, discrete, trailing})
	if err != nil {
		t.Fatalf("Error selecting gpu: %s", err)
	}
	if gpu.PD != discrete.pd {
		t.Errorf("A discrete gpu has to win over integrated ones")
	}
	if gpu.QueueFamily != 1 {
		t.Errorf("Expected the render capable queue family 1 but got %d", gpu.QueueFamily)
	}
}

func TestSelectGpuFallsBackToFirstSuitable(t *testing.T) {
	first := testCandidate(vk.PhysicalDeviceTypeIntegratedGpu)
	second := testCandidate(vk.PhysicalDeviceTypeIntegratedGpu)

	gpu, err := selectGpu([]gpuCandidate{first, second})
	if err != nil {
		t.Fatalf("Error selecting gpu: %s", err)
	}
	if gpu.PD != first.pd {
		t.Errorf("Without a discrete gpu the first suitable device has to win")
	}
}

func TestSelectGpuSkipsOldApi(t *testing.T) {
	old := testCandidate(vk.PhysicalDeviceTypeDiscreteGpu)
	old.props.ApiVersion = uint32(vk.MakeVersion(1, 2, 0))
	fallback := testCandidate(vk.PhysicalDeviceTypeIntegratedGpu)

	gpu, err := selectGpu([]gpuCandidate{old, fallback})
	if err != nil {
		t.Fatalf("Error selecting gpu: %s", err)
	}
	if gpu.PD != fallback.pd {
		t.Errorf("A device below the api baseline must not be selected")
	}

	if _, err := selectGpu([]gpuCandidate{old}); err == nil {
		t.Errorf("Selection has to fail when only outdated devices exist")
	}
}

func TestSelectGpuRequiresSwapchainExtension(t *testing.T) {
	bare := testCandidate(vk.PhysicalDeviceTypeDiscreteGpu)
	bare.extensions = []string{"VK_KHR_maintenance1"}

	if _, err := selectGpu([]gpuCandidate{bare}); err == nil {
		t.Errorf("A device without swapchain support must not be selected")
	}
}

func TestSelectGpuRequiresRenderFamily(t *testing.T) {
	noPresent := testCandidate(vk.PhysicalDeviceTypeDiscreteGpu)
	noPresent.presentSupport = []bool{false, false}
	if _, err := selectGpu([]gpuCandidate{noPresent}); err == nil {
		t.Errorf("A device unable to present must not be selected")
	}

	noTransfer := testCandidate(vk.PhysicalDeviceTypeDiscreteGpu)
	noTransfer.queueFamilies = []vk.QueueFamilyProperties{
		{QueueFlags: vk.QueueFlags(vk.QueueGraphicsBit), QueueCount: 1},
	}
	noTransfer.presentSupport = []bool{true}
	if _, err := selectGpu([]gpuCandidate{noTransfer}); err == nil {
		t.Errorf("A device without a combined graphics and transfer family must not be selected")
	}
}

func TestSelectGpuNoDevices(t *testing.T) {
	_, err := selectGpu(nil)
	if err == nil {
		t.Fatalf("Selection over no devices has to fail")
	}
	if err.Error() != "no suitable GPU device found" {
		t.Errorf("Unexpected error for an empty device list: %s", err)
	}
}

func TestFindRenderFamily(t *testing.T) {
	c := testCandidate(vk.PhysicalDeviceTypeDiscreteGpu)
	family, ok := findRenderFamily(c)
	if !ok || family != 1 {
		t.Errorf("Expected family 1 to qualify but got %d (found: %t)", family, ok)
	}

	c.presentSupport = []bool{true, false}
	if _, ok := findRenderFamily(c); ok {
		t.Errorf("No family should qualify when the capable one cannot present")
	}
}
