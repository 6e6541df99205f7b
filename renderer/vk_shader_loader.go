package renderer

import (
	"fmt"
	"log"
	"os"

	vk "github.com/goki/vulkan"

	"vulkan_render_base/common"
)

// LoadVert reads a '.spv' file with the expectation of it containing a vertex shader for later use in a
// render pipeline. For this, a shader module (containing the shader code) and its vk.PipelineShaderStageCreateInfo
// is returned. Which is required to bind the shader to the pipeline.
func LoadVert(d vk.Device, path string) (vk.ShaderModule, vk.PipelineShaderStageCreateInfo, error) {
	vertMod, err := createShaderModule(d, path)
	if err != nil {
		return nil, vk.PipelineShaderStageCreateInfo{}, err
	}
	log.Printf("Created vertex shader module: %v", vertMod)

	vertexShaderStageInfo := vk.PipelineShaderStageCreateInfo{
		SType:  vk.StructureTypePipelineShaderStageCreateInfo,
		Stage:  vk.ShaderStageVertexBit,
		Module: vertMod,
		PName:  "main\x00", // entrypoint -> function name in the shader
	}
	return vertMod, vertexShaderStageInfo, nil
}

// LoadFrag reads a '.spv' file with the expectation of it containing a fragment shader for later use in a
// render pipeline. For this, a shader module (containing the shader code) and its vk.PipelineShaderStageCreateInfo
// is returned. Which is required to bind the shader to the pipeline.
func LoadFrag(d vk.Device, path string) (vk.ShaderModule, vk.PipelineShaderStageCreateInfo, error) {
	fragMod, err := createShaderModule(d, path)
	if err != nil {
		return nil, vk.PipelineShaderStageCreateInfo{}, err
	}
	log.Printf("Created fragment shader module: %v", fragMod)

	fragmentShaderStageInfo := vk.PipelineShaderStageCreateInfo{
		SType:  vk.StructureTypePipelineShaderStageCreateInfo,
		Stage:  vk.ShaderStageFragmentBit,
		Module: fragMod,
		PName:  "main\x00", // entrypoint -> function name in the shader
	}
	return fragMod, fragmentShaderStageInfo, nil
}

// DeleteShaderMod discards a shader module. As vk.ShaderModule is only meant as a container to move the shader
// code onto device memory, it can be destroyed right after the pipelines referencing it have been created.
func DeleteShaderMod(d vk.Device, mod vk.ShaderModule) {
	vk.DestroyShaderModule(d, mod, nil)
}

// readSPIRV loads a compiled shader and validates its size. SPIR-V is a stream
// of 32bit words, a byte count that is not a multiple of 4 means the file is
// truncated or not SPIR-V at all and must not reach the driver.
func readSPIRV(path string) ([]byte, error) {
	code, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read shader file '%s': %w", path, err)
	}
	if len(code)%4 != 0 {
		return nil, fmt.Errorf("invalid SPIR-V size: %d", len(code))
	}
	log.Printf("Read shader file (%s) of size: %dByte", path, len(code))
	return code, nil
}

func createShaderModule(d vk.Device, path string) (vk.ShaderModule, error) {
	code, err := readSPIRV(path)
	if err != nil {
		return nil, err
	}
	createInfo := vk.ShaderModuleCreateInfo{
		SType:    vk.StructureTypeShaderModuleCreateInfo,
		CodeSize: uint64(len(code)),
		PCode:    common.AsUint32Arr(code),
	}
	var module vk.ShaderModule
	if err := common.NewError(vk.CreateShaderModule(d, &createInfo, nil, &module)); err != nil {
		return nil, fmt.Errorf("failed to create shader module '%s': %w", path, err)
	}
	return module, nil
}
