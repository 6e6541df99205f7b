package renderer

import (
	"fmt"

	vk "github.com/goki/vulkan"

	com "vulkan_render_base/common"
	"vulkan_render_base/model"
)

// DescriptorProvisioner owns the descriptor set layout shared by all
// pipelines, the pool backing it and one descriptor set per frame in flight.
// The layout matches the shader interface: binding 0 is the per frame view
// and projection ubo, binding 1 the texture sampler and binding 2 the storage
// buffer holding one model matrix per instance.
type DescriptorProvisioner struct {
	device vk.Device

	setLayout vk.DescriptorSetLayout
	pool      vk.DescriptorPool
	sets      []vk.DescriptorSet
}

func NewDescriptorProvisioner(device vk.Device) (*DescriptorProvisioner, error) {
	dp := &DescriptorProvisioner{device: device}
	if err := dp.createSetLayout(); err != nil {
		return nil, err
	}
	if err := dp.createPool(); err != nil {
		dp.Destroy()
		return nil, err
	}
	layouts := make([]vk.DescriptorSetLayout, com.MAX_FRAMES_IN_FLIGHT)
	for i := range layouts {
		layouts[i] = dp.setLayout
	}
	sets, err := dp.allocDescriptorSets(dp.pool, layouts)
	if err != nil {
		dp.Destroy()
		return nil, err
	}
	dp.sets = sets
	return dp, nil
}

// allocDescriptorSets allocates a list of descriptor sets of given layout from the stated pool
func (dp *DescriptorProvisioner) allocDescriptorSets(pool vk.DescriptorPool, layouts []vk.DescriptorSetLayout) ([]vk.DescriptorSet, error) {
	cnt := uint32(len(layouts))
	allocInfo := vk.DescriptorSetAllocateInfo{
		SType:              vk.StructureTypeDescriptorSetAllocateInfo,
		DescriptorPool:     pool,
		DescriptorSetCount: cnt,
		PSetLayouts:        layouts,
	}
	sets := make([]vk.DescriptorSet, cnt)
	if err := com.NewError(vk.AllocateDescriptorSets(dp.device, &allocInfo, &(sets[0]))); err != nil {
		return nil, fmt.Errorf("failed to allocate descriptor sets: %w", err)
	}
	return sets, nil
}

func (dp *DescriptorProvisioner) createSetLayout() error {
	uboLayoutBinding := vk.DescriptorSetLayoutBinding{
		Binding:         0, // <- binding index in vert shader
		DescriptorType:  vk.DescriptorTypeUniformBuffer,
		DescriptorCount: 1,
		StageFlags:      vk.ShaderStageFlags(vk.ShaderStageVertexBit),
	}
	textureSamplerLayoutBinding := vk.DescriptorSetLayoutBinding{
		Binding:         1, // <- binding index in frag shader
		DescriptorType:  vk.DescriptorTypeCombinedImageSampler,
		DescriptorCount: 1,
		StageFlags:      vk.ShaderStageFlags(vk.ShaderStageFragmentBit),
	}
	instanceLayoutBinding := vk.DescriptorSetLayoutBinding{
		Binding:         2, // <- binding index in vert shader, indexed by gl_InstanceIndex
		DescriptorType:  vk.DescriptorTypeStorageBuffer,
		DescriptorCount: 1,
		StageFlags:      vk.ShaderStageFlags(vk.ShaderStageVertexBit),
	}
	layoutInfo := vk.DescriptorSetLayoutCreateInfo{
		SType:        vk.StructureTypeDescriptorSetLayoutCreateInfo,
		BindingCount: 3,
		PBindings:    []vk.DescriptorSetLayoutBinding{uboLayoutBinding, textureSamplerLayoutBinding, instanceLayoutBinding},
	}
	var dsl vk.DescriptorSetLayout
	if err := com.NewError(vk.CreateDescriptorSetLayout(dp.device, &layoutInfo, nil, &dsl)); err != nil {
		return fmt.Errorf("failed to create descriptor set layout: %w", err)
	}
	dp.setLayout = dsl
	return nil
}

func (dp *DescriptorProvisioner) createPool() error {
	uboPoolSize := vk.DescriptorPoolSize{
		Type:            vk.DescriptorTypeUniformBuffer,
		DescriptorCount: com.MAX_FRAMES_IN_FLIGHT,
	}
	texSamplerPoolSize := vk.DescriptorPoolSize{
		Type:            vk.DescriptorTypeCombinedImageSampler,
		DescriptorCount: com.MAX_FRAMES_IN_FLIGHT,
	}
	instancePoolSize := vk.DescriptorPoolSize{
		Type:            vk.DescriptorTypeStorageBuffer,
		DescriptorCount: com.MAX_FRAMES_IN_FLIGHT,
	}
	poolInfo := vk.DescriptorPoolCreateInfo{
		SType:         vk.StructureTypeDescriptorPoolCreateInfo,
		MaxSets:       com.MAX_FRAMES_IN_FLIGHT,
		PoolSizeCount: 3,
		PPoolSizes:    []vk.DescriptorPoolSize{uboPoolSize, texSamplerPoolSize, instancePoolSize},
	}
	var descp vk.DescriptorPool
	if err := com.NewError(vk.CreateDescriptorPool(dp.device, &poolInfo, nil, &descp)); err != nil {
		return fmt.Errorf("failed to create descriptor pool: %w", err)
	}
	dp.pool = descp
	return nil
}

// WriteSets points the per frame descriptor sets at their buffers and the
// shared texture. Buffers are written once here and stay bound for the
// lifetime of the scene, only their mapped contents change per frame.
func (dp *DescriptorProvisioner) WriteSets(ubos []vk.Buffer, instanceBufs []vk.Buffer, textureSampler vk.Sampler, textureImageView vk.ImageView) {
	for i := 0; i < com.MAX_FRAMES_IN_FLIGHT; i++ {
		// ubo
		bufferInfo := vk.DescriptorBufferInfo{
			Buffer: ubos[i],
			Offset: 0,
			Range:  model.SizeOfFrameUniforms(),
		}
		uboDescriptorWrite := vk.WriteDescriptorSet{
			SType:           vk.StructureTypeWriteDescriptorSet,
			DstSet:          dp.sets[i],
			DstBinding:      0,
			DstArrayElement: 0,
			DescriptorCount: 1,
			DescriptorType:  vk.DescriptorTypeUniformBuffer,
			PBufferInfo:     []vk.DescriptorBufferInfo{bufferInfo},
		}

		// textureSampler
		texSampler := vk.DescriptorImageInfo{
			Sampler:     textureSampler,
			ImageView:   textureImageView,
			ImageLayout: vk.ImageLayoutShaderReadOnlyOptimal,
		}
		texSamplerDescriptorWrite := vk.WriteDescriptorSet{
			SType:           vk.StructureTypeWriteDescriptorSet,
			DstSet:          dp.sets[i],
			DstBinding:      1, // <-- shader binding location, corresponds to 'layout(binding = 1) uniform sampler2D texSampler;'
			DstArrayElement: 0,
			DescriptorCount: 1,
			DescriptorType:  vk.DescriptorTypeCombinedImageSampler,
			PImageInfo:      []vk.DescriptorImageInfo{texSampler},
		}

		// instance model matrices
		instanceInfo := vk.DescriptorBufferInfo{
			Buffer: instanceBufs[i],
			Offset: 0,
			Range:  model.SizeOfInstances(INSTANCE_COUNT),
		}
		instanceDescriptorWrite := vk.WriteDescriptorSet{
			SType:           vk.StructureTypeWriteDescriptorSet,
			DstSet:          dp.sets[i],
			DstBinding:      2,
			DstArrayElement: 0,
			DescriptorCount: 1,
			DescriptorType:  vk.DescriptorTypeStorageBuffer,
			PBufferInfo:     []vk.DescriptorBufferInfo{instanceInfo},
		}

		writes := []vk.WriteDescriptorSet{uboDescriptorWrite, texSamplerDescriptorWrite, instanceDescriptorWrite}
		vk.UpdateDescriptorSets(dp.device, uint32(len(writes)), writes, 0, nil)
	}
}

func (dp *DescriptorProvisioner) Destroy() {
	// sets allocated from the pool are returned with it
	vk.DestroyDescriptorPool(dp.device, dp.pool, nil)
	vk.DestroyDescriptorSetLayout(dp.device, dp.setLayout, nil)
}
