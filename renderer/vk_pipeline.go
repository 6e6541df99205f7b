package renderer

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"unsafe"

	vk "github.com/goki/vulkan"

	com "vulkan_render_base/common"
	"vulkan_render_base/model"
)

// Pipeline bundles the render pass, the pipeline layout and the solid and
// wireframe pipeline variants built on top of them. Both variants share all
// state except the polygon mode, so they come out of a single
// vk.CreateGraphicsPipelines call backed by an on disk pipeline cache.
type Pipeline struct {
	device vk.Device

	RenderPass vk.RenderPass
	Layout     vk.PipelineLayout
	cache      vk.PipelineCache
	cachePath  string

	Fill      vk.Pipeline
	Wireframe vk.Pipeline
}

func NewPipeline(dc *com.Device, format vk.Format, setLayout vk.DescriptorSetLayout, shaderDir string, cachePath string) (*Pipeline, error) {
	p := &Pipeline{device: dc.D, cachePath: cachePath}
	if err := p.createRenderPass(format); err != nil {
		return nil, err
	}
	if err := p.createLayout(setLayout); err != nil {
		p.Destroy()
		return nil, err
	}
	p.createCache()
	if err := p.createPipelines(dc, shaderDir); err != nil {
		p.Destroy()
		return nil, err
	}
	return p, nil
}

// createRenderPass builds a single subpass color only render pass. The frame
// loop owns the layout transitions from Undefined to ColorAttachmentOptimal
// and on to PresentSrc with explicit barriers around the pass, so the pass
// itself starts and ends on ColorAttachmentOptimal and never touches the
// present layout.
func (p *Pipeline) createRenderPass(format vk.Format) error {
	colorAttachment := vk.AttachmentDescription{
		Format:         format,
		Samples:        vk.SampleCount1Bit,
		LoadOp:         vk.AttachmentLoadOpClear,
		StoreOp:        vk.AttachmentStoreOpStore,
		StencilLoadOp:  vk.AttachmentLoadOpDontCare,
		StencilStoreOp: vk.AttachmentStoreOpDontCare,
		InitialLayout:  vk.ImageLayoutColorAttachmentOptimal,
		FinalLayout:    vk.ImageLayoutColorAttachmentOptimal,
	}
	colorAttachmentRef := vk.AttachmentReference{
		Attachment: 0,
		Layout:     vk.ImageLayoutColorAttachmentOptimal,
	}
	subpass := vk.SubpassDescription{
		PipelineBindPoint:    vk.PipelineBindPointGraphics,
		ColorAttachmentCount: 1,
		PColorAttachments:    []vk.AttachmentReference{colorAttachmentRef},
	}
	dependency := vk.SubpassDependency{
		SrcSubpass:    vk.SubpassExternal,
		DstSubpass:    0,
		SrcStageMask:  vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit),
		DstStageMask:  vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit),
		SrcAccessMask: 0,
		DstAccessMask: vk.AccessFlags(vk.AccessColorAttachmentWriteBit),
	}
	renderPassInfo := vk.RenderPassCreateInfo{
		SType:           vk.StructureTypeRenderPassCreateInfo,
		AttachmentCount: 1,
		PAttachments:    []vk.AttachmentDescription{colorAttachment},
		SubpassCount:    1,
		PSubpasses:      []vk.SubpassDescription{subpass},
		DependencyCount: 1,
		PDependencies:   []vk.SubpassDependency{dependency},
	}
	var renderPass vk.RenderPass
	if err := com.NewError(vk.CreateRenderPass(p.device, &renderPassInfo, nil, &renderPass)); err != nil {
		return fmt.Errorf("failed to create render pass: %w", err)
	}
	p.RenderPass = renderPass
	log.Println("Successfully created render pass")
	return nil
}

func (p *Pipeline) createLayout(setLayout vk.DescriptorSetLayout) error {
	pipelineLayoutInfo := vk.PipelineLayoutCreateInfo{
		SType:          vk.StructureTypePipelineLayoutCreateInfo,
		SetLayoutCount: 1,
		PSetLayouts:    []vk.DescriptorSetLayout{setLayout},
	}
	var layout vk.PipelineLayout
	if err := com.NewError(vk.CreatePipelineLayout(p.device, &pipelineLayoutInfo, nil, &layout)); err != nil {
		return fmt.Errorf("failed to create pipeline layout: %w", err)
	}
	p.Layout = layout
	return nil
}

// createCache primes a pipeline cache from the configured file. A missing or
// rejected cache file is not an error, pipelines just build cold.
func (p *Pipeline) createCache() {
	cacheInfo := vk.PipelineCacheCreateInfo{
		SType: vk.StructureTypePipelineCacheCreateInfo,
	}
	data, err := os.ReadFile(p.cachePath)
	if err == nil && len(data) > 0 {
		cacheInfo.InitialDataSize = uint64(len(data))
		cacheInfo.PInitialData = unsafe.Pointer(&data[0])
		log.Printf("Read pipeline cache file (%s) of size: %dByte", p.cachePath, len(data))
	} else if p.cachePath != "" {
		log.Printf("No pipeline cache at '%s', starting with an empty one", p.cachePath)
	}
	var cache vk.PipelineCache
	if vk.CreatePipelineCache(p.device, &cacheInfo, nil, &cache) != vk.Success {
		if cacheInfo.InitialDataSize == 0 {
			return
		}
		log.Printf("Driver rejected pipeline cache file '%s', creating an empty cache", p.cachePath)
		cacheInfo = vk.PipelineCacheCreateInfo{
			SType: vk.StructureTypePipelineCacheCreateInfo,
		}
		if vk.CreatePipelineCache(p.device, &cacheInfo, nil, &cache) != vk.Success {
			return
		}
	}
	p.cache = cache
}

func (p *Pipeline) createPipelines(dc *com.Device, shaderDir string) error {
	// Shader module deletion can be done right after pipeline creation
	vertShaderMod, vertStageInfo, err := LoadVert(p.device, filepath.Join(shaderDir, "vert.spv"))
	if err != nil {
		return err
	}
	defer DeleteShaderMod(p.device, vertShaderMod)
	fragShaderMod, fragStageInfo, err := LoadFrag(p.device, filepath.Join(shaderDir, "frag.spv"))
	if err != nil {
		return err
	}
	defer DeleteShaderMod(p.device, fragShaderMod)
	shaderStages := []vk.PipelineShaderStageCreateInfo{vertStageInfo, fragStageInfo}

	// Viewport and scissor stay dynamic so a swapchain recreate never forces
	// a pipeline rebuild.
	dynamicStates := []vk.DynamicState{
		vk.DynamicStateViewport,
		vk.DynamicStateScissor,
	}
	dynamicStateCreateInfo := vk.PipelineDynamicStateCreateInfo{
		SType:             vk.StructureTypePipelineDynamicStateCreateInfo,
		DynamicStateCount: uint32(len(dynamicStates)),
		PDynamicStates:    dynamicStates,
	}
	bindingDesc := []vk.VertexInputBindingDescription{model.GetVertexBindingDescription()}
	attributeDesc := model.GetVertexAttributeDescriptions()
	vertexInputInfo := vk.PipelineVertexInputStateCreateInfo{
		SType:                           vk.StructureTypePipelineVertexInputStateCreateInfo,
		VertexBindingDescriptionCount:   1,
		PVertexBindingDescriptions:      bindingDesc,
		VertexAttributeDescriptionCount: uint32(len(attributeDesc)),
		PVertexAttributeDescriptions:    attributeDesc,
	}
	inputAssemblyInfo := vk.PipelineInputAssemblyStateCreateInfo{
		SType:                  vk.StructureTypePipelineInputAssemblyStateCreateInfo,
		Topology:               vk.PrimitiveTopologyTriangleList,
		PrimitiveRestartEnable: vk.False,
	}
	viewportStateInfo := vk.PipelineViewportStateCreateInfo{
		SType:         vk.StructureTypePipelineViewportStateCreateInfo,
		ViewportCount: 1,
		ScissorCount:  1,
	}
	fillRasterizerInfo := vk.PipelineRasterizationStateCreateInfo{
		SType:                   vk.StructureTypePipelineRasterizationStateCreateInfo,
		DepthClampEnable:        vk.False,
		RasterizerDiscardEnable: vk.False,
		PolygonMode:             vk.PolygonModeFill,
		CullMode:                vk.CullModeFlags(vk.CullModeNone),
		FrontFace:               vk.FrontFaceCounterClockwise,
		DepthBiasEnable:         vk.False,
		LineWidth:               1.0,
	}
	wireRasterizerInfo := fillRasterizerInfo
	wireRasterizerInfo.PolygonMode = vk.PolygonModeLine

	multisamplingInfo := vk.PipelineMultisampleStateCreateInfo{
		SType:                vk.StructureTypePipelineMultisampleStateCreateInfo,
		RasterizationSamples: vk.SampleCount1Bit,
		SampleShadingEnable:  vk.False,
		MinSampleShading:     1.0,
	}
	colorBlendAttachmentInfo := vk.PipelineColorBlendAttachmentState{
		BlendEnable:         vk.True,
		SrcColorBlendFactor: vk.BlendFactorSrcAlpha,
		DstColorBlendFactor: vk.BlendFactorOneMinusSrcAlpha,
		ColorBlendOp:        vk.BlendOpAdd,
		SrcAlphaBlendFactor: vk.BlendFactorOne,
		DstAlphaBlendFactor: vk.BlendFactorZero,
		AlphaBlendOp:        vk.BlendOpAdd,
		ColorWriteMask:      vk.ColorComponentFlags(vk.ColorComponentRBit | vk.ColorComponentGBit | vk.ColorComponentBBit | vk.ColorComponentABit),
	}
	colorBlendingInfo := vk.PipelineColorBlendStateCreateInfo{
		SType:           vk.StructureTypePipelineColorBlendStateCreateInfo,
		LogicOpEnable:   vk.False,
		LogicOp:         vk.LogicOpCopy,
		AttachmentCount: 1,
		PAttachments:    []vk.PipelineColorBlendAttachmentState{colorBlendAttachmentInfo},
		BlendConstants:  [4]float32{0, 0, 0, 0},
	}

	pipelineInfo := vk.GraphicsPipelineCreateInfo{
		SType:               vk.StructureTypeGraphicsPipelineCreateInfo,
		StageCount:          2,
		PStages:             shaderStages,
		PVertexInputState:   &vertexInputInfo,
		PInputAssemblyState: &inputAssemblyInfo,
		PViewportState:      &viewportStateInfo,
		PRasterizationState: &fillRasterizerInfo,
		PMultisampleState:   &multisamplingInfo,
		PColorBlendState:    &colorBlendingInfo,
		PDynamicState:       &dynamicStateCreateInfo,
		Layout:              p.Layout,
		RenderPass:          p.RenderPass,
		Subpass:             0,
		BasePipelineHandle:  nil,
		BasePipelineIndex:   -1,
	}
	pipelineInfos := []vk.GraphicsPipelineCreateInfo{pipelineInfo}

	wireframeSupported := dc.Gpu.Features.FillModeNonSolid == vk.True
	if wireframeSupported {
		wireInfo := pipelineInfo
		wireInfo.PRasterizationState = &wireRasterizerInfo
		pipelineInfos = append(pipelineInfos, wireInfo)
	} else {
		log.Println("Wireframe fill mode not supported by this gpu, staying on solid fill")
	}

	pipelines := make([]vk.Pipeline, len(pipelineInfos))
	if err := com.NewError(vk.CreateGraphicsPipelines(p.device, p.cache, uint32(len(pipelineInfos)), pipelineInfos, nil, pipelines)); err != nil {
		return fmt.Errorf("failed to create graphics pipelines: %w", err)
	}
	p.Fill = pipelines[0]
	if wireframeSupported {
		p.Wireframe = pipelines[1]
	}
	log.Printf("Successfully created %d graphics pipelines", len(pipelines))
	return nil
}

// persistCache writes the current pipeline cache blob back to its file so the
// next start skips shader compilation. Any failure here only costs that
// speedup.
func (p *Pipeline) persistCache() {
	if p.cache == nil || p.cachePath == "" {
		return
	}
	var size uint64
	if err := com.NewError(vk.GetPipelineCacheData(p.device, p.cache, &size, nil)); err != nil {
		log.Printf("Failed to query pipeline cache size: %v", err)
		return
	}
	if size == 0 {
		return
	}
	data := make([]byte, size)
	if err := com.NewError(vk.GetPipelineCacheData(p.device, p.cache, &size, unsafe.Pointer(&data[0]))); err != nil {
		log.Printf("Failed to read pipeline cache: %v", err)
		return
	}
	if err := os.WriteFile(p.cachePath, data, 0644); err != nil {
		log.Printf("Failed to write pipeline cache to '%s': %v", p.cachePath, err)
		return
	}
	log.Printf("Persisted pipeline cache (%dByte) to '%s'", len(data), p.cachePath)
}

func (p *Pipeline) Destroy() {
	p.persistCache()
	vk.DestroyPipeline(p.device, p.Fill, nil)
	vk.DestroyPipeline(p.device, p.Wireframe, nil)
	vk.DestroyPipelineCache(p.device, p.cache, nil)
	vk.DestroyPipelineLayout(p.device, p.Layout, nil)
	vk.DestroyRenderPass(p.device, p.RenderPass, nil)
}
