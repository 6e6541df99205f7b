package renderer

import (
	"fmt"
	"log"

	vk "github.com/goki/vulkan"
	"neilpa.me/go-stbi"

	com "vulkan_render_base/common"
)

// Texture is a sampled 2D image living in device local memory together with
// its view and sampler. Upload runs through a staging buffer and a single
// command block that owns both layout transitions and the copy in between.
type Texture struct {
	device vk.Device
	drv    com.Driver

	image    vk.Image
	imageMem vk.DeviceMemory
	View     vk.ImageView
	Sampler  vk.Sampler
}

func NewTexture(dc *com.Device, drv com.Driver, pool vk.CommandPool, path string) (*Texture, error) {
	pix, w, h := loadPixels(path)
	imgSize := vk.DeviceSize(w * h * 4)
	log.Printf("Loaded image %s (w: %dpx, h: %dpx) %d Byte", path, w, h, imgSize)

	stgBuf, err := com.CreateBuffer(
		dc,
		imgSize,
		vk.BufferUsageFlags(vk.BufferUsageTransferSrcBit),
		vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit|vk.MemoryPropertyHostCoherentBit),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create texture staging buffer: %w", err)
	}
	defer com.DestroyBuffer(dc, stgBuf)
	if err := com.CopyToDeviceBuffer(dc, stgBuf, pix); err != nil {
		return nil, err
	}

	image, imageMem, err := com.CreateImage(
		dc,
		uint32(w),
		uint32(h),
		vk.FormatR8g8b8a8Srgb,
		vk.ImageTilingOptimal,
		vk.ImageUsageFlags(vk.ImageUsageTransferDstBit|vk.ImageUsageSampledBit),
		vk.MemoryPropertyFlags(vk.MemoryPropertyDeviceLocalBit),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create texture image: %w", err)
	}
	t := &Texture{device: dc.D, drv: drv, image: image, imageMem: imageMem}

	if err := t.upload(dc, drv, pool, stgBuf, uint32(w), uint32(h)); err != nil {
		t.Destroy()
		return nil, err
	}
	if err := t.createView(); err != nil {
		t.Destroy()
		return nil, err
	}
	if err := t.createSampler(dc); err != nil {
		t.Destroy()
		return nil, err
	}
	return t, nil
}

// loadPixels reads the image file as RGBA. A missing or broken texture file
// is not fatal, rendering continues on a single white pixel.
func loadPixels(path string) ([]byte, int, int) {
	img, err := stbi.Load(path)
	if err != nil {
		log.Printf("Failed to load texture '%s', falling back to a white pixel: %v", path, err)
		return []byte{255, 255, 255, 255}, 1, 1
	}
	return img.Pix, img.Rect.Dx(), img.Rect.Dy()
}

// upload records the transition to TransferDstOptimal, the buffer to image
// copy and the transition to ShaderReadOnlyOptimal into one command block
// and blocks until the GPU is done with all three.
func (t *Texture) upload(dc *com.Device, drv com.Driver, pool vk.CommandPool, stgBuf *com.Buffer, w uint32, h uint32) error {
	block, err := com.NewCommandBlock(drv, dc.Queue, pool)
	if err != nil {
		return err
	}

	toTransfer := vk.ImageMemoryBarrier{
		SType:               vk.StructureTypeImageMemoryBarrier,
		SrcAccessMask:       0,
		DstAccessMask:       vk.AccessFlags(vk.AccessTransferWriteBit),
		OldLayout:           vk.ImageLayoutUndefined,
		NewLayout:           vk.ImageLayoutTransferDstOptimal,
		SrcQueueFamilyIndex: vk.QueueFamilyIgnored,
		DstQueueFamilyIndex: vk.QueueFamilyIgnored,
		Image:               t.image,
		SubresourceRange:    colorSubresourceRange(),
	}
	drv.CmdPipelineBarrier(
		block.Buffer(),
		vk.PipelineStageFlags(vk.PipelineStageTopOfPipeBit),
		vk.PipelineStageFlags(vk.PipelineStageTransferBit),
		toTransfer,
	)

	region := vk.BufferImageCopy{
		BufferOffset:      0,
		BufferRowLength:   0,
		BufferImageHeight: 0,
		ImageSubresource: vk.ImageSubresourceLayers{
			AspectMask:     vk.ImageAspectFlags(vk.ImageAspectColorBit),
			MipLevel:       0,
			BaseArrayLayer: 0,
			LayerCount:     1,
		},
		ImageOffset: vk.Offset3D{X: 0, Y: 0, Z: 0},
		ImageExtent: vk.Extent3D{
			Width:  w,
			Height: h,
			Depth:  1,
		},
	}
	vk.CmdCopyBufferToImage(block.Buffer(), stgBuf.Handle, t.image, vk.ImageLayoutTransferDstOptimal, 1, []vk.BufferImageCopy{region})

	toShader := vk.ImageMemoryBarrier{
		SType:               vk.StructureTypeImageMemoryBarrier,
		SrcAccessMask:       vk.AccessFlags(vk.AccessTransferWriteBit),
		DstAccessMask:       vk.AccessFlags(vk.AccessShaderReadBit),
		OldLayout:           vk.ImageLayoutTransferDstOptimal,
		NewLayout:           vk.ImageLayoutShaderReadOnlyOptimal,
		SrcQueueFamilyIndex: vk.QueueFamilyIgnored,
		DstQueueFamilyIndex: vk.QueueFamilyIgnored,
		Image:               t.image,
		SubresourceRange:    colorSubresourceRange(),
	}
	drv.CmdPipelineBarrier(
		block.Buffer(),
		vk.PipelineStageFlags(vk.PipelineStageTransferBit),
		vk.PipelineStageFlags(vk.PipelineStageFragmentShaderBit),
		toShader,
	)

	return block.SubmitAndWait()
}

func (t *Texture) createView() error {
	createInfo := &vk.ImageViewCreateInfo{
		SType:    vk.StructureTypeImageViewCreateInfo,
		Image:    t.image,
		ViewType: vk.ImageViewType2d,
		Format:   vk.FormatR8g8b8a8Srgb,
		Components: vk.ComponentMapping{
			R: vk.ComponentSwizzleIdentity,
			G: vk.ComponentSwizzleIdentity,
			B: vk.ComponentSwizzleIdentity,
			A: vk.ComponentSwizzleIdentity,
		},
		SubresourceRange: colorSubresourceRange(),
	}
	view, err := t.drv.CreateImageView(createInfo)
	if err != nil {
		return fmt.Errorf("failed to create texture image view: %w", err)
	}
	t.View = view
	return nil
}

func (t *Texture) createSampler(dc *com.Device) error {
	anisotropyEnable := vk.Bool32(vk.False)
	maxAnisotropy := float32(1.0)
	if dc.Gpu.Features.SamplerAnisotropy == vk.True {
		anisotropyEnable = vk.True
		maxAnisotropy = dc.Gpu.Props.Limits.MaxSamplerAnisotropy
	}
	samplerInfo := &vk.SamplerCreateInfo{
		SType:                   vk.StructureTypeSamplerCreateInfo,
		MagFilter:               vk.FilterLinear,
		MinFilter:               vk.FilterLinear,
		MipmapMode:              vk.SamplerMipmapModeLinear,
		AddressModeU:            vk.SamplerAddressModeClampToEdge,
		AddressModeV:            vk.SamplerAddressModeClampToEdge,
		AddressModeW:            vk.SamplerAddressModeClampToEdge,
		MipLodBias:              0.0,
		AnisotropyEnable:        anisotropyEnable,
		MaxAnisotropy:           maxAnisotropy,
		CompareEnable:           vk.False,
		CompareOp:               vk.CompareOpAlways,
		MinLod:                  0.0,
		MaxLod:                  0.0,
		BorderColor:             vk.BorderColorIntOpaqueBlack,
		UnnormalizedCoordinates: vk.False,
	}
	var sampler vk.Sampler
	if err := com.NewError(vk.CreateSampler(dc.D, samplerInfo, nil, &sampler)); err != nil {
		return fmt.Errorf("failed to create texture sampler: %w", err)
	}
	t.Sampler = sampler
	return nil
}

func (t *Texture) Destroy() {
	vk.DestroySampler(t.device, t.Sampler, nil)
	t.drv.DestroyImageView(t.View)
	vk.DestroyImage(t.device, t.image, nil)
	vk.FreeMemory(t.device, t.imageMem, nil)
}

func colorSubresourceRange() vk.ImageSubresourceRange {
	return vk.ImageSubresourceRange{
		AspectMask:     vk.ImageAspectFlags(vk.ImageAspectColorBit),
		BaseMipLevel:   0,
		LevelCount:     1,
		BaseArrayLayer: 0,
		LayerCount:     1,
	}
}
