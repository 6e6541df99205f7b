package common

import (
	"errors"
	"fmt"
	"log"
	"unsafe"

	vk "github.com/goki/vulkan"
)

// Allocation helpers for buffers and images on the selected device.

type Buffer struct {
	Handle    vk.Buffer
	DeviceMem vk.DeviceMemory
	Size      vk.DeviceSize
	Usage     vk.BufferUsageFlags
	props     vk.MemoryPropertyFlags
}

// CreateBuffer allocates a buffer of the given size with backing device
// memory of the requested property flags bound to it.
func CreateBuffer(dc *Device, size vk.DeviceSize, usage vk.BufferUsageFlags, props vk.MemoryPropertyFlags) (*Buffer, error) {
	bufferInfo := vk.BufferCreateInfo{
		SType:                 vk.StructureTypeBufferCreateInfo,
		PNext:                 nil,
		Flags:                 0,
		Size:                  size,
		Usage:                 usage,
		SharingMode:           vk.SharingModeExclusive,
		QueueFamilyIndexCount: 0,
		PQueueFamilyIndices:   nil,
	}
	var buf vk.Buffer
	if err := NewError(vk.CreateBuffer(dc.D, &bufferInfo, nil, &buf)); err != nil {
		return nil, err
	}

	var bufRequirements vk.MemoryRequirements
	vk.GetBufferMemoryRequirements(dc.D, buf, &bufRequirements)
	bufRequirements.Deref()

	memType, err := findMemoryType(dc, bufRequirements.MemoryTypeBits, props)
	if err != nil {
		return nil, err
	}
	allocInfo := vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		PNext:           nil,
		AllocationSize:  bufRequirements.Size,
		MemoryTypeIndex: memType,
	}
	var deviceMem vk.DeviceMemory
	if err := NewError(vk.AllocateMemory(dc.D, &allocInfo, nil, &deviceMem)); err != nil {
		return nil, err
	}

	// Associate allocated memory with the buffer handle
	if err := NewError(vk.BindBufferMemory(dc.D, buf, deviceMem, 0)); err != nil {
		return nil, err
	}

	return &Buffer{
		Handle:    buf,
		DeviceMem: deviceMem,
		Size:      size,
		Usage:     usage,
		props:     props,
	}, nil
}

// Map exposes the whole buffer to the CPU. The mapping stays valid until the
// buffer dies, per frame writers keep it around instead of remapping.
func (b *Buffer) Map(dc *Device) (unsafe.Pointer, error) {
	var pData unsafe.Pointer
	if err := NewError(vk.MapMemory(dc.D, b.DeviceMem, 0, b.Size, 0, &pData)); err != nil {
		return nil, err
	}
	return pData, nil
}

// CopyToDeviceBuffer is a convenience method to simplify the process of mapping device memory to CPU memory,
// copy bytes over to the GPU and unmapping the memory again. This requires the buffer to:
// - have the stated Usage: vk.BufferUsageTransferSrcBit
// - be: vk.MemoryPropertyHostVisibleBit and vk.MemoryPropertyHostCoherentBit
func CopyToDeviceBuffer(dc *Device, deviceBuf *Buffer, payload []byte) error {
	hasTransferUsage := deviceBuf.Usage&vk.BufferUsageFlags(vk.BufferUsageTransferSrcBit) != 0
	isHostVisCoh := deviceBuf.props&vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit|vk.MemoryPropertyHostCoherentBit) != 0
	if !(hasTransferUsage && isHostVisCoh) {
		return errors.New("cant copy to device buffer as buffer is not suitable")
	}
	// Only a "full buffer" worth of payload starting at offset 0 can be copied.
	if deviceBuf.Size != vk.DeviceSize(uint64(len(payload))) {
		return fmt.Errorf("cant copy to device buffer, buffer (%d) and payload (%d) not of equal size", deviceBuf.Size, len(payload))
	}
	// Map -> copy -> Unmap
	pData, err := deviceBuf.Map(dc)
	if err != nil {
		return err
	}
	bCopied := vk.Memcopy(pData, payload)
	log.Printf("copied %d bytes from cpu to device", bCopied)
	vk.UnmapMemory(dc.D, deviceBuf.DeviceMem)
	return nil
}

func DestroyBuffer(dc *Device, buffer *Buffer) {
	vk.DestroyBuffer(dc.D, buffer.Handle, nil)
	vk.FreeMemory(dc.D, buffer.DeviceMem, nil)
}

// CreateImage allocates a 2D single level image with bound device memory of
// the requested property flags.
func CreateImage(dc *Device, w uint32, h uint32, format vk.Format, tiling vk.ImageTiling, usage vk.ImageUsageFlags, props vk.MemoryPropertyFlags) (vk.Image, vk.DeviceMemory, error) {
	imageInfo := &vk.ImageCreateInfo{
		SType:     vk.StructureTypeImageCreateInfo,
		PNext:     nil,
		Flags:     0,
		ImageType: vk.ImageType2d,
		Format:    format,
		Extent: vk.Extent3D{
			Width:  w,
			Height: h,
			Depth:  1,
		},
		MipLevels:             1,
		ArrayLayers:           1,
		Samples:               vk.SampleCount1Bit,
		Tiling:                tiling,
		Usage:                 usage,
		SharingMode:           vk.SharingModeExclusive,
		QueueFamilyIndexCount: 0,
		PQueueFamilyIndices:   nil,
		InitialLayout:         vk.ImageLayoutUndefined,
	}
	var img vk.Image
	if err := NewError(vk.CreateImage(dc.D, imageInfo, nil, &img)); err != nil {
		return nil, nil, err
	}

	var memRequirements vk.MemoryRequirements
	vk.GetImageMemoryRequirements(dc.D, img, &memRequirements)
	memRequirements.Deref()

	memType, err := findMemoryType(dc, memRequirements.MemoryTypeBits, props)
	if err != nil {
		return nil, nil, err
	}
	allocInfo := &vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		PNext:           nil,
		AllocationSize:  memRequirements.Size,
		MemoryTypeIndex: memType,
	}
	var imgMemory vk.DeviceMemory
	if err := NewError(vk.AllocateMemory(dc.D, allocInfo, nil, &imgMemory)); err != nil {
		return nil, nil, err
	}
	if err := NewError(vk.BindImageMemory(dc.D, img, imgMemory, 0)); err != nil {
		return nil, nil, err
	}
	return img, imgMemory, nil
}

func findMemoryType(dc *Device, typeFilter uint32, propFlags vk.MemoryPropertyFlags) (uint32, error) {
	for i := uint32(0); i < dc.Gpu.MemProps.MemoryTypeCount; i++ {
		ofType := (typeFilter & (1 << i)) > 0
		hasProperties := dc.Gpu.MemProps.MemoryTypes[i].PropertyFlags&propFlags == propFlags
		if ofType && hasProperties {
			log.Printf("Found memory type for buffer -> %d on heap %d", i, dc.Gpu.MemProps.MemoryTypes[i].HeapIndex)
			return i, nil
		}
	}
	return 0, errors.New("failed to find suitable memory type")
}
