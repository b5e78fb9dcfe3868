// gltf_accessors.go implements the typed accessor readers of the gltfParser
// interface: strided, typed numeric arrays decoded from the loaded buffers,
// with normalized-integer rescaling per the glTF 2.0 rules.
package loader

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

func (p *gltfParserImpl) ReadAccessorData(accessorIndex int) ([]byte, error) {
	if p.document == nil {
		return nil, errors.New("no document loaded")
	}
	if accessorIndex < 0 || accessorIndex >= len(p.document.Accessors) {
		return nil, fmt.Errorf("accessor index %d out of range", accessorIndex)
	}

	acc := &p.document.Accessors[accessorIndex]

	if acc.Sparse != nil {
		return nil, fmt.Errorf("accessor %d: %w", accessorIndex, errSparseAccessor)
	}
	if acc.BufferView == nil {
		return nil, fmt.Errorf("accessor %d has no bufferView", accessorIndex)
	}
	if *acc.BufferView < 0 || *acc.BufferView >= len(p.document.BufferViews) {
		return nil, fmt.Errorf("accessor %d: bufferView index %d out of range", accessorIndex, *acc.BufferView)
	}

	bv := &p.document.BufferViews[*acc.BufferView]
	if bv.Buffer < 0 || bv.Buffer >= len(p.document.Buffers) {
		return nil, fmt.Errorf("accessor %d: buffer index %d out of range", accessorIndex, bv.Buffer)
	}
	buf := &p.document.Buffers[bv.Buffer]

	componentSize := gltfComponentTypeSize(acc.ComponentType)
	if componentSize == 0 {
		return nil, fmt.Errorf("accessor %d: unsupported component type %d", accessorIndex, acc.ComponentType)
	}
	componentCount := gltfAccessorTypeComponentCount(acc.Type)
	if componentCount == 0 {
		return nil, fmt.Errorf("accessor %d: unsupported accessor type %q", accessorIndex, acc.Type)
	}
	elementSize := componentSize * componentCount

	// Element stride: explicit bufferView stride, or tightly packed.
	stride := elementSize
	if bv.ByteStride != nil && *bv.ByteStride > 0 {
		stride = *bv.ByteStride
	}

	bufferOffset := bv.ByteOffset + acc.ByteOffset
	if acc.Count > 0 {
		lastEnd := bufferOffset + (acc.Count-1)*stride + elementSize
		if lastEnd > len(buf.Data) {
			return nil, fmt.Errorf("accessor %d: %w", accessorIndex, errAccessorOutOfBounds)
		}
	}

	result := make([]byte, acc.Count*elementSize)
	for i := 0; i < acc.Count; i++ {
		srcOffset := bufferOffset + i*stride
		copy(result[i*elementSize:(i+1)*elementSize], buf.Data[srcOffset:srcOffset+elementSize])
	}

	return result, nil
}

// readFloatComponents reads an accessor's components as float32 values,
// applying the normalized-integer conversion when the accessor requests it:
// unsigned types rescale to [0,1], signed types to [-1,1] clamped away from
// the most-negative value. Non-normalized integers are cast to float.
func (p *gltfParserImpl) readFloatComponents(accessorIndex int, expectedType string) ([]float32, error) {
	acc := &p.document.Accessors[accessorIndex]
	if acc.Type != expectedType {
		return nil, fmt.Errorf("accessor %d is not %s: type=%s", accessorIndex, expectedType, acc.Type)
	}

	data, err := p.ReadAccessorData(accessorIndex)
	if err != nil {
		return nil, err
	}

	componentCount := gltfAccessorTypeComponentCount(acc.Type)
	total := acc.Count * componentCount
	result := make([]float32, total)

	switch acc.ComponentType {
	case gltfComponentTypeFloat:
		for i := 0; i < total; i++ {
			result[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
		}
	case gltfComponentTypeUnsignedByte:
		for i := 0; i < total; i++ {
			v := float32(data[i])
			if acc.Normalized {
				v /= 255
			}
			result[i] = v
		}
	case gltfComponentTypeByte:
		for i := 0; i < total; i++ {
			v := float32(int8(data[i]))
			if acc.Normalized {
				v /= 127
				if v < -1 {
					v = -1
				}
			}
			result[i] = v
		}
	case gltfComponentTypeUnsignedShort:
		for i := 0; i < total; i++ {
			v := float32(binary.LittleEndian.Uint16(data[i*2:]))
			if acc.Normalized {
				v /= 65535
			}
			result[i] = v
		}
	case gltfComponentTypeShort:
		for i := 0; i < total; i++ {
			v := float32(int16(binary.LittleEndian.Uint16(data[i*2:])))
			if acc.Normalized {
				v /= 32767
				if v < -1 {
					v = -1
				}
			}
			result[i] = v
		}
	default:
		return nil, fmt.Errorf("accessor %d: unsupported float component type %d", accessorIndex, acc.ComponentType)
	}

	return result, nil
}

func (p *gltfParserImpl) ReadVec2Accessor(accessorIndex int) ([][2]float32, error) {
	flat, err := p.readFloatComponents(accessorIndex, gltfAccessorTypeVec2)
	if err != nil {
		return nil, err
	}
	result := make([][2]float32, len(flat)/2)
	for i := range result {
		result[i] = [2]float32{flat[i*2], flat[i*2+1]}
	}
	return result, nil
}

func (p *gltfParserImpl) ReadVec3Accessor(accessorIndex int) ([][3]float32, error) {
	flat, err := p.readFloatComponents(accessorIndex, gltfAccessorTypeVec3)
	if err != nil {
		return nil, err
	}
	result := make([][3]float32, len(flat)/3)
	for i := range result {
		result[i] = [3]float32{flat[i*3], flat[i*3+1], flat[i*3+2]}
	}
	return result, nil
}

func (p *gltfParserImpl) ReadVec4Accessor(accessorIndex int) ([][4]float32, error) {
	flat, err := p.readFloatComponents(accessorIndex, gltfAccessorTypeVec4)
	if err != nil {
		return nil, err
	}
	result := make([][4]float32, len(flat)/4)
	for i := range result {
		result[i] = [4]float32{flat[i*4], flat[i*4+1], flat[i*4+2], flat[i*4+3]}
	}
	return result, nil
}

func (p *gltfParserImpl) ReadScalarAccessor(accessorIndex int) ([]float32, error) {
	return p.readFloatComponents(accessorIndex, gltfAccessorTypeScalar)
}

func (p *gltfParserImpl) ReadMat4Accessor(accessorIndex int) ([][16]float32, error) {
	flat, err := p.readFloatComponents(accessorIndex, gltfAccessorTypeMat4)
	if err != nil {
		return nil, err
	}
	result := make([][16]float32, len(flat)/16)
	for i := range result {
		copy(result[i][:], flat[i*16:(i+1)*16])
	}
	return result, nil
}

func (p *gltfParserImpl) ReadIndicesAccessor(accessorIndex int) ([]uint32, error) {
	acc := &p.document.Accessors[accessorIndex]
	if acc.Type != gltfAccessorTypeScalar {
		return nil, fmt.Errorf("index accessor %d is not SCALAR: type=%s", accessorIndex, acc.Type)
	}

	data, err := p.ReadAccessorData(accessorIndex)
	if err != nil {
		return nil, err
	}

	result := make([]uint32, acc.Count)

	switch acc.ComponentType {
	case gltfComponentTypeUnsignedByte:
		for i := 0; i < acc.Count; i++ {
			result[i] = uint32(data[i])
		}
	case gltfComponentTypeUnsignedShort:
		for i := 0; i < acc.Count; i++ {
			result[i] = uint32(binary.LittleEndian.Uint16(data[i*2:]))
		}
	case gltfComponentTypeUnsignedInt:
		for i := 0; i < acc.Count; i++ {
			result[i] = binary.LittleEndian.Uint32(data[i*4:])
		}
	default:
		return nil, fmt.Errorf("unsupported index component type: %d", acc.ComponentType)
	}

	return result, nil
}

func (p *gltfParserImpl) ReadJointsAccessor(accessorIndex int) ([][4]uint32, error) {
	acc := &p.document.Accessors[accessorIndex]
	if acc.Type != gltfAccessorTypeVec4 {
		return nil, fmt.Errorf("joints accessor %d is not VEC4: type=%s", accessorIndex, acc.Type)
	}

	data, err := p.ReadAccessorData(accessorIndex)
	if err != nil {
		return nil, err
	}

	result := make([][4]uint32, acc.Count)

	switch acc.ComponentType {
	case gltfComponentTypeUnsignedByte:
		for i := 0; i < acc.Count; i++ {
			for j := 0; j < 4; j++ {
				result[i][j] = uint32(data[i*4+j])
			}
		}
	case gltfComponentTypeUnsignedShort:
		for i := 0; i < acc.Count; i++ {
			for j := 0; j < 4; j++ {
				result[i][j] = uint32(binary.LittleEndian.Uint16(data[(i*4+j)*2:]))
			}
		}
	default:
		return nil, fmt.Errorf("unsupported joints component type: %d", acc.ComponentType)
	}

	return result, nil
}

// --- Helper Functions ---

// gltfComponentTypeSize returns the byte size of a component type, or 0 for
// unsupported types.
func gltfComponentTypeSize(componentType int) int {
	switch componentType {
	case gltfComponentTypeByte, gltfComponentTypeUnsignedByte:
		return 1
	case gltfComponentTypeShort, gltfComponentTypeUnsignedShort:
		return 2
	case gltfComponentTypeUnsignedInt, gltfComponentTypeFloat:
		return 4
	default:
		return 0
	}
}

// gltfAccessorTypeComponentCount returns the number of components for an
// accessor type, or 0 for unsupported types.
func gltfAccessorTypeComponentCount(accessorType string) int {
	switch accessorType {
	case gltfAccessorTypeScalar:
		return 1
	case gltfAccessorTypeVec2:
		return 2
	case gltfAccessorTypeVec3:
		return 3
	case gltfAccessorTypeVec4:
		return 4
	case gltfAccessorTypeMat4:
		return 16
	default:
		return 0
	}
}
