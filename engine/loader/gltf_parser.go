package loader

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Common errors returned by the parser. These are the format-error taxonomy:
// any of them aborts the load, no partial asset is returned.
var (
	errInvalidGLTFVersion  = errors.New("invalid glTF version: must be 2.x")
	errInvalidGLBMagic     = errors.New("invalid GLB magic number")
	errInvalidGLBVersion   = errors.New("invalid GLB version: must be 2")
	errTruncatedGLB        = errors.New("GLB file truncated")
	errMissingJSONChunk    = errors.New("GLB file missing JSON chunk")
	errInvalidBufferURI    = errors.New("invalid buffer URI")
	errBufferSizeMismatch  = errors.New("buffer size mismatch")
	errSparseAccessor      = errors.New("sparse accessors not supported")
	errAccessorOutOfBounds = errors.New("accessor data exceeds buffer bounds")
)

// gltfParserImpl is the implementation of the gltfParser interface.
type gltfParserImpl struct {
	baseDir        string
	document       *gltfDocument
	glbBinaryChunk []byte
}

// gltfParser defines the interface for loading and parsing glTF/GLB files.
// It handles file I/O, JSON deserialization, buffer loading, and typed
// accessor reads. This is internal to the loader package.
type gltfParser interface {
	// Parse loads and parses a glTF/GLB file from the given path.
	// Automatically detects .gltf (JSON) vs .glb (binary) format.
	//
	// Parameters:
	//   - path: path to the glTF or GLB file
	//
	// Returns:
	//   - error: error if parsing fails
	Parse(path string) error

	// ParseBytes parses a glTF document from an in-memory buffer. The binary
	// chunk of a GLB buffer is referenced, not copied, so the caller must not
	// mutate data while the parsed document is in use.
	//
	// Parameters:
	//   - data: glTF JSON or GLB bytes
	//   - isGLB: true if the data is in GLB format
	//
	// Returns:
	//   - error: error if parsing fails
	ParseBytes(data []byte, isGLB bool) error

	// Document returns the parsed glTF document, or nil before a successful
	// Parse.
	//
	// Returns:
	//   - *gltfDocument: the parsed document or nil
	Document() *gltfDocument

	// BaseDir returns the directory containing the loaded glTF file, used
	// for resolving relative URIs to external resources.
	//
	// Returns:
	//   - string: the base directory path
	BaseDir() string

	// ReadAccessorData reads an accessor's raw bytes, de-interleaving strided
	// bufferViews into a tightly packed element array.
	//
	// Parameters:
	//   - accessorIndex: the index of the accessor
	//
	// Returns:
	//   - []byte: the packed raw data
	//   - error: error if reading fails
	ReadAccessorData(accessorIndex int) ([]byte, error)

	// ReadVec2Accessor reads an accessor as vec2 float data, converting
	// normalized integer components per the accessor's normalized flag.
	//
	// Parameters:
	//   - accessorIndex: the index of the accessor
	//
	// Returns:
	//   - [][2]float32: the vec2 data
	//   - error: error if reading fails
	ReadVec2Accessor(accessorIndex int) ([][2]float32, error)

	// ReadVec3Accessor reads an accessor as vec3 float data, converting
	// normalized integer components per the accessor's normalized flag.
	//
	// Parameters:
	//   - accessorIndex: the index of the accessor
	//
	// Returns:
	//   - [][3]float32: the vec3 data
	//   - error: error if reading fails
	ReadVec3Accessor(accessorIndex int) ([][3]float32, error)

	// ReadVec4Accessor reads an accessor as vec4 float data, converting
	// normalized integer components per the accessor's normalized flag.
	//
	// Parameters:
	//   - accessorIndex: the index of the accessor
	//
	// Returns:
	//   - [][4]float32: the vec4 data
	//   - error: error if reading fails
	ReadVec4Accessor(accessorIndex int) ([][4]float32, error)

	// ReadScalarAccessor reads an accessor as scalar float data.
	//
	// Parameters:
	//   - accessorIndex: the index of the accessor
	//
	// Returns:
	//   - []float32: the scalar data
	//   - error: error if reading fails
	ReadScalarAccessor(accessorIndex int) ([]float32, error)

	// ReadMat4Accessor reads an accessor as mat4 float data.
	//
	// Parameters:
	//   - accessorIndex: the index of the accessor
	//
	// Returns:
	//   - [][16]float32: the column-major mat4 data
	//   - error: error if reading fails
	ReadMat4Accessor(accessorIndex int) ([][16]float32, error)

	// ReadIndicesAccessor reads an accessor as index data (uint32).
	// Handles UNSIGNED_BYTE, UNSIGNED_SHORT, and UNSIGNED_INT component types.
	//
	// Parameters:
	//   - accessorIndex: the index of the accessor
	//
	// Returns:
	//   - []uint32: the index data (converted to uint32)
	//   - error: error if reading fails
	ReadIndicesAccessor(accessorIndex int) ([]uint32, error)

	// ReadJointsAccessor reads an accessor as joint indices (vec4 uint).
	// Handles UNSIGNED_BYTE and UNSIGNED_SHORT component types.
	//
	// Parameters:
	//   - accessorIndex: the index of the accessor
	//
	// Returns:
	//   - [][4]uint32: the joint indices (converted to uint32)
	//   - error: error if reading fails
	ReadJointsAccessor(accessorIndex int) ([][4]uint32, error)

	// ReadBufferViewRaw reads raw bytes from a buffer view by index, without
	// accessor interpretation. Used for embedded image payloads.
	//
	// Parameters:
	//   - bufferViewIndex: the index of the bufferView
	//
	// Returns:
	//   - []byte: a copy of the bufferView's bytes
	//   - error: error if reading fails
	ReadBufferViewRaw(bufferViewIndex int) ([]byte, error)
}

var _ gltfParser = &gltfParserImpl{}

// newGLTFParser creates a new glTF parser instance.
//
// Returns:
//   - gltfParser: a new parser instance
func newGLTFParser() gltfParser {
	return &gltfParserImpl{}
}

func (p *gltfParserImpl) Document() *gltfDocument {
	return p.document
}

func (p *gltfParserImpl) BaseDir() string {
	return p.baseDir
}

func (p *gltfParserImpl) Parse(path string) error {
	p.baseDir = filepath.Dir(path)

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}

	ext := strings.ToLower(filepath.Ext(path))
	isGLB := ext == ".glb" || (len(data) >= 4 && binary.LittleEndian.Uint32(data[:4]) == gltfGLBMagic)
	return p.ParseBytes(data, isGLB)
}

func (p *gltfParserImpl) ParseBytes(data []byte, isGLB bool) error {
	if isGLB {
		return p.parseGLB(data)
	}
	return p.parseGLTF(data)
}

// parseGLTF parses a plain glTF JSON document.
func (p *gltfParserImpl) parseGLTF(data []byte) error {
	var doc gltfDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("failed to parse glTF JSON: %w", err)
	}

	if !strings.HasPrefix(doc.Asset.Version, "2.") {
		return errInvalidGLTFVersion
	}

	if err := p.loadBuffers(&doc); err != nil {
		return fmt.Errorf("failed to load buffers: %w", err)
	}

	p.document = &doc
	return nil
}

// parseGLB parses a GLB binary container: a 12-byte header followed by
// length-prefixed chunks. The JSON chunk is required; the BIN chunk is kept
// as a view into data; unknown chunk types are skipped.
// Reference: https://registry.khronos.org/glTF/specs/2.0/glTF-2.0.html#glb-file-format-specification
func (p *gltfParserImpl) parseGLB(data []byte) error {
	if len(data) < 12 {
		return errTruncatedGLB
	}

	var header gltfGLBHeader
	if err := binary.Read(bytes.NewReader(data[:12]), binary.LittleEndian, &header); err != nil {
		return fmt.Errorf("failed to read GLB header: %w", err)
	}

	if header.Magic != gltfGLBMagic {
		return errInvalidGLBMagic
	}
	if header.Version != gltfGLBVersion {
		return errInvalidGLBVersion
	}
	if int(header.Length) > len(data) {
		return fmt.Errorf("declared length %d exceeds buffer size %d: %w", header.Length, len(data), errTruncatedGLB)
	}

	var jsonData []byte
	var binData []byte

	offset := 12
	for offset < int(header.Length) {
		if offset+8 > len(data) {
			return fmt.Errorf("chunk header at offset %d: %w", offset, errTruncatedGLB)
		}
		chunkLength := int(binary.LittleEndian.Uint32(data[offset:]))
		chunkType := binary.LittleEndian.Uint32(data[offset+4:])
		offset += 8

		if offset+chunkLength > len(data) {
			return fmt.Errorf("chunk of length %d at offset %d: %w", chunkLength, offset, errTruncatedGLB)
		}

		switch chunkType {
		case gltfGLBChunkJSON:
			jsonData = data[offset : offset+chunkLength]
		case gltfGLBChunkBIN:
			binData = data[offset : offset+chunkLength]
		default:
			// Unknown chunk types are skipped, not errors.
		}

		offset += chunkLength
	}

	if jsonData == nil {
		return errMissingJSONChunk
	}

	// JSON chunks are 4-byte aligned with trailing space padding; BIN chunks
	// may carry trailing NULs.
	jsonData = bytes.TrimRight(jsonData, "\x00 \t\r\n")

	p.glbBinaryChunk = binData

	var doc gltfDocument
	if err := json.Unmarshal(jsonData, &doc); err != nil {
		return fmt.Errorf("failed to parse glTF JSON: %w", err)
	}

	if !strings.HasPrefix(doc.Asset.Version, "2.") {
		return errInvalidGLTFVersion
	}

	if err := p.loadBuffers(&doc); err != nil {
		return fmt.Errorf("failed to load buffers: %w", err)
	}

	p.document = &doc
	return nil
}

// loadBuffers loads all buffer data (from URIs, embedded data, or the GLB
// binary chunk).
func (p *gltfParserImpl) loadBuffers(doc *gltfDocument) error {
	for i := range doc.Buffers {
		buf := &doc.Buffers[i]

		if buf.URI == "" {
			if i == 0 && p.glbBinaryChunk != nil {
				buf.Data = p.glbBinaryChunk
				if len(buf.Data) < buf.ByteLength {
					return fmt.Errorf("buffer %d: %w", i, errBufferSizeMismatch)
				}
				continue
			}
			return fmt.Errorf("buffer %d has no URI and no GLB binary chunk", i)
		}

		data, err := p.loadBufferURI(buf.URI)
		if err != nil {
			return fmt.Errorf("buffer %d: %w", i, err)
		}
		buf.Data = data

		if len(buf.Data) < buf.ByteLength {
			return fmt.Errorf("buffer %d: %w", i, errBufferSizeMismatch)
		}
	}

	return nil
}

// loadBufferURI loads buffer data from a URI (data: URI or file path).
func (p *gltfParserImpl) loadBufferURI(uri string) ([]byte, error) {
	if strings.HasPrefix(uri, "data:") {
		data, _, err := gltfDecodeDataURI(uri)
		return data, err
	}

	fullPath := filepath.Join(p.baseDir, uri)
	data, err := os.ReadFile(fullPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load buffer file %q: %w", uri, err)
	}

	return data, nil
}

// gltfDecodeDataURI decodes a base64 data URI of the form
// data:[<mediatype>][;base64],<data> and returns the payload and media type.
func gltfDecodeDataURI(uri string) ([]byte, string, error) {
	commaIdx := strings.Index(uri, ",")
	if commaIdx < 0 {
		return nil, "", errInvalidBufferURI
	}

	header := uri[5:commaIdx]
	dataStr := uri[commaIdx+1:]

	if !strings.Contains(header, "base64") {
		return nil, "", fmt.Errorf("unsupported data URI encoding: %s", header)
	}

	mimeType := header
	if idx := strings.Index(header, ";"); idx >= 0 {
		mimeType = header[:idx]
	}

	data, err := base64.StdEncoding.DecodeString(dataStr)
	if err != nil {
		return nil, "", fmt.Errorf("failed to decode base64: %w", err)
	}

	return data, mimeType, nil
}

func (p *gltfParserImpl) ReadBufferViewRaw(bufferViewIndex int) ([]byte, error) {
	if p.document == nil {
		return nil, errors.New("no document loaded")
	}
	if bufferViewIndex < 0 || bufferViewIndex >= len(p.document.BufferViews) {
		return nil, fmt.Errorf("bufferView index %d out of range", bufferViewIndex)
	}

	bv := &p.document.BufferViews[bufferViewIndex]
	if bv.Buffer < 0 || bv.Buffer >= len(p.document.Buffers) {
		return nil, fmt.Errorf("buffer index %d out of range", bv.Buffer)
	}

	buf := &p.document.Buffers[bv.Buffer]
	end := bv.ByteOffset + bv.ByteLength
	if end > len(buf.Data) {
		return nil, fmt.Errorf("bufferView %d: offset=%d length=%d bufSize=%d: %w",
			bufferViewIndex, bv.ByteOffset, bv.ByteLength, len(buf.Data), errAccessorOutOfBounds)
	}

	data := make([]byte, bv.ByteLength)
	copy(data, buf.Data[bv.ByteOffset:end])
	return data, nil
}
