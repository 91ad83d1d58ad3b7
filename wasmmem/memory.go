// Package wasmmem exposes the linear memory of a WebAssembly codec module
// as boundary buffers.
//
// Guest pointers are offsets into linear memory. Envelopes written by the
// guest follow the 64-bit layout of abi.yaml, little-endian, with pointers
// stored as u64 offsets.
package wasmmem

import (
	"encoding/binary"
	"fmt"
	"math"
	"unsafe"

	"github.com/bsm/coltable/boundary"
	"github.com/tetratelabs/wazero/api"
)

// Guest envelope layout.
const (
	byteBufferSize    = 16
	writtenBufferSize = 40
	oneResultSize     = 48
	twoResultSize     = 88
	envelopeAlign     = 8
)

// Memory wraps the linear memory of an instantiated module.
type Memory struct {
	mem api.Memory
}

// New wraps mem.
func New(mem api.Memory) *Memory {
	return &Memory{mem: mem}
}

// FromModule wraps the memory exported by mod.
func FromModule(mod api.Module) (*Memory, error) {
	// Memory() wraps a nil instance for modules without memory, so the
	// interface itself is never nil.
	if len(mod.ExportedMemoryDefinitions()) == 0 {
		return nil, fmt.Errorf("wasmmem: module %q exports no memory", mod.Name())
	}
	return New(mod.Memory()), nil
}

// Size returns the current size of the linear memory in bytes.
func (m *Memory) Size() uint32 { return m.mem.Size() }

// Buffer returns a zero-copy view of the guest buffer described by raw. The
// guest offset is checked for alignment before memory is read. Views are
// invalidated when the guest grows its memory.
func (m *Memory) Buffer(raw boundary.RawBuffer) (boundary.ByteBuffer, error) {
	host, err := m.translate("buffer", raw)
	if err != nil {
		return boundary.ByteBuffer{}, err
	}
	return boundary.FromForeign(host)
}

// WriteBuffer copies data into guest memory at an aligned offset and
// returns the guest-side description of it.
func (m *Memory) WriteBuffer(offset uint32, data []byte) (boundary.RawBuffer, error) {
	if offset%boundary.Alignment != 0 {
		return boundary.RawBuffer{}, &boundary.AlignmentError{Field: "offset", Addr: uintptr(offset), Align: boundary.Alignment}
	}
	if !m.mem.Write(offset, data) {
		return boundary.RawBuffer{}, outOfBounds("buffer", uint64(offset), uint64(len(data)))
	}
	return boundary.RawBuffer{Ptr: uintptr(offset), Len: uint64(len(data))}, nil
}

// ReadOneBufferResult decodes the envelope the guest wrote at offset. The
// envelope is rejected as a whole if its buffer fails validation.
func (m *Memory) ReadOneBufferResult(offset uint32) (boundary.OneBufferResult, error) {
	p, err := m.envelope(offset, oneResultSize)
	if err != nil {
		return boundary.OneBufferResult{}, err
	}

	raw := boundary.RawOneBufferResult{
		Status: boundary.Status(int32(binary.LittleEndian.Uint32(p))),
		Buffer: decodeWritten(p[8:]),
	}
	if raw.Buffer.Buffer, err = m.translate("buffer.buffer", raw.Buffer.Buffer); err != nil {
		return boundary.OneBufferResult{}, err
	}
	return boundary.OneBufferFromForeign(raw)
}

// ReadTwoBufferResult decodes the envelope the guest wrote at offset. The
// envelope is rejected as a whole if either buffer fails validation.
func (m *Memory) ReadTwoBufferResult(offset uint32) (boundary.TwoBufferResult, error) {
	p, err := m.envelope(offset, twoResultSize)
	if err != nil {
		return boundary.TwoBufferResult{}, err
	}

	raw := boundary.RawTwoBufferResult{
		Status:    boundary.Status(int32(binary.LittleEndian.Uint32(p))),
		Primary:   decodeWritten(p[8:]),
		Secondary: decodeWritten(p[8+writtenBufferSize:]),
	}
	if raw.Primary.Buffer, err = m.translate("primary.buffer", raw.Primary.Buffer); err != nil {
		return boundary.TwoBufferResult{}, err
	}
	if raw.Secondary.Buffer, err = m.translate("secondary.buffer", raw.Secondary.Buffer); err != nil {
		return boundary.TwoBufferResult{}, err
	}
	return boundary.TwoBufferFromForeign(raw)
}

// WriteOneBufferResult encodes a guest-side envelope at offset.
func (m *Memory) WriteOneBufferResult(offset uint32, raw boundary.RawOneBufferResult) error {
	p := make([]byte, oneResultSize)
	binary.LittleEndian.PutUint32(p, uint32(raw.Status))
	encodeWritten(p[8:], raw.Buffer)
	return m.writeEnvelope(offset, p)
}

// WriteTwoBufferResult encodes a guest-side envelope at offset.
func (m *Memory) WriteTwoBufferResult(offset uint32, raw boundary.RawTwoBufferResult) error {
	p := make([]byte, twoResultSize)
	binary.LittleEndian.PutUint32(p, uint32(raw.Status))
	encodeWritten(p[8:], raw.Primary)
	encodeWritten(p[8+writtenBufferSize:], raw.Secondary)
	return m.writeEnvelope(offset, p)
}

// --------------------------------------------------------------------

// translate maps a guest buffer onto host memory.
func (m *Memory) translate(field string, raw boundary.RawBuffer) (boundary.RawBuffer, error) {
	if raw.Ptr%boundary.Alignment != 0 {
		return boundary.RawBuffer{}, &boundary.AlignmentError{Field: field, Addr: raw.Ptr, Align: boundary.Alignment}
	}
	if raw.Len == 0 {
		return boundary.RawBuffer{}, nil
	}
	if uint64(raw.Ptr) > math.MaxUint32 || raw.Len > math.MaxUint32 {
		return boundary.RawBuffer{}, outOfBounds(field, uint64(raw.Ptr), raw.Len)
	}

	view, ok := m.mem.Read(uint32(raw.Ptr), uint32(raw.Len))
	if !ok {
		return boundary.RawBuffer{}, outOfBounds(field, uint64(raw.Ptr), raw.Len)
	}
	return boundary.RawBuffer{Ptr: uintptr(unsafe.Pointer(&view[0])), Len: raw.Len}, nil
}

func (m *Memory) envelope(offset, size uint32) ([]byte, error) {
	if offset%envelopeAlign != 0 {
		return nil, &boundary.AlignmentError{Field: "envelope", Addr: uintptr(offset), Align: envelopeAlign}
	}
	p, ok := m.mem.Read(offset, size)
	if !ok {
		return nil, outOfBounds("envelope", uint64(offset), uint64(size))
	}
	return p, nil
}

func (m *Memory) writeEnvelope(offset uint32, p []byte) error {
	if offset%envelopeAlign != 0 {
		return &boundary.AlignmentError{Field: "envelope", Addr: uintptr(offset), Align: envelopeAlign}
	}
	if !m.mem.Write(offset, p) {
		return outOfBounds("envelope", uint64(offset), uint64(len(p)))
	}
	return nil
}

func outOfBounds(field string, offset, length uint64) error {
	return &boundary.Error{
		Status: boundary.InvalidInput,
		Op:     "wasm_memory",
		Field:  field,
		Detail: fmt.Sprintf("offset=%d length=%d is out of bounds", offset, length),
	}
}

func decodeWritten(p []byte) boundary.RawWrittenBuffer {
	return boundary.RawWrittenBuffer{
		Buffer: boundary.RawBuffer{
			Ptr: uintptr(binary.LittleEndian.Uint64(p)),
			Len: binary.LittleEndian.Uint64(p[8:]),
		},
		BitSizePerElement: p[byteBufferSize],
		Ownership:         boundary.Ownership(p[byteBufferSize+1]),
		NumElements:       binary.LittleEndian.Uint64(p[24:]),
		InputBytesUsed:    binary.LittleEndian.Uint64(p[32:]),
	}
}

func encodeWritten(p []byte, w boundary.RawWrittenBuffer) {
	binary.LittleEndian.PutUint64(p, uint64(w.Buffer.Ptr))
	binary.LittleEndian.PutUint64(p[8:], w.Buffer.Len)
	p[byteBufferSize] = w.BitSizePerElement
	p[byteBufferSize+1] = uint8(w.Ownership)
	binary.LittleEndian.PutUint64(p[24:], w.NumElements)
	binary.LittleEndian.PutUint64(p[32:], w.InputBytesUsed)
}
