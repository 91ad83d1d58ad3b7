package boundary

import (
	"sync"
	"unsafe"
)

// Alignment is the byte alignment of every buffer that crosses the boundary.
const Alignment = 64

// RawBuffer is a buffer as received from the other side of the boundary.
// Ptr is an address that has not been validated yet.
type RawBuffer struct {
	Ptr uintptr `abi:"ptr,ptr=many,elem=u8,align=64"`
	Len uint64  `abi:"len"`
}

// ByteBuffer is a validated, non-owning view of Len bytes at Ptr.
type ByteBuffer struct {
	Ptr unsafe.Pointer `abi:"ptr,ptr=many,elem=u8,align=64"`
	Len uint64         `abi:"len"`
}

// InitFromBytes wraps locally allocated memory. The caller guarantees that
// p starts at an Alignment boundary, e.g. by allocating it with Alloc.
func InitFromBytes(p []byte) ByteBuffer {
	if len(p) == 0 {
		return ByteBuffer{Ptr: unsafe.Pointer(unsafe.SliceData(p))}
	}
	return ByteBuffer{Ptr: unsafe.Pointer(&p[0]), Len: uint64(len(p))}
}

// FromForeign validates a raw buffer before accepting it. Misaligned
// addresses are rejected with an *AlignmentError without being dereferenced.
func FromForeign(raw RawBuffer) (ByteBuffer, error) {
	return fromForeign("buffer", raw)
}

func fromForeign(field string, raw RawBuffer) (ByteBuffer, error) {
	if raw.Ptr%Alignment != 0 {
		return ByteBuffer{}, &AlignmentError{Field: field, Addr: raw.Ptr, Align: Alignment}
	}
	if raw.Ptr == 0 && raw.Len != 0 {
		return ByteBuffer{}, &Error{
			Status: InvalidInput,
			Op:     "from_foreign",
			Field:  field,
			Detail: "nil pointer with non-zero length",
		}
	}

	// foreign memory is not managed by the Go heap
	ptr := *(*unsafe.Pointer)(unsafe.Pointer(&raw.Ptr))
	return ByteBuffer{Ptr: ptr, Len: raw.Len}, nil
}

// Into reinterprets the buffer in its raw form.
func (b ByteBuffer) Into() RawBuffer {
	return RawBuffer{Ptr: uintptr(b.Ptr), Len: b.Len}
}

// Bytes returns the borrowed memory as a slice.
func (b ByteBuffer) Bytes() []byte {
	if b.Ptr == nil {
		return nil
	}
	return unsafe.Slice((*byte)(b.Ptr), b.Len)
}

// Aligned reports whether the buffer starts at an Alignment boundary.
func (b ByteBuffer) Aligned() bool {
	return uintptr(b.Ptr)%Alignment == 0
}

// Slice returns the sub-view [0, n). n is clamped to the buffer length.
func (b ByteBuffer) Slice(n uint64) ByteBuffer {
	if n > b.Len {
		n = b.Len
	}
	return ByteBuffer{Ptr: b.Ptr, Len: n}
}

// --------------------------------------------------------------------

// Ownership tells the receiver of a WrittenBuffer who must release it.
type Ownership uint8

const (
	// Borrowed buffers belong to whoever allocated them.
	Borrowed Ownership = iota
	// CalleeAllocated buffers were allocated by the callee with Alloc and
	// must be released by the caller with Free.
	CalleeAllocated
)

// ABIEnum marks Ownership as an enum for ABI verification.
func (Ownership) ABIEnum() {}

func (o Ownership) valid() bool { return o <= CalleeAllocated }

// --------------------------------------------------------------------

var bufPool sync.Pool

// Alloc returns n bytes starting at an Alignment boundary.
func Alloc(n int) []byte {
	if v := bufPool.Get(); v != nil {
		if p := v.([]byte); n <= cap(p) {
			return p[:n]
		}
	}

	raw := make([]byte, n+Alignment)
	off := int(-uintptr(unsafe.Pointer(&raw[0])) & (Alignment - 1))
	return raw[off : off+n : len(raw)]
}

// Free releases memory obtained from Alloc. The memory must not be used
// after this call.
func Free(p []byte) {
	if cap(p) == 0 || uintptr(unsafe.Pointer(unsafe.SliceData(p)))%Alignment != 0 {
		return
	}
	bufPool.Put(p[:0])
}
