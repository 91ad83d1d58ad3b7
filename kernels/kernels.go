package kernels

import (
	"fmt"
	"reflect"
	"runtime"
	"strings"

	"github.com/bsm/coltable/boundary"
	"go.uber.org/zap"
)

// Codec selects a general-purpose block compressor.
type Codec uint8

// Supported codecs. Values are shared with abi.yaml.
const (
	None Codec = iota
	Snappy
	Zstd
	LZ4
)

// ABIEnum marks Codec as an enum for ABI verification.
func (Codec) ABIEnum() {}

func (c Codec) String() string {
	switch c {
	case None:
		return "none"
	case Snappy:
		return "snappy"
	case Zstd:
		return "zstd"
	case LZ4:
		return "lz4"
	}
	return fmt.Sprintf("codec(%d)", uint8(c))
}

// Export describes a kernel as seen from the other side of the boundary.
type Export struct {
	Name     string
	CallConv string
	Func     interface{}
}

// GoName returns the Go identifier of the kernel function.
func (e Export) GoName() string {
	name := runtime.FuncForPC(reflect.ValueOf(e.Func).Pointer()).Name()
	return name[strings.LastIndexByte(name, '.')+1:]
}

// Exports lists every kernel under its native symbol name.
var Exports = []Export{
	{Name: "coltable_copy", CallConv: "c", Func: Copy},
	{Name: "coltable_pack_bits", CallConv: "c", Func: PackBits},
	{Name: "coltable_unpack_bits", CallConv: "c", Func: UnpackBits},
	{Name: "coltable_alp_find_exponents", CallConv: "c", Func: FindExponents},
	{Name: "coltable_alp_encode", CallConv: "c", Func: EncodeALP},
	{Name: "coltable_alp_decode", CallConv: "c", Func: DecodeALP},
	{Name: "coltable_compress_bound", CallConv: "c", Func: CompressBound},
	{Name: "coltable_compress", CallConv: "c", Func: Compress},
	{Name: "coltable_compress_alloc", CallConv: "c", Func: CompressAlloc},
	{Name: "coltable_decompress", CallConv: "c", Func: Decompress},
}

// --------------------------------------------------------------------

func guardOne(kernel string, res *boundary.OneBufferResult) {
	if r := recover(); r != nil {
		*res = boundary.OneBufferErr(recovered(kernel, r), boundary.WrittenBuffer{})
	}
	observe(kernel, res.Status)
}

func guardTwo(kernel string, res *boundary.TwoBufferResult) {
	if r := recover(); r != nil {
		*res = boundary.TwoBufferErr(recovered(kernel, r), boundary.WrittenBuffer{}, boundary.WrittenBuffer{})
	}
	observe(kernel, res.Status)
}

func guardExponents(kernel string, res *boundary.ExponentsResult) {
	if r := recover(); r != nil {
		*res = boundary.ExponentsErr(recovered(kernel, r))
	}
	observe(kernel, res.Status)
}

func observe(kernel string, status boundary.Status) {
	CallsTotal.WithLabelValues(kernel, status.String()).Inc()
}

func recovered(kernel string, r interface{}) error {
	err := &boundary.Error{Status: boundary.UnknownError, Op: kernel, Detail: fmt.Sprintf("panic: %v", r)}
	Logger().Error("kernel panicked", zap.String("kernel", kernel), zap.Any("panic", r))
	return err
}

// fail builds a structured error and reports it on the side channel.
func fail(kernel string, status boundary.Status, field, format string, args ...interface{}) error {
	err := &boundary.Error{Status: status, Op: kernel, Field: field, Detail: fmt.Sprintf(format, args...)}
	Logger().Debug("kernel failed",
		zap.String("kernel", kernel),
		zap.Stringer("status", status),
		zap.String("field", field),
		zap.String("detail", err.Detail),
	)
	return err
}

func checkAligned(kernel, field string, b boundary.ByteBuffer) error {
	if b.Aligned() {
		return nil
	}

	err := &boundary.AlignmentError{Field: field, Addr: uintptr(b.Ptr), Align: boundary.Alignment}
	Logger().Debug("kernel failed",
		zap.String("kernel", kernel),
		zap.Stringer("status", boundary.IncorrectAlignment),
		zap.String("field", field),
		zap.Uintptr("addr", err.Addr),
	)
	return err
}

// elemBytes validates a fixed element width in bits.
func elemBytes(kernel, field string, bits uint8) (uint64, error) {
	switch bits {
	case 8, 16, 32, 64:
		return uint64(bits) / 8, nil
	}
	return 0, fail(kernel, boundary.InvalidInput, field, "unsupported element width %d", bits)
}
