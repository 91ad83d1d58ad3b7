package boundary

import "fmt"

// WrittenBuffer describes what a kernel wrote into a buffer.
type WrittenBuffer struct {
	Buffer            ByteBuffer `abi:"buffer"`
	BitSizePerElement uint8      `abi:"bit_size_per_element"`
	Ownership         Ownership  `abi:"ownership"`
	NumElements       uint64     `abi:"num_elements"`
	InputBytesUsed    uint64     `abi:"input_bytes_used"`
}

// Written is a convenience constructor for borrowed output.
func Written(buf ByteBuffer, bitSize uint8, numElements, inputBytesUsed uint64) WrittenBuffer {
	return WrittenBuffer{
		Buffer:            buf,
		BitSizePerElement: bitSize,
		NumElements:       numElements,
		InputBytesUsed:    inputBytesUsed,
	}
}

// Validate checks that the described elements fit into the buffer and that
// no more than inputLen input bytes were consumed.
func (w WrittenBuffer) Validate(inputLen uint64) error {
	if !w.Ownership.valid() {
		return &Error{Status: InvalidInput, Op: "validate", Field: "ownership", Detail: fmt.Sprintf("unknown ownership %d", w.Ownership)}
	}
	if bits := uint64(w.BitSizePerElement); bits != 0 && w.NumElements > (w.Buffer.Len*8)/bits {
		return &Error{
			Status: InvalidInput,
			Op:     "validate",
			Field:  "num_elements",
			Detail: fmt.Sprintf("%d elements of %d bits exceed buffer of %d bytes", w.NumElements, bits, w.Buffer.Len),
		}
	}
	if w.InputBytesUsed > inputLen {
		return &Error{
			Status: InvalidInput,
			Op:     "validate",
			Field:  "input_bytes_used",
			Detail: fmt.Sprintf("%d bytes used exceeds input of %d bytes", w.InputBytesUsed, inputLen),
		}
	}
	return nil
}

// Bytes returns the written bytes.
func (w WrittenBuffer) Bytes() []byte { return w.Buffer.Bytes() }

// Into reinterprets the buffer in its raw form.
func (w WrittenBuffer) Into() RawWrittenBuffer {
	return RawWrittenBuffer{
		Buffer:            w.Buffer.Into(),
		BitSizePerElement: w.BitSizePerElement,
		Ownership:         w.Ownership,
		NumElements:       w.NumElements,
		InputBytesUsed:    w.InputBytesUsed,
	}
}

// RawWrittenBuffer is a WrittenBuffer as received from the other side.
type RawWrittenBuffer struct {
	Buffer            RawBuffer `abi:"buffer"`
	BitSizePerElement uint8     `abi:"bit_size_per_element"`
	Ownership         Ownership `abi:"ownership"`
	NumElements       uint64    `abi:"num_elements"`
	InputBytesUsed    uint64    `abi:"input_bytes_used"`
}

func (r RawWrittenBuffer) fromForeign(field string) (WrittenBuffer, error) {
	buf, err := fromForeign(field+".buffer", r.Buffer)
	if err != nil {
		return WrittenBuffer{}, err
	}
	if !r.Ownership.valid() {
		return WrittenBuffer{}, &Error{Status: InvalidInput, Op: "from_foreign", Field: field + ".ownership", Detail: fmt.Sprintf("unknown ownership %d", r.Ownership)}
	}
	return WrittenBuffer{
		Buffer:            buf,
		BitSizePerElement: r.BitSizePerElement,
		Ownership:         r.Ownership,
		NumElements:       r.NumElements,
		InputBytesUsed:    r.InputBytesUsed,
	}, nil
}

// --------------------------------------------------------------------

// OneBufferResult is returned by single-output kernels.
type OneBufferResult struct {
	Status Status        `abi:"status"`
	Buffer WrittenBuffer `abi:"buffer"`
}

// OneBufferOK wraps a successful result.
func OneBufferOK(buf WrittenBuffer) OneBufferResult {
	return OneBufferResult{Status: Ok, Buffer: buf}
}

// OneBufferErr maps err to a status and carries the partial payload.
func OneBufferErr(err error, partial WrittenBuffer) OneBufferResult {
	return OneBufferResult{Status: errStatus(err), Buffer: partial}
}

// Err returns the canonical error for the status, or nil when Ok.
func (r OneBufferResult) Err() error { return statusError(r.Status) }

// Into reinterprets the envelope in its raw form.
func (r OneBufferResult) Into() RawOneBufferResult {
	return RawOneBufferResult{Status: r.Status, Buffer: r.Buffer.Into()}
}

// RawOneBufferResult is a OneBufferResult as received from the other side.
type RawOneBufferResult struct {
	Status Status           `abi:"status"`
	Buffer RawWrittenBuffer `abi:"buffer"`
}

// OneBufferFromForeign validates every embedded buffer before trusting the
// envelope. The envelope is rejected as a whole if any check fails.
func OneBufferFromForeign(raw RawOneBufferResult) (OneBufferResult, error) {
	buf, err := raw.Buffer.fromForeign("buffer")
	if err != nil {
		return OneBufferResult{}, err
	}
	return OneBufferResult{Status: normStatus(raw.Status), Buffer: buf}, nil
}

// --------------------------------------------------------------------

// TwoBufferResult is returned by kernels that produce a primary and an
// auxiliary stream, e.g. values and exceptions.
type TwoBufferResult struct {
	Status    Status        `abi:"status"`
	Primary   WrittenBuffer `abi:"primary"`
	Secondary WrittenBuffer `abi:"secondary"`
}

// TwoBufferOK wraps a successful result.
func TwoBufferOK(primary, secondary WrittenBuffer) TwoBufferResult {
	return TwoBufferResult{Status: Ok, Primary: primary, Secondary: secondary}
}

// TwoBufferErr maps err to a status and carries the partial payload.
func TwoBufferErr(err error, primary, secondary WrittenBuffer) TwoBufferResult {
	return TwoBufferResult{Status: errStatus(err), Primary: primary, Secondary: secondary}
}

// Err returns the canonical error for the status, or nil when Ok.
func (r TwoBufferResult) Err() error { return statusError(r.Status) }

// Into reinterprets the envelope in its raw form.
func (r TwoBufferResult) Into() RawTwoBufferResult {
	return RawTwoBufferResult{Status: r.Status, Primary: r.Primary.Into(), Secondary: r.Secondary.Into()}
}

// RawTwoBufferResult is a TwoBufferResult as received from the other side.
type RawTwoBufferResult struct {
	Status    Status           `abi:"status"`
	Primary   RawWrittenBuffer `abi:"primary"`
	Secondary RawWrittenBuffer `abi:"secondary"`
}

// TwoBufferFromForeign validates both embedded buffers before trusting the
// envelope. The envelope is rejected as a whole if either check fails.
func TwoBufferFromForeign(raw RawTwoBufferResult) (TwoBufferResult, error) {
	primary, err := raw.Primary.fromForeign("primary")
	if err != nil {
		return TwoBufferResult{}, err
	}
	secondary, err := raw.Secondary.fromForeign("secondary")
	if err != nil {
		return TwoBufferResult{}, err
	}
	return TwoBufferResult{Status: normStatus(raw.Status), Primary: primary, Secondary: secondary}, nil
}

// --------------------------------------------------------------------

// Exponents is the (e, f) pair of the float exponent encoding.
type Exponents struct {
	E uint8 `abi:"e"`
	F uint8 `abi:"f"`
}

// InvalidExponents is the payload of a failed ExponentsResult.
var InvalidExponents = Exponents{E: 0xFF, F: 0xFF}

func (e Exponents) String() string { return fmt.Sprintf("(e=%d, f=%d)", e.E, e.F) }

// ExponentsResult is a scalar result carrying an exponent pair.
type ExponentsResult struct {
	Status    Status    `abi:"status"`
	Exponents Exponents `abi:"exponents"`
}

// ExponentsOK wraps a successful result.
func ExponentsOK(exp Exponents) ExponentsResult {
	return ExponentsResult{Status: Ok, Exponents: exp}
}

// ExponentsErr maps err to a status and carries the sentinel payload.
func ExponentsErr(err error) ExponentsResult {
	return ExponentsResult{Status: errStatus(err), Exponents: InvalidExponents}
}

// Err returns the canonical error for the status, or nil when Ok.
func (r ExponentsResult) Err() error { return statusError(r.Status) }

// ExponentsFromForeign normalizes a foreign scalar envelope. It carries no
// buffers, so only the status is checked.
func ExponentsFromForeign(raw ExponentsResult) ExponentsResult {
	raw.Status = normStatus(raw.Status)
	if raw.Status != Ok {
		raw.Exponents = InvalidExponents
	}
	return raw
}

func normStatus(s Status) Status {
	if !s.Valid() {
		return UnknownError
	}
	return s
}
