/*
Package boundary defines the memory contract between the host engine and
separately compiled codec modules.

Buffers

Every buffer crossing the boundary is a non-owning view, aligned to
Alignment bytes:

    ByteBuffer (16 bytes, align 8):
    +------------------+------------------+
    | ptr (8 bytes)    | len (u64)        |
    +------------------+------------------+

    WrittenBuffer (40 bytes, align 8):
    +---------------------+------------------+---------------+---------+--------------------+-----------------------+
    | buffer (ByteBuffer) | bit size/elem u8 | ownership u8  | padding | num elements (u64) | input bytes used (u64)|
    +---------------------+------------------+---------------+---------+--------------------+-----------------------+

Memory supplied by the other side enters through FromForeign, which checks
the alignment before the memory is ever touched. Locally allocated memory
(see Alloc) enters through InitFromBytes.

Envelopes

Every kernel returns one of OneBufferResult, TwoBufferResult or
ExponentsResult. The status field must be inspected first; payload fields
are only fully valid when it is Ok.

    OneBufferResult (48 bytes):  | status (i32) | padding | buffer (WrittenBuffer)                         |
    TwoBufferResult (88 bytes):  | status (i32) | padding | primary (WrittenBuffer) | secondary (WrittenBuffer) |
    ExponentsResult (8 bytes):   | status (i32) | e (u8) | f (u8) | padding |

Ownership

The side that allocates a buffer frees it. The single exception is a
WrittenBuffer marked CalleeAllocated, which the caller releases with Free.

The shapes above are declared once in abi.yaml; abi_assert.go is generated
from it and fails to compile whenever a Go declaration drifts.
*/
package boundary

//go:generate go run ../cmd/coltable abi gen -p boundary -o abi_assert.go
