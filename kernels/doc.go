/*
Package kernels is the codec module: the fixed-function kernels the host
engine calls across the boundary.

Every kernel takes aligned boundary.ByteBuffer inputs plus scalar
configuration and returns an envelope. Kernels never panic across the
boundary, never retry and never retain their arguments. Input alignment is
checked before any input byte is read.

Diagnostics that do not fit the status code are logged at debug level
through Logger and counted in coltable_kernel_calls_total.

The Go signature of every exported kernel and the width of Codec are
pinned by the generated abi_assert.go.
*/
package kernels

//go:generate go run ../cmd/coltable abi gen -p kernels -o abi_assert.go
