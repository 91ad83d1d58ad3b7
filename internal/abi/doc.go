// Package abi proves that host-side Go declarations and the codec modules
// agree on the memory layout of every shared struct and function.
//
// Both sides are described as Type trees: the native side is computed from
// the interface-definition file with C layout rules, the host side is
// reflected from Go declarations. Compare walks both trees and reports every
// difference in size, field order, field alignment, comptime status and
// field type. Differences are aggregated, each naming the offending path and
// both type descriptions:
//
//	abi: WrittenBuffer.ownership: enum tag width differs (host enum Ownership(u8), native enum Ownership(u16))
//
// GenerateAssertions turns a verified schema into constant expressions that
// stop the Go compiler when a declaration drifts, so the check costs nothing
// at run time.
//
// This package is internal to coltable.
package abi
