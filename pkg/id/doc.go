// Package id generates 128-bit, lexicographically sortable message
// identifiers.
//
// An ID is 16 bytes big-endian: [8 bytes ms_timestamp][8 bytes sequence], so
// byte-wise (and hex-string) comparison preserves generation order. The
// Generator is monotonic per process: a regressing system clock pins to the
// last observed millisecond, and a sequence overflow within one millisecond
// waits for the next millisecond.
//
// The queue engine uses this package to derive an id for messages whose
// caller did not supply one.
package id
