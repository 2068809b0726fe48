// SPDX-FileCopyrightText: © 2023 Siemens AG
// SPDX-License-Identifier: MIT

// Package partition defines the partition generator protocol: a lazy,
// size-negotiable producer of input chunks, and a reference implementation
// that chunks a Go slice.
package partition

// A Generator is a lazy, resumable, single-pass producer of chunks of type T
// drawn from some underlying data. It is size-negotiable: the consumer
// proposes a chunk size at every step and the generator reports the size it
// actually produced, which may be smaller than requested at the tail.
//
// A Generator never yields a zero-sized chunk except as the terminal,
// end-of-stream signal (ok == false). The sum of all yielded sizes equals
// the length of the underlying data: no item is lost or duplicated.
type Generator[T any] interface {
	// Next requests a chunk of up to n items (n must be positive). It
	// returns the chunk, the chunk's true item count, and true, or the zero
	// value, 0, and false once the generator is exhausted.
	Next(n int) (chunk T, size int, ok bool)
}

// Len reports the total number of items a Generator still has to produce,
// when known in advance. Generators that cannot determine this cheaply
// (e.g. a stream read from disk) need not implement it.
type Len interface {
	// Len returns the number of remaining items.
	Len() int
}
