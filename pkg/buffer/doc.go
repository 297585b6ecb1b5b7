// Package buffer provides the generic element buffers used by the pair
// generation pipeline.
//
// Two buffer types are provided:
//
//   - Ring: a fixed-capacity ring with a head cursor that supports deque
//     style rotation and removal from the tail. It never overwrites or
//     evicts: pushing into a full ring is a no-op. Ring is not safe for
//     concurrent use; it backs the single-threaded negative candidate pool.
//
//   - BlockBuffer: a fixed-size circular FIFO that blocks producers when
//     full and consumers when empty. It is used to hand generated pairs from
//     the generator goroutine to the sink writer.
//
// Example usage:
//
//	r := buffer.RingN[string](3)
//	r.Push("a")
//	r.Push("b")
//	r.Rotate(1)         // b a
//	v, _ := r.PopBack() // "a"
package buffer
