// Package funcexec runs commands embedded in a live text stream.
//
// A Scanner consumes model output chunk by chunk, recognizes
// <function cmd="...">BODY</function> tags, spawns the named command and pipes
// BODY into its standard input while the stream is still arriving.
//
// Invariants:
// - At most one spawned process per Scanner; a tag is closed only after its process exits.
// - Bytes are forwarded as soon as they cannot belong to the closing marker.
// - Forwarded bytes do not depend on how the input is split into chunks.
// - Executor errors (spawn, pipe, wait) are reported and never stop the scan.
//
// Usage:
//
//	s := funcexec.New(funcexec.Options{Stdout: os.Stdout, Stderr: os.Stderr})
//	if err := s.Run(ctx, os.Stdin); err != nil {
//		return err
//	}
package funcexec
