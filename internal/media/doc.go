// Package media provides the immutable AudioTrack value consumed by every
// pipeline stage, plus WAV codec I/O and the small set of sample-domain
// operations (slice, concatenate, fade, normalize) the assembler needs.
package media
