// Package codec provides pluggable encodings for the record envelope
// persisted by engine implementations. Three codecs are included: a custom
// binary format (default, compact and allocation-friendly), JSON (debuggable
// with external tools) and GOB (plain Go encoding). All codecs are
// stateless and safe for concurrent use.
package codec
