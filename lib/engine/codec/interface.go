package codec

import "github.com/MoonlightOffice/IDBWrapper/lib/engine"

// IRecordCodec is the interface for all record envelope codecs.
// A codec turns an engine.Record into the byte representation a backend
// persists, and back. Decode must leave the record independent of the
// input buffer.
type IRecordCodec interface {
	// Encode encodes a record envelope into a byte array.
	// It returns the encoded byte array and an error if any.
	Encode(rec engine.Record) ([]byte, error)
	// Decode decodes a byte array into a record envelope.
	// It takes a byte array and a pointer to a record as parameters
	// and returns an error if any.
	Decode(b []byte, rec *engine.Record) error
}
