package codec

import (
	"bytes"
	"encoding/gob"

	"github.com/MoonlightOffice/IDBWrapper/lib/engine"
)

// NewGOBCodec creates a new codec using Go's binary gob format
func NewGOBCodec() IRecordCodec {
	return &gobCodecImpl{}
}

// gobCodecImpl implements the IRecordCodec interface using gob encoding
type gobCodecImpl struct {
}

// --------------------------------------------------------------------------
// Interface Methods (docu see codec.IRecordCodec)
// --------------------------------------------------------------------------

func (c gobCodecImpl) Encode(rec engine.Record) ([]byte, error) {
	var buf bytes.Buffer
	enc := gob.NewEncoder(&buf)
	if err := enc.Encode(rec); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (c gobCodecImpl) Decode(b []byte, rec *engine.Record) error {
	buf := bytes.NewBuffer(b)
	dec := gob.NewDecoder(buf)
	return dec.Decode(rec)
}
