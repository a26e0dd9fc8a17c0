package codec

import (
	"encoding/json"

	"github.com/MoonlightOffice/IDBWrapper/lib/engine"
)

// NewJSONCodec creates a new codec using json encoding
func NewJSONCodec() IRecordCodec {
	return &jsonCodecImpl{}
}

// jsonCodecImpl implements the IRecordCodec interface using json encoding
type jsonCodecImpl struct {
}

// --------------------------------------------------------------------------
// Interface Methods (docu see codec.IRecordCodec)
// --------------------------------------------------------------------------

func (c jsonCodecImpl) Encode(rec engine.Record) ([]byte, error) {
	return json.Marshal(rec)
}

func (c jsonCodecImpl) Decode(b []byte, rec *engine.Record) error {
	return json.Unmarshal(b, rec)
}
