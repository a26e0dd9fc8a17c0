package codec

import (
	"encoding/binary"
	"fmt"

	"github.com/MoonlightOffice/IDBWrapper/lib/engine"
)

// NewBinaryCodec creates a new codec using a custom binary format
// optimized for speed and efficiency. This is the default codec.
func NewBinaryCodec() IRecordCodec {
	return &binaryCodecImpl{}
}

// binaryCodecImpl implements IRecordCodec using a custom binary format
type binaryCodecImpl struct {
}

// Bit flags to indicate which optional fields are present
const (
	hasKey   byte = 1 << 0
	hasValue byte = 1 << 1
)

// --------------------------------------------------------------------------
// Interface Methods (docu see codec.IRecordCodec)
// --------------------------------------------------------------------------

func (c binaryCodecImpl) Encode(rec engine.Record) ([]byte, error) {
	result := make([]byte, c.sizeBytes(rec))

	// Initialize flags byte
	var flags byte = 0

	// Set position for writing, start after the flags byte
	pos := 1

	// Handle Key
	if rec.Key != "" {
		flags |= hasKey
		keyBytes := []byte(rec.Key)
		keyLen := len(keyBytes)

		// Write key length
		binary.BigEndian.PutUint32(result[pos:pos+4], uint32(keyLen))
		pos += 4

		// Write key data
		copy(result[pos:pos+keyLen], keyBytes)
		pos += keyLen
	}

	// Handle Value
	if rec.Value != nil {
		flags |= hasValue
		valueLen := len(rec.Value)

		// Write value length
		binary.BigEndian.PutUint32(result[pos:pos+4], uint32(valueLen))
		pos += 4

		// Write value data
		if valueLen > 0 {
			copy(result[pos:pos+valueLen], rec.Value)
			pos += valueLen
		}
	}

	// Set flags byte after knowing which fields are present
	result[0] = flags

	return result, nil
}

func (c binaryCodecImpl) Decode(data []byte, rec *engine.Record) error {
	// Check minimum size (flags byte)
	if len(data) < 1 {
		return fmt.Errorf("data too short for record header")
	}

	// Read flags
	flags := data[0]

	// Initialize read position
	pos := 1

	// Read Key if present
	if flags&hasKey != 0 {
		if pos+4 > len(data) {
			return fmt.Errorf("data too short for key length")
		}

		// Read key length. Compared in uint64 so an adversarial length
		// cannot overflow int on 32-bit platforms.
		keyLen := binary.BigEndian.Uint32(data[pos : pos+4])
		pos += 4

		if uint64(keyLen) > uint64(len(data)-pos) {
			return fmt.Errorf("data too short for key data")
		}

		// Read key data
		rec.Key = string(data[pos : pos+int(keyLen)])
		pos += int(keyLen)
	} else {
		rec.Key = ""
	}

	// Read Value if present
	if flags&hasValue != 0 {
		if pos+4 > len(data) {
			return fmt.Errorf("data too short for value length")
		}

		// Read value length, bounds-checked in uint64 like the key length
		valueLen := binary.BigEndian.Uint32(data[pos : pos+4])
		pos += 4

		if uint64(valueLen) > uint64(len(data)-pos) {
			return fmt.Errorf("data too short for value data")
		}

		// Read value data - always allocate so the record does not alias
		// the input buffer
		rec.Value = make([]byte, valueLen)
		if valueLen > 0 {
			copy(rec.Value, data[pos:pos+int(valueLen)])
		}
		pos += int(valueLen)
	} else {
		rec.Value = nil
	}

	return nil
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// sizeBytes calculates the total size needed for encoding
func (c binaryCodecImpl) sizeBytes(rec engine.Record) int {
	// 1 byte for flags
	size := 1

	// Add sizes for fields that require length encoding
	if rec.Key != "" {
		size += 4 + len(rec.Key) // 4 bytes for length + key string
	}
	if rec.Value != nil {
		size += 4 + len(rec.Value) // 4 bytes for length + value bytes
	}

	return size
}
