package sqlite

import (
	"encoding/binary"
	"math"

	"github.com/cockroachdb/errors"
)

// EncodeVector converts a float32 slice to its BLOB representation
// (little-endian IEEE 754, 4 bytes per component).
func EncodeVector(vec []float32) []byte {
	buf := make([]byte, len(vec)*4)
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

// decodeVector converts a BLOB back to a float32 slice. dimension is used to
// validate the buffer size.
func decodeVector(buf []byte, dimension int) ([]float32, error) {
	if dimension <= 0 {
		return nil, errors.Newf("invalid dimension: %d", dimension)
	}
	if len(buf) != dimension*4 {
		return nil, errors.Newf("buffer size mismatch: expected %d bytes, got %d", dimension*4, len(buf))
	}

	vec := make([]float32, dimension)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return vec, nil
}
