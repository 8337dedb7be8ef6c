// Package codec defines the chunk wire format for bulk CSV uploads and the
// compression codecs applied to chunk payloads.
package codec

import (
	"fmt"

	"github.com/golang/snappy"
	"github.com/wastetrack/bulk-engine/internal/domain"
)

// ContentTypeCSV is the only chunk content type currently accepted. The field
// is kept on the wire for forward compatibility with other content types.
const ContentTypeCSV = "text/csv"

// Compression identifies the codec applied to a chunk payload.
// The values are wire literals; do not rename.
type Compression string

const (
	CompressionSnappy Compression = "Snappy"
	CompressionNone   Compression = "None"
)

func (c Compression) String() string { return string(c) }

func (c Compression) IsValid() bool {
	return c == CompressionSnappy || c == CompressionNone
}

// Chunk is one compressed piece of a batch's CSV content sent in one request.
type Chunk struct {
	Type        string
	Compression Compression
	Value       []byte
}

func (c Chunk) Validate() error {
	if c.Type != ContentTypeCSV {
		return fmt.Errorf("%w: unsupported content type %q", domain.ErrValidation, c.Type)
	}
	if !c.Compression.IsValid() {
		return fmt.Errorf("%w: unsupported compression %q", domain.ErrValidation, c.Compression)
	}
	if len(c.Value) == 0 {
		return fmt.Errorf("%w: chunk value is empty", domain.ErrValidation)
	}
	return nil
}

// Decode validates the chunk and returns its decompressed payload.
// A payload that cannot be decompressed is a client error.
func Decode(c Chunk) ([]byte, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	switch c.Compression {
	case CompressionSnappy:
		decoded, err := snappy.Decode(nil, c.Value)
		if err != nil {
			return nil, fmt.Errorf("%w: malformed snappy payload: %v", domain.ErrValidation, err)
		}
		return decoded, nil
	case CompressionNone:
		out := make([]byte, len(c.Value))
		copy(out, c.Value)
		return out, nil
	}

	return nil, fmt.Errorf("%w: unsupported compression %q", domain.ErrValidation, c.Compression)
}
