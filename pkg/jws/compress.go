package jws

import (
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/flate"
)

// maxPayloadSize bounds the inflated payload.
const maxPayloadSize = 4 * 1024 * 1024

// Inflate decompresses raw (headerless) DEFLATE data.
func Inflate(data []byte) ([]byte, error) {
	r := flate.NewReader(bytes.NewReader(data))
	defer r.Close()

	out, err := io.ReadAll(io.LimitReader(r, maxPayloadSize+1))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecompressionFailed, err)
	}
	if len(out) > maxPayloadSize {
		return nil, fmt.Errorf("%w: payload exceeds %d bytes", ErrDecompressionFailed, maxPayloadSize)
	}
	return out, nil
}

// Deflate compresses data with raw DEFLATE at the best compression level,
// which is what issuers use to keep QR codes small.
func Deflate(data []byte) ([]byte, error) {
	var buf bytes.Buffer

	w, err := flate.NewWriter(&buf, flate.BestCompression)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}
