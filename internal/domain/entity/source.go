package entity

import (
	"bytes"
	"context"
	"io"
)

// BytesSource serves ranges of an in-memory buffer.
func BytesSource(data []byte) Source {
	return SourceFunc(func(ctx context.Context, start, end int64) (io.ReadCloser, error) {
		size := int64(len(data))
		if end < 0 || end > size {
			end = size
		}
		if start > end {
			start = end
		}
		return io.NopCloser(bytes.NewReader(data[start:end])), nil
	})
}
