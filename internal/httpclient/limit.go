package httpclient

import (
	"errors"
	"fmt"
	"io"
)

// BodyTooLargeError is returned by ReadBody when a strict read overflows.
type BodyTooLargeError struct {
	Limit int64
}

func (e BodyTooLargeError) Error() string {
	return fmt.Sprintf("response body exceeded limit of %d bytes", e.Limit)
}

// IsBodyTooLarge reports whether err came from an overflowing strict read.
func IsBodyTooLarge(err error) bool {
	var limitErr BodyTooLargeError
	return errors.As(err, &limitErr)
}

// ReadBody reads at most limit bytes from r. With a non-positive limit it
// reads everything. When the body is longer, ReadBody returns a
// BodyTooLargeError, which JSON decoders want.
func ReadBody(r io.Reader, limit int64) ([]byte, error) {
	data, truncated, err := ReadPrefix(r, limit)
	if err != nil {
		return nil, err
	}
	if truncated {
		return nil, BodyTooLargeError{Limit: limit}
	}
	return data, nil
}

// ReadPrefix reads at most limit bytes and reports whether more remained.
// HTML scraping keeps the prefix instead of failing.
func ReadPrefix(r io.Reader, limit int64) ([]byte, bool, error) {
	if limit <= 0 {
		data, err := io.ReadAll(r)
		return data, false, err
	}
	data, err := io.ReadAll(&io.LimitedReader{R: r, N: limit + 1})
	if err != nil {
		return nil, false, err
	}
	if int64(len(data)) > limit {
		return data[:limit], true, nil
	}
	return data, false, nil
}
