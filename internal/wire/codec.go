// Package wire frames stream events as newline-delimited JSON records.
//
// Each record is one JSON object followed by '\n'. Decoders also accept
// SSE-style framing ("data: {...}" lines separated by blank lines).
package wire

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/xiaot623/gochat/internal/domain"
)

// ContentType is the media type of an encoded stream.
const ContentType = "application/x-ndjson"

var dataPrefix = []byte("data:")

// DecodeError reports a record that could not be decoded. Decoding may continue after it.
type DecodeError struct {
	Line string
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("malformed stream record %q: %v", e.Line, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// IsDecodeError reports whether err is a recoverable record decode failure.
func IsDecodeError(err error) bool {
	var de *DecodeError
	return errors.As(err, &de)
}

// Encoder writes one record per event and flushes after each.
type Encoder struct {
	w io.Writer
}

// NewEncoder returns an encoder writing to w. If w implements Flush() or
// Flush() error, it is flushed after every record.
func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{w: w}
}

// Encode writes ev as a single record.
func (e *Encoder) Encode(ev domain.StreamEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	data = append(data, '\n')
	if _, err := e.w.Write(data); err != nil {
		return fmt.Errorf("failed to write event: %w", err)
	}

	switch f := e.w.(type) {
	case interface{ Flush() error }:
		if err := f.Flush(); err != nil {
			return fmt.Errorf("failed to flush event: %w", err)
		}
	case interface{ Flush() }:
		f.Flush()
	}
	return nil
}

// Decoder reads records from a stream incrementally.
type Decoder struct {
	r *bufio.Reader
}

// NewDecoder returns a decoder reading from r.
func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{r: bufio.NewReader(r)}
}

// Next returns the next event.
//
// It returns a *DecodeError for a malformed record, after which Next may be
// called again. At the end of a well-formed stream it returns io.EOF; if the
// stream ends inside a record, the partial record is discarded and
// io.ErrUnexpectedEOF is returned.
func (d *Decoder) Next() (domain.StreamEvent, error) {
	for {
		line, err := d.r.ReadBytes('\n')
		if err != nil {
			if errors.Is(err, io.EOF) {
				if len(bytes.TrimSpace(line)) > 0 {
					return domain.StreamEvent{}, io.ErrUnexpectedEOF
				}
				return domain.StreamEvent{}, io.EOF
			}
			return domain.StreamEvent{}, err
		}

		record := bytes.TrimSpace(line)
		if bytes.HasPrefix(record, dataPrefix) {
			record = bytes.TrimSpace(record[len(dataPrefix):])
		}
		if len(record) == 0 {
			continue
		}

		var ev domain.StreamEvent
		if err := json.Unmarshal(record, &ev); err != nil {
			return domain.StreamEvent{}, &DecodeError{Line: string(record), Err: err}
		}
		return ev, nil
	}
}
