// Package types holds wire-format decoding helpers shared by the HTTP
// daemon and the CLI.
package types

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/roamtrack/tripd/types/trip"
	"github.com/tidwall/gjson"
)

var ErrDecodeEvents = fmt.Errorf("could not decode as event array, batch object, or ndjson")

// DecodeDrivingEventsShotgun turns a request body into driving events.
// It is a serial collection of attempts useful for a mixed client
// population: a bare JSON array, a batch object with an 'events'
// member, or newline-delimited JSON objects.
func DecodeDrivingEventsShotgun(data []byte) (out []trip.DrivingEvent, err error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, ErrDecodeEvents
	}

	// Batch object: {"events": [...]}.
	if res := gjson.GetBytes(trimmed, "events"); res.Exists() {
		batch := struct {
			Events []trip.DrivingEvent `json:"events"`
		}{}
		if err := json.Unmarshal(trimmed, &batch); err != nil {
			return nil, err
		}
		return batch.Events, nil
	}

	if parsed := gjson.ParseBytes(trimmed); parsed.IsArray() {
		if err := json.Unmarshal(trimmed, &out); err != nil {
			return nil, err
		}
		if len(out) == 0 {
			return nil, fmt.Errorf("empty set")
		}
		return out, nil
	}

	// Newline-delimited objects.
	err = ScanJSONMessages(bytes.NewReader(trimmed), func(msg json.RawMessage) error {
		ev := trip.DrivingEvent{}
		if err := json.Unmarshal(msg, &ev); err != nil {
			return err
		}
		out = append(out, ev)
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, ErrDecodeEvents
	}
	return out, nil
}

// ScanJSONMessages reads a stream of JSON messages from an io.Reader
// and calls onEach for each decoded message. If the stream is encoded
// as a JSON array, onEach is called for each element in the array.
func ScanJSONMessages(body io.Reader, onEach func(message json.RawMessage) error) error {
	buf := bufio.NewReader(body)
	peek, err := buf.Peek(1)
	if err != nil {
		return err
	}
	dec := json.NewDecoder(bytes.NewBuffer(peek))
	t, err := dec.Token()
	if err != nil {
		return err
	}
	dec = json.NewDecoder(buf)
	if t == json.Delim('[') {
		dec.Token()
	}
	for dec.More() {
		var msg json.RawMessage
		err := dec.Decode(&msg)
		if err != nil {
			if !errors.Is(err, io.EOF) {
				return fmt.Errorf("decode err: %T %w", err, err)
			}
			break
		}
		if err := onEach(msg); err != nil {
			return err
		}
	}
	return nil
}
