// Package stream issues JSON-RPC requests whose results are too large to
// buffer, decoding one array element at a time as response bytes arrive.
package stream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	jsoniter "github.com/json-iterator/go"
)

// DefaultChunkSize is how many response bytes are pulled from the transport
// per read before being handed to the incremental parser.
const DefaultChunkSize = 1 << 17

// ErrPathNotFound indicates the response envelope held no array at the
// requested path.
var ErrPathNotFound = errors.New("target array path not found in response")

// RPCError is a JSON-RPC error member found while walking the envelope. It is
// surfaced before any records are yielded.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// Options tunes a streaming request.
type Options struct {
	// ChunkSize overrides DefaultChunkSize. Mostly useful in tests.
	ChunkSize int
	// HTTPClient overrides http.DefaultClient.
	HTTPClient *http.Client
	// Headers are added to the request.
	Headers map[string]string
}

type request struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int    `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

// Request performs a JSON-RPC call over HTTP and returns a Stream positioned
// at the first element of the array found at path (dot-separated within the
// response envelope, e.g. "result.structLogs"). A non-2xx HTTP status or a
// JSON-RPC error member is raised before any records are yielded.
func Request(ctx context.Context, uri, method string, params []any, path string, opts *Options) (*Stream, error) {
	if opts == nil {
		opts = &Options{}
	}

	client := opts.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}

	payload, err := json.Marshal(request{JSONRPC: "2.0", ID: 1, Method: method, Params: params})
	if err != nil {
		return nil, fmt.Errorf("encoding %s request: %w", method, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, uri, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}

	req.Header.Set("Content-Type", "application/json")

	for k, v := range opts.Headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s request failed: %w", method, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		resp.Body.Close()

		return nil, fmt.Errorf("%s request failed: unexpected status %s", method, resp.Status)
	}

	stream, err := New(resp.Body, path, opts.ChunkSize)
	if err != nil {
		resp.Body.Close()

		return nil, err
	}

	return stream, nil
}

// Stream is a lazy, finite, single-pass sequence of decoded array elements.
// It is not restartable: re-traversal requires a new request. Abandoning
// iteration early must be paired with Close so the underlying connection is
// released.
type Stream struct {
	body io.ReadCloser
	iter *jsoniter.Iterator
	done bool
}

// New builds a Stream over an already-open response body and seeks the
// incremental parser to the array at path.
func New(body io.ReadCloser, path string, chunkSize int) (*Stream, error) {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}

	s := &Stream{
		body: body,
		iter: jsoniter.Parse(jsoniter.ConfigCompatibleWithStandardLibrary, body, chunkSize),
	}

	if err := s.seek(strings.Split(path, ".")); err != nil {
		return nil, err
	}

	return s, nil
}

// seek walks object members until the target array is entered, skipping
// everything off-path. A JSON-RPC "error" member aborts the walk; an on-path
// member holding null is consumed without descending, so an error member
// serialized after a null result is still classified.
func (s *Stream) seek(path []string) error {
	for _, segment := range path {
		found := false

		for field := s.iter.ReadObject(); field != ""; field = s.iter.ReadObject() {
			if field == "error" {
				rpcErr := &RPCError{}
				s.iter.ReadVal(rpcErr)

				return rpcErr
			}

			if field == segment {
				if s.iter.WhatIsNext() == jsoniter.NilValue {
					s.iter.ReadNil()

					continue
				}

				found = true

				break
			}

			s.iter.Skip()
		}

		if err := s.iterError(); err != nil {
			return err
		}

		if !found {
			return fmt.Errorf("%w: %s", ErrPathNotFound, strings.Join(path, "."))
		}
	}

	return nil
}

// Next decodes the next completed array element into v. It returns false once
// the array is exhausted. The read blocks while the parser waits for the next
// transport chunk; every element completed by a chunk is yielded before more
// bytes are requested.
func (s *Stream) Next(v interface{}) (bool, error) {
	if s.done {
		return false, nil
	}

	if !s.iter.ReadArray() {
		s.done = true

		return false, s.iterError()
	}

	s.iter.ReadVal(v)

	if err := s.iterError(); err != nil {
		return false, err
	}

	return true, nil
}

// Close abandons iteration and releases the underlying connection.
func (s *Stream) Close() error {
	s.done = true

	return s.body.Close()
}

func (s *Stream) iterError() error {
	if s.iter.Error != nil && !errors.Is(s.iter.Error, io.EOF) {
		return fmt.Errorf("decoding streamed response: %w", s.iter.Error)
	}

	return nil
}
