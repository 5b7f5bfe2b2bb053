package client

import (
	"bufio"
	"errors"
	"io"
	"strings"
	"sync"
)

// ErrStreamClosed is returned by Stream.Next once the server ends the stream.
var ErrStreamClosed = errors.New("client: event stream closed")

const maxFrameLine = 1 << 20

// Frame is one server-sent event. Comment frames carry keep-alives.
type Frame struct {
	Event   string
	Data    string
	ID      string
	Comment string
}

// Stream reads server-sent event frames.
type Stream struct {
	body    io.ReadCloser
	scanner *bufio.Scanner
	once    sync.Once
}

func newStream(body io.ReadCloser) *Stream {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 4096), maxFrameLine)
	return &Stream{body: body, scanner: scanner}
}

// Next blocks until a complete frame arrives.
func (s *Stream) Next() (Frame, error) {
	var (
		frame Frame
		data  []string
		seen  bool
	)
	for s.scanner.Scan() {
		line := strings.TrimSuffix(s.scanner.Text(), "\r")
		if line == "" {
			if seen {
				frame.Data = strings.Join(data, "\n")
				return frame, nil
			}
			continue
		}
		seen = true
		if strings.HasPrefix(line, ":") {
			frame.Comment = strings.TrimSpace(line[1:])
			continue
		}
		field, value, _ := strings.Cut(line, ":")
		value = strings.TrimPrefix(value, " ")
		switch field {
		case "event":
			frame.Event = value
		case "data":
			data = append(data, value)
		case "id":
			frame.ID = value
		}
	}
	if err := s.scanner.Err(); err != nil {
		return Frame{}, err
	}
	return Frame{}, ErrStreamClosed
}

// Close releases the connection. It is safe to call more than once.
func (s *Stream) Close() error {
	var err error
	s.once.Do(func() { err = s.body.Close() })
	return err
}
