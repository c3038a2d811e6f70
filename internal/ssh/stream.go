package ssh

import (
	"fmt"
	"strings"
)

// StreamName identifies which remote stream a line came from.
type StreamName string

const (
	Stdout StreamName = "stdout"
	Stderr StreamName = "stderr"
)

// LineFunc receives one complete line (terminator attached, except for a
// flushed tail) and the stream it belongs to.
type LineFunc func(line string, stream StreamName)

// DefaultPrinter prints lines with a stream prefix. Lines already carry their
// newline when they have one.
func DefaultPrinter(line string, stream StreamName) {
	fmt.Printf("[%s] %s", stream, line)
}

// LineEmitter buffers partial lines and emits complete ones to a callback.
// Lines are always appended to an internal accumulator, callback or not, so
// Collected returns the full capture either way. One emitter per stream.
type LineEmitter struct {
	cb     LineFunc
	stream StreamName
	parts  strings.Builder
	tail   string
}

// NewLineEmitter creates an emitter for one stream. cb may be nil.
func NewLineEmitter(cb LineFunc, stream StreamName) *LineEmitter {
	return &LineEmitter{cb: cb, stream: stream}
}

// Feed appends a chunk to the carried-over tail and emits every complete line
// in the combined text. A final fragment without a terminator is held back as
// the new tail. The emitted lines are the same no matter how the input was
// chunked.
func (e *LineEmitter) Feed(chunk string) {
	if chunk == "" {
		return
	}
	text := e.tail + chunk
	for {
		idx := strings.IndexByte(text, '\n')
		if idx < 0 {
			break
		}
		e.emit(text[:idx+1])
		text = text[idx+1:]
	}
	e.tail = text
}

// Flush emits any held-back tail (a command that ended mid-line).
func (e *LineEmitter) Flush() {
	if e.tail == "" {
		return
	}
	e.emit(e.tail)
	e.tail = ""
}

// Collected returns everything accumulated so far, in order.
func (e *LineEmitter) Collected() string {
	return e.parts.String()
}

func (e *LineEmitter) emit(line string) {
	if e.cb != nil {
		e.cb(line, e.stream)
	}
	e.parts.WriteString(line)
}
