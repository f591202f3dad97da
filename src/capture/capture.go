// Package capture buffers a response body written by a downstream handler so
// that it can be rewritten before anything reaches the client.
package capture

import (
	"bufio"
	"bytes"
	"io"
)

// ResponseCapture collects everything written through its two channels into a
// single ordered buffer. It belongs to exactly one request.
type ResponseCapture struct {
	buf   bytes.Buffer
	chars *CharWriter
}

// New creates an empty ResponseCapture.
func New() *ResponseCapture {
	c := &ResponseCapture{}
	c.chars = &CharWriter{w: bufio.NewWriter(&c.buf)}
	return c
}

// ByteChannel returns the raw buffer as a writer. No translation is applied.
func (c *ResponseCapture) ByteChannel() io.Writer {
	return &c.buf
}

// CharacterChannel returns the text writer. Every call returns the same
// writer, and every write on it lands in the buffer before returning.
func (c *ResponseCapture) CharacterChannel() *CharWriter {
	return c.chars
}

// Contents returns the captured bytes as text. It does not reset the buffer.
func (c *ResponseCapture) Contents() string {
	return c.buf.String()
}

// Bytes returns the captured bytes. The slice aliases the buffer and must not
// be modified.
func (c *ResponseCapture) Bytes() []byte {
	return c.buf.Bytes()
}

// Len reports the number of captured bytes.
func (c *ResponseCapture) Len() int {
	return c.buf.Len()
}

// CharWriter is the character-oriented view of a ResponseCapture. It flushes
// after every write so that interleaving with the byte channel keeps call order.
type CharWriter struct {
	w *bufio.Writer
}

func (cw *CharWriter) Write(p []byte) (int, error) {
	n, err := cw.w.Write(p)
	if err != nil {
		return n, err
	}
	return n, cw.w.Flush()
}

func (cw *CharWriter) WriteString(s string) (int, error) {
	n, err := cw.w.WriteString(s)
	if err != nil {
		return n, err
	}
	return n, cw.w.Flush()
}

func (cw *CharWriter) WriteRune(r rune) (int, error) {
	n, err := cw.w.WriteRune(r)
	if err != nil {
		return n, err
	}
	return n, cw.w.Flush()
}
