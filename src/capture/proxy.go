package capture

import (
	"net/http"
	"time"
)

// ResponseProxy stands in for the real http.ResponseWriter of one request.
// Body writes go to the capture; headers, status and connection deadlines are
// forwarded to the real writer.
//
// net/http sends headers as soon as WriteHeader is called, so the final status
// is recorded here and forwarded by Commit once the body has been decided.
type ResponseProxy struct {
	w       http.ResponseWriter
	capture *ResponseCapture

	status    int
	committed bool
}

// NewProxy wraps w so that the body written by a handler ends up in c.
func NewProxy(w http.ResponseWriter, c *ResponseCapture) *ResponseProxy {
	return &ResponseProxy{w: w, capture: c}
}

// Header returns the real writer's header map.
func (p *ResponseProxy) Header() http.Header {
	return p.w.Header()
}

// WriteHeader records the status code. Informational 1xx codes carry no body
// and are forwarded straight away.
func (p *ResponseProxy) WriteHeader(code int) {
	if code >= 100 && code <= 199 && code != http.StatusSwitchingProtocols {
		p.w.WriteHeader(code)
		return
	}
	if p.status != 0 {
		return
	}
	p.status = code
}

// Write appends to the capture's byte channel.
func (p *ResponseProxy) Write(b []byte) (int, error) {
	if p.status == 0 {
		p.status = http.StatusOK
	}
	return p.capture.ByteChannel().Write(b)
}

// WriteString appends to the capture's character channel.
func (p *ResponseProxy) WriteString(s string) (int, error) {
	if p.status == 0 {
		p.status = http.StatusOK
	}
	return p.capture.CharacterChannel().WriteString(s)
}

// Flush is a no-op: nothing may reach the client before the body is final.
func (p *ResponseProxy) Flush() {}

// FlushError is the http.ResponseController form of Flush.
func (p *ResponseProxy) FlushError() error { return nil }

func (p *ResponseProxy) SetReadDeadline(deadline time.Time) error {
	return http.NewResponseController(p.w).SetReadDeadline(deadline)
}

func (p *ResponseProxy) SetWriteDeadline(deadline time.Time) error {
	return http.NewResponseController(p.w).SetWriteDeadline(deadline)
}

func (p *ResponseProxy) EnableFullDuplex() error {
	return http.NewResponseController(p.w).EnableFullDuplex()
}

// Status returns the recorded status, defaulting to 200.
func (p *ResponseProxy) Status() int {
	if p.status == 0 {
		return http.StatusOK
	}
	return p.status
}

// Capture returns the capture this proxy writes into.
func (p *ResponseProxy) Capture() *ResponseCapture {
	return p.capture
}

// Commit forwards the recorded status to the real writer. Only the first call
// has an effect.
func (p *ResponseProxy) Commit() {
	if p.committed {
		return
	}
	p.committed = true
	p.w.WriteHeader(p.Status())
}
