package middleware

import (
	"context"
	"maps"
	"net/http"
	"sync"
	"time"
)

// Timeout caps how long a handler may run. Past the deadline the client gets
// a 504 and the handler's context is canceled; whatever the handler buffered
// by then is discarded. The handler sees the deadline through its context, so
// downstream I/O aborts too.
func Timeout(timeout time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), timeout)
			defer cancel()

			br := &bufferedResponse{dst: w}
			done := make(chan struct{})

			go func() {
				next.ServeHTTP(br, r.WithContext(ctx))
				close(done)
			}()

			select {
			case <-done:
				br.mu.Lock()
				defer br.mu.Unlock()
				br.replay()
			case <-ctx.Done():
				br.mu.Lock()
				defer br.mu.Unlock()
				if !br.headerSet {
					w.WriteHeader(http.StatusGatewayTimeout)
				}
			}
		})
	}
}

// bufferedResponse holds the handler's output until the race against the
// deadline is decided. The mutex serializes the handler goroutine against the
// select above; only one of replay or the 504 path ever reaches dst.
type bufferedResponse struct {
	dst       http.ResponseWriter
	mu        sync.Mutex
	header    http.Header
	body      []byte
	status    int
	headerSet bool
}

func (br *bufferedResponse) Header() http.Header {
	br.mu.Lock()
	defer br.mu.Unlock()

	if br.header == nil {
		br.header = make(http.Header)
	}
	return br.header
}

func (br *bufferedResponse) Write(b []byte) (int, error) {
	br.mu.Lock()
	defer br.mu.Unlock()

	if !br.headerSet {
		br.status = http.StatusOK
		br.headerSet = true
	}
	br.body = append(br.body, b...)
	return len(b), nil
}

func (br *bufferedResponse) WriteHeader(code int) {
	br.mu.Lock()
	defer br.mu.Unlock()

	if br.headerSet {
		return
	}
	br.status = code
	br.headerSet = true
}

// replay copies the buffered headers, status, and body onto the real writer.
// Caller holds br.mu.
func (br *bufferedResponse) replay() {
	if br.header != nil {
		maps.Copy(br.dst.Header(), br.header)
	}
	if br.headerSet {
		br.dst.WriteHeader(br.status)
	}
	if len(br.body) > 0 {
		_, _ = br.dst.Write(br.body)
	}
}
