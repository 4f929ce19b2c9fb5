package middleware

import (
	"net/http"
	"slices"
)

// Chain folds a list of middleware into one. Middleware are listed outermost
// first, so
//
//	Chain(Recovery, RequestID, Logging)(h)
//
// wraps h as Recovery(RequestID(Logging(h))): Recovery sees the request
// first and the response last.
func Chain(middlewares ...func(http.Handler) http.Handler) func(http.Handler) http.Handler {
	return func(handler http.Handler) http.Handler {
		for _, mw := range slices.Backward(middlewares) {
			handler = mw(handler)
		}
		return handler
	}
}
