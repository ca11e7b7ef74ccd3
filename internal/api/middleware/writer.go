// SPDX-License-Identifier: MIT

package middleware

import "net/http"

// statusWriter captures the status code and body size flowing through the
// chain. Unwrap keeps http.ResponseController working for the streaming
// handlers underneath.
type statusWriter struct {
	http.ResponseWriter
	status  int
	bytes   int64
	written bool
}

func (sw *statusWriter) WriteHeader(status int) {
	if !sw.written {
		sw.status = status
		sw.written = true
	}
	sw.ResponseWriter.WriteHeader(status)
}

func (sw *statusWriter) Write(p []byte) (int, error) {
	if !sw.written {
		sw.status = http.StatusOK
		sw.written = true
	}
	n, err := sw.ResponseWriter.Write(p)
	sw.bytes += int64(n)
	return n, err
}

func (sw *statusWriter) Unwrap() http.ResponseWriter {
	return sw.ResponseWriter
}
