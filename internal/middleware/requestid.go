package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	// RequestIDHeader is the canonical HTTP header used to propagate the request identifier.
	RequestIDHeader = "X-Request-ID"

	// RequestIDKey is the gin.Context key under which the request ID string is stored so
	// that handlers and other middleware can retrieve it without reading the response header.
	RequestIDKey = "request_id"

	// maxRequestIDLength caps inbound identifiers. The request ID flows into audit
	// records and log lines; an oversized upstream value is replaced, not truncated,
	// so a stored ID is always one the server either generated or accepted whole.
	maxRequestIDLength = 64
)

// RequestIDMiddleware returns a Gin handler that ensures every request carries a
// unique identifier propagated as an X-Request-ID HTTP header.
//
// If the inbound request already carries an X-Request-ID header (set by an
// upstream load balancer, API gateway, or caller) and the value is printable
// ASCII within the length cap, it is reused unchanged. Otherwise a new UUID v4
// is generated for the request.
//
// The identifier is stored in gin.Context under RequestIDKey so that handlers,
// the audit middleware, and the request logger can read it without parsing HTTP
// headers, and it is echoed back in the response X-Request-ID header so clients
// can correlate their request with server-side log and audit entries.
//
// Register this middleware before the logger and audit middleware so both see
// the ID.
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if !acceptableRequestID(id) {
			id = uuid.New().String()
		}

		c.Set(RequestIDKey, id)

		// Echo back to caller so they can correlate their request with server-side logs.
		c.Header(RequestIDHeader, id)

		c.Next()
	}
}

// acceptableRequestID reports whether an upstream-supplied identifier is safe
// to carry through logs and audit records as-is.
func acceptableRequestID(id string) bool {
	if id == "" || len(id) > maxRequestIDLength {
		return false
	}
	for i := 0; i < len(id); i++ {
		ch := id[i]
		if ch < 0x21 || ch > 0x7e {
			return false
		}
	}
	return true
}
