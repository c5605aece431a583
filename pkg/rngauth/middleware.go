package rngauth

import (
	"bytes"
	"io"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
)

// HeaderName is the header carrying the hex HMAC of the request body.
const HeaderName = "X-RNG-Auth"

// Middleware returns a gin.HandlerFunc that enforces HMAC authentication
// per spec §6: missing header -> 401, bad signature -> 403, and the body
// used for the HMAC is the exact request body (empty for GET/DELETE).
//
// The request body is re-attached to c.Request after verification so
// downstream handlers can still read it. onFailure, if non-nil, is
// invoked with "missing_header" or "invalid_signature" so callers can
// track their own auth-failure metric; it may be nil.
func Middleware(key Key, onFailure func(reason string)) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader(HeaderName)
		if header == "" {
			log.Printf("rngauth: missing auth header ip=%s path=%s", c.ClientIP(), c.Request.URL.Path)
			if onFailure != nil {
				onFailure("missing_header")
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"status": "error", "message": "authentication required"})
			return
		}

		var body []byte
		if c.Request.Method == http.MethodPost || c.Request.Method == http.MethodPut {
			var err error
			body, err = io.ReadAll(c.Request.Body)
			if err != nil {
				c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"status": "error", "message": "failed to read request body"})
				return
			}
			c.Request.Body = io.NopCloser(bytes.NewReader(body))
		}

		if !key.Verify(header, body) {
			log.Printf("rngauth: invalid signature ip=%s path=%s", c.ClientIP(), c.Request.URL.Path)
			if onFailure != nil {
				onFailure("invalid_signature")
			}
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"status": "error", "message": "invalid authentication"})
			return
		}

		c.Next()
	}
}
