package rest

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"strings"
)

// Sign computes the request signature the engine checks: HMAC-SHA1 over the
// newline-joined fields, base64 encoded.
func Sign(signingKey string, fields ...string) string {
	mac := hmac.New(sha1.New, []byte(signingKey))
	mac.Write([]byte(strings.Join(fields, "\n")))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// Verify reports whether sig matches the fields under signingKey.
func Verify(signingKey, sig string, fields ...string) bool {
	want := Sign(signingKey, fields...)
	return hmac.Equal([]byte(want), []byte(sig))
}
