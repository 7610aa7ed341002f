// Package auth builds push-channel identification headers.
//
// The harness consumes bearer tokens issued by an external authentication
// service. When no real token is available (local backends that accept any
// well-formed bearer), Credentials derives a deterministic synthetic token
// from the user id so repeated runs produce identical headers.
package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
)

// Header names attached to every push-channel handshake.
const (
	HeaderAuthorization = "Authorization"
	HeaderUserID        = "X-User-ID"
)

// syntheticSecret keys the synthetic token derivation. It carries no
// security value; it only makes derived tokens stable and well-formed.
const syntheticSecret = "pushprobe-harness"

// Credentials holds the identity one connection presents at handshake.
type Credentials struct {
	UserID string
	Token  string // Bearer token; empty means derive a synthetic one
}

// NewCredentials builds credentials for a user. If token is empty a
// deterministic synthetic token is derived from the user id.
func NewCredentials(userID, token string) Credentials {
	if token == "" {
		token = SyntheticToken(userID)
	}
	return Credentials{UserID: userID, Token: token}
}

// SyntheticToken derives a stable well-formed bearer token for a user id.
func SyntheticToken(userID string) string {
	mac := hmac.New(sha256.New, []byte(syntheticSecret))
	mac.Write([]byte(userID))
	return fmt.Sprintf("test-token-%s-%s", userID, hex.EncodeToString(mac.Sum(nil))[:16])
}

// Headers returns the handshake headers for these credentials.
func (c Credentials) Headers() http.Header {
	h := http.Header{}
	if c.Token != "" {
		h.Set(HeaderAuthorization, "Bearer "+c.Token)
	}
	if c.UserID != "" {
		h.Set(HeaderUserID, c.UserID)
	}
	return h
}
