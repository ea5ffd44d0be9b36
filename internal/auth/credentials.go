// ABOUTME: Credential extraction from HTTP request headers.
// ABOUTME: Defines the exact header names clients send and a stable cache key.

package auth

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

// Header names the API accepts. HeaderProjectID is a legacy alias for
// HeaderPublicKey; when both are present the public-key header wins.
const (
	HeaderPublicKey  = "Public-Key"
	HeaderProjectID  = "Project-Id"
	HeaderPrivateKey = "Private-Key"
	HeaderUserName   = "User-Name"
	HeaderUserSecret = "User-Secret"
	HeaderAccessKey  = "Access-Key"
	HeaderChatID     = "Chat-Id"
)

// Credentials carries every credential a request may present. Schemes look
// at the fields they understand and ignore the rest.
type Credentials struct {
	PublicKey    string
	PrivateKey   string
	Username     string
	Secret       string
	AccessKey    string
	ChatID       int64
	SessionToken string
}

// CredentialsFromRequest reads the credential headers off a request.
// The chat id may also be set later from the URL path; a path value
// always overrides the header.
func CredentialsFromRequest(r *http.Request) *Credentials {
	c := &Credentials{
		PublicKey:  r.Header.Get(HeaderPublicKey),
		PrivateKey: r.Header.Get(HeaderPrivateKey),
		Username:   r.Header.Get(HeaderUserName),
		Secret:     r.Header.Get(HeaderUserSecret),
		AccessKey:  r.Header.Get(HeaderAccessKey),
	}
	if c.PublicKey == "" {
		c.PublicKey = r.Header.Get(HeaderProjectID)
	}
	if raw := r.Header.Get(HeaderChatID); raw != "" {
		if id, err := strconv.ParseInt(raw, 10, 64); err == nil {
			c.ChatID = id
		}
	}
	return c
}

// MergeQuery fills in credentials from URL query parameters. Browsers
// cannot set headers on websocket upgrades, so the socket endpoint also
// accepts snake_cased query parameters. Headers win when both are set.
func (c *Credentials) MergeQuery(q url.Values) {
	merge := func(dst *string, key string) {
		if *dst == "" {
			*dst = q.Get(key)
		}
	}
	merge(&c.PublicKey, "public_key")
	merge(&c.PublicKey, "project_id")
	merge(&c.PrivateKey, "private_key")
	merge(&c.Username, "user_name")
	merge(&c.Secret, "user_secret")
	merge(&c.AccessKey, "access_key")
	merge(&c.SessionToken, "session_token")
	if c.ChatID == 0 {
		if id, err := strconv.ParseInt(q.Get("chat_id"), 10, 64); err == nil {
			c.ChatID = id
		}
	}
}

// Empty reports whether no credential of any kind was presented.
func (c *Credentials) Empty() bool {
	return c.PublicKey == "" && c.PrivateKey == "" && c.AccessKey == "" && c.SessionToken == ""
}

// CacheKey returns a stable key covering every field that influences the
// authentication outcome. Two requests with the same key resolve to the
// same identity for the lifetime of a cache entry.
func (c *Credentials) CacheKey() string {
	parts := []string{
		c.PublicKey,
		c.PrivateKey,
		c.Username,
		c.Secret,
		c.AccessKey,
		strconv.FormatInt(c.ChatID, 10),
		c.SessionToken,
	}
	return strings.Join(parts, "\x1f")
}
