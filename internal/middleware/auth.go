package middleware

import (
	"bytes"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gin-gonic/gin"
)

const (
	HeaderAuthority = "X-Authority"
	HeaderSignature = "X-Signature"
	HeaderTimestamp = "X-Timestamp"

	DefaultSignatureWindow = 5 * time.Minute

	authorityKey = "authority"
)

// SignatureConfig configures SignatureAuth. Zero values take the defaults.
type SignatureConfig struct {
	// Window is how far X-Timestamp may be from the server clock.
	Window time.Duration
	Now    func() time.Time
}

// SigningPayload returns the bytes a client signs: the method and request
// URI, the X-Timestamp value in unix milliseconds and the raw body, joined
// by newlines.
func SigningPayload(method, uri string, timestamp int64, body []byte) []byte {
	var buf bytes.Buffer
	buf.WriteString(method)
	buf.WriteByte(' ')
	buf.WriteString(uri)
	buf.WriteByte('\n')
	buf.WriteString(strconv.FormatInt(timestamp, 10))
	buf.WriteByte('\n')
	buf.Write(body)
	return buf.Bytes()
}

type seenSignatures struct {
	mu      sync.Mutex
	expires map[solana.Signature]time.Time
}

// add records sig until expiry and reports false if it was already seen.
func (s *seenSignatures) add(sig solana.Signature, expiry, now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if until, ok := s.expires[sig]; ok && now.Before(until) {
		return false
	}
	s.expires[sig] = expiry

	if len(s.expires) > 1000 {
		for key, until := range s.expires {
			if !now.Before(until) {
				delete(s.expires, key)
			}
		}
	}
	return true
}

// SignatureAuth requires an ed25519 signature by the key named in
// X-Authority over SigningPayload. Keys and signatures are base58. A
// timestamp outside the window or a signature already accepted is
// rejected.
func SignatureAuth(cfg SignatureConfig) gin.HandlerFunc {
	if cfg.Window <= 0 {
		cfg.Window = DefaultSignatureWindow
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	seen := &seenSignatures{expires: make(map[solana.Signature]time.Time)}

	return func(c *gin.Context) {
		authority, err := solana.PublicKeyFromBase58(c.GetHeader(HeaderAuthority))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing or invalid " + HeaderAuthority})
			return
		}
		sig, err := solana.SignatureFromBase58(c.GetHeader(HeaderSignature))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing or invalid " + HeaderSignature})
			return
		}
		ts, err := strconv.ParseInt(c.GetHeader(HeaderTimestamp), 10, 64)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing or invalid " + HeaderTimestamp})
			return
		}
		now := cfg.Now()
		signedAt := time.UnixMilli(ts)
		if signedAt.Before(now.Add(-cfg.Window)) || signedAt.After(now.Add(cfg.Window)) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "request timestamp outside the accepted window"})
			return
		}

		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "failed to read body"})
			return
		}
		c.Request.Body = io.NopCloser(bytes.NewReader(body))

		if !sig.Verify(authority, SigningPayload(c.Request.Method, c.Request.URL.RequestURI(), ts, body)) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "signature does not match request"})
			return
		}
		if !seen.add(sig, signedAt.Add(cfg.Window), now) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "signature already used"})
			return
		}
		c.Set(authorityKey, authority.String())
		c.Next()
	}
}

// RequireAuthority admits only requests whose verified signer is in
// allowed. It must run after SignatureAuth. An empty list admits no one.
func RequireAuthority(allowed []string) gin.HandlerFunc {
	set := make(map[string]struct{}, len(allowed))
	for _, a := range allowed {
		set[a] = struct{}{}
	}
	return func(c *gin.Context) {
		if _, ok := set[Authority(c)]; !ok {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "signer is not an authorized relayer"})
			return
		}
		c.Next()
	}
}

// Authority returns the verified signer of the request, or "".
func Authority(c *gin.Context) string {
	return c.GetString(authorityKey)
}
