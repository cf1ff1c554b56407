package bybit

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// Signer handles Bybit V5 API authentication signatures
type Signer struct {
	apiKey    string
	apiSecret string
}

// NewSigner creates a new Signer instance
func NewSigner(apiKey, apiSecret string) *Signer {
	return &Signer{
		apiKey:    apiKey,
		apiSecret: apiSecret,
	}
}

// APIKey returns the public key half of the credential pair.
func (s *Signer) APIKey() string {
	return s.apiKey
}

// WSAuthArgs builds the args for a private websocket auth op:
// [apiKey, expires, signature] where signature = HMAC-SHA256 over
// "GET/realtime{expires}".
func (s *Signer) WSAuthArgs() []any {
	expires := (time.Now().Unix() + 10) * 1000
	return s.wsAuthArgsAt(expires)
}

func (s *Signer) wsAuthArgsAt(expires int64) []any {
	payload := fmt.Sprintf("GET/realtime%d", expires)
	return []any{s.apiKey, expires, computeHmacSha256(payload, s.apiSecret)}
}

// RESTHeaders creates the signed headers for a V5 REST request.
// queryString is the raw query without the leading "?", empty if none.
func (s *Signer) RESTHeaders(recvWindow, queryString string) map[string]string {
	timestamp := fmt.Sprintf("%d", time.Now().UnixMilli())

	// V5 signing payload: timestamp + apiKey + recvWindow + queryString
	payload := timestamp + s.apiKey + recvWindow + queryString
	sign := computeHmacSha256(payload, s.apiSecret)

	return map[string]string{
		"X-BAPI-API-KEY":     s.apiKey,
		"X-BAPI-TIMESTAMP":   timestamp,
		"X-BAPI-SIGN":        sign,
		"X-BAPI-RECV-WINDOW": recvWindow,
		"Content-Type":       "application/json",
	}
}

func computeHmacSha256(message string, secret string) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write([]byte(message))
	return hex.EncodeToString(h.Sum(nil))
}
