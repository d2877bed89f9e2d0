package encryption

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// ErrMissingCredentials is returned when the signer is built without a token or a secret.
var ErrMissingCredentials = errors.New("encryption: token and secret are required")

// SignedRequest holds the authentication material attached to a single vendor call.
// A new one is produced for every call and never reused.
type SignedRequest struct {
	Token     string // API token, sent as Authorization
	Timestamp string // Milliseconds since epoch
	Nonce     string // Random per-call identifier
	Signature string // base64(HMAC-SHA256(secret, token+timestamp+nonce))
}

// SignerInterface produces a fresh SignedRequest per call.
type SignerInterface interface {
	Sign() SignedRequest
}

// Signer signs vendor requests with a shared token and secret.
type Signer struct {
	token  string
	secret []byte

	now      func() time.Time
	newNonce func() string
}

// NewSigner creates a Signer. Both credentials must be non-empty.
func NewSigner(token, secret string) (*Signer, error) {
	if token == "" || secret == "" {
		return nil, ErrMissingCredentials
	}
	return &Signer{
		token:    token,
		secret:   []byte(secret),
		now:      time.Now,
		newNonce: uuid.NewString,
	}, nil
}

// Sign returns a SignedRequest stamped with the current time and a new nonce.
func (s *Signer) Sign() SignedRequest {
	t := strconv.FormatInt(s.now().UnixMilli(), 10)
	nonce := s.newNonce()
	return SignedRequest{
		Token:     s.token,
		Timestamp: t,
		Nonce:     nonce,
		Signature: ComputeSignature(s.secret, s.token, t, nonce),
	}
}

// ComputeSignature generates the base64-encoded HMAC-SHA256 of token+timestamp+nonce keyed by secret.
func ComputeSignature(secret []byte, token, timestamp, nonce string) string {
	h := hmac.New(sha256.New, secret)
	h.Write([]byte(token + timestamp + nonce))
	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}
