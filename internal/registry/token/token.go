// Package token mints the service-credential bearer tokens the external
// registry requires on every claim API call.
package token

import (
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	id "keybridge/pkg/domain"
)

// Claims is the JWT payload the registry expects from a participant.
type Claims struct {
	Participant string `json:"participant"`
	jwt.RegisteredClaims
}

// Service signs short-lived participant tokens. Tokens are cached and reissued
// shortly before expiry so concurrent gateway calls share one signature.
type Service struct {
	signingKey  []byte
	participant id.ParticipantID
	audience    string
	ttl         time.Duration

	mu      sync.Mutex
	current string
	expires time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithTTL sets the lifetime of minted tokens.
func WithTTL(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.ttl = d
		}
	}
}

func NewService(signingKey string, participant id.ParticipantID, audience string, opts ...Option) *Service {
	s := &Service{
		signingKey:  []byte(signingKey),
		participant: participant,
		audience:    audience,
		ttl:         5 * time.Minute,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Bearer returns a valid signed token, minting a new one if the cached token
// is within a minute of expiry.
func (s *Service) Bearer() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current != "" && time.Until(s.expires) > time.Minute {
		return s.current, nil
	}

	now := time.Now()
	expires := now.Add(s.ttl)
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Participant: s.participant.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expires),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    s.participant.String(),
			Audience:  []string{s.audience},
			ID:        uuid.NewString(),
		},
	})
	signed, err := tok.SignedString(s.signingKey)
	if err != nil {
		return "", err
	}
	s.current = signed
	s.expires = expires
	return signed, nil
}
