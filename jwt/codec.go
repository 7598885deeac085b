package jwt

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrDecode is the parent of every decoding failure returned by this package.
	// A decode failure is distinct from an expired token.
	ErrDecode = errors.New("token decode failed")
	// ErrMalformed is returned when the token is not a structurally valid JWT.
	ErrMalformed = fmt.Errorf("%w: malformed token", ErrDecode)
	// ErrMissingExpiry is returned when the token parses but carries no exp claim.
	ErrMissingExpiry = fmt.Errorf("%w: missing exp claim", ErrDecode)
)

// maxLeeway bounds how early a token may be considered expired.
const maxLeeway = 2 * time.Minute

// Config defines a public type used by goAuthClient APIs.
//
// Config instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Config struct {
	// Leeway treats a token as expired this long before its exp claim. Zero keeps
	// the exact now >= exp comparison.
	Leeway time.Duration
}

// Claims is the structured view of a bearer token. Only the registered claims
// are read; everything else in the payload is ignored.
type Claims struct {
	jwt.RegisteredClaims
}

// Codec decodes bearer tokens into claims without verifying their signature.
//
// Codec instances are immutable and safe for concurrent use.
type Codec struct {
	config Config
	parser *jwt.Parser
}

var defaultCodec = &Codec{parser: jwt.NewParser()}

// NewCodec describes the newcodec operation and its observable behavior.
//
// NewCodec returns an error when the leeway is negative or larger than two minutes.
func NewCodec(cfg Config) (*Codec, error) {
	if cfg.Leeway < 0 || cfg.Leeway > maxLeeway {
		return nil, errors.New("invalid leeway configuration")
	}
	return &Codec{
		config: cfg,
		parser: jwt.NewParser(),
	}, nil
}

// Decode parses token and returns its claims.
//
// The signature segment is never checked: the token is treated as a carrier of
// an expiry time, not as a trust boundary.
func (c *Codec) Decode(token string) (*Claims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrMalformed
	}

	// Only the payload is read. The header's alg is irrelevant here, so
	// tokens signed with algorithms this package does not know still decode.
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return nil, fmt.Errorf("%w: token contains an invalid number of segments", ErrMalformed)
	}
	payload, err := c.parser.DecodeSegment(parts[1])
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}

	claims := &Claims{}
	if err := json.Unmarshal(payload, claims); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	return claims, nil
}

// DecodeExpiry describes the decodeexpiry operation and its observable behavior.
//
// DecodeExpiry returns [ErrMalformed] for unparseable input and [ErrMissingExpiry]
// when the exp claim is absent. Both satisfy errors.Is(err, ErrDecode).
func (c *Codec) DecodeExpiry(token string) (time.Time, error) {
	claims, err := c.Decode(token)
	if err != nil {
		return time.Time{}, err
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, ErrMissingExpiry
	}
	return claims.ExpiresAt.Time, nil
}

// IsExpired reports whether token must be renewed at now.
//
// Empty and undecodable tokens count as expired so callers re-authenticate
// instead of trusting them.
func (c *Codec) IsExpired(token string, now time.Time) bool {
	exp, err := c.DecodeExpiry(token)
	if err != nil {
		return true
	}
	return !now.Add(c.config.Leeway).Before(exp)
}

// Leeway returns the configured early-expiry window.
func (c *Codec) Leeway() time.Duration {
	return c.config.Leeway
}

// Decode parses token with a zero-leeway codec.
func Decode(token string) (*Claims, error) {
	return defaultCodec.Decode(token)
}

// DecodeExpiry extracts the exp claim with a zero-leeway codec.
func DecodeExpiry(token string) (time.Time, error) {
	return defaultCodec.DecodeExpiry(token)
}

// IsExpired reports now >= exp for token, treating empty or malformed tokens as expired.
func IsExpired(token string, now time.Time) bool {
	return defaultCodec.IsExpired(token, now)
}
