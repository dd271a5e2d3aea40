package auth

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/juju/clock"
)

var (
	// ErrInvalidToken is returned when a token fails verification.
	ErrInvalidToken = errors.New("auth: invalid token")

	// ErrNoKey is returned when neither an HMAC secret nor an RSA key is configured.
	ErrNoKey = errors.New("auth: no verification key configured")
)

// Claims are the JWT claims the poller cares about. Username is set on
// tokens issued by syntrix and used as the subject when sub is empty.
type Claims struct {
	Username string `json:"username,omitempty"`
	jwt.RegisteredClaims
}

// VerifierConfig selects the verification key. Secret enables HS256,
// PublicKey enables RS256. Issuer, when set, must match the iss claim.
type VerifierConfig struct {
	Secret    []byte
	PublicKey *rsa.PublicKey
	Issuer    string
}

// Verifier validates session tokens.
type Verifier struct {
	cfg     VerifierConfig
	clock   clock.Clock
	methods []string
}

// NewVerifier creates a verifier. A nil clock uses the wall clock.
func NewVerifier(cfg VerifierConfig, clk clock.Clock) (*Verifier, error) {
	var methods []string
	if len(cfg.Secret) > 0 {
		methods = append(methods, jwt.SigningMethodHS256.Alg())
	}
	if cfg.PublicKey != nil {
		methods = append(methods, jwt.SigningMethodRS256.Alg())
	}
	if len(methods) == 0 {
		return nil, ErrNoKey
	}
	if clk == nil {
		clk = clock.WallClock
	}
	return &Verifier{cfg: cfg, clock: clk, methods: methods}, nil
}

// Verify parses and validates token and returns its claims.
func (v *Verifier) Verify(token string) (*Claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods(v.methods),
		jwt.WithTimeFunc(v.clock.Now),
	}
	if v.cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.cfg.Issuer))
	}

	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims, v.key, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return claims, nil
}

func (v *Verifier) key(token *jwt.Token) (interface{}, error) {
	switch token.Method.(type) {
	case *jwt.SigningMethodHMAC:
		return v.cfg.Secret, nil
	case *jwt.SigningMethodRSA:
		return v.cfg.PublicKey, nil
	default:
		return nil, errors.New("unexpected signing method")
	}
}

// expiry returns the exp claim, or the zero time when the token never expires.
func (c *Claims) expiry() time.Time {
	if c.ExpiresAt == nil {
		return time.Time{}
	}
	return c.ExpiresAt.Time
}

func (c *Claims) subject() string {
	if c.Subject != "" {
		return c.Subject
	}
	return c.Username
}

// LoadPublicKey reads an RSA public key from a PEM file. PKIX and PKCS1
// public keys are accepted, as is a PKCS1 private key (the syntrix key file
// format), whose public half is returned.
func LoadPublicKey(path string) (*rsa.PublicKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	block, _ := pem.Decode(data)
	if block == nil {
		return nil, errors.New("failed to decode PEM block containing key")
	}

	switch block.Type {
	case "PUBLIC KEY":
		key, err := x509.ParsePKIXPublicKey(block.Bytes)
		if err != nil {
			return nil, err
		}
		rsaKey, ok := key.(*rsa.PublicKey)
		if !ok {
			return nil, errors.New("public key is not an RSA key")
		}
		return rsaKey, nil
	case "RSA PUBLIC KEY":
		return x509.ParsePKCS1PublicKey(block.Bytes)
	case "RSA PRIVATE KEY":
		key, err := x509.ParsePKCS1PrivateKey(block.Bytes)
		if err != nil {
			return nil, err
		}
		return &key.PublicKey, nil
	default:
		return nil, fmt.Errorf("unsupported PEM block type %q", block.Type)
	}
}
