package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"storefront/internal/policy"
)

type JWTConfig struct {
	Issuer       string
	Secret       string
	AccessTTLMin int
}

// JWTManager verifies access tokens minted by the identity provider. Sign
// exists for back-office tooling and tests; the storefront itself never
// issues tokens to end users.
type JWTManager struct {
	cfg JWTConfig
}

type Claims struct {
	Role  string `json:"role"`
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

func NewJWTManager(cfg JWTConfig) *JWTManager {
	return &JWTManager{cfg: cfg}
}

func (m *JWTManager) AccessTTL() time.Duration {
	return time.Duration(m.cfg.AccessTTLMin) * time.Minute
}

// Sign issues a token for subject (the identity id; empty for service_role).
func (m *JWTManager) Sign(subject string, role policy.Role) (string, time.Time, error) {
	now := time.Now()
	exp := now.Add(m.AccessTTL())
	claims := Claims{
		Role: string(role),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.cfg.Issuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	s, err := t.SignedString([]byte(m.cfg.Secret))
	return s, exp, err
}

func (m *JWTManager) Parse(tokenStr string) (*Claims, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if m.cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(m.cfg.Issuer))
	}
	tok, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (any, error) {
		return []byte(m.cfg.Secret), nil
	}, opts...)
	if err != nil {
		return nil, err
	}
	claims, ok := tok.Claims.(*Claims)
	if !ok || !tok.Valid {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}

// Principal converts verified claims into the policy principal.
func (c *Claims) Principal() (policy.Principal, error) {
	role := policy.Role(c.Role)
	if !role.Valid() {
		return policy.Principal{}, errors.New("unknown role claim")
	}
	p := policy.Principal{Role: role}
	switch role {
	case policy.RoleAuthenticated, policy.RoleAdmin:
		if c.Subject == "" {
			return policy.Principal{}, errors.New("token has no subject")
		}
		p.UserID = c.Subject
	}
	return p, nil
}
