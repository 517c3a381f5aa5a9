package service

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stemsi/exstem-proctor/internal/model"
)

// Claims extends JWT standard claims with the principal fields the identity
// provider embeds.
type Claims struct {
	jwt.RegisteredClaims
	UserID   int        `json:"user_id"`
	Role     model.Role `json:"role"`
	Name     string     `json:"name,omitempty"`
	RollNo   string     `json:"roll_no,omitempty"`  // Student only
	Group    string     `json:"group,omitempty"`    // Student only
	Subgroup string     `json:"subgroup,omitempty"` // Student only
}

// Principal converts the claims into the caller identity used by services.
func (c *Claims) Principal() *model.Principal {
	return &model.Principal{
		UserID:   c.UserID,
		Role:     c.Role,
		Name:     c.Name,
		RollNo:   c.RollNo,
		Group:    c.Group,
		Subgroup: c.Subgroup,
	}
}

// AuthService verifies tokens minted by the identity provider.
type AuthService struct {
	secret []byte
	expiry time.Duration
}

// NewAuthService creates a new AuthService.
func NewAuthService(secret string, expiry time.Duration) *AuthService {
	return &AuthService{secret: []byte(secret), expiry: expiry}
}

// IssueToken signs a token for p with the shared secret.
func (s *AuthService) IssueToken(p *model.Principal) (string, error) {
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			Subject:   strconv.Itoa(p.UserID),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.expiry)),
		},
		UserID:   p.UserID,
		Role:     p.Role,
		Name:     p.Name,
		RollNo:   p.RollNo,
		Group:    p.Group,
		Subgroup: p.Subgroup,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// ValidateToken parses and validates a JWT, returning the claims.
func (s *AuthService) ValidateToken(tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("parse token: %w: %w", err, ErrInvalidToken)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}

	switch claims.Role {
	case model.RoleStudent, model.RoleTeacher, model.RoleAdmin, model.RoleProctor:
	default:
		return nil, errors.Join(ErrInvalidToken, fmt.Errorf("unknown role %q", claims.Role))
	}

	return claims, nil
}
