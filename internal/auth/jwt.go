package auth

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken  = errors.New("invalid token")
	ErrExpiredToken  = errors.New("token has expired")
	ErrInvalidClaims = errors.New("invalid token claims")
)

// RoleAdmin unlocks leaderboard maintenance endpoints.
const RoleAdmin = 1

type Claims struct {
	Sub   string `json:"sub"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  int    `json:"role"`
	jwt.RegisteredClaims
}

type JWTValidator struct {
	secret    []byte
	onFailure func()
}

func NewJWTValidator(secret string) *JWTValidator {
	return &JWTValidator{
		secret: []byte(secret),
	}
}

// OnFailure registers fn to run whenever AuthMiddleware rejects a request.
func (v *JWTValidator) OnFailure(fn func()) {
	v.onFailure = fn
}

func (v *JWTValidator) failed() {
	if v.onFailure != nil {
		v.onFailure()
	}
}

func (v *JWTValidator) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return v.secret, nil
	})

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.Sub == "" {
		return nil, ErrInvalidClaims
	}

	return claims, nil
}

// Sign issues a token for claims. Used by tooling and tests.
func (v *JWTValidator) Sign(claims *Claims) (string, error) {
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}

func (c *Claims) GetPlayerID() string {
	return c.Sub
}

func (c *Claims) GetDisplayName() string {
	return c.Name
}

func (c *Claims) IsAdmin() bool {
	return c.Role == RoleAdmin
}
