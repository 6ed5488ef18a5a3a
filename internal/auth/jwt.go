package auth

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims is the staff token payload. Subject holds the person id.
type Claims struct {
	Role Role `json:"role"`
	jwt.RegisteredClaims
}

// JWTResolver turns HS256 bearer tokens into staff identities.
type JWTResolver struct {
	secret []byte
}

func NewJWTResolver(secret string) *JWTResolver {
	return &JWTResolver{secret: []byte(secret)}
}

// Issue signs a token for personID. The service never issues staff tokens on
// its own; this backs the staff-token command and tests.
func (r *JWTResolver) Issue(personID int64, role Role, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(personID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(r.secret)
}

// Resolve validates tokenStr and returns the identity it carries.
func (r *JWTResolver) Resolve(tokenStr string) (StaffContext, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (any, error) {
		return r.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return StaffContext{}, fmt.Errorf("parse staff token: %w", err)
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return StaffContext{}, jwt.ErrSignatureInvalid
	}
	id, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil || id <= 0 {
		return StaffContext{}, errors.New("staff token subject is not a person id")
	}
	return StaffContext{PersonID: id, Role: claims.Role}, nil
}
