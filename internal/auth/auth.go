// internal/auth/auth.go
package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/Annany2002/nebula-insights/api/models" // Import DTO for CustomClaims
	"github.com/Annany2002/nebula-insights/internal/domain"
	"github.com/Annany2002/nebula-insights/internal/logger"
)

const sessionIssuer = "nebula-insights"

var (
	ErrTokenMalformed          = errors.New("malformed token")
	ErrTokenExpired            = errors.New("token is expired or not valid yet")
	ErrTokenInvalid            = errors.New("invalid token")
	ErrTokenClaimsInvalid      = errors.New("invalid token claims")
	ErrUnexpectedSigningMethod = errors.New("unexpected token signing method")
	customLog                  = logger.NewLogger()
)

// IdentityClaims are the claims the identity provider asserts in an id token.
type IdentityClaims struct {
	ObjectID string `json:"oid"`
	Email    string `json:"email"`
	Name     string `json:"name"`
	jwt.RegisteredClaims
}

// --- JWT Utilities ---

// GenerateJWT creates a signed session token for a given userID
func GenerateJWT(userID int64, jwtSecret string, jwtExpiration time.Duration) (string, error) {
	now := time.Now()
	claims := models.CustomClaims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(jwtExpiration)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    sessionIssuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signedToken, err := token.SignedString([]byte(jwtSecret))
	if err != nil {
		customLog.Warnf("Error signing JWT for user %d: %v", userID, err)
		return "", fmt.Errorf("failed to generate token")
	}
	return signedToken, nil
}

// ValidateJWT parses and validates a session token, returning the UserID if valid.
func ValidateJWT(tokenString, jwtSecret string) (int64, error) {
	claims := &models.CustomClaims{}
	if err := parse(tokenString, jwtSecret, claims, jwt.WithIssuer(sessionIssuer)); err != nil {
		return 0, err
	}
	if claims.UserID <= 0 {
		customLog.Warnf("ValidateJWT: UserID missing or invalid in token claims")
		return 0, ErrTokenClaimsInvalid
	}
	return claims.UserID, nil
}

// VerifyIdentityToken checks an id token signed by the identity provider with the shared
// secret and returns the principal it asserts. issuer is checked when non-empty.
func VerifyIdentityToken(tokenString, sharedSecret, issuer string) (*domain.Principal, error) {
	claims := &IdentityClaims{}
	var opts []jwt.ParserOption
	if issuer != "" {
		opts = append(opts, jwt.WithIssuer(issuer))
	}
	if err := parse(tokenString, sharedSecret, claims, opts...); err != nil {
		return nil, err
	}

	principal := &domain.Principal{
		ExternalID:  strings.TrimSpace(claims.ObjectID),
		Email:       strings.ToLower(strings.TrimSpace(claims.Email)),
		DisplayName: strings.TrimSpace(claims.Name),
	}
	if principal.ExternalID == "" || principal.Email == "" {
		customLog.Warnf("VerifyIdentityToken: oid or email missing from identity claims")
		return nil, ErrTokenClaimsInvalid
	}
	if principal.DisplayName == "" {
		principal.DisplayName = principal.Email
	}
	return principal, nil
}

// parse validates signature and time claims, mapping library errors to ours.
func parse(tokenString, secret string, claims jwt.Claims, opts ...jwt.ParserOption) error {
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			customLog.Warnf("Unexpected signing method: %v", token.Header["alg"])
			return nil, fmt.Errorf("%w: %v", ErrUnexpectedSigningMethod, token.Header["alg"])
		}
		return []byte(secret), nil
	}, opts...)

	if err != nil {
		customLog.Warnf("Token parsing error: %v", err)
		switch {
		case errors.Is(err, jwt.ErrTokenMalformed):
			return ErrTokenMalformed
		case errors.Is(err, jwt.ErrTokenExpired), errors.Is(err, jwt.ErrTokenNotValidYet):
			return ErrTokenExpired
		case errors.Is(err, ErrUnexpectedSigningMethod):
			return ErrUnexpectedSigningMethod
		case errors.Is(err, jwt.ErrTokenInvalidIssuer):
			return ErrTokenClaimsInvalid
		default:
			return ErrTokenInvalid
		}
	}
	if !token.Valid {
		return ErrTokenInvalid
	}
	return nil
}
