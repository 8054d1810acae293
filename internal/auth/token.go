package auth

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pulsecrm/apiserver/types"
)

// Claims carries the registered claims plus the identity attributes the
// gate needs without a store round trip.
type Claims struct {
	jwt.RegisteredClaims
	Email string     `json:"email"`
	Role  types.Role `json:"role"`
}

// Issuer signs and verifies bearer tokens. It is stateless; revocation
// is handled separately by the Registry.
type Issuer struct {
	secret []byte
	ttl    time.Duration
}

func NewIssuer(secret string, ttl time.Duration) *Issuer {
	return &Issuer{secret: []byte(secret), ttl: ttl}
}

// TTL reports the lifetime stamped on issued tokens.
func (i *Issuer) TTL() time.Duration {
	return i.ttl
}

// Issue produces a signed HS256 token for the user, valid from now
// until now+ttl.
func (i *Issuer) Issue(user types.User) (string, error) {
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.Itoa(user.ID),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		},
		Email: user.Email,
		Role:  user.Role,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(i.secret)
}

// Verify parses and validates a token string. Failures are reported as
// typed auth errors: ErrExpired, ErrNotYetValid, or ErrMalformed for
// everything structural (bad signature, wrong algorithm, missing or
// non-numeric subject, unknown role).
func (i *Issuer) Verify(tokenString string) (Claims, error) {
	claims := Claims{}
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return i.secret, nil
	})
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return Claims{}, wrapError(KindExpired, "credential has expired", err)
		case errors.Is(err, jwt.ErrTokenNotValidYet):
			return Claims{}, wrapError(KindNotYetValid, "credential is not yet valid", err)
		default:
			return Claims{}, wrapError(KindMalformed, "credential is malformed", err)
		}
	}
	if !token.Valid {
		return Claims{}, ErrMalformed
	}
	if _, err := claims.SubjectID(); err != nil {
		return Claims{}, wrapError(KindMalformed, "credential is malformed", err)
	}
	if !claims.Role.IsValid() {
		return Claims{}, newError(KindMalformed, "credential carries an unknown role")
	}
	return claims, nil
}

// SubjectID parses the numeric subject claim.
func (c Claims) SubjectID() (int, error) {
	id, err := strconv.Atoi(strings.TrimSpace(c.Subject))
	if err != nil {
		return 0, errors.New("subject is not numeric")
	}
	if id < 1 {
		return 0, errors.New("invalid subject")
	}
	return id, nil
}

// ExpiryOf reports the expiry stamped on a token the issuer minted, or
// the zero time when the token cannot be verified. Used to bound how
// long a revoked fingerprint must be retained.
func (i *Issuer) ExpiryOf(tokenString string) time.Time {
	claims, err := i.Verify(tokenString)
	if err != nil || claims.ExpiresAt == nil {
		return time.Time{}
	}
	return claims.ExpiresAt.Time
}

// Fingerprint extracts the signature segment of a compact JWT. The
// signature alone identifies a token for revocation bookkeeping: it is
// stable, unguessable, and shorter than the full token. Returns "" for
// values that are not three-part tokens.
func Fingerprint(tokenString string) string {
	idx := strings.LastIndexByte(tokenString, '.')
	if idx < 0 || idx == len(tokenString)-1 {
		return ""
	}
	head := tokenString[:idx]
	if !strings.ContainsRune(head, '.') {
		return ""
	}
	return tokenString[idx+1:]
}
