package gateway

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/trunkctl/trunk/internal/trunkerr"
)

// Claims is the session JWT's payload: the subject names the session id, not
// a user id directly, so a revoked session invalidates an otherwise
// unexpired token.
type Claims struct {
	jwt.RegisteredClaims
}

// TokenVerifier checks session JWTs and resolves them to their backing
// session row.
type TokenVerifier struct {
	signingKey []byte
	store      SessionStore
}

// NewTokenVerifier builds a verifier over an HMAC signing key, grounded on
// evalgo-org-graphium's JWTService.ValidateToken.
func NewTokenVerifier(signingKey string, store SessionStore) *TokenVerifier {
	return &TokenVerifier{signingKey: []byte(signingKey), store: store}
}

// IssueToken mints a new session plus a signed JWT naming it, valid for ttl.
func (v *TokenVerifier) IssueToken(ctx context.Context, userID string, ttl time.Duration) (string, Session, error) {
	sess, err := v.store.CreateSession(ctx, userID, ttl)
	if err != nil {
		return "", Session{}, err
	}

	now := time.Now()
	claims := Claims{RegisteredClaims: jwt.RegisteredClaims{
		Subject:   sess.ID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(sess.ExpiresAt),
	}}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(v.signingKey)
	if err != nil {
		return "", Session{}, trunkerr.Wrap(trunkerr.KindValidation, err, "failed to sign session token")
	}
	return signed, sess, nil
}

// Verify checks tokenString's signature and expiry, then loads and returns
// the session it names.
func (v *TokenVerifier) Verify(ctx context.Context, tokenString string) (Session, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return v.signingKey, nil
	})
	if err != nil {
		return Session{}, trunkerr.Wrap(trunkerr.KindValidation, err, "invalid session token")
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return Session{}, trunkerr.New(trunkerr.KindValidation, "invalid session token")
	}

	sess, err := v.store.GetSession(ctx, claims.Subject)
	if err != nil {
		return Session{}, err
	}
	if time.Now().After(sess.ExpiresAt) {
		return Session{}, trunkerr.New(trunkerr.KindValidation, "session %s has expired", sess.ID)
	}
	return sess, nil
}
