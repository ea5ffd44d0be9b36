// ABOUTME: JWT token verification for collaborator admin access
// ABOUTME: Uses HS256 signing with configurable secret

package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/shoutbox/shoutbox/internal/store"
)

// Token errors
var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token expired")
	ErrMissingClaim = errors.New("missing required claim")
)

// tokenIssuer names this service in the "iss" claim. Tokens minted by
// anything else sharing the secret are rejected.
const tokenIssuer = "shoutbox"

// TokenVerifier verifies an admin bearer token and returns the
// collaborator email it was issued to.
type TokenVerifier interface {
	Verify(tokenString string) (email string, err error)
}

// JWTVerifier implements TokenVerifier using HS256 signed JWTs
type JWTVerifier struct {
	secret []byte
}

// NewJWTVerifier creates a new JWT verifier with the given secret
func NewJWTVerifier(secret []byte) *JWTVerifier {
	return &JWTVerifier{secret: secret}
}

// Verify validates the token signature, expiry, and issuer, and extracts
// the collaborator email from the "sub" claim.
func (v *JWTVerifier) Verify(tokenString string) (email string, err error) {
	var claims jwt.RegisteredClaims
	token, err := jwt.ParseWithClaims(tokenString, &claims,
		func(*jwt.Token) (interface{}, error) { return v.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", ErrExpiredToken
		}
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid {
		return "", ErrInvalidToken
	}
	if claims.Subject == "" {
		return "", fmt.Errorf("%w: sub", ErrMissingClaim)
	}
	return claims.Subject, nil
}

// Generate creates a new JWT token for the given collaborator email with expiration
func (v *JWTVerifier) Generate(email string, expiresIn time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   email,
		Issuer:    tokenIssuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(expiresIn)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(v.secret)
}

// AdminFromRequest authenticates a collaborator against a project from the
// Authorization bearer token. The project comes from the public-key header;
// the caller must be an admin collaborator on it. An inactive project refuses
// admin access the same as any other scheme.
func AdminFromRequest(ctx context.Context, r *http.Request, verifier TokenVerifier, st store.Store, watcher *InactiveWatcher) (*Identity, error) {
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return nil, ErrUnauthenticated
	}
	email, err := verifier.Verify(strings.TrimPrefix(header, prefix))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadCredential, err)
	}

	publicKey := r.Header.Get(HeaderPublicKey)
	if publicKey == "" {
		publicKey = r.Header.Get(HeaderProjectID)
	}
	if publicKey == "" {
		return nil, ErrBadCredential
	}
	project, err := st.GetProjectByPublicKey(ctx, publicKey)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrBadCredential
		}
		return nil, err
	}
	collab, err := st.GetCollaborator(ctx, email, project.PublicKey)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrBadCredential
		}
		return nil, err
	}
	// Webhook administration is reserved for admin collaborators.
	if collab.Role != store.RoleAdmin {
		return nil, ErrBadCredential
	}
	if !project.IsActive {
		return nil, watcher.Refuse(ctx, project)
	}
	return &Identity{
		Actor:    Actor{Kind: ActorOwner, Email: email},
		Project:  project,
		Elevated: true,
	}, nil
}
