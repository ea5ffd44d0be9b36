// ABOUTME: Tests for JWT admin tokens and collaborator resolution.
// ABOUTME: Covers signing, expiry, and project scoping of admin access.

package auth

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shoutbox/shoutbox/internal/store"
)

func TestJWTVerifier_RoundTrip(t *testing.T) {
	v := NewJWTVerifier([]byte("test-secret"))

	token, err := v.Generate("owner@example.com", time.Hour)
	require.NoError(t, err)

	email, err := v.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "owner@example.com", email)
}

func TestJWTVerifier_Expired(t *testing.T) {
	v := NewJWTVerifier([]byte("test-secret"))

	token, err := v.Generate("owner@example.com", -time.Minute)
	require.NoError(t, err)

	_, err = v.Verify(token)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestJWTVerifier_WrongSecret(t *testing.T) {
	v := NewJWTVerifier([]byte("test-secret"))
	other := NewJWTVerifier([]byte("other-secret"))

	token, err := other.Generate("owner@example.com", time.Hour)
	require.NoError(t, err)

	_, err = v.Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestAdminFromRequest(t *testing.T) {
	env := setupAuth(t)
	ctx := context.Background()

	project := env.newProject(t, true)
	require.NoError(t, env.store.CreateCollaborator(ctx, &store.Collaborator{
		Email:     "owner@example.com",
		ProjectID: project.PublicKey,
		Role:      store.RoleAdmin,
		CreatedAt: time.Now(),
	}))

	v := NewJWTVerifier([]byte("test-secret"))
	token, err := v.Generate("owner@example.com", time.Hour)
	require.NoError(t, err)

	r := httptest.NewRequest("GET", "/webhooks", nil)
	r.Header.Set("Authorization", "Bearer "+token)
	r.Header.Set(HeaderPublicKey, project.PublicKey)

	id, err := AdminFromRequest(ctx, r, v, env.store, env.watcher)
	require.NoError(t, err)
	assert.Equal(t, ActorOwner, id.Actor.Kind)
	assert.Equal(t, "owner@example.com", id.Actor.Email)
	assert.Equal(t, project.PublicKey, id.Project.PublicKey)
}

func TestJWTVerifier_ForeignIssuer(t *testing.T) {
	v := NewJWTVerifier([]byte("test-secret"))

	// Signed with our secret but minted by another service.
	claims := jwt.RegisteredClaims{
		Subject:   "owner@example.com",
		Issuer:    "some-other-service",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)

	_, err = v.Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestAdminFromRequest_MemberRoleRefused(t *testing.T) {
	env := setupAuth(t)
	ctx := context.Background()

	project := env.newProject(t, true)
	require.NoError(t, env.store.CreateCollaborator(ctx, &store.Collaborator{
		Email:     "member@example.com",
		ProjectID: project.PublicKey,
		Role:      store.RoleMember,
		CreatedAt: time.Now(),
	}))

	v := NewJWTVerifier([]byte("test-secret"))
	token, err := v.Generate("member@example.com", time.Hour)
	require.NoError(t, err)

	r := httptest.NewRequest("GET", "/webhooks", nil)
	r.Header.Set("Authorization", "Bearer "+token)
	r.Header.Set(HeaderPublicKey, project.PublicKey)

	_, err = AdminFromRequest(ctx, r, v, env.store, env.watcher)
	assert.ErrorIs(t, err, ErrBadCredential)
}

func TestAdminFromRequest_NotACollaborator(t *testing.T) {
	env := setupAuth(t)
	ctx := context.Background()

	project := env.newProject(t, true)

	v := NewJWTVerifier([]byte("test-secret"))
	token, err := v.Generate("stranger@example.com", time.Hour)
	require.NoError(t, err)

	r := httptest.NewRequest("GET", "/webhooks", nil)
	r.Header.Set("Authorization", "Bearer "+token)
	r.Header.Set(HeaderPublicKey, project.PublicKey)

	_, err = AdminFromRequest(ctx, r, v, env.store, env.watcher)
	assert.ErrorIs(t, err, ErrBadCredential)
}

func TestAdminFromRequest_NoToken(t *testing.T) {
	env := setupAuth(t)

	r := httptest.NewRequest("GET", "/webhooks", nil)
	_, err := AdminFromRequest(context.Background(), r, NewJWTVerifier([]byte("s")), env.store, env.watcher)
	assert.ErrorIs(t, err, ErrUnauthenticated)
}
