// ABOUTME: The four authentication schemes: user secret, private key,
// ABOUTME: chat access key and session token.

package auth

import (
	"context"
	"errors"

	"github.com/shoutbox/shoutbox/internal/store"
)

// UserSecretScheme authenticates a person with the project public key plus
// their username and secret. The public key identifies the tenant; inside
// it, an unknown username and a wrong secret produce the same error so a
// caller cannot enumerate usernames.
type UserSecretScheme struct {
	Store    store.Store
	Inactive *InactiveWatcher
}

func (s *UserSecretScheme) Authenticate(ctx context.Context, creds *Credentials) (*Identity, error) {
	if creds.PublicKey == "" || creds.Username == "" {
		return nil, nil
	}
	project, err := s.Store.GetProjectByPublicKey(ctx, creds.PublicKey)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	if !project.IsActive {
		return nil, s.Inactive.Refuse(ctx, project)
	}
	person, err := s.Store.GetPerson(ctx, project.PublicKey, creds.Username)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrBadCredential
		}
		return nil, err
	}
	if !VerifySecret(person.Secret, creds.Secret) {
		return nil, ErrBadCredential
	}
	return &Identity{
		Actor:   Actor{Kind: ActorPerson, Person: person},
		Project: project,
	}, nil
}

// PrivateKeyScheme authenticates a server holding the project private key.
// The key alone grants project-level access; the acting person is resolved
// from the user-name header, the target chat's admin, or the project's
// first person, in that order. A project with no people authenticates as
// ActorNone and can still perform project-scoped operations.
type PrivateKeyScheme struct {
	Store    store.Store
	Inactive *InactiveWatcher
}

func (s *PrivateKeyScheme) Authenticate(ctx context.Context, creds *Credentials) (*Identity, error) {
	if creds.PrivateKey == "" {
		return nil, nil
	}
	project, err := s.Store.GetProjectByPrivateKey(ctx, creds.PrivateKey)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	if !project.IsActive {
		return nil, s.Inactive.Refuse(ctx, project)
	}

	actor, err := s.resolveActor(ctx, project, creds)
	if err != nil {
		return nil, err
	}
	return &Identity{Actor: actor, Project: project, Elevated: true}, nil
}

// resolveActor picks who the private key acts as. An explicit username
// must exist; the other fallbacks degrade to ActorNone instead of failing.
func (s *PrivateKeyScheme) resolveActor(ctx context.Context, project *store.Project, creds *Credentials) (Actor, error) {
	if creds.Username != "" {
		person, err := s.Store.GetPerson(ctx, project.PublicKey, creds.Username)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return Actor{}, ErrBadCredential
			}
			return Actor{}, err
		}
		return Actor{Kind: ActorPerson, Person: person}, nil
	}
	if creds.ChatID != 0 {
		chat, err := s.Store.GetChat(ctx, project.PublicKey, creds.ChatID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return Actor{}, ErrBadCredential
			}
			return Actor{}, err
		}
		if chat.AdminID == nil {
			return Actor{Kind: ActorNone}, nil
		}
		admin, err := s.Store.GetPersonByID(ctx, project.PublicKey, *chat.AdminID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return Actor{Kind: ActorNone}, nil
			}
			return Actor{}, err
		}
		return Actor{Kind: ActorPerson, Person: admin}, nil
	}
	first, err := s.Store.FirstPerson(ctx, project.PublicKey)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return Actor{Kind: ActorNone}, nil
		}
		return Actor{}, err
	}
	return Actor{Kind: ActorPerson, Person: first}, nil
}

// ChatAccessScheme authenticates a chat acting as itself. With a public
// key the caller must also hold the chat's access key; with a private key
// naming the chat is enough. Chains that also carry PrivateKeyScheme must
// run it first, so that a private key resolves to the chat's admin and
// only falls through to a chat actor in chains without it.
type ChatAccessScheme struct {
	Store    store.Store
	Inactive *InactiveWatcher
}

func (s *ChatAccessScheme) Authenticate(ctx context.Context, creds *Credentials) (*Identity, error) {
	if creds.ChatID == 0 {
		return nil, nil
	}

	var (
		project *store.Project
		chat    *store.Chat
		err     error
	)
	switch {
	case creds.PublicKey != "" && creds.AccessKey != "":
		project, err = s.Store.GetProjectByPublicKey(ctx, creds.PublicKey)
		if err == nil {
			chat, err = s.Store.GetChatByAccessKey(ctx, project.PublicKey, creds.ChatID, creds.AccessKey)
		}
	case creds.PrivateKey != "":
		project, err = s.Store.GetProjectByPrivateKey(ctx, creds.PrivateKey)
		if err == nil {
			chat, err = s.Store.GetChat(ctx, project.PublicKey, creds.ChatID)
		}
	default:
		return nil, nil
	}
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	if !project.IsActive {
		return nil, s.Inactive.Refuse(ctx, project)
	}
	return &Identity{
		Actor:   Actor{Kind: ActorChat, Chat: chat},
		Project: project,
	}, nil
}

// SessionTokenScheme authenticates a previously minted session token.
// Reading a live token slides its expiry forward; an unknown or expired
// token fails verification.
type SessionTokenScheme struct {
	Store    store.Store
	Inactive *InactiveWatcher
}

func (s *SessionTokenScheme) Authenticate(ctx context.Context, creds *Credentials) (*Identity, error) {
	if creds.SessionToken == "" {
		return nil, nil
	}
	session, err := s.Store.GetSessionByToken(ctx, creds.SessionToken)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrBadCredential
		}
		return nil, err
	}
	person, err := s.Store.LookupPerson(ctx, session.PersonID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrBadCredential
		}
		return nil, err
	}
	project, err := s.Store.GetProject(ctx, person.ProjectID)
	if err != nil {
		return nil, err
	}
	if !project.IsActive {
		return nil, s.Inactive.Refuse(ctx, project)
	}
	return &Identity{
		Actor:   Actor{Kind: ActorPerson, Person: person},
		Project: project,
	}, nil
}
