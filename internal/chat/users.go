// ABOUTME: Person lifecycle operations for private-key server access.
// ABOUTME: Secrets are bcrypt-hashed here; user events fire webhooks.

package chat

import (
	"context"

	"github.com/shoutbox/shoutbox/internal/auth"
	"github.com/shoutbox/shoutbox/internal/fanout"
	"github.com/shoutbox/shoutbox/internal/store"
)

// ListUsers returns every person in the project. Project-level access only.
func (s *Service) ListUsers(ctx context.Context, id *auth.Identity) ([]*store.Person, error) {
	if err := decisionErr(s.guard.ManageProject(id)); err != nil {
		return nil, err
	}
	return s.store.ListPeople(ctx, id.Project.PublicKey)
}

// CreateUser creates a person with a hashed secret and fires the new-user
// webhook.
func (s *Service) CreateUser(ctx context.Context, id *auth.Identity, person *store.Person, secret string) (*store.Person, error) {
	if err := decisionErr(s.guard.ManageProject(id)); err != nil {
		return nil, err
	}

	hashed, err := auth.HashSecret(secret)
	if err != nil {
		return nil, err
	}
	person.ProjectID = id.Project.PublicKey
	person.Secret = hashed
	person.CreatedAt = s.now().UTC()
	if err := s.store.CreatePerson(ctx, person); err != nil {
		return nil, err
	}

	s.dispatcher.PersonEvent(ctx, id.Project, fanout.ActionNewUser, person)
	s.logger.Info("person created", "project", person.ProjectID, "person", person.ID)
	return person, nil
}

// UpdateUser edits a person. Updates are partial: only fields present in
// the request replace stored values, and presence is never touched here
// (the socket tier owns it). A new plaintext secret is re-hashed; a
// secret that is already a hash (the stored value echoed back) is kept
// untouched.
func (s *Service) UpdateUser(ctx context.Context, id *auth.Identity, personID int64, update *store.Person) (*store.Person, error) {
	if err := decisionErr(s.guard.ManageProject(id)); err != nil {
		return nil, err
	}

	person, err := s.store.GetPersonByID(ctx, id.Project.PublicKey, personID)
	if err != nil {
		return nil, err
	}
	if update.Username != "" {
		person.Username = update.Username
	}
	if update.Secret != "" && update.Secret != person.Secret {
		if auth.IsHashed(update.Secret) {
			person.Secret = update.Secret
		} else {
			hashed, err := auth.HashSecret(update.Secret)
			if err != nil {
				return nil, err
			}
			person.Secret = hashed
		}
	}
	if update.Email != "" {
		person.Email = update.Email
	}
	if update.FirstName != "" {
		person.FirstName = update.FirstName
	}
	if update.LastName != "" {
		person.LastName = update.LastName
	}

	if err := s.store.UpdatePerson(ctx, person); err != nil {
		return nil, err
	}

	s.dispatcher.PersonEvent(ctx, id.Project, fanout.ActionEditUser, person)
	return person, nil
}

// DeleteUser removes a person, dispatching the delete-user webhook with
// the full payload before the row disappears.
func (s *Service) DeleteUser(ctx context.Context, id *auth.Identity, personID int64) (*store.Person, error) {
	if err := decisionErr(s.guard.ManageProject(id)); err != nil {
		return nil, err
	}

	person, err := s.store.GetPersonByID(ctx, id.Project.PublicKey, personID)
	if err != nil {
		return nil, err
	}

	s.dispatcher.PersonEvent(ctx, id.Project, fanout.ActionDeleteUser, person)
	if err := s.store.DeletePerson(ctx, id.Project.PublicKey, person.ID); err != nil {
		return nil, err
	}
	return person, nil
}

// Me returns the acting person. Session and user-secret actors use this
// for the users/me surface.
func (s *Service) Me(id *auth.Identity) (*store.Person, error) {
	if id.Actor.Kind != auth.ActorPerson {
		return nil, store.ErrNotFound
	}
	return id.Actor.Person, nil
}

// SessionFor mints or refreshes the opaque session token for the acting
// person, for handing to a websocket client.
func (s *Service) SessionFor(ctx context.Context, id *auth.Identity) (*store.Session, error) {
	if id.Actor.Kind != auth.ActorPerson {
		return nil, ErrForbidden
	}
	return s.store.GetOrCreateSession(ctx, id.PersonID())
}

// SetOnline flips the acting person's presence flag. The websocket tier
// calls this on connect and disconnect.
func (s *Service) SetOnline(ctx context.Context, id *auth.Identity, online bool) error {
	if id.Actor.Kind != auth.ActorPerson {
		return nil
	}
	person := id.Actor.Person
	person.IsOnline = online
	return s.store.UpdatePerson(ctx, person)
}
