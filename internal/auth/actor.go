// ABOUTME: Actor and Identity types produced by the authentication schemes.
// ABOUTME: An identity pairs a resolved actor with its owning project.

package auth

import (
	"fmt"

	"github.com/shoutbox/shoutbox/internal/store"
)

// ActorKind discriminates the union of things that can act on the API.
type ActorKind string

const (
	// ActorPerson is an end user inside a project.
	ActorPerson ActorKind = "person"
	// ActorChat is a chat acting on its own behalf via its access key.
	ActorChat ActorKind = "chat"
	// ActorOwner is a project collaborator authenticated with an admin token.
	ActorOwner ActorKind = "owner"
	// ActorNone is project-level access with no individual behind it.
	ActorNone ActorKind = "none"
)

// Actor is the authenticated principal. Exactly one of Person, Chat or
// Email is populated depending on Kind; for ActorNone all three are empty.
type Actor struct {
	Kind   ActorKind
	Person *store.Person
	Chat   *store.Chat
	Email  string
}

// Identity is the result of a successful authentication: who is acting,
// and on which project. Project is always non-nil; the actor may be
// ActorNone when a private key resolves against an empty project.
//
// Elevated marks identities produced by a high-trust scheme (private key
// or collaborator token). The private key may resolve to a person for
// attribution, but the holder keeps project-wide authority either way.
type Identity struct {
	Actor    Actor
	Project  *store.Project
	Elevated bool
}

// PersonID returns the acting person's id, or 0 when the actor is not a person.
func (id *Identity) PersonID() int64 {
	if id.Actor.Kind == ActorPerson && id.Actor.Person != nil {
		return id.Actor.Person.ID
	}
	return 0
}

// String renders a compact description for logs.
func (a Actor) String() string {
	switch a.Kind {
	case ActorPerson:
		if a.Person != nil {
			return fmt.Sprintf("person:%d", a.Person.ID)
		}
	case ActorChat:
		if a.Chat != nil {
			return fmt.Sprintf("chat:%d", a.Chat.ID)
		}
	case ActorOwner:
		return "owner:" + a.Email
	}
	return string(ActorNone)
}
