// Package actor carries the identity performing a mutation: who they are,
// their role in the organization, and how that identity travels through
// context and signed tokens.
package actor

// Role is an organization membership role. Roles are ordered; authorization
// checks compare an actor's role against a policy's minimum role.
type Role string

const (
	RoleStudent Role = "student"
	RoleStaff   Role = "staff"
	RoleManager Role = "manager"
	RoleAdmin   Role = "admin"
)

// Actor identifies the user performing an operation. A zero ID marks a
// system actor (CLI tools, maintenance jobs).
type Actor struct {
	ID   int64
	Role Role
}

// System returns the maintenance actor used by CLI tools.
func System() Actor {
	return Actor{ID: 0, Role: RoleAdmin}
}

// IDPtr returns the actor id as a nullable ledger actor reference: nil for
// system actors so their entries carry no user id.
func (a Actor) IDPtr() *int64 {
	if a.ID == 0 {
		return nil
	}
	id := a.ID
	return &id
}
