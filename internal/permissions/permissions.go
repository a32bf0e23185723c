// Package permissions holds the stateless predicates that gate each operation
// on caller identity, role and object ownership.
package permissions

import (
	"net/http"

	"greendrake/rentals/internal/models"
	"greendrake/rentals/internal/utils"
)

// Action classifies an operation as read-only or mutating.
type Action int

const (
	ActionRead Action = iota
	ActionWrite
)

// ActionFor maps an HTTP method to an Action. Safe methods are reads.
func ActionFor(method string) Action {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return ActionRead
	default:
		return ActionWrite
	}
}

// Actor is the caller as resolved by the authentication gate.
type Actor struct {
	UserID        utils.SixID
	Role          models.Role
	IsAdmin       bool
	Authenticated bool
}

// Anonymous is the actor of an unauthenticated request.
var Anonymous = Actor{}

// Is reports whether the actor is the authenticated user id.
func (a Actor) Is(id utils.SixID) bool {
	return a.Authenticated && !id.IsZero() && a.UserID == id
}

// Target is the object an action is applied to.
type Target struct {
	ListingOwner utils.SixID // owner of the listing the object belongs to
	Author       utils.SixID // author of a review
}

// Permission decides whether actor may perform action on target. target may be nil
// for collection-level checks.
type Permission interface {
	Allows(actor Actor, action Action, target *Target) bool
}

// PermissionFunc adapts a function to Permission.
type PermissionFunc func(actor Actor, action Action, target *Target) bool

func (f PermissionFunc) Allows(actor Actor, action Action, target *Target) bool {
	return f(actor, action, target)
}

// hasRole is exhaustive over models.Role; unknown roles never match.
func hasRole(actor Actor, want models.Role) bool {
	if !actor.Authenticated {
		return false
	}
	switch actor.Role {
	case models.RoleLandlord:
		return want == models.RoleLandlord
	case models.RoleTenant:
		return want == models.RoleTenant
	}
	return false
}

var (
	// IsAuthenticated allows any authenticated actor.
	IsAuthenticated Permission = PermissionFunc(func(actor Actor, _ Action, _ *Target) bool {
		return actor.Authenticated
	})

	// IsLandlord allows authenticated landlords.
	IsLandlord Permission = PermissionFunc(func(actor Actor, _ Action, _ *Target) bool {
		return hasRole(actor, models.RoleLandlord)
	})

	// IsTenant allows authenticated tenants.
	IsTenant Permission = PermissionFunc(func(actor Actor, _ Action, _ *Target) bool {
		return hasRole(actor, models.RoleTenant)
	})

	// IsOwnerOrReadOnly allows reads, and writes by the owner of the target's listing.
	IsOwnerOrReadOnly Permission = PermissionFunc(func(actor Actor, action Action, target *Target) bool {
		if action == ActionRead {
			return true
		}
		return target != nil && actor.Is(target.ListingOwner)
	})

	// IsReviewOwnerOrReadOnly allows reads, and writes by the review's author.
	IsReviewOwnerOrReadOnly Permission = PermissionFunc(func(actor Actor, action Action, target *Target) bool {
		if action == ActionRead {
			return true
		}
		return target != nil && actor.Is(target.Author)
	})

	// IsAdmin allows staff accounts.
	IsAdmin Permission = PermissionFunc(func(actor Actor, _ Action, _ *Target) bool {
		return actor.Authenticated && actor.IsAdmin
	})
)

// All allows only if every permission allows.
func All(perms ...Permission) Permission {
	return PermissionFunc(func(actor Actor, action Action, target *Target) bool {
		for _, p := range perms {
			if !p.Allows(actor, action, target) {
				return false
			}
		}
		return true
	})
}
