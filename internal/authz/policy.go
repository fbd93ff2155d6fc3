// Package authz evaluates role and website-grant access decisions.
package authz

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	"github.com/google/uuid"

	"github.com/oakleydye/oakley-metrics/internal/models"
	apierrors "github.com/oakleydye/oakley-metrics/internal/pkg/errors"
)

//go:embed model.conf
var casbinModelContent string

// GrantLookup finds a user's grant on a website. It returns nil when no
// grant exists.
type GrantLookup interface {
	Get(ctx context.Context, userID, websiteID uuid.UUID) (*models.WebsiteAccess, error)
}

// Reason explains a denial.
type Reason string

const (
	ReasonUnauthenticated Reason = "unauthenticated"
	ReasonRole            Reason = "insufficient_role"
	ReasonNoGrant         Reason = "no_website_grant"
	ReasonReadOnly        Reason = "read_only_grant"
	ReasonNoResource      Reason = "missing_website"
)

// Decision is the outcome of an authorization check.
type Decision struct {
	Allowed bool
	Reason  Reason
}

func allow() Decision        { return Decision{Allowed: true} }
func deny(r Reason) Decision { return Decision{Reason: r} }

// Resource identifies what an action targets. WebsiteID is required for
// website-scoped actions.
type Resource struct {
	WebsiteID uuid.UUID
}

// Website returns a resource for a single website.
func Website(id uuid.UUID) Resource {
	return Resource{WebsiteID: id}
}

// Policy is the single access policy evaluator.
type Policy struct {
	enforcer *casbin.SyncedEnforcer
	grants   GrantLookup
}

// NewPolicy builds the role model and wires the grant lookup.
func NewPolicy(grants GrantLookup) (*Policy, error) {
	m, err := model.NewModelFromString(casbinModelContent)
	if err != nil {
		return nil, fmt.Errorf("parse casbin model: %w", err)
	}

	enforcer, err := casbin.NewSyncedEnforcer(m)
	if err != nil {
		return nil, fmt.Errorf("create casbin enforcer: %w", err)
	}

	for role, actions := range rolePolicies {
		for _, a := range actions {
			if _, err := enforcer.AddPolicy(role, string(a)); err != nil {
				return nil, fmt.Errorf("add policy %s %s: %w", role, a, err)
			}
		}
	}
	for _, pair := range roleHierarchy {
		if _, err := enforcer.AddGroupingPolicy(pair[0], pair[1]); err != nil {
			return nil, fmt.Errorf("add role %s -> %s: %w", pair[0], pair[1], err)
		}
	}

	return &Policy{enforcer: enforcer, grants: grants}, nil
}

// HasRole reports whether identity's role ranks at or above required.
// A nil identity or an unknown role never passes.
func HasRole(identity *models.Identity, required models.Role) bool {
	if identity == nil || !identity.Role.IsValid() || !required.IsValid() {
		return false
	}
	return identity.Role.Rank() >= required.Rank()
}

// CanAccessWebsite reports whether identity may see a website: admins
// always, everyone else only with an explicit grant that allows viewing.
func (p *Policy) CanAccessWebsite(ctx context.Context, identity *models.Identity, websiteID uuid.UUID) (bool, error) {
	if !HasRole(identity, models.RoleViewer) {
		return false, nil
	}
	if identity.Role == models.RoleAdmin {
		return true, nil
	}
	grant, err := p.grant(ctx, identity, websiteID)
	if err != nil {
		return false, err
	}
	return grant != nil && grant.CanView, nil
}

func (p *Policy) grant(ctx context.Context, identity *models.Identity, websiteID uuid.UUID) (*models.WebsiteAccess, error) {
	grant, err := p.grants.Get(ctx, identity.UserID, websiteID)
	if err != nil {
		return nil, apierrors.NewStorageError("get website grant", err)
	}
	return grant, nil
}

// Authorize decides whether identity may perform action on resource.
// Errors are storage failures; a denial is a Decision, not an error.
func (p *Policy) Authorize(ctx context.Context, identity *models.Identity, action Action, resource Resource) (Decision, error) {
	if identity == nil {
		return deny(ReasonUnauthenticated), nil
	}
	if !HasRole(identity, models.RoleViewer) {
		return deny(ReasonRole), nil
	}

	ok, err := p.enforcer.Enforce(string(identity.Role), string(action))
	if err != nil {
		return Decision{}, fmt.Errorf("enforce %s: %w", action, err)
	}
	if !ok {
		return deny(ReasonRole), nil
	}

	if !action.IsWebsiteScoped() || identity.Role == models.RoleAdmin {
		return allow(), nil
	}
	if resource.WebsiteID == uuid.Nil {
		return deny(ReasonNoResource), nil
	}

	if action != WebsiteEdit {
		visible, err := p.CanAccessWebsite(ctx, identity, resource.WebsiteID)
		if err != nil {
			return Decision{}, err
		}
		if !visible {
			return deny(ReasonNoGrant), nil
		}
		return allow(), nil
	}

	grant, err := p.grant(ctx, identity, resource.WebsiteID)
	if err != nil {
		return Decision{}, err
	}
	switch {
	case grant == nil:
		return deny(ReasonNoGrant), nil
	case !grant.CanEdit:
		return deny(ReasonReadOnly), nil
	}
	return allow(), nil
}
