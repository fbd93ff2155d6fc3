// Package service provides business logic implementations.
package service

import (
	"errors"
	"fmt"
	"strings"

	"github.com/mitchellh/mapstructure"

	"github.com/oakleydye/oakley-metrics/internal/models"
)

// IdentityClaims is a provider assertion reduced to what the resolver needs.
// A nil Role means the provider supplied no role claim.
type IdentityClaims struct {
	ExternalID string
	Email      string
	Name       string
	Role       *models.Role
}

// userInfoClaims is the standard part of a userinfo response.
type userInfoClaims struct {
	Subject  string         `mapstructure:"sub"`
	Email    string         `mapstructure:"email"`
	Name     string         `mapstructure:"name"`
	Nickname string         `mapstructure:"nickname"`
	Extra    map[string]any `mapstructure:",remain"`
}

// ClaimsFromUserInfo decodes a userinfo claim set and extracts the role
// from the first present path in rolePaths.
func ClaimsFromUserInfo(raw map[string]any, rolePaths []string) (*IdentityClaims, error) {
	var info userInfoClaims
	if err := mapstructure.Decode(raw, &info); err != nil {
		return nil, fmt.Errorf("decode userinfo claims: %w", err)
	}
	if info.Subject == "" {
		return nil, errors.New("userinfo has no subject")
	}

	name := info.Name
	if name == "" {
		name = info.Nickname
	}

	return &IdentityClaims{
		ExternalID: info.Subject,
		Email:      models.NormalizeEmail(info.Email),
		Name:       name,
		Role:       RoleFromClaims(raw, rolePaths),
	}, nil
}

// RoleFromClaims maps the first present role claim onto an application
// role. A list containing ADMIN yields ADMIN; any other list yields CLIENT.
// It returns nil when none of the paths is present.
func RoleFromClaims(claims map[string]any, paths []string) *models.Role {
	for _, path := range paths {
		value, ok := lookupClaim(claims, path)
		if !ok {
			continue
		}
		roles, ok := decodeRoles(value)
		if !ok {
			continue
		}

		role := models.RoleClient
		for _, r := range roles {
			if parsed, _ := models.ParseRole(r); parsed == models.RoleAdmin {
				role = models.RoleAdmin
				break
			}
		}
		return &role
	}
	return nil
}

// lookupClaim finds path as a literal key first, then as a dot-separated
// path through nested objects. Namespaced claims such as
// https://auth.oakleydye.com/roles contain dots and only match literally.
func lookupClaim(claims map[string]any, path string) (any, bool) {
	if v, ok := claims[path]; ok && v != nil {
		return v, true
	}

	parts := strings.Split(path, ".")
	if len(parts) < 2 {
		return nil, false
	}
	var cur any = claims
	for _, p := range parts {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		if cur, ok = m[p]; !ok || cur == nil {
			return nil, false
		}
	}
	return cur, true
}

// decodeRoles accepts a list of strings or a single string.
func decodeRoles(value any) ([]string, bool) {
	var roles []string
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           &roles,
	})
	if err != nil {
		return nil, false
	}
	if err := dec.Decode(value); err != nil {
		return nil, false
	}
	return roles, true
}
