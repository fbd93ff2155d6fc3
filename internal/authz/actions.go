package authz

// Action names an operation checked by the policy.
type Action string

// Website-scoped actions. Non-admins also need a grant on the website.
const (
	WebsiteView Action = "website:view"
	WebsiteEdit Action = "website:edit"
	MetricsView Action = "metrics:view"
)

// Admin actions.
const (
	OrganizationCreate Action = "organization:create"
	OrganizationList   Action = "organization:list"
	WebsiteCreate      Action = "website:create"
	WebsiteList        Action = "website:list"
	ClientCreate       Action = "client:create"
	ClientList         Action = "client:list"
	AccessGrant        Action = "access:grant"
	AccessRevoke       Action = "access:revoke"
)

// IsWebsiteScoped reports whether a checks a per-website grant.
func (a Action) IsWebsiteScoped() bool {
	switch a {
	case WebsiteView, WebsiteEdit, MetricsView:
		return true
	}
	return false
}

// rolePolicies lists the actions each role holds directly. Inherited
// actions come from the role hierarchy.
var rolePolicies = map[string][]Action{
	"VIEWER": {WebsiteView, MetricsView},
	"CLIENT": {WebsiteEdit},
	"ADMIN": {
		OrganizationCreate, OrganizationList,
		WebsiteCreate, WebsiteList,
		ClientCreate, ClientList,
		AccessGrant, AccessRevoke,
	},
}

// roleHierarchy lists (member, inherited role) pairs.
var roleHierarchy = [][2]string{
	{"ADMIN", "CLIENT"},
	{"CLIENT", "VIEWER"},
}
