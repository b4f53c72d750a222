package routegate

// DefaultRules is the service's static route classification. Everything
// auth-adjacent is public so a logged-out user can always reach the pages
// and endpoints that would grant a credential.
func DefaultRules(gatewayPrefix string) []Rule {
	return []Rule{
		{Prefix: "/", Class: Public},
		{Prefix: "/login", Class: Public},
		{Prefix: "/pricing", Class: Public},
		{Prefix: "/about", Class: Public},
		{Prefix: "/auth", Class: Public},
		{Prefix: "/healthz", Class: Public},
		{Prefix: "/static", Class: Public},
		{Prefix: "/playground", Class: Protected},
		{Prefix: "/api", Class: Protected},
		{Prefix: gatewayPrefix, Class: Protected},
	}
}
