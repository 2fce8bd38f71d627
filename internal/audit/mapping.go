package audit

import "strings"

// ActionResource holds action and resource derived from a gRPC full method name.
type ActionResource struct {
	Action   string
	Resource string
}

// Session service methods with dedicated audit actions.
const (
	sessionRevokeSession = "/pawplanner.session.v1.SessionService/RevokeSession"
	sessionSignOut       = "/pawplanner.session.v1.SessionService/SignOut"
)

// ParseFullMethod returns action and resource for a gRPC full method (e.g. /pawplanner.session.v1.SessionService/ListSessions).
// Action is a verb: get, list, create, update, delete, revoke, or a lowercase method name for others.
// Resource is derived from the service name (e.g. SessionService -> session).
// RevokeSession and SignOut map to the same actions the RPC handlers write.
func ParseFullMethod(fullMethod string) ActionResource {
	switch fullMethod {
	case sessionRevokeSession:
		return ActionResource{Action: ActionSessionRevoked, Resource: ResourceSession}
	case sessionSignOut:
		return ActionResource{Action: ActionLogout, Resource: ResourceSession}
	}
	// fullMethod format: /pawplanner.package.v1.ServiceName/MethodName
	slash := strings.LastIndex(fullMethod, "/")
	if slash < 0 {
		return ActionResource{Action: "unknown", Resource: "unknown"}
	}
	method := fullMethod[slash+1:]
	beforeSlash := fullMethod[:slash]
	dot := strings.LastIndex(beforeSlash, ".")
	if dot < 0 {
		return ActionResource{Action: strings.ToLower(method), Resource: "unknown"}
	}
	return ActionResource{Action: methodToAction(method), Resource: serviceToResource(beforeSlash[dot+1:])}
}

// IsReadOnly reports whether the action only reads state. Read-only calls are not audited.
func (ar ActionResource) IsReadOnly() bool {
	return ar.Action == "get" || ar.Action == "list" || ar.Action == "check" || ar.Action == "watch"
}

func serviceToResource(serviceName string) string {
	s := strings.TrimSuffix(serviceName, "Service")
	if s == "" {
		return "unknown"
	}
	return strings.ToLower(s[0:1]) + s[1:]
}

func methodToAction(method string) string {
	for _, p := range []struct{ prefix, action string }{
		{"Get", "get"},
		{"List", "list"},
		{"Create", "create"},
		{"Update", "update"},
		{"Delete", "delete"},
		{"Revoke", "revoke"},
	} {
		if strings.HasPrefix(method, p.prefix) && method != p.prefix {
			return p.action
		}
	}
	return strings.ToLower(method)
}
