package auth

import (
	"net/http"
	"strings"
)

const (
	RoleViewer = "viewer"
	RoleEditor = "editor"
	RoleAdmin  = "admin"
)

func roleRank(role string) int {
	switch strings.ToLower(strings.TrimSpace(role)) {
	case RoleViewer:
		return 1
	case RoleEditor:
		return 2
	case RoleAdmin:
		return 3
	default:
		return 0
	}
}

// RequiredRoleForRequest maps read methods to viewer and mutations to editor.
func RequiredRoleForRequest(r *http.Request) string {
	switch r.Method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return RoleViewer
	default:
		return RoleEditor
	}
}

func HasAtLeast(roles []string, required string) bool {
	need := roleRank(required)
	if need == 0 {
		return false
	}
	for _, role := range roles {
		if roleRank(role) >= need {
			return true
		}
	}
	return false
}
