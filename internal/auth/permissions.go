package auth

import (
	"encoding/json"
	"net/http"

	"github.com/waconsole/waconsole/internal/models"
	"github.com/waconsole/waconsole/internal/tenant"
)

type Capability string

const (
	CapUsersCreate  Capability = "users:create"
	CapUsersDelete  Capability = "users:delete"
	CapGroupsManage Capability = "groups:manage"
	CapDevicesLink  Capability = "devices:link"
	CapMessagesSend Capability = "messages:send"
	CapLogsView     Capability = "logs:view"
)

// defaultCapabilities is the static per-group-type capability table.
// A group's override map takes precedence for any capability it names.
var defaultCapabilities = map[models.GroupType]map[Capability]bool{
	models.GroupTypeAdmin: {
		CapUsersCreate:  true,
		CapUsersDelete:  true,
		CapGroupsManage: true,
		CapDevicesLink:  true,
		CapMessagesSend: true,
		CapLogsView:     true,
	},
	models.GroupTypeOperator: {
		CapDevicesLink:  true,
		CapMessagesSend: true,
		CapLogsView:     true,
	},
	models.GroupTypeViewer: {
		CapLogsView: true,
	},
}

// HasCapability resolves a capability for a group: override first, then
// the static default for the group type. Absent anywhere means denied.
func HasCapability(group *models.UserGroup, cap Capability) bool {
	if group == nil {
		return false
	}
	if len(group.Overrides) > 0 {
		var overrides map[string]bool
		if err := json.Unmarshal(group.Overrides, &overrides); err == nil {
			if v, ok := overrides[string(cap)]; ok {
				return v
			}
		}
	}
	return defaultCapabilities[group.GroupType][cap]
}

func RequireCapability(cap Capability) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			group := tenant.GroupFromContext(r.Context())
			if group == nil {
				writeError(w, http.StatusForbidden, "no group in context")
				return
			}
			if !HasCapability(group, cap) {
				writeError(w, http.StatusForbidden, "insufficient permissions")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
