package auth

import (
	"encoding/json"
	"testing"

	"github.com/waconsole/waconsole/internal/models"
)

func groupOf(gt models.GroupType, overrides string) *models.UserGroup {
	g := &models.UserGroup{GroupType: gt}
	if overrides != "" {
		g.Overrides = json.RawMessage(overrides)
	}
	return g
}

func TestDefaultCapabilities(t *testing.T) {
	cases := []struct {
		gt   models.GroupType
		cap  Capability
		want bool
	}{
		{models.GroupTypeAdmin, CapUsersCreate, true},
		{models.GroupTypeAdmin, CapUsersDelete, true},
		{models.GroupTypeAdmin, CapGroupsManage, true},
		{models.GroupTypeAdmin, CapDevicesLink, true},
		{models.GroupTypeAdmin, CapMessagesSend, true},
		{models.GroupTypeAdmin, CapLogsView, true},
		{models.GroupTypeOperator, CapDevicesLink, true},
		{models.GroupTypeOperator, CapMessagesSend, true},
		{models.GroupTypeOperator, CapLogsView, true},
		{models.GroupTypeOperator, CapUsersCreate, false},
		{models.GroupTypeOperator, CapUsersDelete, false},
		{models.GroupTypeOperator, CapGroupsManage, false},
		{models.GroupTypeViewer, CapLogsView, true},
		{models.GroupTypeViewer, CapMessagesSend, false},
		{models.GroupTypeViewer, CapDevicesLink, false},
	}
	for _, tc := range cases {
		if got := HasCapability(groupOf(tc.gt, ""), tc.cap); got != tc.want {
			t.Errorf("HasCapability(%s, %s) = %v, want %v", tc.gt, tc.cap, got, tc.want)
		}
	}
}

func TestOverridesTakePrecedence(t *testing.T) {
	// Grant beyond the default.
	viewer := groupOf(models.GroupTypeViewer, `{"messages:send": true}`)
	if !HasCapability(viewer, CapMessagesSend) {
		t.Error("override grant ignored")
	}

	// Revoke a default.
	admin := groupOf(models.GroupTypeAdmin, `{"users:delete": false}`)
	if HasCapability(admin, CapUsersDelete) {
		t.Error("override revoke ignored")
	}

	// Capabilities the override does not name fall back to defaults.
	if !HasCapability(admin, CapUsersCreate) {
		t.Error("unnamed capability lost its default")
	}
}

func TestMalformedOverridesFallBack(t *testing.T) {
	g := groupOf(models.GroupTypeOperator, `{"broken`)
	if !HasCapability(g, CapMessagesSend) {
		t.Error("malformed overrides should fall back to defaults")
	}
	if HasCapability(g, CapUsersCreate) {
		t.Error("malformed overrides must not grant anything")
	}
}

func TestNilGroupDenied(t *testing.T) {
	if HasCapability(nil, CapLogsView) {
		t.Error("nil group granted a capability")
	}
}

func TestUnknownGroupTypeDenied(t *testing.T) {
	g := groupOf(models.GroupType("superuser"), "")
	if HasCapability(g, CapLogsView) {
		t.Error("unknown group type granted a capability")
	}
}
