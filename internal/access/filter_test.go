package access

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFilterVisible(t *testing.T) {
	f := NewFilter(nil)

	open := []Role{RoleStaff, RoleLegal, RoleAdmin}
	restricted := []Role{RoleLegal, RoleAdmin}

	tests := []struct {
		name     string
		required []Role
		roles    []Role
		want     bool
	}{
		{"staff sees open chunk", open, []Role{RoleStaff}, true},
		{"staff denied restricted chunk", restricted, []Role{RoleStaff}, false},
		{"legal sees restricted chunk", restricted, []Role{RoleLegal}, true},
		{"admin sees restricted chunk", restricted, []Role{RoleAdmin}, true},
		{"empty roles see nothing", open, nil, false},
		{"unknown role sees nothing", open, []Role{"intern"}, false},
		{"empty required denies everyone", nil, []Role{RoleAdmin}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			eff := f.Effective(tt.roles)
			assert.Equal(t, tt.want, f.Visible(tt.required, eff))
		})
	}
}

func TestFilterVisibleEveryRoleCombination(t *testing.T) {
	// Visibility must be decided purely by set intersection for every
	// subset of declared roles.
	f := NewFilter(nil)
	restricted := []Role{RoleLegal, RoleAdmin}

	combos := [][]Role{
		{}, {RoleStaff}, {RoleLegal}, {RoleAdmin},
		{RoleStaff, RoleLegal}, {RoleStaff, RoleAdmin},
		{RoleLegal, RoleAdmin}, {RoleStaff, RoleLegal, RoleAdmin},
	}

	for _, roles := range combos {
		eff := f.Effective(roles)
		want := eff.Contains(RoleLegal) || eff.Contains(RoleAdmin)
		assert.Equal(t, want, f.Visible(restricted, eff), "roles %v", roles)
	}
}
