package authz_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rheckart/rescue-ranger/pkg/authz"
)

func TestRolesFlattening(t *testing.T) {
	t.Parallel()

	roles, err := authz.NewRoles(map[string]authz.RoleDefinition{
		"volunteer": {Permissions: []string{"horses.read"}},
		"staff":     {Permissions: []string{"horses.write"}, Inherits: []string{"volunteer"}},
		"manager":   {Permissions: []string{"tenant.manage"}, Inherits: []string{"staff"}},
		"admin":     {Permissions: []string{"*"}, Inherits: []string{"manager"}},
	})
	require.NoError(t, err)

	t.Run("inherited permissions resolve transitively", func(t *testing.T) {
		t.Parallel()
		assert.True(t, roles.Can("manager", "horses.read"))
		assert.True(t, roles.Can("staff", "horses.read"))
		assert.False(t, roles.Can("volunteer", "horses.write"))
	})

	t.Run("satisfies covers self and ancestors", func(t *testing.T) {
		t.Parallel()
		assert.True(t, roles.Satisfies("staff", "staff"))
		assert.True(t, roles.Satisfies("admin", "volunteer"))
		assert.False(t, roles.Satisfies("volunteer", "staff"))
		assert.False(t, roles.Satisfies("ghost", "ghost"), "undefined role satisfies nothing")
	})

	t.Run("tenant admin follows the manage permission", func(t *testing.T) {
		t.Parallel()
		assert.True(t, roles.IsTenantAdmin("manager"))
		assert.True(t, roles.IsTenantAdmin("admin"), "via the global wildcard")
		assert.False(t, roles.IsTenantAdmin("staff"))
	})

	t.Run("verify", func(t *testing.T) {
		t.Parallel()
		require.NoError(t, roles.Verify("staff"))
		require.ErrorIs(t, roles.Verify("ghost"), authz.ErrInvalidRole)
	})
}

func TestRolesWildcards(t *testing.T) {
	t.Parallel()

	roles, err := authz.NewRoles(map[string]authz.RoleDefinition{
		"keeper": {Permissions: []string{"horses.*"}},
		"root":   {Permissions: []string{"*"}},
	})
	require.NoError(t, err)

	assert.True(t, roles.Can("keeper", "horses.read"))
	assert.True(t, roles.Can("keeper", "horses.medical.write"))
	assert.False(t, roles.Can("keeper", "horses"), "bare prefix is not covered")
	assert.False(t, roles.Can("keeper", "horsesx.read"))
	assert.False(t, roles.Can("keeper", "members.read"))

	assert.True(t, roles.Can("root", "anything.at.all"))
}

func TestRolesInheritanceErrors(t *testing.T) {
	t.Parallel()

	t.Run("direct cycle", func(t *testing.T) {
		t.Parallel()
		_, err := authz.NewRoles(map[string]authz.RoleDefinition{
			"a": {Inherits: []string{"b"}},
			"b": {Inherits: []string{"a"}},
		})
		require.ErrorIs(t, err, authz.ErrCircularInheritance)
	})

	t.Run("self cycle", func(t *testing.T) {
		t.Parallel()
		_, err := authz.NewRoles(map[string]authz.RoleDefinition{
			"a": {Inherits: []string{"a"}},
		})
		require.ErrorIs(t, err, authz.ErrCircularInheritance)
	})

	t.Run("unknown parent", func(t *testing.T) {
		t.Parallel()
		_, err := authz.NewRoles(map[string]authz.RoleDefinition{
			"a": {Inherits: []string{"missing"}},
		})
		require.ErrorIs(t, err, authz.ErrInvalidRole)
	})
}

func TestLoadRolesFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "roles.yaml")
	content := `
volunteer:
  permissions:
    - horses.read
staff:
  permissions:
    - horses.write
  inherits:
    - volunteer
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	roles, err := authz.LoadRolesFile(path)
	require.NoError(t, err)
	assert.True(t, roles.Can("staff", "horses.read"))

	_, err = authz.LoadRolesFile(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}
