package authz

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// maxInheritanceDepth bounds role inheritance chains.
const maxInheritanceDepth = 10

// PermTenantManage marks a role as tenant-admin equivalent.
const PermTenantManage = "tenant.manage"

// RoleDefinition is one role entry in the roles file. Permissions are
// dotted scopes with trailing-wildcard support ("horses.*").
type RoleDefinition struct {
	Permissions []string `yaml:"permissions"`
	Inherits    []string `yaml:"inherits"`
}

// Roles holds the flattened role set. Immutable after construction, so
// safe for concurrent use.
type Roles struct {
	permissions map[string][]string
	ancestors   map[string]map[string]bool
}

// LoadRolesFile reads role definitions from a YAML file keyed by role name.
func LoadRolesFile(path string) (*Roles, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read roles file: %w", err)
	}
	var defs map[string]RoleDefinition
	if err := yaml.Unmarshal(data, &defs); err != nil {
		return nil, fmt.Errorf("failed to parse roles file: %w", err)
	}
	return NewRoles(defs)
}

// NewRoles flattens the definitions, resolving inheritance up front so
// runtime checks are map lookups.
func NewRoles(defs map[string]RoleDefinition) (*Roles, error) {
	if defs == nil {
		defs = make(map[string]RoleDefinition)
	}

	permissions := make(map[string][]string, len(defs))
	ancestors := make(map[string]map[string]bool, len(defs))
	for name := range defs {
		perms, anc, err := flatten(name, defs, nil, 0)
		if err != nil {
			return nil, err
		}
		permissions[name] = perms
		ancestors[name] = anc
	}
	return &Roles{permissions: permissions, ancestors: ancestors}, nil
}

// Verify returns ErrInvalidRole when the role is not defined.
func (r *Roles) Verify(role string) error {
	if _, ok := r.permissions[role]; !ok {
		return ErrInvalidRole
	}
	return nil
}

// Can reports whether the role grants the permission, directly or
// through inheritance.
func (r *Roles) Can(role, permission string) bool {
	perms, ok := r.permissions[role]
	if !ok {
		return false
	}
	for _, p := range perms {
		if matchScope(p, permission) {
			return true
		}
	}
	return false
}

// Satisfies reports whether role is, or inherits from, required.
func (r *Roles) Satisfies(role, required string) bool {
	if role == required {
		_, ok := r.permissions[role]
		return ok
	}
	return r.ancestors[role][required]
}

// IsTenantAdmin reports whether the role carries tenant management rights.
func (r *Roles) IsTenantAdmin(role string) bool {
	return r.Can(role, PermTenantManage)
}

func flatten(name string, defs map[string]RoleDefinition, path []string, depth int) ([]string, map[string]bool, error) {
	if depth > maxInheritanceDepth {
		return nil, nil, errors.Join(ErrCircularInheritance,
			fmt.Errorf("inheritance deeper than %d at role %q", maxInheritanceDepth, name))
	}
	for _, seen := range path {
		if seen == name {
			return nil, nil, errors.Join(ErrCircularInheritance,
				fmt.Errorf("cycle through role %q", name))
		}
	}

	def, ok := defs[name]
	if !ok {
		return nil, nil, errors.Join(ErrInvalidRole, fmt.Errorf("unknown role %q", name))
	}

	perms := append([]string(nil), def.Permissions...)
	ancestors := make(map[string]bool)
	for _, parent := range def.Inherits {
		parentPerms, parentAnc, err := flatten(parent, defs, append(path, name), depth+1)
		if err != nil {
			return nil, nil, err
		}
		perms = append(perms, parentPerms...)
		ancestors[parent] = true
		for a := range parentAnc {
			ancestors[a] = true
		}
	}
	return perms, ancestors, nil
}

// matchScope checks a granted scope against a requested permission.
// "*" grants everything; "horses.*" grants anything under "horses.".
func matchScope(granted, requested string) bool {
	if granted == "*" || granted == requested {
		return true
	}
	if prefix, ok := strings.CutSuffix(granted, ".*"); ok {
		return strings.HasPrefix(requested, prefix+".")
	}
	return false
}
