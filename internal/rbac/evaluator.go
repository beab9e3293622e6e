package rbac

// CanPerform decides whether a role grants the given action on the given
// module. A nil role (no session, or a dangling role reference) grants
// nothing. Deterministic and total; never panics.
func CanPerform(role *Role, module Module, action Action) bool {
	if role == nil {
		return false
	}
	return role.Matrix.Allows(module, action)
}
