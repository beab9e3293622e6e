package rbac

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"
)

// Module identifies a protectable business area. The set is closed and
// fixed at build time.
type Module string

const (
	ModuleFreight   Module = "freight"
	ModuleCustoms   Module = "customs"
	ModuleWarehouse Module = "warehouse"
	ModuleFinance   Module = "finance"
	ModuleHR        Module = "hr"
	ModuleSettings  Module = "settings"
)

// Modules returns every known module in declaration order.
func Modules() []Module {
	return []Module{ModuleFreight, ModuleCustoms, ModuleWarehouse, ModuleFinance, ModuleHR, ModuleSettings}
}

// Valid reports whether the module belongs to the closed set.
func (m Module) Valid() bool {
	switch m {
	case ModuleFreight, ModuleCustoms, ModuleWarehouse, ModuleFinance, ModuleHR, ModuleSettings:
		return true
	}
	return false
}

// Action identifies an operation category within a module. Closed set.
type Action string

const (
	ActionView    Action = "view"
	ActionCreate  Action = "create"
	ActionEdit    Action = "edit"
	ActionDelete  Action = "delete"
	ActionExport  Action = "export"
	ActionApprove Action = "approve"
)

// Actions returns every known action in declaration order.
func Actions() []Action {
	return []Action{ActionView, ActionCreate, ActionEdit, ActionDelete, ActionExport, ActionApprove}
}

// Valid reports whether the action belongs to the closed set.
func (a Action) Valid() bool {
	switch a {
	case ActionView, ActionCreate, ActionEdit, ActionDelete, ActionExport, ActionApprove:
		return true
	}
	return false
}

// ActionSet is a set of actions. Duplicates are impossible by
// representation; ordering is irrelevant.
type ActionSet map[Action]struct{}

// NewActionSet builds a set from the given actions.
func NewActionSet(actions ...Action) ActionSet {
	set := make(ActionSet, len(actions))
	for _, a := range actions {
		set[a] = struct{}{}
	}
	return set
}

// Has reports membership.
func (s ActionSet) Has(a Action) bool {
	_, ok := s[a]
	return ok
}

// Clone returns an independent copy.
func (s ActionSet) Clone() ActionSet {
	if s == nil {
		return nil
	}
	out := make(ActionSet, len(s))
	for a := range s {
		out[a] = struct{}{}
	}
	return out
}

// MarshalJSON encodes the set as a sorted array for stable storage.
func (s ActionSet) MarshalJSON() ([]byte, error) {
	actions := make([]string, 0, len(s))
	for a := range s {
		actions = append(actions, string(a))
	}
	sort.Strings(actions)
	return json.Marshal(actions)
}

// UnmarshalJSON decodes an array of action names, rejecting unknown values.
func (s *ActionSet) UnmarshalJSON(data []byte) error {
	var actions []string
	if err := json.Unmarshal(data, &actions); err != nil {
		return err
	}
	set := make(ActionSet, len(actions))
	for _, raw := range actions {
		a := Action(raw)
		if !a.Valid() {
			return fmt.Errorf("rbac: unknown action %q", raw)
		}
		set[a] = struct{}{}
	}
	*s = set
	return nil
}

// Matrix maps modules to their permitted actions. A missing module or an
// empty set grants nothing for that module.
type Matrix map[Module]ActionSet

// Allows reports whether the action is granted for the module.
func (m Matrix) Allows(module Module, action Action) bool {
	return m[module].Has(action)
}

// Grant adds actions for a module.
func (m Matrix) Grant(module Module, actions ...Action) {
	set, ok := m[module]
	if !ok {
		set = make(ActionSet, len(actions))
		m[module] = set
	}
	for _, a := range actions {
		set[a] = struct{}{}
	}
}

// Clone returns a deep copy. Callers handing a matrix to the registry never
// share action sets with stored roles.
func (m Matrix) Clone() Matrix {
	if m == nil {
		return nil
	}
	out := make(Matrix, len(m))
	for module, set := range m {
		out[module] = set.Clone()
	}
	return out
}

// FullMatrix grants every action on every module. Equivalent to ticking
// "select all" for each module; no separate flag exists.
func FullMatrix() Matrix {
	m := make(Matrix, len(Modules()))
	for _, module := range Modules() {
		m.Grant(module, Actions()...)
	}
	return m
}

// Validate rejects matrices containing modules or actions outside the
// closed enumerations.
func (m Matrix) Validate() error {
	for module, set := range m {
		if !module.Valid() {
			return fmt.Errorf("rbac: unknown module %q", module)
		}
		for a := range set {
			if !a.Valid() {
				return fmt.Errorf("rbac: unknown action %q for module %q", a, module)
			}
		}
	}
	return nil
}

// Role is a named permission grouping. System roles are built in and can
// be edited but never deleted.
type Role struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Matrix      Matrix    `json:"matrix"`
	IsSystem    bool      `json:"is_system"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
