package access

// Filter answers visibility questions against a role hierarchy. It is
// pure: no I/O, no state beyond the hierarchy, and it never errors —
// anything it cannot prove visible is hidden.
type Filter struct {
	hierarchy Hierarchy
}

// NewFilter creates a filter over the given hierarchy. A nil hierarchy
// falls back to the default one.
func NewFilter(h Hierarchy) *Filter {
	if h == nil {
		h = DefaultHierarchy()
	}
	return &Filter{hierarchy: h}
}

// Effective expands the caller's declared roles into their full implied
// role set.
func (f *Filter) Effective(roles []Role) RoleSet {
	return f.hierarchy.Effective(roles)
}

// Visible reports whether a chunk tagged with required is readable by a
// caller holding the effective role set: visible iff the two sets
// intersect. Empty required or empty effective both deny.
func (f *Filter) Visible(required []Role, effective RoleSet) bool {
	return effective.Intersects(required)
}
