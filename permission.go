package access

// ============================================================================
// ROLE / CRUD PERMISSION RESOLVER
// ============================================================================

// CheckPermission resolves whether the context's roles allow a CRUD action on
// a document type. Allowance is the union across roles, the granted scope is
// the widest any allowing role carries, and permission conditions merge in
// role order with later roles overwriting shared keys. When the context
// targets a concrete document the resolved scope is then checked against the
// document's ownership chain.
func (s *Service) CheckPermission(ctx *AccessContext, docType string, action CrudAction) PermissionDecision {
	if ctx == nil {
		return PermissionDecision{Scope: ScopeOwn}
	}
	if d, ok := s.decisionFromCache(ctx, docType, action); ok {
		s.auditDecision(ctx, docType, action, d)
		return d
	}
	d := s.resolvePermission(ctx, docType, action)
	if d.Allowed && ctx.Document != nil && !scopeAllows(d.Scope, &ctx.User, ctx.Document) {
		d.Allowed = false
	}
	s.decisionToCache(ctx, docType, action, d)
	s.auditDecision(ctx, docType, action, d)
	return d
}

func (s *Service) resolvePermission(ctx *AccessContext, docType string, action CrudAction) PermissionDecision {
	snap := s.snapshot()
	d := PermissionDecision{Scope: ScopeOwn}
	for _, roleID := range ctx.User.Roles {
		role, ok := snap.roles[roleID]
		if !ok {
			continue
		}
		for i := range role.Permissions[docType] {
			perm := &role.Permissions[docType][i]
			if perm.Action != action || !perm.Allowed {
				continue
			}
			scope := permissionScope(perm, role)
			if !d.Allowed || scope.Wider(d.Scope) {
				d.Scope = scope
			}
			d.Allowed = true
			if len(perm.Conditions) > 0 {
				if d.Conditions == nil {
					d.Conditions = make(map[string]any, len(perm.Conditions))
				}
				for k, v := range perm.Conditions {
					d.Conditions[k] = v
				}
			}
		}
	}
	if !d.Allowed {
		d.Scope = ScopeOwn
	}
	return d
}

// permissionScope picks the scope a permission entry grants: its own scope,
// the role's default, or own.
func permissionScope(p *Permission, role *UserRole) DataScope {
	if p.Scope != "" {
		return p.Scope
	}
	if role.DefaultScope != "" {
		return role.DefaultScope
	}
	return ScopeOwn
}

// GetDataScope returns the record scope the context's roles grant for an
// action, own when no role grants it at all.
func (s *Service) GetDataScope(ctx *AccessContext, docType string, action CrudAction) DataScope {
	if ctx == nil {
		return ScopeOwn
	}
	return s.resolvePermission(ctx, docType, action).Scope
}

// scopeAllows checks a concrete document against the granted scope. Every
// scope contains ownership: a user always reaches their own records, and each
// wider scope adds a match dimension on top of the narrower ones. Empty
// fields never match, so a document without a team can only be reached
// through ownership or a department/all grant.
func scopeAllows(scope DataScope, u *User, doc *Document) bool {
	owns := doc.Owner != "" && doc.Owner == u.ID
	switch scope {
	case ScopeAll:
		return true
	case ScopeDepartment:
		if u.Department != "" && u.Department == doc.Department {
			return true
		}
		fallthrough
	case ScopeTeam:
		if u.Team != "" && u.Team == doc.Team {
			return true
		}
		fallthrough
	case ScopeOwn:
		return owns
	default:
		// Unknown scopes collapse to own.
		return owns
	}
}
