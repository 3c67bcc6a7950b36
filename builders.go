package access

// Builders provide a fluent API for creating plans, roles and field policies

// PlanBuilder builds a SubscriptionPlan
type PlanBuilder struct {
	p *SubscriptionPlan
}

func NewPlanBuilder() *PlanBuilder {
	return &PlanBuilder{p: &SubscriptionPlan{Modules: []string{}, Features: []string{}}}
}

func (b *PlanBuilder) ID(id string) *PlanBuilder       { b.p.ID = id; return b }
func (b *PlanBuilder) Name(n string) *PlanBuilder      { b.p.Name = n; return b }
func (b *PlanBuilder) Tier(t PlanTier) *PlanBuilder    { b.p.Tier = t; return b }
func (b *PlanBuilder) Modules(m ...string) *PlanBuilder {
	b.p.Modules = append(b.p.Modules, m...)
	return b
}
func (b *PlanBuilder) Features(f ...string) *PlanBuilder {
	b.p.Features = append(b.p.Features, f...)
	return b
}
func (b *PlanBuilder) Limit(resource string, ceiling int64) *PlanBuilder {
	if b.p.Limits == nil {
		b.p.Limits = map[string]int64{}
	}
	b.p.Limits[resource] = ceiling
	return b
}
func (b *PlanBuilder) Build() *SubscriptionPlan { return b.p }

// RoleBuilder builds a UserRole
type RoleBuilder struct {
	r *UserRole
}

func NewRoleBuilder() *RoleBuilder {
	return &RoleBuilder{r: &UserRole{Permissions: map[string][]Permission{}}}
}

func (b *RoleBuilder) ID(id string) *RoleBuilder                  { b.r.ID = id; return b }
func (b *RoleBuilder) Name(n string) *RoleBuilder                 { b.r.Name = n; return b }
func (b *RoleBuilder) Level(l int) *RoleBuilder                   { b.r.Level = l; return b }
func (b *RoleBuilder) DefaultScope(s DataScope) *RoleBuilder      { b.r.DefaultScope = s; return b }
func (b *RoleBuilder) Grant(docType string, action CrudAction) *RoleBuilder {
	return b.permission(docType, Permission{Action: action, Allowed: true})
}
func (b *RoleBuilder) GrantScoped(docType string, action CrudAction, scope DataScope) *RoleBuilder {
	return b.permission(docType, Permission{Action: action, Allowed: true, Scope: scope})
}
func (b *RoleBuilder) GrantConditional(docType string, action CrudAction, scope DataScope, conditions map[string]any) *RoleBuilder {
	return b.permission(docType, Permission{Action: action, Allowed: true, Scope: scope, Conditions: conditions})
}
func (b *RoleBuilder) permission(docType string, p Permission) *RoleBuilder {
	b.r.Permissions[docType] = append(b.r.Permissions[docType], p)
	return b
}
func (b *RoleBuilder) Build() *UserRole { return b.r }

// PolicyBuilder builds an ABACPolicy
type PolicyBuilder struct {
	p *ABACPolicy
}

func NewPolicyBuilder() *PolicyBuilder {
	return &PolicyBuilder{p: &ABACPolicy{Conditions: []*ABACCondition{}}}
}

func (b *PolicyBuilder) ID(id string) *PolicyBuilder            { b.p.ID = id; return b }
func (b *PolicyBuilder) Name(n string) *PolicyBuilder           { b.p.Name = n; return b }
func (b *PolicyBuilder) DocType(dt string) *PolicyBuilder       { b.p.DocType = dt; return b }
func (b *PolicyBuilder) Field(f string) *PolicyBuilder          { b.p.Field = f; return b }
func (b *PolicyBuilder) Access(a FieldOutcome) *PolicyBuilder   { b.p.Access = a; return b }
func (b *PolicyBuilder) Priority(pr int) *PolicyBuilder         { b.p.Priority = pr; return b }
func (b *PolicyBuilder) Active(active bool) *PolicyBuilder      { b.p.Active = &active; return b }
func (b *PolicyBuilder) Effective(start, end string) *PolicyBuilder {
	b.p.Effective = &DateWindow{Start: start, End: end}
	return b
}

// Where adds one top-level condition; top-level conditions are ANDed.
func (b *PolicyBuilder) Where(attribute string, op Operator, value any) *PolicyBuilder {
	b.p.Conditions = append(b.p.Conditions, &ABACCondition{Attribute: attribute, Operator: op, Value: value})
	return b
}

// WhereCond adds a pre-built condition tree, e.g. from ParseCondition or
// AnyOf/AllOf.
func (b *PolicyBuilder) WhereCond(c *ABACCondition) *PolicyBuilder {
	b.p.Conditions = append(b.p.Conditions, c)
	return b
}

func (b *PolicyBuilder) Build() *ABACPolicy { return b.p }

// AnyOf groups conditions under OR logic.
func AnyOf(conds ...*ABACCondition) *ABACCondition {
	return &ABACCondition{Logic: "or", Conditions: conds}
}

// AllOf groups conditions under AND logic.
func AllOf(conds ...*ABACCondition) *ABACCondition {
	return &ABACCondition{Logic: "and", Conditions: conds}
}

// Cond builds a single comparison node.
func Cond(attribute string, op Operator, value any) *ABACCondition {
	return &ABACCondition{Attribute: attribute, Operator: op, Value: value}
}
