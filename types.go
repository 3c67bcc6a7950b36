package access

import (
	"strings"
	"time"
)

// ============================================================================
// DOMAIN OBJECTS
// ============================================================================

// CrudAction identifies one of the four document-level operations the
// permission layer governs.
type CrudAction string

const (
	ActionCreate CrudAction = "create"
	ActionRead   CrudAction = "read"
	ActionUpdate CrudAction = "update"
	ActionDelete CrudAction = "delete"
)

// actionAliases maps caller-supplied action names onto CRUD actions. Names
// outside this table are treated as non-CRUD and pass through filtering.
var actionAliases = map[string]CrudAction{
	"create": ActionCreate,
	"read":   ActionRead,
	"view":   ActionRead,
	"edit":   ActionUpdate,
	"update": ActionUpdate,
	"delete": ActionDelete,
	"remove": ActionDelete,
}

// NormalizeAction resolves an action name (case-insensitive) to a CrudAction.
// The second return is false for non-CRUD action names.
func NormalizeAction(name string) (CrudAction, bool) {
	a, ok := actionAliases[strings.ToLower(name)]
	return a, ok
}

// DataScope is the breadth of records a permission applies to.
type DataScope string

const (
	ScopeOwn        DataScope = "own"
	ScopeTeam       DataScope = "team"
	ScopeDepartment DataScope = "department"
	ScopeAll        DataScope = "all"
)

// Level returns the numeric breadth of a scope. Unknown scopes collapse to
// the narrowest level so that bad input can never widen access.
func (s DataScope) Level() int {
	switch s {
	case ScopeTeam:
		return 2
	case ScopeDepartment:
		return 3
	case ScopeAll:
		return 4
	default:
		return 1
	}
}

// Wider reports whether s grants strictly broader record access than o.
func (s DataScope) Wider(o DataScope) bool { return s.Level() > o.Level() }

// PlanTier orders subscription plans from free to enterprise.
type PlanTier string

const (
	TierFree         PlanTier = "free"
	TierStarter      PlanTier = "starter"
	TierProfessional PlanTier = "professional"
	TierEnterprise   PlanTier = "enterprise"
)

// Level returns the tier ordinal; unknown tiers rank below free.
func (t PlanTier) Level() int {
	switch t {
	case TierFree:
		return 1
	case TierStarter:
		return 2
	case TierProfessional:
		return 3
	case TierEnterprise:
		return 4
	default:
		return 0
	}
}

// Permission grants (or withholds) one CRUD action on a document type.
type Permission struct {
	Action     CrudAction     `json:"action" yaml:"action"`
	Allowed    bool           `json:"allowed" yaml:"allowed"`
	Scope      DataScope      `json:"scope,omitempty" yaml:"scope,omitempty"`
	Conditions map[string]any `json:"conditions,omitempty" yaml:"conditions,omitempty"`
	Priority   int            `json:"priority,omitempty" yaml:"priority,omitempty"`
}

// UserRole is a named bundle of permissions keyed by document type.
type UserRole struct {
	ID          string `json:"id" yaml:"id"`
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	// Level is hierarchy metadata for admin tooling; it does not affect
	// evaluation.
	Level int `json:"level,omitempty" yaml:"level,omitempty"`
	// DefaultScope applies when a permission entry omits its own scope.
	DefaultScope DataScope               `json:"default_scope,omitempty" yaml:"default_scope,omitempty"`
	Permissions  map[string][]Permission `json:"permissions" yaml:"permissions"`
	CreatedAt    time.Time               `json:"created_at,omitempty" yaml:"created_at,omitempty"`
}

// SubscriptionPlan describes what a subscription tier unlocks. Plans are
// immutable once loaded; a reload replaces them wholesale.
type SubscriptionPlan struct {
	ID       string   `json:"id" yaml:"id"`
	Name     string   `json:"name" yaml:"name"`
	Tier     PlanTier `json:"tier" yaml:"tier"`
	Modules  []string `json:"modules" yaml:"modules"`
	Features []string `json:"features" yaml:"features"`
	// Limits are usage ceilings keyed by resource name (users, documents,
	// apiCalls, ...). A zero or negative limit means unlimited.
	Limits map[string]int64 `json:"limits,omitempty" yaml:"limits,omitempty"`
}

// SubscriptionStatus is the lifecycle state of an account's subscription.
type SubscriptionStatus string

const (
	StatusActive    SubscriptionStatus = "active"
	StatusInactive  SubscriptionStatus = "inactive"
	StatusExpired   SubscriptionStatus = "expired"
	StatusSuspended SubscriptionStatus = "suspended"
)

// SubscriptionState is the per-context view of an account's subscription.
// Only an active status grants any subscription-gated capability.
type SubscriptionState struct {
	Plan   *SubscriptionPlan  `json:"plan"`
	Status SubscriptionStatus `json:"status"`
	Usage  map[string]int64   `json:"usage,omitempty"`
}

// Operator is a comparison operator usable in an ABAC condition.
type Operator string

const (
	OpEq         Operator = "="
	OpNe         Operator = "!="
	OpGt         Operator = ">"
	OpLt         Operator = "<"
	OpGte        Operator = ">="
	OpLte        Operator = "<="
	OpIn         Operator = "in"
	OpNotIn      Operator = "not_in"
	OpContains   Operator = "contains"
	OpStartsWith Operator = "startswith"
	OpEndsWith   Operator = "endswith"
	OpRegex      Operator = "regex"
)

// ABACCondition compares one context attribute against a value. A condition
// may also carry sub-conditions; Logic ("and" default, or "or") combines the
// node's own comparison with its children.
type ABACCondition struct {
	Attribute  string           `json:"attribute,omitempty" yaml:"attribute,omitempty"`
	Operator   Operator         `json:"operator,omitempty" yaml:"operator,omitempty"`
	Value      any              `json:"value,omitempty" yaml:"value,omitempty"`
	Logic      string           `json:"logic,omitempty" yaml:"logic,omitempty"`
	Conditions []*ABACCondition `json:"conditions,omitempty" yaml:"conditions,omitempty"`
}

// FieldOutcome is the access level an ABAC policy grants when it fires.
type FieldOutcome string

const (
	FieldRead  FieldOutcome = "read"
	FieldWrite FieldOutcome = "write"
	// FieldNone revokes access: when a none-policy fires, later grant paths
	// are not considered.
	FieldNone FieldOutcome = "none"
)

// DateWindow bounds a policy's effective period. Either side may be empty
// (open). Values are parsed flexibly (RFC3339, date-only, ...).
type DateWindow struct {
	Start string `json:"start,omitempty" yaml:"start,omitempty"`
	End   string `json:"end,omitempty" yaml:"end,omitempty"`
}

// ABACPolicy grants field-level access on a (document type, field) pair when
// all of its top-level conditions hold.
type ABACPolicy struct {
	ID         string           `json:"id" yaml:"id"`
	Name       string           `json:"name" yaml:"name"`
	DocType    string           `json:"doc_type" yaml:"doc_type"`
	Field      string           `json:"field" yaml:"field"`
	Conditions []*ABACCondition `json:"conditions,omitempty" yaml:"conditions,omitempty"`
	Access     FieldOutcome     `json:"access" yaml:"access"`
	Priority   int              `json:"priority,omitempty" yaml:"priority,omitempty"`
	// Active defaults to true when absent from a payload.
	Active    *bool       `json:"active,omitempty" yaml:"active,omitempty"`
	Effective *DateWindow `json:"effective,omitempty" yaml:"effective,omitempty"`
	CreatedAt time.Time   `json:"created_at,omitempty" yaml:"created_at,omitempty"`
	UpdatedAt time.Time   `json:"updated_at,omitempty" yaml:"updated_at,omitempty"`
}

// IsActive reports whether the policy participates in evaluation.
func (p *ABACPolicy) IsActive() bool { return p.Active == nil || *p.Active }

// FieldAccess is the derived read/write decision for one field. Source and
// Conditions identify the policy that produced the decision.
type FieldAccess struct {
	Readable   bool             `json:"readable"`
	Writable   bool             `json:"writable"`
	Required   bool             `json:"required"`
	Source     string           `json:"source,omitempty"`
	Conditions []*ABACCondition `json:"conditions,omitempty"`
}

// DocumentAccess aggregates every decision a caller needs to render or gate
// one document type.
type DocumentAccess struct {
	Permissions map[CrudAction]bool    `json:"permissions"`
	Scope       DataScope              `json:"scope"`
	Fields      map[string]FieldAccess `json:"fields"`
	Actions     []string               `json:"actions"`
	// Conditional is true when any field decision carries conditions, i.e.
	// the decision may flip as document data changes.
	Conditional bool `json:"conditional"`
}

// ModuleRequirements narrows module availability beyond the subscription
// plan's module list.
type ModuleRequirements struct {
	MinTier  PlanTier `json:"min_tier,omitempty" yaml:"min_tier,omitempty"`
	Features []string `json:"features,omitempty" yaml:"features,omitempty"`
}

// ModuleAccess is per-module configuration layered over the subscription
// gate. An explicitly unavailable module denies regardless of plan.
type ModuleAccess struct {
	ModuleID     string              `json:"module_id" yaml:"module_id"`
	Name         string              `json:"name" yaml:"name"`
	Available    bool                `json:"available" yaml:"available"`
	Features     map[string]bool     `json:"features,omitempty" yaml:"features,omitempty"`
	Limits       map[string]int64    `json:"limits,omitempty" yaml:"limits,omitempty"`
	Requirements *ModuleRequirements `json:"requirements,omitempty" yaml:"requirements,omitempty"`
}

// User is the identity an AccessContext evaluates against.
type User struct {
	ID         string         `json:"id"`
	Roles      []string       `json:"roles"`
	Department string         `json:"department,omitempty"`
	Team       string         `json:"team,omitempty"`
	Attributes map[string]any `json:"attributes,omitempty"`
}

// Document is the optional target record of a decision.
type Document struct {
	ID         string         `json:"id,omitempty"`
	Type       string         `json:"type"`
	Data       map[string]any `json:"data,omitempty"`
	Owner      string         `json:"owner,omitempty"`
	Team       string         `json:"team,omitempty"`
	Department string         `json:"department,omitempty"`
	State      string         `json:"state,omitempty"`
}

// AccessContext carries everything a single decision needs. It is built
// fresh per request by the auth/session layer, handed in fully materialized,
// and never retained by the engine.
type AccessContext struct {
	User         User              `json:"user"`
	Subscription SubscriptionState `json:"subscription"`
	Document     *Document         `json:"document,omitempty"`
	Field        string            `json:"field,omitempty"`
	Action       CrudAction        `json:"action,omitempty"`
	Metadata     map[string]any    `json:"metadata,omitempty"`
}

// PermissionDecision is the outcome of the role/CRUD layer.
type PermissionDecision struct {
	Allowed    bool           `json:"allowed"`
	Scope      DataScope      `json:"scope"`
	Conditions map[string]any `json:"conditions,omitempty"`
}
