package access

import (
	"context"
	"time"
)

// ============================================================================
// STORE CONTRACTS
// ============================================================================

// Registry stores back the external admin system. The engine only lists them
// (on Reload); writes are the admin side's concern, exposed here so one
// implementation serves both.

type RoleStore interface {
	ListRoles(ctx context.Context) ([]*UserRole, error)
	SaveRole(ctx context.Context, role *UserRole) error
	DeleteRole(ctx context.Context, id string) error
}

type PolicyStore interface {
	ListPolicies(ctx context.Context) ([]*ABACPolicy, error)
	SavePolicy(ctx context.Context, policy *ABACPolicy) error
	DeletePolicy(ctx context.Context, id string) error
}

type PlanStore interface {
	ListPlans(ctx context.Context) ([]*SubscriptionPlan, error)
	SavePlan(ctx context.Context, plan *SubscriptionPlan) error
	DeletePlan(ctx context.Context, id string) error
}

type ModuleStore interface {
	ListModules(ctx context.Context) ([]*ModuleAccess, error)
	SaveModule(ctx context.Context, module *ModuleAccess) error
	DeleteModule(ctx context.Context, id string) error
}

// AuditEntry is one recorded document-level decision.
type AuditEntry struct {
	ID         string     `json:"id"`
	TraceID    string     `json:"trace_id,omitempty"`
	Timestamp  time.Time  `json:"timestamp"`
	UserID     string     `json:"user_id"`
	DocType    string     `json:"doc_type"`
	Action     CrudAction `json:"action"`
	DocumentID string     `json:"document_id,omitempty"`
	Allowed    bool       `json:"allowed"`
	Scope      DataScope  `json:"scope"`
}

// AuditFilter narrows an audit query; zero fields match everything.
type AuditFilter struct {
	UserID  string
	DocType string
	Since   time.Time
	Limit   int
}

type AuditStore interface {
	LogDecision(ctx context.Context, entry *AuditEntry) error
	ListDecisions(ctx context.Context, filter AuditFilter) ([]*AuditEntry, error)
}

// UsageStore tracks per-account consumption counters against plan limits.
type UsageStore interface {
	Increment(ctx context.Context, accountID, resource string, delta int64) (int64, error)
	Get(ctx context.Context, accountID, resource string) (int64, error)
	All(ctx context.Context, accountID string) (map[string]int64, error)
}
