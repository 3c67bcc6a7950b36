package access

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dgraph-io/ristretto"

	"github.com/dhool/access/logger"
)

// ============================================================================
// ACCESS FACADE
// ============================================================================

// documentActions is the action vocabulary GetDocumentAccess filters. The
// CRUD entries go through the permission resolver; export and print are
// gated by subscription features upstream and pass through here.
var documentActions = []string{"create", "read", "update", "delete", "export", "print"}

// registrySnapshot is the immutable view every decision reads. Loads build a
// new snapshot and swap the pointer; a decision in flight keeps the snapshot
// it started with, so no evaluation ever observes a half-replaced registry.
type registrySnapshot struct {
	plans    map[string]*SubscriptionPlan
	roles    map[string]*UserRole
	policies map[policyKey][]*compiledPolicy
	modules  map[string]*ModuleAccess
}

func emptySnapshot() *registrySnapshot {
	return &registrySnapshot{
		plans:    map[string]*SubscriptionPlan{},
		roles:    map[string]*UserRole{},
		policies: map[policyKey][]*compiledPolicy{},
		modules:  map[string]*ModuleAccess{},
	}
}

// Service evaluates the three access layers against one registry snapshot.
// Decision methods never return errors: an incomplete context, unknown role
// or missing registry entry always resolves toward deny.
type Service struct {
	current atomic.Value // *registrySnapshot
	loadMu  sync.Mutex

	log     logger.Logger
	traceID logger.TraceIDFunc
	nowFn   func() time.Time

	decisionCache   map[DecisionKey]*decisionCacheEntry
	decisionCacheMu sync.RWMutex
	decisionTTL     time.Duration

	fieldCache    *ristretto.Cache
	fieldCacheTTL time.Duration

	roleStore   RoleStore
	policyStore PolicyStore
	planStore   PlanStore
	moduleStore ModuleStore
	auditStore  AuditStore
	usageStore  UsageStore

	auditCh   chan AuditEntry
	auditBuf  int
	auditWG   sync.WaitGroup
	closeOnce sync.Once
}

// Option configures a Service at construction time.
type Option func(*Service) error

// WithLogger replaces the default phuslu-backed logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) error {
		if l == nil {
			return fmt.Errorf("access: nil logger")
		}
		s.log = l
		return nil
	}
}

// WithTraceIDFunc sets the generator stamped onto audit entries.
func WithTraceIDFunc(f logger.TraceIDFunc) Option {
	return func(s *Service) error {
		s.traceID = f
		return nil
	}
}

// WithDecisionCacheTTL sets the permission-decision cache TTL; zero disables
// the cache.
func WithDecisionCacheTTL(d time.Duration) Option {
	return func(s *Service) error {
		if d < 0 {
			return fmt.Errorf("access: negative decision cache ttl")
		}
		s.decisionTTL = d
		return nil
	}
}

// WithRistrettoFieldCache enables the ristretto-backed field-decision cache.
// Field decisions depend on document data, so keep the TTL short; the cache
// flushes on every registry replace either way.
func WithRistrettoFieldCache(numCounters, maxCost, bufferItems int64, ttl time.Duration) Option {
	return func(s *Service) error {
		c, err := newFieldCache(numCounters, maxCost, bufferItems)
		if err != nil {
			return fmt.Errorf("access: field cache: %w", err)
		}
		s.fieldCache = c
		s.fieldCacheTTL = ttl
		return nil
	}
}

// WithStores attaches the registry stores Reload pulls from. Any of the four
// may be nil; Reload skips missing stores.
func WithStores(roles RoleStore, policies PolicyStore, plans PlanStore, modules ModuleStore) Option {
	return func(s *Service) error {
		s.roleStore = roles
		s.policyStore = policies
		s.planStore = plans
		s.moduleStore = modules
		return nil
	}
}

// WithAuditStore enables persisted decision auditing.
func WithAuditStore(store AuditStore) Option {
	return func(s *Service) error {
		s.auditStore = store
		return nil
	}
}

// WithAuditBuffer sizes the async audit channel (default 1024).
func WithAuditBuffer(n int) Option {
	return func(s *Service) error {
		if n <= 0 {
			return fmt.Errorf("access: audit buffer must be positive")
		}
		s.auditBuf = n
		return nil
	}
}

// WithUsageStore attaches the usage counter backend consumed by
// BuildSubscriptionState.
func WithUsageStore(store UsageStore) Option {
	return func(s *Service) error {
		s.usageStore = store
		return nil
	}
}

// WithClock overrides the time source; tests use it to pin effective-date
// windows and cache expiry.
func WithClock(now func() time.Time) Option {
	return func(s *Service) error {
		if now == nil {
			return fmt.Errorf("access: nil clock")
		}
		s.nowFn = now
		return nil
	}
}

// NewService builds a Service with an empty registry. Load the registries
// (Load*, Reload or ApplyConfig) before evaluating; an empty registry denies
// everything.
func NewService(opts ...Option) (*Service, error) {
	s := &Service{
		log:           logger.NewPhusluLogger(),
		nowFn:         time.Now,
		decisionCache: make(map[DecisionKey]*decisionCacheEntry),
		decisionTTL:   time.Second, // default short TTL
		auditBuf:      1024,
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	s.current.Store(emptySnapshot())
	if s.auditStore != nil {
		s.auditCh = make(chan AuditEntry, s.auditBuf)
		s.startAuditWorker()
	}
	return s, nil
}

func (s *Service) snapshot() *registrySnapshot {
	return s.current.Load().(*registrySnapshot)
}

func (s *Service) now() time.Time { return s.nowFn() }

// Close stops the audit worker after draining queued entries and releases
// the field cache.
func (s *Service) Close() {
	s.closeOnce.Do(func() {
		if s.auditCh != nil {
			close(s.auditCh)
			s.auditWG.Wait()
		}
		if s.fieldCache != nil {
			s.fieldCache.Close()
		}
	})
}

// ============================================================================
// REGISTRY LIFECYCLE
// ============================================================================

// replaceSnapshot applies mutate to a shallow copy of the current snapshot
// and swaps it in. Sections not touched by mutate are shared with the old
// snapshot; they are never written after publication.
func (s *Service) replaceSnapshot(mutate func(next *registrySnapshot)) {
	s.loadMu.Lock()
	defer s.loadMu.Unlock()
	old := s.snapshot()
	next := &registrySnapshot{
		plans:    old.plans,
		roles:    old.roles,
		policies: old.policies,
		modules:  old.modules,
	}
	mutate(next)
	s.current.Store(next)
	s.InvalidateDecisionCaches()
}

// LoadPlans replaces the plan registry wholesale.
func (s *Service) LoadPlans(plans []*SubscriptionPlan) {
	m := make(map[string]*SubscriptionPlan, len(plans))
	for _, p := range plans {
		if p == nil || p.ID == "" {
			continue
		}
		m[p.ID] = p
	}
	s.replaceSnapshot(func(next *registrySnapshot) { next.plans = m })
	s.log.Info("plans loaded", "count", len(m))
}

// LoadRoles replaces the role registry wholesale.
func (s *Service) LoadRoles(roles []*UserRole) {
	m := make(map[string]*UserRole, len(roles))
	for _, r := range roles {
		if r == nil || r.ID == "" {
			continue
		}
		m[r.ID] = r
	}
	s.replaceSnapshot(func(next *registrySnapshot) { next.roles = m })
	s.log.Info("roles loaded", "count", len(m))
}

// LoadPolicies replaces the field-policy registry wholesale. Inactive
// policies and policies with unparseable effective dates are dropped here,
// with a warning per drop.
func (s *Service) LoadPolicies(policies []*ABACPolicy) {
	compiled := compilePolicies(policies, func(id, msg string) {
		s.log.Error("policy skipped", "policy", id, "reason", msg)
	})
	s.replaceSnapshot(func(next *registrySnapshot) { next.policies = compiled })
	s.log.Info("policies loaded", "buckets", len(compiled))
}

// LoadModules replaces the module-config registry wholesale.
func (s *Service) LoadModules(modules []*ModuleAccess) {
	m := make(map[string]*ModuleAccess, len(modules))
	for _, mod := range modules {
		if mod == nil || mod.ModuleID == "" {
			continue
		}
		m[mod.ModuleID] = mod
	}
	s.replaceSnapshot(func(next *registrySnapshot) { next.modules = m })
	s.log.Info("modules loaded", "count", len(m))
}

// Reload lists every configured registry store and swaps in one complete new
// snapshot. Any store error aborts the reload with the old snapshot intact.
func (s *Service) Reload(ctx context.Context) error {
	var (
		plans    []*SubscriptionPlan
		roles    []*UserRole
		policies []*ABACPolicy
		modules  []*ModuleAccess
		err      error
	)
	if s.planStore != nil {
		if plans, err = s.planStore.ListPlans(ctx); err != nil {
			return fmt.Errorf("reload plans: %w", err)
		}
	}
	if s.roleStore != nil {
		if roles, err = s.roleStore.ListRoles(ctx); err != nil {
			return fmt.Errorf("reload roles: %w", err)
		}
	}
	if s.policyStore != nil {
		if policies, err = s.policyStore.ListPolicies(ctx); err != nil {
			return fmt.Errorf("reload policies: %w", err)
		}
	}
	if s.moduleStore != nil {
		if modules, err = s.moduleStore.ListModules(ctx); err != nil {
			return fmt.Errorf("reload modules: %w", err)
		}
	}
	compiled := compilePolicies(policies, func(id, msg string) {
		s.log.Error("policy skipped", "policy", id, "reason", msg)
	})
	s.replaceSnapshot(func(next *registrySnapshot) {
		if s.planStore != nil {
			next.plans = indexPlans(plans)
		}
		if s.roleStore != nil {
			next.roles = indexRoles(roles)
		}
		if s.policyStore != nil {
			next.policies = compiled
		}
		if s.moduleStore != nil {
			next.modules = indexModules(modules)
		}
	})
	s.log.Info("registries reloaded",
		"plans", len(plans), "roles", len(roles),
		"policies", len(policies), "modules", len(modules))
	return nil
}

func indexPlans(plans []*SubscriptionPlan) map[string]*SubscriptionPlan {
	m := make(map[string]*SubscriptionPlan, len(plans))
	for _, p := range plans {
		if p != nil && p.ID != "" {
			m[p.ID] = p
		}
	}
	return m
}

func indexRoles(roles []*UserRole) map[string]*UserRole {
	m := make(map[string]*UserRole, len(roles))
	for _, r := range roles {
		if r != nil && r.ID != "" {
			m[r.ID] = r
		}
	}
	return m
}

func indexModules(modules []*ModuleAccess) map[string]*ModuleAccess {
	m := make(map[string]*ModuleAccess, len(modules))
	for _, mod := range modules {
		if mod != nil && mod.ModuleID != "" {
			m[mod.ModuleID] = mod
		}
	}
	return m
}

// ============================================================================
// AGGREGATE QUERIES
// ============================================================================

// GetDocumentAccess aggregates everything a caller needs to render one
// document type: the four CRUD verdicts, the read scope, per-field access
// for the requested fields, and the filtered action list. Conditional is set
// when any field decision carries conditions, meaning it can flip as the
// document's data changes.
func (s *Service) GetDocumentAccess(ctx *AccessContext, docType string, fields []string) DocumentAccess {
	da := DocumentAccess{
		Permissions: make(map[CrudAction]bool, 4),
		Scope:       ScopeOwn,
		Fields:      make(map[string]FieldAccess, len(fields)),
	}
	if ctx == nil {
		da.Actions = []string{}
		return da
	}
	for _, action := range []CrudAction{ActionCreate, ActionRead, ActionUpdate, ActionDelete} {
		da.Permissions[action] = s.CheckPermission(ctx, docType, action).Allowed
	}
	da.Scope = s.GetDataScope(ctx, docType, ActionRead)
	for _, f := range fields {
		fa := s.EvaluateField(ctx, docType, f)
		da.Fields[f] = fa
		if len(fa.Conditions) > 0 {
			da.Conditional = true
		}
	}
	da.Actions = s.FilterActions(ctx, docType, documentActions)
	return da
}

// BuildSubscriptionState materializes the subscription view the auth layer
// embeds into each AccessContext: the registry plan joined with the
// account's live usage counters.
func (s *Service) BuildSubscriptionState(ctx context.Context, accountID, planID string, status SubscriptionStatus) (SubscriptionState, error) {
	plan, ok := s.snapshot().plans[planID]
	if !ok {
		return SubscriptionState{}, fmt.Errorf("build subscription: unknown plan %q", planID)
	}
	state := SubscriptionState{Plan: plan, Status: status}
	if s.usageStore != nil {
		usage, err := s.usageStore.All(ctx, accountID)
		if err != nil {
			return SubscriptionState{}, fmt.Errorf("build subscription: usage for %s: %w", accountID, err)
		}
		state.Usage = usage
	}
	return state, nil
}
