package stores

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dhool/access"
)

// MemoryRoleStore implements in-memory role persistence for testing/demo
type MemoryRoleStore struct {
	mu    sync.RWMutex
	roles map[string]*access.UserRole
}

func NewMemoryRoleStore() *MemoryRoleStore {
	return &MemoryRoleStore{roles: make(map[string]*access.UserRole)}
}

func (s *MemoryRoleStore) SaveRole(ctx context.Context, r *access.UserRole) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now()
	}
	s.roles[r.ID] = r
	return nil
}

func (s *MemoryRoleStore) DeleteRole(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.roles, id)
	return nil
}

func (s *MemoryRoleStore) ListRoles(ctx context.Context) ([]*access.UserRole, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*access.UserRole, 0, len(s.roles))
	for _, r := range s.roles {
		out = append(out, r)
	}
	return out, nil
}

// MemoryPolicyStore implements in-memory field-policy persistence
type MemoryPolicyStore struct {
	mu       sync.RWMutex
	order    []string
	policies map[string]*access.ABACPolicy
}

func NewMemoryPolicyStore() *MemoryPolicyStore {
	return &MemoryPolicyStore{policies: make(map[string]*access.ABACPolicy)}
}

func (s *MemoryPolicyStore) SavePolicy(ctx context.Context, p *access.ABACPolicy) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.policies[p.ID]; !ok {
		s.order = append(s.order, p.ID)
		p.CreatedAt = time.Now()
	}
	p.UpdatedAt = time.Now()
	s.policies[p.ID] = p
	return nil
}

func (s *MemoryPolicyStore) DeletePolicy(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.policies, id)
	for i, pid := range s.order {
		if pid == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return nil
}

// ListPolicies returns policies in insertion order, which the engine uses as
// the tie-break between equal priorities.
func (s *MemoryPolicyStore) ListPolicies(ctx context.Context) ([]*access.ABACPolicy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*access.ABACPolicy, 0, len(s.order))
	for _, id := range s.order {
		if p, ok := s.policies[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

// MemoryPlanStore implements in-memory plan persistence
type MemoryPlanStore struct {
	mu    sync.RWMutex
	plans map[string]*access.SubscriptionPlan
}

func NewMemoryPlanStore() *MemoryPlanStore {
	return &MemoryPlanStore{plans: make(map[string]*access.SubscriptionPlan)}
}

func (s *MemoryPlanStore) SavePlan(ctx context.Context, p *access.SubscriptionPlan) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.plans[p.ID] = p
	return nil
}

func (s *MemoryPlanStore) DeletePlan(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.plans, id)
	return nil
}

func (s *MemoryPlanStore) ListPlans(ctx context.Context) ([]*access.SubscriptionPlan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*access.SubscriptionPlan, 0, len(s.plans))
	for _, p := range s.plans {
		out = append(out, p)
	}
	return out, nil
}

// MemoryModuleStore implements in-memory module-config persistence
type MemoryModuleStore struct {
	mu      sync.RWMutex
	modules map[string]*access.ModuleAccess
}

func NewMemoryModuleStore() *MemoryModuleStore {
	return &MemoryModuleStore{modules: make(map[string]*access.ModuleAccess)}
}

func (s *MemoryModuleStore) SaveModule(ctx context.Context, m *access.ModuleAccess) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.modules[m.ModuleID] = m
	return nil
}

func (s *MemoryModuleStore) DeleteModule(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.modules, id)
	return nil
}

func (s *MemoryModuleStore) ListModules(ctx context.Context) ([]*access.ModuleAccess, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*access.ModuleAccess, 0, len(s.modules))
	for _, m := range s.modules {
		out = append(out, m)
	}
	return out, nil
}

// MemoryAuditStore keeps decisions in a bounded slice (useful for tests)
type MemoryAuditStore struct {
	mu      sync.RWMutex
	entries []*access.AuditEntry
	max     int
}

func NewMemoryAuditStore() *MemoryAuditStore {
	return &MemoryAuditStore{max: 10000}
}

func (s *MemoryAuditStore) LogDecision(ctx context.Context, entry *access.AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cop := *entry
	s.entries = append(s.entries, &cop)
	if len(s.entries) > s.max {
		s.entries = s.entries[len(s.entries)-s.max:]
	}
	return nil
}

func (s *MemoryAuditStore) ListDecisions(ctx context.Context, filter access.AuditFilter) ([]*access.AuditEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*access.AuditEntry, 0)
	for _, e := range s.entries {
		if filter.UserID != "" && e.UserID != filter.UserID {
			continue
		}
		if filter.DocType != "" && e.DocType != filter.DocType {
			continue
		}
		if !filter.Since.IsZero() && e.Timestamp.Before(filter.Since) {
			continue
		}
		out = append(out, e)
		if filter.Limit > 0 && len(out) >= filter.Limit {
			break
		}
	}
	return out, nil
}

// MemoryUsageStore tracks usage counters in-process
type MemoryUsageStore struct {
	mu     sync.RWMutex
	counts map[string]map[string]int64
}

func NewMemoryUsageStore() *MemoryUsageStore {
	return &MemoryUsageStore{counts: make(map[string]map[string]int64)}
}

func (s *MemoryUsageStore) Increment(ctx context.Context, accountID, resource string, delta int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	acct, ok := s.counts[accountID]
	if !ok {
		acct = make(map[string]int64)
		s.counts[accountID] = acct
	}
	acct[resource] += delta
	return acct[resource], nil
}

func (s *MemoryUsageStore) Get(ctx context.Context, accountID, resource string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	acct, ok := s.counts[accountID]
	if !ok {
		return 0, fmt.Errorf("no usage for account %s", accountID)
	}
	return acct[resource], nil
}

func (s *MemoryUsageStore) All(ctx context.Context, accountID string) (map[string]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]int64, len(s.counts[accountID]))
	for k, v := range s.counts[accountID] {
		out[k] = v
	}
	return out, nil
}
