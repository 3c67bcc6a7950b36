package stores

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/oarkflow/squealx"
	_ "modernc.org/sqlite"

	"github.com/dhool/access"
)

func newTestDB(t *testing.T) *squealx.DB {
	t.Helper()
	sqlDB, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { sqlDB.Close() })
	db := squealx.NewDb(sqlDB, "sqlite", "testdb")
	if err := Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func TestSQLRoleStoreRoundTrip(t *testing.T) {
	db := newTestDB(t)
	store := NewSQLRoleStore(db)
	ctx := context.Background()

	role := &access.UserRole{
		ID:           "sales_rep",
		Name:         "Sales Rep",
		Description:  "handles own accounts",
		Level:        2,
		DefaultScope: access.ScopeOwn,
		Permissions: map[string][]access.Permission{
			"invoice": {
				{Action: access.ActionRead, Allowed: true, Scope: access.ScopeTeam},
			},
		},
	}
	if err := store.SaveRole(ctx, role); err != nil {
		t.Fatalf("save: %v", err)
	}

	// save again with a change: upsert, not duplicate
	role.Name = "Sales Representative"
	if err := store.SaveRole(ctx, role); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	roles, err := store.ListRoles(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(roles) != 1 {
		t.Fatalf("expected 1 role, got %d", len(roles))
	}
	got := roles[0]
	if got.Name != "Sales Representative" || got.DefaultScope != access.ScopeOwn {
		t.Fatalf("unexpected role %+v", got)
	}
	perms := got.Permissions["invoice"]
	if len(perms) != 1 || perms[0].Scope != access.ScopeTeam || !perms[0].Allowed {
		t.Fatalf("permissions lost in round trip: %+v", perms)
	}
	if got.CreatedAt.IsZero() {
		t.Fatalf("created_at must survive the round trip")
	}

	if err := store.DeleteRole(ctx, "sales_rep"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	roles, _ = store.ListRoles(ctx)
	if len(roles) != 0 {
		t.Fatalf("expected empty list after delete")
	}
}

func TestSQLPolicyStorePreservesOrder(t *testing.T) {
	db := newTestDB(t)
	store := NewSQLPolicyStore(db)
	ctx := context.Background()

	for _, id := range []string{"p-first", "p-second", "p-third"} {
		p := &access.ABACPolicy{
			ID:      id,
			DocType: "invoice",
			Field:   "amount",
			Access:  access.FieldRead,
			Conditions: []*access.ABACCondition{
				access.Cond("user.team", access.OpEq, "east"),
			},
			Effective: &access.DateWindow{Start: "2026-01-01"},
		}
		if err := store.SavePolicy(ctx, p); err != nil {
			t.Fatalf("save %s: %v", id, err)
		}
	}

	policies, err := store.ListPolicies(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(policies) != 3 {
		t.Fatalf("expected 3 policies, got %d", len(policies))
	}
	for i, want := range []string{"p-first", "p-second", "p-third"} {
		if policies[i].ID != want {
			t.Fatalf("insertion order lost: %v", policies)
		}
	}
	got := policies[0]
	if len(got.Conditions) != 1 || got.Conditions[0].Attribute != "user.team" {
		t.Fatalf("conditions lost: %+v", got.Conditions)
	}
	if got.Effective == nil || got.Effective.Start != "2026-01-01" {
		t.Fatalf("effective window lost: %+v", got.Effective)
	}
	if got.Active == nil || !*got.Active {
		t.Fatalf("default active must round-trip as true")
	}
}

func TestSQLPlanAndModuleStores(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	plans := NewSQLPlanStore(db)
	plan := &access.SubscriptionPlan{
		ID:       "professional",
		Name:     "Professional",
		Tier:     access.TierProfessional,
		Modules:  []string{"invoicing", "finance.*"},
		Features: []string{"export"},
		Limits:   map[string]int64{"apiCalls": 1000},
	}
	if err := plans.SavePlan(ctx, plan); err != nil {
		t.Fatalf("save plan: %v", err)
	}
	gotPlans, err := plans.ListPlans(ctx)
	if err != nil || len(gotPlans) != 1 {
		t.Fatalf("list plans: %v (%d)", err, len(gotPlans))
	}
	if gotPlans[0].Limits["apiCalls"] != 1000 || gotPlans[0].Tier != access.TierProfessional {
		t.Fatalf("plan lost in round trip: %+v", gotPlans[0])
	}

	modules := NewSQLModuleStore(db)
	mod := &access.ModuleAccess{
		ModuleID:  "invoicing",
		Name:      "Invoicing",
		Available: true,
		Features:  map[string]bool{"bulk_edit": false},
		Requirements: &access.ModuleRequirements{
			MinTier:  access.TierStarter,
			Features: []string{"export"},
		},
	}
	if err := modules.SaveModule(ctx, mod); err != nil {
		t.Fatalf("save module: %v", err)
	}
	gotMods, err := modules.ListModules(ctx)
	if err != nil || len(gotMods) != 1 {
		t.Fatalf("list modules: %v (%d)", err, len(gotMods))
	}
	gm := gotMods[0]
	if !gm.Available || gm.Features["bulk_edit"] {
		t.Fatalf("module flags lost: %+v", gm)
	}
	if gm.Requirements == nil || gm.Requirements.MinTier != access.TierStarter {
		t.Fatalf("requirements lost: %+v", gm.Requirements)
	}
}

func TestSQLAuditStoreRoundTrip(t *testing.T) {
	db := newTestDB(t)
	store, _ := NewSQLAuditStore(db)
	ctx := context.Background()

	entry := &access.AuditEntry{
		ID:         "evt-1",
		TraceID:    "trace-abc-123",
		Timestamp:  time.Now(),
		UserID:     "u1",
		DocType:    "invoice",
		Action:     access.ActionRead,
		DocumentID: "doc-9",
		Allowed:    true,
		Scope:      access.ScopeTeam,
	}
	if err := store.LogDecision(ctx, entry); err != nil {
		t.Fatalf("log decision: %v", err)
	}
	other := &access.AuditEntry{ID: "evt-2", Timestamp: time.Now(), UserID: "u2", DocType: "invoice", Action: access.ActionDelete}
	if err := store.LogDecision(ctx, other); err != nil {
		t.Fatalf("log decision: %v", err)
	}

	logs, err := store.ListDecisions(ctx, access.AuditFilter{UserID: "u1", Limit: 10})
	if err != nil {
		t.Fatalf("list decisions: %v", err)
	}
	if len(logs) != 1 {
		t.Fatalf("expected 1 entry for u1, got %d", len(logs))
	}
	got := logs[0]
	if got.TraceID != "trace-abc-123" || got.Scope != access.ScopeTeam || !got.Allowed {
		t.Fatalf("entry lost in round trip: %+v", got)
	}
	if got.Timestamp.IsZero() {
		t.Fatalf("timestamp must survive the round trip")
	}
}

func TestMemoryUsageStore(t *testing.T) {
	store := NewMemoryUsageStore()
	ctx := context.Background()

	if _, err := store.Increment(ctx, "acct-1", "apiCalls", 999); err != nil {
		t.Fatalf("increment: %v", err)
	}
	n, err := store.Increment(ctx, "acct-1", "apiCalls", 1)
	if err != nil || n != 1000 {
		t.Fatalf("expected 1000, got %d (%v)", n, err)
	}
	all, err := store.All(ctx, "acct-1")
	if err != nil || all["apiCalls"] != 1000 {
		t.Fatalf("all: %v %v", all, err)
	}
	if _, err := store.Get(ctx, "ghost", "apiCalls"); err == nil {
		t.Fatalf("unknown account must error")
	}
}
