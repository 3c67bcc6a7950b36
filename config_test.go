package access

import (
	"context"
	"crypto/ed25519"
	"strings"
	"testing"
	"time"
)

const testConfigYAML = `
version: 3
plans:
  - id: professional
    name: Professional
    tier: professional
    modules: [invoicing, crm]
    features: [export]
    limits:
      apiCalls: 1000
roles:
  - id: sales_rep
    name: Sales Rep
    default_scope: own
    permissions:
      invoice:
        - action: read
          allowed: true
        - action: update
          allowed: true
          scope: team
policies:
  - id: p-amount
    name: amount-read
    doc_type: invoice
    field: amount
    access: read
    priority: 5
modules:
  - module_id: invoicing
    name: Invoicing
    available: true
engine:
  decision_cache_ttl_ms: 250
`

func TestConfigLoadYAMLAndApply(t *testing.T) {
	loader := NewConfigLoader()
	cfg, err := loader.LoadYAML([]byte(testConfigYAML))
	if err != nil {
		t.Fatalf("load yaml: %v", err)
	}
	if cfg.Version != 3 || len(cfg.Plans) != 1 || len(cfg.Roles) != 1 {
		t.Fatalf("unexpected config: %+v", cfg)
	}

	s := newTestService(t)
	if err := s.ApplyConfig(context.Background(), cfg); err != nil {
		t.Fatalf("apply: %v", err)
	}

	ctx := &AccessContext{User: User{ID: "u1", Roles: []string{"sales_rep"}}}
	if d := s.CheckPermission(ctx, "invoice", ActionUpdate); !d.Allowed || d.Scope != ScopeTeam {
		t.Fatalf("applied role must grant team update, got %+v", d)
	}
	if fa := s.EvaluateField(ctx, "invoice", "amount"); !fa.Readable {
		t.Fatalf("applied policy must grant read")
	}
	if s.decisionTTL.Milliseconds() != 250 {
		t.Fatalf("engine knob not applied: %v", s.decisionTTL)
	}
}

func TestApplyConfigFieldCacheTTL(t *testing.T) {
	s := newTestService(t, WithRistrettoFieldCache(1000, 1<<20, 64, time.Minute))

	cfg := &Config{Engine: EngineConfig{FieldCacheTTL: 5000}}
	if err := s.ApplyConfig(context.Background(), cfg); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if s.fieldCacheTTL != 5*time.Second {
		t.Fatalf("field cache ttl knob must apply to a pre-built cache, got %v", s.fieldCacheTTL)
	}
}

func TestConfigJSONRoundTrip(t *testing.T) {
	loader := NewConfigLoader()
	cfg, err := loader.LoadYAML([]byte(testConfigYAML))
	if err != nil {
		t.Fatalf("load yaml: %v", err)
	}
	data, err := cfg.ToJSON()
	if err != nil {
		t.Fatalf("to json: %v", err)
	}
	back, err := loader.LoadJSON(data)
	if err != nil {
		t.Fatalf("load json: %v", err)
	}
	if len(back.Roles) != 1 || back.Roles[0].ID != "sales_rep" {
		t.Fatalf("round trip lost roles: %+v", back.Roles)
	}
	if len(back.Roles[0].Permissions["invoice"]) != 2 {
		t.Fatalf("round trip lost permissions")
	}
}

func TestConfigValidateFailSoft(t *testing.T) {
	active := true
	cfg := &Config{
		Plans: []*SubscriptionPlan{
			{ID: "good"},
			{}, // empty id
		},
		Roles: []*UserRole{
			{ID: "r1", Permissions: map[string][]Permission{
				"invoice": {
					{Action: ActionRead, Allowed: true},
					{Action: CrudAction("teleport"), Allowed: true},
				},
			}},
		},
		Policies: []*ABACPolicy{
			{ID: "ok", DocType: "invoice", Field: "amount", Access: FieldRead, Active: &active},
			{ID: "bad-access", DocType: "invoice", Field: "amount", Access: FieldOutcome("maybe")},
			{ID: "bad-date", DocType: "invoice", Field: "amount", Access: FieldRead,
				Effective: &DateWindow{Start: "not a date"}},
			{ID: "bad-regex", DocType: "invoice", Field: "amount", Access: FieldRead,
				Conditions: []*ABACCondition{Cond("user.id", OpRegex, "(")}},
			{ID: "no-target", Access: FieldRead},
		},
		Modules: []*ModuleAccess{{ModuleID: "m1"}, {}},
	}

	clean, problems := cfg.Validate()
	if len(clean.Plans) != 1 || len(clean.Policies) != 1 || len(clean.Modules) != 1 {
		t.Fatalf("valid remainder must survive: %d plans %d policies %d modules",
			len(clean.Plans), len(clean.Policies), len(clean.Modules))
	}
	if len(clean.Roles[0].Permissions["invoice"]) != 1 {
		t.Fatalf("unknown action must be pruned from role")
	}
	if len(problems) != 7 {
		t.Fatalf("expected 7 problems, got %d: %v", len(problems), problems)
	}
	for _, want := range []string{"empty id", "teleport", "maybe", "not a date", "regex", "doc_type"} {
		found := false
		for _, p := range problems {
			if strings.Contains(p, want) {
				found = true
				break
			}
		}
		if !found {
			t.Fatalf("expected a problem mentioning %q in %v", want, problems)
		}
	}
}

func TestSignedBundleApply(t *testing.T) {
	loader := NewConfigLoader()
	cfg, err := loader.LoadYAML([]byte(testConfigYAML))
	if err != nil {
		t.Fatalf("load yaml: %v", err)
	}

	pub, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}

	bundle, err := SignConfig(priv, cfg)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if ok, err := VerifyConfigBundle(pub, bundle); err != nil || !ok {
		t.Fatalf("verify: %v", err)
	}

	s := newTestService(t)
	if err := s.ApplySignedBundle(context.Background(), pub, bundle); err != nil {
		t.Fatalf("apply signed bundle: %v", err)
	}
	ctx := &AccessContext{User: User{ID: "u1", Roles: []string{"sales_rep"}}}
	if d := s.CheckPermission(ctx, "invoice", ActionRead); !d.Allowed {
		t.Fatalf("bundle payload must be live after apply")
	}
}

func TestSignedBundleRejectsTampering(t *testing.T) {
	loader := NewConfigLoader()
	cfg, _ := loader.LoadYAML([]byte(testConfigYAML))
	pub, priv, _ := ed25519.GenerateKey(nil)
	bundle, err := SignConfig(priv, cfg)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	// payload tampering after signing
	bundle.Config.Roles[0].Permissions["invoice"][0].Scope = ScopeAll
	if ok, _ := VerifyConfigBundle(pub, bundle); ok {
		t.Fatalf("tampered payload must fail verification")
	}

	// wrong key
	bundle2, _ := SignConfig(priv, cfg)
	otherPub, _, _ := ed25519.GenerateKey(nil)
	if ok, _ := VerifyConfigBundle(otherPub, bundle2); ok {
		t.Fatalf("foreign key must fail verification")
	}

	// a rejected bundle must not touch the registry
	s := newTestService(t)
	if err := s.ApplySignedBundle(context.Background(), pub, bundle); err == nil {
		t.Fatalf("expected apply to fail")
	}
	ctx := &AccessContext{User: User{ID: "u1", Roles: []string{"sales_rep"}}}
	if d := s.CheckPermission(ctx, "invoice", ActionRead); d.Allowed {
		t.Fatalf("rejected bundle must leave the registry empty")
	}
}
