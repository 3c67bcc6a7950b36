package access

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/oarkflow/date"
	"gopkg.in/yaml.v3"
)

// Config is the complete registry payload an admin system ships to the
// engine.
type Config struct {
	Version  uint16              `json:"version" yaml:"version"`
	Plans    []*SubscriptionPlan `json:"plans" yaml:"plans"`
	Roles    []*UserRole         `json:"roles" yaml:"roles"`
	Policies []*ABACPolicy       `json:"policies" yaml:"policies"`
	Modules  []*ModuleAccess     `json:"modules" yaml:"modules"`
	Engine   EngineConfig        `json:"engine" yaml:"engine"`
}

type EngineConfig struct {
	DecisionCacheTTL int64 `json:"decision_cache_ttl_ms" yaml:"decision_cache_ttl_ms"`
	FieldCacheTTL    int64 `json:"field_cache_ttl_ms" yaml:"field_cache_ttl_ms"`
	// AuditBuffer sizes the audit channel at construction (WithAuditBuffer);
	// the channel cannot be resized while the worker runs, so ApplyConfig
	// only reports a mismatch.
	AuditBuffer         int   `json:"audit_buffer" yaml:"audit_buffer"`
	RistrettoNumCounter int64 `json:"ristretto_num_counter" yaml:"ristretto_num_counter"`
	RistrettoMaxCost    int64 `json:"ristretto_max_cost" yaml:"ristretto_max_cost"`
	RistrettoBuffer     int64 `json:"ristretto_buffer" yaml:"ristretto_buffer"`
}

// ConfigLoader loads configuration from various formats
type ConfigLoader struct{}

func NewConfigLoader() *ConfigLoader {
	return &ConfigLoader{}
}

func (l *ConfigLoader) LoadYAML(data []byte) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("load yaml config: %w", err)
	}
	return cfg, nil
}

func (l *ConfigLoader) LoadJSON(data []byte) (*Config, error) {
	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("load json config: %w", err)
	}
	return cfg, nil
}

// LoadFile picks the decoder from the file extension (.json, .yaml, .yml).
func (l *ConfigLoader) LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if strings.HasSuffix(path, ".json") {
		return l.LoadJSON(data)
	}
	return l.LoadYAML(data)
}

// ToYAML exports config to YAML
func (c *Config) ToYAML() ([]byte, error) {
	return yaml.Marshal(c)
}

// ToJSON exports config to JSON
func (c *Config) ToJSON() ([]byte, error) {
	return json.MarshalIndent(c, "", "  ")
}

// Validate prunes malformed entries and reports one problem string per drop.
// Validation is fail-soft: the valid remainder still loads, and since
// absence only ever narrows access, a pruned entry can never widen what a
// user may do.
func (c *Config) Validate() (*Config, []string) {
	var problems []string
	out := &Config{Version: c.Version, Engine: c.Engine}

	for _, p := range c.Plans {
		if p == nil || p.ID == "" {
			problems = append(problems, "plan with empty id dropped")
			continue
		}
		out.Plans = append(out.Plans, p)
	}

	for _, r := range c.Roles {
		if r == nil || r.ID == "" {
			problems = append(problems, "role with empty id dropped")
			continue
		}
		clean := *r
		clean.Permissions = make(map[string][]Permission, len(r.Permissions))
		for docType, perms := range r.Permissions {
			kept := perms[:0:0]
			for _, perm := range perms {
				if _, ok := NormalizeAction(string(perm.Action)); !ok {
					problems = append(problems, fmt.Sprintf("role %s: unknown action %q on %s dropped", r.ID, perm.Action, docType))
					continue
				}
				kept = append(kept, perm)
			}
			clean.Permissions[docType] = kept
		}
		out.Roles = append(out.Roles, &clean)
	}

	for _, p := range c.Policies {
		if p == nil || p.ID == "" {
			problems = append(problems, "policy with empty id dropped")
			continue
		}
		if err := validatePolicy(p); err != nil {
			problems = append(problems, fmt.Sprintf("policy %s: %v", p.ID, err))
			continue
		}
		out.Policies = append(out.Policies, p)
	}

	for _, m := range c.Modules {
		if m == nil || m.ModuleID == "" {
			problems = append(problems, "module config with empty id dropped")
			continue
		}
		out.Modules = append(out.Modules, m)
	}
	return out, problems
}

func validatePolicy(p *ABACPolicy) error {
	if p.DocType == "" || p.Field == "" {
		return fmt.Errorf("missing doc_type or field")
	}
	switch p.Access {
	case FieldRead, FieldWrite, FieldNone:
	default:
		return fmt.Errorf("unknown access outcome %q", p.Access)
	}
	if p.Effective != nil {
		if p.Effective.Start != "" {
			if _, err := date.Parse(p.Effective.Start); err != nil {
				return fmt.Errorf("effective start %q: %w", p.Effective.Start, err)
			}
		}
		if p.Effective.End != "" {
			if _, err := date.Parse(p.Effective.End); err != nil {
				return fmt.Errorf("effective end %q: %w", p.Effective.End, err)
			}
		}
	}
	for _, cond := range p.Conditions {
		if err := validateCondition(cond); err != nil {
			return err
		}
	}
	return nil
}

func validateCondition(c *ABACCondition) error {
	if c == nil {
		return nil
	}
	if c.Operator == OpRegex {
		if _, err := regexp.Compile(ValueOf(c.Value).Text()); err != nil {
			return fmt.Errorf("invalid regex condition on %s: %w", c.Attribute, err)
		}
	}
	for _, sub := range c.Conditions {
		if err := validateCondition(sub); err != nil {
			return err
		}
	}
	return nil
}

// Stats summarizes a config for the CLI.
func (c *Config) Stats() map[string]int {
	return map[string]int{
		"plans":    len(c.Plans),
		"roles":    len(c.Roles),
		"policies": len(c.Policies),
		"modules":  len(c.Modules),
	}
}

// ApplyConfig validates the payload, applies engine knobs, then replaces all
// four registries in one snapshot swap. Pruned entries are logged; only a
// payload so broken it cannot be applied at all returns an error.
func (s *Service) ApplyConfig(_ context.Context, cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("apply config: nil config")
	}
	clean, problems := cfg.Validate()
	for _, p := range problems {
		s.log.Error("config entry skipped", "reason", p)
	}

	if cfg.Engine.DecisionCacheTTL > 0 {
		s.decisionTTL = time.Duration(cfg.Engine.DecisionCacheTTL) * time.Millisecond
	}
	if cfg.Engine.FieldCacheTTL > 0 {
		s.fieldCacheTTL = time.Duration(cfg.Engine.FieldCacheTTL) * time.Millisecond
	}
	if cfg.Engine.RistrettoNumCounter > 0 && s.fieldCache == nil {
		c, err := newFieldCache(cfg.Engine.RistrettoNumCounter, cfg.Engine.RistrettoMaxCost, cfg.Engine.RistrettoBuffer)
		if err != nil {
			return fmt.Errorf("apply config: field cache: %w", err)
		}
		s.fieldCache = c
	}
	if cfg.Engine.AuditBuffer > 0 && cfg.Engine.AuditBuffer != s.auditBuf {
		s.log.Info("audit buffer is fixed at construction",
			"running", s.auditBuf, "requested", cfg.Engine.AuditBuffer)
	}

	compiled := compilePolicies(clean.Policies, func(id, msg string) {
		s.log.Error("policy skipped", "policy", id, "reason", msg)
	})
	s.replaceSnapshot(func(next *registrySnapshot) {
		next.plans = indexPlans(clean.Plans)
		next.roles = indexRoles(clean.Roles)
		next.policies = compiled
		next.modules = indexModules(clean.Modules)
	})
	s.log.Info("config applied",
		"plans", len(clean.Plans), "roles", len(clean.Roles),
		"policies", len(clean.Policies), "modules", len(clean.Modules),
		"skipped", len(problems))
	return nil
}
