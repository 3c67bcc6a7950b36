package stores

import (
	"context"
	"encoding/json"

	"github.com/oarkflow/squealx"

	"github.com/dhool/access"
)

// SQLPlanStore persists subscription plans in SQL
type SQLPlanStore struct {
	db *squealx.DB
}

func NewSQLPlanStore(db *squealx.DB) *SQLPlanStore {
	return &SQLPlanStore{db: db}
}

func (s *SQLPlanStore) SavePlan(ctx context.Context, p *access.SubscriptionPlan) error {
	modules, _ := json.Marshal(p.Modules)
	features, _ := json.Marshal(p.Features)
	limits, _ := json.Marshal(p.Limits)
	q := `INSERT INTO plans(id, name, tier, modules_json, features_json, limits_json)
VALUES(:id, :name, :tier, :modules_json, :features_json, :limits_json)
ON CONFLICT(id) DO UPDATE SET name=:name, tier=:tier, modules_json=:modules_json, features_json=:features_json, limits_json=:limits_json`
	_, err := s.db.NamedExecContext(ctx, q, map[string]any{
		"id":            p.ID,
		"name":          p.Name,
		"tier":          string(p.Tier),
		"modules_json":  string(modules),
		"features_json": string(features),
		"limits_json":   string(limits),
	})
	return err
}

func (s *SQLPlanStore) DeletePlan(ctx context.Context, id string) error {
	q := `DELETE FROM plans WHERE id = :id`
	_, err := s.db.NamedExecContext(ctx, q, map[string]any{"id": id})
	return err
}

func (s *SQLPlanStore) ListPlans(ctx context.Context) ([]*access.SubscriptionPlan, error) {
	q := `SELECT id, name, tier, modules_json, features_json, limits_json FROM plans ORDER BY id`
	r, err := s.db.NamedQueryContext(ctx, q, map[string]any{})
	if err != nil {
		return nil, err
	}
	defer r.Close()
	out := make([]*access.SubscriptionPlan, 0)
	for r.Next() {
		var id, name, tier, modulesJSON, featuresJSON, limitsJSON string
		if err := r.Scan(&id, &name, &tier, &modulesJSON, &featuresJSON, &limitsJSON); err != nil {
			return nil, err
		}
		p := &access.SubscriptionPlan{ID: id, Name: name, Tier: access.PlanTier(tier)}
		_ = json.Unmarshal([]byte(modulesJSON), &p.Modules)
		_ = json.Unmarshal([]byte(featuresJSON), &p.Features)
		_ = json.Unmarshal([]byte(limitsJSON), &p.Limits)
		out = append(out, p)
	}
	return out, nil
}
