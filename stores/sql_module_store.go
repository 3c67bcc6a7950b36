package stores

import (
	"context"
	"encoding/json"

	"github.com/oarkflow/squealx"

	"github.com/dhool/access"
)

// SQLModuleStore persists per-module configuration in SQL
type SQLModuleStore struct {
	db *squealx.DB
}

func NewSQLModuleStore(db *squealx.DB) *SQLModuleStore {
	return &SQLModuleStore{db: db}
}

func (s *SQLModuleStore) SaveModule(ctx context.Context, m *access.ModuleAccess) error {
	features, _ := json.Marshal(m.Features)
	limits, _ := json.Marshal(m.Limits)
	requirements, _ := json.Marshal(m.Requirements)
	q := `INSERT INTO module_configs(id, name, available, features_json, limits_json, requirements_json)
VALUES(:id, :name, :available, :features_json, :limits_json, :requirements_json)
ON CONFLICT(id) DO UPDATE SET name=:name, available=:available, features_json=:features_json, limits_json=:limits_json, requirements_json=:requirements_json`
	_, err := s.db.NamedExecContext(ctx, q, map[string]any{
		"id":                m.ModuleID,
		"name":              m.Name,
		"available":         boolToInt(m.Available),
		"features_json":     string(features),
		"limits_json":       string(limits),
		"requirements_json": string(requirements),
	})
	return err
}

func (s *SQLModuleStore) DeleteModule(ctx context.Context, id string) error {
	q := `DELETE FROM module_configs WHERE id = :id`
	_, err := s.db.NamedExecContext(ctx, q, map[string]any{"id": id})
	return err
}

func (s *SQLModuleStore) ListModules(ctx context.Context) ([]*access.ModuleAccess, error) {
	q := `SELECT id, name, available, features_json, limits_json, requirements_json FROM module_configs ORDER BY id`
	r, err := s.db.NamedQueryContext(ctx, q, map[string]any{})
	if err != nil {
		return nil, err
	}
	defer r.Close()
	out := make([]*access.ModuleAccess, 0)
	for r.Next() {
		var id, name, featuresJSON, limitsJSON, requirementsJSON string
		var availableInt int
		if err := r.Scan(&id, &name, &availableInt, &featuresJSON, &limitsJSON, &requirementsJSON); err != nil {
			return nil, err
		}
		m := &access.ModuleAccess{ModuleID: id, Name: name, Available: availableInt != 0}
		_ = json.Unmarshal([]byte(featuresJSON), &m.Features)
		_ = json.Unmarshal([]byte(limitsJSON), &m.Limits)
		if requirementsJSON != "" && requirementsJSON != "null" {
			m.Requirements = &access.ModuleRequirements{}
			_ = json.Unmarshal([]byte(requirementsJSON), m.Requirements)
		}
		out = append(out, m)
	}
	return out, nil
}
