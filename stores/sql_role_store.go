package stores

import (
	"context"
	"encoding/json"
	"time"

	"github.com/oarkflow/squealx"

	"github.com/dhool/access"
)

// SQLRoleStore persists roles in SQL (squealx)
type SQLRoleStore struct {
	db *squealx.DB
}

func NewSQLRoleStore(db *squealx.DB) *SQLRoleStore {
	return &SQLRoleStore{db: db}
}

func (s *SQLRoleStore) SaveRole(ctx context.Context, r *access.UserRole) error {
	perms, _ := json.Marshal(r.Permissions)
	created := r.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	q := `INSERT INTO roles(id, name, description, level, default_scope, permissions_json, created_at)
VALUES(:id, :name, :description, :level, :default_scope, :permissions_json, :created_at)
ON CONFLICT(id) DO UPDATE SET name=:name, description=:description, level=:level, default_scope=:default_scope, permissions_json=:permissions_json`
	_, err := s.db.NamedExecContext(ctx, q, map[string]any{
		"id":               r.ID,
		"name":             r.Name,
		"description":      r.Description,
		"level":            r.Level,
		"default_scope":    string(r.DefaultScope),
		"permissions_json": string(perms),
		"created_at":       created,
	})
	return err
}

func (s *SQLRoleStore) DeleteRole(ctx context.Context, id string) error {
	q := `DELETE FROM roles WHERE id = :id`
	_, err := s.db.NamedExecContext(ctx, q, map[string]any{"id": id})
	return err
}

func (s *SQLRoleStore) ListRoles(ctx context.Context) ([]*access.UserRole, error) {
	q := `SELECT id, name, description, level, default_scope, permissions_json, created_at FROM roles ORDER BY id`
	r, err := s.db.NamedQueryContext(ctx, q, map[string]any{})
	if err != nil {
		return nil, err
	}
	defer r.Close()
	out := make([]*access.UserRole, 0)
	for r.Next() {
		var id, name, description, defaultScope, permsJSON string
		var level int
		var createdRaw any
		if err := r.Scan(&id, &name, &description, &level, &defaultScope, &permsJSON, &createdRaw); err != nil {
			return nil, err
		}
		role := &access.UserRole{
			ID:           id,
			Name:         name,
			Description:  description,
			Level:        level,
			DefaultScope: access.DataScope(defaultScope),
			CreatedAt:    scanTime(createdRaw),
		}
		var perms map[string][]access.Permission
		_ = json.Unmarshal([]byte(permsJSON), &perms)
		role.Permissions = perms
		out = append(out, role)
	}
	return out, nil
}
