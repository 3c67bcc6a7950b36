package stores

import (
	"context"
	"encoding/json"
	"time"

	"github.com/oarkflow/squealx"

	"github.com/dhool/access"
)

// SQLPolicyStore persists field policies in SQL. Rows are ordered by a
// monotonically assigned sequence so listing preserves registration order.
type SQLPolicyStore struct {
	db *squealx.DB
}

func NewSQLPolicyStore(db *squealx.DB) *SQLPolicyStore {
	return &SQLPolicyStore{db: db}
}

func (s *SQLPolicyStore) SavePolicy(ctx context.Context, p *access.ABACPolicy) error {
	conds, _ := json.Marshal(p.Conditions)
	active := true
	if p.Active != nil {
		active = *p.Active
	}
	effStart, effEnd := "", ""
	if p.Effective != nil {
		effStart, effEnd = p.Effective.Start, p.Effective.End
	}
	created := p.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	q := `INSERT INTO field_policies(id, name, doc_type, field, conditions_json, access, priority, active, effective_start, effective_end, created_at, updated_at)
VALUES(:id, :name, :doc_type, :field, :conditions_json, :access, :priority, :active, :effective_start, :effective_end, :created_at, :updated_at)
ON CONFLICT(id) DO UPDATE SET name=:name, doc_type=:doc_type, field=:field, conditions_json=:conditions_json, access=:access, priority=:priority, active=:active, effective_start=:effective_start, effective_end=:effective_end, updated_at=:updated_at`
	_, err := s.db.NamedExecContext(ctx, q, map[string]any{
		"id":              p.ID,
		"name":            p.Name,
		"doc_type":        p.DocType,
		"field":           p.Field,
		"conditions_json": string(conds),
		"access":          string(p.Access),
		"priority":        p.Priority,
		"active":          boolToInt(active),
		"effective_start": effStart,
		"effective_end":   effEnd,
		"created_at":      created,
		"updated_at":      time.Now(),
	})
	return err
}

func (s *SQLPolicyStore) DeletePolicy(ctx context.Context, id string) error {
	q := `DELETE FROM field_policies WHERE id = :id`
	_, err := s.db.NamedExecContext(ctx, q, map[string]any{"id": id})
	return err
}

func (s *SQLPolicyStore) ListPolicies(ctx context.Context) ([]*access.ABACPolicy, error) {
	q := `SELECT id, name, doc_type, field, conditions_json, access, priority, active, effective_start, effective_end, created_at, updated_at FROM field_policies ORDER BY seq`
	r, err := s.db.NamedQueryContext(ctx, q, map[string]any{})
	if err != nil {
		return nil, err
	}
	defer r.Close()
	out := make([]*access.ABACPolicy, 0)
	for r.Next() {
		var id, name, docType, field, condsJSON, accessStr, effStart, effEnd string
		var priority, activeInt int
		var createdRaw, updatedRaw any
		if err := r.Scan(&id, &name, &docType, &field, &condsJSON, &accessStr, &priority, &activeInt, &effStart, &effEnd, &createdRaw, &updatedRaw); err != nil {
			return nil, err
		}
		active := activeInt != 0
		p := &access.ABACPolicy{
			ID:        id,
			Name:      name,
			DocType:   docType,
			Field:     field,
			Access:    access.FieldOutcome(accessStr),
			Priority:  priority,
			Active:    &active,
			CreatedAt: scanTime(createdRaw),
			UpdatedAt: scanTime(updatedRaw),
		}
		_ = json.Unmarshal([]byte(condsJSON), &p.Conditions)
		if effStart != "" || effEnd != "" {
			p.Effective = &access.DateWindow{Start: effStart, End: effEnd}
		}
		out = append(out, p)
	}
	return out, nil
}
