package stores

import (
	"context"

	"github.com/oarkflow/squealx"

	"github.com/dhool/access"
)

// SQLAuditStore persists decision audit entries in SQL
type SQLAuditStore struct {
	db *squealx.DB
}

func NewSQLAuditStore(db *squealx.DB) (*SQLAuditStore, error) {
	return &SQLAuditStore{db: db}, nil
}

func (s *SQLAuditStore) LogDecision(ctx context.Context, entry *access.AuditEntry) error {
	q := `INSERT INTO access_log(id, trace_id, timestamp, user_id, doc_type, action, document_id, allowed, scope)
VALUES(:id, :trace_id, :timestamp, :user_id, :doc_type, :action, :document_id, :allowed, :scope)`
	_, err := s.db.NamedExecContext(ctx, q, map[string]any{
		"id":          entry.ID,
		"trace_id":    entry.TraceID,
		"timestamp":   entry.Timestamp,
		"user_id":     entry.UserID,
		"doc_type":    entry.DocType,
		"action":      string(entry.Action),
		"document_id": entry.DocumentID,
		"allowed":     boolToInt(entry.Allowed),
		"scope":       string(entry.Scope),
	})
	return err
}

func (s *SQLAuditStore) ListDecisions(ctx context.Context, filter access.AuditFilter) ([]*access.AuditEntry, error) {
	q := `SELECT id, trace_id, timestamp, user_id, doc_type, action, document_id, allowed, scope FROM access_log WHERE 1=1`
	params := map[string]any{}
	if filter.UserID != "" {
		q += " AND user_id = :user_id"
		params["user_id"] = filter.UserID
	}
	if filter.DocType != "" {
		q += " AND doc_type = :doc_type"
		params["doc_type"] = filter.DocType
	}
	if !filter.Since.IsZero() {
		q += " AND timestamp >= :since"
		params["since"] = filter.Since
	}
	if filter.Limit > 0 {
		q += " LIMIT :limit"
		params["limit"] = filter.Limit
	} else {
		q += " LIMIT 100"
	}
	r, err := s.db.NamedQueryContext(ctx, q, params)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	out := make([]*access.AuditEntry, 0)
	for r.Next() {
		var id, traceID, userID, docType, action, documentID, scope string
		var timestampRaw any
		var allowedInt int
		if err := r.Scan(&id, &traceID, &timestampRaw, &userID, &docType, &action, &documentID, &allowedInt, &scope); err != nil {
			return nil, err
		}
		out = append(out, &access.AuditEntry{
			ID:         id,
			TraceID:    traceID,
			Timestamp:  scanTime(timestampRaw),
			UserID:     userID,
			DocType:    docType,
			Action:     access.CrudAction(action),
			DocumentID: documentID,
			Allowed:    allowedInt != 0,
			Scope:      access.DataScope(scope),
		})
	}
	return out, nil
}
