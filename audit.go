package access

import (
	"context"
	"fmt"
	"time"
)

// ============================================================================
// DECISION AUDIT
// ============================================================================

// auditDecision records one permission decision. The store write goes
// through a buffered channel drained by a background worker; when the
// channel is full the entry is dropped rather than blocking the decision
// path. The log line is emitted regardless of whether a store is configured.
func (s *Service) auditDecision(ctx *AccessContext, docType string, action CrudAction, d PermissionDecision) {
	docID := ""
	if ctx.Document != nil {
		docID = ctx.Document.ID
	}
	s.log.Debug("access decision",
		"user", ctx.User.ID,
		"doc_type", docType,
		"action", string(action),
		"document", docID,
		"allowed", d.Allowed,
		"scope", string(d.Scope),
	)
	if s.auditCh == nil {
		return
	}
	entry := AuditEntry{
		ID:         fmt.Sprintf("%d", time.Now().UnixNano()),
		Timestamp:  s.now(),
		UserID:     ctx.User.ID,
		DocType:    docType,
		Action:     action,
		DocumentID: docID,
		Allowed:    d.Allowed,
		Scope:      d.Scope,
	}
	if s.traceID != nil {
		entry.TraceID = s.traceID()
	}
	select {
	case s.auditCh <- entry:
	default:
		// drop if channel is full to avoid blocking the hot path
	}
}

func (s *Service) startAuditWorker() {
	s.auditWG.Add(1)
	go func() {
		defer s.auditWG.Done()
		bg := context.Background()
		for entry := range s.auditCh {
			if err := s.auditStore.LogDecision(bg, &entry); err != nil {
				s.log.Error("audit write failed", "error", err.Error())
			}
		}
	}()
}

// GetAccessLog queries recorded decisions from the configured audit store.
func (s *Service) GetAccessLog(ctx context.Context, filter AuditFilter) ([]*AuditEntry, error) {
	if s.auditStore == nil {
		return nil, fmt.Errorf("access log: no audit store configured")
	}
	return s.auditStore.ListDecisions(ctx, filter)
}
