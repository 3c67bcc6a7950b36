package access

import (
	"strings"
	"time"

	"github.com/dgraph-io/ristretto"
)

// ============================================================================
// DECISION CACHING
// ============================================================================

// DecisionKey is the struct key of the permission-decision cache; a struct
// key avoids per-lookup string allocations.
type DecisionKey struct {
	UserID     string
	DocType    string
	Action     CrudAction
	DocumentID string
}

type decisionCacheEntry struct {
	Decision  PermissionDecision
	ExpiresAt time.Time
}

func buildDecisionKey(ctx *AccessContext, docType string, action CrudAction) DecisionKey {
	k := DecisionKey{UserID: ctx.User.ID, DocType: docType, Action: action}
	if ctx.Document != nil {
		k.DocumentID = ctx.Document.ID
	}
	return k
}

// cacheableDocument reports whether the context's document can be keyed. A
// document without an ID would share its key with a document-free lookup, and
// serving one for the other skips the scope record filter.
func cacheableDocument(ctx *AccessContext) bool {
	return ctx.Document == nil || ctx.Document.ID != ""
}

func (s *Service) decisionFromCache(ctx *AccessContext, docType string, action CrudAction) (PermissionDecision, bool) {
	if s.decisionTTL <= 0 || !cacheableDocument(ctx) {
		return PermissionDecision{}, false
	}
	key := buildDecisionKey(ctx, docType, action)
	s.decisionCacheMu.RLock()
	entry, ok := s.decisionCache[key]
	s.decisionCacheMu.RUnlock()
	if !ok {
		return PermissionDecision{}, false
	}
	if s.now().After(entry.ExpiresAt) {
		s.decisionCacheMu.Lock()
		delete(s.decisionCache, key)
		s.decisionCacheMu.Unlock()
		return PermissionDecision{}, false
	}
	return entry.Decision, true
}

func (s *Service) decisionToCache(ctx *AccessContext, docType string, action CrudAction, d PermissionDecision) {
	if s.decisionTTL <= 0 || !cacheableDocument(ctx) {
		return
	}
	key := buildDecisionKey(ctx, docType, action)
	entry := &decisionCacheEntry{Decision: d, ExpiresAt: s.now().Add(s.decisionTTL)}
	s.decisionCacheMu.Lock()
	s.decisionCache[key] = entry
	s.decisionCacheMu.Unlock()
}

// InvalidateDecisionCaches flushes both decision caches. Every registry
// replace calls this, so a cached decision can never outlive the snapshot it
// was computed against by more than the TTL.
func (s *Service) InvalidateDecisionCaches() {
	s.decisionCacheMu.Lock()
	for k := range s.decisionCache {
		delete(s.decisionCache, k)
	}
	s.decisionCacheMu.Unlock()
	if s.fieldCache != nil {
		s.fieldCache.Clear()
	}
}

// newFieldCache builds the optional ristretto-backed field-decision cache.
func newFieldCache(numCounters, maxCost, bufferItems int64) (*ristretto.Cache, error) {
	return ristretto.NewCache(&ristretto.Config{
		NumCounters: numCounters,
		MaxCost:     maxCost,
		BufferItems: bufferItems,
	})
}

// fieldCacheKey flattens the identifying parts of a field lookup. Ristretto
// hashes strings natively; NUL separators keep distinct tuples from
// colliding.
func fieldCacheKey(ctx *AccessContext, docType, field string) string {
	docID := ""
	if ctx.Document != nil {
		docID = ctx.Document.ID
	}
	return strings.Join([]string{ctx.User.ID, docType, field, docID}, "\x00")
}

func (s *Service) fieldFromCache(ctx *AccessContext, docType, field string) (FieldAccess, bool) {
	if s.fieldCache == nil || !cacheableDocument(ctx) {
		return FieldAccess{}, false
	}
	v, ok := s.fieldCache.Get(fieldCacheKey(ctx, docType, field))
	if !ok {
		return FieldAccess{}, false
	}
	fa, ok := v.(FieldAccess)
	return fa, ok
}

func (s *Service) fieldToCache(ctx *AccessContext, docType, field string, fa FieldAccess) {
	if s.fieldCache == nil || !cacheableDocument(ctx) {
		return
	}
	s.fieldCache.SetWithTTL(fieldCacheKey(ctx, docType, field), fa, 1, s.fieldCacheTTL)
}
