package access

import (
	"sort"
	"time"

	"github.com/oarkflow/date"
)

// ============================================================================
// ABAC FIELD POLICY ENGINE
// ============================================================================

// policyKey addresses the policies governing one field of one document type.
type policyKey struct {
	DocType string
	Field   string
}

// compiledPolicy is a registry-resident policy with its effective window
// parsed once at load time. seq preserves registration order for the stable
// tie-break between equal priorities.
type compiledPolicy struct {
	policy   *ABACPolicy
	seq      int
	start    time.Time
	end      time.Time
	hasStart bool
	hasEnd   bool
}

func (cp *compiledPolicy) effectiveAt(now time.Time) bool {
	if cp.hasStart && now.Before(cp.start) {
		return false
	}
	if cp.hasEnd && now.After(cp.end) {
		return false
	}
	return true
}

// compilePolicies indexes policies by (docType, field), drops inactive
// entries and entries whose effective bounds fail to parse, and orders each
// bucket by descending priority with registration order breaking ties.
func compilePolicies(policies []*ABACPolicy, warn func(policyID, msg string)) map[policyKey][]*compiledPolicy {
	out := make(map[policyKey][]*compiledPolicy)
	for i, p := range policies {
		if p == nil || !p.IsActive() {
			continue
		}
		cp := &compiledPolicy{policy: p, seq: i}
		if p.Effective != nil {
			var err error
			if p.Effective.Start != "" {
				cp.start, err = date.Parse(p.Effective.Start)
				if err != nil {
					if warn != nil {
						warn(p.ID, "invalid effective start "+p.Effective.Start)
					}
					continue
				}
				cp.hasStart = true
			}
			if p.Effective.End != "" {
				cp.end, err = date.Parse(p.Effective.End)
				if err != nil {
					if warn != nil {
						warn(p.ID, "invalid effective end "+p.Effective.End)
					}
					continue
				}
				cp.hasEnd = true
			}
		}
		k := policyKey{DocType: p.DocType, Field: p.Field}
		out[k] = append(out[k], cp)
	}
	for _, bucket := range out {
		sort.SliceStable(bucket, func(i, j int) bool {
			return bucket[i].policy.Priority > bucket[j].policy.Priority
		})
	}
	return out
}

// EvaluateField resolves read/write access to one field of a document type.
// The highest-priority active policy whose conditions all hold decides the
// outcome; nothing matching denies. A matching none-policy is a decision, not
// an absence, so lower-priority grants never resurrect access it revoked.
func (s *Service) EvaluateField(ctx *AccessContext, docType, field string) FieldAccess {
	if ctx == nil {
		return FieldAccess{}
	}
	if fa, ok := s.fieldFromCache(ctx, docType, field); ok {
		return fa
	}
	fa := s.evaluateFieldUncached(ctx, docType, field)
	s.fieldToCache(ctx, docType, field, fa)
	return fa
}

func (s *Service) evaluateFieldUncached(ctx *AccessContext, docType, field string) FieldAccess {
	snap := s.snapshot()
	bucket := snap.policies[policyKey{DocType: docType, Field: field}]
	if len(bucket) == 0 {
		return FieldAccess{}
	}
	now := s.now()
	for _, cp := range bucket {
		if !cp.effectiveAt(now) {
			continue
		}
		if !evaluateAll(cp.policy.Conditions, ctx) {
			continue
		}
		fa := FieldAccess{
			Source:     cp.policy.Name,
			Conditions: cp.policy.Conditions,
		}
		switch cp.policy.Access {
		case FieldWrite:
			fa.Readable, fa.Writable = true, true
		case FieldRead:
			fa.Readable = true
		case FieldNone:
			// explicit revoke
		default:
			// Unknown outcome stays a deny.
		}
		return fa
	}
	return FieldAccess{}
}

// FilterFields returns the subset of field names the context may see ("read"
// mode) or submit ("write" mode), in input order. Unknown modes filter as
// reads.
func (s *Service) FilterFields(ctx *AccessContext, docType string, fields []string, mode string) []string {
	write := mode == "write"
	out := make([]string, 0, len(fields))
	for _, field := range fields {
		fa := s.EvaluateField(ctx, docType, field)
		if write && fa.Writable || !write && fa.Readable {
			out = append(out, field)
		}
	}
	return out
}

// FilterFieldData strips a record's values down to the permitted fields, with
// the same mode semantics as FilterFields.
func (s *Service) FilterFieldData(ctx *AccessContext, docType string, data map[string]any, mode string) map[string]any {
	out := make(map[string]any, len(data))
	write := mode == "write"
	for field, v := range data {
		fa := s.EvaluateField(ctx, docType, field)
		if write && fa.Writable || !write && fa.Readable {
			out[field] = v
		}
	}
	return out
}

// FilterActions keeps the actions the context's roles permit on a document
// type. CRUD aliases (view, edit, remove) resolve to their canonical action;
// names outside the CRUD vocabulary pass through untouched, since they are
// gated elsewhere.
func (s *Service) FilterActions(ctx *AccessContext, docType string, actions []string) []string {
	out := make([]string, 0, len(actions))
	for _, name := range actions {
		crud, ok := NormalizeAction(name)
		if !ok {
			out = append(out, name)
			continue
		}
		if s.CheckPermission(ctx, docType, crud).Allowed {
			out = append(out, name)
		}
	}
	return out
}
