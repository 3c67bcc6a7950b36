package access

import (
	"regexp"
	"strings"
	"sync"
)

// ============================================================================
// CONDITION EVALUATOR
// ============================================================================

// regexCache holds compile results (including failures) so repeated
// evaluation of the same pattern compiles once. Entries are *regexp.Regexp
// or nil for patterns that failed to compile.
var regexCache sync.Map

func compiledRegex(pattern string) *regexp.Regexp {
	if v, ok := regexCache.Load(pattern); ok {
		re, _ := v.(*regexp.Regexp)
		return re
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		re = nil
	}
	regexCache.Store(pattern, re)
	return re
}

// EvaluateCondition evaluates one condition node against a context. It never
// panics or errors: anything malformed (unknown operator, incomparable
// types, invalid regex) evaluates to false, so evaluation faults can only
// narrow access. A node carrying sub-conditions combines their results with
// its Logic ("and" unless set to "or"); when the node also names an
// attribute, its own comparison joins the children under the same logic.
func EvaluateCondition(c *ABACCondition, ctx *AccessContext) bool {
	if c == nil {
		return true
	}
	hasOwn := c.Attribute != "" || c.Operator != ""
	own := true
	if hasOwn {
		own = evaluateComparison(c, ctx)
	}
	if len(c.Conditions) == 0 {
		return own
	}
	or := strings.EqualFold(c.Logic, "or")
	group := evaluateGroup(c.Conditions, ctx, or)
	if !hasOwn {
		return group
	}
	if or {
		return own || group
	}
	return own && group
}

func evaluateGroup(conds []*ABACCondition, ctx *AccessContext, or bool) bool {
	for _, sub := range conds {
		res := EvaluateCondition(sub, ctx)
		if or && res {
			return true
		}
		if !or && !res {
			return false
		}
	}
	return !or
}

// evaluateAll applies a policy's top-level conditions, which are always
// ANDed. An empty condition list matches unconditionally.
func evaluateAll(conds []*ABACCondition, ctx *AccessContext) bool {
	for _, c := range conds {
		if !EvaluateCondition(c, ctx) {
			return false
		}
	}
	return true
}

func evaluateComparison(c *ABACCondition, ctx *AccessContext) bool {
	val := resolveAttribute(ctx, c.Attribute)
	want := ValueOf(c.Value)

	switch c.Operator {
	case OpNe:
		// A missing attribute differs from any concrete value.
		if val.IsUndefined() {
			return true
		}
		return !val.Equal(want)
	case OpNotIn:
		if val.IsUndefined() {
			return true
		}
		if !want.IsList() {
			return false
		}
		return !want.ContainsElement(val)
	}

	// Every remaining operator treats a missing attribute as non-matching.
	if val.IsUndefined() {
		return false
	}

	switch c.Operator {
	case OpEq:
		return val.Equal(want)
	case OpGt:
		cmp, ok := val.Compare(want)
		return ok && cmp > 0
	case OpLt:
		cmp, ok := val.Compare(want)
		return ok && cmp < 0
	case OpGte:
		cmp, ok := val.Compare(want)
		return ok && cmp >= 0
	case OpLte:
		cmp, ok := val.Compare(want)
		return ok && cmp <= 0
	case OpIn:
		if !want.IsList() {
			return false
		}
		return want.ContainsElement(val)
	case OpContains:
		return strings.Contains(val.Text(), want.Text())
	case OpStartsWith:
		return strings.HasPrefix(val.Text(), want.Text())
	case OpEndsWith:
		return strings.HasSuffix(val.Text(), want.Text())
	case OpRegex:
		re := compiledRegex(want.Text())
		if re == nil {
			return false
		}
		return re.MatchString(val.Text())
	default:
		// Unknown operator: deny rather than guess.
		return false
	}
}

// resolveAttribute looks up a dotted attribute path. "user." paths consult
// the user's attribute bag before the well-known identity fields; "document."
// and "record." paths consult the document data bag before its well-known
// fields; unprefixed names read the context metadata bag. Empty well-known
// fields resolve to undefined, not to the empty string, so absence can never
// satisfy an equality against another absence.
func resolveAttribute(ctx *AccessContext, attr string) Value {
	if ctx == nil || attr == "" {
		return Undefined()
	}
	switch {
	case strings.HasPrefix(attr, "user."):
		return resolveUserAttr(&ctx.User, attr[len("user."):])
	case strings.HasPrefix(attr, "document."):
		return resolveDocumentAttr(ctx.Document, attr[len("document."):])
	case strings.HasPrefix(attr, "record."):
		return resolveDocumentAttr(ctx.Document, attr[len("record."):])
	default:
		if v, ok := ctx.Metadata[attr]; ok {
			return ValueOf(v)
		}
		return Undefined()
	}
}

func resolveUserAttr(u *User, path string) Value {
	if v, ok := u.Attributes[path]; ok {
		return ValueOf(v)
	}
	switch path {
	case "id":
		return textOrUndefined(u.ID)
	case "roles":
		if len(u.Roles) == 0 {
			return Undefined()
		}
		return ValueOf(u.Roles)
	case "department":
		return textOrUndefined(u.Department)
	case "team":
		return textOrUndefined(u.Team)
	}
	return Undefined()
}

func resolveDocumentAttr(d *Document, path string) Value {
	if d == nil {
		return Undefined()
	}
	if v, ok := d.Data[path]; ok {
		return ValueOf(v)
	}
	switch path {
	case "id":
		return textOrUndefined(d.ID)
	case "type":
		return textOrUndefined(d.Type)
	case "owner":
		return textOrUndefined(d.Owner)
	case "team":
		return textOrUndefined(d.Team)
	case "department":
		return textOrUndefined(d.Department)
	case "state":
		return textOrUndefined(d.State)
	}
	return Undefined()
}

func textOrUndefined(s string) Value {
	if s == "" {
		return Undefined()
	}
	return StringValue(s)
}
