package access

import (
	"github.com/dhool/access/utils"
)

// ============================================================================
// SUBSCRIPTION GATE
// ============================================================================

// CheckSubscription reports whether the context's subscription unlocks a
// module, and optionally one or more of its features. The gate is a chain of
// independent guards, each able to deny on its own: the subscription must be
// active, the plan must list the module, every requested feature must be in
// the plan's feature set, and no plan limit with recorded usage may be
// reached. Plan entries may be wildcard patterns ("finance.*").
func (s *Service) CheckSubscription(ctx *AccessContext, moduleID string, features ...string) bool {
	if ctx == nil {
		return false
	}
	sub := &ctx.Subscription
	if sub.Plan == nil || sub.Status != StatusActive {
		return false
	}
	if !utils.MatchAny(moduleID, sub.Plan.Modules) {
		return false
	}
	for _, f := range features {
		if !utils.MatchAny(f, sub.Plan.Features) {
			return false
		}
	}
	for name, limit := range sub.Plan.Limits {
		if limit <= 0 {
			continue
		}
		if used, ok := sub.Usage[name]; ok && used >= limit {
			return false
		}
	}
	return true
}

// HasModuleAccess layers the per-module configuration over the subscription
// gate. A module config can switch a module off outright or demand a minimum
// plan tier and specific features beyond plain plan membership; a module with
// no config is governed by the subscription alone.
func (s *Service) HasModuleAccess(ctx *AccessContext, moduleID string) bool {
	if !s.CheckSubscription(ctx, moduleID) {
		return false
	}
	mod, ok := s.snapshot().modules[moduleID]
	if !ok {
		return true
	}
	if !mod.Available {
		return false
	}
	if req := mod.Requirements; req != nil {
		if req.MinTier != "" && ctx.Subscription.Plan.Tier.Level() < req.MinTier.Level() {
			return false
		}
		for _, f := range req.Features {
			if !utils.MatchAny(f, ctx.Subscription.Plan.Features) {
				return false
			}
		}
	}
	return true
}

// ModuleFeatureEnabled checks one feature of a module: the subscription must
// grant the pair, and the module config may veto the feature with an explicit
// false toggle.
func (s *Service) ModuleFeatureEnabled(ctx *AccessContext, moduleID, feature string) bool {
	if !s.CheckSubscription(ctx, moduleID, feature) {
		return false
	}
	mod, ok := s.snapshot().modules[moduleID]
	if !ok {
		return true
	}
	if !mod.Available {
		return false
	}
	if enabled, set := mod.Features[feature]; set {
		return enabled
	}
	return true
}

// ModuleLimit resolves the effective ceiling for a named resource: a module
// config override wins over the plan limit. ok is false when neither
// declares one.
func (s *Service) ModuleLimit(ctx *AccessContext, moduleID, resource string) (int64, bool) {
	if mod, found := s.snapshot().modules[moduleID]; found {
		if limit, set := mod.Limits[resource]; set {
			return limit, true
		}
	}
	if ctx != nil && ctx.Subscription.Plan != nil {
		if limit, set := ctx.Subscription.Plan.Limits[resource]; set {
			return limit, true
		}
	}
	return 0, false
}
