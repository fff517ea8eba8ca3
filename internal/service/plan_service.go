package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/noah-isme/steward-api/internal/cache"
	"github.com/noah-isme/steward-api/internal/dto"
	"github.com/noah-isme/steward-api/internal/observability"
	"github.com/noah-isme/steward-api/internal/repository"
)

// PlanTier names a bundle of limits.
type PlanTier string

const (
	PlanStarter PlanTier = "starter"
	PlanPro     PlanTier = "pro"
)

// Resource names a quota-limited quantity.
type Resource string

const (
	ResourceAssets Resource = "assets"
	ResourcePeople Resource = "people"
)

// Unlimited marks a limit that never blocks.
const Unlimited = -1

// PlanLimits describes what a tier allows.
type PlanLimits struct {
	MaxAssets            int
	MaxPeople            int
	HistoryDays          int
	HasPhotos            bool
	HasAdvancedReporting bool
}

var planLimits = map[PlanTier]PlanLimits{
	PlanStarter: {
		MaxAssets:   100,
		MaxPeople:   25,
		HistoryDays: 30,
	},
	PlanPro: {
		MaxAssets:            Unlimited,
		MaxPeople:            Unlimited,
		HistoryDays:          Unlimited,
		HasPhotos:            true,
		HasAdvancedReporting: true,
	},
}

// BillingProvider resolves a tenant's subscription from the external billing system.
type BillingProvider interface {
	PlanID(ctx context.Context, orgID string) (string, error)
	MemberCount(ctx context.Context, orgID string) (int, error)
}

// PlanCatalog maps provider plan ids to tiers. Tenants without a plan id are Starter.
type PlanCatalog struct {
	ProPlanIDs     []string
	StarterPlanIDs []string
}

// PlanService is the PlanLimiter: tier lookup, quotas and history windows.
type PlanService interface {
	Tier(ctx context.Context, orgID string) PlanTier
	Limits(tier PlanTier) PlanLimits
	CheckQuota(tier PlanTier, resource Resource, current int64) error
	HistoryCutoff(ctx context.Context, orgID string, now time.Time) *time.Time
	Summary(ctx context.Context, actor Actor) (dto.PlanResponse, error)
}

type planService struct {
	billing  BillingProvider
	assets   repository.AssetRepository
	cache    *cache.Store
	catalog  PlanCatalog
	cacheTTL time.Duration
	logger   zerolog.Logger
}

// NewPlanService constructs the plan limiter. billing may be nil, in which case
// every tenant is treated as Starter.
func NewPlanService(billing BillingProvider, assets repository.AssetRepository, store *cache.Store, catalog PlanCatalog, cacheTTL time.Duration, logger zerolog.Logger) PlanService {
	return &planService{
		billing:  billing,
		assets:   assets,
		cache:    store,
		catalog:  catalog,
		cacheTTL: cacheTTL,
		logger:   logger.With().Str("component", "plan_service").Logger(),
	}
}

var errBillingNotConfigured = fmt.Errorf("billing provider not configured: %w", ErrUpstreamUnavailable)

// Tier never fails: any lookup error degrades to Starter and is not cached.
func (s *planService) Tier(ctx context.Context, orgID string) PlanTier {
	tier, err := s.lookupTier(ctx, orgID)
	if err != nil {
		observability.PlanLookupFailures().Inc()
		s.logger.Warn().Err(err).Str("org_id", orgID).Msg("plan lookup failed, applying starter limits")
		return PlanStarter
	}
	return tier
}

func (s *planService) lookupTier(ctx context.Context, orgID string) (PlanTier, error) {
	if strings.TrimSpace(orgID) == "" {
		return PlanStarter, nil
	}

	key := planCacheKey(orgID)
	if cached, ok := s.cache.GetString(ctx, key); ok {
		switch PlanTier(cached) {
		case PlanStarter, PlanPro:
			return PlanTier(cached), nil
		}
	}

	if s.billing == nil {
		return PlanStarter, errBillingNotConfigured
	}

	planID, err := s.billing.PlanID(ctx, orgID)
	if err != nil {
		return PlanStarter, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}

	tier, err := s.catalog.resolve(planID)
	if err != nil {
		return PlanStarter, err
	}

	if s.cacheTTL > 0 {
		s.cache.SetString(ctx, key, string(tier), s.cacheTTL)
	}
	return tier, nil
}

func (c PlanCatalog) resolve(planID string) (PlanTier, error) {
	planID = strings.TrimSpace(planID)
	if planID == "" {
		return PlanStarter, nil
	}
	for _, id := range c.ProPlanIDs {
		if id == planID {
			return PlanPro, nil
		}
	}
	for _, id := range c.StarterPlanIDs {
		if id == planID {
			return PlanStarter, nil
		}
	}
	return PlanStarter, fmt.Errorf("unknown plan id %q", planID)
}

func (s *planService) Limits(tier PlanTier) PlanLimits {
	if limits, ok := planLimits[tier]; ok {
		return limits
	}
	return planLimits[PlanStarter]
}

func (s *planService) CheckQuota(tier PlanTier, resource Resource, current int64) error {
	limits := s.Limits(tier)

	var limit int
	switch resource {
	case ResourceAssets:
		limit = limits.MaxAssets
	case ResourcePeople:
		limit = limits.MaxPeople
	default:
		return fmt.Errorf("unknown resource %q: %w", resource, ErrValidation)
	}

	if limit == Unlimited {
		return nil
	}
	if current >= int64(limit) {
		return &QuotaExceededError{Resource: resource, Tier: tier, Limit: limit}
	}
	return nil
}

func (s *planService) HistoryCutoff(ctx context.Context, orgID string, now time.Time) *time.Time {
	limits := s.Limits(s.Tier(ctx, orgID))
	if limits.HistoryDays == Unlimited {
		return nil
	}
	cutoff := now.AddDate(0, 0, -limits.HistoryDays)
	return &cutoff
}

func (s *planService) Summary(ctx context.Context, actor Actor) (dto.PlanResponse, error) {
	if err := actor.requireMember(); err != nil {
		return dto.PlanResponse{}, err
	}

	tier := s.Tier(ctx, actor.OrgID)
	limits := s.Limits(tier)

	assets, err := s.assets.Count(ctx, actor.OrgID)
	if err != nil {
		return dto.PlanResponse{}, storageFailure("count assets", err)
	}

	atLimit := make([]string, 0, 2)
	if errors.Is(s.CheckQuota(tier, ResourceAssets, assets), ErrQuotaExceeded) {
		atLimit = append(atLimit, string(ResourceAssets))
	}

	members := 0
	if s.billing != nil {
		count, err := s.billing.MemberCount(ctx, actor.OrgID)
		if err != nil {
			s.logger.Warn().Err(err).Str("org_id", actor.OrgID).Msg("member count unavailable")
		} else {
			members = count
			if errors.Is(s.CheckQuota(tier, ResourcePeople, int64(count)), ErrQuotaExceeded) {
				atLimit = append(atLimit, string(ResourcePeople))
			}
		}
	}

	return dto.PlanResponse{
		Plan:                 string(tier),
		MaxAssets:            limitValue(limits.MaxAssets),
		MaxPeople:            limitValue(limits.MaxPeople),
		HistoryDays:          limitValue(limits.HistoryDays),
		HasPhotos:            limits.HasPhotos,
		HasAdvancedReporting: limits.HasAdvancedReporting,
		Usage: dto.PlanUsage{
			Assets:  assets,
			Members: members,
			AtLimit: atLimit,
		},
	}, nil
}

func limitValue(limit int) *int {
	if limit == Unlimited {
		return nil
	}
	value := limit
	return &value
}

func planCacheKey(orgID string) string {
	return "plan:" + orgID
}
