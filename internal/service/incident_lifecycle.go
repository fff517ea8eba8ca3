package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/steward-api/internal/models"
	"github.com/noah-isme/steward-api/internal/observability"
	"github.com/noah-isme/steward-api/internal/repository"
)

const (
	autoCloseAfter   = 7 * 24 * time.Hour
	autoArchiveAfter = 2 * 24 * time.Hour
)

// SweepResult counts the incidents advanced by one sweep.
type SweepResult struct {
	Closed   int `json:"closed"`
	Archived int `json:"archived"`
}

// IncidentLifecycle is the LifecycleScheduler: time-based incident transitions.
type IncidentLifecycle interface {
	Sweep(ctx context.Context, orgID string) (SweepResult, error)
	Start(ctx context.Context, interval time.Duration)
}

type incidentLifecycle struct {
	store    repository.Store
	activity ActivityRecorder
	logger   zerolog.Logger
	tracer   trace.Tracer
	now      func() time.Time
}

// NewIncidentLifecycle constructs the lifecycle scheduler.
func NewIncidentLifecycle(store repository.Store, activity ActivityRecorder, logger zerolog.Logger) IncidentLifecycle {
	return &incidentLifecycle{
		store:    store,
		activity: activity,
		logger:   logger.With().Str("component", "incident_lifecycle").Logger(),
		tracer:   otel.Tracer("github.com/noah-isme/steward-api/internal/service/lifecycle"),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Sweep closes incidents resolved for more than seven days and archives
// incidents closed for more than two days. Running it again is a no-op.
func (l *incidentLifecycle) Sweep(ctx context.Context, orgID string) (SweepResult, error) {
	if orgID == "" {
		return SweepResult{}, ErrMissingOrganization
	}

	spanCtx, span := l.tracer.Start(ctx, "incidents.lifecycle_sweep", trace.WithAttributes(
		attribute.String("org_id", orgID),
	))
	defer span.End()

	now := l.now()

	var result SweepResult
	err := atomically(spanCtx, l.store, l.activity, func(tx *Tx) error {
		result = SweepResult{}

		resolved, err := tx.Incidents().ListStale(spanCtx, orgID, models.IncidentStatusResolved, now.Add(-autoCloseAfter))
		if err != nil {
			return storageFailure("list resolved incidents", err)
		}
		for _, incident := range resolved {
			won, err := tx.Incidents().Transition(spanCtx, orgID, incident.ID, models.IncidentStatusResolved, map[string]interface{}{
				"status":     models.IncidentStatusClosed,
				"updated_at": now,
			})
			if err != nil {
				return storageFailure("close incident", err)
			}
			if !won {
				continue
			}

			if _, err := l.activity.Record(spanCtx, tx, ActivityEntry{
				OrgID:     orgID,
				AssetID:   incident.AssetID,
				AssetName: incidentAssetName(incident),
				ActorID:   models.SystemActorID,
				EventType: models.EventIncidentClosed,
				Details: map[string]interface{}{
					"incident_id":     incident.ID,
					"previous_status": string(models.IncidentStatusResolved),
					"new_status":      string(models.IncidentStatusClosed),
					"reason":          "Automated lifecycle: Resolved for more than 7 days",
				},
			}); err != nil {
				return err
			}
			result.Closed++
		}

		closed, err := tx.Incidents().ListStale(spanCtx, orgID, models.IncidentStatusClosed, now.Add(-autoArchiveAfter))
		if err != nil {
			return storageFailure("list closed incidents", err)
		}
		for _, incident := range closed {
			won, err := tx.Incidents().Transition(spanCtx, orgID, incident.ID, models.IncidentStatusClosed, map[string]interface{}{
				"is_archived": true,
				"updated_at":  now,
			})
			if err != nil {
				return storageFailure("archive incident", err)
			}
			if !won {
				continue
			}

			if _, err := l.activity.Record(spanCtx, tx, ActivityEntry{
				OrgID:     orgID,
				AssetID:   incident.AssetID,
				AssetName: incidentAssetName(incident),
				ActorID:   models.SystemActorID,
				EventType: models.EventIncidentArchived,
				Details: map[string]interface{}{
					"incident_id": incident.ID,
					"reason":      "Automated lifecycle: Closed for more than 2 days",
				},
			}); err != nil {
				return err
			}
			result.Archived++
		}

		if result.Closed > 0 {
			tx.afterCommit(func() {
				observability.LifecycleTransitions().WithLabelValues("closed").Add(float64(result.Closed))
			})
		}
		if result.Archived > 0 {
			tx.afterCommit(func() {
				observability.LifecycleTransitions().WithLabelValues("archived").Add(float64(result.Archived))
			})
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return SweepResult{}, err
	}

	span.SetAttributes(
		attribute.Int("lifecycle.closed", result.Closed),
		attribute.Int("lifecycle.archived", result.Archived),
	)
	return result, nil
}

// Start sweeps every tenant with pending incidents on each tick until ctx is done.
func (l *incidentLifecycle) Start(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				l.sweepAll(ctx)
			}
		}
	}()
}

func (l *incidentLifecycle) sweepAll(ctx context.Context) {
	orgIDs, err := l.store.Incidents().ListOrgsWithPendingLifecycle(ctx)
	if err != nil {
		l.logger.Error().Err(err).Msg("failed to list tenants for lifecycle sweep")
		return
	}

	for _, orgID := range orgIDs {
		result, err := l.Sweep(ctx, orgID)
		if err != nil {
			l.logger.Error().Err(err).Str("org_id", orgID).Msg("lifecycle sweep failed")
			continue
		}
		if result.Closed > 0 || result.Archived > 0 {
			l.logger.Info().
				Str("org_id", orgID).
				Int("closed", result.Closed).
				Int("archived", result.Archived).
				Msg("lifecycle sweep applied")
		}
	}
}

func incidentAssetName(incident models.Incident) string {
	if incident.Asset != nil {
		return incident.Asset.Name
	}
	return fmt.Sprintf("Asset #%d", incident.AssetID)
}
