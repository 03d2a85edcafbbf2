package retention

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/cloudsmiths/idman/pkg/events"
	"github.com/cloudsmiths/idman/pkg/log"
	"github.com/cloudsmiths/idman/pkg/metrics"
	"github.com/cloudsmiths/idman/pkg/storage"
	"github.com/cloudsmiths/idman/pkg/types"
)

// Period is one of the four retention age buckets
type Period string

const (
	PeriodDaily   Period = "daily"
	PeriodWeekly  Period = "weekly"
	PeriodMonthly Period = "monthly"
	PeriodYearly  Period = "yearly"
)

// Periods lists the buckets in age order
var Periods = []Period{PeriodDaily, PeriodWeekly, PeriodMonthly, PeriodYearly}

// Categorise maps a backup age to its retention period
func Categorise(age time.Duration) Period {
	switch {
	case age <= 24*time.Hour:
		return PeriodDaily
	case age <= 7*24*time.Hour:
		return PeriodWeekly
	case age <= 30*24*time.Hour:
		return PeriodMonthly
	default:
		return PeriodYearly
	}
}

// EnforceResult reports one enforcement pass
type EnforceResult struct {
	Success    bool     `json:"success"`
	DryRun     bool     `json:"dry_run"`
	Deleted    []string `json:"deleted,omitempty"`
	FreedBytes int64    `json:"freed_bytes"`
	Errors     []string `json:"errors,omitempty"`
	Warnings   []string `json:"warnings,omitempty"`
}

// Engine enforces retention policies over stored backups
type Engine struct {
	store  storage.Store
	broker *events.Broker
}

// New creates a retention engine. The broker may be nil.
func New(store storage.Store, broker *events.Broker) *Engine {
	return &Engine{store: store, broker: broker}
}

func keepFor(policy types.RetentionPolicy, period Period) int {
	switch period {
	case PeriodDaily:
		return policy.KeepDaily
	case PeriodWeekly:
		return policy.KeepWeekly
	case PeriodMonthly:
		return policy.KeepMonthly
	default:
		return policy.KeepYearly
	}
}

// Enforce applies the policy: backups are bucketed by age, each bucket is
// sorted newest-first, the first keep-N survive, the rest are deleted.
// Dry-run returns the deletion plan without touching storage. A single
// failed deletion does not abort the pass.
func (e *Engine) Enforce(ctx context.Context, policy types.RetentionPolicy, dryRun bool) (*EnforceResult, error) {
	logger := log.WithComponent("retention")
	result := &EnforceResult{Success: true, DryRun: dryRun}

	metas, err := e.store.ListBackups(nil)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	buckets := make(map[Period][]types.BackupMetadata)
	for _, m := range metas {
		p := Categorise(now.Sub(m.Timestamp))
		buckets[p] = append(buckets[p], m)
	}

	var doomed []types.BackupMetadata
	for _, period := range Periods {
		bucket := buckets[period]
		sort.Slice(bucket, func(i, j int) bool {
			return bucket[i].Timestamp.After(bucket[j].Timestamp)
		})
		keep := keepFor(policy, period)
		if len(bucket) > keep {
			doomed = append(doomed, bucket[keep:]...)
		}
	}

	for _, m := range doomed {
		if err := ctx.Err(); err != nil {
			result.Success = false
			result.Errors = append(result.Errors, fmt.Sprintf("enforcement cancelled: %v", err))
			break
		}
		result.Deleted = append(result.Deleted, m.BackupID)
		result.FreedBytes += m.SizeBytes
		if dryRun {
			continue
		}
		existed, err := e.store.DeleteBackup(m.BackupID)
		if err != nil {
			result.Success = false
			result.Errors = append(result.Errors, fmt.Sprintf("failed to delete backup %s: %v", m.BackupID, err))
			continue
		}
		if !existed {
			result.Warnings = append(result.Warnings, fmt.Sprintf("backup %s disappeared before deletion", m.BackupID))
			continue
		}
		metrics.RetentionDeletionsTotal.Inc()
	}

	if !dryRun && e.broker != nil {
		e.broker.Publish(&events.Event{
			Type:    events.EventRetentionEnforced,
			Message: fmt.Sprintf("retention pass deleted %d backups", len(result.Deleted)),
			Metadata: map[string]string{
				"deleted":     strconv.Itoa(len(result.Deleted)),
				"freed_bytes": strconv.FormatInt(result.FreedBytes, 10),
			},
		})
	}

	logger.Info().
		Bool("dry_run", dryRun).
		Int("deleted", len(result.Deleted)).
		Int64("freed_bytes", result.FreedBytes).
		Int("errors", len(result.Errors)).
		Msg("Retention enforcement finished")
	return result, nil
}

// Usage aggregates storage consumption over all stored backups
func (e *Engine) Usage() (*types.StorageUsage, error) {
	metas, err := e.store.ListBackups(nil)
	if err != nil {
		return nil, err
	}

	usage := &types.StorageUsage{
		SizeByPeriod:  make(map[string]int64),
		CountByPeriod: make(map[string]int),
	}
	now := time.Now()
	for _, m := range metas {
		p := string(Categorise(now.Sub(m.Timestamp)))
		usage.TotalSizeBytes += m.SizeBytes
		usage.TotalCount++
		usage.SizeByPeriod[p] += m.SizeBytes
		usage.CountByPeriod[p]++
		if usage.OldestBackup.IsZero() || m.Timestamp.Before(usage.OldestBackup) {
			usage.OldestBackup = m.Timestamp
		}
		if m.Timestamp.After(usage.NewestBackup) {
			usage.NewestBackup = m.Timestamp
		}
	}
	return usage, nil
}

// CheckLimits evaluates usage against configured limits. Size thresholds
// are percentage-based; a count at 90% of max is a warning and at the max
// a critical.
func CheckLimits(usage *types.StorageUsage, limit types.StorageLimit) []types.StorageAlert {
	var alerts []types.StorageAlert

	if limit.MaxSizeBytes > 0 {
		pct := float64(usage.TotalSizeBytes) / float64(limit.MaxSizeBytes) * 100
		switch {
		case limit.CriticalThreshold > 0 && pct >= limit.CriticalThreshold:
			alerts = append(alerts, types.StorageAlert{
				Level:             types.AlertCritical,
				Message:           fmt.Sprintf("storage size at %.1f%% of limit", pct),
				RecommendedAction: "delete old backups or raise the size limit",
			})
		case limit.WarningThreshold > 0 && pct >= limit.WarningThreshold:
			alerts = append(alerts, types.StorageAlert{
				Level:             types.AlertWarning,
				Message:           fmt.Sprintf("storage size at %.1f%% of limit", pct),
				RecommendedAction: "review retention policy before the limit is reached",
			})
		}
	}

	if limit.MaxCount > 0 {
		switch {
		case usage.TotalCount >= limit.MaxCount:
			alerts = append(alerts, types.StorageAlert{
				Level:             types.AlertCritical,
				Message:           fmt.Sprintf("backup count %d reached the limit of %d", usage.TotalCount, limit.MaxCount),
				RecommendedAction: "run retention enforcement now",
			})
		case float64(usage.TotalCount) >= 0.9*float64(limit.MaxCount):
			alerts = append(alerts, types.StorageAlert{
				Level:             types.AlertWarning,
				Message:           fmt.Sprintf("backup count %d approaching the limit of %d", usage.TotalCount, limit.MaxCount),
				RecommendedAction: "schedule retention enforcement",
			})
		}
	}
	return alerts
}

// Recommendations suggests policy adjustments from current usage and alerts
func Recommendations(policy types.RetentionPolicy, usage *types.StorageUsage, alerts []types.StorageAlert) []string {
	var out []string
	if daily := usage.CountByPeriod[string(PeriodDaily)]; policy.KeepDaily > 0 &&
		float64(daily) > 1.5*float64(policy.KeepDaily) {
		out = append(out, fmt.Sprintf("daily backups (%d) exceed 1.5x the keep-daily setting (%d); consider reducing daily retention", daily, policy.KeepDaily))
	}
	for _, a := range alerts {
		if a.Level == types.AlertCritical {
			out = append(out, "storage is at a critical threshold; run cleanup immediately")
			break
		}
	}
	if yearly := usage.CountByPeriod[string(PeriodYearly)]; policy.KeepYearly > 0 &&
		yearly > 2*policy.KeepYearly {
		out = append(out, fmt.Sprintf("yearly backups (%d) exceed 2x the keep-yearly setting (%d); consider archiving to cold storage", yearly, policy.KeepYearly))
	}
	return out
}
