package orphan

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/cloudsmiths/idman/pkg/directory"
	"github.com/cloudsmiths/idman/pkg/log"
	"github.com/cloudsmiths/idman/pkg/types"
)

// DefaultCacheTTL bounds how long a detection result is reused
const DefaultCacheTTL = time.Hour

// OrphanedAssignment is an assignment whose principal no longer exists
type OrphanedAssignment struct {
	Assignment types.Assignment `json:"assignment"`
	Reason     string           `json:"reason"`
	DetectedAt time.Time        `json:"detected_at"`
}

// cacheFile is the on-disk detection result
type cacheFile struct {
	Timestamp time.Time            `json:"timestamp"`
	Profile   string               `json:"profile"`
	Orphaned  []OrphanedAssignment `json:"orphaned_assignments"`
}

// Detector finds assignments pointing at deleted principals. Results are
// cached on disk per profile so repeated status commands within the TTL
// skip the directory sweep.
type Detector struct {
	client   directory.Client
	profile  string
	cacheTTL time.Duration
	cacheDir string
}

// New creates a detector. A non-positive ttl selects the default.
func New(client directory.Client, profile string, ttl time.Duration) *Detector {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &Detector{
		client:   client,
		profile:  profile,
		cacheTTL: ttl,
		cacheDir: filepath.Join(os.TempDir(), "idman", "orphaned_cleanup"),
	}
}

func (d *Detector) cachePath() string {
	return filepath.Join(d.cacheDir, d.profile+"_orphaned_assignments.json")
}

// Detect sweeps all assignments and reports those whose principal does not
// resolve. A fresh cached result is returned without touching the
// directory; pass force to bypass the cache.
func (d *Detector) Detect(ctx context.Context, force bool) ([]OrphanedAssignment, error) {
	logger := log.WithComponent("orphan-detector")

	if !force {
		if cached, ok := d.readCache(); ok {
			logger.Debug().Int("orphaned", len(cached)).Msg("Using cached detection result")
			return cached, nil
		}
	}

	assignments, err := d.client.ListAllAssignments(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list assignments: %w", err)
	}
	users, err := d.client.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	groups, err := d.client.ListGroups(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list groups: %w", err)
	}

	userIDs := make(map[string]bool, len(users))
	for _, u := range users {
		userIDs[u.ID] = true
	}
	groupIDs := make(map[string]bool, len(groups))
	for _, g := range groups {
		groupIDs[g.ID] = true
	}

	now := time.Now().UTC()
	var orphaned []OrphanedAssignment
	for _, a := range assignments {
		exists := false
		switch a.PrincipalType {
		case types.PrincipalUser:
			exists = userIDs[a.PrincipalID]
		case types.PrincipalGroup:
			exists = groupIDs[a.PrincipalID]
		}
		if !exists {
			orphaned = append(orphaned, OrphanedAssignment{
				Assignment: a,
				Reason:     fmt.Sprintf("%s %s no longer exists", a.PrincipalType, a.PrincipalID),
				DetectedAt: now,
			})
		}
	}

	if err := d.writeCache(orphaned); err != nil {
		logger.Warn().Err(err).Msg("Failed to write detection cache")
	}
	logger.Info().
		Int("assignments", len(assignments)).
		Int("orphaned", len(orphaned)).
		Msg("Orphan detection complete")
	return orphaned, nil
}

// InvalidateCache removes the cached result for this profile
func (d *Detector) InvalidateCache() error {
	err := os.Remove(d.cachePath())
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func (d *Detector) readCache() ([]OrphanedAssignment, bool) {
	raw, err := os.ReadFile(d.cachePath())
	if err != nil {
		return nil, false
	}
	var cached cacheFile
	if err := json.Unmarshal(raw, &cached); err != nil {
		return nil, false
	}
	if cached.Profile != d.profile {
		return nil, false
	}
	if time.Since(cached.Timestamp) > d.cacheTTL {
		// Stale entries are removed so the directory never fills up
		os.Remove(d.cachePath())
		return nil, false
	}
	return cached.Orphaned, true
}

func (d *Detector) writeCache(orphaned []OrphanedAssignment) error {
	if err := os.MkdirAll(d.cacheDir, 0o755); err != nil {
		return err
	}
	raw, err := json.MarshalIndent(cacheFile{
		Timestamp: time.Now().UTC(),
		Profile:   d.profile,
		Orphaned:  orphaned,
	}, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(d.cachePath(), raw, 0o600)
}
