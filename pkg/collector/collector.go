package collector

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/cloudsmiths/idman/pkg/backup"
	"github.com/cloudsmiths/idman/pkg/directory"
	"github.com/cloudsmiths/idman/pkg/log"
	"github.com/cloudsmiths/idman/pkg/metrics"
	"github.com/cloudsmiths/idman/pkg/types"
)

// Options controls a collection run
type Options struct {
	Type  types.BackupType
	Since time.Time // incremental cutoff, used when Type is INCREMENTAL
}

// ConnectionStatus is the outcome of a connection validation probe
type ConnectionStatus struct {
	Healthy             bool     `json:"healthy"`
	InstanceARN         string   `json:"instance_arn,omitempty"`
	IdentityStoreID     string   `json:"identity_store_id,omitempty"`
	MissingCapabilities []string `json:"missing_capabilities,omitempty"`
}

// Collector snapshots the live identity configuration into a backup graph
type Collector struct {
	client directory.Client
}

// New creates a collector over the given directory client
func New(client directory.Client) *Collector {
	return &Collector{client: client}
}

// ValidateConnection probes the directory with benign read calls and
// reports which capabilities are unavailable.
func (c *Collector) ValidateConnection(ctx context.Context) (*ConnectionStatus, error) {
	status := &ConnectionStatus{Healthy: true}

	instances, err := c.client.ListInstances(ctx)
	if err != nil {
		status.Healthy = false
		status.MissingCapabilities = append(status.MissingCapabilities, "list-instances")
	} else if len(instances) > 0 {
		status.InstanceARN = instances[0].ARN
		status.IdentityStoreID = instances[0].IdentityStoreID
	}

	probes := []struct {
		capability string
		call       func() error
	}{
		{"list-users", func() error { _, err := c.client.ListUsers(ctx); return err }},
		{"list-groups", func() error { _, err := c.client.ListGroups(ctx); return err }},
		{"list-permission-sets", func() error { _, err := c.client.ListPermissionSets(ctx); return err }},
		{"list-accounts", func() error { _, err := c.client.ListAccounts(ctx); return err }},
	}
	for _, p := range probes {
		if err := p.call(); err != nil {
			status.Healthy = false
			status.MissingCapabilities = append(status.MissingCapabilities, p.capability)
		}
	}
	return status, nil
}

// Collect snapshots users, groups, permission sets, and assignments. An
// incremental run keeps only resources modified after Options.Since;
// assignments carry no timestamp so they are always collected in full.
func (c *Collector) Collect(ctx context.Context, opts Options) (*types.BackupData, error) {
	logger := log.WithComponent("collector")
	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.BatchDuration)

	if opts.Type == "" {
		opts.Type = types.BackupFull
	}

	data := &types.BackupData{
		Metadata: types.BackupMetadata{
			Timestamp: time.Now().UTC(),
			Type:      opts.Type,
			Version:   backup.FormatVersion,
		},
	}

	instances, err := c.client.ListInstances(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list instances: %w", err)
	}
	if len(instances) > 0 {
		data.Metadata.SourceInstanceARN = instances[0].ARN
		data.Metadata.SourceAccount = instances[0].AccountID
		data.Metadata.SourceRegion = instances[0].Region
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		users, err := c.client.ListUsers(gctx)
		if err != nil {
			return fmt.Errorf("failed to list users: %w", err)
		}
		data.Users = users
		return nil
	})
	g.Go(func() error {
		groups, err := c.client.ListGroups(gctx)
		if err != nil {
			return fmt.Errorf("failed to list groups: %w", err)
		}
		data.Groups = groups
		return nil
	})
	g.Go(func() error {
		sets, err := c.client.ListPermissionSets(gctx)
		if err != nil {
			return fmt.Errorf("failed to list permission sets: %w", err)
		}
		data.PermissionSets = sets
		return nil
	})
	g.Go(func() error {
		assignments, err := c.client.ListAllAssignments(gctx)
		if err != nil {
			return fmt.Errorf("failed to list assignments: %w", err)
		}
		data.Assignments = assignments
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if opts.Type == types.BackupIncremental && !opts.Since.IsZero() {
		data.Users = filterUsers(data.Users, opts.Since)
		data.Groups = filterGroups(data.Groups, opts.Since)
		data.PermissionSets = filterPermissionSets(data.PermissionSets, opts.Since)
	}

	data.Relationships = backup.BuildRelationships(data)

	logger.Info().
		Str("type", string(opts.Type)).
		Int("users", len(data.Users)).
		Int("groups", len(data.Groups)).
		Int("permission_sets", len(data.PermissionSets)).
		Int("assignments", len(data.Assignments)).
		Msg("Collection complete")
	return data, nil
}

// CollectCrossAccount fans out one collection per cross-account config and
// returns the per-account snapshots. A failure in one account does not stop
// the others; failures come back in the error map.
func CollectCrossAccount(ctx context.Context, factory directory.Factory, configs []types.CrossAccountConfig, opts Options) (map[string]*types.BackupData, map[string]error) {
	var mu sync.Mutex
	results := make(map[string]*types.BackupData, len(configs))
	failures := make(map[string]error)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for _, cfg := range configs {
		g.Go(func() error {
			client, err := factory.ClientFor(gctx, cfg)
			if err != nil {
				mu.Lock()
				failures[cfg.AccountID] = fmt.Errorf("failed to build client for account %s: %w", cfg.AccountID, err)
				mu.Unlock()
				return nil
			}
			data, err := New(client).Collect(gctx, opts)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failures[cfg.AccountID] = err
				return nil
			}
			results[cfg.AccountID] = data
			return nil
		})
	}
	g.Wait()
	return results, failures
}

func filterUsers(users []types.User, since time.Time) []types.User {
	out := users[:0]
	for _, u := range users {
		if u.UpdatedAt.After(since) {
			out = append(out, u)
		}
	}
	return out
}

func filterGroups(groups []types.Group, since time.Time) []types.Group {
	out := groups[:0]
	for _, g := range groups {
		if g.UpdatedAt.After(since) {
			out = append(out, g)
		}
	}
	return out
}

func filterPermissionSets(sets []types.PermissionSet, since time.Time) []types.PermissionSet {
	out := sets[:0]
	for _, ps := range sets {
		if ps.UpdatedAt.After(since) {
			out = append(out, ps)
		}
	}
	return out
}
