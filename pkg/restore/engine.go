package restore

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/cloudsmiths/idman/pkg/backup"
	"github.com/cloudsmiths/idman/pkg/directory"
	"github.com/cloudsmiths/idman/pkg/errdefs"
	"github.com/cloudsmiths/idman/pkg/events"
	"github.com/cloudsmiths/idman/pkg/log"
	"github.com/cloudsmiths/idman/pkg/metrics"
	"github.com/cloudsmiths/idman/pkg/storage"
	"github.com/cloudsmiths/idman/pkg/types"
)

// Options controls a restore run
type Options struct {
	TargetResources   []types.ResourceKind
	Strategy          types.ConflictStrategy
	DryRun            bool
	TargetInstanceARN string
	Mappings          *types.ResourceMappings
	SkipValidation    bool
	OperationID       string
	MaxConcurrent     int
	PerItemTimeout    time.Duration
	RetryPolicy       *errdefs.RetryPolicy
}

func (o Options) withDefaults() Options {
	if o.Strategy == "" {
		o.Strategy = types.ConflictPrompt
	}
	if o.MaxConcurrent <= 0 {
		o.MaxConcurrent = 10
	}
	if o.PerItemTimeout <= 0 {
		o.PerItemTimeout = 60 * time.Second
	}
	if len(o.TargetResources) == 0 {
		o.TargetResources = []types.ResourceKind{types.KindAll}
	}
	if o.RetryPolicy == nil {
		p := errdefs.DefaultRetryPolicy()
		o.RetryPolicy = &p
	}
	return o
}

func (o Options) targets(kind types.ResourceKind) bool {
	for _, t := range o.TargetResources {
		if t == types.KindAll || t == kind {
			return true
		}
	}
	return false
}

// RollbackResult summarises a rollback pass
type RollbackResult struct {
	Success  bool   `json:"success"`
	Reverted int    `json:"reverted"`
	Message  string `json:"message"`
}

// Result is the outcome of a restore run
type Result struct {
	OperationID string                `json:"operation_id"`
	BackupID    string                `json:"backup_id"`
	Success     bool                  `json:"success"`
	DryRun      bool                  `json:"dry_run"`
	Changes     []types.AppliedChange `json:"changes"`
	Warnings    []string              `json:"warnings,omitempty"`
	Errors      []string              `json:"errors,omitempty"`
	Rollback    *RollbackResult       `json:"rollback,omitempty"`
	Duration    time.Duration         `json:"duration"`
}

// PreviewResult reports what a restore would do, without writing
type PreviewResult struct {
	BackupID  string                 `json:"backup_id"`
	ToRestore types.ResourceCounts   `json:"to_restore"`
	Existing  types.ResourceCounts   `json:"existing"`
	Strategy  types.ConflictStrategy `json:"strategy"`
	Warnings  []string               `json:"warnings,omitempty"`
}

// Engine replays stored backups into a live instance
type Engine struct {
	store    storage.Store
	client   directory.Client
	broker   *events.Broker
	registry *Registry
	prompter Prompter
}

// New creates a restore engine. The broker may be nil.
func New(store storage.Store, client directory.Client, broker *events.Broker) *Engine {
	return &Engine{
		store:    store,
		client:   client,
		broker:   broker,
		registry: NewRegistry(DefaultRetainWindow),
	}
}

// SetPrompter installs an interactive conflict prompter
func (e *Engine) SetPrompter(p Prompter) { e.prompter = p }

// Registry exposes the operation registry for status queries
func (e *Engine) Registry() *Registry { return e.registry }

// Close stops the background reaper
func (e *Engine) Close() { e.registry.Stop() }

// run carries the mutable state of one restore pass. The journal and
// result slices are appended under mu; phases themselves are strictly
// sequential.
type run struct {
	engine *Engine
	data   *types.BackupData
	opts   Options
	state  *types.OperationState
	result *Result

	decisions *decisionCache
	mu        sync.Mutex
}

type phase struct {
	name string
	kind types.ResourceKind
	fn   func(context.Context) error
}

// Restore replays the identified backup. Phases run in dependency order;
// a phase failure triggers a reverse-order rollback of everything applied
// so far. Per-item failures are errors, not panics: the returned Result
// carries them and Success reflects the outcome.
func (e *Engine) Restore(ctx context.Context, backupID string, opts Options) (*Result, error) {
	opts = opts.withDefaults()
	logger := log.WithComponent("restore").With().Str("backup_id", backupID).Logger()
	start := time.Now()

	data, err := e.store.RetrieveBackup(backupID)
	if err != nil {
		return nil, err
	}
	ok, err := backup.Verify(data)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errdefs.New(errdefs.KindStorage, errdefs.CodeIntegrity,
			fmt.Sprintf("backup %s failed integrity verification", backupID))
	}

	result := &Result{BackupID: backupID, DryRun: opts.DryRun}

	if !opts.SkipValidation && opts.TargetInstanceARN != "" {
		vr, err := e.validateCompatibility(ctx, data, opts.TargetInstanceARN)
		if err != nil {
			return nil, err
		}
		result.Warnings = append(result.Warnings, vr.Warnings...)
		if !vr.Valid {
			result.Errors = vr.Errors
			result.Duration = time.Since(start)
			return result, nil
		}
	}

	if opts.Mappings != nil {
		data = ApplyMappings(data, opts.Mappings)
	}

	state, err := e.loadOrCreateState(opts.OperationID)
	if err != nil {
		return nil, err
	}
	result.OperationID = state.OperationID
	e.registry.Put(state)
	defer e.registry.Complete(state.OperationID)

	r := &run{
		engine:    e,
		data:      data,
		opts:      opts,
		state:     state,
		result:    result,
		decisions: newDecisionCache(),
	}

	e.publish(events.EventRestoreStarted, state.OperationID, backupID)

	phases := []phase{
		{"users", types.KindUsers, r.restoreUsers},
		{"groups", types.KindGroups, r.restoreGroups},
		{"permission-sets", types.KindPermissionSets, r.restorePermissionSets},
		{"assignments", types.KindAssignments, r.restoreAssignments},
	}
	for _, ph := range phases {
		if !opts.targets(ph.kind) {
			continue
		}
		if state.HasCheckpoint(ph.name) {
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("phase %s already completed by operation %s, skipping", ph.name, state.OperationID))
			continue
		}

		logger.Info().Str("phase", ph.name).Msg("Starting restore phase")
		timer := metrics.NewTimer()
		err := ph.fn(ctx)
		timer.ObserveDuration(metrics.RestorePhaseDuration.WithLabelValues(ph.name))
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("phase %s: %v", ph.name, err))
			if !opts.DryRun && len(state.RollbackActions) > 0 {
				logger.Warn().Str("phase", ph.name).Err(err).Msg("Phase failed, rolling back")
				result.Rollback = r.rollback(ctx)
				metrics.RollbacksTotal.Inc()
				e.publish(events.EventRestoreRolledBack, state.OperationID, backupID)
			}
			r.finish(false)
			result.Duration = time.Since(start)
			return result, nil
		}

		r.checkpoint(ph.name, len(r.phaseItems(ph.kind)))
	}

	r.finish(true)
	result.Success = true
	result.Duration = time.Since(start)
	e.publish(events.EventRestoreCompleted, state.OperationID, backupID)
	logger.Info().
		Int("changes", len(result.Changes)).
		Int("warnings", len(result.Warnings)).
		Dur("duration", result.Duration).
		Msg("Restore complete")
	return result, nil
}

// Preview reports what a restore would change, by natural-key overlap with
// the live instance. No writes are issued.
func (e *Engine) Preview(ctx context.Context, backupID string, opts Options) (*PreviewResult, error) {
	opts = opts.withDefaults()
	data, err := e.store.RetrieveBackup(backupID)
	if err != nil {
		return nil, err
	}
	if opts.Mappings != nil {
		data = ApplyMappings(data, opts.Mappings)
	}

	out := &PreviewResult{BackupID: backupID, Strategy: opts.Strategy}

	if opts.targets(types.KindUsers) {
		out.ToRestore.Users = len(data.Users)
		existing, err := e.client.ListUsers(ctx)
		if err != nil {
			return nil, err
		}
		byName := make(map[string]bool, len(existing))
		for _, u := range existing {
			byName[u.Name] = true
		}
		for _, u := range data.Users {
			if byName[u.Name] {
				out.Existing.Users++
			}
		}
	}
	if opts.targets(types.KindGroups) {
		out.ToRestore.Groups = len(data.Groups)
		existing, err := e.client.ListGroups(ctx)
		if err != nil {
			return nil, err
		}
		byName := make(map[string]bool, len(existing))
		for _, g := range existing {
			byName[g.Name] = true
		}
		for _, g := range data.Groups {
			if byName[g.Name] {
				out.Existing.Groups++
			}
		}
	}
	if opts.targets(types.KindPermissionSets) {
		out.ToRestore.PermissionSets = len(data.PermissionSets)
		existing, err := e.client.ListPermissionSets(ctx)
		if err != nil {
			return nil, err
		}
		byName := make(map[string]bool, len(existing))
		for _, ps := range existing {
			byName[ps.Name] = true
		}
		for _, ps := range data.PermissionSets {
			if byName[ps.Name] {
				out.Existing.PermissionSets++
			}
		}
	}
	if opts.targets(types.KindAssignments) {
		out.ToRestore.Assignments = len(data.Assignments)
		existing, err := e.client.ListAllAssignments(ctx)
		if err != nil {
			return nil, err
		}
		byKey := make(map[string]bool, len(existing))
		for _, a := range existing {
			byKey[a.Key()] = true
		}
		for _, a := range data.Assignments {
			if byKey[a.Key()] {
				out.Existing.Assignments++
			}
		}
	}
	return out, nil
}

func (e *Engine) loadOrCreateState(operationID string) (*types.OperationState, error) {
	if operationID != "" {
		state, err := e.store.GetOperation(operationID)
		if err != nil {
			return nil, err
		}
		if state != nil {
			return state, nil
		}
	}
	if operationID == "" {
		operationID = uuid.NewString()
	}
	return &types.OperationState{
		OperationID: operationID,
		Type:        "restore",
		StartTime:   time.Now().UTC(),
	}, nil
}

func (e *Engine) publish(t events.EventType, operationID, backupID string) {
	if e.broker == nil {
		return
	}
	e.broker.Publish(&events.Event{
		Type: t,
		Metadata: map[string]string{
			"operation_id": operationID,
			"backup_id":    backupID,
		},
	})
}

// Phase implementations. Each lists the live collection once, then walks
// the backup collection with bounded concurrency.

func (r *run) restoreUsers(ctx context.Context) error {
	existing, err := r.engine.client.ListUsers(ctx)
	if err != nil {
		return fmt.Errorf("failed to list users: %w", err)
	}
	byName := make(map[string]types.User, len(existing))
	for _, u := range existing {
		byName[u.Name] = u
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.opts.MaxConcurrent)
	for _, u := range r.data.Users {
		g.Go(func() error { return r.restoreUser(gctx, u, byName) })
	}
	return g.Wait()
}

func (r *run) restoreUser(ctx context.Context, u types.User, existing map[string]types.User) error {
	ctx, cancel := context.WithTimeout(ctx, r.opts.PerItemTimeout)
	defer cancel()

	cur, present := existing[u.Name]
	if !present {
		if r.opts.DryRun {
			r.recordChange(types.KindUsers, u.Name, types.ActionCreate, nil, u)
			return nil
		}
		var created *types.User
		retries, err := errdefs.Retry(ctx, *r.opts.RetryPolicy, func() error {
			c, err := r.engine.client.CreateUser(ctx, u)
			created = c
			return err
		})
		r.countRetries(retries)
		if err != nil {
			return fmt.Errorf("failed to create user %s: %w", u.Name, err)
		}
		r.journal(types.RollbackAction{
			Type:         types.RollbackDelete,
			ResourceType: types.KindUsers,
			ResourceID:   created.ID,
		})
		r.recordChange(types.KindUsers, created.ID, types.ActionCreate, nil, u)
		return nil
	}

	differs := userDiffers(u, cur)
	decision := r.resolveConflict(Conflict{
		ResourceType: types.KindUsers,
		ResourceID:   cur.ID,
		Name:         u.Name,
		Suggested:    suggested(differs),
	}, differs)
	if decision == types.ConflictSkip {
		r.warn(fmt.Sprintf("user %s already exists, skipped", u.Name))
		return nil
	}

	updated := u
	updated.ID = cur.ID
	if r.opts.DryRun {
		r.recordChange(types.KindUsers, cur.ID, types.ActionUpdate, cur, updated)
		return nil
	}
	retries, err := errdefs.Retry(ctx, *r.opts.RetryPolicy, func() error {
		return r.engine.client.UpdateUser(ctx, updated)
	})
	r.countRetries(retries)
	if err != nil {
		return fmt.Errorf("failed to update user %s: %w", u.Name, err)
	}
	r.journal(types.RollbackAction{
		Type:         types.RollbackRestorePrior,
		ResourceType: types.KindUsers,
		ResourceID:   cur.ID,
		PriorUser:    &cur,
	})
	r.recordChange(types.KindUsers, cur.ID, types.ActionUpdate, cur, updated)
	return nil
}

func (r *run) restoreGroups(ctx context.Context) error {
	existing, err := r.engine.client.ListGroups(ctx)
	if err != nil {
		return fmt.Errorf("failed to list groups: %w", err)
	}
	byName := make(map[string]types.Group, len(existing))
	for _, g := range existing {
		byName[g.Name] = g
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.opts.MaxConcurrent)
	for _, grp := range r.data.Groups {
		g.Go(func() error { return r.restoreGroup(gctx, grp, byName) })
	}
	return g.Wait()
}

func (r *run) restoreGroup(ctx context.Context, grp types.Group, existing map[string]types.Group) error {
	ctx, cancel := context.WithTimeout(ctx, r.opts.PerItemTimeout)
	defer cancel()

	cur, present := existing[grp.Name]
	if !present {
		if r.opts.DryRun {
			r.recordChange(types.KindGroups, grp.Name, types.ActionCreate, nil, grp)
			return nil
		}
		var created *types.Group
		retries, err := errdefs.Retry(ctx, *r.opts.RetryPolicy, func() error {
			c, err := r.engine.client.CreateGroup(ctx, grp)
			created = c
			return err
		})
		r.countRetries(retries)
		if err != nil {
			return fmt.Errorf("failed to create group %s: %w", grp.Name, err)
		}
		r.journal(types.RollbackAction{
			Type:         types.RollbackDelete,
			ResourceType: types.KindGroups,
			ResourceID:   created.ID,
		})
		r.recordChange(types.KindGroups, created.ID, types.ActionCreate, nil, grp)
		return nil
	}

	differs := groupDiffers(grp, cur)
	decision := r.resolveConflict(Conflict{
		ResourceType: types.KindGroups,
		ResourceID:   cur.ID,
		Name:         grp.Name,
		Suggested:    suggested(differs),
	}, differs)
	if decision == types.ConflictSkip {
		r.warn(fmt.Sprintf("group %s already exists, skipped", grp.Name))
		return nil
	}

	updated := grp
	updated.ID = cur.ID
	if r.opts.DryRun {
		r.recordChange(types.KindGroups, cur.ID, types.ActionUpdate, cur, updated)
		return nil
	}
	retries, err := errdefs.Retry(ctx, *r.opts.RetryPolicy, func() error {
		return r.engine.client.UpdateGroup(ctx, updated)
	})
	r.countRetries(retries)
	if err != nil {
		return fmt.Errorf("failed to update group %s: %w", grp.Name, err)
	}
	r.journal(types.RollbackAction{
		Type:         types.RollbackRestorePrior,
		ResourceType: types.KindGroups,
		ResourceID:   cur.ID,
		PriorGroup:   &cur,
	})
	r.recordChange(types.KindGroups, cur.ID, types.ActionUpdate, cur, updated)
	return nil
}

func (r *run) restorePermissionSets(ctx context.Context) error {
	existing, err := r.engine.client.ListPermissionSets(ctx)
	if err != nil {
		return fmt.Errorf("failed to list permission sets: %w", err)
	}
	byName := make(map[string]types.PermissionSet, len(existing))
	for _, ps := range existing {
		byName[ps.Name] = ps
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.opts.MaxConcurrent)
	for _, ps := range r.data.PermissionSets {
		g.Go(func() error { return r.restorePermissionSet(gctx, ps, byName) })
	}
	return g.Wait()
}

func (r *run) restorePermissionSet(ctx context.Context, ps types.PermissionSet, existing map[string]types.PermissionSet) error {
	ctx, cancel := context.WithTimeout(ctx, r.opts.PerItemTimeout)
	defer cancel()

	cur, present := existing[ps.Name]
	if !present {
		if r.opts.DryRun {
			r.recordChange(types.KindPermissionSets, ps.Name, types.ActionCreate, nil, ps)
			return nil
		}
		var created *types.PermissionSet
		retries, err := errdefs.Retry(ctx, *r.opts.RetryPolicy, func() error {
			c, err := r.engine.client.CreatePermissionSet(ctx, ps)
			created = c
			return err
		})
		r.countRetries(retries)
		if err != nil {
			return fmt.Errorf("failed to create permission set %s: %w", ps.Name, err)
		}
		r.journal(types.RollbackAction{
			Type:         types.RollbackDelete,
			ResourceType: types.KindPermissionSets,
			ResourceID:   created.ARN,
		})
		r.recordChange(types.KindPermissionSets, created.ARN, types.ActionCreate, nil, ps)
		return nil
	}

	// MERGE degrades to OVERWRITE for permission sets
	decision := r.resolveConflict(Conflict{
		ResourceType: types.KindPermissionSets,
		ResourceID:   cur.ARN,
		Name:         ps.Name,
		Suggested:    types.ConflictOverwrite,
	}, true)
	if decision == types.ConflictSkip {
		r.warn(fmt.Sprintf("permission set %s already exists, skipped", ps.Name))
		return nil
	}

	updated := ps
	updated.ARN = cur.ARN
	if r.opts.DryRun {
		r.recordChange(types.KindPermissionSets, cur.ARN, types.ActionUpdate, cur, updated)
		return nil
	}
	retries, err := errdefs.Retry(ctx, *r.opts.RetryPolicy, func() error {
		return r.engine.client.UpdatePermissionSet(ctx, updated)
	})
	r.countRetries(retries)
	if err != nil {
		return fmt.Errorf("failed to update permission set %s: %w", ps.Name, err)
	}
	r.journal(types.RollbackAction{
		Type:               types.RollbackRestorePrior,
		ResourceType:       types.KindPermissionSets,
		ResourceID:         cur.ARN,
		PriorPermissionSet: &cur,
	})
	r.recordChange(types.KindPermissionSets, cur.ARN, types.ActionUpdate, cur, updated)
	return nil
}

func (r *run) restoreAssignments(ctx context.Context) error {
	existing, err := r.engine.client.ListAllAssignments(ctx)
	if err != nil {
		return fmt.Errorf("failed to list assignments: %w", err)
	}
	byKey := make(map[string]bool, len(existing))
	for _, a := range existing {
		byKey[a.Key()] = true
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.opts.MaxConcurrent)
	for _, a := range r.data.Assignments {
		g.Go(func() error { return r.restoreAssignment(gctx, a, byKey) })
	}
	return g.Wait()
}

func (r *run) restoreAssignment(ctx context.Context, a types.Assignment, existing map[string]bool) error {
	ctx, cancel := context.WithTimeout(ctx, r.opts.PerItemTimeout)
	defer cancel()

	// The 4-tuple is the entire value, so a present assignment is already
	// identical and there is nothing to overwrite.
	if existing[a.Key()] {
		r.warn(fmt.Sprintf("assignment %s already exists, skipped", a.Key()))
		return nil
	}
	if r.opts.DryRun {
		r.recordChange(types.KindAssignments, a.Key(), types.ActionCreate, nil, a)
		return nil
	}
	retries, err := errdefs.Retry(ctx, *r.opts.RetryPolicy, func() error {
		return r.engine.client.CreateAssignment(ctx, a)
	})
	r.countRetries(retries)
	if err != nil {
		return fmt.Errorf("failed to create assignment %s: %w", a.Key(), err)
	}
	// the journal carries the 4-tuple so rollback can issue the delete
	r.journal(types.RollbackAction{
		Type:         types.RollbackDelete,
		ResourceType: types.KindAssignments,
		ResourceID:   a.Key(),
		Assignment:   &a,
	})
	r.recordChange(types.KindAssignments, a.Key(), types.ActionCreate, nil, a)
	return nil
}

// rollback walks the journal in reverse, undoing each applied change.
// Failures are collected; a partial rollback never retries the forward
// path.
func (r *run) rollback(ctx context.Context) *RollbackResult {
	logger := log.WithComponent("restore")
	actions := r.state.RollbackActions
	reverted := 0
	var failures []string

	for i := len(actions) - 1; i >= 0; i-- {
		if err := r.revert(ctx, actions[i]); err != nil {
			failures = append(failures,
				fmt.Sprintf("%s %s %s: %v", actions[i].Type, actions[i].ResourceType, actions[i].ResourceID, err))
			continue
		}
		reverted++
	}

	result := &RollbackResult{
		Success:  len(failures) == 0,
		Reverted: reverted,
		Message:  fmt.Sprintf("reverted %d of %d changes", reverted, len(actions)),
	}
	if len(failures) > 0 {
		result.Message = fmt.Sprintf("%s; %d failures", result.Message, len(failures))
		r.mu.Lock()
		r.result.Errors = append(r.result.Errors, failures...)
		r.mu.Unlock()
	}
	logger.Info().
		Int("reverted", reverted).
		Int("failed", len(failures)).
		Msg("Rollback finished")
	return result
}

func (r *run) revert(ctx context.Context, a types.RollbackAction) error {
	client := r.engine.client
	switch a.Type {
	case types.RollbackDelete:
		switch a.ResourceType {
		case types.KindUsers:
			return client.DeleteUser(ctx, a.ResourceID)
		case types.KindGroups:
			return client.DeleteGroup(ctx, a.ResourceID)
		case types.KindPermissionSets:
			return client.DeletePermissionSet(ctx, a.ResourceID)
		case types.KindAssignments:
			if a.Assignment == nil {
				return fmt.Errorf("rollback entry for assignment %s lacks the 4-tuple", a.ResourceID)
			}
			return client.DeleteAssignment(ctx, *a.Assignment)
		}
	case types.RollbackRestorePrior:
		switch a.ResourceType {
		case types.KindUsers:
			if a.PriorUser == nil {
				return fmt.Errorf("rollback entry for user %s lacks the prior value", a.ResourceID)
			}
			return client.UpdateUser(ctx, *a.PriorUser)
		case types.KindGroups:
			if a.PriorGroup == nil {
				return fmt.Errorf("rollback entry for group %s lacks the prior value", a.ResourceID)
			}
			return client.UpdateGroup(ctx, *a.PriorGroup)
		case types.KindPermissionSets:
			if a.PriorPermissionSet == nil {
				return fmt.Errorf("rollback entry for permission set %s lacks the prior value", a.ResourceID)
			}
			return client.UpdatePermissionSet(ctx, *a.PriorPermissionSet)
		}
	}
	return fmt.Errorf("unknown rollback action %s/%s", a.Type, a.ResourceType)
}

func (r *run) journal(a types.RollbackAction) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state.RollbackActions = append(r.state.RollbackActions, a)
}

func (r *run) recordChange(kind types.ResourceKind, id string, action types.ChangeAction, prior, next any) {
	change := types.AppliedChange{
		ResourceType: kind,
		ResourceID:   id,
		Action:       action,
		PriorValue:   prior,
		NewValue:     next,
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state.AppliedChanges = append(r.state.AppliedChanges, change)
	r.result.Changes = append(r.result.Changes, change)
}

func (r *run) warn(msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.result.Warnings = append(r.result.Warnings, msg)
}

func (r *run) countRetries(n int) {
	if n > 0 {
		metrics.RetriesTotal.Add(float64(n))
	}
}

func (r *run) checkpoint(name string, count int) {
	r.state.Checkpoints = append(r.state.Checkpoints, types.Checkpoint{
		Name:      name,
		Count:     count,
		Timestamp: time.Now().UTC(),
	})
	r.persist()
}

func (r *run) finish(success bool) {
	r.state.Completed = true
	r.state.Success = success
	r.persist()
}

func (r *run) persist() {
	if r.opts.DryRun {
		return
	}
	if err := r.engine.store.SaveOperation(r.state); err != nil {
		logger := log.WithComponent("restore")
		logger.Warn().Err(err).
			Str("operation_id", r.state.OperationID).
			Msg("Failed to persist operation state")
	}
}

func (r *run) phaseItems(kind types.ResourceKind) []string {
	switch kind {
	case types.KindUsers:
		out := make([]string, len(r.data.Users))
		for i, u := range r.data.Users {
			out[i] = u.Name
		}
		return out
	case types.KindGroups:
		out := make([]string, len(r.data.Groups))
		for i, g := range r.data.Groups {
			out[i] = g.Name
		}
		return out
	case types.KindPermissionSets:
		out := make([]string, len(r.data.PermissionSets))
		for i, ps := range r.data.PermissionSets {
			out[i] = ps.Name
		}
		return out
	case types.KindAssignments:
		out := make([]string, len(r.data.Assignments))
		for i, a := range r.data.Assignments {
			out[i] = a.Key()
		}
		return out
	}
	return nil
}
