package resolver

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/cloudsmiths/idman/pkg/directory"
	"github.com/cloudsmiths/idman/pkg/errdefs"
	"github.com/cloudsmiths/idman/pkg/metrics"
	"github.com/cloudsmiths/idman/pkg/types"
)

// Kind names a resolvable namespace
type Kind string

const (
	KindUser          Kind = "user"
	KindGroup         Kind = "group"
	KindPermissionSet Kind = "permission-set"
	KindAccount       Kind = "account"
)

// Resolver maps human names to stable identifiers, memoising results for
// the lifetime of a batch. It is owned by the batch run and passed
// explicitly; there is no process-global instance. Lookups are
// case-sensitive exact matches; names are not normalised.
type Resolver struct {
	client directory.Client

	mu       sync.RWMutex
	cache    map[cacheKey]cacheEntry
	loaded   map[Kind]bool
	inflight singleflight.Group
}

type cacheKey struct {
	kind Kind
	name string
}

type cacheEntry struct {
	id    string
	found bool
}

// New creates a resolver backed by the given directory client
func New(client directory.Client) *Resolver {
	return &Resolver{
		client: client,
		cache:  make(map[cacheKey]cacheEntry),
		loaded: make(map[Kind]bool),
	}
}

// ResolvePrincipal resolves a user or group name to its directory id
func (r *Resolver) ResolvePrincipal(ctx context.Context, name string, pt types.PrincipalType) (string, error) {
	kind := KindUser
	if pt == types.PrincipalGroup {
		kind = KindGroup
	}
	return r.resolve(ctx, kind, name)
}

// ResolvePermissionSet resolves a permission set name to its ARN
func (r *Resolver) ResolvePermissionSet(ctx context.Context, name string) (string, error) {
	return r.resolve(ctx, KindPermissionSet, name)
}

// ResolveAccount resolves an account name to its 12-digit account id
func (r *Resolver) ResolveAccount(ctx context.Context, name string) (string, error) {
	return r.resolve(ctx, KindAccount, name)
}

// WarmCache bulk pre-fetches every namespace referenced by the records so
// the batch issues at most one directory call per kind.
func (r *Resolver) WarmCache(ctx context.Context, records []types.AssignmentRecord) error {
	kinds := make(map[Kind]bool)
	for _, rec := range records {
		if rec.PrincipalType == types.PrincipalGroup {
			kinds[KindGroup] = true
		} else {
			kinds[KindUser] = true
		}
		kinds[KindPermissionSet] = true
		kinds[KindAccount] = true
	}
	for kind := range kinds {
		if err := r.ensureLoaded(ctx, kind); err != nil {
			return err
		}
	}
	return nil
}

// ResolveRecord enriches a bulk record with resolved identifiers, recording
// per-field errors instead of failing the batch.
func (r *Resolver) ResolveRecord(ctx context.Context, rec *types.AssignmentRecord) {
	rec.ResolveErrors = rec.ResolveErrors[:0]

	id, err := r.ResolvePrincipal(ctx, rec.PrincipalName, rec.PrincipalType)
	if err != nil {
		rec.ResolveErrors = append(rec.ResolveErrors,
			fmt.Sprintf("principal %q: %s", rec.PrincipalName, resolveErrText(err)))
	} else {
		rec.PrincipalID = id
	}

	arn, err := r.ResolvePermissionSet(ctx, rec.PermissionSetName)
	if err != nil {
		rec.ResolveErrors = append(rec.ResolveErrors,
			fmt.Sprintf("permission set %q: %s", rec.PermissionSetName, resolveErrText(err)))
	} else {
		rec.PermissionSetARN = arn
	}

	accountID, err := r.ResolveAccount(ctx, rec.AccountName)
	if err != nil {
		rec.ResolveErrors = append(rec.ResolveErrors,
			fmt.Sprintf("account %q: %s", rec.AccountName, resolveErrText(err)))
	} else {
		rec.AccountID = accountID
	}

	rec.Resolved = len(rec.ResolveErrors) == 0
}

func resolveErrText(err error) string {
	if e, ok := errdefs.AsError(err); ok {
		return e.Suggestion()
	}
	return err.Error()
}

func (r *Resolver) resolve(ctx context.Context, kind Kind, name string) (string, error) {
	key := cacheKey{kind, name}

	r.mu.RLock()
	entry, ok := r.cache[key]
	r.mu.RUnlock()
	if ok {
		metrics.ResolverLookupsTotal.WithLabelValues(string(kind), "hit").Inc()
		return entry.result(kind, name)
	}

	if err := r.ensureLoaded(ctx, kind); err != nil {
		return "", err
	}

	r.mu.Lock()
	entry, ok = r.cache[key]
	if !ok {
		// Negative lookup: cached so it is not retried within the batch
		entry = cacheEntry{found: false}
		r.cache[key] = entry
	}
	r.mu.Unlock()

	metrics.ResolverLookupsTotal.WithLabelValues(string(kind), "miss").Inc()
	return entry.result(kind, name)
}

func (e cacheEntry) result(kind Kind, name string) (string, error) {
	if !e.found {
		return "", errdefs.New(errdefs.KindValidation, errdefs.CodeNotFound,
			fmt.Sprintf("%s not found: %s", kind, name))
	}
	return e.id, nil
}

// ensureLoaded fetches the full namespace for kind exactly once; concurrent
// misses on the same kind collapse to a single directory call.
func (r *Resolver) ensureLoaded(ctx context.Context, kind Kind) error {
	r.mu.RLock()
	loaded := r.loaded[kind]
	r.mu.RUnlock()
	if loaded {
		return nil
	}

	_, err, _ := r.inflight.Do(string(kind), func() (any, error) {
		r.mu.RLock()
		loaded := r.loaded[kind]
		r.mu.RUnlock()
		if loaded {
			return nil, nil
		}

		entries := make(map[string]string)
		switch kind {
		case KindUser:
			users, err := r.client.ListUsers(ctx)
			if err != nil {
				return nil, fmt.Errorf("failed to list users: %w", err)
			}
			for _, u := range users {
				entries[u.Name] = u.ID
			}
		case KindGroup:
			groups, err := r.client.ListGroups(ctx)
			if err != nil {
				return nil, fmt.Errorf("failed to list groups: %w", err)
			}
			for _, g := range groups {
				entries[g.Name] = g.ID
			}
		case KindPermissionSet:
			sets, err := r.client.ListPermissionSets(ctx)
			if err != nil {
				return nil, fmt.Errorf("failed to list permission sets: %w", err)
			}
			for _, ps := range sets {
				entries[ps.Name] = ps.ARN
			}
		case KindAccount:
			accounts, err := r.client.ListAccounts(ctx)
			if err != nil {
				return nil, fmt.Errorf("failed to list accounts: %w", err)
			}
			for _, a := range accounts {
				entries[a.Name] = a.ID
			}
		}

		r.mu.Lock()
		for name, id := range entries {
			r.cache[cacheKey{kind, name}] = cacheEntry{id: id, found: true}
		}
		r.loaded[kind] = true
		r.mu.Unlock()
		return nil, nil
	})
	return err
}
