package restore

import (
	"sync"

	"github.com/cloudsmiths/idman/pkg/types"
)

// Conflict describes a resource that exists both in the backup and on the
// target. Suggested is the semantics-aware recommendation: OVERWRITE when
// the two differ in a meaningful way, SKIP otherwise.
type Conflict struct {
	ResourceType types.ResourceKind
	ResourceID   string
	Name         string
	Suggested    types.ConflictStrategy
}

// Prompter decides how to handle a conflict. Implementations may be
// interactive; the engine caches the first decision per resource so a
// prompter is asked at most once per (type, id).
type Prompter interface {
	Decide(c Conflict) types.ConflictStrategy
}

// PrompterFunc adapts a function to the Prompter interface
type PrompterFunc func(c Conflict) types.ConflictStrategy

func (f PrompterFunc) Decide(c Conflict) types.ConflictStrategy { return f(c) }

// decisionCache remembers prompt decisions per (resource type, id) so the
// same resource is treated consistently across a run.
type decisionCache struct {
	mu sync.Mutex
	m  map[string]types.ConflictStrategy
}

func newDecisionCache() *decisionCache {
	return &decisionCache{m: make(map[string]types.ConflictStrategy)}
}

func (d *decisionCache) get(kind types.ResourceKind, id string) (types.ConflictStrategy, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	s, ok := d.m[string(kind)+"/"+id]
	return s, ok
}

func (d *decisionCache) put(kind types.ResourceKind, id string, s types.ConflictStrategy) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.m[string(kind)+"/"+id] = s
}

// resolveConflict reduces the configured strategy to a concrete
// overwrite-or-skip decision for one conflicting resource. differs reports
// whether the backup copy and the live copy diverge under the kind's merge
// semantics; permission sets and assignments always treat MERGE as
// OVERWRITE.
func (r *run) resolveConflict(c Conflict, differs bool) types.ConflictStrategy {
	switch r.opts.Strategy {
	case types.ConflictOverwrite:
		return types.ConflictOverwrite
	case types.ConflictSkip:
		return types.ConflictSkip
	case types.ConflictMerge:
		switch c.ResourceType {
		case types.KindUsers, types.KindGroups:
			if differs {
				return types.ConflictOverwrite
			}
			return types.ConflictSkip
		default:
			return types.ConflictOverwrite
		}
	case types.ConflictPrompt:
		if cached, ok := r.decisions.get(c.ResourceType, c.ResourceID); ok {
			return cached
		}
		decision := c.Suggested
		if r.engine.prompter != nil {
			decision = r.engine.prompter.Decide(c)
		}
		if decision != types.ConflictOverwrite {
			decision = types.ConflictSkip
		}
		r.decisions.put(c.ResourceType, c.ResourceID, decision)
		return decision
	}
	return types.ConflictSkip
}

// userDiffers compares the scalar identity fields of two users
func userDiffers(a, b types.User) bool {
	return a.Name != b.Name ||
		a.DisplayName != b.DisplayName ||
		a.Email != b.Email ||
		a.GivenName != b.GivenName ||
		a.FamilyName != b.FamilyName ||
		a.Active != b.Active
}

// groupDiffers compares group descriptions, the only mergeable field
func groupDiffers(a, b types.Group) bool {
	return a.Description != b.Description
}

func suggested(differs bool) types.ConflictStrategy {
	if differs {
		return types.ConflictOverwrite
	}
	return types.ConflictSkip
}
