package template

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/cloudsmiths/idman/pkg/directory"
	"github.com/cloudsmiths/idman/pkg/errdefs"
	"github.com/cloudsmiths/idman/pkg/resolver"
	"github.com/cloudsmiths/idman/pkg/types"
)

// EntityResolution records how one entity reference resolved
type EntityResolution struct {
	Ref   string              `json:"ref"`
	Type  types.PrincipalType `json:"type"`
	Name  string              `json:"name"`
	ID    string              `json:"id,omitempty"`
	Found bool                `json:"found"`
}

// Validation is the outcome of validating a template: structural and
// semantic errors plus the resolved account set and per-entity resolution
// for use by the executor.
type Validation struct {
	Errors           []string                    `json:"errors,omitempty"`
	Entities         map[string]EntityResolution `json:"entities"`
	PermissionSets   map[string]string           `json:"permission_sets"` // name -> arn ("" = missing)
	ResolvedAccounts map[int][]string            `json:"resolved_accounts"`
}

// Valid reports whether the template passed both validation stages
func (v *Validation) Valid() bool { return len(v.Errors) == 0 }

// LoadFile parses a template from a YAML file
func LoadFile(path string) (*types.Template, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errdefs.Wrap(errdefs.KindParsing, errdefs.CodeBadSyntax,
			fmt.Sprintf("failed to read template file %s", path), err)
	}
	var tpl types.Template
	if err := yaml.Unmarshal(data, &tpl); err != nil {
		return nil, errdefs.Wrap(errdefs.KindParsing, errdefs.CodeBadSyntax,
			fmt.Sprintf("failed to parse template file %s", path), err)
	}
	return &tpl, nil
}

// Validator performs structural and semantic template checks
type Validator struct {
	client   directory.Client
	resolver *resolver.Resolver
}

// NewValidator creates a template validator
func NewValidator(client directory.Client, res *resolver.Resolver) *Validator {
	return &Validator{client: client, resolver: res}
}

// ValidateStructure runs the directory-free checks
func ValidateStructure(tpl *types.Template) []string {
	var errs []string
	if strings.TrimSpace(tpl.Metadata.Name) == "" {
		errs = append(errs, "template name must not be empty")
	}
	if len(tpl.Assignments) == 0 {
		errs = append(errs, "template must contain at least one assignment")
	}

	for i, a := range tpl.Assignments {
		prefix := fmt.Sprintf("assignment %d", i)
		if len(a.Entities) == 0 {
			errs = append(errs, prefix+": at least one entity is required")
		}
		for _, ref := range a.Entities {
			if _, _, err := parseEntityRef(ref); err != nil {
				errs = append(errs, fmt.Sprintf("%s: %v", prefix, err))
			}
		}
		if len(a.PermissionSets) == 0 {
			errs = append(errs, prefix+": at least one permission set is required")
		}

		hasIDs := len(a.Targets.AccountIDs) > 0
		hasTags := len(a.Targets.AccountTags) > 0
		if hasIDs == hasTags {
			errs = append(errs, prefix+": targets require exactly one of account_ids or account_tags")
		}
		for k, v := range a.Targets.AccountTags {
			if strings.TrimSpace(k) == "" || strings.TrimSpace(v) == "" {
				errs = append(errs, prefix+": tag filters require non-empty keys and values")
			}
		}
		for _, id := range a.Targets.AccountIDs {
			if !isAccountID(id) {
				errs = append(errs, fmt.Sprintf("%s: invalid account id %q", prefix, id))
			}
		}
		for _, id := range a.Targets.ExcludeAccountIDs {
			if !isAccountID(id) {
				errs = append(errs, fmt.Sprintf("%s: invalid exclude account id %q", prefix, id))
			}
		}
	}
	return errs
}

// Validate runs structural checks, then semantic checks against the
// directory, and resolves the account set for each assignment.
func (v *Validator) Validate(ctx context.Context, tpl *types.Template) (*Validation, error) {
	result := &Validation{
		Entities:         make(map[string]EntityResolution),
		PermissionSets:   make(map[string]string),
		ResolvedAccounts: make(map[int][]string),
	}
	result.Errors = ValidateStructure(tpl)
	if len(result.Errors) > 0 {
		return result, nil
	}

	for i, a := range tpl.Assignments {
		for _, ref := range a.Entities {
			if _, seen := result.Entities[ref]; seen {
				continue
			}
			pt, name, _ := parseEntityRef(ref)
			res := EntityResolution{Ref: ref, Type: pt, Name: name}
			id, err := v.resolver.ResolvePrincipal(ctx, name, pt)
			if err != nil {
				if !errdefs.IsNotFound(err) {
					return nil, err
				}
				result.Errors = append(result.Errors, fmt.Sprintf("entity %q does not exist", ref))
			} else {
				res.ID = id
				res.Found = true
			}
			result.Entities[ref] = res
		}

		for _, name := range a.PermissionSets {
			if _, seen := result.PermissionSets[name]; seen {
				continue
			}
			arn, err := v.resolver.ResolvePermissionSet(ctx, name)
			if err != nil {
				if !errdefs.IsNotFound(err) {
					return nil, err
				}
				result.Errors = append(result.Errors, fmt.Sprintf("permission set %q does not exist", name))
				arn = ""
			}
			result.PermissionSets[name] = arn
		}

		accounts, err := v.expandTargets(ctx, a.Targets)
		if err != nil {
			return nil, err
		}
		result.ResolvedAccounts[i] = accounts
	}
	return result, nil
}

// expandTargets resolves a target spec to the concrete account id set
func (v *Validator) expandTargets(ctx context.Context, targets types.TargetSpec) ([]string, error) {
	excluded := make(map[string]bool, len(targets.ExcludeAccountIDs))
	for _, id := range targets.ExcludeAccountIDs {
		excluded[id] = true
	}

	var ids []string
	if len(targets.AccountIDs) > 0 {
		for _, id := range targets.AccountIDs {
			if !excluded[id] {
				ids = append(ids, id)
			}
		}
		return ids, nil
	}

	accounts, err := v.client.ListAccounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	for _, acct := range accounts {
		if acct.Status != "" && acct.Status != "ACTIVE" {
			continue
		}
		if excluded[acct.ID] {
			continue
		}
		tags, err := v.client.ListAccountTags(ctx, acct.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to list tags for account %s: %w", acct.ID, err)
		}
		if matchesAllTags(tags, targets.AccountTags) {
			ids = append(ids, acct.ID)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func matchesAllTags(tags, want map[string]string) bool {
	for k, v := range want {
		if tags[k] != v {
			return false
		}
	}
	return true
}

func parseEntityRef(ref string) (types.PrincipalType, string, error) {
	switch {
	case strings.HasPrefix(ref, "user:"):
		name := ref[len("user:"):]
		if name == "" {
			return "", "", fmt.Errorf("entity reference %q has an empty name", ref)
		}
		return types.PrincipalUser, name, nil
	case strings.HasPrefix(ref, "group:"):
		name := ref[len("group:"):]
		if name == "" {
			return "", "", fmt.Errorf("entity reference %q has an empty name", ref)
		}
		return types.PrincipalGroup, name, nil
	default:
		return "", "", fmt.Errorf("entity reference %q must start with user: or group:", ref)
	}
}

func isAccountID(id string) bool {
	if len(id) != 12 {
		return false
	}
	for _, c := range id {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}
