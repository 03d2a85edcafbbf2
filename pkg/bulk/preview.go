package bulk

import (
	"fmt"
	"io"
	"sort"

	"github.com/cloudsmiths/idman/pkg/errdefs"
	"github.com/cloudsmiths/idman/pkg/types"
)

// Preview summarises a planned batch before execution
type Preview struct {
	Operation      types.BulkOperation `json:"operation"`
	Total          int                 `json:"total"`
	Resolvable     int                 `json:"resolvable"`
	Unresolvable   int                 `json:"unresolvable"`
	Principals     []string            `json:"principals"`
	PermissionSets []string            `json:"permission_sets"`
	Accounts       []string            `json:"accounts"`
}

// BuildPreview computes the batch summary over resolved records
func BuildPreview(op types.BulkOperation, records []types.AssignmentRecord) *Preview {
	p := &Preview{Operation: op, Total: len(records)}
	principals := make(map[string]bool)
	sets := make(map[string]bool)
	accounts := make(map[string]bool)

	for _, rec := range records {
		if rec.Resolved {
			p.Resolvable++
		} else {
			p.Unresolvable++
		}
		principals[rec.PrincipalName] = true
		sets[rec.PermissionSetName] = true
		accounts[rec.AccountName] = true
	}

	p.Principals = sortedKeys(principals)
	p.PermissionSets = sortedKeys(sets)
	p.Accounts = sortedKeys(accounts)
	return p
}

func sortedKeys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Render writes a human-readable summary of the preview
func (p *Preview) Render(w io.Writer) {
	fmt.Fprintf(w, "Planned %s of %d assignments\n", p.Operation, p.Total)
	fmt.Fprintf(w, "  Resolvable:   %d\n", p.Resolvable)
	fmt.Fprintf(w, "  Unresolvable: %d\n", p.Unresolvable)
	fmt.Fprintf(w, "  Principals:      %v\n", p.Principals)
	fmt.Fprintf(w, "  Permission sets: %v\n", p.PermissionSets)
	fmt.Fprintf(w, "  Accounts:        %v\n", p.Accounts)
}

// Prompter gates interactive confirmation. Injected so the gate is testable
// and so non-TTY contexts can supply a fixed answer.
type Prompter interface {
	Confirm(prompt string) (bool, error)
}

// PrompterFunc adapts a function to the Prompter interface
type PrompterFunc func(prompt string) (bool, error)

func (f PrompterFunc) Confirm(prompt string) (bool, error) { return f(prompt) }

// GateOptions control the preview/confirmation gate
type GateOptions struct {
	DryRun bool
	Force  bool
}

// GateResult is the decision produced by the gate
type GateResult int

const (
	// GateProceed means execution should continue
	GateProceed GateResult = iota
	// GateDryRun means the preview was emitted and no execution follows
	GateDryRun
	// GateDeclined means the user answered no; treated as a non-error
	GateDeclined
)

// Gate applies the preview/confirmation rules: dry-run short-circuits,
// unresolvable records abort when not dry-run, force skips the prompt.
func Gate(preview *Preview, opts GateOptions, prompter Prompter) (GateResult, error) {
	if opts.DryRun {
		return GateDryRun, nil
	}
	if preview.Unresolvable > 0 {
		return GateDeclined, errdefs.New(errdefs.KindValidation, errdefs.CodeNotFound,
			fmt.Sprintf("%d records could not be resolved; fix the inputs and retry", preview.Unresolvable))
	}
	if opts.Force {
		return GateProceed, nil
	}
	ok, err := prompter.Confirm(fmt.Sprintf("Proceed with %s of %d assignments?", preview.Operation, preview.Resolvable))
	if err != nil {
		return GateDeclined, fmt.Errorf("confirmation failed: %w", err)
	}
	if !ok {
		return GateDeclined, nil
	}
	return GateProceed, nil
}
