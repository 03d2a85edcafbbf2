package template

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/cloudsmiths/idman/pkg/bulk"
	"github.com/cloudsmiths/idman/pkg/errdefs"
	"github.com/cloudsmiths/idman/pkg/events"
	"github.com/cloudsmiths/idman/pkg/log"
	"github.com/cloudsmiths/idman/pkg/types"
)

// PlannedAssignment is one concrete (entity, permission set, account)
// triple produced by template expansion.
type PlannedAssignment struct {
	EntityRef         string `json:"entity_ref"`
	PermissionSetName string `json:"permission_set_name"`
	AccountID         string `json:"account_id"`
}

// Preview describes what applying a template would do, without writing
type Preview struct {
	TemplateName string              `json:"template_name"`
	Total        int                 `json:"total"`
	Assignments  []PlannedAssignment `json:"assignments"`
	Accounts     []string            `json:"accounts"`
	Validation   *Validation         `json:"validation"`
}

// ApplyResult is the outcome of applying a template
type ApplyResult struct {
	TemplateName string             `json:"template_name"`
	Created      int                `json:"created"`
	Skipped      int                `json:"skipped"`
	Failed       int                `json:"failed"`
	Results      *types.BulkResults `json:"results"`
	Duration     time.Duration      `json:"duration"`
}

// Executor expands templates into concrete assignments and drives them
// through the bulk pipeline.
type Executor struct {
	validator *Validator
	bulk      *bulk.Executor
	broker    *events.Broker
}

// NewExecutor creates a template executor
func NewExecutor(validator *Validator, bulkExec *bulk.Executor, broker *events.Broker) *Executor {
	return &Executor{validator: validator, bulk: bulkExec, broker: broker}
}

// Expand computes the cross product entities x permission sets x accounts
// for every assignment block, using an existing validation for the account
// sets. Order is deterministic: blocks in template order, then entities,
// then permission sets, then accounts.
func Expand(tpl *types.Template, validation *Validation) []PlannedAssignment {
	var out []PlannedAssignment
	for i, a := range tpl.Assignments {
		accounts := validation.ResolvedAccounts[i]
		for _, entity := range a.Entities {
			for _, ps := range a.PermissionSets {
				for _, acct := range accounts {
					out = append(out, PlannedAssignment{
						EntityRef:         entity,
						PermissionSetName: ps,
						AccountID:         acct,
					})
				}
			}
		}
	}
	return out
}

// BuildPreview validates the template and reports the planned assignments
func (e *Executor) BuildPreview(ctx context.Context, tpl *types.Template) (*Preview, error) {
	validation, err := e.validator.Validate(ctx, tpl)
	if err != nil {
		return nil, err
	}

	planned := Expand(tpl, validation)
	seen := make(map[string]bool)
	var accounts []string
	for _, p := range planned {
		if !seen[p.AccountID] {
			seen[p.AccountID] = true
			accounts = append(accounts, p.AccountID)
		}
	}

	return &Preview{
		TemplateName: tpl.Metadata.Name,
		Total:        len(planned),
		Assignments:  planned,
		Accounts:     accounts,
		Validation:   validation,
	}, nil
}

// Apply validates, expands, and executes a template. Validation failures
// abort before any write.
func (e *Executor) Apply(ctx context.Context, tpl *types.Template, opts bulk.Options) (*ApplyResult, error) {
	logger := log.WithComponent("template-executor")
	start := time.Now()

	validation, err := e.validator.Validate(ctx, tpl)
	if err != nil {
		return nil, err
	}
	if !validation.Valid() {
		return nil, errdefs.New(errdefs.KindValidation, errdefs.CodeInvalidParameters,
			fmt.Sprintf("template %q failed validation: %d errors", tpl.Metadata.Name, len(validation.Errors)))
	}

	records := e.toRecords(tpl, validation)
	logger.Info().
		Str("template", tpl.Metadata.Name).
		Int("assignments", len(records)).
		Bool("dry_run", opts.DryRun).
		Msg("Applying template")

	results, err := e.bulk.Process(ctx, records, types.OperationAssign, opts)
	if err != nil {
		return nil, err
	}

	res := &ApplyResult{
		TemplateName: tpl.Metadata.Name,
		Skipped:      len(results.Skipped),
		Failed:       len(results.Failed),
		Results:      results,
		Duration:     time.Since(start),
	}
	// assignments already in place complete successfully without a write
	for _, item := range results.Successful {
		if item.Status == types.ItemAlreadyExists {
			res.Skipped++
			continue
		}
		res.Created++
	}

	if e.broker != nil && !opts.DryRun {
		e.broker.Publish(&events.Event{
			Type:    events.EventTemplateApplied,
			Message: fmt.Sprintf("template %s applied", tpl.Metadata.Name),
			Metadata: map[string]string{
				"template": tpl.Metadata.Name,
				"created":  strconv.Itoa(res.Created),
				"skipped":  strconv.Itoa(res.Skipped),
				"failed":   strconv.Itoa(res.Failed),
			},
		})
	}
	return res, nil
}

// toRecords converts the expansion into pre-resolved assignment records.
// Validation has already resolved every reference, so the bulk executor
// never needs a second directory pass.
func (e *Executor) toRecords(tpl *types.Template, validation *Validation) []types.AssignmentRecord {
	planned := Expand(tpl, validation)
	records := make([]types.AssignmentRecord, 0, len(planned))
	for _, p := range planned {
		entity := validation.Entities[p.EntityRef]
		records = append(records, types.AssignmentRecord{
			PrincipalName:     entity.Name,
			PrincipalType:     entity.Type,
			PermissionSetName: p.PermissionSetName,
			AccountName:       p.AccountID,
			PrincipalID:       entity.ID,
			PermissionSetARN:  validation.PermissionSets[p.PermissionSetName],
			AccountID:         p.AccountID,
			Resolved:          true,
		})
	}
	return records
}
