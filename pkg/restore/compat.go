package restore

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudsmiths/idman/pkg/types"
)

// Cardinality thresholds past which a restore target is close enough to a
// service limit to warrant a warning.
const (
	warnUsers          = 40000
	warnGroups         = 8000
	warnPermissionSets = 400
)

// ValidateCompatibility checks whether a stored backup can be restored
// into the target instance: the instance must be reachable, every managed
// policy referenced by a permission set must exist, and cardinalities near
// service limits produce warnings. Cross-account and cross-region restores
// are flagged in the result details.
func (e *Engine) ValidateCompatibility(ctx context.Context, backupID, targetInstanceARN string) (*types.ValidationResult, error) {
	data, err := e.store.RetrieveBackup(backupID)
	if err != nil {
		return nil, err
	}
	return e.validateCompatibility(ctx, data, targetInstanceARN)
}

func (e *Engine) validateCompatibility(ctx context.Context, data *types.BackupData, targetInstanceARN string) (*types.ValidationResult, error) {
	result := &types.ValidationResult{Valid: true, Details: make(map[string]string)}

	targetAccount, targetRegion := parseInstanceARN(targetInstanceARN)
	inst, err := e.client.DescribeInstance(ctx, targetInstanceARN)
	if err != nil {
		result.AddError(fmt.Sprintf("target instance %s is not accessible: %v", targetInstanceARN, err))
	} else {
		if inst.AccountID != "" {
			targetAccount = inst.AccountID
		}
		if inst.Region != "" {
			targetRegion = inst.Region
		}
	}

	for _, ps := range data.PermissionSets {
		for _, policyARN := range ps.ManagedPolicies {
			exists, err := e.client.PolicyExists(ctx, policyARN)
			if err != nil {
				return nil, fmt.Errorf("failed to check policy %s: %w", policyARN, err)
			}
			if !exists {
				result.AddError(fmt.Sprintf("permission set %s references missing managed policy %s", ps.Name, policyARN))
			}
		}
	}

	if n := len(data.Users); n > warnUsers {
		result.AddWarning(fmt.Sprintf("backup contains %d users, close to the service limit", n))
	}
	if n := len(data.Groups); n > warnGroups {
		result.AddWarning(fmt.Sprintf("backup contains %d groups, close to the service limit", n))
	}
	if n := len(data.PermissionSets); n > warnPermissionSets {
		result.AddWarning(fmt.Sprintf("backup contains %d permission sets, close to the service limit", n))
	}

	if targetAccount != "" && data.Metadata.SourceAccount != "" && targetAccount != data.Metadata.SourceAccount {
		result.Details["cross_account"] = "true"
		result.AddWarning(fmt.Sprintf("cross-account restore: source %s, target %s",
			data.Metadata.SourceAccount, targetAccount))
	}
	if targetRegion != "" && data.Metadata.SourceRegion != "" && targetRegion != data.Metadata.SourceRegion {
		result.Details["cross_region"] = "true"
		result.AddWarning(fmt.Sprintf("cross-region restore: source %s, target %s",
			data.Metadata.SourceRegion, targetRegion))
	}
	return result, nil
}

// parseInstanceARN extracts the region and account segments of an ARN,
// returning empty strings when the ARN does not carry them.
func parseInstanceARN(arn string) (account, region string) {
	parts := strings.SplitN(arn, ":", 6)
	if len(parts) != 6 {
		return "", ""
	}
	return parts[4], parts[3]
}
