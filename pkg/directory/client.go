package directory

import (
	"context"

	"github.com/cloudsmiths/idman/pkg/types"
)

// Client is the narrow directory-service capability set consumed by the
// core. Implementations must drain pagination internally and surface
// throttling as errdefs execution errors so the retry classifier can see
// them. There is no hidden global client; every component receives its
// Client at construction.
type Client interface {
	// Users
	ListUsers(ctx context.Context) ([]types.User, error)
	DescribeUser(ctx context.Context, id string) (*types.User, error)
	CreateUser(ctx context.Context, user types.User) (*types.User, error)
	UpdateUser(ctx context.Context, user types.User) error
	DeleteUser(ctx context.Context, id string) error

	// Groups
	ListGroups(ctx context.Context) ([]types.Group, error)
	DescribeGroup(ctx context.Context, id string) (*types.Group, error)
	CreateGroup(ctx context.Context, group types.Group) (*types.Group, error)
	UpdateGroup(ctx context.Context, group types.Group) error
	DeleteGroup(ctx context.Context, id string) error

	// Permission sets
	ListPermissionSets(ctx context.Context) ([]types.PermissionSet, error)
	DescribePermissionSet(ctx context.Context, arn string) (*types.PermissionSet, error)
	CreatePermissionSet(ctx context.Context, ps types.PermissionSet) (*types.PermissionSet, error)
	UpdatePermissionSet(ctx context.Context, ps types.PermissionSet) error
	DeletePermissionSet(ctx context.Context, arn string) error

	// Assignments
	ListAssignments(ctx context.Context, accountID, permissionSetARN string) ([]types.Assignment, error)
	ListAllAssignments(ctx context.Context) ([]types.Assignment, error)
	CreateAssignment(ctx context.Context, a types.Assignment) error
	DeleteAssignment(ctx context.Context, a types.Assignment) error

	// Instances
	ListInstances(ctx context.Context) ([]Instance, error)
	DescribeInstance(ctx context.Context, arn string) (*Instance, error)

	// Accounts
	ListAccounts(ctx context.Context) ([]types.Account, error)
	DescribeAccount(ctx context.Context, id string) (*types.Account, error)
	ListAccountTags(ctx context.Context, accountID string) (map[string]string, error)

	// PolicyExists reports whether a managed policy ARN exists
	PolicyExists(ctx context.Context, arn string) (bool, error)
}

// Instance is the top-level namespace containing an identity store and its
// permission sets
type Instance struct {
	ARN             string `json:"arn"`
	IdentityStoreID string `json:"identity_store_id"`
	AccountID       string `json:"account_id"`
	Region          string `json:"region"`
}

// Factory builds clients for cross-account operations. The returned client
// operates with the credentials of the assumed role.
type Factory interface {
	ClientFor(ctx context.Context, cfg types.CrossAccountConfig) (Client, error)
}
