package directory

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials/stscreds"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	iamtypes "github.com/aws/aws-sdk-go-v2/service/iam/types"
	"github.com/aws/aws-sdk-go-v2/service/identitystore"
	"github.com/aws/aws-sdk-go-v2/service/identitystore/document"
	idstypes "github.com/aws/aws-sdk-go-v2/service/identitystore/types"
	"github.com/aws/aws-sdk-go-v2/service/organizations"
	"github.com/aws/aws-sdk-go-v2/service/ssoadmin"
	ssotypes "github.com/aws/aws-sdk-go-v2/service/ssoadmin/types"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/aws/smithy-go"

	"github.com/cloudsmiths/idman/pkg/errdefs"
	"github.com/cloudsmiths/idman/pkg/types"
)

// classify maps an AWS API failure onto the error taxonomy, so callers
// can distinguish transient throttling and availability faults from hard
// failures. Errors without a recognised API code pass through wrapped.
func classify(err error, msg string) error {
	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return fmt.Errorf("%s: %w", msg, err)
	}
	switch apiErr.ErrorCode() {
	case "ThrottlingException", "TooManyRequestsException", "RequestLimitExceeded", "SlowDown":
		return errdefs.Wrap(errdefs.KindExecution, errdefs.CodeRateLimited, msg, err)
	case "ServiceUnavailableException", "ServiceUnavailable", "InternalServerException", "InternalFailure", "ServiceFailure":
		return errdefs.Wrap(errdefs.KindExecution, errdefs.CodeServiceUnavailable, msg, err)
	case "RequestTimeout", "RequestTimeoutException":
		return errdefs.Wrap(errdefs.KindNetwork, errdefs.CodeRequestTimeout, msg, err)
	case "AccessDeniedException", "AccessDenied":
		return errdefs.Wrap(errdefs.KindPermission, errdefs.CodeAccessDenied, msg, err)
	case "ResourceNotFoundException":
		return errdefs.Wrap(errdefs.KindValidation, errdefs.CodeNotFound, msg, err)
	}
	return fmt.Errorf("%s: %w", msg, err)
}

// AWSClient implements Client against AWS Identity Center: ssoadmin for
// permission sets and assignments, identitystore for users and groups,
// organizations for the account inventory, iam for policy existence.
type AWSClient struct {
	sso             *ssoadmin.Client
	ids             *identitystore.Client
	orgs            *organizations.Client
	iam             *iam.Client
	instanceARN     string
	identityStoreID string
	region          string
}

// NewAWSClient builds a client from the ambient credential chain
func NewAWSClient(ctx context.Context, region, instanceARN, identityStoreID string) (*AWSClient, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, classify(err, "failed to load AWS configuration")
	}
	return newAWSClient(cfg, region, instanceARN, identityStoreID), nil
}

func newAWSClient(cfg aws.Config, region, instanceARN, identityStoreID string) *AWSClient {
	return &AWSClient{
		sso:             ssoadmin.NewFromConfig(cfg),
		ids:             identitystore.NewFromConfig(cfg),
		orgs:            organizations.NewFromConfig(cfg),
		iam:             iam.NewFromConfig(cfg),
		instanceARN:     instanceARN,
		identityStoreID: identityStoreID,
		region:          region,
	}
}

func (c *AWSClient) ListUsers(ctx context.Context) ([]types.User, error) {
	var out []types.User
	p := identitystore.NewListUsersPaginator(c.ids, &identitystore.ListUsersInput{
		IdentityStoreId: aws.String(c.identityStoreID),
	})
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, classify(err, "failed to list users")
		}
		for _, u := range page.Users {
			out = append(out, fromAWSUser(u))
		}
	}
	return out, nil
}

func fromAWSUser(u idstypes.User) types.User {
	user := types.User{
		ID:          aws.ToString(u.UserId),
		Name:        aws.ToString(u.UserName),
		DisplayName: aws.ToString(u.DisplayName),
		Active:      true,
	}
	if u.Name != nil {
		user.GivenName = aws.ToString(u.Name.GivenName)
		user.FamilyName = aws.ToString(u.Name.FamilyName)
	}
	for _, e := range u.Emails {
		if e.Primary || user.Email == "" {
			user.Email = aws.ToString(e.Value)
		}
	}
	for _, ext := range u.ExternalIds {
		if user.ExternalIDs == nil {
			user.ExternalIDs = make(map[string]string)
		}
		user.ExternalIDs[aws.ToString(ext.Issuer)] = aws.ToString(ext.Id)
	}
	return user
}

func (c *AWSClient) DescribeUser(ctx context.Context, id string) (*types.User, error) {
	out, err := c.ids.DescribeUser(ctx, &identitystore.DescribeUserInput{
		IdentityStoreId: aws.String(c.identityStoreID),
		UserId:          aws.String(id),
	})
	if err != nil {
		return nil, classify(err, fmt.Sprintf("failed to describe user %s", id))
	}
	user := fromAWSUser(idstypes.User{
		UserId:      out.UserId,
		UserName:    out.UserName,
		DisplayName: out.DisplayName,
		Name:        out.Name,
		Emails:      out.Emails,
		ExternalIds: out.ExternalIds,
	})
	return &user, nil
}

func (c *AWSClient) CreateUser(ctx context.Context, user types.User) (*types.User, error) {
	in := &identitystore.CreateUserInput{
		IdentityStoreId: aws.String(c.identityStoreID),
		UserName:        aws.String(user.Name),
		DisplayName:     aws.String(user.DisplayName),
	}
	if user.GivenName != "" || user.FamilyName != "" {
		in.Name = &idstypes.Name{
			GivenName:  aws.String(user.GivenName),
			FamilyName: aws.String(user.FamilyName),
		}
	}
	if user.Email != "" {
		in.Emails = []idstypes.Email{{Value: aws.String(user.Email), Primary: true}}
	}
	out, err := c.ids.CreateUser(ctx, in)
	if err != nil {
		return nil, classify(err, fmt.Sprintf("failed to create user %s", user.Name))
	}
	created := user
	created.ID = aws.ToString(out.UserId)
	return &created, nil
}

func (c *AWSClient) UpdateUser(ctx context.Context, user types.User) error {
	ops := []idstypes.AttributeOperation{
		{AttributePath: aws.String("displayName"), AttributeValue: document.NewLazyDocument(user.DisplayName)},
	}
	if user.GivenName != "" {
		ops = append(ops, idstypes.AttributeOperation{
			AttributePath: aws.String("name.givenName"), AttributeValue: document.NewLazyDocument(user.GivenName),
		})
	}
	if user.FamilyName != "" {
		ops = append(ops, idstypes.AttributeOperation{
			AttributePath: aws.String("name.familyName"), AttributeValue: document.NewLazyDocument(user.FamilyName),
		})
	}
	_, err := c.ids.UpdateUser(ctx, &identitystore.UpdateUserInput{
		IdentityStoreId: aws.String(c.identityStoreID),
		UserId:          aws.String(user.ID),
		Operations:      ops,
	})
	if err != nil {
		return classify(err, fmt.Sprintf("failed to update user %s", user.ID))
	}
	return nil
}

func (c *AWSClient) DeleteUser(ctx context.Context, id string) error {
	_, err := c.ids.DeleteUser(ctx, &identitystore.DeleteUserInput{
		IdentityStoreId: aws.String(c.identityStoreID),
		UserId:          aws.String(id),
	})
	if err != nil {
		return classify(err, fmt.Sprintf("failed to delete user %s", id))
	}
	return nil
}

func (c *AWSClient) ListGroups(ctx context.Context) ([]types.Group, error) {
	var out []types.Group
	p := identitystore.NewListGroupsPaginator(c.ids, &identitystore.ListGroupsInput{
		IdentityStoreId: aws.String(c.identityStoreID),
	})
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, classify(err, "failed to list groups")
		}
		for _, g := range page.Groups {
			group := types.Group{
				ID:          aws.ToString(g.GroupId),
				Name:        aws.ToString(g.DisplayName),
				Description: aws.ToString(g.Description),
			}
			members, err := c.listGroupMembers(ctx, group.ID)
			if err != nil {
				return nil, err
			}
			group.MemberIDs = members
			out = append(out, group)
		}
	}
	return out, nil
}

func (c *AWSClient) listGroupMembers(ctx context.Context, groupID string) ([]string, error) {
	var members []string
	p := identitystore.NewListGroupMembershipsPaginator(c.ids, &identitystore.ListGroupMembershipsInput{
		IdentityStoreId: aws.String(c.identityStoreID),
		GroupId:         aws.String(groupID),
	})
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, classify(err, fmt.Sprintf("failed to list members of group %s", groupID))
		}
		for _, m := range page.GroupMemberships {
			if userID, ok := m.MemberId.(*idstypes.MemberIdMemberUserId); ok {
				members = append(members, userID.Value)
			}
		}
	}
	return members, nil
}

func (c *AWSClient) DescribeGroup(ctx context.Context, id string) (*types.Group, error) {
	out, err := c.ids.DescribeGroup(ctx, &identitystore.DescribeGroupInput{
		IdentityStoreId: aws.String(c.identityStoreID),
		GroupId:         aws.String(id),
	})
	if err != nil {
		return nil, classify(err, fmt.Sprintf("failed to describe group %s", id))
	}
	members, err := c.listGroupMembers(ctx, id)
	if err != nil {
		return nil, err
	}
	return &types.Group{
		ID:          aws.ToString(out.GroupId),
		Name:        aws.ToString(out.DisplayName),
		Description: aws.ToString(out.Description),
		MemberIDs:   members,
	}, nil
}

func (c *AWSClient) CreateGroup(ctx context.Context, group types.Group) (*types.Group, error) {
	out, err := c.ids.CreateGroup(ctx, &identitystore.CreateGroupInput{
		IdentityStoreId: aws.String(c.identityStoreID),
		DisplayName:     aws.String(group.Name),
		Description:     aws.String(group.Description),
	})
	if err != nil {
		return nil, classify(err, fmt.Sprintf("failed to create group %s", group.Name))
	}
	created := group
	created.ID = aws.ToString(out.GroupId)
	return &created, nil
}

func (c *AWSClient) UpdateGroup(ctx context.Context, group types.Group) error {
	_, err := c.ids.UpdateGroup(ctx, &identitystore.UpdateGroupInput{
		IdentityStoreId: aws.String(c.identityStoreID),
		GroupId:         aws.String(group.ID),
		Operations: []idstypes.AttributeOperation{
			{AttributePath: aws.String("description"), AttributeValue: document.NewLazyDocument(group.Description)},
		},
	})
	if err != nil {
		return classify(err, fmt.Sprintf("failed to update group %s", group.ID))
	}
	return nil
}

func (c *AWSClient) DeleteGroup(ctx context.Context, id string) error {
	_, err := c.ids.DeleteGroup(ctx, &identitystore.DeleteGroupInput{
		IdentityStoreId: aws.String(c.identityStoreID),
		GroupId:         aws.String(id),
	})
	if err != nil {
		return classify(err, fmt.Sprintf("failed to delete group %s", id))
	}
	return nil
}

func (c *AWSClient) ListPermissionSets(ctx context.Context) ([]types.PermissionSet, error) {
	var out []types.PermissionSet
	p := ssoadmin.NewListPermissionSetsPaginator(c.sso, &ssoadmin.ListPermissionSetsInput{
		InstanceArn: aws.String(c.instanceARN),
	})
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, classify(err, "failed to list permission sets")
		}
		for _, arn := range page.PermissionSets {
			ps, err := c.DescribePermissionSet(ctx, arn)
			if err != nil {
				return nil, err
			}
			out = append(out, *ps)
		}
	}
	return out, nil
}

func (c *AWSClient) DescribePermissionSet(ctx context.Context, arn string) (*types.PermissionSet, error) {
	out, err := c.sso.DescribePermissionSet(ctx, &ssoadmin.DescribePermissionSetInput{
		InstanceArn:      aws.String(c.instanceARN),
		PermissionSetArn: aws.String(arn),
	})
	if err != nil {
		return nil, classify(err, fmt.Sprintf("failed to describe permission set %s", arn))
	}
	ps := &types.PermissionSet{
		ARN:             arn,
		Name:            aws.ToString(out.PermissionSet.Name),
		Description:     aws.ToString(out.PermissionSet.Description),
		SessionDuration: aws.ToString(out.PermissionSet.SessionDuration),
		RelayState:      aws.ToString(out.PermissionSet.RelayState),
	}

	managed, err := c.sso.ListManagedPoliciesInPermissionSet(ctx, &ssoadmin.ListManagedPoliciesInPermissionSetInput{
		InstanceArn:      aws.String(c.instanceARN),
		PermissionSetArn: aws.String(arn),
	})
	if err != nil {
		return nil, classify(err, fmt.Sprintf("failed to list managed policies for %s", arn))
	}
	for _, mp := range managed.AttachedManagedPolicies {
		ps.ManagedPolicies = append(ps.ManagedPolicies, aws.ToString(mp.Arn))
	}

	inline, err := c.sso.GetInlinePolicyForPermissionSet(ctx, &ssoadmin.GetInlinePolicyForPermissionSetInput{
		InstanceArn:      aws.String(c.instanceARN),
		PermissionSetArn: aws.String(arn),
	})
	if err != nil {
		return nil, classify(err, fmt.Sprintf("failed to get inline policy for %s", arn))
	}
	ps.InlinePolicy = aws.ToString(inline.InlinePolicy)

	custom, err := c.sso.ListCustomerManagedPolicyReferencesInPermissionSet(ctx,
		&ssoadmin.ListCustomerManagedPolicyReferencesInPermissionSetInput{
			InstanceArn:      aws.String(c.instanceARN),
			PermissionSetArn: aws.String(arn),
		})
	if err != nil {
		return nil, classify(err, fmt.Sprintf("failed to list customer managed policies for %s", arn))
	}
	for _, ref := range custom.CustomerManagedPolicyReferences {
		ps.CustomerManagedPolicies = append(ps.CustomerManagedPolicies, types.CustomerManagedPolicy{
			Name: aws.ToString(ref.Name),
			Path: aws.ToString(ref.Path),
		})
	}
	return ps, nil
}

func (c *AWSClient) CreatePermissionSet(ctx context.Context, ps types.PermissionSet) (*types.PermissionSet, error) {
	in := &ssoadmin.CreatePermissionSetInput{
		InstanceArn: aws.String(c.instanceARN),
		Name:        aws.String(ps.Name),
	}
	if ps.Description != "" {
		in.Description = aws.String(ps.Description)
	}
	if ps.SessionDuration != "" {
		in.SessionDuration = aws.String(ps.SessionDuration)
	}
	if ps.RelayState != "" {
		in.RelayState = aws.String(ps.RelayState)
	}
	out, err := c.sso.CreatePermissionSet(ctx, in)
	if err != nil {
		return nil, classify(err, fmt.Sprintf("failed to create permission set %s", ps.Name))
	}
	created := ps
	created.ARN = aws.ToString(out.PermissionSet.PermissionSetArn)

	for _, policyARN := range ps.ManagedPolicies {
		_, err := c.sso.AttachManagedPolicyToPermissionSet(ctx, &ssoadmin.AttachManagedPolicyToPermissionSetInput{
			InstanceArn:      aws.String(c.instanceARN),
			PermissionSetArn: aws.String(created.ARN),
			ManagedPolicyArn: aws.String(policyARN),
		})
		if err != nil {
			return nil, classify(err, fmt.Sprintf("failed to attach policy %s to %s", policyARN, ps.Name))
		}
	}
	if ps.InlinePolicy != "" {
		_, err := c.sso.PutInlinePolicyToPermissionSet(ctx, &ssoadmin.PutInlinePolicyToPermissionSetInput{
			InstanceArn:      aws.String(c.instanceARN),
			PermissionSetArn: aws.String(created.ARN),
			InlinePolicy:     aws.String(ps.InlinePolicy),
		})
		if err != nil {
			return nil, classify(err, fmt.Sprintf("failed to put inline policy on %s", ps.Name))
		}
	}
	return &created, nil
}

func (c *AWSClient) UpdatePermissionSet(ctx context.Context, ps types.PermissionSet) error {
	in := &ssoadmin.UpdatePermissionSetInput{
		InstanceArn:      aws.String(c.instanceARN),
		PermissionSetArn: aws.String(ps.ARN),
	}
	if ps.Description != "" {
		in.Description = aws.String(ps.Description)
	}
	if ps.SessionDuration != "" {
		in.SessionDuration = aws.String(ps.SessionDuration)
	}
	if ps.RelayState != "" {
		in.RelayState = aws.String(ps.RelayState)
	}
	if _, err := c.sso.UpdatePermissionSet(ctx, in); err != nil {
		return classify(err, fmt.Sprintf("failed to update permission set %s", ps.Name))
	}
	return nil
}

func (c *AWSClient) DeletePermissionSet(ctx context.Context, arn string) error {
	_, err := c.sso.DeletePermissionSet(ctx, &ssoadmin.DeletePermissionSetInput{
		InstanceArn:      aws.String(c.instanceARN),
		PermissionSetArn: aws.String(arn),
	})
	if err != nil {
		return classify(err, fmt.Sprintf("failed to delete permission set %s", arn))
	}
	return nil
}

func (c *AWSClient) ListAssignments(ctx context.Context, accountID, permissionSetARN string) ([]types.Assignment, error) {
	var out []types.Assignment
	p := ssoadmin.NewListAccountAssignmentsPaginator(c.sso, &ssoadmin.ListAccountAssignmentsInput{
		InstanceArn:      aws.String(c.instanceARN),
		AccountId:        aws.String(accountID),
		PermissionSetArn: aws.String(permissionSetARN),
	})
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, classify(err, fmt.Sprintf("failed to list assignments for %s/%s", accountID, permissionSetARN))
		}
		for _, a := range page.AccountAssignments {
			out = append(out, types.Assignment{
				AccountID:        aws.ToString(a.AccountId),
				PermissionSetARN: aws.ToString(a.PermissionSetArn),
				PrincipalType:    types.PrincipalType(a.PrincipalType),
				PrincipalID:      aws.ToString(a.PrincipalId),
			})
		}
	}
	return out, nil
}

func (c *AWSClient) ListAllAssignments(ctx context.Context) ([]types.Assignment, error) {
	var out []types.Assignment
	psPager := ssoadmin.NewListPermissionSetsPaginator(c.sso, &ssoadmin.ListPermissionSetsInput{
		InstanceArn: aws.String(c.instanceARN),
	})
	for psPager.HasMorePages() {
		psPage, err := psPager.NextPage(ctx)
		if err != nil {
			return nil, classify(err, "failed to list permission sets")
		}
		for _, psARN := range psPage.PermissionSets {
			acctPager := ssoadmin.NewListAccountsForProvisionedPermissionSetPaginator(c.sso,
				&ssoadmin.ListAccountsForProvisionedPermissionSetInput{
					InstanceArn:      aws.String(c.instanceARN),
					PermissionSetArn: aws.String(psARN),
				})
			for acctPager.HasMorePages() {
				acctPage, err := acctPager.NextPage(ctx)
				if err != nil {
					return nil, classify(err, fmt.Sprintf("failed to list accounts for %s", psARN))
				}
				for _, accountID := range acctPage.AccountIds {
					assignments, err := c.ListAssignments(ctx, accountID, psARN)
					if err != nil {
						return nil, err
					}
					out = append(out, assignments...)
				}
			}
		}
	}
	return out, nil
}

func (c *AWSClient) CreateAssignment(ctx context.Context, a types.Assignment) error {
	_, err := c.sso.CreateAccountAssignment(ctx, &ssoadmin.CreateAccountAssignmentInput{
		InstanceArn:      aws.String(c.instanceARN),
		TargetId:         aws.String(a.AccountID),
		TargetType:       ssotypes.TargetTypeAwsAccount,
		PermissionSetArn: aws.String(a.PermissionSetARN),
		PrincipalType:    ssotypes.PrincipalType(a.PrincipalType),
		PrincipalId:      aws.String(a.PrincipalID),
	})
	if err != nil {
		return classify(err, fmt.Sprintf("failed to create assignment %s", a.Key()))
	}
	return nil
}

func (c *AWSClient) DeleteAssignment(ctx context.Context, a types.Assignment) error {
	_, err := c.sso.DeleteAccountAssignment(ctx, &ssoadmin.DeleteAccountAssignmentInput{
		InstanceArn:      aws.String(c.instanceARN),
		TargetId:         aws.String(a.AccountID),
		TargetType:       ssotypes.TargetTypeAwsAccount,
		PermissionSetArn: aws.String(a.PermissionSetARN),
		PrincipalType:    ssotypes.PrincipalType(a.PrincipalType),
		PrincipalId:      aws.String(a.PrincipalID),
	})
	if err != nil {
		return classify(err, fmt.Sprintf("failed to delete assignment %s", a.Key()))
	}
	return nil
}

func (c *AWSClient) ListInstances(ctx context.Context) ([]Instance, error) {
	out, err := c.sso.ListInstances(ctx, &ssoadmin.ListInstancesInput{})
	if err != nil {
		return nil, classify(err, "failed to list instances")
	}
	instances := make([]Instance, 0, len(out.Instances))
	for _, inst := range out.Instances {
		instances = append(instances, Instance{
			ARN:             aws.ToString(inst.InstanceArn),
			IdentityStoreID: aws.ToString(inst.IdentityStoreId),
			AccountID:       aws.ToString(inst.OwnerAccountId),
			Region:          c.region,
		})
	}
	return instances, nil
}

func (c *AWSClient) DescribeInstance(ctx context.Context, arn string) (*Instance, error) {
	instances, err := c.ListInstances(ctx)
	if err != nil {
		return nil, err
	}
	for _, inst := range instances {
		if inst.ARN == arn {
			return &inst, nil
		}
	}
	return nil, fmt.Errorf("instance not found: %s", arn)
}

func (c *AWSClient) ListAccounts(ctx context.Context) ([]types.Account, error) {
	var out []types.Account
	p := organizations.NewListAccountsPaginator(c.orgs, &organizations.ListAccountsInput{})
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, classify(err, "failed to list accounts")
		}
		for _, a := range page.Accounts {
			out = append(out, types.Account{
				ID:     aws.ToString(a.Id),
				Name:   aws.ToString(a.Name),
				Email:  aws.ToString(a.Email),
				Status: string(a.Status),
			})
		}
	}
	return out, nil
}

func (c *AWSClient) DescribeAccount(ctx context.Context, id string) (*types.Account, error) {
	out, err := c.orgs.DescribeAccount(ctx, &organizations.DescribeAccountInput{
		AccountId: aws.String(id),
	})
	if err != nil {
		return nil, classify(err, fmt.Sprintf("failed to describe account %s", id))
	}
	return &types.Account{
		ID:     aws.ToString(out.Account.Id),
		Name:   aws.ToString(out.Account.Name),
		Email:  aws.ToString(out.Account.Email),
		Status: string(out.Account.Status),
	}, nil
}

func (c *AWSClient) ListAccountTags(ctx context.Context, accountID string) (map[string]string, error) {
	tags := make(map[string]string)
	p := organizations.NewListTagsForResourcePaginator(c.orgs, &organizations.ListTagsForResourceInput{
		ResourceId: aws.String(accountID),
	})
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, classify(err, fmt.Sprintf("failed to list tags for account %s", accountID))
		}
		for _, t := range page.Tags {
			tags[aws.ToString(t.Key)] = aws.ToString(t.Value)
		}
	}
	return tags, nil
}

func (c *AWSClient) PolicyExists(ctx context.Context, arn string) (bool, error) {
	_, err := c.iam.GetPolicy(ctx, &iam.GetPolicyInput{PolicyArn: aws.String(arn)})
	if err != nil {
		var notFound *iamtypes.NoSuchEntityException
		if errors.As(err, &notFound) {
			return false, nil
		}
		return false, classify(err, fmt.Sprintf("failed to check policy %s", arn))
	}
	return true, nil
}

var _ Client = (*AWSClient)(nil)

// AWSFactory builds assumed-role clients for cross-account collection
type AWSFactory struct {
	Region          string
	InstanceARN     string
	IdentityStoreID string
}

// ClientFor assumes the configured role and returns a client operating
// under its credentials.
func (f *AWSFactory) ClientFor(ctx context.Context, cross types.CrossAccountConfig) (Client, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(f.Region))
	if err != nil {
		return nil, classify(err, "failed to load AWS configuration")
	}
	provider := stscreds.NewAssumeRoleProvider(sts.NewFromConfig(cfg), cross.RoleARN,
		func(o *stscreds.AssumeRoleOptions) {
			if cross.ExternalID != "" {
				o.ExternalID = aws.String(cross.ExternalID)
			}
		})
	cfg.Credentials = aws.NewCredentialsCache(provider)
	return newAWSClient(cfg, f.Region, f.InstanceARN, f.IdentityStoreID), nil
}

var _ Factory = (*AWSFactory)(nil)
