package directory

import (
	"context"
	"fmt"
	"sync"

	"github.com/cloudsmiths/idman/pkg/errdefs"
	"github.com/cloudsmiths/idman/pkg/types"
)

// Fake is an in-memory Client used by tests. It counts calls per method so
// memoisation and idempotence properties can be asserted, and supports
// scripted failures per method.
type Fake struct {
	mu sync.Mutex

	Users          map[string]types.User
	Groups         map[string]types.Group
	PermissionSets map[string]types.PermissionSet
	Assignments    map[string]types.Assignment
	Accounts       map[string]types.Account
	Instances      []Instance
	Policies       map[string]bool

	Calls    map[string]int
	failures map[string][]error
}

// NewFake creates an empty fake directory
func NewFake() *Fake {
	return &Fake{
		Users:          make(map[string]types.User),
		Groups:         make(map[string]types.Group),
		PermissionSets: make(map[string]types.PermissionSet),
		Assignments:    make(map[string]types.Assignment),
		Accounts:       make(map[string]types.Account),
		Policies:       make(map[string]bool),
		Calls:          make(map[string]int),
		failures:       make(map[string][]error),
	}
}

// FailNext queues an error to be returned by the next call to method
func (f *Fake) FailNext(method string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures[method] = append(f.failures[method], err)
}

// CallCount returns how many times method was invoked
func (f *Fake) CallCount(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Calls[method]
}

func (f *Fake) record(method string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls[method]++
	if q := f.failures[method]; len(q) > 0 {
		err := q[0]
		f.failures[method] = q[1:]
		return err
	}
	return nil
}

func (f *Fake) ListUsers(ctx context.Context) ([]types.User, error) {
	if err := f.record("ListUsers"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]types.User, 0, len(f.Users))
	for _, u := range f.Users {
		out = append(out, u)
	}
	return out, nil
}

func (f *Fake) DescribeUser(ctx context.Context, id string) (*types.User, error) {
	if err := f.record("DescribeUser"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.Users[id]
	if !ok {
		return nil, errdefs.New(errdefs.KindValidation, errdefs.CodeNotFound, fmt.Sprintf("user not found: %s", id))
	}
	return &u, nil
}

func (f *Fake) CreateUser(ctx context.Context, user types.User) (*types.User, error) {
	if err := f.record("CreateUser"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if user.ID == "" {
		user.ID = fmt.Sprintf("u-%04d", len(f.Users)+1)
	}
	f.Users[user.ID] = user
	return &user, nil
}

func (f *Fake) UpdateUser(ctx context.Context, user types.User) error {
	if err := f.record("UpdateUser"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.Users[user.ID]; !ok {
		return errdefs.New(errdefs.KindValidation, errdefs.CodeNotFound, fmt.Sprintf("user not found: %s", user.ID))
	}
	f.Users[user.ID] = user
	return nil
}

func (f *Fake) DeleteUser(ctx context.Context, id string) error {
	if err := f.record("DeleteUser"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.Users, id)
	return nil
}

func (f *Fake) ListGroups(ctx context.Context) ([]types.Group, error) {
	if err := f.record("ListGroups"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]types.Group, 0, len(f.Groups))
	for _, g := range f.Groups {
		out = append(out, g)
	}
	return out, nil
}

func (f *Fake) DescribeGroup(ctx context.Context, id string) (*types.Group, error) {
	if err := f.record("DescribeGroup"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	g, ok := f.Groups[id]
	if !ok {
		return nil, errdefs.New(errdefs.KindValidation, errdefs.CodeNotFound, fmt.Sprintf("group not found: %s", id))
	}
	return &g, nil
}

func (f *Fake) CreateGroup(ctx context.Context, group types.Group) (*types.Group, error) {
	if err := f.record("CreateGroup"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if group.ID == "" {
		group.ID = fmt.Sprintf("g-%04d", len(f.Groups)+1)
	}
	f.Groups[group.ID] = group
	return &group, nil
}

func (f *Fake) UpdateGroup(ctx context.Context, group types.Group) error {
	if err := f.record("UpdateGroup"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.Groups[group.ID]; !ok {
		return errdefs.New(errdefs.KindValidation, errdefs.CodeNotFound, fmt.Sprintf("group not found: %s", group.ID))
	}
	f.Groups[group.ID] = group
	return nil
}

func (f *Fake) DeleteGroup(ctx context.Context, id string) error {
	if err := f.record("DeleteGroup"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.Groups, id)
	return nil
}

func (f *Fake) ListPermissionSets(ctx context.Context) ([]types.PermissionSet, error) {
	if err := f.record("ListPermissionSets"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]types.PermissionSet, 0, len(f.PermissionSets))
	for _, ps := range f.PermissionSets {
		out = append(out, ps)
	}
	return out, nil
}

func (f *Fake) DescribePermissionSet(ctx context.Context, arn string) (*types.PermissionSet, error) {
	if err := f.record("DescribePermissionSet"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	ps, ok := f.PermissionSets[arn]
	if !ok {
		return nil, errdefs.New(errdefs.KindValidation, errdefs.CodeNotFound, fmt.Sprintf("permission set not found: %s", arn))
	}
	return &ps, nil
}

func (f *Fake) CreatePermissionSet(ctx context.Context, ps types.PermissionSet) (*types.PermissionSet, error) {
	if err := f.record("CreatePermissionSet"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if ps.ARN == "" {
		ps.ARN = fmt.Sprintf("arn:aws:sso:::permissionSet/ssoins-fake/ps-%04d", len(f.PermissionSets)+1)
	}
	f.PermissionSets[ps.ARN] = ps
	return &ps, nil
}

func (f *Fake) UpdatePermissionSet(ctx context.Context, ps types.PermissionSet) error {
	if err := f.record("UpdatePermissionSet"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.PermissionSets[ps.ARN]; !ok {
		return errdefs.New(errdefs.KindValidation, errdefs.CodeNotFound, fmt.Sprintf("permission set not found: %s", ps.ARN))
	}
	f.PermissionSets[ps.ARN] = ps
	return nil
}

func (f *Fake) DeletePermissionSet(ctx context.Context, arn string) error {
	if err := f.record("DeletePermissionSet"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.PermissionSets, arn)
	return nil
}

func (f *Fake) ListAssignments(ctx context.Context, accountID, permissionSetARN string) ([]types.Assignment, error) {
	if err := f.record("ListAssignments"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []types.Assignment
	for _, a := range f.Assignments {
		if a.AccountID == accountID && a.PermissionSetARN == permissionSetARN {
			out = append(out, a)
		}
	}
	return out, nil
}

func (f *Fake) ListAllAssignments(ctx context.Context) ([]types.Assignment, error) {
	if err := f.record("ListAllAssignments"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]types.Assignment, 0, len(f.Assignments))
	for _, a := range f.Assignments {
		out = append(out, a)
	}
	return out, nil
}

func (f *Fake) CreateAssignment(ctx context.Context, a types.Assignment) error {
	if err := f.record("CreateAssignment"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Assignments[a.Key()] = a
	return nil
}

func (f *Fake) DeleteAssignment(ctx context.Context, a types.Assignment) error {
	if err := f.record("DeleteAssignment"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.Assignments, a.Key())
	return nil
}

func (f *Fake) ListInstances(ctx context.Context) ([]Instance, error) {
	if err := f.record("ListInstances"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Instance(nil), f.Instances...), nil
}

func (f *Fake) DescribeInstance(ctx context.Context, arn string) (*Instance, error) {
	if err := f.record("DescribeInstance"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, inst := range f.Instances {
		if inst.ARN == arn {
			out := inst
			return &out, nil
		}
	}
	return nil, errdefs.New(errdefs.KindValidation, errdefs.CodeNotFound, fmt.Sprintf("instance not found: %s", arn))
}

func (f *Fake) ListAccounts(ctx context.Context) ([]types.Account, error) {
	if err := f.record("ListAccounts"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]types.Account, 0, len(f.Accounts))
	for _, a := range f.Accounts {
		out = append(out, a)
	}
	return out, nil
}

func (f *Fake) DescribeAccount(ctx context.Context, id string) (*types.Account, error) {
	if err := f.record("DescribeAccount"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.Accounts[id]
	if !ok {
		return nil, errdefs.New(errdefs.KindValidation, errdefs.CodeNotFound, fmt.Sprintf("account not found: %s", id))
	}
	return &a, nil
}

func (f *Fake) ListAccountTags(ctx context.Context, accountID string) (map[string]string, error) {
	if err := f.record("ListAccountTags"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.Accounts[accountID]
	if !ok {
		return nil, errdefs.New(errdefs.KindValidation, errdefs.CodeNotFound, fmt.Sprintf("account not found: %s", accountID))
	}
	return a.Tags, nil
}

func (f *Fake) PolicyExists(ctx context.Context, arn string) (bool, error) {
	if err := f.record("PolicyExists"); err != nil {
		return false, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Policies[arn], nil
}

var _ Client = (*Fake)(nil)
