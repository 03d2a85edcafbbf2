/*
Package types defines the shared data model for idman: principals, permission
sets, assignments, backups, templates, retention policies, and the restore
operation journal.

All entities carry JSON tags for storage and export; template and
configuration types additionally carry YAML tags. Identity rules:

  - User and Group names are unique per identity store; the directory-assigned
    ID is the stable key.
  - PermissionSet names are unique within an instance; the ARN is the stable
    key.
  - Assignment identity is the (account, permission set, principal type,
    principal id) 4-tuple; duplicate assignments are idempotent no-ops.

Types here have no behaviour beyond small pure helpers so that every other
package can depend on them without cycles.
*/
package types
