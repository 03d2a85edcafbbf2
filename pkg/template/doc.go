/*
Package template implements declarative access templates.

A template names entities ("user:alice", "group:devs"), permission sets,
and target accounts, either as explicit ids or as tag filters over the
organization. Validation runs in two stages: structural checks that need
no directory access, then semantic resolution of every reference.
Expansion is the cross product of entities, permission sets, and the
resolved account set of each assignment block; the result is fed through
the bulk pipeline so template application inherits its idempotence,
batching, and retry behavior.
*/
package template
