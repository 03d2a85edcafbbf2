package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cloudsmiths/idman/pkg/errdefs"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadAndResolve(t *testing.T) {
	path := writeConfig(t, `
default_profile: prod
profiles:
  prod:
    instance_arn: arn:aws:sso:::instance/ssoins-1
    identity_store_id: d-123
    region: us-east-1
    retention:
      keep_daily: 7
      keep_weekly: 4
  staging:
    instance_arn: arn:aws:sso:::instance/ssoins-2
    region: eu-west-1
    orphan_cache_ttl: 30m
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	name, profile, err := cfg.Resolve("")
	require.NoError(t, err)
	assert.Equal(t, "prod", name)
	assert.Equal(t, "d-123", profile.IdentityStoreID)
	assert.Equal(t, 7, profile.Retention.KeepDaily)

	name, profile, err = cfg.Resolve("staging")
	require.NoError(t, err)
	assert.Equal(t, "staging", name)
	assert.Equal(t, 30*time.Minute, profile.OrphanTTL())
}

func TestResolveUnknownProfile(t *testing.T) {
	path := writeConfig(t, `
profiles:
  prod:
    instance_arn: arn:aws:sso:::instance/ssoins-1
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	_, _, err = cfg.Resolve("missing")
	require.Error(t, err)
	e, ok := errdefs.AsError(err)
	require.True(t, ok)
	assert.Equal(t, errdefs.CodeMissingProfile, e.Code)

	// no default configured either
	_, _, err = cfg.Resolve("")
	require.Error(t, err)
}

func TestLoadRejectsProfileWithoutInstance(t *testing.T) {
	path := writeConfig(t, `
profiles:
  broken:
    region: us-east-1
`)
	_, err := Load(path)
	require.Error(t, err)
	e, ok := errdefs.AsError(err)
	require.True(t, ok)
	assert.Equal(t, errdefs.CodeMissingInstance, e.Code)
}

func TestLoadRejectsBadRetentionSchedule(t *testing.T) {
	path := writeConfig(t, `
profiles:
  prod:
    instance_arn: arn:aws:sso:::instance/ssoins-1
    retention_schedule: "not a cron expression"
`)
	_, err := Load(path)
	require.Error(t, err)
	assert.True(t, errdefs.IsKind(err, errdefs.KindConfiguration))
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.True(t, errdefs.IsKind(err, errdefs.KindConfiguration))
}

func TestOrphanTTLDefault(t *testing.T) {
	p := Profile{}
	assert.Equal(t, time.Hour, p.OrphanTTL())
}
