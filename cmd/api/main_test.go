package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFlags(t *testing.T) {
	opts, err := parseFlags([]string{"--env-file", "a.env,b.env", "--migrate-only", "--token-ttl", "30m"})
	require.NoError(t, err)
	assert.Equal(t, []string{"a.env", "b.env"}, opts.envFiles)
	assert.True(t, opts.migrateOnly)
	assert.Equal(t, 30*time.Minute, opts.tokenTTL)
	assert.Empty(t, opts.issueToken)
}

func TestParseFlagsDefaults(t *testing.T) {
	opts, err := parseFlags(nil)
	require.NoError(t, err)
	assert.Nil(t, opts.envFiles)
	assert.False(t, opts.migrateOnly)
	assert.Equal(t, time.Hour, opts.tokenTTL)
}

func TestParseFlagsRejectsUnknown(t *testing.T) {
	_, err := parseFlags([]string{"--nope"})
	assert.Error(t, err)
}
