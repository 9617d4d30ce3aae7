package db

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenRequiresDSN(t *testing.T) {
	_, err := Open("", nil)
	assert.ErrorIs(t, err, ErrEmptyDSN)
}

func TestEnsureSchemaRejectsBadNames(t *testing.T) {
	for _, name := range []string{"", "ACS", "acs; drop table runs", `a"b`, "1acs"} {
		assert.Error(t, EnsureSchema(nil, name), name)
	}
}

func TestEnsureSchemaIntegration(t *testing.T) {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set")
	}
	d, err := Open(dsn, nil)
	require.NoError(t, err)
	defer Close(d)

	require.NoError(t, EnsureSchema(d, "acs"))
	require.NoError(t, EnsureSchema(d, "acs"))
}
