package tenant_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rheckart/rescue-ranger/pkg/tenant"
)

type fakeHealthStore struct {
	dups    []string
	missing int
	err     error
}

func (s *fakeHealthStore) DuplicateSubdomains(context.Context) ([]string, error) {
	return s.dups, s.err
}

func (s *fakeHealthStore) CountMissingNames(context.Context) (int, error) {
	return s.missing, s.err
}

func TestDirectoryHealthcheck(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("clean directory is healthy", func(t *testing.T) {
		t.Parallel()
		check := tenant.DirectoryHealthcheck(&fakeHealthStore{})
		require.NoError(t, check(ctx))
	})

	t.Run("duplicate subdomains degrade", func(t *testing.T) {
		t.Parallel()
		check := tenant.DirectoryHealthcheck(&fakeHealthStore{dups: []string{"sunrise"}})
		err := check(ctx)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "duplicate")
	})

	t.Run("missing names degrade", func(t *testing.T) {
		t.Parallel()
		check := tenant.DirectoryHealthcheck(&fakeHealthStore{missing: 2})
		err := check(ctx)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "missing a display name")
	})

	t.Run("store failure surfaces", func(t *testing.T) {
		t.Parallel()
		boom := errors.New("pg down")
		check := tenant.DirectoryHealthcheck(&fakeHealthStore{err: boom})
		require.ErrorIs(t, check(ctx), boom)
	})
}
