package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pavelanni/aidiag/internal/scoring"
	"github.com/pavelanni/aidiag/internal/store"
)

func TestLoadCatalog(t *testing.T) {
	c, err := loadCatalog("", scoring.Sectioned)
	require.NoError(t, err)
	assert.Equal(t, "sectioned", c.Name())

	c, err = loadCatalog("weighted", scoring.Sectioned)
	require.NoError(t, err)
	assert.Equal(t, "weighted", c.Name())

	_, err = loadCatalog("missing.json", scoring.Weighted)
	assert.Error(t, err)
}

func TestReadSubmission(t *testing.T) {
	sub, err := readSubmission([]byte(`{"companyName":"Acme","responses":{"q1":5,"q2":"3"}}`))
	require.NoError(t, err)
	assert.Equal(t, "Acme", sub.CompanyName)
	assert.Equal(t, 3, sub.Responses["q2"])

	sub, err = readSubmission([]byte(`{"q1":4,"q2":2}`))
	require.NoError(t, err)
	assert.Equal(t, 4, sub.Responses["q1"])

	_, err = readSubmission([]byte(`[1,2]`))
	assert.Error(t, err)
}

func TestSeedAdminAndInstance(t *testing.T) {
	ctx := context.Background()
	db, err := store.New(":memory:")
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, seedAdmin(ctx, db, "admin", ""))
	n, err := db.AdminCount(ctx)
	require.NoError(t, err)
	assert.Zero(t, n, "no password, no admin")

	require.NoError(t, seedAdmin(ctx, db, "admin", "pw"))
	require.NoError(t, seedAdmin(ctx, db, "other", "pw"))
	n, err = db.AdminCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n, "seeding only happens on an empty table")

	catalog, err := scoring.LoadCatalog("weighted")
	require.NoError(t, err)
	require.NoError(t, checkInstance(ctx, db, scoring.Weighted, catalog))
	require.NoError(t, checkInstance(ctx, db, scoring.Sectioned, catalog))
	info, err := db.GetInstanceInfo(ctx)
	require.NoError(t, err)
	assert.Equal(t, "weighted", info.Scheme, "first recorded setup is kept")
}
