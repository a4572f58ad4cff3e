package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/spml-provisioner/internal/models"
	appErrors "github.com/noah-isme/spml-provisioner/pkg/errors"
)

func TestOrgLookupResolvesAndCaches(t *testing.T) {
	code := "CSC"
	store := &fakeOrgs{units: map[int]*models.OrgUnit{100: {OrgUnit: 100, Code: &code, Description: "Computer Science"}}}
	repo := newMemoryCacheRepo()
	svc := NewOrgLookupService(store, NewCacheService(repo, nil, time.Minute, nil, true), nil, time.Hour, nil)
	ctx := context.Background()

	got, err := svc.ResolveCode(ctx, "100", "Computer Science")
	require.NoError(t, err)
	assert.Equal(t, "CSC", got)
	assert.Equal(t, time.Hour, repo.ttls[orgCacheKey(100)])

	got, err = svc.ResolveCode(ctx, "100", "Computer Science")
	require.NoError(t, err)
	assert.Equal(t, "CSC", got)
	assert.Equal(t, 1, store.finds)
}

func TestOrgLookupRegistersUnknownUnit(t *testing.T) {
	store := &fakeOrgs{}
	svc := NewOrgLookupService(store, nil, nil, time.Hour, nil)
	ctx := context.Background()

	got, err := svc.ResolveCode(ctx, "200", "New Unit")
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Equal(t, []int{200}, store.inserted)
	assert.Equal(t, "New Unit", store.units[200].Description)

	// the placeholder has no code yet and is looked up again next time
	got, err = svc.ResolveCode(ctx, "200", "New Unit")
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Equal(t, 2, store.finds)
	assert.Equal(t, []int{200}, store.inserted)
}

func TestOrgLookupIgnoresBadInput(t *testing.T) {
	store := &fakeOrgs{}
	svc := NewOrgLookupService(store, nil, nil, time.Hour, nil)

	for _, unit := range []string{"", "abc"} {
		got, err := svc.ResolveCode(context.Background(), unit, "x")
		require.NoError(t, err)
		assert.Empty(t, got)
	}
	assert.Zero(t, store.finds)
}

func TestOrgLookupInsertFailure(t *testing.T) {
	store := &fakeOrgs{insertErr: errBoom}
	svc := NewOrgLookupService(store, nil, nil, time.Hour, nil)

	_, err := svc.ResolveCode(context.Background(), "300", "x")
	assert.True(t, appErrors.Is(err, appErrors.ErrInternal))
}

func TestOrgLookupDropsUnreadableCacheEntry(t *testing.T) {
	store := &fakeOrgs{units: map[int]*models.OrgUnit{400: {OrgUnit: 400, Description: "Pending Unit"}}}
	repo := newMemoryCacheRepo()
	repo.values[orgCacheKey(400)] = []byte("{not json")
	svc := NewOrgLookupService(store, NewCacheService(repo, nil, time.Minute, nil, true), nil, time.Hour, nil)

	got, err := svc.ResolveCode(context.Background(), "400", "Pending Unit")
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Equal(t, 1, store.finds)
	assert.NotContains(t, repo.values, orgCacheKey(400))
}
