package ownership

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tech-arch1tect/otpauth/services/jwt"
	"github.com/tech-arch1tect/otpauth/testutils"
)

type note struct {
	ID     string `gorm:"primaryKey;size:36"`
	UserID string `gorm:"size:36;index;not null"`
	Title  string
}

var (
	alice = &jwt.Identity{UserID: "user-a"}
	bob   = &jwt.Identity{UserID: "user-b"}
)

func TestAuthorize(t *testing.T) {
	assert.True(t, Authorize(alice, "user-a"))
	assert.False(t, Authorize(bob, "user-a"))
	assert.False(t, Authorize(nil, "user-a"))
	assert.False(t, Authorize(&jwt.Identity{}, ""))
	assert.False(t, Authorize(alice, ""))
}

func TestCheck(t *testing.T) {
	db := testutils.SetupTestDB(t, &note{})
	require.NoError(t, db.Create(&note{ID: "n-1", UserID: "user-a", Title: "groceries"}).Error)
	lookup := GormLookup(db, &note{})
	ctx := context.Background()

	assert.NoError(t, Check(ctx, alice, lookup, "n-1"))
	assert.ErrorIs(t, Check(ctx, bob, lookup, "n-1"), ErrNotOwner)
	assert.ErrorIs(t, Check(ctx, alice, lookup, "n-404"), ErrResourceNotFound)
	assert.ErrorIs(t, Check(ctx, nil, lookup, "n-1"), ErrUnauthenticated)
}

func TestCheck_LookupError(t *testing.T) {
	failing := OwnerLookupFunc(func(ctx context.Context, resourceID string) (string, error) {
		return "", errors.New("connection reset")
	})

	err := Check(context.Background(), alice, failing, "n-1")

	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrNotOwner))
	assert.False(t, errors.Is(err, ErrResourceNotFound))
}

func TestScopeOwner(t *testing.T) {
	db := testutils.SetupTestDB(t, &note{})
	require.NoError(t, db.Create([]note{
		{ID: "n-1", UserID: "user-a", Title: "a1"},
		{ID: "n-2", UserID: "user-a", Title: "a2"},
		{ID: "n-3", UserID: "user-b", Title: "b1"},
	}).Error)

	var mine []note
	require.NoError(t, db.Scopes(ScopeOwner(alice)).Order("id").Find(&mine).Error)
	require.Len(t, mine, 2)
	assert.Equal(t, "n-1", mine[0].ID)
	assert.Equal(t, "n-2", mine[1].ID)

	var anonymous []note
	require.NoError(t, db.Scopes(ScopeOwner(nil)).Find(&anonymous).Error)
	assert.Empty(t, anonymous)
}
