package auth

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thanhnp/coin-tracker/internal/logger"
	"github.com/thanhnp/coin-tracker/internal/models"
	"github.com/thanhnp/coin-tracker/internal/storage"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	db, err := storage.NewMemPebbleDB()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewService(storage.NewUserStore(db), logger.Discard())
}

func TestHashAndVerifyPassword(t *testing.T) {
	hash, err := HashPassword("correct horse")
	require.NoError(t, err)
	assert.NotEqual(t, "correct horse", hash)
	assert.NoError(t, VerifyPassword("correct horse", hash))
	assert.Error(t, VerifyPassword("battery staple", hash))
}

func TestRegisterAndAuthenticate(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	u, err := s.Register(ctx, "satoshi", "hunter2hunter2")
	require.NoError(t, err)
	assert.Equal(t, "satoshi", u.Username)
	assert.False(t, u.CreatedAt.IsZero())

	got, err := s.Authenticate(ctx, "satoshi", "hunter2hunter2")
	require.NoError(t, err)
	assert.Equal(t, "satoshi", got.Username)
}

func TestRegister_Duplicate(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	_, err := s.Register(ctx, "satoshi", "hunter2hunter2")
	require.NoError(t, err)

	_, err = s.Register(ctx, "satoshi", "another-password")
	require.Error(t, err)
	assert.Equal(t, models.KindConflict, models.KindOf(err))
	assert.ErrorIs(t, err, models.ErrUserExists)
}

func TestRegister_Validation(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	cases := []struct {
		name     string
		username string
		password string
	}{
		{"empty username", "  ", "hunter2hunter2"},
		{"colon in username", "a:b", "hunter2hunter2"},
		{"short password", "satoshi", "short"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := s.Register(ctx, tc.username, tc.password)
			require.Error(t, err)
			assert.Equal(t, models.KindValidation, models.KindOf(err))
		})
	}
}

func TestAuthenticate_Failures(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()
	_, err := s.Register(ctx, "satoshi", "hunter2hunter2")
	require.NoError(t, err)

	_, err = s.Authenticate(ctx, "satoshi", "wrong-password")
	assert.Equal(t, models.KindUnauthorized, models.KindOf(err))

	_, err = s.Authenticate(ctx, "nobody", "hunter2hunter2")
	assert.Equal(t, models.KindUnauthorized, models.KindOf(err))
	assert.ErrorIs(t, err, models.ErrInvalidCredentials)
}

func TestRegister_ConcurrentSameUsername(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	passwords := []string{"first-password", "second-password", "third-password"}
	errs := make([]error, len(passwords))
	var wg sync.WaitGroup
	for i, pw := range passwords {
		wg.Add(1)
		go func(i int, pw string) {
			defer wg.Done()
			_, errs[i] = s.Register(ctx, "satoshi", pw)
		}(i, pw)
	}
	wg.Wait()

	winner := -1
	for i, err := range errs {
		if err == nil {
			require.Equal(t, -1, winner, "only one registration may succeed")
			winner = i
			continue
		}
		assert.Equal(t, models.KindConflict, models.KindOf(err))
	}
	require.NotEqual(t, -1, winner)

	// the stored hash belongs to the successful registration
	for i, pw := range passwords {
		_, err := s.Authenticate(ctx, "satoshi", pw)
		if i == winner {
			assert.NoError(t, err)
		} else {
			assert.Equal(t, models.KindUnauthorized, models.KindOf(err))
		}
	}
}
