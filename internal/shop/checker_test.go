package shop_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/vasiliy-maslov/marketplace/order-service/internal/shop"
)

type MockChecker struct {
	mock.Mock
}

func (m *MockChecker) UserOwnsShop(ctx context.Context, shopID, userID string) (bool, error) {
	args := m.Called(ctx, shopID, userID)
	return args.Bool(0), args.Error(1)
}

func TestPostgresChecker_UserOwnsShop(t *testing.T) {
	db, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer db.Close()

	db.ExpectQuery("SELECT EXISTS").
		WithArgs("shop-1", "seller-1").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))
	db.ExpectQuery("SELECT EXISTS").
		WithArgs("shop-1", "seller-2").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(false))

	checker := shop.NewChecker(db)

	owns, err := checker.UserOwnsShop(context.Background(), "shop-1", "seller-1")
	require.NoError(t, err)
	assert.True(t, owns)

	owns, err = checker.UserOwnsShop(context.Background(), "shop-1", "seller-2")
	require.NoError(t, err)
	assert.False(t, owns)

	owns, err = checker.UserOwnsShop(context.Background(), "", "seller-1")
	require.NoError(t, err)
	assert.False(t, owns, "orders without a shop are never owned")

	require.NoError(t, db.ExpectationsWereMet())
}

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return mr, client
}

func TestCachedChecker_ReadThrough(t *testing.T) {
	mr, client := newRedis(t)
	next := new(MockChecker)
	checker := shop.NewCachedChecker(next, client, time.Minute, "order-service")

	next.On("UserOwnsShop", mock.Anything, "shop-1", "seller-1").Return(true, nil).Once()

	for i := 0; i < 3; i++ {
		owns, err := checker.UserOwnsShop(context.Background(), "shop-1", "seller-1")
		require.NoError(t, err)
		assert.True(t, owns)
	}

	next.AssertNumberOfCalls(t, "UserOwnsShop", 1)

	cached, err := mr.Get("order-service:shop_owner:6:shop-1:seller-1")
	require.NoError(t, err)
	assert.Equal(t, "1", cached)
}

func TestCachedChecker_CachesNegativeAnswers(t *testing.T) {
	_, client := newRedis(t)
	next := new(MockChecker)
	checker := shop.NewCachedChecker(next, client, time.Minute, "order-service")

	next.On("UserOwnsShop", mock.Anything, "shop-1", "seller-2").Return(false, nil).Once()

	for i := 0; i < 2; i++ {
		owns, err := checker.UserOwnsShop(context.Background(), "shop-1", "seller-2")
		require.NoError(t, err)
		assert.False(t, owns)
	}
	next.AssertExpectations(t)
}

func TestCachedChecker_Expires(t *testing.T) {
	mr, client := newRedis(t)
	next := new(MockChecker)
	checker := shop.NewCachedChecker(next, client, time.Minute, "order-service")

	next.On("UserOwnsShop", mock.Anything, "shop-1", "seller-1").Return(true, nil).Twice()

	_, err := checker.UserOwnsShop(context.Background(), "shop-1", "seller-1")
	require.NoError(t, err)

	mr.FastForward(2 * time.Minute)

	_, err = checker.UserOwnsShop(context.Background(), "shop-1", "seller-1")
	require.NoError(t, err)
	next.AssertExpectations(t)
}

func TestCachedChecker_RedisDown(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer client.Close()
	mr.Close()

	next := new(MockChecker)
	checker := shop.NewCachedChecker(next, client, time.Minute, "order-service")

	next.On("UserOwnsShop", mock.Anything, "shop-1", "seller-1").Return(true, nil).Once()

	owns, err := checker.UserOwnsShop(context.Background(), "shop-1", "seller-1")
	require.NoError(t, err)
	assert.True(t, owns)
	next.AssertExpectations(t)
}

func TestCachedChecker_NextError(t *testing.T) {
	mr, client := newRedis(t)
	next := new(MockChecker)
	checker := shop.NewCachedChecker(next, client, time.Minute, "order-service")

	next.On("UserOwnsShop", mock.Anything, "shop-1", "seller-1").Return(false, errors.New("db down")).Once()

	_, err := checker.UserOwnsShop(context.Background(), "shop-1", "seller-1")
	require.Error(t, err)
	assert.False(t, mr.Exists("order-service:shop_owner:6:shop-1:seller-1"), "errors are not cached")
}

func TestCachedChecker_KeysDoNotCollide(t *testing.T) {
	_, client := newRedis(t)
	next := new(MockChecker)
	checker := shop.NewCachedChecker(next, client, time.Minute, "order-service")

	next.On("UserOwnsShop", mock.Anything, "a:b", "c").Return(true, nil).Once()
	next.On("UserOwnsShop", mock.Anything, "a", "b:c").Return(false, nil).Once()

	owns, err := checker.UserOwnsShop(context.Background(), "a:b", "c")
	require.NoError(t, err)
	assert.True(t, owns)

	owns, err = checker.UserOwnsShop(context.Background(), "a", "b:c")
	require.NoError(t, err)
	assert.False(t, owns, "a cached grant for another pair must not leak")

	next.AssertExpectations(t)
}
