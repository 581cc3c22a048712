package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/radieske/pool-wager-escrow/internal/wager-service/domain"
	"github.com/radieske/pool-wager-escrow/internal/wager-service/query"
	"github.com/radieske/pool-wager-escrow/pkg/money"
)

const ttl = 5 * time.Second

func report() query.RevenueReport {
	return query.RevenueReport{
		TotalRevenue:       money.MustParse("3.50"),
		TodayRevenue:       money.MustParse("2.50"),
		CompletedCount:     2,
		TotalVolume:        money.MustParse("70.00"),
		AverageFeePerWager: money.MustParse("1.75"),
	}
}

const reportJSON = `{"total_revenue":"3.50","today_revenue":"2.50","completed_count":2,"total_volume":"70.00","average_fee_per_wager":"1.75"}`

func TestFetch_Hit(t *testing.T) {
	db, mock := redismock.NewClientMock()
	c := NewRevenueCache(db, ttl, zap.NewNop())

	mock.ExpectGet(revenueKey).SetVal(reportJSON)

	r, err := c.Fetch(context.Background(), func(context.Context) (query.RevenueReport, error) {
		t.Fatal("loader must not run on hit")
		return query.RevenueReport{}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, report(), r)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFetch_MissLoadsAndStores(t *testing.T) {
	db, mock := redismock.NewClientMock()
	c := NewRevenueCache(db, ttl, zap.NewNop())

	mock.ExpectGet(revenueKey).RedisNil()
	mock.ExpectSet(revenueKey, []byte(reportJSON), ttl).SetVal("OK")

	calls := 0
	r, err := c.Fetch(context.Background(), func(context.Context) (query.RevenueReport, error) {
		calls++
		return report(), nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.Equal(t, "3.50", r.TotalRevenue.String())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFetch_RedisDownFallsThrough(t *testing.T) {
	db, mock := redismock.NewClientMock()
	c := NewRevenueCache(db, ttl, zap.NewNop())

	mock.ExpectGet(revenueKey).SetErr(errors.New("connection refused"))
	mock.ExpectSet(revenueKey, []byte(reportJSON), ttl).SetErr(errors.New("connection refused"))

	r, err := c.Fetch(context.Background(), func(context.Context) (query.RevenueReport, error) { return report(), nil })
	require.NoError(t, err)
	assert.Equal(t, 2, r.CompletedCount)
}

func TestFetch_LoaderErrorPropagates(t *testing.T) {
	db, mock := redismock.NewClientMock()
	c := NewRevenueCache(db, ttl, zap.NewNop())

	mock.ExpectGet(revenueKey).RedisNil()

	_, err := c.Fetch(context.Background(), func(context.Context) (query.RevenueReport, error) {
		return query.RevenueReport{}, domain.ErrStoreUnavailable
	})
	assert.ErrorIs(t, err, domain.ErrStoreUnavailable)
}

func TestInvalidate(t *testing.T) {
	db, mock := redismock.NewClientMock()
	c := NewRevenueCache(db, ttl, zap.NewNop())

	mock.ExpectDel(revenueKey).SetVal(1)
	c.Invalidate(context.Background())
	assert.NoError(t, mock.ExpectationsWereMet())
}
