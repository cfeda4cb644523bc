package composite

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"coinfolio/internal/domain"
)

type countingRepo struct {
	upserts, snapshots int
	err                error
}

func (c *countingRepo) UpsertLatestPrices(context.Context, domain.TickerUpdate, int64) error {
	c.upserts++
	return c.err
}

func (c *countingRepo) InsertSnapshot(context.Context, int64, domain.Totals, string) error {
	c.snapshots++
	return c.err
}

func TestCompositeFansOutAndKeepsFirstError(t *testing.T) {
	first := &countingRepo{err: errors.New("first")}
	second := &countingRepo{err: errors.New("second")}
	ok := &countingRepo{}
	r := New(first, nil, second, ok)
	require.Equal(t, 3, r.Len())

	ctx := context.Background()
	err := r.UpsertLatestPrices(ctx, domain.TickerUpdate{"BTCUSDT": {Price: 1}}, 1)
	require.EqualError(t, err, "first")
	err = r.InsertSnapshot(ctx, 1, domain.Totals{}, "{}")
	require.EqualError(t, err, "first")

	for _, c := range []*countingRepo{first, second, ok} {
		require.Equal(t, 1, c.upserts)
		require.Equal(t, 1, c.snapshots)
	}
}

func TestCompositeEmpty(t *testing.T) {
	require.NoError(t, New().InsertSnapshot(context.Background(), 1, domain.Totals{}, ""))
}
