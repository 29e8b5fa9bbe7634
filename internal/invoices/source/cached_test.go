package source

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/invoice-insights/internal/platform/cache"
)

func newCachedSource(t *testing.T, next Source) (*CachedSource, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewCachedSource(next, cache.NewVersioned(client, "invoices", time.Minute), logger), mr
}

func TestCachedSourceServesRepeatedListFromCache(t *testing.T) {
	src := newPagedSource(12)
	cached, _ := newCachedSource(t, src)
	ctx := context.Background()

	first, err := cached.List(ctx, ListRequest{Limit: 5, Page: 2})
	require.NoError(t, err)
	second, err := cached.List(ctx, ListRequest{Limit: 5, Page: 2})
	require.NoError(t, err)

	require.Equal(t, 1, src.calls())
	require.Len(t, second.Data, 5)
	require.Equal(t, first.Data[0].UUID, second.Data[0].UUID)
	require.Equal(t, first.Meta, second.Meta)
	require.True(t, second.Data[4].InvoiceTotal.Decimal().Equal(first.Data[4].InvoiceTotal.Decimal()))

	_, err = cached.List(ctx, ListRequest{Limit: 5, Page: 3})
	require.NoError(t, err)
	require.Equal(t, 2, src.calls())
}

func TestCachedSourceMutationInvalidates(t *testing.T) {
	src := newPagedSource(3)
	cached, _ := newCachedSource(t, src)
	ctx := context.Background()

	_, err := cached.List(ctx, ListRequest{})
	require.NoError(t, err)
	require.NoError(t, cached.Approve(ctx, "inv-001"))
	_, err = cached.List(ctx, ListRequest{})
	require.NoError(t, err)
	require.Equal(t, 2, src.calls())

	require.NoError(t, cached.Reject(ctx, "inv-002", "duplicate"))
	require.NoError(t, cached.Delete(ctx, "inv-003"))
	require.Equal(t, []string{"approve:inv-001", "reject:inv-002:duplicate", "delete:inv-003"}, src.mutations)
}

func TestCachedSourceFailedMutationKeepsCache(t *testing.T) {
	src := newPagedSource(3)
	cached, _ := newCachedSource(t, src)
	ctx := context.Background()

	_, err := cached.List(ctx, ListRequest{})
	require.NoError(t, err)
	src.mutateErr = errors.New("conflict")
	require.Error(t, cached.Approve(ctx, "inv-001"))
	_, err = cached.List(ctx, ListRequest{})
	require.NoError(t, err)
	require.Equal(t, 1, src.calls())
}

func TestCachedSourceDoesNotCacheErrors(t *testing.T) {
	src := newPagedSource(30)
	src.failPage = 1
	cached, _ := newCachedSource(t, src)
	ctx := context.Background()

	_, err := cached.List(ctx, ListRequest{Limit: 10})
	require.Error(t, err)
	src.failPage = 0
	page, err := cached.List(ctx, ListRequest{Limit: 10})
	require.NoError(t, err)
	require.Len(t, page.Data, 10)
	require.Equal(t, 2, src.calls())
}

func TestCachedSourceFallsBackWhenRedisDown(t *testing.T) {
	src := newPagedSource(4)
	cached, mr := newCachedSource(t, src)
	mr.Close()

	page, err := cached.List(context.Background(), ListRequest{})
	require.NoError(t, err)
	require.Len(t, page.Data, 4)
	require.Equal(t, 1, src.calls())
}

func TestCachedSourceKeepsLoadedPageWhenWriteFails(t *testing.T) {
	src := newPagedSource(4)
	cached, mr := newCachedSource(t, src)
	src.onList = func() { mr.SetError("READONLY You can't write against a read only replica.") }

	page, err := cached.List(context.Background(), ListRequest{})
	require.NoError(t, err)
	require.Len(t, page.Data, 4)
	require.Equal(t, "inv-001", page.Data[0].UUID)
	require.Equal(t, 1, src.calls())
}

func TestCachedSourceWithoutCache(t *testing.T) {
	src := newPagedSource(2)
	cached := NewCachedSource(src, nil, nil)
	ctx := context.Background()
	for i := 0; i < 2; i++ {
		_, err := cached.List(ctx, ListRequest{})
		require.NoError(t, err)
	}
	require.Equal(t, 2, src.calls())
	require.NoError(t, cached.Approve(ctx, "inv-001"))
	require.NoError(t, cached.Invalidate(ctx))
}
