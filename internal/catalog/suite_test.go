package catalog

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rzpsarthak13/string-catalog/internal/core"
	"github.com/rzpsarthak13/string-catalog/internal/properties"
)

// newCatalogFunc opens an empty catalog whose timestamps come from now.
type newCatalogFunc func(t *testing.T, now func() time.Time) core.Catalog

func testClock() func() time.Time {
	var mu sync.Mutex
	ts := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		ts = ts.Add(time.Second)
		return ts
	}
}

func boolPtr(b bool) *bool    { return &b }
func intPtr(i int) *int       { return &i }
func strPtr(s string) *string { return &s }

func values(recs []*core.StringRecord) []string {
	out := make([]string, len(recs))
	for i, r := range recs {
		out[i] = r.Value
	}
	return out
}

func runCatalogSuite(t *testing.T, open newCatalogFunc) {
	ctx := context.Background()

	t.Run("put then get", func(t *testing.T) {
		c := open(t, testClock())

		rec, err := c.Put(ctx, "hello world")
		require.NoError(t, err)
		assert.Equal(t, properties.Hash("hello world"), rec.ID)
		assert.Equal(t, properties.Extract("hello world"), rec.Properties)

		got, err := c.GetByValue(ctx, "hello world")
		require.NoError(t, err)
		assert.Equal(t, rec.ID, got.ID)
		assert.Equal(t, rec.Value, got.Value)
		assert.Equal(t, rec.Properties, got.Properties)
		assert.True(t, rec.CreatedAt.Equal(got.CreatedAt), "created_at %v != %v", rec.CreatedAt, got.CreatedAt)
	})

	t.Run("empty and unicode values", func(t *testing.T) {
		c := open(t, testClock())

		for _, v := range []string{"", "héllo \U0001F642 wörld", "tab\tand\nnewline"} {
			_, err := c.Put(ctx, v)
			require.NoError(t, err, "put %q", v)

			got, err := c.GetByValue(ctx, v)
			require.NoError(t, err, "get %q", v)
			assert.Equal(t, v, got.Value)
			assert.Equal(t, properties.Extract(v), got.Properties)
		}
	})

	t.Run("duplicate put", func(t *testing.T) {
		c := open(t, testClock())

		_, err := c.Put(ctx, "racecar")
		require.NoError(t, err)

		_, err = c.Put(ctx, "racecar")
		require.Error(t, err)
		assert.Equal(t, core.KindDuplicate, core.KindOf(err))

		n, err := c.Count(ctx)
		require.NoError(t, err)
		assert.EqualValues(t, 1, n)
	})

	t.Run("concurrent duplicate put", func(t *testing.T) {
		c := open(t, testClock())

		var (
			wg         sync.WaitGroup
			successes  atomic.Int32
			duplicates atomic.Int32
		)
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := c.Put(ctx, "same value")
				switch {
				case err == nil:
					successes.Add(1)
				case core.IsKind(err, core.KindDuplicate):
					duplicates.Add(1)
				}
			}()
		}
		wg.Wait()

		assert.EqualValues(t, 1, successes.Load())
		assert.EqualValues(t, 7, duplicates.Load())
	})

	t.Run("missing value", func(t *testing.T) {
		c := open(t, testClock())

		_, err := c.GetByValue(ctx, "nope")
		require.Error(t, err)
		assert.Equal(t, core.KindNotFound, core.KindOf(err))
	})

	t.Run("query", func(t *testing.T) {
		c := open(t, testClock())
		for _, v := range []string{"racecar", "hello world", "A man", "level", "abcdefgh", "noon"} {
			_, err := c.Put(ctx, v)
			require.NoError(t, err)
		}

		tests := []struct {
			name   string
			filter core.QueryFilter
			want   []string
		}{
			{"match all", core.QueryFilter{}, []string{"racecar", "hello world", "A man", "level", "abcdefgh", "noon"}},
			{"palindromes", core.QueryFilter{IsPalindrome: boolPtr(true)}, []string{"racecar", "level", "noon"}},
			{"non palindromes", core.QueryFilter{IsPalindrome: boolPtr(false)}, []string{"hello world", "A man", "abcdefgh"}},
			{"length range", core.QueryFilter{MinLength: intPtr(5), MaxLength: intPtr(7)}, []string{"racecar", "A man", "level"}},
			{"word count", core.QueryFilter{WordCount: intPtr(2)}, []string{"hello world", "A man"}},
			{"contains ignores case", core.QueryFilter{Contains: strPtr("a")}, []string{"racecar", "A man", "abcdefgh"}},
			{"combined", core.QueryFilter{
				IsPalindrome: boolPtr(true),
				MinLength:    intPtr(5),
				Contains:     strPtr("E"),
			}, []string{"racecar", "level"}},
			{"no match", core.QueryFilter{MinLength: intPtr(100)}, []string{}},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				recs, err := c.Query(ctx, tt.filter)
				require.NoError(t, err)
				assert.Equal(t, tt.want, values(recs))
			})
		}
	})

	t.Run("delete", func(t *testing.T) {
		c := open(t, testClock())
		_, err := c.Put(ctx, "to delete")
		require.NoError(t, err)
		_, err = c.Put(ctx, "to keep")
		require.NoError(t, err)

		require.NoError(t, c.Delete(ctx, "to delete"))

		_, err = c.GetByValue(ctx, "to delete")
		assert.Equal(t, core.KindNotFound, core.KindOf(err))

		err = c.Delete(ctx, "to delete")
		assert.Equal(t, core.KindNotFound, core.KindOf(err))

		n, err := c.Count(ctx)
		require.NoError(t, err)
		assert.EqualValues(t, 1, n)

		// the value can be cataloged again once removed
		_, err = c.Put(ctx, "to delete")
		require.NoError(t, err)
	})

	t.Run("closed", func(t *testing.T) {
		c := open(t, testClock())
		require.NoError(t, c.Close())
		require.NoError(t, c.Close())

		_, err := c.Put(ctx, "x")
		assert.Equal(t, core.KindStorage, core.KindOf(err))
	})
}
