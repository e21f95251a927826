package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sjsage522/hotdealmatcher/internal/crawler"
)

func TestMemoryStoreWatermark(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	// First run yields the zero watermark
	wm, err := s.LoadWatermark(ctx, "cafe")
	require.NoError(t, err)
	assert.Equal(t, 0, wm.LastProcessedID)

	err = s.SaveWatermark(ctx, "cafe", crawler.Watermark{LastProcessedID: 105, RowOffset: 3})
	require.NoError(t, err)

	wm, err = s.LoadWatermark(ctx, "cafe")
	require.NoError(t, err)
	assert.Equal(t, 105, wm.LastProcessedID)
	assert.Equal(t, 3, wm.RowOffset)

	// Other sources are independent
	wm, err = s.LoadWatermark(ctx, "ruliweb")
	require.NoError(t, err)
	assert.Equal(t, 0, wm.LastProcessedID)
}

func TestMemoryStoreAppendRows(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	rows := []crawler.ResultRow{
		{Timestamp: time.Now(), SourceName: "cafe", PostID: 104, MallTitle: "상품 A"},
		{Timestamp: time.Now(), SourceName: "cafe", PostID: 105, MallTitle: "상품 B"},
	}
	require.NoError(t, s.AppendRows(ctx, rows))
	require.NoError(t, s.AppendRows(ctx, []crawler.ResultRow{{SourceName: "cafe", PostID: 106, MallTitle: "상품 C"}}))

	stored := s.Rows()
	require.Len(t, stored, 3)
	assert.Equal(t, 104, stored[0].PostID)
	assert.Equal(t, 106, stored[2].PostID)
}
