package pagination

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCursorRoundTrip(t *testing.T) {
	token, err := EncodeCursor(Cursor{ID: "1234"})
	require.NoError(t, err)
	cur, err := DecodeCursor(token)
	require.NoError(t, err)
	assert.Equal(t, "1234", cur.ID)

	_, err = DecodeCursor("%%%")
	assert.Error(t, err)
}

func TestLimit(t *testing.T) {
	assert.Equal(t, DefaultPageSize, Pagination{}.Limit())
	assert.Equal(t, 5, Pagination{PageSize: 5}.Limit())
	assert.Equal(t, MaxPageSize, Pagination{PageSize: 10_000}.Limit())
}

func TestTrim(t *testing.T) {
	rows := []int{9, 8, 7}
	page, info := Trim(rows, 2, strconv.Itoa)
	assert.Equal(t, []int{9, 8}, page)
	assert.True(t, info.HasMore)
	cur, err := DecodeCursor(info.NextPageToken)
	require.NoError(t, err)
	assert.Equal(t, "8", cur.ID)

	page, info = Trim(rows, 3, strconv.Itoa)
	assert.Len(t, page, 3)
	assert.False(t, info.HasMore)
}
