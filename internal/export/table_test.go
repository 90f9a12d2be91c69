package export

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/Alltagsbruecke/SignUp-APP/internal/record"
)

var ts = time.Date(2026, 1, 15, 9, 0, 0, 0, time.UTC)

func TestBuildTable_UnionOfKeysFirstSeenOrder(t *testing.T) {
	clients := []record.Client{
		{ID: 1, Name: "Ada", CreatedAt: ts, Fields: record.Fields{{Key: "Phone", Value: "123"}}},
		{ID: 2, Name: "Bob", CreatedAt: ts, Fields: record.Fields{{Key: "City", Value: "Bonn"}, {Key: "Phone", Value: "456"}}},
		{ID: 3, Name: "Cem", CreatedAt: ts, Fields: record.Fields{}},
	}

	got := BuildTable(clients)

	assert.Equal(t, []string{"id", "name", "created_at", "Phone", "City"}, got.Header)
	assert.Equal(t, [][]string{
		{"1", "Ada", "2026-01-15T09:00:00Z", "123", ""},
		{"2", "Bob", "2026-01-15T09:00:00Z", "456", "Bonn"},
		{"3", "Cem", "2026-01-15T09:00:00Z", "", ""},
	}, got.Rows)
}

func TestBuildTable_Empty(t *testing.T) {
	got := BuildTable(nil)

	assert.Equal(t, []string{"id", "name", "created_at"}, got.Header)
	assert.NotNil(t, got.Rows)
	assert.Empty(t, got.Rows)
}

func TestTable_Equal(t *testing.T) {
	a := Table{Header: []string{"id"}, Rows: [][]string{{"1"}}}
	b := Table{Header: []string{"id"}, Rows: [][]string{{"1"}}}
	c := Table{Header: []string{"id"}, Rows: [][]string{{"2"}}}

	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(c))
	assert.False(t, a.Equal(Table{Header: []string{"id", "name"}, Rows: [][]string{{"1"}}}))
}
