package record

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testClient() Client {
	return Client{
		ID:        7,
		Name:      "Ada",
		Fields:    Fields{{Key: "Phone", Value: "123"}, {Key: "Ort", Value: "Berlin"}},
		CreatedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
}

func TestSnapshot_IsolatedFromClient(t *testing.T) {
	c := testClient()
	snap := NewSnapshot(c, time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC))

	c.Name = "Changed"
	c.Fields[0].Value = "999"
	c.Fields = append(c.Fields, Field{Key: "New", Value: "x"})

	assert.Equal(t, "Ada", snap.Name())
	v, _ := snap.Value("Phone")
	assert.Equal(t, "123", v)
	assert.Len(t, snap.Fields(), 2)
}

func TestSnapshot_FieldsAccessorReturnsCopy(t *testing.T) {
	snap := NewSnapshot(testClient(), time.Now())
	fs := snap.Fields()
	fs[0].Value = "mutated"

	v, _ := snap.Value("Phone")
	assert.Equal(t, "123", v)
}

func TestSnapshot_DigestStableAndSensitive(t *testing.T) {
	at := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	a := NewSnapshot(testClient(), at)
	b := NewSnapshot(testClient(), at)

	da, err := a.Digest()
	require.NoError(t, err)
	db, err := b.Digest()
	require.NoError(t, err)
	assert.Equal(t, da, db)
	assert.Len(t, da, 64)

	changed := testClient()
	changed.Fields[1].Value = "Hamburg"
	dc, err := NewSnapshot(changed, at).Digest()
	require.NoError(t, err)
	assert.NotEqual(t, da, dc)
}

func TestSnapshot_DigestDependsOnFieldOrder(t *testing.T) {
	at := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	c := testClient()
	swapped := testClient()
	swapped.Fields[0], swapped.Fields[1] = swapped.Fields[1], swapped.Fields[0]

	d1, err := NewSnapshot(c, at).Digest()
	require.NoError(t, err)
	d2, err := NewSnapshot(swapped, at).Digest()
	require.NoError(t, err)
	assert.NotEqual(t, d1, d2)
}

func TestSnapshot_JSONRoundTrip(t *testing.T) {
	at := time.Date(2026, 2, 1, 10, 30, 0, 0, time.UTC)
	snap := NewSnapshot(testClient(), at)

	data, err := json.Marshal(snap)
	require.NoError(t, err)

	var restored Snapshot
	require.NoError(t, json.Unmarshal(data, &restored))

	assert.Equal(t, snap.ClientID(), restored.ClientID())
	assert.Equal(t, snap.Name(), restored.Name())
	assert.True(t, snap.TakenAt().Equal(restored.TakenAt()))
	assert.Equal(t, snap.Fields(), restored.Fields())

	d1, _ := snap.Digest()
	d2, _ := restored.Digest()
	assert.Equal(t, d1, d2)
}
