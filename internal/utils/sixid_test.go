package utils

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
)

func TestSixID_StringRoundTrip(t *testing.T) {
	id := SixID{0x01, 0x23, 0x45, 0x67, 0x89, 0xAB}
	s := id.String()
	assert.Len(t, s, 10)

	parsed, err := ParseSixID(s)
	require.NoError(t, err)
	assert.Equal(t, id, parsed)
}

func TestParseSixID_Lenient(t *testing.T) {
	id := SixID{0xFF, 0x00, 0x10, 0x20, 0x30, 0x40}
	s := id.String()

	hyphenated, err := ParseSixID(s[:5] + "-" + s[5:])
	require.NoError(t, err)
	assert.Equal(t, id, hyphenated)
}

func TestParseSixID_Invalid(t *testing.T) {
	_, err := ParseSixID("")
	assert.Error(t, err)

	_, err = ParseSixID("ABC")
	assert.Error(t, err)

	_, err = ParseSixID("UUUUUUUUUU") // U is not in the alphabet
	assert.Error(t, err)
}

func TestSixID_JSON(t *testing.T) {
	id := NewSixID()
	data, err := json.Marshal(struct {
		ID SixID `json:"id"`
	}{ID: id})
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"`+id.String()+`"}`, string(data))
}

func TestSixID_BSONSubtype(t *testing.T) {
	type doc struct {
		ID SixID `bson:"_id"`
	}
	id := NewSixID()
	raw, err := bson.Marshal(doc{ID: id})
	require.NoError(t, err)

	subtype, data := bson.Raw(raw).Lookup("_id").Binary()
	assert.Equal(t, byte(0x80), subtype)
	assert.Equal(t, id[:], data)

	var out doc
	require.NoError(t, bson.Unmarshal(raw, &out))
	assert.Equal(t, id, out.ID)
}

func TestNewSixIDHook(t *testing.T) {
	fixed := SixID{1, 2, 3, 4, 5, 6}
	NewSixIDHook = func() (SixID, bool) { return fixed, true }
	defer func() { NewSixIDHook = nil }()

	assert.Equal(t, fixed, NewSixID())
}
