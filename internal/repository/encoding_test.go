package repository

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/sanctuary/internal/model"
)

func TestEncodeStrings(t *testing.T) {
	got, err := EncodeStrings(nil)
	require.NoError(t, err)
	assert.Nil(t, got, "nil slice is stored as NULL")

	got, err = EncodeStrings([]string{})
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "[]", *got)

	got, err = EncodeStrings([]string{"a.jpg", "b.jpg"})
	require.NoError(t, err)
	assert.Equal(t, `["a.jpg","b.jpg"]`, *got)
}

func TestDecodeStrings(t *testing.T) {
	tests := []struct {
		name string
		in   *string
		want []string
	}{
		{"null", nil, nil},
		{"blank", model.StringPtr(""), nil},
		{"empty list", model.StringPtr("[]"), []string{}},
		{"two items", model.StringPtr(`["x","y"]`), []string{"x", "y"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeStrings(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDecodeStrings_Malformed(t *testing.T) {
	_, err := DecodeStrings(model.StringPtr("{not json"))
	assert.Error(t, err)
}

func TestLocationRoundTrip(t *testing.T) {
	lat, lng := 31.23, 121.47
	loc := &model.Location{Name: "Bund", Address: "Shanghai", Latitude: &lat, Longitude: &lng}

	enc, err := EncodeLocation(loc)
	require.NoError(t, err)
	require.NotNil(t, enc)

	dec, err := DecodeLocation(enc)
	require.NoError(t, err)
	assert.Equal(t, loc, dec)

	enc, err = EncodeLocation(nil)
	require.NoError(t, err)
	assert.Nil(t, enc)

	dec, err = DecodeLocation(model.StringPtr("null"))
	require.NoError(t, err)
	assert.Nil(t, dec)
}

func TestStampIfEmpty(t *testing.T) {
	now := time.Date(2024, 2, 14, 8, 30, 0, 123_000_000, time.UTC)

	assert.Equal(t, "2024-02-14T08:30:00.123Z", StampIfEmpty("", now))
	assert.Equal(t, "2020-01-01T00:00:00.000Z", StampIfEmpty("2020-01-01T00:00:00.000Z", now))
}
