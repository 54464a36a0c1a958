package transfer

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hpungsan/atlas/internal/errors"
	"github.com/hpungsan/atlas/internal/memory"
)

var exportTime = time.Date(2024, 7, 1, 9, 30, 0, 0, time.UTC)

func sampleData() Data {
	created := time.Date(2024, 6, 1, 12, 0, 0, 250_000_000, time.UTC)
	return Data{
		Memories: []memory.Memory{
			{
				Core: memory.Core{
					ID: "m1", Lat: 48.8566, Lng: 2.3522, Title: "Paris, again", Date: "2024-06-01",
					Notes: "said \"hello\"\nto the river", CreatedAt: created,
					GroupID: memory.StringPtr("g1"), Order: memory.FloatPtr(2), CustomLabel: memory.StringPtr("P"),
					Tags: []string{"trip"}, Starred: true,
				},
				ImageDataURLs: []string{"data:image/png;base64,AAAA"},
			},
			{
				Core: memory.Core{ID: "m2", Lat: -33.9, Lng: 151.2, Title: "Sydney", Date: "2023-01-15", CreatedAt: created, Hidden: true},
			},
		},
		Groups: []memory.Group{{ID: "g1", Name: "Europe", Collapsed: true}},
	}
}

func TestJSON_RoundTrip(t *testing.T) {
	data := sampleData()
	var buf bytes.Buffer
	require.NoError(t, EncodeJSON(&buf, data, exportTime))

	var doc map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &doc))
	require.Equal(t, float64(1), doc["version"])
	require.Equal(t, "2024-07-01T09:30:00.000Z", doc["exportedAt"])

	decoded, err := DecodeJSON(&buf)
	require.NoError(t, err)
	require.Empty(t, decoded.Errors)
	require.Equal(t, data.Memories, decoded.Memories)
	require.Equal(t, data.Groups, decoded.Groups)
}

func TestDecodeJSON_MissingArraysAndBadRecords(t *testing.T) {
	t.Run("missing arrays", func(t *testing.T) {
		decoded, err := DecodeJSON(strings.NewReader(`{"version": 1}`))
		require.NoError(t, err)
		require.Empty(t, decoded.Memories)
		require.Empty(t, decoded.Groups)
	})

	t.Run("bad records are skipped and reported", func(t *testing.T) {
		input := `{
			"memories": [
				{"id": "ok", "lat": 1, "lng": 2},
				{"id": "nolat", "lng": 2},
				"not an object",
				{"id": "ok", "lat": 3, "lng": 4},
				{"lat": "45.5", "lng": "-73.6", "imageDataUrl": "data:x"}
			],
			"groups": [{"id": "g"}, 7]
		}`
		decoded, err := DecodeJSON(strings.NewReader(input))
		require.NoError(t, err)

		require.Len(t, decoded.Memories, 2)
		require.Equal(t, "ok", decoded.Memories[0].ID)
		require.Equal(t, memory.DefaultTitle, decoded.Memories[0].Title)
		require.Equal(t, 45.5, decoded.Memories[1].Lat)
		require.Equal(t, []string{"data:x"}, decoded.Memories[1].ImageDataURLs)
		require.NotEmpty(t, decoded.Memories[1].ID)

		require.Equal(t, []memory.Group{{ID: "g", Name: memory.DefaultGroupName}}, decoded.Groups)

		require.Len(t, decoded.Errors, 4)
		require.Equal(t, 2, decoded.Errors[0].Line)
		require.Equal(t, CodeDuplicateID, decoded.Errors[2].Code)
		require.Equal(t, "group", decoded.Errors[3].Kind)
	})

	t.Run("not an object", func(t *testing.T) {
		for _, input := range []string{`[1,2]`, `{broken`, ``} {
			_, err := DecodeJSON(strings.NewReader(input))
			require.True(t, errors.Is(err, errors.ErrImportFailed), "input %q: %v", input, err)
		}
	})
}

func TestEncodeCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, EncodeCSV(&buf, sampleData().Memories))

	want := "id,lat,lng,title,date,notes,hasImage,createdAt,groupId,hidden,order,customLabel\r\n" +
		"m1,48.8566,2.3522,\"Paris, again\",2024-06-01,\"said \"\"hello\"\"\r\nto the river\",1,2024-06-01T12:00:00.250Z,g1,0,2,P\r\n" +
		"m2,-33.9,151.2,Sydney,2023-01-15,,0,2024-06-01T12:00:00.250Z,,1,,\r\n"
	require.Equal(t, want, buf.String())
}

func TestCSV_RoundTrip(t *testing.T) {
	data := sampleData()
	var buf bytes.Buffer
	require.NoError(t, EncodeCSV(&buf, data.Memories))

	decoded, err := DecodeCSV(&buf)
	require.NoError(t, err)
	require.Empty(t, decoded.Errors)
	require.Len(t, decoded.Memories, 2)

	m1 := decoded.Memories[0]
	require.Equal(t, "m1", m1.ID)
	require.Equal(t, "Paris, again", m1.Title)
	require.Equal(t, data.Memories[0].Notes, m1.Notes)
	require.Equal(t, data.Memories[0].CreatedAt, m1.CreatedAt)
	require.Equal(t, "g1", *m1.GroupID)
	require.Equal(t, 2.0, *m1.Order)
	require.Equal(t, "P", *m1.CustomLabel)
	require.False(t, m1.HasImages(), "CSV never carries images")
	require.Empty(t, decoded.Groups)

	m2 := decoded.Memories[1]
	require.True(t, m2.Hidden)
	require.Nil(t, m2.GroupID)
	require.Nil(t, m2.Order)
	require.Nil(t, m2.CustomLabel)
}

func TestDecodeCSV_HeaderVariants(t *testing.T) {
	t.Run("case-insensitive headers in any order, optional columns missing", func(t *testing.T) {
		input := "\ufeffTITLE,Lng,LAT,GroupID\nCafe,2.35,48.85,g9\n,,,\n"
		decoded, err := DecodeCSV(strings.NewReader(input))
		require.NoError(t, err)
		require.Empty(t, decoded.Errors)
		require.Len(t, decoded.Memories, 1)

		m := decoded.Memories[0]
		require.Equal(t, "Cafe", m.Title)
		require.Equal(t, 48.85, m.Lat)
		require.Equal(t, "g9", *m.GroupID)
		require.Nil(t, m.CustomLabel, "no customlabel column")
		require.Nil(t, m.Order)
		require.False(t, m.Hidden)
		require.Equal(t, memory.Today(), m.Date)
		require.NotEmpty(t, m.ID)
	})

	t.Run("header only", func(t *testing.T) {
		decoded, err := DecodeCSV(strings.NewReader("id,lat,lng\r\n"))
		require.NoError(t, err)
		require.Empty(t, decoded.Memories)
	})

	t.Run("empty file", func(t *testing.T) {
		decoded, err := DecodeCSV(strings.NewReader(""))
		require.NoError(t, err)
		require.Empty(t, decoded.Memories)
	})

	t.Run("bad rows reported with line numbers", func(t *testing.T) {
		input := "id,lat,lng,title,customLabel,order\r\na,1,2,One,ABCDE,0\r\nb,,2,Two,,\r\nc,95,2,Three,,\r\nd,1,2,Four,,1.5\r\n"
		decoded, err := DecodeCSV(strings.NewReader(input))
		require.NoError(t, err)

		require.Len(t, decoded.Memories, 2)
		require.Equal(t, "ABC", *decoded.Memories[0].CustomLabel)
		require.Nil(t, decoded.Memories[0].Order, "order 0 means unordered")
		require.Equal(t, 1.5, *decoded.Memories[1].Order)

		require.Len(t, decoded.Errors, 2)
		require.Equal(t, 3, decoded.Errors[0].Line)
		require.Equal(t, 4, decoded.Errors[1].Line)
		require.Equal(t, CodeInvalidRecord, decoded.Errors[1].Code)
	})
}
