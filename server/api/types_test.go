package api_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/frobware/go-dsa/server/api"
)

func TestEncode_FieldNames(t *testing.T) {
	s, err := api.Encode(api.ProbeResult{Switch: "sw0", Outcome: "pending", Tree: 1, Attempt: "x"})
	require.NoError(t, err)
	assert.Equal(t, "sw0", s.Fields["switch"].GetStringValue())
	assert.Equal(t, float64(1), s.Fields["tree"].GetNumberValue())
	assert.NotContains(t, s.Fields, "detail")
}

func TestDecode_Event(t *testing.T) {
	when := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s, err := api.Encode(api.EventList{Events: []api.Event{{ID: 3, Time: when, Kind: "activated", Tree: 1, OpID: 42}}})
	require.NoError(t, err)

	var got api.EventList
	require.NoError(t, api.Decode(s, &got))
	require.Len(t, got.Events, 1)
	assert.True(t, when.Equal(got.Events[0].Time))
	assert.Equal(t, uint64(42), got.Events[0].OpID)
}

func TestDecode_RejectsUnknownFields(t *testing.T) {
	s, err := structpb.NewStruct(map[string]any{"tree": 1, "bogus": true})
	require.NoError(t, err)
	var f api.EventFilter
	assert.Error(t, api.Decode(s, &f))
}

func TestDecode_NilIsEmpty(t *testing.T) {
	var f api.EventFilter
	require.NoError(t, api.Decode(nil, &f))
	assert.Equal(t, api.EventFilter{}, f)
}
