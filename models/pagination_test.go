package models

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseListParamsDefaults(t *testing.T) {
	p, err := ParseListParams(url.Values{})
	require.NoError(t, err)
	assert.Equal(t, DefaultListParams(), p)
}

func TestParseListParamsRestoresQuery(t *testing.T) {
	in := ListParams{Page: 3, PerPage: 50, Sort: SortCreatedAt, Order: OrderAsc}

	out, err := ParseListParams(in.Query())
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestParseListParamsRejectsBadInput(t *testing.T) {
	cases := map[string]url.Values{
		"negative page": {"page": {"-1"}},
		"text per_page": {"per_page": {"many"}},
		"unknown sort":  {"sort": {"title"}},
		"unknown order": {"order": {"sideways"}},
	}
	for name, q := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseListParams(q)
			assert.Error(t, err)
		})
	}
}

func TestParseListParamsClampsPerPage(t *testing.T) {
	p, err := ParseListParams(url.Values{"per_page": {"1000"}})
	require.NoError(t, err)
	assert.Equal(t, MaxPerPage, p.PerPage)
}

func TestNewPagination(t *testing.T) {
	p := NewPagination(1, 10, 25)
	assert.True(t, p.HasNext)
	assert.False(t, p.HasPrev)

	p = NewPagination(3, 10, 25)
	assert.False(t, p.HasNext)
	assert.True(t, p.HasPrev)
}

func TestCreateConversationRequestValidate(t *testing.T) {
	blank := "   "
	req := CreateConversationRequest{ParticipantIDs: []int64{7, 8, 7}, Title: &blank}
	require.NoError(t, req.Validate())
	assert.Equal(t, []int64{7, 8}, req.ParticipantIDs)
	assert.Nil(t, req.Title)
	assert.True(t, req.Group())

	direct := CreateConversationRequest{ParticipantIDs: []int64{7}}
	require.NoError(t, direct.Validate())
	assert.False(t, direct.Group())

	empty := CreateConversationRequest{}
	assert.Error(t, empty.Validate())

	notGroup := false
	mismatch := CreateConversationRequest{ParticipantIDs: []int64{7, 8}, IsGroup: &notGroup}
	assert.Error(t, mismatch.Validate())
}
