package cmd

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Laisky/sparkboard/internal/board"
)

func TestWritePostsText(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writePosts(&buf, nil, false))
	require.Equal(t, board.SummaryNoPosts+"\n", buf.String())

	buf.Reset()
	require.NoError(t, writePosts(&buf, []board.Post{
		{ID: "b", Nickname: "bob", Content: "second", ImageURL: "data:image/png;base64,AA==", CreatedAt: 2000},
		{ID: "a", Nickname: "ann", Content: "first", CreatedAt: 1000},
	}, false))

	out := buf.String()
	require.Contains(t, out, "[b] bob")
	require.Contains(t, out, "second\n[image attached]")
	require.Contains(t, out, "[a] ann")
	require.Less(t, bytes.Index(buf.Bytes(), []byte("[b]")), bytes.Index(buf.Bytes(), []byte("[a]")))
}

func TestWritePostsJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writePosts(&buf, []board.Post{
		{ID: "a", Nickname: "ann", Content: "first", CreatedAt: 1000},
	}, true))

	var got []map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	require.Len(t, got, 1)
	require.Equal(t, "a", got[0]["id"])
	require.Equal(t, "1970-01-01T00:00:01Z", got[0]["createdAtIso"])
}

func TestDescribeSubmissionError(t *testing.T) {
	err := describeSubmissionError(board.NewRateLimitError(7))
	require.ErrorContains(t, err, "rate_limit")
	require.ErrorContains(t, err, "retry in 7s")

	err = describeSubmissionError(board.NewValidationError(board.MsgEmptyContent))
	require.ErrorContains(t, err, "validation")
	require.ErrorContains(t, err, board.MsgEmptyContent)
}
