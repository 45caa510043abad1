package assistant

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Laisky/errors/v2"
	"github.com/stretchr/testify/require"

	"github.com/Laisky/sparkboard/internal/board"
	"github.com/Laisky/sparkboard/internal/library/llm"
)

type stubGenerator struct {
	text string
	err  error
	reqs []llm.ResponseRequest
}

func (g *stubGenerator) CreateText(_ context.Context, _ string, req llm.ResponseRequest) (string, error) {
	g.reqs = append(g.reqs, req)
	return g.text, g.err
}

func newTestClient(t *testing.T, gen TextGenerator) *Client {
	t.Helper()
	c, err := New(gen, "sk-test", "", nil)
	require.NoError(t, err)
	return c
}

func TestNewRequiresArguments(t *testing.T) {
	_, err := New(nil, "sk", "", nil)
	require.Error(t, err)
	_, err = New(&stubGenerator{}, " ", "", nil)
	require.Error(t, err)
}

func TestCheck(t *testing.T) {
	cases := []struct {
		name    string
		text    string
		want    board.Verdict
		wantErr bool
	}{
		{"safe", `{"safe": true, "reason": ""}`, board.Verdict{Safe: true}, false},
		{"unsafe", `{"safe": false, "reason": " harassment "}`, board.Verdict{Safe: false, Reason: "harassment"}, false},
		{"fenced", "```json\n{\"safe\": false, \"reason\": \"spam\"}\n```", board.Verdict{Reason: "spam"}, false},
		{"not json", "looks fine to me", board.Verdict{}, true},
		{"missing safe", `{"reason": "?"}`, board.Verdict{}, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			gen := &stubGenerator{text: tc.text}
			got, err := newTestClient(t, gen).Check(context.Background(), "hello")
			if tc.wantErr {
				require.Error(t, err)
				return
			}

			require.NoError(t, err)
			require.Equal(t, tc.want, got)
			require.Len(t, gen.reqs, 1)
			require.True(t, gen.reqs[0].JSONOutput)
			require.Equal(t, "hello", gen.reqs[0].Input)
			require.Equal(t, DefaultModel, gen.reqs[0].Model)
		})
	}
}

func TestCheckTransportError(t *testing.T) {
	gen := &stubGenerator{err: errors.New("connection refused")}
	_, err := newTestClient(t, gen).Check(context.Background(), "hello")
	require.ErrorContains(t, err, "connection refused")
}

func TestSummarize(t *testing.T) {
	gen := &stubGenerator{text: " A calm day on the board. "}
	c := newTestClient(t, gen)

	text, err := c.Summarize(context.Background(), []board.Excerpt{
		{Nickname: "alice", Content: "hi"},
		{Nickname: "bob", Content: "hello\nthere"},
	})
	require.NoError(t, err)
	require.Equal(t, "A calm day on the board.", text)
	require.Equal(t, "alice: hi\n---\nbob: hello\nthere", gen.reqs[0].Input)
	require.False(t, gen.reqs[0].JSONOutput)

	_, err = c.Summarize(context.Background(), nil)
	require.Error(t, err)
}

// TestClientOverResponsesHelper runs the client against a fake Responses endpoint.
func TestClientOverResponsesHelper(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))

		w.Header().Set("Content-Type", "application/json")
		if _, ok := payload["text"]; ok {
			_, _ = w.Write([]byte(`{"output_text":"{\"safe\":false,\"reason\":\"violence\"}"}`))
			return
		}
		_, _ = w.Write([]byte(`{"output_text":"Everyone says hi."}`))
	}))
	defer server.Close()

	helper := llm.NewResponsesHelper(server.URL, time.Second, nil)
	c, err := New(helper, "sk-test", "gpt-4o-mini", nil)
	require.NoError(t, err)

	verdict, err := c.Check(context.Background(), "bad words")
	require.NoError(t, err)
	require.Equal(t, board.Verdict{Safe: false, Reason: "violence"}, verdict)

	text, err := c.Summarize(context.Background(), []board.Excerpt{{Nickname: "a", Content: "hi"}})
	require.NoError(t, err)
	require.Equal(t, "Everyone says hi.", text)
}
