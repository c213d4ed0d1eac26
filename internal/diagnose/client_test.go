package diagnose

import (
	"context"
	"errors"
	"net/http"
	"regexp"
	"testing"
	"time"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chaossim/internal/config"
	"chaossim/internal/telemetry"
)

type reply struct {
	content string
	err     error
}

type fakeCompleter struct {
	replies []reply
	reqs    []openai.ChatCompletionRequest
}

func (f *fakeCompleter) CreateChatCompletion(_ context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	f.reqs = append(f.reqs, req)
	r := f.replies[0]
	if len(f.replies) > 1 {
		f.replies = f.replies[1:]
	}
	if r.err != nil {
		return openai.ChatCompletionResponse{}, r.err
	}
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{{Message: openai.ChatCompletionMessage{Content: r.content}}},
	}, nil
}

func rateLimitErr() error {
	return &openai.APIError{HTTPStatusCode: http.StatusTooManyRequests, Message: "slow down"}
}

func testClient(api *fakeCompleter) (*Client, *[]time.Duration) {
	cfg := config.Default().Diagnose
	cfg.RequestsPerMinute = 0
	c := newClient(api, cfg, 10, nil)
	var waits []time.Duration
	c.sleep = func(_ context.Context, d time.Duration) error {
		waits = append(waits, d)
		return nil
	}
	return c, &waits
}

func testSnapshot() telemetry.Snapshot {
	st := telemetry.Inject(telemetry.NewState(telemetry.DefaultBaseline), telemetry.FaultMemoryLeak)
	st.MemoryMB = 950
	logs := make([]telemetry.LogEntry, 12)
	for i := range logs {
		logs[i] = telemetry.LogEntry{Message: "line"}
	}
	return telemetry.NewSnapshot(st, logs)
}

func TestClientSuccess(t *testing.T) {
	api := &fakeCompleter{replies: []reply{{content: `{"predictedIncident":"memory_leak","confidence":98}`}}}
	c, waits := testClient(api)

	a, err := c.Diagnose(context.Background(), testSnapshot())
	require.NoError(t, err)
	assert.Equal(t, IncidentMemoryLeak, a.Incident)
	assert.Regexp(t, regexp.MustCompile(`^INC-[A-Z0-9]{5}$`), a.ID)
	assert.Empty(t, *waits)

	require.Len(t, api.reqs, 1)
	req := api.reqs[0]
	assert.Equal(t, config.DefaultModel, req.Model)
	assert.InDelta(t, 0.3, req.Temperature, 1e-6)
	assert.Equal(t, 2000, req.MaxTokens)
	require.NotNil(t, req.ResponseFormat)
	assert.Equal(t, openai.ChatCompletionResponseFormatTypeJSONObject, req.ResponseFormat.Type)
	assert.Contains(t, req.Messages[1].Content, "RAM: 950MB")
	assert.Contains(t, req.Messages[1].Content, "ACTIVE FAULTS: memory_leak")
	assert.Contains(t, req.Messages[1].Content, "RECENT LOGS (newest first, 10)")
}

func TestClientRateLimitExhausted(t *testing.T) {
	api := &fakeCompleter{replies: []reply{{err: rateLimitErr()}}}
	c, waits := testClient(api)

	_, err := c.Diagnose(context.Background(), testSnapshot())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrRateLimited))
	assert.Len(t, api.reqs, 3)
	assert.Equal(t, []time.Duration{2 * time.Second, 4 * time.Second}, *waits)
}

func TestClientRateLimitRecovers(t *testing.T) {
	api := &fakeCompleter{replies: []reply{
		{err: rateLimitErr()},
		{content: `{"predictedIncident":"disk_full","confidence":70}`},
	}}
	c, waits := testClient(api)

	a, err := c.Diagnose(context.Background(), testSnapshot())
	require.NoError(t, err)
	assert.Equal(t, IncidentDiskFull, a.Incident)
	assert.Equal(t, []time.Duration{2 * time.Second}, *waits)
}

func TestClientOtherFailures(t *testing.T) {
	api := &fakeCompleter{replies: []reply{{err: errors.New("connection reset")}}}
	c, waits := testClient(api)

	_, err := c.Diagnose(context.Background(), testSnapshot())
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrRateLimited))
	assert.Contains(t, err.Error(), "connection reset")
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, *waits)
}

func TestClientRetriesUnparseableReply(t *testing.T) {
	api := &fakeCompleter{replies: []reply{
		{content: "I cannot answer that"},
		{content: `{"predictedIncident":"none"}`},
	}}
	c, _ := testClient(api)

	a, err := c.Diagnose(context.Background(), testSnapshot())
	require.NoError(t, err)
	assert.Equal(t, IncidentNone, a.Incident)
	assert.Len(t, api.reqs, 2)
}

func TestClientHonoursCancellation(t *testing.T) {
	api := &fakeCompleter{replies: []reply{{err: errors.New("boom")}}}
	c, _ := testClient(api)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Diagnose(ctx, testSnapshot())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestIsRateLimit(t *testing.T) {
	assert.True(t, isRateLimit(rateLimitErr()))
	assert.True(t, isRateLimit(&openai.RequestError{HTTPStatusCode: 429, Err: errors.New("x")}))
	assert.False(t, isRateLimit(&openai.APIError{HTTPStatusCode: 500}))
	assert.False(t, isRateLimit(errors.New("plain")))
}
