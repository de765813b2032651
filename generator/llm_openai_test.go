package generator

import (
	"context"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

const responsesOK = `{
  "id": "resp_1",
  "object": "response",
  "created_at": 0,
  "model": "gpt-5-mini",
  "status": "completed",
  "output": [{
    "type": "message",
    "id": "msg_1",
    "role": "assistant",
    "status": "completed",
    "content": [{"type": "output_text", "text": "Rewritten note.", "annotations": []}]
  }]
}`

const upstreamError = `{"error": {"message": "upstream overloaded", "type": "server_error"}}`

func openAISettings(baseURL string, hc *http.Client) *LLMSettings {
	return &LLMSettings{
		Provider:   "openai",
		Model:      "gpt-5-mini",
		APIKey:     "test-key",
		BaseURL:    baseURL + "/v1/",
		HTTPClient: hc,
	}
}

func TestOpenAIResponses_SingleRequestPerCall(t *testing.T) {
	up, ts, hc := newFakeUpstream(t,
		cannedReply{status: http.StatusInternalServerError, body: upstreamError},
		cannedReply{status: http.StatusOK, body: responsesOK},
	)
	llm, err := NewOpenAIResponses(openAISettings(ts.URL, hc))
	require.NoError(t, err)

	// SDK retries are off, so a failed call reaches the upstream exactly once.
	_, err = llm.Complete(context.Background(), Prompt{User: "hi"})
	require.Error(t, err)
	assert.Equal(t, 1, up.calls())

	out, err := llm.Complete(context.Background(), Prompt{User: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "Rewritten note.", out)
	assert.Equal(t, 2, up.calls())
	assert.True(t, strings.HasSuffix(up.lastPath(), "/responses"), up.lastPath())

	body := up.lastBody()
	assert.Equal(t, "hi", gjson.GetBytes(body, "input").String())
	assert.Equal(t, "gpt-5-mini", gjson.GetBytes(body, "model").String())
	assert.False(t, gjson.GetBytes(body, "temperature").Exists())
	assert.False(t, gjson.GetBytes(body, "max_output_tokens").Exists())
}

func TestOpenAIResponses_SendsTuningWhenConfigured(t *testing.T) {
	up, ts, hc := newFakeUpstream(t, cannedReply{status: http.StatusOK, body: responsesOK})
	cfg := openAISettings(ts.URL, hc)
	temp := 0.7
	cfg.Temperature = &temp
	cfg.MaxOutputTokens = 1024
	llm, err := NewOpenAIResponses(cfg)
	require.NoError(t, err)

	_, err = llm.Complete(context.Background(), Prompt{User: "hi"})
	require.NoError(t, err)

	body := up.lastBody()
	assert.InDelta(t, 0.7, gjson.GetBytes(body, "temperature").Float(), 1e-9)
	assert.Equal(t, int64(1024), gjson.GetBytes(body, "max_output_tokens").Int())
}

func TestOpenAIResponses_ThroughClientMakesNPlusOneRequests(t *testing.T) {
	up, ts, hc := newFakeUpstream(t, cannedReply{status: http.StatusInternalServerError, body: upstreamError})
	llm, err := NewOpenAIResponses(openAISettings(ts.URL, hc))
	require.NoError(t, err)

	rec := &sleepRecorder{}
	c := newTestClient(t, llm, nil, rec)
	_, err = c.Generate(context.Background(), Prompt{User: "hi"})
	assert.ErrorIs(t, err, ErrRetriesExhausted)
	assert.Equal(t, len(DefaultBackoff)+1, up.calls())
}

const chatOK = `{
  "id": "chatcmpl_1",
  "object": "chat.completion",
  "created": 0,
  "model": "deepseek-chat",
  "choices": [{
    "index": 0,
    "finish_reason": "stop",
    "message": {"role": "assistant", "content": "Rewritten note."}
  }]
}`

const chatEmpty = `{"id": "chatcmpl_2", "object": "chat.completion", "created": 0, "model": "deepseek-chat", "choices": []}`

func TestOpenAIChat_Complete(t *testing.T) {
	up, ts, hc := newFakeUpstream(t,
		cannedReply{status: http.StatusBadGateway, body: upstreamError},
		cannedReply{status: http.StatusOK, body: chatOK},
		cannedReply{status: http.StatusOK, body: chatEmpty},
	)
	cfg := openAISettings(ts.URL, hc)
	cfg.Model = "deepseek-chat"
	llm, err := NewOpenAIChat(cfg)
	require.NoError(t, err)

	_, err = llm.Complete(context.Background(), Prompt{User: "hi"})
	require.Error(t, err)
	assert.Equal(t, 1, up.calls())

	out, err := llm.Complete(context.Background(), Prompt{User: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "Rewritten note.", out)
	assert.True(t, strings.HasSuffix(up.lastPath(), "/chat/completions"), up.lastPath())

	body := up.lastBody()
	assert.Equal(t, "user", gjson.GetBytes(body, "messages.0.role").String())
	assert.Equal(t, "hi", gjson.GetBytes(body, "messages.0.content").String())
	assert.Equal(t, int64(1), gjson.GetBytes(body, "messages.#").Int())
	assert.False(t, gjson.GetBytes(body, "temperature").Exists())
	assert.False(t, gjson.GetBytes(body, "max_tokens").Exists())

	_, err = llm.Complete(context.Background(), Prompt{User: "hi"})
	assert.ErrorContains(t, err, "empty choices")
}

func TestOpenAIChat_SendsTuningWhenConfigured(t *testing.T) {
	up, ts, hc := newFakeUpstream(t, cannedReply{status: http.StatusOK, body: chatOK})
	cfg := openAISettings(ts.URL, hc)
	temp := 0.3
	cfg.Temperature = &temp
	cfg.MaxOutputTokens = 512
	llm, err := NewOpenAIChat(cfg)
	require.NoError(t, err)

	_, err = llm.Complete(context.Background(), Prompt{User: "hi"})
	require.NoError(t, err)

	body := up.lastBody()
	assert.InDelta(t, 0.3, gjson.GetBytes(body, "temperature").Float(), 1e-9)
	assert.Equal(t, int64(512), gjson.GetBytes(body, "max_tokens").Int())
}

func TestOpenAIOptions_Validation(t *testing.T) {
	_, err := NewOpenAIResponses(nil)
	assert.Error(t, err)
	_, err = NewOpenAIResponses(&LLMSettings{Model: "gpt-5-mini"})
	assert.Error(t, err)
	_, err = NewOpenAIChat(&LLMSettings{APIKey: "k"})
	assert.Error(t, err)
}
