package answerer

import (
	"context"
	"errors"
	"net/http"
	"testing"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pdfqa/internal/domain"
	"pdfqa/internal/vectorstore/memory"
)

// tableEmbedder returns fixed vectors per text.
type tableEmbedder struct {
	vectors map[string][]float32
	err     error
}

func (e *tableEmbedder) Name() string   { return "table" }
func (e *tableEmbedder) Dimension() int { return 2 }

func (e *tableEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	if e.err != nil {
		return nil, e.err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = e.vectors[t]
	}
	return out, nil
}

type fakeChat struct {
	resp openai.ChatCompletionResponse
	err  error
	reqs []openai.ChatCompletionRequest
}

func (f *fakeChat) CreateChatCompletion(_ context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	f.reqs = append(f.reqs, req)
	return f.resp, f.err
}

func reply(content string) openai.ChatCompletionResponse {
	return openai.ChatCompletionResponse{Choices: []openai.ChatCompletionChoice{
		{Message: openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: content}},
	}}
}

func setup(t *testing.T) (*tableEmbedder, domain.Index, []string) {
	t.Helper()
	emb := &tableEmbedder{vectors: map[string][]float32{
		"cats":             {1, 0},
		"dogs":             {0, 1},
		"birds":            {-1, 0},
		"tell me about it": {0.9, 0.1},
	}}
	chunks := []string{"cats", "dogs", "birds"}
	vecs, err := emb.Embed(context.Background(), chunks)
	require.NoError(t, err)
	idx, err := memory.Build(vecs)
	require.NoError(t, err)
	return emb, idx, chunks
}

func TestRetrieve_NearestFirst(t *testing.T) {
	emb, idx, chunks := setup(t)
	a, err := New(emb, &fakeChat{}, Options{TopK: 1})
	require.NoError(t, err)

	sources, err := a.Retrieve(context.Background(), "tell me about it", idx, chunks)
	require.NoError(t, err)
	require.Len(t, sources, 1)
	assert.Equal(t, 0, sources[0].Index)
	assert.Equal(t, "cats", sources[0].Text)
}

func TestAnswer_BuildsPromptFromRankedContext(t *testing.T) {
	emb, idx, chunks := setup(t)
	chat := &fakeChat{resp: reply("  Cats nap a lot.\n")}
	a, err := New(emb, chat, Options{Temperature: 0.2})
	require.NoError(t, err)

	answer, err := a.Answer(context.Background(), "tell me about it", idx, chunks)
	require.NoError(t, err)
	assert.Equal(t, "Cats nap a lot.", answer)

	require.Len(t, chat.reqs, 1)
	req := chat.reqs[0]
	assert.Equal(t, openai.GPT3Dot5Turbo, req.Model)
	assert.InDelta(t, 0.2, req.Temperature, 1e-6)
	require.Len(t, req.Messages, 2)
	assert.Equal(t, openai.ChatMessageRoleSystem, req.Messages[0].Role)
	assert.Contains(t, req.Messages[0].Content, "based only on the given context")
	assert.Equal(t, openai.ChatMessageRoleUser, req.Messages[1].Role)
	assert.Equal(t,
		"Answer the question based on the following context:\ncats\n\ndogs\n\nbirds\n\nQuestion: tell me about it",
		req.Messages[1].Content)
}

func TestAnswerWithSources_DropsUnknownPositions(t *testing.T) {
	emb, idx, _ := setup(t)
	chat := &fakeChat{resp: reply("ok")}
	a, err := New(emb, chat, Options{TopK: 3})
	require.NoError(t, err)

	// Only two chunk texts for a three-vector index.
	res, err := a.AnswerWithSources(context.Background(), "tell me about it", idx, []string{"cats", "dogs"})
	require.NoError(t, err)
	require.Len(t, res.Sources, 2)
	assert.Equal(t, []int{0, 1}, []int{res.Sources[0].Index, res.Sources[1].Index})
}

func TestAnswer_EmptyContextIsNotAnError(t *testing.T) {
	emb := &tableEmbedder{}
	chat := &fakeChat{resp: reply("I don't know.")}
	a, err := New(emb, chat, Options{})
	require.NoError(t, err)

	answer, err := a.Answer(context.Background(), "anything?", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "I don't know.", answer)
	require.Len(t, chat.reqs, 1)
	assert.Equal(t, "Answer the question based on the following context:\n\n\nQuestion: anything?", chat.reqs[0].Messages[1].Content)
}

func TestAnswer_RemoteFailures(t *testing.T) {
	emb, idx, chunks := setup(t)

	cases := map[string]*fakeChat{
		"rate limited": {err: &openai.APIError{HTTPStatusCode: http.StatusTooManyRequests}},
		"network":      {err: errors.New("connection refused")},
		"no choices":   {resp: openai.ChatCompletionResponse{}},
	}
	for name, chat := range cases {
		t.Run(name, func(t *testing.T) {
			a, err := New(emb, chat, Options{})
			require.NoError(t, err)
			_, err = a.Answer(context.Background(), "tell me about it", idx, chunks)
			require.ErrorIs(t, err, domain.ErrRemoteService)
		})
	}
}

func TestAnswer_KeepsUnderlyingError(t *testing.T) {
	emb, idx, chunks := setup(t)
	apiErr := &openai.APIError{HTTPStatusCode: http.StatusUnauthorized}
	a, err := New(emb, &fakeChat{err: apiErr}, Options{})
	require.NoError(t, err)

	_, err = a.Answer(context.Background(), "tell me about it", idx, chunks)
	var got *openai.APIError
	require.ErrorAs(t, err, &got)
	assert.Equal(t, http.StatusUnauthorized, got.HTTPStatusCode)
}

func TestAnswer_EmbedFailurePropagates(t *testing.T) {
	_, idx, chunks := setup(t)
	boom := errors.New("embed down")
	chat := &fakeChat{resp: reply("unused")}
	a, err := New(&tableEmbedder{err: boom}, chat, Options{})
	require.NoError(t, err)

	_, err = a.Answer(context.Background(), "q", idx, chunks)
	require.ErrorIs(t, err, boom)
	assert.Empty(t, chat.reqs)
}

func TestAnswer_DimensionMismatch(t *testing.T) {
	_, idx, chunks := setup(t)
	emb := &tableEmbedder{vectors: map[string][]float32{"q": {1, 2, 3}}}
	a, err := New(emb, &fakeChat{}, Options{})
	require.NoError(t, err)

	_, err = a.Answer(context.Background(), "q", idx, chunks)
	require.ErrorIs(t, err, domain.ErrDimensionMismatch)
}

func TestNew_RejectsNegativeTopK(t *testing.T) {
	_, err := New(&tableEmbedder{}, &fakeChat{}, Options{TopK: -1})
	require.ErrorIs(t, err, domain.ErrInvalidConfiguration)
}
