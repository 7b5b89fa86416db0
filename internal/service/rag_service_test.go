package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pdfqa/internal/config"
	"pdfqa/internal/domain"
	"pdfqa/internal/embedding/local"
)

const sample = `Photosynthesis converts light into chemical energy. Plants store that energy as sugar.
Volcanoes erupt when magma rises through the crust. Lava cools into new rock.
The Roman Empire built roads across Europe. Those roads carried armies and trade.`

// scriptedChat returns errs in order, then a fixed answer.
type scriptedChat struct {
	errs  []error
	calls int
	reqs  []openai.ChatCompletionRequest
}

func (c *scriptedChat) CreateChatCompletion(_ context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	c.calls++
	c.reqs = append(c.reqs, req)
	if len(c.errs) > 0 {
		err := c.errs[0]
		c.errs = c.errs[1:]
		return openai.ChatCompletionResponse{}, err
	}
	return openai.ChatCompletionResponse{Choices: []openai.ChatCompletionChoice{
		{Message: openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: " Sugar. "}},
	}}, nil
}

func testConfig() *config.AppConfig {
	cfg := config.Default()
	cfg.Chunker.ChunkSize = 12
	cfg.Chunker.Overlap = 2
	cfg.Retry.MaxAttempts = 3
	return cfg
}

func newTestService(t *testing.T, chat *scriptedChat) (*RAGService, *[]time.Duration) {
	t.Helper()
	svc, err := New(testConfig(), local.NewEmbedder(64), chat, nil)
	require.NoError(t, err)
	var waits []time.Duration
	svc.wait = func(_ context.Context, d time.Duration) error {
		waits = append(waits, d)
		return nil
	}
	return svc, &waits
}

func writeSample(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "notes.txt")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0o644))
	return path
}

func TestIngestBuildsSession(t *testing.T) {
	svc, _ := newTestService(t, &scriptedChat{})
	path := writeSample(t)

	sess, err := svc.Ingest(context.Background(), path)
	require.NoError(t, err)

	assert.NotEmpty(t, sess.ID())
	assert.Equal(t, path, sess.Document().Path)
	chunks := sess.Chunks()
	require.NotEmpty(t, chunks)
	assert.Equal(t, len(chunks), sess.Index().Len())
	assert.Equal(t, 64, sess.Index().Dimension())
	assert.NotEmpty(t, sess.Summary())
	for i, c := range chunks {
		assert.Equal(t, i, c.Index)
	}
}

func TestSessionsAreIndependent(t *testing.T) {
	svc, _ := newTestService(t, &scriptedChat{})
	path := writeSample(t)

	a, err := svc.Ingest(context.Background(), path)
	require.NoError(t, err)
	b, err := svc.IngestDocument(context.Background(), domain.Document{ID: "x", Path: "other", Content: "one two three"})
	require.NoError(t, err)

	assert.NotEqual(t, a.ID(), b.ID())
	assert.Equal(t, 1, b.Index().Len())
	assert.Greater(t, a.Index().Len(), 1)
}

func TestIngestMissingFile(t *testing.T) {
	svc, _ := newTestService(t, &scriptedChat{})
	_, err := svc.Ingest(context.Background(), filepath.Join(t.TempDir(), "missing.txt"))
	require.Error(t, err)
}

func TestIngestBlankDocument(t *testing.T) {
	svc, _ := newTestService(t, &scriptedChat{})
	_, err := svc.IngestDocument(context.Background(), domain.Document{Path: "blank", Content: "   "})
	require.ErrorIs(t, err, domain.ErrEmptyInput)
}

func TestAskReturnsAnswerAndSources(t *testing.T) {
	chat := &scriptedChat{}
	svc, waits := newTestService(t, chat)
	sess, err := svc.Ingest(context.Background(), writeSample(t))
	require.NoError(t, err)

	res, err := sess.Ask(context.Background(), "  How do plants store energy?  ")
	require.NoError(t, err)
	assert.Equal(t, "Sugar.", res.Answer)
	assert.Len(t, res.Sources, min(3, sess.Index().Len()))
	assert.Equal(t, 1, chat.calls)
	assert.Empty(t, *waits)
	assert.Contains(t, chat.reqs[0].Messages[1].Content, "Question: How do plants store energy?")
}

func TestAskRejectsBlankQuestion(t *testing.T) {
	chat := &scriptedChat{}
	svc, _ := newTestService(t, chat)
	sess, err := svc.Ingest(context.Background(), writeSample(t))
	require.NoError(t, err)

	_, err = sess.Ask(context.Background(), " \t ")
	require.ErrorIs(t, err, domain.ErrEmptyInput)
	assert.Zero(t, chat.calls)
}

func TestAskRetriesTransientFailures(t *testing.T) {
	chat := &scriptedChat{errs: []error{
		&openai.APIError{HTTPStatusCode: http.StatusServiceUnavailable, Message: "busy"},
		&openai.APIError{HTTPStatusCode: http.StatusTooManyRequests, Message: "slow down"},
	}}
	svc, waits := newTestService(t, chat)
	sess, err := svc.Ingest(context.Background(), writeSample(t))
	require.NoError(t, err)

	res, err := sess.Ask(context.Background(), "volcanoes?")
	require.NoError(t, err)
	assert.Equal(t, "Sugar.", res.Answer)
	assert.Equal(t, 3, chat.calls)
	assert.Equal(t, []time.Duration{200 * time.Millisecond, 400 * time.Millisecond}, *waits)
}

func TestAskGivesUpAfterMaxAttempts(t *testing.T) {
	busy := &openai.APIError{HTTPStatusCode: http.StatusBadGateway, Message: "down"}
	chat := &scriptedChat{errs: []error{busy, busy, busy, busy}}
	svc, waits := newTestService(t, chat)
	sess, err := svc.Ingest(context.Background(), writeSample(t))
	require.NoError(t, err)

	_, err = sess.Ask(context.Background(), "roads?")
	require.ErrorIs(t, err, domain.ErrRemoteService)
	assert.Equal(t, 3, chat.calls)
	assert.Len(t, *waits, 2)
}

func TestAskDoesNotRetryPermanentFailures(t *testing.T) {
	chat := &scriptedChat{errs: []error{
		&openai.APIError{HTTPStatusCode: http.StatusUnauthorized, Message: "bad key"},
	}}
	svc, waits := newTestService(t, chat)
	sess, err := svc.Ingest(context.Background(), writeSample(t))
	require.NoError(t, err)

	_, err = sess.Ask(context.Background(), "roads?")
	require.ErrorIs(t, err, domain.ErrRemoteService)
	var apiErr *openai.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusUnauthorized, apiErr.HTTPStatusCode)
	assert.Equal(t, 1, chat.calls)
	assert.Empty(t, *waits)
}

func TestAskStopsWhenContextCancelled(t *testing.T) {
	chat := &scriptedChat{errs: []error{
		&openai.APIError{HTTPStatusCode: http.StatusServiceUnavailable},
		&openai.APIError{HTTPStatusCode: http.StatusServiceUnavailable},
	}}
	svc, _ := newTestService(t, chat)
	svc.wait = sleepCtx
	sess, err := svc.Ingest(context.Background(), writeSample(t))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = sess.Ask(ctx, "plants?")
	require.ErrorIs(t, err, domain.ErrRemoteService)
	assert.Equal(t, 1, chat.calls)
}

// flakyEmbedder fails with errs in order before delegating to next.
type flakyEmbedder struct {
	domain.Embedder
	errs  []error
	calls int
}

func (f *flakyEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	f.calls++
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		return nil, err
	}
	return f.Embedder.Embed(ctx, texts)
}

func remoteErr(status int) error {
	return fmt.Errorf("%w: create embeddings: %w", domain.ErrRemoteService, &openai.APIError{HTTPStatusCode: status})
}

func TestIngestRetriesTransientEmbeddingFailures(t *testing.T) {
	emb := &flakyEmbedder{Embedder: local.NewEmbedder(32), errs: []error{remoteErr(http.StatusServiceUnavailable)}}
	svc, err := New(testConfig(), emb, &scriptedChat{}, nil)
	require.NoError(t, err)
	var waits []time.Duration
	svc.wait = func(_ context.Context, d time.Duration) error {
		waits = append(waits, d)
		return nil
	}

	sess, err := svc.Ingest(context.Background(), writeSample(t))
	require.NoError(t, err)
	assert.Equal(t, 2, emb.calls)
	assert.Equal(t, []time.Duration{200 * time.Millisecond}, waits)
	assert.Equal(t, len(sess.Chunks()), sess.Index().Len())
}

func TestIngestDoesNotRetryPermanentEmbeddingFailures(t *testing.T) {
	emb := &flakyEmbedder{Embedder: local.NewEmbedder(32), errs: []error{remoteErr(http.StatusUnauthorized)}}
	svc, err := New(testConfig(), emb, &scriptedChat{}, nil)
	require.NoError(t, err)
	svc.wait = func(context.Context, time.Duration) error {
		t.Fatal("unexpected backoff")
		return nil
	}

	_, err = svc.Ingest(context.Background(), writeSample(t))
	require.ErrorIs(t, err, domain.ErrRemoteService)
	assert.Equal(t, 1, emb.calls)
}

func TestNewRejectsInvalidChunking(t *testing.T) {
	cfg := testConfig()
	cfg.Chunker.Overlap = cfg.Chunker.ChunkSize
	_, err := New(cfg, local.NewEmbedder(8), &scriptedChat{}, nil)
	require.ErrorIs(t, err, domain.ErrInvalidConfiguration)
}
