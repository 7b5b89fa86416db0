package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"pdfqa/internal/answerer"
	"pdfqa/internal/chunker"
	"pdfqa/internal/config"
	"pdfqa/internal/document"
	"pdfqa/internal/domain"
	"pdfqa/internal/embedding"
	"pdfqa/internal/llm"
	"pdfqa/internal/summarizer"
	"pdfqa/internal/vectorstore/memory"
)

// RAGService ingests documents into independent sessions. It holds only
// immutable collaborators, so sessions never share mutable state.
type RAGService struct {
	chunker       domain.Chunker
	embedder      domain.Embedder
	queryEmbedder domain.Embedder
	chat          answerer.ChatAPI
	summarizer    domain.Summarizer
	opts          answerer.Options
	maxSentences  int
	maxAttempts   int
	logger        *zap.Logger
	wait          func(ctx context.Context, d time.Duration) error
}

// New assembles the pipeline from cfg. emb is used both to build
// each session's index and, through an LRU cache, to embed questions.
func New(cfg *config.AppConfig, emb domain.Embedder, chat answerer.ChatAPI, logger *zap.Logger) (*RAGService, error) {
	ch, err := chunker.NewWordChunker(cfg.Chunker.ChunkSize, cfg.Chunker.Overlap)
	if err != nil {
		return nil, err
	}
	if cfg.Answerer.TopK <= 0 {
		return nil, fmt.Errorf("%w: top_k must be positive, got %d", domain.ErrInvalidConfiguration, cfg.Answerer.TopK)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	attempts := cfg.Retry.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	return &RAGService{
		chunker:       ch,
		embedder:      emb,
		queryEmbedder: embedding.WithCache(emb, cfg.Embedder.Cache.Size, time.Duration(cfg.Embedder.Cache.TTLSecs)*time.Second),
		chat:          chat,
		summarizer:    summarizer.NewFrequencySummarizer(),
		opts: answerer.Options{
			TopK:        cfg.Answerer.TopK,
			Model:       cfg.Answerer.ChatModel,
			Temperature: cfg.Answerer.Temperature,
		},
		maxSentences: cfg.Summarizer.MaxSentences,
		maxAttempts:  attempts,
		logger:       logger,
		wait:         sleepCtx,
	}, nil
}

// Ingest loads the file at path and builds a session for it.
func (s *RAGService) Ingest(ctx context.Context, path string) (*Session, error) {
	doc, err := document.Load(ctx, path)
	if err != nil {
		return nil, err
	}
	return s.IngestDocument(ctx, doc)
}

// IngestDocument chunks, embeds and indexes doc once.
func (s *RAGService) IngestDocument(ctx context.Context, doc domain.Document) (*Session, error) {
	start := time.Now()
	id := uuid.NewString()
	log := s.logger.With(zap.String("session", id), zap.String("path", doc.Path))

	chunks, err := s.chunker.Chunk(doc)
	if err != nil {
		return nil, err
	}
	if len(chunks) == 0 {
		return nil, fmt.Errorf("%w: document %s has no words", domain.ErrEmptyInput, doc.Path)
	}
	texts := chunker.Texts(chunks)

	var vectors [][]float32
	err = s.withRetry(ctx, log, "embed chunks", func() error {
		var err error
		vectors, err = s.embedder.Embed(ctx, texts)
		return err
	})
	if err != nil {
		return nil, err
	}
	idx, err := memory.Build(vectors)
	if err != nil {
		return nil, err
	}

	summary, err := s.summarizer.Summarize(doc.Content, s.maxSentences)
	if err != nil {
		return nil, err
	}
	ans, err := answerer.New(s.queryEmbedder, s.chat, s.opts)
	if err != nil {
		return nil, err
	}

	log.Info("document indexed",
		zap.String("embedder", s.embedder.Name()),
		zap.Int("chunks", len(chunks)),
		zap.Int("dim", idx.Dimension()),
		zap.Duration("duration", time.Since(start)),
	)
	return &Session{
		id:       id,
		doc:      doc,
		chunks:   chunks,
		texts:    texts,
		index:    idx,
		summary:  summary,
		answerer: ans,
		svc:      s,
		logger:   log,
	}, nil
}

// withRetry runs fn, retrying transient remote failures with capped
// exponential backoff up to maxAttempts total attempts.
func (s *RAGService) withRetry(ctx context.Context, log *zap.Logger, op string, fn func() error) error {
	for attempt := 0; ; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		if attempt+1 >= s.maxAttempts || !errors.Is(err, domain.ErrRemoteService) || !llm.IsTransient(err) {
			return err
		}
		delay := llm.RetryDelay(attempt)
		log.Warn("remote call failed, retrying",
			zap.String("op", op),
			zap.Int("attempt", attempt+1),
			zap.Duration("delay", delay),
			zap.Error(err),
		)
		if werr := s.wait(ctx, delay); werr != nil {
			return err
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Session is the state of one ingested document: its chunks and the index
// built from them. It is not safe for concurrent Ask calls.
type Session struct {
	id       string
	doc      domain.Document
	chunks   []domain.Chunk
	texts    []string
	index    domain.Index
	summary  string
	answerer *answerer.Answerer
	svc      *RAGService
	logger   *zap.Logger
}

func (s *Session) ID() string                { return s.id }
func (s *Session) Document() domain.Document { return s.doc }
func (s *Session) Chunks() []domain.Chunk    { return append([]domain.Chunk(nil), s.chunks...) }
func (s *Session) Summary() string           { return s.summary }
func (s *Session) Index() domain.Index       { return s.index }

// Ask answers question from this session's document.
func (s *Session) Ask(ctx context.Context, question string) (answerer.Result, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return answerer.Result{}, fmt.Errorf("%w: question is blank", domain.ErrEmptyInput)
	}
	start := time.Now()
	var res answerer.Result
	err := s.svc.withRetry(ctx, s.logger, "answer", func() error {
		var err error
		res, err = s.answerer.AnswerWithSources(ctx, question, s.index, s.texts)
		return err
	})
	if err != nil {
		s.logger.Error("answer failed", zap.Error(err))
		return answerer.Result{}, err
	}
	s.logger.Debug("answered",
		zap.Int("sources", len(res.Sources)),
		zap.Duration("duration", time.Since(start)),
	)
	return res, nil
}
