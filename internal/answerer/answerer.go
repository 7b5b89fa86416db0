// Package answerer answers questions from retrieved document chunks with a
// hosted chat model.
package answerer

import (
	"context"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"pdfqa/internal/domain"
)

const (
	DefaultTopK        = 3
	DefaultModel       = openai.GPT3Dot5Turbo
	DefaultTemperature = 0.2

	systemPrompt = "You are a helpful assistant for answering questions from PDF content. " +
		"Answer based only on the given context."
)

// ChatAPI is the subset of the go-openai client used for completions.
type ChatAPI interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Options tunes retrieval depth and sampling.
type Options struct {
	TopK        int
	Model       string
	Temperature float32
}

// Source is one retrieved chunk in rank order.
type Source struct {
	Index    int
	Distance float64
	Text     string
}

// Result is an answer together with the context it was conditioned on.
type Result struct {
	Answer  string
	Sources []Source
}

// Answerer embeds questions with the embedder the index was built with and
// asks the chat model to answer from the nearest chunks.
type Answerer struct {
	embedder domain.Embedder
	chat     ChatAPI
	opts     Options
}

// New validates opts and fills defaults for the zero values of Model and
// TopK. A negative TopK is rejected.
func New(embedder domain.Embedder, chat ChatAPI, opts Options) (*Answerer, error) {
	if opts.TopK == 0 {
		opts.TopK = DefaultTopK
	}
	if opts.TopK < 0 {
		return nil, fmt.Errorf("%w: top_k must be positive, got %d", domain.ErrInvalidConfiguration, opts.TopK)
	}
	if opts.Model == "" {
		opts.Model = DefaultModel
	}
	return &Answerer{embedder: embedder, chat: chat, opts: opts}, nil
}

// Retrieve returns the top-k chunks for question, closest first. Neighbor
// positions without a matching chunk are dropped. A nil or empty index
// yields no sources.
func (a *Answerer) Retrieve(ctx context.Context, question string, index domain.Index, chunks []string) ([]Source, error) {
	if index == nil || index.Len() == 0 || len(chunks) == 0 {
		return nil, nil
	}
	vecs, err := a.embedder.Embed(ctx, []string{question})
	if err != nil {
		return nil, err
	}
	if len(vecs) != 1 {
		return nil, fmt.Errorf("%w: embedder returned %d vectors for one question", domain.ErrRemoteService, len(vecs))
	}
	hits, err := index.Search(vecs[0], a.opts.TopK)
	if err != nil {
		return nil, err
	}
	sources := make([]Source, 0, len(hits))
	for _, h := range hits {
		if h.Index < 0 || h.Index >= len(chunks) {
			continue
		}
		sources = append(sources, Source{Index: h.Index, Distance: h.Distance, Text: chunks[h.Index]})
	}
	return sources, nil
}

// Answer returns the model's trimmed answer to question.
func (a *Answerer) Answer(ctx context.Context, question string, index domain.Index, chunks []string) (string, error) {
	res, err := a.AnswerWithSources(ctx, question, index, chunks)
	if err != nil {
		return "", err
	}
	return res.Answer, nil
}

// AnswerWithSources is Answer plus the retrieved sources.
func (a *Answerer) AnswerWithSources(ctx context.Context, question string, index domain.Index, chunks []string) (Result, error) {
	sources, err := a.Retrieve(ctx, question, index, chunks)
	if err != nil {
		return Result{}, err
	}
	texts := make([]string, len(sources))
	for i, s := range sources {
		texts[i] = s.Text
	}
	resp, err := a.chat.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       a.opts.Model,
		Messages:    BuildMessages(question, strings.Join(texts, "\n\n")),
		Temperature: a.opts.Temperature,
	})
	if err != nil {
		return Result{}, fmt.Errorf("%w: chat completion: %w", domain.ErrRemoteService, err)
	}
	if len(resp.Choices) == 0 {
		return Result{}, fmt.Errorf("%w: chat completion returned no choices", domain.ErrRemoteService)
	}
	return Result{
		Answer:  strings.TrimSpace(resp.Choices[0].Message.Content),
		Sources: sources,
	}, nil
}

// BuildMessages renders the system instruction and the context-bearing user prompt.
func BuildMessages(question, contextBlock string) []openai.ChatCompletionMessage {
	return []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
		{Role: openai.ChatMessageRoleUser, Content: fmt.Sprintf("Answer the question based on the following context:\n%s\n\nQuestion: %s", contextBlock, question)},
	}
}
