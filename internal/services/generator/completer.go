package generator

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

// Prompt is one chat completion request.
type Prompt struct {
	Model       string
	System      string
	User        string
	Temperature float64
	MaxTokens   int
}

type Completer interface {
	Complete(ctx context.Context, p Prompt) (string, error)
}

var ErrEmptyCompletion = errors.New("empty completion")

// LangChain talks to any OpenAI-compatible chat completions endpoint.
type LangChain struct {
	llm llms.Model
}

func NewLangChain(baseURL, token, model string, client *http.Client) (*LangChain, error) {
	opts := []openai.Option{
		openai.WithToken(token),
		openai.WithModel(model),
	}
	if baseURL != "" {
		opts = append(opts, openai.WithBaseURL(baseURL))
	}
	if client != nil {
		opts = append(opts, openai.WithHTTPClient(client))
	}
	llm, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("openai client: %w", err)
	}
	return &LangChain{llm: llm}, nil
}

func (l *LangChain) Complete(ctx context.Context, p Prompt) (string, error) {
	msgs := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, p.System),
		llms.TextParts(llms.ChatMessageTypeHuman, p.User),
	}
	opts := []llms.CallOption{llms.WithTemperature(p.Temperature)}
	if p.Model != "" {
		opts = append(opts, llms.WithModel(p.Model))
	}
	if p.MaxTokens > 0 {
		opts = append(opts, llms.WithMaxTokens(p.MaxTokens))
	}

	resp, err := l.llm.GenerateContent(ctx, msgs, opts...)
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Content == "" {
		return "", ErrEmptyCompletion
	}
	return resp.Choices[0].Content, nil
}
