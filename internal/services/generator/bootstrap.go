package generator

import (
	"go.uber.org/zap"

	"github.com/NordCoder/GetMoreSeo/internal/circuitbreaker"
	config "github.com/NordCoder/GetMoreSeo/internal/config/scheduler"
	"github.com/NordCoder/GetMoreSeo/internal/domain/blog"
)

// NewFromConfig wires the OpenAI-compatible completer, the scraper and the
// shared circuit breaker.
func NewFromConfig(cfg *config.Config, posts blog.Repo, log *zap.Logger) (*Generator, error) {
	llm, err := NewLangChain(cfg.Generator.BaseURL, cfg.Generator.APIKey, cfg.Generator.Model,
		NewHTTPClient(cfg.Generator.Timeout))
	if err != nil {
		return nil, err
	}
	scraper := NewHTTPScraper(cfg.Scraper, nil)
	breaker := circuitbreaker.New("generator", cfg.Breaker.Threshold, cfg.Breaker.Cooldown)

	return New(scraper, llm, posts, breaker, Options{
		Model:         cfg.Generator.Model,
		ResearchModel: cfg.Generator.ResearchModel,
		MaxTokens:     cfg.Generator.MaxTokens,
		Temperature:   cfg.Generator.Temperature,
		RPS:           cfg.Generator.RPS,
		Burst:         cfg.Generator.Burst,
	}, log), nil
}
