// Package generator is the job runner behind blog schedules: it researches
// the target website and writes a markdown post with an LLM.
package generator

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/NordCoder/GetMoreSeo/internal/circuitbreaker"
	"github.com/NordCoder/GetMoreSeo/internal/domain/blog"
	"github.com/NordCoder/GetMoreSeo/internal/domain/schedule"
	"github.com/NordCoder/GetMoreSeo/internal/obs"
	"github.com/NordCoder/GetMoreSeo/internal/obs/retry"
)

const llmBreakerKey = "llm"

type Options struct {
	Model         string
	ResearchModel string
	MaxTokens     int
	Temperature   float64
	// RPS limits LLM calls per second across all jobs; 0 disables the limit.
	RPS   float64
	Burst int
}

type Generator struct {
	scraper Scraper
	llm     Completer
	posts   blog.Repo
	limiter *rate.Limiter
	breaker *circuitbreaker.Breaker
	retry   retry.Policy
	opts    Options
	log     *zap.Logger
}

var _ schedule.JobRunner = (*Generator)(nil)

func New(scraper Scraper, llm Completer, posts blog.Repo, breaker *circuitbreaker.Breaker, opts Options, log *zap.Logger) *Generator {
	if log == nil {
		log = zap.NewNop()
	}
	if breaker == nil {
		breaker = circuitbreaker.New("generator", 5, time.Minute)
	}
	limit := rate.Inf
	if opts.RPS > 0 {
		limit = rate.Limit(opts.RPS)
	}
	if opts.Burst <= 0 {
		opts.Burst = 1
	}
	log = log.With(zap.String("component", "generator"))
	return &Generator{
		scraper: scraper,
		llm:     llm,
		posts:   posts,
		limiter: rate.NewLimiter(limit, opts.Burst),
		breaker: breaker,
		retry:   retry.HTTPPolicy("generator", log, Retryable),
		opts:    opts,
		log:     log,
	}
}

// Run generates a post for the schedule's website and stores it.
func (g *Generator) Run(ctx context.Context, s *schedule.Schedule) (schedule.RunResult, error) {
	ctx, span := otel.Tracer("generator").Start(ctx, "generator.run",
		trace.WithAttributes(
			attribute.String("schedule.id", s.ID.String()),
			attribute.String("schedule.target", s.Target),
		),
	)
	defer span.End()

	post, err := g.Generate(ctx, s.Target)
	if err != nil {
		span.RecordError(err)
		return schedule.RunResult{}, err
	}
	id := s.ID
	post.UserID = s.UserID
	post.ScheduleID = &id

	if err := g.posts.Insert(ctx, post); err != nil {
		span.RecordError(err)
		return schedule.RunResult{}, fmt.Errorf("save blog post: %w", err)
	}
	return schedule.RunResult{ResultID: post.ID}, nil
}

// Generate researches target and writes a post without saving it. When the
// two-step flow fails it falls back to a single completion.
func (g *Generator) Generate(ctx context.Context, target string) (*blog.Post, error) {
	log := obs.WithTrace(ctx, g.log).With(zap.String("website_url", target))

	page, err := g.scrape(ctx, target)
	if err != nil {
		log.Warn("scrape failed, generating from url only", zap.Error(err))
		page = Page{URL: target}
	}

	research, content, err := g.twoStep(ctx, page)
	if err != nil {
		log.Warn("two-step generation failed, trying single prompt", zap.Error(err))
		research = ""
		content, err = g.complete(ctx, Prompt{
			Model:       g.opts.Model,
			System:      blogSystem,
			User:        fallbackPrompt(page),
			Temperature: g.opts.Temperature,
			MaxTokens:   g.opts.MaxTokens,
		})
		if err != nil {
			return nil, fmt.Errorf("generate blog: %w", err)
		}
	}

	return &blog.Post{
		WebsiteURL: target,
		Title:      ExtractTitle(content, page.Title),
		Content:    content,
		Research:   research,
		Model:      g.opts.Model,
	}, nil
}

func (g *Generator) twoStep(ctx context.Context, page Page) (string, string, error) {
	model := g.opts.ResearchModel
	if model == "" {
		model = g.opts.Model
	}
	research, err := g.complete(ctx, Prompt{
		Model:       model,
		System:      researchSystem,
		User:        researchPrompt(page),
		Temperature: researchTemp,
		MaxTokens:   researchTokens,
	})
	if err != nil {
		return "", "", fmt.Errorf("research: %w", err)
	}

	content, err := g.complete(ctx, Prompt{
		Model:       g.opts.Model,
		System:      blogSystem,
		User:        blogPrompt(research),
		Temperature: g.opts.Temperature,
		MaxTokens:   g.opts.MaxTokens,
	})
	if err != nil {
		return "", "", fmt.Errorf("write blog: %w", err)
	}
	return research, content, nil
}

func (g *Generator) complete(ctx context.Context, p Prompt) (string, error) {
	var out string
	err := retry.Do(ctx, func() error {
		if err := g.limiter.Wait(ctx); err != nil {
			return err
		}
		return g.breaker.Do(llmBreakerKey, func() error {
			s, err := g.llm.Complete(ctx, p)
			if err != nil {
				return err
			}
			out = s
			return nil
		})
	}, g.retry)
	return out, err
}

func (g *Generator) scrape(ctx context.Context, target string) (Page, error) {
	var page Page
	err := retry.Do(ctx, func() error {
		return g.breaker.Do(hostOf(target), func() error {
			p, err := g.scraper.Scrape(ctx, target)
			if err != nil {
				return err
			}
			page = p
			return nil
		})
	}, g.retry)
	return page, err
}

func hostOf(target string) string {
	u, err := url.Parse(target)
	if err != nil || u.Host == "" {
		return target
	}
	return strings.ToLower(u.Hostname())
}

var headlineRe = regexp.MustCompile(`(?m)^#\s+(.+)$`)

// ExtractTitle returns the first level-one markdown heading of content,
// falling back to the page title.
func ExtractTitle(content, fallback string) string {
	if m := headlineRe.FindStringSubmatch(content); m != nil {
		if t := strings.TrimSpace(m[1]); t != "" {
			return t
		}
	}
	if fallback = strings.TrimSpace(fallback); fallback != "" {
		return fallback
	}
	return defaultTitle
}
