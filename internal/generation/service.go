package generation

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/hyperjump/nexus/internal/models"
)

// Retriever produces the context for a question.
type Retriever interface {
	Dispatch(ctx context.Context, q models.RetrievalQuery) (*models.Retrieval, error)
}

// Answer is a generated answer with the sources its context was built from.
type Answer struct {
	Text      string                `json:"answer"`
	State     models.DispatchState  `json:"state"`
	Citations []models.Citation     `json:"citations"`
	Branches  []models.BranchReport `json:"branches"`
	QueryTime int64                 `json:"query_time_ms"`
}

// Service answers questions: retrieve, compose, generate.
type Service struct {
	retriever Retriever
	generator Generator
	policy    string
	logger    *zap.Logger
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithPolicy replaces DefaultPolicy.
func WithPolicy(policy string) ServiceOption {
	return func(s *Service) { s.policy = policy }
}

// WithLogger sets the service logger.
func WithLogger(l *zap.Logger) ServiceOption {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewService creates a Service. generator may be nil; Ask then returns ErrNoGenerator.
func NewService(retriever Retriever, generator Generator, opts ...ServiceOption) *Service {
	s := &Service{
		retriever: retriever,
		generator: generator,
		policy:    DefaultPolicy,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// HasGenerator reports whether a generator is configured.
func (s *Service) HasGenerator() bool {
	return s.generator != nil
}

// Ask retrieves context for q and generates an answer. When every backend
// failed the model still receives the explicit no-sources marker so it can
// say so instead of guessing. A generation failure is returned as an error.
func (s *Service) Ask(ctx context.Context, q models.RetrievalQuery) (*Answer, error) {
	if s.generator == nil {
		return nil, ErrNoGenerator
	}
	ret, err := s.retriever.Dispatch(ctx, q)
	if err != nil {
		return nil, err
	}

	prompt := ComposePrompt(s.policy, ret.Context, ret.Query)
	text, err := s.generator.Generate(ctx, prompt)
	if err != nil {
		s.logger.Error("generation failed", zap.String("query", ret.Query), zap.Error(err))
		return nil, fmt.Errorf("generate answer: %w", err)
	}
	s.logger.Debug("answer generated",
		zap.Int("prompt_chars", len([]rune(prompt))),
		zap.Int("answer_chars", len([]rune(text))))

	return &Answer{
		Text:      text,
		State:     ret.State,
		Citations: ret.Citations(),
		Branches:  ret.Branches,
		QueryTime: ret.QueryTime,
	}, nil
}
