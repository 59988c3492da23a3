package chat

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aegis/copilot/internal/observability"
	"github.com/aegis/copilot/internal/tracing"
	"github.com/aegis/copilot/pkg/commandqueue"
	"github.com/aegis/copilot/pkg/llm"
	"github.com/aegis/copilot/pkg/prompt"
	"github.com/aegis/copilot/pkg/session"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
)

// SessionStore is the part of session.Store the dispatcher needs
type SessionStore interface {
	Create(history []session.Message, domain prompt.Domain) (string, error)
	Append(id string, role session.Role, content string) error
	ReadAll(id string) ([]session.Message, error)
	Get(id string) (session.Session, error)
}

// TurnLanes runs tasks one at a time per lane. *commandqueue.CommandQueue
// satisfies it.
type TurnLanes interface {
	Enqueue(ctx context.Context, lane string, task commandqueue.Task) (any, error)
}

// TurnRequest is one inbound turn
type TurnRequest struct {
	Domain      string
	Context     map[string]any
	SessionID   string
	UserMessage string
}

// TurnResult is the reply to one turn
type TurnResult struct {
	Reply      string
	SessionID  string
	Domain     prompt.Domain
	NewSession bool
}

// Config holds dispatcher configuration
type Config struct {
	Store       SessionStore
	Provider    llm.Provider
	Model       string
	Temperature float64
	MaxTokens   int
	Strategies  []llm.Strategy
	// Lanes, when set, serializes continuation turns per session. Without it
	// two concurrent turns on one session may both append before either reply.
	Lanes  TurnLanes
	Logger zerolog.Logger
}

// Dispatcher runs turns against a session store and an LLM provider
type Dispatcher struct {
	store       SessionStore
	provider    llm.Provider
	model       string
	temperature float64
	maxTokens   int
	strategies  []llm.Strategy
	lanes       TurnLanes
	logger      zerolog.Logger
}

// NewDispatcher creates a dispatcher
func NewDispatcher(cfg Config) (*Dispatcher, error) {
	observability.EnsureRegistered()

	if cfg.Store == nil {
		return nil, fmt.Errorf("session store is required")
	}
	if cfg.Provider == nil {
		return nil, fmt.Errorf("llm provider is required")
	}
	if cfg.Model == "" {
		cfg.Model = llm.DefaultGroqModel
	}
	if len(cfg.Strategies) == 0 {
		cfg.Strategies = llm.DefaultStrategies
	}

	return &Dispatcher{
		store:       cfg.Store,
		provider:    cfg.Provider,
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		strategies:  cfg.Strategies,
		lanes:       cfg.Lanes,
		logger:      cfg.Logger,
	}, nil
}

// HandleTurn opens or continues a session, calls the provider once and
// records the reply.
func (d *Dispatcher) HandleTurn(ctx context.Context, req TurnRequest) (result *TurnResult, err error) {
	if ctx == nil {
		ctx = context.Background()
	}
	start := time.Now()

	turn := "new"
	if req.SessionID != "" {
		turn = "continue"
	}
	domainLabel := "unknown"

	defer func() {
		outcome := "success"
		if err != nil {
			outcome = string(KindOf(err))
		}
		observability.RecordTurn(domainLabel, turn, outcome, time.Since(start))
	}()

	// Only an absent tag is missing; a blank one resolves to Generic.
	if req.Domain == "" {
		return nil, ErrMissingDomain
	}

	if d.lanes == nil || req.SessionID == "" {
		return d.runTurn(ctx, req, turn, start, &domainLabel)
	}

	value, err := d.lanes.Enqueue(ctx, req.SessionID, func(ctx context.Context) (any, error) {
		return d.runTurn(ctx, req, turn, start, &domainLabel)
	})
	if err != nil {
		var chatErr *Error
		if !errors.As(err, &chatErr) {
			return nil, Internal(fmt.Errorf("session lane: %w", err))
		}
		return nil, err
	}
	return value.(*TurnResult), nil
}

// runTurn does the work of HandleTurn once the domain tag is known to be set
func (d *Dispatcher) runTurn(ctx context.Context, req TurnRequest, turn string, start time.Time, domainLabel *string) (*TurnResult, error) {
	var (
		err     error
		id      string
		domain  prompt.Domain
		history []session.Message
	)

	if req.SessionID != "" {
		id = req.SessionID
		ctx = tracing.WithSessionID(ctx, id)

		existing, getErr := d.store.Get(id)
		if getErr != nil {
			return nil, storeError(getErr)
		}
		domain = existing.Domain
		*domainLabel = domain.String()

		if req.UserMessage == "" {
			return nil, ErrMissingUserMessage
		}

		if err := d.store.Append(id, session.RoleUser, req.UserMessage); err != nil {
			return nil, storeError(err)
		}
		history, err = d.store.ReadAll(id)
		if err != nil {
			return nil, storeError(err)
		}
	} else {
		domain = prompt.ParseDomain(req.Domain)
		*domainLabel = domain.String()

		history = []session.Message{{
			Role:    session.RoleSystem,
			Content: prompt.BuildSystemPrompt(domain, req.Context),
		}}
		if req.UserMessage != "" {
			history = append(history, session.Message{Role: session.RoleUser, Content: req.UserMessage})
		}

		id, err = d.store.Create(history, domain)
		if err != nil {
			return nil, Internal(fmt.Errorf("failed to create session: %w", err))
		}
		ctx = tracing.WithSessionID(ctx, id)
		observability.RecordSessionAudit(ctx, "session_created", id, "success", map[string]any{"domain": domain.String()})
	}

	ctx = tracing.WithDomain(ctx, domain.String())
	logger := tracing.LoggerFromContext(ctx, d.logger)
	logger.Info().
		Str("turn", turn).
		Int("history", len(history)).
		Msg("Dispatching turn")

	reply, err := d.complete(ctx, history)
	if err != nil {
		logger.Error().Err(err).Str("kind", string(KindOf(err))).Msg("Turn failed")
		return nil, err
	}

	if err := d.store.Append(id, session.RoleAssistant, reply); err != nil {
		logger.Error().Err(err).Msg("Failed to record assistant reply")
		return nil, Internal(fmt.Errorf("failed to record reply: %w", err))
	}

	logger.Info().
		Int("reply_chars", len(reply)).
		Dur("duration", time.Since(start)).
		Msg("Turn completed")

	return &TurnResult{
		Reply:      reply,
		SessionID:  id,
		Domain:     domain,
		NewSession: turn == "new",
	}, nil
}

// complete sends history upstream without holding any store lock
func (d *Dispatcher) complete(ctx context.Context, history []session.Message) (string, error) {
	ctx, span := tracing.StartSpan(
		ctx,
		"copilot.chat",
		"llm.complete",
		attribute.String("provider", d.provider.Name()),
		attribute.String("model", d.model),
		attribute.Int("messages", len(history)),
	)
	defer span.End()

	messages := make([]llm.Message, len(history))
	for i, msg := range history {
		messages[i] = llm.Message{Role: string(msg.Role), Content: msg.Content}
	}

	start := time.Now()
	resp, err := d.provider.Complete(ctx, llm.Request{
		Model:       d.model,
		Messages:    messages,
		Temperature: d.temperature,
		MaxTokens:   d.maxTokens,
	})
	observability.RecordUpstreamCall(d.provider.Name(), time.Since(start), err == nil)
	if err != nil {
		tracing.FailSpan(span, err)
		return "", newError(KindUpstreamError, fmt.Sprintf("%s API error", d.provider.Name()), err)
	}
	if resp == nil {
		err := newError(KindEmptyUpstreamReply, "empty response from upstream", nil)
		tracing.FailSpan(span, err)
		return "", err
	}

	reply, ok := llm.ExtractWith(resp.Raw, d.strategies)
	if !ok {
		d.logger.Debug().Interface("raw", resp.Raw).Msg("No reply found in upstream response")
		err := newError(KindEmptyUpstreamReply, fmt.Sprintf("empty response from %s", d.provider.Name()), nil)
		tracing.FailSpan(span, err)
		return "", err
	}

	return reply, nil
}

func storeError(err error) error {
	if errors.Is(err, session.ErrSessionNotFound) {
		return newError(KindSessionNotFound, "session ID not found", nil)
	}
	return Internal(err)
}
