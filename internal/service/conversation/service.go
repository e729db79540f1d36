// Package conversation orchestrates one gated, quota-metered AI turn.
package conversation

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/zhouzirui/lingo-chat/backend/internal/analysis/transcript"
	"github.com/zhouzirui/lingo-chat/backend/internal/auth"
	"github.com/zhouzirui/lingo-chat/backend/internal/model/chat"
	"github.com/zhouzirui/lingo-chat/backend/internal/model/lesson"
	"github.com/zhouzirui/lingo-chat/backend/internal/model/membership"
	"github.com/zhouzirui/lingo-chat/backend/internal/model/persona"
	"github.com/zhouzirui/lingo-chat/backend/internal/policy"
	"github.com/zhouzirui/lingo-chat/backend/internal/quota"
	"github.com/zhouzirui/lingo-chat/backend/internal/service/ai"
)

// OpeningLineMarker is the message of a system-generated greeting request.
const OpeningLineMarker = "__OPENING_LINE__"

const DefaultGenerationTimeout = 30 * time.Second

// ChargePolicy decides when a regular turn is recorded in the ledger.
type ChargePolicy string

// Every regular turn is reserved with an atomic increment before the engine
// is called; the policy only decides what happens when generation fails.
const (
	// ChargeAfterSuccess releases the reservation when the engine fails, so
	// failed calls cost nothing.
	ChargeAfterSuccess ChargePolicy = "after_success"
	// ChargeBeforeCall keeps the reservation even when the engine fails.
	ChargeBeforeCall ChargePolicy = "before_call"
)

// ParseChargePolicy validates a configured policy name.
func ParseChargePolicy(raw string) (ChargePolicy, bool) {
	switch ChargePolicy(strings.ToLower(strings.TrimSpace(raw))) {
	case "", ChargeAfterSuccess:
		return ChargeAfterSuccess, true
	case ChargeBeforeCall:
		return ChargeBeforeCall, true
	default:
		return "", false
	}
}

// Generator is the text-generation engine.
type Generator interface {
	Generate(ctx context.Context, p ai.Prompt) (string, error)
}

// Assembler builds engine instructions.
type Assembler interface {
	Assemble(req ai.PromptRequest) ai.Prompt
}

// Config tunes the orchestrator.
type Config struct {
	GenerationTimeout time.Duration
	ContextTarget     int
	ChargePolicy      ChargePolicy
}

// Dependencies are the collaborators of the orchestrator. Lessons and
// Cache are optional.
type Dependencies struct {
	Resolver  auth.Resolver
	Ledger    *quota.Ledger
	Assembler Assembler
	Engine    Generator
	Lessons   lesson.Store
	Cache     *transcript.Cache
}

// Request is one conversation call.
type Request struct {
	Message  string
	Mode     string
	LessonID string
	Lesson   lesson.Lesson
	History  []chat.Turn
}

// Response is a successful conversation call. RemainingChats is
// policy.Unbounded for unlimited tiers.
type Response struct {
	TurnID           string
	Persona          persona.ID
	Reply            string
	ReplyTranslation string
	UsedVocabulary   []string
	Correction       *string
	RemainingChats   int
	Fallback         bool
}

// Status is the quota view of one (user, lesson).
type Status struct {
	Tier           membership.Tier
	DailyLimit     int
	Used           int
	RemainingChats int
}

// Service composes identity, policy, quota, compression, prompting and
// generation.
type Service struct {
	resolver  auth.Resolver
	ledger    *quota.Ledger
	assembler Assembler
	engine    Generator
	lessons   lesson.Store
	cache     *transcript.Cache
	cfg       Config
	logger    *zap.Logger
}

// NewService wires the orchestrator.
func NewService(deps Dependencies, cfg Config, logger *zap.Logger) (*Service, error) {
	if deps.Resolver == nil || deps.Ledger == nil || deps.Engine == nil {
		return nil, errors.New("conversation: resolver, ledger and engine are required")
	}
	if deps.Assembler == nil {
		deps.Assembler = ai.NewPersonaPromptAssembler()
	}
	if cfg.GenerationTimeout <= 0 {
		cfg.GenerationTimeout = DefaultGenerationTimeout
	}
	if cfg.ContextTarget <= 0 {
		cfg.ContextTarget = transcript.DefaultTarget
	}
	charge, ok := ParseChargePolicy(string(cfg.ChargePolicy))
	if !ok {
		return nil, errors.New("conversation: unknown charge policy " + string(cfg.ChargePolicy))
	}
	cfg.ChargePolicy = charge
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Service{
		resolver:  deps.Resolver,
		ledger:    deps.Ledger,
		assembler: deps.Assembler,
		engine:    deps.Engine,
		lessons:   deps.Lessons,
		cache:     deps.Cache,
		cfg:       cfg,
		logger:    logger.Named("conversation"),
	}, nil
}

// Authenticate resolves the caller without doing anything else.
func (s *Service) Authenticate(ctx context.Context, creds auth.Credentials) (membership.Identity, error) {
	identity, err := s.resolver.Resolve(ctx, creds)
	if err != nil {
		return membership.Identity{}, newError(KindUnauthenticated, "please sign in again", err)
	}
	return identity, nil
}

// Handle runs one conversation turn.
func (s *Service) Handle(ctx context.Context, creds auth.Credentials, req Request) (Response, error) {
	identity, err := s.Authenticate(ctx, creds)
	if err != nil {
		return Response{}, err
	}

	message := strings.TrimSpace(req.Message)
	lessonID := strings.TrimSpace(req.LessonID)
	if message == "" || lessonID == "" {
		return Response{}, newError(KindInvalidRequest, "message and lessonId are required", nil)
	}
	mode, ok := persona.Parse(req.Mode)
	if !ok {
		return Response{}, newError(KindInvalidRequest, "unknown mode "+req.Mode, nil)
	}

	kind := ai.KindTurn
	if message == OpeningLineMarker {
		kind = ai.KindOpening
	}
	profile := policy.Resolve(identity.Tier)

	id := uuid.NewString()
	logger := s.logger.With(
		zap.String("turnId", id),
		zap.String("userId", identity.UserID),
		zap.String("deviceId", identity.DeviceID),
		zap.String("tier", identity.Tier.String()),
		zap.String("lessonId", lessonID),
		zap.Stringer("kind", kind),
	)

	if mode != persona.Default && !profile.CanSwitchPersona {
		logger.Info("persona switch not entitled, using default", zap.Stringer("requested", mode))
		mode = persona.Default
	}

	var (
		rawCount int
		reserved bool
	)
	if kind == ai.KindTurn {
		if !profile.CanChat {
			logger.Info("chat denied: preview only")
			return Response{}, &GatewayError{
				Kind:         KindPreviewOnly,
				Message:      "free conversation requires a higher membership",
				RequiredTier: policy.UpgradeForChat(),
			}
		}

		rawCount, reserved = s.reserve(ctx, identity.UserID, lessonID)
		if profile.Limited() && s.ledger.Effective(rawCount) > profile.DailyLimit {
			if reserved {
				s.release(ctx, identity.UserID, lessonID)
			}
			logger.Info("chat denied: quota exhausted", zap.Int("rawCount", rawCount))
			return Response{}, &GatewayError{
				Kind:         KindQuotaExceeded,
				Message:      "conversation limit reached for this lesson",
				RequiredTier: policy.UpgradeForUnlimited(),
			}
		}
	}

	lessonContent := s.lessonFor(ctx, lessonID, req.Lesson, logger)
	compressed := s.cache.Compress(lessonID, lessonContent.Transcript, s.cfg.ContextTarget)

	prompt := s.assembler.Assemble(ai.PromptRequest{
		Persona: mode,
		Lesson:  lessonContent,
		Context: compressed,
		History: req.History,
		Message: message,
		Kind:    kind,
	})

	genCtx, cancel := context.WithTimeout(ctx, s.cfg.GenerationTimeout)
	content, err := s.engine.Generate(genCtx, prompt)
	cancel()
	if err != nil {
		refund := reserved && s.cfg.ChargePolicy == ChargeAfterSuccess
		if refund {
			s.release(ctx, identity.UserID, lessonID)
		}
		logger.Error("generation failed", zap.Bool("refunded", refund), zap.Error(err))
		return Response{}, newError(KindUpstreamUnavailable, "the tutor is unavailable, please retry", err)
	}

	out, parseErr := ai.ParseOutput(content)
	fallback := false
	if parseErr != nil {
		logger.Warn("engine output rejected, using fallback reply",
			zap.Error(parseErr), zap.Int("contentLength", len(content)))
		out = ai.Fallback()
		fallback = true
	}

	remaining := policy.Unbounded
	if kind == ai.KindTurn {
		remaining = profile.Remaining(s.ledger.Effective(rawCount))
	} else if profile.Limited() {
		remaining = profile.DailyLimit
	}

	return Response{
		TurnID:           id,
		Persona:          mode,
		Reply:            out.Reply,
		ReplyTranslation: out.ReplyTranslation,
		UsedVocabulary:   out.UsedVocabulary,
		Correction:       out.Correction,
		RemainingChats:   remaining,
		Fallback:         fallback,
	}, nil
}

// Status reports quota usage of the caller for lessonID without mutating it.
func (s *Service) Status(ctx context.Context, creds auth.Credentials, lessonID string) (Status, error) {
	identity, err := s.Authenticate(ctx, creds)
	if err != nil {
		return Status{}, err
	}
	if strings.TrimSpace(lessonID) == "" {
		return Status{}, newError(KindInvalidRequest, "lessonId is required", nil)
	}

	profile := policy.Resolve(identity.Tier)
	used := 0
	if profile.CanChat {
		used = s.ledger.EffectiveCount(ctx, identity.UserID, lessonID)
	}
	return Status{
		Tier:           identity.Tier,
		DailyLimit:     profile.DailyLimit,
		Used:           used,
		RemainingChats: profile.Remaining(used),
	}, nil
}

// reserve records the turn up front and returns the resulting raw count.
// When the ledger cannot increment, the turn proceeds unreserved on top of
// the last readable count.
func (s *Service) reserve(ctx context.Context, userID, lessonID string) (int, bool) {
	raw, err := s.ledger.Increment(ctx, userID, lessonID)
	if err != nil {
		return s.ledger.GetCount(ctx, userID, lessonID) + 1, false
	}
	return raw, true
}

// release returns a reservation. It outlives a cancelled request so an
// abandoned turn is still refunded.
func (s *Service) release(ctx context.Context, userID, lessonID string) {
	_, _ = s.ledger.Release(context.WithoutCancel(ctx), userID, lessonID)
}

func (s *Service) lessonFor(ctx context.Context, lessonID string, supplied lesson.Lesson, logger *zap.Logger) lesson.Lesson {
	supplied.ID = lessonID
	if s.lessons == nil || supplied.Transcript != "" {
		return supplied
	}

	stored, err := s.lessons.Find(ctx, lessonID)
	if err != nil {
		if !errors.Is(err, lesson.ErrLessonNotFound) {
			logger.Warn("lesson lookup failed", zap.Error(err))
		}
		return supplied
	}
	return supplied.Merge(stored)
}
