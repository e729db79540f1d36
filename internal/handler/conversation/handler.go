package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/zhouzirui/lingo-chat/backend/internal/auth"
	"github.com/zhouzirui/lingo-chat/backend/internal/model/chat"
	"github.com/zhouzirui/lingo-chat/backend/internal/model/lesson"
	"github.com/zhouzirui/lingo-chat/backend/internal/model/membership"
	"github.com/zhouzirui/lingo-chat/backend/internal/policy"
	conversationService "github.com/zhouzirui/lingo-chat/backend/internal/service/conversation"
	"github.com/zhouzirui/lingo-chat/backend/pkg/utils"
)

const maxBodyBytes = 1 << 20

// Service is the orchestrator behind the endpoints.
type Service interface {
	Authenticate(ctx context.Context, creds auth.Credentials) (membership.Identity, error)
	Handle(ctx context.Context, creds auth.Credentials, req conversationService.Request) (conversationService.Response, error)
	Status(ctx context.Context, creds auth.Credentials, lessonID string) (conversationService.Status, error)
}

// Handler 对话网关的HTTP处理器
type Handler struct {
	svc        Service
	cookieName string
	logger     *zap.Logger
}

// New 创建对话处理器
func New(svc Service, cookieName string, logger *zap.Logger) *Handler {
	if cookieName == "" {
		cookieName = auth.DefaultCookieName
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{svc: svc, cookieName: cookieName, logger: logger.Named("http")}
}

// RegisterRoutes 注册对话相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/chat", h.handleChat)
	r.Get("/quota/{lessonID}", h.handleQuota)
}

type videoContext struct {
	Title      string                  `json:"title"`
	TitleCn    string                  `json:"titleCn"`
	Transcript string                  `json:"transcript"`
	Vocabulary []lesson.VocabularyItem `json:"vocabulary"`
}

type chatRequest struct {
	Message             string       `json:"message"`
	Mode                string       `json:"mode"`
	LessonID            string       `json:"lessonId"`
	VideoContext        videoContext `json:"videoContext"`
	ConversationHistory []chat.Turn  `json:"conversationHistory"`
}

type chatResponse struct {
	Success        bool     `json:"success"`
	TurnID         string   `json:"turnId"`
	Persona        string   `json:"persona"`
	UsedVocab      []string `json:"used_vocab"`
	Reply          string   `json:"reply"`
	ReplyCn        string   `json:"replyCn"`
	Correction     *string  `json:"correction"`
	RemainingChats *int     `json:"remainingChats"`
}

type quotaResponse struct {
	Success        bool   `json:"success"`
	Tier           string `json:"tier"`
	DailyLimit     *int   `json:"dailyLimit"`
	Used           int    `json:"used"`
	RemainingChats *int   `json:"remainingChats"`
}

// handleChat 处理一轮对话
func (h *Handler) handleChat(w http.ResponseWriter, r *http.Request) {
	creds := auth.CredentialsFromRequest(r, h.cookieName)

	var body chatRequest
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := decoder.Decode(&body); err != nil {
		// 未登录优先于请求体错误
		if _, authErr := h.svc.Authenticate(r.Context(), creds); authErr != nil {
			h.respondFailure(w, authErr)
			return
		}
		utils.RespondError(w, http.StatusBadRequest, conversationService.KindInvalidRequest.Code(), "invalid request body")
		return
	}

	resp, err := h.svc.Handle(r.Context(), creds, conversationService.Request{
		Message:  body.Message,
		Mode:     body.Mode,
		LessonID: body.LessonID,
		Lesson: lesson.Lesson{
			Title:      body.VideoContext.Title,
			TitleCn:    body.VideoContext.TitleCn,
			Transcript: body.VideoContext.Transcript,
			Vocabulary: body.VideoContext.Vocabulary,
		},
		History: body.ConversationHistory,
	})
	if err != nil {
		h.respondFailure(w, err)
		return
	}

	used := resp.UsedVocabulary
	if used == nil {
		used = []string{}
	}
	utils.RespondJSON(w, http.StatusOK, chatResponse{
		Success:        true,
		TurnID:         resp.TurnID,
		Persona:        resp.Persona.String(),
		UsedVocab:      used,
		Reply:          resp.Reply,
		ReplyCn:        resp.ReplyTranslation,
		Correction:     resp.Correction,
		RemainingChats: bounded(resp.RemainingChats),
	})
}

// handleQuota 查询当前用户在某课程上的配额
func (h *Handler) handleQuota(w http.ResponseWriter, r *http.Request) {
	creds := auth.CredentialsFromRequest(r, h.cookieName)
	status, err := h.svc.Status(r.Context(), creds, chi.URLParam(r, "lessonID"))
	if err != nil {
		h.respondFailure(w, err)
		return
	}

	utils.RespondJSON(w, http.StatusOK, quotaResponse{
		Success:        true,
		Tier:           status.Tier.String(),
		DailyLimit:     bounded(status.DailyLimit),
		Used:           status.Used,
		RemainingChats: bounded(status.RemainingChats),
	})
}

func (h *Handler) respondFailure(w http.ResponseWriter, err error) {
	var gwErr *conversationService.GatewayError
	if !errors.As(err, &gwErr) {
		h.logger.Error("unclassified conversation failure", zap.Error(err))
		utils.RespondError(w, http.StatusInternalServerError, conversationService.KindUpstreamUnavailable.Code(), "internal error")
		return
	}

	body := utils.ErrorBody{Error: gwErr.Kind.Code(), Message: gwErr.Message}
	if gwErr.RequiredTier.Valid() {
		body.RequiredTier = gwErr.RequiredTier.String()
	}
	utils.RespondJSON(w, statusFor(gwErr.Kind), body)
}

func statusFor(kind conversationService.Kind) int {
	switch kind {
	case conversationService.KindUnauthenticated:
		return http.StatusUnauthorized
	case conversationService.KindPreviewOnly:
		return http.StatusForbidden
	case conversationService.KindQuotaExceeded:
		return http.StatusTooManyRequests
	case conversationService.KindUpstreamUnavailable:
		return http.StatusBadGateway
	case conversationService.KindInvalidRequest:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// bounded encodes policy.Unbounded as null.
func bounded(n int) *int {
	if n == policy.Unbounded {
		return nil
	}
	return &n
}
