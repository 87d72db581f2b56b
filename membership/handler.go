package membership

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"membership-gateway/membership/domain"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

// TokenHeader carrega o token de acesso repassado para a API externa.
const TokenHeader = "vk_service_token"

// Checker é o que o handler precisa do cache de respostas.
type Checker interface {
	Check(ctx context.Context, q domain.MembershipQuery, accessToken string) (domain.MembershipResult, bool, error)
	InvalidateAll(ctx context.Context) error
}

type Handler struct {
	checker    Checker
	stats      domain.StatsStore
	validate   *validator.Validate
	logger     *zap.Logger
	adminCreds map[string]string
}

type HandlerOption func(*Handler)

// WithAdminCredentials habilita as rotas /admin atrás de basic auth.
// Sem credenciais as rotas não são montadas.
func WithAdminCredentials(user, password string) HandlerOption {
	return func(h *Handler) {
		if user != "" && password != "" {
			h.adminCreds = map[string]string{user: password}
		}
	}
}

// NewHandler cria o handler. stats pode ser nil.
func NewHandler(checker Checker, stats domain.StatsStore, logger *zap.Logger, opts ...HandlerOption) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &Handler{
		checker:  checker,
		stats:    stats,
		validate: newValidator(),
		logger:   logger,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

type checkResponse struct {
	LastName   string `json:"last_name"`
	FirstName  string `json:"first_name"`
	MiddleName string `json:"middle_name"`
	Member     bool   `json:"member"`
}

func newCheckResponse(r domain.MembershipResult) checkResponse {
	return checkResponse{
		LastName:   r.Profile.LastName,
		FirstName:  r.Profile.FirstName,
		MiddleName: r.Profile.Nickname,
		Member:     r.IsMember,
	}
}

func (h *Handler) handleCheck(w http.ResponseWriter, r *http.Request) {
	token := strings.TrimSpace(r.Header.Get(TokenHeader))
	if token == "" {
		h.respondText(w, http.StatusBadRequest, "missing required header "+TokenHeader)
		return
	}

	var req checkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondText(w, http.StatusBadRequest, "invalid json body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.respondText(w, http.StatusBadRequest, validationMessage(err))
		return
	}

	q := domain.MembershipQuery{UserID: req.UserID, GroupID: req.GroupID}.Normalize()
	res, cached, err := h.checker.Check(r.Context(), q, token)
	if cerr := r.Context().Err(); err != nil && cerr != nil && errors.Is(err, cerr) {
		// cliente desistiu: não há a quem responder nem o que contar
		h.logger.Debug("client gone before response",
			zap.String("key", q.Key()),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
		return
	}
	h.record(r.Context(), q, res, cached, err)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	h.respondJSON(w, r, http.StatusOK, newCheckResponse(res))
}

func (h *Handler) handleInvalidateCache(w http.ResponseWriter, r *http.Request) {
	if err := h.checker.InvalidateAll(r.Context()); err != nil {
		h.logger.Error("cache invalidation failed", zap.Error(err))
		h.respondText(w, http.StatusInternalServerError, "cache invalidation failed")
		return
	}
	h.logger.Info("cache invalidated", zap.String("request_id", middleware.GetReqID(r.Context())))
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleStats(w http.ResponseWriter, r *http.Request) {
	snap, ok := h.stats.(domain.StatsSnapshotter)
	if !ok {
		h.respondText(w, http.StatusNotFound, "stats snapshot not available")
		return
	}
	counters, err := snap.Snapshot(r.Context())
	if err != nil {
		h.logger.Error("stats snapshot failed", zap.Error(err))
		h.respondText(w, http.StatusInternalServerError, "stats snapshot failed")
		return
	}
	h.respondJSON(w, r, http.StatusOK, counters)
}

func (h *Handler) handleHealthCheck(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) record(ctx context.Context, q domain.MembershipQuery, res domain.MembershipResult, cached bool, err error) {
	if h.stats == nil {
		return
	}
	ev := domain.CheckEvent{
		Query:   q,
		Outcome: domain.OutcomeOf(res, err),
		Cached:  cached,
		At:      time.Now(),
	}
	if rerr := h.stats.Record(ctx, ev); rerr != nil {
		h.logger.Warn("stats record failed", zap.Error(rerr))
	}
}

// respondError mapeia o erro para status. Erros de domínio viram 404/400 com a
// mensagem no corpo; o resto é falha da API externa (502).
func (h *Handler) respondError(w http.ResponseWriter, r *http.Request, err error) {
	if de, ok := domain.AsError(err); ok {
		switch de.(type) {
		case *domain.UserNotFoundError:
			h.respondText(w, http.StatusNotFound, de.Error())
			return
		case *domain.InvalidParametersError:
			h.respondText(w, http.StatusBadRequest, de.Error())
			return
		}
	}

	h.logger.Error("upstream failure",
		zap.Error(err),
		zap.String("request_id", middleware.GetReqID(r.Context())),
	)
	h.respondText(w, http.StatusBadGateway, "bad gateway")
}

func (h *Handler) respondJSON(w http.ResponseWriter, r *http.Request, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write json response",
			zap.Error(err),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	}
}

func (h *Handler) respondText(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(msg))
}
