package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/RichardoC/aether-chat/internal/auth"
	"github.com/RichardoC/aether-chat/internal/chat"
	"github.com/RichardoC/aether-chat/internal/countries"
	"github.com/RichardoC/aether-chat/internal/hub"
	"github.com/RichardoC/aether-chat/internal/logging"
	"github.com/RichardoC/aether-chat/internal/metrics"
	"github.com/RichardoC/aether-chat/internal/models"
	"github.com/RichardoC/aether-chat/internal/store"
)

type Handler struct {
	auth      *auth.Service
	chat      *chat.Service
	registry  *store.Registry
	countries *countries.Client
	hub       *hub.Hub
	logger    *zap.Logger
}

func NewHandler(
	authService *auth.Service,
	chatService *chat.Service,
	registry *store.Registry,
	countryClient *countries.Client,
	eventHub *hub.Hub,
	logger *zap.Logger,
) *Handler {
	return &Handler{
		auth:      authService,
		chat:      chatService,
		registry:  registry,
		countries: countryClient,
		hub:       eventHub,
		logger:    logger,
	}
}

// Routes builds the router. Everything except login, countries,
// suggestions, health and metrics requires a session token.
func (h *Handler) Routes() http.Handler {
	r := mux.NewRouter()
	r.Use(logging.Middleware(h.logger))

	r.HandleFunc("/healthz", h.Healthz).Methods(http.MethodGet)
	r.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)

	public := r.PathPrefix("/api").Subrouter()
	public.HandleFunc("/auth/otp", h.RequestOTP).Methods(http.MethodPost)
	public.HandleFunc("/auth/verify", h.VerifyOTP).Methods(http.MethodPost)
	public.HandleFunc("/countries", h.GetCountries).Methods(http.MethodGet)
	public.HandleFunc("/suggestions", h.GetSuggestions).Methods(http.MethodGet)

	private := r.PathPrefix("/api").Subrouter()
	private.Use(h.auth.Middleware)
	private.HandleFunc("/auth/logout", h.Logout).Methods(http.MethodPost)
	private.HandleFunc("/me", h.Me).Methods(http.MethodGet)
	private.HandleFunc("/state", h.GetState).Methods(http.MethodGet)
	private.HandleFunc("/chatrooms", h.ListChatrooms).Methods(http.MethodGet)
	private.HandleFunc("/chatrooms", h.CreateChatroom).Methods(http.MethodPost)
	private.HandleFunc("/chatrooms/active", h.GetActiveChatroom).Methods(http.MethodGet)
	private.HandleFunc("/chatrooms/active", h.SetActiveChatroom).Methods(http.MethodPut)
	private.HandleFunc("/chatrooms/{id}", h.DeleteChatroom).Methods(http.MethodDelete)
	private.HandleFunc("/chatrooms/{id}/messages", h.GetMessages).Methods(http.MethodGet)
	private.HandleFunc("/chatrooms/{id}/messages", h.SendMessage).Methods(http.MethodPost)
	private.HandleFunc("/chatrooms/{id}/suggestions", h.SendSuggestion).Methods(http.MethodPost)
	private.HandleFunc("/theme", h.GetTheme).Methods(http.MethodGet)
	private.HandleFunc("/theme/toggle", h.ToggleTheme).Methods(http.MethodPost)

	r.Handle("/ws", h.auth.Middleware(http.HandlerFunc(h.ServeWS))).Methods(http.MethodGet)

	// subrouters only answer 405 when they carry their own handler
	notAllowed := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed", "")
	})
	r.MethodNotAllowedHandler = notAllowed
	public.MethodNotAllowedHandler = notAllowed
	private.MethodNotAllowedHandler = notAllowed
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "not found", "")
	})
	return r
}

type errorResponse struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg, field string) {
	writeJSON(w, status, errorResponse{Error: msg, Field: field})
}

func decode(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// fail maps a service error to its status code. Unexpected errors are
// logged and hidden behind a generic message.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	var verr *auth.ValidationError
	switch {
	case errors.As(err, &verr):
		writeError(w, http.StatusBadRequest, verr.Message, verr.Field)
	case errors.Is(err, store.ErrEmptyTitle):
		writeError(w, http.StatusBadRequest, err.Error(), "title")
	case errors.Is(err, store.ErrInvalidRole),
		errors.Is(err, chat.ErrEmptyMessage):
		writeError(w, http.StatusBadRequest, err.Error(), "content")
	case errors.Is(err, chat.ErrInvalidImage):
		writeError(w, http.StatusBadRequest, err.Error(), "image")
	case errors.Is(err, store.ErrChatroomNotFound),
		errors.Is(err, auth.ErrChallengeNotFound):
		writeError(w, http.StatusNotFound, err.Error(), "")
	case errors.Is(err, auth.ErrTooManyRequests):
		writeError(w, http.StatusTooManyRequests, err.Error(), "")
	case errors.Is(err, context.Canceled):
		writeError(w, 499, "request canceled", "")
	default:
		h.logger.Error("request failed",
			zap.Error(err),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path))
		writeError(w, http.StatusInternalServerError, "internal server error", "")
	}
}

func claims(r *http.Request) *auth.Claims {
	c, _ := auth.ClaimsFromContext(r.Context())
	return c
}

func (h *Handler) userState(w http.ResponseWriter, r *http.Request) (*store.UserState, bool) {
	us, err := h.registry.For(r.Context(), claims(r).UserID)
	if err != nil {
		h.fail(w, r, err)
		return nil, false
	}
	return us, true
}

func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type requestOTPRequest struct {
	CountryCode string `json:"countryCode"`
	Phone       string `json:"phone"`
}

type requestOTPResponse struct {
	*auth.Challenge
	Notice      string `json:"notice"`
	Description string `json:"description"`
}

func (h *Handler) RequestOTP(w http.ResponseWriter, r *http.Request) {
	var req requestOTPRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", "")
		return
	}

	ch, err := h.auth.RequestOTP(r.Context(), strings.TrimSpace(req.CountryCode), strings.TrimSpace(req.Phone))
	if err != nil {
		h.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, requestOTPResponse{
		Challenge:   ch,
		Notice:      "OTP sent successfully! Check your phone.",
		Description: "Enter the 6-digit code to continue",
	})
}

type verifyOTPRequest struct {
	ChallengeID string `json:"challengeId"`
	OTP         string `json:"otp"`
}

type verifyOTPResponse struct {
	*auth.Session
	Notice string `json:"notice"`
}

func (h *Handler) VerifyOTP(w http.ResponseWriter, r *http.Request) {
	var req verifyOTPRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", "")
		return
	}

	sess, err := h.auth.VerifyOTP(r.Context(), req.ChallengeID, strings.TrimSpace(req.OTP))
	if err != nil {
		h.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, verifyOTPResponse{Session: sess, Notice: "Welcome! Login successful."})
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.auth.Logout(r.Context(), claims(r)); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"notice": "Logged out successfully"})
}

func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	us, ok := h.userState(w, r)
	if !ok {
		return
	}
	user := us.Auth.User()
	if user == nil {
		c := claims(r).User()
		user = &c
	}
	writeJSON(w, http.StatusOK, user)
}

func (h *Handler) GetCountries(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.countries.List(r.Context()))
}

func (h *Handler) GetSuggestions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]string{"suggestions": chat.Suggestions()})
}

type stateResponse struct {
	Chatrooms        []*models.Chatroom `json:"chatrooms"`
	ActiveChatroomID *string            `json:"activeChatroomId"`
	IsTyping         bool               `json:"isTyping"`
}

func (h *Handler) GetState(w http.ResponseWriter, r *http.Request) {
	us, ok := h.userState(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, stateResponse{
		Chatrooms:        us.Chat.Chatrooms(),
		ActiveChatroomID: us.Chat.ActiveChatroomID(),
		IsTyping:         us.Chat.IsTyping(),
	})
}

// chatroomSummary is the dashboard row: the message list is reduced to a
// count.
type chatroomSummary struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	CreatedAt    time.Time `json:"createdAt"`
	MessageCount int       `json:"messageCount"`
}

func (h *Handler) ListChatrooms(w http.ResponseWriter, r *http.Request) {
	us, ok := h.userState(w, r)
	if !ok {
		return
	}

	rooms := us.Chat.Search(r.URL.Query().Get("q"))
	out := make([]chatroomSummary, 0, len(rooms))
	for _, room := range rooms {
		out = append(out, chatroomSummary{
			ID:           room.ID,
			Title:        room.Title,
			CreatedAt:    room.CreatedAt,
			MessageCount: len(room.Messages),
		})
	}

	h.logger.Debug("listed chatrooms",
		zap.Int("count", len(out)),
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path))

	writeJSON(w, http.StatusOK, out)
}

type createChatroomRequest struct {
	Title string `json:"title"`
}

type chatroomResponse struct {
	Chatroom *models.Chatroom `json:"chatroom"`
	Notice   string           `json:"notice,omitempty"`
}

func (h *Handler) CreateChatroom(w http.ResponseWriter, r *http.Request) {
	var req createChatroomRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", "")
		return
	}

	room, err := h.chat.CreateChatroom(r.Context(), claims(r).UserID, req.Title)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, chatroomResponse{Chatroom: room, Notice: "Chatroom created!"})
}

func (h *Handler) DeleteChatroom(w http.ResponseWriter, r *http.Request) {
	title, err := h.chat.DeleteChatroom(r.Context(), claims(r).UserID, mux.Vars(r)["id"])
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"notice": `Deleted "` + title + `"`})
}

func (h *Handler) GetActiveChatroom(w http.ResponseWriter, r *http.Request) {
	us, ok := h.userState(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, chatroomResponse{Chatroom: us.Chat.ActiveChatroom()})
}

type setActiveRequest struct {
	ID *string `json:"id"`
}

func (h *Handler) SetActiveChatroom(w http.ResponseWriter, r *http.Request) {
	var req setActiveRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", "")
		return
	}

	us, ok := h.userState(w, r)
	if !ok {
		return
	}
	if err := us.Chat.SetActiveChatroom(r.Context(), req.ID); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, chatroomResponse{Chatroom: us.Chat.ActiveChatroom()})
}

func (h *Handler) GetMessages(w http.ResponseWriter, r *http.Request) {
	us, ok := h.userState(w, r)
	if !ok {
		return
	}
	room, err := us.Chat.Chatroom(mux.Vars(r)["id"])
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, room.Messages)
}

type sendMessageRequest struct {
	Content string `json:"content"`
	Image   string `json:"image,omitempty"`
}

type messageResponse struct {
	Message *models.Message `json:"message"`
	Notice  string          `json:"notice"`
}

func (h *Handler) SendMessage(w http.ResponseWriter, r *http.Request) {
	var req sendMessageRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", "")
		return
	}

	msg, err := h.chat.SendMessage(r.Context(), chat.SendMessageInput{
		UserID:     claims(r).UserID,
		ChatroomID: mux.Vars(r)["id"],
		Content:    req.Content,
		Image:      req.Image,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, messageResponse{Message: msg, Notice: "Message sent"})
}

type sendSuggestionRequest struct {
	Suggestion string `json:"suggestion"`
}

func (h *Handler) SendSuggestion(w http.ResponseWriter, r *http.Request) {
	var req sendSuggestionRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", "")
		return
	}

	msg, err := h.chat.SendSuggestion(r.Context(), claims(r).UserID, mux.Vars(r)["id"], req.Suggestion)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, messageResponse{Message: msg, Notice: "Message sent"})
}

func (h *Handler) GetTheme(w http.ResponseWriter, r *http.Request) {
	us, ok := h.userState(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, models.Theme{IsDark: us.Theme.IsDark()})
}

func (h *Handler) ToggleTheme(w http.ResponseWriter, r *http.Request) {
	us, ok := h.userState(w, r)
	if !ok {
		return
	}
	isDark, err := us.Theme.Toggle(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, models.Theme{IsDark: isDark})
}

func (h *Handler) ServeWS(w http.ResponseWriter, r *http.Request) {
	h.hub.Serve(w, r, claims(r).UserID)
}
