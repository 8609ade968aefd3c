package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/safetylearn/safetylearn-web/internal/auth"
	"github.com/safetylearn/safetylearn-web/internal/lessons"
	"github.com/safetylearn/safetylearn-web/internal/llm"
	"github.com/safetylearn/safetylearn-web/internal/logger"
	"github.com/safetylearn/safetylearn-web/internal/models"
	"github.com/safetylearn/safetylearn-web/internal/services"
	"github.com/safetylearn/safetylearn-web/internal/session"
	"github.com/safetylearn/safetylearn-web/internal/video"
	"github.com/safetylearn/safetylearn-web/internal/websocket"
)

type Handler struct {
	registry     *auth.Registry
	achievements *services.AchievementService
	chat         *llm.Chat
	video        *video.Client
	hub          *websocket.Hub
	logger       *logger.Log
}

func NewHandler(registry *auth.Registry, achievements *services.AchievementService, chat *llm.Chat, videoClient *video.Client, hub *websocket.Hub) *Handler {
	return &Handler{
		registry:     registry,
		achievements: achievements,
		chat:         chat,
		video:        videoClient,
		hub:          hub,
		logger:       logger.New(),
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// POST /api/v1/auth/signup - Create an account and sign in
func (h *Handler) SignUp(w http.ResponseWriter, r *http.Request) {
	manager := auth.ManagerFromContext(r.Context())

	var req models.SignUpRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "Email and password are required")
		return
	}
	if len(req.Password) < 6 {
		writeError(w, http.StatusBadRequest, "Password must be at least 6 characters long.")
		return
	}
	if req.Age < 5 || req.Age > 19 {
		writeError(w, http.StatusBadRequest, "Age must be between 5 and 19")
		return
	}

	result := manager.SignUp(r.Context(), req)
	if result.Error != "" {
		writeError(w, http.StatusBadRequest, result.Error)
		return
	}

	if err := h.registry.SaveToken(w, r, manager); err != nil {
		h.logger.WithError(err).Error("failed to persist session token")
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{"user": result.User})
}

// POST /api/v1/auth/signin - Sign in with email and password
func (h *Handler) SignIn(w http.ResponseWriter, r *http.Request) {
	manager := auth.ManagerFromContext(r.Context())

	var req models.SignInRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "Email and password are required")
		return
	}

	result := manager.SignIn(r.Context(), req.Email, req.Password)
	if result.Error != "" {
		writeError(w, http.StatusUnauthorized, result.Error)
		return
	}

	if err := h.registry.SaveToken(w, r, manager); err != nil {
		h.logger.WithError(err).Error("failed to persist session token")
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"user": result.User})
}

// POST /api/v1/auth/signout - Revoke the current credential
func (h *Handler) SignOut(w http.ResponseWriter, r *http.Request) {
	manager := auth.ManagerFromContext(r.Context())

	if msg := manager.SignOut(r.Context()); msg != "" {
		h.logger.Warnf("sign out reported: %s", msg)
	}

	if err := h.registry.SaveToken(w, r, manager); err != nil {
		h.logger.WithError(err).Error("failed to clear session token")
	}
	h.registry.Evict(r)
	w.WriteHeader(http.StatusNoContent)
}

// GET /api/v1/me - Get the current assembled user, null when signed out
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	manager := auth.ManagerFromContext(r.Context())
	user := manager.CurrentUser(r.Context())
	writeJSON(w, http.StatusOK, map[string]interface{}{"user": user})
}

// PUT /api/v1/profile - Update profile fields for the current user
func (h *Handler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	manager := auth.ManagerFromContext(r.Context())

	var update models.ProfileUpdate
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if update.Age != nil && (*update.Age < 5 || *update.Age > 19) {
		writeError(w, http.StatusBadRequest, "Age must be between 5 and 19")
		return
	}
	if update.AgeGroup != nil && !update.AgeGroup.IsValid() {
		writeError(w, http.StatusBadRequest, "Unknown age group")
		return
	}

	if err := manager.UpdateProfile(r.Context(), update); err != nil {
		if errors.Is(err, session.ErrNotAuthenticated) {
			writeError(w, http.StatusUnauthorized, "Authentication required")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to update profile")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"user": manager.CurrentUser(r.Context())})
}

// GET /api/v1/lessons - List lessons, scoped to the signed-in user's bucket
func (h *Handler) ListLessons(w http.ResponseWriter, r *http.Request) {
	manager := auth.ManagerFromContext(r.Context())

	if group := models.AgeGroup(r.URL.Query().Get("age_group")); group.IsValid() {
		writeJSON(w, http.StatusOK, map[string]interface{}{"lessons": lessons.ForAgeGroup(group)})
		return
	}

	if user := manager.CurrentUser(r.Context()); user != nil {
		writeJSON(w, http.StatusOK, map[string]interface{}{"lessons": lessons.ForAgeGroup(user.AgeGroup)})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"lessons": lessons.All()})
}

// GET /api/v1/lessons/{id} - Get one lesson
func (h *Handler) GetLesson(w http.ResponseWriter, r *http.Request) {
	lesson, ok := lessons.ByID(mux.Vars(r)["id"])
	if !ok {
		writeError(w, http.StatusNotFound, "Lesson not found")
		return
	}
	writeJSON(w, http.StatusOK, lesson)
}

// POST /api/v1/lessons/{id}/complete - Record a lesson completion
func (h *Handler) CompleteLesson(w http.ResponseWriter, r *http.Request) {
	manager := auth.ManagerFromContext(r.Context())

	lessonID := mux.Vars(r)["id"]
	if _, ok := lessons.ByID(lessonID); !ok {
		writeError(w, http.StatusNotFound, "Lesson not found")
		return
	}

	if err := manager.CompleteLesson(r.Context(), lessonID); err != nil {
		if errors.Is(err, session.ErrNotAuthenticated) {
			writeError(w, http.StatusUnauthorized, "Authentication required")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to record lesson completion")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"user": manager.CurrentUser(r.Context())})
}

// GET /api/v1/achievements - List the achievement catalog
func (h *Handler) ListAchievements(w http.ResponseWriter, r *http.Request) {
	catalog, err := h.achievements.Catalog(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load achievements")
		return
	}

	list := make([]models.Achievement, 0, len(catalog))
	for _, achievement := range catalog {
		list = append(list, achievement)
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"achievements": list})
}

type chatRequest struct {
	Message string        `json:"message"`
	History []llm.Message `json:"history"`
}

// POST /api/v1/chat - Age-appropriate safety chat
func (h *Handler) Chat(w http.ResponseWriter, r *http.Request) {
	manager := auth.ManagerFromContext(r.Context())

	if h.chat == nil {
		writeError(w, http.StatusServiceUnavailable, "Chat is not configured")
		return
	}

	user := manager.CurrentUser(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Message == "" {
		writeError(w, http.StatusBadRequest, "Message is required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 60*time.Second)
	defer cancel()

	reply, err := h.chat.Respond(ctx, user.Age, req.History, req.Message)
	if err != nil {
		h.logger.WithError(err).Error("chat generation failed")
		writeError(w, http.StatusInternalServerError, "Failed to generate a response")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"reply": reply})
}

// POST /api/v1/video/conversations - Start a personalized video conversation
func (h *Handler) CreateVideoConversation(w http.ResponseWriter, r *http.Request) {
	manager := auth.ManagerFromContext(r.Context())

	if h.video == nil {
		writeError(w, http.StatusServiceUnavailable, "Video conversations are not configured")
		return
	}

	user := manager.CurrentUser(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	var req video.ConversationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	req.UserName = user.Name
	req.UserAge = user.Age

	conversation, err := h.video.CreateConversation(r.Context(), req)
	if err != nil {
		h.logger.WithError(err).Error("video conversation failed")
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, conversation)
}

// GET /ws - Progress event stream for the signed-in user
func (h *Handler) ServeWS(w http.ResponseWriter, r *http.Request) {
	manager := auth.ManagerFromContext(r.Context())

	user := manager.CurrentUser(r.Context())
	if user == nil {
		http.Error(w, "Authentication required", http.StatusUnauthorized)
		return
	}

	h.hub.ServeWS(w, r, user.ID)
}

func RegisterRoutes(r *mux.Router, h *Handler) {
	r.HandleFunc("/auth/signup", h.SignUp).Methods("POST")
	r.HandleFunc("/auth/signin", h.SignIn).Methods("POST")
	r.HandleFunc("/auth/signout", h.SignOut).Methods("POST")

	r.HandleFunc("/me", h.Me).Methods("GET")
	r.HandleFunc("/profile", h.UpdateProfile).Methods("PUT")

	r.HandleFunc("/lessons", h.ListLessons).Methods("GET")
	r.HandleFunc("/lessons/{id}", h.GetLesson).Methods("GET")
	r.HandleFunc("/lessons/{id}/complete", h.CompleteLesson).Methods("POST")

	r.HandleFunc("/achievements", h.ListAchievements).Methods("GET")

	r.HandleFunc("/chat", h.Chat).Methods("POST")
	r.HandleFunc("/video/conversations", h.CreateVideoConversation).Methods("POST")
}
