package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"github.com/safetylearn/safetylearn-web/config"
	"github.com/safetylearn/safetylearn-web/internal/api"
	"github.com/safetylearn/safetylearn-web/internal/auth"
	"github.com/safetylearn/safetylearn-web/internal/database"
	"github.com/safetylearn/safetylearn-web/internal/identity"
	"github.com/safetylearn/safetylearn-web/internal/llm"
	"github.com/safetylearn/safetylearn-web/internal/logger"
	"github.com/safetylearn/safetylearn-web/internal/services"
	"github.com/safetylearn/safetylearn-web/internal/stores"
	"github.com/safetylearn/safetylearn-web/internal/tts"
	"github.com/safetylearn/safetylearn-web/internal/video"
	"github.com/safetylearn/safetylearn-web/internal/websocket"
)

func main() {
	l := logger.New()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	db, err := database.NewDB(cfg.Database.Path)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	// Stores and services
	profileStore := stores.NewProfileStore(db)
	progressStore := stores.NewProgressStore(db)
	achievementStore := stores.NewAchievementStore(db)

	hub := websocket.NewHub()
	go hub.Run()

	achievementService := services.NewAchievementService(achievementStore, hub)
	if err := achievementService.SeedDefaults(context.Background()); err != nil {
		log.Fatalf("Failed to seed achievements: %v", err)
	}
	userService := services.NewUserService(profileStore, progressStore, achievementService, hub)

	// Identity provider and per-session managers
	provider := identity.NewLocalProvider(db, cfg.Auth.JWTSecret, time.Duration(cfg.Auth.TokenTTL)*time.Minute, cfg.Auth.RequireConfirm)
	registry := auth.NewRegistry(cfg.Auth.SessionSecret, provider, userService)

	// AI chat
	llmClient, err := llm.NewLLMClient(cfg)
	if err != nil {
		log.Fatalf("Failed to create LLM client: %v", err)
	}
	if err := llmClient.IsModelAvailable(context.Background()); err != nil {
		l.WithError(err).Warn("LLM model not available, chat may fail")
	}
	chat := llm.NewChat(llmClient)

	// Video conversations are optional; skip when unconfigured.
	var videoClient *video.Client
	if cfg.Tavus.APIKey != "" {
		videoClient, err = video.NewClient(&cfg.Tavus)
		if err != nil {
			l.WithError(err).Warn("Video conversations disabled")
			videoClient = nil
		}
	}

	// TTS is optional too.
	ttsClient, err := tts.NewTts(&cfg.Tts)
	if err != nil {
		l.WithError(err).Warn("TTS disabled")
		ttsClient = tts.NewDummyTts()
	}

	r := mux.NewRouter()
	r.Use(registry.Middleware)

	handler := api.NewHandler(registry, achievementService, chat, videoClient, hub)

	apiRouter := r.PathPrefix("/api/v1").Subrouter()
	api.RegisterRoutes(apiRouter, handler)
	api.RegisterTTSRoutes(apiRouter, ttsClient)

	r.HandleFunc("/ws", handler.ServeWS)

	// Static frontend
	r.PathPrefix("/static/").Handler(http.StripPrefix("/static/", http.FileServer(http.Dir("./web/static/"))))
	r.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.ServeFile(w, r, "./web/templates/index.html")
	}).Methods("GET")

	// CORS setup for development
	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"http://localhost:3000", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	l.Infof("SafetyLearn server starting on port %s", port)
	l.Infof("Database: %s", cfg.Database.Path)

	if err := http.ListenAndServe(":"+port, c.Handler(r)); err != nil {
		log.Fatal("Failed to start server:", err)
	}
}
