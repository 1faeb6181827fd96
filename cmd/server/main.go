package main

import (
	"log"
	"net/http"
	"os"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	"github.com/learnloop/backend/internal/analytics"
	"github.com/learnloop/backend/internal/auth"
	"github.com/learnloop/backend/internal/database"
	"github.com/learnloop/backend/internal/mastery"
	"github.com/learnloop/backend/internal/middleware"
	"github.com/learnloop/backend/internal/quizzes"
	"github.com/rs/cors"
)

func main() {
	// Optional .env for local development
	if err := godotenv.Load(); err != nil {
		log.Printf("No .env file loaded: %v", err)
	}

	// Initialize database
	db, err := database.Connect()
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	if err := database.Migrate(db); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	// Initialize services
	masteryService := mastery.NewService(mastery.NewStore(db))
	quizService := quizzes.NewService(quizzes.NewStore(db))
	quizService.SetCompletionHandler(masteryService)
	analyticsService := analytics.NewService(analytics.NewStore(db), masteryService)

	// Initialize handlers
	authHandler := auth.NewHandler(db)
	quizHandler := quizzes.NewHandler(quizService)
	masteryHandler := mastery.NewHandler(masteryService)
	analyticsHandler := analytics.NewHandler(analyticsService)

	// Setup router
	r := mux.NewRouter()
	api := r.PathPrefix("/api/v1").Subrouter()

	// Public routes
	api.HandleFunc("/auth/register", authHandler.Register).Methods("POST")
	api.HandleFunc("/auth/login", authHandler.Login).Methods("POST")

	// Protected routes
	protected := api.PathPrefix("").Subrouter()
	protected.Use(middleware.AuthMiddleware)
	protected.HandleFunc("/auth/me", authHandler.GetCurrentUser).Methods("GET")

	// Quiz bundles
	protected.HandleFunc("/quizzes", quizHandler.ImportQuiz).Methods("POST")
	protected.HandleFunc("/quizzes", quizHandler.ListQuizzes).Methods("GET")
	protected.HandleFunc("/quizzes/{id}", quizHandler.GetQuiz).Methods("GET")

	// Quiz sessions
	protected.HandleFunc("/sessions", quizHandler.StartSession).Methods("POST")
	protected.HandleFunc("/sessions/{id}/answers", quizHandler.SubmitAnswer).Methods("POST")
	protected.HandleFunc("/sessions/{id}/complete", quizHandler.CompleteSession).Methods("POST")
	protected.HandleFunc("/sessions/{id}/abandon", quizHandler.AbandonSession).Methods("POST")
	protected.HandleFunc("/sessions/{id}/results", quizHandler.GetResults).Methods("GET")

	// Mastery
	protected.HandleFunc("/mastery", masteryHandler.GetAllMastery).Methods("GET")
	protected.HandleFunc("/mastery/due", masteryHandler.GetDueTopics).Methods("GET")

	// Analytics
	protected.HandleFunc("/analytics/stats", analyticsHandler.GetOverallStats).Methods("GET")
	protected.HandleFunc("/analytics/topics", analyticsHandler.GetTopicPerformance).Methods("GET")
	protected.HandleFunc("/analytics/history", analyticsHandler.GetQuizHistory).Methods("GET")
	protected.HandleFunc("/analytics/recommendations", analyticsHandler.GetRecommendations).Methods("GET")

	// Health check
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	}).Methods("GET")

	// CORS
	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
	})

	handler := c.Handler(r)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	log.Printf("Server starting on :%s", port)
	if err := http.ListenAndServe(":"+port, handler); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}
