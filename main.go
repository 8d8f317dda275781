package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/owenfield/recall-api/config"
	"github.com/owenfield/recall-api/generation"
	"github.com/owenfield/recall-api/handlers"
	"github.com/owenfield/recall-api/jobs"
	"github.com/owenfield/recall-api/middleware"
	"github.com/owenfield/recall-api/session"
	"github.com/owenfield/recall-api/srs"
)

func init() {
	// Load .env file if not in production environment
	if os.Getenv("RAILWAY_ENVIRONMENT_NAME") == "" {
		err := godotenv.Load()
		if err != nil {
			log.Printf("Warning: .env file not found, environment variables might not be loaded: %v", err)
		}
	}
}

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	// Initialize database connection
	config.Connect()
	env := config.Env

	engine, err := srs.NewEngine(srs.Config{DesiredRetention: env.DesiredRetention})
	if err != nil {
		logger.Fatal("failed to build srs engine", zap.Error(err))
	}
	logger.Info("memory engine ready", zap.String("parameterSet", engine.ParameterSet()))

	sessions := session.NewService(config.Database, engine, env.GoodResponseMs)
	queue := jobs.NewQueue(config.Database, env.JobMaxAttempts)

	var generator generation.Generator
	if env.GeneratorURL != "" {
		generator = generation.NewHTTPGenerator(env.GeneratorURL)
	}
	var similarity generation.SimilarityChecker
	if env.SimilarityURL != "" {
		similarity = generation.NewHTTPSimilarityChecker(env.SimilarityURL)
	}

	// Handler map is explicit and fixed at startup: a job type without an
	// entry here fails deterministically through the queue, it never crashes
	// the dispatcher.
	handlerMap := map[string]jobs.Handler{}
	if generator != nil {
		handlerMap[jobs.TypeCardGeneration] = &jobs.CardGenerationHandler{
			Sessions:   sessions,
			Queue:      queue,
			Generator:  generator,
			Similarity: similarity,
			Logger:     logger,
		}
		handlerMap[jobs.TypeDistractorGeneration] = &jobs.DistractorGenerationHandler{
			Sessions:  sessions,
			Generator: generator,
		}
	} else {
		logger.Warn("GENERATOR_URL not set; generation jobs will fail and retry")
	}

	dispatcher := jobs.NewDispatcher(queue, handlerMap, logger, jobs.Options{
		BatchSize:    env.JobBatchSize,
		PollInterval: env.JobPollInterval,
		StaleAfter:   env.JobStaleAfter,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	dispatcher.Start(ctx)

	DBHandler := &handlers.DBHandler{
		DB:         config.Database,
		Sessions:   sessions,
		Queue:      queue,
		Dispatcher: dispatcher,
	}
	withUser := func(h http.HandlerFunc) http.HandlerFunc {
		return middleware.SyncUserMiddleware(config.Database, logger, h)
	}
	mux := http.NewServeMux()

	// Deck
	mux.HandleFunc("POST /api/decks", withUser(DBHandler.CreateDeck))
	mux.HandleFunc("GET /api/decks", withUser(DBHandler.GetDecksForUser))
	mux.HandleFunc("GET /api/decks/{deckID}", withUser(DBHandler.GetDeckByID))
	mux.HandleFunc("DELETE /api/decks/{deckID}", withUser(DBHandler.DeleteDeckByID))
	mux.HandleFunc("GET /api/decks/{deckID}/summary", withUser(DBHandler.GetDeckSummary))

	// Item
	mux.HandleFunc("POST /api/decks/{deckID}/items", withUser(DBHandler.CreateItem))
	mux.HandleFunc("GET /api/decks/{deckID}/items", withUser(DBHandler.GetItemsForDeck))
	mux.HandleFunc("PUT /api/decks/{deckID}/items/{itemID}", withUser(DBHandler.AddItemToDeck))
	mux.HandleFunc("DELETE /api/decks/{deckID}/items/{itemID}", withUser(DBHandler.RemoveItemFromDeck))
	mux.HandleFunc("GET /api/items/{itemID}", withUser(DBHandler.GetItemByID))
	mux.HandleFunc("DELETE /api/items/{itemID}", withUser(DBHandler.DeleteItemByID))
	mux.HandleFunc("GET /api/items/{itemID}/history", withUser(DBHandler.GetItemHistory))
	mux.HandleFunc("GET /api/items/{itemID}/preview", withUser(DBHandler.PreviewItem))

	// Session
	mux.HandleFunc("POST /api/decks/{deckID}/session", withUser(DBHandler.StartSession))
	mux.HandleFunc("POST /api/decks/{deckID}/session/changes", withUser(DBHandler.DetectChanges))
	mux.HandleFunc("POST /api/items/{itemID}/rate", withUser(DBHandler.RateItem))

	// Jobs
	mux.HandleFunc("POST /api/jobs/generate", withUser(DBHandler.CreateGenerationJob))
	mux.HandleFunc("GET /api/jobs/{jobID}", withUser(DBHandler.GetJobByID))

	// Configure CORS with specific options
	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   []string{"http://localhost:3000"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization", "X-Requested-With", "Accept", "Origin"},
		AllowCredentials: true,
		MaxAge:           86400,
	}).Handler(mux)

	serverAddr := "0.0.0.0:" + env.Port
	server := &http.Server{Addr: serverAddr, Handler: middleware.RequestLogger(logger, corsHandler)}

	go func() {
		logger.Info("listening", zap.String("addr", serverAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	// Graceful shutdown: stop taking requests, then drain the dispatcher.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown failed", zap.Error(err))
	}
	dispatcher.Stop()
}
