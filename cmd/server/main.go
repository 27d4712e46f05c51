package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"chatforge.io/ai-chat-backend/internal/api"
	"chatforge.io/ai-chat-backend/internal/config"
	"chatforge.io/ai-chat-backend/internal/core"
	"chatforge.io/ai-chat-backend/internal/llm"
	"chatforge.io/ai-chat-backend/internal/relay"
	"chatforge.io/ai-chat-backend/internal/store"
)

func main() {
	// Load configuration
	config.LoadConfig()

	// Setup logging
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	if config.AppConfig.LogLevel == "DEBUG" {
		log.Println("Service starting in DEBUG mode")
	}

	callTimeout := time.Duration(config.AppConfig.ExternalTimeout) * time.Second

	// Initialize database store
	dbStore, err := store.NewSQLiteStore(config.AppConfig.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer dbStore.Close()

	// Initialize inference gateway client
	llmClient := llm.NewClient(
		config.AppConfig.OpenAIAPIKey,
		config.AppConfig.OpenAIBaseURL,
		config.AppConfig.OpenAIModel,
		callTimeout,
	)

	// Initialize messaging service client (user directory + message relay)
	relayClient, err := relay.NewClient(
		config.AppConfig.StreamAPIKey,
		config.AppConfig.StreamAPISecret,
		config.AppConfig.StreamBaseURL,
		callTimeout,
	)
	if err != nil {
		log.Fatalf("Failed to initialize messaging client: %v", err)
	}

	// Initialize Chat service
	chatService := core.NewChatService(
		dbStore,
		relayClient,
		llmClient,
		relayClient,
		callTimeout,
		config.AppConfig.HistoryLimit,
	)

	// Initialize API Handler and Router
	apiHandler := api.NewAPIHandler(chatService)
	router := api.NewRouter(apiHandler)

	// Start HTTP server
	serverAddr := fmt.Sprintf(":%s", config.AppConfig.HTTPPort)

	srv := &http.Server{
		Addr:         serverAddr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second, // LLM calls can take time
		IdleTimeout:  120 * time.Second,
	}

	// Graceful shutdown handling
	go func() {
		log.Printf("Starting server on %s. Press Ctrl+C to quit.", serverAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Could not listen on %s: %v\n", serverAddr, err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	// Give active connections time to finish before forcing the shutdown.
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exiting gracefully")
}
