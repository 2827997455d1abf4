// Command fake-inference answers POST /query the way the inference backend
// does, so chat-api can be exercised locally without a model server.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

type fakeConfig struct {
	Port    int           `env:"FAKE_INFERENCE_PORT" envDefault:"5000"`
	Latency time.Duration `env:"FAKE_INFERENCE_LATENCY" envDefault:"0s"`
}

type queryRequest struct {
	ModelName      string `json:"model_name" binding:"required"`
	Message        string `json:"message" binding:"required"`
	ConversationID string `json:"conversation_id" binding:"required"`
}

func main() {
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).
		With().Timestamp().Str("service", "fake-inference").Logger()

	var cfg fakeConfig
	if err := env.Parse(&cfg); err != nil {
		log.Fatal().Err(err).Msg("parse env config")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.POST("/query", queryHandler(cfg, log))

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: engine,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	log.Info().Str("addr", server.Addr).Msg("fake inference backend listening")
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Msg("fake inference backend stopped")
	}
}

func queryHandler(cfg fakeConfig, log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req queryRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		if cfg.Latency > 0 {
			select {
			case <-time.After(cfg.Latency):
			case <-c.Request.Context().Done():
				return
			}
		}

		log.Info().
			Str("model_name", req.ModelName).
			Str("conversation_id", req.ConversationID).
			Int("message_length", len(req.Message)).
			Msg("query")

		c.JSON(http.StatusOK, gin.H{
			"response": fmt.Sprintf("[%s] you said: %s", req.ModelName, req.Message),
		})
	}
}
