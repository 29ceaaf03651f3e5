package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	router "github.com/ovrk/babel/internal/adapters/http"
	"github.com/ovrk/babel/internal/app"
	"github.com/ovrk/babel/internal/capture"
	"github.com/ovrk/babel/internal/config"
	"github.com/ovrk/babel/internal/core"
	"github.com/ovrk/babel/internal/domain"
	"github.com/ovrk/babel/internal/metrics"
	"github.com/ovrk/babel/internal/pipeline"
	"github.com/ovrk/babel/internal/stt"
	"github.com/ovrk/babel/internal/translate"
	"github.com/ovrk/babel/internal/tts"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Initialize zerolog global logger early so config.Load can use it.
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	// Human-friendly output for terminal; in production you may want JSON only.
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	promReg := prometheus.NewRegistry()
	m := metrics.New(promReg)

	translator := translate.NewClient(translate.Config{
		Endpoint: cfg.Translate.Endpoint,
		APIKey:   cfg.Translate.APIKey,
		Model:    cfg.Translate.Model,
		Timeout:  cfg.Translate.Timeout,
	})
	synth := tts.NewClient(tts.Config{
		Endpoint: cfg.TTS.Endpoint,
		APIKey:   cfg.TTS.APIKey,
		Model:    cfg.TTS.Model,
		Voice:    cfg.TTS.Voice,
		Timeout:  cfg.TTS.Timeout,
	})
	sttFactory := stt.NewFactory(stt.Config{
		Endpoint:    cfg.STT.Endpoint,
		APIKey:      cfg.STT.APIKey,
		SampleRate:  cfg.STT.SampleRate,
		Diarization: cfg.STT.Diarization,
		DialTimeout: cfg.STT.DialTimeout,
	})

	var recorder core.Recorder
	if cfg.Capture.Enabled {
		recorder = capture.New(capture.Config{
			Command:    cfg.Capture.Command,
			Channels:   cfg.Capture.Channels,
			SampleRate: cfg.Capture.SampleRate,
			AudioType:  cfg.Capture.AudioType,
		})
	}

	registry := app.NewRegistry()
	coord := &app.Coordinator{
		Registry:          registry,
		Rooms:             app.NewRoomManager(),
		STT:               sttFactory,
		Pipe:              pipeline.New(translator, synth, 0),
		Metrics:           m,
		Recorder:          recorder,
		DefaultSourceLang: domain.Lang(cfg.SourceLang),
	}
	relay := app.NewRelay(registry, m)

	r := router.SetupRouter(ctx, cfg, coord, relay, promReg)
	addr := fmt.Sprintf(":%d", cfg.Port)

	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("Babel server started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("server error")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	log.Info().Msg("Server exited gracefully")
}
