package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/kapu/channel-ranking-go/internal/config"
	"github.com/kapu/channel-ranking-go/internal/service/youtube"
)

func main() {
	var credentials, token string
	flag.StringVar(&credentials, "credentials", "", "OAuth client credentials JSON (defaults to YOUTUBE_OAUTH_CREDENTIALS_FILE)")
	flag.StringVar(&token, "token", "", "token output file (defaults to YOUTUBE_OAUTH_TOKEN_FILE)")
	flag.Parse()

	logger, _ := zap.NewDevelopment()
	defer logger.Sync()

	if credentials == "" || token == "" {
		cfg, err := config.Load()
		if err != nil {
			logger.Fatal("Failed to load config", zap.Error(err))
		}
		if credentials == "" {
			credentials = cfg.YouTube.OAuthCredentialsFile
		}
		if token == "" {
			token = cfg.YouTube.OAuthTokenFile
		}
	}
	if credentials == "" || token == "" {
		logger.Fatal("Both -credentials and -token are required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	oauth, err := youtube.NewOAuth(credentials, token, logger)
	if err != nil {
		logger.Fatal("Failed to load OAuth credentials", zap.Error(err))
	}
	if err := oauth.Authorize(ctx, os.Stdin, os.Stdout); err != nil {
		logger.Fatal("Authorization failed", zap.Error(err))
	}
	logger.Info("Token saved", zap.String("file", token))
}
