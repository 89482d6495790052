package youtube

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/youtube/v3"
)

// OAuth holds the installed-app OAuth config for a read-only Data API client.
type OAuth struct {
	config    *oauth2.Config
	tokenFile string
	logger    *zap.Logger
}

func NewOAuth(credentialsFile, tokenFile string, logger *zap.Logger) (*OAuth, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	credBytes, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("unable to read credentials file: %w", err)
	}

	config, err := google.ConfigFromJSON(credBytes, youtube.YoutubeReadonlyScope)
	if err != nil {
		return nil, fmt.Errorf("unable to parse credentials: %w", err)
	}

	return &OAuth{config: config, tokenFile: tokenFile, logger: logger}, nil
}

// HTTPClient returns a token-refreshing client from the saved token.
func (o *OAuth) HTTPClient(ctx context.Context) (*http.Client, error) {
	token, err := loadToken(o.tokenFile)
	if err != nil {
		return nil, fmt.Errorf("no usable token in %s, run the youtube_auth tool: %w", o.tokenFile, err)
	}

	o.logger.Info("YouTube OAuth client initialized", zap.String("token_file", o.tokenFile))
	return o.config.Client(ctx, token), nil
}

// Authorize runs the copy-paste code flow and saves the resulting token.
func (o *OAuth) Authorize(ctx context.Context, in io.Reader, out io.Writer) error {
	authURL := o.config.AuthCodeURL("state-token", oauth2.AccessTypeOffline)

	fmt.Fprintln(out, "=== YouTube API Authorization ===")
	fmt.Fprintln(out, "Go to the following link in your browser:")
	fmt.Fprintln(out, authURL)
	fmt.Fprintln(out, "After authorization, enter the code here:")

	var code string
	if _, err := fmt.Fscan(in, &code); err != nil {
		return fmt.Errorf("unable to read authorization code: %w", err)
	}

	token, err := o.config.Exchange(ctx, strings.TrimSpace(code))
	if err != nil {
		return fmt.Errorf("unable to retrieve token: %w", err)
	}

	if err := saveToken(o.tokenFile, token); err != nil {
		return fmt.Errorf("unable to save token: %w", err)
	}

	o.logger.Info("YouTube OAuth authorization complete", zap.String("token_file", o.tokenFile))
	return nil
}

func loadToken(file string) (*oauth2.Token, error) {
	f, err := os.Open(file)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	token := &oauth2.Token{}
	err = json.NewDecoder(f).Decode(token)
	return token, err
}

func saveToken(file string, token *oauth2.Token) error {
	f, err := os.OpenFile(file, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	defer f.Close()

	return json.NewEncoder(f).Encode(token)
}
