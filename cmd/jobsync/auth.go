package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/Veraticus/jobsync/internal/cli"
	"github.com/Veraticus/jobsync/internal/secrets"
	"github.com/Veraticus/jobsync/internal/sheets"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func authCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Authenticate with Google Sheets and Notion",
	}

	cmd.AddCommand(authSheetsCmd())
	cmd.AddCommand(authNotionCmd())

	return cmd
}

func authSheetsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sheets",
		Short: "Authorize access to Google Sheets",
		Long: `Run the Google OAuth2 consent flow and store the refresh token in the
config file. A service account (sheets.service_account_path) needs no login.`,
		RunE: runAuthSheets,
	}

	cmd.Flags().String("client-id", "", "Google OAuth2 client ID")
	cmd.Flags().String("client-secret", "", "Google OAuth2 client secret")
	cmd.Flags().String("listen", ":8080", "address for the OAuth2 callback server")
	cmd.Flags().Bool("no-browser", false, "print the consent URL instead of opening a browser")
	cmd.Flags().Bool("force", false, "ignore a saved token and log in again")

	return cmd
}

func runAuthSheets(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	clientID := viper.GetString("sheets.client_id")
	clientSecret := viper.GetString("sheets.client_secret")

	if flagID, _ := cmd.Flags().GetString("client-id"); flagID != "" {
		clientID = flagID
	}
	if flagSecret, _ := cmd.Flags().GetString("client-secret"); flagSecret != "" {
		clientSecret = flagSecret
	}

	if clientID == "" {
		clientID = os.Getenv("GOOGLE_SHEETS_CLIENT_ID")
	}
	if clientSecret == "" {
		clientSecret = os.Getenv("GOOGLE_SHEETS_CLIENT_SECRET")
	}

	if clientID == "" || clientSecret == "" {
		return fmt.Errorf("OAuth2 credentials not found. Please set sheets.client_id and sheets.client_secret in config or use --client-id and --client-secret flags")
	}

	dir, err := configDir()
	if err != nil {
		return err
	}
	tokenFile := filepath.Join(dir, "sheets-token.json")

	slog.Info("Starting Google Sheets authentication", "token_file", tokenFile)

	listen, _ := cmd.Flags().GetString("listen")
	oauth := sheets.OAuth2Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TokenFile:    tokenFile,
		ListenAddr:   listen,
	}
	if noBrowser, _ := cmd.Flags().GetBool("no-browser"); !noBrowser {
		oauth.OpenURL = openBrowser
	}

	authenticate := sheets.GetOrCreateToken
	if force, _ := cmd.Flags().GetBool("force"); force {
		authenticate = sheets.AuthenticateOAuth2Interactive
	}

	token, err := authenticate(ctx, oauth)
	if err != nil {
		return fmt.Errorf("authentication failed: %w", err)
	}

	viper.Set("sheets.client_id", clientID)
	viper.Set("sheets.client_secret", clientSecret)
	if token.RefreshToken == "" {
		return fmt.Errorf("google returned no refresh token; run 'jobsync auth sheets --force'")
	}
	viper.Set("sheets.refresh_token", token.RefreshToken)

	if err := saveConfig(); err != nil {
		slog.Warn("Failed to update config file with refresh token", "error", err)
		slog.Info("Please add this to your config.yaml manually:")
		slog.Info(fmt.Sprintf("sheets:\n  refresh_token: %q", token.RefreshToken))
		return nil
	}

	_, _ = fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess("Google Sheets is authorized. Run 'jobsync sync' to update your tracker."))
	return nil
}

func authNotionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "notion",
		Short: "Store the Notion integration token in the OS keychain",
		Long: `Store a Notion internal integration token in the OS keychain so it does not
have to live in the config file or environment. The token is read from --token
or, if that is empty, from standard input.`,
		RunE: runAuthNotion,
	}

	cmd.Flags().String("token", "", "Notion integration token")
	cmd.Flags().Bool("delete", false, "remove the stored token")

	return cmd
}

func runAuthNotion(cmd *cobra.Command, _ []string) error {
	return authNotion(cmd, secrets.NewKeyring())
}

type notionTokenStore interface {
	SetNotionToken(token string) error
	DeleteNotionToken() error
}

func authNotion(cmd *cobra.Command, store notionTokenStore) error {
	out := cmd.OutOrStdout()

	if del, _ := cmd.Flags().GetBool("delete"); del {
		if err := store.DeleteNotionToken(); err != nil {
			return fmt.Errorf("failed to delete Notion token: %w", err)
		}
		_, _ = fmt.Fprintln(out, cli.FormatSuccess("Notion token removed from the keychain."))
		return nil
	}

	token, _ := cmd.Flags().GetString("token")
	if token == "" {
		if _, err := fmt.Fprint(cmd.ErrOrStderr(), cli.FormatPrompt("Notion integration token: ")); err != nil {
			return err
		}
		line, err := cli.NewNonBlockingReader(cmd.InOrStdin()).ReadLine(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to read token: %w", err)
		}
		token = strings.TrimSpace(line)
	}

	if err := store.SetNotionToken(token); err != nil {
		if errors.Is(err, secrets.ErrEmptySecret) {
			return fmt.Errorf("no token given")
		}
		return fmt.Errorf("failed to store Notion token: %w", err)
	}

	_, _ = fmt.Fprintln(out, cli.FormatSuccess("Notion token saved to the keychain."))
	return nil
}

// openBrowser tries to open the URL in the default browser.
func openBrowser(url string) {
	var err error
	switch runtime.GOOS {
	case "linux":
		err = exec.Command("xdg-open", url).Start() //nolint:gosec
	case "windows":
		err = exec.Command("rundll32", "url.dll,FileProtocolHandler", url).Start() //nolint:gosec
	case "darwin":
		err = exec.Command("open", url).Start() //nolint:gosec
	}
	if err != nil {
		slog.Debug("Failed to open browser", "error", err)
	}
}
