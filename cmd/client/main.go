package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/shelf-sh/shelf/internal/sdk"
	"github.com/shelf-sh/shelf/internal/version"
)

var (
	home, _          = os.UserHomeDir()
	defaultServerURL = "http://localhost:8080"
)

var rootCmd = &cobra.Command{
	Use:     "shelf",
	Short:   "Shelf artifact hosting CLI",
	Version: version.Detailed(),
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return loadConfig(cmd)
	},
}

func init() {
	rootCmd.PersistentFlags().SortFlags = false
	rootCmd.PersistentFlags().StringP("server", "s", defaultServerURL, "Shelf server URL")
	rootCmd.PersistentFlags().StringP("token", "t", "", "API token")
	rootCmd.PersistentFlags().String("config", "", "Path to the config file")

	rootCmd.AddCommand(projectCmd)
	rootCmd.AddCommand(tokenCmd)
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(uploadCmd)
	rootCmd.AddCommand(fetchCmd)
	rootCmd.AddCommand(listCmd)
}

// newSDK builds an API client from the resolved config.
func newSDK() (*sdk.Client, error) {
	serverURL := viper.GetString("server_url")
	token := viper.GetString("token")

	opts := []sdk.Option{}
	if token != "" {
		opts = append(opts, sdk.WithToken(token))
	}
	return sdk.New(serverURL, opts...)
}

func requireToken() error {
	if viper.GetString("token") == "" {
		return fmt.Errorf("api token is required (--token or SHELF_TOKEN)")
	}
	return nil
}

func loadConfig(cmd *cobra.Command) error {
	if cmd.Flags().Lookup("config") != nil && cmd.Flags().Changed("config") {
		configFilePath, _ := cmd.Flags().GetString("config")
		viper.SetConfigFile(configFilePath)
	} else {
		viper.AddConfigPath(filepath.Join(home, ".shelf"))
		viper.AddConfigPath(filepath.Join(home, ".config/shelf"))
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	if err := viper.ReadInConfig(); err != nil {
		enoent := errors.Is(err, os.ErrNotExist)
		_, ok := err.(viper.ConfigFileNotFoundError)
		if !enoent && !ok {
			return fmt.Errorf("config read '%s': %w", viper.ConfigFileUsed(), err)
		}
	}

	viper.BindPFlag("server_url", cmd.Flags().Lookup("server"))
	viper.BindPFlag("token", cmd.Flags().Lookup("token"))

	viper.SetEnvPrefix("SHELF")
	viper.AutomaticEnv()

	return nil
}

func main() {
	handler := tint.NewHandler(os.Stderr, &tint.Options{
		Level:      slog.LevelWarn,
		TimeFormat: time.Kitchen,
		NoColor:    !isatty.IsTerminal(os.Stderr.Fd()),
	})
	slog.SetDefault(slog.New(handler))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}
