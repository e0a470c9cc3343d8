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

	"github.com/shelf-sh/shelf/internal/server"
	"github.com/shelf-sh/shelf/internal/server/auth"
	"github.com/shelf-sh/shelf/internal/server/blob"
	"github.com/shelf-sh/shelf/internal/utils"
	"github.com/shelf-sh/shelf/internal/version"
)

var (
	home, _        = os.UserHomeDir()
	defaultDataDir = filepath.Join(home, ".shelf", "server")
)

var rootCmd = &cobra.Command{
	Use:     "shelf-server",
	Short:   "Shelf artifact server",
	Version: version.Detailed(),
	PreRunE: func(cmd *cobra.Command, args []string) error {
		return loadConfig(cmd)
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true

		config, err := buildConfig()
		if err != nil {
			return err
		}

		s, err := server.New(config)
		if err != nil {
			return err
		}

		defer slog.Info("Bye!")
		return s.Start(cmd.Context())
	},
}

func init() {
	rootCmd.Flags().SortFlags = false
	rootCmd.Flags().StringP("bind", "b", server.DefaultAddr, "Address to bind the server")
	rootCmd.Flags().StringP("datadir", "d", defaultDataDir, "Data directory for database and blobs")
	rootCmd.Flags().StringP("cert", "c", "", "Path to the TLS certificate file")
	rootCmd.Flags().StringP("key", "k", "", "Path to the TLS key file")
	rootCmd.Flags().String("backend", blob.BackendLocal, "Blob backend: local or s3")
	rootCmd.Flags().Duration("sweep-interval", blob.DefaultSweepInterval, "Garbage collector sweep interval (0 disables)")
}

func buildConfig() (*server.Config, error) {
	dataDir, err := utils.ResolvePath(viper.GetString("data_dir"))
	if err != nil {
		return nil, fmt.Errorf("data directory: %w", err)
	}
	tokenSecret := viper.GetString("token_secret")
	if tokenSecret == "" {
		return nil, fmt.Errorf("token secret is required (set SHELF_TOKEN_SECRET)")
	}

	config := &server.Config{
		HTTP: server.HTTPConfig{
			Addr:     viper.GetString("bind"),
			CertFile: viper.GetString("cert_file"),
			KeyFile:  viper.GetString("key_file"),
		},
		Blob: blob.Config{
			Backend:       viper.GetString("backend"),
			LocalDir:      filepath.Join(dataDir, "blobs"),
			SweepInterval: viper.GetDuration("sweep_interval"),
		},
		Auth: auth.Config{
			TokenSecret: tokenSecret,
			TokenIssuer: "shelf",
			AdminToken:  viper.GetString("admin_token"),
		},
		DBPath: filepath.Join(dataDir, "shelf.db"),
	}

	if config.Blob.Backend == blob.BackendS3 {
		config.Blob.S3 = &blob.S3Config{
			BucketName: viper.GetString("s3_bucket"),
			Region:     viper.GetString("s3_region"),
			Endpoint:   viper.GetString("s3_endpoint"),
			AccessKey:  viper.GetString("s3_access_key"),
			SecretKey:  viper.GetString("s3_secret_key"),
		}
	}

	return config, nil
}

func loadConfig(cmd *cobra.Command) error {
	if cmd.Flag("config").Changed {
		configFilePath, _ := cmd.Flags().GetString("config")
		viper.SetConfigFile(configFilePath)
	} else {
		viper.AddConfigPath(filepath.Join(home, ".shelf"))
		viper.AddConfigPath(filepath.Join(home, ".config/shelf"))
		viper.SetConfigName("server")
		viper.SetConfigType("yaml")
	}

	if err := viper.ReadInConfig(); err != nil {
		enoent := errors.Is(err, os.ErrNotExist)
		_, ok := err.(viper.ConfigFileNotFoundError)
		if !enoent && !ok {
			return fmt.Errorf("config read '%s': %w", viper.ConfigFileUsed(), err)
		}
	}

	viper.BindPFlag("bind", cmd.Flags().Lookup("bind"))
	viper.BindPFlag("data_dir", cmd.Flags().Lookup("datadir"))
	viper.BindPFlag("cert_file", cmd.Flags().Lookup("cert"))
	viper.BindPFlag("key_file", cmd.Flags().Lookup("key"))
	viper.BindPFlag("backend", cmd.Flags().Lookup("backend"))
	viper.BindPFlag("sweep_interval", cmd.Flags().Lookup("sweep-interval"))

	viper.SetEnvPrefix("SHELF")
	viper.AutomaticEnv()

	return nil
}

func main() {
	rootCmd.PersistentFlags().String("config", "", "Path to the config file")

	handler := tint.NewHandler(os.Stdout, &tint.Options{
		Level:      slog.LevelDebug,
		TimeFormat: time.RFC3339,
		NoColor:    !isatty.IsTerminal(os.Stdout.Fd()),
	})
	slog.SetDefault(slog.New(handler))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}
