package cmd

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"

	"github.com/jmcleod/keyrelay/api"
	"github.com/jmcleod/keyrelay/internal/util"
	"github.com/jmcleod/keyrelay/storage"
	bboltstorage "github.com/jmcleod/keyrelay/storage/bbolt"
	pgstorage "github.com/jmcleod/keyrelay/storage/postgres"
)

var (
	port         int
	dataDir      string
	postgresDSN  string
	masterSecret string
	oauthBase    string
	tlsCert      string
	tlsKey       string
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the reference backend",
	RunE: func(cmd *cobra.Command, args []string) error {
		repo, closeRepo, err := openRepository(cmd.Context())
		if err != nil {
			return err
		}
		defer closeRepo()

		secret, err := loadMasterSecret()
		if err != nil {
			return err
		}

		logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))
		opts := []api.Option{api.WithLogger(logger)}
		if oauthBase != "" {
			opts = append(opts, api.WithOAuthRedirectBase(oauthBase))
		}
		a := api.New(repo, secret, opts...)

		r := chi.NewRouter()
		r.Use(middleware.Logger)
		r.Use(middleware.Recoverer)

		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("OK"))
		})

		r.Mount("/", a.Router())

		server := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           r,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       60 * time.Second,
		}

		// Graceful shutdown on SIGINT/SIGTERM.
		done := make(chan error, 1)
		go func() {
			var err error
			if tlsCert != "" && tlsKey != "" {
				err = server.ListenAndServeTLS(tlsCert, tlsKey)
			} else {
				err = server.ListenAndServe()
			}
			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				done <- fmt.Errorf("server failed: %w", err)
				return
			}
			done <- nil
		}()

		fmt.Printf("Starting server on port %d (data: %s)...\n", port, dataDir)

		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

		select {
		case sig := <-quit:
			fmt.Printf("\nReceived %s, shutting down...\n", sig)
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := server.Shutdown(ctx); err != nil {
				return fmt.Errorf("server shutdown failed: %w", err)
			}
			return nil
		case err := <-done:
			return err
		}
	},
}

// openRepository picks the storage backend: postgres when a DSN is given,
// bbolt in the data directory otherwise.
func openRepository(ctx context.Context) (storage.Repository, func(), error) {
	if postgresDSN != "" {
		repo, err := pgstorage.NewRepositoryFromDSN(ctx, postgresDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open postgres storage: %w", err)
		}
		return repo, repo.Close, nil
	}

	if err := os.MkdirAll(dataDir, 0o700); err != nil {
		return nil, nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	repo, err := bboltstorage.NewRepositoryFromFile(dataDir+"/keyrelay.db", nil)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open storage: %w", err)
	}
	return repo, func() { repo.Close() }, nil
}

// loadMasterSecret resolves the client key master secret: the flag, then
// KEYRELAY_MASTER_SECRET, then a fresh random secret. A generated secret is
// printed so the operator can pin it; without pinning, persisted sessions
// do not survive a restart.
func loadMasterSecret() ([]byte, error) {
	raw := masterSecret
	if raw == "" {
		raw = os.Getenv("KEYRELAY_MASTER_SECRET")
	}
	if raw != "" {
		secret, err := base64.StdEncoding.DecodeString(raw)
		if err != nil {
			return nil, fmt.Errorf("decoding master secret: %w", err)
		}
		return secret, nil
	}

	secret, err := util.RandomBytes(32)
	if err != nil {
		return nil, err
	}
	fmt.Printf("Generated master secret: %s\n", base64.StdEncoding.EncodeToString(secret))
	fmt.Println("Pin it with --master-secret or KEYRELAY_MASTER_SECRET to keep sessions across restarts")
	return secret, nil
}

func init() {
	rootCmd.AddCommand(serverCmd)
	serverCmd.Flags().IntVarP(&port, "port", "p", 8080, "Port to listen on")
	serverCmd.Flags().StringVar(&dataDir, "data-dir", "./data", "Directory for persistent data")
	serverCmd.Flags().StringVar(&postgresDSN, "postgres-dsn", "", "PostgreSQL DSN; uses bbolt in the data directory when empty")
	serverCmd.Flags().StringVar(&masterSecret, "master-secret", "", "Base64 master secret for client key derivation")
	serverCmd.Flags().StringVar(&oauthBase, "oauth-redirect-base", "", "Base URL for oauth fork redirects")
	serverCmd.Flags().StringVar(&tlsCert, "tls-cert", "", "Path to TLS certificate file")
	serverCmd.Flags().StringVar(&tlsKey, "tls-key", "", "Path to TLS key file")
}
