package cli

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kanopusdev/aurelis/internal/server"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run a local OpenAI-compatible endpoint backed by the router",
	Long: `Expose the Aurelis orchestrator over HTTP so editors and tools can use
it as a local model endpoint. Requests to /v1/chat/completions are routed,
cached, and tracked exactly like CLI commands.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().String("host", "127.0.0.1", "server host")
	serveCmd.Flags().Int("port", 8080, "server port")

	viper.BindPFlag("server.host", serveCmd.Flags().Lookup("host"))
	viper.BindPFlag("server.port", serveCmd.Flags().Lookup("port"))

	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	a, err := newApp(true)
	if err != nil {
		return err
	}
	defer a.close()

	a.log.Info("starting aurelis server",
		zap.String("version", Version),
		zap.String("host", a.cfg.Server.Host),
		zap.Int("port", a.cfg.Server.Port))

	srv := server.New(a.cfg, a.log, a.orch, a.cache, a.tracker)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", a.cfg.Server.Host, a.cfg.Server.Port),
		Handler:      srv.Router(),
		ReadTimeout:  a.cfg.Server.ReadTimeout,
		WriteTimeout: a.cfg.Server.WriteTimeout,
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		a.log.Info("server started", zap.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return exitErr(ExitNetwork, err)
	case <-stop:
	}

	a.log.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		a.log.Error("server forced to shutdown", zap.Error(err))
		return err
	}

	a.log.Info("server stopped gracefully")
	return nil
}
