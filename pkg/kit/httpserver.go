package kit

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

// CloseFunc releases a resource owned by the process once the server has drained.
type CloseFunc func(ctx context.Context) error

// RunHTTPServer serves h until SIGINT/SIGTERM, then shuts the server down and
// runs the close funcs in reverse order.
func RunHTTPServer(addr string, h http.Handler, log *zap.Logger, closers ...CloseFunc) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("http server starting", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(stop)

	select {
	case sig := <-stop:
		log.Info("shutdown signal", zap.String("signal", sig.String()))
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	err := srv.Shutdown(ctx)
	for i := len(closers) - 1; i >= 0; i-- {
		if cerr := closers[i](ctx); cerr != nil {
			log.Warn("close failed", zap.Error(cerr))
		}
	}
	return err
}
