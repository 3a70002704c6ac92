package devnet

import (
	"context"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/rpc"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const Namespace = "ledger"

// NewRPCServer exposes node over JSON-RPC. The returned server can be mounted
// as an http.Handler or dialed in process with rpc.DialInProc.
func NewRPCServer(node *Node) (*rpc.Server, error) {
	srv := rpc.NewServer()
	if err := srv.RegisterName(Namespace, NewAPI(node)); err != nil {
		return nil, errors.Wrap(err, "failed to register ledger API")
	}
	return srv, nil
}

// Serve listens on addr until ctx is done, then shuts down gracefully.
func Serve(ctx context.Context, addr string, srv *rpc.Server, logger *zap.Logger) error {
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           srv,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Sugar().Infow("Starting JSON-RPC server", "addr", addr)
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		srv.Stop()
		return errors.Wrapf(err, "JSON-RPC server on %s", addr)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := httpServer.Shutdown(shutdownCtx)
	srv.Stop()
	logger.Sugar().Info("JSON-RPC server stopped")
	return errors.Wrap(err, "failed to shut down JSON-RPC server")
}
