package fleet

import (
	"context"
	"net/http"
	"time"

	corefleet "github.com/mowbotai/fleetd/core/fleet"
	"github.com/mowbotai/fleetd/core/health"
	"github.com/mowbotai/fleetd/core/mission"
	"github.com/mowbotai/fleetd/infra/logger"
)

// NewMux assembles the fleet API routes on a dedicated ServeMux.
func NewMux(store corefleet.Store, mon *health.Monitor, d *mission.Dispatcher, mapKey string) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/api/fleet/vehicles", NewVehiclesHandler(store))
	mux.Handle("/api/fleet/health", NewHealthHandler(mon, mapKey))
	mux.Handle("/api/fleet/missions", NewMissionsHandler(d))
	return mux
}

// Serve runs the API server on addr until ctx is canceled.
func Serve(ctx context.Context, addr string, handler http.Handler) error {
	log := logger.New("fleet-api")
	srv := &http.Server{Addr: addr, Handler: handler, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Errorf("api server shutdown: %v", err)
		}
	}()
	log.Infof("fleet api listening on %s", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
