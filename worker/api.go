package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
)

// BackendInfo is how the API shows a backend.
type BackendInfo struct {
	Name       string   `json:"name"`
	Domains    []string `json:"domains"`
	ProxyTo    string   `json:"proxyTo"`
	Forwarding string   `json:"forwarding"`
	State      string   `json:"state"`
	Online     int      `json:"online"`
}

func NewAPI(backendManager *BackendManager, addr string) *API {
	api := &API{
		backendManager: backendManager,
	}
	api.server = &http.Server{Addr: addr, Handler: api.Router()}
	return api
}

type API struct {
	backendManager *BackendManager
	server         *http.Server
}

func (api *API) Router() http.Handler {
	r := chi.NewRouter()
	r.Get("/reload", api.reloadHandler)
	r.Post("/reload", api.reloadHandler)
	r.Get("/backends", api.backendsHandler)
	return r
}

func (api *API) Run() error {
	err := api.server.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (api *API) Close(ctx context.Context) error {
	return api.server.Shutdown(ctx)
}

func (api *API) reloadHandler(w http.ResponseWriter, r *http.Request) {
	if err := api.backendManager.Update(); err != nil {
		log.Warn().Str("component", "api").Err(err).Msg("reload failed")
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusOK)
	fmt.Fprintln(w, "success")
}

func (api *API) backendsHandler(w http.ResponseWriter, r *http.Request) {
	backends := api.backendManager.Backends()
	infos := make([]BackendInfo, 0, len(backends))
	for _, backend := range backends {
		cfg := backend.Config()
		infos = append(infos, BackendInfo{
			Name:       cfg.Name,
			Domains:    cfg.Domains,
			ProxyTo:    cfg.ProxyTo,
			Forwarding: string(cfg.Forwarding.Mode()),
			State:      backend.State().String(),
			Online:     backend.Online(),
		})
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(infos)
}
