package bridge

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// Server exposes an Adapter over HTTP so a RemoteHost can drive it.
type Server struct {
	adapter *Adapter
	logger  *zap.SugaredLogger
	router  *chi.Mux
}

// NewHandler builds the bridge router. metrics, when non-nil, is mounted
// at /metrics.
func NewHandler(a *Adapter, logger *zap.SugaredLogger, metrics http.Handler) http.Handler {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	s := &Server{
		adapter: a,
		logger:  logger.Named("bridge-server"),
		router:  chi.NewRouter(),
	}
	s.setupRoutes(metrics)
	return s.router
}

func (s *Server) setupRoutes(metrics http.Handler) {
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RequestID)

	if metrics != nil {
		s.router.Handle("/metrics", metrics)
	}
	s.router.Get(pathEvents, s.handleEvents)

	s.router.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(30 * time.Second))

		r.Get(pathCapabilities, s.handleCapabilities)

		r.Route("/credentials/{field}", func(r chi.Router) {
			r.Use(s.require(CapCredentials))
			r.Get("/", s.handleGetCredential)
			r.Put("/", s.handleSetCredential)
		})

		r.Group(func(r chi.Router) {
			r.Use(s.require(CapProfiles))
			r.Get(pathProfiles, s.handleProfiles)
			r.Get(pathActiveProfile, s.handleActiveProfile)
			r.Put(pathActiveProfile, s.handleSetActiveProfile)
		})

		r.Group(func(r chi.Router) {
			r.Use(s.require(CapTunnel))
			r.Post(pathTunnelStart, s.command(s.adapter.StartTunnel))
			r.Post(pathTunnelStop, s.command(s.adapter.StopTunnel))
			r.Get(pathTunnelState, func(w http.ResponseWriter, r *http.Request) {
				s.writeValue(w, string(s.adapter.TunnelState(r.Context())))
			})
		})

		r.Group(func(r chi.Router) {
			r.Use(s.require(CapAirplane))
			r.Get(pathAirplane, s.handleAirplane)
			r.Put(pathAirplane, s.handleSetAirplane)
		})

		r.Group(func(r chi.Router) {
			r.Use(s.require(CapTraffic))
			r.Get(pathDownload, func(w http.ResponseWriter, r *http.Request) {
				s.writeValue(w, s.adapter.DownloadBytes(r.Context()))
			})
			r.Get(pathUpload, func(w http.ResponseWriter, r *http.Request) {
				s.writeValue(w, s.adapter.UploadBytes(r.Context()))
			})
		})

		r.With(s.require(CapNetwork)).Get(pathLocalIP, func(w http.ResponseWriter, r *http.Request) {
			s.writeValue(w, s.adapter.LocalIP(r.Context()))
		})

		r.Group(func(r chi.Router) {
			r.Use(s.require(CapChrome))
			r.Get(pathStatusBar, func(w http.ResponseWriter, r *http.Request) {
				s.writeValue(w, s.adapter.StatusBarHeight(r.Context()))
			})
			r.Get(pathNavigationBar, func(w http.ResponseWriter, r *http.Request) {
				s.writeValue(w, s.adapter.NavigationBarHeight(r.Context()))
			})
		})

		r.Group(func(r chi.Router) {
			r.Use(s.require(CapHotspot))
			r.Get(pathHotspot, func(w http.ResponseWriter, r *http.Request) {
				s.writeValue(w, string(s.adapter.HotspotStatus(r.Context())))
			})
			r.Post(pathHotspotStart, s.command(s.adapter.StartHotspot))
			r.Post(pathHotspotStop, s.command(s.adapter.StopHotspot))
		})

		r.Group(func(r chi.Router) {
			r.Use(s.require(CapConfig))
			r.Get(pathConfigLabels+"{label}", func(w http.ResponseWriter, r *http.Request) {
				s.writeValue(w, s.adapter.ConfigLabel(r.Context(), chi.URLParam(r, "label")))
			})
			r.Get(pathConfigVersion, func(w http.ResponseWriter, r *http.Request) {
				s.writeValue(w, s.adapter.ConfigVersion(r.Context()))
			})
		})

		r.Group(func(r chi.Router) {
			r.Use(s.require(CapMaintenance))
			r.Post(pathClean, func(w http.ResponseWriter, r *http.Request) {
				s.writeValue(w, s.adapter.CleanApp(r.Context()))
			})
			r.Post(pathCheckUser, s.command(s.adapter.StartCheckUser))
		})
	})
}

// require answers 501 when the adapter lacks capability c.
func (s *Server) require(c Capability) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !s.adapter.Has(c) {
				s.writeError(w, http.StatusNotImplemented, "capability not available: "+string(c))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (s *Server) command(fn func(ctx context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := fn(r.Context()); err != nil {
			s.writeError(w, http.StatusBadGateway, err.Error())
			return
		}
		s.writeValue(w, true)
	}
}

func (s *Server) handleCapabilities(w http.ResponseWriter, _ *http.Request) {
	s.writeValue(w, s.adapter.Capabilities())
}

func (s *Server) handleGetCredential(w http.ResponseWriter, r *http.Request) {
	field := CredentialField(chi.URLParam(r, "field"))
	if !field.Valid() {
		s.writeError(w, http.StatusNotFound, "unknown credential: "+string(field))
		return
	}
	s.writeValue(w, s.adapter.Credential(r.Context(), field))
}

func (s *Server) handleSetCredential(w http.ResponseWriter, r *http.Request) {
	field := CredentialField(chi.URLParam(r, "field"))
	if !field.Valid() {
		s.writeError(w, http.StatusNotFound, "unknown credential: "+string(field))
		return
	}
	var msg valueMessage[string]
	if !s.decode(w, r, &msg) {
		return
	}
	if err := s.adapter.SetCredential(r.Context(), field, msg.Value); err != nil {
		s.writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	s.writeValue(w, true)
}

func (s *Server) handleProfiles(w http.ResponseWriter, r *http.Request) {
	categories := s.adapter.Categories(r.Context())
	if categories == nil {
		categories = []Category{}
	}
	data, err := json.Marshal(categories)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeValue(w, string(data))
}

func (s *Server) handleActiveProfile(w http.ResponseWriter, r *http.Request) {
	p := s.adapter.ActiveProfile(r.Context())
	if p == nil {
		s.writeValue(w, "")
		return
	}
	data, err := json.Marshal(p)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeValue(w, string(data))
}

func (s *Server) handleSetActiveProfile(w http.ResponseWriter, r *http.Request) {
	var msg valueMessage[int]
	if !s.decode(w, r, &msg) {
		return
	}
	if err := s.adapter.SetActiveProfile(r.Context(), msg.Value); err != nil {
		s.writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	s.writeValue(w, true)
}

func (s *Server) handleAirplane(w http.ResponseWriter, r *http.Request) {
	state := AirplaneInactive
	if s.adapter.AirplaneActive(r.Context()) {
		state = AirplaneActive
	}
	s.writeValue(w, state)
}

func (s *Server) handleSetAirplane(w http.ResponseWriter, r *http.Request) {
	var msg valueMessage[bool]
	if !s.decode(w, r, &msg) {
		return
	}
	s.writeValue(w, s.adapter.ToggleAirplane(r.Context(), msg.Value))
}

// handleEvents streams every adapter event as newline-delimited JSON.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		s.writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	queue := make(chan Envelope, 64)
	group := s.adapter.Events().Forward(func(env Envelope) {
		select {
		case queue <- env:
		default:
			s.logger.Warnw("event subscriber too slow, dropping event", "event", env.Event)
		}
	})
	defer group.Close()

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	enc := json.NewEncoder(w)
	for {
		select {
		case <-r.Context().Done():
			return
		case env := <-queue:
			if err := enc.Encode(env); err != nil {
				s.logger.Debugw("event stream write failed", "error", err)
				return
			}
			flusher.Flush()
		}
	}
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return false
	}
	return true
}

func (s *Server) writeValue(w http.ResponseWriter, v any) {
	s.writeJSON(w, http.StatusOK, valueMessage[any]{Value: v})
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, valueMessage[any]{Error: msg})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Debugw("failed to write response", "status", strconv.Itoa(status), "error", err)
	}
}
