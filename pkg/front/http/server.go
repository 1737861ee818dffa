package http

import (
	"context"
	"encoding/json"
	"io"
	nethttp "net/http"
	"strings"
	"syscall"
	"time"

	"github.com/karloygard/acer-wmi-ext-go/pkg/acer"
	"github.com/karloygard/acer-wmi-ext-go/pkg/quirks"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

const maxBody = 64

type Server struct {
	facade *acer.Facade
	model  quirks.ModelKey
	router *mux.Router
}

type modeValue struct {
	Name  string `json:"name"`
	Value int    `json:"value"`
	Error string `json:"error,omitempty"`
}

type modelInfo struct {
	Vendor       string              `json:"vendor"`
	Product      string              `json:"product"`
	Capabilities quirks.Capabilities `json:"capabilities"`
}

// NewServer routes the REST API onto f. A nil metrics handler leaves
// /metrics out.
func NewServer(f *acer.Facade, model quirks.ModelKey, metrics nethttp.Handler, verbose bool) *Server {
	s := &Server{
		facade: f,
		model:  model,
		router: mux.NewRouter(),
	}

	s.router.Handle("/modes",
		Logger(nethttp.HandlerFunc(s.Modes), "modes", verbose)).
		Methods("GET", "HEAD")
	s.router.Handle("/modes/{name}",
		Logger(nethttp.HandlerFunc(s.GetMode), "get-mode", verbose)).
		Methods("GET", "HEAD")
	s.router.Handle("/modes/{name}",
		Logger(nethttp.HandlerFunc(s.SetMode), "set-mode", verbose)).
		Methods("PUT", "POST")
	s.router.Handle("/profile",
		Logger(nethttp.HandlerFunc(s.GetProfile), "get-profile", verbose)).
		Methods("GET", "HEAD")
	s.router.Handle("/profile",
		Logger(nethttp.HandlerFunc(s.SetProfile), "set-profile", verbose)).
		Methods("PUT", "POST")
	s.router.Handle("/model",
		Logger(nethttp.HandlerFunc(s.Model), "model", verbose)).
		Methods("GET", "HEAD")
	if metrics != nil {
		s.router.Handle("/metrics", metrics).Methods("GET")
	}

	return s
}

func (s *Server) ServeHTTP(w nethttp.ResponseWriter, r *nethttp.Request) {
	s.router.ServeHTTP(w, r)
}

// ListenAndServe serves on addr until ctx is done
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	httpServer := &nethttp.Server{
		Handler:      s.router,
		Addr:         addr,
		WriteTimeout: 4 * time.Second,
		ReadTimeout:  4 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		httpServer.Shutdown(shutdownCtx)
	}()

	log.Infof("serving HTTP on %s", addr)

	if err := httpServer.ListenAndServe(); err != nil && err != nethttp.ErrServerClosed {
		return errors.WithStack(err)
	}
	return nil
}

// StatusCode maps a facade error to an HTTP status
func StatusCode(err error) int {
	switch acer.Errno(err) {
	case 0:
		return nethttp.StatusOK
	case syscall.EINVAL:
		return nethttp.StatusBadRequest
	case syscall.EOPNOTSUPP:
		return nethttp.StatusNotImplemented
	case syscall.ENODEV:
		return nethttp.StatusServiceUnavailable
	default:
		return nethttp.StatusBadGateway
	}
}

func known(name string) bool {
	for _, a := range acer.Attributes {
		if a == name {
			return true
		}
	}
	return false
}

func writeJSON(w nethttp.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w nethttp.ResponseWriter, err error) {
	writeJSON(w, StatusCode(err), map[string]string{"error": err.Error()})
}

func readBody(r *nethttp.Request) (string, error) {
	data, err := io.ReadAll(io.LimitReader(r.Body, maxBody))
	if err != nil {
		return "", errors.WithStack(err)
	}
	return strings.TrimSpace(string(data)), nil
}

func (s *Server) value(ctx context.Context, name string) modeValue {
	v := modeValue{Name: name}

	value, err := s.facade.Value(ctx, name)
	v.Value = value
	if err != nil {
		v.Error = err.Error()
	}
	return v
}

// Modes lists every attribute, with the error for those that cannot be read
func (s *Server) Modes(w nethttp.ResponseWriter, r *nethttp.Request) {
	values := make([]modeValue, 0, len(acer.Attributes))
	for _, name := range acer.Attributes {
		values = append(values, s.value(r.Context(), name))
	}
	writeJSON(w, nethttp.StatusOK, values)
}

func (s *Server) GetMode(w nethttp.ResponseWriter, r *nethttp.Request) {
	name := mux.Vars(r)["name"]
	if !known(name) {
		nethttp.NotFound(w, r)
		return
	}

	value, err := s.facade.Value(r.Context(), name)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, nethttp.StatusOK, modeValue{Name: name, Value: value})
}

func (s *Server) SetMode(w nethttp.ResponseWriter, r *nethttp.Request) {
	name := mux.Vars(r)["name"]
	if !known(name) {
		nethttp.NotFound(w, r)
		return
	}

	body, err := readBody(r)
	if err != nil {
		writeError(w, err)
		return
	}

	value, err := acer.ParseValue(name, body)
	if err == nil {
		err = s.facade.SetValue(r.Context(), name, value)
	}
	if err != nil {
		log.Warnf("setting %s to %q failed: %v", name, body, err)
		writeError(w, err)
		return
	}

	writeJSON(w, nethttp.StatusOK, s.value(r.Context(), name))
}

func (s *Server) GetProfile(w nethttp.ResponseWriter, r *nethttp.Request) {
	profile, err := s.facade.ProfileHandler().Get(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, nethttp.StatusOK, map[string]acer.Profile{"profile": profile})
}

func (s *Server) SetProfile(w nethttp.ResponseWriter, r *nethttp.Request) {
	body, err := readBody(r)
	if err != nil {
		writeError(w, err)
		return
	}

	if err := s.facade.ProfileHandler().Set(r.Context(), acer.Profile(body)); err != nil {
		log.Warnf("setting platform profile to %q failed: %v", body, err)
		writeError(w, err)
		return
	}
	writeJSON(w, nethttp.StatusOK, map[string]string{"profile": body})
}

func (s *Server) Model(w nethttp.ResponseWriter, r *nethttp.Request) {
	writeJSON(w, nethttp.StatusOK, modelInfo{
		Vendor:       s.model.Vendor,
		Product:      s.model.Product,
		Capabilities: s.facade.Capabilities(),
	})
}
