/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/Seednode/turnroom/rooms"
	"github.com/julienschmidt/httprouter"
	"github.com/rs/cors"
	"github.com/rs/zerolog/log"
)

const (
	logDate string        = `2006-01-02T15:04:05.000-07:00`
	timeout time.Duration = 10 * time.Second
)

func securityHeaders(cfg *Config, w http.ResponseWriter) {
	w.Header().Set("Cross-Origin-Opener-Policy", "same-origin")
	w.Header().Set("Cross-Origin-Resource-Policy", "same-site")
	w.Header().Set("Permissions-Policy", "geolocation=(), midi=(), sync-xhr=(), microphone=(), camera=(), magnetometer=(), gyroscope=(), fullscreen=(), payment=()")
	w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("Content-Security-Policy", "default-src 'self'")

	if cfg.scheme() == "https" {
		w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains; preload")
	}
}

func realIP(r *http.Request) string {
	host, port, _ := net.SplitHostPort(r.RemoteAddr)
	if ip := r.Header.Get("CF-Connecting-IP"); ip != "" {
		if net.ParseIP(ip) != nil {
			host = ip
		}
	} else if ip := r.Header.Get("X-Real-IP"); ip != "" {
		if net.ParseIP(ip) != nil {
			host = ip
		}
	}
	if net.ParseIP(host) != nil && strings.Contains(host, ":") {
		host = "[" + host + "]"
	}
	if port != "" {
		return host + ":" + port
	}
	return host
}

// humanReadableSize formats n bytes with decimal units.
func humanReadableSize(n int64) string {
	const units = "kMGTPE"

	if n < 1000 {
		return fmt.Sprintf("%d B", n)
	}

	v, i := float64(n)/1000, 0
	for v >= 1000 && i < len(units)-1 {
		v /= 1000
		i++
	}

	return fmt.Sprintf("%.1f %cB", v, units[i])
}

func writeJSON(w http.ResponseWriter, status int, v any) error {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)

	return json.NewEncoder(w).Encode(v)
}

// serveRoomList answers with every room, whatever its phase.
func serveRoomList(cfg *Config, lists *rooms.Broadcaster, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		securityHeaders(cfg, w)

		if err := writeJSON(w, http.StatusOK, lists.Query()); err != nil {
			errs <- err
		}
	}
}

func serveRoom(cfg *Config, reg *rooms.Registry, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		securityHeaders(cfg, w)

		room, ok := reg.Get(ps.ByName("room"))
		if !ok {
			err := writeJSON(w, http.StatusNotFound, rooms.NewErrorMessage(rooms.ErrUnknownRoom))
			if err != nil {
				errs <- err
			}
			return
		}

		if err := writeJSON(w, http.StatusOK, room.Info().Summary()); err != nil {
			errs <- err
		}
	}
}

// serveNewRoom creates a room under a random name and redirects to it.
func serveNewRoom(cfg *Config, s *Server) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		room, err := s.registry.CreateRandom()
		if err != nil {
			http.Error(w, "could not create room", http.StatusInternalServerError)
			return
		}

		log.Info().Str("room", room.Name()).Str("ip", realIP(r)).Msg("created room")
		s.pushRoomList(room.Info())

		http.Redirect(w, r, cfg.prefix+"/rooms/"+url.PathEscape(room.Name()), http.StatusSeeOther)
	}
}

func newRouter(cfg *Config, s *Server, errs chan<- error) http.Handler {
	mux := httprouter.New()

	mux.PanicHandler = func(w http.ResponseWriter, r *http.Request, i any) {
		log.Error().Interface("panic", i).Str("path", r.URL.Path).Msg("recovered from panic")

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		securityHeaders(cfg, w)
		w.WriteHeader(http.StatusInternalServerError)

		io.WriteString(w, newPage("Server Error", "An error has occurred. Please try again."))
	}

	mux.GET(cfg.prefix+"/", serveHomePage(cfg, s.registry, errs))

	mux.GET(cfg.prefix+"/healthz", serveHealthCheck(cfg, errs))

	mux.GET(cfg.prefix+"/robots.txt", serveRobots(cfg, errs))

	mux.GET(cfg.prefix+"/version", serveVersion(cfg, errs))

	mux.GET(cfg.prefix+"/new", serveNewRoom(cfg, s))

	mux.GET(cfg.prefix+"/rooms", serveRoomList(cfg, s.lists, errs))

	mux.GET(cfg.prefix+"/rooms/:room", serveRoom(cfg, s.registry, errs))

	mux.GET(cfg.prefix+"/rooms/:room/ws", serveRoomWS(s))

	mux.GET(cfg.prefix+"/rooms/:room/qr", serveRoomQR(cfg, s.registry, errs))

	mux.GET(cfg.prefix+"/lobby/ws", serveLobbyWS(s))

	if cfg.profile {
		registerProfileHandlers(cfg, mux)
	}

	c := cors.New(cors.Options{
		AllowedOrigins: cfg.corsOrigins,
		AllowedMethods: []string{http.MethodHead, http.MethodGet},
	})

	return c.Handler(mux)
}

func logErrors(ctx context.Context, errs <-chan error) {
	for {
		select {
		case <-ctx.Done():
			return
		case err := <-errs:
			log.Warn().Err(err).Msg("response write failed")
		}
	}
}

func ServePage(ctx context.Context, cfg *Config, args []string) error {
	var err error

	timeZone := os.Getenv("TZ")
	if timeZone != "" {
		time.Local, err = time.LoadLocation(timeZone)
		if err != nil {
			return err
		}
	}

	log.Info().Str("version", releaseVersion).Msg("starting turnroom")

	events, err := newEventPublisher(cfg)
	if err != nil {
		return err
	}
	defer events.Close()

	opts := append(cfg.registryOptions(), rooms.WithLogger(log.Logger.With().Str("component", "rooms").Logger()))
	reg := rooms.NewRegistry(opts...)

	if cfg.roomsFile != "" {
		names, err := loadPinnedRooms(cfg.roomsFile)
		if err != nil {
			return err
		}
		if err := seedRooms(reg, names); err != nil {
			return err
		}

		log.Info().Int("rooms", len(names)).Str("file", cfg.roomsFile).Msg("loaded pinned rooms")
	}

	s := newServer(cfg, reg, events)

	go reg.Run(ctx, cfg.roomTimeout, s.roomsReaped)

	errs := make(chan error, 64)
	go logErrors(ctx, errs)

	cfg.prefix = strings.TrimSuffix(cfg.prefix, "/")

	srv := &http.Server{
		Addr:              net.JoinHostPort(cfg.bind, strconv.Itoa(cfg.port)),
		Handler:           newRouter(cfg, s, errs),
		IdleTimeout:       10 * time.Minute,
		ReadTimeout:       timeout,
		ReadHeaderTimeout: timeout,
		WriteTimeout:      timeout,
	}

	go func() {
		var err error

		log.Info().Str("url", cfg.scheme()+"://"+srv.Addr+cfg.prefix+"/").Msg("listening")

		if cfg.tlsKey != "" && cfg.tlsCert != "" {
			err = srv.ListenAndServeTLS(cfg.tlsCert, cfg.tlsKey)
		} else {
			err = srv.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("server failed")
		}
	}()

	<-ctx.Done()

	log.Info().Msg("shutting down")

	s.closeAll()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)

	return nil
}
