/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"net/http"
	"net/url"
	"time"

	"github.com/Seednode/turnroom/rooms"
	"github.com/julienschmidt/httprouter"
	"github.com/rs/zerolog/log"
	"github.com/skip2/go-qrcode"
)

const qrSize = 320

// serveRoomQR renders a PNG QR code pointing at the room's page, so a phone
// camera can open it and join the same room.
func serveRoomQR(cfg *Config, reg *rooms.Registry, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		startTime := time.Now()

		securityHeaders(cfg, w)

		name := ps.ByName("room")
		if _, ok := reg.Get(name); !ok {
			err := writeJSON(w, http.StatusNotFound, rooms.NewErrorMessage(rooms.ErrUnknownRoom))
			if err != nil {
				errs <- err
			}
			return
		}

		link := roomURL(cfg, r, name)

		png, err := qrcode.Encode(link, qrcode.Medium, qrSize)
		if err != nil {
			http.Error(w, "qr generation failed", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "image/png")

		written, err := w.Write(png)
		if err != nil {
			errs <- err

			return
		}

		log.Debug().
			Str("url", link).
			Str("size", humanReadableSize(int64(written))).
			Str("ip", realIP(r)).
			Dur("elapsed", time.Since(startTime).Round(time.Microsecond)).
			Msg("served room QR code")
	}
}

// roomURL is the address of the room's page as seen by the client that
// asked, honouring a TLS-terminating proxy in front of us.
func roomURL(cfg *Config, r *http.Request, name string) string {
	scheme := "http"
	if r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https" {
		scheme = "https"
	}

	return scheme + "://" + r.Host + cfg.prefix + "/rooms/" + url.PathEscape(name)
}
