package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/hazyhaar/plotmap/mapview"
)

// maxBodyBytes bounds every request body; the largest is an edit draft.
const maxBodyBytes = 64 << 10

func newRouter(svc *mapview.Service) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.GetHead)
	r.Use(middleware.RequestSize(maxBodyBytes))
	r.Use(securityHeaders)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, 200, map[string]string{"status": "ok"})
	})

	serveSVG := func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/svg+xml")
		w.Header().Set("Cache-Control", "no-store")
		if err := svc.WriteSVG(w); err != nil {
			requestLogger(r).Warn("write svg", "error", err)
		}
	}
	r.Get("/", serveSVG)
	r.Get("/map.svg", serveSVG)

	r.Route("/api", func(r chi.Router) {
		r.Get("/view", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, 200, svc.View())
		})

		r.Get("/stats", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, 200, svc.Stats())
		})

		r.Post("/refresh", func(w http.ResponseWriter, r *http.Request) {
			out := svc.Refresh(r.Context())
			writeJSON(w, 200, map[string]any{"outcome": out, "view": svc.View()})
		})

		r.Post("/select/{id}", func(w http.ResponseWriter, r *http.Request) {
			id := chi.URLParam(r, "id")
			if !svc.Select(id) {
				writeError(w, 404, fmt.Errorf("%w: %s", mapview.ErrUnknownPlot, id))
				return
			}
			writeJSON(w, 200, svc.View())
		})

		r.Delete("/select", func(w http.ResponseWriter, _ *http.Request) {
			svc.ClearSelection()
			writeJSON(w, 200, svc.View())
		})

		r.Post("/activate", func(w http.ResponseWriter, r *http.Request) {
			var req struct {
				X float64 `json:"x"`
				Y float64 `json:"y"`
			}
			if !decodeJSON(w, r, &req) {
				return
			}
			id, ok := svc.ActivateAt(req.X, req.Y)
			if !ok {
				writeJSON(w, 200, map[string]any{"hit": false})
				return
			}
			writeJSON(w, 200, map[string]any{"hit": true, "plot_id": id, "view": svc.View()})
		})

		r.Post("/zoom", func(w http.ResponseWriter, r *http.Request) {
			var req struct {
				Action string  `json:"action"`
				Factor float64 `json:"factor"`
			}
			if !decodeJSON(w, r, &req) {
				return
			}
			switch req.Action {
			case "in":
				svc.ZoomIn()
			case "out":
				svc.ZoomOut()
			case "reset":
				svc.ResetZoom()
			case "set":
				svc.SetZoom(req.Factor)
			default:
				writeError(w, 400, fmt.Errorf("unknown zoom action %q", req.Action))
				return
			}
			writeJSON(w, 200, svc.View())
		})

		r.Post("/wheel", func(w http.ResponseWriter, r *http.Request) {
			var ev mapview.WheelEvent
			if !decodeJSON(w, r, &ev) {
				return
			}
			writeJSON(w, 200, svc.Wheel(ev))
		})

		r.Post("/scroll", func(w http.ResponseWriter, r *http.Request) {
			var p mapview.Point
			if !decodeJSON(w, r, &p) {
				return
			}
			writeJSON(w, 200, svc.SetScroll(p.X, p.Y))
		})

		r.Post("/edit-mode", func(w http.ResponseWriter, r *http.Request) {
			var req struct {
				On bool `json:"on"`
			}
			if !decodeJSON(w, r, &req) {
				return
			}
			svc.SetEditMode(req.On)
			writeJSON(w, 200, svc.View())
		})

		r.Route("/edit", func(r chi.Router) {
			r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
				d, ok := svc.CurrentDraft()
				if !ok {
					writeError(w, 404, mapview.ErrNoDraft)
					return
				}
				writeJSON(w, 200, d)
			})

			r.Post("/commit", func(w http.ResponseWriter, r *http.Request) {
				var d mapview.Draft
				if !decodeJSON(w, r, &d) {
					return
				}
				p, err := svc.CommitEdit(r.Context(), d)
				if err != nil {
					writeError(w, editStatus(err), err)
					return
				}
				writeJSON(w, 200, p)
			})

			r.Post("/cancel", func(w http.ResponseWriter, _ *http.Request) {
				svc.CancelEdit()
				writeJSON(w, 200, map[string]string{"status": "cancelled"})
			})

			r.Post("/{id}", func(w http.ResponseWriter, r *http.Request) {
				id := chi.URLParam(r, "id")
				d, ok := svc.BeginEdit(id)
				if !ok {
					writeError(w, 404, fmt.Errorf("%w: %s", mapview.ErrUnknownPlot, id))
					return
				}
				writeJSON(w, 200, d)
			})
		})

		r.Get("/history", func(w http.ResponseWriter, r *http.Request) {
			list, err := svc.FetchHistory(r.Context(), queryInt(r, "limit", 50))
			if err != nil {
				writeError(w, historyStatus(err), err)
				return
			}
			writeJSON(w, 200, list)
		})

		r.Get("/edits", func(w http.ResponseWriter, r *http.Request) {
			list, err := svc.EditHistory(r.Context(), r.URL.Query().Get("plot_id"), queryInt(r, "limit", 50))
			if err != nil {
				writeError(w, historyStatus(err), err)
				return
			}
			writeJSON(w, 200, list)
		})

		r.Get("/snapshots", func(w http.ResponseWriter, r *http.Request) {
			list, err := svc.Snapshots(r.Context(), queryInt(r, "limit", 20))
			if err != nil {
				writeError(w, historyStatus(err), err)
				return
			}
			writeJSON(w, 200, list)
		})

		r.Get("/snapshots/{fingerprint}", func(w http.ResponseWriter, r *http.Request) {
			snap, plots, err := svc.Snapshot(r.Context(), chi.URLParam(r, "fingerprint"))
			if err != nil {
				writeError(w, historyStatus(err), err)
				return
			}
			writeJSON(w, 200, map[string]any{"snapshot": snap, "plots": plots})
		})

		r.Get("/snapshots/{fingerprint}/svg", func(w http.ResponseWriter, r *http.Request) {
			var buf bytes.Buffer
			if err := svc.WriteSnapshotSVG(r.Context(), &buf, chi.URLParam(r, "fingerprint")); err != nil {
				writeError(w, historyStatus(err), err)
				return
			}
			w.Header().Set("Content-Type", "image/svg+xml")
			w.Write(buf.Bytes())
		})
	})

	return r
}

func editStatus(err error) int {
	switch {
	case errors.Is(err, mapview.ErrInvalidEdit):
		return 422
	case errors.Is(err, mapview.ErrUnknownPlot):
		return 404
	case errors.Is(err, mapview.ErrNoDraft):
		return 409
	default:
		return 500
	}
}

func historyStatus(err error) int {
	if errors.Is(err, mapview.ErrHistoryDisabled) || errors.Is(err, mapview.ErrSnapshotNotFound) {
		return 404
	}
	return 500
}

// decodeJSON reports 413 when the body hit the RequestSize cap and 400
// for anything else that fails to decode.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	err := json.NewDecoder(r.Body).Decode(v)
	if err == nil {
		return true
	}
	var tooBig *http.MaxBytesError
	if errors.As(err, &tooBig) {
		writeError(w, http.StatusRequestEntityTooLarge, err)
		return false
	}
	writeError(w, 400, err)
	return false
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}

func queryInt(r *http.Request, key string, def int) int {
	s := r.URL.Query().Get(key)
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return def
	}
	return n
}
