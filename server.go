package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"gregoryjjb/ringseq/ring"
)

/////////////////////
// Response helpers

func RespondInternalServiceError(w http.ResponseWriter, err error) {
	w.WriteHeader(http.StatusInternalServerError)
	w.Write([]byte(err.Error()))
}

func RespondNotFoundError(w http.ResponseWriter, body string) {
	w.WriteHeader(http.StatusNotFound)
	if body == "" {
		body = "Not found"
	}
	RespondText(w, body)
}

func RespondBadRequest(w http.ResponseWriter, message string) {
	w.WriteHeader(http.StatusBadRequest)
	RespondText(w, message)
}

func RespondConflict(w http.ResponseWriter, message string) {
	w.WriteHeader(http.StatusConflict)
	RespondText(w, message)
}

func RespondText(w http.ResponseWriter, body string) {
	w.Write([]byte(body))
}

func RespondJSON(w http.ResponseWriter, body any) {
	RespondJSONStatus(w, http.StatusOK, body)
}

func RespondJSONStatus(w http.ResponseWriter, status int, body any) {
	data, err := json.Marshal(body)
	if err != nil {
		RespondInternalServiceError(w, err)
		return
	}
	w.Header().Add("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(data)
}

var ErrWalkTooLong = errors.New("walk too long")

// RespondError picks the status code for errors coming out of the registry
// and the rings it hosts.
func RespondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrRingNotFound):
		RespondNotFoundError(w, err.Error())
	case errors.Is(err, ErrRingExists), errors.Is(err, ring.ErrEmpty):
		RespondConflict(w, err.Error())
	case errors.Is(err, ring.ErrOutOfRange), errors.Is(err, ErrWalkTooLong):
		RespondBadRequest(w, err.Error())
	default:
		RespondInternalServiceError(w, err)
	}
}

/////////////////////
// Request helpers

func intParam(r *http.Request, key string) (int, error) {
	s := chi.URLParam(r, key)
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer, got '%s'", key, s)
	}
	return n, nil
}

func intQuery(r *http.Request, key string) (int, bool, error) {
	s := r.URL.Query().Get(key)
	if s == "" {
		return 0, false, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, true, fmt.Errorf("%s must be an integer, got '%s'", key, s)
	}
	return n, true, nil
}

func requiredInts(r *http.Request, keys ...string) ([]int, error) {
	out := make([]int, len(keys))
	for i, key := range keys {
		n, ok, err := intQuery(r, key)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("query parameter '%s' is required", key)
		}
		out[i] = n
	}
	return out, nil
}

func decodeValue(r *http.Request) (any, error) {
	var v any
	if err := json.NewDecoder(r.Body).Decode(&v); err != nil {
		return nil, fmt.Errorf("body must be a JSON value: %w", err)
	}
	return v, nil
}

func isBackward(r *http.Request) (bool, error) {
	switch dir := r.URL.Query().Get("dir"); dir {
	case "", "forward":
		return false, nil
	case "backward":
		return true, nil
	default:
		return false, fmt.Errorf("dir must be 'forward' or 'backward', got '%s'", dir)
	}
}

/////////////////////
// Payloads

type RingView struct {
	Name   string `json:"name"`
	Size   int    `json:"size"`
	Joint  bool   `json:"joint"`
	Values []any  `json:"values"`
}

type CreateRingRequest struct {
	Values []any `json:"values"`
	Joint  bool  `json:"joint"`
}

type Step struct {
	Index int `json:"index"`
	Value any `json:"value"`
}

func viewOf(name string, r *ring.Ring[any]) RingView {
	return RingView{
		Name:   name,
		Size:   r.Len(),
		Joint:  r.Joint(),
		Values: r.Slice(),
	}
}

// NewRouter serves the registry. Walks yield at most maxWalk steps.
func NewRouter(reg *Registry, maxWalk int) http.Handler {
	r := chi.NewRouter()
	r.Use(LoggerMiddleware(&log.Logger))

	r.Get("/rings", func(w http.ResponseWriter, r *http.Request) {
		RespondJSON(w, reg.Names())
	})

	r.Route("/rings/{name}", func(r chi.Router) {
		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			name := chi.URLParam(r, "name")
			var view RingView
			err := reg.View(name, func(rg *ring.Ring[any]) error {
				view = viewOf(name, rg)
				return nil
			})
			if err != nil {
				RespondError(w, err)
				return
			}
			RespondJSON(w, view)
		})

		r.Put("/", func(w http.ResponseWriter, r *http.Request) {
			name := chi.URLParam(r, "name")
			var req CreateRingRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				RespondBadRequest(w, err.Error())
				return
			}
			if err := reg.Create(name, req.Values, req.Joint); err != nil {
				RespondError(w, err)
				return
			}
			// Reply with the ring as created, even if it has changed since.
			RespondJSONStatus(w, http.StatusCreated, viewOf(name, ring.New(req.Values, req.Joint)))
		})

		r.Delete("/", func(w http.ResponseWriter, r *http.Request) {
			if err := reg.Delete(chi.URLParam(r, "name")); err != nil {
				RespondError(w, err)
				return
			}
			w.WriteHeader(http.StatusNoContent)
		})

		r.Get("/at/{pos}", func(w http.ResponseWriter, r *http.Request) {
			pos, err := intParam(r, "pos")
			if err != nil {
				RespondBadRequest(w, err.Error())
				return
			}
			var step Step
			err = reg.View(chi.URLParam(r, "name"), func(rg *ring.Ring[any]) error {
				k, err := rg.Normalize(pos)
				if err != nil {
					return err
				}
				v, err := rg.Slot(k)
				step = Step{Index: k, Value: v}
				return err
			})
			if err != nil {
				RespondError(w, err)
				return
			}
			RespondJSON(w, step)
		})

		r.Put("/at/{pos}", func(w http.ResponseWriter, r *http.Request) {
			pos, err := intParam(r, "pos")
			if err != nil {
				RespondBadRequest(w, err.Error())
				return
			}
			v, err := decodeValue(r)
			if err != nil {
				RespondBadRequest(w, err.Error())
				return
			}
			err = reg.Update(chi.URLParam(r, "name"), "set", &pos, func(rg *ring.Ring[any]) error {
				return rg.SetAt(pos, v)
			})
			if err != nil {
				RespondError(w, err)
				return
			}
			w.WriteHeader(http.StatusNoContent)
		})

		r.Post("/at/{pos}", func(w http.ResponseWriter, r *http.Request) {
			pos, err := intParam(r, "pos")
			if err != nil {
				RespondBadRequest(w, err.Error())
				return
			}
			v, err := decodeValue(r)
			if err != nil {
				RespondBadRequest(w, err.Error())
				return
			}
			var size int
			err = reg.Update(chi.URLParam(r, "name"), "insert", &pos, func(rg *ring.Ring[any]) error {
				err := rg.InsertAt(pos, v)
				size = rg.Len()
				return err
			})
			if err != nil {
				RespondError(w, err)
				return
			}
			RespondJSON(w, map[string]int{"size": size})
		})

		r.Delete("/at/{pos}", func(w http.ResponseWriter, r *http.Request) {
			pos, err := intParam(r, "pos")
			if err != nil {
				RespondBadRequest(w, err.Error())
				return
			}
			var removed any
			var size int
			err = reg.Update(chi.URLParam(r, "name"), "remove", &pos, func(rg *ring.Ring[any]) error {
				v, err := rg.RemoveAt(pos)
				removed, size = v, rg.Len()
				return err
			})
			if err != nil {
				RespondError(w, err)
				return
			}
			RespondJSON(w, map[string]any{"value": removed, "size": size})
		})

		r.Get("/index/{pos}", func(w http.ResponseWriter, r *http.Request) {
			pos, err := intParam(r, "pos")
			if err != nil {
				RespondBadRequest(w, err.Error())
				return
			}
			var out map[string]int
			err = reg.View(chi.URLParam(r, "name"), func(rg *ring.Ring[any]) error {
				k, err := rg.LocateByPosition(pos)
				if err != nil {
					return err
				}
				next, _ := rg.NextIndex(pos)
				prev, _ := rg.PrevIndex(pos)
				out = map[string]int{"index": k, "next": next, "prev": prev}
				return nil
			})
			if err != nil {
				RespondError(w, err)
				return
			}
			RespondJSON(w, out)
		})

		grow := func(op string, fn func(rg *ring.Ring[any], v any) int) http.HandlerFunc {
			return func(w http.ResponseWriter, r *http.Request) {
				v, err := decodeValue(r)
				if err != nil {
					RespondBadRequest(w, err.Error())
					return
				}
				var n int
				err = reg.Update(chi.URLParam(r, "name"), op, nil, func(rg *ring.Ring[any]) error {
					n = fn(rg, v)
					return nil
				})
				if err != nil {
					RespondError(w, err)
					return
				}
				RespondJSON(w, map[string]int{"size": n})
			}
		}

		r.Post("/append", grow("append", func(rg *ring.Ring[any], v any) int {
			rg.Append(v)
			return rg.Len()
		}))
		r.Post("/prepend", grow("prepend", func(rg *ring.Ring[any], v any) int {
			rg.Prepend(v)
			return rg.Len()
		}))
		r.Post("/unshift", grow("unshift", func(rg *ring.Ring[any], v any) int {
			// Physical length, joint slot included.
			return rg.UnshiftFirst(v)
		}))

		shrink := func(op string, fn func(rg *ring.Ring[any]) (any, error)) http.HandlerFunc {
			return func(w http.ResponseWriter, r *http.Request) {
				var v any
				var size int
				err := reg.Update(chi.URLParam(r, "name"), op, nil, func(rg *ring.Ring[any]) error {
					var err error
					v, err = fn(rg)
					size = rg.Len()
					return err
				})
				if err != nil {
					RespondError(w, err)
					return
				}
				RespondJSON(w, map[string]any{"value": v, "size": size})
			}
		}

		r.Post("/pop", shrink("pop", (*ring.Ring[any]).PopLast))
		r.Post("/shift", shrink("shift", (*ring.Ring[any]).ShiftFirst))

		r.Get("/walk", func(w http.ResponseWriter, r *http.Request) {
			backward, err := isBackward(r)
			if err != nil {
				RespondBadRequest(w, err.Error())
				return
			}
			from, hasFrom, err := intQuery(r, "from")
			if err != nil {
				RespondBadRequest(w, err.Error())
				return
			}
			to, hasTo, err := intQuery(r, "to")
			if err != nil {
				RespondBadRequest(w, err.Error())
				return
			}
			count, hasCount, err := intQuery(r, "count")
			if err != nil {
				RespondBadRequest(w, err.Error())
				return
			}
			if !hasFrom || hasTo == hasCount {
				RespondBadRequest(w, "walk needs 'from' and exactly one of 'to' or 'count'")
				return
			}
			if hasCount && count > maxWalk {
				RespondBadRequest(w, fmt.Sprintf("count must not exceed %d, got %d", maxWalk, count))
				return
			}

			steps := []Step{}
			err = reg.View(chi.URLParam(r, "name"), func(rg *ring.Ring[any]) error {
				var c *ring.Cursor[any]
				switch {
				case hasTo && backward:
					c = rg.BackwardRange(from, to)
				case hasTo:
					c = rg.ForwardRange(from, to)
				case backward:
					c = rg.BackwardCount(from, count)
				default:
					c = rg.ForwardCount(from, count)
				}
				if c.Remaining() > maxWalk {
					return fmt.Errorf("walk of %d steps: %w", c.Remaining(), ErrWalkTooLong)
				}
				for i, v := range c.All() {
					if err := r.Context().Err(); err != nil {
						return err
					}
					steps = append(steps, Step{Index: i, Value: v})
				}
				return c.Err()
			})
			if err != nil {
				RespondError(w, err)
				return
			}
			RespondJSON(w, steps)
		})

		r.Get("/distance", func(w http.ResponseWriter, r *http.Request) {
			backward, err := isBackward(r)
			if err != nil {
				RespondBadRequest(w, err.Error())
				return
			}
			args, err := requiredInts(r, "from", "to")
			if err != nil {
				RespondBadRequest(w, err.Error())
				return
			}
			var d int
			err = reg.View(chi.URLParam(r, "name"), func(rg *ring.Ring[any]) error {
				var err error
				if backward {
					d, err = rg.BackwardDistance(args[0], args[1])
				} else {
					d, err = rg.ForwardDistance(args[0], args[1])
				}
				return err
			})
			if err != nil {
				RespondError(w, err)
				return
			}
			RespondJSON(w, map[string]int{"distance": d})
		})

		r.Get("/neighbours", func(w http.ResponseWriter, r *http.Request) {
			args, err := requiredInts(r, "a", "b")
			if err != nil {
				RespondBadRequest(w, err.Error())
				return
			}
			var ok bool
			err = reg.View(chi.URLParam(r, "name"), func(rg *ring.Ring[any]) error {
				var err error
				ok, err = rg.AreNeighbours(args[0], args[1])
				return err
			})
			if err != nil {
				RespondError(w, err)
				return
			}
			RespondJSON(w, map[string]bool{"neighbours": ok})
		})

		r.Get("/locate", func(w http.ResponseWriter, r *http.Request) {
			q := r.URL.Query()
			raw := q.Get("value")
			var value any
			if err := json.Unmarshal([]byte(raw), &value); err != nil {
				// Bare words are looked up as strings.
				value = raw
			}
			strict, _ := strconv.ParseBool(q.Get("strict"))

			index, found := -1, false
			err := reg.View(chi.URLParam(r, "name"), func(rg *ring.Ring[any]) error {
				index, found = rg.Locate(value, strict)
				return nil
			})
			if err != nil {
				RespondError(w, err)
				return
			}
			RespondJSON(w, map[string]any{"index": index, "found": found})
		})
	})

	r.Get("/events", func(w http.ResponseWriter, r *http.Request) {
		RespondJSON(w, reg.History())
	})

	r.Get("/ws", createWebsocketHandler(reg))

	return r
}

// StartServer serves until ctx is cancelled, then shuts down gracefully.
func StartServer(ctx context.Context, config *Config, reg *Registry) error {
	srv := &http.Server{
		Addr:              config.Address(),
		Handler:           NewRouter(reg, config.MaxWalk),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		log.Info().Str("listen", srv.Addr).Msg("launching server")
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
