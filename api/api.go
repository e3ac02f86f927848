// Package api exposes the ledger façade over HTTP as JSON routes on a
// gorilla/mux router. Amounts travel as decimal strings; errors are
// {"error": code, "message": text} with the status given by StatusFor.
package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	ledger "github.com/zkrune/tokenledger"
	"github.com/zkrune/tokenledger/id"
)

// maxBodyBytes bounds request bodies. Template nodes and edges are the
// largest payloads.
const maxBodyBytes = 4 << 20

// API serves the ledger over HTTP.
type API struct {
	ledger *ledger.Ledger
	logger *slog.Logger
}

// Option configures an API.
type Option func(*API)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(a *API) { a.logger = logger }
}

// New creates an API over l.
func New(l *ledger.Ledger, opts ...Option) *API {
	a := &API{ledger: l, logger: slog.Default()}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Handler returns a router with every ledger route mounted at the root.
func (a *API) Handler() http.Handler {
	r := mux.NewRouter()
	a.RegisterRoutes(r)
	return r
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// StatusFor maps a ledger error to its HTTP status.
func StatusFor(err error) int {
	switch ledger.ErrorCode(err) {
	case ledger.CodeInvalidAmount, ledger.CodeInvalidLockPeriod,
		ledger.CodeInvalidRating, ledger.CodeInvalidInput:
		return http.StatusBadRequest
	case ledger.CodeNotFound, ledger.CodeProposalNotFound:
		return http.StatusNotFound
	case ledger.CodeAlreadyVoted, ledger.CodeAlreadyOwned, ledger.CodeAlreadyInactive:
		return http.StatusConflict
	case ledger.CodeInsufficientTokens, ledger.CodeVotingClosed, ledger.CodeNotOwned,
		ledger.CodeNothingToClaim, ledger.CodeInactive:
		return http.StatusUnprocessableEntity
	case ledger.CodeUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (a *API) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		a.logger.Warn("api: failed to write response", "error", err)
	}
}

func (a *API) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := StatusFor(err)
	if status >= http.StatusInternalServerError {
		a.logger.Error("api: request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"error", err,
		)
	}
	a.writeJSON(w, status, ErrorResponse{
		Error:   ledger.ErrorCode(err),
		Message: err.Error(),
	})
}

// decode reads a JSON body into v, rejecting unknown fields.
func decode(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return ledger.ValidationError{Field: "body", Message: "request body is empty"}
		}
		return ledger.ValidationError{Field: "body", Message: err.Error()}
	}
	return nil
}

// pathID parses the {name} route variable with the given ID parser.
func pathID(r *http.Request, name string, parse func(string) (id.ID, error)) (id.ID, error) {
	raw := mux.Vars(r)[name]
	parsed, err := parse(raw)
	if err != nil {
		return id.ID{}, ledger.ValidationError{Field: name, Message: "malformed id " + strconv.Quote(raw)}
	}
	return parsed, nil
}

// queryInt reads a non-negative integer query parameter.
func queryInt(r *http.Request, name string) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, ledger.ValidationError{Field: name, Message: "must be a non-negative integer"}
	}
	return n, nil
}

// queryBool reads an optional boolean query parameter.
func queryBool(r *http.Request, name string) (*bool, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return nil, ledger.ValidationError{Field: name, Message: "must be a boolean"}
	}
	return &b, nil
}

// paging reads limit and offset.
func paging(r *http.Request) (limit, offset int, err error) {
	if limit, err = queryInt(r, "limit"); err != nil {
		return 0, 0, err
	}
	if offset, err = queryInt(r, "offset"); err != nil {
		return 0, 0, err
	}
	return limit, offset, nil
}

func (a *API) health(w http.ResponseWriter, r *http.Request) {
	if err := a.ledger.Store().Ping(r.Context()); err != nil {
		a.writeError(w, r, errors.Join(ledger.ErrStoreUnavailable, err))
		return
	}
	a.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
