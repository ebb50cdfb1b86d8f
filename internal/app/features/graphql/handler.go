// internal/app/features/graphql/handler.go
//
// Package graphql serves the GraphQL API over HTTP. Every query and mutation
// is delegated to the resolver service; this package only adapts argument
// and result shapes and carries the request's identity, client IP, and
// session writer into the resolver context.
package graphql

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	gql "github.com/graph-gophers/graphql-go"
	"go.uber.org/zap"

	"github.com/dalemusser/voluntahub/internal/app/system/apperr"
	"github.com/dalemusser/voluntahub/internal/app/system/auth"
	"github.com/dalemusser/voluntahub/internal/app/system/limits"
	"github.com/dalemusser/voluntahub/internal/app/system/ratelimit"
)

//go:embed schema.graphql
var schemaSDL string

// Handler executes GraphQL requests against the schema.
type Handler struct {
	Schema     *gql.Schema
	SessionMgr *auth.SessionManager
	Log        *zap.Logger
}

// NewHandler parses the schema and binds it to b. sessionMgr may be nil, in
// which case login does not write a cookie session.
func NewHandler(b Backend, sessionMgr *auth.SessionManager, logger *zap.Logger) (*Handler, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	schema, err := gql.ParseSchema(schemaSDL, &rootResolver{b: b},
		gql.MaxDepth(limits.MaxGraphQLDepth),
		gql.Logger(panicLogger{log: logger}),
	)
	if err != nil {
		return nil, err
	}
	return &Handler{Schema: schema, SessionMgr: sessionMgr, Log: logger}, nil
}

// request is the standard GraphQL-over-HTTP request body.
type request struct {
	Query         string                 `json:"query"`
	OperationName string                 `json:"operationName"`
	Variables     map[string]interface{} `json:"variables"`
}

var errUnsupportedMediaType = errors.New("request body must be application/json")

// Serve handles GET and POST /graphql.
//
// POST takes a JSON body {query, operationName, variables} and must be sent
// as application/json. GET takes the same fields as URL parameters
// (variables JSON-encoded) and only runs queries. The response is always the GraphQL result object; resolver
// failures appear in "errors" with extensions.code set.
func (h *Handler) Serve(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	reqID := r.Header.Get("X-Request-ID")
	if reqID == "" {
		reqID = uuid.NewString()
	}
	w.Header().Set("X-Request-ID", reqID)

	req, err := decodeRequest(w, r)
	if err != nil {
		status := http.StatusBadRequest
		switch {
		case errors.Is(err, apperr.ErrMutationOverGet):
			status = http.StatusMethodNotAllowed
			w.Header().Set("Allow", http.MethodPost)
		case errors.Is(err, errUnsupportedMediaType):
			status = http.StatusUnsupportedMediaType
		}
		h.Log.Debug("graphql: bad request", zap.String("request_id", reqID), zap.Error(err))
		writeJSON(w, status, map[string]any{
			"errors": []map[string]string{{"message": err.Error()}},
		})
		return
	}

	ctx := h.resolverContext(w, r)
	if r.Method == http.MethodGet {
		ctx = withReadOnly(ctx)
	}
	resp := h.Schema.Exec(ctx, req.Query, req.OperationName, req.Variables)

	fields := []zap.Field{
		zap.String("request_id", reqID),
		zap.String("operation", req.OperationName),
		zap.Duration("elapsed", time.Since(start)),
	}
	if len(resp.Errors) > 0 {
		fields = append(fields, zap.Int("errors", len(resp.Errors)), zap.String("first_error", resp.Errors[0].Message))
	}
	h.Log.Debug("graphql request", fields...)

	writeJSON(w, http.StatusOK, resp)
}

// resolverContext adds what resolvers need beyond the identity that
// LoadIdentity already attached.
func (h *Handler) resolverContext(w http.ResponseWriter, r *http.Request) context.Context {
	ctx := ratelimit.WithClientIP(r.Context(), ratelimit.ClientIP(r))
	if h.SessionMgr != nil {
		ctx = h.SessionMgr.WithRequestWriter(ctx, w, r)
	}
	return ctx
}

func decodeRequest(w http.ResponseWriter, r *http.Request) (request, error) {
	var req request
	switch r.Method {
	case http.MethodPost:
		if !isJSON(r.Header.Get("Content-Type")) {
			return req, errUnsupportedMediaType
		}
		body := http.MaxBytesReader(w, r.Body, limits.MaxGraphQLBody)
		if err := json.NewDecoder(body).Decode(&req); err != nil {
			return req, errors.New("request body must be a JSON object with a query")
		}
	case http.MethodGet:
		q := r.URL.Query()
		req.Query = q.Get("query")
		req.OperationName = q.Get("operationName")
		if v := q.Get("variables"); v != "" {
			if err := json.Unmarshal([]byte(v), &req.Variables); err != nil {
				return req, errors.New("variables must be a JSON object")
			}
		}
		if selectedKind(req.Query, req.OperationName) == "mutation" {
			return req, apperr.ErrMutationOverGet
		}
	default:
		return req, errors.New("method not allowed")
	}
	if strings.TrimSpace(req.Query) == "" {
		return req, errors.New("query is required")
	}
	return req, nil
}

// isJSON reports whether a Content-Type header names application/json.
// Browsers can send other types cross-site without a CORS preflight.
func isJSON(contentType string) bool {
	mt, _, err := mime.ParseMediaType(contentType)
	return err == nil && mt == "application/json"
}

type readOnlyKey struct{}

func withReadOnly(ctx context.Context) context.Context {
	return context.WithValue(ctx, readOnlyKey{}, true)
}

// writable fails mutations on requests that may only read. GET requests are
// screened before execution; this covers documents the screen cannot
// classify.
func writable(ctx context.Context) error {
	if ro, _ := ctx.Value(readOnlyKey{}).(bool); ro {
		return apperr.ErrMutationOverGet
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// panicLogger routes resolver panics to zap instead of the standard logger.
type panicLogger struct {
	log *zap.Logger
}

func (p panicLogger) LogPanic(_ context.Context, value interface{}) {
	p.log.Error("graphql: resolver panic", zap.Any("panic", value))
}
