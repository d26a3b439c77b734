package explore

import (
	"encoding/json"
	"net/http"

	"github.com/graphql-go/graphql"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/crypto/bcrypt"

	"github.com/tagwatch/tagwatch/pkg/logging"
	"github.com/tagwatch/tagwatch/pkg/metrics"
)

// Request is a GraphQL HTTP request body.
type Request struct {
	Query         string         `json:"query"`
	Variables     map[string]any `json:"variables,omitempty"`
	OperationName string         `json:"operationName,omitempty"`
}

// Response is a GraphQL HTTP response body.
type Response struct {
	Data   any             `json:"data,omitempty"`
	Errors []ResponseError `json:"errors,omitempty"`
}

// ResponseError carries one GraphQL error message.
type ResponseError struct {
	Message string `json:"message"`
}

// Server serves the explorer API.
type Server struct {
	schema graphql.Schema
	logger logging.Logger

	// Basic auth is enabled when passwordHash is non-empty.
	user         string
	passwordHash string
}

// NewServer builds the explorer HTTP server. passwordHash is a bcrypt hash;
// when empty the server is open.
func NewServer(e *Explorer, user, passwordHash string, logger logging.Logger) (*Server, error) {
	schema, err := Schema(e)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Server{schema: schema, logger: logger, user: user, passwordHash: passwordHash}, nil
}

// Handler returns the route mux: /graphql, /metrics and /healthz.
func (s *Server) Handler(reg *metrics.Registry) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/graphql", s.requireAuth(http.HandlerFunc(s.serveGraphQL)))
	if reg != nil {
		mux.Handle("/metrics", promhttp.HandlerFor(reg.Prometheus(), promhttp.HandlerOpts{}))
	}
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	return mux
}

func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.passwordHash == "" {
			next.ServeHTTP(w, r)
			return
		}
		user, pass, ok := r.BasicAuth()
		if !ok || user != s.user ||
			bcrypt.CompareHashAndPassword([]byte(s.passwordHash), []byte(pass)) != nil {
			w.Header().Set("WWW-Authenticate", `Basic realm="tagwatch"`)
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) serveGraphQL(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	result := graphql.Do(graphql.Params{
		Schema:         s.schema,
		RequestString:  req.Query,
		VariableValues: req.Variables,
		OperationName:  req.OperationName,
		Context:        r.Context(),
	})

	resp := Response{Data: result.Data}
	if result.HasErrors() {
		resp.Errors = make([]ResponseError, len(result.Errors))
		for i, err := range result.Errors {
			resp.Errors[i] = ResponseError{Message: err.Message}
		}
	}
	json.NewEncoder(w).Encode(resp)
}
