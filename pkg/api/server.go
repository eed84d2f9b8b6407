// Package api exposes the infographic service over HTTP: generation, the type catalog,
// the advisory suitability check and visual recommendations, health and Prometheus metrics.
package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	humachi "github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"illustrator/pkg/app"
	"illustrator/pkg/generator"
	"illustrator/pkg/logx"
	"illustrator/pkg/router"
)

// DefaultBasePath prefixes the service operations.
const DefaultBasePath = "/api/ai/illustrator"

// Version is reported in the OpenAPI document.
const Version = "1.0.0"

// Config for the HTTP handler.
type Config struct {
	App      *app.Context
	BasePath string
}

// apiError is the envelope for requests rejected before reaching the router, shaped
// like a failed GenerateResponse.
type apiError struct {
	status  int
	Success bool                `json:"success"`
	Info    generator.ErrorInfo `json:"error"`
}

func (e *apiError) GetStatus() int { return e.status }
func (e *apiError) Error() string  { return e.Info.Message }

func newAPIError(status int, code, message string) huma.StatusError {
	if code == "" {
		code = defaultCodeForStatus(status)
	}
	return &apiError{
		status: status,
		Info:   generator.ErrorInfo{Code: code, Message: message, Retryable: status >= http.StatusInternalServerError},
	}
}

func defaultCodeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return generator.CodeConstraintViolation
	case http.StatusNotFound:
		return "NOT_FOUND"
	case http.StatusBadGateway:
		return generator.CodeGenerationFailed
	case http.StatusInternalServerError:
		return generator.CodeInternal
	default:
		return strings.ToUpper(strings.ReplaceAll(http.StatusText(status), " ", "_"))
	}
}

// StatusFor maps a public error code to an HTTP status.
func StatusFor(code string) int {
	switch code {
	case generator.CodeConstraintViolation:
		return http.StatusBadRequest
	case generator.CodeTemplateNotFound:
		return http.StatusNotFound
	case generator.CodeGenerationFailed:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// New returns the HTTP handler.
func New(cfg Config) http.Handler {
	basePath := cfg.BasePath
	if basePath == "" {
		basePath = DefaultBasePath
	}
	if !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}
	logger := logx.NewLogger("api")

	huma.DefaultArrayNullable = false
	huma.NewError = func(status int, msg string, errs ...error) huma.StatusError {
		return newAPIError(status, "", withDetails(msg, errs))
	}
	huma.NewErrorWithContext = func(_ huma.Context, status int, msg string, errs ...error) huma.StatusError {
		if status == http.StatusUnprocessableEntity {
			status = http.StatusBadRequest
		}
		return newAPIError(status, "", withDetails(msg, errs))
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(logger))
	r.Use(middleware.Recoverer)

	hcfg := huma.DefaultConfig("Illustrator API", Version)
	hcfg.OpenAPIPath = "/openapi"
	api := humachi.New(r, hcfg)
	group := huma.NewGroup(api, basePath)

	a := cfg.App
	registerGenerate(group, a)
	registerTypes(group, a)
	registerCanHandle(group, a)
	registerRecommend(group, a, basePath)
	registerHealth(api, a)
	registerLogs(api)
	if a.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(a.Gatherer, promhttp.HandlerOpts{}))
	}
	return r
}

func withDetails(msg string, errs []error) string {
	if len(errs) == 0 {
		return msg
	}
	parts := make([]string, 0, len(errs))
	for _, err := range errs {
		if err != nil {
			parts = append(parts, err.Error())
		}
	}
	return msg + ": " + strings.Join(parts, "; ")
}

// requestLogger tags the context with the request ID for logx.Debug and logs each
// finished request.
func requestLogger(logger *logx.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ctx := r.Context()
			if id := middleware.GetReqID(ctx); id != "" {
				ctx = context.WithValue(ctx, logx.ContextKeyRequestID, id)
			}
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))
			logger.Debug("%s %s -> %d (%s)", r.Method, r.URL.Path, ww.Status(), time.Since(start).Round(time.Millisecond))
		})
	}
}

type generateInput struct {
	Body GenerateRequest
}

type generateOutput struct {
	Status int
	Body   GenerateResponse
}

func registerGenerate(api huma.API, a *app.Context) {
	huma.Register(api, huma.Operation{
		OperationID: "generate",
		Method:      http.MethodPost,
		Path:        "/generate",
		Summary:     "Generate an infographic",
		Tags:        []string{"generation"},
	}, func(ctx context.Context, input *generateInput) (*generateOutput, error) {
		req := input.Body.toRequest()
		logx.DebugFlow(ctx, "api", "generate", "start", req.Type)
		res := a.Router.Route(ctx, req)
		status := http.StatusOK
		if !res.Success {
			status = StatusFor(res.Error.Code)
			logx.DebugFlow(ctx, "api", "generate", "failed", res.Error.Code)
		}
		return &generateOutput{Status: status, Body: generateResponse(&res)}, nil
	})
}

type typesOutput struct {
	Body TypesResponse
}

type describeInput struct {
	Type  string `path:"type" doc:"Infographic type"`
	Roles bool   `query:"roles" doc:"Include the field roles of every structural size"`
}

type describeOutput struct {
	Body router.TypeInfo
}

func registerTypes(api huma.API, a *app.Context) {
	huma.Register(api, huma.Operation{
		OperationID: "list-types",
		Method:      http.MethodGet,
		Path:        "/types",
		Summary:     "List infographic types",
		Tags:        []string{"catalog"},
	}, func(_ context.Context, _ *struct{}) (*typesOutput, error) {
		types := a.Router.Types()
		resp := TypesResponse{Types: types, Count: len(types), TemplateTypes: []string{}, VectorTypes: []string{}}
		for _, t := range types {
			switch {
			case a.Router.IsVectorType(t.ID):
				resp.VectorTypes = append(resp.VectorTypes, t.ID)
			case a.Router.IsTemplateType(t.ID):
				resp.TemplateTypes = append(resp.TemplateTypes, t.ID)
			}
		}
		return &typesOutput{Body: resp}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "describe-type",
		Method:      http.MethodGet,
		Path:        "/types/{type}",
		Summary:     "Describe one infographic type",
		Tags:        []string{"catalog"},
	}, func(_ context.Context, input *describeInput) (*describeOutput, error) {
		info, ok := a.Router.Describe(input.Type, input.Roles)
		if !ok {
			return nil, newAPIError(http.StatusNotFound, "", "Unknown infographic type: "+input.Type)
		}
		return &describeOutput{Body: info}, nil
	})
}

type canHandleInput struct {
	Analysis bool `query:"analysis" doc:"Include the per-type score breakdown"`
	Body     CanHandleRequest
}

type canHandleOutput struct {
	Body CanHandleResponse
}

func registerCanHandle(api huma.API, a *app.Context) {
	huma.Register(api, huma.Operation{
		OperationID: "can-handle",
		Method:      http.MethodPost,
		Path:        "/can-handle",
		Summary:     "Rate how well content suits an infographic",
		Tags:        []string{"suitability"},
	}, func(_ context.Context, input *canHandleInput) (*canHandleOutput, error) {
		in := input.Body
		resp := CanHandleResponse{Verdict: a.Scorer.Score(in.Content, in.Hints, in.Space)}
		if input.Analysis {
			analysis := a.Scorer.Analyze(in.Content, in.Hints)
			resp.Analysis = &analysis
		}
		return &canHandleOutput{Body: resp}, nil
	})
}

type recommendInput struct {
	Body RecommendRequest
}

type recommendOutput struct {
	Body RecommendResponse
}

func registerRecommend(api huma.API, a *app.Context, basePath string) {
	huma.Register(api, huma.Operation{
		OperationID: "recommend-visual",
		Method:      http.MethodPost,
		Path:        "/recommend-visual",
		Summary:     "Recommend infographic types for content",
		Tags:        []string{"suitability"},
	}, func(_ context.Context, input *recommendInput) (*recommendOutput, error) {
		in := input.Body
		recs := a.Scorer.Recommend(in.Content, in.Space, in.Preferences)
		for i := range recs.Recommended {
			recs.Recommended[i].GenerationEndpoint = basePath + "/generate"
		}
		return &recommendOutput{Body: RecommendResponse{Recommendations: recs}}, nil
	})
}

type healthOutput struct {
	Body HealthResponse
}

func registerHealth(api huma.API, a *app.Context) {
	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
		Tags:        []string{"ops"},
	}, func(_ context.Context, _ *struct{}) (*healthOutput, error) {
		return &healthOutput{Body: HealthResponse{
			Status:           "ok",
			Backend:          a.Synthesizer.ID(),
			Types:            len(a.Registry.Types()),
			CachedGenerators: a.Router.Cached(),
			Stats:            a.Stats.Snapshot(),
			RateLimits:       a.RateLimits(),
		}}, nil
	})
}

type logsInput struct {
	Domain string `query:"domain" doc:"Only entries for this debug domain"`
	Since  string `query:"since" doc:"RFC3339 lower bound"`
}

type logsOutput struct {
	Body []logx.Entry
}

func registerLogs(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "recent-logs",
		Method:      http.MethodGet,
		Path:        "/debug/logs",
		Summary:     "Recent log entries",
		Tags:        []string{"ops"},
	}, func(_ context.Context, input *logsInput) (*logsOutput, error) {
		var since time.Time
		if input.Since != "" {
			t, err := time.Parse(time.RFC3339, input.Since)
			if err != nil {
				return nil, newAPIError(http.StatusBadRequest, "", "Invalid since parameter (use RFC3339)")
			}
			since = t
		}
		return &logsOutput{Body: logx.RecentEntries(input.Domain, since)}, nil
	})
}
