package generator

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"illustrator/internal/mocks"
	"illustrator/pkg/backend"
	"illustrator/pkg/backend/llmerrors"
	"illustrator/pkg/backend/middleware/metrics"
	"illustrator/pkg/registry"
	"illustrator/pkg/skeleton"
	"illustrator/pkg/templates"
	"illustrator/pkg/validator"
)

var (
	sharedRegistry     *registry.Registry
	sharedSkeletons    *skeleton.Store
	sharedFixturesOnce sync.Once
)

func fixtures(t *testing.T) (*registry.Registry, *skeleton.Store) {
	t.Helper()
	sharedFixturesOnce.Do(func() {
		sharedRegistry = registry.MustLoad()
		store, err := skeleton.NewStore()
		if err != nil {
			panic(err)
		}
		sharedSkeletons = store
	})
	return sharedRegistry, sharedSkeletons
}

func newGenerator(t *testing.T, typeID string, synth backend.Synthesizer) *Generator {
	t.Helper()
	reg, store := fixtures(t)
	g, err := New(typeID, Deps{Registry: reg, Synthesizer: synth, Skeletons: store, MaxRetries: -1})
	require.NoError(t, err)
	return g
}

// fitting returns a value whose visible length is the midpoint of the role bounds.
func fitting(r registry.FieldRole) string {
	return strings.Repeat("w", max((r.Min+r.Max)/2, 1))
}

func satisfying(c backend.Constraints) map[string]string {
	fields := make(map[string]string, len(c.Roles))
	for _, r := range c.Roles {
		fields[r.ID] = fitting(r)
	}
	return fields
}

func violating(c backend.Constraints) map[string]string {
	fields := satisfying(c)
	first := c.Roles[0]
	fields[first.ID] = strings.Repeat("w", first.Max+10)
	return fields
}

func intPtr(n int) *int { return &n }

func pyramidRequest() Request {
	return Request{
		Type:      "pyramid",
		Topic:     "Maslow's hierarchy of needs",
		ItemCount: intPtr(4),
		Grid:      Grid{Width: 24, Height: 12},
	}
}

var unresolvedToken = regexp.MustCompile(`\{[^}]+\}`)

func TestPyramidFourLevels(t *testing.T) {
	synth := mocks.FieldsFunc(satisfying)
	g := newGenerator(t, "pyramid", synth)
	req := pyramidRequest()

	assert.Equal(t, 4, g.DetermineItemCount(&req))

	res := g.Generate(context.Background(), req)
	require.True(t, res.Success, "error: %+v", res.Error)
	assert.Nil(t, res.Error)
	assert.Equal(t, 1, res.Metadata.AttemptsUsed)
	assert.Equal(t, 1, synth.CallCount())
	assert.Equal(t, "stub-backend", res.Metadata.BackendID)
	assert.True(t, res.Validation.Valid)
	assert.Empty(t, res.Validation.Violations)

	require.Len(t, res.Items, 4)
	for i, item := range res.Items {
		assert.Equal(t, i, item.Position)
		assert.True(t, strings.HasPrefix(item.ID, fmt.Sprintf("item_%03d_", i)), item.ID)
	}
	assert.Equal(t, 4, res.Items[0].Metadata["level"], "top of the pyramid comes first")
	assert.Equal(t, 1, res.Items[3].Metadata["level"])

	roles, err := fixturesRegistry(t).FieldRoles("pyramid", 4)
	require.NoError(t, err)
	assert.Empty(t, validator.Validate(res.Fields, roles))

	assert.False(t, unresolvedToken.MatchString(res.Rendered.HTML), "unresolved token in HTML")
	assert.True(t, strings.HasPrefix(res.Rendered.SVG, "<svg"))
	assert.Contains(t, res.Rendered.SVG, "foreignObject")

	assert.Equal(t, 1440, res.Metadata.WidthPx)
	assert.Equal(t, 720, res.Metadata.HeightPx)
	assert.InDelta(t, 2.0, res.Metadata.AspectRatio, 0.001)
	assert.Equal(t, "template", res.Metadata.GenerationMethod)
	assert.Equal(t, "horizontal", res.Metadata.Orientation)
	assert.True(t, strings.HasPrefix(res.GenerationID, "gen_"))
	assert.Len(t, res.GenerationID, len("gen_")+12)

	require.NotNil(t, res.EditInfo)
	assert.Len(t, res.EditInfo.EditableItems, 4)
	assert.True(t, res.EditInfo.Addable)
	assert.True(t, res.EditInfo.Deletable)
	assert.Equal(t, 100, res.EditInfo.EditableItems[0].MaxLength)
}

func fixturesRegistry(t *testing.T) *registry.Registry {
	t.Helper()
	reg, _ := fixtures(t)
	return reg
}

func TestDetermineItemCount(t *testing.T) {
	g := newGenerator(t, "pyramid", mocks.FieldsFunc(satisfying))

	tests := []struct {
		name  string
		count *int
		grid  Grid
		want  int
	}{
		{"explicit", intPtr(5), Grid{24, 12}, 5},
		{"explicit clamped high", intPtr(9), Grid{24, 12}, 6},
		{"explicit clamped low", intPtr(1), Grid{24, 12}, 3},
		{"small area", nil, Grid{12, 12}, 3},
		{"medium area", nil, Grid{24, 12}, 3},
		{"large area", nil, Grid{32, 18}, 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := Request{ItemCount: tt.count, Grid: tt.grid}
			assert.Equal(t, tt.want, g.DetermineItemCount(&req))
		})
	}
}

func TestExhaustedBudgetReturnsLastAttempt(t *testing.T) {
	synth := mocks.FieldsFunc(violating)
	g := newGenerator(t, "pyramid", synth)

	res := g.Generate(context.Background(), pyramidRequest())

	assert.Equal(t, DefaultMaxRetries+1, synth.CallCount())
	assert.True(t, res.Success, "degraded output is still returned")
	assert.False(t, res.Validation.Valid)
	require.NotEmpty(t, res.Validation.Violations)
	assert.Equal(t, validator.StatusOver, res.Validation.Violations[0].Status)
	assert.Equal(t, DefaultMaxRetries+1, res.Metadata.AttemptsUsed)
	assert.NotEmpty(t, res.Fields)
	assert.Len(t, res.Items, 4)
}

func TestRetryCarriesFeedbackAndSameConstraints(t *testing.T) {
	synth := mocks.NewStubSynthesizer(func(_ context.Context, n int, _ backend.Instructions, c backend.Constraints) (backend.Synthesis, error) {
		if n == 0 {
			return backend.Synthesis{Fields: violating(c)}, nil
		}
		return backend.Synthesis{Fields: satisfying(c)}, nil
	})
	g := newGenerator(t, "funnel", synth)

	res := g.Generate(context.Background(), Request{Topic: "Sales pipeline", ItemCount: intPtr(3), Grid: Grid{16, 9}})

	require.True(t, res.Success)
	assert.True(t, res.Validation.Valid)
	assert.Equal(t, 2, res.Metadata.AttemptsUsed)

	calls := synth.Calls()
	require.Len(t, calls, 2)
	assert.Empty(t, calls[0].Instructions.Feedback)
	assert.NotEmpty(t, calls[1].Instructions.Feedback)
	assert.Equal(t, calls[0].Constraints, calls[1].Constraints)
	assert.Equal(t, "stages", calls[0].Instructions.Unit)
}

func TestBackendErrorsAreNotRetried(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		retryable bool
	}{
		{"auth", llmerrors.NewError(llmerrors.ErrorTypeAuth, "invalid key"), false},
		{"transient", llmerrors.NewError(llmerrors.ErrorTypeTransient, "503"), true},
		{"unclassified", fmt.Errorf("connection reset"), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			synth := mocks.FailWith(tt.err)
			g := newGenerator(t, "pyramid", synth)

			res := g.Generate(context.Background(), pyramidRequest())

			assert.False(t, res.Success)
			assert.Equal(t, 1, synth.CallCount())
			require.NotNil(t, res.Error)
			assert.Equal(t, CodeGenerationFailed, res.Error.Code)
			assert.Equal(t, tt.retryable, res.Error.Retryable)
			assert.NotContains(t, res.Error.Message, "invalid key")
			assert.Empty(t, res.Fields)
			assert.Equal(t, 1, res.Metadata.AttemptsUsed)
			assert.Equal(t, "stub-backend", res.Metadata.BackendID)
		})
	}
}

func TestFailureReportsAttemptsSpent(t *testing.T) {
	synth := mocks.NewStubSynthesizer(func(_ context.Context, n int, _ backend.Instructions, c backend.Constraints) (backend.Synthesis, error) {
		if n == 0 {
			return backend.Synthesis{Fields: violating(c)}, nil
		}
		return backend.Synthesis{}, llmerrors.NewError(llmerrors.ErrorTypeRateLimit, "429")
	})
	g := newGenerator(t, "pyramid", synth)

	res := g.Generate(context.Background(), pyramidRequest())

	require.NotNil(t, res.Error)
	assert.True(t, res.Error.Retryable)
	assert.Equal(t, 2, res.Metadata.AttemptsUsed)
	assert.Equal(t, "stub-backend", res.Metadata.BackendID)
	assert.Equal(t, 2, synth.CallCount())
}

func TestRequestConstraintsRejectedBeforeBackend(t *testing.T) {
	tests := []struct {
		name string
		req  Request
	}{
		{"grid too wide", Request{ItemCount: intPtr(4), Grid: Grid{40, 12}}},
		{"grid too short", Request{ItemCount: intPtr(4), Grid: Grid{24, 2}}},
		{"too many items", Request{ItemCount: intPtr(9), Grid: Grid{24, 12}}},
		{"bad style", Request{Grid: Grid{24, 12}, Style: Style{Density: "dense"}}},
		{"wrong type", Request{Type: "funnel", Grid: Grid{24, 12}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			synth := mocks.FieldsFunc(satisfying)
			g := newGenerator(t, "pyramid", synth)

			res := g.Generate(context.Background(), tt.req)

			assert.False(t, res.Success)
			require.NotNil(t, res.Error)
			assert.Equal(t, CodeConstraintViolation, res.Error.Code)
			assert.False(t, res.Error.Retryable)
			assert.Zero(t, synth.CallCount())
		})
	}
}

func TestTemplateNotFoundBeforeBackend(t *testing.T) {
	reg, _ := fixtures(t)
	empty, err := skeleton.NewStoreFS(fstest.MapFS{}, 0)
	require.NoError(t, err)
	synth := mocks.FieldsFunc(satisfying)
	g, err := New("pyramid", Deps{Registry: reg, Synthesizer: synth, Skeletons: empty, MaxRetries: -1})
	require.NoError(t, err)

	res := g.Generate(context.Background(), pyramidRequest())

	require.NotNil(t, res.Error)
	assert.Equal(t, CodeTemplateNotFound, res.Error.Code)
	assert.False(t, res.Error.Retryable)
	assert.Zero(t, synth.CallCount())
}

func TestTemplateExpandsBackendLists(t *testing.T) {
	reg, _ := fixtures(t)
	roles, err := reg.FieldRoles("pyramid", 4)
	require.NoError(t, err)
	fields := make(map[string]any, len(roles)+1)
	for _, r := range roles {
		fields[r.ID] = fitting(r)
	}
	fields["steps"] = []map[string]any{
		{"number": 1, "title": "Plan"},
		{"number": 2, "title": "Build"},
	}
	reply, err := json.Marshal(map[string]any{"fields": fields})
	require.NoError(t, err)

	client := mocks.NewMockLLMClient()
	client.RespondWith(string(reply))
	renderer, err := templates.NewRenderer()
	require.NoError(t, err)
	store, err := skeleton.NewStoreFS(fstest.MapFS{
		"pyramid/4.html": {Data: []byte(`<h1>{level_4_label}</h1><div class="steps">{steps}</div>`)},
	}, 0)
	require.NoError(t, err)
	g, err := New("pyramid", Deps{
		Registry:    reg,
		Synthesizer: backend.NewLLMSynthesizer(client, renderer, 0, 0),
		Skeletons:   store,
		MaxRetries:  -1,
	})
	require.NoError(t, err)

	res := g.Generate(context.Background(), pyramidRequest())

	require.True(t, res.Success, "error: %+v", res.Error)
	html := res.Rendered.HTML
	assert.Contains(t, html, `<div class="step"><div class="step-number">1</div><div class="step-title">Plan</div>`)
	assert.Contains(t, html, `<div class="step-number">2</div><div class="step-title">Build</div>`)
	assert.NotContains(t, html, "map[")
	assert.False(t, unresolvedToken.MatchString(html))
	assert.NotContains(t, res.Fields, "steps")
}

func TestUnfilledTokens(t *testing.T) {
	html := `<p style="color: {color_primary}">{title}</p><ul>{steps}</ul><em>{note}</em>{title}`
	tokens := fillTokens(map[string]string{"title": "Plan"}, map[string]any{"steps": []any{"a", "b"}})

	assert.Equal(t, "<li>a</li><li>b</li>", tokens["steps"])
	assert.Equal(t, []string{"note"}, unfilled(html, tokens, map[string]string{"color_primary": "#123456"}))
}

func vectorSynth(svg string, items int) *mocks.StubSynthesizer {
	return mocks.NewStubSynthesizer(func(_ context.Context, _ int, _ backend.Instructions, _ backend.Constraints) (backend.Synthesis, error) {
		out := backend.Synthesis{SVG: svg}
		for i := 0; i < items; i++ {
			out.Items = append(out.Items, backend.SynthesizedItem{
				Title:       fmt.Sprintf("Milestone %d", i+1),
				Description: "A short description",
				Value:       fmt.Sprintf("%d%%", 10*(i+1)),
			})
		}
		return out, nil
	})
}

const validSVG = `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 960 360"><rect width="10" height="10"/></svg>`

func TestSynthesizedAcceptsValidSVG(t *testing.T) {
	synth := vectorSynth(validSVG, 5)
	g := newGenerator(t, "timeline", synth)
	require.Equal(t, KindSynthesized, g.Kind())

	res := g.Generate(context.Background(), Request{Topic: "Company history", ItemCount: intPtr(5), Grid: Grid{16, 6}})

	require.True(t, res.Success, "error: %+v", res.Error)
	assert.Equal(t, validSVG, res.Rendered.SVG)
	assert.True(t, strings.HasPrefix(res.Rendered.HTML,
		`<div class="infographic-container" style="width: 960px; height: 360px; overflow: hidden;">`))
	assert.False(t, res.Metadata.Repaired)
	assert.Equal(t, "dynamic_svg", res.Metadata.GenerationMethod)
	require.Len(t, res.Items, 5)
	for i, item := range res.Items {
		assert.Equal(t, i, item.Position)
	}
	assert.Equal(t, "Milestone 1", res.Fields["item_1_title"])
	_, hasValue := res.Fields["item_1_value"]
	assert.False(t, hasValue, "timeline declares no value role")
}

func TestSynthesizedRepairsOnce(t *testing.T) {
	synth := vectorSynth(`<svg width="960" height="360"><rect width="10" height="10"/>`, 5)
	g := newGenerator(t, "timeline", synth)

	res := g.Generate(context.Background(), Request{Topic: "Roadmap", ItemCount: intPtr(5), Grid: Grid{16, 6}})

	require.True(t, res.Success, "error: %+v", res.Error)
	assert.True(t, res.Metadata.Repaired)
	assert.Contains(t, res.Rendered.SVG, `xmlns="http://www.w3.org/2000/svg"`)
	assert.Contains(t, res.Rendered.SVG, `viewBox="0 0 960 360"`)
	assert.True(t, strings.HasSuffix(res.Rendered.SVG, "</svg>"))
}

func TestSynthesizedMalformedIsTerminal(t *testing.T) {
	synth := vectorSynth(`<svg xmlns="http://www.w3.org/2000/svg"><g></svg>`, 5)
	g := newGenerator(t, "timeline", synth)

	res := g.Generate(context.Background(), Request{Topic: "Roadmap", ItemCount: intPtr(5), Grid: Grid{16, 6}})

	assert.False(t, res.Success)
	require.NotNil(t, res.Error)
	assert.Equal(t, CodeGenerationFailed, res.Error.Code)
	assert.True(t, res.Error.Retryable, "a fresh request may produce well-formed markup")
	assert.Equal(t, 1, synth.CallCount())
	assert.Equal(t, 1, res.Metadata.AttemptsUsed)
	assert.Empty(t, res.Rendered.SVG)
}

func TestSynthesizedTruncatesExtraItems(t *testing.T) {
	synth := vectorSynth(validSVG, 7)
	g := newGenerator(t, "statistics", synth)

	res := g.Generate(context.Background(), Request{Topic: "Quarterly results", ItemCount: intPtr(4), Grid: Grid{16, 9}})

	require.True(t, res.Success, "error: %+v", res.Error)
	assert.Len(t, res.Items, 4)
	assert.Equal(t, "10%", res.Fields["item_1_value"])
	_, extra := res.Fields["item_5_title"]
	assert.False(t, extra)
}

func TestCancellationDiscardsInFlightAttempt(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	synth := mocks.NewStubSynthesizer(func(_ context.Context, _ int, _ backend.Instructions, c backend.Constraints) (backend.Synthesis, error) {
		cancel()
		return backend.Synthesis{Fields: satisfying(c)}, nil
	})
	g := newGenerator(t, "pyramid", synth)

	res := g.Generate(ctx, pyramidRequest())

	assert.False(t, res.Success)
	assert.Empty(t, res.Fields)
	assert.Empty(t, res.Items)
	assert.Empty(t, res.Rendered.HTML)
	require.NotNil(t, res.Error)
	assert.Equal(t, CodeGenerationFailed, res.Error.Code)
	assert.True(t, res.Error.Retryable)
}

func TestCancelledBeforeFirstAttempt(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	synth := mocks.FieldsFunc(satisfying)
	g := newGenerator(t, "pyramid", synth)

	res := g.Generate(ctx, pyramidRequest())

	assert.False(t, res.Success)
	assert.Zero(t, synth.CallCount())
}

func TestEditInfoAtLimits(t *testing.T) {
	g := newGenerator(t, "pyramid", mocks.FieldsFunc(satisfying))

	full := g.Generate(context.Background(), Request{ItemCount: intPtr(6), Grid: Grid{24, 12}})
	require.True(t, full.Success)
	assert.False(t, full.EditInfo.Addable)
	assert.True(t, full.EditInfo.Deletable)

	smallest := g.Generate(context.Background(), Request{ItemCount: intPtr(3), Grid: Grid{24, 12}})
	require.True(t, smallest.Success)
	assert.True(t, smallest.EditInfo.Addable)
	assert.False(t, smallest.EditInfo.Deletable)
}

func TestTemplateItemsPerType(t *testing.T) {
	tests := []struct {
		typeID    string
		count     int
		grid      Grid
		firstMeta map[string]any
	}{
		{"funnel", 5, Grid{24, 12}, map[string]any{"stage": 1}},
		{"concentric_circles", 5, Grid{18, 18}, map[string]any{"ring": 1}},
		{"concept_spread", 6, Grid{24, 12}, nil},
		{"venn", 3, Grid{24, 12}, map[string]any{"set": 1}},
		{"comparison", 4, Grid{24, 12}, map[string]any{"column": 1}},
	}
	for _, tt := range tests {
		t.Run(tt.typeID, func(t *testing.T) {
			g := newGenerator(t, tt.typeID, mocks.FieldsFunc(satisfying))

			res := g.Generate(context.Background(), Request{Topic: "Topic", ItemCount: intPtr(tt.count), Grid: tt.grid})

			require.True(t, res.Success, "error: %+v", res.Error)
			require.Len(t, res.Items, tt.count)
			assert.Equal(t, tt.firstMeta, res.Items[0].Metadata)
			assert.NotEmpty(t, res.Items[0].Description)
			assert.False(t, unresolvedToken.MatchString(res.Rendered.HTML))
			if tt.typeID == "concept_spread" {
				assert.NotEmpty(t, res.Items[0].Icon)
			}
		})
	}
}

func TestEverySkeletonDeclaresItsRoles(t *testing.T) {
	reg, store := fixtures(t)
	for _, typeID := range reg.TypesByMode(registry.ModeTemplate) {
		for _, size := range reg.Sizes(typeID) {
			html, err := store.Load(typeID, size)
			require.NoError(t, err, "%s/%d", typeID, size)
			placeholders := make(map[string]bool)
			for _, p := range skeleton.Placeholders(html) {
				placeholders[p] = true
			}
			roles, err := reg.FieldRoles(typeID, size)
			require.NoError(t, err)
			for _, r := range roles {
				assert.True(t, placeholders[r.ID], "%s/%d has no {%s}", typeID, size, r.ID)
			}
		}
	}
}

func TestGenerationMetricsRecorded(t *testing.T) {
	reg, store := fixtures(t)
	rec := metrics.NewInternalRecorder()
	g, err := New("pyramid", Deps{Registry: reg, Synthesizer: mocks.FieldsFunc(violating), Skeletons: store, Recorder: rec, MaxRetries: 1})
	require.NoError(t, err)

	res := g.Generate(context.Background(), pyramidRequest())
	require.True(t, res.Success)
	assert.Equal(t, 2, res.Metadata.AttemptsUsed)

	stats := rec.Snapshot()
	require.Len(t, stats, 1)
	assert.Equal(t, "pyramid", stats[0].Type)
}

func TestNewRejectsUnknownType(t *testing.T) {
	reg, store := fixtures(t)
	_, err := New("sankey", Deps{Registry: reg, Synthesizer: mocks.FieldsFunc(satisfying), Skeletons: store})
	require.Error(t, err)
	assert.Equal(t, CodeConstraintViolation, ToErrorInfo(err).Code)
}

func TestResolveColorScheme(t *testing.T) {
	g := newGenerator(t, "pyramid", mocks.FieldsFunc(satisfying))

	brand := Request{Style: Style{ColorScheme: SchemeBrand}, BrandColors: []string{"#111111", "#222222"}}
	p := g.ResolveColorScheme(&brand)
	assert.Equal(t, "#111111", p.Primary)
	assert.Equal(t, []string{"#222222"}, p.Secondary)
	assert.Equal(t, "#111111", p.Accent)

	custom := Request{Style: Style{ColorScheme: SchemeCustom}}
	assert.Equal(t, registry.DefaultScheme, g.ResolveColorScheme(&custom).Name)
}
