package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"illustrator/internal/mocks"
	"illustrator/pkg/app"
	"illustrator/pkg/backend"
	"illustrator/pkg/config"
	"illustrator/pkg/generator"
)

func TestParseGrid(t *testing.T) {
	tests := []struct {
		in      string
		want    generator.Grid
		wantErr bool
	}{
		{"24x12", generator.Grid{Width: 24, Height: 12}, false},
		{" 8X6 ", generator.Grid{Width: 8, Height: 6}, false},
		{"24", generator.Grid{}, true},
		{"ax12", generator.Grid{}, true},
		{"24xb", generator.Grid{}, true},
	}
	for _, tt := range tests {
		got, err := parseGrid(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("parseGrid(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("parseGrid(%q) = %+v, want %+v", tt.in, got, tt.want)
		}
	}
}

func TestPrintTypes(t *testing.T) {
	var buf bytes.Buffer
	if err := printTypes(&buf); err != nil {
		t.Fatalf("printTypes: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"pyramid", "roadmap", "dynamic_svg", "template", "3,4,5,6"} {
		if !strings.Contains(out, want) {
			t.Errorf("catalog output missing %q", want)
		}
	}
}

func TestJoinInts(t *testing.T) {
	if got := joinInts(nil); got != "-" {
		t.Errorf("joinInts(nil) = %q", got)
	}
	if got := joinInts([]int{3, 4}); got != "3,4" {
		t.Errorf("joinInts = %q", got)
	}
}

func newTestApp(t *testing.T) *app.Context {
	t.Helper()
	synth := mocks.FieldsFunc(func(c backend.Constraints) map[string]string {
		fields := make(map[string]string, len(c.Roles))
		for _, r := range c.Roles {
			fields[r.ID] = strings.Repeat("w", max((r.Min+r.Max)/2, 1))
		}
		return fields
	})
	a, err := app.New(context.Background(), config.Default(), app.WithSynthesizer(synth))
	if err != nil {
		t.Fatalf("build app: %v", err)
	}
	t.Cleanup(a.Close)
	return a
}

func TestRunGeneratePrintsResult(t *testing.T) {
	a := newTestApp(t)
	var buf bytes.Buffer
	opts := generateOptions{typeID: "funnel", prompt: "Sales pipeline", grid: "24x12", items: 4}

	if err := runGenerate(context.Background(), a, &opts, &buf); err != nil {
		t.Fatalf("runGenerate: %v", err)
	}
	var res generator.Result
	if err := json.Unmarshal(buf.Bytes(), &res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !res.Success || len(res.Items) != 4 || res.Metadata.Type != "funnel" {
		t.Errorf("unexpected result %+v", res)
	}
}

func TestRunGenerateWritesSVG(t *testing.T) {
	a := newTestApp(t)
	out := filepath.Join(t.TempDir(), "pyramid.svg")
	opts := generateOptions{typeID: "pyramid", prompt: "Needs", grid: "24x12", items: 4, out: out}

	var buf bytes.Buffer
	if err := runGenerate(context.Background(), a, &opts, &buf); err != nil {
		t.Fatalf("runGenerate: %v", err)
	}
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	if !strings.HasPrefix(strings.TrimSpace(string(data)), "<svg") {
		t.Errorf("output is not SVG: %.60s", data)
	}
	if !strings.Contains(buf.String(), out) {
		t.Errorf("expected confirmation naming %s, got %q", out, buf.String())
	}
}

func TestRunGenerateReportsRejection(t *testing.T) {
	a := newTestApp(t)
	opts := generateOptions{typeID: "pyramid", prompt: "Needs", grid: "2x2"}

	err := runGenerate(context.Background(), a, &opts, &bytes.Buffer{})
	if err == nil || !strings.Contains(err.Error(), generator.CodeConstraintViolation) {
		t.Fatalf("expected constraint violation, got %v", err)
	}
}

func TestHandleSecretsDecryptionWithEnvPassword(t *testing.T) {
	dir := t.TempDir()
	if err := config.EncryptSecretsFile(dir, "hunter2", map[string]string{config.EnvOpenAIAPIKey: "sk-test"}); err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	t.Setenv(EnvPassword, "hunter2")
	t.Cleanup(func() { config.SetDecryptedSecrets(nil) })

	if err := handleSecretsDecryption(dir); err != nil {
		t.Fatalf("handleSecretsDecryption: %v", err)
	}
	got, err := config.GetSecret(config.EnvOpenAIAPIKey)
	if err != nil || got != "sk-test" {
		t.Errorf("GetSecret = %q, %v", got, err)
	}
}

func TestHandleSecretsDecryptionWithoutFile(t *testing.T) {
	if err := handleSecretsDecryption(t.TempDir()); err != nil {
		t.Errorf("expected no-op without secrets file, got %v", err)
	}
}
