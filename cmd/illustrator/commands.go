package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"

	"illustrator/pkg/app"
	"illustrator/pkg/generator"
	"illustrator/pkg/registry"
)

// printTypes renders the type catalog as a table.
func printTypes(w io.Writer) error {
	reg, err := registry.Load()
	if err != nil {
		return fmt.Errorf("load registry: %w", err)
	}
	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.AppendHeader(table.Row{"Type", "Mode", "Grid (W x H)", "Items", "Sizes", "Description"})
	for _, tc := range reg.Types() {
		tw.AppendRow(table.Row{
			tc.ID,
			generator.KindFor(tc.Mode).Method(),
			fmt.Sprintf("%d-%d x %d-%d", tc.MinGridWidth, tc.MaxGridWidth, tc.MinGridHeight, tc.MaxGridHeight),
			fmt.Sprintf("%d-%d %s", tc.MinItems, tc.MaxItems, generator.Units[tc.ID]),
			joinInts(reg.Sizes(tc.ID)),
			tc.Description,
		})
	}
	tw.Render()
	return nil
}

func joinInts(ns []int) string {
	if len(ns) == 0 {
		return "-"
	}
	parts := make([]string, len(ns))
	for i, n := range ns {
		parts[i] = strconv.Itoa(n)
	}
	return strings.Join(parts, ",")
}

type generateOptions struct {
	typeID string
	prompt string
	grid   string
	items  int
	scheme string
	out    string
}

// parseGrid reads "WxH" grid dimensions.
func parseGrid(s string) (generator.Grid, error) {
	w, h, ok := strings.Cut(strings.ToLower(strings.TrimSpace(s)), "x")
	if !ok {
		return generator.Grid{}, fmt.Errorf("grid %q is not WxH", s)
	}
	width, err := strconv.Atoi(w)
	if err != nil {
		return generator.Grid{}, fmt.Errorf("grid width %q: %w", w, err)
	}
	height, err := strconv.Atoi(h)
	if err != nil {
		return generator.Grid{}, fmt.Errorf("grid height %q: %w", h, err)
	}
	return generator.Grid{Width: width, Height: height}, nil
}

func (o *generateOptions) request() (generator.Request, error) {
	grid, err := parseGrid(o.grid)
	if err != nil {
		return generator.Request{}, err
	}
	req := generator.Request{
		Type:  o.typeID,
		Topic: o.prompt,
		Grid:  grid,
		Style: generator.Style{ColorScheme: generator.ColorScheme(o.scheme)},
	}
	if o.items > 0 {
		n := o.items
		req.ItemCount = &n
	}
	return req, nil
}

// runGenerate performs one generation and prints the result as JSON, or writes the
// SVG to o.out.
func runGenerate(ctx context.Context, a *app.Context, o *generateOptions, w io.Writer) error {
	req, err := o.request()
	if err != nil {
		return err
	}
	res := a.Router.Route(ctx, req)
	if !res.Success {
		return fmt.Errorf("%s: %s", res.Error.Code, res.Error.Message)
	}
	if !res.Validation.Valid {
		fmt.Fprintf(os.Stderr, "⚠️  %d fields are outside their length bounds\n", len(res.Validation.Violations))
	}

	if o.out != "" {
		if err := os.WriteFile(o.out, []byte(res.Rendered.SVG), 0o644); err != nil {
			return fmt.Errorf("write %s: %w", o.out, err)
		}
		fmt.Fprintf(w, "✅ %s written to %s (%d items, %d attempts)\n", res.Metadata.Type, o.out, res.Metadata.ItemCount, res.Metadata.AttemptsUsed)
		return nil
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}
