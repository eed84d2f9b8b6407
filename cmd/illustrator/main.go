package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"illustrator/pkg/app"
	"illustrator/pkg/config"
	"illustrator/pkg/logx"
)

// Version information - set by goreleaser via ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

type options struct {
	projectDir  string
	listTypes   bool
	initSecrets bool
	generate    generateOptions
}

func main() {
	var (
		opts        options
		showVersion = flag.Bool("version", false, "Show version information")
	)
	flag.StringVar(&opts.projectDir, "projectdir", ".", "Project directory holding .illustrator/config.json")
	flag.BoolVar(&opts.listTypes, "list-types", false, "Print the infographic type catalog and exit")
	flag.BoolVar(&opts.initSecrets, "init-secrets", false, "Encrypt provider API keys from the environment into the secrets file")
	flag.StringVar(&opts.generate.typeID, "type", "", "Generate one infographic of this type and exit")
	flag.StringVar(&opts.generate.prompt, "prompt", "", "Topic for -type")
	flag.StringVar(&opts.generate.grid, "grid", "24x12", "Canvas size in grid units, WxH")
	flag.IntVar(&opts.generate.items, "items", 0, "Item count for -type (0 derives it from the grid)")
	flag.StringVar(&opts.generate.scheme, "scheme", "", "Color scheme for -type")
	flag.StringVar(&opts.generate.out, "out", "", "Write the rendered SVG to this file instead of printing the result")
	flag.Parse()

	if *showVersion {
		fmt.Printf("illustrator %s\n", version)
		fmt.Printf("  commit: %s\n", commit)
		fmt.Printf("  built:  %s\n", date)
		os.Exit(0)
	}

	os.Exit(run(opts))
}

// run contains the main application logic and returns an exit code.
func run(opts options) int {
	_ = godotenv.Load()

	cfg, err := config.Load(opts.projectDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}

	if opts.listTypes {
		if err := printTypes(os.Stdout); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to list types: %v\n", err)
			return 1
		}
		return 0
	}

	if opts.initSecrets {
		if err := initSecrets(opts.projectDir); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to save secrets: %v\n", err)
			return 1
		}
		return 0
	}

	if err := handleSecretsDecryption(opts.projectDir); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to handle secrets: %v\n", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Startup failed: %v\n", err)
		return 1
	}
	defer a.Close()

	if opts.generate.typeID != "" {
		if err := runGenerate(ctx, a, &opts.generate, os.Stdout); err != nil {
			fmt.Fprintf(os.Stderr, "Generation failed: %v\n", err)
			return 1
		}
		return 0
	}

	logx.Infof("🚀 Starting illustrator %s on %s", version, cfg.Server.Addr())
	if err := serve(ctx, a); err != nil {
		fmt.Fprintf(os.Stderr, "Server failed: %v\n", err)
		return 1
	}
	return 0
}
