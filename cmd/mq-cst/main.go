package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/jessevdk/go-flags"
	"github.com/karupanerura/mq-cst/internal/config"
	"github.com/karupanerura/mq-cst/internal/cst"
	"github.com/karupanerura/mq-cst/internal/editscript"
	"github.com/karupanerura/mq-cst/internal/grammar"
	"github.com/karupanerura/mq-cst/internal/parser"
	"github.com/karupanerura/mq-cst/internal/render"
	"github.com/karupanerura/mq-cst/internal/server"
	"github.com/mattn/go-isatty"
	"golang.org/x/sync/errgroup"
)

type Option struct {
	Files          []string `short:"f" long:"file" description:"[OPTIONAL] mq source file, repeatable; stdin is read when none is given"`
	Edits          string   `long:"edits" description:"[OPTIONAL] Edit script (JSON or YAML) replayed on every file"`
	Format         string   `long:"format" description:"[OPTIONAL] Output format" choice:"sexp" choice:"json" choice:"tokens" choice:"highlight" default:"sexp"`
	Catalog        bool     `long:"catalog" description:"[OPTIONAL] Print the node type catalog as JSON"`
	HighlightRules bool     `long:"highlight-rules" description:"[OPTIONAL] Print the highlight rules as JSON"`
	Listen         string   `short:"l" long:"listen" description:"[OPTIONAL] Listen host and port to serve parse sessions"`
	Config         string   `short:"c" long:"config" description:"[OPTIONAL] TOML config file (default: $MQ_CST_CONFIG)"`
	RecoveryWindow int      `long:"recovery-window" default:"-1" description:"[OPTIONAL] Tokens skipped before inserting MISSING (overrides config)"`
	Debug          bool     `long:"debug" description:"[OPTIONAL] Trace the parser"`
}

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	var opt Option
	parser := flags.NewParser(&opt, flags.Default)
	_, err := parser.ParseArgs(args)
	if err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			return 0
		} else {
			parser.WriteHelp(os.Stdout)
			return 1
		}
	}
	if opt.Listen != "" && (len(opt.Files) != 0 || opt.Edits != "") {
		parser.WriteHelp(os.Stdout)
		return 1
	}

	cfg, err := loadConfig(opt)
	if err != nil {
		log.Printf("failed to load config: %v", err)
		return 1
	}

	color := isTerminal(os.Stdout)
	switch {
	case opt.Catalog:
		if err = render.JSON(os.Stdout, grammar.Catalog(), color); err != nil {
			log.Printf("failed to dump catalog: %v", err)
			return 1
		}
		return 0

	case opt.HighlightRules:
		if err = render.JSON(os.Stdout, grammar.HighlightRules(), color); err != nil {
			log.Printf("failed to dump highlight rules: %v", err)
			return 1
		}
		return 0
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	p := newParser(cfg)

	// server mode
	if opt.Listen != "" {
		cfg.Server.Listen = opt.Listen
		if err = serveSessions(ctx, cfg, p); err != nil {
			log.Printf("failed to serve sessions: %v", err)
			return 1
		}
		return 0
	}

	var script editscript.Script
	if opt.Edits != "" {
		if script, err = editscript.Load(opt.Edits); err != nil {
			log.Printf("failed to load edit script: %v", err)
			return 1
		}
	}

	format, err := render.ParseFormat(opt.Format)
	if err != nil {
		log.Printf("invalid format: %v", err)
		return 1
	}

	trees, err := parseFiles(ctx, p, opt.Files, script)
	if err != nil {
		log.Printf("failed to parse: %v", err)
		return 1
	}
	for i, tree := range trees {
		name := "-"
		if len(opt.Files) != 0 {
			name = opt.Files[i]
		}
		if len(trees) > 1 && format != render.FormatJSON {
			if _, err = fmt.Fprintf(os.Stdout, "==> %s <==\n", name); err != nil {
				log.Printf("failed to write: %v", err)
				return 1
			}
		}
		if err = render.Write(os.Stdout, name, tree, format, color); err != nil {
			log.Printf("failed to render %s: %v", name, err)
			return 1
		}
	}
	return 0
}

func loadConfig(opt Option) (*config.Config, error) {
	var cfg *config.Config
	var err error
	if opt.Config != "" {
		if cfg, err = config.Load(opt.Config); err != nil {
			return nil, fmt.Errorf("config.Load: %w", err)
		}
	} else if cfg, err = config.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("config.LoadFromEnv: %w", err)
	}
	if opt.RecoveryWindow >= 0 {
		cfg.Parser.RecoveryWindow = &opt.RecoveryWindow
	}
	if opt.Debug {
		cfg.Parser.Debug = true
	}
	return cfg, nil
}

func newParser(cfg *config.Config) *parser.Parser {
	return parser.New(cfg.ParserOptions()...)
}

// parseFiles parses every file concurrently, replaying script on each, and
// returns the trees in the order of paths. No paths means stdin.
func parseFiles(ctx context.Context, p *parser.Parser, paths []string, script editscript.Script) ([]*cst.Tree, error) {
	if len(paths) == 0 {
		text, err := io.ReadAll(os.Stdin)
		if err != nil {
			return nil, fmt.Errorf("io.ReadAll: %w", err)
		}
		tree, err := script.Replay(p, p.Parse(text))
		if err != nil {
			return nil, fmt.Errorf("stdin: %w", err)
		}
		return []*cst.Tree{tree}, nil
	}

	trees := make([]*cst.Tree, len(paths))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, path := range paths {
		i, path := i, path
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			text, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("os.ReadFile(%q): %w", path, err)
			}
			tree, err := script.Replay(p, p.Parse(text))
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			trees[i] = tree
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return trees, nil
}

func serveSessions(ctx context.Context, cfg *config.Config, p *parser.Parser) error {
	handler := server.NewHTTPHandler(ctx, server.Options{
		Parser:        p,
		SessionTTL:    cfg.Server.SessionTTL.Duration,
		SweepInterval: cfg.Server.SweepInterval.Duration,
		MaxTextBytes:  cfg.Server.MaxTextBytes,
	})

	srv := http.Server{
		Handler:           handler,
		Addr:              cfg.Server.Listen,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Printf("Listen HTTP on %s", cfg.Server.Listen)
		if err := srv.ListenAndServe(); errors.Is(err, http.ErrServerClosed) {
			return nil
		} else if err != nil {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func isTerminal(w io.Writer) bool {
	if f, ok := w.(interface{ Fd() uintptr }); ok {
		return isatty.IsTerminal(f.Fd())
	}
	return false
}
