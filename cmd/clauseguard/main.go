// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"

	"github.com/poiesic/clauseguard"
	"github.com/poiesic/clauseguard/answer"
	"github.com/poiesic/clauseguard/config"
	"github.com/poiesic/clauseguard/loader"

	httpT "github.com/poiesic/clauseguard/transport/http"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "clauseguard",
		Usage: "Answer questions about legal documents grounded on their text",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to the YAML configuration file",
				Value:   "clauseguard.yaml",
				EnvVars: []string{"CLAUSEGUARD_CONFIG"},
			},
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
			&cli.StringFlag{
				Name:  "env-file",
				Usage: "Load environment variables from this file if it exists",
				Value: ".env",
			},
		},
		Before: setup,
		Commands: []*cli.Command{
			{
				Name:   "init",
				Usage:  "Write a configuration file with default values",
				Action: initCommand,
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "force",
						Usage: "Overwrite an existing file",
					},
				},
			},
			{
				Name:      "ingest",
				Usage:     "Load, chunk and index documents (txt, md, pdf, docx, xlsx)",
				ArgsUsage: "FILE...",
				Action:    ingestCommand,
			},
			{
				Name:      "ask",
				Usage:     "Answer a question using the indexed documents",
				ArgsUsage: "QUESTION",
				Action:    askCommand,
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:    "verbose",
						Aliases: []string{"v"},
						Usage:   "Log retrieved chunks and the prompt size",
					},
					&cli.IntFlag{
						Name:  "top-k",
						Usage: "Number of chunks to retrieve (defaults to answer.top_k)",
					},
				},
			},
			{
				Name:   "documents",
				Usage:  "List ingested documents",
				Action: documentsCommand,
			},
			{
				Name:   "status",
				Usage:  "Show document, chunk and embedding model information",
				Action: statusCommand,
			},
			{
				Name:   "reindex",
				Usage:  "Re-embed every chunk with the configured embedding model",
				Action: reindexCommand,
			},
			{
				Name:   "serve",
				Usage:  "Serve the HTTP API",
				Action: serveCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "addr",
						Usage: "Listen address (defaults to server.addr)",
					},
				},
			},
		},
	}
}

func setup(c *cli.Context) error {
	if err := loadEnvFile(c.String("env-file")); err != nil {
		return err
	}
	return setupLogger(c)
}

func loadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("loading %s: %w", path, err)
	}
	return nil
}

func setupLogger(c *cli.Context) error {
	// Get log level from flag and normalize to lowercase
	levelStr := strings.ToLower(c.String("log-level"))

	// Map string to slog.Level
	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", levelStr)
	}

	// Configure slog with the specified level
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	return nil
}

func openEngine(c *cli.Context) (*clauseguard.Engine, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, err
	}
	return clauseguard.Open(c.Context, cfg)
}

func initCommand(c *cli.Context) error {
	path := c.String("config")
	if !c.Bool("force") {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		}
	}
	if err := config.Save(path, config.Default()); err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "Wrote %s\n", path)
	return nil
}

func ingestCommand(c *cli.Context) error {
	if c.NArg() == 0 {
		return errors.New("at least one file is required")
	}

	inputs := make([]loader.Input, 0, c.NArg())
	for _, path := range c.Args().Slice() {
		inputs = append(inputs, loader.Input{Path: path})
	}

	engine, err := openEngine(c)
	if err != nil {
		return err
	}
	defer engine.Close()

	pipeline, err := engine.NewIngestionPipeline()
	if err != nil {
		return err
	}
	defer pipeline.Release()

	start := time.Now()
	result, err := pipeline.Ingest(c.Context, inputs)
	if err != nil {
		return err
	}

	fmt.Fprintf(c.App.Writer, "Ingested %d documents (%d chunks) in %v\n",
		result.Documents, result.Chunks, time.Since(start).Round(time.Millisecond))
	for _, source := range result.Sources {
		fmt.Fprintf(c.App.Writer, "  %s\n", source)
	}
	return nil
}

func askCommand(c *cli.Context) error {
	question := strings.Join(c.Args().Slice(), " ")
	if strings.TrimSpace(question) == "" {
		return errors.New("a question is required")
	}

	engine, err := openEngine(c)
	if err != nil {
		return err
	}
	defer engine.Close()

	var opts []answer.Option
	if k := c.Int("top-k"); k > 0 {
		opts = append(opts, answer.WithTopK(k))
	}
	answerer, err := engine.NewAnswerer(opts...)
	if err != nil {
		return err
	}

	var monitor answer.AnswerMonitor
	if c.Bool("verbose") {
		monitor = &answer.LogMonitor{Logger: slog.Default().With("component", "answer")}
	}
	result, err := answerer.AnswerWithMonitor(c.Context, question, monitor)
	if err != nil {
		return err
	}

	fmt.Fprintln(c.App.Writer, result.Text)
	if result.NoEvidence {
		fmt.Fprintln(c.App.Writer, "\n(no indexed text was relevant to this question)")
		return nil
	}
	fmt.Fprintf(c.App.Writer, "\nSources: %s\n", strings.Join(result.Sources, ", "))
	return nil
}

func documentsCommand(c *cli.Context) error {
	engine, err := openEngine(c)
	if err != nil {
		return err
	}
	defer engine.Close()

	docs, err := engine.Documents(c.Context)
	if err != nil {
		return err
	}
	if len(docs) == 0 {
		fmt.Fprintln(c.App.Writer, "No documents ingested")
		return nil
	}

	w := tabwriter.NewWriter(c.App.Writer, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SOURCE\tCHUNKS\tCHARACTERS\tINGESTED")
	for _, doc := range docs {
		fmt.Fprintf(w, "%s\t%d\t%d\t%s\n", doc.Source, doc.Chunks, doc.Characters, doc.IngestedAt.Local().Format(time.DateTime))
	}
	return w.Flush()
}

func statusCommand(c *cli.Context) error {
	engine, err := openEngine(c)
	if err != nil {
		return err
	}
	defer engine.Close()

	status, err := engine.Status(c.Context)
	if err != nil {
		return err
	}

	out := c.App.Writer
	fmt.Fprintf(out, "Collection: %s\n", status.Collection)
	fmt.Fprintf(out, "Documents:  %d\n", status.Documents)
	fmt.Fprintf(out, "Chunks:     %d (%d indexed)\n", status.Chunks, status.Indexed)
	if status.Manifest == nil {
		fmt.Fprintln(out, "Embedding:  none recorded")
		return nil
	}
	fmt.Fprintf(out, "Embedding:  %s (%d dimensions, %s)\n",
		status.Manifest.EmbeddingModel, status.Manifest.Dimension, status.Manifest.Metric)
	if status.Manifest.Reindexing {
		fmt.Fprintf(out, "Reindex with %s did not finish; run reindex\n", status.Manifest.EmbeddingModel)
	} else if configured := engine.Provider().Embedder().Model(); configured != status.Manifest.EmbeddingModel {
		fmt.Fprintf(out, "Configured embedding model %s differs; run reindex\n", configured)
	}
	return nil
}

func reindexCommand(c *cli.Context) error {
	engine, err := openEngine(c)
	if err != nil {
		return err
	}
	defer engine.Close()

	reindexer, err := engine.NewReindexer(c.App.ErrWriter)
	if err != nil {
		return err
	}

	result, err := reindexer.Run(c.Context)
	if err != nil {
		return err
	}
	if result.Manifest == nil {
		fmt.Fprintln(c.App.Writer, "Nothing to reindex")
		return nil
	}

	fmt.Fprintf(c.App.Writer, "Reindexed %d chunks with %s in %v\n",
		result.Chunks, result.Manifest.EmbeddingModel, result.Elapsed.Round(time.Millisecond))
	return nil
}

func serveCommand(c *cli.Context) error {
	engine, err := openEngine(c)
	if err != nil {
		return err
	}

	svc, err := clauseguard.NewService(engine)
	if err != nil {
		engine.Close()
		return err
	}
	svc = clauseguard.LoggingMiddleware(slog.Default())(svc)
	defer svc.Close()

	cfg := engine.Config()
	addr := c.String("addr")
	if addr == "" {
		addr = cfg.Server.Addr
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.MaxMultipartMemory = cfg.Server.MaxUploadBytes
	httpT.AddRouters(r, clauseguard.MakeEndpoints(svc), cfg.Server.MaxUploadBytes)

	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case sign := <-quit:
		slog.Info("graceful shutdown", "signal", sign.String())
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(ctx)
}
