package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/letmevibethatforyou/odatax"
	"github.com/letmevibethatforyou/odatax/inmemory"
	"github.com/letmevibethatforyou/odatax/internal/astdoc"
	"github.com/letmevibethatforyou/odatax/odata"
	"github.com/letmevibethatforyou/odatax/traced"
	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"
)

const (
	defaultFormat  = "json"
	defaultTimeout = 5 * time.Second
)

func main() {
	if err := newApp(os.Stdout, os.Stderr).Run(os.Args); err != nil {
		slog.Error("Application failed", "error", err)
		os.Exit(1)
	}
}

func newApp(stdout, stderr io.Writer) *cli.App {
	requestFlags := []cli.Flag{
		&cli.StringFlag{
			Name:     "request",
			Aliases:  []string{"r"},
			Usage:    "Path to the YAML or JSON request document",
			EnvVars:  []string{"ODATAC_REQUEST"},
			Required: true,
		},
		&cli.StringFlag{
			Name:    "naming",
			Aliases: []string{"n"},
			Usage:   "Path to a naming config mapping source fields to index names",
			EnvVars: []string{"ODATAC_NAMING"},
		},
		&cli.StringSliceFlag{
			Name:  "var",
			Usage: "Variable in name=value format visible to var and eval nodes; repeatable",
		},
	}

	return &cli.App{
		Name:      "odatac",
		Usage:     "Compile expression documents into OData search parameters",
		Writer:    stdout,
		ErrWriter: stderr,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-format",
				Usage:   "Log output format: text or json",
				EnvVars: []string{"ODATAC_LOG_FORMAT"},
				Value:   "text",
			},
			&cli.BoolFlag{
				Name:  "verbose",
				Usage: "Log at debug level",
			},
		},
		Before: configureLogging,
		Commands: []*cli.Command{
			{
				Name:  "compile",
				Usage: "Compile a request into search parameters",
				Flags: append([]cli.Flag{
					&cli.StringFlag{
						Name:    "format",
						Aliases: []string{"f"},
						Usage:   "Output format: json or query",
						Value:   defaultFormat,
					},
				}, requestFlags...),
				Action: compileAction,
			},
			{
				Name:  "search",
				Usage: "Run a request against a JSON document set in memory",
				Flags: append([]cli.Flag{
					&cli.StringFlag{
						Name:     "documents",
						Aliases:  []string{"d"},
						Usage:    "Path to a JSON array of documents, each with a string id",
						Required: true,
					},
					&cli.DurationFlag{
						Name:  "timeout",
						Usage: "Timeout for the search",
						Value: defaultTimeout,
					},
				}, requestFlags...),
				Action: searchAction,
			},
		},
	}
}

func configureLogging(c *cli.Context) error {
	opts := &slog.HandlerOptions{}
	if c.Bool("verbose") {
		opts.Level = slog.LevelDebug
	}

	switch strings.ToLower(c.String("log-format")) {
	case "json":
		slog.SetDefault(slog.New(slog.NewJSONHandler(c.App.ErrWriter, opts)))
	case "text", "":
		slog.SetDefault(slog.New(slog.NewTextHandler(c.App.ErrWriter, opts)))
	default:
		return fmt.Errorf("unknown log format %q", c.String("log-format"))
	}
	return nil
}

// settings are the inputs shared by every command.
type settings struct {
	request *astdoc.Request
	naming  *odata.Naming
	env     odata.Env
}

func loadSettings(c *cli.Context) (*settings, error) {
	req, err := astdoc.LoadRequest(c.String("request"))
	if err != nil {
		return nil, err
	}

	naming := odata.DefaultNaming
	if path := strings.TrimSpace(c.String("naming")); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read naming config: %w", err)
		}
		if naming, err = odata.ParseNamingConfig(data); err != nil {
			return nil, err
		}
	}

	env, err := parseVars(c.StringSlice("var"))
	if err != nil {
		return nil, fmt.Errorf("invalid variable: %w", err)
	}

	return &settings{request: req, naming: naming, env: env}, nil
}

// parseVars decodes name=value pairs. Values are read as YAML scalars, so
// "3" is a number and "true" a bool.
func parseVars(raw []string) (odata.Env, error) {
	env := make(odata.Env, len(raw))
	for _, item := range raw {
		name, value, ok := strings.Cut(item, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("variable must be in name=value format: %q", item)
		}

		var v any
		if err := yaml.Unmarshal([]byte(value), &v); err != nil || v == nil {
			v = value
		}
		env[name] = v
	}
	return env, nil
}

func compileAction(c *cli.Context) error {
	ctx := c.Context

	format := strings.ToLower(strings.TrimSpace(c.String("format")))
	if format != "json" && format != "query" {
		return fmt.Errorf("unknown output format %q", format)
	}

	s, err := loadSettings(c)
	if err != nil {
		return err
	}

	opts := s.request.Options()
	slog.DebugContext(ctx, "compiling request",
		"request", c.String("request"),
		"option_count", len(opts),
		"variable_count", len(s.env),
	)

	compiler := traced.NewCompiler(odata.NewCompiler(odata.WithResolver(s.naming), odata.WithEnv(s.env)))
	params, err := compiler.Build(ctx, opts...)
	if err != nil {
		slog.DebugContext(ctx, "compile failed", "code", odatax.CodeOf(err).String())
		return fmt.Errorf("compile failed: %w", err)
	}

	if format == "query" {
		q := params.Query()
		if s.request.Search != "" {
			q.Set("search", s.request.Search)
		}
		_, err := fmt.Fprintln(c.App.Writer, q.Encode())
		return err
	}
	return writeJSON(c.App.Writer, params)
}

func searchAction(c *cli.Context) error {
	s, err := loadSettings(c)
	if err != nil {
		return err
	}

	docs, err := loadDocuments(c.String("documents"))
	if err != nil {
		return err
	}

	timeout := c.Duration("timeout")
	if timeout <= 0 {
		slog.WarnContext(c.Context, "timeout must be positive; using default", "timeout", timeout, "default", defaultTimeout)
		timeout = defaultTimeout
	}
	ctx, cancel := context.WithTimeout(c.Context, timeout)
	defer cancel()

	store := inmemory.New(inmemory.WithNaming(s.naming), inmemory.WithEnv(s.env))
	for _, doc := range docs {
		store.AddDocument(doc)
	}
	searcher := traced.NewSearcher(store, "inmemory")

	slog.InfoContext(ctx, "executing search",
		"documents", len(docs),
		"query", s.request.Search,
		"timeout", timeout,
	)

	results, err := searcher.Search(ctx, s.request.Search, s.request.Options()...)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}
	return writeJSON(c.App.Writer, results)
}

// loadDocuments reads a JSON array of objects keyed by their "id" field.
func loadDocuments(path string) ([]inmemory.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read documents: %w", err)
	}

	var raw []map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse documents: %w", err)
	}

	docs := make([]inmemory.Document, 0, len(raw))
	for i, fields := range raw {
		id, ok := fields["id"].(string)
		if !ok || id == "" {
			return nil, fmt.Errorf("document %d has no string id", i)
		}
		docs = append(docs, inmemory.Document{ID: id, Fields: fields})
	}
	return docs, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}
	return nil
}
