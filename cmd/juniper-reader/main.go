// Command juniper-reader serves and inspects scripture content stored as
// JSON manifests and book files under a content root.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"text/tabwriter"

	"github.com/alecthomas/kong"
	"gopkg.in/yaml.v3"

	"github.com/FocuswithJustin/JuniperReader/core/content"
	"github.com/FocuswithJustin/JuniperReader/core/ref"
	"github.com/FocuswithJustin/JuniperReader/core/sqlite"
	"github.com/FocuswithJustin/JuniperReader/internal/api"
	"github.com/FocuswithJustin/JuniperReader/internal/config"
	"github.com/FocuswithJustin/JuniperReader/internal/export"
	"github.com/FocuswithJustin/JuniperReader/internal/logging"
	"github.com/FocuswithJustin/JuniperReader/internal/server"
	"github.com/FocuswithJustin/JuniperReader/internal/validation"
)

var version = "0.1.0"

// Globals are flags shared by every command. Set flags override the
// configuration file and environment.
type Globals struct {
	Config    string `name:"config" short:"c" help:"Config file (default: juniper-reader.yaml in . or ./config)" type:"path"`
	Root      string `name:"root" short:"r" help:"Content root directory, overrides --mode" type:"path"`
	Mode      string `name:"mode" help:"Execution mode: dev or packaged"`
	LogLevel  string `name:"log-level" help:"Log level: debug, info, warn, error"`
	LogFormat string `name:"log-format" help:"Log format: text or json"`
	Output    string `name:"output" short:"o" help:"Output format" enum:"text,json,yaml" default:"text"`
}

// CLI defines the command-line interface for juniper-reader.
type CLI struct {
	Globals

	Languages LanguagesCmd `cmd:"" help:"List languages and their translations"`
	Books     BooksCmd     `cmd:"" help:"List the books of a translation"`
	Chapter   ChapterCmd   `cmd:"" help:"Print the verses of a chapter"`
	Check     CheckCmd     `cmd:"" help:"Audit a translation for missing books and chapters"`
	Export    ExportCmd    `cmd:"" help:"Export a translation as JSON, OSIS or SQLite"`
	Serve     ServeCmd     `cmd:"" help:"Start the HTTP and WebSocket content server"`
	Version   VersionCmd   `cmd:"" help:"Print version information"`
}

// App is what commands run against.
type App struct {
	cfg      *config.Config
	resolver *content.Resolver
	out      io.Writer
	output   string
}

func (g *Globals) load(out io.Writer) (*App, error) {
	cfg, err := config.Load(g.Config)
	if err != nil {
		return nil, err
	}

	if g.Root != "" {
		cfg.Root = g.Root
	}
	if g.Mode != "" {
		cfg.Mode = g.Mode
	}
	if g.LogLevel != "" {
		cfg.Log.Level = g.LogLevel
	}
	if g.LogFormat != "" {
		cfg.Log.Format = g.LogFormat
	}

	if err := cfg.InitLogging(); err != nil {
		return nil, err
	}
	rootCfg, err := cfg.RootConfig()
	if err != nil {
		return nil, err
	}

	return &App{
		cfg:      cfg,
		resolver: content.NewResolver(rootCfg),
		out:      out,
		output:   g.Output,
	}, nil
}

// render writes v in the selected output format. text prints the
// human-readable form.
func (a *App) render(v any, text func(w io.Writer) error) error {
	switch a.output {
	case "json":
		enc := json.NewEncoder(a.out)
		enc.SetIndent("", "  ")
		enc.SetEscapeHTML(false)
		return enc.Encode(v)
	case "yaml":
		enc := yaml.NewEncoder(a.out)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	default:
		tw := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
		if err := text(tw); err != nil {
			return err
		}
		return tw.Flush()
	}
}

type LanguagesCmd struct{}

func (c *LanguagesCmd) Run(app *App) error {
	langs, err := app.resolver.ListLanguages()
	if err != nil {
		return err
	}
	return app.render(langs, func(w io.Writer) error {
		fmt.Fprintln(w, "CODE\tLANGUAGE\tID\tTRANSLATION\tFOLDER\tYEAR")
		for _, l := range langs {
			for _, t := range l.Translations {
				year := "-"
				if t.Year != nil {
					year = strconv.Itoa(int(*t.Year))
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n", l.Code, l.Name, t.ID, t.Name, t.Folder, year)
			}
		}
		return nil
	})
}

type BooksCmd struct {
	Language string `arg:"" help:"Language code (e.g., amh)"`
	Folder   string `arg:"" help:"Translation folder"`
}

func (c *BooksCmd) Run(app *App) error {
	books, err := app.resolver.ListBooks(c.Language, c.Folder)
	if err != nil {
		return err
	}
	return app.render(books, func(w io.Writer) error {
		fmt.Fprintln(w, "ABBR\tNAME\tCHAPTERS")
		for _, b := range books {
			fmt.Fprintf(w, "%s\t%s\t%d\n", b.Abbr, b.Name, b.Chapters)
		}
		return nil
	})
}

type ChapterCmd struct {
	Language string  `arg:"" help:"Language code (e.g., amh)"`
	Folder   string  `arg:"" help:"Translation folder"`
	Book     string  `arg:"" help:"Book abbreviation, or a reference such as Gen.3 when chapter is omitted"`
	Number   *uint32 `arg:"" optional:"" name:"chapter" help:"Chapter number"`
}

func (c *ChapterCmd) Run(app *App) error {
	book := c.Book
	var number uint32
	if c.Number != nil {
		number = *c.Number
	} else {
		r, err := ref.ParseChapterRef(c.Book)
		if err != nil {
			return err
		}
		if r.Chapter == 0 {
			return fmt.Errorf("no chapter given for %s", r.Book)
		}
		book, number = r.Book, r.Chapter
	}

	verses, err := app.resolver.ChapterVerses(c.Language, c.Folder, book, number)
	if err != nil {
		return err
	}
	return app.render(verses, func(w io.Writer) error {
		fmt.Fprintf(w, "%s %d\n\n", book, number)
		for _, v := range verses {
			fmt.Fprintf(w, "%s\t%s\n", v.Verse, v.Text)
		}
		return nil
	})
}

type CheckCmd struct {
	Language string `arg:"" help:"Language code (e.g., amh)"`
	Folder   string `arg:"" help:"Translation folder"`
}

func (c *CheckCmd) Run(app *App) error {
	_, report, err := export.Collect(app.resolver, c.Language, c.Folder)
	if err != nil {
		return err
	}

	err = app.render(report, func(w io.Writer) error {
		fmt.Fprintf(w, "%s/%s: %d books, %d chapters, %d verses\n",
			report.LanguageCode, report.Folder, report.Books, report.Chapters, report.Verses)
		for _, issue := range report.Issues {
			fmt.Fprintf(w, "  %s\n", issue)
		}
		return nil
	})
	if err != nil {
		return err
	}

	if !report.OK() {
		return fmt.Errorf("%d issues found in %s/%s", len(report.Issues), c.Language, c.Folder)
	}
	return nil
}

type ExportCmd struct {
	Language string `arg:"" help:"Language code (e.g., amh)"`
	Folder   string `arg:"" help:"Translation folder"`
	Format   string `short:"f" help:"Export format" enum:"json,osis,sqlite" default:"json"`
	Out      string `required:"" help:"Output file path" type:"path"`
	XZ       bool   `name:"xz" help:"Compress JSON output with xz"`
}

func (c *ExportCmd) Run(app *App) error {
	format, err := export.ParseFormat(c.Format)
	if err != nil {
		return err
	}
	if err := validation.ValidatePath(c.Out); err != nil {
		return err
	}

	t, report, err := export.Collect(app.resolver, c.Language, c.Folder)
	if err != nil {
		return err
	}
	for _, issue := range report.Issues {
		logging.Warn("export incomplete", "issue", issue.String())
	}

	if err := export.WriteFile(context.Background(), t, format, c.Out, c.XZ); err != nil {
		return err
	}
	fmt.Fprintf(app.out, "Exported %d books (%d chapters, %d verses) to %s\n",
		report.Books, report.Chapters, report.Verses, server.AbsPath(c.Out))
	return nil
}

type ServeCmd struct {
	Host          string   `help:"Listen host (default from config: 127.0.0.1)"`
	Port          int      `help:"Listen port (default from config: 1420)"`
	AllowedOrigin []string `name:"allowed-origin" help:"Allowed CORS/WebSocket origin (repeatable)"`
	RateLimit     int      `name:"rate-limit" help:"Requests per minute per client, 0 disables"`
}

// apiConfig merges flags over the loaded server settings.
func (c *ServeCmd) apiConfig(cfg *config.Config) api.Config {
	s := cfg.Server
	out := api.Config{
		Host:              s.Host,
		Port:              s.Port,
		Version:           version,
		AllowedOrigins:    s.AllowedOrigins,
		RateLimitRequests: s.RateLimit,
		RateLimitBurst:    s.RateLimitBurst,
		ShutdownTimeout:   s.ShutdownTimeout,
		WebSocket: api.WebSocketConfig{
			MaxMessageRate: s.WebSocket.MaxMessageRate,
			MaxMessageSize: s.WebSocket.MaxMessageSize,
		},
	}
	if c.Host != "" {
		out.Host = c.Host
	}
	if c.Port != 0 {
		out.Port = c.Port
	}
	if len(c.AllowedOrigin) > 0 {
		out.AllowedOrigins = c.AllowedOrigin
	}
	if c.RateLimit != 0 {
		out.RateLimitRequests = c.RateLimit
	}
	return out
}

func (c *ServeCmd) Run(app *App) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if root, err := app.resolver.Root(); err == nil {
		fmt.Fprintf(app.out, "Serving %s\n", root)
	}
	return api.Start(ctx, c.apiConfig(app.cfg), app.resolver)
}

type VersionCmd struct{}

// versionInfo is the structured form of the version command.
type versionInfo struct {
	Version string      `json:"version" yaml:"version"`
	SQLite  sqlite.Info `json:"sqlite" yaml:"sqlite"`
	Config  string      `json:"config,omitempty" yaml:"config,omitempty"`
}

func (c *VersionCmd) Run(app *App) error {
	info := versionInfo{Version: version, SQLite: sqlite.GetInfo(), Config: app.cfg.File}
	return app.render(info, func(w io.Writer) error {
		fmt.Fprintf(w, "juniper-reader version %s\n", info.Version)
		fmt.Fprintf(w, "sqlite driver %s (%s)\n", info.SQLite.Package, info.SQLite.DriverType)
		return nil
	})
}

func newParser(cli *CLI, options ...kong.Option) (*kong.Kong, error) {
	options = append([]kong.Option{
		kong.Name("juniper-reader"),
		kong.Description("Juniper Reader - scripture content server and tools"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
	}, options...)
	return kong.New(cli, options...)
}

// execute parses args and runs the selected command, writing command
// output to out.
func execute(parser *kong.Kong, cli *CLI, args []string, out io.Writer) error {
	ctx, err := parser.Parse(args)
	if err != nil {
		return err
	}
	app, err := cli.Globals.load(out)
	if err != nil {
		return err
	}
	return ctx.Run(app)
}

func main() {
	var cli CLI
	parser, err := newParser(&cli)
	if err != nil {
		panic(err)
	}
	parser.FatalIfErrorf(execute(parser, &cli, os.Args[1:], os.Stdout))
}
