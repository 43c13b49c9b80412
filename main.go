// transcan is a translation key scanner. It keeps per-locale translation stores
// in sync with the keys used in the sources and serves a catalog UI.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"runtime/debug"
	"sort"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/rs/zerolog"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/minios-linux/transcan/catalog"
	"github.com/minios-linux/transcan/config"
	"github.com/minios-linux/transcan/i18n"
	"github.com/minios-linux/transcan/langmeta"
	"github.com/minios-linux/transcan/lockfile"
	"github.com/minios-linux/transcan/safefile"
	"github.com/minios-linux/transcan/scan"
	"github.com/minios-linux/transcan/server"
	"github.com/minios-linux/transcan/translate"
)

// Version information (set via -ldflags during build)
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var (
	infoLabel    = color.New(color.FgBlue).SprintFunc()
	successLabel = color.New(color.FgGreen).SprintFunc()
	warnLabel    = color.New(color.FgYellow, color.Bold).SprintFunc()
	errorLabel   = color.New(color.FgRed).SprintFunc()
	headingLabel = color.New(color.FgBlue, color.Bold).SprintFunc()
)

func logInfo(format string, args ...any) {
	fmt.Fprintf(color.Error, infoLabel("[INFO]")+" "+format+"\n", args...)
}

func logSuccess(format string, args ...any) {
	fmt.Fprintf(color.Error, successLabel("[OK]")+" "+format+"\n", args...)
}

func logWarning(format string, args ...any) {
	fmt.Fprintf(color.Error, warnLabel("[WARN]")+" "+format+"\n", args...)
}

func logError(format string, args ...any) {
	fmt.Fprintf(color.Error, errorLabel("[ERROR]")+" "+format+"\n", args...)
}

func heading(title string) {
	fmt.Fprintf(color.Error, "\n%s\n", headingLabel(title))
	fmt.Fprintln(color.Error, strings.Repeat("─", 60))
}

// ---------------------------------------------------------------------------
// Global flags
// ---------------------------------------------------------------------------

var (
	rootDir string
	verbose bool
	uiLang  string
)

// newLogger returns the structured logger handed to the library packages.
// Verbose mode always logs at debug level.
func newLogger(level zerolog.Level) zerolog.Logger {
	if verbose {
		level = zerolog.DebugLevel
	}
	out := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly, NoColor: color.NoColor}
	return zerolog.New(out).Level(level).With().Timestamp().Logger()
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(rootDir)
	if err != nil {
		return nil, fmt.Errorf("loading configuration: %w", err)
	}
	return cfg, nil
}

// signalContext returns a context cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// ---------------------------------------------------------------------------
// Root command
// ---------------------------------------------------------------------------

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "transcan",
		Short: "Translation key scanner and catalog server",
		Long: `transcan — translation key scanner and catalog server.

Finds translation keys such as __('messages.save') or trans("Cancel") in
source files and keeps the per-locale stores of the lang directory in sync:
<locale>/<namespace>.yaml for namespaced keys and <locale>.json for plain
keys. Missing or suspicious values are filled with a readable label or, with
--translate, a machine translation.

Commands:
  scan      Synchronize the stores with the sources
  serve     Serve the catalog UI and API
  list      Print the entries of a locale
  status    Show configuration and per-locale statistics
  init      Write a .transcan.yaml with the defaults`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			i18n.Init(uiLang)
		},
	}

	// Global persistent flags, inherited by all subcommands
	root.PersistentFlags().StringVar(&rootDir, "root", ".", "Project root directory")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Debug logging and stack traces on internal errors")
	root.PersistentFlags().StringVar(&uiLang, "ui-lang", "", "Language of transcan's own messages (default: from the environment)")

	root.AddCommand(
		newScanCmd(),
		newServeCmd(),
		newListCmd(),
		newStatusCmd(),
		newInitCmd(),
		newVersionCmd(),
	)

	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		logError("%v", err)
		os.Exit(1)
	}
}

// ---------------------------------------------------------------------------
// version
// ---------------------------------------------------------------------------

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Long:  `Display version, commit hash, and build date.`,
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "transcan version %s\n", version)
			fmt.Fprintf(out, "  commit:    %s\n", commit)
			fmt.Fprintf(out, "  built:     %s\n", date)
		},
	}
}

// ---------------------------------------------------------------------------
// scan
// ---------------------------------------------------------------------------

// scanArgs are the flags of the scan command. The translator flags are
// shared with serve.
type scanArgs struct {
	paths       string
	locales     string
	ignore      string
	ignoreFiles string
	ignoreDirs  string
	translate   bool
	overwrite   bool
	translator  translatorArgs
}

// translatorArgs override the translator section of the configuration.
type translatorArgs struct {
	endpoint    string
	insecure    bool
	noCache     bool
	concurrency int
	timeout     time.Duration
}

func addTranslatorFlags(fs *pflag.FlagSet, a *translatorArgs) {
	fs.StringVar(&a.endpoint, "endpoint", "", "Translation endpoint (default: Google Translate gtx)")
	fs.BoolVar(&a.insecure, "insecure", false, "Skip TLS certificate verification of the translation endpoint")
	fs.BoolVar(&a.noCache, "no-cache", false, "Do not read or update the "+lockfile.LockFileName+" translation memory")
	fs.IntVar(&a.concurrency, "concurrency", 0, "Translation requests in flight per store (default from config)")
	fs.DurationVar(&a.timeout, "timeout", 0, "Timeout of one translation request (default from config)")
}

// apply copies the flags that were set onto cfg.
func (a translatorArgs) apply(fs *pflag.FlagSet, cfg *config.Config) {
	if fs.Changed("endpoint") {
		cfg.Translator.Endpoint = a.endpoint
	}
	if fs.Changed("insecure") {
		cfg.Translator.InsecureSkipVerify = a.insecure
	}
	if a.noCache {
		cfg.Translator.Cache = false
	}
	if a.concurrency > 0 {
		cfg.Translator.Concurrency = a.concurrency
	}
	if a.timeout > 0 {
		cfg.Translator.Timeout = a.timeout
	}
}

// apply copies the flags that were set onto cfg.
func (a scanArgs) apply(fs *pflag.FlagSet, cfg *config.Config) {
	if fs.Changed("path") {
		cfg.Paths = config.SplitList(a.paths)
	}
	if fs.Changed("locales") {
		cfg.Locales = config.SplitList(a.locales)
	}
	if fs.Changed("ignore") {
		cfg.Ignore = config.SplitList(a.ignore)
	}
	if fs.Changed("ignoreFile") {
		cfg.IgnoreFiles = config.SplitList(a.ignoreFiles)
	}
	if fs.Changed("ignoreDir") {
		cfg.IgnoreDirs = config.SplitList(a.ignoreDirs)
	}
	a.translator.apply(fs, cfg)
}

func newScanCmd() *cobra.Command {
	var a scanArgs

	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Synchronize the translation stores with the sources",
		Long: `Scan the source paths for translation keys and write missing or
suspicious values into the stores of every locale.

Namespaced keys ("messages.save") go to <lang>/<locale>/messages.yaml,
plain keys ("Cancel") go to <lang>/<locale>.json. Values that look right are
kept unless --overwrite is given. Running the command twice without source
changes writes nothing the second time.`,
		Example: `  transcan scan --locales en,ar
  transcan scan --locales ar --translate
  transcan scan --path resources/views --ignoreDir vendor,node_modules`,
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			defer recoverInternal(&err)

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			a.apply(cmd.Flags(), cfg)
			if err := cfg.Validate(); err != nil {
				return err
			}

			ctx, cancel := signalContext()
			defer cancel()
			return runScan(ctx, cfg, a.translate, a.overwrite)
		},
	}

	f := cmd.Flags()
	f.StringVar(&a.paths, "path", "", "Source roots to scan, comma-separated (default from config)")
	f.StringVar(&a.locales, "locales", "", "Locales to synchronize, comma-separated (default from config)")
	f.StringVar(&a.ignore, "ignore", "", "Skip roots containing one of these substrings, comma-separated")
	f.StringVar(&a.ignoreFiles, "ignoreFile", "", "File name globs to skip, comma-separated")
	f.StringVar(&a.ignoreDirs, "ignoreDir", "", "Directory globs to skip, comma-separated")
	f.BoolVar(&a.translate, "translate", false, "Machine-translate generated values")
	f.BoolVar(&a.overwrite, "overwrite", false, "Regenerate every referenced key")
	addTranslatorFlags(f, &a.translator)

	return cmd
}

// recoverInternal turns a panic into the command error, printing the stack
// trace in verbose mode. Files written before the panic stay on disk.
func recoverInternal(err *error) {
	rv := recover()
	if rv == nil {
		return
	}
	if verbose {
		fmt.Fprintf(os.Stderr, "%s\n", debug.Stack())
	}
	*err = fmt.Errorf("internal error: %v", rv)
}

// runScan synchronizes the locales of cfg and prints a summary.
func runScan(ctx context.Context, cfg *config.Config, translateValues, overwrite bool) error {
	log := newLogger(zerolog.WarnLevel)

	opts, memory := scanOptions(cfg, log, translateValues, overwrite)
	bars := newProgressBars(!color.NoColor)
	opts.OnScanProgress = bars.scan
	opts.OnTranslateProgress = bars.translate

	logInfo("Lang directory: %s", relPath(cfg.Root, cfg.LangPath()))
	logInfo("Locales: %s", strings.Join(cfg.Locales, ", "))
	if translateValues {
		logInfo("Translation: enabled (%d concurrent requests)", cfg.Translator.Concurrency)
	}

	report, err := scan.Run(ctx, opts)
	bars.finish()

	if memory != nil {
		if saveErr := memory.Save(); saveErr != nil {
			logWarning("Saving translation memory: %v", saveErr)
		}
	}
	if report != nil {
		printReport(cfg, report)
	}

	if err != nil {
		if ctx.Err() != nil {
			logWarning("Scan interrupted, stores written so far were kept")
			return nil
		}
		return fmt.Errorf("scan failed: %w", err)
	}

	if n := report.Changed(); n > 0 {
		logSuccess("%s", i18n.T("Scan completed: %d keys updated", n))
	} else {
		logSuccess("%s", i18n.T("Nothing to update"))
	}
	return nil
}

// scanOptions builds the scan options for cfg. The returned translation
// memory, when not nil, has to be saved after the run.
func scanOptions(cfg *config.Config, log zerolog.Logger, translateValues, overwrite bool) (scan.Options, *lockfile.LockFile) {
	opts := scan.Options{
		LangDir:     cfg.LangPath(),
		Paths:       cfg.SourcePaths(),
		Locales:     cfg.Locales,
		Ignore:      cfg.Ignore,
		IgnoreFiles: cfg.IgnoreFiles,
		IgnoreDirs:  cfg.IgnoreDirs,
		Overwrite:   overwrite,
		Heuristics:  cfg.Policy(),
		Translate:   translateValues,
		Concurrency: cfg.Translator.Concurrency,
		Log:         log,
	}
	if !translateValues {
		return opts, nil
	}

	adapter, memory := newAdapter(cfg, log)
	opts.Translator = adapter
	return opts, memory
}

// newAdapter builds the translator adapter described by cfg, with the
// translation memory when caching is enabled.
func newAdapter(cfg *config.Config, log zerolog.Logger) (*translate.Adapter, *lockfile.LockFile) {
	tc := cfg.Translator
	if tc.InsecureSkipVerify {
		endpoint := tc.Endpoint
		if endpoint == "" {
			endpoint = translate.DefaultEndpoint
		}
		logWarning("TLS certificate verification is disabled for %s", endpoint)
	}

	client := translate.NewClient(translate.Options{
		Endpoint:           tc.Endpoint,
		SourceLocale:       cfg.SourceLocale,
		ConnectTimeout:     tc.ConnectTimeout,
		Timeout:            tc.Timeout,
		InsecureSkipVerify: tc.InsecureSkipVerify,
		Proxy:              tc.Proxy,
		MaxRetries:         tc.MaxRetries,
	})
	adapter := &translate.Adapter{Translator: client, SourceLocale: cfg.SourceLocale, Log: log}

	if !tc.Cache {
		return adapter, nil
	}
	memory, err := lockfile.Load(cfg.Root)
	if err != nil {
		logWarning("Ignoring unreadable translation memory: %v", err)
		memory = lockfile.New(cfg.Root)
	}
	adapter.Memory = memory
	return adapter, memory
}

func printReport(cfg *config.Config, report *scan.Report) {
	for _, r := range report.Roots {
		root := relPath(cfg.Root, r.Root)
		switch {
		case r.Skipped == "not found":
			logWarning("%s", i18n.T("Skipping missing path: %s", root))
		case r.Skipped != "":
			logInfo("%s (%s)", i18n.T("Skipping ignored path: %s", root), r.Skipped)
		default:
			logInfo("%s: %s, %d keys", root, i18n.N("%d file", "%d files", r.Files, r.Files), r.Keys)
		}
	}
	for _, s := range report.Written() {
		logSuccess("%s", s.Summary())
	}
	for _, s := range report.Failed() {
		logError("%s: %v", s.File, s.Err)
	}
}

func relPath(root, path string) string {
	if rel, err := filepath.Rel(root, path); err == nil && !strings.HasPrefix(rel, "..") {
		return rel
	}
	return path
}

// ---------------------------------------------------------------------------
// Progress bars
// ---------------------------------------------------------------------------

// progressBars renders one bar at a time for the scan and translate
// callbacks, which may arrive from several goroutines.
type progressBars struct {
	enabled bool

	mu      sync.Mutex
	bar     *progressbar.ProgressBar
	current string
}

func newProgressBars(enabled bool) *progressBars {
	return &progressBars{enabled: enabled}
}

func (p *progressBars) scan(root string, done, total int) {
	p.update("scan:"+root, i18n.T("Scanning files"), done, total)
}

func (p *progressBars) translate(file string, done, total int) {
	p.update("translate:"+file, i18n.T("Translating %s", file), done, total)
}

func (p *progressBars) update(id, description string, done, total int) {
	if !p.enabled || total == 0 {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.bar == nil || p.current != id {
		p.finishLocked()
		p.current = id
		p.bar = progressbar.NewOptions(total,
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionSetDescription(description),
			progressbar.OptionShowCount(),
			progressbar.OptionSetWidth(30),
			progressbar.OptionClearOnFinish(),
			progressbar.OptionThrottle(65*time.Millisecond),
		)
	}
	_ = p.bar.Set(done)
	if done >= total {
		p.finishLocked()
	}
}

func (p *progressBars) finish() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.finishLocked()
}

func (p *progressBars) finishLocked() {
	if p.bar != nil {
		_ = p.bar.Finish()
		p.bar = nil
		p.current = ""
	}
}

// ---------------------------------------------------------------------------
// serve
// ---------------------------------------------------------------------------

func newServeCmd() *cobra.Command {
	var (
		listen     string
		prefix     string
		perPage    int
		translator translatorArgs
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the catalog UI and API",
		Long: `Serve a web UI to search, edit and delete translations, and to run
scans. The UI and its JSON API are mounted under the configured prefix
(default /translation-scanner); /metrics and /healthz are served at the root.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			fs := cmd.Flags()
			if fs.Changed("listen") {
				cfg.Server.Listen = listen
			}
			if fs.Changed("prefix") {
				cfg.Server.Prefix = prefix
			}
			if perPage > 0 {
				cfg.Server.PerPage = perPage
			}
			translator.apply(fs, cfg)

			ctx, cancel := signalContext()
			defer cancel()
			return runServe(ctx, cfg, nil)
		},
	}

	f := cmd.Flags()
	f.StringVar(&listen, "listen", "", "Listen address (default from config, 127.0.0.1:8080)")
	f.StringVar(&prefix, "prefix", "", "URL prefix of the UI (default from config, /translation-scanner)")
	f.IntVar(&perPage, "per-page", 0, "Entries per page (default from config)")
	addTranslatorFlags(f, &translator)

	return cmd
}

// runServe serves cfg until ctx is cancelled. onListen, if set, receives
// the bound address.
func runServe(ctx context.Context, cfg *config.Config, onListen func(net.Addr)) error {
	log := newLogger(zerolog.InfoLevel)

	scanFn := func(ctx context.Context, locales []string, translateValues bool) (*scan.Report, error) {
		c := *cfg
		c.Locales = locales
		opts, memory := scanOptions(&c, log, translateValues, false)
		report, err := scan.Run(ctx, opts)
		if memory != nil {
			if saveErr := memory.Save(); saveErr != nil {
				log.Warn().Err(saveErr).Msg("saving translation memory")
			}
		}
		return report, err
	}

	srv, err := server.New(server.Options{
		Catalog:        catalog.New(cfg.LangPath(), log),
		Prefix:         cfg.Server.Prefix,
		PerPage:        cfg.Server.PerPage,
		DefaultLocales: cfg.Locales,
		Scan:           scanFn,
		Log:            log,
	})
	if err != nil {
		return err
	}

	return srv.ListenAndServe(ctx, cfg.Server.Listen, func(addr net.Addr) {
		logInfo("Serving %s on http://%s%s/", relPath(cfg.Root, cfg.LangPath()), addr, strings.TrimSuffix(cfg.Server.Prefix, "/"))
		if onListen != nil {
			onListen(addr)
		}
	})
}

// ---------------------------------------------------------------------------
// list
// ---------------------------------------------------------------------------

func newListCmd() *cobra.Command {
	var (
		search  string
		page    int
		perPage int
		asJSON  bool
	)

	cmd := &cobra.Command{
		Use:   "list [locale...]",
		Short: "Print the entries of one or more locales",
		Long: `Print the translation entries of the given locales (default: every
locale in the lang directory), sorted by key and paginated like the UI.`,
		Example: `  transcan list ar
  transcan list --search save en ar
  transcan list --json --per-page 100 en`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if perPage < 1 {
				perPage = cfg.Server.PerPage
			}
			cat := catalog.New(cfg.LangPath(), newLogger(zerolog.WarnLevel))
			return runList(cmd, cat, args, search, page, perPage, asJSON)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&search, "search", "s", "", "Only entries whose key, value or file contains this text")
	f.IntVarP(&page, "page", "p", 1, "Page to print")
	f.IntVar(&perPage, "per-page", 0, "Entries per page (default from config)")
	f.BoolVar(&asJSON, "json", false, "Print JSON instead of a table")

	return cmd
}

func runList(cmd *cobra.Command, cat *catalog.Catalog, locales []string, search string, page, perPage int, asJSON bool) error {
	if len(locales) == 0 {
		var err error
		if locales, err = cat.Locales(); err != nil {
			return err
		}
	}
	if len(locales) == 0 {
		logInfo("No locales found in %s", cat.Dir)
		return nil
	}

	pages := make(map[string]catalog.Page, len(locales))
	for _, locale := range locales {
		if !catalog.ValidLocale(locale) {
			return fmt.Errorf("%w: %q", catalog.ErrInvalidLocale, locale)
		}
		pages[locale] = catalog.Paginate(catalog.Search(cat.LoadLocale(locale), search), page, perPage)
	}

	out := cmd.OutOrStdout()
	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		enc.SetEscapeHTML(false)
		return enc.Encode(pages)
	}

	for _, locale := range locales {
		p := pages[locale]
		meta := langmeta.Resolve(locale)
		fmt.Fprintf(out, "%s (%s) — %s\n", locale, meta.Name, i18n.N("%d entry", "%d entries", p.Total, p.Total))
		if len(p.Items) == 0 {
			fmt.Fprintf(out, "  %s\n\n", i18n.T("No translations found."))
			continue
		}

		keyWidth := 0
		for _, e := range p.Items {
			keyWidth = max(keyWidth, len(e.Key))
		}
		keyWidth = min(keyWidth, 40)
		for _, e := range p.Items {
			fmt.Fprintf(out, "  %-*s  %s  [%s]\n", keyWidth, e.Key, e.Value, e.File)
		}
		fmt.Fprintf(out, "  %s\n\n", i18n.T("Page %d of %d", p.CurrentPage, p.LastPage))
	}
	return nil
}

// ---------------------------------------------------------------------------
// status (read-only: configuration + per-locale statistics)
// ---------------------------------------------------------------------------

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show configuration and translation statistics",
		Long: `Show the effective configuration and, for every locale, the number of
entries and of values the scanner would regenerate. Does not modify any files.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			runStatus(cfg)
			return nil
		},
	}
}

// localeStats summarizes the stores of one locale.
type localeStats struct {
	locale  string
	entries int
	files   int
	// stale counts values the policy would regenerate.
	stale int
}

func (s localeStats) percent() int {
	if s.entries == 0 {
		return 0
	}
	return (s.entries - s.stale) * 100 / s.entries
}

func collectStats(cfg *config.Config, cat *catalog.Catalog, locales []string) []localeStats {
	h := cfg.Policy()
	var out []localeStats
	for _, locale := range locales {
		entries := cat.LoadLocale(locale)
		counts := catalog.Count(entries)
		st := localeStats{locale: locale, entries: counts.Entries, files: len(counts.Files)}
		source := langmeta.SameLanguage(locale, cfg.SourceLocale)
		for _, e := range entries {
			// Labels derived from the key are expected in the source locale,
			// so only the script checks apply there.
			key := ""
			if !source {
				key = lastSegment(e)
			}
			if h.NeedsGeneration(e.Value, locale, false, key) {
				st.stale++
			}
		}
		out = append(out, st)
	}
	return out
}

// lastSegment returns the key the policy compares a value with: the subkey
// for namespaced entries, the whole key for flat ones.
func lastSegment(e catalog.Entry) string {
	if !e.Namespaced() {
		return e.Key
	}
	if i := strings.LastIndex(e.Key, "."); i >= 0 {
		return e.Key[i+1:]
	}
	return e.Key
}

func runStatus(cfg *config.Config) {
	heading("Project")
	fmt.Fprintf(os.Stderr, "  Root:        %s\n", cfg.Root)
	source := cfg.Source
	if source == "" {
		source = "built-in defaults"
	}
	fmt.Fprintf(os.Stderr, "  Config:      %s\n", source)
	fmt.Fprintf(os.Stderr, "  Lang dir:    %s\n", relPath(cfg.Root, cfg.LangPath()))
	fmt.Fprintf(os.Stderr, "  Source:      %s\n", cfg.SourceLocale)
	fmt.Fprintf(os.Stderr, "  Locales:     %s\n", strings.Join(cfg.Locales, ", "))
	fmt.Fprintf(os.Stderr, "  Paths:       %s\n", strings.Join(cfg.Paths, ", "))
	endpoint := cfg.Translator.Endpoint
	if endpoint == "" {
		endpoint = translate.DefaultEndpoint
	}
	tls := "verified"
	if cfg.Translator.InsecureSkipVerify {
		tls = warnLabel("not verified")
	}
	fmt.Fprintf(os.Stderr, "  Translator:  %s (TLS %s)\n", endpoint, tls)

	cat := catalog.New(cfg.LangPath(), newLogger(zerolog.WarnLevel))
	locales, err := cat.Locales()
	if err != nil {
		logWarning("%v", err)
	}
	locales = mergeLocales(cfg.Locales, locales)

	heading("Translation Statistics")
	fmt.Fprintf(os.Stderr, "%-10s %-8s %-8s %-8s %s\n", "Locale", "Entries", "Files", "Stale", "Progress")
	fmt.Fprintln(os.Stderr, strings.Repeat("─", 60))
	for _, st := range collectStats(cfg, cat, locales) {
		if st.entries == 0 {
			fmt.Fprintf(os.Stderr, "%-10s %-8s %-8s %-8s %s\n", st.locale, "missing", "-", "-", "-")
			continue
		}
		fmt.Fprintf(os.Stderr, "%-10s %-8d %-8d %-8d %s\n", st.locale, st.entries, st.files, st.stale, progressBar(st.percent(), 20))
	}

	if cfg.Translator.Cache {
		if memory, err := lockfile.Load(cfg.Root); err == nil {
			fmt.Fprintf(os.Stderr, "\n  Translation memory: %s\n", memory.Summary())
		}
	}

	heading("Suggested Commands")
	fmt.Fprintf(os.Stderr, "  # Add missing keys with readable labels\n")
	fmt.Fprintf(os.Stderr, "  transcan scan --locales %s\n\n", strings.Join(locales, ","))
	fmt.Fprintf(os.Stderr, "  # Fill them with machine translations\n")
	fmt.Fprintf(os.Stderr, "  transcan scan --translate --locales %s\n\n", strings.Join(locales, ","))
	fmt.Fprintf(os.Stderr, "  # Review and edit in the browser\n")
	fmt.Fprintf(os.Stderr, "  transcan serve\n\n")
}

// mergeLocales returns the configured locales followed by the other
// locales found on disk.
func mergeLocales(configured, found []string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, l := range append(append([]string(nil), configured...), found...) {
		if !seen[l] {
			seen[l] = true
			out = append(out, l)
		}
	}
	return out
}

// progressBar renders a colored bar for percent, clamped to 0..100.
func progressBar(percent, width int) string {
	percent = max(0, min(100, percent))
	filled := percent * width / 100
	bar := strings.Repeat("█", filled) + strings.Repeat("░", width-filled)

	var c *color.Color
	switch {
	case percent >= 80:
		c = color.New(color.FgGreen)
	case percent >= 40:
		c = color.New(color.FgYellow)
	default:
		c = color.New(color.FgRed)
	}
	return fmt.Sprintf("%s %3d%%", c.Sprint(bar), percent)
}

// ---------------------------------------------------------------------------
// init
// ---------------------------------------------------------------------------

func newInitCmd() *cobra.Command {
	var (
		locales string
		force   bool
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write " + config.FileName + " with the effective defaults",
		Long: `Write ` + config.FileName + ` into the project root with the configuration
transcan would use right now (auto-detected lang directory, defaults) and
create the lang directory. Refuses to overwrite an existing file unless
--force is given.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cfg.Source != "" && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", cfg.Source)
			}
			if locales != "" {
				cfg.Locales = config.SplitList(locales)
			}
			return runInit(cfg)
		},
	}

	cmd.Flags().StringVar(&locales, "locales", "", "Locales to configure, comma-separated")
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing "+config.FileName)

	return cmd
}

func runInit(cfg *config.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	data, err := cfg.Marshal()
	if err != nil {
		return fmt.Errorf("encoding configuration: %w", err)
	}
	path := filepath.Join(cfg.Root, config.FileName)
	if err := safefile.WriteFile(path, data, 0o644); err != nil {
		return err
	}
	if err := os.MkdirAll(cfg.LangPath(), 0o755); err != nil {
		return fmt.Errorf("creating lang directory: %w", err)
	}

	logSuccess("Wrote %s", path)
	missing := missingPaths(cfg)
	for _, p := range missing {
		logWarning("Source path %s does not exist yet", p)
	}
	if len(missing) == 0 {
		logInfo("Next: transcan scan --locales %s", strings.Join(cfg.Locales, ","))
	}
	return nil
}

func missingPaths(cfg *config.Config) []string {
	var out []string
	for i, p := range cfg.SourcePaths() {
		if _, err := os.Stat(p); errors.Is(err, os.ErrNotExist) {
			out = append(out, cfg.Paths[i])
		}
	}
	sort.Strings(out)
	return out
}
