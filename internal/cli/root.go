package cmd

import (
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/phuslu/log"
	"github.com/spf13/cobra"

	"github.com/rohmanhakim/site-archiver/internal/assembler"
	"github.com/rohmanhakim/site-archiver/internal/cache"
	"github.com/rohmanhakim/site-archiver/internal/config"
	"github.com/rohmanhakim/site-archiver/internal/mdgen"
	"github.com/rohmanhakim/site-archiver/internal/metadata"
	"github.com/rohmanhakim/site-archiver/internal/pdfgen"
	"github.com/rohmanhakim/site-archiver/internal/record"
	"github.com/rohmanhakim/site-archiver/internal/scheduler"
)

const defaultArtifactName = "archive"

var (
	cfgFile          string
	outputDir        string
	outputFormat     string
	maxDepth         int
	maxPages         int
	requestDelay     time.Duration
	userAgent        string
	timeout          time.Duration
	randomSeed       int64
	verbose          bool
	dryRun           bool
	resumeSessionID  string
	fromCacheID      string
	noCache          bool
	cacheDir         string
	chunkSize        string
	chunkPages       int
	multiFile        bool
	includeImages    bool
	includeFlagged   bool
	approvedURLsFile string
	excludePatterns  []string
)

// rootCmd archives one site: crawl from the seed URL, persist pages to
// the session cache, then assemble the configured output artifact.
var rootCmd = &cobra.Command{
	Use:   "site-archiver <seed-url>",
	Short: "Archive a website as clean Markdown or PDF.",
	Long: `site-archiver crawls a website politely, caches every page as a
structured record, and assembles the session into a Markdown or PDF
archive. Interrupted sessions stay on disk and can be resumed or
re-exported without re-crawling.`,
	Args:          cobra.MaximumNArgs(1),
	SilenceUsage:  true,
	RunE:          runRoot,
	SilenceErrors: false,
}

// Execute runs the root command. Called once from main.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file path (.json, .yaml or .toml)")
	flags.StringVar(&outputDir, "output", "output", "output directory for generated artifacts")
	flags.StringVar(&outputFormat, "format", "", "output format: markdown or pdf")
	flags.StringVar(&cacheDir, "cache-dir", "", "session cache directory (default \"cache\")")
	flags.StringVar(&chunkSize, "chunk-size", "", "split output into chunks of at most this size (e.g. 10MB)")
	flags.IntVar(&chunkPages, "chunk-pages", 0, "split output into chunks of this many pages")
	flags.BoolVar(&multiFile, "multi-file", false, "markdown only: one file per page plus a README index")
	flags.BoolVar(&includeFlagged, "include-flagged", false, "keep low-quality and parse-error pages in the output")
	flags.BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	rootCmd.Flags().IntVar(&maxDepth, "max-depth", -1, "maximum link depth from the seed URL")
	rootCmd.Flags().IntVar(&maxPages, "max-pages", -1, "maximum number of pages to archive (0 archives nothing)")
	rootCmd.Flags().DurationVar(&requestDelay, "delay", 0, "base delay between requests to the same host")
	rootCmd.Flags().StringVar(&userAgent, "user-agent", "", "user agent string for HTTP requests")
	rootCmd.Flags().DurationVar(&timeout, "timeout", 0, "timeout for HTTP requests")
	rootCmd.Flags().Int64Var(&randomSeed, "random-seed", 0, "seed for jitter and pacing randomness (0 for current time)")
	rootCmd.Flags().BoolVar(&dryRun, "dry-run", false, "walk the site and list admitted URLs without archiving")
	rootCmd.Flags().StringVar(&resumeSessionID, "resume", "", "resume an interrupted session by id")
	rootCmd.Flags().StringVar(&fromCacheID, "from-cache", "", "assemble output from a cached session without crawling")
	rootCmd.Flags().BoolVar(&noCache, "no-cache", false, "skip the session cache; write each page directly to the output directory")
	rootCmd.Flags().BoolVar(&includeImages, "include-images", false, "download images referenced by archived pages")
	rootCmd.Flags().StringVar(&approvedURLsFile, "approved-urls", "", "preview file restricting the crawl to approved URLs")
	rootCmd.Flags().StringArrayVar(&excludePatterns, "exclude", nil, "regexp of URLs to exclude (repeatable)")

	rootCmd.AddCommand(sessionsCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(doctorCmd)
	rootCmd.AddCommand(versionCmd)
}

func runRoot(cmd *cobra.Command, args []string) error {
	sink := newSink()

	seed, err := resolveSeed(args, sink)
	if err != nil {
		return err
	}

	cfg, err := InitConfigWithError(seed)
	if err != nil {
		return err
	}

	store := openStore(cfg, sink)

	if fromCacheID != "" {
		return assembleSession(cmd, cfg, sink, store, fromCacheID)
	}

	s, err := scheduler.NewScheduler(cfg, sink, store, outputDir)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var exec scheduler.CrawlingExecution
	switch {
	case resumeSessionID != "":
		exec, err = s.ExecuteResume(ctx, resumeSessionID)
	default:
		exec, err = s.ExecuteCrawling(ctx)
	}
	if err != nil {
		return err
	}

	if cfg.DryRun() {
		for _, admitted := range exec.AdmittedURLs {
			cmd.Println(admitted)
		}
		if len(exec.AdmittedURLs) == 0 {
			return fmt.Errorf("dry run admitted no URLs")
		}
		return nil
	}

	cmd.Printf("Session %s: %s (%d pages, %d errors, %d assets, %s)\n",
		exec.SessionID, exec.Status, exec.PagesArchived, exec.ErrorCount,
		exec.AssetCount, exec.Duration.Round(time.Millisecond))

	if !exec.Completed() {
		if exec.Reason != "" {
			return fmt.Errorf("crawl did not complete: %s", exec.Reason)
		}
		return fmt.Errorf("crawl did not complete: no pages archived")
	}

	if store == nil {
		for _, result := range exec.WriteResults {
			cmd.Println(result.Path())
		}
		return nil
	}
	return assembleSession(cmd, cfg, sink, store, exec.SessionID)
}

// resolveSeed picks the crawl's base URL: the positional argument when
// given, otherwise the base URL recorded in the session being resumed
// or exported.
func resolveSeed(args []string, sink scheduler.Sink) (url.URL, error) {
	if len(args) == 1 {
		parsed, err := url.Parse(strings.TrimSpace(args[0]))
		if err != nil {
			return url.URL{}, fmt.Errorf("invalid seed URL %q: %w", args[0], err)
		}
		return *parsed, nil
	}

	sessionID := resumeSessionID
	if sessionID == "" {
		sessionID = fromCacheID
	}
	if sessionID == "" {
		return url.URL{}, fmt.Errorf("a seed URL is required unless --resume or --from-cache is given")
	}

	store := cache.NewStore(resolveCacheDir(), sink, false, 6)
	meta, _, _, err := store.LoadSession(sessionID)
	if err != nil {
		return url.URL{}, err
	}
	parsed, parseErr := url.Parse(meta.BaseURL)
	if parseErr != nil {
		return url.URL{}, fmt.Errorf("session %s has invalid base URL %q: %w", sessionID, meta.BaseURL, parseErr)
	}
	return *parsed, nil
}

// InitConfigWithError folds the config file, command-line flags and
// environment overrides into one immutable Config. Flags win over the
// file; environment variables win over both.
func InitConfigWithError(seed url.URL) (config.Config, error) {
	var builder *config.Config
	if cfgFile != "" {
		fromFile, err := config.WithConfigFile(cfgFile, seed)
		if err != nil {
			return config.Config{}, err
		}
		builder = &fromFile
	} else {
		builder = config.WithDefault(seed)
	}

	if maxDepth >= 0 {
		builder = builder.WithMaxDepth(maxDepth)
	}
	if maxPages >= 0 {
		builder = builder.WithMaxPages(maxPages)
	}
	if requestDelay > 0 {
		builder = builder.WithRequestDelay(requestDelay)
	}
	if userAgent != "" {
		builder = builder.WithUserAgent(userAgent)
	}
	if timeout > 0 {
		builder = builder.WithTimeout(timeout)
	}
	if randomSeed != 0 {
		builder = builder.WithRandomSeed(randomSeed)
	}
	if outputFormat != "" {
		builder = builder.WithOutputFormat(outputFormat)
	}
	if cacheDir != "" {
		builder = builder.WithCacheDirectory(cacheDir)
	}
	if chunkSize != "" {
		maxChunkBytes, err := assembler.ParseSize(chunkSize)
		if err != nil {
			return config.Config{}, err
		}
		builder = builder.WithChunkMaxSize(maxChunkBytes)
	}
	if chunkPages > 0 {
		builder = builder.WithChunkPages(chunkPages)
	}
	if multiFile {
		builder = builder.WithMarkdownMultiFile(true)
	}
	if includeImages {
		builder = builder.WithIncludeImages(true)
	}
	if includeFlagged {
		builder = builder.WithIncludeFlagged(true)
	}
	if dryRun {
		builder = builder.WithDryRun(true)
	}
	if noCache {
		builder = builder.WithCacheEnabled(false)
	}
	if approvedURLsFile != "" {
		builder = builder.WithApprovedURLsFile(approvedURLsFile)
	}
	if len(excludePatterns) > 0 {
		builder = builder.WithExcludePatterns(excludePatterns)
	}

	return builder.ApplyEnvOverrides().Build()
}

// newSink builds the structured-log recorder every component reports
// into. Metadata is write-only and never influences the crawl.
func newSink() *metadata.Recorder {
	level := log.InfoLevel
	if verbose || os.Getenv("DEBUG_MODE") != "" {
		level = log.DebugLevel
	}
	logger := log.Logger{
		Level:      level,
		TimeFormat: time.RFC3339,
		Writer: &log.ConsoleWriter{
			Writer: os.Stderr,
		},
	}
	recorder := metadata.NewRecorder("cli", &logger)
	return &recorder
}

func openStore(cfg config.Config, sink scheduler.Sink) *cache.Store {
	if !cfg.CacheEnabled() {
		return nil
	}
	store := cache.NewStore(cfg.CacheDirectory(), sink, cfg.CacheCompression(), cfg.CompressionLevel())
	return &store
}

func resolveCacheDir() string {
	if cacheDir != "" {
		return cacheDir
	}
	return "cache"
}

// assembleSession loads a cached session and renders it with the
// configured format generator, chunked when a chunk bound is set.
func assembleSession(
	cmd *cobra.Command,
	cfg config.Config,
	sink *metadata.Recorder,
	store *cache.Store,
	sessionID string,
) error {
	if store == nil {
		return fmt.Errorf("assembling requires the session cache")
	}

	meta, records, report, err := store.LoadSession(sessionID)
	if err != nil {
		return err
	}
	if report.Partial {
		cmd.Printf("Warning: %d page files could not be read and were skipped\n", report.CorruptPages)
	}

	paths, assembleErr := assembleRecords(cfg, sink, records, meta.BaseURL)
	if assembleErr != nil {
		return assembleErr
	}
	for _, path := range paths {
		cmd.Println(path)
	}
	return nil
}

func assembleRecords(
	cfg config.Config,
	sink *metadata.Recorder,
	records []record.PageRecord,
	baseURL string,
) ([]string, error) {
	if !cfg.IncludeFlagged() {
		records = assembler.FilterFlagged(records)
	}

	filename := cfg.OutputFilename()
	if filename == "" {
		filename = defaultArtifactName
	}

	markdownGen := mdgen.NewMarkdownGenerator(sink, mdgen.NewGenerateParam(
		outputDir, filename, cfg.MarkdownMultiFile(), cfg.MarkdownIncludeTOC()))
	pdfGen := pdfgen.NewPDFGenerator(sink, pdfgen.NewGenerateParam(
		outputDir, filename, cfg.PDFPageSize(), pdfOrientationCode(cfg.PDFOrientation()), cfg.PDFIncludeTOC()))

	registry := assembler.NewRegistry()
	chunkWriters := map[string]assembler.ChunkWriter{}
	registry.Register("markdown", &markdownGen)
	chunkWriters["markdown"] = &markdownGen
	registry.Register("pdf", &pdfGen)
	chunkWriters["pdf"] = &pdfGen

	format := cfg.OutputFormat()
	if cfg.ChunkMaxSize() > 0 || cfg.ChunkPages() > 0 {
		writer, ok := chunkWriters[format]
		if !ok {
			return nil, fmt.Errorf("format %q does not support chunked output", format)
		}
		chunker := assembler.NewChunker(writer, sink, assembler.NewChunkParam(
			outputDir, filename, cfg.ChunkMaxSize(), cfg.ChunkPages()))
		paths, err := chunker.Generate(records, baseURL)
		if err != nil {
			return nil, err
		}
		return paths, nil
	}

	gen, lookupErr := registry.Lookup(format)
	if lookupErr != nil {
		return nil, lookupErr
	}
	paths, genErr := gen.Generate(records, baseURL)
	if genErr != nil {
		return nil, genErr
	}
	return paths, nil
}

// pdfOrientationCode maps the config's long orientation names onto
// fpdf's single-letter codes.
func pdfOrientationCode(orientation string) string {
	switch strings.ToLower(orientation) {
	case "landscape", "l":
		return "L"
	default:
		return "P"
	}
}

// ResetFlags restores every flag variable to its default. Tests call
// this between command executions.
func ResetFlags() {
	cfgFile = ""
	outputDir = "output"
	outputFormat = ""
	maxDepth = -1
	maxPages = -1
	requestDelay = 0
	userAgent = ""
	timeout = 0
	randomSeed = 0
	verbose = false
	dryRun = false
	resumeSessionID = ""
	fromCacheID = ""
	noCache = false
	cacheDir = ""
	chunkSize = ""
	chunkPages = 0
	multiFile = false
	includeImages = false
	includeFlagged = false
	approvedURLsFile = ""
	excludePatterns = nil
}

func SetConfigFileForTest(path string) {
	cfgFile = path
}

func SetOutputDirForTest(dir string) {
	outputDir = dir
}

func SetOutputFormatForTest(format string) {
	outputFormat = format
}

func SetCacheDirForTest(dir string) {
	cacheDir = dir
}

func SetMaxDepthForTest(depth int) {
	maxDepth = depth
}

func SetMaxPagesForTest(pages int) {
	maxPages = pages
}

func SetRequestDelayForTest(delay time.Duration) {
	requestDelay = delay
}

func SetUserAgentForTest(agent string) {
	userAgent = agent
}

func SetTimeoutForTest(d time.Duration) {
	timeout = d
}

func SetRandomSeedForTest(seed int64) {
	randomSeed = seed
}

func SetDryRunForTest(dry bool) {
	dryRun = dry
}

func SetNoCacheForTest(v bool) {
	noCache = v
}

func SetChunkSizeForTest(size string) {
	chunkSize = size
}

func SetChunkPagesForTest(pages int) {
	chunkPages = pages
}

func SetExcludePatternsForTest(patterns []string) {
	excludePatterns = patterns
}
