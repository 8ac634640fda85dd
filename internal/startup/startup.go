package startup

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"time"

	"mediascan/internal/backend/ffmpeg"
	"mediascan/internal/logging"
	"mediascan/internal/thumbnail"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Build-time variables (injected via -ldflags)
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
	GoVersion = runtime.Version()
)

// BuildInfo contains version and build information
type BuildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"buildTime"`
	GoVersion string `json:"goVersion"`
	OS        string `json:"os"`
	Arch      string `json:"arch"`
}

// GetBuildInfo returns the current build information
func GetBuildInfo() BuildInfo {
	return BuildInfo{
		Version:   Version,
		Commit:    Commit,
		BuildTime: BuildTime,
		GoVersion: GoVersion,
		OS:        runtime.GOOS,
		Arch:      runtime.GOARCH,
	}
}

// RouteInfo contains information about a registered route
type RouteInfo struct {
	Method string
	Path   string
	Name   string
}

// LogConfig configures log output.
type LogConfig struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

// Config holds all application configuration
type Config struct {
	Paths             []string      `yaml:"paths"`
	IgnoreExtensions  []string      `yaml:"ignore_extensions"`
	IgnoreDirectories []string      `yaml:"ignore_directories"`
	Thumbnails        []string      `yaml:"thumbnails"`
	ThumbnailDir      string        `yaml:"thumbnail_dir"`
	Rescan            bool          `yaml:"rescan"`
	Clear             bool          `yaml:"clear"`
	UseExtension      bool          `yaml:"use_extension"`
	Async             bool          `yaml:"async"`
	Watch             bool          `yaml:"watch"`
	ProgressInterval  time.Duration `yaml:"progress_interval"`
	DatabasePath      string        `yaml:"database"`
	MetricsAddr       string        `yaml:"metrics_addr"`
	UseVips           bool          `yaml:"vips"`
	FFmpeg            ffmpeg.Config `yaml:"ffmpeg"`
	Log               LogConfig     `yaml:"log"`

	// Parsed from Thumbnails
	ThumbnailSpecs []thumbnail.Spec `yaml:"-"`
}

// DefaultConfig returns the configuration used when nothing is set.
func DefaultConfig() *Config {
	return &Config{
		ThumbnailDir:     "thumbnails",
		ProgressInterval: time.Second,
		DatabasePath:     "mediascan.db",
		UseVips:          true,
		Log: LogConfig{
			MaxSizeMB:  50,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
	}
}

// LoadConfig loads configuration from the YAML file at path (optional),
// a .env file and environment variables, then validates it.
func LoadConfig(path string) (*Config, error) {
	printBanner()
	logSystemInfo()

	logging.Info("------------------------------------------------------------")
	logging.Info("CONFIGURATION")
	logging.Info("------------------------------------------------------------")

	if err := godotenv.Load(); err == nil {
		logging.Info("  Loaded environment from .env")
	} else if !errors.Is(err, os.ErrNotExist) {
		logging.Warn("  Failed to read .env: %v", err)
	}

	cfg := DefaultConfig()
	if path != "" {
		if err := cfg.readFile(path); err != nil {
			return nil, err
		}
		logging.Info("  Config file:         %s", path)
	}
	cfg.applyEnv()

	if cfg.Log.Level != "" {
		level, err := logging.ParseLevel(cfg.Log.Level)
		if err != nil {
			return nil, fmt.Errorf("invalid log level: %w", err)
		}
		logging.SetLevel(level)
	}

	cfg.log()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) readFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.Paths = getEnvList("MEDIASCAN_PATHS", c.Paths)
	c.IgnoreExtensions = getEnvList("MEDIASCAN_IGNORE_EXTENSIONS", c.IgnoreExtensions)
	c.IgnoreDirectories = getEnvList("MEDIASCAN_IGNORE_DIRS", c.IgnoreDirectories)
	c.Thumbnails = getEnvList("MEDIASCAN_THUMBNAILS", c.Thumbnails)
	c.ThumbnailDir = getEnv("MEDIASCAN_THUMB_DIR", c.ThumbnailDir)
	c.Rescan = getEnvBool("MEDIASCAN_RESCAN", c.Rescan)
	c.Clear = getEnvBool("MEDIASCAN_CLEAR", c.Clear)
	c.UseExtension = getEnvBool("MEDIASCAN_USE_EXTENSION", c.UseExtension)
	c.Async = getEnvBool("MEDIASCAN_ASYNC", c.Async)
	c.Watch = getEnvBool("MEDIASCAN_WATCH", c.Watch)
	c.ProgressInterval = getEnvDuration("MEDIASCAN_PROGRESS_INTERVAL", c.ProgressInterval)
	c.DatabasePath = getEnvAllowEmpty("MEDIASCAN_DB", c.DatabasePath)
	c.MetricsAddr = getEnvAllowEmpty("MEDIASCAN_METRICS_ADDR", c.MetricsAddr)
	c.UseVips = getEnvBool("MEDIASCAN_VIPS", c.UseVips)
	c.FFmpeg.FFprobePath = getEnv("FFPROBE_PATH", c.FFmpeg.FFprobePath)
	c.FFmpeg.FFmpegPath = getEnv("FFMPEG_PATH", c.FFmpeg.FFmpegPath)
	c.Log.Level = getEnv("LOG_LEVEL", c.Log.Level)
	c.Log.File = getEnv("LOG_FILE", c.Log.File)
}

func (c *Config) log() {
	logging.Info("  PATHS:               %s", strings.Join(c.Paths, ", "))
	logging.Info("  IGNORE_EXTENSIONS:   %s", strings.Join(c.IgnoreExtensions, ", "))
	logging.Info("  IGNORE_DIRS:         %s", strings.Join(c.IgnoreDirectories, ", "))
	logging.Info("  THUMBNAILS:          %s", strings.Join(c.Thumbnails, ", "))
	logging.Info("  THUMB_DIR:           %s", c.ThumbnailDir)
	logging.Info("  RESCAN:              %v", c.Rescan)
	logging.Info("  CLEAR:               %v", c.Clear)
	logging.Info("  USE_EXTENSION:       %v", c.UseExtension)
	logging.Info("  ASYNC:               %v", c.Async)
	logging.Info("  WATCH:               %v", c.Watch)
	logging.Info("  PROGRESS_INTERVAL:   %v", c.ProgressInterval)
	logging.Info("  DB:                  %s", orDisabled(c.DatabasePath))
	logging.Info("  METRICS_ADDR:        %s", orDisabled(c.MetricsAddr))
	logging.Info("  VIPS:                %v", c.UseVips)
	logging.Info("  LOG_LEVEL:           %s", logging.GetLevel())
	if c.Log.File != "" {
		logging.Info("  LOG_FILE:            %s", c.Log.File)
	}
}

// Validate checks the configuration, parses thumbnail specs and resolves
// paths. Directories needed for output are created.
func (c *Config) Validate() error {
	if len(c.Paths) == 0 {
		return errors.New("no scan paths configured (set paths or MEDIASCAN_PATHS)")
	}

	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("DIRECTORY SETUP")
	logging.Info("------------------------------------------------------------")

	for i, p := range c.Paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return fmt.Errorf("failed to resolve scan path %s: %w", p, err)
		}
		c.Paths[i] = abs
		if err := checkScanPath(abs); err != nil {
			logging.Warn("  Scan path issue: %v", err)
		}
	}

	c.ThumbnailSpecs = c.ThumbnailSpecs[:0]
	for _, s := range c.Thumbnails {
		spec, err := thumbnail.ParseSpec(s)
		if err != nil {
			return fmt.Errorf("invalid thumbnail spec %q: %w", s, err)
		}
		c.ThumbnailSpecs = append(c.ThumbnailSpecs, spec)
	}

	if c.ProgressInterval < 0 {
		return fmt.Errorf("progress interval must not be negative, got %v", c.ProgressInterval)
	}

	if len(c.ThumbnailSpecs) > 0 {
		dir, err := filepath.Abs(c.ThumbnailDir)
		if err != nil {
			return fmt.Errorf("failed to resolve thumbnail directory path: %w", err)
		}
		c.ThumbnailDir = dir
		if err := ensureDirectory(dir, "thumbnail"); err != nil {
			return fmt.Errorf("thumbnail directory error: %w", err)
		}
		if err := testWriteAccess(dir); err != nil {
			return fmt.Errorf("thumbnail directory is not writable: %w", err)
		}
		logging.Info("  [OK] Thumbnail directory is writable: %s", dir)
	}

	if c.DatabasePath != "" && c.DatabasePath != ":memory:" {
		dir := filepath.Dir(c.DatabasePath)
		if err := ensureDirectory(dir, "database"); err != nil {
			return fmt.Errorf("database directory error: %w", err)
		}
		if err := testWriteAccess(dir); err != nil {
			return fmt.Errorf("database directory is not writable: %w", err)
		}
		logging.Info("  [OK] Database directory is writable")
	}
	return nil
}

func orDisabled(s string) string {
	if s == "" {
		return "(disabled)"
	}
	return s
}

// LogStoreInit logs state database initialization
func LogStoreInit(path string, duration time.Duration) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("STATE DATABASE INITIALIZATION")
	logging.Info("------------------------------------------------------------")
	if path == "" {
		logging.Info("  State database disabled, every file will be scanned")
		return
	}
	logging.Info("  [OK] Database %s initialized in %v", path, duration)
}

// LogBackendInit logs backend initialization and reports the ffmpeg version.
func LogBackendInit(err error) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("BACKEND INITIALIZATION")
	logging.Info("------------------------------------------------------------")

	if err != nil {
		logging.Error("  FFmpeg backend unavailable: %v", err)
		return
	}
	if verr := checkFFmpeg(); verr != nil {
		logging.Warn("  FFmpeg version check failed: %v", verr)
		return
	}
	logging.Info("  [OK] FFmpeg is available")
}

// LogThumbnailInit logs thumbnail renderer configuration
func LogThumbnailInit(specs []thumbnail.Spec, vips bool) {
	if len(specs) == 0 {
		logging.Info("  Thumbnails disabled (no thumbnail specs)")
		return
	}
	renderer := "imaging"
	if vips {
		renderer = "libvips"
	}
	for _, s := range specs {
		logging.Info("  Thumbnail: %s (%s)", s, renderer)
	}
}

// GetRoutes extracts all registered routes from a mux.Router
func GetRoutes(router *mux.Router) ([]RouteInfo, error) {
	var routes []RouteInfo

	err := router.Walk(func(route *mux.Route, _ *mux.Router, _ []*mux.Route) error {
		pathTemplate, err := route.GetPathTemplate()
		if err != nil {
			return err
		}

		methods, err := route.GetMethods()
		if err != nil {
			methods = []string{"*"}
		}

		for _, method := range methods {
			routes = append(routes, RouteInfo{
				Method: method,
				Path:   pathTemplate,
				Name:   route.GetName(),
			})
		}
		return nil
	})

	sort.Slice(routes, func(i, j int) bool {
		if routes[i].Path != routes[j].Path {
			return routes[i].Path < routes[j].Path
		}
		return routes[i].Method < routes[j].Method
	})
	return routes, err
}

// LogStatusServer logs the status endpoints served at addr.
func LogStatusServer(router *mux.Router, addr string) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("STATUS SERVER")
	logging.Info("------------------------------------------------------------")

	routes, err := GetRoutes(router)
	if err != nil {
		logging.Warn("error walking routes: %v", err)
	}
	for _, route := range routes {
		logging.Info("  %-6s http://%s%s", route.Method, addr, route.Path)
	}
}

// LogScanStarted logs the start of the scan phase.
func LogScanStarted(paths int, async bool, startup time.Duration) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("SCAN STARTED")
	logging.Info("------------------------------------------------------------")
	logging.Info("  Startup time:    %v", startup)
	logging.Info("  Paths:           %d", paths)
	if async {
		logging.Info("  Mode:            async")
	} else {
		logging.Info("  Mode:            sync")
	}
	logging.Info("")
}

// LogShutdownInitiated logs shutdown start
func LogShutdownInitiated(signal string) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("SHUTDOWN INITIATED (received %s)", signal)
	logging.Info("------------------------------------------------------------")
}

// LogShutdownStep logs a shutdown step
func LogShutdownStep(step string) {
	logging.Debug("  %s...", step)
}

// LogShutdownStepComplete logs a completed shutdown step
func LogShutdownStepComplete(step string) {
	logging.Info("  [OK] %s", step)
}

// LogShutdownComplete logs shutdown completion
func LogShutdownComplete() {
	logging.Info("  [OK] Shutdown complete")
}

// LogFatal logs a fatal error and exits
func LogFatal(format string, args ...interface{}) {
	logging.Fatal(format, args...)
}

// Helper functions

func printBanner() {
	banner := `
------------------------------------------------------------
                     _ _
  _ __ ___   ___  __| (_) __ _ ___  ___ __ _ _ __
 | '_ ` + "`" + ` _ \ / _ \/ _` + "`" + ` | |/ _` + "`" + ` / __|/ __/ _` + "`" + ` | '_ \
 | | | | | |  __/ (_| | | (_| \__ \ (_| (_| | | | |
 |_| |_| |_|\___|\__,_|_|\__,_|___/\___\__,_|_| |_|

------------------------------------------------------------`
	fmt.Fprintln(os.Stderr, banner)
	logging.Info("  Version:    %s", Version)
	logging.Info("  Commit:     %s", Commit)
	logging.Info("  Build Time: %s", BuildTime)
	logging.Info("  Started:    %s", time.Now().Format(time.RFC1123))
	logging.Info("")
}

func logSystemInfo() {
	logging.Info("------------------------------------------------------------")
	logging.Info("SYSTEM INFORMATION")
	logging.Info("------------------------------------------------------------")
	logging.Info("  Go version:      %s", runtime.Version())
	logging.Info("  OS/Arch:         %s/%s", runtime.GOOS, runtime.GOARCH)
	logging.Info("  CPUs available:  %d", runtime.NumCPU())

	if logging.IsDebugEnabled() {
		if wd, err := os.Getwd(); err == nil {
			logging.Debug("  Working dir:     %s", wd)
		}
		if hostname, err := os.Hostname(); err == nil {
			logging.Debug("  Hostname:        %s", hostname)
		}
	}

	logging.Info("")
}

func checkScanPath(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("cannot access %s: %w", path, err)
	}
	if info.IsDir() && logging.IsDebugEnabled() {
		entries, err := os.ReadDir(path)
		if err == nil {
			fileCount, dirCount := 0, 0
			for _, e := range entries {
				if e.IsDir() {
					dirCount++
				} else {
					fileCount++
				}
			}
			logging.Debug("  %s: %d files, %d directories (top level)", path, fileCount, dirCount)
		}
	}
	return nil
}

func ensureDirectory(path, name string) error {
	logging.Debug("  Checking %s directory: %s", name, path)

	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		logging.Debug("    Directory does not exist, creating...")
		if err := os.MkdirAll(path, 0o755); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
		logging.Debug("    [OK] Created directory: %s", path)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to stat directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("path exists but is not a directory")
	}

	logging.Debug("    [OK] Directory exists")
	return nil
}

func testWriteAccess(dir string) error {
	testFile := filepath.Join(dir, ".write-test")
	if err := os.WriteFile(testFile, []byte("test"), 0o644); err != nil {
		return err
	}
	if err := os.Remove(testFile); err != nil {
		logging.Warn("failed to remove write test file %s: %v", testFile, err)
	}
	return nil
}

func checkFFmpeg() error {
	path, err := exec.LookPath("ffmpeg")
	if err != nil {
		return fmt.Errorf("ffmpeg not found in PATH")
	}
	logging.Debug("  FFmpeg path: %s", path)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	output, err := exec.CommandContext(ctx, path, "-version").Output()
	if err != nil {
		return fmt.Errorf("failed to get ffmpeg version: %w", err)
	}

	lines := strings.Split(string(output), "\n")
	if len(lines) > 0 {
		logging.Debug("  FFmpeg version: %s", strings.TrimSpace(lines[0]))
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAllowEmpty lets a set-but-empty variable clear the value.
func getEnvAllowEmpty(key, defaultValue string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		logging.Warn("Invalid boolean value for %s: %q, using default: %v", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		logging.Warn("Invalid duration for %s: %q, using default: %v", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}

func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
