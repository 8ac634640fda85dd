package startup

import (
	"net/http"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"mediascan/internal/logging"
	"mediascan/internal/thumbnail"

	"github.com/gorilla/mux"
)

func TestGetBuildInfo(t *testing.T) {
	info := GetBuildInfo()

	if info.Version == "" {
		t.Error("Expected Version to be set")
	}
	if info.OS == "" || info.Arch == "" {
		t.Errorf("Expected OS/Arch to be set, got %q/%q", info.OS, info.Arch)
	}
	if info.GoVersion != GoVersion {
		t.Errorf("Expected GoVersion=%s, got %s", GoVersion, info.GoVersion)
	}
}

func TestGetEnv(t *testing.T) {
	tests := []struct {
		name         string
		key          string
		defaultValue string
		envValue     string
		want         string
		setEnv       bool
	}{
		{
			name:         "Returns default when env var not set",
			key:          "TEST_UNSET_VAR",
			defaultValue: "default",
			want:         "default",
		},
		{
			name:         "Returns env value when set",
			key:          "TEST_SET_VAR",
			defaultValue: "default",
			envValue:     "custom",
			want:         "custom",
			setEnv:       true,
		},
		{
			name:         "Returns default when env var is empty",
			key:          "TEST_EMPTY_VAR",
			defaultValue: "default",
			envValue:     "",
			want:         "default",
			setEnv:       true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.setEnv {
				t.Setenv(tt.key, tt.envValue)
			} else {
				os.Unsetenv(tt.key)
			}

			got := getEnv(tt.key, tt.defaultValue)
			if got != tt.want {
				t.Errorf("getEnv(%q, %q) = %q, want %q", tt.key, tt.defaultValue, got, tt.want)
			}
		})
	}
}

func TestGetEnvAllowEmpty(t *testing.T) {
	t.Setenv("TEST_ALLOW_EMPTY", "")
	if got := getEnvAllowEmpty("TEST_ALLOW_EMPTY", "default"); got != "" {
		t.Errorf("getEnvAllowEmpty() = %q, want empty", got)
	}
	os.Unsetenv("TEST_ALLOW_EMPTY_UNSET")
	if got := getEnvAllowEmpty("TEST_ALLOW_EMPTY_UNSET", "default"); got != "default" {
		t.Errorf("getEnvAllowEmpty() = %q, want default", got)
	}
}

func TestGetEnvBool(t *testing.T) {
	tests := []struct {
		name         string
		envValue     string
		defaultValue bool
		want         bool
	}{
		{"unset keeps default true", "", true, true},
		{"unset keeps default false", "", false, false},
		{"true", "true", false, true},
		{"false", "false", true, false},
		{"one", "1", false, true},
		{"zero", "0", true, false},
		{"upper T", "T", false, true},
		{"invalid keeps default", "maybe", true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("TEST_BOOL", tt.envValue)
			if got := getEnvBool("TEST_BOOL", tt.defaultValue); got != tt.want {
				t.Errorf("getEnvBool(%q) = %v, want %v", tt.envValue, got, tt.want)
			}
		})
	}
}

func TestGetEnvDuration(t *testing.T) {
	tests := []struct {
		value string
		want  time.Duration
	}{
		{"", time.Second},
		{"250ms", 250 * time.Millisecond},
		{"soon", time.Second},
	}
	for _, tt := range tests {
		t.Setenv("TEST_DURATION", tt.value)
		if got := getEnvDuration("TEST_DURATION", time.Second); got != tt.want {
			t.Errorf("getEnvDuration(%q) = %v, want %v", tt.value, got, tt.want)
		}
	}
}

func TestGetEnvList(t *testing.T) {
	t.Setenv("TEST_LIST", " a, b ,,c ")
	got := getEnvList("TEST_LIST", []string{"x"})
	if want := []string{"a", "b", "c"}; !reflect.DeepEqual(got, want) {
		t.Errorf("getEnvList() = %v, want %v", got, want)
	}

	t.Setenv("TEST_LIST", "")
	if got := getEnvList("TEST_LIST", []string{"x"}); !reflect.DeepEqual(got, []string{"x"}) {
		t.Errorf("getEnvList() with empty env = %v, want default", got)
	}
}

func clearConfigEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"MEDIASCAN_PATHS", "MEDIASCAN_IGNORE_EXTENSIONS", "MEDIASCAN_IGNORE_DIRS",
		"MEDIASCAN_THUMBNAILS", "MEDIASCAN_THUMB_DIR", "MEDIASCAN_RESCAN", "MEDIASCAN_CLEAR",
		"MEDIASCAN_USE_EXTENSION", "MEDIASCAN_ASYNC", "MEDIASCAN_WATCH",
		"MEDIASCAN_PROGRESS_INTERVAL", "MEDIASCAN_DB", "MEDIASCAN_METRICS_ADDR",
		"MEDIASCAN_VIPS", "FFPROBE_PATH", "FFMPEG_PATH", "LOG_LEVEL", "LOG_FILE",
	} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
	// LoadConfig reads .env from the working directory.
	t.Chdir(t.TempDir())

	level := logging.GetLevel()
	t.Cleanup(func() { logging.SetLevel(level) })
}

func TestLoadConfigFromFile(t *testing.T) {
	clearConfigEnv(t)
	dir := t.TempDir()
	media := filepath.Join(dir, "media")
	if err := os.Mkdir(media, 0o755); err != nil {
		t.Fatal(err)
	}

	path := filepath.Join(dir, "mediascan.yaml")
	yml := `paths:
  - ` + media + `
ignore_extensions: [VIDEO, nfo]
ignore_directories: [".@__thumb"]
thumbnails:
  - jpeg:320x240:q=85
  - png:160x160:crop
thumbnail_dir: ` + filepath.Join(dir, "thumbs") + `
rescan: true
progress_interval: 250ms
database: ` + filepath.Join(dir, "db", "state.db") + `
ffmpeg:
  ffprobe: /opt/ffprobe
log:
  level: debug
`
	if err := os.WriteFile(path, []byte(yml), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if !reflect.DeepEqual(cfg.Paths, []string{media}) {
		t.Errorf("Paths = %v", cfg.Paths)
	}
	if !reflect.DeepEqual(cfg.IgnoreExtensions, []string{"VIDEO", "nfo"}) {
		t.Errorf("IgnoreExtensions = %v", cfg.IgnoreExtensions)
	}
	if !cfg.Rescan || cfg.Clear {
		t.Errorf("Rescan/Clear = %v/%v, want true/false", cfg.Rescan, cfg.Clear)
	}
	if cfg.ProgressInterval != 250*time.Millisecond {
		t.Errorf("ProgressInterval = %v, want 250ms", cfg.ProgressInterval)
	}
	if cfg.FFmpeg.FFprobePath != "/opt/ffprobe" {
		t.Errorf("FFprobePath = %q", cfg.FFmpeg.FFprobePath)
	}
	if !cfg.UseVips {
		t.Error("UseVips default lost when file does not set it")
	}

	want := []thumbnail.Spec{
		{Format: thumbnail.FormatJPEG, Width: 320, Height: 240, KeepAspect: true, Quality: 85},
		{Format: thumbnail.FormatPNG, Width: 160, Height: 160, KeepAspect: true, Crop: true, Quality: thumbnail.DefaultQuality},
	}
	if !reflect.DeepEqual(cfg.ThumbnailSpecs, want) {
		t.Errorf("ThumbnailSpecs = %+v, want %+v", cfg.ThumbnailSpecs, want)
	}
	if _, err := os.Stat(filepath.Join(dir, "thumbs")); err != nil {
		t.Errorf("thumbnail directory not created: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "db")); err != nil {
		t.Errorf("database directory not created: %v", err)
	}
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	clearConfigEnv(t)
	media := t.TempDir()

	path := filepath.Join(t.TempDir(), "mediascan.yaml")
	if err := os.WriteFile(path, []byte("paths: [/nowhere]\nasync: false\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("MEDIASCAN_PATHS", media)
	t.Setenv("MEDIASCAN_ASYNC", "true")
	t.Setenv("MEDIASCAN_DB", "")
	t.Setenv("MEDIASCAN_METRICS_ADDR", "127.0.0.1:9191")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if !reflect.DeepEqual(cfg.Paths, []string{media}) {
		t.Errorf("Paths = %v, want [%s]", cfg.Paths, media)
	}
	if !cfg.Async {
		t.Error("Async = false, want env override")
	}
	if cfg.DatabasePath != "" {
		t.Errorf("DatabasePath = %q, want disabled", cfg.DatabasePath)
	}
	if cfg.MetricsAddr != "127.0.0.1:9191" {
		t.Errorf("MetricsAddr = %q", cfg.MetricsAddr)
	}
}

func TestLoadConfigErrors(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{"no paths", "rescan: true\n", "no scan paths"},
		{"bad thumbnail", "paths: [/tmp]\nthumbnails: [gif:10x10]\n", "invalid thumbnail spec"},
		{"unknown field", "paths: [/tmp]\nrecursive: true\n", "failed to parse"},
		{"bad level", "paths: [/tmp]\nlog:\n  level: chatty\n", "invalid log level"},
		{"negative interval", "paths: [/tmp]\nprogress_interval: -1s\n", "must not be negative"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearConfigEnv(t)
			t.Setenv("MEDIASCAN_DB", "")
			path := filepath.Join(t.TempDir(), "c.yaml")
			if err := os.WriteFile(path, []byte(tt.yaml), 0o644); err != nil {
				t.Fatal(err)
			}
			_, err := LoadConfig(path)
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("LoadConfig() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoadConfigDotEnv(t *testing.T) {
	clearConfigEnv(t)
	media := t.TempDir()
	if err := os.WriteFile(".env", []byte("MEDIASCAN_PATHS="+media+"\nMEDIASCAN_DB=\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		os.Unsetenv("MEDIASCAN_PATHS")
		os.Unsetenv("MEDIASCAN_DB")
	})

	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if !reflect.DeepEqual(cfg.Paths, []string{media}) {
		t.Errorf("Paths = %v, want [%s] from .env", cfg.Paths, media)
	}
}

func TestGetRoutes(t *testing.T) {
	r := mux.NewRouter()
	noop := func(http.ResponseWriter, *http.Request) {}
	r.HandleFunc("/progress", noop).Methods(http.MethodGet).Name("progress")
	r.HandleFunc("/healthz", noop).Methods(http.MethodGet, http.MethodHead).Name("health")
	r.Handle("/metrics", http.HandlerFunc(noop))

	routes, err := GetRoutes(r)
	if err != nil {
		t.Fatalf("GetRoutes() error = %v", err)
	}
	want := []RouteInfo{
		{Method: http.MethodGet, Path: "/healthz", Name: "health"},
		{Method: http.MethodHead, Path: "/healthz", Name: "health"},
		{Method: "*", Path: "/metrics"},
		{Method: http.MethodGet, Path: "/progress", Name: "progress"},
	}
	if !reflect.DeepEqual(routes, want) {
		t.Errorf("GetRoutes() = %+v, want %+v", routes, want)
	}
}
