package jobs

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	// MaxMind publishes GeoLite updates weekly.
	GeoLiteUpdateInterval = 7 * 24 * time.Hour
	MaxMindDownloadURL    = "https://download.maxmind.com/app/geoip_download"
)

// GeoLiteOptions configures a GeoLiteUpdaterJob.
type GeoLiteOptions struct {
	LicenseKey  string
	Edition     string
	Path        string
	DownloadURL string
	HTTPClient  *http.Client
	// Reload is called after a new database file is in place.
	Reload func()
	Logger *slog.Logger
}

// GeoLiteUpdaterJob keeps the country database fresh. The file's
// modification time is the last update.
type GeoLiteUpdaterJob struct {
	opts GeoLiteOptions
	now  func() time.Time
}

func NewGeoLiteUpdaterJob(opts GeoLiteOptions) *GeoLiteUpdaterJob {
	if opts.Edition == "" {
		opts.Edition = "GeoLite2-Country"
	}
	if opts.Path == "" {
		opts.Path = filepath.Join("storage", opts.Edition+".mmdb")
	}
	if opts.DownloadURL == "" {
		opts.DownloadURL = MaxMindDownloadURL
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: 5 * time.Minute}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &GeoLiteUpdaterJob{opts: opts, now: time.Now}
}

func (j *GeoLiteUpdaterJob) Name() string { return "geolite_updater" }

// Configured reports whether a license key is set.
func (j *GeoLiteUpdaterJob) Configured() bool {
	return j.opts.LicenseKey != ""
}

// LastUpdate returns when the database file was last written, or the zero
// time when it does not exist.
func (j *GeoLiteUpdaterJob) LastUpdate() time.Time {
	info, err := os.Stat(j.opts.Path)
	if err != nil {
		return time.Time{}
	}
	return info.ModTime()
}

// Run downloads a new database when the current one is older than a week.
func (j *GeoLiteUpdaterJob) Run(ctx context.Context) error {
	logger := j.opts.Logger
	if !j.Configured() {
		logger.Debug("GeoLite license key not configured, skipping update")
		return nil
	}

	lastUpdate := j.LastUpdate()
	if age := j.now().Sub(lastUpdate); age < GeoLiteUpdateInterval {
		logger.Debug("GeoLite database is up to date",
			slog.Time("last_update", lastUpdate),
			slog.Duration("age", age))
		return nil
	}

	logger.Info("Starting GeoLite database update",
		slog.String("edition", j.opts.Edition),
		slog.Time("last_update", lastUpdate))

	if err := j.downloadAndUpdate(ctx); err != nil {
		return fmt.Errorf("failed to update GeoLite database: %w", err)
	}

	if j.opts.Reload != nil {
		j.opts.Reload()
	}
	logger.Info("GeoLite database updated", slog.String("path", j.opts.Path))
	return nil
}

func (j *GeoLiteUpdaterJob) downloadURL() (string, error) {
	u, err := url.Parse(j.opts.DownloadURL)
	if err != nil {
		return "", fmt.Errorf("invalid download url: %w", err)
	}
	q := u.Query()
	q.Set("edition_id", j.opts.Edition)
	q.Set("license_key", j.opts.LicenseKey)
	q.Set("suffix", "tar.gz")
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (j *GeoLiteUpdaterJob) downloadAndUpdate(ctx context.Context) error {
	target, err := j.downloadURL()
	if err != nil {
		return err
	}

	dir := filepath.Dir(j.opts.Path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return err
	}
	resp, err := j.opts.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to download: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download failed with status: %d", resp.StatusCode)
	}

	// Extract next to the target and rename so readers never see a partial file.
	tmp, err := os.CreateTemp(dir, ".geolite-*.mmdb")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := extractMMDB(resp.Body, tmp); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to extract database: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), j.opts.Path)
}

// extractMMDB copies the first .mmdb entry of a tar.gz stream into dst.
func extractMMDB(src io.Reader, dst io.Writer) error {
	gzr, err := gzip.NewReader(src)
	if err != nil {
		return fmt.Errorf("failed to create gzip reader: %w", err)
	}
	defer gzr.Close()

	tr := tar.NewReader(gzr)
	for {
		header, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return errors.New("no .mmdb file found in archive")
		}
		if err != nil {
			return fmt.Errorf("failed to read tar: %w", err)
		}
		if strings.HasSuffix(header.Name, ".mmdb") {
			_, err := io.Copy(dst, tr)
			return err
		}
	}
}
