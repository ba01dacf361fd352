package release

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/Cloudsky01/gh-buildtrigger/internal/github"
	"github.com/Cloudsky01/gh-buildtrigger/pkg/models"
)

// Baseline reads the version the test suite currently asserts against
type Baseline struct {
	fetcher Fetcher
	baseURL *url.URL
	logger  *slog.Logger
}

func NewBaseline(fetcher Fetcher, baseURL string, logger *slog.Logger) (*Baseline, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid baseline URL %q: %w", baseURL, err)
	}
	if !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Baseline{fetcher: fetcher, baseURL: u, logger: logger}, nil
}

// FileName is the per-variant baseline file, e.g. vivaldi-stable-version.txt
func FileName(variant models.BuildVariant) string {
	return fmt.Sprintf("vivaldi-%s-version.txt", variant.Lower())
}

// URL resolves the baseline file for a variant against the base URL
func (b *Baseline) URL(variant models.BuildVariant) string {
	return b.baseURL.ResolveReference(&url.URL{Path: FileName(variant)}).String()
}

// TestedVersion returns the trimmed contents of the variant's baseline file
func (b *Baseline) TestedVersion(ctx context.Context, variant models.BuildVariant) (string, error) {
	fileURL := b.URL(variant)
	body, err := b.fetcher.GetString(ctx, fileURL)
	if github.IsNotFound(err) {
		return "", fmt.Errorf("no tested %s version: %s does not exist: %w", variant, fileURL, err)
	}
	if err != nil {
		return "", fmt.Errorf("fetching tested %s version: %w", variant, err)
	}

	version := strings.TrimSpace(body)
	b.logger.Info(fmt.Sprintf("Tested Vivaldi %s version: %s", variant, version),
		"variant", variant.String(), "tested", version)
	return version, nil
}
