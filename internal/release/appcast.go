// Package release resolves the two versions compared for each build
// variant: the newest one published in the Sparkle appcast, and the one
// the launcher's test suite was last verified against.
package release

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/antchfx/xmlquery"

	"github.com/Cloudsky01/gh-buildtrigger/pkg/models"
)

const (
	SparkleNamespace = "http://www.andymatuschak.org/xml-namespaces/sparkle"

	enclosurePath    = "/rss/channel/item/enclosure"
	versionAttribute = "version"
)

// ErrVersionNotFound means the document did not contain the expected node or attribute
var ErrVersionNotFound = errors.New("version not found")

// Fetcher retrieves public resources over HTTP
type Fetcher interface {
	GetStream(ctx context.Context, url string) (io.ReadCloser, error)
	GetString(ctx context.Context, url string) (string, error)
}

// FeedResolver maps a variant to its appcast URL
type FeedResolver interface {
	FeedURL(variant models.BuildVariant) (string, error)
}

// Appcast reads the latest published version from a Sparkle appcast
type Appcast struct {
	fetcher Fetcher
	feeds   FeedResolver
	logger  *slog.Logger
}

func NewAppcast(fetcher Fetcher, feeds FeedResolver, logger *slog.Logger) *Appcast {
	if logger == nil {
		logger = slog.Default()
	}
	return &Appcast{fetcher: fetcher, feeds: feeds, logger: logger}
}

// LatestVersion returns the sparkle:version of the first enclosure in the feed
func (a *Appcast) LatestVersion(ctx context.Context, variant models.BuildVariant) (string, error) {
	feedURL, err := a.feeds.FeedURL(variant)
	if err != nil {
		return "", err
	}

	body, err := a.fetcher.GetStream(ctx, feedURL)
	if err != nil {
		return "", fmt.Errorf("fetching %s appcast: %w", variant, err)
	}
	defer func() { _ = body.Close() }()

	version, err := ParseAppcastVersion(body)
	if err != nil {
		return "", fmt.Errorf("reading %s appcast %s: %w", variant, feedURL, err)
	}

	a.logger.Info(fmt.Sprintf("Latest Vivaldi %s version: %s", variant, version),
		"variant", variant.String(), "latest", version)
	return version, nil
}

// ParseAppcastVersion extracts /rss/channel/item/enclosure/@sparkle:version,
// with sparkle bound to SparkleNamespace
func ParseAppcastVersion(r io.Reader) (string, error) {
	doc, err := xmlquery.Parse(r)
	if err != nil {
		return "", fmt.Errorf("parsing appcast XML: %w", err)
	}

	enclosure, err := xmlquery.Query(doc, enclosurePath)
	if err != nil {
		return "", fmt.Errorf("querying %s: %w", enclosurePath, err)
	}
	if enclosure == nil {
		return "", fmt.Errorf("%w: no %s element", ErrVersionNotFound, enclosurePath)
	}

	version := sparkleAttr(enclosure, versionAttribute)
	if version == "" {
		return "", fmt.Errorf("%w: %s has no {%s}%s attribute", ErrVersionNotFound, enclosurePath, SparkleNamespace, versionAttribute)
	}

	return version, nil
}

// sparkleAttr matches on the namespace URI, whatever prefix the feed binds to it
func sparkleAttr(n *xmlquery.Node, local string) string {
	for _, attr := range n.Attr {
		if attr.NamespaceURI == SparkleNamespace && attr.Name.Local == local {
			return attr.Value
		}
	}
	return ""
}
