// Package artwork downloads creature artwork and category icons and stores
// them as PNG files.
package artwork

import (
	"bytes"
	"context"
	"digimon-scraper/internal/cache"
	"digimon-scraper/internal/components/assert"
	"digimon-scraper/internal/components/telemetry"
	"digimon-scraper/internal/politehttp"
	"digimon-scraper/lib/osutil"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"path/filepath"
	"sync"

	"github.com/gabriel-vasile/mimetype"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
	"golang.org/x/sync/singleflight"
)

const (
	report_fetch_reuse  = "fetch.reuse"
	report_fetch_shared = "fetch.shared"
	report_fetch_format = "fetch.format"
)

var tracer = otel.Tracer("digimon-scraper.internal.artwork")

var ErrUnsupportedFormat = errors.New("unsupported image format")

var transcoded = []string{"image/jpeg", "image/gif", "image/webp", "image/bmp"}

// BodyFetcher is the part of politehttp.Fetcher used to download images.
type BodyFetcher interface {
	Get(ctx context.Context, namespace cache.Namespace, rawUrl string, opts politehttp.FetchOptions) ([]byte, error)
}

// Fetcher writes each image name at most once over its lifetime, copies share
// that state. Commands build one Fetcher per run.
type Fetcher struct {
	bodies BodyFetcher
	dir    string
	tel    telemetry.API

	flight  *singleflight.Group
	written *sync.Map
}

// NewFetcher creates a Fetcher writing into dir.
func NewFetcher(bodies BodyFetcher, dir string, tel telemetry.API) Fetcher {
	assert.NotNil(bodies)
	assert.NotEmptyStr(dir)
	assert.NotNil(tel)

	return Fetcher{
		bodies:  bodies,
		dir:     dir,
		tel:     telemetry.NewScopedAPI("artwork", tel),
		flight:  &singleflight.Group{},
		written: &sync.Map{},
	}
}

// Path is where the image called name is written to.
func (f Fetcher) Path(name string) string {
	return filepath.Join(f.dir, name+".png")
}

// Fetch downloads rawUrl and stores it as <dir>/<name>.png, returning the
// path written. An existing file is kept as is unless opts.IgnoreCache is set.
// Shared images like category icons are downloaded once per Fetcher even with
// opts.IgnoreCache, concurrent callers for one name wait for the same download.
func (f Fetcher) Fetch(ctx context.Context, rawUrl, name string, opts politehttp.FetchOptions) (string, error) {
	ctx, span := tracer.Start(ctx, "artwork:fetch")
	defer span.End()
	span.SetAttributes(
		attribute.String("custom.url", rawUrl),
		attribute.String("custom.name", name),
	)

	dest := f.Path(name)
	if _, ok := f.written.Load(name); ok {
		f.tel.ReportDebug(report_fetch_shared, "path", dest)
		return dest, nil
	}
	if !opts.IgnoreCache {
		exists, err := osutil.Exists(dest)
		if err != nil {
			return "", err
		}
		if exists {
			f.tel.ReportDebug(report_fetch_reuse, "path", dest)
			return dest, nil
		}
	}

	_, err, _ := f.flight.Do(name, func() (any, error) {
		if _, ok := f.written.Load(name); ok {
			return nil, nil
		}
		err := f.download(ctx, rawUrl, dest, opts)
		if err != nil {
			return nil, err
		}
		f.written.Store(name, struct{}{})
		return nil, nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to fetch image")
		return "", err
	}
	return dest, nil
}

func (f Fetcher) download(ctx context.Context, rawUrl, dest string, opts politehttp.FetchOptions) error {
	body, err := f.bodies.Get(ctx, cache.NAMESPACE_IMAGE, rawUrl, opts)
	if err != nil {
		return err
	}

	encoded, err := ToPNG(body)
	if err != nil {
		f.tel.ReportWarning(report_fetch_format, err, "url", rawUrl)
		return err
	}

	err = osutil.WriteFileAtomic(dest, encoded)
	if err != nil {
		return fmt.Errorf("write %s: %w", dest, err)
	}
	return nil
}

// ToPNG returns body encoded as PNG. PNG input is returned unchanged, JPEG,
// GIF, WebP and BMP are re-encoded.
func ToPNG(body []byte) ([]byte, error) {
	mime := mimetype.Detect(body)
	if mime.Is("image/png") {
		return body, nil
	}
	if !mimetype.EqualsAny(mime.String(), transcoded...) {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, mime.String())
	}

	img, _, err := image.Decode(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", mime.String(), err)
	}
	var out bytes.Buffer
	err = png.Encode(&out, img)
	if err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return out.Bytes(), nil
}
