package trust

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strings"

	"github.com/boogy/shc-warden/pkg/types"
	"github.com/xeipuuv/gojsonschema"
	"golang.org/x/sync/errgroup"
)

const (
	maxDirectorySize   = 10 * 1024 * 1024
	maxConcurrentLoads = 4
)

var (
	ErrInvalidDirectory = errors.New("invalid trust directory")
	ErrNoS3Reader       = errors.New("no S3 reader configured for s3:// trust directory")
)

//go:embed schema.json
var directorySchema string

var directorySchemaLoader = gojsonschema.NewStringLoader(directorySchema)

// ObjectReader reads a trust directory document stored in object storage.
type ObjectReader interface {
	ReadTrustDirectory(ctx context.Context, uri string) ([]byte, error)
}

// Loader reads trust directory snapshots from file paths, http(s) URLs and
// s3:// URIs.
type Loader struct {
	Client      *http.Client
	S3          ObjectReader
	SchemaCheck bool
}

// ParseDirectory decodes a trust directory snapshot, optionally validating it
// against the bundled JSON schema first.
func ParseDirectory(data []byte, schemaCheck bool) (*types.DirectorySnapshot, error) {
	if schemaCheck {
		if err := validateDirectory(data); err != nil {
			return nil, err
		}
	}

	var snapshot types.DirectorySnapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidDirectory, err)
	}
	return &snapshot, nil
}

func validateDirectory(data []byte) error {
	result, err := gojsonschema.Validate(directorySchemaLoader, gojsonschema.NewBytesLoader(data))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidDirectory, err)
	}

	if !result.Valid() {
		problems := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			problems = append(problems, desc.String())
		}
		return fmt.Errorf("%w: %s", ErrInvalidDirectory, strings.Join(problems, "; "))
	}
	return nil
}

// Read returns the raw document behind source.
func (l *Loader) Read(ctx context.Context, source string) ([]byte, error) {
	u, err := url.Parse(source)
	if err != nil || u.Scheme == "" {
		return readFile(source)
	}

	switch u.Scheme {
	case "file":
		return readFile(u.Path)
	case "http", "https":
		return l.readURL(ctx, source)
	case "s3":
		if l.S3 == nil {
			return nil, ErrNoS3Reader
		}
		return l.S3.ReadTrustDirectory(ctx, source)
	default:
		return nil, fmt.Errorf("unsupported trust directory scheme: %s", u.Scheme)
	}
}

func readFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("unable to open trust directory: %w", err)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, maxDirectorySize))
	if err != nil {
		return nil, fmt.Errorf("unable to read trust directory: %w", err)
	}
	return data, nil
}

func (l *Loader) readURL(ctx context.Context, source string) ([]byte, error) {
	client := l.Client
	if client == nil {
		client = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, source, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch trust directory: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to fetch trust directory: status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxDirectorySize))
	if err != nil {
		return nil, fmt.Errorf("unable to read trust directory: %w", err)
	}
	return data, nil
}

// Load reads and parses a single trust directory source.
func (l *Loader) Load(ctx context.Context, source string) (*types.DirectorySnapshot, error) {
	data, err := l.Read(ctx, source)
	if err != nil {
		return nil, err
	}

	snapshot, err := ParseDirectory(data, l.SchemaCheck)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", source, err)
	}
	return snapshot, nil
}

// LoadInto fetches all sources concurrently and applies them to store in the
// order given, so a later source overrides an earlier one for the same issuer.
// Nothing is applied if any source fails.
func (l *Loader) LoadInto(ctx context.Context, store *Store, sources []string) error {
	snapshots := make([]*types.DirectorySnapshot, len(sources))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentLoads)
	for i, source := range sources {
		g.Go(func() error {
			snapshot, err := l.Load(gctx, source)
			if err != nil {
				return err
			}
			snapshots[i] = snapshot
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}

	for i, snapshot := range snapshots {
		loaded := store.LoadDirectory(snapshot)
		slog.Debug("Applied trust directory source",
			slog.String("source", sources[i]),
			slog.Int("entries", loaded))
	}
	return nil
}
