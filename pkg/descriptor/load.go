package descriptor

import (
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"slices"

	"github.com/davidmdm/x/xerr"
)

// Load reads a descriptor document from a local path or an http(s) URL.
func Load(ctx context.Context, ref string) (data []byte, err error) {
	uri, _ := url.Parse(ref)
	if uri == nil || uri.Scheme == "" {
		return os.ReadFile(ref)
	}

	if !slices.Contains([]string{"http", "https"}, uri.Scheme) {
		return nil, fmt.Errorf("unsupported protocol: %s - http(s) supported only", uri.Scheme)
	}

	req, err := http.NewRequestWithContext(ctx, "GET", uri.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to get response: %w", err)
	}
	defer func() {
		err = xerr.MultiErrFrom("", err, resp.Body.Close())
	}()

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("unexpected statuscode %d fetching %s", resp.StatusCode, uri.String())
	}

	if resp.Header.Get("Content-Encoding") == "gzip" {
		reader, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to read gzip content: %w", err)
		}
		return io.ReadAll(reader)
	}

	return io.ReadAll(resp.Body)
}

// SourceRef normalizes a source reference for revision bookkeeping: URLs
// stay as given, local paths gain a file scheme.
func SourceRef(ref string) string {
	if ref == "" {
		return ""
	}
	u, err := url.Parse(ref)
	if err == nil && u.Scheme != "" {
		return u.String()
	}
	return "file://" + path.Clean(ref)
}

// ReadSource resolves the document bytes for a command invocation: an
// explicit path or URL wins, otherwise the document streams from input.
func ReadSource(ctx context.Context, ref string, input io.Reader) ([]byte, error) {
	if ref != "" && ref != "-" {
		return Load(ctx, ref)
	}
	if input == nil {
		return nil, errors.New("no descriptor source: provide a path or pipe a document over stdin")
	}
	return io.ReadAll(input)
}
