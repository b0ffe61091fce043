package fileops

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/dustin/go-humanize"
	"github.com/opencode-ai/agentcmd/internal/command"
	"github.com/rs/zerolog/log"
)

const downloadRetries = 3

// retryInterval is the first backoff delay between download attempts.
var retryInterval = time.Second

// HTTPError reports a download that ended with a non-2xx status.
type HTTPError struct {
	URL    string
	Status int
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("%d %s for url: %s", e.Status, http.StatusText(e.Status), e.URL)
}

// Reply keeps the agent-facing wording distinct from generic failures.
func (e *HTTPError) Reply() string {
	return "Got an HTTP Error whilst trying to download file: " + e.Error()
}

func retryableStatus(code int) bool {
	switch code {
	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}

func (o *ops) downloadFile() command.Command {
	return command.New("download_file", "Download File", command.CategoryFile,
		[]command.Arg{
			{Name: "url", Description: "URL of the file to download", Required: true},
			{Name: "filename", Description: "Where to store the file", Required: true},
		},
		func(ctx context.Context, input json.RawMessage, cctx *command.Context) (*command.Result, error) {
			var in struct {
				URL      string `json:"url"`
				Filename string `json:"filename"`
			}
			if err := command.Decode(input, &in); err != nil {
				return nil, err
			}
			u, err := url.Parse(in.URL)
			if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
				return nil, fmt.Errorf("url must start with http:// or https://")
			}
			path, err := cctx.Resolve(in.Filename)
			if err != nil {
				return nil, err
			}
			if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
				return nil, fmt.Errorf("failed to create directory: %w", err)
			}

			size, err := o.download(ctx, in.URL, path, cctx)
			if err != nil {
				return nil, err
			}
			return &command.Result{
				Title: fmt.Sprintf("Downloaded %s", filepath.Base(path)),
				Output: fmt.Sprintf("Successfully downloaded and locally stored file: %q! (Size: %s)",
					in.Filename, humanize.Bytes(uint64(size))),
				Metadata: map[string]any{"file": path, "bytes": size},
			}, nil
		})
}

// download fetches rawURL into path, retrying gateway failures.
func (o *ops) download(ctx context.Context, rawURL, path string, cctx *command.Context) (int64, error) {
	var written int64
	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		resp, err := o.client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			httpErr := &HTTPError{URL: rawURL, Status: resp.StatusCode}
			if retryableStatus(resp.StatusCode) {
				log.Warn().Int("status", resp.StatusCode).Str("url", rawURL).Msg("download failed, retrying")
				return httpErr
			}
			return backoff.Permanent(httpErr)
		}

		f, err := os.Create(path)
		if err != nil {
			return backoff.Permanent(err)
		}
		defer f.Close()

		pr := &progressReader{r: resp.Body, total: resp.ContentLength, cctx: cctx, url: rawURL}
		written, err = io.Copy(f, pr)
		if err != nil {
			return err
		}
		return f.Close()
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = retryInterval
	b.MaxElapsedTime = 0
	policy := backoff.WithContext(backoff.WithMaxRetries(b, downloadRetries), ctx)
	if err := backoff.Retry(operation, policy); err != nil {
		return 0, err
	}
	return written, nil
}

// progressReader reports download progress through command metadata.
type progressReader struct {
	r     io.Reader
	total int64
	read  int64
	cctx  *command.Context
	url   string
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	p.read += int64(n)
	if n > 0 {
		total := "unknown"
		if p.total > 0 {
			total = humanize.Bytes(uint64(p.total))
		}
		p.cctx.SetMetadata("Downloading "+p.url, map[string]any{
			"progress": humanize.Bytes(uint64(p.read)) + " / " + total,
		})
	}
	return n, err
}
