package source

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// AccessMode is how a remote image is requested.
type AccessMode int

const (
	// Anonymous sends the app origin and keeps the bitmap readable when the
	// remote grants it through Access-Control-Allow-Origin.
	Anonymous AccessMode = iota
	// NoCORS never asks for read access. Cross-origin results are tainted.
	NoCORS
)

// DefaultTimeout bounds a single remote fetch.
const DefaultTimeout = 15 * time.Second

// maxRemoteBytes guards against unbounded downloads.
const maxRemoteBytes = 64 << 20

// URL fetches an image with a one-shot GET.
type URL struct {
	Address string
	// Origin is the app's own origin, e.g. "https://app.example.com". An
	// empty Origin treats every address as same-origin.
	Origin string
	Mode   AccessMode
	Client *http.Client
}

func (u URL) Name() string { return u.Address }

func (u URL) Fetch(ctx context.Context) (Payload, error) {
	client := u.Client
	if client == nil {
		client = &http.Client{Timeout: DefaultTimeout}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.Address, nil)
	if err != nil {
		return Payload{}, err
	}
	if u.Mode == Anonymous && u.Origin != "" {
		req.Header.Set("Origin", u.Origin)
	}

	resp, err := client.Do(req)
	if err != nil {
		return Payload{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Payload{}, fmt.Errorf("unexpected status %s", resp.Status)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxRemoteBytes+1))
	if err != nil {
		return Payload{}, err
	}
	if len(data) > maxRemoteBytes {
		return Payload{}, fmt.Errorf("image larger than %d bytes", maxRemoteBytes)
	}

	return Payload{Data: data, Tainted: u.tainted(resp)}, nil
}

func (u URL) tainted(resp *http.Response) bool {
	if u.Origin == "" || sameOrigin(u.Address, u.Origin) {
		return false
	}
	if u.Mode == NoCORS {
		return true
	}
	allow := strings.TrimSpace(resp.Header.Get("Access-Control-Allow-Origin"))
	return allow != "*" && !strings.EqualFold(strings.TrimRight(allow, "/"), strings.TrimRight(u.Origin, "/"))
}

func sameOrigin(address, origin string) bool {
	a, err := url.Parse(address)
	if err != nil {
		return false
	}
	o, err := url.Parse(origin)
	if err != nil {
		return false
	}
	return strings.EqualFold(a.Scheme, o.Scheme) && strings.EqualFold(a.Host, o.Host)
}
