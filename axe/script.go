package axe

import (
	"context"
	"fmt"
	"io/fs"
	"net/http"
	"net/url"
	"os"
	"sync"
	"time"

	"github.com/hazyhaar/axecheck/horosafe"
)

// MaxScriptSize caps script sources fetched over HTTP. axe.min.js is
// around 500 KiB.
const MaxScriptSize int64 = 16 << 20

// Script is the source of the analysis engine. The source is read on first
// use and cached; a Script is safe to share between Clients.
type Script struct {
	origin string
	load   func(ctx context.Context) (string, error)

	mu  sync.Mutex
	src string
}

// ScriptText wraps inline JavaScript source.
func ScriptText(src string) *Script {
	return &Script{
		origin: "inline",
		load:   func(context.Context) (string, error) { return src, nil },
	}
}

// ScriptFile reads the source from a local file.
func ScriptFile(path string) *Script {
	return &Script{
		origin: path,
		load: func(context.Context) (string, error) {
			data, err := os.ReadFile(path)
			if err != nil {
				return "", err
			}
			return string(data), nil
		},
	}
}

// ScriptFS reads the source from name in fsys, typically an embed.FS.
func ScriptFS(fsys fs.FS, name string) *Script {
	return &Script{
		origin: name,
		load: func(context.Context) (string, error) {
			data, err := fs.ReadFile(fsys, name)
			if err != nil {
				return "", err
			}
			return string(data), nil
		},
	}
}

// ScriptURL loads the source from a file:, http: or https: URL.
func ScriptURL(rawURL string) *Script {
	return &Script{
		origin: rawURL,
		load:   func(ctx context.Context) (string, error) { return fetchScript(ctx, rawURL) },
	}
}

// Origin describes where the source comes from, for logs.
func (s *Script) Origin() string { return s.origin }

// Source returns the script source. Only a successful load is cached.
func (s *Script) Source(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.src != "" {
		return s.src, nil
	}

	src, err := s.load(ctx)
	if err == nil && src == "" {
		err = fmt.Errorf("empty source")
	}
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrScriptUnavailable, s.origin, err)
	}
	s.src = src
	return src, nil
}

var scriptClient = &http.Client{Timeout: 30 * time.Second}

func fetchScript(ctx context.Context, rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}

	switch u.Scheme {
	case "file":
		data, err := os.ReadFile(u.Path)
		if err != nil {
			return "", err
		}
		return string(data), nil
	case "http", "https":
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", err
	}
	resp, err := scriptClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("status %d", resp.StatusCode)
	}
	data, err := horosafe.LimitedReadAll(resp.Body, MaxScriptSize)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
