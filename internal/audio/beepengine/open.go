package beepengine

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"path"
	"strings"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/flac"
	"github.com/gopxl/beep/v2/mp3"
	"github.com/gopxl/beep/v2/wav"
)

// Opener fetches and decodes one track.
type Opener func(ctx context.Context, src string) (beep.StreamSeekCloser, beep.Format, error)

type decodeFunc func(io.ReadCloser) (beep.StreamSeekCloser, beep.Format, error)

var decoders = map[string]decodeFunc{
	"mp3":  func(r io.ReadCloser) (beep.StreamSeekCloser, beep.Format, error) { return mp3.Decode(r) },
	"flac": func(r io.ReadCloser) (beep.StreamSeekCloser, beep.Format, error) { return flac.Decode(r) },
	"wav":  func(r io.ReadCloser) (beep.StreamSeekCloser, beep.Format, error) { return wav.Decode(r) },
}

var mimeFormats = map[string]string{
	"audio/mpeg":   "mp3",
	"audio/mp3":    "mp3",
	"audio/flac":   "flac",
	"audio/x-flac": "flac",
	"audio/wav":    "wav",
	"audio/x-wav":  "wav",
	"audio/wave":   "wav",
}

// formatOf picks a container from the response content type, falling back
// to the URL's file extension.
func formatOf(src, contentType string) (string, error) {
	if mt, _, err := mime.ParseMediaType(contentType); err == nil {
		if f, ok := mimeFormats[mt]; ok {
			return f, nil
		}
	}
	p := src
	if u, err := url.Parse(src); err == nil {
		p = u.Path
	}
	ext := strings.TrimPrefix(strings.ToLower(path.Ext(p)), ".")
	if _, ok := decoders[ext]; ok {
		return ext, nil
	}
	return "", fmt.Errorf("unsupported audio format %q (%s)", ext, contentType)
}

// HTTPOpener downloads whole tracks into memory before decoding them, so
// seeking never touches the network.
func HTTPOpener(hc *http.Client) Opener {
	if hc == nil {
		hc = http.DefaultClient
	}
	return func(ctx context.Context, src string) (beep.StreamSeekCloser, beep.Format, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
		if err != nil {
			return nil, beep.Format{}, fmt.Errorf("failed to create request: %w", err)
		}
		resp, err := hc.Do(req)
		if err != nil {
			return nil, beep.Format{}, fmt.Errorf("fetch track: %w", err)
		}
		defer func() { _ = resp.Body.Close() }()

		if resp.StatusCode != http.StatusOK {
			return nil, beep.Format{}, fmt.Errorf("fetch track: unexpected status %d", resp.StatusCode)
		}
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, beep.Format{}, fmt.Errorf("read track: %w", err)
		}

		kind, err := formatOf(src, resp.Header.Get("Content-Type"))
		if err != nil {
			return nil, beep.Format{}, err
		}
		stream, format, err := decoders[kind](nopCloser{bytes.NewReader(data)})
		if err != nil {
			return nil, beep.Format{}, fmt.Errorf("decode %s: %w", kind, err)
		}
		return stream, format, nil
	}
}

type nopCloser struct {
	*bytes.Reader
}

func (nopCloser) Close() error { return nil }
