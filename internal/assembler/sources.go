package assembler

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"

	"github.com/dhowden/tag"

	"github.com/terrapper/poddigest/internal/model"
)

// SourceFetcher streams one episode's source audio. http.Client satisfies
// this via httpFetcher below; tests substitute a stub.
type SourceFetcher interface {
	Fetch(ctx context.Context, url string) (io.ReadCloser, error)
}

// httpFetcher is the production SourceFetcher, a thin GET wrapper.
type httpFetcher struct {
	client *http.Client
}

// NewHTTPFetcher builds a SourceFetcher backed by client, or a default
// *http.Client if nil.
func NewHTTPFetcher(client *http.Client) SourceFetcher {
	if client == nil {
		client = http.DefaultClient
	}
	return &httpFetcher{client: client}
}

func (f *httpFetcher) Fetch(ctx context.Context, url string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 300 {
		resp.Body.Close()
		return nil, fmt.Errorf("fetch %s: status %d", url, resp.StatusCode)
	}
	return resp.Body, nil
}

// acquireSources resolves a local file path for every distinct episode a
// clip references. A clip set with any unresolvable episode fails the whole
// assembly: the selected clip set is a contract the renderer cannot
// partially honor (§4.H source acquisition).
//
// Each episode is first looked up in the on-disk source cache keyed by
// episode id, which survives across assembly attempts for the same digest
// (unlike the per-attempt scratch directory, which is always removed). A
// retried assembly after a transient render failure therefore does not
// re-download audio it already has.
func (a *Assembler) acquireSources(ctx context.Context, clips []model.DigestClip) (map[string]string, error) {
	if err := os.MkdirAll(a.cacheDir, 0o755); err != nil {
		return nil, fmt.Errorf("create source cache dir: %w", err)
	}

	sources := make(map[string]string)
	seen := map[string]bool{}
	for _, c := range clips {
		if seen[c.EpisodeID] {
			continue
		}
		seen[c.EpisodeID] = true

		path, err := a.resolveSource(ctx, c.EpisodeID)
		if err != nil {
			return nil, fmt.Errorf("episode %s: %w", c.EpisodeID, err)
		}
		sources[c.EpisodeID] = path
	}
	return sources, nil
}

func (a *Assembler) resolveSource(ctx context.Context, episodeID string) (string, error) {
	cached := filepath.Join(a.cacheDir, episodeID+".mp3")
	if info, err := os.Stat(cached); err == nil && info.Size() > 0 {
		slog.Debug("episode source cache hit", "episode_id", episodeID)
		return cached, nil
	}

	remoteKey := fmt.Sprintf("episodes/%s/audio.mp3", episodeID)
	if _, err := a.store.Head(ctx, remoteKey); err == nil {
		rc, err := a.store.Get(ctx, remoteKey)
		if err != nil {
			return "", fmt.Errorf("fetch cached episode audio: %w", err)
		}
		if err := writeStream(cached, rc); err != nil {
			return "", fmt.Errorf("save cached episode audio: %w", err)
		}
		return cached, nil
	}

	episode, err := a.repo.GetEpisode(ctx, episodeID)
	if err != nil {
		return "", fmt.Errorf("load episode: %w", err)
	}
	rc, err := a.fetcher.Fetch(ctx, episode.AudioURL)
	if err != nil {
		return "", fmt.Errorf("download episode audio: %w", err)
	}
	if err := writeStream(cached, rc); err != nil {
		return "", fmt.Errorf("save downloaded episode audio: %w", err)
	}

	logSourceTags(episodeID, cached)

	// Upload to the canonical object-store location too so future digests
	// sharing this episode hit the remote cache instead of re-downloading.
	if f, err := os.Open(cached); err == nil {
		defer f.Close()
		if err := a.store.Put(ctx, remoteKey, f, "audio/mpeg", map[string]string{"episodeId": episodeID}); err != nil {
			slog.Warn("failed to populate episode audio cache", "episode_id", episodeID, "error", err)
		}
	}
	return cached, nil
}

// logSourceTags reads whatever ID3 tags are present on a freshly downloaded
// episode file for diagnostics; a missing or unreadable tag block is not an
// error, since chapter titles fall back to the podcast/episode row anyway.
func logSourceTags(episodeID, path string) {
	f, err := os.Open(path)
	if err != nil {
		return
	}
	defer f.Close()

	m, err := tag.ReadFrom(f)
	if err != nil {
		return
	}
	slog.Debug("episode source tags", "episode_id", episodeID, "title", m.Title(), "artist", m.Artist(), "album", m.Album())
}
