// Package media wraps yt-dlp for search, metadata lookup and fetching.
// Format negotiation and the actual transfer are delegated to yt-dlp; this
// package only shapes requests and locates the produced file.
package media

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/lrstanley/go-ytdlp"
)

const (
	// Audio-only without forcing a transcode, so ffmpeg is not required.
	audioFormat = "bestaudio[ext=m4a]/bestaudio/best[ext=mp4]/best"
	// 720p cap keeps files inside Telegram upload limits most of the time.
	videoFormat = "best[height<=720][ext=mp4]/best[ext=mp4]/best"
)

// Video is one search result or described link target.
type Video struct {
	ID       string
	Title    string
	Channel  string
	URL      string
	Duration int // seconds, 0 when unknown
}

type Service struct {
	tempDir string
}

func NewService(tempDir string) *Service {
	return &Service{tempDir: tempDir}
}

// Search runs a flat ytsearch extraction and returns up to maxResults items.
// An empty slice means no results; an error means the extraction itself
// failed.
func (s *Service) Search(ctx context.Context, query string, maxResults int) ([]Video, error) {
	dl := ytdlp.New().
		SkipDownload().
		FlatPlaylist().
		Quiet()

	res, err := dl.Run(ctx, fmt.Sprintf("ytsearch%d:%s", maxResults, query))
	if err != nil {
		return nil, fmt.Errorf("search %q: %w", query, err)
	}
	infos, err := res.GetExtractedInfo()
	if err != nil {
		return nil, fmt.Errorf("parse search results: %w", err)
	}

	var out []Video
	for _, info := range infos {
		entries := info.Entries
		if len(entries) == 0 {
			// Single-video result rather than a search playlist.
			entries = []*ytdlp.ExtractedInfo{info}
		}
		for _, e := range entries {
			if e == nil {
				continue
			}
			v := videoFromInfo(e)
			if v.ID == "" || v.Title == "" {
				continue
			}
			out = append(out, v)
			if len(out) >= maxResults {
				return out, nil
			}
		}
	}
	return out, nil
}

// Describe fetches metadata for a direct link without downloading.
func (s *Service) Describe(ctx context.Context, url string) (*Video, error) {
	dl := ytdlp.New().
		SkipDownload().
		NoPlaylist().
		Quiet()

	res, err := dl.Run(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("describe %s: %w", url, err)
	}
	infos, err := res.GetExtractedInfo()
	if err != nil || len(infos) == 0 {
		return nil, fmt.Errorf("describe %s: no metadata", url)
	}
	v := videoFromInfo(infos[0])
	if v.URL == "" {
		v.URL = url
	}
	return &v, nil
}

// FetchAudio downloads the audio track of url into the service's temp
// directory and returns the local path. The output name is keyed by a
// request-scoped id, never by title, so concurrent fetches of like-named
// items cannot collide.
func (s *Service) FetchAudio(ctx context.Context, url string) (string, error) {
	return s.fetch(ctx, url, audioFormat)
}

// FetchVideo downloads url as a video file.
func (s *Service) FetchVideo(ctx context.Context, url string) (string, error) {
	return s.fetch(ctx, url, videoFormat)
}

func (s *Service) fetch(ctx context.Context, url, format string) (string, error) {
	if err := os.MkdirAll(s.tempDir, 0o755); err != nil {
		return "", fmt.Errorf("ensure temp dir: %w", err)
	}
	key := uuid.NewString()

	dl := ytdlp.New().
		Format(format).
		NoPlaylist().
		Quiet().
		Output(outputTemplate(s.tempDir, key))

	res, err := dl.Run(ctx, url)
	if err != nil {
		return "", fmt.Errorf("fetch %s: %w", url, err)
	}

	if infos, err := res.GetExtractedInfo(); err == nil {
		for _, info := range infos {
			if info.Filename != nil && *info.Filename != "" {
				if _, statErr := os.Stat(*info.Filename); statErr == nil {
					return *info.Filename, nil
				}
			}
		}
	}
	// yt-dlp did not report a filename; probe by the request key.
	path, ok := locateByKey(s.tempDir, key)
	if !ok {
		return "", fmt.Errorf("fetch %s: downloaded file not found", url)
	}
	return path, nil
}

// Cleanup removes a fetched temporary file, logging rather than failing.
func (s *Service) Cleanup(path string) {
	if path == "" {
		return
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		log.Printf("failed to remove temp file %s: %v", path, err)
	}
}

func outputTemplate(destDir, key string) string {
	return filepath.Join(destDir, key+".%(ext)s")
}

func locateByKey(destDir, key string) (string, bool) {
	matches, err := filepath.Glob(filepath.Join(destDir, key+".*"))
	if err != nil || len(matches) == 0 {
		return "", false
	}
	return matches[0], true
}

func videoFromInfo(info *ytdlp.ExtractedInfo) Video {
	v := Video{ID: info.ID}
	if info.Title != nil {
		v.Title = *info.Title
	}
	if info.Channel != nil {
		v.Channel = *info.Channel
	} else if info.Uploader != nil {
		v.Channel = *info.Uploader
	}
	if info.WebpageURL != nil {
		v.URL = *info.WebpageURL
	}
	if v.URL == "" && v.ID != "" {
		v.URL = WatchURL(v.ID)
	}
	if info.Duration != nil {
		v.Duration = int(*info.Duration)
	}
	return v
}

// WatchURL builds the canonical watch link for a video id.
func WatchURL(id string) string {
	return "https://www.youtube.com/watch?v=" + id
}

var urlPatterns = []string{
	"youtube.com/watch",
	"youtu.be/",
	"youtube.com/v/",
	"youtube.com/embed/",
	"m.youtube.com/watch",
}

// IsSourceURL reports whether text contains a direct link this service can
// describe and fetch.
func IsSourceURL(text string) bool {
	lower := strings.ToLower(text)
	for _, p := range urlPatterns {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}
