// Package lyrics looks up song metadata on the Genius search API. It returns
// at most the single best match; lyrics bodies themselves are not fetched,
// only a link to them.
package lyrics

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"
)

const defaultBaseURL = "https://api.genius.com"

type Info struct {
	Title       string
	Artist      string
	Album       string
	ReleaseDate string
	URL         string
}

type Client struct {
	token   string
	baseURL string
	http    *http.Client
}

func NewClient(token string) *Client {
	return &Client{
		token:   token,
		baseURL: defaultBaseURL,
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

// searchResponse mirrors the slice of the Genius /search payload we read.
type searchResponse struct {
	Response struct {
		Hits []struct {
			Result struct {
				ID            int64  `json:"id"`
				Title         string `json:"title"`
				URL           string `json:"url"`
				PrimaryArtist struct {
					Name string `json:"name"`
				} `json:"primary_artist"`
			} `json:"result"`
		} `json:"hits"`
	} `json:"response"`
}

type songResponse struct {
	Response struct {
		Song struct {
			Album *struct {
				Name string `json:"name"`
			} `json:"album"`
			ReleaseDateForDisplay string `json:"release_date_for_display"`
		} `json:"song"`
	} `json:"response"`
}

// Find returns the best match for query, or (nil, nil) when nothing matched.
func (c *Client) Find(ctx context.Context, query string) (*Info, error) {
	cleaned := CleanTitle(query)
	if cleaned == "" {
		cleaned = query
	}

	var sr searchResponse
	if err := c.get(ctx, "/search?q="+url.QueryEscape(cleaned), &sr); err != nil {
		return nil, fmt.Errorf("lyrics search: %w", err)
	}
	if len(sr.Response.Hits) == 0 {
		return nil, nil
	}
	hit := sr.Response.Hits[0].Result

	info := &Info{
		Title:  hit.Title,
		Artist: hit.PrimaryArtist.Name,
		URL:    hit.URL,
	}

	// Album and release date come from the song detail endpoint; treat its
	// failure as a partial result, not a lookup failure.
	var song songResponse
	if err := c.get(ctx, "/songs/"+strconv.FormatInt(hit.ID, 10), &song); err == nil {
		if song.Response.Song.Album != nil {
			info.Album = song.Response.Song.Album.Name
		}
		info.ReleaseDate = song.Response.Song.ReleaseDateForDisplay
	}
	return info, nil
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("User-Agent", "tunebot/1.0")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("genius returned status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

var noisePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\(Official.*?\)`),
	regexp.MustCompile(`(?i)\[Official.*?\]`),
	regexp.MustCompile(`(?i)\(Lyrics.*?\)`),
	regexp.MustCompile(`(?i)\[Lyrics.*?\]`),
	regexp.MustCompile(`(?i)\(Audio.*?\)`),
	regexp.MustCompile(`(?i)\[Audio.*?\]`),
	regexp.MustCompile(`(?i)\(Video.*?\)`),
	regexp.MustCompile(`(?i)\[Video.*?\]`),
	regexp.MustCompile(`(?i)\((?:HD|4K).*?\)`),
	regexp.MustCompile(`(?i)\[(?:HD|4K).*?\]`),
	regexp.MustCompile(`(?i)- Topic`),
	regexp.MustCompile(`(?i)(?:ft\.|feat\.|featuring).*`),
}

var (
	separators = regexp.MustCompile(`\s*[-|•]\s*`)
	spaces     = regexp.MustCompile(`\s+`)
)

// CleanTitle strips upload-title noise so the search hits the actual song.
func CleanTitle(title string) string {
	cleaned := title
	for _, p := range noisePatterns {
		cleaned = p.ReplaceAllString(cleaned, "")
	}
	cleaned = separators.ReplaceAllString(cleaned, " ")
	cleaned = spaces.ReplaceAllString(cleaned, " ")
	return strings.TrimSpace(cleaned)
}
