// Package feed is the feed ingestor (§4.D): it crawls a user's subscribed
// podcast RSS feeds and upserts newly discovered episodes.
package feed

import (
	"encoding/xml"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// rssFeed is the subset of a podcast RSS 2.0 document the ingestor reads.
// Podcast feeds vary widely in which optional elements they include; only
// title, enclosure, guid, and pubDate are load-bearing here.
type rssFeed struct {
	XMLName xml.Name    `xml:"rss"`
	Channel rssChannel  `xml:"channel"`
}

type rssChannel struct {
	Title       string    `xml:"title"`
	Description string    `xml:"description"`
	Items       []rssItem `xml:"item"`
}

type rssItem struct {
	Title     string       `xml:"title"`
	GUID      rssGUID      `xml:"guid"`
	PubDate   string       `xml:"pubDate"`
	Enclosure rssEnclosure `xml:"enclosure"`
	Duration  string       `xml:"duration"` // itunes:duration, unprefixed by encoding/xml's local-name matching
}

type rssGUID struct {
	Value string `xml:",chardata"`
}

type rssEnclosure struct {
	URL  string `xml:"url,attr"`
	Type string `xml:"type,attr"`
}

// parsedItem is an rssItem normalized to the fields the ingestor cares
// about, with an audio enclosure and a usable guid both present.
type parsedItem struct {
	Title       string
	GUID        string
	AudioURL    string
	PublishedAt time.Time
	DurationSec int
}

func parseFeed(body []byte) (title, description string, items []parsedItem, err error) {
	var feed rssFeed
	if err := xml.Unmarshal(body, &feed); err != nil {
		return "", "", nil, fmt.Errorf("parse rss: %w", err)
	}

	for _, raw := range feed.Channel.Items {
		guid := strings.TrimSpace(raw.GUID.Value)
		if guid == "" || raw.Enclosure.URL == "" {
			continue
		}
		pub, _ := parsePubDate(raw.PubDate)
		dur, _ := ParseDuration(raw.Duration)
		items = append(items, parsedItem{
			Title:       raw.Title,
			GUID:        guid,
			AudioURL:    raw.Enclosure.URL,
			PublishedAt: pub,
			DurationSec: dur,
		})
	}
	return feed.Channel.Title, feed.Channel.Description, items, nil
}

var rssDateFormats = []string{
	time.RFC1123Z,
	time.RFC1123,
	"Mon, 2 Jan 2006 15:04:05 -0700",
	"Mon, 2 Jan 2006 15:04:05 MST",
	time.RFC3339,
}

func parsePubDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty pubDate")
	}
	for _, layout := range rssDateFormats {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized pubDate format: %q", s)
}

var secondsOnly = regexp.MustCompile(`^\d+$`)

// ParseDuration reads an itunes:duration value, which podcast feeds encode
// inconsistently as plain integer seconds, "MM:SS", or "HH:MM:SS". Malformed
// input yields (0, false) — the "unknown" value.
func ParseDuration(s string) (int, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	if secondsOnly.MatchString(s) {
		n, err := strconv.Atoi(s)
		if err != nil {
			return 0, false
		}
		return n, true
	}

	parts := strings.Split(s, ":")
	nums := make([]int, len(parts))
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return 0, false
		}
		nums[i] = n
	}

	switch len(nums) {
	case 2:
		return nums[0]*60 + nums[1], true
	case 3:
		return nums[0]*3600 + nums[1]*60 + nums[2], true
	default:
		return 0, false
	}
}
