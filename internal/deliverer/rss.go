package deliverer

import (
	"context"
	"encoding/xml"
	"fmt"
	"sort"
	"time"

	"github.com/terrapper/poddigest/internal/model"
	"github.com/terrapper/poddigest/internal/objectstore"
)

// rssFeed is the RSS 2.0 envelope described in §6's bit-level feed contract.
type rssFeed struct {
	XMLName     xml.Name   `xml:"rss"`
	Version     string     `xml:"version,attr"`
	XmlnsItunes string     `xml:"xmlns:itunes,attr"`
	XmlnsAtom   string     `xml:"xmlns:atom,attr"`
	Channel     rssChannel `xml:"channel"`
}

type rssChannel struct {
	Title         string      `xml:"title"`
	Description   string      `xml:"description"`
	Link          string      `xml:"link"`
	Language      string      `xml:"language"`
	SelfLink      rssAtomLink `xml:"atom:link"`
	ItunesAuthor  string      `xml:"itunes:author"`
	ItunesSummary string      `xml:"itunes:summary"`
	Items         []rssItem   `xml:"item"`
}

type rssAtomLink struct {
	Href string `xml:"href,attr"`
	Rel  string `xml:"rel,attr"`
	Type string `xml:"type,attr"`
}

type rssItem struct {
	Title          string       `xml:"title"`
	Description    string       `xml:"description"`
	Enclosure      rssEnclosure `xml:"enclosure"`
	GUID           rssGUID      `xml:"guid"`
	PubDate        string       `xml:"pubDate"`
	ItunesDuration string       `xml:"itunes:duration"`
}

type rssEnclosure struct {
	URL    string `xml:"url,attr"`
	Type   string `xml:"type,attr"`
	Length string `xml:"length,attr"`
}

type rssGUID struct {
	IsPermaLink string `xml:"isPermaLink,attr"`
	Value       string `xml:",chardata"`
}

// buildFeedXML renders the full RSS document for one user's completed
// digests, sorted by createdAt descending (§6). Digests without a rendered
// audio artifact are omitted.
func buildFeedXML(ctx context.Context, userID, channelLink string, digests []model.Digest, store objectstore.Storage) ([]byte, error) {
	sorted := make([]model.Digest, len(digests))
	copy(sorted, digests)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].CreatedAt.After(sorted[j].CreatedAt) })

	selfLink := fmt.Sprintf("%s/feeds/%s/feed.xml", channelLink, userID)
	feed := rssFeed{
		Version:     "2.0",
		XmlnsItunes: "http://www.itunes.com/dtds/podcast-1.0.dtd",
		XmlnsAtom:   "http://www.w3.org/2005/Atom",
		Channel: rssChannel{
			Title:         "Your PodDigest",
			Description:   "Your personalized weekly podcast digest",
			Link:          channelLink,
			Language:      "en-us",
			SelfLink:      rssAtomLink{Href: selfLink, Rel: "self", Type: "application/rss+xml"},
			ItunesAuthor:  "PodDigest",
			ItunesSummary: "Your personalized weekly podcast digest",
		},
	}

	for _, d := range sorted {
		if d.Status != model.DigestCompleted || d.AudioObjectKey == "" {
			continue
		}
		feed.Channel.Items = append(feed.Channel.Items, rssItem{
			Title:       d.Title,
			Description: fmt.Sprintf("%d clips from the week of %s", d.ClipCount, d.WeekStart.Format("2006-01-02")),
			Enclosure:   rssEnclosure{URL: store.PublicURL(ctx, d.AudioObjectKey), Type: "audio/mpeg", Length: "0"},
			GUID:        rssGUID{IsPermaLink: "false", Value: d.ID},
			PubDate:     d.CreatedAt.UTC().Format(time.RFC1123Z),
			ItunesDuration: formatDuration(d.TotalDurationSec),
		})
	}

	body, err := xml.MarshalIndent(feed, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal rss feed: %w", err)
	}
	return append([]byte(xml.Header), body...), nil
}

// formatDuration renders seconds as H:MM:SS, the form §4.I's operation
// description specifies for the itunes:duration element.
func formatDuration(totalDurationSec *float64) string {
	if totalDurationSec == nil {
		return "0:00:00"
	}
	total := int(*totalDurationSec)
	hours := total / 3600
	minutes := (total % 3600) / 60
	seconds := total % 60
	return fmt.Sprintf("%d:%02d:%02d", hours, minutes, seconds)
}
