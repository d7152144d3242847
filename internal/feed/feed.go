// Package feed keeps the podcast RSS document of published weekly briefs.
//
// The document is the only state: Load parses the previous feed.xml back
// into episodes, Upsert adds one, Render writes the whole document again.
package feed

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	appLog "weeklybrief/internal/log"
	"weeklybrief/internal/model"
)

const (
	itunesNS = "http://www.itunes.com/dtds/podcast-1.0.dtd"
	atomNS   = "http://www.w3.org/2005/Atom"

	// AudioType is the enclosure MIME type of every episode.
	AudioType = "audio/mpeg"

	generatorName = "Weekly Brief"

	pubDateLayout   = "Mon, 02 Jan 2006"
	buildDateLayout = "Mon, 02 Jan 2006 15:04:05 GMT"
)

// Show is the channel-level metadata.
type Show struct {
	Title       string
	Description string
	// BaseURL is where feed.xml and the MP3s are served from, without a
	// trailing slash.
	BaseURL string
	// ImageURL is optional.
	ImageURL string
	// Language is an RSS language tag such as "en-us".
	Language string
}

type rssDoc struct {
	XMLName     xml.Name   `xml:"rss"`
	Version     string     `xml:"version,attr"`
	XMLNSItunes string     `xml:"xmlns:itunes,attr"`
	XMLNSAtom   string     `xml:"xmlns:atom,attr"`
	Channel     rssChannel `xml:"channel"`
}

type rssChannel struct {
	Title         string       `xml:"title"`
	Description   string       `xml:"description"`
	Link          string       `xml:"link"`
	ItunesImage   *itunesImage `xml:"itunes:image"`
	Image         *rssImage    `xml:"image"`
	Explicit      string       `xml:"itunes:explicit"`
	Language      string       `xml:"language"`
	LastBuildDate string       `xml:"lastBuildDate"`
	Generator     string       `xml:"generator"`
	Items         []rssItem    `xml:"item"`
}

type itunesImage struct {
	Href string `xml:"href,attr"`
}

type rssImage struct {
	URL   string `xml:"url"`
	Title string `xml:"title"`
	Link  string `xml:"link,omitempty"`
}

type rssItem struct {
	Title       string       `xml:"title"`
	Description string       `xml:"description"`
	PubDate     string       `xml:"pubDate"`
	GUID        rssGUID      `xml:"guid"`
	Enclosure   rssEnclosure `xml:"enclosure"`
}

type rssGUID struct {
	IsPermaLink string `xml:"isPermaLink,attr"`
	Value       string `xml:",chardata"`
}

type rssEnclosure struct {
	URL    string `xml:"url,attr"`
	Type   string `xml:"type,attr"`
	Length string `xml:"length,attr"`
}

// Parsing only needs the item identity and the enclosure size; namespaced
// channel elements are ignored.
type parsedDoc struct {
	Channel struct {
		Items []struct {
			GUID      string `xml:"guid"`
			Enclosure *struct {
				Length string `xml:"length,attr"`
			} `xml:"enclosure"`
		} `xml:"item"`
	} `xml:"channel"`
}

// Load reads the episodes of an existing feed document. A missing file is
// an empty feed. Items whose identifier or size cannot be understood are
// skipped; a document that is not XML is an error.
func Load(path string) ([]model.Episode, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	eps, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("parse feed %s: %w", path, err)
	}
	return eps, nil
}

// Parse decodes episodes from a feed document.
func Parse(r io.Reader) ([]model.Episode, error) {
	var doc parsedDoc
	if err := xml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, err
	}

	out := make([]model.Episode, 0, len(doc.Channel.Items))
	seen := make(map[time.Time]bool, len(doc.Channel.Items))
	for i, it := range doc.Channel.Items {
		date, ok := dateFromGUID(it.GUID)
		if !ok {
			appLog.Warn("feed item skipped: unrecognized guid", "index", i, "guid", it.GUID)
			continue
		}

		var size int64
		if it.Enclosure != nil && strings.TrimSpace(it.Enclosure.Length) != "" {
			n, err := strconv.ParseInt(strings.TrimSpace(it.Enclosure.Length), 10, 64)
			if err != nil || n < 0 {
				appLog.Warn("feed item skipped: bad enclosure length", "index", i, "guid", it.GUID, "length", it.Enclosure.Length)
				continue
			}
			size = n
		}

		if seen[date] {
			appLog.Warn("feed item skipped: duplicate date", "index", i, "guid", it.GUID)
			continue
		}
		seen[date] = true
		out = append(out, model.NewEpisode(date, size))
	}
	return out, nil
}

// dateFromGUID accepts "weekly-brief-YYYY-MM-DD" or any identifier ending
// in "-YYYY-MM-DD".
func dateFromGUID(guid string) (time.Time, bool) {
	guid = strings.TrimSpace(guid)
	n := len(model.DateLayout)
	if len(guid) < n {
		return time.Time{}, false
	}
	if len(guid) > n && guid[len(guid)-n-1] != '-' {
		return time.Time{}, false
	}
	d, err := time.Parse(model.DateLayout, guid[len(guid)-n:])
	if err != nil {
		return time.Time{}, false
	}
	return d, true
}

// Upsert adds ep unless an episode with the same date exists. An existing
// entry wins; its recorded size is kept. The returned bool reports whether
// ep was inserted.
func Upsert(episodes []model.Episode, ep model.Episode) ([]model.Episode, bool) {
	for _, e := range episodes {
		if e.Date.Equal(ep.Date) {
			return episodes, false
		}
	}
	return append(episodes, ep), true
}

// SortNewestFirst orders episodes by date descending, in place.
func SortNewestFirst(episodes []model.Episode) {
	sort.SliceStable(episodes, func(i, j int) bool {
		return episodes[i].Date.After(episodes[j].Date)
	})
}

// Render writes the complete RSS document for show and episodes. now is
// the build timestamp.
func Render(w io.Writer, show Show, episodes []model.Episode, now time.Time) error {
	eps := append([]model.Episode(nil), episodes...)
	SortNewestFirst(eps)

	base := strings.TrimRight(show.BaseURL, "/")
	lang := show.Language
	if lang == "" {
		lang = "en-us"
	}

	doc := rssDoc{
		Version:     "2.0",
		XMLNSItunes: itunesNS,
		XMLNSAtom:   atomNS,
		Channel: rssChannel{
			Title:         show.Title,
			Description:   show.Description,
			Link:          base,
			Explicit:      "no",
			Language:      lang,
			LastBuildDate: now.UTC().Format(buildDateLayout),
			Generator:     generatorName,
		},
	}
	if show.ImageURL != "" {
		doc.Channel.ItunesImage = &itunesImage{Href: show.ImageURL}
		doc.Channel.Image = &rssImage{URL: show.ImageURL, Title: show.Title, Link: base}
	}

	for _, ep := range eps {
		date := ep.Date.Format(model.DateLayout)
		doc.Channel.Items = append(doc.Channel.Items, rssItem{
			Title:       "Weekly Brief " + date,
			Description: "Weekly brief for the week of " + date + ".",
			PubDate:     ep.Date.Format(pubDateLayout) + " 00:00:00 GMT",
			GUID:        rssGUID{IsPermaLink: "false", Value: model.ArtifactStem(ep.Date)},
			Enclosure: rssEnclosure{
				URL:    base + "/" + ep.AudioFilename,
				Type:   AudioType,
				Length: strconv.FormatInt(ep.SizeBytes, 10),
			},
		})
	}

	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return err
	}
	if err := enc.Close(); err != nil {
		return err
	}
	_, err := io.WriteString(w, "\n")
	return err
}
