package feed

import "testing"

func TestParseDuration(t *testing.T) {
	cases := []struct {
		in      string
		want    int
		wantOK  bool
	}{
		{"3661", 3661, true},
		{"1:01:01", 3661, true},
		{"61:01", 3661, true},
		{"", 0, false},
		{"not-a-duration", 0, false},
		{"1:2:3:4", 0, false},
	}
	for _, c := range cases {
		got, ok := ParseDuration(c.in)
		if ok != c.wantOK || (ok && got != c.want) {
			t.Errorf("ParseDuration(%q) = (%d, %v), want (%d, %v)", c.in, got, ok, c.want, c.wantOK)
		}
	}
}

func TestParseFeedSkipsItemsWithoutEnclosureOrGUID(t *testing.T) {
	xmlDoc := []byte(`<?xml version="1.0"?>
<rss version="2.0">
  <channel>
    <title>Test Show</title>
    <description>A test feed</description>
    <item>
      <title>Episode 1</title>
      <guid>guid-1</guid>
      <pubDate>Mon, 02 Jan 2026 15:04:05 +0000</pubDate>
      <duration>30:00</duration>
      <enclosure url="https://example.com/ep1.mp3" type="audio/mpeg"/>
    </item>
    <item>
      <title>No enclosure</title>
      <guid>guid-2</guid>
    </item>
    <item>
      <title>No guid</title>
      <enclosure url="https://example.com/ep3.mp3" type="audio/mpeg"/>
    </item>
  </channel>
</rss>`)

	title, description, items, err := parseFeed(xmlDoc)
	if err != nil {
		t.Fatalf("parseFeed: %v", err)
	}
	if title != "Test Show" || description != "A test feed" {
		t.Errorf("got title=%q description=%q", title, description)
	}
	if len(items) != 1 {
		t.Fatalf("got %d items, want 1 (items without enclosure/guid must be skipped)", len(items))
	}
	if items[0].GUID != "guid-1" || items[0].DurationSec != 1800 {
		t.Errorf("got %+v", items[0])
	}
}
