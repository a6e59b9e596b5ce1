package feed

import (
	"encoding/xml"
	"strings"
	"time"

	"github.com/skylark-dev/weather-alerts/internal/alerts"
)

// Kind is the classified shape of a fetched XML document.
type Kind int

const (
	KindUnknown Kind = iota
	KindAtom
	KindRSS
	KindCAP
)

func (k Kind) String() string {
	switch k {
	case KindAtom:
		return "atom"
	case KindRSS:
		return "rss"
	case KindCAP:
		return "cap"
	default:
		return "unknown"
	}
}

// Entry is the raw alert info extracted from one Atom entry, RSS item, or CAP
// info block, before vocabulary mapping.
type Entry struct {
	Event       string
	Severity    string
	Urgency     string
	Certainty   string
	AreaDesc    string
	Onset       string
	Expires     string
	Title       string
	Summary     string
	Instruction string
	CapLink     string
}

// node is a generic element tree with namespace prefixes stripped; feeds are
// parsed without schema validation, by local tag name only.
type node struct {
	XMLName xml.Name
	Attrs   []xml.Attr `xml:",any,attr"`
	Text    string     `xml:",chardata"`
	Nodes   []node     `xml:",any"`
}

func (n *node) child(name string) *node {
	for i := range n.Nodes {
		if n.Nodes[i].XMLName.Local == name {
			return &n.Nodes[i]
		}
	}
	return nil
}

func (n *node) children(name string) []*node {
	var out []*node
	for i := range n.Nodes {
		if n.Nodes[i].XMLName.Local == name {
			out = append(out, &n.Nodes[i])
		}
	}
	return out
}

func (n *node) childText(name string) string {
	if c := n.child(name); c != nil {
		return strings.TrimSpace(c.Text)
	}
	return ""
}

func (n *node) attr(name string) string {
	for _, a := range n.Attrs {
		if a.Name.Local == name {
			return a.Value
		}
	}
	return ""
}

// Parse decodes an XML document into a generic tree, classifies it as Atom,
// RSS, or a single CAP alert document, and extracts the raw entries. An
// unrecognized root yields KindUnknown with no entries and no error.
func Parse(data []byte, lang string) ([]Entry, Kind, error) {
	var root node
	if err := xml.Unmarshal(data, &root); err != nil {
		return nil, KindUnknown, err
	}

	switch kind := classify(&root); kind {
	case KindAtom:
		return parseAtom(&root), kind, nil
	case KindRSS:
		return parseRSS(&root), kind, nil
	case KindCAP:
		return []Entry{parseCAPAlert(&root, lang)}, kind, nil
	default:
		return nil, KindUnknown, nil
	}
}

func classify(root *node) Kind {
	switch strings.ToLower(root.XMLName.Local) {
	case "feed":
		return KindAtom
	case "rss":
		return KindRSS
	case "alert":
		return KindCAP
	default:
		return KindUnknown
	}
}

func parseAtom(feed *node) []Entry {
	entries := feed.children("entry")
	out := make([]Entry, 0, len(entries))
	for _, e := range entries {
		out = append(out, Entry{
			Event:     e.childText("event"),
			Severity:  e.childText("severity"),
			Urgency:   e.childText("urgency"),
			Certainty: e.childText("certainty"),
			AreaDesc:  e.childText("areaDesc"),
			Onset: firstNonEmpty(
				e.childText("onset"),
				e.childText("effective"),
				e.childText("sent"),
				e.childText("published"),
			),
			Expires: e.childText("expires"),
			Title:   e.childText("title"),
			Summary: e.childText("summary"),
			CapLink: atomCapLink(e),
		})
	}
	return out
}

func atomCapLink(entry *node) string {
	for _, l := range entry.children("link") {
		if l.attr("type") == "application/cap+xml" && l.attr("href") != "" {
			return l.attr("href")
		}
	}
	return ""
}

func parseRSS(root *node) []Entry {
	channel := root.child("channel")
	if channel == nil {
		return nil
	}
	items := channel.children("item")
	out := make([]Entry, 0, len(items))
	for _, it := range items {
		link := it.childText("link")
		if !strings.Contains(link, ".xml") {
			link = ""
		}
		out = append(out, Entry{
			Event:     it.childText("event"),
			Severity:  it.childText("severity"),
			Urgency:   it.childText("urgency"),
			Certainty: it.childText("certainty"),
			AreaDesc:  it.childText("areaDesc"),
			Onset: firstNonEmpty(
				it.childText("onset"),
				it.childText("effective"),
				it.childText("sent"),
				it.childText("pubDate"),
			),
			Expires: it.childText("expires"),
			Title:   it.childText("title"),
			Summary: it.childText("description"),
			CapLink: link,
		})
	}
	return out
}

// parseCAPAlert reads a single CAP alert document, which may carry several
// localized info blocks; the block whose language matches the requested
// prefix wins, else the first one.
func parseCAPAlert(alert *node, lang string) Entry {
	infos := alert.children("info")
	var info *node
	for _, i := range infos {
		if langMatches(i.childText("language"), lang) {
			info = i
			break
		}
	}
	if info == nil && len(infos) > 0 {
		info = infos[0]
	}
	if info == nil {
		info = &node{}
	}

	var areaDesc string
	if area := info.child("area"); area != nil {
		areaDesc = area.childText("areaDesc")
	}

	return Entry{
		Event:     info.childText("event"),
		Severity:  info.childText("severity"),
		Urgency:   info.childText("urgency"),
		Certainty: info.childText("certainty"),
		AreaDesc:  areaDesc,
		Onset: firstNonEmpty(
			info.childText("onset"),
			info.childText("effective"),
			alert.childText("sent"),
		),
		Expires:     info.childText("expires"),
		Title:       firstNonEmpty(info.childText("headline"), alert.childText("identifier")),
		Summary:     info.childText("description"),
		Instruction: info.childText("instruction"),
	}
}

func langMatches(blockLang, want string) bool {
	if blockLang == "" || want == "" {
		return false
	}
	return strings.HasPrefix(strings.ToLower(blockLang), strings.ToLower(want))
}

// ToAlert converts a raw entry into the canonical alert, stamping the given
// source and applying defaults: onset falls back to now, expiry to now+1h.
func (e Entry) ToAlert(source alerts.Source, now time.Time) alerts.Alert {
	event := strings.TrimSpace(firstNonEmpty(e.Event, e.Title, "Weather Alert"))

	startsAt, ok := parseTime(e.Onset)
	if !ok {
		startsAt = now
	}
	endsAt, ok := parseTime(e.Expires)
	if !ok {
		endsAt = now.Add(time.Hour)
	}
	startsAt = startsAt.UTC()
	endsAt = endsAt.UTC()

	areas := make([]string, 0, 1)
	if e.AreaDesc != "" {
		areas = append(areas, e.AreaDesc)
	}

	return alerts.Alert{
		ID:          alerts.MakeID(source, event, startsAt, endsAt),
		Source:      source,
		Event:       event,
		Severity:    alerts.MapSeverityCAP(firstNonEmpty(e.Severity, event)),
		Urgency:     alerts.MapUrgency(e.Urgency),
		Certainty:   alerts.MapCertainty(e.Certainty),
		Areas:       areas,
		StartsAt:    startsAt,
		EndsAt:      endsAt,
		Headline:    firstNonEmpty(strings.TrimSpace(e.Title), event),
		Description: alerts.StripHTML(e.Summary),
		Instruction: alerts.StripHTML(e.Instruction),
	}
}

var timeLayouts = []string{
	time.RFC3339,
	time.RFC1123Z,
	time.RFC1123,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

func parseTime(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
