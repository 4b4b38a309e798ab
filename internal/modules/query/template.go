package query

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/ga-insights/core/internal/modules/analytics/daterange"
	"github.com/ga-insights/core/internal/modules/analytics/report"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

const (
	templatePages     = 5
	templateSources   = 8
	templateLocations = 5
)

var printer = message.NewPrinter(language.English)

// Template renders data as plain markdown without a model call. The result is never empty.
func Template(data report.Result, now time.Time) string {
	switch d := data.(type) {
	case *report.SummaryResult:
		if d != nil {
			return templateSummary(d, now)
		}
	case *report.PagesResult:
		if d != nil {
			return templatePagesList(d, now)
		}
	case *report.TrafficResult:
		if d != nil {
			return templateTraffic(d, now)
		}
	case *report.DevicesResult:
		if d != nil {
			return templateDevices(d, now)
		}
	case *report.RealtimeResult:
		if d != nil {
			return templateRealtime(d)
		}
	}
	return "No analytics data is available for this question."
}

func templateSummary(d *report.SummaryResult, now time.Time) string {
	m := d.Metrics
	var b strings.Builder
	fmt.Fprintf(&b, "**Analytics Summary** %s\n\n", rangeLabel(d.DateRange, now))
	b.WriteString("**Key Metrics:**\n")
	fmt.Fprintf(&b, "- Total Users: %s\n", count(m.ActiveUsers))
	if m.ActiveUsers > 0 {
		fmt.Fprintf(&b, "- New Users: %s (%s of total)\n", count(m.NewUsers), percent(float64(m.NewUsers)/float64(m.ActiveUsers)))
	} else {
		fmt.Fprintf(&b, "- New Users: %s\n", count(m.NewUsers))
	}
	fmt.Fprintf(&b, "- Sessions: %s\n", count(m.Sessions))
	fmt.Fprintf(&b, "- Page Views: %s\n\n", count(m.PageViews))
	b.WriteString("**Engagement:**\n")
	fmt.Fprintf(&b, "- Avg Session Duration: %s minutes\n", minutes(m.AvgSessionDuration))
	fmt.Fprintf(&b, "- Bounce Rate: %s\n", percent(m.BounceRate))
	fmt.Fprintf(&b, "- Engagement Rate: %s", percent(m.EngagementRate))
	return b.String()
}

func templatePagesList(d *report.PagesResult, now time.Time) string {
	label := rangeLabel(d.DateRange, now)
	if len(d.Pages) == 0 {
		return fmt.Sprintf("No page data was found for %s. This may be due to low traffic or data processing delays.", label)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "**Top Performing Pages** %s\n\n", label)
	for i, p := range d.Pages {
		if i == templatePages {
			break
		}
		title := p.Title
		if strings.TrimSpace(title) == "" {
			title = "Untitled Page"
		}
		fmt.Fprintf(&b, "**%d. %s**\n", i+1, title)
		fmt.Fprintf(&b, "- Path: `%s`\n", p.Path)
		fmt.Fprintf(&b, "- Views: %s | Users: %s\n", count(p.Views), count(p.Users))
		fmt.Fprintf(&b, "- Avg Time: %smin | Bounce Rate: %s\n\n", minutes(p.AvgDuration), percent(p.BounceRate))
	}
	if extra := len(d.Pages) - templatePages; extra > 0 {
		fmt.Fprintf(&b, "... and %d more pages in the data.", extra)
	}
	return strings.TrimSpace(b.String())
}

func templateTraffic(d *report.TrafficResult, now time.Time) string {
	label := rangeLabel(d.DateRange, now)
	if len(d.Sources) == 0 {
		return fmt.Sprintf("No traffic source data was found for %s.", label)
	}

	var total int64
	for _, s := range d.Sources {
		total += s.Sessions
	}

	var b strings.Builder
	fmt.Fprintf(&b, "**Traffic Sources** %s\n\n", label)
	for i, s := range d.Sources {
		if i == templateSources {
			break
		}
		share := 0.0
		if total > 0 {
			share = float64(s.Sessions) / float64(total)
		}
		fmt.Fprintf(&b, "**%d. %s / %s** (%s)\n", i+1, s.Source, s.Medium, percent(share))
		fmt.Fprintf(&b, "- Sessions: %s | Users: %s\n", count(s.Sessions), count(s.Users))
		fmt.Fprintf(&b, "- New Users: %s | Bounce Rate: %s\n\n", count(s.NewUsers), percent(s.BounceRate))
	}
	return strings.TrimSpace(b.String())
}

type deviceGroup struct {
	category   string
	sessions   int64
	users      int64
	bounceSum  float64
	rows       int
	osSessions tally
	brSessions tally
}

func templateDevices(d *report.DevicesResult, now time.Time) string {
	label := rangeLabel(d.DateRange, now)
	if len(d.Devices) == 0 {
		return fmt.Sprintf("No device data was found for %s.", label)
	}

	var groups []*deviceGroup
	byCategory := make(map[string]*deviceGroup)
	for _, row := range d.Devices {
		g, ok := byCategory[row.DeviceCategory]
		if !ok {
			g = &deviceGroup{category: row.DeviceCategory}
			byCategory[row.DeviceCategory] = g
			groups = append(groups, g)
		}
		g.sessions += row.Sessions
		g.users += row.Users
		g.bounceSum += row.BounceRate
		g.rows++
		g.osSessions.add(row.OperatingSystem, row.Sessions)
		g.brSessions.add(row.Browser, row.Sessions)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "**Device & Browser Breakdown** %s\n\n", label)
	for _, g := range groups {
		fmt.Fprintf(&b, "**%s**\n", strings.ToUpper(g.category))
		fmt.Fprintf(&b, "- Users: %s\n", count(g.users))
		fmt.Fprintf(&b, "- Sessions: %s\n", count(g.sessions))
		fmt.Fprintf(&b, "- Avg Bounce Rate: %s\n", percent(g.bounceSum/float64(g.rows)))
		fmt.Fprintf(&b, "- Top OS: %s\n", g.osSessions.top())
		fmt.Fprintf(&b, "- Top Browser: %s\n\n", g.brSessions.top())
	}
	return strings.TrimSpace(b.String())
}

func templateRealtime(d *report.RealtimeResult) string {
	if d.TotalActiveUsers == 0 {
		return "**Real-time Users**\n\nNo active users on the site right now."
	}

	var b strings.Builder
	fmt.Fprintf(&b, "**Real-time Active Users**\n\n**Total Active Users: %s**", count(d.TotalActiveUsers))
	if len(d.ByLocation) == 0 {
		return b.String()
	}

	var locations, devices tally
	for _, row := range d.ByLocation {
		place := row.Country
		if row.City != "" && row.City != "Unknown" && row.City != "(not set)" {
			place = row.City + ", " + row.Country
		}
		locations.add(place, row.Users)
		devices.add(row.Device, row.Users)
	}

	b.WriteString("\n\n**Top Locations:**\n")
	for i, e := range locations.sorted() {
		if i == templateLocations {
			break
		}
		fmt.Fprintf(&b, "- %s: %s users\n", e.name, count(e.value))
	}
	b.WriteString("\n**By Device:**\n")
	for _, e := range devices.sorted() {
		fmt.Fprintf(&b, "- %s: %s users\n", e.name, count(e.value))
	}
	return strings.TrimSpace(b.String())
}

type tallyEntry struct {
	name  string
	value int64
}

// tally sums values per name and remembers first-seen order for ties.
type tally struct {
	entries []tallyEntry
	index   map[string]int
}

func (t *tally) add(name string, v int64) {
	if t.index == nil {
		t.index = make(map[string]int)
	}
	if i, ok := t.index[name]; ok {
		t.entries[i].value += v
		return
	}
	t.index[name] = len(t.entries)
	t.entries = append(t.entries, tallyEntry{name: name, value: v})
}

func (t *tally) sorted() []tallyEntry {
	out := make([]tallyEntry, len(t.entries))
	copy(out, t.entries)
	sort.SliceStable(out, func(i, j int) bool { return out[i].value > out[j].value })
	return out
}

func (t *tally) top() string {
	if s := t.sorted(); len(s) > 0 && s[0].name != "" {
		return s[0].name
	}
	return "Unknown"
}

func rangeLabel(spec daterange.Spec, now time.Time) string {
	start, errStart := time.Parse(daterange.Layout, spec.StartDate)
	end, errEnd := time.Parse(daterange.Layout, spec.EndDate)
	if errStart != nil || errEnd != nil {
		return fmt.Sprintf("(%s - %s)", spec.StartDate, spec.EndDate)
	}

	layout := "Jan 2"
	if start.Year() != now.Year() {
		layout = "Jan 2, 2006"
	}
	from, to := start.Format(layout), end.Format(layout)

	switch spec.Keyword {
	case daterange.Today:
		return fmt.Sprintf("(Today - %s)", to)
	case daterange.Yesterday:
		return fmt.Sprintf("(Yesterday - %s)", to)
	case daterange.Last7Days:
		return fmt.Sprintf("(Last 7 days: %s - %s)", from, to)
	case daterange.Last30Days:
		return fmt.Sprintf("(Last 30 days: %s - %s)", from, to)
	case daterange.Last90Days:
		return fmt.Sprintf("(Last 90 days: %s - %s)", from, to)
	case daterange.Last12Months:
		return fmt.Sprintf("(Last 12 months: %s - %s)", from, to)
	}
	return fmt.Sprintf("(%s - %s)", from, to)
}

func count(n int64) string { return printer.Sprintf("%d", n) }

func percent(rate float64) string { return fmt.Sprintf("%.1f%%", rate*100) }

func minutes(seconds float64) string { return fmt.Sprintf("%.1f", seconds/60) }
