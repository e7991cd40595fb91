// Package parser turns extracted police-log text into structured entries.
package parser

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/revere-police-logs/internal/categorize"
	"github.com/JakeFAU/revere-police-logs/internal/policelog"
)

var (
	entryPattern      = regexp.MustCompile(`^(\d{2}-\d{5})\s+(\d{4})\s+(.+)$`)
	dateHeaderPattern = regexp.MustCompile(`(\d{1,2})/(\d{1,2})/(\d{4})`)
	locationPattern   = regexp.MustCompile(`(?i)^Location/Address:\s*(.*)$`)
	referPattern      = regexp.MustCompile(`(?i)^Refer To\b`)
	columnGapPattern  = regexp.MustCompile(`\s{2,}|\t+`)
	trailingToken     = regexp.MustCompile(`^(.+?)\s+(\S+)$`)
)

// dispositionPhrases are multi-word actions recognized when the text has no column gaps.
// Longer phrases come first so "NO ACTION REQUIRED" wins over shorter suffixes.
var dispositionPhrases = []string{
	"REFERRED TO OTHER AGENCY",
	"TRANSPORTED TO HOSPITAL",
	"NO ACTION REQUIRED",
	"PROTECTIVE CUSTODY",
	"SERVICES RENDERED",
	"CHECKED/SECURED",
	"UNABLE TO LOCATE",
	"GONE ON ARRIVAL",
	"WRITTEN WARNING",
	"CITATION ISSUED",
	"VERBAL WARNING",
	"SUMMONS ISSUED",
	"ARREST(S) MADE",
	"REPORT TAKEN",
	"INVESTIGATED",
	"TRANSFERRED",
	"NO ACTION",
	"UNFOUNDED",
	"NOTIFIED",
}

// Parser converts raw log text into entries.
type Parser struct {
	logger *zap.Logger
}

// New builds a Parser.
func New(logger *zap.Logger) *Parser {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Parser{logger: logger}
}

type openEntry struct {
	entry       policelog.LogEntry
	hasLocation bool
}

// Parse walks text line by line. A date header changes the date applied to every entry
// that starts after it; fallbackDate applies until the first header.
func (p *Parser) Parse(text string, fallbackDate time.Time, sourceURL string) []policelog.LogEntry {
	currentDate := policelog.Day(fallbackDate)
	var (
		out     []policelog.LogEntry
		current *openEntry
	)

	flush := func() {
		if current == nil {
			return
		}
		out = append(out, p.finalize(current))
		current = nil
	}

	for _, raw := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n") {
		line := normalizeLine(raw)
		if line == "" {
			continue
		}

		if d, ok := parseDateHeader(line); ok {
			currentDate = d
			continue
		}

		if m := entryPattern.FindStringSubmatch(line); m != nil {
			flush()
			reason, action := splitReasonAction(m[3])
			current = &openEntry{entry: policelog.LogEntry{
				CallNumber: m[1],
				LogDate:    currentDate,
				Time24h:    m[2],
				CallReason: reason,
				Action:     action,
				RawEntry:   []string{strings.TrimSpace(raw)},
				SourceURL:  sourceURL,
			}}
			continue
		}

		if m := locationPattern.FindStringSubmatch(line); m != nil {
			if current == nil {
				p.logger.Warn("location line without an open entry; dropping",
					zap.String("line", line),
					zap.String("source_url", sourceURL),
				)
				continue
			}
			if current.hasLocation {
				continue
			}
			current.hasLocation = true
			current.entry.RawEntry = append(current.entry.RawEntry, strings.TrimSpace(raw))
			location := strings.TrimSpace(m[1])
			if location != "" {
				current.entry.LocationAddress = &location
			}
			continue
		}

		if current != nil && referPattern.MatchString(line) {
			current.entry.RawEntry = append(current.entry.RawEntry, strings.TrimSpace(raw))
		}
	}
	flush()

	return out
}

func (p *Parser) finalize(o *openEntry) policelog.LogEntry {
	e := o.entry
	hours, _ := strconv.Atoi(e.Time24h[:2])
	minutes, _ := strconv.Atoi(e.Time24h[2:])
	if hours > 23 || minutes > 59 {
		p.logger.Warn("entry time out of range",
			zap.String("call_number", e.CallNumber),
			zap.String("time", e.Time24h),
		)
	}
	e.Timestamp = time.Date(e.LogDate.Year(), e.LogDate.Month(), e.LogDate.Day(), hours, minutes, 0, 0, time.UTC)
	e.CallTypeCategory = categorize.CallType(e.CallReason)
	e.ActionCategory = categorize.Action(e.Action)
	if e.LocationAddress != nil {
		e.LocationCode = categorize.LocationCode(*e.LocationAddress)
		e.LocationStreet = categorize.StreetName(*e.LocationAddress)
	}
	return e
}

// normalizeLine trims whitespace and emphasis markers and flattens markdown table rows
// into column-gapped text.
func normalizeLine(raw string) string {
	line := strings.TrimSpace(raw)
	line = strings.TrimSpace(strings.Trim(line, "*"))
	if strings.HasPrefix(line, "|") {
		var cells []string
		for _, cell := range strings.Split(line, "|") {
			cell = strings.TrimSpace(cell)
			if cell == "" || strings.Trim(cell, "-: ") == "" {
				continue
			}
			cells = append(cells, cell)
		}
		line = strings.Join(cells, "  ")
	}
	return line
}

func parseDateHeader(line string) (time.Time, bool) {
	if !strings.HasPrefix(line, "#") && !strings.Contains(strings.ToUpper(line), "FOR DATE") {
		return time.Time{}, false
	}
	m := dateHeaderPattern.FindStringSubmatch(line)
	if m == nil {
		return time.Time{}, false
	}
	month, _ := strconv.Atoi(m[1])
	day, _ := strconv.Atoi(m[2])
	year, _ := strconv.Atoi(m[3])
	d := policelog.NewDay(year, time.Month(month), day)
	if int(d.Month()) != month || d.Day() != day {
		return time.Time{}, false
	}
	return d, true
}

// splitReasonAction separates the free-text reason from the trailing disposition.
// Column gaps win; then a known disposition phrase; then the last all-caps token.
func splitReasonAction(rest string) (string, string) {
	rest = strings.TrimSpace(rest)

	var cols []string
	for _, c := range columnGapPattern.Split(rest, -1) {
		if c = strings.TrimSpace(c); c != "" {
			cols = append(cols, c)
		}
	}
	if len(cols) >= 2 {
		return strings.Join(cols[:len(cols)-1], " "), cols[len(cols)-1]
	}

	upper := strings.ToUpper(rest)
	for _, phrase := range dispositionPhrases {
		if strings.HasSuffix(upper, " "+phrase) {
			cut := len(rest) - len(phrase)
			return strings.TrimSpace(rest[:cut]), rest[cut:]
		}
	}

	if m := trailingToken.FindStringSubmatch(rest); m != nil {
		if isAllCaps(m[2]) {
			return strings.TrimSpace(m[1]), m[2]
		}
	}
	return rest, ""
}

func isAllCaps(s string) bool {
	hasLetter := false
	for _, r := range s {
		if r >= 'a' && r <= 'z' {
			return false
		}
		if r >= 'A' && r <= 'Z' {
			hasLetter = true
		}
	}
	return hasLetter
}
