// Package discovery finds published police-log PDFs on the city's index page and
// diffs them against the sync-status ledger.
package discovery

import (
	"context"
	"fmt"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"github.com/JakeFAU/revere-police-logs/internal/metrics"
	"github.com/JakeFAU/revere-police-logs/internal/policelog"
)

const cacheKey = "discovered-logs"

// logLinkPattern matches absolute or site-relative links to redacted log PDFs. Token
// groups are loose on purpose so malformed tokens surface as parse warnings.
var logLinkPattern = regexp.MustCompile(
	`(?i)(https?://[^\s()<>"'\[\]]+?)?(/wp-content/uploads/\d{4}/\d{2}/Public-Log-Redacted-([A-Za-z0-9-]+?)-to-([A-Za-z0-9-]+?)\.pdf)`,
)

// Config describes where the index lives.
type Config struct {
	// IndexURL is the page listing published logs.
	IndexURL string
	// BaseURL resolves site-relative links, e.g. "https://www.revere.org".
	BaseURL string
	// CacheTTL keeps discovery results in memory; zero disables caching.
	CacheTTL time.Duration
}

// CatalogEntry is a discovered log annotated with its ledger state.
type CatalogEntry struct {
	policelog.DiscoveredLog
	Synced bool `json:"synced"`
}

// Scraper extracts DiscoveredLog values from the index page.
type Scraper struct {
	cfg     Config
	fetcher policelog.TextFetcher
	ledger  policelog.StatusStore
	cache   *cache.Cache
	logger  *zap.Logger
}

// New builds a Scraper. ledger may be nil when only DiscoverAvailableLogs is used.
func New(cfg Config, fetcher policelog.TextFetcher, ledger policelog.StatusStore, logger *zap.Logger) *Scraper {
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	s := &Scraper{
		cfg:     cfg,
		fetcher: fetcher,
		ledger:  ledger,
		logger:  logger,
	}
	if cfg.CacheTTL > 0 {
		s.cache = cache.New(cfg.CacheTTL, cfg.CacheTTL*2)
	}
	return s
}

// DiscoverAvailableLogs fetches the index page and returns every distinct log it links,
// in page order.
func (s *Scraper) DiscoverAvailableLogs(ctx context.Context) ([]policelog.DiscoveredLog, error) {
	if s.cache != nil {
		if cached, ok := s.cache.Get(cacheKey); ok {
			metrics.ObserveDiscovery("cache_hit")
			return slices.Clone(cached.([]policelog.DiscoveredLog)), nil
		}
	}

	text, err := s.fetcher.FetchText(ctx, s.cfg.IndexURL)
	if err != nil {
		metrics.ObserveDiscovery("error")
		return nil, fmt.Errorf("%w: %s: %w", policelog.ErrDiscoveryFetch, s.cfg.IndexURL, err)
	}
	metrics.ObserveDiscovery("fetched")

	logs := s.ExtractLogs(text)
	s.logger.Info("discovered police logs",
		zap.String("index_url", s.cfg.IndexURL),
		zap.Int("count", len(logs)),
	)
	if s.cache != nil {
		s.cache.Set(cacheKey, slices.Clone(logs), cache.DefaultExpiration)
	}
	return logs, nil
}

// ExtractLogs pulls log links out of index markdown. Links whose date tokens do not
// parse are logged and skipped; repeated PDF URLs keep their first occurrence.
func (s *Scraper) ExtractLogs(text string) []policelog.DiscoveredLog {
	seen := make(map[string]struct{})
	out := make([]policelog.DiscoveredLog, 0)
	for _, m := range logLinkPattern.FindAllStringSubmatch(text, -1) {
		pdfURL := m[1] + m[2]
		if m[1] == "" {
			pdfURL = s.cfg.BaseURL + m[2]
		}
		if _, dup := seen[pdfURL]; dup {
			continue
		}

		start, err := policelog.ParseDateToken(m[3])
		if err != nil {
			s.logger.Warn("skipping log link with bad start token", zap.String("url", pdfURL), zap.Error(err))
			continue
		}
		end, err := policelog.ParseDateToken(m[4])
		if err != nil {
			s.logger.Warn("skipping log link with bad end token", zap.String("url", pdfURL), zap.Error(err))
			continue
		}

		seen[pdfURL] = struct{}{}
		out = append(out, policelog.DiscoveredLog{
			StartDate:    start,
			EndDate:      end,
			PDFURL:       pdfURL,
			PageURL:      s.cfg.IndexURL,
			DateRangeStr: m[3] + " to " + m[4],
		})
	}
	return out
}

// FindUnsyncedLogs returns discovered logs whose start date has no success row. An
// unreachable index degrades to an empty worklist; ledger failures are returned.
func (s *Scraper) FindUnsyncedLogs(ctx context.Context) ([]policelog.DiscoveredLog, error) {
	logs, err := s.DiscoverAvailableLogs(ctx)
	if err != nil {
		s.logger.Warn("discovery failed; treating as no unsynced logs", zap.Error(err))
		return []policelog.DiscoveredLog{}, nil
	}

	synced, err := s.syncedStarts(ctx, logs)
	if err != nil {
		return nil, err
	}

	unsynced := make([]policelog.DiscoveredLog, 0, len(logs))
	for _, log := range logs {
		if !synced[policelog.Day(log.StartDate)] {
			unsynced = append(unsynced, log)
		}
	}
	return unsynced, nil
}

// Catalog returns every discovered log with its synced flag.
func (s *Scraper) Catalog(ctx context.Context) ([]CatalogEntry, error) {
	logs, err := s.DiscoverAvailableLogs(ctx)
	if err != nil {
		return nil, err
	}
	synced, err := s.syncedStarts(ctx, logs)
	if err != nil {
		return nil, err
	}
	out := make([]CatalogEntry, 0, len(logs))
	for _, log := range logs {
		out = append(out, CatalogEntry{DiscoveredLog: log, Synced: synced[policelog.Day(log.StartDate)]})
	}
	return out, nil
}

// Invalidate drops cached discovery results.
func (s *Scraper) Invalidate() {
	if s.cache != nil {
		s.cache.Flush()
	}
}

// syncedStarts queries the ledger once over the span of start dates.
func (s *Scraper) syncedStarts(ctx context.Context, logs []policelog.DiscoveredLog) (map[time.Time]bool, error) {
	synced := make(map[time.Time]bool)
	if len(logs) == 0 || s.ledger == nil {
		return synced, nil
	}
	from, to := policelog.Day(logs[0].StartDate), policelog.Day(logs[0].StartDate)
	for _, log := range logs[1:] {
		d := policelog.Day(log.StartDate)
		if d.Before(from) {
			from = d
		}
		if d.After(to) {
			to = d
		}
	}

	rows, err := s.ledger.ListStatuses(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("list sync statuses: %w", err)
	}
	for _, row := range rows {
		if row.Status == policelog.SyncStatusSuccess {
			synced[policelog.Day(row.SyncDate)] = true
		}
	}
	return synced, nil
}
