package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/revere-police-logs/internal/categorize"
	"github.com/JakeFAU/revere-police-logs/internal/policelog"
)

const (
	defaultEntryLimit = 100
	maxEntryLimit     = 1000
	defaultStatusDays = 30
	readTimeout       = 5 * time.Second
)

// startSync handles POST /v1/sync. It returns 202 once a background run is started
// and 409 when one is already in flight.
func (s *Server) startSync(w http.ResponseWriter, r *http.Request) {
	if s.syncer == nil {
		writeError(w, http.StatusServiceUnavailable, "sync unavailable")
		return
	}
	if s.syncer.Running() {
		writeError(w, http.StatusConflict, policelog.ErrSyncInProgress.Error())
		return
	}
	reqID := RequestID(r.Context())
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		summary := s.syncer.SyncFromDiscoveredLogs(s.baseCtx)
		log := s.logger.With(zap.String("request_id", reqID), zap.String("run_id", summary.RunID))
		switch {
		case errors.Is(summary.Err, policelog.ErrSyncInProgress):
			log.Info("background sync skipped; another run started first")
		case summary.Err != nil:
			log.Error("background sync failed", zap.Error(summary.Err))
		default:
			log.Info("background sync finished",
				zap.Int("succeeded", summary.Succeeded()),
				zap.Int("failed", summary.Failed()),
			)
		}
	}()
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "started"})
}

// Wait blocks until background syncs started over HTTP have returned.
func (s *Server) Wait() {
	s.wg.Wait()
}

// listStatus handles GET /v1/status?from=&to=. Without bounds it covers the last 30 days.
func (s *Server) listStatus(w http.ResponseWriter, r *http.Request) {
	from, to, err := s.parseRange(r, true)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
	defer cancel()

	rows, err := s.store.ListStatuses(ctx, from, to)
	if err != nil {
		s.logger.Error("list statuses failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list sync status")
		return
	}
	out := make([]statusDTO, 0, len(rows))
	for _, row := range rows {
		out = append(out, toStatusDTO(row))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"from":   from.Format(policelog.DayLayout),
		"to":     to.Format(policelog.DayLayout),
		"status": out,
	})
}

// listEntries handles GET /v1/entries?from=&to=&category=&limit=&offset=.
func (s *Server) listEntries(w http.ResponseWriter, r *http.Request) {
	from, to, err := s.parseRange(r, false)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	limit, offset, err := parseLimitOffset(r, defaultEntryLimit, maxEntryLimit)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	category, err := parseCategory(r.URL.Query().Get("category"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
	defer cancel()

	entries, err := s.store.ListEntries(ctx, policelog.EntryQuery{
		From:     from,
		To:       to,
		Category: category,
		Limit:    limit,
		Offset:   offset,
	})
	if err != nil {
		s.logger.Error("list entries failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list entries")
		return
	}
	if entries == nil {
		entries = []policelog.LogEntry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

// listDiscovered handles GET /v1/logs/discovered.
func (s *Server) listDiscovered(w http.ResponseWriter, r *http.Request) {
	if s.catalog == nil {
		writeError(w, http.StatusServiceUnavailable, "discovery unavailable")
		return
	}
	logs, err := s.catalog.Catalog(r.Context())
	if err != nil {
		s.logger.Warn("discovery failed", zap.Error(err))
		if errors.Is(err, policelog.ErrDiscoveryFetch) {
			writeError(w, http.StatusBadGateway, "index page unavailable")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to list discovered logs")
		return
	}
	out := make([]discoveredDTO, 0, len(logs))
	for _, l := range logs {
		out = append(out, discoveredDTO{
			StartDate: l.StartDate.Format(policelog.DayLayout),
			EndDate:   l.EndDate.Format(policelog.DayLayout),
			DateRange: l.DateRangeStr,
			PDFURL:    l.PDFURL,
			Synced:    l.Synced,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"logs": out})
}

// parseRange reads from/to as YYYY-MM-DD. When defaulted is set, missing bounds fall
// back to the last 30 days ending today.
func (s *Server) parseRange(r *http.Request, defaulted bool) (time.Time, time.Time, error) {
	q := r.URL.Query()
	var from, to time.Time
	var err error
	if v := strings.TrimSpace(q.Get("from")); v != "" {
		if from, err = policelog.ParseDay(v); err != nil {
			return time.Time{}, time.Time{}, errors.New("invalid from date")
		}
	}
	if v := strings.TrimSpace(q.Get("to")); v != "" {
		if to, err = policelog.ParseDay(v); err != nil {
			return time.Time{}, time.Time{}, errors.New("invalid to date")
		}
	}
	if defaulted {
		if to.IsZero() {
			to = policelog.Day(s.now())
		}
		if from.IsZero() {
			from = to.AddDate(0, 0, -defaultStatusDays)
		}
	}
	if !from.IsZero() && !to.IsZero() && to.Before(from) {
		return time.Time{}, time.Time{}, errors.New("to must not be before from")
	}
	return from, to, nil
}

func (s *Server) now() time.Time {
	if s.clock == nil {
		return time.Now().UTC()
	}
	return s.clock.Now()
}

func parseLimitOffset(r *http.Request, def, maxLimit int) (int, int, error) {
	q := r.URL.Query()
	limit := def
	if limStr := q.Get("limit"); limStr != "" {
		val, err := strconv.Atoi(limStr)
		if err != nil || val <= 0 {
			return 0, 0, errors.New("invalid limit")
		}
		if val > maxLimit {
			val = maxLimit
		}
		limit = val
	}
	offset := 0
	if offStr := q.Get("offset"); offStr != "" {
		val, err := strconv.Atoi(offStr)
		if err != nil || val < 0 {
			return 0, 0, errors.New("invalid offset")
		}
		offset = val
	}
	return limit, offset, nil
}

func parseCategory(input string) (policelog.CallTypeCategory, error) {
	input = strings.ToUpper(strings.TrimSpace(input))
	if input == "" {
		return "", nil
	}
	if input == string(policelog.CallTypeOther) {
		return policelog.CallTypeOther, nil
	}
	for _, rule := range categorize.CallTypeRules {
		if string(rule.Category) == input {
			return rule.Category, nil
		}
	}
	return "", errors.New("invalid category")
}

func toStatusDTO(rec policelog.SyncStatusRecord) statusDTO {
	return statusDTO{
		SyncDate:     rec.SyncDate.Format(policelog.DayLayout),
		Status:       string(rec.Status),
		RecordsAdded: rec.RecordsAdded,
		SourceURL:    rec.SourceURL,
		Error:        rec.ErrorMessage,
		SyncedAt:     rec.SyncedAt,
	}
}

type statusDTO struct {
	SyncDate     string    `json:"sync_date"`
	Status       string    `json:"status"`
	RecordsAdded int       `json:"records_added"`
	SourceURL    *string   `json:"source_url,omitempty"`
	Error        *string   `json:"error,omitempty"`
	SyncedAt     time.Time `json:"synced_at"`
}

type discoveredDTO struct {
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
	DateRange string `json:"date_range"`
	PDFURL    string `json:"pdf_url"`
	Synced    bool   `json:"synced"`
}
