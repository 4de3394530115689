package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"nse-newsfeatures/internal/config"
	apperrors "nse-newsfeatures/internal/errors"
	"nse-newsfeatures/internal/logging"
	"nse-newsfeatures/internal/models"
)

// nseDateLayouts are the timestamp formats seen in announcement payloads.
var nseDateLayouts = []string{
	"02-Jan-2006 15:04:05",
	"2006-01-02 15:04:05",
	"02-Jan-2006",
	time.RFC3339,
	"2006-01-02",
}

// nseAnnouncement is the subset of fields read from one announcement.
type nseAnnouncement struct {
	Symbol       string `json:"symbol"`
	Desc         string `json:"sm_ann_desc"`
	Subject      string `json:"subject"`
	PdfURL       string `json:"pdfUrl"`
	AttchmntFile string `json:"attchmntFile"`
	AnnDate      string `json:"ann_date"`
	DissemDT     string `json:"dissemDT"`
}

// AnnouncementFetcher queries the NSE corporate announcements API. NSE
// rejects clients without session cookies, so a warm-up request to the home
// page precedes the API call.
type AnnouncementFetcher struct {
	cfg    config.AnnouncementsConfig
	loc    *time.Location
	logger zerolog.Logger
}

// NewAnnouncementFetcher creates a fetcher for cfg.
func NewAnnouncementFetcher(cfg config.AnnouncementsConfig, loc *time.Location, logger zerolog.Logger) *AnnouncementFetcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "Mozilla/5.0"
	}
	if loc == nil {
		loc = time.UTC
	}
	return &AnnouncementFetcher{
		cfg:    cfg,
		loc:    loc,
		logger: logger.With().Str("source", SourceNSECorporate).Logger(),
	}
}

// Endpoint renders the API URL for the window ending on day.
func (a *AnnouncementFetcher) Endpoint(day time.Time) string {
	from := day.AddDate(0, 0, -a.cfg.FromDaysBack).Format(models.DateLayout)
	to := day.AddDate(0, 0, -a.cfg.ToDaysBack).Format(models.DateLayout)
	return strings.NewReplacer("{from_date}", from, "{to_date}", to).Replace(a.cfg.EndpointTemplate)
}

// Fetch returns the announcements for day. Disabled configuration and any
// failure yield an empty result.
func (a *AnnouncementFetcher) Fetch(ctx context.Context, day time.Time) []models.RawItem {
	if !a.cfg.Enabled || a.cfg.EndpointTemplate == "" {
		return nil
	}

	start := time.Now()
	endpoint := a.Endpoint(day)
	items, err := a.fetch(ctx, endpoint)
	if err != nil {
		err = apperrors.NewFetchError(SourceNSECorporate, endpoint, err)
	}
	logging.LogFetch(a.logger, SourceNSECorporate, endpoint, len(items), time.Since(start), err)
	if err != nil {
		return nil
	}
	return items
}

func (a *AnnouncementFetcher) fetch(ctx context.Context, endpoint string) ([]models.RawItem, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	client := &http.Client{Timeout: a.cfg.Timeout, Jar: jar}

	if a.cfg.HomeURL != "" {
		resp, err := a.get(ctx, client, a.cfg.HomeURL)
		if err != nil {
			return nil, fmt.Errorf("warm-up request: %w", err)
		}
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}

	resp, err := a.get(ctx, client, endpoint)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	return a.parse(body)
}

func (a *AnnouncementFetcher) get(ctx context.Context, client *http.Client, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", a.cfg.UserAgent)
	req.Header.Set("Accept", "application/json, text/plain, */*")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	if a.cfg.HomeURL != "" {
		req.Header.Set("Referer", a.cfg.HomeURL)
	}
	return client.Do(req)
}

// parse accepts either a bare array or an object with a data array.
func (a *AnnouncementFetcher) parse(body []byte) ([]models.RawItem, error) {
	var raws []json.RawMessage
	if err := json.Unmarshal(body, &raws); err != nil {
		var wrapped struct {
			Data []json.RawMessage `json:"data"`
		}
		if err := json.Unmarshal(body, &wrapped); err != nil {
			return nil, fmt.Errorf("decode announcements: %w", err)
		}
		raws = wrapped.Data
	}

	items := make([]models.RawItem, 0, len(raws))
	for _, raw := range raws {
		var ann nseAnnouncement
		if err := json.Unmarshal(raw, &ann); err != nil {
			a.logger.Debug().Err(apperrors.NewMalformedInputError(SourceNSECorporate, "json", err.Error())).Msg("Skipping malformed announcement")
			continue
		}

		item := models.RawItem{
			Source:         SourceNSECorporate,
			Title:          ann.Desc,
			Summary:        ann.Subject,
			URL:            firstNonEmpty(ann.PdfURL, ann.AttchmntFile),
			CompanySymbols: []string{},
			Raw:            raw,
		}
		if published := firstNonEmpty(ann.AnnDate, ann.DissemDT); published != "" {
			s := a.normalizeTime(published)
			item.PublishedAt = &s
		}
		if sym := strings.TrimSpace(ann.Symbol); sym != "" {
			item.CompanySymbols = []string{strings.ToUpper(sym)}
		}
		items = append(items, item)
	}
	return items, nil
}

// normalizeTime renders NSE timestamps as RFC3339 in the configured zone.
// Unrecognized values are kept verbatim.
func (a *AnnouncementFetcher) normalizeTime(s string) string {
	s = strings.TrimSpace(s)
	for _, layout := range nseDateLayouts {
		if t, err := time.ParseInLocation(layout, s, a.loc); err == nil {
			return t.In(a.loc).Format(publishedTimeLayout)
		}
	}
	return s
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
