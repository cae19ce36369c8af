package source

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"
	"unicode"

	"github.com/PuerkitoBio/goquery"

	"github.com/nyonlabs/showsync/helper"
	"github.com/nyonlabs/showsync/model"
)

// DefaultBaseURL is the production listing site.
const DefaultBaseURL = "https://www.cineman.ch"

// CinemanAdapter fetches cinema listings per locality from a Cineman style
// listing page.
type CinemanAdapter struct {
	baseURL string
	client  *http.Client
	logger  *slog.Logger
}

// NewCinemanAdapter creates a source adapter for the given base URL.
// Pass DefaultBaseURL for the production site.
func NewCinemanAdapter(baseURL string, timeout time.Duration, logger *slog.Logger) *CinemanAdapter {
	return &CinemanAdapter{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

// Fetch retrieves and parses the listing page for one locality.
func (a *CinemanAdapter) Fetch(ctx context.Context, locality string) ([]model.Listing, error) {
	url := fmt.Sprintf("%s/fr/seances/city/%s", a.baseURL, locality)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, helper.NewError("build request", err)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, helper.NewError("fetch listings", fmt.Errorf("%w: %w", ErrSourceUnavailable, err))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, helper.NewError("fetch listings",
			fmt.Errorf("%w: status %d for %s", ErrSourceUnavailable, resp.StatusCode, url))
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, helper.NewError("parse document", fmt.Errorf("%w: %w", ErrSourceFormat, err))
	}

	return a.parse(doc, locality)
}

// parse extracts the listings from a parsed document. The cinema list
// container is the structural marker; its absence means the upstream shape
// drifted. Individual malformed cards are skipped, not fatal.
func (a *CinemanAdapter) parse(doc *goquery.Document, locality string) ([]model.Listing, error) {
	container := doc.Find(".cinema-list")
	if container.Length() == 0 {
		return nil, helper.NewError("locate cinema list",
			fmt.Errorf("%w: missing .cinema-list container", ErrSourceFormat))
	}

	capitalized := capitalize(locality)

	var listings []model.Listing
	container.Find(".cinema-block").Each(func(i int, card *goquery.Selection) {
		name := strings.TrimSpace(card.Find(".cinema-name").First().Text())
		if name == "" {
			a.logger.Warn("Skipping venue card without name",
				slog.String("locality", locality), slog.Int("card", i))
			return
		}
		address := strings.TrimSpace(card.Find(".cinema-address").First().Text())

		// A venue with no movie blocks yields an empty schedule, not an
		// error; the venue itself is still worth persisting.
		schedule := []model.ItemSchedule{}
		card.Find(".movie-block").Each(func(_ int, block *goquery.Selection) {
			title := strings.TrimSpace(block.Find(".movie-title").First().Text())
			if title == "" {
				return
			}

			item := model.ItemSchedule{
				Title: title,
				Genre: strings.TrimSpace(block.Find(".movie-genre").First().Text()),
			}
			block.Find(".showtime").Each(func(_ int, st *goquery.Selection) {
				if text := strings.TrimSpace(st.Text()); text != "" {
					item.Showtimes = append(item.Showtimes, text)
				}
			})
			schedule = append(schedule, item)
		})

		listings = append(listings, model.Listing{
			Locality: capitalized,
			Name:     name,
			Address:  address,
			Schedule: schedule,
		})
	})

	a.logger.Info("Fetched listings",
		slog.String("locality", locality), slog.Int("venues", len(listings)))

	return listings, nil
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	runes := []rune(s)
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}
