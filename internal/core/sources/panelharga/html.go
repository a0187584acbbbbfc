package panelharga

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"komoditas/internal/core/scraper"
)

func parseHTML(body []byte) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	return doc, nil
}

var provinceHref = regexp.MustCompile(`(?i)(?:province|provinsi)[=/](\d+)`)

// provincesFromHTML reads the province dropdown of the landing page, or
// failing that, links carrying a numeric province id.
func provincesFromHTML(body []byte) ([]Province, error) {
	doc, err := parseHTML(body)
	if err != nil {
		return nil, err
	}

	var out []Province
	doc.Find(`select[name*="province"], select[name*="provinsi"]`).Find("option").Each(func(_ int, s *goquery.Selection) {
		value, _ := s.Attr("value")
		value = strings.TrimSpace(value)
		text := strings.TrimSpace(s.Text())
		if value == "" || text == "" {
			return
		}
		out = append(out, Province{ID: value, Code: value, Name: text})
	})
	if len(out) > 0 {
		return out, nil
	}

	seen := map[string]bool{}
	doc.Find(`a[href*="province"], a[href*="provinsi"]`).Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		text := strings.TrimSpace(s.Text())
		m := provinceHref.FindStringSubmatch(href)
		if m == nil || text == "" || seen[m[1]] {
			return
		}
		seen[m[1]] = true
		out = append(out, Province{ID: m[1], Code: m[1], Name: text})
	})
	return out, nil
}

func commoditiesFromHTML(body []byte) ([]Commodity, error) {
	doc, err := parseHTML(body)
	if err != nil {
		return nil, err
	}
	var out []Commodity
	doc.Find(`select[name*="commodity"], select[name*="komoditas"]`).Find("option").Each(func(_ int, s *goquery.Selection) {
		value, _ := s.Attr("value")
		value = strings.TrimSpace(value)
		text := strings.TrimSpace(s.Text())
		if value == "" || text == "" {
			return
		}
		out = append(out, Commodity{ID: value, Code: value, Name: text, Unit: scraper.UnitFromName(text)})
	})
	return out, nil
}

// pricesFromHTML reads price rows from a table or from .price-item/.harga-item
// blocks. Rows without both a price and a date are skipped, header rows included.
func pricesFromHTML(body []byte) ([]pricePoint, error) {
	doc, err := parseHTML(body)
	if err != nil {
		return nil, err
	}
	var out []pricePoint
	doc.Find("table tr, .price-item, .harga-item").Each(func(_ int, row *goquery.Selection) {
		price, ok := scraper.ParsePrice(row.Find(".price, .harga, td:last-child").First().Text())
		if !ok || price <= 0 {
			return
		}
		// An unreadable date stays zero so validation drops and counts the row.
		date, _ := scraper.ParseDate(row.Find(".date, .tanggal, td:first-child").First().Text())
		out = append(out, pricePoint{Price: price, Date: date})
	})
	return out, nil
}
