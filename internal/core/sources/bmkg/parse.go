package bmkg

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/antchfx/xmlquery"

	"komoditas/internal/core/scraper"
)

const sourceLabel = "BMKG"

func parseXML(body []byte) (*xmlquery.Node, error) {
	doc, err := xmlquery.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse xml: %w", err)
	}
	return doc, nil
}

// parseForecast reads the DigitalForecast layout:
// data/forecast/area/parameter/timerange/value.
func parseForecast(doc *xmlquery.Node) []scraper.WeatherRecord {
	var out []scraper.WeatherRecord
	for _, area := range xmlquery.Find(doc, "//forecast/area") {
		name := areaName(area)
		code := regionCode(name, area.SelectAttr("domain"))
		lat, lon := coordinates(area.SelectAttr("latitude"), area.SelectAttr("longitude"))

		for _, param := range area.SelectElements("parameter") {
			wt, ok := WeatherType(param.SelectAttr("id"))
			if !ok {
				continue
			}
			for _, tr := range param.SelectElements("timerange") {
				v, ok := pickValue(wt, tr.SelectElements("value"))
				if !ok {
					continue
				}
				// Unparseable timestamps stay zero and are dropped by validation.
				date, _ := scraper.ParseDate(tr.SelectAttr("datetime"))
				out = append(out, scraper.WeatherRecord{
					RegionCode:  code,
					RegionName:  name,
					WeatherType: wt,
					Value:       v,
					Unit:        Unit(wt),
					Date:        date,
					Source:      sourceLabel,
					Latitude:    lat,
					Longitude:   lon,
					Description: param.SelectAttr("description"),
				})
			}
		}
	}
	return out
}

func areaName(area *xmlquery.Node) string {
	if d := strings.TrimSpace(area.SelectAttr("description")); d != "" {
		return d
	}
	for _, n := range area.SelectElements("name") {
		if t := strings.TrimSpace(n.InnerText()); t != "" {
			return t
		}
	}
	return ""
}

func regionCode(name, domain string) string {
	if code, ok := scraper.ProvinceCode(name); ok {
		return code
	}
	if code, ok := scraper.ProvinceCode(domain); ok {
		return code
	}
	return scraper.RegionCodeOrSlug(name)
}

func coordinates(lat, lon string) (*float64, *float64) {
	la, ok1 := scraper.ParseFloat(lat)
	lo, ok2 := scraper.ParseFloat(lon)
	if !ok1 || !ok2 {
		return nil, nil
	}
	return &la, &lo
}

// pickValue chooses one reading among the per-unit <value> elements of a
// timerange, preferring the canonical unit and converting otherwise.
func pickValue(weatherType string, values []*xmlquery.Node) (float64, bool) {
	for _, want := range preferredUnits[weatherType] {
		for _, v := range values {
			if !strings.EqualFold(v.SelectAttr("unit"), want) {
				continue
			}
			n, ok := scraper.ParseFloat(v.InnerText())
			if !ok {
				continue
			}
			if c, ok := fromDeclaredUnit(weatherType, want, n); ok {
				return Normalize(weatherType, c), true
			}
		}
	}
	for _, v := range values {
		n, ok := scraper.ParseFloat(v.InnerText())
		if !ok {
			continue
		}
		if c, ok := fromDeclaredUnit(weatherType, v.SelectAttr("unit"), n); ok {
			n = c
		}
		return Normalize(weatherType, n), true
	}
	return 0, false
}

var (
	regionTags = []string{"wilayah", "provinsi", "kota", "kabupaten", "area", "region", "lokasi", "stasiun", "station", "nama", "name"}
	dateTags   = []string{"datetime", "tanggal", "date", "waktu", "timestamp", "time", "jam"}
	latTags    = []string{"lintang", "latitude", "lat"}
	lonTags    = []string{"bujur", "longitude", "lon", "lng"}
)

// parseObservations is the generic reader for the climate and maritime feeds,
// whose layouts vary. Any element with leaf children named after a weather
// metric (suhu, kelembapan, tekanan, ...) is an observation; region, date and
// coordinates come from sibling leaves or attributes of the element and its ancestors.
func parseObservations(doc *xmlquery.Node) []scraper.WeatherRecord {
	var out []scraper.WeatherRecord
	for _, n := range xmlquery.Find(doc, "//*") {
		metrics := metricLeaves(n)
		if len(metrics) == 0 {
			continue
		}

		regionName := lookupField(n, regionTags)
		code := scraper.RegionCodeOrSlug(regionName)
		if c, ok := scraper.ProvinceCode(regionName); ok {
			code = c
		}
		var date time.Time
		if raw := lookupField(n, dateTags); raw != "" {
			date, _ = scraper.ParseDate(raw)
		}
		lat, lon := coordinates(lookupField(n, latTags), lookupField(n, lonTags))

		for _, m := range metrics {
			out = append(out, scraper.WeatherRecord{
				RegionCode:  code,
				RegionName:  regionName,
				WeatherType: m.weatherType,
				Value:       m.value,
				Unit:        Unit(m.weatherType),
				Date:        date,
				Source:      sourceLabel,
				Latitude:    lat,
				Longitude:   lon,
			})
		}
	}
	return out
}

type metric struct {
	weatherType string
	value       float64
}

func metricLeaves(n *xmlquery.Node) []metric {
	var out []metric
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != xmlquery.ElementNode || hasElementChild(c) {
			continue
		}
		wt, ok := WeatherType(c.Data)
		if !ok {
			continue
		}
		v, ok := scraper.ParseFloat(c.InnerText())
		if !ok {
			continue
		}
		if conv, ok := fromDeclaredUnit(wt, c.SelectAttr("unit"), v); ok {
			v = conv
		}
		out = append(out, metric{weatherType: wt, value: Normalize(wt, v)})
	}
	return out
}

func hasElementChild(n *xmlquery.Node) bool {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == xmlquery.ElementNode {
			return true
		}
	}
	return false
}

// lookupField returns the first non-empty value for any of tags, searching
// leaf children then attributes, from n up to the document root.
func lookupField(n *xmlquery.Node, tags []string) string {
	for cur := n; cur != nil && cur.Type == xmlquery.ElementNode; cur = cur.Parent {
		for _, tag := range tags {
			for c := cur.FirstChild; c != nil; c = c.NextSibling {
				if c.Type == xmlquery.ElementNode && strings.EqualFold(c.Data, tag) && !hasElementChild(c) {
					if t := strings.TrimSpace(c.InnerText()); t != "" {
						return t
					}
				}
			}
			for _, a := range cur.Attr {
				if strings.EqualFold(a.Name.Local, tag) && strings.TrimSpace(a.Value) != "" {
					return strings.TrimSpace(a.Value)
				}
			}
		}
	}
	return ""
}
