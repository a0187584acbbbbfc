package scraper

import "math/rand"

// HeaderProfile is the static header set sent with every upstream request
type HeaderProfile struct {
	UserAgent      string
	Accept         string
	AcceptLanguage string
	Connection     string
}

// HeaderStrategy selects a profile by the kind of upstream being read
type HeaderStrategy string

const (
	StrategyBrowser HeaderStrategy = "browser"
	StrategyXMLFeed HeaderStrategy = "xml_feed"
	StrategyJSONAPI HeaderStrategy = "json_api"
)

const acceptLanguageID = "id-ID,id;q=0.9,en;q=0.8"

var browserProfiles = []HeaderProfile{
	{
		UserAgent:      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36",
		Accept:         "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8",
		AcceptLanguage: acceptLanguageID,
		Connection:     "keep-alive",
	},
	{
		UserAgent:      "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36",
		Accept:         "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8",
		AcceptLanguage: acceptLanguageID,
		Connection:     "keep-alive",
	},
	{
		UserAgent:      "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/18.2 Safari/605.1.15",
		Accept:         "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8",
		AcceptLanguage: acceptLanguageID,
		Connection:     "keep-alive",
	},
}

var xmlFeedProfile = HeaderProfile{
	UserAgent:      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36",
	Accept:         "application/xml, text/xml, */*",
	AcceptLanguage: acceptLanguageID,
}

var jsonAPIProfile = HeaderProfile{
	UserAgent:      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36",
	Accept:         "application/json",
	AcceptLanguage: acceptLanguageID,
}

// GetHeaderProfile returns the profile for the given strategy; browser profiles rotate
func GetHeaderProfile(strategy HeaderStrategy) HeaderProfile {
	switch strategy {
	case StrategyBrowser:
		return browserProfiles[rand.Intn(len(browserProfiles))]
	case StrategyXMLFeed:
		return xmlFeedProfile
	case StrategyJSONAPI:
		return jsonAPIProfile
	default:
		return browserProfiles[0]
	}
}

// Headers flattens the profile. Accept-Encoding is left to the transport so
// compressed bodies are decoded transparently.
func (p HeaderProfile) Headers() map[string]string {
	h := map[string]string{}
	if p.UserAgent != "" {
		h["User-Agent"] = p.UserAgent
	}
	if p.Accept != "" {
		h["Accept"] = p.Accept
	}
	if p.AcceptLanguage != "" {
		h["Accept-Language"] = p.AcceptLanguage
	}
	if p.Connection != "" {
		h["Connection"] = p.Connection
	}
	return h
}
