package scraper

import (
	"sort"
	"strings"
)

type alias struct {
	needle string
	code   string
}

// Ordered so the longest needle wins ("gula pasir" before "gula").
var commodityAliases = sortAliases([]alias{
	{"beras", "BERAS"},
	{"jagung", "JAGUNG"},
	{"kedelai", "KEDELAI"},
	{"gula pasir", "GULA_PASIR"},
	{"gula", "GULA_PASIR"},
	{"minyak goreng", "MINYAK_GORENG"},
	{"minyak", "MINYAK_GORENG"},
	{"daging sapi", "DAGING_SAPI"},
	{"daging ayam", "DAGING_AYAM"},
	{"ayam", "DAGING_AYAM"},
	{"telur ayam", "TELUR_AYAM"},
	{"telur", "TELUR_AYAM"},
	{"cabai merah", "CABAI_MERAH"},
	{"cabai", "CABAI_MERAH"},
	{"cabe", "CABAI_MERAH"},
	{"bawang merah", "BAWANG_MERAH"},
	{"bawang putih", "BAWANG_PUTIH"},
	{"tomat", "TOMAT"},
})

var provinceAliases = sortAliases([]alias{
	{"aceh", "11"},
	{"sumatera utara", "12"},
	{"sumatera barat", "13"},
	{"riau", "14"},
	{"jambi", "15"},
	{"sumatera selatan", "16"},
	{"bengkulu", "17"},
	{"lampung", "18"},
	{"kepulauan bangka belitung", "19"},
	{"bangka belitung", "19"},
	{"kepulauan riau", "21"},
	{"dki jakarta", "31"},
	{"jakarta", "31"},
	{"jawa barat", "32"},
	{"jawa tengah", "33"},
	{"di yogyakarta", "34"},
	{"yogyakarta", "34"},
	{"jawa timur", "35"},
	{"banten", "36"},
	{"bali", "51"},
	{"nusa tenggara barat", "52"},
	{"nusa tenggara timur", "53"},
	{"kalimantan barat", "61"},
	{"kalimantan tengah", "62"},
	{"kalimantan selatan", "63"},
	{"kalimantan timur", "64"},
	{"kalimantan utara", "65"},
	{"sulawesi utara", "71"},
	{"sulawesi tengah", "72"},
	{"sulawesi selatan", "73"},
	{"sulawesi tenggara", "74"},
	{"gorontalo", "75"},
	{"sulawesi barat", "76"},
	{"maluku utara", "82"},
	{"maluku", "81"},
	{"papua barat daya", "92"},
	{"papua barat", "91"},
	{"papua selatan", "95"},
	{"papua tengah", "96"},
	{"papua pegunungan", "97"},
	{"papua", "94"},
})

func sortAliases(in []alias) []alias {
	sort.SliceStable(in, func(i, j int) bool { return len(in[i].needle) > len(in[j].needle) })
	return in
}

func matchAlias(table []alias, text string) (string, bool) {
	lower := strings.ToLower(strings.TrimSpace(text))
	if lower == "" {
		return "", false
	}
	for _, a := range table {
		if strings.Contains(lower, a.needle) {
			return a.code, true
		}
	}
	return "", false
}

// CommodityCode maps free text like "Beras Medium" to a canonical code.
func CommodityCode(name string) (string, bool) { return matchAlias(commodityAliases, name) }

func IsCommodityName(text string) bool {
	_, ok := CommodityCode(text)
	return ok
}

// ProvinceCode maps a region name to its two-digit BPS province code.
func ProvinceCode(name string) (string, bool) { return matchAlias(provinceAliases, name) }

const (
	RegionNational     = "NATIONAL"
	RegionNationalName = "Indonesia"
)

// RegionCodeOrSlug falls back to a lowercase underscore slug when no province matches.
func RegionCodeOrSlug(name string) string {
	if code, ok := ProvinceCode(name); ok {
		return code
	}
	return strings.ToLower(strings.Join(strings.Fields(name), "_"))
}

// CommodityUnit is the retail unit a commodity is quoted in.
func CommodityUnit(code string) string {
	if code == "MINYAK_GORENG" {
		return "liter"
	}
	return "kg"
}

// UnitFromName guesses the unit from a commodity label.
func UnitFromName(name string) string {
	lower := strings.ToLower(name)
	if strings.Contains(lower, "minyak") || strings.Contains(lower, "oli") {
		return "liter"
	}
	return "kg"
}
