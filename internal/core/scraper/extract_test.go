package scraper_test

import (
	"testing"
	"time"

	"komoditas/internal/core/scraper"
)

func TestExtractorChains(t *testing.T) {
	row := map[string]any{
		"Komoditas": "Beras Medium",
		"wilayah":   "Jawa Barat",
		"nilai":     "Rp 12.500",
		"tahun":     float64(2024),
		"empty":     "  ",
	}

	name, ok := scraper.First(row,
		scraper.StringField("commodity", "komoditas"),
		scraper.StringAt(3, scraper.IsCommodityName),
	)
	if !ok || name != "Beras Medium" {
		t.Errorf("commodity: got %q %v", name, ok)
	}

	if _, ok := scraper.StringField("empty", "missing")(row); ok {
		t.Error("blank and missing fields must not match")
	}

	p, ok := scraper.First(row, scraper.PriceField("harga", "price", "nilai"))
	if !ok || p != 12500 {
		t.Errorf("price: got %v %v", p, ok)
	}

	d, ok := scraper.First(row, scraper.DateField("tanggal", "tahun"))
	if !ok || !d.Equal(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("date: got %v %v", d, ok)
	}
}

func TestExtractorArrayRows(t *testing.T) {
	row := []any{"Indonesia", "Cabai Merah Keriting", "bukan", float64(0), "Rp 45.000"}

	name, ok := scraper.StringAt(3, scraper.IsCommodityName)(row)
	if !ok || name != "Cabai Merah Keriting" {
		t.Errorf("got %q %v", name, ok)
	}
	p, ok := scraper.PriceIn()(row)
	if !ok || p != 45000 {
		t.Errorf("expected first positive price 45000, got %v %v", p, ok)
	}
	if _, ok := scraper.StringField("x")(row); ok {
		t.Error("object extractor must not match array rows")
	}
}

func TestItems(t *testing.T) {
	cases := map[string]string{
		"bare":  `[{"id":1},{"id":2}]`,
		"data":  `{"data":[{"id":1},{"id":2}]}`,
		"paged": `{"status":"OK","data":[{"page":1,"pages":1},[{"id":1},{"id":2}]]}`,
	}
	for name, raw := range cases {
		v, err := scraper.DecodeJSON([]byte(raw))
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		items, ok := scraper.Items(v)
		if !ok || len(items) != 2 {
			t.Errorf("%s: expected 2 items, got %d %v", name, len(items), ok)
		}
	}
	if _, ok := scraper.Items(map[string]any{"status": "OK"}); ok {
		t.Error("expected no items without data")
	}
}

func TestNormalizeDictionaries(t *testing.T) {
	commodities := map[string]string{
		"Gula Pasir Lokal":    "GULA_PASIR",
		"Minyak Goreng Curah": "MINYAK_GORENG",
		"Telur Ayam Ras":      "TELUR_AYAM",
		"Daging Ayam Ras":     "DAGING_AYAM",
		"BAWANG PUTIH":        "BAWANG_PUTIH",
	}
	for in, want := range commodities {
		if got, ok := scraper.CommodityCode(in); !ok || got != want {
			t.Errorf("CommodityCode(%q) = %q, want %q", in, got, want)
		}
	}
	if _, ok := scraper.CommodityCode("Semen"); ok {
		t.Error("unexpected match for Semen")
	}

	provinces := map[string]string{
		"Kota Jakarta Pusat": "31",
		"Kepulauan Riau":     "21",
		"Riau":               "14",
		"Papua Barat Daya":   "92",
		"Maluku Utara":       "82",
		"DI Yogyakarta":      "34",
	}
	for in, want := range provinces {
		if got, ok := scraper.ProvinceCode(in); !ok || got != want {
			t.Errorf("ProvinceCode(%q) = %q, want %q", in, got, want)
		}
	}
	if got := scraper.RegionCodeOrSlug("Laut Natuna Utara"); got != "laut_natuna_utara" {
		t.Errorf("unexpected slug %q", got)
	}
	if scraper.CommodityUnit("MINYAK_GORENG") != "liter" || scraper.CommodityUnit("BERAS") != "kg" {
		t.Error("unexpected commodity units")
	}
}
