package bps

import (
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"komoditas/internal/core/scraper"
)

// Category names one of the datasets read from the WebAPI.
type Category string

const (
	CategoryConsumer Category = "consumer_prices"
	CategoryProducer Category = "producer_prices"
	CategoryRegional Category = "regional_economy"
)

func (c Category) priceType() string {
	if c == CategoryProducer {
		return scraper.PriceTypeProducer
	}
	return scraper.PriceTypeConsumer
}

var (
	commodityName = []scraper.Extractor[string]{
		scraper.StringField("komoditas", "commodity", "barang", "item", "produk", "uraian", "keterangan", "nama_komoditas"),
		scraper.StringAt(3, scraper.IsCommodityName),
	}
	regionName = []scraper.Extractor[string]{
		scraper.StringField("provinsi", "province", "daerah", "region", "wilayah", "nama_provinsi", "kab_kota", "kabupaten"),
	}
	price = []scraper.Extractor[float64]{
		scraper.PriceField("harga", "price", "nilai", "value", "rata_rata", "harga_rata_rata", "average_price"),
		scraper.PriceIn(),
	}
	date = []scraper.Extractor[time.Time]{
		scraper.DateField("tanggal", "date", "periode", "period", "tahun", "year", "bulan", "month", "waktu", "time"),
	}
	period = []scraper.Extractor[string]{
		scraper.StringField("periode", "period", "tahun_bulan"),
	}
)

// recordFromRow turns one table row into a price record. Rows without a known
// commodity or a positive price are not prices and are skipped; a row whose
// date cannot be read is kept with a zero date so validation counts it.
func recordFromRow(row any, cat Category) (scraper.PriceRecord, bool) {
	name, ok := scraper.First(row, commodityName...)
	if !ok {
		return scraper.PriceRecord{}, false
	}
	code, ok := scraper.CommodityCode(name)
	if !ok {
		return scraper.PriceRecord{}, false
	}
	amount, ok := scraper.First(row, price...)
	if !ok {
		return scraper.PriceRecord{}, false
	}

	regionCode, region := scraper.RegionNational, scraper.RegionNationalName
	if r, ok := scraper.First(row, regionName...); ok {
		region = r
		regionCode = scraper.RegionCodeOrSlug(r)
	}
	observed, _ := scraper.First(row, date...)
	p, _ := scraper.First(row, period...)

	return scraper.PriceRecord{
		CommodityCode: code,
		CommodityName: name,
		RegionCode:    regionCode,
		RegionName:    region,
		PriceType:     cat.priceType(),
		Price:         amount,
		Unit:          scraper.CommodityUnit(code),
		Date:          observed,
		Source:        sourceLabel,
		Period:        p,
		Category:      string(cat),
	}, true
}

// tableRows unwraps datacontent, which is either the row list itself or an
// object holding it under data.
func tableRows(doc any) []any {
	m, ok := doc.(map[string]any)
	if !ok {
		return nil
	}
	content, ok := m["datacontent"]
	if !ok || content == nil {
		return nil
	}
	rows, _ := scraper.Items(content)
	return rows
}

// websiteRows reads the public statictable pages: commodity, price and date
// in the first three cells, national level.
func websiteRows(doc *goquery.Document) []scraper.PriceRecord {
	var out []scraper.PriceRecord
	doc.Find("table.table-responsive tbody tr").Each(func(_ int, row *goquery.Selection) {
		cells := row.Find("td")
		if cells.Length() < 3 {
			return
		}
		name := strings.TrimSpace(cells.Eq(0).Text())
		code, ok := scraper.CommodityCode(name)
		if !ok {
			return
		}
		amount, ok := scraper.ParsePrice(cells.Eq(1).Text())
		if !ok || amount <= 0 {
			return
		}
		observed, _ := scraper.ParseDate(cells.Eq(2).Text())
		out = append(out, scraper.PriceRecord{
			CommodityCode: code,
			CommodityName: name,
			RegionCode:    scraper.RegionNational,
			RegionName:    scraper.RegionNationalName,
			PriceType:     scraper.PriceTypeConsumer,
			Price:         amount,
			Unit:          scraper.CommodityUnit(code),
			Date:          observed,
			Source:        websiteLabel,
		})
	})
	return out
}
