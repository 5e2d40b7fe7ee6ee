package feed

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/encoding/htmlindex"

	"pricing-service/internal/catalog/model"
	"pricing-service/internal/utils"
)

// ErrNoOffers: документ разобран, но в нём нет ни одного <offer>.
var ErrNoOffers = errors.New("feed: no offers found")

// NormalizeFunc приводит артикул из фида к ключу кэша.
type NormalizeFunc func(string) string

type xmlOffer struct {
	ID            string `xml:"id,attr"`
	VendorCode    string `xml:"vendorCode"`
	Price         string `xml:"price"`
	CategoryID    string `xml:"categoryId"`
	QtyInStock    string `xml:"quantity_in_stock"`
	StockQuantity string `xml:"stock_quantity"`
	Stock         string `xml:"stock"`
}

// key: артикул поставщика, если есть, иначе id оффера
func (o xmlOffer) key() string {
	if v := strings.TrimSpace(o.VendorCode); v != "" {
		return v
	}
	return strings.TrimSpace(o.ID)
}

func (o xmlOffer) stock() *float64 {
	for _, s := range []string{o.QtyInStock, o.StockQuantity, o.Stock} {
		if f, ok := utils.ParseFloatRU(s); ok {
			return &f
		}
	}
	return nil
}

type xmlCategory struct {
	ID   string `xml:"id,attr"`
	Name string `xml:",chardata"`
}

type document struct {
	offers     []xmlOffer
	categories []model.CRMCategory
}

// CRMFeed — разобранный CRM-фид: офферы по нормализованному артикулу и справочник категорий.
type CRMFeed struct {
	Offers     map[string]model.CRMOffer
	Categories []model.CRMCategory
}

func ParseCRM(r io.Reader, normalize NormalizeFunc) (CRMFeed, error) {
	doc, err := decode(r)
	if err != nil {
		return CRMFeed{}, err
	}
	names := make(map[string]string, len(doc.categories))
	for _, c := range doc.categories {
		names[c.ID] = c.Name
	}
	out := CRMFeed{Offers: make(map[string]model.CRMOffer, len(doc.offers)), Categories: doc.categories}
	for _, o := range doc.offers {
		k := normalize(o.key())
		if k == "" {
			continue
		}
		entry := model.CRMOffer{Stock: o.stock(), CategoryID: strings.TrimSpace(o.CategoryID)}
		if p, ok := utils.ParseFloatRU(o.Price); ok {
			entry.Price = &p
		}
		entry.CategoryName = names[entry.CategoryID]
		out.Offers[k] = entry
	}
	return out, nil
}

// ParseProm разбирает фид маркетплейса: только цены. Офферы без цены пропускаются.
func ParseProm(r io.Reader, normalize NormalizeFunc) (map[string]float64, error) {
	doc, err := decode(r)
	if err != nil {
		return nil, err
	}
	out := make(map[string]float64, len(doc.offers))
	for _, o := range doc.offers {
		k := normalize(o.key())
		if k == "" {
			continue
		}
		if p, ok := utils.ParseFloatRU(o.Price); ok {
			out[k] = p
		}
	}
	return out, nil
}

// decode идёт потоком по токенам: <offer> и <category> ищутся на любой глубине,
// так что годятся и yml_catalog/shop/offers, и плоские выгрузки.
func decode(r io.Reader) (document, error) {
	dec := xml.NewDecoder(r)
	dec.CharsetReader = charsetReader
	var doc document
	inCategories := false
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return document{}, fmt.Errorf("feed: xml: %w", err)
		}
		switch el := tok.(type) {
		case xml.StartElement:
			switch el.Name.Local {
			case "categories":
				inCategories = true
			case "category":
				if !inCategories {
					continue
				}
				var c xmlCategory
				if err := dec.DecodeElement(&c, &el); err != nil {
					return document{}, fmt.Errorf("feed: category: %w", err)
				}
				doc.categories = append(doc.categories, model.CRMCategory{
					ID:   strings.TrimSpace(c.ID),
					Name: strings.TrimSpace(c.Name),
				})
			case "offer":
				var o xmlOffer
				if err := dec.DecodeElement(&o, &el); err != nil {
					return document{}, fmt.Errorf("feed: offer: %w", err)
				}
				doc.offers = append(doc.offers, o)
			}
		case xml.EndElement:
			if el.Name.Local == "categories" {
				inCategories = false
			}
		}
	}
	if len(doc.offers) == 0 {
		return document{}, ErrNoOffers
	}
	return doc, nil
}

// выгрузки CRM часто в windows-1251
func charsetReader(label string, input io.Reader) (io.Reader, error) {
	enc, err := htmlindex.Get(label)
	if err != nil {
		return nil, fmt.Errorf("feed: charset %q: %w", label, err)
	}
	return enc.NewDecoder().Reader(input), nil
}
