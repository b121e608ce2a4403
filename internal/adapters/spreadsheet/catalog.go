// internal/adapters/spreadsheet/catalog.go
package spreadsheet

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/tealeg/xlsx/v3"

	"github.com/ammerola/storefront-be/internal/core/domain"
)

// SheetName is the worksheet holding the catalog
const SheetName = "Catalog"

// ContentType is the MIME type of .xlsx files
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// ErrInvalidWorkbook marks files that cannot be read as a catalog at all
var ErrInvalidWorkbook = errors.New("invalid catalog workbook")

// Columns is the catalog sheet layout. Variants are written as "color/size:stock[@price]" joined by ";".
var Columns = []string{
	"Slug", "Title", "Description", "Category", "Gender",
	"Tags", "Price", "Stock", "Active", "Variants",
}

// WriteCatalog writes products as a single-sheet workbook
func WriteCatalog(w io.Writer, products []domain.Product) error {
	file := xlsx.NewFile()

	sheet, err := file.AddSheet(SheetName)
	if err != nil {
		return fmt.Errorf("failed to add worksheet: %w", err)
	}

	header := sheet.AddRow()
	for _, name := range Columns {
		cell := header.AddCell()
		cell.Value = name
		cell.GetStyle().Font.Bold = true
		cell.GetStyle().Fill.PatternType = "solid"
		cell.GetStyle().Fill.FgColor = "CCCCCC"
	}

	for i := range products {
		p := &products[i]
		row := sheet.AddRow()
		row.AddCell().SetString(p.Slug)
		row.AddCell().SetString(p.Title)
		row.AddCell().SetString(p.Description)
		row.AddCell().SetString(p.CategoryName)
		row.AddCell().SetString(string(p.Gender))
		row.AddCell().SetString(strings.Join(p.Tags, ", "))
		row.AddCell().SetString(p.Price.StringFixed(2))
		row.AddCell().SetInt(p.Stock)
		row.AddCell().SetBool(p.IsActive)
		row.AddCell().SetString(formatVariants(p.Variants))
	}

	sheet.SetColWidth(1, len(Columns), 18)

	if err := file.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

// ReadCatalog parses the first sheet of a workbook. Columns are matched by header
// name; rows without a title are skipped. Rows that fail to parse are reported in
// the joined error while the remaining rows are still returned.
func ReadCatalog(data []byte) ([]domain.Product, error) {
	file, err := xlsx.OpenBinary(data)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open workbook: %w", ErrInvalidWorkbook, err)
	}
	if len(file.Sheets) == 0 {
		return nil, fmt.Errorf("%w: workbook has no sheets", ErrInvalidWorkbook)
	}

	var (
		products []domain.Product
		errs     []error
		index    map[string]int
		rowNum   int
	)

	err = file.Sheets[0].ForEachRow(func(r *xlsx.Row) error {
		rowNum++
		if index == nil {
			index = headerIndex(r)
			return nil
		}

		get := func(col string) string {
			i, ok := index[strings.ToLower(col)]
			if !ok {
				return ""
			}
			c := r.GetCell(i)
			if c == nil {
				return ""
			}
			return strings.TrimSpace(c.String())
		}

		if get("Title") == "" {
			return nil
		}

		p, err := parseRow(get)
		if err != nil {
			errs = append(errs, fmt.Errorf("row %d: %w", rowNum, err))
			return nil
		}
		products = append(products, *p)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read rows: %w", ErrInvalidWorkbook, err)
	}
	if index == nil {
		return nil, fmt.Errorf("%w: sheet %q is empty", ErrInvalidWorkbook, file.Sheets[0].Name)
	}
	if _, ok := index["title"]; !ok {
		return nil, fmt.Errorf("%w: sheet %q has no Title column", ErrInvalidWorkbook, file.Sheets[0].Name)
	}

	return products, errors.Join(errs...)
}

// EncodeCatalog is WriteCatalog into memory
func EncodeCatalog(products []domain.Product) ([]byte, error) {
	var buf bytes.Buffer
	if err := WriteCatalog(&buf, products); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func headerIndex(r *xlsx.Row) map[string]int {
	index := make(map[string]int, len(Columns))
	for i := 0; i < len(Columns)*2; i++ {
		c := r.GetCell(i)
		if c == nil {
			continue
		}
		if name := strings.ToLower(strings.TrimSpace(c.String())); name != "" {
			index[name] = i
		}
	}
	return index
}

func parseRow(get func(string) string) (*domain.Product, error) {
	p := &domain.Product{
		Slug:         get("Slug"),
		Title:        get("Title"),
		Description:  get("Description"),
		CategoryName: get("Category"),
		Gender:       domain.Gender(strings.ToLower(get("Gender"))),
		IsActive:     true,
	}

	for _, t := range strings.Split(get("Tags"), ",") {
		if t = strings.TrimSpace(t); t != "" {
			p.Tags = append(p.Tags, t)
		}
	}

	if s := get("Price"); s != "" {
		price, err := decimal.NewFromString(strings.TrimPrefix(s, "$"))
		if err != nil {
			return nil, fmt.Errorf("invalid price %q", s)
		}
		p.Price = price
	}

	if s := get("Stock"); s != "" {
		stock, err := parseInt(s)
		if err != nil {
			return nil, fmt.Errorf("invalid stock %q", s)
		}
		p.Stock = stock
	}

	if s := get("Active"); s != "" {
		active, err := parseBool(s)
		if err != nil {
			return nil, fmt.Errorf("invalid active flag %q", s)
		}
		p.IsActive = active
	}

	variants, err := parseVariants(get("Variants"))
	if err != nil {
		return nil, err
	}
	p.Variants = variants

	return p, nil
}

func formatVariants(variants []domain.Variant) string {
	parts := make([]string, 0, len(variants))
	for _, v := range variants {
		s := fmt.Sprintf("%s/%s:%d", v.Color, v.Size, v.Stock)
		if v.Price != nil {
			s += "@" + v.Price.StringFixed(2)
		}
		parts = append(parts, s)
	}
	return strings.Join(parts, "; ")
}

func parseVariants(s string) ([]domain.Variant, error) {
	var out []domain.Variant
	for _, part := range strings.Split(s, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		tuple, qty, ok := strings.Cut(part, ":")
		if !ok {
			return nil, fmt.Errorf("variant %q must look like color/size:stock", part)
		}
		color, size, _ := strings.Cut(tuple, "/")

		v := domain.Variant{
			Color: strings.TrimSpace(color),
			Size:  strings.TrimSpace(size),
		}

		stock, price, hasPrice := strings.Cut(strings.TrimSpace(qty), "@")
		n, err := parseInt(stock)
		if err != nil {
			return nil, fmt.Errorf("variant %q has invalid stock", part)
		}
		v.Stock = n

		if hasPrice {
			d, err := decimal.NewFromString(strings.TrimSpace(price))
			if err != nil {
				return nil, fmt.Errorf("variant %q has invalid price", part)
			}
			v.Price = &d
		}
		out = append(out, v)
	}
	return out, nil
}

// parseInt accepts "3" as well as spreadsheet floats like "3.0"
func parseInt(s string) (int, error) {
	s = strings.TrimSpace(s)
	if n, err := strconv.Atoi(s); err == nil {
		return n, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f != float64(int(f)) {
		return 0, fmt.Errorf("not an integer: %q", s)
	}
	return int(f), nil
}

func parseBool(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "yes", "si", "sí", "y":
		return true, nil
	case "0", "false", "no", "n":
		return false, nil
	}
	return false, fmt.Errorf("not a boolean: %q", s)
}
