// test/benchmarks/helpers.go
package benchmarks

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/ammerola/storefront-be/internal/core/domain"
)

var benchmarkTitles = []string{
	"Remera básica de algodón peinado",
	"Buzo canguro de frisa con capucha",
	"Campera rompeviento impermeable",
	"Pantalón jogger de algodón",
	"Jean recto de corte clásico",
	"Zapatilla urbana de lona",
	"Musculosa deportiva dry fit",
	"Bermuda cargo de gabardina",
	"Gorra trucker con red",
	"Mochila urbana porta notebook",
}

var benchmarkQueries = []string{"remera", "remra algodon", "campera impermeable", "zapatila", "mochila notebok"}

// createBenchmarkCatalog builds n products cycling through a fixed set of titles
func createBenchmarkCatalog(n int) []domain.Product {
	products := make([]domain.Product, n)
	for i := range products {
		title := benchmarkTitles[i%len(benchmarkTitles)]
		products[i] = domain.Product{
			Title:        fmt.Sprintf("%s %d", title, i),
			Description:  "Producto de prueba para benchmarks",
			Tags:         []string{"benchmark", fmt.Sprintf("lote-%d", i%7)},
			CategoryName: "Ropa",
			Price:        decimal.NewFromInt(int64(1000 + i)),
			Stock:        i % 25,
			IsActive:     true,
		}
		if i%3 == 0 {
			products[i].Variants = []domain.Variant{
				{Color: "Negro", Size: "M", Stock: 3},
				{Color: "Blanco", Size: "L", Stock: 0},
			}
		}
		products[i].PrepareForStorage()
	}
	return products
}

func titles(products []domain.Product) []string {
	out := make([]string, len(products))
	for i := range products {
		out[i] = products[i].Title
	}
	return out
}
