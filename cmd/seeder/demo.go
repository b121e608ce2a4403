package main

import (
	"fmt"
	"math/rand"

	"github.com/shopspring/decimal"

	"github.com/ammerola/storefront-be/internal/core/domain"
)

type demoItem struct {
	title  string
	desc   string
	tags   []string
	price  int64
	colors []string
	sizes  []string
}

var demoItems = []demoItem{
	{"Remera Básica Algodón", "Remera de algodón peinado, corte regular", []string{"algodon", "basica"}, 12000, []string{"Negro", "Blanco", "Gris"}, []string{"S", "M", "L", "XL"}},
	{"Remera Oversize Hombre", "Remera oversize de jersey pesado", []string{"oversize", "urbana"}, 15500, []string{"Negro", "Verde"}, []string{"M", "L", "XL"}},
	{"Musculosa Deportiva Mujer", "Musculosa dry fit para entrenar", []string{"deportiva", "dry-fit"}, 9800, []string{"Rosa", "Negro"}, []string{"XS", "S", "M"}},
	{"Buzo Canguro Frisa", "Buzo con capucha y bolsillo canguro", []string{"frisa", "capucha"}, 28000, []string{"Gris", "Azul"}, []string{"S", "M", "L"}},
	{"Buzo Polar Niño", "Buzo polar liviano para chicos", []string{"polar", "abrigo"}, 18500, []string{"Rojo", "Azul"}, []string{"6", "8", "10", "12"}},
	{"Campera Rompeviento", "Campera rompeviento impermeable", []string{"impermeable", "liviana"}, 42000, []string{"Negro", "Amarillo"}, []string{"M", "L", "XL"}},
	{"Campera Puffer Mujer", "Campera inflada con relleno sintético", []string{"puffer", "invierno"}, 65000, []string{"Negro", "Beige"}, []string{"S", "M", "L"}},
	{"Jean Recto Hombre", "Jean rígido de corte recto", []string{"denim", "clasico"}, 35000, []string{"Azul"}, []string{"38", "40", "42", "44"}},
	{"Jogger Algodón", "Jogger de algodón con puño", []string{"algodon", "comodo"}, 22000, []string{"Gris", "Negro"}, []string{"S", "M", "L"}},
	{"Bermuda Cargo", "Bermuda cargo de gabardina", []string{"cargo", "verano"}, 19500, []string{"Verde", "Beige"}, []string{"40", "42", "44"}},
	{"Zapatilla Urbana", "Zapatilla de lona con suela de goma", []string{"lona", "urbana"}, 48000, []string{"Blanco", "Negro"}, []string{"38", "39", "40", "41", "42"}},
	{"Sandalia Mujer", "Sandalia de cuero con plataforma", []string{"cuero", "verano"}, 39000, []string{"Suela", "Negro"}, []string{"36", "37", "38", "39"}},
	{"Gorra Trucker", "Gorra trucker con red", []string{"gorra", "verano"}, 8500, []string{"Negro", "Azul"}, nil},
	{"Mochila Urbana", "Mochila de 20 litros con porta notebook", []string{"mochila", "notebook"}, 31000, nil, nil},
	{"Medias Pack x3", "Pack de tres pares de medias de algodón", []string{"medias", "pack"}, 5200, nil, nil},
}

// demoCatalog builds a deterministic demo catalog; seed fixes stock levels and stats
func demoCatalog(seed int64) []domain.Product {
	rng := rand.New(rand.NewSource(seed))
	products := make([]domain.Product, 0, len(demoItems))

	for i, item := range demoItems {
		p := domain.Product{
			Title:       item.title,
			Description: item.desc,
			Tags:        item.tags,
			Price:       decimal.NewFromInt(item.price),
			IsActive:    true,
		}

		switch {
		case len(item.colors) == 0 && len(item.sizes) == 0:
			p.Stock = rng.Intn(40)
		default:
			colors, sizes := item.colors, item.sizes
			if len(colors) == 0 {
				colors = []string{""}
			}
			if len(sizes) == 0 {
				sizes = []string{""}
			}
			for _, color := range colors {
				for _, size := range sizes {
					p.Variants = append(p.Variants, domain.Variant{
						Color: color,
						Size:  size,
						// a few variants start sold out so reconciliation has something to do
						Stock: rng.Intn(12) - 2,
						SKU:   fmt.Sprintf("DEMO-%02d-%s-%s", i+1, color, size),
					})
				}
			}
			for j := range p.Variants {
				if p.Variants[j].Stock < 0 {
					p.Variants[j].Stock = 0
				}
			}
		}
		products = append(products, p)
	}
	return products
}
