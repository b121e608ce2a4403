package main

import (
	"strings"

	"github.com/ammerola/storefront-be/internal/core/domain"
)

// CategoryClassifier guesses a category and audience from product text
type CategoryClassifier struct {
	categoryKeywords map[string][]string
	genderKeywords   map[domain.Gender][]string
}

// NewCategoryClassifier returns a classifier for the storefront's demo categories
func NewCategoryClassifier() *CategoryClassifier {
	return &CategoryClassifier{
		categoryKeywords: map[string][]string{
			"Remeras":    {"remera", "camiseta", "t-shirt", "tee", "musculosa", "polo"},
			"Buzos":      {"buzo", "hoodie", "sweater", "canguro", "polar"},
			"Camperas":   {"campera", "jacket", "parka", "rompeviento", "chaleco"},
			"Pantalones": {"pantalon", "pantalón", "jean", "jogger", "bermuda", "short", "calza"},
			"Calzado":    {"zapatilla", "sneaker", "bota", "sandalia", "ojota", "zapato"},
			"Accesorios": {"gorra", "gorro", "bufanda", "mochila", "bolso", "cinturon", "cinturón", "medias"},
		},
		genderKeywords: map[domain.Gender][]string{
			domain.GenderWomen: {"mujer", "dama", "women"},
			domain.GenderMen:   {"hombre", "caballero", "men"},
			domain.GenderKid:   {"niño", "niña", "nino", "nina", "kids", "infantil"},
		},
	}
}

// Classify returns the best matching category name ("" when nothing matches) and gender
func (c *CategoryClassifier) Classify(text string) (string, domain.Gender) {
	words := strings.Fields(strings.ToLower(text))

	category, best := "", 0
	for name, keywords := range c.categoryKeywords {
		score := matchCount(words, keywords)
		if score > best || (score == best && score > 0 && name < category) {
			category, best = name, score
		}
	}

	gender, bestGender := domain.GenderUnisex, 0
	for g, keywords := range c.genderKeywords {
		score := matchCount(words, keywords)
		if score > bestGender || (score == bestGender && score > 0 && g < gender) {
			gender, bestGender = g, score
		}
	}
	return category, gender
}

// Fill sets CategoryName and Gender on products that lack them
func (c *CategoryClassifier) Fill(products []domain.Product) {
	for i := range products {
		p := &products[i]
		if p.CategoryName != "" && p.Gender != "" {
			continue
		}
		category, gender := c.Classify(p.Title + " " + p.Description + " " + strings.Join(p.Tags, " "))
		if p.CategoryName == "" {
			p.CategoryName = category
		}
		if p.Gender == "" {
			p.Gender = gender
		}
	}
}

func matchCount(words, keywords []string) int {
	n := 0
	for _, kw := range keywords {
		for _, w := range words {
			if strings.HasPrefix(w, kw) {
				n++
				break
			}
		}
	}
	return n
}
