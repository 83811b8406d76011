package rounds

import (
	"fmt"
	"slices"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

type Tier string

const (
	Easy   Tier = "easy"
	Medium Tier = "medium"
	Hard   Tier = "hard"
)

func ParseTier(s string) (Tier, error) {
	switch t := Tier(strings.ToLower(strings.TrimSpace(s))); t {
	case Easy, Medium, Hard:
		return t, nil
	case "":
		return Easy, nil
	}
	return "", fmt.Errorf("unknown difficulty %q", s)
}

type Country struct {
	Name        string
	Tier        Tier
	Folder      string
	TotalImages int
	Names       []string // accepted answers
}

// Accepts reports whether a typed answer names this country.
func (c Country) Accepts(answer string) bool {
	got := Normalize(answer)
	if got == "" {
		return false
	}
	return slices.ContainsFunc(c.Names, func(n string) bool { return Normalize(n) == got })
}

// Catalog keeps countries in insertion order; both peers must build it the
// same way for round generation to agree.
type Catalog struct {
	countries []Country
	byName    map[string]int
}

func NewCatalog(countries ...Country) *Catalog {
	c := &Catalog{byName: make(map[string]int, len(countries))}
	for _, country := range countries {
		if i, ok := c.byName[country.Name]; ok {
			c.countries[i] = country
			continue
		}
		c.byName[country.Name] = len(c.countries)
		c.countries = append(c.countries, country)
	}
	return c
}

func (c *Catalog) Lookup(name string) (Country, bool) {
	i, ok := c.byName[name]
	if !ok {
		return Country{}, false
	}
	return c.countries[i], true
}

func (c *Catalog) ByTier(t Tier) []Country {
	var out []Country
	for _, country := range c.countries {
		if country.Tier == t {
			out = append(out, country)
		}
	}
	return out
}

var stripMarks = runes.Remove(runes.In(unicode.Mn))

// Normalize lower-cases, trims and strips diacritics.
func Normalize(s string) string {
	t := transform.Chain(norm.NFD, stripMarks, norm.NFC)
	out, _, err := transform.String(t, strings.ToLower(strings.TrimSpace(s)))
	if err != nil {
		return strings.ToLower(strings.TrimSpace(s))
	}
	return out
}
