package registry

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Metrics are the key figures read from a filed annual account
type Metrics struct {
	Assets      decimal.NullDecimal `json:"assets"`
	Equity      decimal.NullDecimal `json:"equity"`
	Liabilities decimal.NullDecimal `json:"liabilities"`
	Revenue     decimal.NullDecimal `json:"revenue"`
	EBIT        decimal.NullDecimal `json:"ebit"`
	NetResult   decimal.NullDecimal `json:"net_result"`
}

// NumberLeaf is a numeric value in a JSON document with its dotted path
type NumberLeaf struct {
	Path  string
	Value decimal.Decimal
}

// FindNumbers returns every numeric leaf of payload in document order.
// Object keys extend the path with ".key", array items with "[i]".
func FindNumbers(payload []byte) ([]NumberLeaf, error) {
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()

	var leaves []NumberLeaf
	var walk func(path string) error
	walk = func(path string) error {
		tok, err := dec.Token()
		if err != nil {
			return err
		}

		switch v := tok.(type) {
		case json.Delim:
			switch v {
			case '{':
				for dec.More() {
					keyTok, err := dec.Token()
					if err != nil {
						return err
					}
					key, _ := keyTok.(string)
					next := key
					if path != "" {
						next = path + "." + key
					}
					if err := walk(next); err != nil {
						return err
					}
				}
			case '[':
				for i := 0; dec.More(); i++ {
					if err := walk(fmt.Sprintf("%s[%d]", path, i)); err != nil {
						return err
					}
				}
			}
			_, err = dec.Token()
			return err
		case json.Number:
			if value, err := decimal.NewFromString(v.String()); err == nil {
				leaves = append(leaves, NumberLeaf{Path: path, Value: value})
			}
		}
		return nil
	}

	if len(bytes.TrimSpace(payload)) == 0 {
		return nil, nil
	}
	if err := walk(""); err != nil {
		return nil, err
	}
	return leaves, nil
}

// lastKey returns the final key of a dotted path without array indexes
func lastKey(path string) string {
	parts := strings.Split(path, ".")
	for i := len(parts) - 1; i >= 0; i-- {
		part := parts[i]
		if idx := strings.Index(part, "["); idx >= 0 {
			part = part[:idx]
		}
		if part = strings.TrimSpace(part); part != "" {
			return part
		}
	}
	return ""
}

// FindByKey returns the first leaf whose last key equals one of keys, tried
// in order, and otherwise the first leaf whose path contains one of them.
// Matching ignores case. Paths containing any of exclude are skipped.
func FindByKey(leaves []NumberLeaf, keys []string, exclude ...string) (NumberLeaf, bool) {
	excluded := func(path string) bool {
		lower := strings.ToLower(path)
		for _, bad := range exclude {
			if strings.Contains(lower, strings.ToLower(bad)) {
				return true
			}
		}
		return false
	}

	for _, key := range keys {
		for _, leaf := range leaves {
			if strings.EqualFold(lastKey(leaf.Path), key) && !excluded(leaf.Path) {
				return leaf, true
			}
		}
	}
	for _, key := range keys {
		lowerKey := strings.ToLower(key)
		for _, leaf := range leaves {
			if strings.Contains(strings.ToLower(leaf.Path), lowerKey) && !excluded(leaf.Path) {
				return leaf, true
			}
		}
	}
	return NumberLeaf{}, false
}

func nullable(leaf NumberLeaf, ok bool) decimal.NullDecimal {
	if !ok {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(leaf.Value)
}

// MapMetrics extracts the key figures from an accounts payload. Figures
// that cannot be found stay invalid.
func MapMetrics(payload []byte) (Metrics, error) {
	leaves, err := FindNumbers(payload)
	if err != nil {
		return Metrics{}, fmt.Errorf("failed to read accounts payload: %w", err)
	}

	var m Metrics

	assets, ok := FindByKey(leaves, []string{"sumEiendeler"})
	if !ok {
		assets, ok = FindByKey(leaves, []string{"sumEgenkapitalOgGjeld"})
	}
	m.Assets = nullable(assets, ok)

	equity, ok := FindByKey(leaves, []string{"sumEgenkapital"}, "EgenkapitalOgGjeld")
	if !ok {
		equity, ok = FindByKey(leaves, []string{"sumEgenkapital"})
	}
	m.Equity = nullable(equity, ok)

	m.Liabilities = nullable(FindByKey(leaves, []string{"sumGjeld"}))
	m.Revenue = nullable(FindByKey(leaves, []string{"driftsinntekter", "sumDriftsinntekter", "salgsinntekter"}))
	m.EBIT = nullable(FindByKey(leaves, []string{"driftsresultat", "ebit", "driftsresultatFoerFinans"}))
	m.NetResult = nullable(FindByKey(leaves, []string{"arsresultat", "resultat", "resultatEtterSkatt"}))

	return m, nil
}
