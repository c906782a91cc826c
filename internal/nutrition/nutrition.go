// Package nutrition estimates calories and macros for a food portion from a
// fixed per-100g table. It never touches the network and never fails.
package nutrition

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

type Result struct {
	Calories  int  `json:"calories"`
	Protein   int  `json:"protein"`
	Carbs     int  `json:"carbs"`
	Fats      int  `json:"fats"`
	Validated bool `json:"validated"`
}

// per100g holds calories and macro grams for 100 grams of a food.
type per100g struct {
	Calories float64
	Protein  float64
	Carbs    float64
	Fats     float64
}

type foodProfile struct {
	Keyword string
	Values  per100g
}

// Order matters: the first keyword contained in the food name wins, so
// specific names sit above the generic ones they contain.
var foodTable = []foodProfile{
	// proteins
	{"chicken breast", per100g{165, 31, 0, 3.6}},
	{"chicken", per100g{239, 27, 0, 14}},
	{"turkey", per100g{135, 30, 0, 1}},
	{"beef", per100g{250, 26, 0, 15}},
	{"steak", per100g{271, 25, 0, 19}},
	{"pork", per100g{242, 27, 0, 14}},
	{"salmon", per100g{208, 20, 0, 13}},
	{"tuna", per100g{132, 28, 0, 1}},
	{"shrimp", per100g{99, 24, 0.2, 0.3}},
	{"fish", per100g{206, 22, 0, 12}},
	{"eggplant", per100g{25, 1, 5.9, 0.2}},
	{"egg white", per100g{52, 11, 0.7, 0.2}},
	{"egg", per100g{155, 13, 1.1, 11}},
	{"tofu", per100g{76, 8, 1.9, 4.8}},
	{"whey", per100g{400, 80, 8, 6}},
	{"protein powder", per100g{400, 80, 8, 6}},
	{"lentil", per100g{116, 9, 20, 0.4}},
	{"chickpea", per100g{164, 8.9, 27, 2.6}},
	{"bean", per100g{127, 8.7, 22.8, 0.5}},

	// carbs and starches
	{"brown rice", per100g{123, 2.7, 26, 1}},
	{"rice", per100g{130, 2.7, 28, 0.3}},
	{"quinoa", per100g{120, 4.4, 21, 1.9}},
	{"goat cheese", per100g{364, 22, 0.1, 30}},
	{"oatmeal", per100g{71, 2.5, 12, 1.5}},
	{"oat", per100g{389, 16.9, 66, 6.9}},
	{"bread", per100g{265, 9, 49, 3.2}},
	{"toast", per100g{313, 11, 56, 4.3}},
	{"bagel", per100g{257, 10, 50, 1.6}},
	{"tortilla", per100g{310, 8, 52, 8}},
	{"pasta", per100g{131, 5, 25, 1.1}},
	{"noodle", per100g{138, 4.5, 25, 2.1}},
	{"sweet potato", per100g{86, 1.6, 20, 0.1}},
	{"potato", per100g{77, 2, 17, 0.1}},
	{"cereal", per100g{379, 7, 84, 2}},
	{"granola", per100g{471, 10, 64, 20}},

	// dairy
	{"greek yogurt", per100g{59, 10, 3.6, 0.4}},
	{"yogurt", per100g{61, 3.5, 4.7, 3.3}},
	{"cottage cheese", per100g{98, 11, 3.4, 4.3}},
	{"cheese", per100g{402, 25, 1.3, 33}},
	{"milk", per100g{42, 3.4, 5, 1}},

	// fats and nuts
	{"peanut butter", per100g{588, 25, 20, 50}},
	{"almond butter", per100g{614, 21, 19, 56}},
	{"olive oil", per100g{884, 0, 0, 100}},
	{"oil", per100g{884, 0, 0, 100}},
	{"butternut", per100g{45, 1, 11.7, 0.1}},
	{"squash", per100g{34, 1.2, 6.7, 0.2}},
	{"butter", per100g{717, 0.9, 0.1, 81}},
	{"avocado", per100g{160, 2, 8.5, 14.7}},
	{"almond", per100g{579, 21, 22, 50}},
	{"walnut", per100g{654, 15, 14, 65}},
	{"peanut", per100g{567, 26, 16, 49}},
	{"hazelnut", per100g{628, 15, 17, 61}},
	{"cashew", per100g{553, 18, 30, 44}},
	{"coconut", per100g{354, 3.3, 15, 33}},
	{"nut", per100g{607, 20, 21, 54}},
	{"seed", per100g{534, 18, 29, 42}},

	// vegetables
	{"broccoli", per100g{34, 2.8, 7, 0.4}},
	{"spinach", per100g{23, 2.9, 3.6, 0.4}},
	{"kale", per100g{49, 4.3, 9, 0.9}},
	{"lettuce", per100g{15, 1.4, 2.9, 0.2}},
	{"salad", per100g{17, 1.2, 3.3, 0.2}},
	{"carrot", per100g{41, 0.9, 10, 0.2}},
	{"tomato", per100g{18, 0.9, 3.9, 0.2}},
	{"pepper", per100g{31, 1, 6, 0.3}},
	{"cucumber", per100g{15, 0.7, 3.6, 0.1}},
	{"zucchini", per100g{17, 1.2, 3.1, 0.3}},
	{"asparagus", per100g{20, 2.2, 3.9, 0.1}},
	{"vegetable", per100g{35, 2, 7, 0.3}},

	// fruits
	{"banana", per100g{89, 1.1, 23, 0.3}},
	{"pineapple", per100g{50, 0.5, 13, 0.1}},
	{"apple", per100g{52, 0.3, 14, 0.2}},
	{"orange", per100g{47, 0.9, 12, 0.1}},
	{"berr", per100g{57, 0.7, 14, 0.3}},
	{"grapefruit", per100g{42, 0.8, 10.7, 0.1}},
	{"grape", per100g{69, 0.7, 18, 0.2}},
	{"mango", per100g{60, 0.8, 15, 0.4}},
	{"fruit", per100g{60, 0.8, 15, 0.2}},
}

// wordStart keywords only match at the start of a word, so "boiled" is
// not oil and "doughnut" is not a nut.
var wordStart = map[string]bool{
	"oil": true,
	"oat": true,
	"nut": true,
}

var defaultProfile = per100g{150, 6, 20, 5}

const defaultGrams = 100

// maxGrams caps a parsed portion. Larger quantities fall back to the
// default portion.
const maxGrams = 5000

var unitGrams = []struct {
	Prefix string
	Grams  float64
}{
	{"tablespoon", 15},
	{"tbsp", 15},
	{"teaspoon", 5},
	{"tsp", 5},
	{"cup", 240},
}

var quantityPattern = regexp.MustCompile(`^(\d+(?:\.\d+)?)(?:\s*/\s*(\d+(?:\.\d+)?))?`)

// Estimate returns a best-effort estimate for the portion of the named food.
// Results are deterministic and always marked unvalidated.
func Estimate(foodName string, portion string) Result {
	values := lookup(foodName)
	quantity, unit, hasUnit := parsePortion(portion)

	if hasUnit {
		perUnit := scale(values, unit/100)
		return Result{
			Calories: roundInt(quantity * float64(perUnit.Calories)),
			Protein:  roundInt(quantity * float64(perUnit.Protein)),
			Carbs:    roundInt(quantity * float64(perUnit.Carbs)),
			Fats:     roundInt(quantity * float64(perUnit.Fats)),
		}
	}
	return scale(values, quantity/100)
}

func matches(name string, keyword string) bool {
	if !wordStart[keyword] {
		return strings.Contains(name, keyword)
	}
	for offset := 0; ; {
		index := strings.Index(name[offset:], keyword)
		if index < 0 {
			return false
		}
		index += offset
		if previous, _ := utf8.DecodeLastRuneInString(name[:index]); index == 0 || !unicode.IsLetter(previous) {
			return true
		}
		offset = index + 1
	}
}

func lookup(foodName string) per100g {
	name := strings.ToLower(foodName)
	for _, food := range foodTable {
		if matches(name, food.Keyword) {
			return food.Values
		}
	}
	return defaultProfile
}

// parsePortion returns the quantity and, for household measures, the grams
// of one unit. Without a unit the quantity is already in grams.
func parsePortion(portion string) (quantity float64, gramsPerUnit float64, hasUnit bool) {
	text := strings.ToLower(strings.TrimSpace(portion))

	quantity, rest, parsed := parseQuantity(text)
	grams, unitFound := findUnit(rest)

	switch {
	case unitFound && parsed && quantity*grams <= maxGrams:
		return quantity, grams, true
	case unitFound && !parsed:
		return 1, grams, true
	case parsed && !unitFound && quantity <= maxGrams:
		return quantity, 0, false
	}
	return defaultGrams, 0, false
}

func parseQuantity(text string) (float64, string, bool) {
	match := quantityPattern.FindStringSubmatch(text)
	if match == nil {
		return 0, text, false
	}
	value, err := strconv.ParseFloat(match[1], 64)
	if err != nil {
		return 0, text, false
	}
	if match[2] != "" {
		denominator, err := strconv.ParseFloat(match[2], 64)
		if err != nil || denominator == 0 {
			return 0, text, false
		}
		value /= denominator
	}
	return value, strings.TrimSpace(text[len(match[0]):]), true
}

func findUnit(text string) (float64, bool) {
	for _, word := range strings.FieldsFunc(text, func(r rune) bool {
		return r == ' ' || r == '(' || r == ')' || r == ',' || r == '.'
	}) {
		for _, unit := range unitGrams {
			if strings.HasPrefix(word, unit.Prefix) {
				return unit.Grams, true
			}
		}
	}
	return 0, false
}

func scale(values per100g, factor float64) Result {
	return Result{
		Calories: roundInt(values.Calories * factor),
		Protein:  roundInt(values.Protein * factor),
		Carbs:    roundInt(values.Carbs * factor),
		Fats:     roundInt(values.Fats * factor),
	}
}

func roundInt(value float64) int {
	return int(math.Round(value))
}
