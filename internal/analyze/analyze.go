// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package analyze derives prejudice categories, query keywords, and a legal
// strategy from an incident description using static word lists. It is plain
// substring matching over normalized text; the tags it produces are only
// used to build query parameters and to index the static compensation
// tables.
package analyze

import (
	"fmt"
	"sort"
	"strings"
	"unicode"

	"github.com/olivia-legal/olivia/pkg/types"
)

// maxKeywords caps how many extracted terms feed the upstream queries.
const maxKeywords = 8

// minTokenLen filters out articles and other short function words.
const minTokenLen = 4

// categoryKeywords maps each prejudice category to the terms that signal it.
type categoryKeywords struct {
	category string
	words    []string
}

// Word lists ordered so category output is deterministic.
var prejudiceCategories = []categoryKeywords{
	{"gravite_lesions", []string{
		"fracture", "traumatisme", "commotion", "luxation", "entorse",
		"dechirure", "rupture", "hematome", "plaie", "brulure", "cicatrice",
		"sequelle",
	}},
	{"soins_intensifs", []string{
		"chirurgie", "operation", "intervention", "hospitalisation",
		"reanimation", "kinesitherapie", "reeducation", "prothese",
		"ambulance",
	}},
	{"impact_vie_quotidienne", []string{
		"tierce personne", "accompagnement", "dependance", "handicap",
		"incapacite", "invalidite", "amenagement", "autonomie",
	}},
	{"impact_professionnel", []string{
		"arret de travail", "arret travail", "reclassement", "reconversion",
		"licenciement", "perte emploi", "inaptitude",
	}},
	{"souffrances_psychologiques", []string{
		"depression", "anxiete", "stress", "insomnie", "phobie",
		"cauchemars", "angoisse", "psychologue", "psychiatre", "therapie",
	}},
}

// strategyByKeyword maps signal words to the legal domain handling them.
var strategyByKeyword = map[string]string{
	"travail":      "Droit du travail",
	"licenciement": "Droit du travail",
	"employeur":    "Droit du travail",
	"contrat":      "Droit civil",
	"accident":     "Droit civil",
	"assurance":    "Droit civil",
	"entreprise":   "Droit commercial",
	"societe":      "Droit commercial",
	"mairie":       "Droit administratif",
	"prefecture":   "Droit administratif",
	"plainte":      "Droit pénal",
	"agression":    "Droit pénal",
}

const defaultStrategy = "Auto-détection"

// Normalize lowercases the text and collapses runs of whitespace. Two
// descriptions differing only in spacing or case normalize identically, which
// is what keeps cache fingerprints stable.
func Normalize(text string) string {
	return strings.Join(strings.Fields(strings.ToLower(text)), " ")
}

// Analyze reads an incident description and returns keywords, the detected
// legal strategy, and the matched prejudice categories.
func Analyze(description string) types.Analysis {
	text := stripAccents(Normalize(description))

	keywords := extractKeywords(text)
	strategy := detectStrategy(keywords)
	categories := detectCategories(text)

	return types.Analysis{
		Keywords:   keywords,
		Strategy:   strategy,
		Categories: categories,
		Summary:    summarize(description, strategy),
	}
}

// extractKeywords returns up to maxKeywords distinct tokens of useful length,
// in order of first appearance.
func extractKeywords(text string) []string {
	var keywords []string
	seen := make(map[string]bool)
	for _, tok := range strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && r != '-'
	}) {
		tok = strings.Trim(tok, "-")
		if len([]rune(tok)) < minTokenLen || seen[tok] {
			continue
		}
		seen[tok] = true
		keywords = append(keywords, tok)
		if len(keywords) == maxKeywords {
			break
		}
	}
	return keywords
}

func detectStrategy(keywords []string) string {
	for _, kw := range keywords {
		if domain, ok := strategyByKeyword[kw]; ok {
			return domain
		}
	}
	return defaultStrategy
}

func detectCategories(text string) []types.CategoryHit {
	var hits []types.CategoryHit
	for _, ck := range prejudiceCategories {
		matches := 0
		for _, w := range ck.words {
			matches += strings.Count(text, w)
		}
		if matches > 0 {
			hits = append(hits, types.CategoryHit{Category: ck.category, Matches: matches})
		}
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Matches > hits[j].Matches })
	return hits
}

func summarize(description, strategy string) string {
	d := strings.TrimSpace(description)
	if len([]rune(d)) > 120 {
		d = string([]rune(d)[:120]) + "..."
	}
	return fmt.Sprintf("Stratégie: %s. Situation: %s", strategy, d)
}

// stripAccents folds the accented letters common in French descriptions so
// the unaccented word lists match text written either way.
func stripAccents(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if folded, ok := accentFold[r]; ok {
			b.WriteRune(folded)
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

var accentFold = map[rune]rune{
	'à': 'a', 'â': 'a', 'ä': 'a',
	'ç': 'c',
	'é': 'e', 'è': 'e', 'ê': 'e', 'ë': 'e',
	'î': 'i', 'ï': 'i',
	'ô': 'o', 'ö': 'o',
	'û': 'u', 'ù': 'u', 'ü': 'u',
	'ÿ': 'y',
}
