/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package thread

import (
	"regexp"
	"unicode/utf8"

	"github.com/rivo/uniseg"
	"golang.org/x/text/unicode/norm"
)

// DefaultMaxWeight is the weighted length limit of a single post.
const DefaultMaxWeight = 280

// Every link counts as a shortened URL regardless of its length.
const urlWeight = 23

var urlPattern = regexp.MustCompile(`https?://\S+`)

// Code point ranges that weigh 1. Everything else weighs 2.
var lightRanges = [][2]rune{
	{0, 4351},
	{8192, 8205},
	{8208, 8223},
	{8242, 8247},
}

// TweetWeight returns a predicate enforcing the weighted post length:
// light code points count 1, others 2, emoji clusters 2 and links 23.
func TweetWeight(maxWeight int) Predicate {
	if maxWeight <= 0 {
		maxWeight = DefaultMaxWeight
	}
	return func(candidate string) Verdict {
		total, prefix := Weigh(candidate, maxWeight)
		return Verdict{Valid: total <= maxWeight, ValidPrefix: prefix}
	}
}

// Weigh returns the weighted length of text and the number of leading runes
// that fit within maxWeight.
func Weigh(text string, maxWeight int) (total, prefix int) {
	fits := true
	add := func(weight, runes int) {
		total += weight
		if fits && total <= maxWeight {
			prefix += runes
		} else {
			fits = false
		}
	}

	pos := 0
	for _, loc := range urlPattern.FindAllStringIndex(text, -1) {
		weighClusters(text[pos:loc[0]], add)
		add(urlWeight, utf8.RuneCountInString(text[loc[0]:loc[1]]))
		pos = loc[1]
	}
	weighClusters(text[pos:], add)
	return total, prefix
}

func weighClusters(s string, add func(weight, runes int)) {
	g := uniseg.NewGraphemes(s)
	for g.Next() {
		cluster := g.Runes()
		add(clusterWeight(cluster), len(cluster))
	}
}

func clusterWeight(cluster []rune) int {
	normalized := []rune(norm.NFC.String(string(cluster)))
	if len(normalized) == 0 {
		return 0
	}
	if isEmoji(normalized) {
		return 2
	}
	weight := 0
	for _, r := range normalized {
		weight += runeWeight(r)
	}
	return weight
}

func runeWeight(r rune) int {
	for _, rng := range lightRanges {
		if r >= rng[0] && r <= rng[1] {
			return 1
		}
	}
	return 2
}

func isEmoji(cluster []rune) bool {
	for _, r := range cluster {
		switch {
		case r == 0x200D, r == 0xFE0F:
			return true
		case r >= 0x1F000 && r <= 0x1FAFF:
			return true
		case r >= 0x2600 && r <= 0x27BF:
			return true
		}
	}
	return false
}

// Fixed returns a predicate that allows at most n runes.
func Fixed(n int) Predicate {
	return func(candidate string) Verdict {
		count := utf8.RuneCountInString(candidate)
		if count <= n {
			return Verdict{Valid: true, ValidPrefix: count}
		}
		return Verdict{Valid: false, ValidPrefix: n}
	}
}
