// Copyright 2024 The llar Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package version compares loosely formatted version strings such as
// compiler versions ("16", "7.5.0") and recipe versions ("1.0.0.0").
package version

import (
	"slices"
	"strings"

	"golang.org/x/mod/semver"
)

// Compare orders a and b segment by segment. Runs of digits compare
// numerically; everything else compares by a character rank where '~'
// sorts before the end of the string and letters before punctuation.
// It returns -1, 0 or +1.
func Compare(a, b string) int {
	for a != "" || b != "" {
		var ta, tb string
		ta, a = cutText(a)
		tb, b = cutText(b)
		if c := compareText(ta, tb); c != 0 {
			return c
		}
		var na, nb string
		na, a = cutDigits(a)
		nb, b = cutDigits(b)
		if c := compareNumber(na, nb); c != 0 {
			return c
		}
	}
	return 0
}

// Less reports whether a sorts strictly before b.
func Less(a, b string) bool {
	return Compare(a, b) < 0
}

// AtLeast reports whether ver satisfies the minimum min. Trailing zero
// segments are ignored, so "16" satisfies "16.0".
func AtLeast(ver, min string) bool {
	return Compare(trimZeros(ver), trimZeros(min)) >= 0
}

// trimZeros drops trailing ".0" segments.
func trimZeros(v string) string {
	for {
		i := strings.LastIndexByte(v, '.')
		if i < 0 || i == len(v)-1 || strings.Trim(v[i+1:], "0") != "" {
			return v
		}
		v = v[:i]
	}
}

// Latest returns the greatest version in vers, or "" when vers is empty.
// Versions that are valid semantic versions (with or without a leading
// "v") are ordered by semver; the rest fall back to Compare.
func Latest(vers []string) string {
	if len(vers) == 0 {
		return ""
	}
	return slices.MaxFunc(vers, compareRelease)
}

// Sort orders vers ascending in place.
func Sort(vers []string) {
	slices.SortFunc(vers, compareRelease)
}

func compareRelease(a, b string) int {
	sa, sb := canonical(a), canonical(b)
	if semver.IsValid(sa) && semver.IsValid(sb) {
		if c := semver.Compare(sa, sb); c != 0 {
			return c
		}
	}
	return Compare(a, b)
}

func canonical(v string) string {
	if strings.HasPrefix(v, "v") {
		return v
	}
	return "v" + v
}

func isDigit(c byte) bool {
	return '0' <= c && c <= '9'
}

func cutText(s string) (text, rest string) {
	i := 0
	for i < len(s) && !isDigit(s[i]) {
		i++
	}
	return s[:i], s[i:]
}

func cutDigits(s string) (digits, rest string) {
	i := 0
	for i < len(s) && isDigit(s[i]) {
		i++
	}
	return s[:i], s[i:]
}

// rank orders non-digit characters; 0 stands for "end of text".
func rank(s string, i int) int {
	if i >= len(s) {
		return 0
	}
	c := s[i]
	switch {
	case c == '~':
		return -1
	case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z':
		return int(c)
	}
	return int(c) + 256
}

func compareText(a, b string) int {
	for i := 0; i < len(a) || i < len(b); i++ {
		if ra, rb := rank(a, i), rank(b, i); ra != rb {
			return sign(ra - rb)
		}
	}
	return 0
}

func compareNumber(a, b string) int {
	a = strings.TrimLeft(a, "0")
	b = strings.TrimLeft(b, "0")
	if len(a) != len(b) {
		return sign(len(a) - len(b))
	}
	return strings.Compare(a, b)
}

func sign(n int) int {
	switch {
	case n < 0:
		return -1
	case n > 0:
		return 1
	}
	return 0
}
