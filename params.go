// Copyright 2024-2025 George Steel
// SPDX-License-Identifier: MIT

package sqldal

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

// escapedRange is a lexical region in which named parameters are not
// recognized. SQL escapes the delimiter inside such a region by doubling it,
// so a doubled end token closes the range and the next scan step immediately
// reopens it: 'abc''def' scans as two adjacent strings.
type escapedRange struct {
	start string
	end   string
}

// Tried in priority order. At most one range is open at any scan position.
var escapedRanges = []escapedRange{
	{start: "--", end: "\n"},
	{start: "'", end: "'"},
	{start: `"`, end: `"`},
	{start: "[", end: "]"},
	{start: "`", end: "`"},
}

func isParameterStart(r rune) bool {
	return r == '_' || unicode.IsLetter(r)
}

func isParameterPart(r rune) bool {
	return isParameterStart(r) || unicode.IsDigit(r)
}

// listElement names the synthetic scalar parameter holding element i of a
// list parameter.
func listElement(name string, i int) string {
	return name + "#" + strconv.Itoa(i)
}

// ParseNamedQuery rewrites :name parameters in a query to positional ?
// placeholders, mapping each name to the zero-based placeholder indices it
// occupies. Parameters inside string literals, quoted identifiers and line
// comments are left untouched. A name declared in lists expands to one
// placeholder per element, comma separated, recorded under synthetic
// per-element names.
//
// A literal ? outside an escaped range is an error: only named parameters
// may appear in source text. A : not followed by an identifier start
// character is also an error.
//
// For example
//
//	SELECT name FROM person WHERE name = :name AND (mother = :m OR father = :m)
//
// becomes
//
//	SELECT name FROM person WHERE name = ? AND (mother = ? OR father = ?)
//
// with indices {name: [0], m: [1, 2]}.
func ParseNamedQuery(query string, lists map[string]int) (string, map[string][]int, error) {
	var sql strings.Builder
	sql.Grow(len(query))
	indexes := make(map[string][]int)
	var open *escapedRange
	next := 0

	for i, l := 0, len(query); i < l; {
		if open != nil {
			// Inside an escaped range only its end token is significant.
			if strings.HasPrefix(query[i:], open.end) {
				sql.WriteString(open.end)
				i += len(open.end)
				open = nil
			} else {
				sql.WriteByte(query[i])
				i++
			}
			continue
		}

		if r := rangeStartingAt(query[i:]); r != nil {
			open = r
			sql.WriteString(r.start)
			i += len(r.start)
			continue
		}

		c := query[i]

		if c == '?' {
			return "", nil, fmt.Errorf("illegal character '?' at position %d: only named parameters are allowed", i)
		}

		if c == ':' {
			i++
			if i == l {
				return "", nil, fmt.Errorf("empty parameter at query end")
			}
			r, size := utf8.DecodeRuneInString(query[i:])
			if !isParameterStart(r) {
				return "", nil, fmt.Errorf("character %q is not a valid parameter start (position %d)", r, i)
			}
			j := i + size
			for j < l {
				r, size := utf8.DecodeRuneInString(query[j:])
				if !isParameterPart(r) {
					break
				}
				j += size
			}
			name := query[i:j]
			i = j

			if size, ok := lists[name]; ok {
				for e := 0; e < size; e++ {
					if e > 0 {
						sql.WriteString(", ")
					}
					element := listElement(name, e)
					indexes[element] = append(indexes[element], next)
					next++
					sql.WriteByte('?')
				}
				continue
			}

			indexes[name] = append(indexes[name], next)
			next++
			sql.WriteByte('?')
			continue
		}

		sql.WriteByte(c)
		i++
	}

	return sql.String(), indexes, nil
}

func rangeStartingAt(rest string) *escapedRange {
	for i := range escapedRanges {
		if strings.HasPrefix(rest, escapedRanges[i].start) {
			return &escapedRanges[i]
		}
	}
	return nil
}
