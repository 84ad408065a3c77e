// Copyright 2024-2025 George Steel
// SPDX-License-Identifier: MIT

package sqldal

import (
	"fmt"
	"reflect"
	"regexp"
	"slices"
	"strconv"
	"strings"
)

// A Builder assembles a query from SQL variants gated on database type and
// version. Variants are evaluated in registration order against the live
// database; the first match wins and the Default text is the fallback.
type Builder struct {
	variants   []queryVariant
	fallback   string
	hasDefault bool
}

type queryVariant struct {
	sql     string
	matches func(info DatabaseInfo) bool
}

func NewBuilder() *Builder {
	return &Builder{}
}

// ForType adds a variant used for databases of the given type.
func (b *Builder) ForType(dbType string, sql string) *Builder {
	b.variants = append(b.variants, queryVariant{sql: sql, matches: func(info DatabaseInfo) bool {
		return info.Type == dbType
	}})
	return b
}

// ForVersionPattern adds a variant used for databases of the given type
// whose version string matches the regular expression.
func (b *Builder) ForVersionPattern(dbType string, version *regexp.Regexp, sql string) *Builder {
	b.variants = append(b.variants, queryVariant{sql: sql, matches: func(info DatabaseInfo) bool {
		return info.Type == dbType && version.MatchString(info.Version)
	}})
	return b
}

// ForMinimumVersion adds a variant used for databases of the given type
// whose version string, read as point-separated integers, is at least the
// given minimum in every component. A non-numeric component never matches.
func (b *Builder) ForMinimumVersion(dbType string, minimum []int, sql string) *Builder {
	min := slices.Clone(minimum)
	b.variants = append(b.variants, queryVariant{sql: sql, matches: func(info DatabaseInfo) bool {
		return info.Type == dbType && versionAtLeast(info.Version, min)
	}})
	return b
}

// Default supplies the fallback text used when no variant matches.
func (b *Builder) Default(sql string) *Builder {
	b.fallback = sql
	b.hasDefault = true
	return b
}

// Build finishes the query with its declared parameter and column types.
// Every variant text is scanned here so malformed parameters in any variant
// fail at construction.
func (b *Builder) Build(types Types, opts ...QueryOption) (Query, error) {
	d, err := newDecls(types, opts)
	if err != nil {
		return nil, err
	}
	for _, v := range b.variants {
		if _, _, err := ParseNamedQuery(v.sql, d.lists); err != nil {
			return nil, err
		}
	}
	if b.hasDefault {
		if _, _, err := ParseNamedQuery(b.fallback, d.lists); err != nil {
			return nil, err
		}
	}
	return &builtQuery{
		variants:   slices.Clone(b.variants),
		fallback:   b.fallback,
		hasDefault: b.hasDefault,
		decls:      d,
	}, nil
}

// MustBuild is Build panicking on error, for hardcoded query literals.
func (b *Builder) MustBuild(types Types, opts ...QueryOption) Query {
	q, err := b.Build(types, opts...)
	if err != nil {
		panic(err)
	}
	return q
}

func versionAtLeast(version string, minimum []int) bool {
	parts := strings.Split(version, ".")
	for i, min := range minimum {
		if i >= len(parts) {
			if min > 0 {
				return false
			}
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(parts[i]))
		if err != nil {
			return false
		}
		if n < min {
			return false
		}
	}
	return true
}

type builtQuery struct {
	variants   []queryVariant
	fallback   string
	hasDefault bool
	decls
}

func (q *builtQuery) text(info DatabaseInfo) (string, error) {
	for _, v := range q.variants {
		if v.matches(info) {
			return v.sql, nil
		}
	}
	if q.hasDefault {
		return q.fallback, nil
	}
	return "", fmt.Errorf("%w for database %s version %s", ErrNoVariant, info.Type, info.Version)
}

func (q *builtQuery) typeOf(name string) (reflect.Type, error) {
	return q.decls.typeOf(name), nil
}

func (q *builtQuery) listSizes() (map[string]int, error) {
	return q.lists, nil
}

func (q *builtQuery) keyColumns() []string {
	return q.keys
}
