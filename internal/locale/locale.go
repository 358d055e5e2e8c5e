// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package locale describes the two content locales the dashboard edits:
// a primary locale that owns every document and a secondary locale that is
// attached to existing primary documents as a translation.
package locale

import (
	"fmt"
	"strings"

	"golang.org/x/text/language"
)

// Defaults used when configuration leaves the locales empty.
const (
	DefaultPrimary   = "en"
	DefaultSecondary = "ar-SA"
)

// Locales holds the primary and secondary content locales.
type Locales struct {
	primary       string
	secondary     string
	primaryBase   string
	secondaryBase string
	matcher       language.Matcher
}

// New parses the given locale codes. Codes keep the casing the CMS expects
// (for example "ar-SA"), so they are stored as given after validation.
func New(primary, secondary string) (Locales, error) {
	if primary == "" {
		primary = DefaultPrimary
	}
	if secondary == "" {
		secondary = DefaultSecondary
	}

	pt, err := language.Parse(primary)
	if err != nil {
		return Locales{}, fmt.Errorf("parsing primary locale %q: %w", primary, err)
	}
	st, err := language.Parse(secondary)
	if err != nil {
		return Locales{}, fmt.Errorf("parsing secondary locale %q: %w", secondary, err)
	}

	pb, _ := pt.Base()
	sb, _ := st.Base()
	if pb == sb {
		return Locales{}, fmt.Errorf("primary and secondary locales share language %q", pb.String())
	}

	return Locales{
		primary:       primary,
		secondary:     secondary,
		primaryBase:   pb.String(),
		secondaryBase: sb.String(),
		matcher:       language.NewMatcher([]language.Tag{pt, st}),
	}, nil
}

// MustNew is like New but panics on invalid input. Intended for tests and defaults.
func MustNew(primary, secondary string) Locales {
	l, err := New(primary, secondary)
	if err != nil {
		panic(err)
	}
	return l
}

// Primary returns the primary locale code.
func (l Locales) Primary() string { return l.primary }

// Secondary returns the secondary locale code.
func (l Locales) Secondary() string { return l.secondary }

// All returns both locale codes, primary first.
func (l Locales) All() []string { return []string{l.primary, l.secondary} }

// Resolve maps user input such as "ar", "AR-sa" or "" onto one of the two
// configured codes. Unknown input resolves to the primary locale.
func (l Locales) Resolve(code string) string {
	if l.IsSecondary(code) {
		return l.secondary
	}
	return l.primary
}

// IsSecondary reports whether code denotes the secondary locale. Matching is
// done on the base language so "ar" and "ar-SA" are equivalent.
func (l Locales) IsSecondary(code string) bool {
	code = strings.TrimSpace(code)
	if code == "" {
		return false
	}
	return baseOf(code) == l.secondaryBase
}

// Suffix returns the short language suffix used for draft field keys
// ("en" for the primary locale, "ar" for "ar-SA").
func (l Locales) Suffix(code string) string {
	if l.IsSecondary(code) {
		return l.secondaryBase
	}
	return l.primaryBase
}

// Suffixes returns the draft suffixes, primary first.
func (l Locales) Suffixes() []string { return []string{l.primaryBase, l.secondaryBase} }

// Direction returns the text direction for the locale ("rtl" or "ltr").
func (l Locales) Direction(code string) string {
	switch baseOf(code) {
	case "ar", "fa", "he", "ur":
		return "rtl"
	default:
		return "ltr"
	}
}

// Label returns a human readable name for a locale code.
func (l Locales) Label(code string) string {
	if l.IsSecondary(code) {
		return displayName(l.secondaryBase)
	}
	return displayName(l.primaryBase)
}

// Match picks the best configured locale for an Accept-Language header value.
func (l Locales) Match(acceptLanguage string) string {
	if l.matcher == nil {
		return l.primary
	}
	tags, _, err := language.ParseAcceptLanguage(acceptLanguage)
	if err != nil || len(tags) == 0 {
		return l.primary
	}
	_, idx, conf := l.matcher.Match(tags...)
	if conf == language.No || idx != 1 {
		return l.primary
	}
	return l.secondary
}

func baseOf(code string) string {
	tag, err := language.Parse(code)
	if err != nil {
		return strings.ToLower(strings.SplitN(code, "-", 2)[0])
	}
	base, _ := tag.Base()
	return base.String()
}

func displayName(base string) string {
	switch base {
	case "en":
		return "English"
	case "ar":
		return "العربية"
	default:
		return strings.ToUpper(base)
	}
}
