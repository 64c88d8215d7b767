package store

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/GemGreenPokemon/SMP-Mentor-Mentee-Mobile-App/internal/apperr"
	"golang.org/x/text/unicode/norm"
)

const maxIDProbes = 1000

var reUnderscores = regexp.MustCompile(`_+`)

// Slugify turns a display name into a directory id. Accents are folded,
// anything other than ASCII letters, digits, whitespace, hyphens and
// apostrophes is dropped, separators become underscores.
//
//	"Toby Sunset Jackson" -> "Toby_Sunset_Jackson"
//	"Mary-Jane O'Neil"    -> "Mary_Jane_O_Neil"
func Slugify(name string) string {
	var b strings.Builder
	for _, r := range norm.NFD.String(strings.TrimSpace(name)) {
		switch {
		case unicode.Is(unicode.Mn, r):
			continue
		case r < utf8.RuneSelf && (unicode.IsLetter(r) || unicode.IsDigit(r)):
			b.WriteRune(r)
		case r == '-' || r == '\'' || unicode.IsSpace(r):
			b.WriteByte('_')
		}
	}
	return strings.Trim(reUnderscores.ReplaceAllString(b.String(), "_"), "_")
}

// UniqueID slugifies baseName and appends _2, _3, ... until the id is free
// in this collection.
func (c *Collection) UniqueID(ctx context.Context, baseName string) (string, error) {
	base := Slugify(baseName)
	if base == "" {
		return "", apperr.New(apperr.InvalidArgument, "name resulted in an empty id")
	}

	candidate := base
	for n := 2; n < maxIDProbes; n++ {
		taken, err := c.Exists(ctx, candidate)
		if err != nil {
			return "", err
		}
		if !taken {
			return candidate, nil
		}
		candidate = fmt.Sprintf("%s_%d", base, n)
	}
	return "", fmt.Errorf("no free id for %q in %s", base, c.Path())
}
