package store

import (
	"strings"
	"unicode"

	"github.com/jackc/pgx/v5"
)

// maxListLimit is a defense-in-depth cap on limit values for list queries.
const maxListLimit = 1000

// quoteIdent quotes a single identifier ("ownerId" stays camelCase).
func quoteIdent(name string) string {
	return pgx.Identifier{name}.Sanitize()
}

// col renders alias."column".
func col(alias, name string) string {
	return alias + "." + quoteIdent(name)
}

// TableNames returns the physical table names a model may be stored under:
// the snake_case singular and, when different, its plural.
func TableNames(model string) []string {
	if model == "" {
		return nil
	}

	var b strings.Builder
	runes := []rune(model)

	for i, r := range runes {
		if unicode.IsUpper(r) {
			if i > 0 && unicode.IsLower(runes[i-1]) {
				b.WriteByte('_')
			}

			b.WriteRune(unicode.ToLower(r))

			continue
		}

		b.WriteRune(r)
	}

	snake := b.String()

	head, word := "", snake
	if idx := strings.LastIndexByte(snake, '_'); idx >= 0 {
		head, word = snake[:idx+1], snake[idx+1:]
	}

	plural := head + pluralize(word)
	if plural == snake {
		return []string{snake}
	}

	return []string{snake, plural}
}

func pluralize(w string) string {
	switch {
	case w == "":
		return w
	case strings.HasSuffix(w, "ss"), strings.HasSuffix(w, "us"),
		strings.HasSuffix(w, "x"), strings.HasSuffix(w, "ch"), strings.HasSuffix(w, "sh"):
		return w + "es"
	case strings.HasSuffix(w, "s"):
		return w
	case strings.HasSuffix(w, "y") && len(w) > 1 && !strings.ContainsRune("aeiou", rune(w[len(w)-2])):
		return w[:len(w)-1] + "ies"
	default:
		return w + "s"
	}
}
