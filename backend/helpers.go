package backend

import "strings"

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// PrefixPattern returns a LIKE pattern matching every key starting with
// prefix. Use it together with ESCAPE '\'.
func PrefixPattern(prefix string) string {
	return likeEscaper.Replace(prefix) + "%"
}
