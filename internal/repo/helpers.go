package repo

import (
	"fmt"
	"strings"
)

// setClause accumulates SET fragments for a dynamic UPDATE. Args are numbered
// after the fixed positional args the caller reserves up front.
type setClause struct {
	frags []string
	args  []any
	next  int
}

func newSetClause(firstArg int) *setClause {
	return &setClause{next: firstArg}
}

func (c *setClause) add(column string, value any) {
	c.frags = append(c.frags, fmt.Sprintf("%s = $%d", column, c.next))
	c.args = append(c.args, value)
	c.next++
}

func (c *setClause) empty() bool {
	return len(c.frags) == 0
}

func (c *setClause) sql() string {
	return strings.Join(c.frags, ", ")
}

// ilikePattern wraps a search term for a contains match, escaping the LIKE
// metacharacters so user input cannot widen the pattern.
func ilikePattern(term string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(term) + "%"
}
