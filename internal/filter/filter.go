// Package filter builds listing filters from validated conditions instead of
// concatenated user input. A Filter serializes either to the expression
// language of the remote API or to a parameterized Postgres predicate.
package filter

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode"
)

type Op string

const (
	OpEq       Op = "="
	OpLike     Op = "like"
	OpContains Op = "contains"
	OpIn       Op = "in"
)

var (
	ErrUnknownField    = errors.New("unknown filter field")
	ErrInvalidField    = errors.New("invalid filter field")
	ErrInvalidOperator = errors.New("invalid filter operator")
	ErrInvalidValue    = errors.New("invalid filter value")
)

var fieldPattern = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

type Condition struct {
	Field string
	Op    Op
	// Value is a string, or a []string for OpIn.
	Value any
}

func Eq(field, value string) Condition {
	return Condition{Field: field, Op: OpEq, Value: value}
}

func Like(field, value string) Condition {
	return Condition{Field: field, Op: OpLike, Value: value}
}

func Contains(field, value string) Condition {
	return Condition{Field: field, Op: OpContains, Value: value}
}

func In(field string, values ...string) Condition {
	return Condition{Field: field, Op: OpIn, Value: values}
}

// Filter is a conjunction of clauses; each clause is a disjunction of
// conditions.
type Filter struct {
	allowed map[string]struct{}
	clauses [][]Condition
}

// New returns an empty filter restricted to the given fields.
func New(allowed ...string) *Filter {
	f := &Filter{allowed: make(map[string]struct{}, len(allowed))}
	for _, name := range allowed {
		f.allowed[name] = struct{}{}
	}

	return f
}

// Where adds one clause matching any of conds.
func (f *Filter) Where(conds ...Condition) *Filter {
	if len(conds) == 0 {
		return f
	}

	f.clauses = append(f.clauses, append([]Condition(nil), conds...))
	return f
}

func (f *Filter) Empty() bool {
	return len(f.clauses) == 0
}

func (f *Filter) Validate() error {
	for _, clause := range f.clauses {
		for _, c := range clause {
			if err := f.validate(c); err != nil {
				return err
			}
		}
	}

	return nil
}

func (f *Filter) validate(c Condition) error {
	if !fieldPattern.MatchString(c.Field) {
		return fmt.Errorf("%w: %q", ErrInvalidField, c.Field)
	}

	if _, ok := f.allowed[c.Field]; !ok {
		return fmt.Errorf("%w: %q", ErrUnknownField, c.Field)
	}

	switch c.Op {
	case OpEq, OpLike, OpContains:
		v, ok := c.Value.(string)
		if !ok {
			return fmt.Errorf("%w: %s expects a string", ErrInvalidValue, c.Field)
		}
		return checkText(c.Field, v)
	case OpIn:
		vs, ok := c.Value.([]string)
		if !ok || len(vs) == 0 {
			return fmt.Errorf("%w: %s expects a non-empty list", ErrInvalidValue, c.Field)
		}
		for _, v := range vs {
			if err := checkText(c.Field, v); err != nil {
				return err
			}
		}
		return nil
	}

	return fmt.Errorf("%w: %q", ErrInvalidOperator, c.Op)
}

func checkText(field, v string) error {
	if strings.IndexFunc(v, unicode.IsControl) >= 0 {
		return fmt.Errorf("%w: %s contains control characters", ErrInvalidValue, field)
	}

	return nil
}

// String renders the filter in the remote API's expression language, e.g.
// status like 'act' and (license like '%x%' or ip like '%x%').
func (f *Filter) String() (string, error) {
	if err := f.Validate(); err != nil {
		return "", err
	}

	parts := make([]string, 0, len(f.clauses))
	for _, clause := range f.clauses {
		terms := make([]string, 0, len(clause))
		for _, c := range clause {
			terms = append(terms, expr(c))
		}
		parts = append(parts, group(terms, " or "))
	}

	return strings.Join(parts, " and "), nil
}

func expr(c Condition) string {
	switch c.Op {
	case OpEq:
		return c.Field + " = " + quote(c.Value.(string))
	case OpLike:
		return c.Field + " like " + quote(c.Value.(string))
	case OpContains:
		return c.Field + " like " + quote("%"+c.Value.(string)+"%")
	default:
		vs := c.Value.([]string)
		quoted := make([]string, len(vs))
		for i, v := range vs {
			quoted[i] = quote(v)
		}
		return c.Field + " in (" + strings.Join(quoted, ", ") + ")"
	}
}

func quote(v string) string {
	return "'" + strings.ReplaceAll(v, "'", "''") + "'"
}

// SQL renders a Postgres predicate with $n placeholders starting at
// firstArg. An empty filter yields "TRUE".
func (f *Filter) SQL(firstArg int) (string, []any, error) {
	if err := f.Validate(); err != nil {
		return "", nil, err
	}

	if f.Empty() {
		return "TRUE", nil, nil
	}

	n := firstArg
	args := []any{}
	parts := make([]string, 0, len(f.clauses))
	for _, clause := range f.clauses {
		terms := make([]string, 0, len(clause))
		for _, c := range clause {
			var term string
			switch c.Op {
			case OpEq:
				term = fmt.Sprintf("%s = $%d", c.Field, n)
				args = append(args, c.Value)
			case OpLike:
				term = fmt.Sprintf("%s LIKE $%d", c.Field, n)
				args = append(args, c.Value)
			case OpContains:
				term = fmt.Sprintf("%s ILIKE $%d", c.Field, n)
				args = append(args, "%"+escapeLike(c.Value.(string))+"%")
			case OpIn:
				term = fmt.Sprintf("%s = ANY($%d)", c.Field, n)
				args = append(args, c.Value)
			}
			n++
			terms = append(terms, term)
		}
		parts = append(parts, group(terms, " OR "))
	}

	return strings.Join(parts, " AND "), args, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(v string) string {
	return likeEscaper.Replace(v)
}

func group(terms []string, sep string) string {
	if len(terms) == 1 {
		return terms[0]
	}

	return "(" + strings.Join(terms, sep) + ")"
}
