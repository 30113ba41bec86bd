package wallet

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/findy-network/findy-vcx/agent/vcxerr"
)

// Query is a parsed WQL subset:
//
//	{"tag": "value"}                 equality
//	{"tag": {"$in": ["a", "b"]}}     one of
//	{"tag": {"$neq": "value"}}       not equal
//	{"$and": [q1, q2]}, {"$or": [..]}, {"$not": q}
//
// Several keys in one object are combined with and. The empty object
// matches every record.
type Query interface {
	Match(tags map[string]string) bool
}

type eqQuery struct{ name, value string }

func (q eqQuery) Match(tags map[string]string) bool {
	v, ok := tags[q.name]
	return ok && v == q.value
}

type neqQuery struct{ name, value string }

func (q neqQuery) Match(tags map[string]string) bool {
	v, ok := tags[q.name]
	return ok && v != q.value
}

type inQuery struct {
	name   string
	values []string
}

func (q inQuery) Match(tags map[string]string) bool {
	v, ok := tags[q.name]
	if !ok {
		return false
	}
	for _, w := range q.values {
		if v == w {
			return true
		}
	}
	return false
}

type andQuery []Query

func (q andQuery) Match(tags map[string]string) bool {
	for _, sub := range q {
		if !sub.Match(tags) {
			return false
		}
	}
	return true
}

type orQuery []Query

func (q orQuery) Match(tags map[string]string) bool {
	for _, sub := range q {
		if sub.Match(tags) {
			return true
		}
	}
	return false
}

type notQuery struct{ q Query }

func (q notQuery) Match(tags map[string]string) bool {
	return !q.q.Match(tags)
}

// Eq builds an equality query.
func Eq(name, value string) Query {
	return eqQuery{name: name, value: value}
}

// And combines queries.
func And(qs ...Query) Query {
	return andQuery(qs)
}

// ParseQuery parses a WQL JSON string. Empty string is the match-all query.
func ParseQuery(s string) (Query, error) {
	if s == "" {
		return andQuery{}, nil
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal([]byte(s), &raw); err != nil {
		return nil, vcxerr.Wrap(vcxerr.InvalidJSON, err, "wallet query")
	}
	q, err := parseObject(raw)
	if err != nil {
		return nil, vcxerr.Wrap(vcxerr.InvalidOption, err, "wallet query")
	}
	return q, nil
}

func parseObject(raw map[string]json.RawMessage) (Query, error) {
	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	qs := make(andQuery, 0, len(keys))
	for _, k := range keys {
		v := raw[k]
		switch k {
		case "$and", "$or":
			var subs []map[string]json.RawMessage
			if err := json.Unmarshal(v, &subs); err != nil {
				return nil, fmt.Errorf("%s needs an array: %w", k, err)
			}
			list := make([]Query, 0, len(subs))
			for _, s := range subs {
				sq, err := parseObject(s)
				if err != nil {
					return nil, err
				}
				list = append(list, sq)
			}
			if k == "$and" {
				qs = append(qs, andQuery(list))
			} else {
				qs = append(qs, orQuery(list))
			}
		case "$not":
			var sub map[string]json.RawMessage
			if err := json.Unmarshal(v, &sub); err != nil {
				return nil, fmt.Errorf("$not needs an object: %w", err)
			}
			sq, err := parseObject(sub)
			if err != nil {
				return nil, err
			}
			qs = append(qs, notQuery{q: sq})
		default:
			tq, err := parseTag(k, v)
			if err != nil {
				return nil, err
			}
			qs = append(qs, tq)
		}
	}
	if len(qs) == 1 {
		return qs[0], nil
	}
	return qs, nil
}

func parseTag(name string, v json.RawMessage) (Query, error) {
	var s string
	if err := json.Unmarshal(v, &s); err == nil {
		return eqQuery{name: name, value: s}, nil
	}
	var op map[string]json.RawMessage
	if err := json.Unmarshal(v, &op); err != nil {
		return nil, fmt.Errorf("tag %s: unsupported value", name)
	}
	if len(op) != 1 {
		return nil, fmt.Errorf("tag %s: exactly one operator expected", name)
	}
	for o, ov := range op {
		switch o {
		case "$eq", "$neq":
			if err := json.Unmarshal(ov, &s); err != nil {
				return nil, fmt.Errorf("tag %s: %s needs a string", name, o)
			}
			if o == "$eq" {
				return eqQuery{name: name, value: s}, nil
			}
			return neqQuery{name: name, value: s}, nil
		case "$in":
			var list []string
			if err := json.Unmarshal(ov, &list); err != nil {
				return nil, fmt.Errorf("tag %s: $in needs a string array", name)
			}
			return inQuery{name: name, values: list}, nil
		default:
			return nil, fmt.Errorf("tag %s: unsupported operator %s", name, o)
		}
	}
	return nil, fmt.Errorf("tag %s: empty operator", name)
}

// EqTerm returns an equality term of q which can be pushed down to a
// backend's own index. ok is false if q has no top level equality term.
func EqTerm(q Query) (name, value string, ok bool) {
	switch t := q.(type) {
	case eqQuery:
		return t.name, t.value, true
	case andQuery:
		for _, sub := range t {
			if e, isEq := sub.(eqQuery); isEq {
				return e.name, e.value, true
			}
		}
	}
	return "", "", false
}
