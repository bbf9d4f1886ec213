package main

import (
	"strings"
	"unicode"

	"github.com/junegunn/fzf/src/algo"
	"github.com/junegunn/fzf/src/util"
)

// Process filter queries use fzf's syntax:
//
//	foo    fuzzy        'foo   exact substring
//	^foo   prefix       foo$   suffix
//	!foo   negated      a b    all terms      a | b    either group

func init() {
	algo.Init("default")
}

// The filter runs on the tree goroutine only, so one slab is enough.
var slab = util.MakeSlab(100*1024, 2048)

type matchKind int

const (
	matchFuzzy matchKind = iota
	matchExact
	matchPrefix
	matchSuffix
)

type matchTerm struct {
	pattern       []rune
	kind          matchKind
	negated       bool
	caseSensitive bool
}

// query is a parsed filter: groups joined by OR, terms inside a group by AND.
type query [][]matchTerm

func parseQuery(raw string) query {
	var q query
	for _, part := range strings.Split(raw, " | ") {
		var group []matchTerm
		for _, tok := range strings.Fields(part) {
			group = append(group, parseTerm(tok))
		}
		if len(group) > 0 {
			q = append(q, group)
		}
	}
	return q
}

func parseTerm(tok string) matchTerm {
	t := matchTerm{kind: matchFuzzy}
	if len(tok) > 1 && tok[0] == '!' {
		t.negated = true
		tok = tok[1:]
	}
	switch {
	case len(tok) > 1 && tok[0] == '\'':
		t.kind, tok = matchExact, tok[1:]
	case len(tok) > 1 && tok[0] == '^':
		t.kind, tok = matchPrefix, tok[1:]
	case len(tok) > 1 && tok[len(tok)-1] == '$':
		t.kind, tok = matchSuffix, tok[:len(tok)-1]
	}
	t.caseSensitive = strings.IndexFunc(tok, unicode.IsUpper) >= 0
	if !t.caseSensitive {
		tok = strings.ToLower(tok)
	}
	t.pattern = []rune(tok)
	return t
}

// match reports whether s satisfies q. An empty query matches everything.
func (q query) match(s string) bool {
	if len(q) == 0 {
		return true
	}
	chars := util.ToChars([]byte(s))
	for _, group := range q {
		ok := true
		for i := range group {
			if !group[i].match(&chars) {
				ok = false
				break
			}
		}
		if ok {
			return true
		}
	}
	return false
}

func (t *matchTerm) match(chars *util.Chars) bool {
	fn := algo.FuzzyMatchV2
	switch t.kind {
	case matchExact:
		fn = algo.ExactMatchNaive
	case matchPrefix:
		fn = algo.PrefixMatch
	case matchSuffix:
		fn = algo.SuffixMatch
	}
	res, _ := fn(t.caseSensitive, false, true, chars, t.pattern, false, slab)
	return (res.Start >= 0) != t.negated
}

func filterProcs(procs []proc, raw string) []proc {
	q := parseQuery(raw)
	if len(q) == 0 {
		return procs
	}
	var out []proc
	for _, p := range procs {
		if q.match(p.Command) {
			out = append(out, p)
		}
	}
	return out
}
