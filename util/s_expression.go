// Copyright 2024 Richard Kelsey. All rights reserved.
// See file LICENSE for notices and license.

// Very basic S-expression reader.  Integers, symbols and lists,
// with ';' comments running to the end of the line.

package util

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode"
)

var ErrSyntax = errors.New("s-expression syntax error")

type SExpKindT int

const (
	SExpInt SExpKindT = iota
	SExpSymbol
	SExpList
)

type SExpT struct {
	Kind    SExpKindT
	Integer int
	Symbol  string
	List    []*SExpT
	Line    int // where the expression starts, for error messages
}

func (sexp *SExpT) String() string {
	switch sexp.Kind {
	case SExpInt:
		return strconv.Itoa(sexp.Integer)
	case SExpSymbol:
		return sexp.Symbol
	case SExpList:
		parts := make([]string, len(sexp.List))
		for i, elt := range sexp.List {
			parts[i] = elt.String()
		}
		return "(" + strings.Join(parts, " ") + ")"
	}
	panic("bad S-expression")
}

func (sexp *SExpT) IsSymbol(name string) bool {
	return sexp.Kind == SExpSymbol && sexp.Symbol == name
}

// Reads all of the top-level expressions in 'data'.

func ParseSExps(data string) ([]*SExpT, error) {
	reader := &sexpReaderT{reader: bufio.NewReader(strings.NewReader(data)), line: 1}
	result := []*SExpT{}
	for {
		sexp, err := reader.read()
		if err == io.EOF {
			return result, nil
		} else if err != nil {
			return nil, err
		}
		result = append(result, sexp)
	}
}

type tokenKindT int

const (
	tokenOpen tokenKindT = iota
	tokenClose
	tokenAtom
)

type tokenT struct {
	kind tokenKindT
	text string
	line int
}

type sexpReaderT struct {
	reader *bufio.Reader
	line   int
}

// Returns io.EOF if there are no more expressions.

func (r *sexpReaderT) read() (*SExpT, error) {
	token, err := r.nextToken()
	if err != nil {
		return nil, err
	}
	return r.readFrom(token)
}

func (r *sexpReaderT) readFrom(token tokenT) (*SExpT, error) {
	switch token.kind {
	case tokenClose:
		return nil, fmt.Errorf("%w: line %d: unexpected ')'", ErrSyntax, token.line)
	case tokenAtom:
		return makeAtom(token), nil
	}
	list := &SExpT{Kind: SExpList, Line: token.line}
	for {
		next, err := r.nextToken()
		if err == io.EOF {
			return nil, fmt.Errorf("%w: line %d: missing ')'", ErrSyntax, list.Line)
		} else if err != nil {
			return nil, err
		}
		if next.kind == tokenClose {
			return list, nil
		}
		elt, err := r.readFrom(next)
		if err != nil {
			return nil, err
		}
		list.List = append(list.List, elt)
	}
}

func makeAtom(token tokenT) *SExpT {
	i, err := strconv.Atoi(token.text)
	if err == nil {
		return &SExpT{Kind: SExpInt, Integer: i, Line: token.line}
	}
	return &SExpT{Kind: SExpSymbol, Symbol: token.text, Line: token.line}
}

func (r *sexpReaderT) nextToken() (tokenT, error) {
	for {
		c, _, err := r.reader.ReadRune()
		if err != nil {
			return tokenT{}, err
		}
		switch {
		case c == '\n':
			r.line += 1
		case unicode.IsSpace(c):
		case c == ';':
			if _, err := r.reader.ReadString('\n'); err != nil {
				return tokenT{}, err
			}
			r.line += 1
		case c == '(':
			return tokenT{kind: tokenOpen, line: r.line}, nil
		case c == ')':
			return tokenT{kind: tokenClose, line: r.line}, nil
		case isSymbolConstituent(c):
			var contents strings.Builder
			contents.WriteRune(c)
			for {
				c, _, err := r.reader.ReadRune()
				if err == io.EOF {
					break
				} else if err != nil {
					return tokenT{}, err
				}
				if !isSymbolConstituent(c) {
					r.reader.UnreadRune()
					break
				}
				contents.WriteRune(c)
			}
			return tokenT{kind: tokenAtom, text: contents.String(), line: r.line}, nil
		default:
			return tokenT{}, fmt.Errorf("%w: line %d: unrecognized character %s",
				ErrSyntax, r.line, strconv.QuoteRune(c))
		}
	}
}

func isSymbolConstituent(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || strings.ContainsRune(":_*&-+.?!", r)
}
