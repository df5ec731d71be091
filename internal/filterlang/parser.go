// Copyright 2025 Buf Technologies, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package filterlang

import (
	"strconv"
	"strings"

	"github.com/netpfl/compiler/internal/arena"
	"github.com/netpfl/compiler/internal/errs"
	"github.com/netpfl/compiler/internal/filterfe"
	"github.com/netpfl/compiler/internal/fsa"
	"github.com/netpfl/compiler/internal/hir"
	"github.com/netpfl/compiler/internal/symtab"
)

// Parse turns filter text into the already-parsed tree [filterfe.Filter]
// expects, resolving every protocol/field name it mentions against st.
//
// Surface grammar (informal):
//
//	filter    := orExpr [ "->" action ]
//	orExpr    := andExpr ( "or" andExpr )*
//	andExpr   := notExpr ( "and" notExpr )*
//	notExpr   := "not" notExpr | sequence
//	sequence  := element ( "/" element )*
//	element   := "!"? setSpec ( "*" | "+" | "?" )? "..."?
//	setSpec   := "any" | term | "(" term ( "," term )* ")"
//
// There is no explicit grouping operator: "(" always opens a term set, so
// "and"/"or" bind left-to-right at their own precedence level (not
// binds tighter than and, which binds tighter than or).
//	term      := IDENT [ "[" INT "]" ] [ "(" comparison ")" ]
//	comparison:= IDENT ( "==" | "!=" | ">" | ">=" | "<" | "<=" ) ( INT | STRING )
//	action    := "extract" "(" IDENT ( "," IDENT )* ")" | "classify" "(" INT ")" | "return"
func Parse(text string, st *symtab.Table) (*filterfe.Filter, error) {
	toks, err := lex(text)
	if err != nil {
		return nil, errs.PFLf("", "%v", err)
	}
	p := &parser{toks: toks, st: st}

	root, err := p.parseOr()
	if err != nil {
		return nil, err
	}

	action := &filterfe.ActionExpr{Kind: filterfe.ActionReturnPacket}
	if p.at(tokArrow) {
		p.advance()
		action, err = p.parseAction()
		if err != nil {
			return nil, err
		}
	}
	if !p.at(tokEOF) {
		return nil, errs.PFLf("", "unexpected trailing input at offset %d", p.cur().pos)
	}

	return &filterfe.Filter{Root: root, Action: action}, nil
}

type parser struct {
	toks []token
	pos  int
	st   *symtab.Table
}

func (p *parser) cur() token   { return p.toks[p.pos] }
func (p *parser) at(k tokenKind) bool { return p.cur().kind == k }
func (p *parser) advance() token {
	t := p.toks[p.pos]
	if p.pos < len(p.toks)-1 {
		p.pos++
	}
	return t
}

func (p *parser) expect(k tokenKind, what string) (token, error) {
	if !p.at(k) {
		return token{}, errs.PFLf("", "expected %s at offset %d, found %q", what, p.cur().pos, p.cur().text)
	}
	return p.advance(), nil
}

func (p *parser) atKeyword(kw string) bool {
	return p.at(tokIdent) && p.cur().text == kw
}

func (p *parser) parseOr() (filterfe.Expr, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.atKeyword("or") {
		p.advance()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = &filterfe.BinaryExpr{Op: filterfe.OpOr, Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) parseAnd() (filterfe.Expr, error) {
	left, err := p.parseNot()
	if err != nil {
		return nil, err
	}
	for p.atKeyword("and") {
		p.advance()
		right, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		left = &filterfe.BinaryExpr{Op: filterfe.OpAnd, Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) parseNot() (filterfe.Expr, error) {
	if p.atKeyword("not") {
		p.advance()
		operand, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		return &filterfe.UnaryExpr{Operand: operand}, nil
	}
	return p.parseSequence()
}

func (p *parser) parseSequence() (filterfe.Expr, error) {
	var sets []*filterfe.SetExpr
	for {
		s, err := p.parseElement()
		if err != nil {
			return nil, err
		}
		sets = append(sets, s)
		if !p.at(tokSlash) {
			break
		}
		p.advance()
	}
	return &filterfe.RegexExpr{Sets: sets}, nil
}

func (p *parser) parseElement() (*filterfe.SetExpr, error) {
	set := &filterfe.SetExpr{Inclusion: fsa.InclusionDefault}
	if p.at(tokBang) {
		p.advance()
		set.Inclusion = fsa.InclusionNotIn
	}

	if p.atKeyword("any") {
		p.advance()
		set.AnyPlaceholder = true
	} else if p.at(tokLParen) {
		p.advance()
		for {
			term, err := p.parseTerm()
			if err != nil {
				return nil, err
			}
			set.Terms = append(set.Terms, term)
			if !p.at(tokComma) {
				break
			}
			p.advance()
		}
		if _, err := p.expect(tokRParen, "')'"); err != nil {
			return nil, err
		}
	} else {
		term, err := p.parseTerm()
		if err != nil {
			return nil, err
		}
		set.Terms = append(set.Terms, term)
	}

	switch p.cur().kind {
	case tokStar:
		p.advance()
		set.Repeat = fsa.RepeatStar
	case tokPlus:
		p.advance()
		set.Repeat = fsa.RepeatPlus
	case tokQuestion:
		p.advance()
		set.Repeat = fsa.RepeatQuestion
	default:
		set.Repeat = fsa.RepeatNone
	}

	if p.at(tokEllipsis) {
		p.advance()
		set.Tunneled = true
	}

	return set, nil
}

func (p *parser) parseTerm() (*filterfe.Term, error) {
	name, err := p.expect(tokIdent, "protocol name")
	if err != nil {
		return nil, err
	}
	proto := p.st.ProtoByName(name.text)
	if proto == nil {
		return nil, errs.PFLf(name.text, "unknown protocol %q", name.text)
	}
	term := &filterfe.Term{Proto: proto}

	if p.at(tokLBracket) {
		p.advance()
		idx, err := p.expect(tokInt, "header index")
		if err != nil {
			return nil, err
		}
		n, convErr := strconv.Atoi(idx.text)
		if convErr != nil {
			return nil, errs.PFLf(name.text, "invalid header index %q", idx.text)
		}
		term.HeaderIndex = n
		if _, err := p.expect(tokRBracket, "']'"); err != nil {
			return nil, err
		}
	}

	if p.at(tokLParen) {
		p.advance()
		pred, err := p.parseComparison(proto)
		if err != nil {
			return nil, err
		}
		term.Predicate = pred
		if _, err := p.expect(tokRParen, "')'"); err != nil {
			return nil, err
		}
	}

	return term, nil
}

var cmpOps = map[tokenKind]hir.Op{
	tokEq:  hir.OpCmpEq,
	tokNeq: hir.OpCmpNeq,
	tokGt:  hir.OpCmpGt,
	tokGe:  hir.OpCmpGe,
	tokLt:  hir.OpCmpLt,
	tokLe:  hir.OpCmpLe,
}

func (p *parser) parseComparison(proto *symtab.Proto) (*filterfe.Predicate, error) {
	fieldTok, err := p.expect(tokIdent, "field name")
	if err != nil {
		return nil, err
	}
	f := proto.Field(fieldTok.text)
	if f == nil {
		return nil, errs.PFLf(proto.Name, "unknown field %q", fieldTok.text)
	}

	op, ok := cmpOps[p.cur().kind]
	if !ok {
		return nil, errs.PFLf(proto.Name, "expected a comparison operator at offset %d", p.cur().pos)
	}
	p.advance()

	b := hir.NewBuilder()
	lhs := b.FieldRef(f)

	var rhs arena.Handle[hir.Node]
	switch p.cur().kind {
	case tokInt:
		n, convErr := strconv.ParseInt(p.cur().text, 10, 64)
		if convErr != nil {
			return nil, errs.PFLf(proto.Name, "invalid integer literal %q", p.cur().text)
		}
		rhs = b.Const(n)
		p.advance()
	case tokString:
		rhs = b.ConstRef(p.st.AddConstant(p.cur().text))
		p.advance()
	default:
		return nil, errs.PFLf(proto.Name, "expected a literal value at offset %d", p.cur().pos)
	}

	expr := arena.New(b.Arena(), hir.Node{Op: op, Kids: [3]arena.Handle[hir.Node]{lhs, rhs}})
	return &filterfe.Predicate{Arena: b.Arena(), Expr: expr}, nil
}

// resolveQualifiedField resolves a "proto.field" reference used by the
// extract() action clause.
func resolveQualifiedField(st *symtab.Table, qualified string) (*symtab.Field, error) {
	dot := strings.LastIndexByte(qualified, '.')
	if dot < 0 {
		return nil, errs.PFLf("", "expected proto.field, got %q", qualified)
	}
	protoName, fieldName := qualified[:dot], qualified[dot+1:]
	proto := st.ProtoByName(protoName)
	if proto == nil {
		return nil, errs.PFLf(protoName, "unknown protocol %q", protoName)
	}
	f := proto.Field(fieldName)
	if f == nil {
		return nil, errs.PFLf(protoName, "unknown field %q", fieldName)
	}
	return f, nil
}

func (p *parser) parseAction() (*filterfe.ActionExpr, error) {
	kw, err := p.expect(tokIdent, "action")
	if err != nil {
		return nil, err
	}
	switch kw.text {
	case "return":
		return &filterfe.ActionExpr{Kind: filterfe.ActionReturnPacket}, nil
	case "extract":
		if _, err := p.expect(tokLParen, "'('"); err != nil {
			return nil, err
		}
		var fields []*symtab.Field
		for {
			name, err := p.expect(tokIdent, "field reference proto.field")
			if err != nil {
				return nil, err
			}
			f, err := resolveQualifiedField(p.st, name.text)
			if err != nil {
				return nil, err
			}
			fields = append(fields, f)
			if !p.at(tokComma) {
				break
			}
			p.advance()
		}
		if _, err := p.expect(tokRParen, "')'"); err != nil {
			return nil, err
		}
		return &filterfe.ActionExpr{Kind: filterfe.ActionExtractFields, Fields: fields}, nil
	case "classify":
		if _, err := p.expect(tokLParen, "'('"); err != nil {
			return nil, err
		}
		idTok, err := p.expect(tokInt, "classify ID")
		if err != nil {
			return nil, err
		}
		n, convErr := strconv.Atoi(idTok.text)
		if convErr != nil {
			return nil, errs.PFLf("", "invalid classify ID %q", idTok.text)
		}
		if _, err := p.expect(tokRParen, "')'"); err != nil {
			return nil, err
		}
		return &filterfe.ActionExpr{Kind: filterfe.ActionClassify, ClassifyID: n}, nil
	default:
		return nil, errs.PFLf("", "unknown action %q", kw.text)
	}
}
