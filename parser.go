package vidpipe

import "strconv"

// Parser is a recursive-descent parser over a pre-lexed token stream,
// following the grammar in spec §6 (Program/Definition/Expression/
// Parallel/Sequence/Timed/Primary/ParamList/Param/Literal).
type Parser struct {
	toks []Token
	pos  int

	// defs maps name -> definition body as parsing proceeds (§4.P: later
	// definitions shadow earlier ones; only names declared earlier are
	// visible to a Call, enforced later by the compiler's
	// checkDefinitionOrder).
	defs map[string]Expr
}

// Parse lexes and parses a complete program.
func Parse(filename, input string) (*Program, error) {
	toks, err := NewLexer(filename, input).Tokenize()
	if err != nil {
		return nil, err
	}
	p := &Parser{toks: toks, defs: map[string]Expr{}}
	return p.parseProgram()
}

func (p *Parser) cur() Token  { return p.toks[p.pos] }
func (p *Parser) advance() Token {
	t := p.toks[p.pos]
	if p.pos < len(p.toks)-1 {
		p.pos++
	}
	return t
}

func (p *Parser) expect(k TokenKind) (Token, error) {
	t := p.cur()
	if t.Kind != k {
		return Token{}, &ParseError{Line: t.Line, Column: t.Column, Expected: k.String(), Found: t.Kind.String()}
	}
	return p.advance(), nil
}

func (p *Parser) parseProgram() (*Program, error) {
	prog := &Program{}
	var lastDefName string
	endedOnDef := false

	for p.cur().Kind != TEOF {
		if p.cur().Kind == TKwPipeline {
			def, err := p.parseDefinition()
			if err != nil {
				return nil, err
			}
			prog.Definitions = append(prog.Definitions, *def)
			p.defs[def.Name] = def.Body
			lastDefName = def.Name
			endedOnDef = true
			continue
		}

		expr, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		prog.Expression = expr
		endedOnDef = false
	}

	if endedOnDef {
		// Program ends with a definition: per §4.P, "running that pipeline is
		// an error" — represented here by pointing Expression at a Call of
		// the last-defined name and setting trailingDefOnly, which the
		// compiler rejects as a Program with no runnable tail.
		prog.Expression = &Call{Name: lastDefName}
		prog.trailingDefOnly = true
	}
	return prog, nil
}

func (p *Parser) parseDefinition() (*Def, error) {
	kw := p.advance() // 'pipeline'
	name, err := p.expect(TIdent)
	if err != nil {
		return nil, err
	}
	eq, err := p.expect(TEquals)
	if err != nil {
		return nil, err
	}
	if eq.Text != "=" {
		return nil, &ParseError{Line: eq.Line, Column: eq.Column, Expected: "=", Found: eq.Text}
	}
	body, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	return &Def{Name: name.Text, Body: body, Line: kw.Line}, nil
}

func (p *Parser) parseExpression() (Expr, error) {
	return p.parseParallel()
}

func (p *Parser) parseParallel() (Expr, error) {
	first, err := p.parseSequence()
	if err != nil {
		return nil, err
	}
	if p.cur().Kind != TPipe {
		return first, nil
	}
	branches := []Expr{first}
	for p.cur().Kind == TPipe {
		p.advance()
		next, err := p.parseSequence()
		if err != nil {
			return nil, err
		}
		branches = append(branches, next)
	}
	return &Par{Branches: branches}, nil
}

func (p *Parser) parseSequence() (Expr, error) {
	left, err := p.parseTimed()
	if err != nil {
		return nil, err
	}
	for p.cur().Kind == TArrow || p.cur().Kind == TAsync {
		async := p.cur().Kind == TAsync
		p.advance()
		right, err := p.parseTimed()
		if err != nil {
			return nil, err
		}
		left = &Seq{Left: left, Right: right, Async: async}
	}
	return left, nil
}

func (p *Parser) parseTimed() (Expr, error) {
	inner, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	if p.cur().Kind != TAt {
		return inner, nil
	}
	at := p.advance()
	numTok, err := p.expect(TNumber)
	if err != nil {
		return nil, err
	}
	seconds, convErr := strconv.ParseFloat(numTok.Text, 64)
	if convErr != nil || seconds <= 0 {
		return nil, &ParseError{Line: at.Line, Column: at.Column, Expected: "positive number before 's'", Found: numTok.Text}
	}
	// The 's' suffix is contextual: an identifier "s" immediately following
	// the number, per §4.L.
	sTok := p.cur()
	if sTok.Kind != TIdent || sTok.Text != "s" {
		return nil, &ParseError{Line: sTok.Line, Column: sTok.Column, Expected: "'s'", Found: sTok.Kind.String()}
	}
	p.advance()
	return &Timed{Inner: inner, Seconds: seconds}, nil
}

func (p *Parser) parsePrimary() (Expr, error) {
	t := p.cur()
	switch t.Kind {
	case TParOpen:
		p.advance()
		inner, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(TParClose); err != nil {
			return nil, err
		}
		return &Group{Inner: inner}, nil
	case TIdent:
		name := p.advance()
		call := &Call{Name: name.Text, Params: map[string]Literal{}, Line: name.Line, Column: name.Column}
		if p.cur().Kind == TKwWith {
			p.advance()
			if _, err := p.expect(TParOpen); err != nil {
				return nil, err
			}
			if p.cur().Kind != TParClose {
				if err := p.parseParamList(call.Params); err != nil {
					return nil, err
				}
			}
			if _, err := p.expect(TParClose); err != nil {
				return nil, err
			}
		}
		return call, nil
	default:
		return nil, &ParseError{Line: t.Line, Column: t.Column, Expected: "expression", Found: t.Kind.String()}
	}
}

func (p *Parser) parseParamList(into map[string]Literal) error {
	for {
		name, err := p.expect(TIdent)
		if err != nil {
			return err
		}
		if _, err := p.expect(TColon); err != nil {
			return err
		}
		lit, err := p.parseLiteral()
		if err != nil {
			return err
		}
		into[name.Text] = lit
		if p.cur().Kind != TComma {
			return nil
		}
		p.advance()
	}
}

func (p *Parser) parseLiteral() (Literal, error) {
	t := p.cur()
	switch t.Kind {
	case TNumber:
		p.advance()
		n, _ := strconv.ParseFloat(t.Text, 64)
		return Literal{Kind: LitNumber, Number: n}, nil
	case TString:
		p.advance()
		return Literal{Kind: LitString, Str: t.Text}, nil
	case TIdent:
		p.advance()
		if t.Text == "true" || t.Text == "false" {
			return Literal{Kind: LitBool, Bool: t.Text == "true"}, nil
		}
		return Literal{Kind: LitSymbol, Symbol: t.Text}, nil
	case TBrackOpen:
		return p.parseTriple()
	default:
		return Literal{}, &ParseError{Line: t.Line, Column: t.Column, Expected: "literal", Found: t.Kind.String()}
	}
}

// parseTriple handles the `[R, G, B]` literal form of §3/§6. The general
// array-literal grammar is "[" Number ("," Number)* "]" (one or more
// numbers); this narrows it to exactly 3, since the only array literal the
// domain uses is an RGB triple. A 4-tuple like [0,0,0,255] is grammar-legal
// but rejected here.
func (p *Parser) parseTriple() (Literal, error) {
	p.advance() // '['
	var nums [3]float64
	for i := 0; i < 3; i++ {
		if i > 0 {
			if _, err := p.expect(TComma); err != nil {
				return Literal{}, err
			}
		}
		numTok, err := p.expect(TNumber)
		if err != nil {
			return Literal{}, err
		}
		n, convErr := strconv.ParseFloat(numTok.Text, 64)
		if convErr != nil {
			return Literal{}, &ParseError{Line: numTok.Line, Column: numTok.Column, Expected: "number", Found: numTok.Text}
		}
		nums[i] = n
	}
	if _, err := p.expect(TBrackClose); err != nil {
		return Literal{}, err
	}
	return Literal{Kind: LitTriple, Triple: nums}, nil
}
