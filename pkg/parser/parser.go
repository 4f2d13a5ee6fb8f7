// Package parser reads the textual IR into an ir.Function whose CFG has not
// been built yet
package parser

import (
	"fmt"
	"strconv"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/raymyers/ion/pkg/ir"
	"github.com/raymyers/ion/pkg/lexer"
)

// Parser parses IR source into basic blocks
type Parser struct {
	l         *lexer.Lexer
	curToken  lexer.Token
	peekToken lexer.Token
	errors    []string

	fn     *ir.Function
	cur    int                // index of the block being filled, -1 before the first
	split  bool               // the last instruction ended its block
	labels mapset.Set[string] // labels seen so far
}

// New creates a new Parser for the given lexer
func New(l *lexer.Lexer) *Parser {
	p := &Parser{
		l:      l,
		cur:    -1,
		labels: mapset.NewThreadUnsafeSet[string](),
	}
	// Read two tokens to initialize curToken and peekToken
	p.nextToken()
	p.nextToken()
	return p
}

func (p *Parser) nextToken() {
	p.curToken = p.peekToken
	p.peekToken = p.l.NextToken()
}

// Errors returns the list of parsing errors
func (p *Parser) Errors() []string {
	return p.errors
}

func (p *Parser) addError(msg string) {
	p.errors = append(p.errors, fmt.Sprintf("line %d, col %d: %s",
		p.curToken.Line, p.curToken.Column, msg))
}

func (p *Parser) curTokenIs(t lexer.TokenType) bool {
	return p.curToken.Type == t
}

func (p *Parser) peekTokenIs(t lexer.TokenType) bool {
	return p.peekToken.Type == t
}

func (p *Parser) atLineEnd() bool {
	return p.curTokenIs(lexer.TokenNewline) || p.curTokenIs(lexer.TokenEOF)
}

// skipLine drops the rest of a malformed line
func (p *Parser) skipLine() {
	for !p.atLineEnd() {
		p.nextToken()
	}
}

// ParseFunction parses the whole input as the body of one function.
// The result is returned even when Errors() is non-empty.
func (p *Parser) ParseFunction(name string) *ir.Function {
	p.fn = ir.NewFunction(name)

	for !p.curTokenIs(lexer.TokenEOF) {
		switch {
		case p.curTokenIs(lexer.TokenNewline):
			p.nextToken()
			continue
		case p.curTokenIs(lexer.TokenIdent) && p.peekTokenIs(lexer.TokenColon):
			p.parseLabel()
			p.nextToken() // label
			p.nextToken() // :
			if p.atLineEnd() {
				continue
			}
			if !p.curTokenIs(lexer.TokenIdent) {
				p.addError(fmt.Sprintf("expected instruction after label, got %s", p.curToken.Type))
				p.skipLine()
				continue
			}
			p.parseInstruction()
		case p.curTokenIs(lexer.TokenIdent):
			p.parseInstruction()
		default:
			p.addError(fmt.Sprintf("expected label or instruction, got %s %q",
				p.curToken.Type, p.curToken.Literal))
			p.skipLine()
		}
	}

	return p.fn
}

// parseLabel opens the block named by the current token. The initial block
// takes the label if it is still empty and unlabeled.
func (p *Parser) parseLabel() {
	label := p.curToken.Literal
	if !p.labels.Add(label) {
		p.addError(fmt.Sprintf("duplicate label %q", label))
	}

	if p.cur >= 0 {
		b := &p.fn.Blocks[p.cur]
		if len(b.Instrs) == 0 && b.Label == "" {
			b.Label = label
			p.split = false
			return
		}
	}
	p.cur = p.fn.AddBlock(label)
	p.split = false
}

// parseInstruction parses OPCODE operand, operand ... up to the end of line
func (p *Parser) parseInstruction() {
	name := p.curToken.Literal
	op, ok := ir.LookupOpcode(name)
	if !ok {
		p.addError(fmt.Sprintf("unknown opcode %q", name))
		p.skipLine()
		return
	}
	p.nextToken()

	var args []ir.Operand
	if !p.atLineEnd() {
		for {
			arg, ok := p.parseOperand()
			if !ok {
				p.skipLine()
				return
			}
			args = append(args, arg)
			if !p.curTokenIs(lexer.TokenComma) {
				break
			}
			p.nextToken()
		}
	}
	if !p.atLineEnd() {
		p.addError(fmt.Sprintf("expected , or end of line, got %s %q",
			p.curToken.Type, p.curToken.Literal))
		p.skipLine()
		return
	}

	p.appendInstr(buildInstruction(op, args))
}

func (p *Parser) parseOperand() (ir.Operand, bool) {
	tok := p.curToken
	switch tok.Type {
	case lexer.TokenReg:
		n, err := strconv.Atoi(tok.Literal)
		if err != nil {
			p.addError(fmt.Sprintf("invalid register %%%s", tok.Literal))
			return nil, false
		}
		p.nextToken()
		return ir.Reg(n), true
	case lexer.TokenInt:
		v, err := strconv.ParseInt(tok.Literal, 10, 64)
		if err != nil {
			p.addError(fmt.Sprintf("invalid integer %s", tok.Literal))
			return nil, false
		}
		p.nextToken()
		return ir.Imm(v), true
	case lexer.TokenIdent:
		p.nextToken()
		return ir.LabelRef(tok.Literal), true
	}
	p.addError(fmt.Sprintf("expected operand, got %s %q", tok.Type, tok.Literal))
	return nil, false
}

// buildInstruction takes a leading register operand as Dest for opcodes
// that define a value. Anything else, including a register written after an
// immediate, stays a source in written order.
func buildInstruction(op ir.Opcode, args []ir.Operand) ir.Instruction {
	if op.HasDest() && len(args) > 0 {
		if r, ok := args[0].(ir.Reg); ok {
			return ir.Def(op, r, args[1:]...)
		}
	}
	return ir.Op(op, args...)
}

// appendInstr adds instr to the current block, opening an unlabeled block
// at the start of input and after a control transfer.
func (p *Parser) appendInstr(instr ir.Instruction) {
	if p.cur < 0 || p.split {
		p.cur = p.fn.AddBlock("")
	}
	b := &p.fn.Blocks[p.cur]
	b.Instrs = append(b.Instrs, instr)
	p.split = instr.Op.IsControlTransfer()
}
