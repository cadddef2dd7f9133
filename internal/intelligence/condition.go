package intelligence

import (
	"fmt"
	"strconv"
	"strings"
)

// EvaluateCondition evaluates a consensus threshold condition against a
// score. The grammar is a strict whitelist: integer literals, the single
// variable "consensus", the six comparison operators (chains allowed, as in
// "70 <= consensus < 85") and "and"/"or". Anything else fails closed:
// malformed or unsupported conditions evaluate to false rather than being
// interpreted loosely, since rule files are plain JSON on disk.
func EvaluateCondition(condition string, consensus int) (bool, error) {
	p := &conditionParser{tokens: tokenizeCondition(condition), consensus: consensus}
	result, err := p.parseOr()
	if err != nil {
		return false, err
	}
	if p.pos != len(p.tokens) {
		return false, fmt.Errorf("unexpected token %q", p.tokens[p.pos])
	}
	return result, nil
}

func tokenizeCondition(condition string) []string {
	var tokens []string
	var current strings.Builder

	flush := func() {
		if current.Len() > 0 {
			tokens = append(tokens, current.String())
			current.Reset()
		}
	}

	runes := []rune(condition)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		switch {
		case r == ' ' || r == '\t':
			flush()
		case r == '<' || r == '>' || r == '=' || r == '!':
			flush()
			if i+1 < len(runes) && runes[i+1] == '=' {
				tokens = append(tokens, string(r)+"=")
				i++
			} else {
				tokens = append(tokens, string(r))
			}
		default:
			current.WriteRune(r)
		}
	}
	flush()
	return tokens
}

type conditionParser struct {
	tokens    []string
	pos       int
	consensus int
}

func (p *conditionParser) peek() string {
	if p.pos < len(p.tokens) {
		return p.tokens[p.pos]
	}
	return ""
}

func (p *conditionParser) parseOr() (bool, error) {
	result, err := p.parseAnd()
	if err != nil {
		return false, err
	}
	for p.peek() == "or" {
		p.pos++
		right, err := p.parseAnd()
		if err != nil {
			return false, err
		}
		result = result || right
	}
	return result, nil
}

func (p *conditionParser) parseAnd() (bool, error) {
	result, err := p.parseComparison()
	if err != nil {
		return false, err
	}
	for p.peek() == "and" {
		p.pos++
		right, err := p.parseComparison()
		if err != nil {
			return false, err
		}
		result = result && right
	}
	return result, nil
}

// parseComparison handles operator chains: each adjacent pair must hold.
func (p *conditionParser) parseComparison() (bool, error) {
	left, err := p.parseValue()
	if err != nil {
		return false, err
	}

	result := true
	sawOp := false
	for isCompareOp(p.peek()) {
		op := p.tokens[p.pos]
		p.pos++
		right, err := p.parseValue()
		if err != nil {
			return false, err
		}
		if !compare(left, op, right) {
			result = false
		}
		left = right
		sawOp = true
	}
	if !sawOp {
		return false, fmt.Errorf("expected comparison operator")
	}
	return result, nil
}

func (p *conditionParser) parseValue() (int, error) {
	token := p.peek()
	if token == "" {
		return 0, fmt.Errorf("unexpected end of condition")
	}
	p.pos++

	if token == "consensus" {
		return p.consensus, nil
	}
	n, err := strconv.Atoi(token)
	if err != nil {
		return 0, fmt.Errorf("unsupported value %q", token)
	}
	return n, nil
}

func isCompareOp(token string) bool {
	switch token {
	case "<", "<=", ">", ">=", "==", "!=":
		return true
	}
	return false
}

func compare(left int, op string, right int) bool {
	switch op {
	case "<":
		return left < right
	case "<=":
		return left <= right
	case ">":
		return left > right
	case ">=":
		return left >= right
	case "==":
		return left == right
	case "!=":
		return left != right
	}
	return false
}
