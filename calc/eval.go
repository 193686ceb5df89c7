// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package calc

import "strconv"

type operator struct {
	prec  int
	apply func(a, b float64) (float64, error)
}

func operatorTable() map[byte]operator {
	return map[byte]operator{
		'+': {1, func(a, b float64) (float64, error) { return a + b, nil }},
		'-': {1, func(a, b float64) (float64, error) { return a - b, nil }},
		'*': {2, func(a, b float64) (float64, error) { return a * b, nil }},
		'/': {2, func(a, b float64) (float64, error) {
			if b == 0 {
				return 0, invalid("Division by zero")
			}
			return a / b, nil
		}},
	}
}

type tokenKind uint8

const (
	tokNumber tokenKind = iota
	tokOperator
	tokOpen
	tokClose
)

type token struct {
	kind tokenKind
	text string
}

func tokenize(expr string) ([]token, error) {
	var tokens []token
	start := -1
	flush := func(end int) {
		if start >= 0 {
			tokens = append(tokens, token{kind: tokNumber, text: expr[start:end]})
			start = -1
		}
	}
	for i, c := range expr {
		switch {
		case c >= '0' && c <= '9' || c == '.':
			if start < 0 {
				start = i
			}
		case c == '+' || c == '-' || c == '*' || c == '/':
			flush(i)
			tokens = append(tokens, token{kind: tokOperator, text: string(c)})
		case c == '(':
			flush(i)
			tokens = append(tokens, token{kind: tokOpen, text: "("})
		case c == ')':
			flush(i)
			tokens = append(tokens, token{kind: tokClose, text: ")"})
		case c == ' ':
			flush(i)
		default:
			return nil, invalid("Invalid character: %c", c)
		}
	}
	flush(len(expr))
	return tokens, nil
}

// evaluate runs the two-stack operator precedence algorithm over expr.
func evaluate(expr string, ops map[byte]operator) (float64, error) {
	tokens, err := tokenize(expr)
	if err != nil {
		return 0, err
	}

	var nums []float64
	var stack []byte // operators and '('

	reduce := func() error {
		op := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if len(nums) < 2 {
			return invalid("Not enough operands")
		}
		a, b := nums[len(nums)-2], nums[len(nums)-1]
		nums = nums[:len(nums)-2]
		v, err := ops[op].apply(a, b)
		if err != nil {
			return err
		}
		nums = append(nums, v)
		return nil
	}

	for _, t := range tokens {
		switch t.kind {
		case tokNumber:
			v, err := strconv.ParseFloat(t.text, 64)
			if err != nil {
				return 0, invalid("Invalid number")
			}
			nums = append(nums, v)
		case tokOpen:
			stack = append(stack, '(')
		case tokClose:
			for len(stack) > 0 && stack[len(stack)-1] != '(' {
				if err := reduce(); err != nil {
					return 0, err
				}
			}
			if len(stack) == 0 {
				return 0, invalid("Mismatched parentheses")
			}
			stack = stack[:len(stack)-1]
		case tokOperator:
			op := ops[t.text[0]]
			for len(stack) > 0 && stack[len(stack)-1] != '(' && ops[stack[len(stack)-1]].prec >= op.prec {
				if err := reduce(); err != nil {
					return 0, err
				}
			}
			stack = append(stack, t.text[0])
		}
	}

	for len(stack) > 0 {
		if stack[len(stack)-1] == '(' {
			return 0, invalid("Mismatched parentheses")
		}
		if err := reduce(); err != nil {
			return 0, err
		}
	}
	if len(nums) != 1 {
		return 0, invalid("Incomplete expression")
	}
	return nums[0], nil
}
