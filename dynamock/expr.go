package dynamock

import (
	"bytes"
	"fmt"
	"math/big"
	"reflect"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// Item is a DynamoDB item.
type Item = map[string]types.AttributeValue

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokIdent
	tokName
	tokValue
	tokNumber
	tokPunct
)

type token struct {
	kind tokenKind
	text string
	pos  int
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isWordByte(c byte) bool {
	return c == '_' || isDigit(c) || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

// tokenize splits a condition, key condition or update expression.
func tokenize(s string) ([]token, error) {
	var out []token
	for i := 0; i < len(s); {
		c := s[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++
		case c == '#' || c == ':':
			j := i + 1
			for j < len(s) && isWordByte(s[j]) {
				j++
			}
			if j == i+1 {
				return nil, fmt.Errorf("empty placeholder at offset %d", i)
			}
			kind := tokName
			if c == ':' {
				kind = tokValue
			}
			out = append(out, token{kind: kind, text: s[i:j], pos: i})
			i = j
		case isDigit(c):
			j := i
			for j < len(s) && isDigit(s[j]) {
				j++
			}
			out = append(out, token{kind: tokNumber, text: s[i:j], pos: i})
			i = j
		case isWordByte(c):
			j := i
			for j < len(s) && isWordByte(s[j]) {
				j++
			}
			out = append(out, token{kind: tokIdent, text: s[i:j], pos: i})
			i = j
		case c == '<' || c == '>':
			if i+1 < len(s) && (s[i+1] == '=' || (c == '<' && s[i+1] == '>')) {
				out = append(out, token{kind: tokPunct, text: s[i : i+2], pos: i})
				i += 2
				continue
			}
			out = append(out, token{kind: tokPunct, text: s[i : i+1], pos: i})
			i++
		case strings.IndexByte("()=,+-.[]", c) >= 0:
			out = append(out, token{kind: tokPunct, text: s[i : i+1], pos: i})
			i++
		default:
			return nil, fmt.Errorf("unexpected character %q at offset %d", c, i)
		}
	}
	return append(out, token{kind: tokEOF, pos: len(s)}), nil
}

type parser struct {
	toks   []token
	pos    int
	names  map[string]string
	values map[string]types.AttributeValue
}

func newParser(expr string, names map[string]string, values map[string]types.AttributeValue) (*parser, error) {
	toks, err := tokenize(expr)
	if err != nil {
		return nil, err
	}
	return &parser{toks: toks, names: names, values: values}, nil
}

func (p *parser) peek() token { return p.toks[p.pos] }

func (p *parser) peekAt(n int) token {
	if p.pos+n >= len(p.toks) {
		return p.toks[len(p.toks)-1]
	}
	return p.toks[p.pos+n]
}

func (p *parser) next() token {
	t := p.toks[p.pos]
	if t.kind != tokEOF {
		p.pos++
	}
	return t
}

func (p *parser) isPunct(s string) bool {
	t := p.peek()
	return t.kind == tokPunct && t.text == s
}

func (p *parser) isKeyword(s string) bool {
	t := p.peek()
	return t.kind == tokIdent && strings.EqualFold(t.text, s)
}

func (p *parser) expect(s string) error {
	t := p.next()
	if t.kind != tokPunct || t.text != s {
		return fmt.Errorf("expected %q at offset %d, got %q", s, t.pos, t.text)
	}
	return nil
}

func (p *parser) done() error {
	if t := p.peek(); t.kind != tokEOF {
		return fmt.Errorf("unexpected token %q at offset %d", t.text, t.pos)
	}
	return nil
}

// attrPath is a resolved document path; every element after the first is a
// map key.
type attrPath []string

func (p attrPath) String() string { return strings.Join(p, ".") }

func (p *parser) parsePath() (attrPath, error) {
	var path attrPath
	for {
		t := p.next()
		switch t.kind {
		case tokName:
			name, ok := p.names[t.text]
			if !ok {
				return nil, fmt.Errorf("expression attribute name %s is not defined", t.text)
			}
			path = append(path, name)
		case tokIdent:
			path = append(path, t.text)
		default:
			return nil, fmt.Errorf("expected attribute path at offset %d, got %q", t.pos, t.text)
		}

		if p.isPunct("[") {
			return nil, fmt.Errorf("list index paths are not supported")
		}
		if !p.isPunct(".") {
			return path, nil
		}
		p.next()
	}
}

// operand yields a value, and whether it exists, for one item.
type operand interface {
	eval(item Item) (types.AttributeValue, bool)
}

type pathOperand struct{ path attrPath }

func (o pathOperand) eval(item Item) (types.AttributeValue, bool) { return getPath(item, o.path) }

type valueOperand struct{ value types.AttributeValue }

func (o valueOperand) eval(Item) (types.AttributeValue, bool) { return o.value, true }

type sizeOperand struct{ path attrPath }

func (o sizeOperand) eval(item Item) (types.AttributeValue, bool) {
	v, ok := getPath(item, o.path)
	if !ok {
		return nil, false
	}
	var n int
	switch tv := v.(type) {
	case *types.AttributeValueMemberS:
		n = len(tv.Value)
	case *types.AttributeValueMemberB:
		n = len(tv.Value)
	case *types.AttributeValueMemberL:
		n = len(tv.Value)
	case *types.AttributeValueMemberM:
		n = len(tv.Value)
	case *types.AttributeValueMemberSS:
		n = len(tv.Value)
	case *types.AttributeValueMemberNS:
		n = len(tv.Value)
	case *types.AttributeValueMemberBS:
		n = len(tv.Value)
	default:
		return nil, false
	}
	return &types.AttributeValueMemberN{Value: fmt.Sprint(n)}, true
}

func (p *parser) parseOperand() (operand, error) {
	t := p.peek()
	if t.kind == tokValue {
		p.next()
		v, ok := p.values[t.text]
		if !ok {
			return nil, fmt.Errorf("expression attribute value %s is not defined", t.text)
		}
		return valueOperand{value: v}, nil
	}
	if t.kind == tokIdent && strings.EqualFold(t.text, "size") && p.peekAt(1).text == "(" {
		p.next()
		p.next()
		path, err := p.parsePath()
		if err != nil {
			return nil, err
		}
		return sizeOperand{path: path}, p.expect(")")
	}
	path, err := p.parsePath()
	if err != nil {
		return nil, err
	}
	return pathOperand{path: path}, nil
}

type condition interface {
	eval(item Item) bool
}

type andCond struct{ left, right condition }

func (c andCond) eval(item Item) bool { return c.left.eval(item) && c.right.eval(item) }

type orCond struct{ left, right condition }

func (c orCond) eval(item Item) bool { return c.left.eval(item) || c.right.eval(item) }

type notCond struct{ inner condition }

func (c notCond) eval(item Item) bool { return !c.inner.eval(item) }

type compareCond struct {
	op          string
	left, right operand
}

func (c compareCond) eval(item Item) bool {
	l, lok := c.left.eval(item)
	r, rok := c.right.eval(item)
	if !lok || !rok {
		// a missing operand differs from every value
		return c.op == "<>"
	}
	switch c.op {
	case "=":
		return equalValues(l, r)
	case "<>":
		return !equalValues(l, r)
	}

	cmp, ok := compareValues(l, r)
	if !ok {
		return false
	}
	switch c.op {
	case "<":
		return cmp < 0
	case "<=":
		return cmp <= 0
	case ">":
		return cmp > 0
	case ">=":
		return cmp >= 0
	}
	return false
}

type betweenCond struct{ value, low, high operand }

func (c betweenCond) eval(item Item) bool {
	v, ok1 := c.value.eval(item)
	lo, ok2 := c.low.eval(item)
	hi, ok3 := c.high.eval(item)
	if !ok1 || !ok2 || !ok3 {
		return false
	}
	a, ok := compareValues(v, lo)
	if !ok || a < 0 {
		return false
	}
	b, ok := compareValues(v, hi)
	return ok && b <= 0
}

type inCond struct {
	value operand
	list  []operand
}

func (c inCond) eval(item Item) bool {
	v, ok := c.value.eval(item)
	if !ok {
		return false
	}
	for _, o := range c.list {
		if w, ok := o.eval(item); ok && equalValues(v, w) {
			return true
		}
	}
	return false
}

type funcCond struct {
	name string
	path attrPath
	arg  operand
}

func (c funcCond) eval(item Item) bool {
	v, exists := getPath(item, c.path)
	switch c.name {
	case "attribute_exists":
		return exists
	case "attribute_not_exists":
		return !exists
	}
	if !exists {
		return false
	}

	arg, ok := c.arg.eval(item)
	if !ok {
		return false
	}

	switch c.name {
	case "begins_with":
		switch tv := v.(type) {
		case *types.AttributeValueMemberS:
			prefix, ok := arg.(*types.AttributeValueMemberS)
			return ok && strings.HasPrefix(tv.Value, prefix.Value)
		case *types.AttributeValueMemberB:
			prefix, ok := arg.(*types.AttributeValueMemberB)
			return ok && bytes.HasPrefix(tv.Value, prefix.Value)
		}
	case "contains":
		return containsValue(v, arg)
	case "attribute_type":
		want, ok := arg.(*types.AttributeValueMemberS)
		return ok && typeCode(v) == want.Value
	}
	return false
}

// parseCondition parses a condition, filter or key condition expression.
func parseCondition(expr string, names map[string]string, values map[string]types.AttributeValue) (condition, error) {
	p, err := newParser(expr, names, values)
	if err != nil {
		return nil, err
	}
	c, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	return c, p.done()
}

func (p *parser) parseOr() (condition, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.isKeyword("OR") {
		p.next()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = orCond{left: left, right: right}
	}
	return left, nil
}

func (p *parser) parseAnd() (condition, error) {
	left, err := p.parseNot()
	if err != nil {
		return nil, err
	}
	for p.isKeyword("AND") {
		p.next()
		right, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		left = andCond{left: left, right: right}
	}
	return left, nil
}

func (p *parser) parseNot() (condition, error) {
	if p.isKeyword("NOT") {
		p.next()
		inner, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		return notCond{inner: inner}, nil
	}
	return p.parsePrimary()
}

var conditionFuncs = map[string]bool{
	"attribute_exists":     true,
	"attribute_not_exists": true,
	"attribute_type":       true,
	"begins_with":          true,
	"contains":             true,
}

func (p *parser) parsePrimary() (condition, error) {
	if p.isPunct("(") {
		p.next()
		c, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		return c, p.expect(")")
	}

	if t := p.peek(); t.kind == tokIdent && conditionFuncs[strings.ToLower(t.text)] && p.peekAt(1).text == "(" {
		return p.parseFunc()
	}

	left, err := p.parseOperand()
	if err != nil {
		return nil, err
	}

	switch {
	case p.isKeyword("BETWEEN"):
		p.next()
		low, err := p.parseOperand()
		if err != nil {
			return nil, err
		}
		if !p.isKeyword("AND") {
			return nil, fmt.Errorf("expected AND in BETWEEN at offset %d", p.peek().pos)
		}
		p.next()
		high, err := p.parseOperand()
		if err != nil {
			return nil, err
		}
		return betweenCond{value: left, low: low, high: high}, nil
	case p.isKeyword("IN"):
		p.next()
		if err := p.expect("("); err != nil {
			return nil, err
		}
		var list []operand
		for {
			o, err := p.parseOperand()
			if err != nil {
				return nil, err
			}
			list = append(list, o)
			if !p.isPunct(",") {
				break
			}
			p.next()
		}
		return inCond{value: left, list: list}, p.expect(")")
	}

	t := p.next()
	switch t.text {
	case "=", "<>", "<", "<=", ">", ">=":
	default:
		return nil, fmt.Errorf("expected comparator at offset %d, got %q", t.pos, t.text)
	}
	right, err := p.parseOperand()
	if err != nil {
		return nil, err
	}
	return compareCond{op: t.text, left: left, right: right}, nil
}

func (p *parser) parseFunc() (condition, error) {
	name := strings.ToLower(p.next().text)
	if err := p.expect("("); err != nil {
		return nil, err
	}
	path, err := p.parsePath()
	if err != nil {
		return nil, err
	}
	c := funcCond{name: name, path: path}
	if name != "attribute_exists" && name != "attribute_not_exists" {
		if err := p.expect(","); err != nil {
			return nil, err
		}
		if c.arg, err = p.parseOperand(); err != nil {
			return nil, err
		}
	}
	return c, p.expect(")")
}

// setValue is the right hand side of a SET action. It is evaluated against
// the item as it was before the update.
type setValue interface {
	eval(item Item) (types.AttributeValue, error)
}

type operandValue struct{ op operand }

func (v operandValue) eval(item Item) (types.AttributeValue, error) {
	out, ok := v.op.eval(item)
	if !ok {
		if p, isPath := v.op.(pathOperand); isPath {
			return nil, fmt.Errorf("the provided expression refers to an attribute that does not exist in the item: %s", p.path)
		}
		return nil, fmt.Errorf("operand has no value")
	}
	return out, nil
}

type arithValue struct {
	op          string
	left, right setValue
}

func (v arithValue) eval(item Item) (types.AttributeValue, error) {
	l, err := v.left.eval(item)
	if err != nil {
		return nil, err
	}
	r, err := v.right.eval(item)
	if err != nil {
		return nil, err
	}
	a, ok1 := numberOf(l)
	b, ok2 := numberOf(r)
	if !ok1 || !ok2 {
		return nil, fmt.Errorf("incorrect operand type for operator %s", v.op)
	}
	if v.op == "+" {
		return numberValue(new(big.Rat).Add(a, b)), nil
	}
	return numberValue(new(big.Rat).Sub(a, b)), nil
}

type listAppendValue struct{ left, right setValue }

func (v listAppendValue) eval(item Item) (types.AttributeValue, error) {
	l, err := v.left.eval(item)
	if err != nil {
		return nil, err
	}
	r, err := v.right.eval(item)
	if err != nil {
		return nil, err
	}
	a, ok1 := l.(*types.AttributeValueMemberL)
	b, ok2 := r.(*types.AttributeValueMemberL)
	if !ok1 || !ok2 {
		return nil, fmt.Errorf("list_append requires two lists")
	}
	out := make([]types.AttributeValue, 0, len(a.Value)+len(b.Value))
	out = append(out, a.Value...)
	out = append(out, b.Value...)
	return &types.AttributeValueMemberL{Value: out}, nil
}

type ifNotExistsValue struct {
	path     attrPath
	fallback setValue
}

func (v ifNotExistsValue) eval(item Item) (types.AttributeValue, error) {
	if existing, ok := getPath(item, v.path); ok {
		return existing, nil
	}
	return v.fallback.eval(item)
}

type updateAction struct {
	kind  string
	path  attrPath
	value setValue
}

// parseUpdate parses an update expression into its actions, in order.
func parseUpdate(expr string, names map[string]string, values map[string]types.AttributeValue) ([]updateAction, error) {
	p, err := newParser(expr, names, values)
	if err != nil {
		return nil, err
	}

	var actions []updateAction
	for p.peek().kind != tokEOF {
		t := p.next()
		kind := strings.ToUpper(t.text)
		if t.kind != tokIdent {
			return nil, fmt.Errorf("expected update clause at offset %d, got %q", t.pos, t.text)
		}

		for {
			path, err := p.parsePath()
			if err != nil {
				return nil, err
			}
			action := updateAction{kind: kind, path: path}

			switch kind {
			case "SET":
				if err := p.expect("="); err != nil {
					return nil, err
				}
				if action.value, err = p.parseSetValue(); err != nil {
					return nil, err
				}
			case "ADD", "DELETE":
				o, err := p.parseOperand()
				if err != nil {
					return nil, err
				}
				action.value = operandValue{op: o}
			case "REMOVE":
			default:
				return nil, fmt.Errorf("unknown update clause %q", t.text)
			}

			actions = append(actions, action)
			if !p.isPunct(",") {
				break
			}
			p.next()
		}
	}

	if len(actions) == 0 {
		return nil, fmt.Errorf("empty update expression")
	}
	return actions, nil
}

func (p *parser) parseSetValue() (setValue, error) {
	left, err := p.parseTerm()
	if err != nil {
		return nil, err
	}
	if p.isPunct("+") || p.isPunct("-") {
		op := p.next().text
		right, err := p.parseTerm()
		if err != nil {
			return nil, err
		}
		return arithValue{op: op, left: left, right: right}, nil
	}
	return left, nil
}

func (p *parser) parseTerm() (setValue, error) {
	t := p.peek()
	if t.kind == tokIdent && p.peekAt(1).text == "(" {
		switch strings.ToLower(t.text) {
		case "list_append":
			p.next()
			p.next()
			left, err := p.parseSetValue()
			if err != nil {
				return nil, err
			}
			if err := p.expect(","); err != nil {
				return nil, err
			}
			right, err := p.parseSetValue()
			if err != nil {
				return nil, err
			}
			return listAppendValue{left: left, right: right}, p.expect(")")
		case "if_not_exists":
			p.next()
			p.next()
			path, err := p.parsePath()
			if err != nil {
				return nil, err
			}
			if err := p.expect(","); err != nil {
				return nil, err
			}
			fallback, err := p.parseSetValue()
			if err != nil {
				return nil, err
			}
			return ifNotExistsValue{path: path, fallback: fallback}, p.expect(")")
		}
	}
	o, err := p.parseOperand()
	if err != nil {
		return nil, err
	}
	return operandValue{op: o}, nil
}

// applyUpdate returns a copy of item with actions applied. Every value is
// computed from the original item.
func applyUpdate(item Item, actions []updateAction) (Item, error) {
	out := copyItem(item)
	for _, a := range actions {
		switch a.kind {
		case "SET":
			v, err := a.value.eval(item)
			if err != nil {
				return nil, err
			}
			if err := setPath(out, a.path, v); err != nil {
				return nil, err
			}
		case "REMOVE":
			removePath(out, a.path)
		case "ADD":
			v, err := a.value.eval(item)
			if err != nil {
				return nil, err
			}
			current, exists := getPath(item, a.path)
			next, err := addValues(current, exists, v)
			if err != nil {
				return nil, err
			}
			if err := setPath(out, a.path, next); err != nil {
				return nil, err
			}
		case "DELETE":
			v, err := a.value.eval(item)
			if err != nil {
				return nil, err
			}
			current, exists := getPath(item, a.path)
			if !exists {
				continue
			}
			next, empty := deleteFromSet(current, v)
			if empty {
				removePath(out, a.path)
				continue
			}
			if err := setPath(out, a.path, next); err != nil {
				return nil, err
			}
		}
	}
	return out, nil
}

func getPath(item Item, path attrPath) (types.AttributeValue, bool) {
	if len(path) == 0 || item == nil {
		return nil, false
	}
	v, ok := item[path[0]]
	for _, seg := range path[1:] {
		if !ok {
			return nil, false
		}
		m, isMap := v.(*types.AttributeValueMemberM)
		if !isMap {
			return nil, false
		}
		v, ok = m.Value[seg]
	}
	return v, ok
}

func setPath(item Item, path attrPath, v types.AttributeValue) error {
	if len(path) == 1 {
		item[path[0]] = v
		return nil
	}
	parent, ok := item[path[0]].(*types.AttributeValueMemberM)
	if !ok {
		return fmt.Errorf("the document path %s is invalid for update", path)
	}
	child := copyItem(parent.Value)
	if err := setPath(child, path[1:], v); err != nil {
		return err
	}
	item[path[0]] = &types.AttributeValueMemberM{Value: child}
	return nil
}

func removePath(item Item, path attrPath) {
	if len(path) == 1 {
		delete(item, path[0])
		return
	}
	parent, ok := item[path[0]].(*types.AttributeValueMemberM)
	if !ok {
		return
	}
	child := copyItem(parent.Value)
	removePath(child, path[1:])
	item[path[0]] = &types.AttributeValueMemberM{Value: child}
}

func numberOf(v types.AttributeValue) (*big.Rat, bool) {
	n, ok := v.(*types.AttributeValueMemberN)
	if !ok {
		return nil, false
	}
	return new(big.Rat).SetString(n.Value)
}

func numberValue(r *big.Rat) types.AttributeValue {
	if r.IsInt() {
		return &types.AttributeValueMemberN{Value: r.Num().String()}
	}
	return &types.AttributeValueMemberN{Value: strings.TrimRight(r.FloatString(38), "0")}
}

func addValues(current types.AttributeValue, exists bool, v types.AttributeValue) (types.AttributeValue, error) {
	switch tv := v.(type) {
	case *types.AttributeValueMemberN:
		if !exists {
			return tv, nil
		}
		a, ok1 := numberOf(current)
		b, ok2 := numberOf(tv)
		if !ok1 || !ok2 {
			return nil, fmt.Errorf("an operand in the update expression has an incorrect data type")
		}
		return numberValue(new(big.Rat).Add(a, b)), nil
	case *types.AttributeValueMemberSS:
		if !exists {
			return tv, nil
		}
		cur, ok := current.(*types.AttributeValueMemberSS)
		if !ok {
			return nil, fmt.Errorf("an operand in the update expression has an incorrect data type")
		}
		return &types.AttributeValueMemberSS{Value: unionStrings(cur.Value, tv.Value)}, nil
	case *types.AttributeValueMemberNS:
		if !exists {
			return tv, nil
		}
		cur, ok := current.(*types.AttributeValueMemberNS)
		if !ok {
			return nil, fmt.Errorf("an operand in the update expression has an incorrect data type")
		}
		return &types.AttributeValueMemberNS{Value: unionStrings(cur.Value, tv.Value)}, nil
	}
	return nil, fmt.Errorf("ADD supports numbers and sets only")
}

func deleteFromSet(current, v types.AttributeValue) (types.AttributeValue, bool) {
	switch cur := current.(type) {
	case *types.AttributeValueMemberSS:
		if drop, ok := v.(*types.AttributeValueMemberSS); ok {
			left := subtractStrings(cur.Value, drop.Value)
			return &types.AttributeValueMemberSS{Value: left}, len(left) == 0
		}
	case *types.AttributeValueMemberNS:
		if drop, ok := v.(*types.AttributeValueMemberNS); ok {
			left := subtractStrings(cur.Value, drop.Value)
			return &types.AttributeValueMemberNS{Value: left}, len(left) == 0
		}
	}
	return current, false
}

func unionStrings(a, b []string) []string {
	out := append([]string(nil), a...)
	for _, s := range b {
		found := false
		for _, t := range out {
			if s == t {
				found = true
				break
			}
		}
		if !found {
			out = append(out, s)
		}
	}
	return out
}

func subtractStrings(a, b []string) []string {
	var out []string
	for _, s := range a {
		keep := true
		for _, t := range b {
			if s == t {
				keep = false
				break
			}
		}
		if keep {
			out = append(out, s)
		}
	}
	return out
}

// compareValues orders two scalars of the same type.
func compareValues(a, b types.AttributeValue) (int, bool) {
	switch av := a.(type) {
	case *types.AttributeValueMemberS:
		if bv, ok := b.(*types.AttributeValueMemberS); ok {
			return strings.Compare(av.Value, bv.Value), true
		}
	case *types.AttributeValueMemberN:
		x, ok1 := numberOf(av)
		y, ok2 := numberOf(b)
		if ok1 && ok2 {
			return x.Cmp(y), true
		}
	case *types.AttributeValueMemberB:
		if bv, ok := b.(*types.AttributeValueMemberB); ok {
			return bytes.Compare(av.Value, bv.Value), true
		}
	}
	return 0, false
}

func equalValues(a, b types.AttributeValue) bool {
	if cmp, ok := compareValues(a, b); ok {
		return cmp == 0
	}
	return reflect.DeepEqual(a, b)
}

func containsValue(v, arg types.AttributeValue) bool {
	switch tv := v.(type) {
	case *types.AttributeValueMemberS:
		s, ok := arg.(*types.AttributeValueMemberS)
		return ok && strings.Contains(tv.Value, s.Value)
	case *types.AttributeValueMemberSS:
		s, ok := arg.(*types.AttributeValueMemberS)
		if !ok {
			return false
		}
		for _, e := range tv.Value {
			if e == s.Value {
				return true
			}
		}
	case *types.AttributeValueMemberNS:
		for _, e := range tv.Value {
			if equalValues(&types.AttributeValueMemberN{Value: e}, arg) {
				return true
			}
		}
	case *types.AttributeValueMemberL:
		for _, e := range tv.Value {
			if equalValues(e, arg) {
				return true
			}
		}
	}
	return false
}

func typeCode(v types.AttributeValue) string {
	switch v.(type) {
	case *types.AttributeValueMemberS:
		return "S"
	case *types.AttributeValueMemberN:
		return "N"
	case *types.AttributeValueMemberB:
		return "B"
	case *types.AttributeValueMemberBOOL:
		return "BOOL"
	case *types.AttributeValueMemberNULL:
		return "NULL"
	case *types.AttributeValueMemberL:
		return "L"
	case *types.AttributeValueMemberM:
		return "M"
	case *types.AttributeValueMemberSS:
		return "SS"
	case *types.AttributeValueMemberNS:
		return "NS"
	case *types.AttributeValueMemberBS:
		return "BS"
	}
	return ""
}

func copyItem(item Item) Item {
	if item == nil {
		return nil
	}
	out := make(Item, len(item))
	for k, v := range item {
		out[k] = copyValue(v)
	}
	return out
}

func copyValue(v types.AttributeValue) types.AttributeValue {
	switch tv := v.(type) {
	case *types.AttributeValueMemberS:
		return &types.AttributeValueMemberS{Value: tv.Value}
	case *types.AttributeValueMemberN:
		return &types.AttributeValueMemberN{Value: tv.Value}
	case *types.AttributeValueMemberB:
		return &types.AttributeValueMemberB{Value: append([]byte(nil), tv.Value...)}
	case *types.AttributeValueMemberBOOL:
		return &types.AttributeValueMemberBOOL{Value: tv.Value}
	case *types.AttributeValueMemberNULL:
		return &types.AttributeValueMemberNULL{Value: tv.Value}
	case *types.AttributeValueMemberSS:
		return &types.AttributeValueMemberSS{Value: append([]string(nil), tv.Value...)}
	case *types.AttributeValueMemberNS:
		return &types.AttributeValueMemberNS{Value: append([]string(nil), tv.Value...)}
	case *types.AttributeValueMemberBS:
		out := make([][]byte, len(tv.Value))
		for i, b := range tv.Value {
			out[i] = append([]byte(nil), b...)
		}
		return &types.AttributeValueMemberBS{Value: out}
	case *types.AttributeValueMemberL:
		out := make([]types.AttributeValue, len(tv.Value))
		for i, e := range tv.Value {
			out[i] = copyValue(e)
		}
		return &types.AttributeValueMemberL{Value: out}
	case *types.AttributeValueMemberM:
		return &types.AttributeValueMemberM{Value: copyItem(tv.Value)}
	}
	return v
}
