package optimizer

import (
	"fmt"
	"strconv"

	"github.com/JoaoAMarinho/FEUP-COMP/pkg/frontend"
)

// FoldConstants folds every constant operation below root and returns the
// number of folds.
func FoldConstants(t *frontend.Tree, root frontend.NodeID) (int, error) {
	c := newCycle(t, nil)
	err := c.fold(root)
	return c.Folded, err
}

// fold works bottom-up, so a chain like 1 + 2 * 3 collapses in one pass
func (c *cycle) fold(id frontend.NodeID) error {
	t := c.tree
	for _, child := range append([]frontend.NodeID(nil), t.Children(id)...) {
		if err := c.fold(child); err != nil {
			return err
		}
	}

	switch t.Kind(id) {
	case frontend.KindBinOp:
		op := t.Get(id, frontend.AttrOp)
		l, r := t.Child(id, 0), t.Child(id, 1)
		if op == frontend.OpAccess || !t.IsLiteral(l) || !t.IsLiteral(r) {
			return nil
		}
		typ, image, err := c.evalBinary(op, l, r)
		if err != nil {
			return c.positioned(id, err)
		}
		c.replaceWithLiteral(id, typ, image)

	case frontend.KindUnaryOp:
		operand := t.Child(id, 0)
		if !t.IsLiteral(operand) {
			return nil
		}
		switch t.Get(id, frontend.AttrOp) {
		case frontend.OpNot:
			v, err := c.boolean(operand)
			if err != nil {
				return c.positioned(id, err)
			}
			c.replaceWithLiteral(id, frontend.TypeBoolean, strconv.FormatBool(!v))
		case frontend.OpArrayInit:
			size, err := c.integer(operand)
			if err != nil {
				return c.positioned(id, err)
			}
			if size < 0 {
				return c.positioned(id, fmt.Errorf("%w: %d", ErrNegativeArraySize, size))
			}
		}
	}
	return nil
}

func (c *cycle) evalBinary(op string, l, r frontend.NodeID) (typ, image string, err error) {
	if op == frontend.OpAnd {
		a, err := c.boolean(l)
		if err != nil {
			return "", "", err
		}
		b, err := c.boolean(r)
		if err != nil {
			return "", "", err
		}
		return frontend.TypeBoolean, strconv.FormatBool(a && b), nil
	}

	a, err := c.integer(l)
	if err != nil {
		return "", "", err
	}
	b, err := c.integer(r)
	if err != nil {
		return "", "", err
	}

	var v int32
	switch op {
	case frontend.OpLt:
		return frontend.TypeBoolean, strconv.FormatBool(a < b), nil
	case frontend.OpAdd:
		v = a + b
	case frontend.OpSub:
		v = a - b
	case frontend.OpMul:
		v = a * b
	case frontend.OpDiv:
		if b == 0 {
			return "", "", ErrDivisionByZero
		}
		v = a / b
	default:
		return "", "", fmt.Errorf("%w: operator %s", ErrInvalidOperand, op)
	}
	return frontend.TypeInt, strconv.FormatInt(int64(v), 10), nil
}

func (c *cycle) integer(id frontend.NodeID) (int32, error) {
	if c.tree.Get(id, frontend.AttrType) != frontend.TypeInt {
		return 0, fmt.Errorf("%w: expected int, got %s", ErrInvalidOperand, c.tree.Get(id, frontend.AttrType))
	}
	v, err := c.tree.Int32(id)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidOperand, c.tree.Get(id, frontend.AttrImage))
	}
	return v, nil
}

func (c *cycle) boolean(id frontend.NodeID) (bool, error) {
	if c.tree.Get(id, frontend.AttrType) != frontend.TypeBoolean {
		return false, fmt.Errorf("%w: expected boolean, got %s", ErrInvalidOperand, c.tree.Get(id, frontend.AttrType))
	}
	v, err := strconv.ParseBool(c.tree.Get(id, frontend.AttrImage))
	if err != nil {
		return false, fmt.Errorf("%w: %q", ErrInvalidOperand, c.tree.Get(id, frontend.AttrImage))
	}
	return v, nil
}

func (c *cycle) replaceWithLiteral(id frontend.NodeID, typ, image string) {
	lit := c.literal(id, typ, image)
	c.tree.Replace(id, lit)
	c.Folded++
}

// literal creates a terminal that keeps the source position of at
func (c *cycle) literal(at frontend.NodeID, typ, image string) frontend.NodeID {
	t := c.tree
	lit := t.New(frontend.KindTerminal, frontend.AttrType, typ, frontend.AttrImage, image)
	for _, key := range []string{frontend.AttrLine, frontend.AttrCol} {
		if v, ok := t.Lookup(at, key); ok {
			t.Put(lit, key, v)
		}
	}
	return lit
}

func (c *cycle) positioned(id frontend.NodeID, err error) error {
	line, col := c.tree.Position(id)
	return fmt.Errorf("fold %s at %d:%d: %w", c.tree.Get(id, frontend.AttrOp), line, col, err)
}
