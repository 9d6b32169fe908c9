package grammar

import "github.com/nlstn/go-datasource/internal/descriptor"

// ParseFilter parses filter text into a descriptor tree. Empty text yields nil.
func ParseFilter(text string) (descriptor.Filter, error) {
	node, err := Parse(text)
	if err != nil {
		return nil, err
	}
	if node == nil {
		return nil, nil
	}
	return BuildFilter(node)
}

// BuildFilter converts an AST into filter descriptors. Chains of the same
// logical operator become one composite and not is pushed down onto the leaves.
func BuildFilter(node Node) (descriptor.Filter, error) {
	switch n := node.(type) {
	case *AndNode:
		return buildComposite(descriptor.LogicalAnd, n.First, n.Second)
	case *OrNode:
		return buildComposite(descriptor.LogicalOr, n.First, n.Second)
	case *NotNode:
		operand, err := BuildFilter(n.Operand)
		if err != nil {
			return nil, err
		}
		return negate(operand)
	case *ComparisonNode:
		operands := []Node{n.First}
		if n.Second != nil {
			operands = append(operands, n.Second)
		}
		return buildLeaf(n.Operator, operands)
	case *FunctionNode:
		return buildLeaf(n.Operator, n.Arguments)
	case *PropertyNode:
		return nil, newGrammarError(0, n.Name, "expected a comparison, got a bare member")
	case *ConstantNode:
		return nil, newGrammarError(0, descriptor.FormatValue(n.Value), "expected a comparison, got a bare value")
	}
	return nil, newGrammarError(0, "", "unsupported node %T", node)
}

func buildComposite(op descriptor.LogicalOperator, first, second Node) (descriptor.Filter, error) {
	left, err := BuildFilter(first)
	if err != nil {
		return nil, err
	}
	right, err := BuildFilter(second)
	if err != nil {
		return nil, err
	}
	out := &descriptor.CompositeFilterDescriptor{LogicalOperator: op}
	for _, child := range []descriptor.Filter{left, right} {
		// a and b and c parses left-nested; keep it as one composite
		if c, ok := child.(*descriptor.CompositeFilterDescriptor); ok && c.LogicalOperator == op {
			out.Children = append(out.Children, c.Children...)
			continue
		}
		out.Children = append(out.Children, child)
	}
	return out, nil
}

// buildLeaf assigns operands in order of appearance: the first property is
// the member, anything after it is the value. A property in value position
// contributes its name, which is how the null literal is spelled.
func buildLeaf(op descriptor.FilterOperator, operands []Node) (descriptor.Filter, error) {
	if len(operands) > 2 {
		return nil, newGrammarError(0, string(op), "expected at most two arguments, got %d", len(operands))
	}

	leaf := &descriptor.FilterDescriptor{Operator: op}
	hasValue := false
	for _, operand := range operands {
		switch o := operand.(type) {
		case *PropertyNode:
			if leaf.Member == "" {
				leaf.Member = o.Name
			} else {
				leaf.Value = o.Name
				hasValue = true
			}
		case *ConstantNode:
			leaf.Value = o.Value
			hasValue = true
		default:
			return nil, newGrammarError(0, string(op), "operands must be members or literals")
		}
	}

	if leaf.Member == "" {
		return nil, newGrammarError(0, string(op), "missing member")
	}
	if !op.IsUnary() && !hasValue {
		return nil, newGrammarError(0, string(op), "missing value")
	}
	return leaf, nil
}

func negate(f descriptor.Filter) (descriptor.Filter, error) {
	switch n := f.(type) {
	case *descriptor.FilterDescriptor:
		op, ok := n.Operator.Negate()
		if !ok {
			return nil, newGrammarError(0, string(n.Operator), "operator cannot be negated")
		}
		return &descriptor.FilterDescriptor{Member: n.Member, Operator: op, Value: n.Value}, nil
	case *descriptor.CompositeFilterDescriptor:
		out := &descriptor.CompositeFilterDescriptor{LogicalOperator: descriptor.LogicalAnd}
		if n.LogicalOperator == descriptor.LogicalAnd {
			out.LogicalOperator = descriptor.LogicalOr
		}
		for _, child := range n.Children {
			c, err := negate(child)
			if err != nil {
				return nil, err
			}
			out.Children = append(out.Children, c)
		}
		return out, nil
	}
	return nil, newGrammarError(0, "", "unsupported filter %T", f)
}
