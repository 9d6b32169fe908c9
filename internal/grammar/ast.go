package grammar

import "github.com/nlstn/go-datasource/internal/descriptor"

// Node represents a node in the filter abstract syntax tree
type Node interface {
	Accept(v Visitor)
	filterNode()
}

// ConstantKind tells which literal produced a constant
type ConstantKind int

const (
	ConstantBoolean ConstantKind = iota
	ConstantNumber
	ConstantString
	ConstantDateTime
)

// ComparisonNode represents a comparison (e.g., Age gt 30) or a unary test (e.g., Email isnull)
type ComparisonNode struct {
	First    Node
	Operator descriptor.FilterOperator
	Second   Node
}

// FunctionNode represents a function call (e.g., startswith(Name,'Jo'))
type FunctionNode struct {
	Operator  descriptor.FilterOperator
	Arguments []Node
}

// AndNode represents First and Second
type AndNode struct {
	First  Node
	Second Node
}

// OrNode represents First or Second
type OrNode struct {
	First  Node
	Second Node
}

// NotNode represents not Operand
type NotNode struct {
	Operand Node
}

// PropertyNode represents a member path
type PropertyNode struct {
	Name string
}

// ConstantNode represents a literal value
type ConstantNode struct {
	Value interface{}
	Kind  ConstantKind
}

func (*ComparisonNode) filterNode() {}
func (*FunctionNode) filterNode()   {}
func (*AndNode) filterNode()        {}
func (*OrNode) filterNode()         {}
func (*NotNode) filterNode()        {}
func (*PropertyNode) filterNode()   {}
func (*ConstantNode) filterNode()   {}

// Visitor receives StartVisit/EndVisit around composite nodes and Visit for leaves.
type Visitor interface {
	StartVisit(node Node)
	Visit(node Node)
	EndVisit(node Node)
}

func (n *ComparisonNode) Accept(v Visitor) {
	v.StartVisit(n)
	n.First.Accept(v)
	if n.Second != nil {
		n.Second.Accept(v)
	}
	v.EndVisit(n)
}

func (n *FunctionNode) Accept(v Visitor) {
	v.StartVisit(n)
	for _, arg := range n.Arguments {
		arg.Accept(v)
	}
	v.EndVisit(n)
}

func (n *AndNode) Accept(v Visitor) {
	v.StartVisit(n)
	n.First.Accept(v)
	n.Second.Accept(v)
	v.EndVisit(n)
}

func (n *OrNode) Accept(v Visitor) {
	v.StartVisit(n)
	n.First.Accept(v)
	n.Second.Accept(v)
	v.EndVisit(n)
}

func (n *NotNode) Accept(v Visitor) {
	v.StartVisit(n)
	n.Operand.Accept(v)
	v.EndVisit(n)
}

func (n *PropertyNode) Accept(v Visitor) { v.Visit(n) }
func (n *ConstantNode) Accept(v Visitor) { v.Visit(n) }

// Walk visits node depth-first. A nil node is not visited.
func Walk(node Node, v Visitor) {
	if node != nil {
		node.Accept(v)
	}
}
