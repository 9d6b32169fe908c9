package grammar

import (
	"strings"

	"github.com/nlstn/go-datasource/internal/descriptor"
)

// printer renders a tree in prefix form, e.g. and(gt(Age,30),startswith(Name,'Jo')).
type printer struct {
	b     strings.Builder
	first []bool
}

// Format renders node in a compact prefix notation used in logs and tests.
func Format(node Node) string {
	if node == nil {
		return ""
	}
	p := &printer{}
	Walk(node, p)
	return p.b.String()
}

func (p *printer) separate() {
	if n := len(p.first); n > 0 {
		if !p.first[n-1] {
			p.b.WriteByte(',')
		}
		p.first[n-1] = false
	}
}

func (p *printer) StartVisit(node Node) {
	p.separate()
	switch n := node.(type) {
	case *AndNode:
		p.b.WriteString("and")
	case *OrNode:
		p.b.WriteString("or")
	case *NotNode:
		p.b.WriteString("not")
	case *ComparisonNode:
		p.b.WriteString(string(n.Operator))
	case *FunctionNode:
		p.b.WriteString(string(n.Operator))
	}
	p.b.WriteByte('(')
	p.first = append(p.first, true)
}

func (p *printer) Visit(node Node) {
	p.separate()
	switch n := node.(type) {
	case *PropertyNode:
		p.b.WriteString(n.Name)
	case *ConstantNode:
		p.b.WriteString(descriptor.FormatValue(n.Value))
	}
}

func (p *printer) EndVisit(Node) {
	p.first = p.first[:len(p.first)-1]
	p.b.WriteByte(')')
}
