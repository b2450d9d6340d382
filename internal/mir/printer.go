package mir

import (
	"fmt"
	"strings"
)

// Printer renders a Module or Function into the canonical textual MIR
// form used by golden tests. Two spaces per indent level, following the
// same writeIndent/writeLine convention used elsewhere in this compiler.
type Printer struct {
	indent int
	output strings.Builder
}

func NewPrinter() *Printer { return &Printer{} }

// PrintModule returns the textual form of every function in m, in order.
func PrintModule(m *Module) string {
	p := NewPrinter()
	for i, fn := range m.Functions {
		if i > 0 {
			p.writeLine("")
		}
		p.printFunction(fn)
	}
	return p.output.String()
}

// PrintFunction returns the textual form of a single function.
func PrintFunction(fn *Function) string {
	p := NewPrinter()
	p.printFunction(fn)
	return p.output.String()
}

func (p *Printer) writeIndent() {
	for i := 0; i < p.indent; i++ {
		p.output.WriteString("  ")
	}
}

func (p *Printer) writeLine(format string, args ...interface{}) {
	p.writeIndent()
	p.output.WriteString(fmt.Sprintf(format, args...))
	p.output.WriteString("\n")
}

func (p *Printer) printFunction(fn *Function) {
	params := make([]string, len(fn.Parameters))
	for i, id := range fn.Parameters {
		ty, _ := fn.TypeOf(id)
		params[i] = fmt.Sprintf("%s: %s", id, typeString(ty))
	}
	returns := make([]string, len(fn.ReturnValues))
	for i, id := range fn.ReturnValues {
		ty, _ := fn.TypeOf(id)
		returns[i] = typeString(ty)
	}

	p.writeLine("fn %s(%s) -> %s {", fn.Name, strings.Join(params, ", "), strings.Join(returns, ", "))
	p.indent++
	p.writeLine("entry: %s", fn.EntryBlock)

	for _, id := range fn.BlockOrder() {
		p.printBlock(fn, fn.Blocks[id])
	}

	p.indent--
	p.writeLine("}")
}

func (p *Printer) printBlock(fn *Function, block *BasicBlock) {
	if block.Name != "" {
		p.writeLine("%s (%s):", block.ID, block.Name)
	} else {
		p.writeLine("%s:", block.ID)
	}
	p.indent++
	for _, instr := range block.Instructions {
		p.printInstruction(fn, instr)
	}
	if block.Terminator != nil {
		p.writeLine("%s", block.Terminator.String())
	}
	p.indent--
}

func (p *Printer) printInstruction(fn *Function, instr Instruction) {
	line := instr.String()
	if c := instr.Comment(); c != "" {
		line = fmt.Sprintf("%s  ; %s", line, c)
	}
	p.writeLine("%s", line)
}

func typeString(ty MirType) string {
	if ty == nil {
		return "?"
	}
	return ty.String()
}
