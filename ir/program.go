package ir

import (
	"sort"
	"strconv"

	"github.com/wippyai/ctoreval/errors"
)

// Linkage controls symbol visibility of a global.
type Linkage uint8

const (
	LinkageInternal Linkage = iota
	LinkageExternal
)

// Global is a global variable. A nil Init marks a declaration whose storage
// is defined elsewhere.
type Global struct {
	Init      Constant
	Type      *Type
	Name      string
	Linkage   Linkage
	ReadOnly  bool
	Synthetic bool
}

// IsDeclaration reports whether the global has no initializer in this program.
func (g *Global) IsDeclaration() bool { return g.Init == nil }

// Local is a typed register slot of a function.
type Local struct {
	Type *Type
	Name string
}

// Block is a labeled basic block.
type Block struct {
	Label  string
	Instrs []*Instr
}

// Function is a function definition or, without blocks, a declaration.
type Function struct {
	Sig    *Type
	Name   string
	Locals []Local
	Blocks []*Block
}

// IsDeclaration reports whether the function body lives outside the program.
func (f *Function) IsDeclaration() bool { return len(f.Blocks) == 0 }

// NumParams returns the number of parameters; they occupy the first locals.
func (f *Function) NumParams() int { return len(f.Sig.Params) }

// LocalName returns the text name of local i.
func (f *Function) LocalName(i int) string {
	if i >= 0 && i < len(f.Locals) && f.Locals[i].Name != "" {
		return "%" + f.Locals[i].Name
	}
	return "%" + strconv.Itoa(i)
}

// OperandType returns the static type of an operand.
func (f *Function) OperandType(o Operand) *Type {
	if o.Const != nil {
		return o.Const.Type()
	}
	return f.Locals[o.Local].Type
}

// FormatOperand renders an operand in IR text syntax.
func (f *Function) FormatOperand(o Operand) string {
	if o.Const != nil {
		return o.Const.String()
	}
	return f.LocalName(o.Local)
}

// Block returns the block with the given label.
func (f *Function) Block(label string) *Block {
	for _, b := range f.Blocks {
		if b.Label == label {
			return b
		}
	}
	return nil
}

// Constructor is a function that runs before the program entry point.
// Lower priorities run first.
type Constructor struct {
	Func     *Function
	Priority int
}

// DefaultPriority is the priority of constructors that do not specify one.
const DefaultPriority = 65535

// Program is a whole-program IR module.
type Program struct {
	symbols     map[string]any
	Name        string
	Types       []*Type
	Globals     []*Global
	Funcs       []*Function
	Ctors       []Constructor
	PointerSize uint32
}

// NewProgram creates an empty program for the wasm32 target.
func NewProgram(name string) *Program {
	return &Program{
		Name:        name,
		PointerSize: DefaultPointerSize,
		symbols:     make(map[string]any),
	}
}

// Layout returns a fresh layout calculator for the program's target.
func (p *Program) Layout() *Layout {
	return NewLayout(p.PointerSize)
}

func (p *Program) index() map[string]any {
	if p.symbols == nil {
		p.symbols = make(map[string]any)
		for _, g := range p.Globals {
			p.symbols[g.Name] = g
		}
		for _, f := range p.Funcs {
			p.symbols[f.Name] = f
		}
	}
	return p.symbols
}

// AddType registers a named struct type.
func (p *Program) AddType(t *Type) error {
	if t.Kind != KindStruct || t.Name == "" {
		return errors.InvalidInput(errors.PhaseParse, "only named structs can be registered, got "+t.String())
	}
	if p.Type(t.Name) != nil {
		return errors.InvalidInput(errors.PhaseParse, "duplicate type "+t.Name)
	}
	p.Types = append(p.Types, t)
	return nil
}

// Type returns the named struct type with the given name.
func (p *Program) Type(name string) *Type {
	for _, t := range p.Types {
		if t.Name == name {
			return t
		}
	}
	return nil
}

// AddGlobal adds a global. Globals and functions share one namespace.
func (p *Program) AddGlobal(g *Global) error {
	syms := p.index()
	if _, dup := syms[g.Name]; dup {
		return errors.InvalidInput(errors.PhaseCommit, "duplicate symbol @"+g.Name)
	}
	syms[g.Name] = g
	p.Globals = append(p.Globals, g)
	return nil
}

// AddFunc adds a function definition or declaration.
func (p *Program) AddFunc(f *Function) error {
	syms := p.index()
	if _, dup := syms[f.Name]; dup {
		return errors.InvalidInput(errors.PhaseCommit, "duplicate symbol @"+f.Name)
	}
	syms[f.Name] = f
	p.Funcs = append(p.Funcs, f)
	return nil
}

// Global returns the global with the given name.
func (p *Program) Global(name string) *Global {
	g, _ := p.index()[name].(*Global)
	return g
}

// Func returns the function with the given name.
func (p *Program) Func(name string) *Function {
	f, _ := p.index()[name].(*Function)
	return f
}

// HasSymbol reports whether name is used by a global or function.
func (p *Program) HasSymbol(name string) bool {
	_, ok := p.index()[name]
	return ok
}

// UniqueName returns base, or base with a numeric suffix, unused in the program.
func (p *Program) UniqueName(base string) string {
	if !p.HasSymbol(base) {
		return base
	}
	for i := 1; ; i++ {
		name := base + "." + strconv.Itoa(i)
		if !p.HasSymbol(name) {
			return name
		}
	}
}

// AddConstructor registers fn to run at start with the given priority.
func (p *Program) AddConstructor(fn *Function, priority int) {
	p.Ctors = append(p.Ctors, Constructor{Func: fn, Priority: priority})
}

// Constructors returns the constructors in execution order: ascending
// priority, registration order among equal priorities.
func (p *Program) Constructors() []Constructor {
	out := make([]Constructor, len(p.Ctors))
	copy(out, p.Ctors)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Priority < out[j].Priority
	})
	return out
}

// RemoveConstructor drops the registration of ctor.Func at ctor.Priority.
// Other registrations of the same function and the function itself stay
// in the program.
func (p *Program) RemoveConstructor(ctor Constructor) bool {
	for i, c := range p.Ctors {
		if c == ctor {
			p.Ctors = append(p.Ctors[:i], p.Ctors[i+1:]...)
			return true
		}
	}
	return false
}

// GlobalIndex returns the position of g in Globals, or -1.
func (p *Program) GlobalIndex(g *Global) int {
	for i, x := range p.Globals {
		if x == g {
			return i
		}
	}
	return -1
}

// GlobalNames returns the names of gs.
func GlobalNames(gs []*Global) []string {
	names := make([]string, len(gs))
	for i, g := range gs {
		names[i] = g.Name
	}
	return names
}
