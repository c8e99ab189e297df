package semantic

import (
	"github.com/kolkov/ndcalc/internal/token"
)

// Symbol holds information about a declared variable.
type Symbol struct {
	Name  string // Variable name
	Index int    // Position in the declared list; the bytecode LoadVar operand
	Used  bool   // Whether the expression references the variable
}

// SymbolTable maps declared variable names to their indices.
// Declaration order is significant: it fixes each variable's slot in the
// input vector.
type SymbolTable struct {
	symbols map[string]*Symbol
	order   []*Symbol
}

// NewSymbolTable creates an empty symbol table.
func NewSymbolTable() *SymbolTable {
	return &SymbolTable{
		symbols: make(map[string]*Symbol),
	}
}

// Define appends a new variable and returns its symbol,
// or nil if a variable with that name already exists.
func (st *SymbolTable) Define(name string) *Symbol {
	if _, exists := st.symbols[name]; exists {
		return nil
	}
	sym := &Symbol{
		Name:  name,
		Index: len(st.order),
	}
	st.symbols[name] = sym
	st.order = append(st.order, sym)
	return sym
}

// Lookup finds a variable by name.
func (st *SymbolTable) Lookup(name string) (*Symbol, bool) {
	sym, ok := st.symbols[name]
	return sym, ok
}

// Resolve looks up name and marks it used.
func (st *SymbolTable) Resolve(name string) (*Symbol, bool) {
	sym, ok := st.symbols[name]
	if ok {
		sym.Used = true
	}
	return sym, ok
}

// Len returns the number of declared variables.
func (st *SymbolTable) Len() int {
	return len(st.order)
}

// Names returns the declared names in index order.
func (st *SymbolTable) Names() []string {
	names := make([]string, len(st.order))
	for i, sym := range st.order {
		names[i] = sym.Name
	}
	return names
}

// Unused returns the names of declared variables the expression never
// references, in index order.
func (st *SymbolTable) Unused() []string {
	var names []string
	for _, sym := range st.order {
		if !sym.Used {
			names = append(names, sym.Name)
		}
	}
	return names
}

// ForEach calls fn for each symbol in index order.
func (st *SymbolTable) ForEach(fn func(sym *Symbol)) {
	for _, sym := range st.order {
		fn(sym)
	}
}

// reserved reports whether name collides with a built-in function.
func reserved(name string) bool {
	return token.IsBuiltinName(name)
}
