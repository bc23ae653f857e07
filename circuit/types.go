// Package circuit implements the circuit DSL decoder and the graph
// well-formedness checks a decoded circuit must satisfy before a board can
// be built from it.
package circuit

// Instance is one "<alias> = <tsi_type_path>" declaration.
type Instance struct {
	Alias   string
	TsiType string // raw canonical path text, undecoded
	Line    int
}

// Endpoint is one side of a Hop.
type Endpoint struct {
	Alias     string
	Directive string
	Kind      string // only set on the "from" side; "to" kind is inferred
}

// Hop is one "<alias>@<directive>:<kind> -> <alias>@<directive>" declaration.
type Hop struct {
	From Endpoint
	To   Endpoint
	Line int
}

// Circuit is one decoded named circuit block.
type Circuit struct {
	Name          string
	Instances     []Instance
	Hops          []Hop
	InvokeName    string
	InvokePayload string
}

// Document is the full set of circuits decoded from one DSL text.
type Document struct {
	Circuits []*Circuit
}

// InstanceByAlias returns the instance declaration for alias, if any.
func (c *Circuit) InstanceByAlias(alias string) (Instance, bool) {
	for _, in := range c.Instances {
		if in.Alias == alias {
			return in, true
		}
	}
	return Instance{}, false
}
