package graph

import "github.com/flowdeck/flowdeck/internal/flow"

// FieldKind is the input widget rendered for a parameter field.
type FieldKind string

const (
	FieldText     FieldKind = "text"
	FieldTextarea FieldKind = "textarea"
	FieldNumber   FieldKind = "number"
	FieldSelect   FieldKind = "select"
	FieldToggle   FieldKind = "toggle"
	FieldJSON     FieldKind = "json"
)

// FieldSchema describes one parameter field of a node type, used by the
// inspector to render the right input.
type FieldSchema struct {
	Key         string    `json:"key"`
	Label       string    `json:"label"`
	Kind        FieldKind `json:"kind"`
	Options     []string  `json:"options,omitempty"`
	Placeholder string    `json:"placeholder,omitempty"`
	Default     any       `json:"default,omitempty"`
}

// NodeSpec is one catalog entry: display metadata plus the parameter
// schema for a node type. Branches lists the outgoing handles of
// branching node types; non-branching types have none.
type NodeSpec struct {
	Type     flow.NodeType `json:"type"`
	Label    string        `json:"label"`
	Fields   []FieldSchema `json:"fields"`
	Branches []string      `json:"branches,omitempty"`
	Fallback bool          `json:"-"`
}

// Branching reports whether the node type routes by handle.
func (s NodeSpec) Branching() bool { return len(s.Branches) > 0 }

// DefaultParameters seeds a fresh parameter map from field defaults.
func (s NodeSpec) DefaultParameters() map[string]any {
	params := make(map[string]any)
	for _, f := range s.Fields {
		if f.Default != nil {
			params[f.Key] = f.Default
		}
	}
	return params
}

// Catalog maps node-type tags to their specs. Unknown tags resolve to an
// explicit fallback spec (empty field list, generic label) so the editor
// degrades instead of failing.
type Catalog struct {
	specs    map[flow.NodeType]NodeSpec
	fallback NodeSpec
}

// NewCatalog creates an empty catalog with the generic fallback entry.
func NewCatalog() *Catalog {
	return &Catalog{
		specs: make(map[flow.NodeType]NodeSpec),
		fallback: NodeSpec{
			Label:    "Unknown step",
			Fallback: true,
		},
	}
}

// Register adds or replaces a catalog entry.
func (c *Catalog) Register(spec NodeSpec) {
	c.specs[spec.Type] = spec
}

// Lookup resolves a node-type tag. Unknown tags return the fallback spec
// (with the requested type filled in) and ok=false.
func (c *Catalog) Lookup(t flow.NodeType) (NodeSpec, bool) {
	if spec, ok := c.specs[t]; ok {
		return spec, true
	}
	fb := c.fallback
	fb.Type = t
	return fb, false
}

// Specs returns all registered entries in arbitrary order.
func (c *Catalog) Specs() []NodeSpec {
	out := make([]NodeSpec, 0, len(c.specs))
	for _, s := range c.specs {
		out = append(out, s)
	}
	return out
}

// DefaultCatalog returns the built-in node-type catalog.
func DefaultCatalog() *Catalog {
	c := NewCatalog()
	c.Register(NodeSpec{
		Type:  flow.NodeTypeTrigger,
		Label: "Trigger",
		Fields: []FieldSchema{
			{Key: "event", Label: "Event", Kind: FieldSelect, Options: []string{"manual", "webhook", "schedule"}, Default: "manual"},
			{Key: "cron", Label: "Schedule (cron)", Kind: FieldText, Placeholder: "0 9 * * MON-FRI"},
		},
	})
	c.Register(NodeSpec{
		Type:  flow.NodeTypeAction,
		Label: "Action",
		Fields: []FieldSchema{
			{Key: "service", Label: "Service", Kind: FieldSelect, Options: []string{"google", "stripe", "slack", "http"}},
			{Key: "operation", Label: "Operation", Kind: FieldText, Placeholder: "send_message"},
			{Key: "payload", Label: "Payload", Kind: FieldJSON},
		},
	})
	c.Register(NodeSpec{
		Type:  flow.NodeTypeCondition,
		Label: "Condition",
		Fields: []FieldSchema{
			{Key: "expression", Label: "Expression", Kind: FieldText, Placeholder: `amount > 100`},
		},
		Branches: []string{"yes", "no"},
	})
	c.Register(NodeSpec{
		Type:  flow.NodeTypeApproval,
		Label: "Approval gate",
		Fields: []FieldSchema{
			{Key: "message", Label: "Message", Kind: FieldTextarea, Placeholder: "Describe what is being approved"},
		},
	})
	c.Register(NodeSpec{
		Type:  flow.NodeTypeAI,
		Label: "AI step",
		Fields: []FieldSchema{
			{Key: "prompt", Label: "Prompt", Kind: FieldTextarea},
			{Key: "temperature", Label: "Temperature", Kind: FieldNumber, Default: 0.7},
		},
	})
	c.Register(NodeSpec{
		Type:  flow.NodeTypeDelay,
		Label: "Delay",
		Fields: []FieldSchema{
			{Key: "duration", Label: "Duration", Kind: FieldText, Placeholder: "5m", Default: "1m"},
		},
	})
	return c
}
