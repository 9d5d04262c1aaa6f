package home

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"home-dispatch/internal/domain"
)

// ParamType is the JSON-schema type of an operation parameter.
type ParamType string

const (
	ParamString  ParamType = "string"
	ParamNumber  ParamType = "number"
	ParamBoolean ParamType = "boolean"
)

// Parameter declares one argument of an operation.
type Parameter struct {
	Name        string
	Type        ParamType
	Description string
	Required    bool
	Default     any
}

// Handler executes an operation against the state with coerced arguments.
type Handler func(ops Ops, args Args) (string, error)

// Operation is a catalog entry: its schema and the handler that runs it.
type Operation struct {
	Name        string
	Description string
	Parameters  []Parameter
	Handler     Handler

	schema *jsonschema.Schema
}

// Catalog maps operation names to their schema and handler. It is built
// once and never mutated afterwards.
type Catalog struct {
	ops   map[string]*Operation
	order []string
	specs []domain.OperationSpec
}

// NewCatalog returns the catalog of the store's declared operations.
func NewCatalog() *Catalog {
	c, err := newCatalog(declaredOperations())
	if err != nil {
		panic(fmt.Sprintf("home: building catalog: %v", err))
	}
	return c
}

func newCatalog(ops []Operation) (*Catalog, error) {
	c := &Catalog{ops: make(map[string]*Operation, len(ops))}
	for i := range ops {
		op := ops[i]
		if _, dup := c.ops[op.Name]; dup {
			return nil, fmt.Errorf("duplicate operation %q", op.Name)
		}
		params := op.schemaDoc()
		compiled, err := compileSchema(op.Name, params)
		if err != nil {
			return nil, err
		}
		op.schema = compiled
		c.ops[op.Name] = &op
		c.order = append(c.order, op.Name)
		c.specs = append(c.specs, domain.OperationSpec{
			Name:        op.Name,
			Description: op.Description,
			Parameters:  params,
		})
	}
	return c, nil
}

// Specs returns the catalog as handed to the intent resolver, in
// declaration order.
func (c *Catalog) Specs() []domain.OperationSpec {
	out := make([]domain.OperationSpec, len(c.specs))
	copy(out, c.specs)
	return out
}

func (c *Catalog) Names() []string {
	names := make([]string, len(c.order))
	copy(names, c.order)
	return names
}

func (c *Catalog) Lookup(name string) (*Operation, bool) {
	op, ok := c.ops[name]
	return op, ok
}

// Invoke validates req against the catalog and runs it on ops. Names outside
// the catalog fail with ErrUnknownOperation and are never executed; argument
// problems fail with ErrInvalidArgument.
func (c *Catalog) Invoke(ops Ops, req domain.ActionRequest) (string, error) {
	op, ok := c.ops[req.Name]
	if !ok {
		return "", fmt.Errorf("%w: %q", domain.ErrUnknownOperation, req.Name)
	}

	args, err := op.prepare(req.Arguments)
	if err != nil {
		return "", err
	}

	return op.Handler(ops, args)
}

func (op *Operation) prepare(raw json.RawMessage) (Args, error) {
	args, err := decodeArgs(raw)
	if err != nil {
		return nil, err
	}
	if err := coerce(op.Parameters, args); err != nil {
		return nil, err
	}
	if err := op.schema.Validate(map[string]any(args)); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrInvalidArgument, op.Name, err)
	}
	return args, nil
}

func (op *Operation) schemaDoc() map[string]any {
	properties := make(map[string]any, len(op.Parameters))
	required := []string{}
	for _, p := range op.Parameters {
		properties[p.Name] = map[string]any{
			"type":        string(p.Type),
			"description": p.Description,
		}
		if p.Required {
			required = append(required, p.Name)
		}
	}
	sort.Strings(required)
	return map[string]any{
		"type":       "object",
		"properties": properties,
		"required":   required,
	}
}

func compileSchema(name string, doc map[string]any) (*jsonschema.Schema, error) {
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("marshaling schema for %q: %w", name, err)
	}

	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020
	url := fmt.Sprintf("https://home-dispatch.local/operations/%s.schema.json", name)
	if err := c.AddResource(url, bytes.NewReader(data)); err != nil {
		return nil, fmt.Errorf("loading schema for %q: %w", name, err)
	}
	compiled, err := c.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("compiling schema for %q: %w", name, err)
	}
	return compiled, nil
}

func declaredOperations() []Operation {
	return []Operation{
		{
			Name:        "set_light",
			Description: "Turn a light ON or OFF in a given room.",
			Parameters: []Parameter{
				{Name: "room", Type: ParamString, Required: true, Description: "Room name, e.g. 'kitchen' or 'living room'."},
				{Name: "turn_on", Type: ParamBoolean, Required: true, Description: "true to switch the light on, false to switch it off."},
			},
			Handler: func(ops Ops, args Args) (string, error) {
				return ops.SetLight(args.String("room"), args.Bool("turn_on")), nil
			},
		},
		{
			Name:        "set_temperature",
			Description: "Set thermostat temperature in Celsius (e.g., 21.5).",
			Parameters: []Parameter{
				{Name: "temperature_c", Type: ParamNumber, Required: true, Description: "Target temperature in degrees Celsius."},
			},
			Handler: func(ops Ops, args Args) (string, error) {
				return ops.SetTemperature(args.Float("temperature_c"))
			},
		},
		{
			Name:        "lock_doors",
			Description: "Lock or unlock all doors.",
			Parameters: []Parameter{
				{Name: "lock", Type: ParamBoolean, Default: true, Description: "true to lock (default), false to unlock."},
			},
			Handler: func(ops Ops, args Args) (string, error) {
				return ops.LockDoors(args.Bool("lock")), nil
			},
		},
		{
			Name:        "play_music",
			Description: "Play background music by genre (e.g., jazz, pop, lo-fi).",
			Parameters: []Parameter{
				{Name: "genre", Type: ParamString, Required: true, Description: "Music genre to play."},
			},
			Handler: func(ops Ops, args Args) (string, error) {
				return ops.PlayMusic(args.String("genre"))
			},
		},
		{
			Name:        "stop_music",
			Description: "Stop any playing music.",
			Handler: func(ops Ops, _ Args) (string, error) {
				return ops.StopMusic(), nil
			},
		},
		{
			Name:        "status",
			Description: "Get a human-friendly smart home status.",
			Handler: func(ops Ops, _ Args) (string, error) {
				return ops.Status(), nil
			},
		},
	}
}
