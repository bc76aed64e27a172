package pipeline

import (
	"fmt"

	"github.com/dominikbraun/graph"

	"github.com/TomDLT/realtimefmri/display"
	"github.com/TomDLT/realtimefmri/errors"
)

// Reserved initial ports. Every frame seeds these before the first step
// executes; no step may produce them.
const (
	PortRawVolume  = "raw_volume"
	PortFrameIndex = "frame_index"
	PortTimestamp  = "timestamp"
)

// initialVertex anchors edges from reserved ports in the dependency graph.
const initialVertex = "__ingest__"

// BoundStep is a StepSpec with its ports resolved to dense slot indices,
// so frame execution reads and writes arrays instead of doing string
// lookups per frame.
type BoundStep struct {
	Spec        StepSpec
	InputSlots  []int
	OutputSlots []int
}

// StepGraph is a validated, slot-resolved pipeline ready for instantiation.
type StepGraph struct {
	Steps     []BoundStep
	NSkip     int
	Globals   map[string]any
	SlotNames []string       // slot index to port name, reserved ports first
	Initial   map[string]int // reserved port name to slot index

	dag graph.Graph[string, string]
}

// SlotCount returns the number of distinct ports in the pipeline.
func (g *StepGraph) SlotCount() int { return len(g.SlotNames) }

// Dependencies exposes the step dependency graph, with one vertex per step
// name plus the ingest anchor. Sequential document order already respects
// it; tooling uses it for rendering and analysis.
func (g *StepGraph) Dependencies() graph.Graph[string, string] { return g.dag }

// Validate resolves the document into a StepGraph. Steps are checked in
// document order and the first offending step aborts validation, so the
// reported error always names the earliest problem.
//
// A step's inputs must each be a reserved port or an output of an earlier
// step. A step's outputs must not collide with any reserved port or any
// port already produced. Step names must be unique and publish kinds must
// name a supported presentation.
func (d *Document) Validate() (*StepGraph, error) {
	if len(d.Pipeline) == 0 {
		return nil, errors.WrapConfig(
			fmt.Errorf("%w: pipeline declares no steps", errors.ErrInvalidConfig),
			"pipeline", "Validate", "step list")
	}
	if d.GlobalParameters.NSkip < 0 {
		return nil, errors.WrapConfig(
			fmt.Errorf("%w: n_skip must not be negative", errors.ErrInvalidConfig),
			"pipeline", "Validate", "global parameters")
	}

	sg := &StepGraph{
		Steps:   make([]BoundStep, 0, len(d.Pipeline)),
		NSkip:   d.GlobalParameters.NSkip,
		Globals: d.GlobalParameters.Extra,
		Initial: make(map[string]int, 3),
		dag:     graph.New(graph.StringHash, graph.Directed(), graph.PreventCycles()),
	}

	// Port name to slot index, seeded with the reserved initial ports.
	slots := make(map[string]int)
	for _, port := range []string{PortRawVolume, PortFrameIndex, PortTimestamp} {
		idx := len(sg.SlotNames)
		slots[port] = idx
		sg.Initial[port] = idx
		sg.SlotNames = append(sg.SlotNames, port)
	}

	// Port name to the step that produces it; reserved ports map to the
	// ingest anchor.
	producers := map[string]string{
		PortRawVolume:  initialVertex,
		PortFrameIndex: initialVertex,
		PortTimestamp:  initialVertex,
	}
	_ = sg.dag.AddVertex(initialVertex)

	seen := make(map[string]struct{}, len(d.Pipeline))
	for _, spec := range d.Pipeline {
		if _, dup := seen[spec.Name]; dup {
			return nil, stepError(spec.Name,
				fmt.Errorf("%w: %q", errors.ErrDuplicateStep, spec.Name))
		}
		seen[spec.Name] = struct{}{}

		if err := sg.dag.AddVertex(spec.Name); err != nil {
			return nil, stepError(spec.Name, err)
		}

		bound := BoundStep{Spec: spec}
		for _, port := range spec.Input {
			idx, ok := slots[port]
			if !ok {
				return nil, stepError(spec.Name,
					fmt.Errorf("%w: %q", errors.ErrUnresolvedInput, port))
			}
			bound.InputSlots = append(bound.InputSlots, idx)
			if err := addEdge(sg.dag, producers[port], spec.Name); err != nil {
				return nil, stepError(spec.Name, err)
			}
		}
		for _, port := range spec.Output {
			if _, taken := slots[port]; taken {
				return nil, stepError(spec.Name,
					fmt.Errorf("%w: %q", errors.ErrDuplicateOutput, port))
			}
			idx := len(sg.SlotNames)
			slots[port] = idx
			producers[port] = spec.Name
			sg.SlotNames = append(sg.SlotNames, port)
			bound.OutputSlots = append(bound.OutputSlots, idx)
		}

		if spec.Publish != nil {
			if !display.ValidKind(display.Kind(spec.Publish.Kind)) {
				return nil, stepError(spec.Name,
					fmt.Errorf("%w: unknown display kind %q", errors.ErrInvalidConfig, spec.Publish.Kind))
			}
			if len(spec.Input) == 0 && len(spec.Output) == 0 {
				return nil, stepError(spec.Name,
					fmt.Errorf("%w: publish block requires at least one port", errors.ErrInvalidConfig))
			}
		}

		sg.Steps = append(sg.Steps, bound)
	}

	return sg, nil
}

// PublishSource returns the slot whose value a step's publish block
// forwards: the first output, or the first input when the step produces
// nothing. The bool is false when the step has no publish block.
func (b *BoundStep) PublishSource() (int, bool) {
	if b.Spec.Publish == nil {
		return 0, false
	}
	if len(b.OutputSlots) > 0 {
		return b.OutputSlots[0], true
	}
	return b.InputSlots[0], true
}

func addEdge(dag graph.Graph[string, string], from, to string) error {
	// Two inputs from the same producer yield one dependency edge.
	err := dag.AddEdge(from, to)
	if err == graph.ErrEdgeAlreadyExists {
		return nil
	}
	return err
}

func stepError(name string, err error) error {
	return errors.WrapConfig(err, "pipeline", "Validate", fmt.Sprintf("step %q", name))
}
