package analysis

import (
	"context"
	"fmt"
	"slices"

	"github.com/roach88/wasmstack/internal/typestack"
	"github.com/roach88/wasmstack/internal/wasm"
)

// cancelCheckInterval is how many instructions run between context checks.
const cancelCheckInterval = 256

// frame is one open block as the pass sees it. Markers on the TypeStack
// carry only the block type; branch targets also need the kind.
type frame struct {
	kind  wasm.Kind
	block wasm.BlockType
}

// pass is one analysis of one function body.
type pass struct {
	module *wasm.Module
	fn     *wasm.Function
	stack  *typestack.TypeStack
	ctrl   []frame
	hooks  hookSet
	res    *FunctionResult

	// dead is set after an instruction that ends reachability; deadDepth
	// counts blocks opened inside the dead region.
	dead      bool
	deadDepth int
}

func newPass(m *wasm.Module, idx int, strict bool) *pass {
	var opts []typestack.Option
	if strict {
		opts = append(opts, typestack.WithStrictBlockResults())
	}
	fn := &m.Functions[idx]
	return &pass{
		module: m,
		fn:     fn,
		stack:  typestack.New(opts...),
		hooks:  hookSet{},
		res: &FunctionResult{
			Index: idx,
			Name:  fn.Name,
			Type:  fn.Type,
		},
	}
}

func (p *pass) run(ctx context.Context) error {
	if len(p.fn.Type.Results) > 1 {
		return p.fail(ErrCodeMultipleResults, 0, "", fmt.Errorf("function declares %d results, at most one is supported", len(p.fn.Type.Results)))
	}

	bt := p.fn.Type.BlockType()
	p.stack.BeginBlock(bt)
	p.ctrl = append(p.ctrl, frame{kind: wasm.KindBlock, block: bt})

	for pc, in := range p.fn.Body {
		if pc%cancelCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		if err := p.step(pc, in); err != nil {
			return err
		}
	}
	return p.finish()
}

func (p *pass) step(pc int, in wasm.Instr) error {
	if !in.Op.Known() {
		return p.fail(ErrCodeUnknownOpcode, pc, in.String(), nil)
	}
	info := in.Op.Info()

	if p.dead {
		return p.deadStep(pc, in, info)
	}

	inputs, outputs, err := p.apply(pc, in, info)
	if err != nil {
		return err
	}
	p.record(pc, in.String(), inputs, outputs, false)
	p.hooks.add(HookSignature{Instr: info.Name, Inputs: inputs, Outputs: outputs})

	if info.Kind.EndsReachability() {
		p.dead = true
		p.deadDepth = 0
	}
	return nil
}

// deadStep records an unreachable instruction. The else or end that closes
// the dead block makes code reachable again.
func (p *pass) deadStep(pc int, in wasm.Instr, info wasm.OpcodeInfo) error {
	switch info.Kind {
	case wasm.KindBlock, wasm.KindLoop, wasm.KindIf:
		p.deadDepth++
	case wasm.KindElse:
		if p.deadDepth == 0 {
			p.revive()
			return p.step(pc, in)
		}
	case wasm.KindEnd:
		if p.deadDepth == 0 {
			p.revive()
			return p.step(pc, in)
		}
		p.deadDepth--
	}
	p.record(pc, in.String(), nil, nil, true)
	return nil
}

// revive resets the stack to the innermost marker and assumes the block's
// result. Unreachable code may leave any values, so the block is treated as
// having produced exactly what it declares.
func (p *pass) revive() {
	for {
		top, ok := p.stack.Peek()
		if !ok {
			break
		}
		if _, isVal := top.(typestack.Val); !isVal {
			break
		}
		// Cannot fail: the top is a value.
		_, _ = p.stack.Pop()
	}
	if vt, ok := p.ctrl[len(p.ctrl)-1].block.Result(); ok {
		p.stack.Push(vt)
	}
	p.dead = false
}

// apply advances the stack across one live instruction and returns the
// concrete types it consumed and produced.
func (p *pass) apply(pc int, in wasm.Instr, info wasm.OpcodeInfo) ([]wasm.ValueType, []wasm.ValueType, error) {
	violation := func(cause error) error {
		return p.fail(ErrCodeStackViolation, pc, in.String(), cause)
	}
	op := func(ins, outs []wasm.ValueType) ([]wasm.ValueType, []wasm.ValueType, error) {
		if err := p.stack.Op(ins, outs); err != nil {
			return nil, nil, violation(err)
		}
		return ins, outs, nil
	}
	i32 := []wasm.ValueType{wasm.ValueTypeI32}

	switch info.Kind {
	case wasm.KindPlain:
		return op(info.In, info.Out)

	case wasm.KindNop, wasm.KindUnreachable:
		return nil, nil, nil

	case wasm.KindBlock, wasm.KindLoop:
		p.stack.BeginBlock(in.Block)
		p.ctrl = append(p.ctrl, frame{kind: info.Kind, block: in.Block})
		return nil, nil, nil

	case wasm.KindIf:
		if err := p.stack.Op(i32, nil); err != nil {
			return nil, nil, violation(err)
		}
		p.stack.BeginBlock(in.Block)
		p.ctrl = append(p.ctrl, frame{kind: wasm.KindIf, block: in.Block})
		return i32, nil, nil

	case wasm.KindElse:
		top := &p.ctrl[len(p.ctrl)-1]
		if top.kind != wasm.KindIf {
			return nil, nil, p.fail(ErrCodeUnbalancedFunction, pc, in.String(), fmt.Errorf("else outside an if"))
		}
		bt, err := p.stack.EndBlock()
		if err != nil {
			return nil, nil, violation(err)
		}
		results := bt.Results()
		if len(results) > 0 {
			if _, err := p.stack.Pop(); err != nil {
				return nil, nil, violation(err)
			}
		}
		p.stack.BeginBlock(bt)
		top.kind = wasm.KindElse
		return results, nil, nil

	case wasm.KindEnd:
		if len(p.ctrl) == 1 {
			return nil, nil, p.fail(ErrCodeUnbalancedFunction, pc, in.String(), fmt.Errorf("end closes the function scope; the function's end is implicit"))
		}
		bt, err := p.stack.EndBlock()
		if err != nil {
			return nil, nil, violation(err)
		}
		p.ctrl = p.ctrl[:len(p.ctrl)-1]
		return nil, bt.Results(), nil

	case wasm.KindBr:
		types, err := p.labelTypes(pc, in, in.Index)
		if err != nil {
			return nil, nil, err
		}
		return op(types, nil)

	case wasm.KindBrIf:
		types, err := p.labelTypes(pc, in, in.Index)
		if err != nil {
			return nil, nil, err
		}
		return op(append(slices.Clone(types), wasm.ValueTypeI32), types)

	case wasm.KindBrTable:
		var types []wasm.ValueType
		for _, l := range in.Labels {
			lt, err := p.labelTypes(pc, in, l)
			if err != nil {
				return nil, nil, err
			}
			types = lt
		}
		return op(append(slices.Clone(types), wasm.ValueTypeI32), nil)

	case wasm.KindReturn:
		return op(p.fn.Type.Results, nil)

	case wasm.KindCall:
		if int64(in.Index) >= int64(len(p.module.Functions)) {
			return nil, nil, p.fail(ErrCodeUnknownFunction, pc, in.String(), fmt.Errorf("module has %d functions", len(p.module.Functions)))
		}
		callee := p.module.Functions[in.Index].Type
		return op(callee.Params, callee.Results)

	case wasm.KindDrop:
		t, err := p.stack.Pop()
		if err != nil {
			return nil, nil, violation(err)
		}
		return []wasm.ValueType{t}, nil, nil

	case wasm.KindSelect:
		if err := p.stack.Op(i32, nil); err != nil {
			return nil, nil, violation(err)
		}
		t, err := p.stack.Pop()
		if err != nil {
			return nil, nil, violation(err)
		}
		if err := p.stack.Op([]wasm.ValueType{t}, []wasm.ValueType{t}); err != nil {
			return nil, nil, violation(err)
		}
		return []wasm.ValueType{t, t, wasm.ValueTypeI32}, []wasm.ValueType{t}, nil

	case wasm.KindLocalGet, wasm.KindLocalSet, wasm.KindLocalTee:
		t, ok := p.fn.LocalType(in.Index)
		if !ok {
			return nil, nil, p.fail(ErrCodeUnknownLocal, pc, in.String(), fmt.Errorf("function has %d locals", p.fn.LocalCount()))
		}
		ts := []wasm.ValueType{t}
		switch info.Kind {
		case wasm.KindLocalGet:
			return op(nil, ts)
		case wasm.KindLocalSet:
			return op(ts, nil)
		default:
			return op(ts, ts)
		}

	case wasm.KindGlobalGet, wasm.KindGlobalSet:
		if int64(in.Index) >= int64(len(p.module.Globals)) {
			return nil, nil, p.fail(ErrCodeUnknownGlobal, pc, in.String(), fmt.Errorf("module has %d globals", len(p.module.Globals)))
		}
		ts := []wasm.ValueType{p.module.Globals[in.Index].Type}
		if info.Kind == wasm.KindGlobalGet {
			return op(nil, ts)
		}
		return op(ts, nil)
	}

	return nil, nil, p.fail(ErrCodeUnknownOpcode, pc, in.String(), nil)
}

// labelTypes returns the types a branch to label l carries: nothing for a
// loop, the block's results otherwise.
func (p *pass) labelTypes(pc int, in wasm.Instr, l uint32) ([]wasm.ValueType, error) {
	if int64(l) >= int64(len(p.ctrl)) {
		return nil, p.fail(ErrCodeUnknownLabel, pc, in.String(), fmt.Errorf("label %d with %d open blocks", l, len(p.ctrl)))
	}
	target := p.ctrl[len(p.ctrl)-1-int(l)]
	if target.kind == wasm.KindLoop {
		return nil, nil
	}
	return target.block.Results(), nil
}

// finish applies the function's implicit end: close the function scope,
// consume the declared results, and require an empty stack.
func (p *pass) finish() error {
	pc := len(p.fn.Body)
	if p.dead {
		p.revive()
	}
	if len(p.ctrl) != 1 {
		return p.fail(ErrCodeUnbalancedFunction, pc, "end", fmt.Errorf("%d blocks left open", len(p.ctrl)-1))
	}

	if _, err := p.stack.EndBlock(); err != nil {
		return p.fail(ErrCodeStackViolation, pc, "end", err)
	}
	p.ctrl = p.ctrl[:0]

	results := p.fn.Type.Results
	if err := p.stack.Op(results, nil); err != nil {
		return p.fail(ErrCodeStackViolation, pc, "end", err)
	}
	if n := p.stack.Len(); n != 0 {
		return p.fail(ErrCodeUnbalancedFunction, pc, "end", fmt.Errorf("%d elements left on the stack", n))
	}

	p.record(pc, "end", results, nil, false)
	return nil
}

// record appends a step with a snapshot of the stack.
func (p *pass) record(pc int, instr string, inputs, outputs []wasm.ValueType, dead bool) {
	elems := p.stack.Elements()
	stack := make([]string, len(elems))
	for i, e := range elems {
		stack[i] = e.String()
	}
	open := p.stack.OpenBlocks()
	depth := len(elems) - open

	p.res.Steps = append(p.res.Steps, Step{
		PC:         pc,
		Instr:      instr,
		Inputs:     inputs,
		Outputs:    outputs,
		Depth:      depth,
		OpenBlocks: open,
		Stack:      stack,
		Dead:       dead,
	})
	p.res.MaxDepth = max(p.res.MaxDepth, depth)
}

func (p *pass) fail(code ErrorCode, pc int, instr string, cause error) *PassError {
	return &PassError{
		Code:     code,
		Function: p.fn.Name,
		Index:    p.res.Index,
		PC:       pc,
		Instr:    instr,
		Err:      cause,
	}
}
