package vm

import (
	"io"
	"os"

	"github.com/kievzenit/minic/internal/bytecode"
	"github.com/kievzenit/minic/internal/compiler_errors"
)

type State int

const (
	Idle State = iota
	Running
	Halted
	Faulted
)

func (s State) String() string {
	switch s {
	case Idle:
		return "Idle"
	case Running:
		return "Running"
	case Halted:
		return "Halted"
	case Faulted:
		return "Faulted"
	default:
		return "Unknown"
	}
}

type Options struct {
	// Output receives what host functions such as printf write.
	Output io.Writer

	// MaxCallDepth limits nested calls when positive.
	MaxCallDepth int
}

type frame struct {
	fn     *bytecode.Function
	pc     int
	locals []bytecode.Value
	stack  []bytecode.Value
}

func (f *frame) push(v bytecode.Value) {
	f.stack = append(f.stack, v)
}

func (f *frame) pop() (bytecode.Value, *Fault) {
	if len(f.stack) == 0 {
		return bytecode.Value{}, newFault(compiler_errors.StackUnderflow, "pop from empty operand stack")
	}
	v := f.stack[len(f.stack)-1]
	f.stack = f.stack[:len(f.stack)-1]
	return v, nil
}

func (f *frame) popN(n int) ([]bytecode.Value, *Fault) {
	if n < 0 || len(f.stack) < n {
		return nil, newFault(compiler_errors.StackUnderflow, "need %d operands, have %d", n, len(f.stack))
	}
	values := make([]bytecode.Value, n)
	copy(values, f.stack[len(f.stack)-n:])
	f.stack = f.stack[:len(f.stack)-n]
	return values, nil
}

func (f *frame) slot(index int) (*bytecode.Value, *Fault) {
	if index < 0 || index >= len(f.locals) {
		return nil, newFault(compiler_errors.InvalidSlot, "local slot %d outside of %d locals", index, len(f.locals))
	}
	return &f.locals[index], nil
}

// VM interprets one bytecode program on a single goroutine. A VM can be
// run again after it halts or faults; every run starts from a fresh stack.
type VM struct {
	program *bytecode.Program
	options Options
	natives map[string]Native

	state  State
	frames []*frame
	result int64
}

func New(program *bytecode.Program, options Options) *VM {
	if options.Output == nil {
		options.Output = os.Stdout
	}

	vm := &VM{
		program: program,
		options: options,
		natives: make(map[string]Native),
		state:   Idle,
	}
	vm.RegisterNative("printf", Printf(options.Output))

	return vm
}

// RegisterNative binds an extern name to a host function, replacing any
// earlier binding.
func (vm *VM) RegisterNative(name string, fn Native) {
	vm.natives[name] = fn
}

func (vm *VM) State() State {
	return vm.state
}

// Result is the value the last successful run halted with.
func (vm *VM) Result() int64 {
	return vm.result
}

// Run executes the entry function to completion. The error, when set, is
// always a *Fault.
func (vm *VM) Run() (int64, error) {
	vm.state = Running
	vm.frames = vm.frames[:0]
	vm.result = 0

	if fault := vm.start(); fault != nil {
		vm.state = Faulted
		return 0, fault
	}

	for vm.state == Running {
		top := vm.frames[len(vm.frames)-1]
		pc := top.pc
		if fault := vm.step(top); fault != nil {
			fault.Function = top.fn.Name
			fault.PC = pc
			vm.state = Faulted
			vm.frames = vm.frames[:0]
			return 0, fault
		}
	}

	return vm.result, nil
}

func (vm *VM) start() *Fault {
	entry := vm.program.Entry
	if entry < 0 || entry >= len(vm.program.Functions) {
		return newFault(compiler_errors.MissingEntry, "program has no main function")
	}

	fn := vm.program.Functions[entry]
	if fn.Arity != 0 {
		return newFault(compiler_errors.MissingEntry, "entry function %s takes %d arguments", fn.Name, fn.Arity)
	}

	return vm.pushFrame(fn, nil)
}

func (vm *VM) pushFrame(fn *bytecode.Function, args []bytecode.Value) *Fault {
	if vm.options.MaxCallDepth > 0 && len(vm.frames) >= vm.options.MaxCallDepth {
		return newFault(compiler_errors.CallDepthExceeded, "call depth limit %d reached calling %s", vm.options.MaxCallDepth, fn.Name)
	}
	if len(args) != fn.Arity || fn.Arity > fn.LocalCount {
		return newFault(compiler_errors.InvalidSlot, "%s takes %d arguments in %d locals, got %d", fn.Name, fn.Arity, fn.LocalCount, len(args))
	}

	locals := make([]bytecode.Value, fn.LocalCount)
	for i := range locals {
		locals[i] = bytecode.IntValue(0)
	}
	copy(locals, args)

	vm.frames = append(vm.frames, &frame{
		fn:     fn,
		locals: locals,
		stack:  make([]bytecode.Value, 0, 8),
	})
	return nil
}

// finish pops the current frame and hands value to the caller. With no
// caller left the run halts.
func (vm *VM) finish(value bytecode.Value, hasValue bool) *Fault {
	vm.frames = vm.frames[:len(vm.frames)-1]

	if len(vm.frames) == 0 {
		if hasValue {
			if value.Kind != bytecode.IntKind {
				return newFault(compiler_errors.TypeFault, "entry function returned %s value", value.Kind)
			}
			vm.result = value.Int
		}
		vm.state = Halted
		return nil
	}

	if hasValue {
		vm.frames[len(vm.frames)-1].push(value)
	}
	return nil
}

func (vm *VM) step(f *frame) *Fault {
	if f.pc < 0 || f.pc >= len(f.fn.Code) {
		return newFault(compiler_errors.InvalidJump, "pc %d outside of %d instructions", f.pc, len(f.fn.Code))
	}
	instruction := f.fn.Code[f.pc]
	f.pc++

	switch instruction.Op {
	case bytecode.Halt:
		vm.result = 0
		if len(f.stack) > 0 {
			top := f.stack[len(f.stack)-1]
			if top.Kind == bytecode.IntKind {
				vm.result = top.Int
			}
		}
		vm.frames = vm.frames[:0]
		vm.state = Halted

	case bytecode.PushConst:
		if instruction.A < 0 || instruction.A >= len(f.fn.Constants) {
			return newFault(compiler_errors.InvalidSlot, "constant %d outside of %d constants", instruction.A, len(f.fn.Constants))
		}
		f.push(f.fn.Constants[instruction.A])

	case bytecode.LoadLocal:
		slot, fault := f.slot(instruction.A)
		if fault != nil {
			return fault
		}
		f.push(*slot)

	case bytecode.StoreLocal:
		slot, fault := f.slot(instruction.A)
		if fault != nil {
			return fault
		}
		value, fault := f.pop()
		if fault != nil {
			return fault
		}
		*slot = value

	case bytecode.Pop:
		if _, fault := f.pop(); fault != nil {
			return fault
		}

	case bytecode.Dup:
		if len(f.stack) == 0 {
			return newFault(compiler_errors.StackUnderflow, "dup on empty operand stack")
		}
		f.push(f.stack[len(f.stack)-1])

	case bytecode.Add, bytecode.Sub, bytecode.Mul, bytecode.Div, bytecode.Mod,
		bytecode.Eq, bytecode.Ne, bytecode.Lt, bytecode.Le, bytecode.Gt, bytecode.Ge:
		operands, fault := f.popN(2)
		if fault != nil {
			return fault
		}
		result, fault := binary(instruction.Op, operands[0], operands[1])
		if fault != nil {
			return fault
		}
		f.push(result)

	case bytecode.Neg, bytecode.Not, bytecode.IntToFloat:
		operand, fault := f.pop()
		if fault != nil {
			return fault
		}
		result, fault := unary(instruction.Op, operand)
		if fault != nil {
			return fault
		}
		f.push(result)

	case bytecode.Jump:
		return f.jump(instruction.A)

	case bytecode.JumpIfFalse, bytecode.JumpIfTrue:
		cond, fault := f.pop()
		if fault != nil {
			return fault
		}
		if !cond.IsNumeric() {
			return newFault(compiler_errors.TypeFault, "condition is a %s value", cond.Kind)
		}
		if cond.Truthy() == (instruction.Op == bytecode.JumpIfTrue) {
			return f.jump(instruction.A)
		}

	case bytecode.Call:
		if instruction.A < 0 || instruction.A >= len(vm.program.Functions) {
			return newFault(compiler_errors.UnknownFunction, "function %d outside of %d functions", instruction.A, len(vm.program.Functions))
		}
		args, fault := f.popN(instruction.B)
		if fault != nil {
			return fault
		}
		return vm.pushFrame(vm.program.Functions[instruction.A], args)

	case bytecode.CallExtern:
		return vm.callExtern(f, instruction.A, instruction.B)

	case bytecode.Return:
		value, fault := f.pop()
		if fault != nil {
			return fault
		}
		return vm.finish(value, true)

	case bytecode.ReturnVoid:
		return vm.finish(bytecode.Value{}, false)

	default:
		return newFault(compiler_errors.InvalidJump, "unknown opcode %d", instruction.Op)
	}

	return nil
}

func (f *frame) jump(target int) *Fault {
	if target < 0 || target >= len(f.fn.Code) {
		return newFault(compiler_errors.InvalidJump, "jump target %d outside of %d instructions", target, len(f.fn.Code))
	}
	f.pc = target
	return nil
}

func (vm *VM) callExtern(f *frame, index, argc int) *Fault {
	if index < 0 || index >= len(vm.program.Externs) {
		return newFault(compiler_errors.UnknownFunction, "extern %d outside of %d externs", index, len(vm.program.Externs))
	}
	extern := vm.program.Externs[index]

	native, ok := vm.natives[extern.Name]
	if !ok {
		return newFault(compiler_errors.UnknownFunction, "no host function bound to extern %s", extern.Name)
	}
	if argc < extern.Arity || (!extern.Variadic && argc != extern.Arity) {
		return newFault(compiler_errors.InvalidSlot, "extern %s takes %d arguments, got %d", extern.Name, extern.Arity, argc)
	}

	args, fault := f.popN(argc)
	if fault != nil {
		return fault
	}

	result, err := native(args)
	if err != nil {
		return newFault(compiler_errors.TypeFault, "%s: %s", extern.Name, err)
	}
	if extern.ReturnsValue {
		f.push(result)
	}
	return nil
}
