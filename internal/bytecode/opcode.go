package bytecode

import "fmt"

type Opcode byte

const (
	Halt Opcode = iota

	PushConst  // A: constant index
	LoadLocal  // A: slot
	StoreLocal // A: slot
	Pop
	Dup

	Add
	Sub
	Mul
	Div
	Mod
	Neg
	Not

	Eq
	Ne
	Lt
	Le
	Gt
	Ge

	IntToFloat

	Jump        // A: target
	JumpIfFalse // A: target
	JumpIfTrue  // A: target

	Call       // A: function index, B: argument count
	CallExtern // A: extern index, B: argument count
	Return
	ReturnVoid
)

func (op Opcode) String() string {
	switch op {
	case Halt:
		return "HALT"
	case PushConst:
		return "PUSH_CONST"
	case LoadLocal:
		return "LOAD_LOCAL"
	case StoreLocal:
		return "STORE_LOCAL"
	case Pop:
		return "POP"
	case Dup:
		return "DUP"
	case Add:
		return "ADD"
	case Sub:
		return "SUB"
	case Mul:
		return "MUL"
	case Div:
		return "DIV"
	case Mod:
		return "MOD"
	case Neg:
		return "NEG"
	case Not:
		return "NOT"
	case Eq:
		return "EQ"
	case Ne:
		return "NE"
	case Lt:
		return "LT"
	case Le:
		return "LE"
	case Gt:
		return "GT"
	case Ge:
		return "GE"
	case IntToFloat:
		return "INT_TO_FLOAT"
	case Jump:
		return "JUMP"
	case JumpIfFalse:
		return "JUMP_IF_FALSE"
	case JumpIfTrue:
		return "JUMP_IF_TRUE"
	case Call:
		return "CALL"
	case CallExtern:
		return "CALL_EXTERN"
	case Return:
		return "RETURN"
	case ReturnVoid:
		return "RETURN_VOID"
	default:
		panic(fmt.Sprintf("Opcode.String(): received illegal opcode: %d", op))
	}
}

// Operands is how many of A and B the opcode uses.
func (op Opcode) Operands() int {
	switch op {
	case PushConst, LoadLocal, StoreLocal, Jump, JumpIfFalse, JumpIfTrue:
		return 1
	case Call, CallExtern:
		return 2
	}
	return 0
}

func (op Opcode) IsJump() bool {
	return op == Jump || op == JumpIfFalse || op == JumpIfTrue
}

type Instruction struct {
	Op Opcode
	A  int
	B  int
}

func (i Instruction) String() string {
	switch i.Op.Operands() {
	case 1:
		return fmt.Sprintf("%s %d", i.Op, i.A)
	case 2:
		return fmt.Sprintf("%s %d %d", i.Op, i.A, i.B)
	}
	return i.Op.String()
}
