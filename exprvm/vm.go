// Copyright © 2024-2026 Forgelogic Software Inc.
// Use is governed by a BSD-style license found in the LICENSE file.

package exprvm

import "math"

// Row is one lane of input or output values, addressed by slot index.
// Execute reads Inputs[i][row] and writes Outputs[o][row] for every row
// in the batch; callers own the backing storage.
type Row struct {
	F []float32
	I []int32
}

// Batch is the per-call argument bundle: one Row per declared input/
// output descriptor, each sized to the number of rows being processed.
type Batch struct {
	Inputs  []Row
	Outputs []Row
}

// VM executes one Image against batches of rows. A VM is not safe for
// concurrent Execute calls that share the same external function state;
// give each worker its own VM over a shared, immutable Image.
type VM struct {
	Image *Image
	Funcs []ExternalFunc // parallel to Image.Funcs, by index.
}

// New returns a VM ready to execute img. funcs must supply one
// ExternalFunc per entry in img.Funcs, in order.
func New(img *Image, funcs []ExternalFunc) *VM {
	return &VM{Image: img, Funcs: funcs}
}

// register holds one lane's worth of temp-register storage across all
// rows, tagged by declared type so Bool/Int share the int32 lane.
type register struct {
	f []float32
	i []int32
}

// Execute runs the image over batch.Inputs, writing batch.Outputs.
// NumRows is taken from the length of the first input row (or the first
// output row, if there are no inputs); every row slice must have that
// same length.
func (vm *VM) Execute(batch *Batch) {
	n := numRows(batch)
	regs := make([]register, vm.Image.NumTempRegisters)
	for i := range regs {
		regs[i] = register{f: make([]float32, n), i: make([]int32, n)}
	}
	for _, ins := range vm.Image.Code {
		vm.step(ins, regs, batch, n)
	}
}

func numRows(b *Batch) int {
	for _, r := range b.Inputs {
		if len(r.F) > 0 {
			return len(r.F)
		}
		if len(r.I) > 0 {
			return len(r.I)
		}
	}
	for _, r := range b.Outputs {
		if len(r.F) > 0 {
			return len(r.F)
		}
		if len(r.I) > 0 {
			return len(r.I)
		}
	}
	return 0
}

func (vm *VM) step(ins Instr, regs []register, batch *Batch, n int) {
	switch formOf(ins.Op) {
	case FormUnary:
		execUnary(ins, regs, n)
	case FormBinaryRRR:
		execBinaryRRR(ins, regs, n)
	case FormBinaryRRC:
		execBinaryRRC(ins, regs, n)
	case FormTernary:
		execTernary(ins, regs, n)
	case FormMovR:
		execMovR(ins, regs, n)
	case FormMovC:
		execMovC(ins, regs, n)
	case FormLoad:
		execLoad(ins, regs, batch, n)
	case FormStore:
		execStore(ins, regs, batch, n)
	case FormCall:
		vm.execCall(ins, regs, n)
	}
}

func execUnary(ins Instr, regs []register, n int) {
	dst, a := &regs[ins.Dst], &regs[ins.A]
	for r := 0; r < n; r++ {
		switch ins.Op {
		case AbsF:
			dst.f[r] = float32(math.Abs(float64(a.f[r])))
		case AbsI:
			v := a.i[r]
			if v < 0 {
				v = -v
			}
			dst.i[r] = v
		case SqrtF:
			dst.f[r] = float32(math.Sqrt(float64(a.f[r])))
		case ExpF:
			dst.f[r] = float32(math.Exp(float64(a.f[r])))
		case LnF:
			dst.f[r] = float32(math.Log(float64(a.f[r])))
		case Log2F:
			dst.f[r] = float32(math.Log2(float64(a.f[r])))
		case Log2I:
			dst.i[r] = int32(math.Log2(float64(a.i[r])))
		case Log10F:
			dst.f[r] = float32(math.Log10(float64(a.f[r])))
		case Pow2F:
			dst.f[r] = float32(math.Pow(2, float64(a.f[r])))
		case SinF:
			dst.f[r] = float32(math.Sin(float64(a.f[r])))
		case CosF:
			dst.f[r] = float32(math.Cos(float64(a.f[r])))
		case TanF:
			dst.f[r] = float32(math.Tan(float64(a.f[r])))
		case ASinF:
			dst.f[r] = float32(math.Asin(float64(a.f[r])))
		case ACosF:
			dst.f[r] = float32(math.Acos(float64(a.f[r])))
		case ATanF:
			dst.f[r] = float32(math.Atan(float64(a.f[r])))
		case RoundF:
			dst.f[r] = float32(math.Round(float64(a.f[r])))
		case FloorF:
			dst.f[r] = float32(math.Floor(float64(a.f[r])))
		case CeilF:
			dst.f[r] = float32(math.Ceil(float64(a.f[r])))
		case TruncF:
			dst.f[r] = float32(math.Trunc(float64(a.f[r])))
		case NotB:
			dst.i[r] = boolToI(a.i[r] == 0)
		case NotI:
			dst.i[r] = ^a.i[r]
		case IToF:
			dst.f[r] = float32(a.i[r])
		case FToI:
			dst.i[r] = int32(a.f[r])
		}
	}
}

func execBinaryRRR(ins Instr, regs []register, n int) {
	dst, a, b := &regs[ins.Dst], &regs[ins.A], &regs[ins.B]
	for r := 0; r < n; r++ {
		applyBinary(ins.Op, dst, a.f[r], b.f[r], a.i[r], b.i[r], r)
	}
}

func execBinaryRRC(ins Instr, regs []register, n int) {
	dst, a := &regs[ins.Dst], &regs[ins.A]
	cf := math.Float32frombits(ins.Const)
	ci := int32(ins.Const)
	baseOp := rrcToRRR(ins.Op)
	for r := 0; r < n; r++ {
		applyBinary(baseOp, dst, a.f[r], cf, a.i[r], ci, r)
	}
}

// applyBinary evaluates one RRR-shaped binary op for row r, storing into
// dst. Comparison ops write 1/0 into the int lane regardless of the
// operand type; booleans share int storage in this VM.
func applyBinary(op Op, dst *register, af, bf float32, ai, bi int32, r int) {
	switch op {
	case AddF:
		dst.f[r] = af + bf
	case AddI:
		dst.i[r] = ai + bi
	case SubF:
		dst.f[r] = af - bf
	case SubI:
		dst.i[r] = ai - bi
	case MulF:
		dst.f[r] = af * bf
	case MulI:
		dst.i[r] = ai * bi
	case DivF:
		dst.f[r] = af / bf
	case DivI:
		if bi == 0 {
			dst.i[r] = 0 // implementation-defined sentinel; VM does not raise.
		} else {
			dst.i[r] = ai / bi
		}
	case MinF:
		dst.f[r] = float32(math.Min(float64(af), float64(bf)))
	case MinI:
		if ai < bi {
			dst.i[r] = ai
		} else {
			dst.i[r] = bi
		}
	case MaxF:
		dst.f[r] = float32(math.Max(float64(af), float64(bf)))
	case MaxI:
		if ai > bi {
			dst.i[r] = ai
		} else {
			dst.i[r] = bi
		}
	case Shl:
		dst.i[r] = ai << uint32(bi)
	case Shr:
		dst.i[r] = ai >> uint32(bi)
	case And:
		dst.i[r] = ai & bi
	case Xor:
		dst.i[r] = ai ^ bi
	case Or:
		dst.i[r] = ai | bi
	case EqF:
		dst.i[r] = boolToI(af == bf)
	case EqI:
		dst.i[r] = boolToI(ai == bi)
	case EqB:
		dst.i[r] = boolToI((ai != 0) == (bi != 0))
	case NEqF:
		dst.i[r] = boolToI(af != bf)
	case NEqI:
		dst.i[r] = boolToI(ai != bi)
	case NEqB:
		dst.i[r] = boolToI((ai != 0) != (bi != 0))
	case LtF:
		dst.i[r] = boolToI(af < bf)
	case LtI:
		dst.i[r] = boolToI(ai < bi)
	case LEqF:
		dst.i[r] = boolToI(af <= bf)
	case LEqI:
		dst.i[r] = boolToI(ai <= bi)
	case GtF:
		dst.i[r] = boolToI(af > bf)
	case GtI:
		dst.i[r] = boolToI(ai > bi)
	case GEqF:
		dst.i[r] = boolToI(af >= bf)
	case GEqI:
		dst.i[r] = boolToI(ai >= bi)
	case AndB:
		dst.i[r] = boolToI(ai != 0 && bi != 0)
	case OrB:
		dst.i[r] = boolToI(ai != 0 || bi != 0)
	}
}

// rrcToRRR maps an "_C" (register-const) opcode back to its register-
// register counterpart so applyBinary only needs one evaluation table.
func rrcToRRR(op Op) Op {
	base := op - (AddFC - AddF)
	switch {
	case op >= LtFC:
		return base + 2 // EqB and NEqB have no "_C" form.
	case op >= NEqFC:
		return base + 1 // EqB has no "_C" form.
	}
	return base
}

func execTernary(ins Instr, regs []register, n int) {
	dst, cond, a, b := &regs[ins.Dst], &regs[ins.Cond], &regs[ins.A], &regs[ins.B]
	for r := 0; r < n; r++ {
		take := cond.i[r] != 0
		switch ins.Op {
		case SelF:
			if take {
				dst.f[r] = a.f[r]
			} else {
				dst.f[r] = b.f[r]
			}
		case SelI, SelB:
			if take {
				dst.i[r] = a.i[r]
			} else {
				dst.i[r] = b.i[r]
			}
		}
	}
}

func execMovR(ins Instr, regs []register, n int) {
	dst, src := &regs[ins.Dst], &regs[ins.A]
	for r := 0; r < n; r++ {
		switch ins.Op {
		case MovF_R:
			dst.f[r] = src.f[r]
		case MovI_R, MovB_R:
			dst.i[r] = src.i[r]
		}
	}
}

func execMovC(ins Instr, regs []register, n int) {
	dst := &regs[ins.Dst]
	switch ins.Op {
	case MovF_C:
		v := math.Float32frombits(ins.Const)
		for r := 0; r < n; r++ {
			dst.f[r] = v
		}
	case MovI_C, MovB_C:
		v := int32(ins.Const)
		for r := 0; r < n; r++ {
			dst.i[r] = v
		}
	}
}

func execLoad(ins Instr, regs []register, batch *Batch, n int) {
	dst := &regs[ins.Dst]
	in := batch.Inputs[ins.Slot]
	switch ins.Op {
	case LoadF:
		copy(dst.f[:n], in.F[:n])
	case LoadI:
		copy(dst.i[:n], in.I[:n])
	}
}

func execStore(ins Instr, regs []register, batch *Batch, n int) {
	src := &regs[ins.A]
	out := batch.Outputs[ins.Slot]
	switch ins.Op {
	case StoreF:
		copy(out.F[:n], src.f[:n])
	case StoreI:
		copy(out.I[:n], src.i[:n])
	}
}

func (vm *VM) execCall(ins Instr, regs []register, n int) {
	fn := vm.Funcs[ins.Fn]
	fd := vm.Image.Funcs[ins.Fn]
	dst := &regs[ins.Dst]
	args := make([]Value, len(ins.Args))
	for r := 0; r < n; r++ {
		for i, src := range ins.Args {
			t := fd.ArgTypes[i]
			args[i] = Value{Type: t}
			switch t {
			case Float:
				args[i].F = regs[src].f[r]
			case Int, Bool:
				args[i].I = regs[src].i[r]
				args[i].B = regs[src].i[r] != 0
			}
		}
		ret := fn(r, args)
		switch fd.ReturnType {
		case Float:
			dst.f[r] = ret.F
		case Int:
			dst.i[r] = ret.I
		case Bool:
			dst.i[r] = boolToI(ret.B)
		}
	}
}

func boolToI(b bool) int32 {
	if b {
		return 1
	}
	return 0
}
