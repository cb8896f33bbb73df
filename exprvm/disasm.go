// Copyright © 2024-2026 Forgelogic Software Inc.
// Use is governed by a BSD-style license found in the LICENSE file.

package exprvm

import (
	"fmt"
	"strings"
)

// Disassemble renders img as a deterministic textual listing: input,
// output, and function tables, the temp-register and instruction
// counts, then one formatted line per instruction. Two calls on
// byte-identical images produce byte-identical output.
func Disassemble(img *Image) string {
	var b strings.Builder
	fmt.Fprintf(&b, "inputs: %d\n", len(img.Inputs))
	for i, d := range img.Inputs {
		fmt.Fprintf(&b, "  %d: %s %s\n", i, typeName(d.Type), d.Name)
	}
	fmt.Fprintf(&b, "outputs: %d\n", len(img.Outputs))
	for i, d := range img.Outputs {
		fmt.Fprintf(&b, "  %d: %s %s\n", i, typeName(d.Type), d.Name)
	}
	fmt.Fprintf(&b, "functions: %d\n", len(img.Funcs))
	for i, f := range img.Funcs {
		args := make([]string, len(f.ArgTypes))
		for j, at := range f.ArgTypes {
			args[j] = typeName(at)
		}
		fmt.Fprintf(&b, "  %d: %s %s(%s)\n", i, typeName(f.ReturnType), f.Name, strings.Join(args, ", "))
	}
	fmt.Fprintf(&b, "temps: %d\n", img.NumTempRegisters)
	fmt.Fprintf(&b, "instructions: %d\n", len(img.Code))
	for i, ins := range img.Code {
		fmt.Fprintf(&b, "%4d: %s\n", i, disasmInstr(ins))
	}
	return b.String()
}

func typeName(t Type) string {
	switch t {
	case Float:
		return "f32"
	case Int:
		return "i32"
	case Bool:
		return "bool"
	default:
		return "?"
	}
}

func disasmInstr(ins Instr) string {
	switch formOf(ins.Op) {
	case FormUnary:
		return fmt.Sprintf("%s r%d = %s(r%d)", ins.Op, ins.Dst, ins.Op, ins.A)
	case FormBinaryRRR:
		return fmt.Sprintf("%s r%d = r%d %s r%d", ins.Op, ins.Dst, ins.A, ins.Op, ins.B)
	case FormBinaryRRC:
		return fmt.Sprintf("%s r%d = r%d %s #%d", ins.Op, ins.Dst, ins.A, ins.Op, ins.Const)
	case FormTernary:
		return fmt.Sprintf("%s r%d = r%d ? r%d : r%d", ins.Op, ins.Dst, ins.Cond, ins.A, ins.B)
	case FormMovR:
		return fmt.Sprintf("%s r%d = r%d", ins.Op, ins.Dst, ins.A)
	case FormMovC:
		return fmt.Sprintf("%s r%d = #%d", ins.Op, ins.Dst, ins.Const)
	case FormLoad:
		return fmt.Sprintf("%s r%d = in[%d]", ins.Op, ins.Dst, ins.Slot)
	case FormStore:
		return fmt.Sprintf("%s out[%d] = r%d", ins.Op, ins.Slot, ins.A)
	case FormCall:
		args := make([]string, len(ins.Args))
		for i, a := range ins.Args {
			args[i] = fmt.Sprintf("r%d", a)
		}
		return fmt.Sprintf("%s r%d = fn[%d](%s)", ins.Op, ins.Dst, ins.Fn, strings.Join(args, ", "))
	default:
		return ins.Op.String()
	}
}
