// Copyright © 2024-2026 Forgelogic Software Inc.
// Use is governed by a BSD-style license found in the LICENSE file.

package exprvm

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/forgelogic/core/errkind"
)

// Chunk versions. Loading a lower version is refused outright.
const (
	MetaDataVersion = uint32(4)
	CodeVersion     = uint32(3)

	minMetaDataVersion = uint32(4)
	minCodeVersion     = uint32(3)
)

var byteOrder = binary.LittleEndian

// Save writes img as a MetaData chunk followed by a Code chunk.
func Save(w io.Writer, img *Image) error {
	bw := bufio.NewWriter(w)
	if err := writeMetaData(bw, img); err != nil {
		return err
	}
	if err := writeCode(bw, img); err != nil {
		return err
	}
	return bw.Flush()
}

// Load reads an Image previously written by Save. A MetaData or Code
// chunk older than this package's minimum supported version fails with
// an errkind.Invalid diagnostic rather than attempting to interpret it.
func Load(r io.Reader) (*Image, error) {
	br := bufio.NewReader(r)
	img := &Image{}
	if err := readMetaData(br, img); err != nil {
		return nil, err
	}
	if err := readCode(br, img); err != nil {
		return nil, err
	}
	return img, nil
}

func writeString(w io.Writer, s string) error {
	if err := binary.Write(w, byteOrder, uint32(len(s))); err != nil {
		return err
	}
	_, err := io.WriteString(w, s)
	return err
}

func readString(r io.Reader) (string, error) {
	var n uint32
	if err := binary.Read(r, byteOrder, &n); err != nil {
		return "", err
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}

func writeDescriptors(w io.Writer, ds []Descriptor) error {
	if err := binary.Write(w, byteOrder, uint32(len(ds))); err != nil {
		return err
	}
	for _, d := range ds {
		if err := writeString(w, d.Name); err != nil {
			return err
		}
		if err := binary.Write(w, byteOrder, uint8(d.Type)); err != nil {
			return err
		}
	}
	return nil
}

func readDescriptors(r io.Reader) ([]Descriptor, error) {
	var n uint32
	if err := binary.Read(r, byteOrder, &n); err != nil {
		return nil, err
	}
	ds := make([]Descriptor, n)
	for i := range ds {
		name, err := readString(r)
		if err != nil {
			return nil, err
		}
		var t uint8
		if err := binary.Read(r, byteOrder, &t); err != nil {
			return nil, err
		}
		ds[i] = Descriptor{Name: name, Type: Type(t)}
	}
	return ds, nil
}

func writeMetaData(w io.Writer, img *Image) error {
	if err := writeString(w, "META"); err != nil {
		return err
	}
	if err := binary.Write(w, byteOrder, MetaDataVersion); err != nil {
		return err
	}
	if err := binary.Write(w, byteOrder, uint32(len(img.Code))); err != nil {
		return err
	}
	if err := binary.Write(w, byteOrder, img.NumTempRegisters); err != nil {
		return err
	}
	if err := writeDescriptors(w, img.Inputs); err != nil {
		return err
	}
	if err := writeDescriptors(w, img.Outputs); err != nil {
		return err
	}
	if err := binary.Write(w, byteOrder, uint32(len(img.Funcs))); err != nil {
		return err
	}
	for _, f := range img.Funcs {
		if err := writeString(w, f.Name); err != nil {
			return err
		}
		if err := binary.Write(w, byteOrder, uint8(f.ReturnType)); err != nil {
			return err
		}
		if err := binary.Write(w, byteOrder, uint32(len(f.ArgTypes))); err != nil {
			return err
		}
		for _, at := range f.ArgTypes {
			if err := binary.Write(w, byteOrder, uint8(at)); err != nil {
				return err
			}
		}
	}
	return nil
}

func readMetaData(r io.Reader, img *Image) error {
	tag, err := readString(r)
	if err != nil {
		return err
	}
	if tag != "META" {
		return errkind.New(errkind.Invalid, "exprvm", fmt.Sprintf("expected META chunk, got %q", tag))
	}
	var version uint32
	if err := binary.Read(r, byteOrder, &version); err != nil {
		return err
	}
	if version < minMetaDataVersion {
		return errkind.New(errkind.Invalid, "exprvm", fmt.Sprintf("MetaData version %d unsupported, need >= %d", version, minMetaDataVersion))
	}
	var numInstr uint32
	if err := binary.Read(r, byteOrder, &numInstr); err != nil {
		return err
	}
	if err := binary.Read(r, byteOrder, &img.NumTempRegisters); err != nil {
		return err
	}
	if img.Inputs, err = readDescriptors(r); err != nil {
		return err
	}
	if img.Outputs, err = readDescriptors(r); err != nil {
		return err
	}
	var numFuncs uint32
	if err := binary.Read(r, byteOrder, &numFuncs); err != nil {
		return err
	}
	img.Funcs = make([]FuncDescriptor, numFuncs)
	for i := range img.Funcs {
		name, err := readString(r)
		if err != nil {
			return err
		}
		var rt uint8
		if err := binary.Read(r, byteOrder, &rt); err != nil {
			return err
		}
		var numArgs uint32
		if err := binary.Read(r, byteOrder, &numArgs); err != nil {
			return err
		}
		args := make([]Type, numArgs)
		for j := range args {
			var at uint8
			if err := binary.Read(r, byteOrder, &at); err != nil {
				return err
			}
			args[j] = Type(at)
		}
		img.Funcs[i] = FuncDescriptor{Name: name, ReturnType: Type(rt), ArgTypes: args}
	}
	img.Code = make([]Instr, 0, numInstr)
	return nil
}

// writeCode flattens img.Code into storage words: one opcode word
// followed by a fixed number of operand words per decoded form.
func writeCode(w io.Writer, img *Image) error {
	if err := writeString(w, "CODE"); err != nil {
		return err
	}
	if err := binary.Write(w, byteOrder, CodeVersion); err != nil {
		return err
	}
	words := encodeInstrs(img.Code)
	if err := binary.Write(w, byteOrder, uint32(len(words))); err != nil {
		return err
	}
	return binary.Write(w, byteOrder, words)
}

func readCode(r io.Reader, img *Image) error {
	tag, err := readString(r)
	if err != nil {
		return err
	}
	if tag != "CODE" {
		return errkind.New(errkind.Invalid, "exprvm", fmt.Sprintf("expected CODE chunk, got %q", tag))
	}
	var version uint32
	if err := binary.Read(r, byteOrder, &version); err != nil {
		return err
	}
	if version < minCodeVersion {
		return errkind.New(errkind.Invalid, "exprvm", fmt.Sprintf("Code version %d unsupported, need >= %d", version, minCodeVersion))
	}
	var numWords uint32
	if err := binary.Read(r, byteOrder, &numWords); err != nil {
		return err
	}
	words := make([]uint32, numWords)
	if err := binary.Read(r, byteOrder, words); err != nil {
		return err
	}
	instrs, err := decodeInstrs(words)
	if err != nil {
		return err
	}
	img.Code = instrs
	return nil
}

func encodeInstrs(code []Instr) []uint32 {
	var words []uint32
	for _, ins := range code {
		words = append(words, uint32(ins.Op))
		switch formOf(ins.Op) {
		case FormUnary, FormMovR:
			words = append(words, ins.Dst, ins.A)
		case FormBinaryRRR:
			words = append(words, ins.Dst, ins.A, ins.B)
		case FormBinaryRRC:
			words = append(words, ins.Dst, ins.A, ins.Const)
		case FormTernary:
			words = append(words, ins.Dst, ins.Cond, ins.A, ins.B)
		case FormMovC:
			words = append(words, ins.Dst, ins.Const)
		case FormLoad:
			words = append(words, ins.Dst, ins.Slot)
		case FormStore:
			words = append(words, ins.Slot, ins.A)
		case FormCall:
			words = append(words, ins.Dst, ins.Fn, uint32(len(ins.Args)))
			words = append(words, ins.Args...)
		}
	}
	return words
}

func decodeInstrs(words []uint32) ([]Instr, error) {
	var code []Instr
	i := 0
	for i < len(words) {
		op := Op(words[i])
		i++
		ins := Instr{Op: op}
		switch formOf(op) {
		case FormUnary, FormMovR:
			if i+2 > len(words) {
				return nil, errShortCode(op)
			}
			ins.Dst, ins.A = words[i], words[i+1]
			i += 2
		case FormBinaryRRR:
			if i+3 > len(words) {
				return nil, errShortCode(op)
			}
			ins.Dst, ins.A, ins.B = words[i], words[i+1], words[i+2]
			i += 3
		case FormBinaryRRC:
			if i+3 > len(words) {
				return nil, errShortCode(op)
			}
			ins.Dst, ins.A, ins.Const = words[i], words[i+1], words[i+2]
			i += 3
		case FormTernary:
			if i+4 > len(words) {
				return nil, errShortCode(op)
			}
			ins.Dst, ins.Cond, ins.A, ins.B = words[i], words[i+1], words[i+2], words[i+3]
			i += 4
		case FormMovC:
			if i+2 > len(words) {
				return nil, errShortCode(op)
			}
			ins.Dst, ins.Const = words[i], words[i+1]
			i += 2
		case FormLoad:
			if i+2 > len(words) {
				return nil, errShortCode(op)
			}
			ins.Dst, ins.Slot = words[i], words[i+1]
			i += 2
		case FormStore:
			if i+2 > len(words) {
				return nil, errShortCode(op)
			}
			ins.Slot, ins.A = words[i], words[i+1]
			i += 2
		case FormCall:
			if i+3 > len(words) {
				return nil, errShortCode(op)
			}
			ins.Dst, ins.Fn = words[i], words[i+1]
			argc := words[i+2]
			i += 3
			if i+int(argc) > len(words) {
				return nil, errShortCode(op)
			}
			ins.Args = append([]uint32(nil), words[i:i+int(argc)]...)
			i += int(argc)
		}
		code = append(code, ins)
	}
	return code, nil
}

func errShortCode(op Op) error {
	return errkind.New(errkind.Invalid, "exprvm", fmt.Sprintf("truncated operand words for opcode %s", op))
}
