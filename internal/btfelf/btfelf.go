// Copyright 2024 The btfgen Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package btfelf is the external collaborator that loads a graph.Graph
// from the .BTF section of an ELF object. Decoding the raw BTF wire format
// is out of the core's scope; this package exists so cmd/btfgen has
// something real to hand the core packages.
package btfelf

import (
	"bytes"
	"debug/elf"
	"encoding/binary"
	"fmt"

	"github.com/btfgen/btfgen/graph"
)

const btfMagic = 0xeB9F

// header is the BTF blob's leading fixed header, as laid out by the kernel
// UAPI (include/uapi/linux/btf.h).
type header struct {
	Magic   uint16
	Version uint8
	Flags   uint8
	HdrLen  uint32
	TypeOff uint32
	TypeLen uint32
	StrOff  uint32
	StrLen  uint32
}

const rawHeaderLen = 2 + 1 + 1 + 4*5

// Load reads the ELF object at path and decodes its .BTF section into a
// Graph.
func Load(path string) (*graph.Graph, error) {
	f, err := elf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("btfelf: open %s: %w", path, err)
	}
	defer f.Close()

	sec := f.Section(".BTF")
	if sec == nil {
		return nil, fmt.Errorf("btfelf: %s has no .BTF section", path)
	}
	data, err := sec.Data()
	if err != nil {
		return nil, fmt.Errorf("btfelf: reading .BTF section of %s: %w", path, err)
	}

	ptrSize := uint32(4)
	if f.Class == elf.ELFCLASS64 {
		ptrSize = 8
	}
	return decode(data, f.ByteOrder, ptrSize)
}

func decode(data []byte, bo binary.ByteOrder, ptrSize uint32) (*graph.Graph, error) {
	if len(data) < rawHeaderLen {
		return nil, fmt.Errorf("btfelf: .BTF section too short for header")
	}
	h := header{
		Magic:   bo.Uint16(data[0:2]),
		Version: data[2],
		Flags:   data[3],
		HdrLen:  bo.Uint32(data[4:8]),
		TypeOff: bo.Uint32(data[8:12]),
		TypeLen: bo.Uint32(data[12:16]),
		StrOff:  bo.Uint32(data[16:20]),
		StrLen:  bo.Uint32(data[20:24]),
	}
	if h.Magic != btfMagic {
		return nil, fmt.Errorf("btfelf: bad BTF magic %#x", h.Magic)
	}

	typeStart := h.HdrLen + h.TypeOff
	typeEnd := typeStart + h.TypeLen
	strStart := h.HdrLen + h.StrOff
	strEnd := strStart + h.StrLen
	if uint64(typeEnd) > uint64(len(data)) || uint64(strEnd) > uint64(len(data)) {
		return nil, fmt.Errorf("btfelf: header offsets overrun the section")
	}
	strTab := data[strStart:strEnd]

	nameAt := func(off uint32) (string, error) {
		if uint64(off) >= uint64(len(strTab)) {
			return "", fmt.Errorf("btfelf: string offset %d out of range", off)
		}
		end := bytes.IndexByte(strTab[off:], 0)
		if end < 0 {
			return "", fmt.Errorf("btfelf: unterminated string at offset %d", off)
		}
		return string(strTab[off : off+uint32(end)]), nil
	}

	nodes := []graph.Node{graph.VoidType{}}
	cur := typeStart
	end := typeEnd
	for cur < end {
		if cur+12 > end {
			return nil, fmt.Errorf("btfelf: truncated type record at offset %d", cur)
		}
		nameOff := bo.Uint32(data[cur : cur+4])
		info := bo.Uint32(data[cur+4 : cur+8])
		sizeOrType := bo.Uint32(data[cur+8 : cur+12])
		cur += 12

		kind := (info >> 24) & 0x1f
		vlen := int(info & 0xffff)
		kindFlag := info&(1<<31) != 0

		name, err := nameAt(nameOff)
		if err != nil {
			return nil, err
		}

		var n graph.Node
		switch kind {
		case 1: // INT
			if cur+4 > end {
				return nil, fmt.Errorf("btfelf: truncated INT record")
			}
			enc := bo.Uint32(data[cur : cur+4])
			cur += 4
			n = graph.Int{
				Name:     name,
				Bits:     enc & 0xff,
				Offset:   (enc >> 16) & 0xff,
				Encoding: decodeIntEncoding((enc >> 24) & 0xf),
			}

		case 2: // PTR
			n = graph.Ptr{Target: graph.ID(sizeOrType)}

		case 3: // ARRAY
			if cur+12 > end {
				return nil, fmt.Errorf("btfelf: truncated ARRAY record")
			}
			elem := bo.Uint32(data[cur : cur+4])
			index := bo.Uint32(data[cur+4 : cur+8])
			nelems := bo.Uint32(data[cur+8 : cur+12])
			cur += 12
			n = graph.Array{Element: graph.ID(elem), Index: graph.ID(index), Nelems: nelems}

		case 4, 5: // STRUCT, UNION
			members := make([]graph.Member, 0, vlen)
			for i := 0; i < vlen; i++ {
				if cur+12 > end {
					return nil, fmt.Errorf("btfelf: truncated member record")
				}
				mNameOff := bo.Uint32(data[cur : cur+4])
				mType := bo.Uint32(data[cur+4 : cur+8])
				mOffset := bo.Uint32(data[cur+8 : cur+12])
				cur += 12
				mName, err := nameAt(mNameOff)
				if err != nil {
					return nil, err
				}
				var bitOff, bitSize uint32
				if kindFlag {
					bitOff = mOffset & 0xffffff
					bitSize = mOffset >> 24
				} else {
					bitOff = mOffset
				}
				members = append(members, graph.Member{Name: mName, Type: graph.ID(mType), BitOffset: bitOff, BitSize: bitSize})
			}
			if kind == 4 {
				n = graph.Struct{Name: name, SizeBytes: sizeOrType, Members: members}
			} else {
				n = graph.Union{Name: name, SizeBytes: sizeOrType, Members: members}
			}

		case 6: // ENUM
			values := make([]graph.EnumValue, 0, vlen)
			for i := 0; i < vlen; i++ {
				if cur+8 > end {
					return nil, fmt.Errorf("btfelf: truncated enum value record")
				}
				vNameOff := bo.Uint32(data[cur : cur+4])
				val := int32(bo.Uint32(data[cur+4 : cur+8]))
				cur += 8
				vName, err := nameAt(vNameOff)
				if err != nil {
					return nil, err
				}
				values = append(values, graph.EnumValue{Name: vName, Value: val})
			}
			n = graph.Enum{Name: name, SizeBits: sizeOrType * 8, Values: values}

		case 7: // FWD
			fk := graph.FwdStruct
			if kindFlag {
				fk = graph.FwdUnion
			}
			n = graph.Fwd{Name: name, FwdKind: fk}

		case 8: // TYPEDEF
			n = graph.Typedef{Name: name, Target: graph.ID(sizeOrType)}
		case 9: // VOLATILE
			n = graph.Volatile{Target: graph.ID(sizeOrType)}
		case 10: // CONST
			n = graph.Const{Target: graph.ID(sizeOrType)}
		case 11: // RESTRICT
			n = graph.Restrict{Target: graph.ID(sizeOrType)}

		case 12: // FUNC
			n = graph.Func{Name: name, Proto: graph.ID(sizeOrType)}

		case 13: // FUNC_PROTO
			params := make([]graph.Param, 0, vlen)
			for i := 0; i < vlen; i++ {
				if cur+8 > end {
					return nil, fmt.Errorf("btfelf: truncated param record")
				}
				pNameOff := bo.Uint32(data[cur : cur+4])
				pType := bo.Uint32(data[cur+4 : cur+8])
				cur += 8
				pName, err := nameAt(pNameOff)
				if err != nil {
					return nil, err
				}
				params = append(params, graph.Param{Name: pName, Type: graph.ID(pType)})
			}
			n = graph.FuncProto{Return: graph.ID(sizeOrType), Params: params}

		case 14: // VAR
			if cur+4 > end {
				return nil, fmt.Errorf("btfelf: truncated VAR record")
			}
			linkage := bo.Uint32(data[cur : cur+4])
			cur += 4
			vk := graph.VarStatic
			switch linkage {
			case 1:
				vk = graph.VarGlobalAlloc
			case 2:
				vk = graph.VarGlobalExtern
			}
			n = graph.Var{Name: name, Type: graph.ID(sizeOrType), VarKind: vk}

		case 15: // DATASEC
			vars := make([]graph.DatasecVarInfo, 0, vlen)
			for i := 0; i < vlen; i++ {
				if cur+12 > end {
					return nil, fmt.Errorf("btfelf: truncated datasec var record")
				}
				vType := bo.Uint32(data[cur : cur+4])
				vOffset := bo.Uint32(data[cur+4 : cur+8])
				vSize := bo.Uint32(data[cur+8 : cur+12])
				cur += 12
				vars = append(vars, graph.DatasecVarInfo{Type: graph.ID(vType), Offset: vOffset, Size: vSize})
			}
			n = graph.Datasec{Name: name, SizeBytes: sizeOrType, Vars: vars}

		default:
			return nil, fmt.Errorf("btfelf: unsupported BTF kind %d", kind)
		}

		nodes = append(nodes, n)
	}

	return graph.New(nodes, ptrSize)
}

func decodeIntEncoding(e uint32) graph.IntEncoding {
	switch e & 0x0f {
	case 1:
		return graph.EncodingSigned
	case 2:
		return graph.EncodingChar
	case 4:
		return graph.EncodingBool
	default:
		return graph.EncodingNone
	}
}
