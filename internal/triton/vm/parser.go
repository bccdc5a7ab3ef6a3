package vm

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/vybium/vybium-crypto/pkg/vybium-crypto/field"
)

// mnemonics maps instruction names back to their opcode, built once from
// AllInstructions.
var mnemonics = buildMnemonics()

func buildMnemonics() map[string]Instruction {
	m := make(map[string]Instruction, len(AllInstructions))
	for opcode, info := range AllInstructions {
		m[info.Name] = opcode
	}
	return m
}

// LookupMnemonic resolves an instruction's assembly mnemonic (e.g.
// "push", "halt") to its opcode, for callers outside this package that
// need to build a Program from instruction names without duplicating
// the mnemonic table (e.g. a host-language binding reading a JSON
// instruction list).
func LookupMnemonic(name string) (Instruction, bool) {
	inst, ok := mnemonics[name]
	return inst, ok
}

// parsedItem is one line of assembly after tokenizing: either a label
// definition or an instruction, optionally carrying a raw argument token
// that still needs resolving (a literal, or a call target).
type parsedItem struct {
	labelDef string // non-empty if this item defines a label
	instr    Instruction
	hasInstr bool
	argToken string // raw argument token, empty if the instruction takes none
}

// ParseAssembly compiles labelled Triton assembly source into a resolved
// Program. Address resolution is a two-pass algorithm: the first pass
// tokenizes the source, computes instruction sizes, and populates the
// label-to-address map; the second pass re-walks the tokens emitting
// fully resolved instructions, rewriting each `call <label>` into
// `call <address>`.
func ParseAssembly(source string) (*Program, error) {
	tokens := strings.Fields(source)

	items, labelMap, err := scanLabelsAndSizes(tokens)
	if err != nil {
		return nil, err
	}

	program := NewProgram()
	for _, item := range items {
		if item.labelDef != "" {
			continue
		}

		enc, err := resolveItem(item, labelMap)
		if err != nil {
			return nil, err
		}
		program.AddInstruction(enc)
	}

	if err := ValidateProgram(program); err != nil {
		return nil, err
	}
	return program, nil
}

// scanLabelsAndSizes is pass 1: it walks the token stream once, recording
// label definitions at their absolute word address and building the
// sequence of parsed items pass 2 will resolve. Label values themselves
// are not looked up here — only sizes, which depend on the mnemonic, not
// on what a call argument eventually resolves to.
func scanLabelsAndSizes(tokens []string) ([]parsedItem, map[string]int, error) {
	items := make([]parsedItem, 0, len(tokens))
	labelMap := make(map[string]int)
	address := 0

	for i := 0; i < len(tokens); i++ {
		tok := tokens[i]

		if strings.HasSuffix(tok, ":") {
			name := strings.TrimSuffix(tok, ":")
			if name == "" {
				return nil, nil, fmt.Errorf("empty label name")
			}
			if _, exists := labelMap[name]; exists {
				return nil, nil, fmt.Errorf("duplicate label `%s`", name)
			}
			labelMap[name] = address
			items = append(items, parsedItem{labelDef: name})
			continue
		}

		opcode, ok := mnemonics[tok]
		if !ok {
			return nil, nil, fmt.Errorf("unknown mnemonic `%s`", tok)
		}
		info, err := opcode.Info()
		if err != nil {
			return nil, nil, err
		}

		item := parsedItem{instr: opcode, hasInstr: true}
		if info.HasArg {
			i++
			if i >= len(tokens) {
				return nil, nil, fmt.Errorf("instruction `%s` requires an argument", tok)
			}
			item.argToken = tokens[i]
		}

		items = append(items, item)
		address += info.Size
	}

	return items, labelMap, nil
}

// resolveItem is pass 2: it turns one parsed item into a fully resolved
// EncodedInstruction, looking up call targets in the label map built in
// pass 1 and parsing numeric literals for everything else.
func resolveItem(item parsedItem, labelMap map[string]int) (*EncodedInstruction, error) {
	info, err := item.instr.Info()
	if err != nil {
		return nil, err
	}
	if !info.HasArg {
		return NewEncodedInstruction(item.instr, nil)
	}

	if item.instr == Call {
		address, ok := labelMap[item.argToken]
		if !ok {
			return nil, fmt.Errorf("unresolved label `%s`", item.argToken)
		}
		arg := field.New(uint64(address))
		return NewEncodedInstruction(item.instr, &arg)
	}

	value, err := parseLiteral(item.argToken)
	if err != nil {
		return nil, fmt.Errorf("instruction `%s`: %w", info.Name, err)
	}

	if item.instr == Dup || item.instr == Swap {
		if value.Value() > 15 {
			return nil, fmt.Errorf("oversized shift index %d for `%s` (max 15)", value.Value(), info.Name)
		}
	}

	arg := field.New(value.Value())
	return NewEncodedInstruction(item.instr, &arg)
}

// parseLiteral parses a decimal or `0x`-prefixed hexadecimal immediate.
func parseLiteral(token string) (field.Element, error) {
	base := 10
	digits := token
	if strings.HasPrefix(token, "0x") || strings.HasPrefix(token, "0X") {
		base = 16
		digits = token[2:]
	}

	value, err := strconv.ParseUint(digits, base, 64)
	if err != nil {
		return field.Zero, fmt.Errorf("out-of-range or malformed immediate `%s`", token)
	}
	return field.New(value), nil
}
