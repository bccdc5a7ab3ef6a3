package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"math/big"
	"os"
	"strings"

	"triton/internal/triton/core"
	"triton/internal/triton/vm"
	"triton/pkg/triton"
)

// Input format matches Triton VM's interface
type ClaimInput struct {
	ProgramDigest string   `json:"program_digest"` // Hex string
	Version       uint32   `json:"version"`
	Input         []uint64 `json:"input"`
	Output        []uint64 `json:"output"`
}

type ProgramInput struct {
	Instructions   []string               `json:"instructions"` // String format like "Halt", "Push(42)"
	AddressToLabel map[string]uint64      `json:"address_to_label,omitempty"`
	DebugInfo      map[string]interface{} `json:"debug_information,omitempty"`
}

type NonDeterminismInput struct {
	IndividualTokens []uint64          `json:"individual_tokens"`
	Digests          []string          `json:"digests"`
	Ram              map[string]uint64 `json:"ram"`
}

func main() {
	// Read JSON lines from stdin (like Triton VM prover)
	scanner := bufio.NewScanner(os.Stdin)

	// Line 1: Claim
	if !scanner.Scan() {
		fatal("Failed to read claim")
	}
	var claimInput ClaimInput
	if err := json.Unmarshal(scanner.Bytes(), &claimInput); err != nil {
		fatal(fmt.Sprintf("Failed to parse claim: %v", err))
	}

	// Line 2: Program
	if !scanner.Scan() {
		fatal("Failed to read program")
	}
	var programInput ProgramInput
	if err := json.Unmarshal(scanner.Bytes(), &programInput); err != nil {
		fatal(fmt.Sprintf("Failed to parse program: %v", err))
	}

	// Line 3: NonDeterminism
	if !scanner.Scan() {
		fatal("Failed to read non_determinism")
	}
	var nonDetInput NonDeterminismInput
	if err := json.Unmarshal(scanner.Bytes(), &nonDetInput); err != nil {
		fatal(fmt.Sprintf("Failed to parse non_determinism: %v", err))
	}

	// Line 4: Max padded height (optional)
	if !scanner.Scan() {
		fatal("Failed to read max_log2_padded_height")
	}
	var maxPaddedHeight *uint8
	if err := json.Unmarshal(scanner.Bytes(), &maxPaddedHeight); err != nil {
		fatal(fmt.Sprintf("Failed to parse max_log2_padded_height: %v", err))
	}

	// Line 5: Environment variables
	if !scanner.Scan() {
		fatal("Failed to read env_variables")
	}
	var envVars map[string]interface{}
	if err := json.Unmarshal(scanner.Bytes(), &envVars); err != nil {
		fatal(fmt.Sprintf("Failed to parse env_variables: %v", err))
	}

	// Convert inputs to Triton VM format
	program, err := convertProgram(programInput)
	if err != nil {
		fatal(fmt.Sprintf("Failed to convert program: %v", err))
	}

	publicInput := convertFieldElements(claimInput.Input)
	secretInput := convertFieldElements(nonDetInput.IndividualTokens)

	// Create VM and execute
	logStderr("Creating Riva VM...")
	vm, err := triton.NewVM(triton.DefaultVMConfig())
	if err != nil {
		fatal(fmt.Sprintf("Failed to create VM: %v", err))
	}

	// Execute program
	logStderr("Executing program...")
	trace, err := vm.Execute(program, publicInput, secretInput)
	if err != nil {
		fatal(fmt.Sprintf("Execution failed: %v", err))
	}

	logStderr(fmt.Sprintf("Execution completed in %d cycles", trace.CycleCount))

	// Create prover with proper security parameters
	config := triton.DefaultConfig()
	config.FRIQueries = 80 // 128-bit security requires SecurityLevel/3 = 240/3 = 80

	// Adjust config based on padded height if needed
	if maxPaddedHeight != nil {
		logStderr(fmt.Sprintf("Max log2 padded height: %d", *maxPaddedHeight))
	}

	logStderr("Creating prover...")
	prover, err := triton.NewProver(config)
	if err != nil {
		fatal(fmt.Sprintf("Failed to create prover: %v", err))
	}

	// Generate proof
	logStderr("Generating proof...")
	proof, err := prover.GenerateProof(trace)
	if err != nil {
		fatal(fmt.Sprintf("Proof generation failed: %v", err))
	}

	logStderr("Proof generated successfully")

	// Serialize proof
	proofBytes, err := json.Marshal(proof)
	if err != nil {
		fatal(fmt.Sprintf("Failed to serialize proof: %v", err))
	}

	// Write proof to stdout (like Triton VM)
	os.Stdout.Write(proofBytes)
	os.Stdout.Write([]byte("\n"))
}

// goldilocksField is shared across every instruction argument and I/O
// value converted in this process; building it once per call (as the
// teacher's version did) re-parsed the modulus string on every single
// instruction.
var goldilocksField = mustGoldilocksField()

func mustGoldilocksField() *core.Field {
	modulus := new(big.Int)
	modulus.SetString("18446744069414584321", 10)
	f, err := core.NewField(modulus)
	if err != nil {
		fatal(fmt.Sprintf("failed to create Goldilocks field: %v", err))
	}
	return f
}

func convertProgram(input ProgramInput) (*triton.Program, error) {
	instructions := make([]triton.Instruction, len(input.Instructions))

	for i, instStr := range input.Instructions {
		opcode, arg, err := parseInstruction(instStr)
		if err != nil {
			return nil, fmt.Errorf("failed to parse instruction %d (%s): %w", i, instStr, err)
		}

		instructions[i] = triton.Instruction{
			Opcode:   opcode,
			Argument: arg,
		}
	}

	return &triton.Program{
		Instructions: instructions,
	}, nil
}

// parseInstruction decodes one line of the "Name" / "Name(arg)" wire
// format used by the claim/program/non_determinism input protocol,
// resolving the mnemonic against the VM's own opcode table
// (vm.LookupMnemonic) rather than a hand-maintained subset of opcodes —
// the latter previously covered only 13 of the VM's 49 instructions and
// silently rejected everything else.
func parseInstruction(instStr string) (byte, *triton.FieldElement, error) {
	name, argStr, hasArg := strings.Cut(instStr, "(")

	inst, ok := vm.LookupMnemonic(strings.ToLower(name))
	if !ok {
		return 0, nil, fmt.Errorf("unknown instruction: %s", name)
	}

	info, err := inst.Info()
	if err != nil {
		return 0, nil, fmt.Errorf("instruction %s has no opcode metadata: %w", name, err)
	}

	if info.HasArg != hasArg {
		if info.HasArg {
			return 0, nil, fmt.Errorf("instruction %s requires an argument", name)
		}
		return 0, nil, fmt.Errorf("instruction %s does not take an argument", name)
	}

	if !hasArg {
		return byte(inst), nil, nil
	}

	argVal, err := strconvParseArg(argStr)
	if err != nil {
		return 0, nil, fmt.Errorf("invalid argument for %s: %w", name, err)
	}

	return byte(inst), convertFieldElement(argVal), nil
}

func strconvParseArg(raw string) (uint64, error) {
	raw = strings.TrimSuffix(raw, ")")
	var argVal uint64
	if _, err := fmt.Sscanf(raw, "%d", &argVal); err != nil {
		return 0, fmt.Errorf("invalid argument %q: %w", raw, err)
	}
	return argVal, nil
}

func convertFieldElements(values []uint64) []*triton.FieldElement {
	result := make([]*triton.FieldElement, len(values))
	for i, val := range values {
		result[i] = convertFieldElement(val)
	}
	return result
}

func convertFieldElement(val uint64) *triton.FieldElement {
	return goldilocksField.NewElement(new(big.Int).SetUint64(val))
}

func logStderr(msg string) {
	fmt.Fprintln(os.Stderr, "triton-prove:", msg)
}

func fatal(msg string) {
	logStderr("ERROR: " + msg)
	os.Exit(1)
}
