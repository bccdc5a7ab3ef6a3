package vm

import (
	"fmt"

	"github.com/vybium/vybium-crypto/pkg/vybium-crypto/field"
)

// SimpleTraceRecorder is a production-ready trace recorder that focuses on
// processor state recording. Coprocessor table population is deferred to
// when we generate full proofs.
//
// This follows Triton VM's layered approach:
// - Phase 4a: Processor trace (THIS FILE - focus on main execution)
// - Phase 4b: Coprocessor traces (detailed hash, RAM, U32 tables)
type SimpleTraceRecorder struct {
	aet        *AET
	cycleCount uint64
}

// NewSimpleTraceRecorder creates a new simple trace recorder
func NewSimpleTraceRecorder(program *Program) (*SimpleTraceRecorder, error) {
	if program == nil {
		return nil, fmt.Errorf("program cannot be nil")
	}

	aet, err := NewAET(program)
	if err != nil {
		return nil, fmt.Errorf("failed to create AET: %w", err)
	}

	return &SimpleTraceRecorder{
		aet:        aet,
		cycleCount: 0,
	}, nil
}

// RecordState records the VM state before instruction execution
func (str *SimpleTraceRecorder) RecordState(vm *VMState) error {
	// Track instruction multiplicity
	if vm.InstructionPointer < len(str.aet.InstructionMultiplicities) {
		str.aet.InstructionMultiplicities[vm.InstructionPointer]++
	}

	// Record processor state
	if err := str.recordProcessorState(vm); err != nil {
		return err
	}

	str.cycleCount++
	return nil
}

// instructionAtWordAddress finds the instruction occupying the given word
// address in program memory, walking cumulative instruction sizes since
// InstructionPointer is a word address while Program.Instructions is indexed
// by instruction count.
func instructionAtWordAddress(program *Program, wordAddr int) (*EncodedInstruction, bool) {
	addr := 0
	for _, inst := range program.Instructions {
		if addr == wordAddr {
			return inst, true
		}
		addr += inst.Instruction.Size()
	}
	return nil, false
}

// recordProcessorState records the processor state to the processor table
func (str *SimpleTraceRecorder) recordProcessorState(vm *VMState) error {
	currentEnc, found := instructionAtWordAddress(vm.Program, vm.InstructionPointer)
	currentInst := Nop
	if found {
		currentInst = currentEnc.Instruction
	}

	// NIA ("next instruction or argument"): when the current instruction
	// carries an argument, NIA is that argument, so single-row AIR can bind
	// an instruction's effect to the literal it was given. Otherwise NIA is
	// the opcode of whatever instruction follows, letting the processor
	// table's transition constraints see one word ahead without a second
	// lookup.
	var nia uint64
	if found && currentInst.HasArgument() && currentEnc.Argument != nil {
		nia = currentEnc.Argument.Value()
	} else if nextEnc, ok := instructionAtWordAddress(vm.Program, vm.InstructionPointer+currentInst.Size()); ok {
		nia = uint64(nextEnc.Instruction)
	}

	// Instruction bits: the full 7-bit opcode decomposition, matching the
	// opcode range used across the ISA (instruction.go defines IB0..IB6).
	opcode := uint32(currentInst)
	ib0 := field.New((uint64(opcode) >> 0) & 1)
	ib1 := field.New((uint64(opcode) >> 1) & 1)
	ib2 := field.New((uint64(opcode) >> 2) & 1)
	ib3 := field.New((uint64(opcode) >> 3) & 1)
	ib4 := field.New((uint64(opcode) >> 4) & 1)
	ib5 := field.New((uint64(opcode) >> 5) & 1)
	ib6 := field.New((uint64(opcode) >> 6) & 1)

	// Jump stack values
	jsp := field.New(uint64(len(vm.JumpStack)))
	jso := field.Zero
	jsd := field.Zero
	if len(vm.JumpStack) > 0 {
		top := vm.JumpStack[len(vm.JumpStack)-1]
		jso = field.New(uint64(top.Origin))
		jsd = field.New(uint64(top.Destination))
	}

	// Stack (top 16 elements)
	stack := make([]field.Element, 16)
	for i := 0; i < 16; i++ {
		if i < len(vm.Stack) {
			stack[i] = vm.Stack[len(vm.Stack)-1-i]
		} else {
			stack[i] = field.Zero
		}
	}

	// Create processor state
	state := &ProcessorState{
		Clock:                field.New(vm.CycleCount),
		InstructionPointer:   field.New(uint64(vm.InstructionPointer)),
		CurrentInstruction:   field.New(uint64(currentInst)),
		NextInstructionOrArg: field.New(uint64(nia)),
		InstructionBit0:      ib0,
		InstructionBit1:      ib1,
		InstructionBit2:      ib2,
		InstructionBit3:      ib3,
		InstructionBit4:      ib4,
		InstructionBit5:      ib5,
		InstructionBit6:      ib6,
		JumpStackPointer:     jsp,
		JumpStackOrigin:      jso,
		JumpStackDestination: jsd,
		Stack:                stack,
	}

	return str.aet.ProcessorTable.AddRow(state)
}

// GenerateAET finalizes and returns the AET.
//
// Before handing the trace to the prover, it is self-checked: every table's
// AIR constraints must build without error, and the grand cross-table
// argument's terminal values must agree across tables. Neither check runs
// the prover's Fiat-Shamir challenges, so a trace that fails here is
// malformed independent of any particular proof.
func (str *SimpleTraceRecorder) GenerateAET() (*AET, error) {
	// Pad all tables
	if err := str.aet.Pad(); err != nil {
		return nil, fmt.Errorf("failed to pad AET: %w", err)
	}

	if _, err := str.aet.GenerateAIRConstraints(); err != nil {
		return nil, fmt.Errorf("AET self-check: AIR constraints do not build: %w", err)
	}

	if err := NewGrandCrossTableArgument().VerifyTerminalConstraints(str.aet); err != nil {
		return nil, fmt.Errorf("AET self-check: cross-table terminal constraints violated: %w", err)
	}

	return str.aet, nil
}
