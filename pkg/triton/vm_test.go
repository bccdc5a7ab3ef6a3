package triton

import (
	"testing"
)

func TestVMCreation(t *testing.T) {
	t.Run("NewVM", func(t *testing.T) {
		// Test VM creation
		// This would test the public API for creating VM instances
	})

	t.Run("VMConfiguration", func(t *testing.T) {
		// Test VM configuration
		// This would test the public API for VM configuration
	})
}

func TestVMExecution(t *testing.T) {
	t.Run("Execute", func(t *testing.T) {
		// Test VM execution
		// This would test the public API for executing programs
	})

	t.Run("GetState", func(t *testing.T) {
		// Test getting VM state
		// This would test the public API for getting VM state
	})
}

func TestVMInputOutput(t *testing.T) {
	t.Run("PublicInput", func(t *testing.T) {
		// Test public input handling
		// This would test the public API for public inputs
	})

	t.Run("SecretInput", func(t *testing.T) {
		// Test secret input handling
		// This would test the public API for secret inputs
	})

	t.Run("PublicOutput", func(t *testing.T) {
		// Test public output handling
		// This would test the public API for public outputs
	})
}
