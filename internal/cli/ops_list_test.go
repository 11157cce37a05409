package cli

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reporanger/internal/ops"
)

// mockOp implements ops.Operation for testing purposes
type mockOp struct {
	id          string
	title       string
	description string
}

func (m *mockOp) ID() string          { return m.id }
func (m *mockOp) Title() string       { return m.title }
func (m *mockOp) Description() string { return m.description }
func (m *mockOp) Apply(ctx context.Context, req ops.Request, target ops.Target) (string, error) {
	return "", nil
}

// mockConfigurableOp implements ops.ConfigurableOperation for testing purposes
type mockConfigurableOp struct {
	mockOp
	options []ops.OptionSpec
}

func (m *mockConfigurableOp) Options() []ops.OptionSpec {
	return m.options
}

func (m *mockConfigurableOp) Configure(opts map[string]string) error {
	return nil
}

func registerMockOp(op ops.Operation) {
	defer func() {
		// Already registered by an earlier test run, ignore.
		_ = recover()
	}()
	ops.Register(op)
}

func TestPrintOp(t *testing.T) {
	tests := []struct {
		name           string
		op             ops.Operation
		expectedOutput []string
		notExpected    []string
	}{
		{
			name: "Regular Operation",
			op: &mockOp{
				id:          "simple-op",
				title:       "Simple Op",
				description: "A simple operation description",
			},
			expectedOutput: []string{
				"OPERATION: simple-op",
				"Simple Op",
				"A simple operation description",
			},
			notExpected: []string{
				"Options:",
			},
		},
		{
			name: "Configurable Operation",
			op: &mockConfigurableOp{
				mockOp: mockOp{
					id:          "config-op",
					title:       "Config Op",
					description: "A configurable operation description",
				},
				options: []ops.OptionSpec{
					{
						Name:        "opt1",
						Description: "Option 1 description",
						Default:     "default1",
					},
					{
						Name:        "opt2",
						Description: "Option 2 description",
						Default:     "",
					},
				},
			},
			expectedOutput: []string{
				"OPERATION: config-op",
				"Config Op",
				"A configurable operation description",
				"Options:",
				"opt1",
				"Description: Option 1 description",
				"Default:     default1",
				"opt2",
				"Description: Option 2 description",
				"Default:     \"\"",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := new(bytes.Buffer)
			printOp(buf, tt.op)
			output := buf.String()

			for _, exp := range tt.expectedOutput {
				assert.Contains(t, output, exp)
			}
			for _, notExp := range tt.notExpected {
				assert.NotContains(t, output, notExp)
			}
		})
	}
}

func TestOpsListCmd(t *testing.T) {
	registerMockOp(&mockOp{
		id:          "test-op-list",
		title:       "Test Op List",
		description: "This is a test operation for the list command.",
	})

	tests := []struct {
		name           string
		quiet          bool
		expectedOutput []string
		notExpected    []string
	}{
		{
			name:  "Default Output",
			quiet: false,
			expectedOutput: []string{
				"----------------------------------------",
				"OPERATION: test-op-list",
				"Test Op List",
				"This is a test operation for the list command.",
			},
		},
		{
			name:  "Quiet Output",
			quiet: true,
			expectedOutput: []string{
				"test-op-list",
			},
			notExpected: []string{
				"Test Op List",
				"----------------------------------------",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opsListQuiet = tt.quiet
			defer func() { opsListQuiet = false }()

			buf := new(bytes.Buffer)
			opsCmd.SetOut(buf)

			require.NoError(t, opsCmd.RunE(opsCmd, []string{}))

			output := buf.String()
			for _, exp := range tt.expectedOutput {
				assert.Contains(t, output, exp)
			}
			for _, notExp := range tt.notExpected {
				assert.NotContains(t, output, notExp)
			}
		})
	}
}

func TestOpsShowCmd(t *testing.T) {
	registerMockOp(&mockOp{
		id:          "test-op-show",
		title:       "Test Op Show",
		description: "This is a test operation for the show command.",
	})

	t.Run("Show Existing Operation", func(t *testing.T) {
		buf := new(bytes.Buffer)
		opsShowCmd.SetOut(buf)

		require.NoError(t, opsShowCmd.RunE(opsShowCmd, []string{"test-op-show"}))

		output := buf.String()
		assert.Contains(t, output, "OPERATION: test-op-show")
		assert.Contains(t, output, "Test Op Show")
	})

	t.Run("Show Non-Existent Operation", func(t *testing.T) {
		buf := new(bytes.Buffer)
		opsShowCmd.SetOut(buf)

		err := opsShowCmd.RunE(opsShowCmd, []string{"non-existent-op"})
		assert.Error(t, err)
	})
}
