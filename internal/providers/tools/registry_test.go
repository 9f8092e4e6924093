package tools

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/sandevgo/tuskmem/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func echo(ctx context.Context, args json.RawMessage) (string, error) {
	return string(args), nil
}

func TestRegistry_Register(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(Definition{Name: "a", Handler: echo}, Definition{Name: "b", Handler: echo}))

	err := r.Register(Definition{Name: "a", Handler: echo})
	require.ErrorIs(t, err, ErrDuplicateTool)

	err = r.Register(Definition{Name: "c", Handler: echo, Schema: `{"type": 12}`})
	require.Error(t, err)
	assert.False(t, r.Has("c"))

	err = r.Register(Definition{Name: "d"})
	require.Error(t, err)

	assert.Equal(t, []string{"a", "b"}, r.Names())
}

func TestRegistry_Definitions(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, RegisterBuiltins(r, NewFetch(), NewWorkspace(t.TempDir())))

	defs := r.Definitions()
	require.Len(t, defs, 5)
	assert.Equal(t, ExampleToolName, defs[0].Function.Name)
	assert.Equal(t, FetchToolName, defs[1].Function.Name)
	assert.Equal(t, ReadFileToolName, defs[2].Function.Name)
	assert.Equal(t, "function", defs[0].Type)
	assert.True(t, json.Valid(defs[0].Function.Parameters))

	require.NoError(t, r.Register(Definition{Name: "bare", Handler: echo}))
	last := r.Definitions()[5]
	assert.JSONEq(t, `{"type":"object","properties":{}}`, string(last.Function.Parameters))
}

func TestRegistry_Execute(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, RegisterBuiltins(r, nil, nil))
	require.NoError(t, r.Register(Definition{
		Name:    "fails",
		Handler: func(context.Context, json.RawMessage) (string, error) { return "", errors.New("nope") },
	}))

	tests := []struct {
		name    string
		call    core.ToolCall
		want    string
		wantErr string
	}{
		{
			name: "example tool",
			call: core.ToolCall{ID: "1", Name: ExampleToolName, Arguments: json.RawMessage(`{"query":"ping"}`)},
			want: "You asked: ping",
		},
		{
			name:    "missing required argument",
			call:    core.ToolCall{ID: "2", Name: ExampleToolName, Arguments: json.RawMessage(`{}`)},
			wantErr: "arguments do not match schema",
		},
		{
			name:    "wrong argument type",
			call:    core.ToolCall{ID: "3", Name: ExampleToolName, Arguments: json.RawMessage(`{"query": 42}`)},
			wantErr: "arguments do not match schema",
		},
		{
			name:    "malformed json",
			call:    core.ToolCall{ID: "4", Name: ExampleToolName, Arguments: json.RawMessage(`{"query"`)},
			wantErr: "invalid arguments",
		},
		{
			name:    "handler error",
			call:    core.ToolCall{ID: "5", Name: "fails"},
			wantErr: "nope",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := r.Execute(context.Background(), tt.call)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, out)
		})
	}
}

func TestRegistry_ExecuteUnknown(t *testing.T) {
	r := NewRegistry()
	_, err := r.Execute(context.Background(), core.ToolCall{ID: "x", Name: "ghost"})

	var unknown *core.UnknownToolError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, "ghost", unknown.Name)
	assert.False(t, r.Has("ghost"))
}

func TestRegistry_EmptyArgumentsBecomeObject(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(Definition{
		Name:    "noargs",
		Schema:  `{"type":"object"}`,
		Handler: echo,
	}))

	out, err := r.Execute(context.Background(), core.ToolCall{ID: "1", Name: "noargs"})
	require.NoError(t, err)
	assert.Equal(t, "{}", out)
}
