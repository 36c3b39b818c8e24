package commands

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kriansa/fmcmd/internal/log"
	"github.com/kriansa/fmcmd/internal/testutil"
)

func TestMain(m *testing.M) {
	log.Setup(false)
	os.Exit(m.Run())
}

func TestHelperProcess(t *testing.T) {
	testutil.HelperProcess()
}

// stubCommand records the arguments it was called with
type stubCommand struct {
	name string
	args []string
	env  Env
}

func (s *stubCommand) Name() string  { return s.name }
func (s *stubCommand) Usage() string { return "stub" }

func (s *stubCommand) Execute(_ context.Context, env Env, args []string) (Result, error) {
	s.env = env
	s.args = args
	return Result{Selected: s.name}, nil
}

func TestRegistry_RegisterPanics(t *testing.T) {
	tests := []struct {
		name  string
		names []string
	}{
		{"empty name", []string{""}},
		{"duplicate name", []string{"edit", "edit"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRegistry()
			assert.Panics(t, func() {
				for _, n := range tt.names {
					r.Register(&stubCommand{name: n})
				}
			})
		})
	}
}

func TestRegistry_LookupAndNames(t *testing.T) {
	r := NewRegistry()
	r.Register(&stubCommand{name: "trash"})
	r.Register(&stubCommand{name: "edit"})
	r.Register(&stubCommand{name: "mkcd"})

	assert.Equal(t, []string{"edit", "mkcd", "trash"}, r.Names())

	cmd, ok := r.Lookup("mkcd")
	require.True(t, ok)
	assert.Equal(t, "mkcd", cmd.Name())

	_, ok = r.Lookup("nope")
	assert.False(t, ok)
}

func TestRegistry_Execute(t *testing.T) {
	r := NewRegistry()
	stub := &stubCommand{name: "edit"}
	r.Register(stub)

	env := Env{Dir: "/tmp", Selection: []string{"a"}}
	res, err := r.Execute(context.Background(), "edit", env, []string{"x"})
	require.NoError(t, err)
	assert.Equal(t, Result{Selected: "edit"}, res)
	assert.Equal(t, env, stub.env)
	assert.Equal(t, []string{"x"}, stub.args)

	_, err = r.Execute(context.Background(), "unknown", env, nil)
	assert.ErrorContains(t, err, "command not found")
}

func TestRegistry_ExecuteLine(t *testing.T) {
	t.Setenv("FMCMD_TEST_NAME", "expanded")

	tests := []struct {
		line     string
		wantArgs []string
		wantErr  bool
	}{
		{line: "stub a b", wantArgs: []string{"a", "b"}},
		{line: `stub "a b"`, wantArgs: []string{"a b"}},
		{line: `stub 'it''s' c`, wantArgs: []string{"its", "c"}},
		{line: "stub $FMCMD_TEST_NAME", wantArgs: []string{"expanded"}},
		{line: "stub", wantArgs: []string{}},
		{line: "", wantErr: true},
		{line: `stub "unterminated`, wantErr: true},
		{line: "missing arg", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			r := NewRegistry()
			stub := &stubCommand{name: "stub"}
			r.Register(stub)

			_, err := r.ExecuteLine(context.Background(), Env{}, tt.line)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantArgs, stub.args)
		})
	}
}

func TestRegistry_ExecuteLineMkcdQuoted(t *testing.T) {
	dir := t.TempDir()
	r := NewRegistry()
	r.Register(NewMkcd())

	res, err := r.ExecuteLine(context.Background(), Env{Dir: dir}, `mkcd "a b"`)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "a b"), res.Dir)
	assert.DirExists(t, filepath.Join(dir, "a b"))
}

func TestExitError(t *testing.T) {
	inner := errors.New("boom")
	err := error(&ExitError{Code: 4, Err: inner})
	assert.Equal(t, "boom", err.Error())
	assert.ErrorIs(t, err, inner)

	var exitErr *ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, 4, exitErr.Code)

	assert.Equal(t, "exit status 2", (&ExitError{Code: 2}).Error())
}
