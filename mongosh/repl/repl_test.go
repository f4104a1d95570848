package repl

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/dop251/goja"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/mongodb-labs/mongo-web-shell-sub000/mongosh"
	"github.com/mongodb-labs/mongo-web-shell-sub000/mongosh/history"
	"github.com/mongodb-labs/mongo-web-shell-sub000/mongosh/jsrt"
	"github.com/mongodb-labs/mongo-web-shell-sub000/mongosh/rewrite"
)

type stubGateway struct {
	requests []mongosh.Request
	fail     bool
}

func (g *stubGateway) MakeRequest(
	_ context.Context, sh *mongosh.Shell, req mongosh.Request, onSuccess func(mongosh.Response) error, async bool,
) error {
	g.requests = append(g.requests, req)
	finish := func() error {
		if g.fail {
			sh.Print("ERROR: upstream down")
			return &mongosh.NetworkError{Name: req.Name, Status: 502, Reason: "upstream down"}
		}
		if onSuccess == nil {
			return nil
		}
		var resp mongosh.Response
		switch {
		case strings.HasSuffix(req.URL, "/getCollectionNames"):
			resp = mongosh.Response{{Key: "result", Value: bson.A{"a", "b"}}}
		case strings.HasSuffix(req.URL, "/find"):
			resp = mongosh.Response{{Key: "result", Value: bson.A{bson.D{{Key: "i", Value: int32(0)}}}}}
		}
		return onSuccess(resp)
	}
	if async {
		sh.Loop.Go(func() func() error { return finish })
		return nil
	}
	return finish()
}

type session struct {
	cfg Config
	gw  *stubGateway
	out *bytes.Buffer
}

func newSession(t *testing.T, input string, interactive bool) *session {
	t.Helper()
	gw := &stubGateway{}
	out := &bytes.Buffer{}
	hist := history.NewMemStore(10)
	sh := mongosh.NewShell(mongosh.Config{
		BaseURL: "http://mws.test/mws/",
		ResID:   "res",
		Gateway: gw,
		Out:     out,
		History: hist,
	})
	rt, err := jsrt.New(sh)
	require.NoError(t, err)
	return &session{
		cfg: Config{
			In:          strings.NewReader(input),
			Out:         out,
			Shell:       sh,
			Runtime:     rt,
			History:     hist,
			Interactive: interactive,
		},
		gw:  gw,
		out: out,
	}
}

func TestRun_Transcript(t *testing.T) {
	s := newSession(t, strings.Join([]string{
		"",
		"  db.c.find()",
		"show collections",
		"var a = null; a.b",
		"x = 2; x * 3",
		"exit",
		"print('never')",
	}, "\n"), false)

	require.NoError(t, Run(t.Context(), s.cfg))
	require.Equal(t, strings.Join([]string{
		"> db.c.find()",
		`{ "i" : 0 }`,
		"> show collections",
		"a",
		"b",
		"> var a = null; a.b",
		"TypeError: Cannot read property 'b' of null",
		"> x = 2; x * 3",
		"2",
		"6",
		"> exit",
		"",
	}, "\n"), s.out.String())
}

func TestRun_Interactive(t *testing.T) {
	s := newSession(t, "1 + 1\n", true)
	require.NoError(t, Run(t.Context(), s.cfg))
	require.Equal(t, "> 2\n> \n", s.out.String())
}

func TestRun_SyntaxError(t *testing.T) {
	s := newSession(t, "db.c.find(\n", false)
	require.NoError(t, Run(t.Context(), s.cfg))
	lines := strings.Split(strings.TrimSpace(s.out.String()), "\n")
	require.Len(t, lines, 2)
	require.True(t, strings.HasPrefix(lines[1], "SyntaxError: "), lines[1])
	require.Empty(t, s.gw.requests)
}

func TestRun_NetworkErrorPrintedOnce(t *testing.T) {
	s := newSession(t, "db.c.insert({a: 1})\ndb.c.count()\n", false)
	s.gw.fail = true
	require.NoError(t, Run(t.Context(), s.cfg))
	require.Equal(t, strings.Join([]string{
		"> db.c.insert({a: 1})",
		"ERROR: upstream down",
		"> db.c.count()",
		"ERROR: upstream down",
		"",
	}, "\n"), s.out.String())
}

func TestRun_ResetNeedsConfirmation(t *testing.T) {
	s := newSession(t, "reset\nreset\n", false)
	require.NoError(t, Run(t.Context(), s.cfg))

	require.Len(t, s.gw.requests, 1)
	require.Equal(t, "reset", s.gw.requests[0].Name)
	require.Contains(t, s.out.String(), "Database reset successfully\n")

	cmds, err := s.cfg.History.CmdsWithSeq(1, 10)
	require.NoError(t, err)
	require.Equal(t, []history.Cmd{{Text: "reset", Seq: 1}, {Text: "reset", Seq: 2}}, cmds)
}

func TestRun_ResetInterrupted(t *testing.T) {
	s := newSession(t, "reset\nprint(1)\nreset\n", false)
	require.NoError(t, Run(t.Context(), s.cfg))
	require.Empty(t, s.gw.requests)
	require.NotContains(t, s.out.String(), "Database reset successfully")
}

func TestRun_Canceled(t *testing.T) {
	s := newSession(t, "print(1)\n", false)
	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	require.ErrorIs(t, Run(ctx, s.cfg), context.Canceled)
	require.Empty(t, s.out.String())
}

func TestFormatError(t *testing.T) {
	vm := goja.New()
	_, scriptErr := vm.RunString("throw new RangeError('too far')")
	_, goErr := vm.RunString("f()")
	require.Error(t, goErr)
	require.NoError(t, vm.Set("fail", func(goja.FunctionCall) goja.Value {
		panic(vm.NewGoError(&mongosh.NetworkError{Name: "find"}))
	}))
	_, wrapped := vm.RunString("fail()")
	require.Error(t, wrapped)

	tests := []struct {
		name  string
		err   error
		want  string
		print bool
	}{
		{name: "nil"},
		{name: "reported", err: &mongosh.NetworkError{Name: "find", Reason: "gone"}},
		{name: "wrapped reported", err: wrapped},
		{
			name:  "shell error",
			err:   mongosh.NewShellError(mongosh.ErrValidation, "Limit amount must be an integer."),
			want:  "ERROR: Limit amount must be an integer.",
			print: true,
		},
		{
			name:  "parse error",
			err:   &rewrite.ParseError{Message: "Unexpected end of input"},
			want:  "SyntaxError: Unexpected end of input",
			print: true,
		},
		{name: "script error", err: scriptErr, want: "RangeError: too far", print: true},
		{name: "reference error", err: goErr, want: "ReferenceError: f is not defined", print: true},
		{name: "canceled", err: context.Canceled, want: "ERROR: interrupted", print: true},
		{name: "other", err: errors.New("boom"), want: "ERROR: boom", print: true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := FormatError(tc.err)
			require.Equal(t, tc.print, ok)
			require.Equal(t, tc.want, got)
		})
	}
}
