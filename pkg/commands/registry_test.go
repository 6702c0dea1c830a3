package commands

import (
	"context"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/agencyhq/warroom/pkg/logging"
)

func echo(reply string) Handler {
	return func(context.Context, Invocation) (string, error) { return reply, nil }
}

func TestDispatch(t *testing.T) {
	r := NewRegistry("owner-1", logging.ConsoleLogger(logrus.PanicLevel))
	r.Register("ping", false, echo("pong"))

	reply, err := r.Dispatch(context.Background(), "ping", Invocation{UserID: "anyone"})
	require.NoError(t, err)
	require.Equal(t, "pong", reply)
}

func TestDispatch_UnknownCommand(t *testing.T) {
	r := NewRegistry("owner-1", logging.ConsoleLogger(logrus.PanicLevel))
	_, err := r.Dispatch(context.Background(), "nope", Invocation{})
	require.ErrorIs(t, err, ErrUnknownCommand)
}

func TestDispatch_AdminGate(t *testing.T) {
	r := NewRegistry("owner-1", logging.ConsoleLogger(logrus.PanicLevel))
	r.Register("wipe-structure", true, echo("done"))

	_, err := r.Dispatch(context.Background(), "wipe-structure", Invocation{UserID: "intruder"})
	require.ErrorIs(t, err, ErrAccessDenied)

	reply, err := r.Dispatch(context.Background(), "wipe-structure", Invocation{UserID: "owner-1"})
	require.NoError(t, err)
	require.Equal(t, "done", reply)
}

func TestNames(t *testing.T) {
	r := NewRegistry("owner-1", logging.ConsoleLogger(logrus.PanicLevel))
	r.Register("b", false, echo(""))
	r.Register("a", false, echo(""))
	require.Equal(t, []string{"a", "b"}, r.Names())
}

func TestInvocation_Arg(t *testing.T) {
	inv := Invocation{Args: map[string]string{"amount": "50", "empty": ""}}
	require.Equal(t, "50", inv.Arg("amount", "100"))
	require.Equal(t, "100", inv.Arg("missing", "100"))
	require.Equal(t, "100", inv.Arg("empty", "100"))
}
