package configuration

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

func TestDatabaseConnectionString(t *testing.T) {
	d := DatabaseOptions{
		Name:     "warroom",
		Host:     "db.internal",
		Port:     "5433",
		User:     "app",
		Password: "secret",
	}
	require.Equal(t,
		"host=db.internal port=5433 user=app dbname=warroom password=secret sslmode=disable",
		d.ConnectionString(),
	)
}

func TestLogrusLogLevel(t *testing.T) {
	cases := map[string]logrus.Level{
		"silent": logrus.PanicLevel,
		"error":  logrus.ErrorLevel,
		"warn":   logrus.WarnLevel,
		"info":   logrus.InfoLevel,
		"debug":  logrus.DebugLevel,
		"bogus":  logrus.InfoLevel,
		"":       logrus.InfoLevel,
	}
	for in, want := range cases {
		c := &Configuration{LogLevel: in}
		require.Equal(t, want, c.LogrusLogLevel(), in)
	}
}
