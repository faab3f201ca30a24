package cmd

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowsim/flowsim/sim/trace"
)

func TestValidateModel_Golden(t *testing.T) {
	// GIVEN the line model
	var buf bytes.Buffer

	// WHEN it is validated
	require.NoError(t, validateModel(&buf, "testdata/line.yaml"))

	// THEN the topology listing matches the golden file
	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "validate_line", buf.Bytes())
}

func TestValidateModel_ReportsEveryProblem(t *testing.T) {
	var buf bytes.Buffer
	err := validateModel(&buf, "testdata/broken.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "station: processor has no outgoing edge")
	assert.Contains(t, err.Error(), "sink: drain has no incoming edge")
	assert.Empty(t, buf.String())
}

func TestRunModel_Report(t *testing.T) {
	// GIVEN the line model run to its 25-unit horizon
	var buf bytes.Buffer
	require.NoError(t, runModel(&buf, runOptions{ModelPath: "testdata/line.yaml"}))
	out := buf.String()

	// THEN the report carries node counts and edge levels
	assert.Contains(t, out, `model "line" seed=42 t=25`)
	assert.Contains(t, out, "absorbed=12")
	assert.Contains(t, out, "processed=12 processing=1 awaiting_output=0")
	assert.Contains(t, out, "created=16")
	assert.Regexp(t, `in\s+source\s+station\s+3\s+3\s+3\s+16\s+13`, out)
	assert.Regexp(t, `out\s+station\s+sink\s+3\s+0\s+1\s+12\s+12`, out)
}

func TestRunModel_Overrides(t *testing.T) {
	var buf bytes.Buffer
	h := 10.0
	s := int64(3)
	require.NoError(t, runModel(&buf, runOptions{ModelPath: "testdata/line.yaml", Horizon: &h, Seed: &s}))
	assert.Contains(t, buf.String(), `model "line" seed=3 t=10`)
	assert.Contains(t, buf.String(), "absorbed=4")

	zero := 0.0
	assert.Error(t, runModel(&buf, runOptions{ModelPath: "testdata/line.yaml", Horizon: &zero}))
}

func TestRunModel_TraceDB(t *testing.T) {
	// GIVEN a trace database path
	path := filepath.Join(t.TempDir(), "run.sqlite3")
	var buf bytes.Buffer

	// WHEN the model runs with tracing
	require.NoError(t, runModel(&buf, runOptions{ModelPath: "testdata/line.yaml", TraceDB: path}))

	// THEN the run ID is printed and its episodes can be read back
	var runID string
	_, err := fmt.Sscanf(buf.String(), "trace run %s", &runID)
	require.NoError(t, err)
	ft, err := trace.LoadFlowTrace(path, runID)
	require.NoError(t, err)
	assert.Len(t, ft.Episodes, 12)
	assert.Equal(t, 16, trace.Summarize(ft).Created)
}

func TestRootCommand_Validate(t *testing.T) {
	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetArgs([]string{"validate", "--model", "testdata/line.yaml", "--env-file", filepath.Join(t.TempDir(), "missing.env")})
	t.Cleanup(func() { rootCmd.SetArgs(nil); rootCmd.SetOut(nil) })

	err := rootCmd.Execute()

	// THEN an explicitly named env file must exist
	require.Error(t, err)

	// WHEN the env file exists THEN its log level is applied
	env := filepath.Join(t.TempDir(), "flowsim.env")
	require.NoError(t, os.WriteFile(env, []byte(envLogLevel+"=error\n"), 0o644))
	t.Cleanup(func() { os.Unsetenv(envLogLevel) })
	rootCmd.SetArgs([]string{"validate", "--model", "testdata/line.yaml", "--env-file", env})
	require.NoError(t, rootCmd.Execute())
	assert.Contains(t, buf.String(), "ok")
}
