package roster

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRead_HeaderColumn(t *testing.T) {
	in := "owner,dag_id\nteam-a,etl_daily\n# paused\nteam-b, etl_hourly\nteam-c,etl_daily\nteam-d,\n"

	ids, err := Read(strings.NewReader(in))

	require.NoError(t, err)
	assert.Equal(t, []string{"etl_daily", "etl_hourly"}, ids)
}

func TestRead_NoHeader(t *testing.T) {
	ids, err := Read(strings.NewReader("etl_daily\nreport_weekly,extra\n\n"))

	require.NoError(t, err)
	assert.Equal(t, []string{"etl_daily", "report_weekly"}, ids)
}

func TestRead_Malformed(t *testing.T) {
	_, err := Read(strings.NewReader("dag_id\n\"unterminated\n"))

	assert.Error(t, err)
}

func TestReadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dags.csv")
	require.NoError(t, os.WriteFile(path, []byte("\ufeffdag_id\netl_daily\n"), 0o600))

	ids, err := ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"etl_daily"}, ids)

	_, err = ReadFile(filepath.Join(t.TempDir(), "missing.csv"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
