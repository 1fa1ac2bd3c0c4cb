package commands

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"cohort-retention/pkg/cache"
	"cohort-retention/pkg/cohort"
	"cohort-retention/pkg/config"
	"cohort-retention/pkg/logger"
	"cohort-retention/pkg/models"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const ordersCSV = `order_id,user_id,created_at,status
o1,u1,2023-01-03 10:00:00,Complete
o2,u1,2023-01-17 09:30:00,Complete
o3,u2,2023-01-10 12:00:00,Complete
o4,u3,2023-01-11 08:00:00,Complete
o5,u3,2023-02-08 18:45:00,Complete
o6,u4,2023-02-07 11:00:00,Complete
o7,u5,2023-02-09 11:00:00,Cancelled
`

func writeOrders(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "orders.csv")
	require.NoError(t, os.WriteFile(path, []byte(ordersCSV), 0o644))
	return path
}

// execute runs the CLI with a config file that does not depend on the working directory.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cfgPath := filepath.Join(t.TempDir(), "retention.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("log:\n  mode: \"off\"\ncache:\n  backend: memory\n"), 0o644))

	root := NewRootCmd("test")
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(append([]string{"--config", cfgPath}, args...))
	err := root.Execute()
	return out.String(), err
}

func TestNewStore(t *testing.T) {
	ctx := context.Background()

	s, cleanup, err := newStore(ctx, config.CacheConfig{Backend: "memory", Size: 4})
	require.NoError(t, err)
	defer cleanup()
	assert.IsType(t, &cache.Memory{}, s)

	s, cleanup, err = newStore(ctx, config.CacheConfig{Backend: "none"})
	require.NoError(t, err)
	defer cleanup()
	assert.IsType(t, cache.Nop{}, s)

	_, _, err = newStore(ctx, config.CacheConfig{Backend: "memcached"})
	assert.ErrorContains(t, err, "unsupported cache backend")
}

func TestAnalysisFlagsApply(t *testing.T) {
	var af analysisFlags
	cmd := &cobra.Command{Use: "x"}
	af.bind(cmd)
	require.NoError(t, cmd.ParseFlags([]string{"-g", "week", "--bucket", "2023-03", "--keep-age-zero"}))

	base := models.Params{Granularity: models.Month, MaxAge: 12, Scope: models.Scope{Year: 2023}, DropAgeZero: true}
	p := af.apply(cmd, base)
	assert.Equal(t, models.Week, p.Granularity)
	assert.Equal(t, 12, p.MaxAge, "unset flags keep the configured value")
	assert.Equal(t, 2023, p.Scope.Year)
	assert.Equal(t, "2023-03", p.Scope.Bucket)
	assert.False(t, p.DropAgeZero)
}

func TestLoadTableNeedsSource(t *testing.T) {
	_, err := loadTable(context.Background(), config.SourceConfig{}, logger.NewNop())
	assert.ErrorContains(t, err, "no order source")
}

func TestPrintMatrix(t *testing.T) {
	var buf bytes.Buffer
	printMatrix(&buf, models.RetentionMatrix{
		Ages: []int{1, 2},
		Rows: []models.MatrixRow{
			{Label: "2023-01 · N=2", Values: []sql.NullFloat64{{Float64: 0.5, Valid: true}, {}}},
		},
	})
	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "cohort")
	assert.True(t, strings.HasPrefix(lines[1], "2023-01 · N=2"))
	assert.Contains(t, lines[1], "50.0%")
}

func TestMatrixCommand(t *testing.T) {
	out, err := execute(t, "matrix", "--csv", writeOrders(t))
	require.NoError(t, err)
	assert.Contains(t, out, "2023-01 · N=3")
	assert.Contains(t, out, "33.3%")
	assert.Contains(t, out, "2023-02 · N=1")
}

func TestMatrixCommandJSONAndExport(t *testing.T) {
	xlsx := filepath.Join(t.TempDir(), "report.xlsx")
	out, err := execute(t, "matrix", "--csv", writeOrders(t), "--json", "--out", xlsx)
	require.NoError(t, err)

	var doc struct {
		Matrix struct {
			Ages []int `json:"ages"`
			Rows []struct {
				Size   int        `json:"size"`
				Values []*float64 `json:"values"`
			} `json:"rows"`
		} `json:"matrix"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &doc))
	assert.Equal(t, []int{1}, doc.Matrix.Ages)
	require.Len(t, doc.Matrix.Rows, 2)
	assert.Equal(t, 3, doc.Matrix.Rows[0].Size)
	assert.Nil(t, doc.Matrix.Rows[1].Values[0], "february age 1 is censored")

	_, err = os.Stat(xlsx)
	assert.NoError(t, err)
}

func TestMatrixCommandErrors(t *testing.T) {
	_, err := execute(t, "matrix", "--csv", writeOrders(t), "--year", "2030")
	assert.ErrorIs(t, err, cohort.ErrEmptyScope)

	_, err = execute(t, "matrix", "--csv", writeOrders(t), "-g", "quarter")
	assert.ErrorIs(t, err, cohort.ErrInvalidParams)

	_, err = execute(t, "matrix")
	assert.ErrorContains(t, err, "no order source")
}

func TestWeekdayCommand(t *testing.T) {
	out, err := execute(t, "weekday", "--csv", writeOrders(t), "--json")
	require.NoError(t, err)

	var doc struct {
		ByEventWeekday  []json.RawMessage `json:"by_event_weekday"`
		ByCohortWeekday []json.RawMessage `json:"by_cohort_weekday"`
		WeekendSplit    []json.RawMessage `json:"weekend_split"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &doc))
	assert.Len(t, doc.ByEventWeekday, 7)
	assert.Len(t, doc.ByCohortWeekday, 7)
	assert.Len(t, doc.WeekendSplit, 2)

	out, err = execute(t, "weekday", "--csv", writeOrders(t))
	require.NoError(t, err)
	assert.Contains(t, out, "Weekend (Sat+Sun)")
}

func TestRepeatCommand(t *testing.T) {
	out, err := execute(t, "repeat", "--csv", writeOrders(t))
	require.NoError(t, err)
	assert.Contains(t, out, "Repeat purchasers in 2023")
	assert.Contains(t, out, "2023-02")
}

func TestDistributionCommand(t *testing.T) {
	out, err := execute(t, "distribution", "--csv", writeOrders(t), "--json")
	require.NoError(t, err)

	var buckets []struct {
		Purchases int `json:"purchases"`
		Users     int `json:"users"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &buckets))
	require.Len(t, buckets, 2)
	assert.Equal(t, 2, buckets[0].Users)
	assert.Equal(t, 2, buckets[1].Purchases)
	assert.Equal(t, 2, buckets[1].Users)
}

func TestDrilldownCommand(t *testing.T) {
	out, err := execute(t, "drilldown", "--csv", writeOrders(t), "--start_month", "122022", "--end_month", "022023", "--json")
	require.NoError(t, err)

	var docs []struct {
		Month   string `json:"month"`
		Skipped bool   `json:"skipped"`
		Matrix  *struct {
			Rows []json.RawMessage `json:"rows"`
		} `json:"matrix"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &docs))
	require.Len(t, docs, 3)
	assert.True(t, docs[0].Skipped)
	require.NotNil(t, docs[1].Matrix)
	assert.Len(t, docs[1].Matrix.Rows, 2)
	require.NotNil(t, docs[2].Matrix)
	assert.Len(t, docs[2].Matrix.Rows, 1)

	_, err = execute(t, "drilldown", "--csv", writeOrders(t))
	assert.ErrorContains(t, err, "required flag")
}
