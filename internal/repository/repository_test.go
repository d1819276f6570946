package repository

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"EconDash/internal/domain/models"
	domrepo "EconDash/internal/domain/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeCSV(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "series.csv")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestCSVSourceLoadsAndRenames(t *testing.T) {
	path := writeCSV(t, "DATE,FPCPITOTLZGUSA\n1961-01-01,1.07\n1960-01-01,1.46\n1962-01-01,.\n1963-01-01,1.24\n")

	src := NewCSVSource("Inflation Rate", path, "DATE", "FPCPITOTLZGUSA")
	ts, err := src.Load(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "Inflation Rate", ts.Name)
	assert.Equal(t, "Inflation Rate", src.Name())
	assert.Equal(t, []float64{1.46, 1.07, 1.24}, ts.Values())
	assert.Equal(t, time.Date(1960, 1, 1, 0, 0, 0, 0, time.UTC), ts.First().Date)
}

func TestCSVSourceDefaultsToFirstValueColumn(t *testing.T) {
	path := writeCSV(t, "DATE,GDP,OTHER\n2020-01-01,100,1\n2020-04-01,102,2\n")

	ts, err := NewCSVSource("GDP", path, "DATE", "").Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []float64{100, 102}, ts.Values())
}

func TestCSVSourceErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"duplicate date", "DATE,V\n2020-01-01,1\n2020-01-01,2\n"},
		{"bad date", "DATE,V\nnot-a-date,1\n"},
		{"bad value", "DATE,V\n2020-01-01,abc\n"},
		{"repeated column", "DATE,V,V\n2020-01-01,1,2\n2020-04-01,3,4\n"},
		{"repeated column case", "DATE,V,v\n2020-01-01,1,2\n"},
		{"infinite value", "DATE,V\n2020-01-01,inf\n"},
		{"nan literal", "DATE,V\n2020-01-01,NaN\n2020-02-01,1\n"},
		{"missing date column", "WHEN,V\n2020-01-01,1\n"},
		{"no observations", "DATE,V\n2020-01-01,.\n"},
		{"empty", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewCSVSource("x", writeCSV(t, tt.body), "DATE", "V").Load(context.Background())
			assert.ErrorIs(t, err, domrepo.ErrSourceUnavailable)
		})
	}

	_, err := NewCSVSource("x", filepath.Join(t.TempDir(), "missing.csv"), "DATE", "V").Load(context.Background())
	assert.ErrorIs(t, err, domrepo.ErrSourceUnavailable)
}

func TestReadTable(t *testing.T) {
	tbl, err := ReadTable(strings.NewReader("\ufeffdate,A,B\n2020-02-01,1,\n2020-01-01,2,3\n"), "DATE")
	require.NoError(t, err)

	assert.Equal(t, []string{"A", "B"}, tbl.Columns)
	assert.Equal(t, []float64{2, 1}, tbl.Values["A"])
	assert.Equal(t, 3.0, tbl.Values["B"][0])
	assert.True(t, math.IsNaN(tbl.Values["B"][1]))
}

func TestReadTableRejectsRepeatedHeader(t *testing.T) {
	_, err := ReadTable(strings.NewReader("DATE,GDP,GDP\n2020-01-01,1,2\n2020-04-01,3,4\n"), "DATE")
	assert.ErrorContains(t, err, "duplicate column")

	_, err = ReadTable(strings.NewReader("DATE,date,V\n2020-01-01,2020-01-01,1\n"), "DATE")
	assert.Error(t, err)
}

func TestClickHouseTableNameValidation(t *testing.T) {
	_, err := NewClickHouseSource(nil, "GDP", "econ.indicators", "")
	assert.NoError(t, err)

	_, err = NewClickHouseSource(nil, "GDP", "econ.indicators; DROP TABLE x", "")
	assert.Error(t, err)

	_, err = NewClickHouseIndicatorStore(nil, "1bad")
	assert.Error(t, err)
}

func TestInsertStatement(t *testing.T) {
	pts := []models.Point{
		{Date: time.Date(2020, 1, 31, 0, 0, 0, 0, time.UTC), Value: 1},
		{Date: time.Date(2020, 2, 29, 0, 0, 0, 0, time.UTC), Value: 2},
	}
	q, args := insertStatement("econ.indicators", "GDP", pts)

	assert.Equal(t, "INSERT INTO econ.indicators (series, date, value) VALUES (?, ?, ?),(?, ?, ?)", q)
	require.Len(t, args, 6)
	assert.Equal(t, "GDP", args[3])
	assert.Equal(t, 2.0, args[5])
}
