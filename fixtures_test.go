package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// powerHeader – заголовок SRUMUTIL: время во 2-й колонке, счетчики с 12-й
var powerHeader = []string{
	"AppId", "UserId", "TimeStamp",
	"c3", "c4", "c5", "c6", "c7", "c8", "c9", "c10", "c11",
	"CPU Energy", "Display Energy",
}

type powerRow struct {
	app    string
	ts     int64
	values []int64
}

func batteryReportHTML(percent, capacity int) string {
	return fmt.Sprintf(`<html><body>
<h1>Battery report</h1>
<td>Report generated</td><td>2024-01-01 10:00:00</td>
<td>Design capacity</td><td>60,000 mWh</td>
<span class="percent">%d</span> %%
<td class="mw">%s mWh</td>
</body></html>
`, percent, thousands(capacity))
}

func thousands(v int) string {
	s := fmt.Sprint(v)
	if len(s) <= 3 {
		return s
	}
	return s[:len(s)-3] + "," + s[len(s)-3:]
}

func writeBatteryReport(t *testing.T, dir string, ts int64, percent, capacity int) string {
	t.Helper()
	path := filepath.Join(dir, fmt.Sprintf("batteryreport%d.html", ts))
	require.NoError(t, os.WriteFile(path, []byte(batteryReportHTML(percent, capacity)), 0644))
	return path
}

func srumTime(ts int64) string {
	return time.Unix(ts, 0).In(reportLocation).Format(reportTimeLayout) + ".0000"
}

func powerCSV(rows []powerRow) string {
	var b strings.Builder
	b.WriteString(strings.Join(powerHeader, ","))
	b.WriteString("\n")
	for _, r := range rows {
		fields := []string{r.app, "user", srumTime(r.ts), "0", "0", "0", "0", "0", "0", "0", "0", "0"}
		for _, v := range r.values {
			fields = append(fields, fmt.Sprint(v))
		}
		b.WriteString(strings.Join(fields, ","))
		b.WriteString("\n")
	}
	return b.String()
}

func writePowerReport(t *testing.T, dir, name string, rows []powerRow) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(powerCSV(rows)), 0644))
	return path
}

// writePhase пишет n отчетов о батарее с шагом в минуту
func writePhase(t *testing.T, dir string, t0 int64, n int, percent, capacity func(i int) int) {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0755))
	for i := 0; i < n; i++ {
		writeBatteryReport(t, dir, t0+int64(i)*cadenceSeconds, percent(i), capacity(i))
	}
}
