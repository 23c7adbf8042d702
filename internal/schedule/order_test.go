package schedule

import (
	"bytes"
	"fmt"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/labseq/internal/value"
)

func twoAxisTable() Table {
	return Product([]Axis{
		{Name: "A", Values: value.MustList(1, 2)},
		{Name: "B", Values: value.MustList(10, 20)},
	})
}

func task(name string, stages map[Stage]Rule) Task {
	return Task{Name: name, Stages: stages}
}

// render gives one line per operation.
func render(order RunOrder) string {
	var b strings.Builder
	for _, op := range order {
		fmt.Fprintln(&b, op)
	}
	return b.String()
}

func labels(order RunOrder) []string {
	out := make([]string, len(order))
	for i, op := range order {
		switch o := op.(type) {
		case *SetCondition:
			out[i] = fmt.Sprintf("%s=%v", o.Name, o.Value)
		default:
			out[i] = op.Label()
		}
	}
	return out
}

func TestProductOrdersFirstAxisSlowest(t *testing.T) {
	table := twoAxisTable()

	require.Len(t, table.Rows, 4)
	want := []string{"{A=1, B=10}", "{A=1, B=20}", "{A=2, B=10}", "{A=2, B=20}"}
	for i, row := range table.Rows {
		assert.Equal(t, want[i], row.String())
	}
}

func TestProductWithoutAxesHasOneEmptyRow(t *testing.T) {
	table := Product(nil)
	require.Len(t, table.Rows, 1)
	assert.Empty(t, table.Rows[0])

	order := Build(table, []Task{task("m", map[Stage]Rule{Main: {}})})
	require.Len(t, order, 1)
	assert.Equal(t, "RUN m [MAIN] {}", fmt.Sprint(order[0]))
}

func TestProductWithEmptyAxisHasNoRows(t *testing.T) {
	table := Product([]Axis{{Name: "A", Values: value.MustList(1)}, {Name: "B"}})
	assert.Empty(t, table.Rows)
}

func TestBuildFullSequence(t *testing.T) {
	tasks := []Task{
		task("init", map[Stage]Rule{Startup: {}}),
		task("ramp", map[Stage]Rule{Setup: {"A": OnFirstTime()}}),
		task("soak", map[Stage]Rule{Setup: {"A": OnEvery()}}),
		task("main", map[Stage]Rule{Main: {}}),
		task("last", map[Stage]Rule{After: {"A": OnLastTime()}}),
		task("b10", map[Stage]Rule{After: {"B": OnValue(10)}}),
		task("off", map[Stage]Rule{Teardown: {}}),
		task("safe", map[Stage]Rule{Error: {}}),
	}

	order := Build(twoAxisTable(), tasks)

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "full_sequence", []byte(render(order)))
}

func TestBuildConditionChangesOnlyWhenValueChanges(t *testing.T) {
	order := Build(twoAxisTable(), []Task{task("m", map[Stage]Rule{Main: {}})})

	assert.Equal(t, []string{
		"A=1", "B=10", "m",
		"B=20", "m",
		"A=2", "B=10", "m",
		"B=20", "m",
	}, labels(order))
}

func TestBuildStartupBeforeConditionsTeardownLast(t *testing.T) {
	tasks := []Task{
		task("after", map[Stage]Rule{After: {}}),
		task("up", map[Stage]Rule{Startup: {}}),
		task("down", map[Stage]Rule{Teardown: {}}),
	}
	order := Build(twoAxisTable(), tasks)

	require.NotEmpty(t, order)
	assert.Equal(t, "up", order[0].Label())
	assert.Equal(t, "down", order[len(order)-1].Label())
	assert.Equal(t, "after", order[len(order)-2].Label())

	firstSet := -1
	for i, op := range order {
		if _, ok := op.(*SetCondition); ok {
			firstSet = i
			break
		}
	}
	assert.Equal(t, 1, firstSet)
}

func TestBuildSetupTriggers(t *testing.T) {
	tests := []struct {
		name    string
		trigger Trigger
		want    []string // conditions of each emitted run
	}{
		{"every change", OnEvery(), []string{"{A=1}", "{A=2}"}},
		{"exact", OnValue(2), []string{"{A=2}"}},
		{"exact float matches int", OnValue(2.0), []string{"{A=2}"}},
		{"first time", OnFirstTime(), []string{"{A=1}", "{A=2}"}},
		{"last time never on a change of the slow axis", OnLastTime(), nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			order := Build(twoAxisTable(), []Task{task("s", map[Stage]Rule{Setup: {"A": tt.trigger}})})
			var got []string
			for _, m := range order.Measurements() {
				got = append(got, m.Conditions.String())
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBuildSetupOnFastAxisCarriesAccumulatedConditions(t *testing.T) {
	order := Build(twoAxisTable(), []Task{task("s", map[Stage]Rule{Setup: {"B": OnFirstTime()}})})

	var got []string
	for _, m := range order.Measurements() {
		got = append(got, m.Conditions.String())
	}
	// B=10 first appears at row 0, B=20 at row 1
	assert.Equal(t, []string{"{A=1, B=10}", "{A=1, B=20}"}, got)
}

func TestBuildFirstAndLastTimeOnRepeatedValues(t *testing.T) {
	// A repeats across B; FIRST_TIME fires where A first takes a value,
	// LAST_TIME where A last holds it.
	order := Build(twoAxisTable(), []Task{
		task("first", map[Stage]Rule{After: {"A": OnFirstTime()}}),
		task("last", map[Stage]Rule{After: {"A": OnLastTime()}}),
	})

	var got []string
	for _, m := range order.Measurements() {
		got = append(got, m.Name+" "+m.Conditions.String())
	}
	assert.Equal(t, []string{
		"first {A=1, B=10}",
		"last {A=1, B=20}",
		"first {A=2, B=10}",
		"last {A=2, B=20}",
	}, got)
}

func TestBuildAfterMatchesAnyCondition(t *testing.T) {
	order := Build(twoAxisTable(), []Task{
		task("x", map[Stage]Rule{After: {"A": OnValue(2), "B": OnValue(10)}}),
	})

	var got []string
	for _, m := range order.Measurements() {
		got = append(got, m.Conditions.String())
	}
	assert.Equal(t, []string{"{A=1, B=10}", "{A=2, B=10}", "{A=2, B=20}"}, got)
}

func TestBuildTieBreakIsDeclarationOrder(t *testing.T) {
	order := Build(Product([]Axis{{Name: "A", Values: value.MustList(1)}}), []Task{
		task("z", map[Stage]Rule{Main: {}}),
		task("a", map[Stage]Rule{Main: {}}),
		task("m", map[Stage]Rule{Main: {}}),
	})
	assert.Equal(t, []string{"A=1", "z", "a", "m"}, labels(order))
}

func TestBuildErrorStageNeverScheduled(t *testing.T) {
	order := Build(twoAxisTable(), []Task{task("safe", map[Stage]Rule{Error: {}})})
	assert.Empty(t, order.Measurements())
}

func TestBuildIsDeterministic(t *testing.T) {
	tasks := []Task{
		task("m", map[Stage]Rule{Main: {}, After: {"A": OnLastTime(), "B": OnValue(20)}}),
		task("s", map[Stage]Rule{Setup: {"B": OnEvery()}}),
	}
	first := render(Build(twoAxisTable(), tasks))
	for range 10 {
		assert.Equal(t, first, render(Build(twoAxisTable(), tasks)))
	}
}

func TestFromRows(t *testing.T) {
	table, err := FromRows([]string{"T", "RH"}, []map[string]any{
		{"RH": 50, "T": 25},
		{"T": 40},
	})
	require.NoError(t, err)
	require.Len(t, table.Rows, 2)
	assert.Equal(t, "{T=25, RH=50}", table.Rows[0].String())
	assert.Equal(t, "{T=40}", table.Rows[1].String())

	// a row without RH never sets it
	order := Build(table, []Task{task("m", map[Stage]Rule{Main: {}})})
	assert.Equal(t, []string{"T=25", "RH=50", "m", "T=40", "m"}, labels(order))
}

func TestFromRowsErrors(t *testing.T) {
	_, err := FromRows([]string{"T"}, []map[string]any{{"T": 25}, {"X": 1}})
	var re *RowsError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, 1, re.Row)

	_, err = FromRows([]string{"T"}, []map[string]any{{"T": []int{1, 2}}})
	require.ErrorAs(t, err, &re)
	assert.Equal(t, 0, re.Row)
}

func TestParseTrigger(t *testing.T) {
	tests := []struct {
		in   any
		want Trigger
	}{
		{nil, OnEvery()},
		{"every", OnEvery()},
		{"FIRST_TIME", OnFirstTime()},
		{"last_time", OnLastTime()},
		{25, OnValue(25)},
		{"hot", OnValue("hot")},
	}
	for _, tt := range tests {
		got, err := ParseTrigger(tt.in)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "input %v", tt.in)
	}

	_, err := ParseTrigger([]int{1})
	assert.Error(t, err)
}

func TestParseStage(t *testing.T) {
	for _, s := range Stages {
		got, err := ParseStage(strings.ToLower(s.String()))
		require.NoError(t, err)
		assert.Equal(t, s, got)
	}
	_, err := ParseStage("warmup")
	assert.Error(t, err)
}

func TestWriteText(t *testing.T) {
	order := Build(Product([]Axis{{Name: "A", Values: value.MustList(1)}}), []Task{
		task("m", map[Stage]Rule{Main: {}}),
	})
	var buf bytes.Buffer
	require.NoError(t, Tabulate(order, []string{"A"}).WriteText(&buf))

	want := "OPERATION    LABEL  STAGE  A\n" +
		"CONDITION    A      -      1\n" +
		"MEASUREMENT  m      MAIN   1\n"
	assert.Equal(t, want, buf.String())
}
