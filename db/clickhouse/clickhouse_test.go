package clickhouse

import (
	"errors"
	"testing"

	"github.com/ClickHouse/clickhouse-go/v2/lib/proto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"hermannm.dev/pivot/db"
	"hermannm.dev/wrap"
)

func TestBuildFetchQuery(t *testing.T) {
	query, err := buildFetchQuery("timeEntries", 50000)
	require.NoError(t, err)
	assert.Equal(t, "SELECT * FROM `timeEntries` LIMIT 50000", query)

	query, err = buildFetchQuery("tasks", 0)
	require.NoError(t, err)
	assert.Equal(t, "SELECT * FROM `tasks`", query)

	_, err = buildFetchQuery("tasks` UNION SELECT", 10)
	assert.Error(t, err)

	_, err = buildFetchQuery("", 10)
	assert.Error(t, err)
}

func TestQueryBuilder(t *testing.T) {
	var query QueryBuilder
	query.WriteString("SELECT ")
	query.WriteIdentifiers(savedReportSelectedColumns...)
	query.WriteString(" FROM ")
	query.WriteIdentifier(savedReportsTable)
	query.WriteWhereEquals(savedReportIDColumn)

	assert.Equal(
		t,
		"SELECT `id`, `saved_at`, `report` FROM `saved_reports` WHERE (`id` = ?)",
		query.String(),
	)
}

func TestJoinQueryDialect(t *testing.T) {
	join := db.JoinQuery{
		BaseTable: "tickets",
		Joins: []db.Join{
			{
				Table:       "projects",
				Kind:        db.JoinKindLeft,
				LeftTable:   "tickets",
				LeftColumn:  "project_id",
				RightColumn: "id",
			},
		},
		Columns: []db.ColumnRef{
			{Table: "projects", Column: "name"},
			{Table: "tickets", Column: "priority"},
		},
	}

	query, err := join.WithMaxRecords(1000).Build(Dialect{})
	require.NoError(t, err)
	assert.Equal(
		t,
		"SELECT `projects`.`name` AS `projects.name`, `tickets`.`priority` AS `tickets.priority` "+
			"FROM `tickets` LEFT JOIN `projects` ON `tickets`.`project_id` = `projects`.`id` "+
			"LIMIT 1000",
		query,
	)
}

func TestRecordValue(t *testing.T) {
	text := "open"
	textPointer := &text
	var nilText *string

	assert.Equal(t, "open", recordValue(&text))
	assert.Equal(t, "open", recordValue(&textPointer))
	assert.Nil(t, recordValue(&nilText))

	number := 4.5
	assert.Equal(t, 4.5, recordValue(&number))
}

func TestIsUnknownTableError(t *testing.T) {
	unknownTable := &proto.Exception{Code: clickhouseUnknownTableErrorCode, Message: "unknown table"}

	assert.True(t, isUnknownTableError(unknownTable))
	assert.True(t, isUnknownTableError(wrap.Error(unknownTable, "query failed")))
	assert.False(t, isUnknownTableError(&proto.Exception{Code: 62}))
	assert.False(t, isUnknownTableError(errors.New("connection refused")))
}
