//go:build integration

package mysql

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekaya-inc/ekaya-admingen/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-admingen/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-admingen/pkg/models"
	"github.com/ekaya-inc/ekaya-admingen/pkg/testhelpers"
)

func testParams(t *testing.T) models.ConnectionParams {
	t.Helper()
	db := testhelpers.GetMySQLDB(t)
	return models.ConnectionParams{
		Type:     models.DatasourceMySQL,
		Host:     db.Host,
		Port:     db.Port,
		Database: db.Database,
		Username: db.User,
		Password: db.Password,
	}
}

func openTestConn(t *testing.T) datasource.PoolConnector {
	t.Helper()
	conn, err := Dialect{}.Open(context.Background(), testParams(t), datasource.PoolOptions{MaxConns: 2})
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func TestDialect_Integration_Probe(t *testing.T) {
	conn := openTestConn(t)

	version, err := Dialect{}.Probe(context.Background(), conn)
	require.NoError(t, err)
	assert.NotEmpty(t, version)
}

func TestDialect_Integration_ListTables(t *testing.T) {
	conn := openTestConn(t)
	ctx := context.Background()

	page, err := Dialect{}.ListTables(ctx, conn, models.TableQuery{Filter: "sys_", Page: 1, Limit: 1})
	require.NoError(t, err)
	assert.Equal(t, int64(2), page.Total, "total counts every match, not the page")
	require.Len(t, page.Items, 1)

	page, err = Dialect{}.ListTables(ctx, conn, models.TableQuery{Filter: "user", Page: 1, Limit: 10})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "sys_user", page.Items[0].Name)
	assert.Equal(t, "system users", page.Items[0].Comment)
}

func TestDialect_Integration_TableDetail(t *testing.T) {
	conn := openTestConn(t)

	detail, err := Dialect{}.TableDetail(context.Background(), conn, "sys_user")
	require.NoError(t, err)

	assert.Equal(t, "id", detail.PrimaryKey)
	require.Len(t, detail.Columns, 5)
	assert.True(t, detail.Columns[0].IsAutoIncrement)

	username := detail.Columns[1]
	assert.Equal(t, "varchar", username.DBType)
	require.NotNil(t, username.Length)
	assert.Equal(t, int64(50), *username.Length)
	assert.Equal(t, "login name", username.Comment)

	var unique *models.IndexInfo
	for i := range detail.Indexes {
		if detail.Indexes[i].Name == "idx_sys_user_username" {
			unique = &detail.Indexes[i]
		}
	}
	require.NotNil(t, unique)
	assert.True(t, unique.IsUnique)
	assert.Equal(t, []string{"username"}, unique.Columns)
}

func TestDialect_Integration_TableDetail_NotFound(t *testing.T) {
	conn := openTestConn(t)

	_, err := Dialect{}.TableDetail(context.Background(), conn, "no_such_table")
	require.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestDialect_Integration_BadPassword(t *testing.T) {
	params := testParams(t)
	params.Password = "wrong"

	_, err := Dialect{}.Open(context.Background(), params, datasource.PoolOptions{MaxConns: 1})
	require.ErrorIs(t, err, apperrors.ErrConnection)
}
