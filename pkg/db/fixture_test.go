package db

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mfreeman451/nodeverify/pkg/logger"
	"github.com/mfreeman451/nodeverify/pkg/models"
)

// sourceTablesSQL mimics the production tables the views read from.
const sourceTablesSQL = `
CREATE TABLE Instalaciones (
  IdInstalacion INTEGER PRIMARY KEY,
  Nombre TEXT
);
CREATE TABLE Nodos (
  IdNodo INTEGER PRIMARY KEY,
  NumeroNodo INTEGER NOT NULL,
  VersionSoftware TEXT,
  FechaServidorUltimaEmision TIMESTAMP,
  IdInstalacion INTEGER
);
CREATE TABLE Controladores (
  IdControlador INTEGER PRIMARY KEY AUTOINCREMENT,
  IdNodo INTEGER NOT NULL
);
CREATE TABLE Senales (
  IdSenal INTEGER PRIMARY KEY AUTOINCREMENT,
  IdControlador INTEGER NOT NULL,
  FechaActual TIMESTAMP,
  FechaHistorico TIMESTAMP
);
`

type fixture struct {
	t   *testing.T
	ctx context.Context
	db  *DB
	now time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	ctx := context.Background()

	db, err := Open(ctx, Options{
		Driver: DialectSQLite,
		DSN:    filepath.Join(t.TempDir(), "verify.db") + "?_busy_timeout=5000",
	}, logger.NewNop())
	require.NoError(t, err)

	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, db.ExecScript(ctx, sourceTablesSQL))
	require.NoError(t, db.EnsureStructures(ctx))

	return &fixture{
		t:   t,
		ctx: ctx,
		db:  db,
		now: time.Now().UTC().Truncate(time.Second),
	}
}

func (f *fixture) ago(d time.Duration) time.Time {
	return f.now.Add(-d)
}

func (f *fixture) installation(id int64, name string) {
	f.t.Helper()

	_, err := f.db.Exec(f.ctx, "INSERT INTO Instalaciones (IdInstalacion, Nombre) VALUES (?, ?)", id, name)
	require.NoError(f.t, err)
}

// node inserts a node whose IdNodo equals its NumeroNodo.
func (f *fixture) node(numero int64, version string, installation interface{}, fsue time.Time) {
	f.t.Helper()

	_, err := f.db.Exec(f.ctx, `
		INSERT INTO Nodos (IdNodo, NumeroNodo, VersionSoftware, FechaServidorUltimaEmision, IdInstalacion)
		VALUES (?, ?, ?, ?, ?)`, numero, numero, version, fsue, installation)
	require.NoError(f.t, err)
}

func (f *fixture) setFSUE(numero int64, fsue time.Time) {
	f.t.Helper()

	_, err := f.db.Exec(f.ctx, "UPDATE Nodos SET FechaServidorUltimaEmision = ? WHERE NumeroNodo = ?", fsue, numero)
	require.NoError(f.t, err)
}

// signal adds a controller under the node and one signal under it.
func (f *fixture) signal(numero int64, ufa, ufh time.Time) {
	f.t.Helper()

	res, err := f.db.Exec(f.ctx, "INSERT INTO Controladores (IdNodo) VALUES (?)", numero)
	require.NoError(f.t, err)

	ctlID, err := res.LastInsertId()
	require.NoError(f.t, err)

	_, err = f.db.Exec(f.ctx,
		"INSERT INTO Senales (IdControlador, FechaActual, FechaHistorico) VALUES (?, ?, ?)", ctlID, ufa, ufh)
	require.NoError(f.t, err)
}

func (f *fixture) capture() *models.CaptureResult {
	f.t.Helper()

	res, err := f.db.CaptureBaseline(f.ctx, DefaultRecencyWindow)
	require.NoError(f.t, err)

	return res
}

func (f *fixture) all() []models.CompareRow {
	f.t.Helper()

	rows, err := f.db.FetchPage(f.ctx, "", 0, 10_000)
	require.NoError(f.t, err)

	return rows
}

func (f *fixture) row(numero int64) models.CompareRow {
	f.t.Helper()

	for _, r := range f.all() {
		if r.NumeroNodo == numero {
			return r
		}
	}

	f.t.Fatalf("node %d not in compare set", numero)

	return models.CompareRow{}
}

func nodeNumbers(rows []models.CompareRow) []int64 {
	out := make([]int64, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.NumeroNodo)
	}

	return out
}
