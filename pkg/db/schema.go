package db

import (
	"context"
	"fmt"
	"strings"
)

// objectNames are the fully qualified names of every table and view the
// verifier reads or owns.
type objectNames struct {
	baseline string
	current  string
	compare  string

	nodes         string
	controllers   string
	signals       string
	installations string
}

func newObjectNames(schema string) (objectNames, error) {
	q, err := qualifier(schema)
	if err != nil {
		return objectNames{}, err
	}

	return objectNames{
		baseline:      q + "NodoBaseline",
		current:       q + "NodoCurrent",
		compare:       q + "NodoCompare",
		nodes:         q + "Nodos",
		controllers:   q + "Controladores",
		signals:       q + "Senales",
		installations: q + "Instalaciones",
	}, nil
}

// latestPerNode is the max-aggregation join shared by the current-state view and
// baseline capture. Multiple controllers/signals per node collapse to the latest
// value of each field.
const latestPerNodeFrom = `
FROM {nodes} n
LEFT JOIN {controllers} c ON c.IdNodo = n.IdNodo
LEFT JOIN {signals} s ON s.IdControlador = c.IdControlador
LEFT JOIN {installations} i ON i.IdInstalacion = n.IdInstalacion
GROUP BY n.NumeroNodo`

const structuresTemplate = `
CREATE TABLE IF NOT EXISTS {baseline} (
  NumeroNodo INT PRIMARY KEY,
  FSUE_old {ts} NULL,
  UFA_old  {ts} NULL,
  UFH_old  {ts} NULL,
  CapturedAt {ts} NOT NULL DEFAULT CURRENT_TIMESTAMP
);

DROP VIEW IF EXISTS {compare};
DROP VIEW IF EXISTS {current};

CREATE VIEW {current} AS
SELECT
  n.NumeroNodo                      AS NumeroNodo,
  MAX(n.VersionSoftware)            AS VersionSoftware,
  MAX(i.Nombre)                     AS InstalacionNombre,
  MAX(n.FechaServidorUltimaEmision) AS FSUE_new,
  MAX(s.FechaActual)                AS UFA_new,
  MAX(s.FechaHistorico)             AS UFH_new
{latest};

CREATE VIEW {compare} AS
SELECT
  b.NumeroNodo                                               AS NumeroNodo,
  c.VersionSoftware                                          AS VersionSoftware,
  c.InstalacionNombre                                        AS InstalacionNombre,
  b.FSUE_old AS FSUE_old, c.FSUE_new AS FSUE_new,
  CASE WHEN c.FSUE_new > b.FSUE_old THEN 1 ELSE 0 END       AS OK_FSUE,
  b.UFA_old AS UFA_old, c.UFA_new AS UFA_new,
  CASE WHEN c.UFA_new > b.UFA_old THEN 1 ELSE 0 END         AS OK_UFA,
  b.UFH_old AS UFH_old, c.UFH_new AS UFH_new,
  CASE WHEN c.UFH_new > b.UFH_old THEN 1 ELSE 0 END         AS OK_UFH
FROM {baseline} b
LEFT JOIN {current} c ON c.NumeroNodo = b.NumeroNodo;
`

func (n objectNames) expand(tmpl string, extra ...string) string {
	pairs := []string{
		"{latest}", latestPerNodeFrom,
		"{baseline}", n.baseline,
		"{current}", n.current,
		"{compare}", n.compare,
		"{nodes}", n.nodes,
		"{controllers}", n.controllers,
		"{signals}", n.signals,
		"{installations}", n.installations,
	}

	pairs = append(pairs, extra...)

	// {latest} expands into more placeholders, so run the replacer twice.
	r := strings.NewReplacer(pairs...)

	return r.Replace(r.Replace(tmpl))
}

// structuresScript renders the DDL for the active dialect.
func (db *DB) structuresScript() string {
	return db.names.expand(structuresTemplate, "{ts}", db.dialect.timestampType)
}

// EnsureStructures idempotently creates the baseline table and (re)defines the
// current-state and compare views. Readers racing a redefinition may briefly
// see the views missing.
func (db *DB) EnsureStructures(ctx context.Context) error {
	if err := db.ExecScript(ctx, db.structuresScript()); err != nil {
		return fmt.Errorf("%w: %w", ErrSchema, err)
	}

	db.log.Debug("Structures ensured", "baseline", db.names.baseline, "compare", db.names.compare)

	return nil
}
