package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/mfreeman451/nodeverify/pkg/models"
)

const compareColumns = `NumeroNodo, VersionSoftware, InstalacionNombre,
       FSUE_old, FSUE_new, OK_FSUE,
       UFA_old,  UFA_new,  OK_UFA,
       UFH_old,  UFH_new,  OK_UFH`

// likeEscape is the LIKE escape character used by the search predicate. It is
// not special in any dialect's string literals.
const likeEscape = "!"

// searchFilter is the only predicate template applied to the compare set. The
// user text only ever reaches the store as the two bind parameters. Both sides
// are folded by the same store function.
const searchFilter = ` WHERE {lower}(CAST(NumeroNodo AS {text})) LIKE {lower}(CAST(? AS {text})) ESCAPE '` + likeEscape + `'
   OR {lower}(COALESCE(InstalacionNombre, '')) LIKE {lower}(CAST(? AS {text})) ESCAPE '` + likeEscape + `'`

// compareFilter returns the WHERE clause and its arguments for query. Only the
// empty query selects the whole compare set; whitespace is searched as given.
func (db *DB) compareFilter(query string) (clause string, args []interface{}) {
	if query == "" {
		return "", nil
	}

	pattern := "%" + escapeLike(query) + "%"
	clause = strings.NewReplacer(
		"{lower}", db.dialect.lowerFunc,
		"{text}", db.dialect.textType,
	).Replace(searchFilter)

	return clause, []interface{}{pattern, pattern}
}

// escapeLike neutralises LIKE wildcards so the query matches as a plain substring.
func escapeLike(s string) string {
	r := strings.NewReplacer(
		likeEscape, likeEscape+likeEscape,
		"%", likeEscape+"%",
		"_", likeEscape+"_",
	)

	return r.Replace(s)
}

// FetchPage returns rows [offset, offset+limit) of the compare set ordered by
// node number, optionally filtered by query. limit is used as given.
func (db *DB) FetchPage(ctx context.Context, query string, offset, limit int) ([]models.CompareRow, error) {
	if offset < 0 || limit <= 0 {
		return nil, fmt.Errorf("%w: offset=%d limit=%d", ErrInvalidPage, offset, limit)
	}

	clause, args := db.compareFilter(query)

	stmt := "SELECT " + compareColumns + " FROM " + db.names.compare + clause +
		" ORDER BY NumeroNodo LIMIT ? OFFSET ?"

	args = append(args, limit, offset)

	rows, err := db.Query(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("%w compare page: %w", ErrFailedToQuery, err)
	}
	defer db.closeRows(rows)

	page := make([]models.CompareRow, 0, limit)

	for rows.Next() {
		row, err := scanCompareRow(rows)
		if err != nil {
			return nil, err
		}

		page = append(page, *row)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w compare page: %w", ErrFailedToQuery, err)
	}

	return page, nil
}

// CountMatching counts the compare rows FetchPage would page over for query.
func (db *DB) CountMatching(ctx context.Context, query string) (int64, error) {
	clause, args := db.compareFilter(query)

	var total int64

	err := db.QueryRow(ctx, "SELECT COUNT(*) FROM "+db.names.compare+clause, args...).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("%w compare count: %w", ErrFailedToQuery, err)
	}

	return total, nil
}

func scanCompareRow(rows Rows) (*models.CompareRow, error) {
	var (
		r                     models.CompareRow
		version, installation sql.NullString
		fsueOld, fsueNew      NullTime
		ufaOld, ufaNew        NullTime
		ufhOld, ufhNew        NullTime
		okFSUE, okUFA, okUFH  sql.NullBool
	)

	err := rows.Scan(
		&r.NumeroNodo, &version, &installation,
		&fsueOld, &fsueNew, &okFSUE,
		&ufaOld, &ufaNew, &okUFA,
		&ufhOld, &ufhNew, &okUFH,
	)
	if err != nil {
		return nil, fmt.Errorf("%w compare row: %w", ErrFailedToScan, err)
	}

	r.VersionSoftware = version.String
	r.InstallationName = installation.String
	r.FSUEOld, r.FSUENew, r.OKFSUE = fsueOld.Ptr(), fsueNew.Ptr(), okFSUE.Bool
	r.UFAOld, r.UFANew, r.OKUFA = ufaOld.Ptr(), ufaNew.Ptr(), okUFA.Bool
	r.UFHOld, r.UFHNew, r.OKUFH = ufhOld.Ptr(), ufhNew.Ptr(), okUFH.Bool

	return &r, nil
}

// GetTotals aggregates the compare set. RefreshFSUE only computes TotalNodos
// and TotalFSUEOK; the other fields are left zero and the caller decides how to
// merge them.
func (db *DB) GetTotals(ctx context.Context, mode models.RefreshMode) (*models.Totals, error) {
	var t models.Totals

	switch mode {
	case models.RefreshFSUE:
		err := db.QueryRow(ctx, `
			SELECT COUNT(*), COALESCE(SUM(OK_FSUE), 0)
			FROM `+db.names.compare).Scan(&t.TotalNodos, &t.TotalFSUEOK)
		if err != nil {
			return nil, fmt.Errorf("%w fsue totals: %w", ErrFailedToQuery, err)
		}
	case models.RefreshAll:
		err := db.QueryRow(ctx, `
			SELECT COUNT(*),
			       COALESCE(SUM(OK_FSUE), 0),
			       COALESCE(SUM(OK_UFA), 0),
			       COALESCE(SUM(OK_UFH), 0)
			FROM `+db.names.compare).Scan(&t.TotalNodos, &t.TotalFSUEOK, &t.TotalUFAOK, &t.TotalUFHOK)
		if err != nil {
			return nil, fmt.Errorf("%w totals: %w", ErrFailedToQuery, err)
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidRefreshMode, mode)
	}

	return &t, nil
}
