package notebook

import (
	"context"
	"sort"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmgilman/go/errors"
)

// Repository is the storage collaborator behind Service.
type Repository interface {
	List(ctx context.Context) ([]Notebook, error)
	ListByTask(ctx context.Context, taskID int64) ([]Notebook, error)
	ListFull(ctx context.Context, taskID *int64) ([]Full, error)
	Get(ctx context.Context, id int64) (Notebook, error)
	Create(ctx context.Context, in Input) (Notebook, error)
	Update(ctx context.Context, id int64, in Input) (Notebook, error)
	Delete(ctx context.Context, id int64) error
}

// DBTX is the interface for database operations.
// Satisfied by both *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// DB is a DBTX that can also open transactions, such as *pgxpool.Pool.
type DB interface {
	DBTX
	Begin(ctx context.Context) (pgx.Tx, error)
}

// PGRepository stores notebooks in PostgreSQL.
type PGRepository struct {
	db DB
}

// NewPGRepository creates a repository on db.
func NewPGRepository(db DB) *PGRepository {
	return &PGRepository{db: db}
}

const selectNotebooks = `
SELECT n.id, n.title, n.content, n.task_id,
       COALESCE(array_agg(nt.tag_id ORDER BY nt.tag_id) FILTER (WHERE nt.tag_id IS NOT NULL), '{}')
FROM notebooks n
LEFT JOIN notebook_tags nt ON nt.notebook_id = n.id`

func (r *PGRepository) List(ctx context.Context) ([]Notebook, error) {
	return queryNotebooks(ctx, r.db, selectNotebooks+` GROUP BY n.id ORDER BY n.id`)
}

func (r *PGRepository) ListByTask(ctx context.Context, taskID int64) ([]Notebook, error) {
	return queryNotebooks(ctx, r.db, selectNotebooks+` WHERE n.task_id = $1 GROUP BY n.id ORDER BY n.id`, taskID)
}

func (r *PGRepository) Get(ctx context.Context, id int64) (Notebook, error) {
	nbs, err := queryNotebooks(ctx, r.db, selectNotebooks+` WHERE n.id = $1 GROUP BY n.id`, id)
	if err != nil {
		return Notebook{}, err
	}
	if len(nbs) == 0 {
		return Notebook{}, notFound(id)
	}
	return nbs[0], nil
}

func queryNotebooks(ctx context.Context, db DBTX, sql string, args ...any) ([]Notebook, error) {
	rows, err := db.Query(ctx, sql, args...)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeDatabase, "failed to query notebooks")
	}
	nbs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Notebook, error) {
		var nb Notebook
		err := row.Scan(&nb.ID, &nb.Title, &nb.Content, &nb.TaskID, &nb.TagIDs)
		return nb, err
	})
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeDatabase, "failed to scan notebooks")
	}
	return nbs, nil
}

const selectFull = `
SELECT n.id, n.title, n.content, tg.id, tg.name, t.id, t.title
FROM notebooks n
LEFT JOIN notebook_tags nt ON nt.notebook_id = n.id
LEFT JOIN tags tg ON tg.id = nt.tag_id
LEFT JOIN tasks t ON t.id = n.task_id
WHERE $1::bigint IS NULL OR n.task_id = $1
ORDER BY n.id, tg.id`

// fullRow is one row of the notebook/tag/task join.
type fullRow struct {
	ID        int64
	Title     string
	Content   string
	TagID     *int64
	TagName   *string
	TaskID    *int64
	TaskTitle *string
}

func (r *PGRepository) ListFull(ctx context.Context, taskID *int64) ([]Full, error) {
	rows, err := r.db.Query(ctx, selectFull, taskID)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeDatabase, "failed to query notebooks")
	}
	joined, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (fullRow, error) {
		var fr fullRow
		err := row.Scan(&fr.ID, &fr.Title, &fr.Content, &fr.TagID, &fr.TagName, &fr.TaskID, &fr.TaskTitle)
		return fr, err
	})
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeDatabase, "failed to scan notebooks")
	}
	return foldFull(joined), nil
}

// foldFull groups join rows by notebook id, collecting tags and the task.
// Output is ordered by notebook id.
func foldFull(rows []fullRow) []Full {
	byID := make(map[int64]*Full)
	var order []int64
	for _, fr := range rows {
		nb, ok := byID[fr.ID]
		if !ok {
			nb = &Full{ID: fr.ID, Title: fr.Title, Content: fr.Content, Tags: []Tag{}}
			byID[fr.ID] = nb
			order = append(order, fr.ID)
		}
		if fr.TagID != nil {
			seen := false
			for _, t := range nb.Tags {
				if t.ID == *fr.TagID {
					seen = true
					break
				}
			}
			if !seen {
				tag := Tag{ID: *fr.TagID}
				if fr.TagName != nil {
					tag.Name = *fr.TagName
				}
				nb.Tags = append(nb.Tags, tag)
			}
		}
		if fr.TaskID != nil {
			task := &TaskRef{ID: *fr.TaskID}
			if fr.TaskTitle != nil {
				task.Title = *fr.TaskTitle
			}
			nb.Task = task
		}
	}

	sort.Slice(order, func(i, j int) bool { return order[i] < order[j] })
	out := make([]Full, 0, len(order))
	for _, id := range order {
		out = append(out, *byID[id])
	}
	return out
}

func (r *PGRepository) Create(ctx context.Context, in Input) (Notebook, error) {
	var id int64
	err := pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx,
			`INSERT INTO notebooks (title, content, task_id) VALUES ($1, $2, $3) RETURNING id`,
			in.Title, in.Content, in.TaskID,
		).Scan(&id)
		if err != nil {
			return err
		}
		return replaceTags(ctx, tx, id, in.TagIDs)
	})
	if err != nil {
		return Notebook{}, mapWriteError(err, "failed to create notebook")
	}
	return r.Get(ctx, id)
}

// Update replaces title and content. Tags are replaced only when TagIDs is
// non-empty; the task link is left unchanged.
func (r *PGRepository) Update(ctx context.Context, id int64, in Input) (Notebook, error) {
	err := pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx,
			`UPDATE notebooks SET title = $2, content = $3 WHERE id = $1`,
			id, in.Title, in.Content,
		)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return notFound(id)
		}
		if len(in.TagIDs) == 0 {
			return nil
		}
		return replaceTags(ctx, tx, id, in.TagIDs)
	})
	if err != nil {
		return Notebook{}, mapWriteError(err, "failed to update notebook")
	}
	return r.Get(ctx, id)
}

func (r *PGRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM notebooks WHERE id = $1`, id)
	if err != nil {
		return errors.Wrap(err, errors.CodeDatabase, "failed to delete notebook")
	}
	if tag.RowsAffected() == 0 {
		return notFound(id)
	}
	return nil
}

func replaceTags(ctx context.Context, tx pgx.Tx, id int64, tagIDs []int64) error {
	if _, err := tx.Exec(ctx, `DELETE FROM notebook_tags WHERE notebook_id = $1`, id); err != nil {
		return err
	}
	if len(tagIDs) == 0 {
		return nil
	}
	_, err := tx.Exec(ctx,
		`INSERT INTO notebook_tags (notebook_id, tag_id) SELECT $1, unnest($2::bigint[]) ON CONFLICT DO NOTHING`,
		id, tagIDs,
	)
	return err
}

// pgForeignKeyViolation is the SQLSTATE for a missing referenced row.
const pgForeignKeyViolation = "23503"

// mapWriteError keeps coded errors, turns dangling task or tag references
// into CodeNotFound and everything else into CodeDatabase.
func mapWriteError(err error, msg string) error {
	var perr errors.PlatformError
	if errors.As(err, &perr) {
		return err
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgForeignKeyViolation {
		return errors.Wrap(err, errors.CodeNotFound, "task or tag not found")
	}
	return errors.Wrap(err, errors.CodeDatabase, msg)
}

func notFound(id int64) error {
	return errors.Newf(errors.CodeNotFound, "notebook %d not found", id)
}
