// Package bunstore implements store.Store on a SQL database through bun.
//
// SQLite (mattn/go-sqlite3) and Postgres (lib/pq) are supported. Membership
// edges live in the user_groups join table, so adding or removing a member is
// a single row write, and cascades run inside the caller's transaction.
package bunstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"

	"github.com/goliatone/go-user-directory/model"
	"github.com/goliatone/go-user-directory/store"
)

const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
)

// Options tune the connection pool and query logging.
type Options struct {
	MaxOpenConns int
	MaxIdleConns int
	Logger       *log.Logger
}

// Store implements store.Store over a bun.IDB, which is either the database
// handle or an open transaction.
type Store struct {
	db  *bun.DB
	idb bun.IDB
	tx  bool
}

var _ store.Store = (*Store)(nil)

// Open connects to driver/dsn and returns a Store. The schema is not created;
// call CreateSchema.
func Open(driver, dsn string, opts Options) (*Store, error) {
	if driver == DriverSQLite {
		dsn = sqliteDSN(dsn)
	}
	sqldb, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", driver, err)
	}

	var db *bun.DB
	switch driver {
	case DriverSQLite:
		// Every connection to an in-memory SQLite database is a separate database.
		if opts.MaxOpenConns <= 0 {
			opts.MaxOpenConns = 1
		}
		db = bun.NewDB(sqldb, sqlitedialect.New())
	case DriverPostgres:
		db = bun.NewDB(sqldb, pgdialect.New())
	default:
		sqldb.Close()
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	if opts.MaxOpenConns > 0 {
		sqldb.SetMaxOpenConns(opts.MaxOpenConns)
	}
	if opts.MaxIdleConns > 0 {
		sqldb.SetMaxIdleConns(opts.MaxIdleConns)
	}
	if opts.Logger != nil {
		db.AddQueryHook(&queryLogger{logger: opts.Logger})
	}

	if err := sqldb.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to %s database: %w", driver, err)
	}

	return New(db), nil
}

// sqliteDSN turns on foreign key enforcement for every pooled connection
// unless dsn already sets _fk or _foreign_keys.
func sqliteDSN(dsn string) string {
	_, query, _ := strings.Cut(dsn, "?")
	params, err := url.ParseQuery(query)
	if err != nil || params.Has("_fk") || params.Has("_foreign_keys") {
		return dsn
	}
	if query == "" {
		return strings.TrimSuffix(dsn, "?") + "?_fk=1"
	}
	return dsn + "&_fk=1"
}

// New wraps an existing bun.DB.
func New(db *bun.DB) *Store {
	return &Store{db: db, idb: db}
}

// DB returns the underlying bun handle.
func (s *Store) DB() *bun.DB {
	return s.db
}

// CreateSchema creates the directory tables when they do not exist.
func (s *Store) CreateSchema(ctx context.Context) error {
	queries := []*bun.CreateTableQuery{
		s.idb.NewCreateTable().Model((*model.User)(nil)).IfNotExists(),
		s.idb.NewCreateTable().Model((*model.Group)(nil)).IfNotExists(),
		s.idb.NewCreateTable().Model((*model.Task)(nil)).IfNotExists().
			ForeignKey(`("user_id") REFERENCES "users" ("id")`),
		s.idb.NewCreateTable().Model((*model.Membership)(nil)).IfNotExists().
			ForeignKey(`("user_id") REFERENCES "users" ("id")`).
			ForeignKey(`("group_id") REFERENCES "groups" ("id")`),
	}

	for _, q := range queries {
		if _, err := q.Exec(ctx); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
	}
	return nil
}

func (s *Store) Users() store.UserStore             { return userStore{s.idb} }
func (s *Store) Groups() store.GroupStore           { return groupStore{s.idb} }
func (s *Store) Tasks() store.TaskStore             { return taskStore{s.idb} }
func (s *Store) Memberships() store.MembershipStore { return membershipStore{s.idb} }

// RunInTx runs fn in a database transaction, committing when fn returns nil
// and rolling back otherwise. Nested calls join the outer transaction.
func (s *Store) RunInTx(ctx context.Context, fn store.TxFunc) error {
	if s.tx {
		return fn(ctx, s)
	}
	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		return fn(ctx, &Store{db: s.db, idb: tx, tx: true})
	})
}

// Close closes the database. Closing a transaction scoped Store is a no-op.
func (s *Store) Close() error {
	if s.tx {
		return nil
	}
	return s.db.Close()
}

// translate maps driver unique violations to store.ErrDuplicate.
func translate(err error) error {
	if err == nil {
		return nil
	}

	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) &&
		(liteErr.ExtendedCode == sqlite3.ErrConstraintUnique || liteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey) {
		return fmt.Errorf("%w: %v", store.ErrDuplicate, err)
	}

	var pgErr *pq.Error
	if errors.As(err, &pgErr) && pgErr.Code.Name() == "unique_violation" {
		return fmt.Errorf("%w: %v", store.ErrDuplicate, err)
	}

	return err
}

// findOne scans a single row into dst and reports whether one was found.
func findOne(ctx context.Context, q *bun.SelectQuery) (bool, error) {
	err := q.Limit(1).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// updateOne runs q and maps "no row matched" to store.ErrNotFound.
func updateOne(ctx context.Context, q *bun.UpdateQuery) error {
	res, err := q.Exec(ctx)
	if err != nil {
		return translate(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

type userStore struct{ db bun.IDB }

func (u userStore) FindByID(ctx context.Context, id int64) (model.User, bool, error) {
	var user model.User
	ok, err := findOne(ctx, u.db.NewSelect().Model(&user).Where("u.id = ?", id))
	return user, ok, err
}

func (u userStore) FindByEmail(ctx context.Context, email string) (model.User, bool, error) {
	var user model.User
	ok, err := findOne(ctx, u.db.NewSelect().Model(&user).Where("u.email = ?", email))
	return user, ok, err
}

func (u userStore) FindAll(ctx context.Context) ([]model.User, error) {
	users := []model.User{}
	if err := u.db.NewSelect().Model(&users).Order("u.id ASC").Scan(ctx); err != nil {
		return nil, err
	}
	return users, nil
}

func (u userStore) FindByGroupName(ctx context.Context, name string) ([]model.User, error) {
	users := []model.User{}
	err := u.db.NewSelect().Model(&users).
		Join(`JOIN "user_groups" AS "ug" ON "ug"."user_id" = "u"."id"`).
		Join(`JOIN "groups" AS "g" ON "g"."id" = "ug"."group_id"`).
		Where(`"g"."name" = ?`, name).
		Order("u.id ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return users, nil
}

func (u userStore) Save(ctx context.Context, user model.User) (model.User, error) {
	if user.ID == 0 {
		if _, err := u.db.NewInsert().Model(&user).Exec(ctx); err != nil {
			return model.User{}, translate(err)
		}
		return user, nil
	}
	if err := updateOne(ctx, u.db.NewUpdate().Model(&user).WherePK()); err != nil {
		return model.User{}, err
	}
	return user, nil
}

func (u userStore) DeleteByID(ctx context.Context, id int64) error {
	_, err := u.db.NewDelete().Model((*model.User)(nil)).Where("id = ?", id).Exec(ctx)
	return err
}

func (u userStore) ExistsByID(ctx context.Context, id int64) (bool, error) {
	return u.db.NewSelect().Model((*model.User)(nil)).Where("u.id = ?", id).Exists(ctx)
}

func (u userStore) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	return u.db.NewSelect().Model((*model.User)(nil)).Where("u.email = ?", email).Exists(ctx)
}

func (u userStore) ExistsByPhone(ctx context.Context, phone string) (bool, error) {
	return u.db.NewSelect().Model((*model.User)(nil)).Where("u.phone = ?", phone).Exists(ctx)
}

type groupStore struct{ db bun.IDB }

func (g groupStore) FindByID(ctx context.Context, id int64) (model.Group, bool, error) {
	var group model.Group
	ok, err := findOne(ctx, g.db.NewSelect().Model(&group).Where("g.id = ?", id))
	return group, ok, err
}

func (g groupStore) FindByName(ctx context.Context, name string) (model.Group, bool, error) {
	var group model.Group
	ok, err := findOne(ctx, g.db.NewSelect().Model(&group).Where("g.name = ?", name))
	return group, ok, err
}

func (g groupStore) FindAll(ctx context.Context) ([]model.Group, error) {
	groups := []model.Group{}
	if err := g.db.NewSelect().Model(&groups).Order("g.id ASC").Scan(ctx); err != nil {
		return nil, err
	}
	return groups, nil
}

func (g groupStore) FindByIDs(ctx context.Context, ids []int64) ([]model.Group, error) {
	groups := []model.Group{}
	if len(ids) == 0 {
		return groups, nil
	}
	err := g.db.NewSelect().Model(&groups).
		Where("g.id IN (?)", bun.In(ids)).
		Order("g.id ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return groups, nil
}

func (g groupStore) Save(ctx context.Context, group model.Group) (model.Group, error) {
	if group.ID == 0 {
		if _, err := g.db.NewInsert().Model(&group).Exec(ctx); err != nil {
			return model.Group{}, translate(err)
		}
		return group, nil
	}
	if err := updateOne(ctx, g.db.NewUpdate().Model(&group).WherePK()); err != nil {
		return model.Group{}, err
	}
	return group, nil
}

func (g groupStore) DeleteByID(ctx context.Context, id int64) error {
	_, err := g.db.NewDelete().Model((*model.Group)(nil)).Where("id = ?", id).Exec(ctx)
	return err
}

func (g groupStore) ExistsByID(ctx context.Context, id int64) (bool, error) {
	return g.db.NewSelect().Model((*model.Group)(nil)).Where("g.id = ?", id).Exists(ctx)
}

func (g groupStore) ExistsByName(ctx context.Context, name string) (bool, error) {
	return g.db.NewSelect().Model((*model.Group)(nil)).Where("g.name = ?", name).Exists(ctx)
}

type taskStore struct{ db bun.IDB }

func (t taskStore) FindByID(ctx context.Context, id int64) (model.Task, bool, error) {
	var task model.Task
	ok, err := findOne(ctx, t.db.NewSelect().Model(&task).Where("t.id = ?", id))
	return task, ok, err
}

func (t taskStore) FindAll(ctx context.Context) ([]model.Task, error) {
	tasks := []model.Task{}
	if err := t.db.NewSelect().Model(&tasks).Order("t.id ASC").Scan(ctx); err != nil {
		return nil, err
	}
	return tasks, nil
}

func (t taskStore) FindByUserID(ctx context.Context, userID int64) ([]model.Task, error) {
	tasks := []model.Task{}
	err := t.db.NewSelect().Model(&tasks).
		Where("t.user_id = ?", userID).
		Order("t.id ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return tasks, nil
}

func (t taskStore) Save(ctx context.Context, task model.Task) (model.Task, error) {
	if task.ID == 0 {
		if _, err := t.db.NewInsert().Model(&task).Exec(ctx); err != nil {
			return model.Task{}, translate(err)
		}
		return task, nil
	}
	if err := updateOne(ctx, t.db.NewUpdate().Model(&task).WherePK()); err != nil {
		return model.Task{}, err
	}
	return task, nil
}

func (t taskStore) DeleteByID(ctx context.Context, id int64) error {
	_, err := t.db.NewDelete().Model((*model.Task)(nil)).Where("id = ?", id).Exec(ctx)
	return err
}

func (t taskStore) DeleteByUserID(ctx context.Context, userID int64) error {
	_, err := t.db.NewDelete().Model((*model.Task)(nil)).Where("user_id = ?", userID).Exec(ctx)
	return err
}

func (t taskStore) ExistsByID(ctx context.Context, id int64) (bool, error) {
	return t.db.NewSelect().Model((*model.Task)(nil)).Where("t.id = ?", id).Exists(ctx)
}

type membershipStore struct{ db bun.IDB }

func (m membershipStore) Add(ctx context.Context, userID, groupID int64) error {
	edge := model.Membership{UserID: userID, GroupID: groupID}
	_, err := m.db.NewInsert().Model(&edge).Ignore().Exec(ctx)
	return err
}

func (m membershipStore) Remove(ctx context.Context, userID, groupID int64) error {
	_, err := m.db.NewDelete().Model((*model.Membership)(nil)).
		Where("user_id = ? AND group_id = ?", userID, groupID).
		Exec(ctx)
	return err
}

func (m membershipStore) Exists(ctx context.Context, userID, groupID int64) (bool, error) {
	return m.db.NewSelect().Model((*model.Membership)(nil)).
		Where("ug.user_id = ? AND ug.group_id = ?", userID, groupID).
		Exists(ctx)
}

func (m membershipStore) GroupIDsForUser(ctx context.Context, userID int64) ([]int64, error) {
	ids := []int64{}
	err := m.db.NewSelect().Model((*model.Membership)(nil)).
		Column("group_id").
		Where("ug.user_id = ?", userID).
		Order("group_id ASC").
		Scan(ctx, &ids)
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func (m membershipStore) UserIDsForGroup(ctx context.Context, groupID int64) ([]int64, error) {
	ids := []int64{}
	err := m.db.NewSelect().Model((*model.Membership)(nil)).
		Column("user_id").
		Where("ug.group_id = ?", groupID).
		Order("user_id ASC").
		Scan(ctx, &ids)
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func (m membershipStore) RemoveAllForUser(ctx context.Context, userID int64) error {
	_, err := m.db.NewDelete().Model((*model.Membership)(nil)).Where("user_id = ?", userID).Exec(ctx)
	return err
}

func (m membershipStore) RemoveAllForGroup(ctx context.Context, groupID int64) error {
	_, err := m.db.NewDelete().Model((*model.Membership)(nil)).Where("group_id = ?", groupID).Exec(ctx)
	return err
}
