package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/goliatone/go-user-directory/apperr"
	"github.com/goliatone/go-user-directory/internal/config"
	"github.com/goliatone/go-user-directory/internal/logging"
	"github.com/goliatone/go-user-directory/model"
	"github.com/goliatone/go-user-directory/pkg/di"
	"github.com/goliatone/go-user-directory/pkg/testsupport"
	"github.com/goliatone/go-user-directory/store/memstore"
)

type harness struct {
	t      *testing.T
	runner *Runner
	out    *bytes.Buffer
}

// newHarness returns a runner over a seeded in-memory directory.
func newHarness(t *testing.T) *harness {
	t.Helper()

	st := memstore.New()
	testsupport.SeedStore(t, st, testsupport.LoadSeed(t, testsupport.FixturePath("directory.json")))

	cfg := config.Default()
	cfg.Database = config.DatabaseConfig{Driver: config.DriverMemory}

	logger := logging.New(io.Discard, "error")
	container, err := di.NewContainer(context.Background(), cfg, di.WithStore(st), di.WithLogger(logger))
	if err != nil {
		t.Fatalf("NewContainer() failed: %v", err)
	}
	t.Cleanup(func() { container.Close() })

	out := &bytes.Buffer{}
	runner := NewRunner(RunnerOpts{Container: container, Logger: logger, Output: out})
	return &harness{t: t, runner: runner, out: out}
}

// run executes one command line and returns what it printed.
func (h *harness) run(args ...string) (string, error) {
	h.t.Helper()
	h.out.Reset()

	app := newApp(h.runner)
	app.Writer = io.Discard
	app.ErrWriter = io.Discard
	err := app.Run(context.Background(), append([]string{"directoryctl"}, args...))
	return h.out.String(), err
}

func (h *harness) mustRun(dest any, args ...string) {
	h.t.Helper()
	out, err := h.run(args...)
	if err != nil {
		h.t.Fatalf("%s failed: %v", strings.Join(args, " "), err)
	}
	if dest == nil {
		return
	}
	if err := json.Unmarshal([]byte(out), dest); err != nil {
		h.t.Fatalf("failed to decode output of %s: %v\n%s", strings.Join(args, " "), err, out)
	}
}

func TestUserCreateAndGet(t *testing.T) {
	h := newHarness(t)

	var created model.UserResponse
	h.mustRun(&created, "user", "create",
		"--first-name", "Grace", "--last-name", "Hopper",
		"--email", "grace@example.com", "--phone", "+300")

	if created.ID != 3 {
		t.Errorf("Expected id 3 after two seeded users, got %d", created.ID)
	}

	var got model.UserResponse
	h.mustRun(&got, "user", "get", "3")
	if got != created {
		t.Errorf("Expected %+v, got %+v", created, got)
	}
}

func TestUserCreateDuplicateEmail(t *testing.T) {
	h := newHarness(t)

	_, err := h.run("user", "create",
		"--first-name", "Ada", "--last-name", "Byron",
		"--email", "ada@example.com", "--phone", "+999")
	if !apperr.IsAlreadyExists(err) {
		t.Fatalf("Expected an already exists error, got %v", err)
	}
}

func TestUserGetErrors(t *testing.T) {
	h := newHarness(t)

	tests := []struct {
		name  string
		args  []string
		check func(error) bool
	}{
		{name: "missing user", args: []string{"user", "get", "42"}, check: apperr.IsNotFound},
		{name: "non numeric id", args: []string{"user", "get", "abc"}, check: apperr.IsInvalidInput},
		{name: "no id", args: []string{"user", "get"}, check: apperr.IsInvalidInput},
		{name: "zero id", args: []string{"user", "get", "0"}, check: apperr.IsNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := h.run(tt.args...); !tt.check(err) {
				t.Errorf("Unexpected error for %v: %v", tt.args, err)
			}
		})
	}
}

func TestUserUpdateOnlyGivenFields(t *testing.T) {
	h := newHarness(t)

	var updated model.UserResponse
	h.mustRun(&updated, "user", "update", "--phone", "+101", "1")

	if updated.Phone != "+101" {
		t.Errorf("Expected phone +101, got %s", updated.Phone)
	}
	if updated.FirstName != "Ada" || updated.Email != "ada@example.com" {
		t.Errorf("Expected other fields unchanged, got %+v", updated)
	}
}

func TestUserListByGroup(t *testing.T) {
	h := newHarness(t)

	var all []model.UserResponse
	h.mustRun(&all, "user", "list")
	if len(all) != 2 {
		t.Fatalf("Expected 2 users, got %d", len(all))
	}

	var ops []model.UserResponse
	h.mustRun(&ops, "user", "list", "--group", "Ops")
	if len(ops) != 1 || ops[0].Email != "alan@example.com" {
		t.Errorf("Expected only alan in Ops, got %+v", ops)
	}
}

func TestUserImport(t *testing.T) {
	h := newHarness(t)

	path := testsupport.TempFile(t, "users.json", []byte(`[
		{"first_name": "Grace", "last_name": "Hopper", "email": "grace@example.com", "phone": "+300"},
		{"first_name": "Edsger", "last_name": "Dijkstra", "email": "edsger@example.com", "phone": "+400"}
	]`))

	var imported []model.UserResponse
	h.mustRun(&imported, "user", "import", path)
	if len(imported) != 2 {
		t.Fatalf("Expected 2 imported users, got %d", len(imported))
	}

	clash := testsupport.TempFile(t, "clash.json", []byte(`[
		{"first_name": "Barbara", "last_name": "Liskov", "email": "barbara@example.com", "phone": "+500"},
		{"first_name": "Alan", "last_name": "Kay", "email": "alan@example.com", "phone": "+600"}
	]`))
	if _, err := h.run("user", "import", clash); !apperr.IsAlreadyExists(err) {
		t.Fatalf("Expected an already exists error, got %v", err)
	}

	var all []model.UserResponse
	h.mustRun(&all, "user", "list")
	if len(all) != 4 {
		t.Errorf("Expected the rejected batch to write nothing, got %d users", len(all))
	}
}

func TestMembershipCommands(t *testing.T) {
	h := newHarness(t)

	var result membershipResult
	h.mustRun(&result, "membership", "add", "1", "2")
	if !result.Member || result.UserID != 1 || result.GroupID != 2 {
		t.Errorf("Unexpected add result %+v", result)
	}

	var groups []model.GroupResponse
	h.mustRun(&groups, "user", "groups", "1")
	if len(groups) != 2 {
		t.Fatalf("Expected user 1 in 2 groups, got %d", len(groups))
	}

	h.mustRun(&result, "member", "remove", "1", "1")
	if result.Member {
		t.Errorf("Expected member false after remove, got %+v", result)
	}

	var team model.GroupResponse
	h.mustRun(&team, "group", "find", "Team")
	if len(team.MemberIDs) != 1 || team.MemberIDs[0] != 2 {
		t.Errorf("Expected Team to hold only user 2, got %v", team.MemberIDs)
	}

	if _, err := h.run("membership", "add", "1", "99"); !apperr.IsNotFound(err) {
		t.Errorf("Expected not found for a missing group, got %v", err)
	}
}

func TestUserDeleteCascades(t *testing.T) {
	h := newHarness(t)

	out, err := h.run("user", "delete", "1")
	if err != nil {
		t.Fatalf("user delete failed: %v", err)
	}
	if strings.TrimSpace(out) != `{"deleted":"user","id":1}` {
		t.Errorf("Unexpected delete output %q", out)
	}

	var team model.GroupResponse
	h.mustRun(&team, "group", "get", "1")
	if len(team.MemberIDs) != 1 || team.MemberIDs[0] != 2 {
		t.Errorf("Expected deleted user detached from Team, got %v", team.MemberIDs)
	}

	var tasks []model.TaskResponse
	h.mustRun(&tasks, "task", "list")
	if len(tasks) != 0 {
		t.Errorf("Expected the user's tasks deleted, got %d", len(tasks))
	}

	if _, err := h.run("user", "get", "1"); !apperr.IsNotFound(err) {
		t.Errorf("Expected not found after delete, got %v", err)
	}
}

func TestGroupCommands(t *testing.T) {
	h := newHarness(t)

	var created model.GroupResponse
	h.mustRun(&created, "group", "create", "--name", "Research", "--description", "labs")
	if created.Name != "Research" || len(created.MemberIDs) != 0 {
		t.Errorf("Unexpected created group %+v", created)
	}

	if _, err := h.run("group", "create", "--name", "Team"); !apperr.IsAlreadyExists(err) {
		t.Errorf("Expected already exists for a taken name, got %v", err)
	}

	var updated model.GroupResponse
	h.mustRun(&updated, "group", "update", "--description", "r&d", "3")
	if updated.Name != "Research" || updated.Description != "r&d" {
		t.Errorf("Unexpected updated group %+v", updated)
	}

	h.mustRun(nil, "group", "delete", "2")

	var alan []model.GroupResponse
	h.mustRun(&alan, "user", "groups", "2")
	if len(alan) != 1 || alan[0].Name != "Team" {
		t.Errorf("Expected alan left only in Team, got %+v", alan)
	}
}

func TestTaskCommands(t *testing.T) {
	h := newHarness(t)

	var task model.TaskResponse
	h.mustRun(&task, "task", "create",
		"--user", "2", "--title", "review", "--deadline", "2025-03-04")
	if task.UserID != 2 || task.Deadline.Format("2006-01-02") != "2025-03-04" {
		t.Errorf("Unexpected task %+v", task)
	}

	var done model.TaskResponse
	h.mustRun(&done, "task", "update", "--completed", "2")
	if !done.Completed || done.Title != "review" {
		t.Errorf("Expected only completed to change, got %+v", done)
	}

	var mine []model.TaskResponse
	h.mustRun(&mine, "task", "list", "--user", "2")
	if len(mine) != 1 {
		t.Errorf("Expected 1 task for user 2, got %d", len(mine))
	}

	if _, err := h.run("task", "create", "--user", "9", "--title", "x"); !apperr.IsNotFound(err) {
		t.Errorf("Expected not found for a missing owner, got %v", err)
	}
	if _, err := h.run("task", "create", "--user", "1", "--title", "x", "--deadline", "soon"); !apperr.IsInvalidInput(err) {
		t.Errorf("Expected invalid input for a bad deadline, got %v", err)
	}
}

func TestPrettyOutput(t *testing.T) {
	h := newHarness(t)

	out, err := h.run("--pretty", "group", "get", "2")
	if err != nil {
		t.Fatalf("group get failed: %v", err)
	}
	testsupport.CompareWithGolden(t, testsupport.GoldenPath("group_ops.json"), []byte(out))
}

func TestInitCommand(t *testing.T) {
	h := newHarness(t)
	path := filepath.Join(t.TempDir(), "directory.toml")

	if _, err := h.run("init", "--path", path); err != nil {
		t.Fatalf("init failed: %v", err)
	}

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("written configuration should load: %v", err)
	}
	if cfg.Database.Driver != config.DriverSQLite {
		t.Errorf("Expected driver %s, got %s", config.DriverSQLite, cfg.Database.Driver)
	}

	if _, err := h.run("init", "--path", path); err == nil {
		t.Error("Expected init to refuse overwriting an existing file")
	}
}

func TestRunnerBuildsContainerFromFlags(t *testing.T) {
	dir := t.TempDir()
	out := &bytes.Buffer{}
	runner := NewRunner(RunnerOpts{Logger: logging.New(io.Discard, "error"), Output: out})

	args := []string{"directoryctl",
		"--config", filepath.Join(dir, "absent.toml"),
		"--driver", config.DriverMemory,
		"group", "list",
	}
	if err := newApp(runner).Run(context.Background(), args); err == nil {
		t.Fatal("Expected an explicit missing config file to fail")
	}

	dsn := "file:" + filepath.Join(dir, "cli.db") + "?cache=shared&_fk=1"
	args = []string{"directoryctl", "--driver", config.DriverSQLite, "--dsn", dsn,
		"group", "create", "--name", "Team"}
	if err := newApp(runner).Run(context.Background(), args); err != nil {
		t.Fatalf("group create failed: %v", err)
	}
	if runner.container != nil {
		t.Error("Expected an owned container to be closed after the command")
	}

	if _, err := os.Stat(filepath.Join(dir, "cli.db")); err != nil {
		t.Errorf("Expected the sqlite file to exist: %v", err)
	}
}
