package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/require"

	"github.com/roach88/maat/internal/flush"
	"github.com/roach88/maat/internal/store"
)

const fixtureSchema = `
CREATE TABLE articles (
	id INTEGER PRIMARY KEY,
	title TEXT NOT NULL,
	published_at TEXT NOT NULL
);
INSERT INTO articles (id, title, published_at) VALUES
	(1, 'Zebras', '2024-01-01'),
	(2, 'Apples', '2024-03-01'),
	(3, 'Mangoes', '2024-02-01');

CREATE TABLE authors (
	author_id INTEGER PRIMARY KEY,
	name TEXT NOT NULL,
	posts INTEGER NOT NULL
);
INSERT INTO authors (author_id, name, posts) VALUES (10, 'ada', 3), (11, 'bob', 9);
`

const fixtureCatalog = `entities:
  - type: blog.article
    table: articles
    columns: [id, title]
    typologies:
      - name: newest
        query: SELECT id FROM articles ORDER BY published_at DESC, id
      - name: alphabetical
        query: SELECT id FROM articles ORDER BY title, id

  - type: blog.author
    table: authors
    key: author_id
    columns: [name]
    accessor: people
    typologies:
      - name: prolific
        query: SELECT author_id FROM authors ORDER BY posts DESC, author_id
`

// cliEnv is a database seeded with entity tables plus a catalog declaring
// them, in a temp directory.
type cliEnv struct {
	dir     string
	dsn     string
	catalog string
}

func newCLIEnv(t *testing.T) *cliEnv {
	t.Helper()
	dir := t.TempDir()
	env := &cliEnv{
		dir:     dir,
		dsn:     filepath.Join(dir, "maat.db"),
		catalog: filepath.Join(dir, "maat.yaml"),
	}

	st, err := store.Open(env.dsn)
	require.NoError(t, err)
	_, err = st.DB().Exec(fixtureSchema)
	require.NoError(t, err)
	require.NoError(t, st.Close())

	env.writeCatalog(t, fixtureCatalog)
	return env
}

func (e *cliEnv) writeCatalog(t *testing.T, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(e.catalog, []byte(content), 0o644))
}

type result struct {
	stdout string
	stderr string
	code   int
}

// run executes one maat command against the environment. The global
// --dsn and --catalog flags are inserted after the subcommand name.
func (e *cliEnv) run(t *testing.T, args ...string) result {
	t.Helper()
	full := []string{args[0], "--dsn", e.dsn, "--catalog", e.catalog}
	full = append(full, args[1:]...)
	return runCLI(t, full...)
}

func runCLI(t *testing.T, args ...string) result {
	t.Helper()
	var stdout, stderr bytes.Buffer
	opts := &RootOptions{RunIDs: flush.NewFixedGenerator("run-1")}
	code := run(context.Background(), opts, args, &stdout, &stderr)
	return result{stdout: stdout.String(), stderr: stderr.String(), code: code}
}

func newGoldie(t *testing.T) *goldie.Goldie {
	return goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
}
