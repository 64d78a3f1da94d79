package corpus

const (
	sqliteSchemaSQL = `
CREATE TABLE IF NOT EXISTS training_items (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	kind TEXT NOT NULL,
	content TEXT NOT NULL DEFAULT '',
	question TEXT NOT NULL DEFAULT '',
	sql_text TEXT NOT NULL DEFAULT '',
	embedding TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL
);
CREATE TABLE IF NOT EXISTS corpus_meta (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
`
	postgresSchemaSQL = `
CREATE EXTENSION IF NOT EXISTS vector;
CREATE TABLE IF NOT EXISTS training_items (
	id BIGSERIAL PRIMARY KEY,
	kind TEXT NOT NULL,
	content TEXT NOT NULL DEFAULT '',
	question TEXT NOT NULL DEFAULT '',
	sql_text TEXT NOT NULL DEFAULT '',
	embedding VECTOR NOT NULL,
	created_at TIMESTAMP WITHOUT TIME ZONE NOT NULL
);
CREATE TABLE IF NOT EXISTS corpus_meta (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
`
	insertItemSQL = `
INSERT INTO training_items
	(kind, content, question, sql_text, embedding, created_at)
VALUES
	(?, ?, ?, ?, ?, ?)
RETURNING id
`
	listItemsSQL = `
SELECT
	id, kind, content, question, sql_text, embedding
FROM training_items
ORDER BY
	id
`
	getItemSQL = `
SELECT
	id, kind, content, question, sql_text, embedding
FROM training_items
WHERE id = ?
`
	deleteItemSQL = `
DELETE FROM training_items WHERE id = ?
`
	truncateItemsSQL = `
DELETE FROM training_items
`
	getMetaSQL = `
SELECT value FROM corpus_meta WHERE key = ?
`
	setMetaSQL = `
INSERT INTO corpus_meta
	(key, value)
VALUES
	(?, ?)
ON CONFLICT (key) DO UPDATE SET value = excluded.value
`
	clearMetaSQL = `
DELETE FROM corpus_meta
`
)

const metaDimension = "dimension"
