package database

const migrationSessions = `
CREATE TABLE IF NOT EXISTS sessions (
    broker TEXT PRIMARY KEY,
    sealed BLOB NOT NULL,
    updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
);`

const migrationToolCalls = `
CREATE TABLE IF NOT EXISTS tool_calls (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    tool TEXT NOT NULL,
    broker TEXT NOT NULL,
    success INTEGER NOT NULL DEFAULT 0,
    arguments TEXT,
    error TEXT,
    duration_ms INTEGER NOT NULL DEFAULT 0,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);`

const migrationIndexes = `
CREATE INDEX IF NOT EXISTS idx_tool_calls_broker ON tool_calls(broker);
CREATE INDEX IF NOT EXISTS idx_tool_calls_tool ON tool_calls(tool);
CREATE INDEX IF NOT EXISTS idx_tool_calls_created ON tool_calls(created_at);
`
