package storage

const schema = `
-- The 'sources' table tracks where decks come from: a local directory or a git repository.
CREATE TABLE IF NOT EXISTS sources (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    path TEXT NOT NULL UNIQUE,
    type TEXT NOT NULL DEFAULT 'local', -- 'local' or 'git'
    last_scanned DATETIME
);

-- The 'cards' table stores flashcard content, keyed by its content hash.
CREATE TABLE IF NOT EXISTS cards (
    hash TEXT PRIMARY KEY,
    question TEXT NOT NULL,
    answer TEXT NOT NULL DEFAULT '',
    context TEXT NOT NULL DEFAULT '',
    subject TEXT NOT NULL DEFAULT ''
);

-- 'card_sources' records every source a card was found in. The same card
-- may appear in several sources; it is deleted once no source holds it.
CREATE TABLE IF NOT EXISTS card_sources (
    card_hash TEXT NOT NULL,
    source_id INTEGER NOT NULL,

    PRIMARY KEY (card_hash, source_id),
    FOREIGN KEY(card_hash) REFERENCES cards(hash),
    FOREIGN KEY(source_id) REFERENCES sources(id)
);

CREATE INDEX IF NOT EXISTS idx_card_sources_source ON card_sources(source_id);

-- 'review_states' holds the SM-2 state of a card for one user. A missing row
-- means the user has never reviewed the card. 'version' is bumped on every
-- write and guards against lost updates.
CREATE TABLE IF NOT EXISTS review_states (
    user_id TEXT NOT NULL,
    card_hash TEXT NOT NULL,
    interval_days INTEGER NOT NULL DEFAULT 1,
    repetitions INTEGER NOT NULL DEFAULT 0,
    easiness_factor REAL NOT NULL DEFAULT 2.5,
    next_review DATETIME,
    last_review DATETIME,
    last_quality INTEGER,
    version INTEGER NOT NULL DEFAULT 1,

    PRIMARY KEY (user_id, card_hash),
    FOREIGN KEY(card_hash) REFERENCES cards(hash)
);

-- 'review_logs' is the append-only history of review events. It is kept when
-- cards are removed so that streaks and subject accuracy survive re-syncs.
CREATE TABLE IF NOT EXISTS review_logs (
    id TEXT PRIMARY KEY,
    user_id TEXT NOT NULL,
    card_hash TEXT NOT NULL,
    subject TEXT NOT NULL DEFAULT '',
    quality INTEGER NOT NULL,
    reviewed_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_review_logs_user ON review_logs(user_id, reviewed_at);
`
