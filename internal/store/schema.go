package store

// Timestamps are stored as Unix milliseconds; SQLite has no native
// datetime type and integer math keeps the recall window check exact.
const schema = `
CREATE TABLE IF NOT EXISTS users (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    username    TEXT NOT NULL UNIQUE,
    nickname    TEXT NOT NULL DEFAULT '',
    avatar      TEXT NOT NULL DEFAULT '',
    status      TEXT NOT NULL DEFAULT 'OFFLINE'
);

CREATE TABLE IF NOT EXISTS friendships (
    user_id     INTEGER NOT NULL REFERENCES users(id),
    friend_id   INTEGER NOT NULL REFERENCES users(id),
    status      TEXT NOT NULL DEFAULT 'ACCEPTED',
    PRIMARY KEY (user_id, friend_id)
);

CREATE TABLE IF NOT EXISTS chat_groups (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    name        TEXT NOT NULL,
    avatar      TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS group_members (
    group_id    INTEGER NOT NULL REFERENCES chat_groups(id),
    user_id     INTEGER NOT NULL REFERENCES users(id),
    muted       INTEGER NOT NULL DEFAULT 0,
    PRIMARY KEY (group_id, user_id)
);

CREATE TABLE IF NOT EXISTS messages (
    id           INTEGER PRIMARY KEY AUTOINCREMENT,
    sender_id    INTEGER NOT NULL,
    receiver_id  INTEGER NOT NULL,
    content      TEXT NOT NULL,
    content_type TEXT NOT NULL DEFAULT 'TEXT',
    status       TEXT NOT NULL DEFAULT 'SENT',
    recalled     INTEGER NOT NULL DEFAULT 0,
    created_at   INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_messages_receiver
    ON messages(receiver_id, status);

CREATE TABLE IF NOT EXISTS group_messages (
    id           INTEGER PRIMARY KEY AUTOINCREMENT,
    group_id     INTEGER NOT NULL REFERENCES chat_groups(id),
    sender_id    INTEGER NOT NULL,
    content      TEXT NOT NULL,
    content_type TEXT NOT NULL DEFAULT 'TEXT',
    recalled     INTEGER NOT NULL DEFAULT 0,
    created_at   INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_group_messages_group
    ON group_messages(group_id);
`
