package postgres

import (
	"context"
	"database/sql"
	"fmt"
)

// Schema is the full DDL, applied idempotently at startup. The uniqueness
// constraints here are load-bearing: credential and (referendum_id, user_id)
// uniqueness back the token protocol, (referendum_id, title) backs the
// default-choice bootstrap, and (user_id, badge) backs achievement unlocks.
const Schema = `
CREATE TABLE IF NOT EXISTS categories (
	id         uuid PRIMARY KEY,
	title      text NOT NULL UNIQUE,
	slug       text NOT NULL
);

CREATE TABLE IF NOT EXISTS referendums (
	id               uuid PRIMARY KEY,
	title            text NOT NULL UNIQUE,
	slug             text NOT NULL,
	description      text NOT NULL,
	question         text NOT NULL,
	duration_seconds integer NOT NULL,
	creator_id       uuid NOT NULL,
	created_at       timestamptz NOT NULL,
	updated_at       timestamptz NOT NULL,
	publication_date timestamptz,
	event_start      timestamptz
);

CREATE TABLE IF NOT EXISTS referendum_categories (
	referendum_id uuid NOT NULL REFERENCES referendums(id) ON DELETE CASCADE,
	category_id   uuid NOT NULL REFERENCES categories(id) ON DELETE CASCADE,
	PRIMARY KEY (referendum_id, category_id)
);

CREATE TABLE IF NOT EXISTS choices (
	id            uuid PRIMARY KEY,
	referendum_id uuid NOT NULL REFERENCES referendums(id) ON DELETE CASCADE,
	title         text NOT NULL,
	UNIQUE (referendum_id, title)
);

-- Ballots reference a choice and a timestamp, nothing else. The absence of
-- any voter or token column is the anonymity boundary.
CREATE TABLE IF NOT EXISTS ballots (
	id        uuid PRIMARY KEY,
	choice_id uuid NOT NULL REFERENCES choices(id) ON DELETE CASCADE,
	cast_at   timestamptz NOT NULL
);
CREATE INDEX IF NOT EXISTS ballots_choice_idx ON ballots (choice_id);

CREATE TABLE IF NOT EXISTS vote_tokens (
	id            uuid PRIMARY KEY,
	referendum_id uuid NOT NULL REFERENCES referendums(id) ON DELETE CASCADE,
	user_id       uuid NOT NULL,
	credential    text NOT NULL UNIQUE,
	redeemed      boolean NOT NULL DEFAULT false,
	created_at    timestamptz NOT NULL,
	UNIQUE (referendum_id, user_id)
);

CREATE TABLE IF NOT EXISTS identities (
	id          uuid PRIMARY KEY,
	user_id     uuid NOT NULL,
	valid_until timestamptz NOT NULL,
	created_at  timestamptz NOT NULL
);
CREATE INDEX IF NOT EXISTS identities_user_idx ON identities (user_id);
CREATE INDEX IF NOT EXISTS identities_valid_until_idx ON identities (valid_until);

CREATE TABLE IF NOT EXISTS citizen_permissions (
	user_id    uuid PRIMARY KEY,
	granted    boolean NOT NULL,
	updated_at timestamptz NOT NULL
);

CREATE TABLE IF NOT EXISTS achievements (
	id          uuid PRIMARY KEY,
	user_id     uuid NOT NULL,
	badge       text NOT NULL,
	unlocked_at timestamptz NOT NULL,
	UNIQUE (user_id, badge)
);

CREATE TABLE IF NOT EXISTS likes (
	referendum_id uuid NOT NULL REFERENCES referendums(id) ON DELETE CASCADE,
	user_id       uuid NOT NULL,
	created_at    timestamptz NOT NULL,
	PRIMARY KEY (referendum_id, user_id)
);

CREATE TABLE IF NOT EXISTS comments (
	id            uuid PRIMARY KEY,
	referendum_id uuid NOT NULL REFERENCES referendums(id) ON DELETE CASCADE,
	user_id       uuid NOT NULL,
	body          text NOT NULL,
	visible       boolean NOT NULL DEFAULT true,
	created_at    timestamptz NOT NULL,
	updated_at    timestamptz NOT NULL
);
CREATE INDEX IF NOT EXISTS comments_referendum_idx ON comments (referendum_id);

CREATE TABLE IF NOT EXISTS comment_reports (
	id         uuid PRIMARY KEY,
	comment_id uuid NOT NULL REFERENCES comments(id) ON DELETE CASCADE,
	user_id    uuid NOT NULL,
	reason     text NOT NULL,
	created_at timestamptz NOT NULL
);
`

// Migrate applies the schema. Safe to run on every startup.
func Migrate(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}
