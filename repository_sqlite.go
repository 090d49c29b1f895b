package main

import (
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

type SQLiteRepository struct {
	db *sqlx.DB
}

func NewSQLiteRepository(filePath string) (*SQLiteRepository, error) {
	db, err := sqlx.Open("sqlite3", filePath)
	if err != nil {
		return nil, err
	}

	// sqlite serializes writers; one connection keeps transactions
	// from tripping over SQLITE_BUSY
	db.SetMaxOpenConns(1)

	tables := []string{
		`create table if not exists playlist (
			position integer not null,
			video_id text not null,
			title text not null
		);`,
		`create table if not exists suggestions (
			suggestion_id text primary key,
			video_id text not null unique,
			title text not null,
			votes integer not null
		);`,
		`create table if not exists suggestion_voters (
			suggestion_id text not null,
			voter_id text not null,
			unique(suggestion_id, voter_id)
		);`,
	}
	for _, t := range tables {
		if _, err := db.Exec(t); err != nil {
			return nil, fmt.Errorf("failed to create tables: %w", err)
		}
	}
	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Playlist() ([]Song, error) {
	songs := make([]Song, 0)
	err := r.db.Select(&songs, `select video_id, title from playlist order by position;`)
	return songs, err
}

func (r *SQLiteRepository) Suggestions() ([]Suggestion, error) {
	// rowid preserves insertion order
	suggestions := make([]Suggestion, 0)
	err := r.db.Select(&suggestions,
		`select suggestion_id, video_id, title, votes from suggestions order by rowid;`)
	return suggestions, err
}

func (r *SQLiteRepository) ReplacePlaylist(songs []Song) error {
	return r.inTx(func(tx *sqlx.Tx) error {
		if _, err := tx.Exec(`delete from playlist;`); err != nil {
			return err
		}
		for i, song := range songs {
			if _, err := tx.Exec(`insert into playlist (position, video_id, title) values (?, ?, ?);`,
				i, song.VideoID, song.Title); err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *SQLiteRepository) InsertSuggestion(song Song, voterID string) (*Suggestion, error) {
	suggestion := &Suggestion{
		ID:      uuid.New().String(),
		VideoID: song.VideoID,
		Title:   song.Title,
		Votes:   1,
	}
	err := r.inTx(func(tx *sqlx.Tx) error {
		var exists int
		err := tx.QueryRow(`select 1 from suggestions where video_id = ?;`, song.VideoID).Scan(&exists)
		if err == nil {
			return ErrDuplicateSuggestion
		}
		if err != sql.ErrNoRows {
			return err
		}

		if _, err := tx.Exec(`insert into suggestions (suggestion_id, video_id, title, votes) values (?, ?, ?, 1);`,
			suggestion.ID, song.VideoID, song.Title); err != nil {
			return err
		}
		_, err = tx.Exec(`insert into suggestion_voters (suggestion_id, voter_id) values (?, ?);`,
			suggestion.ID, voterID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return suggestion, nil
}

func (r *SQLiteRepository) IncrementVote(suggestionID, voterID string, enforceSingleVote bool) (*Suggestion, error) {
	suggestion := &Suggestion{}
	err := r.inTx(func(tx *sqlx.Tx) error {
		res, err := tx.Exec(`insert or ignore into suggestion_voters (suggestion_id, voter_id) values (?, ?);`,
			suggestionID, voterID)
		if err != nil {
			return err
		}
		if enforceSingleVote {
			if inserted, err := res.RowsAffected(); err != nil {
				return err
			} else if inserted == 0 {
				// voter row already there; only an error if the
				// suggestion itself exists
				var exists int
				if err := tx.QueryRow(`select 1 from suggestions where suggestion_id = ?;`, suggestionID).Scan(&exists); err == sql.ErrNoRows {
					return ErrNotFound
				} else if err != nil {
					return err
				}
				return ErrAlreadyVoted
			}
		}

		// additive update: concurrent votes are never lost
		res, err = tx.Exec(`update suggestions set votes = votes + 1 where suggestion_id = ?;`, suggestionID)
		if err != nil {
			return err
		}
		if updated, err := res.RowsAffected(); err != nil {
			return err
		} else if updated == 0 {
			return ErrNotFound
		}

		return tx.QueryRow(`select suggestion_id, video_id, title, votes from suggestions where suggestion_id = ?;`,
			suggestionID).Scan(&suggestion.ID, &suggestion.VideoID, &suggestion.Title, &suggestion.Votes)
	})
	if err != nil {
		return nil, err
	}
	return suggestion, nil
}

func (r *SQLiteRepository) ClearSuggestionsAndAppend(song Song, at int) error {
	return r.inTx(func(tx *sqlx.Tx) error {
		if err := clearSuggestionsTx(tx); err != nil {
			return err
		}

		var count int
		if err := tx.QueryRow(`select count(*) from playlist;`).Scan(&count); err != nil {
			return err
		}
		position := count
		if at >= 0 && at < count {
			position = at
			if _, err := tx.Exec(`update playlist set position = position + 1 where position >= ?;`, at); err != nil {
				return err
			}
		}
		_, err := tx.Exec(`insert into playlist (position, video_id, title) values (?, ?, ?);`,
			position, song.VideoID, song.Title)
		return err
	})
}

func (r *SQLiteRepository) ClearSuggestions() error {
	return r.inTx(clearSuggestionsTx)
}

func clearSuggestionsTx(tx *sqlx.Tx) error {
	if _, err := tx.Exec(`delete from suggestion_voters;`); err != nil {
		return err
	}
	_, err := tx.Exec(`delete from suggestions;`)
	return err
}

func (r *SQLiteRepository) close() {
	r.db.Close()
}

func (r *SQLiteRepository) inTx(fn func(tx *sqlx.Tx) error) error {
	tx, err := r.db.Beginx()
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}
