package main

import (
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

type PostgresRepository struct {
	db *sqlx.DB
}

func NewPostgresRepository(dbUrl string) (*PostgresRepository, error) {
	db, err := sqlx.Open("postgres", dbUrl)
	if err != nil {
		return nil, err
	}

	// make sure the required tables exist
	tables := []string{
		`create table if not exists playlist (
			position integer not null,
			video_id text not null,
			title text not null
		);`,
		`create table if not exists suggestions (
			suggestion_id text primary key,
			seq serial,
			video_id text not null unique,
			title text not null,
			votes bigint not null
		);`,
		`create table if not exists suggestion_voters (
			suggestion_id text not null,
			voter_id text not null,
			constraint unq unique(suggestion_id, voter_id)
		);`,
	}
	for _, t := range tables {
		if _, err := db.Exec(t); err != nil {
			return nil, fmt.Errorf("failed to create tables: %w", err)
		}
	}
	return &PostgresRepository{db: db}, nil
}

func (r *PostgresRepository) Playlist() ([]Song, error) {
	songs := make([]Song, 0)
	err := r.db.Select(&songs, `select video_id, title from playlist order by position;`)
	return songs, err
}

func (r *PostgresRepository) Suggestions() ([]Suggestion, error) {
	suggestions := make([]Suggestion, 0)
	err := r.db.Select(&suggestions,
		`select suggestion_id, video_id, title, votes from suggestions order by seq;`)
	return suggestions, err
}

func (r *PostgresRepository) ReplacePlaylist(songs []Song) error {
	return r.inTx(func(tx *sqlx.Tx) error {
		if _, err := tx.Exec(`delete from playlist;`); err != nil {
			return err
		}
		for i, song := range songs {
			if _, err := tx.Exec(`insert into playlist (position, video_id, title) values ($1, $2, $3);`,
				i, song.VideoID, song.Title); err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *PostgresRepository) InsertSuggestion(song Song, voterID string) (*Suggestion, error) {
	suggestion := &Suggestion{
		ID:      uuid.New().String(),
		VideoID: song.VideoID,
		Title:   song.Title,
		Votes:   1,
	}
	err := r.inTx(func(tx *sqlx.Tx) error {
		res, err := tx.Exec(`
			insert into suggestions (suggestion_id, video_id, title, votes)
			values ($1, $2, $3, 1)
			on conflict (video_id) do nothing;`,
			suggestion.ID, song.VideoID, song.Title)
		if err != nil {
			return err
		}
		if inserted, err := res.RowsAffected(); err != nil {
			return err
		} else if inserted == 0 {
			return ErrDuplicateSuggestion
		}
		_, err = tx.Exec(`insert into suggestion_voters (suggestion_id, voter_id) values ($1, $2);`,
			suggestion.ID, voterID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return suggestion, nil
}

func (r *PostgresRepository) IncrementVote(suggestionID, voterID string, enforceSingleVote bool) (*Suggestion, error) {
	suggestion := &Suggestion{}
	err := r.inTx(func(tx *sqlx.Tx) error {
		res, err := tx.Exec(`
			insert into suggestion_voters (suggestion_id, voter_id)
			values ($1, $2)
			on conflict (suggestion_id, voter_id) do nothing;`,
			suggestionID, voterID)
		if err != nil {
			return err
		}
		if enforceSingleVote {
			if inserted, err := res.RowsAffected(); err != nil {
				return err
			} else if inserted == 0 {
				var exists int
				if err := tx.QueryRow(`select 1 from suggestions where suggestion_id = $1;`, suggestionID).Scan(&exists); err == sql.ErrNoRows {
					return ErrNotFound
				} else if err != nil {
					return err
				}
				return ErrAlreadyVoted
			}
		}

		// additive update: concurrent votes are never lost
		return tx.QueryRow(`
			update suggestions set votes = votes + 1
			where suggestion_id = $1
			returning suggestion_id, video_id, title, votes;`,
			suggestionID).Scan(&suggestion.ID, &suggestion.VideoID, &suggestion.Title, &suggestion.Votes)
	})
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return suggestion, nil
}

func (r *PostgresRepository) ClearSuggestionsAndAppend(song Song, at int) error {
	return r.inTx(func(tx *sqlx.Tx) error {
		if err := clearSuggestionsPgTx(tx); err != nil {
			return err
		}

		var count int
		if err := tx.QueryRow(`select count(*) from playlist;`).Scan(&count); err != nil {
			return err
		}
		position := count
		if at >= 0 && at < count {
			position = at
			if _, err := tx.Exec(`update playlist set position = position + 1 where position >= $1;`, at); err != nil {
				return err
			}
		}
		_, err := tx.Exec(`insert into playlist (position, video_id, title) values ($1, $2, $3);`,
			position, song.VideoID, song.Title)
		return err
	})
}

func (r *PostgresRepository) ClearSuggestions() error {
	return r.inTx(clearSuggestionsPgTx)
}

func clearSuggestionsPgTx(tx *sqlx.Tx) error {
	if _, err := tx.Exec(`delete from suggestion_voters;`); err != nil {
		return err
	}
	_, err := tx.Exec(`delete from suggestions;`)
	return err
}

func (r *PostgresRepository) close() {
	r.db.Close()
}

func (r *PostgresRepository) inTx(fn func(tx *sqlx.Tx) error) error {
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
