// Copyright 2025, Command Line Inc.
// SPDX-License-Identifier: Apache-2.0

// Package telemetrystore keeps per-transaction commit, diff and mount timings
// in sqlite so runs can be compared afterwards.
package telemetrystore

import (
	"context"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"log"
	"sync/atomic"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/wavetermdev/shadowtree/pkg/differ"
	"github.com/wavetermdev/shadowtree/pkg/mounting"
)

const MaxMountErrorLen = 500
const DefaultListLimit = 100
const recordTimeout = 2 * time.Second

type CountsData differ.MutationCounts

func (cd CountsData) Value() (driver.Value, error) {
	barr, err := json.Marshal(cd)
	if err != nil {
		return nil, err
	}
	return string(barr), nil
}

func (cd *CountsData) Scan(val interface{}) error {
	barrVal, ok := val.([]byte)
	if !ok {
		strVal, ok := val.(string)
		if !ok {
			return fmt.Errorf("cannot scan '%T' into '%T'", val, cd)
		}
		barrVal = []byte(strVal)
	}
	if len(barrVal) == 0 {
		barrVal = []byte("{}")
	}
	return json.Unmarshal(barrVal, cd)
}

type TransactionRecord struct {
	SurfaceId    string     `db:"surfaceid" json:"surfaceid"`
	TxNum        int64      `db:"txnum" json:"txnum"`
	Source       string     `db:"source" json:"source"`
	CommitTs     int64      `db:"committs" json:"committs"`
	CommitMs     float64    `db:"commitms" json:"commitms"`
	LayoutMs     float64    `db:"layoutms" json:"layoutms"`
	DiffMs       float64    `db:"diffms" json:"diffms"`
	MountMs      float64    `db:"mountms" json:"mountms"`
	Measured     int        `db:"measured" json:"measured"`
	Cloned       int        `db:"cloned" json:"cloned"`
	Coalesced    int        `db:"coalesced" json:"coalesced"`
	Counts       CountsData `db:"counts" json:"counts"`
	NumMutations int        `db:"nummutations" json:"nummutations"`
	MountError   string     `db:"mounterror" json:"mounterror,omitempty"`
}

func durationMs(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000
}

// MakeRecord flattens a mounted transaction into a row.
func MakeRecord(tx *mounting.Transaction, mountErr error) *TransactionRecord {
	tel := tx.Telemetry
	rec := &TransactionRecord{
		SurfaceId:    tx.SurfaceId,
		TxNum:        tx.Number,
		Source:       tel.Commit.Source,
		CommitTs:     tel.Commit.CommitStart.UnixMilli(),
		CommitMs:     durationMs(tel.Commit.CommitDuration()),
		LayoutMs:     durationMs(tel.Commit.LayoutDuration()),
		DiffMs:       durationMs(tel.DiffDuration()),
		MountMs:      durationMs(tel.MountDuration()),
		Measured:     tel.Commit.Measured,
		Cloned:       tel.Commit.Cloned,
		Coalesced:    tx.CoalescedCount,
		Counts:       CountsData(tel.Counts),
		NumMutations: tel.Counts.Total(),
	}
	if rec.Source == "" {
		// the initial mount has no commit behind it
		rec.Source = "mount"
	}
	if tel.Commit.CommitStart.IsZero() {
		rec.CommitTs = tel.DiffStart.UnixMilli()
	}
	if mountErr != nil {
		rec.MountError = mountErr.Error()
		if len(rec.MountError) > MaxMountErrorLen {
			rec.MountError = rec.MountError[0:MaxMountErrorLen]
		}
	}
	return rec
}

type Store struct {
	db        *sqlx.DB
	version   uint
	errCount  atomic.Int32
	recordCnt atomic.Int64
}

// Open opens (or creates) the telemetry db at dbName and migrates it.
// An empty name or ":memory:" gives a private in-memory db.
func Open(ctx context.Context, dbName string) (*Store, error) {
	db, err := makeDB(ctx, dbName)
	if err != nil {
		return nil, err
	}
	version, err := migrateUp(db.DB)
	if err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db, version: version}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) SchemaVersion() uint {
	return s.version
}

func (s *Store) Insert(ctx context.Context, rec *TransactionRecord) error {
	return s.WithTx(ctx, func(tx *TxWrap) error {
		query := `SELECT txnum FROM db_transaction WHERE surfaceid = ? AND txnum = ?`
		if tx.Exists(query, rec.SurfaceId, rec.TxNum) {
			return fmt.Errorf("transaction %d for surface %s already recorded", rec.TxNum, rec.SurfaceId)
		}
		query = `INSERT INTO db_transaction
                   (surfaceid, txnum, source, committs, commitms, layoutms, diffms, mountms, measured, cloned, coalesced, counts, nummutations, mounterror)
                 VALUES
                   (:surfaceid, :txnum, :source, :committs, :commitms, :layoutms, :diffms, :mountms, :measured, :cloned, :coalesced, :counts, :nummutations, :mounterror)`
		tx.NamedExec(query, rec)
		return nil
	})
}

// RecordTransaction makes Store usable as a mounting telemetry sink. Errors
// are logged and counted, never returned to the mounting layer.
func (s *Store) RecordTransaction(tx *mounting.Transaction, mountErr error) {
	ctx, cancelFn := context.WithTimeout(context.Background(), recordTimeout)
	defer cancelFn()
	err := s.Insert(ctx, MakeRecord(tx, mountErr))
	if err != nil {
		s.errCount.Add(1)
		log.Printf("[telemetrystore] error recording %s: %v\n", tx, err)
		return
	}
	s.recordCnt.Add(1)
}

func (s *Store) ErrorCount() int {
	return int(s.errCount.Load())
}

func (s *Store) RecordCount() int64 {
	return s.recordCnt.Load()
}

// List returns the newest records first. An empty surfaceId lists every
// surface.
func (s *Store) List(ctx context.Context, surfaceId string, limit int) ([]*TransactionRecord, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	return WithTxRtn(ctx, s, func(tx *TxWrap) ([]*TransactionRecord, error) {
		var rtn []*TransactionRecord
		if surfaceId == "" {
			query := `SELECT * FROM db_transaction ORDER BY committs DESC, txnum DESC LIMIT ?`
			tx.Select(&rtn, query, limit)
		} else {
			query := `SELECT * FROM db_transaction WHERE surfaceid = ? ORDER BY txnum DESC LIMIT ?`
			tx.Select(&rtn, query, surfaceId, limit)
		}
		return rtn, nil
	})
}

func (s *Store) Surfaces(ctx context.Context) ([]string, error) {
	return WithTxRtn(ctx, s, func(tx *TxWrap) ([]string, error) {
		query := `SELECT DISTINCT surfaceid FROM db_transaction ORDER BY surfaceid`
		return tx.SelectStrings(query), nil
	})
}

type SurfaceSummary struct {
	SurfaceId    string  `db:"surfaceid" json:"surfaceid"`
	NumTx        int     `db:"numtx" json:"numtx"`
	NumMutations int     `db:"nummutations" json:"nummutations"`
	NumErrors    int     `db:"numerrors" json:"numerrors"`
	AvgCommitMs  float64 `db:"avgcommitms" json:"avgcommitms"`
	AvgDiffMs    float64 `db:"avgdiffms" json:"avgdiffms"`
	AvgMountMs   float64 `db:"avgmountms" json:"avgmountms"`
	MaxDiffMs    float64 `db:"maxdiffms" json:"maxdiffms"`
}

func (s *Store) Summary(ctx context.Context, surfaceId string) (*SurfaceSummary, error) {
	return WithTxRtn(ctx, s, func(tx *TxWrap) (*SurfaceSummary, error) {
		var rtn SurfaceSummary
		query := `SELECT surfaceid, count(*) AS numtx, sum(nummutations) AS nummutations,
                         sum(CASE WHEN mounterror = '' THEN 0 ELSE 1 END) AS numerrors,
                         avg(commitms) AS avgcommitms, avg(diffms) AS avgdiffms, avg(mountms) AS avgmountms, max(diffms) AS maxdiffms
                  FROM db_transaction WHERE surfaceid = ? GROUP BY surfaceid`
		if !tx.Get(&rtn, query, surfaceId) {
			return nil, fmt.Errorf("no telemetry for surface %s", surfaceId)
		}
		return &rtn, nil
	})
}

// Prune deletes records older than cutoff and returns how many went.
func (s *Store) Prune(ctx context.Context, cutoff time.Time) (int, error) {
	return WithTxRtn(ctx, s, func(tx *TxWrap) (int, error) {
		query := `SELECT count(*) FROM db_transaction WHERE committs < ?`
		count := tx.GetInt(query, cutoff.UnixMilli())
		query = `DELETE FROM db_transaction WHERE committs < ?`
		tx.Exec(query, cutoff.UnixMilli())
		return count, nil
	})
}
