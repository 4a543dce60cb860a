// Copyright 2026 The avicap Authors.
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation; either version 2 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package log

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	bolt "go.etcd.io/bbolt"
)

func newTestDB(t *testing.T) (*DB, context.CancelFunc) {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "logs.db")

	logDB := NewDB(dbPath, &sync.WaitGroup{})

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, logDB.Init(ctx))

	return logDB, cancel
}

func keyCount(t *testing.T, logDB *DB) int {
	t.Helper()
	var n int
	err := logDB.db.View(func(tx *bolt.Tx) error {
		n = tx.Bucket([]byte(dbAPIversion)).Stats().KeyN
		return nil
	})
	require.NoError(t, err)
	return n
}

func TestQuery(t *testing.T) {
	msg1 := Log{Level: LevelError, Time: 4000, Src: "capture", Session: "a.avi", Msg: "msg1"}
	msg2 := Log{Level: LevelWarning, Time: 3000, Src: "capture", Msg: "msg2"}
	msg3 := Log{Level: LevelInfo, Time: 2000, Src: "app", Session: "b.avi", Msg: "msg3"}

	logDB, cancel := newTestDB(t)
	defer cancel()

	require.NoError(t, logDB.saveLog(msg1))
	require.NoError(t, logDB.saveLog(msg2))
	require.NoError(t, logDB.saveLog(msg3))

	all := []Level{LevelError, LevelWarning, LevelInfo, LevelDebug}
	cases := map[string]struct {
		input    Query
		expected []Log
	}{
		"singleLevel": {
			Query{Levels: []Level{LevelWarning}},
			[]Log{msg2},
		},
		"multipleLevels": {
			Query{Levels: []Level{LevelError, LevelWarning}, Sources: []string{"capture"}},
			[]Log{msg1, msg2},
		},
		"singleSource": {
			Query{Levels: []Level{LevelError, LevelInfo}, Sources: []string{"capture"}},
			[]Log{msg1},
		},
		"multipleSources": {
			Query{Levels: []Level{LevelError, LevelInfo}, Sources: []string{"capture", "app"}},
			[]Log{msg1, msg3},
		},
		"singleSession": {
			Query{Sessions: []string{"a.avi"}},
			[]Log{msg1},
		},
		"multipleSessions": {
			Query{Sessions: []string{"a.avi", "b.avi"}},
			[]Log{msg1, msg3},
		},
		"all": {
			Query{Levels: all},
			[]Log{msg1, msg2, msg3},
		},
		"limit": {
			Query{Limit: 2},
			[]Log{msg1, msg2},
		},
		"limit2": {
			Query{Levels: []Level{LevelInfo}, Limit: 1},
			[]Log{msg3},
		},
		"exactTime": {
			Query{Time: 4000},
			[]Log{msg2, msg3},
		},
		"time": {
			Query{Time: 3500},
			[]Log{msg2, msg3},
		},
		"futureTime": {
			Query{Time: 9000},
			[]Log{msg1, msg2, msg3},
		},
		"noMatch": {
			Query{Sources: []string{"x"}},
			nil,
		},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			logs, err := logDB.Query(tc.input)
			require.NoError(t, err)
			require.Equal(t, tc.expected, logs)
		})
	}
}

func TestQueryInvalid(t *testing.T) {
	logDB, cancel := newTestDB(t)
	defer cancel()

	err := logDB.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(dbAPIversion)).Put([]byte("invalid"), []byte("nil"))
	})
	require.NoError(t, err)

	_, err = logDB.Query(Query{})
	require.ErrorIs(t, err, ErrInvalidLog)
}

func TestQueryEmpty(t *testing.T) {
	logDB, cancel := newTestDB(t)
	defer cancel()

	logs, err := logDB.Query(Query{})
	require.NoError(t, err)
	require.Empty(t, logs)
}

func TestDB(t *testing.T) {
	t.Run("maxKeys", func(t *testing.T) {
		logDB, cancel := newTestDB(t)
		defer cancel()

		logDB.maxKeys = 3
		require.Equal(t, 0, keyCount(t, logDB))

		for i := 1; i <= 5; i++ {
			require.NoError(t, logDB.saveLog(Log{Time: UnixMicro(i)}))
		}
		require.Equal(t, 3, keyCount(t, logDB))

		logs, err := logDB.Query(Query{})
		require.NoError(t, err)
		require.Equal(t, []Log{{Time: 5}, {Time: 4}, {Time: 3}}, logs)
	})
	t.Run("sameTime", func(t *testing.T) {
		logDB, cancel := newTestDB(t)
		defer cancel()

		require.NoError(t, logDB.saveLog(Log{Time: 10, Msg: "a"}))
		require.NoError(t, logDB.saveLog(Log{Time: 10, Msg: "b"}))
		require.Equal(t, 2, keyCount(t, logDB))
	})
	t.Run("saveLogs", func(t *testing.T) {
		logDB, cancel := newTestDB(t)
		defer cancel()

		ctx, cancel2 := context.WithCancel(context.Background())
		defer cancel2()
		logger := NewMockLogger()
		logger.Start(ctx)

		go logDB.SaveLogs(ctx, logger)
		// Wait for subscription.
		time.Sleep(10 * time.Millisecond)
		logger.Info().Src("capture").Session("a.avi").Msg("started")

		require.Eventually(t, func() bool {
			logs, err := logDB.Query(Query{Sessions: []string{"a.avi"}})
			return err == nil && len(logs) == 1 && logs[0].Msg == "started"
		}, time.Second, 5*time.Millisecond)
	})
	t.Run("openDBerr", func(t *testing.T) {
		logDB := NewDB("/dev/null", &sync.WaitGroup{})
		require.Error(t, logDB.Init(context.Background()))
	})
}
