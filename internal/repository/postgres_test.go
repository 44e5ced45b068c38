package repository

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"

	"github.com/bohanco/hpimage/internal/archive"
)

func testRecord(market, urlBase string) *archive.Record {
	return &archive.Record{
		Market:      market,
		Date:        time.Date(2019, 5, 22, 0, 0, 0, 0, time.FixedZone("+08:00", 8*3600)),
		Description: "Sky lanterns over Pingxi",
		Link:        "https://www.bing.com/search?q=lanterns",
		Image: archive.Image{
			Name:      "PingxiSky",
			URLBase:   urlBase,
			Copyright: "Wan Ru Chen/Getty Images",
			HighRes:   true,
		},
	}
}

func TestInsertWritesImagesAndArchives(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewPostgresStoreWithPool(mock)
	require.NoError(t, err)

	rec := testRecord("zh-CN", "/az/hprichbg/rb/PingxiSky_ZH-CN0458915063")
	rec.Hotspots = json.RawMessage(`[{"x":1}]`)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO images").
		WithArgs(
			rec.Image.URLBase,
			rec.Image.Name,
			rec.Image.Copyright,
			true,
			nil,
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("INSERT INTO archives").
		WithArgs(
			"zh-CN",
			"2019-05-22",
			rec.Description,
			rec.Link,
			`[{"x":1}]`,
			nil,
			rec.Image.URLBase,
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	err = store.Insert(context.Background(), []*archive.Record{rec})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertDeduplicatesSharedImages(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewPostgresStoreWithPool(mock)
	require.NoError(t, err)

	// Two markets reporting the same image must produce a single image row.
	urlBase := "/az/hprichbg/rb/PineBough_ROW6233127332"
	first := testRecord("en-US", urlBase)
	second := testRecord("en-GB", urlBase)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO images").
		WithArgs(urlBase, first.Image.Name, first.Image.Copyright, true, nil).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("INSERT INTO archives").
		WithArgs("en-US", "2019-05-22", first.Description, first.Link, nil, nil, urlBase).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("INSERT INTO archives").
		WithArgs("en-GB", "2019-05-22", second.Description, second.Link, nil, nil, urlBase).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	err = store.Insert(context.Background(), []*archive.Record{first, second})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertRollsBackOnFailure(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewPostgresStoreWithPool(mock)
	require.NoError(t, err)

	rec := testRecord("zh-CN", "/az/hprichbg/rb/PingxiSky_ZH-CN0458915063")

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO images").
		WithArgs(rec.Image.URLBase, rec.Image.Name, rec.Image.Copyright, true, nil).
		WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	err = store.Insert(context.Background(), []*archive.Record{rec})
	require.ErrorContains(t, err, "disk full")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertNoRecords(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewPostgresStoreWithPool(mock)
	require.NoError(t, err)

	require.NoError(t, store.Insert(context.Background(), nil))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUnreadyImages(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewPostgresStoreWithPool(mock)
	require.NoError(t, err)

	mock.ExpectQuery("SELECT urlbase, wp FROM images").
		WillReturnRows(pgxmock.NewRows([]string{"urlbase", "wp"}).
			AddRow("/az/hprichbg/rb/PineBough_ROW6233127332", true).
			AddRow("/az/hprichbg/rb/PingxiSky_ZH-CN0458915063", false))

	images, err := store.UnreadyImages(context.Background())
	require.NoError(t, err)
	require.Equal(t, map[string]bool{
		"/az/hprichbg/rb/PineBough_ROW6233127332":   true,
		"/az/hprichbg/rb/PingxiSky_ZH-CN0458915063": false,
	}, images)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSetImagesReady(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewPostgresStoreWithPool(mock)
	require.NoError(t, err)

	urlBases := []string{
		"/az/hprichbg/rb/PineBough_ROW6233127332",
		"/az/hprichbg/rb/PingxiSky_ZH-CN0458915063",
	}
	mock.ExpectExec("UPDATE images SET available = TRUE").
		WithArgs(urlBases).
		WillReturnResult(pgxmock.NewResult("UPDATE", 2))

	require.NoError(t, store.SetImagesReady(context.Background(), urlBases))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSetImagesReadyEmpty(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewPostgresStoreWithPool(mock)
	require.NoError(t, err)

	require.NoError(t, store.SetImagesReady(context.Background(), nil))
	require.NoError(t, mock.ExpectationsWereMet())
}
