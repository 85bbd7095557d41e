package database_test

import (
	"context"
	"errors"
	"testing"

	"github.com/okian/rota/internal/adapters/database"
	. "github.com/smartystreets/goconvey/convey"
)

func TestDetectDriver(t *testing.T) {
	Convey("Given connection strings", t, func() {
		cases := map[string]database.Driver{
			"":                              database.DriverSQLite,
			"postgres://u:p@localhost/rota": database.DriverPostgres,
			"postgresql://localhost/rota":   database.DriverPostgres,
			"sqlite:///var/lib/rota.db":     database.DriverSQLite,
			"file:rota.db?cache=shared":     database.DriverSQLite,
			"/tmp/rota.sqlite3":             database.DriverSQLite,
			"host=localhost dbname=rota":    database.DriverPostgres,
		}
		for url, want := range cases {
			So(database.DetectDriver(url), ShouldEqual, want)
		}

		So(database.DriverPostgres.IsValid(), ShouldBeTrue)
		So(database.Driver("mysql").IsValid(), ShouldBeFalse)
		So(database.SQLitePath("sqlite:///tmp/x.db"), ShouldEqual, "/tmp/x.db")
	})
}

func TestRebind(t *testing.T) {
	Convey("Given a query with ? placeholders", t, func() {
		q := "UPDATE tasks SET status = ? WHERE id = ? AND status = ?"

		Convey("Postgres gets numbered placeholders", func() {
			So(database.Rebind(database.DriverPostgres, q), ShouldEqual,
				"UPDATE tasks SET status = $1 WHERE id = $2 AND status = $3")
		})

		Convey("SQLite keeps the query as is", func() {
			So(database.Rebind(database.DriverSQLite, q), ShouldEqual, q)
		})
	})
}

func TestOpen(t *testing.T) {
	Convey("Given an unknown driver", t, func() {
		_, err := database.Open(context.Background(), database.Config{Driver: "mysql", URL: "mysql://x"})
		So(errors.Is(err, database.ErrUnsupportedDriver), ShouldBeTrue)
	})

	Convey("Given a driver whose package is not linked", t, func() {
		_, err := database.Open(context.Background(), database.Config{URL: "postgres://localhost/rota"})
		So(errors.Is(err, database.ErrDriverNotLinked), ShouldBeTrue)
	})

	Convey("IsNoRows recognises wrapped sentinels", t, func() {
		So(database.IsNoRows(nil), ShouldBeFalse)
		So(database.IsNoRows(database.ErrNoRows), ShouldBeTrue)
		So(database.IsNoRows(errors.New("other")), ShouldBeFalse)
	})
}
