package server_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"daily-leaderboard/internal/config"
	"daily-leaderboard/internal/database"
	"daily-leaderboard/internal/dayclock"
	"daily-leaderboard/internal/db"
	"daily-leaderboard/internal/domain"
	"daily-leaderboard/internal/metrics"
	"daily-leaderboard/internal/repository"
	"daily-leaderboard/internal/server"
	"daily-leaderboard/internal/service"

	"github.com/rs/zerolog"
	. "github.com/smartystreets/goconvey/convey"
)

const playerHeader = "X-Player-Id"

type fixture struct {
	mux   *http.ServeMux
	clock *dayclock.ManualClock
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	sqlDB, err := database.Open("sqlite3", filepath.Join(t.TempDir(), "board.db"), zerolog.Nop())
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() { sqlDB.Close() })

	clock := dayclock.NewManualClock(time.Date(2026, 5, 1, 2, 0, 0, 0, time.UTC))
	repo := repository.NewRankRepository(sqlDB, db.New(sqlDB, db.DialectSQLite), zerolog.Nop())
	m := metrics.NewManager()
	ranking := service.NewRankingService(repo, dayclock.New(clock), m, zerolog.Nop())

	cfg := config.Defaults()
	srv := server.NewLeaderboardServer(ranking, repo, m, &cfg, zerolog.Nop())
	mux := http.NewServeMux()
	srv.Register(mux)
	return &fixture{mux: mux, clock: clock}
}

func (f *fixture) do(method, target, player, body string) *httptest.ResponseRecorder {
	f.clock.Advance(time.Millisecond)
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	if player != "" {
		req.Header.Set(playerHeader, player)
	}
	w := httptest.NewRecorder()
	f.mux.ServeHTTP(w, req)
	return w
}

func decode[T any](w *httptest.ResponseRecorder) T {
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		panic(err)
	}
	return v
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func TestSubmitEndpoint(t *testing.T) {
	Convey("Given the leaderboard API", t, func() {
		f := newFixture(t)

		Convey("When a player submits a first score", func() {
			w := f.do(http.MethodPost, server.SubmitPath, "alice", `{"playerName":"Alice","roleId":3,"score":500}`)

			Convey("Then the response carries the new rank", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				res := decode[domain.SubmitResult](w)
				So(res.Updated, ShouldBeTrue)
				So(res.Score, ShouldEqual, 500)
				So(res.RoleID, ShouldEqual, 3)
				So(*res.Rank, ShouldEqual, 1)
				So(res.Date, ShouldEqual, "2026-05-01")
			})

			Convey("And a lower resubmission reports updated false with a null rank", func() {
				w := f.do(http.MethodPost, server.SubmitPath, "alice", `{"playerName":"Alice","score":10}`)
				So(w.Code, ShouldEqual, http.StatusOK)
				So(w.Body.String(), ShouldContainSubstring, `"rank":null`)
				res := decode[domain.SubmitResult](w)
				So(res.Updated, ShouldBeFalse)
				So(res.Score, ShouldEqual, 500)
			})
		})

		Convey("When the identity header is missing", func() {
			w := f.do(http.MethodPost, server.SubmitPath, "", `{"playerName":"Alice","score":1}`)

			Convey("Then the request is unauthorized", func() {
				So(w.Code, ShouldEqual, http.StatusUnauthorized)
				So(decode[errorBody](w).Code, ShouldEqual, "unauthorized")
			})
		})

		Convey("When the body is invalid", func() {
			bodies := []string{
				`not json`,
				`{"playerName":"Alice"}`,
				`{"playerName":"Alice","score":1.5}`,
				`{"playerName":"Alice","score":-1}`,
				`{"playerName":"Alice","score":"abc"}`,
				`{"playerName":"Alice","score":1,"roleId":-2}`,
				`{"playerName":"Alice","score":1,"roleId":2.5}`,
				`{"playerName":"   ","score":1}`,
			}

			Convey("Then each is rejected with 400", func() {
				for _, body := range bodies {
					w := f.do(http.MethodPost, server.SubmitPath, "alice", body)
					So(w.Code, ShouldEqual, http.StatusBadRequest)
					So(decode[errorBody](w).Code, ShouldEqual, "bad_request")
				}
			})
		})

		Convey("When the wrong method is used", func() {
			w := f.do(http.MethodGet, server.SubmitPath, "alice", "")

			Convey("Then the mux rejects it", func() {
				So(w.Code, ShouldEqual, http.StatusMethodNotAllowed)
			})
		})
	})
}

func TestReadEndpoints(t *testing.T) {
	Convey("Given a board with three players", t, func() {
		f := newFixture(t)
		f.do(http.MethodPost, server.SubmitPath, "a", `{"playerName":"Ann","score":300}`)
		f.do(http.MethodPost, server.SubmitPath, "b", `{"playerName":"Ben","roleId":2,"score":200}`)
		f.do(http.MethodPost, server.SubmitPath, "c", `{"playerName":"Cal","score":100}`)

		Convey("When the board is listed anonymously", func() {
			w := f.do(http.MethodGet, server.ListPath, "", "")

			Convey("Then entries are ranked and personal fields are null", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				board := decode[domain.Leaderboard](w)
				So(len(board.Entries), ShouldEqual, 3)
				So(board.Entries[0].PlayerName, ShouldEqual, "Ann")
				So(board.Entries[2].Rank, ShouldEqual, 3)
				So(board.MyRank, ShouldBeNil)
				So(board.Date, ShouldEqual, "2026-05-01")
			})
		})

		Convey("When a player lists with a limit", func() {
			w := f.do(http.MethodGet, server.ListPath+"?limit=1&date=2026-05-01", "b", "")

			Convey("Then own standing comes from the full board", func() {
				board := decode[domain.Leaderboard](w)
				So(len(board.Entries), ShouldEqual, 1)
				So(*board.MyRank, ShouldEqual, 2)
				So(*board.MyScore, ShouldEqual, 200)
				So(*board.MyRoleID, ShouldEqual, 2)
			})
		})

		Convey("When list parameters are malformed", func() {
			for _, target := range []string{
				server.ListPath + "?limit=0",
				server.ListPath + "?limit=101",
				server.ListPath + "?limit=ten",
				server.ListPath + "?date=2026-13-01",
				server.ListPath + "?date=yesterday",
			} {
				w := f.do(http.MethodGet, target, "", "")
				So(w.Code, ShouldEqual, http.StatusBadRequest)
			}
		})

		Convey("When a player asks for their rank", func() {
			w := f.do(http.MethodGet, server.MyRankPath, "b", "")

			Convey("Then they are on the board", func() {
				me := decode[domain.MyRank](w)
				So(me.OnRank, ShouldBeTrue)
				So(*me.Rank, ShouldEqual, 2)
				So(me.PlayerName, ShouldEqual, "Ben")
			})
		})

		Convey("When an unknown player asks for their rank", func() {
			w := f.do(http.MethodGet, server.MyRankPath, "zed", "")

			Convey("Then onRank is false with no details", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(w.Body.String(), ShouldNotContainSubstring, `"rank"`)
				So(decode[domain.MyRank](w).OnRank, ShouldBeFalse)
			})
		})

		Convey("When my rank is requested without identity", func() {
			w := f.do(http.MethodGet, server.MyRankPath, "", "")
			So(w.Code, ShouldEqual, http.StatusUnauthorized)
		})

		Convey("When stats are requested", func() {
			w := f.do(http.MethodGet, server.StatsPath, "", "")

			Convey("Then the counts and threshold match the board", func() {
				stats := decode[domain.Stats](w)
				So(stats.TotalPlayers, ShouldEqual, 3)
				So(stats.Top100Count, ShouldEqual, 3)
				So(stats.Top100MinScore, ShouldEqual, 100)
			})
		})

		Convey("When stats are requested for an empty day", func() {
			stats := decode[domain.Stats](f.do(http.MethodGet, server.StatsPath+"?date=2026-04-01", "", ""))
			So(stats.TotalPlayers, ShouldEqual, 0)
			So(stats.Top100MinScore, ShouldEqual, 0)
		})
	})
}

func TestOperationalEndpoints(t *testing.T) {
	Convey("Given the leaderboard API", t, func() {
		f := newFixture(t)

		Convey("When health is checked", func() {
			w := f.do(http.MethodGet, server.HealthPath, "", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, `"status":"ok"`)
		})

		Convey("When metrics are scraped after traffic", func() {
			f.do(http.MethodGet, server.StatsPath, "", "")
			w := f.do(http.MethodGet, server.MetricsPath, "", "")

			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, "leaderboard_http_requests_total")
		})
	})
}

type failingRanking struct{}

func (failingRanking) Today() string { return "2026-05-01" }

func (failingRanking) Submit(context.Context, domain.SubmitInput) (*domain.SubmitResult, error) {
	return nil, errors.New("disk I/O error")
}

func (failingRanking) Leaderboard(context.Context, string, string, int) (*domain.Leaderboard, error) {
	return nil, errors.New("disk I/O error")
}

func (failingRanking) MyRank(context.Context, string, string) (*domain.MyRank, error) {
	return nil, errors.New("disk I/O error")
}

func (failingRanking) Stats(context.Context, string) (*domain.Stats, error) {
	return nil, errors.New("disk I/O error")
}

type downPinger struct{}

func (downPinger) Ping(context.Context) error { return errors.New("connection refused") }

func TestFailures(t *testing.T) {
	Convey("Given a server whose dependencies are failing", t, func() {
		cfg := config.Defaults()
		srv := server.NewLeaderboardServer(failingRanking{}, downPinger{}, metrics.NewManager(), &cfg, zerolog.Nop())
		mux := http.NewServeMux()
		srv.Register(mux)

		Convey("When a read is requested", func() {
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, server.StatsPath, nil))

			Convey("Then a generic 500 is returned", func() {
				So(w.Code, ShouldEqual, http.StatusInternalServerError)
				body := decode[errorBody](w)
				So(body.Code, ShouldEqual, "internal_error")
				So(body.Message, ShouldNotContainSubstring, "disk")
			})
		})

		Convey("When health is checked", func() {
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, server.HealthPath, nil))
			So(w.Code, ShouldEqual, http.StatusServiceUnavailable)
		})
	})
}
