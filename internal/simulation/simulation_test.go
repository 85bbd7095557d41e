package simulation_test

import (
	"context"
	"errors"
	"testing"

	"github.com/okian/rota/internal/adapters/repository"
	"github.com/okian/rota/internal/domain/types"
	"github.com/okian/rota/internal/simulation"
	. "github.com/smartystreets/goconvey/convey"
)

func TestPopulate(t *testing.T) {
	Convey("Given the same seed twice", t, func() {
		ctx := context.Background()
		cfg := simulation.Config{Operators: 30, Agents: 4, Tasks: 10, Workers: 1, Seed: 42, Contenders: 1}

		a, err := simulation.Populate(ctx, repository.NewInMemoryStore(), cfg)
		So(err, ShouldBeNil)
		b, err := simulation.Populate(ctx, repository.NewInMemoryStore(), cfg)
		So(err, ShouldBeNil)

		Convey("Then the marketplaces are identical", func() {
			So(a.Operators, ShouldResemble, b.Operators)
			So(a.Agents, ShouldResemble, b.Agents)
			So(a.TaskIDs, ShouldResemble, b.TaskIDs)
			So(len(a.TaskIDs), ShouldEqual, 10)
		})

		Convey("And a different seed changes them", func() {
			cfg.Seed = 43
			c, err := simulation.Populate(ctx, repository.NewInMemoryStore(), cfg)
			So(err, ShouldBeNil)
			So(c.TaskIDs[0], ShouldNotEqual, a.TaskIDs[0])
		})
	})
}

func TestRun(t *testing.T) {
	Convey("Given a concurrent run with two contenders per task", t, func() {
		cfg := simulation.Config{Operators: 120, Agents: 10, Tasks: 300, Workers: 8, Seed: 7, Contenders: 2}
		report, err := simulation.Run(context.Background(), cfg, nil)
		So(err, ShouldBeNil)

		Convey("Then every task is decided exactly once", func() {
			So(report.Assigned+report.Unassigned, ShouldEqual, cfg.Tasks)
			So(report.Assigned, ShouldBeGreaterThan, 0)
			So(report.Reasons[types.ReasonAssignmentConflict], ShouldEqual, report.Assigned)

			wins := 0
			for _, n := range report.WinsByBand {
				wins += n
			}
			So(wins, ShouldEqual, report.Assigned)
		})

		Convey("And work is spread beyond the top scorer", func() {
			So(report.DistinctWinners, ShouldBeGreaterThan, 1)
			So(report.TopRankedShare(), ShouldBeLessThan, 0.95)
			So(report.TopRankedShare(), ShouldBeGreaterThan, 0.3)
		})

		Convey("And bands are listed from least to most experienced", func() {
			bands := report.Bands()
			So(len(bands), ShouldBeGreaterThan, 1)
			So(bands[0], ShouldEqual, "newcomer")
		})
	})

	Convey("Given an invalid configuration", t, func() {
		_, err := simulation.Run(context.Background(), simulation.Config{}, nil)
		So(errors.Is(err, simulation.ErrInvalidConfig), ShouldBeTrue)
	})

	Convey("Given a cancelled context", t, func() {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		cfg := simulation.DefaultConfig()
		cfg.Tasks = 5
		_, err := simulation.Run(ctx, cfg, nil)
		So(err, ShouldNotBeNil)
	})
}
