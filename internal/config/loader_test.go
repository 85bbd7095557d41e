package config_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/okian/rota/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfigLoader(t *testing.T) {
	convey.Convey("Given a config loader", t, func() {
		ctx := context.Background()
		clearConfigEnvVars(t)

		convey.Convey("When loading config with defaults only", func() {
			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load successfully with defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
				convey.So(cfg.CandidateLimit, convey.ShouldEqual, 20)
				convey.So(cfg.TopN, convey.ShouldEqual, 3)
				convey.So(cfg.RotationWeights, convey.ShouldResemble, []float64{0.5, 0.3, 0.2})
				convey.So(cfg.AgentMinReputation, convey.ShouldEqual, 2.5)
				convey.So(cfg.MentorMinCompleted, convey.ShouldEqual, 25)
				convey.So(cfg.MentorMinReputation, convey.ShouldEqual, 4.0)
				convey.So(cfg.BonusAmount().StringFixed(2), convey.ShouldEqual, "5.00")
				convey.So(cfg.DatabaseURL, convey.ShouldBeEmpty)
			})
		})

		convey.Convey("When loading config with environment variables", func() {
			t.Setenv("ROTA_ADDR", ":8080")
			t.Setenv("ROTA_QUEUE_SIZE", "128")
			t.Setenv("ROTA_WORKER_COUNT", "16")
			t.Setenv("ROTA_DEDUPE_TTL", "90m")
			t.Setenv("ROTA_TOP_N", "2")
			t.Setenv("ROTA_MENTORSHIP_BONUS", "7.25")

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should override defaults with env vars", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
				convey.So(cfg.QueueSize, convey.ShouldEqual, 128)
				convey.So(cfg.WorkerCount, convey.ShouldEqual, 16)
				convey.So(cfg.DedupeTTL, convey.ShouldEqual, 90*time.Minute)
				convey.So(cfg.TopN, convey.ShouldEqual, 2)
				convey.So(cfg.BonusAmount().StringFixed(2), convey.ShouldEqual, "7.25")
			})
		})

		convey.Convey("When loading config with YAML file", func() {
			path := filepath.Join(t.TempDir(), "rota.yaml")
			yaml := "addr: \":7070\"\ncandidate_limit: 50\ntop_n: 2\nrotation_weights: [0.6, 0.4]\ndatabase_url: \"postgres://localhost/rota\"\n"
			convey.So(os.WriteFile(path, []byte(yaml), 0o600), convey.ShouldBeNil)
			t.Setenv("ROTA_CONFIG", path)

			cfg, err := config.Load(ctx)

			convey.Convey("Then file values apply", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":7070")
				convey.So(cfg.CandidateLimit, convey.ShouldEqual, 50)
				convey.So(cfg.TopN, convey.ShouldEqual, 2)
				convey.So(cfg.RotationWeights, convey.ShouldResemble, []float64{0.6, 0.4})
				convey.So(cfg.DatabaseURL, convey.ShouldEqual, "postgres://localhost/rota")
			})

			convey.Convey("And the environment wins over the file", func() {
				t.Setenv("ROTA_ADDR", ":6060")
				cfg, err := config.Load(ctx)
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":6060")
			})
		})

		convey.Convey("When the config file is missing", func() {
			t.Setenv("ROTA_CONFIG", filepath.Join(t.TempDir(), "absent.yaml"))
			_, err := config.Load(ctx)
			convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
		})

		convey.Convey("When top_n outnumbers the rotation weights", func() {
			t.Setenv("ROTA_TOP_N", "4")
			_, err := config.Load(ctx)
			convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
			convey.So(err.Error(), convey.ShouldContainSubstring, "one weight per rank")
		})

		convey.Convey("When a value is invalid", func() {
			t.Setenv("ROTA_MENTORSHIP_BONUS", "-1")
			_, err := config.Load(ctx)
			convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
		})
	})
}

func clearConfigEnvVars(t *testing.T) {
	for _, key := range []string{
		"ROTA_CONFIG", "ROTA_ADDR", "ROTA_QUEUE_SIZE", "ROTA_WORKER_COUNT",
		"ROTA_DEDUPE_TTL", "ROTA_TOP_N", "ROTA_MENTORSHIP_BONUS",
	} {
		t.Setenv(key, "")
		_ = os.Unsetenv(key)
	}
}

func TestValidate(t *testing.T) {
	convey.Convey("Given the defaults", t, func() {
		cfg := config.New()
		convey.So(cfg.Validate(), convey.ShouldBeNil)

		cases := []struct {
			name   string
			mutate func(c *config.Config)
		}{
			{"empty addr", func(c *config.Config) { c.Addr = " " }},
			{"zero limit", func(c *config.Config) { c.CandidateLimit = 0 }},
			{"zero top n", func(c *config.Config) { c.TopN = 0 }},
			{"no weights", func(c *config.Config) { c.RotationWeights = nil }},
			{"fewer weights than top n", func(c *config.Config) { c.TopN = 4 }},
			{"negative weight", func(c *config.Config) { c.RotationWeights = []float64{0.5, -0.1} }},
			{"zero queue", func(c *config.Config) { c.QueueSize = 0 }},
			{"negative rep", func(c *config.Config) { c.AgentMinReputation = -1 }},
			{"unparseable bonus", func(c *config.Config) { c.MentorshipBonus = "five" }},
			{"zero bonus", func(c *config.Config) { c.MentorshipBonus = "0" }},
		}
		for _, tc := range cases {
			convey.Convey("Then "+tc.name+" is rejected", func() {
				c := config.New()
				tc.mutate(c)
				convey.So(errors.Is(c.Validate(), config.ErrInvalidConfig), convey.ShouldBeTrue)
			})
		}
	})
}
