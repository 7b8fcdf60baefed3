package main

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/smartystreets/goconvey/convey"

	"github.com/okian/hogu/internal/adapters/mq/bus"
	"github.com/okian/hogu/internal/config"
	"github.com/okian/hogu/internal/domain/protocol"
	"github.com/okian/hogu/pkg/metrics"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestRootCommand(t *testing.T) {
	convey.Convey("Given the root command", t, func() {
		cmd := newRootCmd()

		convey.Convey("Then every subcommand should be registered", func() {
			names := map[string]bool{}
			for _, c := range cmd.Commands() {
				names[c.Name()] = true
			}
			for _, want := range []string{"serve", "migrate", "archive", "restore"} {
				convey.So(names[want], convey.ShouldBeTrue)
			}
		})
	})
}

func TestMaintenanceCommands(t *testing.T) {
	convey.Convey("Given a temporary sqlite database", t, func() {
		t.Setenv("HOGU_DB_DSN", filepath.Join(t.TempDir(), "hogu.db"))
		t.Setenv("HOGU_LOG_LEVEL", "error")

		convey.Convey("When migrating", func() {
			out, err := run(t, "migrate")

			convey.Convey("Then the schema should be created", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(out, convey.ShouldContainSubstring, "schema up to date (sqlite)")
			})
		})

		convey.Convey("When archiving an empty store", func() {
			out, err := run(t, "archive", "--days", "7")

			convey.Convey("Then nothing should move", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(out, convey.ShouldContainSubstring, "archived 0 events")
			})
		})

		convey.Convey("When restoring a range", func() {
			out, err := run(t, "restore", "--start", "2025-01-01T00:00:00Z", "--end", "2025-02-01T00:00:00Z")

			convey.Convey("Then nothing should move", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(out, convey.ShouldContainSubstring, "restored 0 events")
			})
		})

		convey.Convey("When restoring with a malformed start", func() {
			_, err := run(t, "restore", "--start", "monday", "--end", "2025-02-01T00:00:00Z")

			convey.Convey("Then it should fail", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(err.Error(), convey.ShouldContainSubstring, "invalid --start")
			})
		})

		convey.Convey("When archiving with negative days", func() {
			_, err := run(t, "archive", "--days=-1")

			convey.Convey("Then it should fail", func() {
				convey.So(err, convey.ShouldNotBeNil)
			})
		})
	})

	convey.Convey("Given an unsupported driver", t, func() {
		t.Setenv("HOGU_DB_DRIVER", "oracle")

		convey.Convey("When migrating", func() {
			_, err := run(t, "migrate")

			convey.Convey("Then configuration should be rejected", func() {
				convey.So(err, convey.ShouldNotBeNil)
			})
		})
	})
}

func TestServeOptions(t *testing.T) {
	convey.Convey("Given the default configuration", t, func() {
		cfg := config.New(context.Background())

		convey.Convey("Then it should map onto service options", func() {
			opts := serveOptions(cfg, protocol.New(), bus.New())
			convey.So(len(opts), convey.ShouldBeGreaterThan, 10)
		})

		convey.Convey("Then no relay should start without a broker URL", func() {
			conn, err := startRelay(context.Background(), cfg, nil)
			convey.So(err, convey.ShouldBeNil)
			convey.So(conn, convey.ShouldBeNil)
		})
	})
}

func TestSetupMetrics(t *testing.T) {
	convey.Convey("Given metrics settings in the environment", t, func() {
		t.Setenv("HOGU_LOG_LEVEL", "error")
		t.Setenv("HOGU_METRICS_NAMESPACE", "courtside")
		t.Setenv("HOGU_METRICS_LABELS", "court=7")
		t.Setenv("HOGU_METRICS_REFRESH_S", "3")
		defer func() { _ = metrics.Configure() }()

		convey.Convey("When setup runs", func() {
			_, err := setup(context.Background())
			convey.So(err, convey.ShouldBeNil)
			metrics.RecordDatagram(6)

			convey.Convey("Then series should carry the namespace and labels", func() {
				families, err := metrics.GetRegistry().Gather()
				convey.So(err, convey.ShouldBeNil)
				var found bool
				for _, f := range families {
					if f.GetName() != "courtside_pss_datagrams_received_total" {
						continue
					}
					found = true
					labels := f.GetMetric()[0].GetLabel()
					convey.So(labels, convey.ShouldHaveLength, 1)
					convey.So(labels[0].GetName(), convey.ShouldEqual, "court")
					convey.So(labels[0].GetValue(), convey.ShouldEqual, "7")
				}
				convey.So(found, convey.ShouldBeTrue)
				convey.So(metrics.RefreshInterval(), convey.ShouldEqual, 3*time.Second)
			})
		})
	})
}

func TestSystemMetrics(t *testing.T) {
	convey.Convey("When updating system metrics", t, func() {
		convey.So(updateSystemMetrics, convey.ShouldNotPanic)
	})
}
