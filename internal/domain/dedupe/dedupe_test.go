package dedupe_test

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	dedupe "github.com/okian/rota/internal/domain/dedupe"
	. "github.com/smartystreets/goconvey/convey"
)

func TestInMemoryDeduper(t *testing.T) {
	ctx := context.Background()

	Convey("Given a new InMemoryDeduper", t, func() {
		d := dedupe.NewInMemoryDeduper()

		Convey("Then it starts empty", func() {
			So(d.Size(), ShouldEqual, 0)
		})

		Convey("When the event is new", func() {
			seen, err := d.SeenAndRecord(ctx, "event-1")

			Convey("Then it should return false and record the event", func() {
				So(err, ShouldBeNil)
				So(seen, ShouldBeFalse)
				So(d.Size(), ShouldEqual, 1)
			})

			Convey("And recording it again reports a duplicate", func() {
				seen, err := d.SeenAndRecord(ctx, "event-1")
				So(err, ShouldBeNil)
				So(seen, ShouldBeTrue)
				So(d.Size(), ShouldEqual, 1)
			})

			Convey("And unrecording it allows a retry", func() {
				So(d.Unrecord(ctx, "event-1"), ShouldBeNil)
				So(d.Size(), ShouldEqual, 0)
				seen, _ := d.SeenAndRecord(ctx, "event-1")
				So(seen, ShouldBeFalse)
			})
		})

		Convey("When unrecording an unknown event", func() {
			So(d.Unrecord(ctx, "missing"), ShouldBeNil)
			So(d.Size(), ShouldEqual, 0)
		})

		Convey("When recording empty and very long ids", func() {
			long := strings.Repeat("x", 10000)
			seen, _ := d.SeenAndRecord(ctx, "")
			So(seen, ShouldBeFalse)
			seen, _ = d.SeenAndRecord(ctx, long)
			So(seen, ShouldBeFalse)
			seen, _ = d.SeenAndRecord(ctx, long)
			So(seen, ShouldBeTrue)
		})
	})

	Convey("Given a bounded deduper at capacity", t, func() {
		d := dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(3))
		for _, id := range []string{"a", "b", "c"} {
			_, _ = d.SeenAndRecord(ctx, id)
		}

		Convey("When a new id arrives", func() {
			seen, _ := d.SeenAndRecord(ctx, "d")

			Convey("Then the oldest id is evicted", func() {
				So(seen, ShouldBeFalse)
				So(d.Size(), ShouldEqual, 3)
				again, _ := d.SeenAndRecord(ctx, "a")
				So(again, ShouldBeFalse)
				kept, _ := d.SeenAndRecord(ctx, "d")
				So(kept, ShouldBeTrue)
			})
		})
	})

	Convey("Given an unbounded deduper", t, func() {
		d := dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(-1))
		for i := range 1000 {
			_, _ = d.SeenAndRecord(ctx, fmt.Sprintf("event-%d", i))
		}
		So(d.Size(), ShouldEqual, 1000)
		seen, _ := d.SeenAndRecord(ctx, "event-0")
		So(seen, ShouldBeTrue)
	})

	Convey("Given a deduper with a TTL", t, func() {
		now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
		d := dedupe.NewInMemoryDeduper(
			dedupe.WithTTL(time.Minute),
			dedupe.WithClock(func() time.Time { return now }),
		)
		_, _ = d.SeenAndRecord(ctx, "event-1")

		Convey("Then ids inside the window are duplicates", func() {
			now = now.Add(30 * time.Second)
			seen, _ := d.SeenAndRecord(ctx, "event-1")
			So(seen, ShouldBeTrue)
		})

		Convey("Then ids past the window are forgotten", func() {
			now = now.Add(2 * time.Minute)
			seen, _ := d.SeenAndRecord(ctx, "event-1")
			So(seen, ShouldBeFalse)
			So(d.Size(), ShouldEqual, 1)
		})
	})
}

func TestInMemoryDeduper_Concurrent(t *testing.T) {
	Convey("Given goroutines racing on the same ids", t, func() {
		ctx := context.Background()
		d := dedupe.NewInMemoryDeduper()
		var wg sync.WaitGroup
		var mu sync.Mutex
		fresh := 0

		for range 20 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for i := range 100 {
					seen, err := d.SeenAndRecord(ctx, fmt.Sprintf("event-%d", i))
					if err == nil && !seen {
						mu.Lock()
						fresh++
						mu.Unlock()
					}
				}
			}()
		}
		wg.Wait()

		Convey("Then each id is new exactly once", func() {
			So(fresh, ShouldEqual, 100)
			So(d.Size(), ShouldEqual, 100)
		})
	})
}

func TestRedisDeduper(t *testing.T) {
	url := os.Getenv("ROTA_TEST_REDIS_URL")
	if url == "" {
		t.Skip("ROTA_TEST_REDIS_URL not set")
	}

	Convey("Given a Redis deduper", t, func() {
		ctx := context.Background()
		client, err := dedupe.Connect(ctx, url)
		So(err, ShouldBeNil)
		defer client.Close()

		prefix := fmt.Sprintf("rota:test:%d:", time.Now().UnixNano())
		d := dedupe.NewRedisDeduper(client, dedupe.WithKeyPrefix(prefix), dedupe.WithKeyTTL(time.Minute))

		seen, err := d.SeenAndRecord(ctx, "event-1")
		So(err, ShouldBeNil)
		So(seen, ShouldBeFalse)

		seen, err = d.SeenAndRecord(ctx, "event-1")
		So(err, ShouldBeNil)
		So(seen, ShouldBeTrue)
		So(d.Size(), ShouldEqual, 1)

		So(d.Unrecord(ctx, "event-1"), ShouldBeNil)
		So(d.Size(), ShouldEqual, 0)
		seen, _ = d.SeenAndRecord(ctx, "event-1")
		So(seen, ShouldBeFalse)
		So(d.Unrecord(ctx, "event-1"), ShouldBeNil)
	})

	Convey("Given an invalid Redis url", t, func() {
		_, err := dedupe.Connect(context.Background(), "::not a url")
		So(err, ShouldNotBeNil)
	})
}
