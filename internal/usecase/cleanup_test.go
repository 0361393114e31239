package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

type staticOwners []string

func (s staticOwners) Owners() ([]string, error) {
	return s, nil
}

type failingOwners struct{}

func (failingOwners) Owners() ([]string, error) {
	return nil, errors.New("data directory unreadable")
}

func TestCleanup(t *testing.T) {
	Convey("Given a cleanup job with 7-day retention", t, func() {
		ctx := context.Background()
		backend := newFakeBackend()

		seed := func(ownerID, name string, age time.Duration) {
			if backend.objects[ownerID] == nil {
				backend.objects[ownerID] = make(map[string][]byte)
				backend.createdAt[ownerID] = make(map[string]time.Time)
			}
			backend.objects[ownerID][name] = []byte(name)
			backend.createdAt[ownerID][name] = time.Now().Add(-age)
		}

		Convey("When owners hold a mix of old and recent backups", func() {
			seed("owner-a", "ancient.gz", 30*24*time.Hour)
			seed("owner-a", "recent.gz", 24*time.Hour)
			seed("owner-b", "stale.gz", 10*24*time.Hour)

			uc := NewCleanup(backend, staticOwners{"owner-a", "owner-b"}, nopLogger{}, 7)
			err := uc.Execute(ctx)

			Convey("It should delete only backups past the cutoff", func() {
				So(err, ShouldBeNil)

				_, ancientLeft := backend.objects["owner-a"]["ancient.gz"]
				So(ancientLeft, ShouldBeFalse)

				_, recentLeft := backend.objects["owner-a"]["recent.gz"]
				So(recentLeft, ShouldBeTrue)

				_, staleLeft := backend.objects["owner-b"]["stale.gz"]
				So(staleLeft, ShouldBeFalse)
			})
		})

		Convey("When the backend listing fails", func() {
			backend.listErr = errors.New("listing unavailable")
			seed("owner-a", "ancient.gz", 30*24*time.Hour)

			uc := NewCleanup(backend, staticOwners{"owner-a"}, nopLogger{}, 7)
			err := uc.Execute(ctx)

			Convey("It should log and move on without failing the job", func() {
				So(err, ShouldBeNil)
				_, stillThere := backend.objects["owner-a"]["ancient.gz"]
				So(stillThere, ShouldBeTrue)
			})
		})

		Convey("When owners cannot be enumerated", func() {
			uc := NewCleanup(backend, failingOwners{}, nopLogger{}, 7)

			Convey("It should not return an error", func() {
				So(uc.Execute(ctx), ShouldBeNil)
			})
		})
	})
}
