package service

import (
	"testing"
	"time"
)

type stubTasks struct{ tasks []TaskStatus }

func (s stubTasks) Tasks() []TaskStatus { return s.tasks }

type stubSync struct{ st SyncState }

func (s stubSync) State() SyncState { return s.st }

type stubLink bool

func (l stubLink) Connected() bool { return bool(l) }

func TestMonitoringService_GetStatus(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)
	catalog := newStaticCatalog(devTmp, devPhh)

	cases := []struct {
		name      string
		tasks     []TaskStatus
		link      ConnectionProbe
		wantTasks int
		wantConn  bool
	}{
		{name: "nil tasks become empty slice", tasks: nil, link: stubLink(true), wantTasks: 0, wantConn: true},
		{name: "tasks passed through", tasks: []TaskStatus{{Code: "tmp/1", Active: true}}, link: stubLink(false), wantTasks: 1},
		{name: "no link probe", tasks: nil, link: nil},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			svc := NewMonitoringService("node-1", catalog, stubTasks{tc.tasks}, stubSync{SyncState{Phase: PhaseIdle, PendingAlerts: 2}}, tc.link)
			svc.now = func() time.Time { return now }

			got := svc.GetStatus()
			if got.Tasks == nil || len(got.Tasks) != tc.wantTasks {
				t.Fatalf("tasks = %v, want %d entries", got.Tasks, tc.wantTasks)
			}
			if got.SerialConnected != tc.wantConn {
				t.Errorf("serialConnected = %v, want %v", got.SerialConnected, tc.wantConn)
			}
			if got.CatalogDevices != 2 || got.NodeUUID != "node-1" || !got.GeneratedAt.Equal(now) {
				t.Errorf("unexpected status header: %+v", got)
			}
			if got.Sync.Phase != PhaseIdle || got.Sync.PendingAlerts != 2 {
				t.Errorf("unexpected sync state: %+v", got.Sync)
			}
		})
	}
}
