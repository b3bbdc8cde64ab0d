package daemon

import (
	"context"
	"testing"

	"github.com/pilebones/go-udev/netlink"
)

func TestNetlinkMonitorRunning(t *testing.T) {
	t.Run("nil monitor returns false", func(t *testing.T) {
		var m *netlinkMonitor
		if m.Running() {
			t.Error("expected Running() to return false for nil monitor")
		}
	})

	t.Run("unstarted monitor returns false", func(t *testing.T) {
		m := newNetlinkMonitor(nil, nil)
		if m.Running() {
			t.Error("expected Running() to return false for unstarted monitor")
		}
	})
}

func TestNetlinkMonitorStopStartIdempotency(t *testing.T) {
	t.Run("stop on nil monitor is safe", func(t *testing.T) {
		var m *netlinkMonitor
		m.Stop() // must not panic
	})

	t.Run("start on nil monitor is safe", func(t *testing.T) {
		var m *netlinkMonitor
		if err := m.Start(context.Background()); err != nil {
			t.Fatalf("Start on nil monitor should return nil, got: %v", err)
		}
	})

	t.Run("stop on unstarted monitor is safe", func(t *testing.T) {
		m := newNetlinkMonitor(nil, nil)
		m.Stop() // must not panic
		if m.Running() {
			t.Error("expected Running() to return false after Stop on unstarted monitor")
		}
	})

	t.Run("double stop is safe", func(t *testing.T) {
		m := newNetlinkMonitor(nil, nil)
		m.Stop()
		m.Stop()
	})

	t.Run("start without netlink access is non-fatal", func(t *testing.T) {
		m := newNetlinkMonitor(nil, nil)
		// Connecting may fail in the test environment without privileges;
		// either way Start must not return a hard error.
		if err := m.Start(context.Background()); err != nil {
			t.Fatalf("Start should be non-fatal, got: %v", err)
		}
		m.Stop()
	})
}

func TestNetlinkBuildMatcher(t *testing.T) {
	m := newNetlinkMonitor(nil, nil)

	matcher := m.buildMatcher()
	if matcher == nil {
		t.Fatal("expected non-nil matcher")
	}

	addEvent := netlink.UEvent{
		Action: netlink.ADD,
		Env: map[string]string{
			"SUBSYSTEM": "video4linux",
			"DEVNAME":   "/dev/video0",
		},
	}
	if !matcher.Evaluate(addEvent) {
		t.Error("expected matcher to accept video device add event")
	}

	removeEvent := netlink.UEvent{
		Action: netlink.REMOVE,
		Env: map[string]string{
			"SUBSYSTEM": "video4linux",
			"DEVNAME":   "/dev/video0",
		},
	}
	if !matcher.Evaluate(removeEvent) {
		t.Error("expected matcher to accept video device remove event")
	}

	changeEvent := netlink.UEvent{
		Action: netlink.CHANGE,
		Env: map[string]string{
			"SUBSYSTEM": "video4linux",
			"DEVNAME":   "/dev/video0",
		},
	}
	if matcher.Evaluate(changeEvent) {
		t.Error("expected matcher to reject CHANGE action")
	}

	blockEvent := netlink.UEvent{
		Action: netlink.ADD,
		Env: map[string]string{
			"SUBSYSTEM": "block",
			"DEVNAME":   "/dev/sda",
		},
	}
	if matcher.Evaluate(blockEvent) {
		t.Error("expected matcher to reject non-video subsystem")
	}
}

func TestNetlinkHandleEvent(t *testing.T) {
	t.Run("ignores event without device name", func(t *testing.T) {
		var rescans int
		m := newNetlinkMonitor(nil, func() { rescans++ })
		m.handleEvent(netlink.UEvent{
			Action: netlink.ADD,
			Env:    map[string]string{},
		})
		if rescans != 0 {
			t.Error("rescan should not run for event without device name")
		}
	})

	t.Run("triggers rescan for named device", func(t *testing.T) {
		var rescans int
		m := newNetlinkMonitor(nil, func() { rescans++ })
		m.handleEvent(netlink.UEvent{
			Action: netlink.ADD,
			Env: map[string]string{
				"DEVNAME": "/dev/video0",
			},
		})
		if rescans != 1 {
			t.Errorf("expected 1 rescan, got %d", rescans)
		}
	})

	t.Run("triggers rescan for device derived from DEVPATH", func(t *testing.T) {
		var rescans int
		m := newNetlinkMonitor(nil, func() { rescans++ })
		m.handleEvent(netlink.UEvent{
			Action: netlink.REMOVE,
			Env: map[string]string{
				"DEVPATH": "/devices/platform/soc/fe801000.csi/video4linux/video0",
			},
		})
		if rescans != 1 {
			t.Errorf("expected 1 rescan, got %d", rescans)
		}
	})

	t.Run("nil rescan callback is safe", func(t *testing.T) {
		m := newNetlinkMonitor(nil, nil)
		m.handleEvent(netlink.UEvent{
			Action: netlink.ADD,
			Env: map[string]string{
				"DEVNAME": "/dev/video0",
			},
		})
	})
}

func TestExtractDeviceName(t *testing.T) {
	cases := []struct {
		name string
		env  map[string]string
		want string
	}{
		{
			name: "devname wins",
			env:  map[string]string{"DEVNAME": "/dev/video0", "DEVPATH": "/devices/x/video1"},
			want: "/dev/video0",
		},
		{
			name: "devpath fallback",
			env:  map[string]string{"DEVPATH": "/devices/platform/soc/video4linux/video2"},
			want: "/dev/video2",
		},
		{
			name: "no device info",
			env:  map[string]string{},
			want: "",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := extractDeviceName(netlink.UEvent{Env: tc.env})
			if got != tc.want {
				t.Fatalf("expected %q, got %q", tc.want, got)
			}
		})
	}
}
