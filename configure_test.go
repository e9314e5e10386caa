package wlshim

import (
	"testing"

	"deedles.dev/wlshim/xdg"
)

func TestCompatible(t *testing.T) {
	tests := []struct {
		name  string
		conf  Configure
		w, h  int32
		flags States
		want  bool
	}{
		{
			name: "floating accepts any size",
			conf: Configure{Serial: 1, Width: 640, Height: 480},
			w:    100, h: 900,
			want: true,
		},
		{
			name: "floating accepts zero size",
			conf: Configure{Serial: 1},
			w:    800, h: 600,
			want: true,
		},
		{
			name: "maximized demands exact size",
			conf: Configure{Serial: 2, Width: 1920, Height: 1080, Flags: Maximized},
			w:    1920, h: 1080,
			flags: Maximized,
			want:  true,
		},
		{
			name: "maximized rejects other sizes",
			conf: Configure{Serial: 2, Width: 1920, Height: 1080, Flags: Maximized},
			w:    1920, h: 1079,
			flags: Maximized,
			want:  false,
		},
		{
			name: "fullscreen accepts smaller",
			conf: Configure{Serial: 3, Width: 1920, Height: 1080, Flags: Fullscreen},
			w:    1280, h: 720,
			flags: Fullscreen,
			want:  true,
		},
		{
			name: "fullscreen rejects larger",
			conf: Configure{Serial: 3, Width: 1920, Height: 1080, Flags: Fullscreen},
			w:    1920, h: 1081,
			flags: Fullscreen,
			want:  false,
		},
		{
			name: "wanted state missing from configuration",
			conf: Configure{Serial: 4, Width: 800, Height: 600},
			w:    800, h: 600,
			flags: Maximized,
			want:  false,
		},
		{
			name: "wanted state present among others",
			conf: Configure{Serial: 5, Width: 800, Height: 600, Flags: Maximized | Activated},
			w:    800, h: 600,
			flags: Maximized,
			want:  true,
		},
		{
			name: "no wanted state ignores extra configured states",
			conf: Configure{Serial: 6, Width: 800, Height: 600, Flags: Activated},
			w:    320, h: 240,
			want: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := compatible(tt.conf, tt.w, tt.h, tt.flags); got != tt.want {
				t.Errorf("compatible(%+v, %v, %v, %v) = %v, want %v",
					tt.conf, tt.w, tt.h, tt.flags, got, tt.want)
			}
		})
	}
}

func TestStatesString(t *testing.T) {
	tests := []struct {
		s    States
		want string
	}{
		{0, "none"},
		{Maximized, "maximized"},
		{Fullscreen, "fullscreen"},
		{Maximized | Activated, "maximized|activated"},
		{Maximized | Activated | Resizing | Fullscreen, "maximized|activated|resizing|fullscreen"},
	}
	for _, tt := range tests {
		if got := tt.s.String(); got != tt.want {
			t.Errorf("States(%b).String() = %q, want %q", uint32(tt.s), got, tt.want)
		}
	}
}

func TestStateFlags(t *testing.T) {
	got := stateFlags([]xdg.ToplevelState{
		xdg.ToplevelStateMaximized,
		xdg.ToplevelStateActivated,
		xdg.ToplevelState(99), // unknown states are dropped
	})
	want := Maximized | Activated
	if got != want {
		t.Errorf("stateFlags() = %v, want %v", got, want)
	}

	if got := stateFlags(nil); got != 0 {
		t.Errorf("stateFlags(nil) = %v, want 0", got)
	}
}
