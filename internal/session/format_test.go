package session

import "testing"

func TestTimeAgo(t *testing.T) {
	const now int64 = 1_748_779_200 // 2025-06-01 12:00:00 UTC

	tests := []struct {
		name string
		then int64
		want string
	}{
		{"seconds", now - 30, "just now"},
		{"one minute", now - 60, "1 minute ago"},
		{"minutes", now - 45*60, "45 minutes ago"},
		{"hours", now - 3*3600, "3 hours ago"},
		{"one day", now - 26*3600, "1 day ago"},
		{"weeks", now - 15*86400, "2 weeks ago"},
		{"months", now - 70*86400, "2 months ago"},
		{"future clamps", now + 300, "just now"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := TimeAgo(tt.then, now); got != tt.want {
				t.Errorf("TimeAgo = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDuration(t *testing.T) {
	const start int64 = 1_748_768_400 // 2025-06-01 09:00:00 UTC

	tests := []struct {
		name string
		end  int64
		want string
	}{
		{"seconds", start + 45, "45s"},
		{"minutes", start + 12*60, "12m"},
		{"exact hours", start + 2*3600, "2h"},
		{"hours and minutes", start + 2*3600 + 5*60, "2h 05m"},
		{"negative clamps", start - 60, "0s"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Duration(start, tt.end); got != tt.want {
				t.Errorf("Duration = %q, want %q", got, tt.want)
			}
		})
	}
}
