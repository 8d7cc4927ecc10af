package logging

import "testing"

func TestHasFmtVerb(t *testing.T) {
	tests := []struct {
		msg  string
		want bool
	}{
		{"plain message", false},
		{"value is %d", true},
		{"loaded %s from %s", true},
		{"100%% done", false}, // escaped percent is not a verb
		{"trailing percent %", false},
		{"catalog: refreshed", false}, // structured-style message
		{"", false},
	}
	for _, tt := range tests {
		if got := hasFmtVerb(tt.msg); got != tt.want {
			t.Errorf("hasFmtVerb(%q) = %v, want %v", tt.msg, got, tt.want)
		}
	}
}

// Structured calls pass their args through as key-values, printf-style calls
// format the message: both shapes must route without panicking.
func TestLogMsgShapes(t *testing.T) {
	Init(nil)
	L_info("plain message")
	L_info("value is %d", 42)
	L_info("catalog: refreshed", "region", "us-east-1", "count", 7)
}
