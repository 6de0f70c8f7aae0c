package domain

import "testing"

func TestHumanize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{string(TicketStatusOpen), "Open"},
		{string(TicketChannelWebForm), "Web form"},
		{string(TicketChannelGetSatisfaction), "Get satisfaction"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := Humanize(tt.in); got != tt.want {
			t.Errorf("Humanize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
	if got := Humanize(TicketStatusSolved); got != "Solved" {
		t.Errorf("Humanize(TicketStatusSolved) = %q, want Solved", got)
	}
}

func TestEnumValid(t *testing.T) {
	if !TicketStatusClosed.Valid() || TicketStatus("DELETED").Valid() {
		t.Error("TicketStatus.Valid misclassifies values")
	}
	if !TicketChannelChat.Valid() || TicketChannel("FAX").Valid() {
		t.Error("TicketChannel.Valid misclassifies values")
	}
}
