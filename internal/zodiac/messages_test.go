package zodiac

import "testing"

func TestDecode_Pulse(t *testing.T) {
	cases := []struct {
		name string
		msg  PulseMessage
	}{
		{"valid utc", PulseMessage{SecondsIntoWeek: 302400, Valid: true, UTCSynced: true}},
		{"not valid", PulseMessage{SecondsIntoWeek: 0, Valid: false, UTCSynced: true}},
		{"not utc synced", PulseMessage{SecondsIntoWeek: 604799, Valid: true, UTCSynced: false}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Decode(EncodePulse(tc.msg))
			if err != nil {
				t.Fatalf("Decode() error: %v", err)
			}
			pm, ok := got.(PulseMessage)
			if !ok {
				t.Fatalf("decoded %T want PulseMessage", got)
			}
			if pm != tc.msg {
				t.Fatalf("decoded %+v want %+v", pm, tc.msg)
			}
		})
	}
}

func TestDecode_Geodetic(t *testing.T) {
	want := PositionMessage{NavValid: true, GPSWeek: 1000, SecondsIntoWeek: 2*604800 + 5}
	got, err := Decode(EncodeGeodetic(want))
	if err != nil {
		t.Fatalf("Decode() error: %v", err)
	}
	pm, ok := got.(PositionMessage)
	if !ok {
		t.Fatalf("decoded %T want PositionMessage", got)
	}
	if pm != want {
		t.Fatalf("decoded %+v want %+v", pm, want)
	}
}

func TestDecode_UnrecognizedIDDropped(t *testing.T) {
	msg, err := Decode(Frame{ID: 1217, Payload: []uint16{1, 2, 3}})
	if err != nil {
		t.Fatalf("Decode() error: %v", err)
	}
	if msg != nil {
		t.Fatalf("decoded %+v want nil", msg)
	}
}

func TestDecode_ShortPayloadIsError(t *testing.T) {
	if _, err := Decode(Frame{ID: MsgIDPulse, Payload: []uint16{1}}); err == nil {
		t.Fatalf("expected error for short pulse payload")
	}
	if _, err := Decode(Frame{ID: MsgIDGeodetic, Payload: []uint16{0, 1}}); err == nil {
		t.Fatalf("expected error for short geodetic payload")
	}
}
