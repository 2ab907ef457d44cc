package route

import "testing"

func TestParseAirport(t *testing.T) {
	tests := []struct {
		input   string
		want    Airport
		wantErr bool
	}{
		{input: "SAEZ/11", want: Airport{ICAO: "SAEZ", Runway: "11"}},
		{input: "YSSY/34L", want: Airport{ICAO: "YSSY", Runway: "34L"}},
		{input: "SABE", want: Airport{ICAO: "SABE"}},
		{input: " saez / 11 ", want: Airport{ICAO: "SAEZ", Runway: "11"}},
		{input: "K1G4", want: Airport{ICAO: "K1G4"}},
		{input: "SAEZ/", wantErr: true},
		{input: "EZE", wantErr: true},
		{input: "SAEZZ/11", wantErr: true},
		{input: "", wantErr: true},
		{input: "/11", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseAirport(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParseAirport(%q) = %+v, expected error", tt.input, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseAirport(%q) unexpected error: %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("ParseAirport(%q) = %+v, want %+v", tt.input, got, tt.want)
			}
		})
	}
}

func TestAirportString(t *testing.T) {
	if got := (Airport{ICAO: "SAEZ", Runway: "11"}).String(); got != "SAEZ/11" {
		t.Errorf("String() = %q, want SAEZ/11", got)
	}
	if got := (Airport{ICAO: "SABE"}).String(); got != "SABE" {
		t.Errorf("String() = %q, want SABE", got)
	}
}

func TestSynthesize(t *testing.T) {
	if wp := Synthesize(nil, Departure, 0); wp != nil {
		t.Errorf("Synthesize(nil) = %+v, want nil", wp)
	}

	a := &Airport{ICAO: "SABE", Runway: "13"}
	wp := Synthesize(a, Destination, 7)
	if wp == nil {
		t.Fatal("expected waypoint")
	}
	if wp.Sequence != 7 || wp.Role != Destination || wp.Airport != *a {
		t.Errorf("Synthesize = %+v", wp)
	}
	if wp.Role.String() != "destination" || Departure.String() != "departure" {
		t.Errorf("Role strings = %q, %q", wp.Role.String(), Departure.String())
	}
}
