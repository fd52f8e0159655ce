package core

import "testing"

func TestParseDecimalToCents(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    int64
		wantErr bool
	}{
		{name: "dot separator", input: "12.34", want: 1234},
		{name: "comma separator", input: "12,34", want: 1234},
		{name: "integer only", input: "500", want: 50000},
		{name: "single fractional digit", input: "7.5", want: 750},
		{name: "third digit rounds down", input: "12.344", want: 1234},
		{name: "third digit rounds up", input: "12.346", want: 1235},
		{name: "zero allowed", input: "0", want: 0},
		{name: "leading dot", input: ".99", want: 99},
		{name: "empty", input: "", wantErr: true},
		{name: "negative rejected", input: "-1.00", wantErr: true},
		{name: "plus rejected", input: "+1.00", wantErr: true},
		{name: "letters rejected", input: "12a.34", wantErr: true},
		{name: "two dots rejected", input: "1.2.3", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseDecimalToCents(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseDecimalToCents(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("ParseDecimalToCents(%q) = %d, want %d", tt.input, got, tt.want)
			}
		})
	}
}

func TestParseSignedCents(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    int64
		wantErr bool
	}{
		{name: "negative expense", input: "-520.00", want: -52000},
		{name: "explicit plus", input: "+12.50", want: 1250},
		{name: "unsigned income", input: "1000", want: 100000},
		{name: "negative with comma", input: "-0,99", want: -99},
		{name: "bare minus rejected", input: "-", wantErr: true},
		{name: "empty rejected", input: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseSignedCents(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseSignedCents(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("ParseSignedCents(%q) = %d, want %d", tt.input, got, tt.want)
			}
		})
	}
}
