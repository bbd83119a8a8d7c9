package types

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestAddress_IsZero(t *testing.T) {
	var zero Address
	if !zero.IsZero() {
		t.Error("zero-value Address should be zero")
	}
	if !BurnAddress.IsZero() {
		t.Error("burn address should be the zero address")
	}

	nonZero := Address{0x01}
	if nonZero.IsZero() {
		t.Error("non-zero Address should not be zero")
	}
}

func TestAddress_String(t *testing.T) {
	var a Address
	if got := a.String(); got != "0x"+strings.Repeat("0", 40) {
		t.Errorf("zero String() = %s", got)
	}

	a[0] = 0xab
	a[19] = 0xcd
	s := a.String()
	if !strings.HasPrefix(s, "0xab") || !strings.HasSuffix(s, "cd") {
		t.Errorf("String() = %s, want 0xab...cd", s)
	}
	if len(s) != 42 {
		t.Errorf("String() length = %d, want 42", len(s))
	}
}

func TestParseAddress(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Address
		wantErr bool
	}{
		{name: "prefixed", input: "0x" + strings.Repeat("11", 20), want: Address{0x11, 0x11, 0x11, 0x11, 0x11, 0x11, 0x11, 0x11, 0x11, 0x11, 0x11, 0x11, 0x11, 0x11, 0x11, 0x11, 0x11, 0x11, 0x11, 0x11}},
		{name: "raw hex", input: strings.Repeat("00", 19) + "ff", want: Address{19: 0xff}},
		{name: "upper case", input: "0X" + strings.Repeat("AB", 20), want: func() Address {
			var a Address
			for i := range a {
				a[i] = 0xab
			}
			return a
		}()},
		{name: "zero address", input: "0x0000000000000000000000000000000000000000", want: BurnAddress},
		{name: "empty", input: "", wantErr: true},
		{name: "too short", input: "0xabcd", wantErr: true},
		{name: "too long", input: "0x" + strings.Repeat("00", 21), wantErr: true},
		{name: "bad hex", input: "0x" + strings.Repeat("zz", 20), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseAddress(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Errorf("ParseAddress(%q) should fail", tt.input)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseAddress(%q): %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("ParseAddress(%q) = %s, want %s", tt.input, got, tt.want)
			}
		})
	}
}

func TestAddress_JSON(t *testing.T) {
	a := Address{0x8f, 0x3a, 19: 0x01}
	data, err := json.Marshal(a)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if !strings.HasPrefix(string(data), `"0x8f3a`) {
		t.Errorf("Marshal = %s", data)
	}

	var got Address
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if got != a {
		t.Errorf("roundtrip = %s, want %s", got, a)
	}

	var empty Address
	if err := json.Unmarshal([]byte(`""`), &empty); err != nil {
		t.Fatalf("Unmarshal empty: %v", err)
	}
	if !empty.IsZero() {
		t.Error("empty string should decode to zero address")
	}
}

func TestAddress_Bytes_IsCopy(t *testing.T) {
	a := Address{0x01}
	b := a.Bytes()
	b[0] = 0xff
	if a[0] != 0x01 {
		t.Error("Bytes() should return a copy")
	}
}
