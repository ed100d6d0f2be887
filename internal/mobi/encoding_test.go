package mobi

import "testing"

func TestCodepage_Decode(t *testing.T) {
	tests := []struct {
		name   string
		cp     Codepage
		input  []byte
		want   string
		wantOK bool
	}{
		{"utf-8", CodepageUTF8, []byte("héllo"), "héllo", true},
		{"invalid utf-8", CodepageUTF8, []byte("h\xffi"), "h�i", false},
		{"cp1252", CodepageCP1252, []byte("\x80 caf\xe9"), "€ café", true},
		{"cp1251", Codepage(1251), []byte("\xcf\xf0\xe8"), "При", true},
		{"shift-jis", Codepage(932), []byte("\x93\xfa\x96\x7b"), "日本", true},
		{"unknown falls back to cp1252", Codepage(12345), []byte("\xe9"), "é", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := tt.cp.Decode(tt.input)
			if got != tt.want || ok != tt.wantOK {
				t.Fatalf("Decode() = %q, %v, want %q, %v", got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestCodepage_String(t *testing.T) {
	tests := []struct {
		cp   Codepage
		want string
	}{
		{CodepageCP1252, "cp1252"},
		{CodepageUTF8, "utf-8"},
		{Codepage(932), "cp932"},
	}
	for _, tt := range tests {
		if got := tt.cp.String(); got != tt.want {
			t.Fatalf("Codepage(%d).String() = %q, want %q", uint32(tt.cp), got, tt.want)
		}
	}
}
