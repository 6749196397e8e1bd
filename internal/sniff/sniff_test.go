package sniff

import (
	"errors"
	"testing"
)

func TestSniff_DelimiterInference(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		wantDelim rune
		wantRule  string
	}{
		{
			name:      "semicolon separated",
			input:     "a;b;c\n1;2;3\n4;5;6",
			wantDelim: ';',
			wantRule:  "semicolon",
		},
		{
			name:      "comma separated",
			input:     "a,b,c\n1,2,3",
			wantDelim: ',',
			wantRule:  "comma",
		},
		{
			name:      "tab separated",
			input:     "a\tb\tc\n1\t2\t3",
			wantDelim: '\t',
			wantRule:  "tab",
		},
		{
			name: "semicolon with comma decimals",
			input: "Cell ID;RSRP;SINR\n" +
				"310-01;-101,5;12,3\n" +
				"310-02;-98,2;15,0",
			wantDelim: ';',
			wantRule:  "semicolon",
		},
		{
			name:      "single column",
			input:     "value\n1\n2\n3",
			wantDelim: ',',
			wantRule:  RuleSingleColumn,
		},
		{
			name: "semicolon preferred on tie",
			input: "a;b,c\n" +
				"1;2,3\n" +
				"4;5,6",
			wantDelim: ';',
			wantRule:  "semicolon",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := Sniff([]byte(tt.input), Options{})
			if err != nil {
				t.Fatalf("Sniff() error = %v", err)
			}
			if res.Delimiter != tt.wantDelim {
				t.Errorf("Delimiter = %q, want %q", res.Delimiter, tt.wantDelim)
			}
			if res.DelimiterRule != tt.wantRule {
				t.Errorf("DelimiterRule = %q, want %q", res.DelimiterRule, tt.wantRule)
			}
		})
	}
}

func TestSniff_HeaderDetection(t *testing.T) {
	t.Run("header on first line", func(t *testing.T) {
		res, err := Sniff([]byte("Cell ID;Counter A\nabc;1\ndef;2"), Options{})
		if err != nil {
			t.Fatalf("Sniff() error = %v", err)
		}
		if res.HeaderRow != 0 {
			t.Errorf("HeaderRow = %d, want 0", res.HeaderRow)
		}
		if res.SyntheticHeader {
			t.Error("SyntheticHeader = true, want false")
		}
		if len(res.Columns) != 2 || res.Columns[0] != "Cell ID" || res.Columns[1] != "Counter A" {
			t.Errorf("Columns = %v, want [Cell ID, Counter A]", res.Columns)
		}
		if got := len(res.DataRows()); got != 2 {
			t.Errorf("DataRows() length = %d, want 2", got)
		}
	})

	t.Run("header after preamble", func(t *testing.T) {
		input := "Report generated 2024-01-05\n" +
			"Site;Cell;Traffic\n" +
			"S1;C1;10\n" +
			"S2;C2;20\n"
		res, err := Sniff([]byte(input), Options{})
		if err != nil {
			t.Fatalf("Sniff() error = %v", err)
		}
		if res.HeaderRow != 1 {
			t.Errorf("HeaderRow = %d, want 1", res.HeaderRow)
		}
		if res.Columns[2] != "Traffic" {
			t.Errorf("Columns[2] = %q, want Traffic", res.Columns[2])
		}
	})

	t.Run("all numeric rows synthesize header", func(t *testing.T) {
		res, err := Sniff([]byte("1;2;3\n4;5;6\n7;8;9"), Options{})
		if err != nil {
			t.Fatalf("Sniff() error = %v", err)
		}
		if !res.SyntheticHeader {
			t.Fatal("SyntheticHeader = false, want true")
		}
		if res.HeaderRow != 0 {
			t.Errorf("HeaderRow = %d, want 0", res.HeaderRow)
		}
		want := []string{"col_1", "col_2", "col_3"}
		for i, col := range want {
			if res.Columns[i] != col {
				t.Errorf("Columns[%d] = %q, want %q", i, res.Columns[i], col)
			}
		}
		// With a synthetic header, every record is data.
		if got := len(res.DataRows()); got != 3 {
			t.Errorf("DataRows() length = %d, want 3", got)
		}
	})

	t.Run("excel artifact headers cleaned", func(t *testing.T) {
		res, err := Sniff([]byte("=\"Cell ID\";\"RSRP\"\nx;1"), Options{})
		if err != nil {
			t.Fatalf("Sniff() error = %v", err)
		}
		if res.Columns[0] != "Cell ID" || res.Columns[1] != "RSRP" {
			t.Errorf("Columns = %v, want [Cell ID, RSRP]", res.Columns)
		}
	})
}

func TestSniff_Encoding(t *testing.T) {
	t.Run("utf8", func(t *testing.T) {
		res, err := Sniff([]byte("a;b\nç;d"), Options{})
		if err != nil {
			t.Fatalf("Sniff() error = %v", err)
		}
		if res.Encoding != EncodingUTF8 {
			t.Errorf("Encoding = %q, want %q", res.Encoding, EncodingUTF8)
		}
	})

	t.Run("latin-1 fallback", func(t *testing.T) {
		// 0xE9 is 'é' in ISO-8859-1 and invalid as a standalone UTF-8 byte.
		raw := []byte("site;r\xe9gion\nS1;Ouest")
		res, err := Sniff(raw, Options{})
		if err != nil {
			t.Fatalf("Sniff() error = %v", err)
		}
		if res.Encoding != EncodingLatin1 {
			t.Errorf("Encoding = %q, want %q", res.Encoding, EncodingLatin1)
		}
		if res.Columns[1] != "région" {
			t.Errorf("Columns[1] = %q, want %q", res.Columns[1], "région")
		}
	})

	t.Run("binary content rejected", func(t *testing.T) {
		_, err := Sniff([]byte{'a', ';', 'b', '\n', 0x00, 0x01}, Options{})
		var encErr *EncodingError
		if !errors.As(err, &encErr) {
			t.Fatalf("Sniff() error = %v, want *EncodingError", err)
		}
	})

	t.Run("utf8 bom stripped", func(t *testing.T) {
		raw := append([]byte{0xEF, 0xBB, 0xBF}, []byte("a;b\n1;2")...)
		res, err := Sniff(raw, Options{})
		if err != nil {
			t.Fatalf("Sniff() error = %v", err)
		}
		if res.Columns[0] != "a" {
			t.Errorf("Columns[0] = %q, want %q", res.Columns[0], "a")
		}
	})
}

func TestSniff_EmptyInput(t *testing.T) {
	for _, input := range []string{"", "\n\n\n", "   \n\t\n"} {
		if _, err := Sniff([]byte(input), Options{}); !errors.Is(err, ErrEmptyInput) {
			t.Errorf("Sniff(%q) error = %v, want ErrEmptyInput", input, err)
		}
	}
}

func TestCleanHeader(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{`="Cell ID"`, "Cell ID"},
		{`"RSRP"`, "RSRP"},
		{"  Counter   A ", "Counter A"},
		{"\ufeffDate", "Date"},
		{"plain", "plain"},
	}
	for _, tt := range tests {
		if got := CleanHeader(tt.input); got != tt.want {
			t.Errorf("CleanHeader(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}
