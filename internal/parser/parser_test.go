package parser

import (
	"testing"
	"time"
)

func TestDetectFormat(t *testing.T) {
	tests := []struct {
		name     string
		content  string
		fileName string
		want     Format
	}{
		{"exchange header", "1CClientBankExchange\nВерсияФормата=1.02\n", "statement.txt", FormatExchange},
		{"section marker only", "СекцияДокумент=Платежное поручение\nКонецДокумента\n", "", FormatExchange},
		{"markers win over extension", "1CClientBankExchange\n", "export.csv", FormatExchange},
		{"csv extension", "anything", "export.CSV", FormatDelimited},
		{"xlsx extension", "", "export.xlsx", FormatDelimited},
		{"semicolon shape", "a;b;c;d\n1;2;3;4\n", "export.txt", FormatDelimited},
		{"comma shape", "a,b,c,d,e\n\n1,2,3,4,5\n", "", FormatDelimited},
		{"too few fields", "a;b;c\n1;2;3\n", "", FormatUnknown},
		{"single line", "a;b;c;d\n", "", FormatUnknown},
		{"plain text", "hello\nworld\n", "notes.txt", FormatUnknown},
		{"empty", "", "", FormatUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DetectFormat(tt.content, tt.fileName); got != tt.want {
				t.Errorf("DetectFormat() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestParseUnknown(t *testing.T) {
	res := Parse("just some text", "notes.txt", Options{})
	if res.Format != FormatUnknown {
		t.Errorf("Format = %s, want unknown", res.Format)
	}
	if res.Transactions == nil || len(res.Transactions) != 0 {
		t.Errorf("Transactions = %v, want empty non-nil slice", res.Transactions)
	}
}

func TestParseDispatch(t *testing.T) {
	now := func() time.Time { return time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC) }

	res := Parse(exchangeSample, "statement.txt", Options{Now: now})
	if res.Format != FormatExchange || len(res.Transactions) != 2 {
		t.Errorf("exchange: format %s, %d transactions", res.Format, len(res.Transactions))
	}

	csvContent := "Дата;Наименование;Зачислено;Назначение\nвчера;ТОО Ромашка;100;Оплата\n"
	res = Parse(csvContent, "export.csv", Options{Now: now})
	if res.Format != FormatDelimited || len(res.Transactions) != 1 {
		t.Fatalf("delimited: format %s, %d transactions", res.Format, len(res.Transactions))
	}
	if res.Transactions[0].Date != "2024-04-01" || res.Diagnostics.DateFallbacks != 1 {
		t.Errorf("date fallback: Date = %q, DateFallbacks = %d", res.Transactions[0].Date, res.Diagnostics.DateFallbacks)
	}
}
