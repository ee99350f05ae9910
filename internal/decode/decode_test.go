package decode

import (
	"errors"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/charmap"
)

const exchangeText = "1CClientBankExchange\nСекцияДокумент=Платежное поручение\nДата=01.03.2024\nСумма=100\nПлательщик=ТОО Ромашка\nКонецДокумента\n"

func TestDecodeUTF8(t *testing.T) {
	got, err := Decode([]byte("\ufeff"+exchangeText), "statement.txt")
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got != exchangeText {
		t.Errorf("Decode = %q, want BOM stripped", got)
	}
}

func TestDecodeLegacyEncodings(t *testing.T) {
	tests := []struct {
		name string
		enc  *charmap.Charmap
	}{
		{"windows-1251", charmap.Windows1251},
		{"cp866", charmap.CodePage866},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw, err := tt.enc.NewEncoder().Bytes([]byte(exchangeText))
			if err != nil {
				t.Fatalf("encode: %v", err)
			}
			got, err := Decode(raw, "statement.txt")
			if err != nil {
				t.Fatalf("Decode: %v", err)
			}
			if got != exchangeText {
				t.Errorf("Decode = %q, want %q", got, exchangeText)
			}
		})
	}
}

func TestDecodeLegacyDelimitedDefaultsTo1251(t *testing.T) {
	text := "Дата;Наименование;Зачислено;Назначение\n01.03.2024;ТОО Ромашка;100000;Оплата услуг\n"
	raw, err := charmap.Windows1251.NewEncoder().Bytes([]byte(text))
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	got, err := Decode(raw, "export.csv")
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got != text {
		t.Errorf("Decode = %q, want %q", got, text)
	}
}

func TestDecodeSpreadsheet(t *testing.T) {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	rows := [][]any{
		{"Дата", "Наименование", "Зачислено", "Назначение"},
		{"01.03.2024", "ТОО \"Ромашка\"", "100000", "Оплата; услуг"},
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			t.Fatal(err)
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			t.Fatalf("SetSheetRow: %v", err)
		}
	}
	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatalf("WriteToBuffer: %v", err)
	}

	got, err := Decode(buf.Bytes(), "export.xlsx")
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(got), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2: %q", len(lines), got)
	}
	if lines[0] != "Дата;Наименование;Зачислено;Назначение" {
		t.Errorf("header = %q", lines[0])
	}
	if lines[1] != `01.03.2024;"ТОО ""Ромашка""";100000;"Оплата; услуг"` {
		t.Errorf("row = %q", lines[1])
	}
}

func TestDecodeCorruptWorkbook(t *testing.T) {
	if _, err := Decode([]byte("PK\x03\x04garbage"), "export.xlsx"); err == nil {
		t.Error("expected error for corrupt workbook")
	}
}

func TestDecodeWith(t *testing.T) {
	raw, err := charmap.CodePage866.NewEncoder().Bytes([]byte("Оплата услуг"))
	if err != nil {
		t.Fatal(err)
	}
	got, err := DecodeWith(raw, "CP866")
	if err != nil || got != "Оплата услуг" {
		t.Errorf("DecodeWith cp866 = %q, %v", got, err)
	}

	if _, err := DecodeWith([]byte{0xff, 0xfe}, "utf-8"); err == nil {
		t.Error("expected error for invalid utf-8")
	}
	if _, err := DecodeWith([]byte("x"), "koi8-r"); !errors.Is(err, ErrUnsupportedEncoding) {
		t.Errorf("koi8-r error = %v, want ErrUnsupportedEncoding", err)
	}
}

func TestSupported(t *testing.T) {
	for _, name := range []string{"", "UTF-8", "cp1251", "windows-1251", "ibm866"} {
		if !Supported(name) {
			t.Errorf("Supported(%q) = false", name)
		}
	}
	if Supported("koi8-r") {
		t.Error("Supported(koi8-r) = true")
	}
}
