// Package decode turns uploaded statement bytes into text for the parser.
package decode

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
)

// Encoding names accepted by DecodeWith.
const (
	UTF8        = "utf-8"
	Windows1251 = "windows-1251"
	CP866       = "cp866"
)

const (
	exchangeHeader = "1CClientBankExchange"
	sectionStart   = "СекцияДокумент"
)

// ErrUnsupportedEncoding is returned for encoding names DecodeWith does not
// know.
var ErrUnsupportedEncoding = errors.New("unsupported encoding")

var zipMagic = []byte("PK\x03\x04")

var legacyEncodings = []struct {
	name string
	enc  encoding.Encoding
}{
	{Windows1251, charmap.Windows1251},
	{CP866, charmap.CodePage866},
}

// Decode returns the text content of an uploaded file. Spreadsheets are
// flattened to semicolon-separated rows; text is read as UTF-8 when valid and
// as a Cyrillic code page otherwise.
func Decode(raw []byte, fileName string) (string, error) {
	if isSpreadsheet(raw, fileName) {
		return decodeSpreadsheet(raw)
	}

	if text, ok := decodeUTF8(raw); ok {
		return text, nil
	}

	var fallback string
	for i, le := range legacyEncodings {
		text, err := le.enc.NewDecoder().Bytes(raw)
		if err != nil {
			return "", fmt.Errorf("decode %s as %s: %w", fileName, le.name, err)
		}
		if hasExchangeMarkers(string(text)) {
			return string(text), nil
		}
		if i == 0 {
			fallback = string(text)
		}
	}
	return fallback, nil
}

// DecodeUpload uses DecodeWith when the uploader chose an encoding and
// Decode otherwise.
func DecodeUpload(raw []byte, fileName, encodingName string) (string, error) {
	if strings.TrimSpace(encodingName) != "" {
		return DecodeWith(raw, encodingName)
	}
	return Decode(raw, fileName)
}

// DecodeWith decodes text with an explicitly chosen encoding.
func DecodeWith(raw []byte, encodingName string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(encodingName)) {
	case "", UTF8, "utf8":
		if !utf8.Valid(raw) {
			return "", fmt.Errorf("decode utf-8: invalid byte sequence")
		}
		return strings.TrimPrefix(string(raw), "\ufeff"), nil
	case Windows1251, "cp1251":
		return decodeWith(charmap.Windows1251, raw, Windows1251)
	case CP866, "ibm866":
		return decodeWith(charmap.CodePage866, raw, CP866)
	default:
		return "", fmt.Errorf("decode %q: %w", encodingName, ErrUnsupportedEncoding)
	}
}

// Supported reports whether DecodeWith accepts an encoding name. The empty
// name means automatic detection and is supported.
func Supported(encodingName string) bool {
	_, err := DecodeWith(nil, encodingName)
	return !errors.Is(err, ErrUnsupportedEncoding)
}

func decodeWith(enc encoding.Encoding, raw []byte, name string) (string, error) {
	text, err := enc.NewDecoder().Bytes(raw)
	if err != nil {
		return "", fmt.Errorf("decode %s: %w", name, err)
	}
	return string(text), nil
}

// decodeUTF8 accepts raw as UTF-8 when it is valid and, for exchange files,
// when both markers survive decoding.
func decodeUTF8(raw []byte) (string, bool) {
	if !utf8.Valid(raw) {
		return "", false
	}
	s := strings.TrimPrefix(string(raw), "\ufeff")
	if strings.ContainsRune(s, utf8.RuneError) {
		return "", false
	}
	if strings.Contains(s, exchangeHeader) && !strings.Contains(s, sectionStart) {
		return "", false
	}
	return s, true
}

func hasExchangeMarkers(s string) bool {
	return strings.Contains(s, exchangeHeader) && strings.Contains(s, sectionStart)
}

func isSpreadsheet(raw []byte, fileName string) bool {
	if strings.EqualFold(filepath.Ext(fileName), ".xlsx") {
		return true
	}
	return bytes.HasPrefix(raw, zipMagic)
}

// decodeSpreadsheet reads the first sheet of a workbook and re-emits it as
// semicolon-separated text.
func decodeSpreadsheet(raw []byte) (string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(raw))
	if err != nil {
		return "", fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheet := f.GetSheetName(0)
	if sheet == "" {
		return "", fmt.Errorf("open workbook: no sheets")
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return "", fmt.Errorf("read sheet %s: %w", sheet, err)
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	w.Comma = ';'
	for _, row := range rows {
		if err := w.Write(row); err != nil {
			return "", fmt.Errorf("write row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", fmt.Errorf("write rows: %w", err)
	}
	return buf.String(), nil
}
