package analysis

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// ReadXLSX reads one worksheet of a .xlsx workbook into a Table.
// If opt.SheetName is empty and opt.SheetIndex <= 0, the first sheet is used.
func ReadXLSX(path string, opt Options) (*Table, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read xlsx: %w", err)
	}
	zr, err := zip.NewReader(bytes.NewReader(b), int64(len(b)))
	if err != nil {
		return nil, fmt.Errorf("open xlsx: %w", err)
	}
	wb := openWorkbook(zr)
	target, err := wb.resolveSheet(opt.SheetName, opt.SheetIndex)
	if err != nil {
		return nil, fmt.Errorf("%w (workbook '%s')", err, filepath.Base(path))
	}
	rr := newSheetRowReader(readZipFile(zr, target), wb.shared)

	t := &Table{Name: filepath.Base(path)}
	header, ok := rr.Next()
	if !ok || len(header) == 0 {
		return t, nil
	}
	t.Columns = cleanHeader(cellTexts(header))
	for {
		rec, ok := rr.Next()
		if !ok {
			break
		}
		if blankRecord(rec) {
			continue
		}
		t.Rows = append(t.Rows, xlsxRow(rec, len(t.Columns), opt))
	}
	return t, nil
}

// xlsxCell is a decoded cell. Numeric cells hold the value as written by the
// spreadsheet application, always with a '.' decimal point.
type xlsxCell struct {
	text    string
	numeric bool
}

// value converts the cell. The number locale of opt only applies to text
// cells; a native number is never re-read with it.
func (c xlsxCell) value(opt Options) Value {
	if c.numeric {
		raw := strings.TrimSpace(c.text)
		if x, err := strconv.ParseFloat(raw, 64); err == nil && !math.IsNaN(x) && !math.IsInf(x, 0) {
			return Value{Kind: KindNumber, Num: x, Text: raw}
		}
	}
	return ParseValue(c.text, opt)
}

func xlsxRow(rec []xlsxCell, ncol int, opt Options) Row {
	row := make(Row, ncol)
	for j := range row {
		if j < len(rec) {
			row[j] = rec[j].value(opt)
		} else {
			row[j] = Empty()
		}
	}
	return row
}

func cellTexts(rec []xlsxCell) []string {
	out := make([]string, len(rec))
	for i, c := range rec {
		out[i] = c.text
	}
	return out
}

func blankRecord(rec []xlsxCell) bool {
	for _, c := range rec {
		if strings.TrimSpace(c.text) != "" {
			return false
		}
	}
	return true
}

type wbSheet struct {
	Name    string
	SheetID int
	RID     string
}

// workbook holds the parts of the package needed to locate and decode a sheet.
type workbook struct {
	sheets []wbSheet
	rels   map[string]string // r:id -> Target
	shared []string
}

func openWorkbook(zr *zip.Reader) *workbook {
	return &workbook{
		sheets: parseWorkbook(readZipFile(zr, "xl/workbook.xml")),
		rels:   parseRelationships(readZipFile(zr, "xl/_rels/workbook.xml.rels")),
		shared: parseSharedStrings(readZipFile(zr, "xl/sharedStrings.xml")),
	}
}

func (wb *workbook) resolveSheet(name string, index int) (string, error) {
	if name != "" {
		for _, s := range wb.sheets {
			if strings.EqualFold(s.Name, name) {
				if rel, ok := wb.rels[s.RID]; ok {
					return normalizeRelPath(rel), nil
				}
			}
		}
		avail := make([]string, len(wb.sheets))
		for i, s := range wb.sheets {
			avail[i] = s.Name
		}
		return "", fmt.Errorf("sheet '%s' not found; available sheets: %s", name, strings.Join(avail, ", "))
	}
	if index <= 0 {
		index = 1
	}
	// sheetId is not guaranteed to follow workbook order; prefer the
	// positional entry, then the id, then the conventional file name.
	if index <= len(wb.sheets) {
		if rel, ok := wb.rels[wb.sheets[index-1].RID]; ok {
			return normalizeRelPath(rel), nil
		}
	}
	for _, s := range wb.sheets {
		if s.SheetID == index {
			if rel, ok := wb.rels[s.RID]; ok {
				return normalizeRelPath(rel), nil
			}
		}
	}
	return fmt.Sprintf("xl/worksheets/sheet%d.xml", index), nil
}

// parseWorkbook extracts sheet entries with names and relationship ids.
func parseWorkbook(data []byte) []wbSheet {
	var sheets []wbSheet
	eachStart(data, func(se xml.StartElement) {
		if se.Name.Local != "sheet" {
			return
		}
		var s wbSheet
		for _, a := range se.Attr {
			switch a.Name.Local {
			case "name":
				s.Name = a.Value
			case "sheetId":
				s.SheetID = atoiSafe(a.Value)
			case "id":
				s.RID = a.Value
			}
		}
		sheets = append(sheets, s)
	})
	return sheets
}

func parseRelationships(data []byte) map[string]string {
	out := map[string]string{}
	eachStart(data, func(se xml.StartElement) {
		if se.Name.Local != "Relationship" {
			return
		}
		var id, target string
		for _, a := range se.Attr {
			switch a.Name.Local {
			case "Id":
				id = a.Value
			case "Target":
				target = a.Value
			}
		}
		if id != "" && target != "" {
			out[id] = target
		}
	})
	return out
}

// eachStart calls fn for every start element; decoding stops at the first error.
func eachStart(data []byte, fn func(xml.StartElement)) {
	if len(data) == 0 {
		return
	}
	dec := xml.NewDecoder(bytes.NewReader(data))
	for {
		tok, err := dec.Token()
		if err != nil {
			return
		}
		if se, ok := tok.(xml.StartElement); ok {
			fn(se)
		}
	}
}

func readZipFile(zr *zip.Reader, name string) []byte {
	for _, f := range zr.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil
		}
		defer rc.Close()
		b, _ := io.ReadAll(rc)
		return b
	}
	return nil
}

// parseSharedStrings returns the shared string table; rich text runs are concatenated.
func parseSharedStrings(data []byte) []string {
	if len(data) == 0 {
		return nil
	}
	dec := xml.NewDecoder(bytes.NewReader(data))
	var out []string
	var buf strings.Builder
	var inT bool
	for {
		tok, err := dec.Token()
		if err != nil {
			return out
		}
		switch se := tok.(type) {
		case xml.StartElement:
			switch se.Name.Local {
			case "si":
				buf.Reset()
			case "t":
				inT = true
			}
		case xml.EndElement:
			switch se.Name.Local {
			case "t":
				inT = false
			case "si":
				out = append(out, buf.String())
				buf.Reset()
			}
		case xml.CharData:
			if inT {
				buf.Write(se)
			}
		}
	}
}

// sheetRowReader streams rows of a worksheet as raw strings.
type sheetRowReader struct {
	dec    *xml.Decoder
	shared []string
}

func newSheetRowReader(data []byte, shared []string) *sheetRowReader {
	return &sheetRowReader{dec: xml.NewDecoder(bytes.NewReader(data)), shared: shared}
}

// Next returns the next <row>; cells missing from the XML come back empty.
func (r *sheetRowReader) Next() ([]xlsxCell, bool) {
	var row []xlsxCell
	inRow := false
	for {
		tok, err := r.dec.Token()
		if err != nil {
			return nil, false
		}
		switch se := tok.(type) {
		case xml.StartElement:
			if se.Name.Local == "row" {
				inRow = true
				row = nil
				continue
			}
			if !inRow || se.Name.Local != "c" {
				continue
			}
			var ref, typ string
			for _, a := range se.Attr {
				switch a.Name.Local {
				case "r":
					ref = a.Value
				case "t":
					typ = a.Value
				}
			}
			col := len(row)
			if ref != "" {
				if i := colIndexFromRef(ref); i >= 0 {
					col = i
				}
			}
			for len(row) <= col {
				row = append(row, xlsxCell{})
			}
			row[col] = xlsxCell{text: r.cellValue(typ), numeric: typ == "" || typ == "n"}
		case xml.EndElement:
			if se.Name.Local == "row" && inRow {
				return row, true
			}
		}
	}
}

// cellValue consumes tokens up to </c> and returns the decoded value.
func (r *sheetRowReader) cellValue(typ string) string {
	var val strings.Builder
	depth := 0
	for {
		tok, err := r.dec.Token()
		if err != nil {
			break
		}
		switch se := tok.(type) {
		case xml.StartElement:
			if se.Name.Local == "v" || se.Name.Local == "t" {
				depth++
			}
		case xml.EndElement:
			if se.Name.Local == "v" || se.Name.Local == "t" {
				depth--
			}
			if se.Name.Local == "c" {
				return r.decode(typ, val.String())
			}
		case xml.CharData:
			if depth > 0 {
				val.Write(se)
			}
		}
	}
	return r.decode(typ, val.String())
}

func (r *sheetRowReader) decode(typ, raw string) string {
	switch typ {
	case "s":
		idx := atoiSafe(raw)
		if idx >= 0 && idx < len(r.shared) {
			return r.shared[idx]
		}
		return ""
	case "b":
		if raw == "1" {
			return "TRUE"
		}
		return "FALSE"
	default:
		return raw
	}
}

// colIndexFromRef maps a cell reference like "C12" to a 0-based column index.
func colIndexFromRef(ref string) int {
	idx := 0
	for i := 0; i < len(ref); i++ {
		c := ref[i]
		switch {
		case c >= 'A' && c <= 'Z':
			idx = idx*26 + int(c-'A'+1)
		case c >= 'a' && c <= 'z':
			idx = idx*26 + int(c-'a'+1)
		default:
			return idx - 1
		}
	}
	return idx - 1
}

func atoiSafe(s string) int {
	n := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c < '0' || c > '9' {
			break
		}
		n = n*10 + int(c-'0')
	}
	return n
}

// normalizeRelPath converts relationship Target paths to ZIP entry names.
// Targets may be absolute ("/xl/worksheets/sheet1.xml") or relative to xl/.
func normalizeRelPath(rel string) string {
	rel = strings.TrimPrefix(rel, "/")
	if strings.HasPrefix(rel, "xl/") {
		return rel
	}
	return "xl/" + rel
}
