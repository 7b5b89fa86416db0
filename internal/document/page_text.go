package document

import (
	"fmt"
	"strings"
	"unicode/utf16"

	"github.com/ledongthuc/pdf"
)

// TJ adjustments below this (thousandths of a text space unit) are treated
// as word gaps.
const tjWordGap = -200

// PageText decodes the text drawn on page. Glyph codes go through each font's
// /ToUnicode CMap or /Encoding; positioning operators become whitespace so
// adjacent runs do not merge into one word.
func PageText(page pdf.Page) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			text, err = "", fmt.Errorf("malformed content stream: %v", r)
		}
	}()
	contents := page.V.Key("Contents")
	if contents.IsNull() {
		return "", nil
	}

	fonts := make(map[string]pdf.TextEncoding)
	for _, name := range page.Fonts() {
		fonts[name] = page.Font(name).Encoder()
	}

	var (
		w   textWriter
		enc pdf.TextEncoding = rawEncoding{}
	)
	pdf.Interpret(contents, func(stk *pdf.Stack, op string) {
		args := make([]pdf.Value, stk.Len())
		for i := len(args) - 1; i >= 0; i-- {
			args[i] = stk.Pop()
		}
		last := pdf.Value{}
		if len(args) > 0 {
			last = args[len(args)-1]
		}
		switch op {
		case "Tf":
			if len(args) == 2 {
				if e, ok := fonts[args[0].Name()]; ok {
					enc = e
				} else {
					enc = rawEncoding{}
				}
			}
		case "Tj":
			w.write(enc.Decode(last.RawString()))
		case "'", `"`:
			w.sep('\n')
			w.write(enc.Decode(last.RawString()))
		case "TJ":
			for i := 0; i < last.Len(); i++ {
				switch x := last.Index(i); x.Kind() {
				case pdf.String:
					w.write(enc.Decode(x.RawString()))
				case pdf.Integer, pdf.Real:
					if x.Float64() < tjWordGap {
						w.sep(' ')
					}
				}
			}
		case "Td", "TD", "Tm":
			w.sep(' ')
		case "T*", "ET":
			w.sep('\n')
		}
	})
	return w.String(), nil
}

type textWriter struct {
	b    strings.Builder
	last byte
}

func (w *textWriter) write(s string) {
	if s == "" {
		return
	}
	w.b.WriteString(s)
	w.last = s[len(s)-1]
}

// sep writes c unless the text is empty or already ends in whitespace.
func (w *textWriter) sep(c byte) {
	if w.b.Len() == 0 || w.last == ' ' || w.last == '\n' {
		return
	}
	w.b.WriteByte(c)
	w.last = c
}

func (w *textWriter) String() string { return w.b.String() }

// rawEncoding decodes strings drawn with an unknown font: UTF-16BE when a
// byte order mark is present, Latin-1 otherwise.
type rawEncoding struct{}

func (rawEncoding) Decode(raw string) string {
	b := []byte(raw)
	if len(b) >= 2 && b[0] == 0xFE && b[1] == 0xFF {
		units := make([]uint16, 0, (len(b)-2)/2)
		for j := 2; j+1 < len(b); j += 2 {
			units = append(units, uint16(b[j])<<8|uint16(b[j+1]))
		}
		return string(utf16.Decode(units))
	}
	runes := make([]rune, len(b))
	for j, c := range b {
		runes[j] = rune(c)
	}
	return string(runes)
}
