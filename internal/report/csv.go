package report

import (
	"bufio"
	"io"
	"strings"
	"time"

	"github.com/sakif/formbuilder/internal/model"
)

// TimestampFormat is the ISO-8601 form used for the "Submitted At" column.
const TimestampFormat = "2006-01-02T15:04:05.000Z07:00"

// WriteCSV writes one header line and one line per form. Header cells and
// free-text cells are double-quoted; the form id and timestamp are written
// bare since they never contain separators. Columns follow template order.
func WriteCSV(w io.Writer, t *model.Template, forms []model.Form) error {
	bw := bufio.NewWriter(w)

	header := []string{quote("Form ID"), quote("Submitted By"), quote("Submitted At")}
	for _, q := range t.Questions {
		header = append(header, quote(q.Title))
	}
	writeLine(bw, header)

	for i := range forms {
		f := &forms[i]
		row := []string{
			f.ID,
			quote(f.SubmitterName),
			f.CreatedAt.UTC().Format(TimestampFormat),
		}
		for _, q := range t.Questions {
			v, _ := f.Answer(q.ID)
			row = append(row, quote(v))
		}
		writeLine(bw, row)
	}

	return bw.Flush()
}

// Filename is the download name for a template's export.
func Filename(t *model.Template, now time.Time) string {
	return "template-" + t.ID + "-" + now.UTC().Format("20060102") + ".csv"
}

func quote(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

func writeLine(w *bufio.Writer, cells []string) {
	w.WriteString(strings.Join(cells, ","))
	w.WriteByte('\n')
}
