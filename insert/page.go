package insert

import (
	"fmt"
	"html/template"
	"io"

	"github.com/kjk/insertrow/config"
)

const (
	msgStoreUnavailableFmt = "I could not create or open the database %s"
	msgCapacityExceeded    = "The database is full."
	msgRecordTooLarge      = "Your entry is too big. You should write a shorter message."
)

var pageTmpl = template.Must(template.New("page").Parse(`<!doctype html>
<html lang="{{.Lang}}"><head><meta charset="{{.Charset}}" /><title>{{.Title}}</title></head><body><center>
{{.Message}}{{if .Detail}}<br>{{.Detail}}{{end}}
</center></body></html>
`))

type pageData struct {
	Lang    string
	Charset string
	Title   string
	Message string
	Detail  string
}

// Message returns the user-visible message for a non-fatal outcome
func Message(cfg *config.Config, o Outcome) (msg string, detail string) {
	switch o.Kind {
	case Success:
		return cfg.SuccessMessage, ""
	case StoreUnavailable:
		msg = fmt.Sprintf(msgStoreUnavailableFmt, cfg.StorePath)
		if o.Err != nil {
			detail = o.Err.Error()
		}
		return msg, detail
	case CapacityExceeded:
		return msgCapacityExceeded, ""
	case RecordTooLarge:
		return msgRecordTooLarge, ""
	}
	return "", ""
}

// ContentType of the page rendered by RenderPage
func ContentType(cfg *config.Config) string {
	return "text/html; charset=" + cfg.Charset
}

// RenderPage writes html page describing outcome o.
// There's no page for fatal outcomes
func RenderPage(w io.Writer, cfg *config.Config, o Outcome) error {
	if o.Kind.Fatal() {
		return fmt.Errorf("no page for fatal outcome %s", o.Kind)
	}
	msg, detail := Message(cfg, o)
	data := &pageData{
		Lang:    cfg.Lang,
		Charset: cfg.Charset,
		Title:   cfg.Title,
		Message: msg,
		Detail:  detail,
	}
	return pageTmpl.Execute(w, data)
}
