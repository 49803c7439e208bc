package echoweb

import (
	"embed"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"path"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/masomo-admin/core"
	"github.com/trezcool/masomo-admin/core/attendance"
	"github.com/trezcool/masomo-admin/core/auth"
)

//go:embed templates/*.gohtml
var templatesFS embed.FS

const layoutFile = "templates/layout.gohtml"

type page struct {
	Title   string
	Name    string
	AppName string
	User    string
	Flashes flashes
	Data    interface{}
}

var templateFuncs = template.FuncMap{
	"pct": func(f float64) string { return fmt.Sprintf("%.1f%%", f) },
	"date": func(d interface{}) string {
		switch d := d.(type) {
		case core.Date:
			if d.IsZero() {
				return "-"
			}
			return d.Day().Format(core.DateLayout)
		case *core.Date:
			if d == nil || d.IsZero() {
				return "-"
			}
			return d.Day().Format(core.DateLayout)
		default:
			return "-"
		}
	},
	"cell": func(r attendance.Row, day int) string {
		if r.Status(day) == attendance.StatusPresent {
			return "P"
		}
		return "A"
	},
	"lower": strings.ToLower,
}

// renderer renders one template set per page, each made of the shared layout and the page's "content".
type renderer struct {
	pages map[string]*template.Template
}

var _ echo.Renderer = (*renderer)(nil)

func newRenderer() (*renderer, error) {
	files, err := fs.Glob(templatesFS, "templates/*.gohtml")
	if err != nil {
		return nil, errors.Wrap(err, "listing templates")
	}

	r := &renderer{pages: make(map[string]*template.Template, len(files))}
	for _, file := range files {
		if file == layoutFile {
			continue
		}
		name := strings.TrimSuffix(path.Base(file), ".gohtml")
		tmpl, err := template.New(name).Funcs(templateFuncs).ParseFS(templatesFS, layoutFile, file)
		if err != nil {
			return nil, errors.Wrapf(err, "parsing template %s", name)
		}
		r.pages[name] = tmpl
	}
	return r, nil
}

func (r *renderer) Render(w io.Writer, name string, data interface{}, _ echo.Context) error {
	tmpl, ok := r.pages[name]
	if !ok {
		return errors.Errorf("template %q not found", name)
	}
	return tmpl.ExecuteTemplate(w, "layout", data)
}

// render wraps `data` with the layout's data (title, signed-in user & pending notices) and renders page `name`.
func (s *Server) render(c echo.Context, code int, name, title string, data interface{}) error {
	p := page{
		Title:   title,
		Name:    name,
		AppName: s.Conf.AppName,
		Flashes: s.flashes.pop(c),
		Data:    data,
	}
	if a, err := getContextAuth(c); err == nil {
		if sess := a.Session(); sess.IsAuthenticated {
			if claims, ok := auth.PeekClaims(sess.Token); ok {
				p.User = claims.Username
			} else {
				p.User = "admin"
			}
		}
	}
	return c.Render(code, name, p)
}
